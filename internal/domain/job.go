package domain

import (
	"encoding/json"
	"strconv"
	"time"
)

// JobCard is one search result.
type JobCard struct {
	JobID    string
	Title    string
	Company  string
	Location string
	URL      string
}

// JobApplicationRecord is a ledger entry, written once on a confirmed
// submission and never changed.
type JobApplicationRecord struct {
	JobID     string    `json:"job_id"`
	Title     string    `json:"job_title"`
	Company   string    `json:"company"`
	AppliedAt time.Time `json:"applied_at"`
}

// legacy ledgers carry naive UTC timestamps with microseconds
var appliedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (r *JobApplicationRecord) UnmarshalJSON(b []byte) error {
	var raw struct {
		JobID     any    `json:"job_id"`
		Title     string `json:"job_title"`
		Company   string `json:"company"`
		AppliedAt string `json:"applied_at"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Title, r.Company = raw.Title, raw.Company
	switch v := raw.JobID.(type) {
	case string:
		r.JobID = v
	case float64:
		r.JobID = strconv.FormatFloat(v, 'f', -1, 64)
	}
	r.AppliedAt = time.Time{}
	for _, layout := range appliedAtLayouts {
		if t, err := time.Parse(layout, raw.AppliedAt); err == nil {
			r.AppliedAt = t.UTC()
			break
		}
	}
	return nil
}

type Status string

const (
	StatusApplied               Status = "applied"
	StatusSkippedAlreadyApplied Status = "skipped_already_applied"
	StatusSkippedNoEasyApply    Status = "skipped_no_easy_apply"
	StatusSkippedUnfillable     Status = "skipped_unfillable"
	StatusSkippedBlocked        Status = "skipped_blocked"
	StatusError                 Status = "error"
)

// Statuses in summary order.
var Statuses = []Status{
	StatusApplied,
	StatusSkippedAlreadyApplied,
	StatusSkippedNoEasyApply,
	StatusSkippedUnfillable,
	StatusSkippedBlocked,
	StatusError,
}

type ApplyOutcome struct {
	JobID   string
	Title   string
	Company string
	Status  Status
	Detail  string
}

func Outcome(card JobCard, status Status, detail string) ApplyOutcome {
	return ApplyOutcome{JobID: card.JobID, Title: card.Title, Company: card.Company, Status: status, Detail: detail}
}
