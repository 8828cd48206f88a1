package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordReadsLegacyLedgerEntries(t *testing.T) {
	var recs []JobApplicationRecord
	require.NoError(t, json.Unmarshal([]byte(`[
  {"job_id": "4211428768", "job_title": "Go Engineer", "company": "Acme", "applied_at": "2025-03-01T10:20:30.123456"},
  {"job_id": 4211428769, "job_title": "SRE", "company": "Initech", "applied_at": "2025-03-02T08:00:00Z"},
  {"job_id": "1", "job_title": "x", "company": "y", "applied_at": "garbage"}
]`), &recs))
	require.Len(t, recs, 3)

	assert.Equal(t, "4211428768", recs[0].JobID)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 20, 30, 123456000, time.UTC), recs[0].AppliedAt)
	assert.Equal(t, "4211428769", recs[1].JobID)
	assert.Equal(t, time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC), recs[1].AppliedAt)
	assert.True(t, recs[2].AppliedAt.IsZero())
}

func TestRecordWritesOriginalKeys(t *testing.T) {
	b, err := json.Marshal(JobApplicationRecord{
		JobID: "42", Title: "Go Engineer", Company: "Acme",
		AppliedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"job_id":"42","job_title":"Go Engineer","company":"Acme","applied_at":"2025-03-01T10:00:00Z"}`, string(b))
}
