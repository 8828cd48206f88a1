package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"easyapply-engine/internal/domain"
)

// Outcome is one row of apply history: what happened to one job in one run.
type Outcome struct {
	ID        int64
	RunID     string
	JobID     string
	Title     string
	Company   string
	Status    domain.Status
	Detail    string
	CreatedAt time.Time
}

type ListOutcomesOpts struct {
	RunID  string
	Status domain.Status
	Window string // 24h | 7d | all
	Limit  int
}

func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}

	if v >= 1 {
		return tx.Commit()
	}

	// ---- Schema v1 ----

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS outcomes (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL,
  job_id TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  company TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  detail TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_outcomes_created_at
ON outcomes(created_at);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_outcomes_job_id
ON outcomes(job_id);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}
	return tx.Commit()
}

func InsertOutcome(ctx context.Context, db *sql.DB, runID string, o domain.ApplyOutcome, at time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `
INSERT INTO outcomes(run_id, job_id, title, company, status, detail, created_at)
VALUES(?,?,?,?,?,?,?);`,
		runID, o.JobID, o.Title, o.Company, string(o.Status), o.Detail, at.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("insert outcome: %w", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// ListOutcomes returns history newest first.
func ListOutcomes(ctx context.Context, db *sql.DB, opts ListOutcomesOpts) ([]Outcome, error) {
	if opts.Limit <= 0 || opts.Limit > 5000 {
		opts.Limit = 100
	}

	where := "WHERE 1=1"
	var args []any
	switch opts.Window {
	case "24h":
		where += " AND created_at >= ?"
		args = append(args, time.Now().UTC().Add(-24*time.Hour).Format(time.RFC3339))
	case "7d":
		where += " AND created_at >= ?"
		args = append(args, time.Now().UTC().Add(-7*24*time.Hour).Format(time.RFC3339))
	}
	if opts.RunID != "" {
		where += " AND run_id = ?"
		args = append(args, opts.RunID)
	}
	if opts.Status != "" {
		where += " AND status = ?"
		args = append(args, string(opts.Status))
	}
	args = append(args, opts.Limit)

	query := fmt.Sprintf(`
SELECT id, run_id, job_id, title, company, status, detail, created_at
FROM outcomes
%s
ORDER BY created_at DESC, id DESC
LIMIT ?;
`, where)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var (
			o       Outcome
			status  string
			created string
		)
		if err := rows.Scan(&o.ID, &o.RunID, &o.JobID, &o.Title, &o.Company, &status, &o.Detail, &created); err != nil {
			return nil, err
		}
		o.Status = domain.Status(status)
		o.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func CleanupOldOutcomes(ctx context.Context, db *sql.DB, olderThan time.Duration) (deleted int64, err error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	res, err := db.ExecContext(ctx, `DELETE FROM outcomes WHERE created_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old outcomes: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
