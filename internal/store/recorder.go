package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"easyapply-engine/internal/domain"
)

// Recorder writes the outcomes of one run under a fresh run ID.
type Recorder struct {
	db    *DB
	RunID string
}

func NewRecorder(db *DB) *Recorder {
	return &Recorder{db: db, RunID: uuid.NewString()}
}

func (r *Recorder) Record(ctx context.Context, o domain.ApplyOutcome) error {
	_, err := InsertOutcome(ctx, r.db.Pool, r.RunID, o, time.Now())
	return err
}
