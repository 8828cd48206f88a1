// Package ledger keeps the append-only record of jobs already applied to.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"easyapply-engine/internal/domain"
)

const lockRetry = 50 * time.Millisecond

// Ledger is a JSON array file of domain.JobApplicationRecord. Appends hold an
// exclusive file lock and re-read the file, so several sessions sharing one
// ledger record each job at most once.
type Ledger struct {
	path   string
	lock   *flock.Flock
	logger *zap.Logger

	mu      sync.Mutex
	records []domain.JobApplicationRecord
	ids     map[string]bool
}

// Open loads path. A missing, unreadable or corrupt file is treated as an
// empty ledger.
func Open(path string, logger *zap.Logger) *Ledger {
	l := &Ledger{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger.Named("ledger"),
	}
	l.set(l.read())
	l.logger.Info("ledger loaded", zap.String("path", path), zap.Int("records", len(l.records)))
	return l
}

func (l *Ledger) read() []domain.JobApplicationRecord {
	b, err := os.ReadFile(l.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("ledger unreadable, treating as empty", zap.String("path", l.path), zap.Error(err))
		}
		return nil
	}
	var recs []domain.JobApplicationRecord
	if err := json.Unmarshal(b, &recs); err != nil {
		l.logger.Warn("ledger corrupt, treating as empty", zap.String("path", l.path), zap.Error(err))
		return nil
	}
	return recs
}

func (l *Ledger) set(recs []domain.JobApplicationRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = recs
	l.ids = make(map[string]bool, len(recs))
	for _, r := range recs {
		l.ids[r.JobID] = true
	}
}

func (l *Ledger) Has(jobID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ids[jobID]
}

func (l *Ledger) Records() []domain.JobApplicationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.JobApplicationRecord(nil), l.records...)
}

// Record appends rec unless its job is already present on disk. It reports
// whether rec was written.
func (l *Ledger) Record(ctx context.Context, rec domain.JobApplicationRecord) (bool, error) {
	if rec.JobID == "" {
		return false, errors.New("ledger: empty job id")
	}
	if rec.AppliedAt.IsZero() {
		rec.AppliedAt = time.Now().UTC()
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("ledger dir: %w", err)
	}

	locked, err := l.lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return false, fmt.Errorf("lock ledger: %w", err)
	}
	if !locked {
		return false, errors.New("lock ledger: not acquired")
	}
	defer func() { _ = l.lock.Unlock() }()

	recs := l.read()
	for _, r := range recs {
		if r.JobID == rec.JobID {
			l.set(recs)
			return false, nil
		}
	}
	recs = append(recs, rec)
	if err := writeAtomic(l.path, recs); err != nil {
		return false, err
	}
	l.set(recs)
	l.logger.Info("recorded application", zap.String("job_id", rec.JobID), zap.String("company", rec.Company))
	return true, nil
}

func writeAtomic(path string, recs []domain.JobApplicationRecord) error {
	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
