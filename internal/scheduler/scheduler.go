// Package scheduler repeats a task on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

type Task func(ctx context.Context) error

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a task error that should end the schedule.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Every runs task immediately and then once per interval until ctx ends or
// the task returns a Permanent error. Runs never overlap: a run that outlasts
// the interval starts the next one right after it. Other task errors are
// logged and the schedule continues.
func Every(ctx context.Context, interval time.Duration, name string, task Task, logger *zap.Logger) error {
	log := logger.Named("scheduler").With(zap.String("task", name))
	t := time.NewTicker(interval)
	defer t.Stop()

	for run := 1; ; run++ {
		log.Info("task starting", zap.Int("run", run))
		start := time.Now()
		err := task(ctx)
		var perm *permanentError
		switch {
		case errors.As(err, &perm):
			log.Error("task failed permanently", zap.Error(perm.err))
			return perm.err
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			log.Warn("task failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		default:
			log.Info("task finished", zap.Duration("took", time.Since(start)))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
