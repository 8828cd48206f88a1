// Package apply runs an application pass: log in, search, and push every
// listing through the Easy Apply engine exactly once.
package apply

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"easyapply-engine/internal/browser"
	"easyapply-engine/internal/domain"
	"easyapply-engine/internal/linkedin"
	"easyapply-engine/internal/modal"
)

// Site is the part of the LinkedIn layer a run needs.
type Site interface {
	Login(ctx context.Context) error
	Search(ctx context.Context, q linkedin.Query) error
	CollectCards(ctx context.Context, max int) ([]domain.JobCard, error)
	OpenApply(ctx context.Context, card domain.JobCard) error
}

// Engine drives one open Easy Apply modal.
type Engine interface {
	Run(ctx context.Context) modal.Result
	Dismiss(ctx context.Context)
}

type Ledger interface {
	Has(jobID string) bool
	Record(ctx context.Context, rec domain.JobApplicationRecord) (bool, error)
}

// History keeps a queryable log of outcomes. Failures never affect a run.
type History interface {
	Record(ctx context.Context, o domain.ApplyOutcome) error
}

// Pacer spaces out listing visits.
type Pacer interface {
	WaitURL(ctx context.Context, raw string) error
}

type Options struct {
	MaxJobs int
}

type Orchestrator struct {
	drv     browser.Driver
	site    Site
	engine  Engine
	ledger  Ledger
	history History
	pacer   Pacer
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
}

// New wires a run. history and pacer may be nil.
func New(drv browser.Driver, site Site, engine Engine, ledger Ledger, history History, pacer Pacer, opts Options, logger *zap.Logger) *Orchestrator {
	if opts.MaxJobs <= 0 {
		opts.MaxJobs = 10
	}
	return &Orchestrator{
		drv:     drv,
		site:    site,
		engine:  engine,
		ledger:  ledger,
		history: history,
		pacer:   pacer,
		opts:    opts,
		logger:  logger.Named("apply"),
		now:     time.Now,
	}
}

// Run applies to up to MaxJobs listings matching q. It returns the outcomes
// gathered so far together with the error that stopped the run early, if
// any: a lost browser session or a cancelled ctx.
func (o *Orchestrator) Run(ctx context.Context, q linkedin.Query) ([]domain.ApplyOutcome, error) {
	if err := o.site.Login(ctx); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if err := o.site.Search(ctx, q); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	cards, err := o.site.CollectCards(ctx, o.opts.MaxJobs)
	if err != nil {
		return nil, fmt.Errorf("collect job cards: %w", err)
	}
	if len(cards) == 0 {
		o.logger.Warn("no job cards found")
	}

	outcomes := make([]domain.ApplyOutcome, 0, len(cards))
	var stop error
	for i, card := range cards {
		if err := ctx.Err(); err != nil {
			stop = err
			break
		}
		log := o.logger.With(zap.String("job_id", card.JobID), zap.Int("n", i+1), zap.Int("of", len(cards)))
		log.Info("processing job", zap.String("title", card.Title), zap.String("company", card.Company))

		out, fatal := o.applyOne(ctx, card, log)
		outcomes = append(outcomes, out)
		o.record(ctx, out, log)

		if fatal == nil && out.Status != domain.StatusApplied && out.Status != domain.StatusSkippedAlreadyApplied {
			fatal = o.checkSession(ctx)
		}
		if fatal != nil {
			log.Error("stopping run", zap.Error(fatal))
			stop = fatal
			break
		}
	}

	o.logSummary(outcomes)
	return outcomes, stop
}

// applyOne never panics; the second return is set only when the run cannot
// continue.
func (o *Orchestrator) applyOne(ctx context.Context, card domain.JobCard, log *zap.Logger) (out domain.ApplyOutcome, fatal error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while applying", zap.Any("panic", r), zap.Stack("stack"))
			out = domain.Outcome(card, domain.StatusError, fmt.Sprintf("panic: %v", r))
		}
	}()

	if o.ledger.Has(card.JobID) {
		return domain.Outcome(card, domain.StatusSkippedAlreadyApplied, "already in ledger"), nil
	}

	if o.pacer != nil {
		if err := o.pacer.WaitURL(ctx, card.URL); err != nil {
			return domain.Outcome(card, domain.StatusError, err.Error()), err
		}
	}

	if err := o.site.OpenApply(ctx, card); err != nil {
		switch {
		case errors.Is(err, linkedin.ErrNoEasyApply):
			return domain.Outcome(card, domain.StatusSkippedNoEasyApply, err.Error()), nil
		case errors.Is(err, browser.ErrSessionLost), ctx.Err() != nil:
			return domain.Outcome(card, domain.StatusError, err.Error()), err
		default:
			return domain.Outcome(card, domain.StatusError, err.Error()), nil
		}
	}

	res := o.engine.Run(ctx)
	if res.Kind == modal.Submitted {
		return o.recordSubmission(ctx, card, log), nil
	}
	if res.Reason == modal.ReasonCancelled {
		return domain.Outcome(card, domain.StatusError, res.String()), ctx.Err()
	}
	if res.Reason != modal.ReasonNoModal {
		o.engine.Dismiss(ctx)
	}
	return domain.Outcome(card, statusFor(res), res.String()), nil
}

func statusFor(r modal.Result) domain.Status {
	switch {
	case r.Kind == modal.Submitted:
		return domain.StatusApplied
	case r.Kind == modal.Blocked && r.Reason == modal.ReasonUnresolvable:
		return domain.StatusSkippedUnfillable
	case r.Kind == modal.Blocked:
		return domain.StatusSkippedBlocked
	case r.Reason == modal.ReasonNoModal:
		return domain.StatusSkippedNoEasyApply
	default:
		return domain.StatusError
	}
}

func (o *Orchestrator) recordSubmission(ctx context.Context, card domain.JobCard, log *zap.Logger) domain.ApplyOutcome {
	rec := domain.JobApplicationRecord{
		JobID:     card.JobID,
		Title:     card.Title,
		Company:   card.Company,
		AppliedAt: o.now().UTC(),
	}
	// the application is out; an interrupt must not lose its record
	added, err := o.ledger.Record(context.WithoutCancel(ctx), rec)
	switch {
	case err != nil:
		// the application went out; only the bookkeeping failed
		log.Error("ledger write failed", zap.Error(err))
		return domain.Outcome(card, domain.StatusApplied, "ledger write failed: "+err.Error())
	case !added:
		log.Warn("job already recorded by another session")
		return domain.Outcome(card, domain.StatusApplied, "already recorded by another session")
	}
	log.Info("application submitted")
	return domain.Outcome(card, domain.StatusApplied, "")
}

func (o *Orchestrator) record(ctx context.Context, out domain.ApplyOutcome, log *zap.Logger) {
	log.Info("job outcome", zap.String("status", string(out.Status)), zap.String("detail", out.Detail))
	if o.history == nil {
		return
	}
	// history survives a cancelled run
	if err := o.history.Record(context.WithoutCancel(ctx), out); err != nil {
		log.Warn("history write failed", zap.Error(err))
	}
}

// checkSession probes the driver after a failed job so a dead browser stops
// the run instead of failing every remaining job.
func (o *Orchestrator) checkSession(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := o.drv.CurrentURL(ctx); errors.Is(err, browser.ErrSessionLost) {
		return err
	}
	return nil
}

// Summarize counts outcomes per status.
func Summarize(outcomes []domain.ApplyOutcome) map[domain.Status]int {
	counts := make(map[domain.Status]int, len(domain.Statuses))
	for _, out := range outcomes {
		counts[out.Status]++
	}
	return counts
}

func (o *Orchestrator) logSummary(outcomes []domain.ApplyOutcome) {
	counts := Summarize(outcomes)
	fields := []zap.Field{zap.Int("total", len(outcomes))}
	for _, s := range domain.Statuses {
		fields = append(fields, zap.Int(string(s), counts[s]))
	}
	o.logger.Info("run summary", fields...)
}
