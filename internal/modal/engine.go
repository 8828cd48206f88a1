package modal

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"easyapply-engine/internal/browser"
	"easyapply-engine/internal/form"
)

const (
	ModalSelector = ".jobs-easy-apply-modal"

	followCheckbox = "input#follow-company-checkbox"
	followLabel    = "label[for=follow-company-checkbox]"
	dismissButton  = "button[aria-label='Dismiss']"
	discardButton  = "button[data-control-name='discard_application_confirm_btn'], button[data-test-dialog-secondary-btn]"
)

// reviewErrorSelectors mark fields the form rejected after review.
var reviewErrorSelectors = []string{
	".artdeco-inline-feedback--error",
	"[data-test-form-element-error-messages]",
}

type Options struct {
	MaxSteps          int
	FillRetries       int
	ModalTimeout      time.Duration
	AffordanceTimeout time.Duration
	PollInterval      time.Duration
	StepDelay         time.Duration // lets a step render before it is inspected
}

func (o Options) withDefaults() Options {
	if o.MaxSteps <= 0 {
		o.MaxSteps = 5
	}
	if o.FillRetries < 0 {
		o.FillRetries = 0
	}
	if o.ModalTimeout <= 0 {
		o.ModalTimeout = 10 * time.Second
	}
	if o.AffordanceTimeout <= 0 {
		o.AffordanceTimeout = 5 * time.Second
	}
	return o
}

// Engine runs the Easy Apply modal state machine for one job at a time. It
// is the only writer to form controls while it runs.
type Engine struct {
	drv         browser.Driver
	classifier  *form.Classifier
	resolver    *form.Resolver
	filler      *form.Filler
	affordances []Affordance
	artifacts   *Artifacts
	opts        Options
	logger      *zap.Logger
}

func New(drv browser.Driver, c *form.Classifier, r *form.Resolver, f *form.Filler, artifacts *Artifacts, opts Options, logger *zap.Logger) *Engine {
	return &Engine{
		drv:         drv,
		classifier:  c,
		resolver:    r,
		filler:      f,
		affordances: DefaultAffordances(),
		artifacts:   artifacts,
		opts:        opts.withDefaults(),
		logger:      logger.Named("modal"),
	}
}

// WithAffordances replaces the navigation affordances, highest priority first.
func (e *Engine) WithAffordances(a []Affordance) *Engine {
	e.affordances = a
	return e
}

// Run drives the open modal until it is submitted, blocked or aborted. It
// never clicks a submit control twice.
func (e *Engine) Run(ctx context.Context) Result {
	if _, err := e.drv.WaitFor(ctx, browser.CSS(ModalSelector), e.opts.ModalTimeout); err != nil {
		if ctx.Err() != nil {
			return Result{Kind: Aborted, Reason: ReasonCancelled}
		}
		e.logger.Warn("easy apply modal did not open", zap.Error(err))
		return Result{Kind: Aborted, Reason: ReasonNoModal}
	}

	for step := 1; step <= e.opts.MaxSteps; step++ {
		if ctx.Err() != nil {
			return Result{Kind: Aborted, Reason: ReasonCancelled, Steps: step - 1}
		}
		r := e.step(ctx, step)
		r.Steps = step
		if r.Terminal() {
			if r.Kind == Aborted && r.Reason != ReasonCancelled {
				e.artifacts.Save(ctx, e.drv)
			}
			e.logger.Info("modal finished", zap.Stringer("result", r))
			return r
		}
	}

	r := Result{Kind: Aborted, Reason: ReasonBudget, Steps: e.opts.MaxSteps}
	e.logger.Warn("modal finished", zap.Stringer("result", r))
	e.artifacts.Save(ctx, e.drv)
	return r
}

// step fills the current page and clicks the best navigation affordance.
func (e *Engine) step(ctx context.Context, n int) Result {
	log := e.logger.With(zap.Int("step", n))
	if err := browser.Pause(ctx, e.opts.StepDelay); err != nil {
		return Result{Kind: Aborted, Reason: ReasonCancelled}
	}

	if _, err := e.modal(ctx); err != nil {
		log.Warn("modal disappeared", zap.Error(err))
		return Result{Kind: Aborted, Reason: ReasonModalClosed}
	}
	e.classifier.ResetConstraints()

	if !e.completeFields(ctx, log) {
		return Result{Kind: Blocked, Reason: ReasonUnresolvable}
	}

	aff, h, err := e.nextAffordance(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Kind: Aborted, Reason: ReasonCancelled}
		}
		log.Warn("no navigation affordance", zap.Error(err))
		return Result{Kind: Aborted, Reason: ReasonNoAffordance}
	}

	if aff.Action == Submit {
		e.unfollowCompany(ctx)
	}
	if err := e.drv.Click(ctx, h); err != nil {
		log.Warn("navigation click failed", zap.String("affordance", aff.Name), zap.Error(err))
		return Result{Kind: Aborted, Reason: ReasonNoAffordance}
	}
	log.Info("clicked", zap.String("affordance", aff.Name))

	switch aff.Action {
	case Submit:
		return Result{Kind: Submitted}
	case Review:
		if err := browser.Pause(ctx, e.opts.StepDelay); err != nil {
			return Result{Kind: Aborted, Reason: ReasonCancelled}
		}
		if msg := e.reviewErrors(ctx); msg != "" {
			log.Warn("form rejected at review", zap.String("error", msg))
			return Result{Kind: Blocked, Reason: ReasonReviewValidation}
		}
	}
	return Result{Kind: Continue}
}

func (e *Engine) modal(ctx context.Context) (browser.Handle, error) {
	return e.drv.FindOne(ctx, nil, browser.CSS(ModalSelector))
}

// completeFields resolves and fills every unfilled required field, then
// re-checks. Fields still unfilled get FillRetries more rounds with the
// refreshed validation hint and a regenerated answer.
func (e *Engine) completeFields(ctx context.Context, log *zap.Logger) bool {
	pending, err := e.pending(ctx)
	if err != nil {
		log.Warn("field discovery failed", zap.Error(err))
		return false
	}
	if len(pending) == 0 {
		return true
	}
	log.Info("required fields need answers", zap.Int("count", len(pending)))

	for round := 0; round <= e.opts.FillRetries; round++ {
		for _, fd := range pending {
			var (
				a   form.Answer
				err error
			)
			if round == 0 {
				a, err = e.resolver.Resolve(ctx, fd)
			} else {
				a, err = e.resolver.Regenerate(ctx, fd)
			}
			if err != nil {
				if errors.Is(err, form.ErrResolutionMismatch) {
					log.Warn("no offered option matches", zap.String("field", fd.Label), zap.Error(err))
				} else {
					log.Warn("resolve failed", zap.String("field", fd.Label), zap.Error(err))
				}
				continue
			}
			e.filler.Fill(ctx, fd, a)
		}

		pending, err = e.pending(ctx)
		if err != nil {
			log.Warn("field discovery failed", zap.Error(err))
			return false
		}
		if len(pending) == 0 {
			return true
		}
		for _, fd := range pending {
			log.Info("field still unfilled",
				zap.Int("round", round),
				zap.String("field", fd.ID),
				zap.String("label", fd.Label),
				zap.String("hint", fd.ConstraintHint))
		}
	}
	return false
}

func (e *Engine) pending(ctx context.Context) ([]form.FieldDescriptor, error) {
	m, err := e.modal(ctx)
	if err != nil {
		return nil, err
	}
	fields, err := e.classifier.Discover(ctx, m)
	if err != nil {
		return nil, err
	}
	var out []form.FieldDescriptor
	for _, fd := range fields {
		if !fd.Filled {
			out = append(out, fd)
		}
	}
	return out, nil
}

// nextAffordance polls until one affordance is available. Earlier entries
// always win over later ones within the same poll.
func (e *Engine) nextAffordance(ctx context.Context) (Affordance, browser.Handle, error) {
	var (
		found Affordance
		h     browser.Handle
	)
	err := browser.Poll(ctx, e.opts.AffordanceTimeout, e.opts.PollInterval, func() (bool, error) {
		m, err := e.modal(ctx)
		if err != nil {
			return false, err
		}
		for _, a := range e.affordances {
			got, err := a.Find(ctx, e.drv, m)
			if err != nil {
				return false, err
			}
			if got != nil {
				found, h = a, got
				return true, nil
			}
		}
		return false, nil
	})
	return found, h, err
}

func (e *Engine) reviewErrors(ctx context.Context) string {
	m, err := e.modal(ctx)
	if err != nil {
		return ""
	}
	for _, sel := range reviewErrorSelectors {
		hs, err := e.drv.FindAll(ctx, m, browser.CSS(sel))
		if err != nil {
			continue
		}
		for _, h := range hs {
			if ok, _ := e.drv.Visible(ctx, h); !ok {
				continue
			}
			txt, _ := e.drv.Text(ctx, h)
			if txt == "" {
				txt = sel
			}
			return txt
		}
	}
	return ""
}

// unfollowCompany clears the "follow company" opt-in when it is checked.
func (e *Engine) unfollowCompany(ctx context.Context) {
	box, err := e.drv.FindOne(ctx, nil, browser.CSS(followCheckbox))
	if err != nil {
		return
	}
	if checked, _ := e.drv.Attribute(ctx, box, "checked"); checked == "" {
		return
	}
	target := box
	if l, err := e.drv.FindOne(ctx, nil, browser.CSS(followLabel)); err == nil {
		target = l
	}
	if err := e.drv.Click(ctx, target); err != nil {
		e.logger.Debug("could not unfollow company", zap.Error(err))
		return
	}
	e.logger.Info("unfollowed company")
}

// Dismiss closes the modal and discards the draft so the next listing starts
// from a clean page. Best-effort.
func (e *Engine) Dismiss(ctx context.Context) {
	btn, err := e.drv.FindOne(ctx, nil, browser.CSS(dismissButton))
	if err != nil {
		return
	}
	if err := e.drv.Click(ctx, btn); err != nil {
		e.logger.Debug("dismiss failed", zap.Error(err))
		return
	}
	_ = browser.Pause(ctx, e.opts.StepDelay)
	if discard, err := e.drv.FindOne(ctx, nil, browser.CSS(discardButton)); err == nil {
		if err := e.drv.Click(ctx, discard); err != nil {
			e.logger.Debug("discard failed", zap.Error(err))
		}
	}
}
