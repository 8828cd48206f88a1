package modal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"easyapply-engine/internal/browser/htmldriver"
	"easyapply-engine/internal/form"
	"easyapply-engine/internal/resume"
)

const (
	contactStep = `<html><body><div class="jobs-easy-apply-modal" role="dialog">
  <div class="fb-dash-form-element">
    <label for="phone">Mobile phone number</label>
    <input id="phone" type="text" required>
  </div>
  <footer>
    <button aria-label="Submit application" disabled>Submit application</button>
    <button aria-label="Continue to next step" data-goto="questions">Next</button>
  </footer>
</div></body></html>`

	questionsStep = `<html><body><div class="jobs-easy-apply-modal" role="dialog">
  <fieldset>
    <legend>Are you willing to relocate?</legend>
    <input type="radio" id="r-yes" name="relocate" value="Yes" required><label for="r-yes">Yes</label>
    <input type="radio" id="r-no" name="relocate" value="No" required><label for="r-no">No</label>
  </fieldset>
  <button aria-label="Review your application" data-goto="review">Review</button>
</div></body></html>`

	reviewStep = `<html><body><div class="jobs-easy-apply-modal" role="dialog">
  <h3>Review your application</h3>
  <input type="checkbox" id="follow-company-checkbox" checked>
  <label for="follow-company-checkbox">Follow Acme</label>
  <button aria-label="Submit application" data-goto="sent">Submit application</button>
</div></body></html>`

	reviewWithError = `<html><body><div class="jobs-easy-apply-modal" role="dialog">
  <div class="artdeco-inline-feedback artdeco-inline-feedback--error">Please enter a valid answer</div>
  <button aria-label="Submit application" data-goto="sent">Submit application</button>
</div></body></html>`

	sentPage = `<html><body><h2>Your application was sent to Acme!</h2></body></html>`
)

type scriptedGen struct {
	replies []string
	calls   int
}

func (g *scriptedGen) Generate(_ context.Context, _ string) (string, error) {
	g.calls++
	if len(g.replies) == 0 {
		return "", nil
	}
	r := g.replies[0]
	if len(g.replies) > 1 {
		g.replies = g.replies[1:]
	}
	return r, nil
}

func newEngine(t *testing.T, d *htmldriver.Driver, rc resume.Context, gen *scriptedGen, opts Options) (*Engine, string) {
	t.Helper()
	logger := zap.NewNop()
	c := form.NewClassifier(d, logger)
	c.ProbeDelay = 0
	dir := t.TempDir()
	if opts.AffordanceTimeout == 0 {
		opts.AffordanceTimeout = 20 * time.Millisecond
	}
	opts.PollInterval = 5 * time.Millisecond
	e := New(d, c, form.NewResolver(rc, gen, logger), form.NewFiller(d, logger), NewArtifacts(dir, logger), opts, logger)
	return e, dir
}

func start(t *testing.T, pages map[string]string, first string) *htmldriver.Driver {
	t.Helper()
	d := htmldriver.New(pages)
	require.NoError(t, d.Load(first))
	return d
}

func submitClicks(d *htmldriver.Driver) int {
	n := 0
	for _, c := range d.Clicks() {
		if strings.Contains(c, "Submit application") {
			n++
		}
	}
	return n
}

func TestRunSubmitsMultiStepApplication(t *testing.T) {
	d := start(t, map[string]string{
		"contact":   contactStep,
		"questions": questionsStep,
		"review":    reviewStep,
		"sent":      sentPage,
	}, "contact")
	gen := &scriptedGen{replies: []string{"Yes, happy to"}}
	e, _ := newEngine(t, d, resume.FromMap(map[string]any{"phone": "5551234"}), gen, Options{MaxSteps: 5})

	r := e.Run(context.Background())
	assert.Equal(t, Result{Kind: Submitted, Steps: 3}, r)
	assert.Equal(t, 1, gen.calls, "phone comes from the resume")
	assert.Equal(t, []string{
		"button[Continue to next step]",
		"label",
		"button[Review your application]",
		"label",
		"button[Submit application]",
	}, d.Clicks())
	assert.Equal(t, 1, submitClicks(d))
	assert.Empty(t, d.Navigations())
}

func TestRunBlockedAtReview(t *testing.T) {
	d := start(t, map[string]string{
		"questions": strings.Replace(questionsStep, `data-goto="review"`, `data-goto="bad"`, 1),
		"bad":       reviewWithError,
		"sent":      sentPage,
	}, "questions")
	e, _ := newEngine(t, d, resume.Context{}, &scriptedGen{replies: []string{"No"}}, Options{MaxSteps: 5})

	r := e.Run(context.Background())
	assert.Equal(t, Blocked, r.Kind)
	assert.Equal(t, ReasonReviewValidation, r.Reason)
	assert.Equal(t, 0, submitClicks(d))
}

func TestRunStopsAtStepBudget(t *testing.T) {
	loop := `<html><body><div class="jobs-easy-apply-modal">
  <button aria-label="Continue to next step" data-goto="loop">Next</button>
</div></body></html>`
	d := start(t, map[string]string{"loop": loop}, "loop")
	e, dir := newEngine(t, d, resume.Context{}, &scriptedGen{}, Options{MaxSteps: 3})

	r := e.Run(context.Background())
	assert.Equal(t, Result{Kind: Aborted, Reason: ReasonBudget, Steps: 3}, r)
	assert.Len(t, d.Clicks(), 3)

	page, err := os.ReadFile(filepath.Join(dir, PageFile))
	require.NoError(t, err)
	assert.Contains(t, string(page), "Continue to next step")
	_, err = os.Stat(filepath.Join(dir, ScreenshotFile))
	assert.True(t, os.IsNotExist(err), "offline driver has no screenshots")
}

func TestRunNoModal(t *testing.T) {
	d := start(t, map[string]string{"job": `<html><body><button id="jobs-apply-button-id">Easy Apply</button></body></html>`}, "job")
	e, _ := newEngine(t, d, resume.Context{}, &scriptedGen{}, Options{})

	r := e.Run(context.Background())
	assert.Equal(t, Aborted, r.Kind)
	assert.Equal(t, ReasonNoModal, r.Reason)
	assert.Equal(t, 0, r.Steps)
}

func TestRunBlockedOnUnresolvableField(t *testing.T) {
	doc := `<html><body><div class="jobs-easy-apply-modal">
  <label for="deg">Highest degree</label>
  <select id="deg" required><option value="">Select an option</option><option value="b">Bachelor</option><option value="m">Master</option></select>
  <button aria-label="Submit application" data-goto="sent">Submit application</button>
</div></body></html>`
	d := start(t, map[string]string{"step": doc, "sent": sentPage}, "step")
	gen := &scriptedGen{replies: []string{"Doctorate"}}
	e, _ := newEngine(t, d, resume.Context{}, gen, Options{MaxSteps: 5, FillRetries: 1})

	r := e.Run(context.Background())
	assert.Equal(t, Result{Kind: Blocked, Reason: ReasonUnresolvable, Steps: 1}, r)
	assert.Equal(t, 2, gen.calls, "one retry round")
	assert.Equal(t, 0, submitClicks(d))
}

func TestRunRetryRoundRecovers(t *testing.T) {
	doc := `<html><body><div class="jobs-easy-apply-modal">
  <label for="deg">Highest degree</label>
  <select id="deg" required><option value="">Select an option</option><option value="b">Bachelor</option><option value="m">Master</option></select>
  <button aria-label="Submit application" data-goto="sent">Submit application</button>
</div></body></html>`
	d := start(t, map[string]string{"step": doc, "sent": sentPage}, "step")
	gen := &scriptedGen{replies: []string{"Doctorate", "master"}}
	e, _ := newEngine(t, d, resume.Context{}, gen, Options{MaxSteps: 5, FillRetries: 1})

	r := e.Run(context.Background())
	assert.Equal(t, Result{Kind: Submitted, Steps: 1}, r)
	assert.Equal(t, 2, gen.calls)
}

func TestRunNoAffordance(t *testing.T) {
	doc := `<html><body><div class="jobs-easy-apply-modal">
  <input id="city" aria-label="City" value="Berlin" required>
  <button aria-label="Dismiss">x</button>
</div></body></html>`
	d := start(t, map[string]string{"step": doc}, "step")
	gen := &scriptedGen{}
	e, dir := newEngine(t, d, resume.Context{}, gen, Options{MaxSteps: 5})

	r := e.Run(context.Background())
	assert.Equal(t, Result{Kind: Aborted, Reason: ReasonNoAffordance, Steps: 1}, r)
	assert.Equal(t, 0, gen.calls, "filled fields are never answered")
	assert.FileExists(t, filepath.Join(dir, PageFile))
}

func TestRunGenericSubmitFallback(t *testing.T) {
	doc := `<html><body><div class="jobs-easy-apply-modal">
  <button class="artdeco-button" data-goto="sent"><span>Submit</span></button>
</div></body></html>`
	d := start(t, map[string]string{"step": doc, "sent": sentPage}, "step")
	e, _ := newEngine(t, d, resume.Context{}, &scriptedGen{}, Options{MaxSteps: 5})

	r := e.Run(context.Background())
	assert.Equal(t, Result{Kind: Submitted, Steps: 1}, r)
}

func TestRunCancelled(t *testing.T) {
	d := start(t, map[string]string{"step": contactStep}, "step")
	e, _ := newEngine(t, d, resume.Context{}, &scriptedGen{}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := e.Run(ctx)
	assert.Equal(t, Aborted, r.Kind)
	assert.Equal(t, ReasonCancelled, r.Reason)
	assert.Empty(t, d.Clicks())
}

func TestDismissDiscardsDraft(t *testing.T) {
	d := start(t, map[string]string{
		"step": `<html><body><div class="jobs-easy-apply-modal">
  <button aria-label="Dismiss" data-goto="confirm">x</button></div></body></html>`,
		"confirm": `<html><body><div role="alertdialog">
  <button data-control-name="discard_application_confirm_btn" data-goto="job">Discard</button></div></body></html>`,
		"job": `<html><body></body></html>`,
	}, "step")
	e, _ := newEngine(t, d, resume.Context{}, &scriptedGen{}, Options{})

	e.Dismiss(context.Background())
	assert.Equal(t, []string{"button[Dismiss]", "button"}, d.Clicks())
}
