package apply

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"easyapply-engine/internal/browser"
	"easyapply-engine/internal/browser/htmldriver"
	"easyapply-engine/internal/domain"
	"easyapply-engine/internal/form"
	"easyapply-engine/internal/ledger"
	"easyapply-engine/internal/linkedin"
	"easyapply-engine/internal/modal"
	"easyapply-engine/internal/resume"
	"easyapply-engine/internal/store"
	"easyapply-engine/internal/util"
)

type fakeSite struct {
	cards  []domain.JobCard
	opened []string
	open   func(card domain.JobCard) error
}

func (s *fakeSite) Login(context.Context) error { return nil }

func (s *fakeSite) Search(context.Context, linkedin.Query) error { return nil }

func (s *fakeSite) CollectCards(context.Context, int) ([]domain.JobCard, error) {
	return s.cards, nil
}

func (s *fakeSite) OpenApply(_ context.Context, card domain.JobCard) error {
	s.opened = append(s.opened, card.JobID)
	if s.open != nil {
		return s.open(card)
	}
	return nil
}

type fakeEngine struct {
	results   []modal.Result
	panicOn   int
	runs      int
	dismissed int
}

func (e *fakeEngine) Run(context.Context) modal.Result {
	e.runs++
	if e.runs == e.panicOn {
		panic("stale element")
	}
	r := e.results[0]
	if len(e.results) > 1 {
		e.results = e.results[1:]
	}
	return r
}

func (e *fakeEngine) Dismiss(context.Context) { e.dismissed++ }

type memLedger struct {
	ids     map[string]bool
	records []domain.JobApplicationRecord
	err     error
}

func (l *memLedger) Has(id string) bool { return l.ids[id] }

func (l *memLedger) Record(_ context.Context, rec domain.JobApplicationRecord) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.ids[rec.JobID] {
		return false, nil
	}
	l.ids[rec.JobID] = true
	l.records = append(l.records, rec)
	return true, nil
}

func cards(ids ...string) []domain.JobCard {
	out := make([]domain.JobCard, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.JobCard{JobID: id, Title: "Job " + id, Company: "Acme", URL: "https://li.test/jobs/view/" + id + "/"})
	}
	return out
}

func liveDriver(t *testing.T) *htmldriver.Driver {
	t.Helper()
	d := htmldriver.New(map[string]string{"blank": `<html><body></body></html>`})
	require.NoError(t, d.Load("blank"))
	return d
}

func TestRunMapsEngineResults(t *testing.T) {
	site := &fakeSite{cards: cards("1", "2", "3", "4", "5", "6")}
	eng := &fakeEngine{results: []modal.Result{
		{Kind: modal.Submitted, Steps: 3},
		{Kind: modal.Blocked, Reason: modal.ReasonUnresolvable, Steps: 1},
		{Kind: modal.Blocked, Reason: modal.ReasonReviewValidation, Steps: 2},
		{Kind: modal.Aborted, Reason: modal.ReasonNoModal},
		{Kind: modal.Aborted, Reason: modal.ReasonBudget, Steps: 5},
		{Kind: modal.Aborted, Reason: modal.ReasonNoAffordance, Steps: 1},
	}}
	led := &memLedger{ids: map[string]bool{}}
	o := New(liveDriver(t), site, eng, led, nil, nil, Options{MaxJobs: 10}, zap.NewNop())
	fixed := time.Date(2026, 5, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	o.now = func() time.Time { return fixed }

	outs, err := o.Run(context.Background(), linkedin.Query{Keywords: "go"})
	require.NoError(t, err)

	var got []domain.Status
	for _, out := range outs {
		got = append(got, out.Status)
	}
	assert.Equal(t, []domain.Status{
		domain.StatusApplied,
		domain.StatusSkippedUnfillable,
		domain.StatusSkippedBlocked,
		domain.StatusSkippedNoEasyApply,
		domain.StatusError,
		domain.StatusError,
	}, got)
	assert.Equal(t, "aborted(step budget exhausted) after 5 step(s)", outs[4].Detail)

	require.Len(t, led.records, 1)
	assert.Equal(t, "1", led.records[0].JobID)
	assert.Equal(t, fixed.UTC(), led.records[0].AppliedAt)
	// every non-submitted modal except a missing one is dismissed
	assert.Equal(t, 4, eng.dismissed)
}

func TestRunSkipsLedgerJobsWithoutNavigation(t *testing.T) {
	site := &fakeSite{cards: cards("4211428768")}
	eng := &fakeEngine{results: []modal.Result{{Kind: modal.Submitted}}}
	led := &memLedger{ids: map[string]bool{"4211428768": true}}
	o := New(liveDriver(t), site, eng, led, nil, nil, Options{}, zap.NewNop())

	outs, err := o.Run(context.Background(), linkedin.Query{})
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, domain.StatusSkippedAlreadyApplied, outs[0].Status)
	assert.Empty(t, site.opened)
	assert.Zero(t, eng.runs)
}

func TestRunIsolatesPanicsAndErrors(t *testing.T) {
	site := &fakeSite{
		cards: cards("1", "2", "3", "4"),
		open: func(card domain.JobCard) error {
			switch card.JobID {
			case "2":
				return linkedin.ErrNoEasyApply
			case "3":
				return errors.New("listing removed")
			}
			return nil
		},
	}
	eng := &fakeEngine{panicOn: 1, results: []modal.Result{{Kind: modal.Submitted}}}
	led := &memLedger{ids: map[string]bool{}}
	o := New(liveDriver(t), site, eng, led, nil, nil, Options{}, zap.NewNop())

	outs, err := o.Run(context.Background(), linkedin.Query{})
	require.NoError(t, err)
	require.Len(t, outs, 4)
	assert.Equal(t, domain.StatusError, outs[0].Status)
	assert.Equal(t, "panic: stale element", outs[0].Detail)
	assert.Equal(t, domain.StatusSkippedNoEasyApply, outs[1].Status)
	assert.Equal(t, domain.StatusError, outs[2].Status)
	assert.Equal(t, domain.StatusApplied, outs[3].Status)
	assert.Equal(t, []string{"1", "2", "3", "4"}, site.opened)
}

func TestRunStopsWhenSessionIsLost(t *testing.T) {
	d := liveDriver(t)
	site := &fakeSite{cards: cards("1", "2", "3")}
	site.open = func(card domain.JobCard) error {
		if card.JobID == "1" {
			// the browser dies while the first listing fails
			require.NoError(t, d.Quit())
			return errors.New("click failed")
		}
		return nil
	}
	eng := &fakeEngine{results: []modal.Result{{Kind: modal.Submitted}}}
	o := New(d, site, eng, &memLedger{ids: map[string]bool{}}, nil, nil, Options{}, zap.NewNop())

	outs, err := o.Run(context.Background(), linkedin.Query{})
	assert.ErrorIs(t, err, browser.ErrSessionLost)
	require.Len(t, outs, 1)
	assert.Equal(t, []string{"1"}, site.opened)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	site := &fakeSite{cards: cards("1", "2")}
	site.open = func(domain.JobCard) error {
		cancel()
		return nil
	}
	eng := &fakeEngine{results: []modal.Result{{Kind: modal.Aborted, Reason: modal.ReasonCancelled}}}
	o := New(liveDriver(t), site, eng, &memLedger{ids: map[string]bool{}}, nil, nil, Options{}, zap.NewNop())

	outs, err := o.Run(ctx, linkedin.Query{})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, outs, 1)
	assert.Equal(t, domain.StatusError, outs[0].Status)
	assert.Zero(t, eng.dismissed)
}

func TestRunRecordsSubmissionWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	path := filepath.Join(t.TempDir(), "applied_jobs.json")
	site := &fakeSite{cards: cards("42", "43")}
	site.open = func(domain.JobCard) error {
		cancel()
		return nil
	}
	eng := &fakeEngine{results: []modal.Result{{Kind: modal.Submitted}}}
	o := New(liveDriver(t), site, eng, ledger.Open(path, zap.NewNop()), nil, nil, Options{}, zap.NewNop())

	outs, err := o.Run(ctx, linkedin.Query{})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, outs, 1)
	assert.Equal(t, domain.StatusApplied, outs[0].Status)
	assert.Empty(t, outs[0].Detail)

	assert.True(t, ledger.Open(path, zap.NewNop()).Has("42"))
	assert.False(t, ledger.Open(path, zap.NewNop()).Has("43"))
}

func TestRunKeepsAppliedWhenLedgerWriteFails(t *testing.T) {
	site := &fakeSite{cards: cards("1")}
	eng := &fakeEngine{results: []modal.Result{{Kind: modal.Submitted}}}
	o := New(liveDriver(t), site, eng, &memLedger{ids: map[string]bool{}, err: errors.New("disk full")}, nil, nil, Options{}, zap.NewNop())

	outs, err := o.Run(context.Background(), linkedin.Query{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApplied, outs[0].Status)
	assert.Contains(t, outs[0].Detail, "disk full")
}

func TestSummarize(t *testing.T) {
	counts := Summarize([]domain.ApplyOutcome{
		{Status: domain.StatusApplied},
		{Status: domain.StatusApplied},
		{Status: domain.StatusError},
	})
	assert.Equal(t, 2, counts[domain.StatusApplied])
	assert.Equal(t, 1, counts[domain.StatusError])
	assert.Zero(t, counts[domain.StatusSkippedBlocked])
}

const (
	liBase = "https://li.test"

	searchPage = `<html><body><ul>
<li data-occludable-job-id="4211428768"><div class="job-card-container">
  <a class="job-card-container__link" href="/jobs/view/4211428768/"><span><strong>Backend Engineer</strong></span></a>
  <div class="artdeco-entity-lockup__subtitle"><span>Initech</span></div>
</div></li>
<li data-occludable-job-id="4300000001"><div class="job-card-container">
  <a class="job-card-container__link" href="/jobs/view/4300000001/"><span><strong>Go Developer</strong></span></a>
  <div class="artdeco-entity-lockup__subtitle"><span>Acme</span></div>
</div></li>
</ul></body></html>`

	listingPage = `<html><body><h1>Go Developer</h1>
<button id="jobs-apply-button-id" data-goto="modal">Easy Apply</button></body></html>`

	modalPage = `<html><body><div class="jobs-easy-apply-modal" role="dialog">
  <div class="fb-dash-form-element">
    <label for="phone">Mobile phone number</label>
    <input id="phone" type="text" required>
  </div>
  <button aria-label="Submit application" data-goto="sent">Submit application</button>
</div></body></html>`
)

func TestRunEndToEndOnSnapshots(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()
	dir := t.TempDir()

	ledgerPath := filepath.Join(dir, "applied_jobs.json")
	seed := ledger.Open(ledgerPath, logger)
	_, err := seed.Record(ctx, domain.JobApplicationRecord{JobID: "4211428768", Title: "Backend Engineer", Company: "Initech"})
	require.NoError(t, err)

	d := htmldriver.New(nil)
	site := linkedin.New(d, linkedin.Config{BaseURL: liBase}, nil, logger)
	q := linkedin.Query{Keywords: "go developer", Location: "Remote"}
	d.AddPage(liBase+"/login", `<html><body><main>feed</main></body></html>`)
	d.AddPage(site.SearchURL(q), searchPage)
	d.AddPage(liBase+"/jobs/view/4300000001/", listingPage)
	d.AddPage("modal", modalPage)
	d.AddPage("sent", `<html><body><h2>Application sent</h2></body></html>`)

	classifier := form.NewClassifier(d, logger)
	classifier.ProbeDelay = 0
	resolver := form.NewResolver(resume.FromMap(map[string]any{"phone": "5551234"}), nil, logger)
	engine := modal.New(d, classifier, resolver, form.NewFiller(d, logger), modal.NewArtifacts(dir, logger),
		modal.Options{AffordanceTimeout: 20 * time.Millisecond, PollInterval: 5 * time.Millisecond}, logger)

	db, err := store.Open(filepath.Join(dir, "easyapply.db"))
	require.NoError(t, err)
	defer db.Close()
	history := store.NewRecorder(db)

	led := ledger.Open(ledgerPath, logger)
	o := New(d, site, engine, led, history, util.NewHostLimiter(0, 1), Options{MaxJobs: 5}, logger)
	outs, err := o.Run(ctx, q)
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.Equal(t, domain.StatusSkippedAlreadyApplied, outs[0].Status)
	assert.Equal(t, domain.StatusApplied, outs[1].Status)

	assert.Equal(t, []string{liBase + "/login", site.SearchURL(q), liBase + "/jobs/view/4300000001/"}, d.Navigations())
	assert.True(t, ledger.Open(ledgerPath, logger).Has("4300000001"))

	rows, err := store.ListOutcomes(ctx, db.Pool, store.ListOutcomesOpts{RunID: history.RunID})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
