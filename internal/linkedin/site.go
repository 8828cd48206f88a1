// Package linkedin knows the LinkedIn pages around the Easy Apply modal:
// login, job search and listing pages.
package linkedin

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"easyapply-engine/internal/browser"
	"easyapply-engine/internal/domain"
)

const (
	DefaultBaseURL = "https://www.linkedin.com"

	applyButton   = "button#jobs-apply-button-id"
	usernameInput = "#username"
	passwordInput = "#password"
	loginSubmit   = "button[type=submit]"
	pinInput      = "input[name=pin]"
	pinSubmit     = "#email-pin-submit-button, button[type=submit]"

	scrollScript = "() => window.scrollTo(0, document.body.scrollHeight)"
	clickScript  = "() => this.click()"
)

// ErrNoEasyApply means the listing has no visible Easy Apply button.
var ErrNoEasyApply = errors.New("no visible easy apply button")

// PINSource fetches the verification code LinkedIn emails during a login
// challenge.
type PINSource interface {
	LatestPIN(ctx context.Context, since time.Time) (string, error)
}

type Query struct {
	Keywords string
	Location string
	GeoID    string
}

type Config struct {
	BaseURL     string
	Email       string
	Password    string
	CardRetries int
	Settle      time.Duration // pause after navigations and clicks
	LoginWait   time.Duration
	FieldWait   time.Duration
}

type Site struct {
	drv    browser.Driver
	cfg    Config
	pins   PINSource
	logger *zap.Logger
}

// New returns the site layer. pins may be nil when no mailbox is configured.
func New(drv browser.Driver, cfg Config, pins PINSource, logger *zap.Logger) *Site {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.CardRetries <= 0 {
		cfg.CardRetries = 3
	}
	return &Site{drv: drv, cfg: cfg, pins: pins, logger: logger.Named("linkedin")}
}

func loggedIn(u string) bool {
	return strings.Contains(u, "/feed") || strings.Contains(u, "/jobs")
}

func onChallenge(u string) bool {
	return strings.Contains(u, "/checkpoint/")
}

// Login signs in unless the browser profile already has a session. An email
// PIN challenge is answered from the PINSource.
func (s *Site) Login(ctx context.Context) error {
	started := time.Now()
	if err := s.drv.Navigate(ctx, s.cfg.BaseURL+"/login"); err != nil {
		return fmt.Errorf("open login: %w", err)
	}
	_ = browser.Pause(ctx, s.cfg.Settle)

	u, err := s.drv.CurrentURL(ctx)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if loggedIn(u) {
		s.logger.Info("already logged in")
		return nil
	}

	user, err := s.drv.WaitFor(ctx, browser.CSS(usernameInput), s.cfg.FieldWait)
	if err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			s.logger.Warn("login fields not found, assuming an existing session")
			return nil
		}
		return fmt.Errorf("login form: %w", err)
	}
	if s.cfg.Email == "" || s.cfg.Password == "" {
		return errors.New("login required but linkedin email or password is empty")
	}
	s.logger.Info("logging in", zap.String("email", s.cfg.Email))
	if err := s.drv.Type(ctx, user, s.cfg.Email); err != nil {
		return fmt.Errorf("type email: %w", err)
	}
	pw, err := s.drv.FindOne(ctx, nil, browser.CSS(passwordInput))
	if err != nil {
		return fmt.Errorf("password field: %w", err)
	}
	if err := s.drv.Type(ctx, pw, s.cfg.Password); err != nil {
		return fmt.Errorf("type password: %w", err)
	}
	btn, err := s.drv.FindOne(ctx, nil, browser.CSS(loginSubmit))
	if err != nil {
		return fmt.Errorf("login button: %w", err)
	}
	if err := s.drv.Click(ctx, btn); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}

	u, err = s.waitURL(ctx, func(u string) bool { return loggedIn(u) || onChallenge(u) })
	if err != nil {
		return err
	}
	if onChallenge(u) {
		if err := s.answerChallenge(ctx, started); err != nil {
			return err
		}
		if u, err = s.waitURL(ctx, loggedIn); err != nil {
			return err
		}
	}
	if loggedIn(u) {
		s.logger.Info("login successful")
	} else {
		s.logger.Warn("login may have failed", zap.String("url", u))
	}
	return nil
}

// waitURL polls the current URL until ok accepts it or LoginWait passes. It
// returns the last URL seen; a timeout is not an error.
func (s *Site) waitURL(ctx context.Context, ok func(string) bool) (string, error) {
	var last string
	err := browser.Poll(ctx, s.cfg.LoginWait, time.Second, func() (bool, error) {
		u, err := s.drv.CurrentURL(ctx)
		if err != nil {
			return false, err
		}
		last = u
		return ok(u), nil
	})
	if err != nil && !errors.Is(err, browser.ErrTimeout) {
		return last, fmt.Errorf("login: %w", err)
	}
	return last, nil
}

func (s *Site) answerChallenge(ctx context.Context, since time.Time) error {
	in, err := s.drv.WaitFor(ctx, browser.CSS(pinInput), s.cfg.FieldWait)
	if err != nil {
		return fmt.Errorf("login challenge is not an email pin: %w", err)
	}
	if s.pins == nil {
		return errors.New("login asks for an email verification pin but mail is not configured")
	}
	s.logger.Info("waiting for verification pin email")
	pin, err := s.pins.LatestPIN(ctx, since)
	if err != nil {
		return fmt.Errorf("verification pin: %w", err)
	}
	if err := s.drv.Type(ctx, in, pin); err != nil {
		return fmt.Errorf("type pin: %w", err)
	}
	btn, err := s.drv.FindOne(ctx, nil, browser.CSS(pinSubmit))
	if err != nil {
		return fmt.Errorf("pin submit: %w", err)
	}
	if err := s.drv.Click(ctx, btn); err != nil {
		return fmt.Errorf("submit pin: %w", err)
	}
	return nil
}

// SearchURL builds the Easy Apply filtered search URL.
func (s *Site) SearchURL(q Query) string {
	v := url.Values{}
	v.Set("keywords", q.Keywords)
	v.Set("location", q.Location)
	v.Set("f_AL", "true")
	if q.GeoID != "" {
		v.Set("geoId", q.GeoID)
	}
	return s.cfg.BaseURL + "/jobs/search/?" + v.Encode()
}

func (s *Site) Search(ctx context.Context, q Query) error {
	s.logger.Info("searching jobs", zap.String("keywords", q.Keywords), zap.String("location", q.Location))
	if err := s.drv.Navigate(ctx, s.SearchURL(q)); err != nil {
		return fmt.Errorf("open search: %w", err)
	}
	return browser.Pause(ctx, s.cfg.Settle)
}

// CollectCards scrolls the result list and parses up to max cards, retrying
// while the list is still loading.
func (s *Site) CollectCards(ctx context.Context, max int) ([]domain.JobCard, error) {
	if _, err := s.drv.Exec(ctx, nil, scrollScript); err != nil {
		s.logger.Debug("scroll failed", zap.Error(err))
	}
	_ = browser.Pause(ctx, s.cfg.Settle)

	var cards []domain.JobCard
	for attempt := 1; attempt <= s.cfg.CardRetries; attempt++ {
		src, err := s.drv.PageSource(ctx)
		if err != nil {
			return nil, fmt.Errorf("read search results: %w", err)
		}
		cards, err = ParseJobCards(src, s.cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse search results: %w", err)
		}
		if len(cards) > 0 {
			break
		}
		s.logger.Info("no job cards yet, retrying", zap.Int("attempt", attempt))
		if err := browser.Pause(ctx, s.cfg.Settle); err != nil {
			return nil, err
		}
	}
	if len(cards) > max && max > 0 {
		cards = cards[:max]
	}
	for i, c := range cards {
		s.logger.Info("job card", zap.Int("n", i+1), zap.String("job_id", c.JobID), zap.String("title", c.Title),
			zap.String("company", c.Company), zap.String("location", c.Location))
	}
	return cards, nil
}

// OpenApply opens a listing and clicks its Easy Apply button, falling back to
// a script click when the button is covered.
func (s *Site) OpenApply(ctx context.Context, card domain.JobCard) error {
	if err := s.drv.Navigate(ctx, card.URL); err != nil {
		return fmt.Errorf("open listing: %w", err)
	}
	_ = browser.Pause(ctx, s.cfg.Settle)

	// several buttons can share this id; only one is visible
	buttons, err := s.drv.FindAll(ctx, nil, browser.CSS(applyButton))
	if err != nil {
		return fmt.Errorf("find apply button: %w", err)
	}
	var btn browser.Handle
	for _, b := range buttons {
		if ok, _ := s.drv.Visible(ctx, b); ok {
			btn = b
			break
		}
	}
	if btn == nil {
		return ErrNoEasyApply
	}

	if err := s.drv.Click(ctx, btn); err != nil {
		s.logger.Warn("apply click failed, trying script click", zap.Error(err))
		if _, err := s.drv.Exec(ctx, btn, clickScript); err != nil {
			return fmt.Errorf("click apply: %w", err)
		}
	}
	return nil
}
