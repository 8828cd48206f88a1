// Package roddriver implements browser.Driver on a live Chrome session via go-rod.
package roddriver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"easyapply-engine/internal/browser"
)

type Config struct {
	Headless    bool
	Bin         string // empty = let the launcher find or download Chrome
	UserDataDir string // persistent profile keeps the LinkedIn session between runs
	ControlURL  string // attach to an already running Chrome instead of launching
	NavTimeout  time.Duration
}

type Driver struct {
	cfg      Config
	logger   *zap.Logger
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

// Launch starts (or attaches to) Chrome and opens one page. The caller must
// call Quit on every exit path.
func Launch(ctx context.Context, cfg Config, logger *zap.Logger) (*Driver, error) {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	d := &Driver{cfg: cfg, logger: logger.Named("rod")}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(cfg.Headless).
			Set("disable-notifications").
			Set("disable-infobars").
			Set("disable-extensions").
			Set("start-maximized")
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		if cfg.UserDataDir != "" {
			l = l.UserDataDir(cfg.UserDataDir)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		d.launcher = l
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		d.kill()
		return nil, fmt.Errorf("connect chrome: %w", err)
	}
	d.browser = b

	p, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = d.Quit()
		return nil, fmt.Errorf("open page: %w", err)
	}
	d.page = p
	d.logger.Info("browser session ready", zap.Bool("headless", cfg.Headless), zap.Bool("attached", cfg.ControlURL != ""))
	return d, nil
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	p := d.page.Context(ctx).Timeout(d.cfg.NavTimeout)
	if err := p.Navigate(url); err != nil {
		return d.wrap(fmt.Errorf("navigate %s: %w", url, err))
	}
	if err := p.WaitLoad(); err != nil {
		return d.wrap(fmt.Errorf("wait load %s: %w", url, err))
	}
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	info, err := d.page.Context(ctx).Info()
	if err != nil {
		return "", d.wrap(err)
	}
	return info.URL, nil
}

func (d *Driver) FindOne(ctx context.Context, within browser.Handle, sel browser.Selector) (browser.Handle, error) {
	all, err := d.FindAll(ctx, within, sel)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%s: %w", sel, browser.ErrNotFound)
	}
	return all[0], nil
}

func (d *Driver) FindAll(ctx context.Context, within browser.Handle, sel browser.Selector) ([]browser.Handle, error) {
	var (
		els rod.Elements
		err error
	)
	if within == nil {
		if sel.By != browser.ByCSS {
			return nil, fmt.Errorf("roddriver: %s needs a starting element", sel)
		}
		els, err = d.page.Context(ctx).Elements(sel.Value)
	} else {
		el, cerr := element(within)
		if cerr != nil {
			return nil, cerr
		}
		el = el.Context(ctx).Sleeper(rod.NotFoundSleeper)
		switch sel.By {
		case browser.ByCSS:
			els, err = el.Elements(sel.Value)
		case browser.ByParent:
			var p *rod.Element
			p, err = el.Parent()
			if p != nil {
				els = rod.Elements{p}
			}
		case browser.ByPrevSibling:
			var p *rod.Element
			p, err = el.Previous()
			if p != nil {
				els = rod.Elements{p}
			}
		case browser.ByClosest:
			els, err = closest(el, sel.Value)
		}
	}
	if err != nil {
		var nf *rod.ElementNotFoundError
		if errors.As(err, &nf) {
			return nil, nil
		}
		return nil, d.wrap(err)
	}
	out := make([]browser.Handle, 0, len(els))
	for _, e := range els {
		out = append(out, e)
	}
	return out, nil
}

func closest(el *rod.Element, css string) (rod.Elements, error) {
	if ok, err := el.Matches(css); err != nil {
		return nil, err
	} else if ok {
		return rod.Elements{el}, nil
	}
	parents, err := el.Parents(css)
	if err != nil || parents.Empty() {
		return nil, err
	}
	return rod.Elements{parents.First()}, nil
}

func (d *Driver) WaitFor(ctx context.Context, sel browser.Selector, timeout time.Duration) (browser.Handle, error) {
	if sel.By != browser.ByCSS {
		return nil, fmt.Errorf("roddriver: WaitFor supports CSS only, got %s", sel)
	}
	el, err := d.page.Context(ctx).Timeout(timeout).Element(sel.Value)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%s: %w", sel, browser.ErrTimeout)
		}
		return nil, d.wrap(err)
	}
	return el.CancelTimeout(), nil
}

func (d *Driver) Click(ctx context.Context, h browser.Handle) error {
	el, err := element(h)
	if err != nil {
		return err
	}
	el = el.Context(ctx)
	if err := el.ScrollIntoView(); err != nil {
		return d.wrap(err)
	}
	return d.wrap(el.Click(proto.InputMouseButtonLeft, 1))
}

func (d *Driver) Clear(ctx context.Context, h browser.Handle) error {
	el, err := element(h)
	if err != nil {
		return err
	}
	el = el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return d.wrap(err)
	}
	return d.wrap(el.Input(""))
}

func (d *Driver) Type(ctx context.Context, h browser.Handle, text string) error {
	el, err := element(h)
	if err != nil {
		return err
	}
	return d.wrap(el.Context(ctx).Input(text))
}

func (d *Driver) Select(ctx context.Context, h browser.Handle, optionText string) error {
	el, err := element(h)
	if err != nil {
		return err
	}
	pattern := `^\s*` + regexp.QuoteMeta(strings.TrimSpace(optionText)) + `\s*$`
	return d.wrap(el.Context(ctx).Select([]string{pattern}, true, rod.SelectorTypeRegex))
}

// properties that must be read live from the DOM rather than from markup.
var liveProps = map[string]bool{"value": true, "selectedIndex": true, "checked": true, "disabled": true, "tagName": true}

func (d *Driver) Attribute(ctx context.Context, h browser.Handle, name string) (string, error) {
	el, err := element(h)
	if err != nil {
		return "", err
	}
	el = el.Context(ctx)
	if liveProps[name] {
		v, err := el.Property(name)
		if err != nil {
			return "", d.wrap(err)
		}
		s := v.String()
		switch {
		case s == "null" || s == "undefined":
			return "", nil
		case (name == "checked" || name == "disabled") && s == "false":
			return "", nil
		case name == "tagName":
			return strings.ToLower(s), nil
		}
		return s, nil
	}
	v, err := el.Attribute(name)
	if err != nil {
		return "", d.wrap(err)
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

func (d *Driver) Text(ctx context.Context, h browser.Handle) (string, error) {
	el, err := element(h)
	if err != nil {
		return "", err
	}
	s, err := el.Context(ctx).Text()
	if err != nil {
		return "", d.wrap(err)
	}
	return strings.TrimSpace(s), nil
}

func (d *Driver) Visible(ctx context.Context, h browser.Handle) (bool, error) {
	el, err := element(h)
	if err != nil {
		return false, err
	}
	ok, err := el.Context(ctx).Visible()
	return ok, d.wrap(err)
}

func (d *Driver) Exec(ctx context.Context, h browser.Handle, script string, args ...any) (string, error) {
	var (
		res *proto.RuntimeRemoteObject
		err error
	)
	if h == nil {
		res, err = d.page.Context(ctx).Eval(script, args...)
	} else {
		el, eerr := element(h)
		if eerr != nil {
			return "", eerr
		}
		res, err = el.Context(ctx).Eval(script, args...)
	}
	if err != nil {
		return "", d.wrap(err)
	}
	if res == nil {
		return "", nil
	}
	s := res.Value.String()
	if s == "null" || s == "undefined" {
		return "", nil
	}
	return s, nil
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	b, err := d.page.Context(ctx).Screenshot(true, nil)
	return b, d.wrap(err)
}

func (d *Driver) PageSource(ctx context.Context) (string, error) {
	s, err := d.page.Context(ctx).HTML()
	return s, d.wrap(err)
}

func (d *Driver) Quit() error {
	var err error
	if d.browser != nil {
		// a browser we only attached to is left running
		if d.launcher == nil {
			if d.page != nil {
				err = d.page.Close()
			}
		} else {
			err = d.browser.Close()
		}
		d.browser = nil
	}
	d.kill()
	d.logger.Info("browser session released")
	return err
}

func (d *Driver) kill() {
	if d.launcher != nil {
		d.launcher.Kill()
		d.launcher = nil
	}
}

// wrap maps errors caused by a dead connection to browser.ErrSessionLost.
func (d *Driver) wrap(err error) error {
	if err == nil {
		return nil
	}
	if d.browser == nil {
		return fmt.Errorf("%w: %v", browser.ErrSessionLost, err)
	}
	if _, perr := d.browser.Version(); perr != nil {
		return fmt.Errorf("%w: %v", browser.ErrSessionLost, err)
	}
	return err
}

func element(h browser.Handle) (*rod.Element, error) {
	el, ok := h.(*rod.Element)
	if !ok || el == nil {
		return nil, fmt.Errorf("roddriver: foreign handle %T", h)
	}
	return el, nil
}
