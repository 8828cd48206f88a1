package form

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"easyapply-engine/internal/browser"
	"easyapply-engine/internal/util"
)

// Filler writes answers back into controls.
type Filler struct {
	drv    browser.Driver
	logger *zap.Logger
}

func NewFiller(drv browser.Driver, logger *zap.Logger) *Filler {
	return &Filler{drv: drv, logger: logger.Named("filler")}
}

// Fill applies a to the control behind d and reports whether it was written.
// Errors are logged, never returned, so one field cannot stop its siblings.
func (f *Filler) Fill(ctx context.Context, d FieldDescriptor, a Answer) bool {
	if d.Handle == nil {
		return false
	}
	var err error
	switch d.Kind {
	case ShortText, LongText:
		err = f.fillText(ctx, d.Handle, a.Text)
	case SingleSelect:
		err = f.fillSelect(ctx, d.Handle, a.Text)
	case RadioGroup:
		err = f.fillRadio(ctx, d.Handle, a.Text)
	default:
		err = fmt.Errorf("unknown field kind %d", d.Kind)
	}
	if err != nil {
		f.logger.Warn("fill failed", zap.String("field", d.Label), zap.Stringer("kind", d.Kind), zap.Error(err))
		return false
	}
	f.logger.Info("field filled",
		zap.String("field", d.Label),
		zap.Stringer("kind", d.Kind),
		zap.Stringer("source", a.Source),
		zap.String("value", a.Text))
	return true
}

func (f *Filler) fillText(ctx context.Context, h browser.Handle, text string) error {
	if err := f.drv.Clear(ctx, h); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if err := f.drv.Type(ctx, h, text); err != nil {
		return fmt.Errorf("type: %w", err)
	}
	return nil
}

// pick returns the index of the option named by ans: exact text first, then
// the first option containing it.
func pick(ans string, options []string) int {
	want := strings.ToLower(util.CleanText(ans))
	if want == "" {
		return -1
	}
	for i, o := range options {
		if strings.ToLower(util.CleanText(o)) == want {
			return i
		}
	}
	for i, o := range options {
		if strings.Contains(strings.ToLower(o), want) {
			return i
		}
	}
	return -1
}

func (f *Filler) fillSelect(ctx context.Context, h browser.Handle, ans string) error {
	opts, err := f.drv.FindAll(ctx, h, browser.CSS("option"))
	if err != nil {
		return fmt.Errorf("read options: %w", err)
	}
	texts := make([]string, 0, len(opts))
	for _, o := range opts {
		t, err := f.drv.Text(ctx, o)
		if err != nil {
			return fmt.Errorf("read option: %w", err)
		}
		texts = append(texts, util.CleanText(t))
	}
	i := pick(ans, texts)
	if i < 0 {
		return fmt.Errorf("option %q: %w", ans, ErrResolutionMismatch)
	}
	return f.drv.Select(ctx, h, texts[i])
}

func (f *Filler) fillRadio(ctx context.Context, group browser.Handle, ans string) error {
	radios, err := f.drv.FindAll(ctx, group, browser.CSS("input[type=radio]"))
	if err != nil {
		return fmt.Errorf("read radios: %w", err)
	}
	names := make([]string, 0, len(radios))
	labels := make([]browser.Handle, 0, len(radios))
	for _, r := range radios {
		var (
			name  string
			label browser.Handle
		)
		if id, _ := f.drv.Attribute(ctx, r, "id"); id != "" {
			if l, err := f.drv.FindOne(ctx, nil, browser.CSS(labelFor(id))); err == nil {
				label = l
				name, _ = f.drv.Text(ctx, l)
			}
		}
		if strings.TrimSpace(name) == "" {
			name, _ = f.drv.Attribute(ctx, r, "value")
		}
		names = append(names, util.CleanText(name))
		labels = append(labels, label)
	}

	i := pick(ans, names)
	if i < 0 {
		return fmt.Errorf("option %q: %w", ans, ErrResolutionMismatch)
	}
	// the input itself is often covered by a styled label
	if labels[i] != nil {
		if err := f.drv.Click(ctx, labels[i]); err == nil {
			return nil
		}
	}
	return f.drv.Click(ctx, radios[i])
}
