package form

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"easyapply-engine/internal/browser"
	"easyapply-engine/internal/util"
)

const (
	requiredSelector  = "input[required], textarea[required], select[required]"
	radioGroupCSS     = "fieldset, [role=radiogroup]"
	formElementCSS    = ".jobs-easy-apply-form-element, .fb-dash-form-element, [data-test-form-element]"
	inlineFeedbackCSS = ".artdeco-inline-feedback__message"

	// probeSentinel is typed into empty text fields to make the form reveal
	// its validation rule. Numeric fields reject it with their range message.
	probeSentinel = "0"
)

var placeholderOptions = map[string]bool{"select an option": true, "select": true, "": true}

// Classifier turns page controls into FieldDescriptors.
type Classifier struct {
	drv    browser.Driver
	logger *zap.Logger

	// ProbeDelay is how long to wait for a validation message to render after
	// the sentinel is typed.
	ProbeDelay time.Duration

	// constraints holds the hint each field ID produced since ResetConstraints.
	constraints map[string]string
}

func NewClassifier(drv browser.Driver, logger *zap.Logger) *Classifier {
	return &Classifier{
		drv:         drv,
		logger:      logger.Named("classifier"),
		ProbeDelay:  300 * time.Millisecond,
		constraints: map[string]string{},
	}
}

// ResetConstraints forgets the constraint hints captured so far. Call it when
// the page changes; within one page each empty field is tested once.
func (c *Classifier) ResetConstraints() {
	c.constraints = map[string]string{}
}

// Discover classifies every required control inside modal. Radio inputs are
// reported once per group.
func (c *Classifier) Discover(ctx context.Context, modal browser.Handle) ([]FieldDescriptor, error) {
	controls, err := c.drv.FindAll(ctx, modal, browser.CSS(requiredSelector))
	if err != nil {
		return nil, fmt.Errorf("find required fields: %w", err)
	}

	var (
		out        []FieldDescriptor
		seenGroups = map[string]bool{}
	)
	for _, h := range controls {
		typ, _ := c.drv.Attribute(ctx, h, "type")
		switch strings.ToLower(typ) {
		case "hidden", "checkbox", "file", "submit", "button":
			continue
		case "radio":
			name, _ := c.drv.Attribute(ctx, h, "name")
			if name != "" {
				if seenGroups["name:"+name] {
					continue
				}
				seenGroups["name:"+name] = true
			}
		}
		fd := c.Classify(ctx, h)
		if fd.Kind == RadioGroup && fd.ID == "" {
			// unnamed radios are grouped by what their container shows
			key := "group:" + fd.Label + "\x00" + strings.Join(fd.Options, "\x00")
			if seenGroups[key] {
				continue
			}
			seenGroups[key] = true
		}
		if fd.ID == "" {
			fd.ID = fmt.Sprintf("%s-%d", fd.Kind, len(out))
		}
		out = append(out, fd)
	}
	return out, nil
}

// Classify inspects one control. A radio input (or its group container) is
// classified as the whole group. Inspection errors never escape: the field
// is reported unfilled with LabelNotFound.
func (c *Classifier) Classify(ctx context.Context, h browser.Handle) FieldDescriptor {
	fd, err := c.classify(ctx, h)
	if err != nil {
		c.logger.Warn("field inspection failed", zap.Error(err))
		return FieldDescriptor{ID: fd.ID, Kind: ShortText, Label: LabelNotFound, Required: true, Handle: h}
	}
	c.logger.Debug("field classified",
		zap.String("field", fd.Label),
		zap.Stringer("kind", fd.Kind),
		zap.Bool("filled", fd.Filled),
		zap.String("hint", fd.ConstraintHint))
	return fd
}

func (c *Classifier) classify(ctx context.Context, h browser.Handle) (FieldDescriptor, error) {
	fd := FieldDescriptor{Required: true, Handle: h}

	tag, err := c.drv.Attribute(ctx, h, "tagName")
	if err != nil {
		return fd, fmt.Errorf("read tag: %w", err)
	}
	typ, err := c.drv.Attribute(ctx, h, "type")
	if err != nil {
		return fd, fmt.Errorf("read type: %w", err)
	}
	fd.ID = c.attr(ctx, h, "id")
	if fd.ID == "" {
		fd.ID = c.attr(ctx, h, "name")
	}

	switch {
	case tag == "fieldset" || strings.EqualFold(c.attr(ctx, h, "role"), "radiogroup") ||
		(tag == "input" && strings.EqualFold(typ, "radio")):
		return c.classifyRadio(ctx, h, tag)
	case tag == "select":
		fd.Kind = SingleSelect
		return fd, c.fillSelect(ctx, h, &fd)
	case tag == "textarea":
		fd.Kind = LongText
	default:
		fd.Kind = ShortText
	}

	fd.Label = c.controlLabel(ctx, h)
	v, err := c.drv.Attribute(ctx, h, "value")
	if err != nil {
		return fd, fmt.Errorf("read value: %w", err)
	}
	if strings.TrimSpace(v) != "" {
		fd.Filled = true
		// a value the form rejects is not a fill
		if hint := c.feedback(ctx, h); hint != "" {
			fd.ConstraintHint = hint
			fd.Filled = false
		}
		return fd, nil
	}
	if hint, ok := c.constraints[fd.ID]; ok && fd.ID != "" {
		fd.ConstraintHint = hint
		return fd, nil
	}
	fd.ConstraintHint = c.probe(ctx, h)
	if fd.ID != "" {
		c.constraints[fd.ID] = fd.ConstraintHint
	}
	return fd, nil
}

func (c *Classifier) fillSelect(ctx context.Context, h browser.Handle, fd *FieldDescriptor) error {
	fd.Label = c.controlLabel(ctx, h)
	opts, err := c.drv.FindAll(ctx, h, browser.CSS("option"))
	if err != nil {
		return fmt.Errorf("read options: %w", err)
	}
	var all, real []string
	for _, o := range opts {
		txt, err := c.drv.Text(ctx, o)
		if err != nil {
			return fmt.Errorf("read option: %w", err)
		}
		txt = util.CleanText(txt)
		all = append(all, txt)
		val, _ := c.drv.Attribute(ctx, o, "value")
		if val == "" || placeholderOptions[strings.ToLower(txt)] {
			continue
		}
		real = append(real, txt)
	}
	fd.Options = real
	if len(fd.Options) == 0 {
		fd.Options = all
	}
	if len(fd.Options) == 0 {
		return errors.New("select has no options")
	}
	idx, err := c.drv.Attribute(ctx, h, "selectedIndex")
	if err != nil {
		return fmt.Errorf("read selectedIndex: %w", err)
	}
	n, _ := strconv.Atoi(idx)
	fd.Filled = n > 0
	return nil
}

func (c *Classifier) classifyRadio(ctx context.Context, h browser.Handle, tag string) (FieldDescriptor, error) {
	fd := FieldDescriptor{Kind: RadioGroup, Required: true}

	group := h
	if tag == "input" {
		if g, err := c.drv.FindOne(ctx, h, browser.Closest(radioGroupCSS)); err == nil {
			group = g
		} else if p, perr := c.drv.FindOne(ctx, h, browser.Parent()); perr == nil {
			group = p
		} else {
			return fd, fmt.Errorf("radio group container: %w", err)
		}
	}
	fd.Handle = group

	radios, err := c.drv.FindAll(ctx, group, browser.CSS("input[type=radio]"))
	if err != nil {
		return fd, fmt.Errorf("read radios: %w", err)
	}
	if len(radios) == 0 {
		return fd, errors.New("radio group has no options")
	}
	for _, r := range radios {
		if fd.ID == "" {
			fd.ID = c.attr(ctx, r, "name")
		}
		fd.Options = append(fd.Options, c.radioLabel(ctx, r))
		checked, err := c.drv.Attribute(ctx, r, "checked")
		if err != nil {
			return fd, fmt.Errorf("read checked: %w", err)
		}
		if checked != "" {
			fd.Filled = true
		}
	}

	fd.Label = c.attr(ctx, group, "aria-label")
	if fd.Label == "" {
		if lg, err := c.drv.FindOne(ctx, group, browser.CSS("legend")); err == nil {
			fd.Label = c.text(ctx, lg)
		}
	}
	if fd.Label == "" {
		fd.Label = c.prevText(ctx, group)
	}
	if fd.Label == "" {
		fd.Label = LabelUnknown
	}
	return fd, nil
}

// controlLabel resolves a label: aria-label, placeholder, label[for=id],
// then the text preceding the control's wrapper.
func (c *Classifier) controlLabel(ctx context.Context, h browser.Handle) string {
	if v := util.CleanText(c.attr(ctx, h, "aria-label")); v != "" {
		return v
	}
	if v := util.CleanText(c.attr(ctx, h, "placeholder")); v != "" {
		return v
	}
	if id := c.attr(ctx, h, "id"); id != "" {
		if l, err := c.drv.FindOne(ctx, nil, browser.CSS(labelFor(id))); err == nil {
			if v := c.text(ctx, l); v != "" {
				return v
			}
		}
	}
	if p, err := c.drv.FindOne(ctx, h, browser.Parent()); err == nil {
		if v := c.prevText(ctx, p); v != "" {
			return v
		}
	}
	return LabelUnknown
}

func (c *Classifier) radioLabel(ctx context.Context, r browser.Handle) string {
	if id := c.attr(ctx, r, "id"); id != "" {
		if l, err := c.drv.FindOne(ctx, nil, browser.CSS(labelFor(id))); err == nil {
			if v := c.text(ctx, l); v != "" {
				return v
			}
		}
	}
	if v := util.CleanText(c.attr(ctx, r, "aria-label")); v != "" {
		return v
	}
	return util.CleanText(c.attr(ctx, r, "value"))
}

func (c *Classifier) prevText(ctx context.Context, h browser.Handle) string {
	prev, err := c.drv.FindOne(ctx, h, browser.PrevSibling())
	if err != nil {
		return ""
	}
	return c.text(ctx, prev)
}

// text prefers the aria-hidden copy LinkedIn renders next to the
// screen-reader copy of the same label.
func (c *Classifier) text(ctx context.Context, h browser.Handle) string {
	if v, err := c.drv.FindOne(ctx, h, browser.CSS("[aria-hidden=true]")); err == nil {
		if s := util.CleanText(c.textOf(ctx, v)); s != "" {
			return s
		}
	}
	return util.CleanText(c.textOf(ctx, h))
}

func (c *Classifier) textOf(ctx context.Context, h browser.Handle) string {
	s, _ := c.drv.Text(ctx, h)
	return s
}

func (c *Classifier) attr(ctx context.Context, h browser.Handle, name string) string {
	v, _ := c.drv.Attribute(ctx, h, name)
	return v
}

// feedback returns the inline validation message shown for a control.
func (c *Classifier) feedback(ctx context.Context, h browser.Handle) string {
	container, err := c.drv.FindOne(ctx, h, browser.Closest(formElementCSS))
	if err != nil {
		container, err = c.drv.FindOne(ctx, h, browser.Parent())
		if err != nil {
			return ""
		}
	}
	msgs, err := c.drv.FindAll(ctx, container, browser.CSS(inlineFeedbackCSS))
	if err != nil {
		return ""
	}
	for _, m := range msgs {
		if s := c.text(ctx, m); s != "" {
			return s
		}
	}
	return ""
}

// probe types the sentinel into an empty text field, reads any validation
// message, then clears the field again.
func (c *Classifier) probe(ctx context.Context, h browser.Handle) string {
	if err := c.drv.Type(ctx, h, probeSentinel); err != nil {
		c.logger.Debug("constraint probe skipped", zap.Error(err))
		return ""
	}
	_ = browser.Pause(ctx, c.ProbeDelay)
	hint := c.feedback(ctx, h)
	if err := c.drv.Clear(ctx, h); err != nil {
		c.logger.Warn("constraint probe: clear failed", zap.Error(err))
	}
	return hint
}

func labelFor(id string) string {
	return `label[for="` + strings.ReplaceAll(id, `"`, `\"`) + `"]`
}
