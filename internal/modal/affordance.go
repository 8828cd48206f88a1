package modal

import (
	"context"
	"strings"

	"easyapply-engine/internal/browser"
)

// Action is what clicking an affordance means for the state machine.
type Action int

const (
	Advance Action = iota
	Review
	Submit
)

// Affordance is one navigation control. Find reports the control when it is
// present and clickable in the modal, or nil.
type Affordance struct {
	Name   string
	Action Action
	Find   func(ctx context.Context, drv browser.Driver, modal browser.Handle) (browser.Handle, error)
}

// DefaultAffordances are tried in order; the first one present wins.
func DefaultAffordances() []Affordance {
	return []Affordance{
		{Name: "next", Action: Advance, Find: firstClickable(
			"button[aria-label='Continue to next step']",
			"button[data-easy-apply-next-button]",
		)},
		{Name: "review", Action: Review, Find: firstClickable(
			"button[aria-label='Review your application']",
			"button[data-live-test-easy-apply-review-button]",
		)},
		{Name: "submit", Action: Submit, Find: firstClickable(
			"button[aria-label='Submit application']",
			"button[data-live-test-easy-apply-submit-button]",
		)},
		{Name: "generic submit", Action: Submit, Find: buttonLabelled("submit")},
	}
}

func firstClickable(selectors ...string) func(context.Context, browser.Driver, browser.Handle) (browser.Handle, error) {
	return func(ctx context.Context, drv browser.Driver, modal browser.Handle) (browser.Handle, error) {
		for _, sel := range selectors {
			hs, err := drv.FindAll(ctx, modal, browser.CSS(sel))
			if err != nil {
				return nil, err
			}
			for _, h := range hs {
				if ok, err := clickable(ctx, drv, h); err != nil {
					return nil, err
				} else if ok {
					return h, nil
				}
			}
		}
		return nil, nil
	}
}

func buttonLabelled(word string) func(context.Context, browser.Driver, browser.Handle) (browser.Handle, error) {
	return func(ctx context.Context, drv browser.Driver, modal browser.Handle) (browser.Handle, error) {
		hs, err := drv.FindAll(ctx, modal, browser.CSS("button, input[type=submit]"))
		if err != nil {
			return nil, err
		}
		for _, h := range hs {
			label, _ := drv.Attribute(ctx, h, "aria-label")
			if label == "" {
				label, _ = drv.Text(ctx, h)
			}
			if label == "" {
				label, _ = drv.Attribute(ctx, h, "value")
			}
			if !strings.Contains(strings.ToLower(label), word) {
				continue
			}
			if ok, err := clickable(ctx, drv, h); err != nil {
				return nil, err
			} else if ok {
				return h, nil
			}
		}
		return nil, nil
	}
}

func clickable(ctx context.Context, drv browser.Driver, h browser.Handle) (bool, error) {
	if v, _ := drv.Attribute(ctx, h, "disabled"); v != "" {
		return false, nil
	}
	if v, _ := drv.Attribute(ctx, h, "aria-disabled"); v == "true" {
		return false, nil
	}
	return drv.Visible(ctx, h)
}
