// Package modal drives the Easy Apply dialog from its first step to a
// terminal result.
package modal

import "fmt"

type Kind int

const (
	Continue Kind = iota
	Blocked
	Submitted
	Aborted
)

func (k Kind) String() string {
	switch k {
	case Continue:
		return "continue"
	case Blocked:
		return "blocked"
	case Submitted:
		return "submitted"
	default:
		return "aborted"
	}
}

const (
	ReasonNoModal          = "no modal"
	ReasonUnresolvable     = "unresolvable required field"
	ReasonReviewValidation = "validation error at review"
	ReasonNoAffordance     = "no navigation affordance"
	ReasonBudget           = "step budget exhausted"
	ReasonModalClosed      = "modal closed unexpectedly"
	ReasonCancelled        = "cancelled"
)

// Result is the outcome of one step, or of the whole run when Kind is not
// Continue.
type Result struct {
	Kind   Kind
	Reason string
	Steps  int
}

func (r Result) Terminal() bool { return r.Kind != Continue }

func (r Result) String() string {
	if r.Reason == "" {
		return fmt.Sprintf("%s after %d step(s)", r.Kind, r.Steps)
	}
	return fmt.Sprintf("%s(%s) after %d step(s)", r.Kind, r.Reason, r.Steps)
}
