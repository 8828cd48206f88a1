// Package form discovers, classifies, answers and fills the required fields
// of one Easy Apply step.
package form

import (
	"errors"

	"easyapply-engine/internal/browser"
)

type Kind int

const (
	ShortText Kind = iota
	LongText
	SingleSelect
	RadioGroup
)

// String is the input type shown to the answer generator.
func (k Kind) String() string {
	switch k {
	case LongText:
		return "textarea"
	case SingleSelect:
		return "select"
	case RadioGroup:
		return "radio"
	default:
		return "text"
	}
}

func (k Kind) HasOptions() bool { return k == SingleSelect || k == RadioGroup }

const (
	LabelUnknown  = "Unknown field"
	LabelNotFound = "Field information not found"
)

// FieldDescriptor is a normalized view of one required control. Options is
// non-empty exactly when Kind is SingleSelect or RadioGroup.
type FieldDescriptor struct {
	ID             string
	Kind           Kind
	Label          string
	Options        []string
	ConstraintHint string
	Filled         bool
	Required       bool
	Handle         browser.Handle // radio groups: the group container
}

type Source int

const (
	ResumeLookup Source = iota
	Generated
	Fallback
)

func (s Source) String() string {
	switch s {
	case ResumeLookup:
		return "resume"
	case Generated:
		return "generated"
	default:
		return "fallback"
	}
}

type Answer struct {
	Text   string
	Source Source
}

// FallbackText is answered when the generator fails.
const FallbackText = "Sample Text"

// ErrResolutionMismatch means no offered option matches the answer. The
// field is left unfilled.
var ErrResolutionMismatch = errors.New("answer matches no offered option")
