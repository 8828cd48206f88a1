// Package browser defines the page automation capability the apply engine
// drives. Implementations live in roddriver (live Chrome) and htmldriver
// (offline HTML snapshots).
package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by FindOne when nothing matches.
	ErrNotFound = errors.New("element not found")
	// ErrTimeout is returned by WaitFor when the condition never became true.
	ErrTimeout = errors.New("timed out waiting for element")
	// ErrSessionLost means the browser session can no longer be used.
	ErrSessionLost = errors.New("browser session lost")
	// ErrUnsupported is returned by drivers that cannot perform an operation.
	ErrUnsupported = errors.New("operation not supported by driver")
)

// Handle is an opaque reference to an element owned by the driver.
// It is only valid while the page that produced it is loaded.
type Handle any

type By int

const (
	ByCSS By = iota
	ByParent
	ByPrevSibling
	ByClosest
)

// Selector addresses elements either by CSS or by a structural relation to
// the element the search starts from.
type Selector struct {
	By    By
	Value string
}

func CSS(sel string) Selector     { return Selector{By: ByCSS, Value: sel} }
func Closest(sel string) Selector { return Selector{By: ByClosest, Value: sel} }
func Parent() Selector            { return Selector{By: ByParent} }
func PrevSibling() Selector       { return Selector{By: ByPrevSibling} }

func (s Selector) String() string {
	switch s.By {
	case ByParent:
		return "parent()"
	case ByPrevSibling:
		return "prev-sibling()"
	case ByClosest:
		return "closest(" + s.Value + ")"
	default:
		return s.Value
	}
}

// Driver is the page automation primitive. A nil within Handle means the
// whole document. Structural selectors require a non-nil within.
//
// Attribute returns live DOM properties for "value", "selectedIndex",
// "checked", "disabled" and "tagName" (lower-cased); any other name is read
// as a plain attribute. Missing values are "". The boolean properties read
// "true" or "".
type Driver interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)

	FindOne(ctx context.Context, within Handle, sel Selector) (Handle, error)
	FindAll(ctx context.Context, within Handle, sel Selector) ([]Handle, error)
	WaitFor(ctx context.Context, sel Selector, timeout time.Duration) (Handle, error)

	Click(ctx context.Context, h Handle) error
	Clear(ctx context.Context, h Handle) error
	Type(ctx context.Context, h Handle, text string) error
	Select(ctx context.Context, h Handle, optionText string) error

	Attribute(ctx context.Context, h Handle, name string) (string, error)
	Text(ctx context.Context, h Handle) (string, error)
	Visible(ctx context.Context, h Handle) (bool, error)

	// Exec runs a JS function with this bound to h (or the window when h is nil)
	// and returns its result as a string.
	Exec(ctx context.Context, h Handle, script string, args ...any) (string, error)

	Screenshot(ctx context.Context) ([]byte, error)
	PageSource(ctx context.Context) (string, error)
	Quit() error
}
