// Package answer produces free-text answers for application form fields from
// an external text-generation service.
package answer

import (
	"context"
	"fmt"
	"strings"
)

// Generator turns a prompt into the literal value to enter. Implementations
// fail with *GenerationError on quota, timeout or malformed responses.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type GenerationError struct {
	Reason string // quota | timeout | empty | request
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return "generation failed: " + e.Reason
	}
	return fmt.Sprintf("generation failed: %s: %v", e.Reason, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Prompt describes one form field for the generator.
type Prompt struct {
	Resume  []string // candidate summary lines
	Label   string
	Kind    string
	Hint    string
	Options []string
}

func (p Prompt) String() string {
	var b strings.Builder
	b.WriteString("You are helping a candidate complete a LinkedIn Easy Apply form.\n\n")
	b.WriteString("Candidate Details:\n")
	b.WriteString(strings.Join(p.Resume, "\n"))
	b.WriteString("\n\nField to Fill:\n")
	fmt.Fprintf(&b, "- Label: %s\n", p.Label)
	fmt.Fprintf(&b, "- Input Type: %s\n", p.Kind)
	if p.Hint != "" {
		fmt.Fprintf(&b, "- Validation Requirement: %s\n", p.Hint)
	}
	if len(p.Options) > 0 {
		fmt.Fprintf(&b, "- Options: %s\n", strings.Join(p.Options, ", "))
		b.WriteString("Select the most appropriate option based on the resume.")
	}
	b.WriteString("\nRespond only with the value to enter. Do not include explanation or punctuation.")
	return strings.TrimSpace(b.String())
}

// Clean reduces a raw model reply to the value itself: first non-empty line,
// without surrounding quotes or code fences.
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "`")
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		return strings.TrimSpace(strings.Trim(line, `"'`+"`"))
	}
	return ""
}
