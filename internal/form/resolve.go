package form

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"easyapply-engine/internal/answer"
	"easyapply-engine/internal/resume"
)

// Resolver produces answers: resume lookup first, the generator second, and
// FallbackText when the generator fails.
type Resolver struct {
	resume  resume.Context
	summary []string
	gen     answer.Generator
	logger  *zap.Logger
}

// NewResolver builds a resolver. gen may be nil, in which case every field
// the resume cannot answer gets the fallback.
func NewResolver(rc resume.Context, gen answer.Generator, logger *zap.Logger) *Resolver {
	return &Resolver{
		resume:  rc,
		summary: rc.Summary(),
		gen:     gen,
		logger:  logger.Named("resolver"),
	}
}

// Resolve answers d. For option fields the returned text is always one of
// d.Options; otherwise the error wraps ErrResolutionMismatch.
func (r *Resolver) Resolve(ctx context.Context, d FieldDescriptor) (Answer, error) {
	if e, ok := r.resume.Lookup(d.Label); ok {
		if !d.Kind.HasOptions() {
			r.logger.Debug("answered from resume", zap.String("field", d.Label), zap.String("key", e.Key()))
			return Answer{Text: e.Value, Source: ResumeLookup}, nil
		}
		if opt, ok := MatchOption(e.Value, d.Options); ok {
			r.logger.Debug("answered from resume", zap.String("field", d.Label), zap.String("key", e.Key()))
			return Answer{Text: opt, Source: ResumeLookup}, nil
		}
	}
	return r.generate(ctx, d)
}

// Regenerate skips the resume lookup. It is used when an earlier answer left
// the field invalid, with d.ConstraintHint carrying the form's complaint.
func (r *Resolver) Regenerate(ctx context.Context, d FieldDescriptor) (Answer, error) {
	return r.generate(ctx, d)
}

func (r *Resolver) generate(ctx context.Context, d FieldDescriptor) (Answer, error) {
	a := Answer{Text: FallbackText, Source: Fallback}
	if r.gen != nil {
		p := answer.Prompt{
			Resume:  r.summary,
			Label:   d.Label,
			Kind:    d.Kind.String(),
			Hint:    d.ConstraintHint,
			Options: d.Options,
		}
		text, err := r.gen.Generate(ctx, p.String())
		text = answer.Clean(text)
		switch {
		case err != nil:
			var ge *answer.GenerationError
			if errors.As(err, &ge) {
				r.logger.Warn("generator failed, using fallback", zap.String("field", d.Label), zap.String("reason", ge.Reason), zap.Error(err))
			} else {
				r.logger.Warn("generator failed, using fallback", zap.String("field", d.Label), zap.Error(err))
			}
		case text == "":
			r.logger.Warn("generator returned nothing, using fallback", zap.String("field", d.Label))
		default:
			a = Answer{Text: text, Source: Generated}
		}
	}

	if !d.Kind.HasOptions() {
		return a, nil
	}
	opt, ok := MatchOption(a.Text, d.Options)
	if !ok {
		return a, fmt.Errorf("%q for %q: %w", a.Text, d.Label, ErrResolutionMismatch)
	}
	a.Text = opt
	return a, nil
}
