// Package resume holds the candidate profile used to answer application
// questions: loading, the prompt summary, and deterministic lookups.
package resume

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"easyapply-engine/internal/config"
)

// Context is an arbitrarily nested mapping of scalars, lists and lists of
// records. It is loaded once per run and never mutated.
type Context map[string]any

// Load reads a JSON or YAML resume file, substituting ${VAR} tokens from the
// environment before parsing.
func Load(path string) (Context, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resume %s: %w", path, err)
	}
	return Parse(b)
}

func Parse(b []byte) (Context, error) {
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(config.ExpandEnv(string(b))), &raw); err != nil {
		return nil, fmt.Errorf("parse resume: %w", err)
	}
	return FromMap(raw), nil
}

// FromMap normalises nested maps into Context values.
func FromMap(m map[string]any) Context {
	out := make(Context, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return FromMap(t)
	case Context:
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[fmt.Sprint(k)] = vv
		}
		return FromMap(m)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}

func (c Context) keys() []string {
	ks := make([]string, 0, len(c))
	for k := range c {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

// Summary renders the context as prompt lines. Lists of records become one
// numbered line per record; everything else is one "Key: value" line.
// Keys are emitted in sorted order so prompts are reproducible.
func (c Context) Summary() []string {
	var lines []string
	for _, k := range c.keys() {
		v := c[k]
		if recs, ok := records(v); ok {
			for i, r := range recs {
				lines = append(lines, fmt.Sprintf("%s #%d: %s", title(k), i+1, inline(r)))
			}
			continue
		}
		switch t := v.(type) {
		case Context:
			lines = append(lines, fmt.Sprintf("%s - %s", title(k), inline(t)))
		case []any:
			lines = append(lines, fmt.Sprintf("%s: %s", title(k), joinScalars(t)))
		default:
			lines = append(lines, fmt.Sprintf("%s: %s", title(k), scalar(v)))
		}
	}
	return lines
}

func records(v any) ([]Context, bool) {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	out := make([]Context, 0, len(list))
	for _, e := range list {
		r, ok := e.(Context)
		if !ok {
			return nil, false
		}
		out = append(out, r)
	}
	return out, true
}

func inline(c Context) string {
	parts := make([]string, 0, len(c))
	for _, k := range c.keys() {
		v := c[k]
		switch t := v.(type) {
		case Context:
			parts = append(parts, fmt.Sprintf("%s: {%s}", title(k), inline(t)))
		case []any:
			parts = append(parts, fmt.Sprintf("%s: %s", title(k), joinScalars(t)))
		default:
			parts = append(parts, fmt.Sprintf("%s: %s", title(k), scalar(v)))
		}
	}
	return strings.Join(parts, "; ")
}

func joinScalars(list []any) string {
	parts := make([]string, 0, len(list))
	for _, e := range list {
		if r, ok := e.(Context); ok {
			parts = append(parts, "{"+inline(r)+"}")
			continue
		}
		parts = append(parts, scalar(e))
	}
	return strings.Join(parts, ", ")
}

func scalar(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func title(k string) string {
	if k == "" {
		return k
	}
	return strings.ToUpper(k[:1]) + k[1:]
}
