package resume

import (
	"fmt"
	"strings"

	"easyapply-engine/internal/util"
)

// synonyms rewrites label words to the key vocabulary used in resumes.
var synonyms = map[string]string{
	"mobile":    "phone",
	"cell":      "phone",
	"telephone": "phone",
	"tel":       "phone",
	"mail":      "email",
	"surname":   "last",
	"forename":  "first",
	"postal":    "zip",
	"postcode":  "zip",
	"town":      "city",
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "in": true, "your": true,
	"you": true, "do": true, "have": true, "what": true, "is": true, "are": true,
	"to": true, "for": true, "with": true, "and": true, "or": true, "number": true,
	"address": true, "url": true, "profile": true,
}

// Entry is one scalar leaf of the context, addressed by its key path.
type Entry struct {
	Path  []string
	Value string
}

func (e Entry) Key() string { return strings.Join(e.Path, ".") }

// Entries flattens every scalar leaf (and every list of scalars, joined with
// ", ") in key order. Lists of records are not addressable by a label and
// are skipped.
func (c Context) Entries() []Entry {
	var out []Entry
	var walk func(prefix []string, m Context)
	walk = func(prefix []string, m Context) {
		for _, k := range m.keys() {
			path := append(append([]string(nil), prefix...), k)
			switch t := m[k].(type) {
			case Context:
				walk(path, t)
			case []any:
				if _, isRecords := records(t); isRecords {
					continue
				}
				out = append(out, Entry{Path: path, Value: joinScalars(t)})
			case nil:
			default:
				out = append(out, Entry{Path: path, Value: fmt.Sprint(t)})
			}
		}
	}
	walk(nil, c)
	return out
}

func labelTokens(label string) map[string]bool {
	label = strings.ReplaceAll(strings.ToLower(label), "e-mail", "email")
	set := map[string]bool{}
	for _, t := range util.Tokens(label) {
		set[t] = true
		if s, ok := synonyms[t]; ok {
			set[s] = true
		}
	}
	return set
}

func keyTokens(key string) []string {
	var out []string
	for _, t := range util.Tokens(key) {
		if !stopwords[t] {
			out = append(out, t)
		}
	}
	return out
}

// Lookup finds the resume value whose leaf key is fully named by label, e.g.
// "Phone number" -> phone, "Years of experience" -> years_of_experience.
// When several keys match, the one with the most significant words wins;
// remaining ties go to key order.
func (c Context) Lookup(label string) (Entry, bool) {
	words := labelTokens(label)
	if len(words) == 0 {
		return Entry{}, false
	}

	var (
		best      Entry
		bestScore int
	)
	for _, e := range c.Entries() {
		if strings.TrimSpace(e.Value) == "" {
			continue
		}
		kt := keyTokens(e.Path[len(e.Path)-1])
		if len(kt) == 0 {
			continue
		}
		all := true
		for _, t := range kt {
			if !words[t] {
				all = false
				break
			}
		}
		if all && len(kt) > bestScore {
			best, bestScore = e, len(kt)
		}
	}
	return best, bestScore > 0
}
