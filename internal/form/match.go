package form

import (
	"strings"

	"easyapply-engine/internal/util"
)

func norm(s string) string {
	return " " + strings.Join(util.Tokens(s), " ") + " "
}

// MatchOption picks the option an answer refers to. An exact
// (case-insensitive) match wins, then an option named inside the answer
// ("yes, I am" -> "Yes"), then an option containing the answer. Containment
// works on whole words so "No" never matches "I know". Within a tier the
// first option in page order wins.
func MatchOption(ans string, options []string) (string, bool) {
	a := norm(ans)
	if strings.TrimSpace(a) == "" {
		return "", false
	}
	for _, o := range options {
		if strings.EqualFold(util.CleanText(o), util.CleanText(ans)) || norm(o) == a {
			return o, true
		}
	}
	for _, o := range options {
		if n := norm(o); strings.TrimSpace(n) != "" && strings.Contains(a, n) {
			return o, true
		}
	}
	for _, o := range options {
		if strings.Contains(norm(o), a) {
			return o, true
		}
	}
	return "", false
}
