// Package guard holds the pre-filters applied to a question before it
// reaches the tutor, and the client address ban list used by the server.
// Rejections are values, not errors.
package guard

import "strings"

// Decision is the outcome of a check.
type Decision int

const (
	Allow  Decision = iota // Question may proceed
	Reject                 // Question is answered with Verdict.Reason
)

func (d Decision) String() string {
	if d == Reject {
		return "reject"
	}
	return "allow"
}

// Verdict carries the decision and, on rejection, the text shown instead.
type Verdict struct {
	Decision Decision
	Reason   string
}

// Allowed reports whether the check passed.
func (v Verdict) Allowed() bool { return v.Decision == Allow }

// Gate checks a question.
type Gate interface {
	Check(text string) Verdict
}

// containsAny reports whether lowered text contains any of the lowered
// needles as a whole word or phrase.
func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if n != "" && containsWord(text, n) {
			return true
		}
	}
	return false
}

func containsWord(text, word string) bool {
	for start := 0; ; {
		i := strings.Index(text[start:], word)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(word)
		if (i == 0 || !isWordByte(text[i-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		start = i + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func normalize(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}
