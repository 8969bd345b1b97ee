package guard

import "strings"

// DefaultBlockedTerms covers prompt-injection phrasing commonly used to
// pull the tutor off its role.
var DefaultBlockedTerms = []string{
	"ignore previous instructions",
	"ignore all previous instructions",
	"disregard your instructions",
	"reveal your system prompt",
	"jailbreak",
}

const blockedNotice = "That message can't be sent. Please keep questions respectful and on topic."

// TermFilter rejects questions containing a blocked word or phrase. It runs
// before the question is recorded, so a rejected question leaves no turn.
type TermFilter struct {
	terms []string
}

func NewTermFilter(terms []string) *TermFilter {
	return &TermFilter{terms: normalize(terms)}
}

func (f *TermFilter) Check(text string) Verdict {
	if containsAny(strings.ToLower(text), f.terms) {
		return Verdict{Decision: Reject, Reason: blockedNotice}
	}
	return Verdict{Decision: Allow}
}

var _ Gate = (*TermFilter)(nil)
