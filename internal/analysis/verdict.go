// AngelaMos | 2026
// verdict.go

package analysis

import (
	"strings"
)

type Verdict string

const (
	Matched    Verdict = "MATCHED"
	NotMatched Verdict = "NOT_MATCHED"
)

// Classify derives a verdict from free-form completion text. Only text that
// opens with "matched:" (case-insensitive) counts as a match; anything else,
// including "Rule 1:\nMatched: ...", is NotMatched.
func Classify(text string) Verdict {
	lower := strings.ToLower(text)
	if strings.HasPrefix(lower, "matched:") && !strings.HasPrefix(lower, "not matched:") {
		return Matched
	}
	return NotMatched
}

func (v Verdict) Matched() bool {
	return v == Matched
}
