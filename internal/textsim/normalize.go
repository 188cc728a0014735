package textsim

import (
	"strings"

	"golang.org/x/text/cases"
)

// Normalize trims surrounding whitespace and case-folds s.
//
// Two texts compare equal in the glossary and exact tiers iff their
// normalized forms are equal, so stored terms, slugs and names must go
// through this same function.
func Normalize(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ""
	}
	// cases.Caser is stateful and not safe for concurrent use; build one per call.
	return cases.Fold().String(trimmed)
}
