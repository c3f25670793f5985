// File: internal/answers/normalize.go
package answers

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// SensitiveKeywords are never auto-filled. A label containing any of them is
// left for the human and reported as skipped.
var SensitiveKeywords = []string{
	"salary",
	"compensation",
	"visa",
	"work authorization",
	"relocation",
	"notice period",
	"citizenship",
}

var folder = cases.Fold()

// Normalize folds case, applies NFKC, turns punctuation into spaces and
// collapses whitespace. Equal questions from different forms normalize equally
// in the common cases ("Phone number:" and "phone  number").
func Normalize(s string) string {
	s = folder.String(norm.NFKC.String(s))
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

// IsSensitive reports whether label mentions any sensitive keyword.
func IsSensitive(label string) bool {
	n := Normalize(label)
	for _, kw := range SensitiveKeywords {
		if strings.Contains(n, kw) {
			return true
		}
	}
	return false
}

// containsAny reports whether the normalized text contains one of words.
func containsAny(normalized string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(normalized, w) {
			return true
		}
	}
	return false
}
