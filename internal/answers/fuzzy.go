// File: internal/answers/fuzzy.go
package answers

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// FuzzyThreshold is the minimum Similarity at which a stored question is
// accepted as the same question.
const FuzzyThreshold = 80

// tokenSortWeight discounts order-insensitive matches slightly so an exact
// character match always ranks above a reordering.
const tokenSortWeight = 0.95

// Similarity scores two strings from 0 to 100 after normalization. It is the
// larger of the edit-distance ratio and a weighted ratio over sorted tokens.
func Similarity(a, b string) int {
	na, nb := Normalize(a), Normalize(b)
	if na == "" && nb == "" {
		return 100
	}
	if na == "" || nb == "" {
		return 0
	}

	direct := ratio(na, nb)
	sorted := ratio(sortTokens(na), sortTokens(nb)) * tokenSortWeight
	return int(math.Round(math.Max(direct, sorted)))
}

func ratio(a, b string) float64 {
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(dist)/float64(longest))
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
