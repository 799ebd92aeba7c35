// Package similarity scores how well two media titles match. Scraped sites
// spell titles inconsistently (Cyrillic vs Latin, possessive prefixes,
// punctuation), so comparison happens on a transliterated, folded form.
package similarity

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

// Score returns a similarity between 0.0 (unrelated) and 1.0 (same title).
// Both inputs are transliterated to ASCII and folded before comparison, so
// "Брат" and "Brat" score 1.0.
func Score(a, b string) float64 {
	a = normalize(a)
	b = normalize(b)

	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	// "Will Vinton's Claymation Christmas" vs "Claymation Christmas":
	// suffix containment at a word boundary counts as a near-match.
	if score := suffixContainmentScore(a, b); score > 0 {
		return score
	}

	distance := levenshteinDistance(a, b)
	return 1.0 - float64(distance)/float64(max(len(a), len(b)))
}

// suffixContainmentScore returns a high score when the shorter title is a
// word-boundary suffix of the longer one and covers most of it, 0 otherwise.
func suffixContainmentScore(a, b string) float64 {
	longer, shorter := a, b
	if len(a) < len(b) {
		longer, shorter = b, a
	}
	if !strings.HasSuffix(longer, shorter) {
		return 0
	}
	prefixLen := len(longer) - len(shorter)
	if prefixLen != 0 && longer[prefixLen-1] != ' ' {
		return 0
	}
	ratio := float64(len(shorter)) / float64(len(longer))
	if ratio < 0.6 {
		return 0
	}
	return 0.90 + ratio*0.10
}

// normalize transliterates to ASCII, lower-cases, maps "&" to "and", turns
// separator punctuation into spaces and drops the rest.
func normalize(s string) string {
	s = unidecode.Unidecode(s)
	s = strings.ReplaceAll(s, "&", " and ")

	var result strings.Builder
	result.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			result.WriteRune(r)
		case unicode.IsSpace(r) || r == '.' || r == '-' || r == '_':
			result.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(result.String()), " ")
}

func levenshteinDistance(a, b string) int {
	r1 := []rune(a)
	r2 := []rune(b)

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(r2)]
}
