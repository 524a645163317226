package consensus

import (
	"context"
	"strings"
	"unicode"
)

// Lexical scores answers by word-set overlap. It costs nothing per
// comparison, which makes it the free-tier mode.
type Lexical struct{}

// Threshold returns the lexical join threshold.
func (Lexical) Threshold() float64 { return 0.75 }

// Score returns the larger of the Jaccard index and the containment
// coefficient of the two answers' token sets. Containment lets a terse
// answer ("Paris") cluster with an elaborated form of the same answer
// ("Paris, France") that plain Jaccard would keep apart.
func (Lexical) Score(_ context.Context, a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for token := range setA {
		if setB[token] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	jaccard := float64(intersection) / float64(union)

	smaller := len(setA)
	if len(setB) < smaller {
		smaller = len(setB)
	}
	containment := float64(intersection) / float64(smaller)

	if containment > jaccard {
		return containment
	}
	return jaccard
}

// tokenSet lowercases, strips punctuation, and keeps tokens longer than
// two runes so stop-word noise doesn't inflate overlap.
func tokenSet(text string) map[string]bool {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)

	set := make(map[string]bool)
	for _, token := range strings.Fields(cleaned) {
		if len([]rune(token)) > 2 {
			set[token] = true
		}
	}
	return set
}
