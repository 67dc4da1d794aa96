// Package matcher picks the preference a free-text prompt refers to.
//
// Text is reduced to a set of stemmed tokens and candidates are scored
// by cosine similarity over token presence.
package matcher

import (
	"math"
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

var stopWords = map[string]struct{}{
	"the": {}, "is": {}, "to": {}, "a": {}, "and": {}, "for": {}, "on": {},
	"in": {}, "of": {}, "with": {}, "set": {}, "enable": {}, "disable": {},
}

// TokenSet is a set of normalized tokens.
type TokenSet map[string]struct{}

// Tokens normalizes text into a TokenSet. Underscores and hyphens
// separate words so that keys like "cursor_size" compare word by word.
func Tokens(text string) TokenSet {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '-'
	})

	tokens := make(TokenSet, len(fields))
	for _, field := range fields {
		word := strings.TrimFunc(field, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if word == "" {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		tokens[english.Stem(word, true)] = struct{}{}
	}
	return tokens
}

// Similarity is |A∩B| / (sqrt|A| * sqrt|B|). It is 0 when either set is empty.
func Similarity(a, b TokenSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for token := range small {
		if _, ok := large[token]; ok {
			shared++
		}
	}
	return float64(shared) / (math.Sqrt(float64(len(a))) * math.Sqrt(float64(len(b))))
}

// BestMatch returns the candidate with the strictly highest score against
// prompt. A score of 0 is not a match; ties keep the earlier candidate.
func BestMatch(prompt string, candidates []string) (string, bool) {
	promptTokens := Tokens(prompt)

	best := ""
	highest := 0.0
	for _, candidate := range candidates {
		score := Similarity(promptTokens, Tokens(candidate))
		if score > highest {
			highest = score
			best = candidate
		}
	}
	return best, highest > 0
}
