// Package similarity scores how alike two free-text strings are, on a [0,1] scale.
package similarity

import (
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// Lexical blend weights
const (
	ratioWeight   = 0.55
	jaccardWeight = 0.45
)

// Normalize lowercases s, trims it and collapses whitespace runs to one space
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Tokenize returns the alphanumeric tokens of the normalized text
func Tokenize(s string) []string {
	return tokenPattern.FindAllString(Normalize(s), -1)
}

// Jaccard returns the token-set Jaccard similarity of a and b
func Jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	inter := 0
	for tok := range setA {
		if setB[tok] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// Lexical combines the character sequence ratio and token Jaccard of the
// normalized texts as 0.55*ratio + 0.45*jaccard
func Lexical(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)

	if na == "" && nb == "" {
		return 1.0
	}
	if na == "" || nb == "" {
		return 0.0
	}

	return ratioWeight*SequenceRatio(na, nb) + jaccardWeight*Jaccard(na, nb)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range Tokenize(s) {
		set[tok] = true
	}
	return set
}
