package classify

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/regdiff/internal/model"
	"github.com/ppiankov/regdiff/internal/similarity"
)

// Noise and substance limits
const (
	minTextRunes         = 8
	maxSymbolLetterRatio = 0.7
	minLettersWithDigits = 6
	minSubstantiveRunes  = 45
	minSubstantiveWords  = 8
)

// ContainsRegulatorySignal reports whether text mentions a regulatory term
func ContainsRegulatorySignal(text string) bool {
	return containsAny(similarity.Normalize(text), regulatoryTerms)
}

// ContainsScopeSignal reports whether text mentions an applicability term
func ContainsScopeSignal(text string) bool {
	return containsAny(similarity.Normalize(text), scopeTerms)
}

// HasTimeOrUnit reports whether text carries a number, optionally with a unit
func HasTimeOrUnit(text string) bool {
	return timeOrUnitPattern.MatchString(text)
}

// IsSubstantiveRule reports whether text is long enough and specific enough
// to be an enforceable rule
func IsSubstantiveRule(text string) bool {
	low := similarity.Normalize(text)
	if utf8.RuneCountInString(low) < minSubstantiveRunes {
		return false
	}
	if len(strings.Fields(low)) < minSubstantiveWords {
		return false
	}
	return containsAny(low, regulatoryTerms) || timeOrUnitPattern.MatchString(low)
}

// IsNoise reports whether text looks like boilerplate, a running header or
// an extraction artifact
func IsNoise(text string) bool {
	if text == "" {
		return true
	}

	low := similarity.Normalize(text)
	total := utf8.RuneCountInString(low)
	if total < minTextRunes {
		return true
	}

	if containsAny(low, noisePhrases) && !containsAny(low, regulatoryTerms) {
		return true
	}

	var letters, digits, spaces int
	for _, r := range low {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r):
			digits++
		case r == ' ':
			spaces++
		}
	}
	if letters == 0 {
		return true
	}

	symbols := max(0, total-letters-digits-spaces)
	if float64(symbols) > float64(letters)*maxSymbolLetterRatio {
		return true
	}

	return letters < minLettersWithDigits && digits > 0
}

// ExtractNumbers returns the set of numeric tokens in text
func ExtractNumbers(text string) map[string]bool {
	set := make(map[string]bool)
	for _, n := range numberPattern.FindAllString(text, -1) {
		set[n] = true
	}
	return set
}

// RemoveNumbers replaces every numeric token with a space
func RemoveNumbers(text string) string {
	return numberPattern.ReplaceAllString(text, " ")
}

// NumericDelta returns the numbers only in newText (added) and only in
// oldText (removed), each sorted
func NumericDelta(oldText, newText string) model.NumericDelta {
	oldNums := ExtractNumbers(oldText)
	newNums := ExtractNumbers(newText)
	return model.NumericDelta{
		Added:   difference(newNums, oldNums),
		Removed: difference(oldNums, newNums),
	}
}

// IsOperationalNumericChange reports whether the numbers differ in an
// operational context. Differences made only of dotted tokens next to
// cross-reference words are treated as renumbering.
func IsOperationalNumericChange(oldText, newText string) bool {
	oldNums := ExtractNumbers(oldText)
	newNums := ExtractNumbers(newText)

	changed := append(difference(oldNums, newNums), difference(newNums, oldNums)...)
	if len(changed) == 0 {
		return false
	}

	combined := similarity.Normalize(oldText + " " + newText)

	if allReferenceLike(changed) && containsAny(combined, crossReferenceWords) {
		return false
	}

	return containsAny(combined, opsNumericTerms) && timeOrUnitPattern.MatchString(combined)
}

// SeverityFor derives severity from the change labels and texts
func SeverityFor(changeType model.ChangeType, subtype, oldText, newText string) model.Severity {
	if changeType == model.ChangeNoise {
		return model.SeverityMinor
	}

	switch subtype {
	case model.SubtypeNumericLimit, model.SubtypeApplicability:
		return model.SeverityCritical
	case model.SubtypeRuleRemoved, model.SubtypeRuleAdded:
		if IsSubstantiveRule(oldText + " " + newText) {
			return model.SeverityCritical
		}
		return model.SeverityModerate
	}

	if containsAny(strings.ToLower(oldText+" "+newText), obligationTerms) {
		return model.SeverityCritical
	}
	if changeType == model.ChangeTrue {
		return model.SeverityModerate
	}
	return model.SeverityMinor
}

func allReferenceLike(tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(tok, ".") || strings.Contains(tok, ":") {
			return false
		}
	}
	return true
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

func difference(a, b map[string]bool) []string {
	out := make([]string, 0)
	for k := range a {
		if !b[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
