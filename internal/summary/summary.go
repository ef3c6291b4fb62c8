// Package summary renders short, factual descriptions of classified changes.
package summary

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/regdiff/internal/model"
)

const maxSentenceWords = 30

var (
	spaceRe  = regexp.MustCompile(`\s+`)
	numberRe = regexp.MustCompile(`\b\d+(?::\d{2})?(?:\.\d+)?\b`)

	highlightRe = regexp.MustCompile(`(?i)(\b\d{1,2}:\d{2}\b(?:\s*(?:hours?|hrs?|minutes?|mins?|days?|landings?))?` +
		`|\b\d+(?:\.\d+)?\s*(?:hours?|hrs?|minutes?|mins?|days?|landings?)\b` +
		`|\b\d+(?:\.\d+)?\b` +
		`|\bnow\s+requires\b` +
		`|\bno\s+longer\b` +
		`|\bincrease(?:d|s)?\b` +
		`|\bdecrease(?:d|s)?\b` +
		`|\breduced\b` +
		`|\badded\b` +
		`|\bremoved\b` +
		`|\bextended\b` +
		`|\blimits?\b)`)
)

// Display labels
const (
	LabelAdded    = "Added"
	LabelRemoved  = "Removed"
	LabelModified = "Modified"
)

// DisplayLabel maps a subtype to Added, Removed or Modified
func DisplayLabel(subtype string) string {
	switch subtype {
	case model.SubtypeRuleAdded:
		return LabelAdded
	case model.SubtypeRuleRemoved:
		return LabelRemoved
	default:
		return LabelModified
	}
}

// Describe returns a one to three sentence description of what changed
func Describe(ch model.Change) string {
	oldText := clean(ch.OldText)
	newText := clean(ch.NewText)

	var s string
	switch ch.Subtype {
	case model.SubtypeNumericLimit:
		s = numericSummary(oldText, newText)
	case model.SubtypeApplicability:
		s = applicabilitySummary(oldText, newText)
	case model.SubtypeRuleAdded:
		s = addedSummary(newText)
	case model.SubtypeRuleRemoved:
		s = removedSummary(oldText)
	default:
		s = modifiedSummary(oldText, newText)
	}

	return sentenceCase(s)
}

// Highlight wraps numbers, units and change verbs in Markdown bold
func Highlight(summary string) string {
	return highlightRe.ReplaceAllString(strings.TrimSpace(summary), "**$1**")
}

func numericSummary(oldText, newText string) string {
	oldNums := numberRe.FindAllString(oldText, -1)
	newNums := numberRe.FindAllString(newText, -1)

	removed := missingFrom(oldNums, newNums)
	added := missingFrom(newNums, oldNums)
	ctx := contextLabel(oldText + " " + newText)

	switch {
	case len(removed) > 0 && len(added) > 0:
		return fmt.Sprintf("The %s has changed from %s to %s.", ctx, strings.Join(removed, ", "), strings.Join(added, ", "))
	case len(added) > 0:
		return fmt.Sprintf("The %s now includes %s, which was not specified earlier.", ctx, strings.Join(added, ", "))
	case len(removed) > 0:
		return fmt.Sprintf("The %s no longer includes %s.", ctx, strings.Join(removed, ", "))
	}
	return "Operational numeric limits were revised."
}

func applicabilitySummary(oldText, newText string) string {
	oldSent, newSent := firstSentence(oldText), firstSentence(newText)
	if oldSent != "" && newSent != "" {
		return fmt.Sprintf("Applicability has been revised. Earlier: %s Now: %s", oldSent, newSent)
	}
	return "Applicability scope has changed for operators or operations covered by this rule."
}

func addedSummary(newText string) string {
	if sent := firstSentence(newText); sent != "" {
		return "A new operational requirement has been added: " + sent
	}
	return "A new operational requirement has been added."
}

func removedSummary(oldText string) string {
	if sent := firstSentence(oldText); sent != "" {
		return "This operational requirement has been removed: " + sent
	}
	return "An existing operational requirement has been removed."
}

func modifiedSummary(oldText, newText string) string {
	ctx := contextLabel(oldText + " " + newText)
	oldSent, newSent := firstSentence(oldText), firstSentence(newText)
	if oldSent != "" && newSent != "" {
		return fmt.Sprintf("The %s has been revised. Earlier: %s Now: %s", ctx, oldSent, newSent)
	}
	return fmt.Sprintf("The %s has been revised with operational impact.", ctx)
}

// contextLabel names the regulated subject, most specific first
func contextLabel(text string) string {
	low := strings.ToLower(clean(text))

	switch {
	case strings.Contains(low, "flight duty") || strings.Contains(low, "fdp"):
		return "flight duty period"
	case strings.Contains(low, "flight time"):
		return "flight time"
	case strings.Contains(low, "rest") && strings.Contains(low, "standby"):
		return "rest after standby"
	case strings.Contains(low, "rest"):
		return "rest requirement"
	case strings.Contains(low, "standby"):
		return "standby limit"
	case strings.Contains(low, "applicable") || strings.Contains(low, "applicability") || strings.Contains(low, "operators"):
		return "applicability"
	}
	return "operational requirement"
}

// firstSentence returns the first sentence, cut to maxSentenceWords
func firstSentence(text string) string {
	text = clean(text)
	if text == "" {
		return ""
	}

	sent := text
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		next := i + utf8.RuneLen(r)
		if next < len(text) {
			if nr, _ := utf8.DecodeRuneInString(text[next:]); unicode.IsSpace(nr) {
				sent = text[:next]
				break
			}
		}
	}

	words := strings.Fields(sent)
	if len(words) > maxSentenceWords {
		sent = strings.Join(words[:maxSentenceWords], " ") + "..."
	}
	return sent
}

// missingFrom returns the distinct values of from absent in other, in order
func missingFrom(from, other []string) []string {
	present := make(map[string]bool, len(other))
	for _, v := range other {
		present[v] = true
	}

	var out []string
	seen := make(map[string]bool)
	for _, v := range from {
		if !present[v] && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func clean(text string) string {
	return spaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
}

func sentenceCase(text string) string {
	text = clean(text)
	r, size := utf8.DecodeRuneInString(text)
	if size == 0 {
		return text
	}
	return string(unicode.ToUpper(r)) + text[size:]
}
