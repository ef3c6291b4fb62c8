package extract

import (
	"regexp"
	"strings"
)

const (
	maxMeaningSentences = 8
	maxMeaningRunes     = 1200
)

var (
	modalPattern      = regexp.MustCompile(`(?i)\b(shall|must|may|required|not exceed|maximum|minimum)\b`)
	quantityPattern   = regexp.MustCompile(`(?i)\b\d+(?::\d{2})?(?:\.\d+)?\s*(hours?|hrs?|days?|landings?|minutes?|mins?)?\b`)
	sentenceEndSpaces = regexp.MustCompile(`[.!?]\s+`)
)

// BuildMeaningBlock condenses a section to its obligation and quantity
// sentences, prefixed by the heading. Without any such sentence it returns
// the cleaned text, truncated.
func BuildMeaningBlock(heading, body string) string {
	cleaned := cleanText(body)
	if h := strings.TrimSpace(heading); h != "" {
		cleaned = strings.TrimSpace(h + ". " + cleaned)
	}

	var important []string
	for _, sentence := range splitSentences(cleaned) {
		if modalPattern.MatchString(sentence) || quantityPattern.MatchString(sentence) {
			important = append(important, sentence)
		}
	}

	if len(important) == 0 {
		return truncateRunes(cleaned, maxMeaningRunes)
	}
	if len(important) > maxMeaningSentences {
		important = important[:maxMeaningSentences]
	}
	return strings.Join(important, " ")
}

// cleanText drops TOC, page and running-header lines and joins the rest
func cleanText(text string) string {
	var cleaned []string
	for _, line := range strings.Split(text, "\n") {
		l := strings.TrimSpace(line)
		if l == "" {
			continue
		}

		low := strings.ToLower(l)
		if strings.Contains(low, "table of contents") ||
			strings.HasPrefix(low, "page ") ||
			(strings.HasPrefix(low, "dgca") && (strings.Contains(low, "car") || strings.Contains(low, "issue"))) {
			continue
		}

		cleaned = append(cleaned, l)
	}
	return strings.Join(cleaned, " ")
}

// splitSentences splits after ., ! or ? followed by whitespace
func splitSentences(text string) []string {
	var sentences []string

	rest := text
	for {
		loc := sentenceEndSpaces.FindStringIndex(rest)
		if loc == nil {
			break
		}
		if s := strings.TrimSpace(rest[:loc[0]+1]); s != "" {
			sentences = append(sentences, s)
		}
		rest = rest[loc[1]:]
	}
	if s := strings.TrimSpace(rest); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
