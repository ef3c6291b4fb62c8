// Package extract turns document text into addressable sections.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/regdiff/internal/model"
)

// ErrUnsupportedFormat is returned for inputs that need an external text extractor
var ErrUnsupportedFormat = errors.New("unsupported document format")

const maxHeadingTitleRunes = 220

var (
	// Numbered section headers, e.g. 12, 12.1, 3.4.2
	sectionPattern = regexp.MustCompile(`^(\d+(?:\.\d+)*)(?:[.)])?\s+(.+)$`)

	// Unnumbered all-caps headers, e.g. INTRODUCTION
	allCapsPattern = regexp.MustCompile(`^[A-Z][A-Z0-9\s,\-:/()&']{4,}$`)

	tocLinePattern  = regexp.MustCompile(`^\d+(?:\.\d+)*\s+.+\.{3,}\s+\d+\s*$`)
	pageOnlyPattern = regexp.MustCompile(`(?i)^page\s+\d+\s*$`)
	letterPattern   = regexp.MustCompile(`[A-Za-z]`)
	spacePattern    = regexp.MustCompile(`\s+`)
)

// ParseSections splits text into sections at numbered and all-caps headings.
// Text before the first heading is dropped. All-caps headings get synthetic
// ids H1, H2, ... Each section carries its meaning digest and document order.
func ParseSections(text string) model.Sections {
	sections := make(model.Sections)

	var (
		currentID      string
		currentHeading string
		body           []string
		synthetic      int
		position       int
	)

	flush := func() {
		if currentID == "" || currentHeading == "" {
			return
		}
		joined := strings.TrimSpace(strings.Join(body, " "))
		sec := model.Section{
			ID:       currentID,
			Heading:  currentHeading,
			Body:     joined,
			Meaning:  BuildMeaningBlock(currentHeading, joined),
			Position: position,
		}
		// A repeated id overwrites the content but keeps its first position
		if prev, ok := sections[currentID]; ok {
			sec.Position = prev.Position
		} else {
			position++
		}
		sections[currentID] = sec
	}

	for _, raw := range strings.Split(text, "\n") {
		line := normalizeLine(raw)
		if isNoiseLine(line) {
			continue
		}

		var nextID, nextHeading string
		if m := sectionPattern.FindStringSubmatch(line); m != nil {
			title := strings.TrimSpace(m[2])
			if looksLikeHeadingTitle(title) {
				nextID = m[1]
				nextHeading = strings.TrimRight(title, " .")
			}
		}
		if nextID == "" && allCapsPattern.MatchString(line) {
			synthetic++
			nextID = fmt.Sprintf("H%d", synthetic)
			nextHeading = strings.TrimRight(line, " .")
		}

		if nextID != "" {
			flush()
			currentID = nextID
			currentHeading = nextHeading
			body = nil
			continue
		}

		if currentID != "" {
			body = append(body, line)
		}
	}
	flush()

	return sections
}

func normalizeLine(line string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(line, " "))
}

// isNoiseLine reports page markers, TOC entries and running headers
func isNoiseLine(line string) bool {
	if line == "" {
		return true
	}

	low := strings.ToLower(line)
	switch {
	case pageOnlyPattern.MatchString(line):
		return true
	case tocLinePattern.MatchString(line):
		return true
	case strings.Contains(low, "table of contents"):
		return true
	case strings.HasPrefix(low, "dgca") &&
		(strings.Contains(low, "car") || strings.Contains(low, "issue") || strings.Contains(low, "dated")):
		return true
	}
	return false
}

// looksLikeHeadingTitle rejects numeric table rows and long fragments
func looksLikeHeadingTitle(title string) bool {
	if title == "" || !letterPattern.MatchString(title) {
		return false
	}
	return utf8.RuneCountInString(title) <= maxHeadingTitleRunes
}
