package model

import (
	"sort"
	"strings"
)

// Section is one addressable unit of a document version
type Section struct {
	ID       string `json:"section" yaml:"section"`          // Identifier, equal to the map key
	Heading  string `json:"heading" yaml:"heading"`          // Section title
	Body     string `json:"body" yaml:"body"`                // Full cleaned text
	Meaning  string `json:"meaning,omitempty" yaml:"meaning"` // Condensed digest (optional)
	Position int    `json:"position" yaml:"position"`        // Document order, used for enumeration
}

// ComparisonText returns the text used for comparison: meaning, else body, else heading
func (s Section) ComparisonText() string {
	if t := strings.TrimSpace(s.Meaning); t != "" {
		return t
	}
	if t := strings.TrimSpace(s.Body); t != "" {
		return t
	}
	return strings.TrimSpace(s.Heading)
}

// Sections maps section identifier to section content
type Sections map[string]Section

// OrderedIDs returns the section ids sorted by document position, then id
func (s Sections) OrderedIDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.SliceStable(ids, func(i, j int) bool {
		pi, pj := s[ids[i]].Position, s[ids[j]].Position
		if pi != pj {
			return pi < pj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Stamped returns a copy in which every section's ID equals its key.
// The receiver is left untouched.
func (s Sections) Stamped() Sections {
	out := make(Sections, len(s))
	for id, sec := range s {
		sec.ID = id
		out[id] = sec
	}
	return out
}
