package model

import (
	"sort"
	"strings"
)

// Change is one classified difference between two document versions
type Change struct {
	ID              string       `json:"change_id"`
	Type            ChangeType   `json:"type"`
	Subtype         string       `json:"subtype"`
	Severity        Severity     `json:"severity"`
	OldSection      string       `json:"old_section,omitempty"` // May be a comma-joined set after merging
	NewSection      string       `json:"new_section,omitempty"` // May be a comma-joined set after merging
	OldText         string       `json:"old_text"`
	NewText         string       `json:"new_text"`
	Topic           string       `json:"topic"`
	SimilarityScore float64      `json:"similarity_score"`
	NumericDelta    NumericDelta `json:"numeric_delta"`
}

// NumericDelta lists numeric tokens present on only one side
type NumericDelta struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// ChangeType is the coarse classification of a change
type ChangeType string

const (
	ChangeNoise         ChangeType = "NOISE"             // Extraction or OCR artifact
	ChangeStructural    ChangeType = "STRUCTURAL_CHANGE" // Moved, renamed or renumbered
	ChangeTrue          ChangeType = "TRUE_CHANGE"       // Substantive rule change
	ChangeSemanticMinor ChangeType = "SEMANTIC_MINOR"    // Wording change without rule impact
)

// Severity ranks the operational impact of a change
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityModerate Severity = "MODERATE"
	SeverityMinor    Severity = "MINOR"
)

// Rank orders severities: CRITICAL first, unknown values last
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityModerate:
		return 1
	case SeverityMinor:
		return 2
	default:
		return 3
	}
}

// Subtype values
const (
	SubtypeStructuralMove = "STRUCTURAL_MOVE"
	SubtypeOCRArtifact    = "OCR/Parsing artifact"
	SubtypeHeadingChange  = "Heading changes"
	SubtypeNumericLimit   = "Numeric limit changed"
	SubtypeApplicability  = "Applicability changed"
	SubtypeOperational    = "Operational requirement changed"
	SubtypeClarification  = "Clarification without rule change"
	SubtypeNonRegulatory  = "Non-regulatory text"
	SubtypeMovedRule      = "MOVED_RULE"
	SubtypeSplitMerge     = "Possible structural split/merge"
	SubtypeRuleRemoved    = "Rule removed"
	SubtypeRuleAdded      = "New rule added"
)

// OldSectionIDs splits OldSection into its member ids
func (c Change) OldSectionIDs() []string {
	return SplitSectionIDs(c.OldSection)
}

// NewSectionIDs splits NewSection into its member ids
func (c Change) NewSectionIDs() []string {
	return SplitSectionIDs(c.NewSection)
}

// SplitSectionIDs splits a comma-joined id set, dropping empty members
func SplitSectionIDs(joined string) []string {
	if joined == "" {
		return nil
	}
	var ids []string
	for _, id := range strings.Split(joined, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// JoinSectionIDs unions the given ids and renders them sorted and comma-joined
func JoinSectionIDs(ids ...string) string {
	seen := make(map[string]bool)
	var unique []string
	for _, joined := range ids {
		for _, id := range SplitSectionIDs(joined) {
			if !seen[id] {
				seen[id] = true
				unique = append(unique, id)
			}
		}
	}
	sort.Strings(unique)
	return strings.Join(unique, ",")
}
