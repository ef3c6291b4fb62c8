package model

import "time"

// Report is the complete regdiff comparison report
type Report struct {
	RunID       string    `json:"run_id"`       // Unique id of this comparison run
	GeneratedAt time.Time `json:"generated_at"` // When the comparison ran

	Old DocumentMeta `json:"old"` // Earlier document version
	New DocumentMeta `json:"new"` // Later document version

	Changes       []Change        `json:"changes"`                  // Visible changes, severity-then-id ordered
	Summaries     []ChangeSummary `json:"summaries,omitempty"`      // Templated description per visible change
	ChangesDigest string          `json:"changes_digest,omitempty"` // Content id of the change list

	Matching   MatchStats      `json:"matching"`   // Section alignment statistics
	Validation ValidationStats `json:"validation"` // Refinement pass statistics

	Score      Score      `json:"score"`      // Change pressure and signal breakdown
	Principles Principles `json:"principles"` // Core principles applied

	LLM *LLMSummary `json:"llm,omitempty"` // Optional LLM narrative (separate, never affects classification)
}

// DocumentMeta describes one loaded document version
type DocumentMeta struct {
	Ref      string     `json:"ref"`                  // File path or URL
	Format   string     `json:"format"`               // Adapter that parsed it
	Sections int        `json:"sections"`             // Number of sections
	Digest   string     `json:"digest,omitempty"`     // Content id of the parsed sections
	Fetch    *FetchMeta `json:"fetch_meta,omitempty"` // HTTP metadata for remote inputs
}

// FetchMeta contains HTTP metadata from fetching a remote document
type FetchMeta struct {
	StatusCode   int    `json:"status_code"`
	ContentType  string `json:"content_type,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
	ETag         string `json:"etag,omitempty"`
}

// ChangeSummary is the plain-language description of one change
type ChangeSummary struct {
	ChangeID    string `json:"change_id"`
	Label       string `json:"label"`       // Added, Removed or Modified
	Description string `json:"description"` // Templated sentence
}

// MatchStats summarizes section alignment
type MatchStats struct {
	OldSections     int    `json:"old_sections"`
	NewSections     int    `json:"new_sections"`
	Matched         int    `json:"matched"`
	HeadingFallback int    `json:"heading_fallback"` // Matches accepted by the heading-only pass
	UnmatchedOld    int    `json:"unmatched_old"`
	UnmatchedNew    int    `json:"unmatched_new"`
	SimilarityMode  string `json:"similarity_mode"` // "embedding" or "lexical"
}

// ValidationStats counts what each refinement pass did
type ValidationStats struct {
	Classified            int  `json:"classified"`             // Records entering refinement
	OperationalDowngrades int  `json:"operational_downgrades"` // TRUE_CHANGE records downgraded by the impact pass
	Merged                int  `json:"merged"`                 // Records folded into an earlier record by topic
	CapApplied            bool `json:"cap_applied"`            // Whether the volume cap triggered
	Capped                int  `json:"capped"`                 // TRUE_CHANGE records downgraded by the cap
	DroppedNoise          int  `json:"dropped_noise"`
	DroppedNonTrue        int  `json:"dropped_non_true"`
	Visible               int  `json:"visible"`
}

// RunStats bundles the statistics the scorer reads
type RunStats struct {
	Matching   MatchStats
	Validation ValidationStats
}

// Score represents the transparent report breakdown
type Score struct {
	Index   int            `json:"index"`   // Change pressure (0-100)
	Level   string         `json:"level"`   // "none", "low", "medium", "high"
	Counts  map[string]int `json:"counts"`  // Visible changes per type and per severity
	Signals []Signal       `json:"signals"` // Diagnostic signals with transparent data
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType     `json:"type"`           // Signal classification
	Severity    SignalSeverity `json:"severity"`       // info, warning, critical
	Description string         `json:"description"`    // Human-readable description
	Data        map[string]any `json:"data,omitempty"` // Transparent scoring data (formulas, inputs)
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalChangePressure SignalType = "change_pressure" // Weighted severity index
	SignalSeverityMix    SignalType = "severity_mix"    // Visible changes per severity
	SignalMatchCoverage  SignalType = "match_coverage"  // Share of sections aligned
	SignalVolumeCap      SignalType = "volume_cap"      // TRUE_CHANGE cap triggered
	SignalTopicMerge     SignalType = "topic_merge"     // Records merged by topic
	SignalDowngrade      SignalType = "downgrade"       // Impact pass downgrades
	SignalSimilarityMode SignalType = "similarity_mode" // Embedding or lexical scoring
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SignalInfo     SignalSeverity = "info"
	SignalWarning  SignalSeverity = "warning"
	SignalCritical SignalSeverity = "critical"
)

// Principles documents which core principles were applied
type Principles struct {
	Deterministic     bool `json:"deterministic"`      // Same inputs give the same change list
	Transparent       bool `json:"transparent"`        // All scoring explainable
	NarrativeSeparate bool `json:"narrative_separate"` // LLM output never alters classification
}

// DefaultPrinciples returns the standard regdiff principles
func DefaultPrinciples() Principles {
	return Principles{
		Deterministic:     true,
		Transparent:       true,
		NarrativeSeparate: true,
	}
}

// LLMSummary contains optional LLM-generated narrative
// CRITICAL: This never affects classification and is clearly separated
type LLMSummary struct {
	Enabled        bool     `json:"enabled"`
	Provider       string   `json:"provider,omitempty"`   // openai, anthropic, ollama
	Model          string   `json:"model,omitempty"`      // Model name
	StrictEvidence bool     `json:"strict_evidence"`      // Whether section citation enforcement was enabled
	SummaryMD      string   `json:"summary_md,omitempty"` // Markdown summary
	Warnings       []string `json:"warnings,omitempty"`   // Any issues (e.g., citation leaks detected)
}
