package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/regdiff/internal/model"
)

// ErrEmbeddingsUnsupported is returned by providers without an embeddings API
var ErrEmbeddingsUnsupported = errors.New("provider does not support embeddings")

const systemPrompt = "You summarize regulatory change reports. You describe only the listed changes and cite sections exactly as given."

// maxPromptChanges caps how many changes are rendered into the prompt
const maxPromptChanges = 20

var citationPattern = regexp.MustCompile(`\[S:([^\]\s]+)\]`)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Summarize generates a summary of the report with strict evidence mode
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)

	// Embed returns one vector per input text
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// SummarizeRequest contains the input for LLM summarization
type SummarizeRequest struct {
	// Report is the comparison report to summarize
	Report model.Report

	// SectionIDs is the STRICT allowlist of sections the LLM can cite as [S:id]
	SectionIDs []string

	// Prompt is an optional custom prompt (if empty, use default)
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// SummarizeResponse contains the LLM's summary output
type SummarizeResponse struct {
	// Summary is the generated summary text
	Summary string

	// CitedSections are the section ids the LLM actually cited
	CitedSections []string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific). Also the embedding model for Embed.
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// StrictEvidence enforces the section allowlist
	StrictEvidence bool

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:       "", // Disabled by default
		Model:          "",
		Timeout:        30,
		StrictEvidence: true,
		MaxTokens:      1000,
	}
}

// BuildPrompt constructs the default prompt for summarization with strict evidence mode
func BuildPrompt(report model.Report, sectionIDs []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are summarizing a comparison between two versions of a regulatory document. The changes below were detected and classified deterministically; do not reclassify them.

CRITICAL RULES:
1. You MUST ONLY cite sections from this allowed list, written as [S:<id>]:
%s

2. DO NOT infer, speculate, or mention sections or rules beyond this list.
3. Describe what changed for operators, not whether the change is good.
4. If a change's effect is unclear from the text, say so explicitly.

Report Summary:
- Old document: %s
- New document: %s
- Change Pressure: %d/100 (%s)
- Changes Reported: %d

Changes:
`, joinSections(sectionIDs), report.Old.Ref, report.New.Ref, report.Score.Index, report.Score.Level, len(report.Changes))

	descriptions := make(map[string]string, len(report.Summaries))
	for _, s := range report.Summaries {
		descriptions[s.ChangeID] = s.Description
	}

	for i, ch := range report.Changes {
		if i >= maxPromptChanges {
			fmt.Fprintf(&b, "... and %d more changes\n", len(report.Changes)-maxPromptChanges)
			break
		}
		fmt.Fprintf(&b, "- %s %s/%s [%s] %s", ch.ID, ch.Type, ch.Subtype, ch.Severity, citeSections(ch))
		if d := descriptions[ch.ID]; d != "" {
			fmt.Fprintf(&b, ": %s", d)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nKey Signals:\n")
	for i, signal := range report.Score.Signals {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&b, "- %s: %s\n", signal.Type, signal.Description)
	}

	b.WriteString("\nProvide a 3-5 sentence summary of the operational impact, citing sections as [S:<id>].")

	return b.String()
}

// SectionIDs returns the distinct section ids referenced by the report's changes
func SectionIDs(report model.Report) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, ch := range report.Changes {
		for _, id := range append(ch.OldSectionIDs(), ch.NewSectionIDs()...) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// verifyCitations extracts [S:id] citations and, in strict mode, rejects any
// id outside the allowlist
func verifyCitations(summary string, allowed []string, strict bool) ([]string, error) {
	cited := extractCitations(summary)
	if !strict {
		return cited, nil
	}
	for _, id := range cited {
		if !contains(allowed, id) {
			return nil, fmt.Errorf("CITATION LEAK: LLM cited section not in change list: %s", id)
		}
	}
	return cited, nil
}

// Helper functions

func citeSections(ch model.Change) string {
	var parts []string
	for _, id := range ch.OldSectionIDs() {
		parts = append(parts, "[S:"+id+"]")
	}
	for _, id := range ch.NewSectionIDs() {
		if !contains(ch.OldSectionIDs(), id) {
			parts = append(parts, "[S:"+id+"]")
		}
	}
	return strings.Join(parts, " ")
}

func joinSections(ids []string) string {
	if len(ids) == 0 {
		return "(No sections changed)"
	}
	var b strings.Builder
	for i, id := range ids {
		if i >= 40 { // Limit to avoid token bloat
			fmt.Fprintf(&b, "\n... and %d more sections", len(ids)-40)
			break
		}
		fmt.Fprintf(&b, "\n- [S:%s]", id)
	}
	return b.String()
}

// extractCitations returns the distinct cited section ids in order
func extractCitations(text string) []string {
	seen := make(map[string]bool)
	var unique []string
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			unique = append(unique, m[1])
		}
	}
	return unique
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func resolveMaxTokens(req, cfg int) int {
	if req > 0 {
		return req
	}
	if cfg > 0 {
		return cfg
	}
	return 1000
}
