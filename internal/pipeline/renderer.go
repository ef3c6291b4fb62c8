package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/regdiff/internal/model"
	"github.com/ppiankov/regdiff/internal/summary"
)

const maxExcerptRunes = 400

// Renderer writes reports as JSON, Markdown and a console summary
type Renderer struct {
	includeFooter bool
	out           io.Writer
}

// NewRenderer creates a renderer printing its summary to stdout
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter, out: os.Stdout}
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RenderMarkdown writes the report as Markdown
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	if err := os.WriteFile(path, []byte(r.Markdown(report)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RenderLLMMarkdown writes the separate LLM narrative file
func (r *Renderer) RenderLLMMarkdown(content string, path string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Markdown renders the report body
func (r *Renderer) Markdown(report *model.Report) string {
	var sb strings.Builder

	sb.WriteString("# Regulatory Change Report\n\n")
	fmt.Fprintf(&sb, "- **Old:** %s\n", describeDocument(report.Old))
	fmt.Fprintf(&sb, "- **New:** %s\n", describeDocument(report.New))
	fmt.Fprintf(&sb, "- **Run:** `%s` at %s\n", report.RunID, report.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "- **Change Pressure:** %d/100 (%s)\n\n", report.Score.Index, report.Score.Level)

	sb.WriteString("## Changes\n\n")
	if len(report.Changes) == 0 {
		sb.WriteString("No meaningful changes detected.\n\n")
	} else {
		sb.WriteString("| ID | Type | Subtype | Severity | Old | New | Similarity |\n")
		sb.WriteString("|----|------|---------|----------|-----|-----|------------|\n")
		for _, ch := range report.Changes {
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %s | %.3f |\n",
				ch.ID, ch.Type, cell(ch.Subtype), ch.Severity,
				cell(orDash(ch.OldSection)), cell(orDash(ch.NewSection)), ch.SimilarityScore)
		}
		sb.WriteString("\n")

		sb.WriteString("## Details\n\n")
		descriptions := make(map[string]model.ChangeSummary, len(report.Summaries))
		for _, s := range report.Summaries {
			descriptions[s.ChangeID] = s
		}
		for _, ch := range report.Changes {
			r.writeDetail(&sb, ch, descriptions[ch.ID])
		}
	}

	if len(report.Score.Signals) > 0 {
		sb.WriteString("## Signals\n\n")
		for _, sig := range report.Score.Signals {
			fmt.Fprintf(&sb, "- **%s** (%s): %s\n", sig.Type, sig.Severity, sig.Description)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Statistics\n\n")
	m, v := report.Matching, report.Validation
	fmt.Fprintf(&sb, "- Sections: %d old, %d new, %d matched (%d by heading)\n", m.OldSections, m.NewSections, m.Matched, m.HeadingFallback)
	fmt.Fprintf(&sb, "- Unmatched: %d old, %d new\n", m.UnmatchedOld, m.UnmatchedNew)
	fmt.Fprintf(&sb, "- Similarity: %s\n", m.SimilarityMode)
	fmt.Fprintf(&sb, "- Refinement: %d classified, %d downgraded, %d merged, %d capped, %d noise dropped, %d non-true dropped\n",
		v.Classified, v.OperationalDowngrades, v.Merged, v.Capped, v.DroppedNoise, v.DroppedNonTrue)
	if report.Old.Digest != "" || report.New.Digest != "" || report.ChangesDigest != "" {
		fmt.Fprintf(&sb, "- Digests: old `%s`, new `%s`, changes `%s`\n", orDash(report.Old.Digest), orDash(report.New.Digest), orDash(report.ChangesDigest))
	}
	sb.WriteString("\n")

	if r.includeFooter {
		sb.WriteString("---\n\n")
		sb.WriteString("_Generated by regdiff. Classification is deterministic and rule-based; ")
		sb.WriteString("any LLM narrative is written to a separate file and never affects it._\n")
	}

	return sb.String()
}

func (r *Renderer) writeDetail(sb *strings.Builder, ch model.Change, desc model.ChangeSummary) {
	label := desc.Label
	if label == "" {
		label = summary.DisplayLabel(ch.Subtype)
	}
	fmt.Fprintf(sb, "### %s: %s (%s)\n\n", ch.ID, label, sectionRef(ch))

	if desc.Description != "" {
		sb.WriteString(summary.Highlight(desc.Description))
		sb.WriteString("\n\n")
	}

	fmt.Fprintf(sb, "- **Classification:** %s / %s, %s\n", ch.Type, ch.Subtype, ch.Severity)
	if ch.Topic != "" {
		fmt.Fprintf(sb, "- **Topic:** %s\n", ch.Topic)
	}
	if len(ch.NumericDelta.Removed) > 0 || len(ch.NumericDelta.Added) > 0 {
		fmt.Fprintf(sb, "- **Numbers:** removed [%s], added [%s]\n",
			strings.Join(ch.NumericDelta.Removed, ", "), strings.Join(ch.NumericDelta.Added, ", "))
	}
	if ch.OldText != "" {
		fmt.Fprintf(sb, "- **Old text:** %s\n", excerpt(ch.OldText))
	}
	if ch.NewText != "" {
		fmt.Fprintf(sb, "- **New text:** %s\n", excerpt(ch.NewText))
	}
	sb.WriteString("\n")
}

// RenderSummary prints a short console summary
func (r *Renderer) RenderSummary(report *model.Report) {
	fmt.Fprintf(r.out, "\n%s -> %s\n", report.Old.Ref, report.New.Ref)
	fmt.Fprintf(r.out, "Change Pressure: %d/100 (%s)\n", report.Score.Index, report.Score.Level)

	if len(report.Changes) == 0 {
		fmt.Fprintln(r.out, "No meaningful changes detected.")
		return
	}

	c := report.Score.Counts
	fmt.Fprintf(r.out, "Changes: %d (critical %d, moderate %d, minor %d)\n", len(report.Changes),
		c[string(model.SeverityCritical)], c[string(model.SeverityModerate)], c[string(model.SeverityMinor)])
	for _, ch := range report.Changes {
		fmt.Fprintf(r.out, "  %s  %-8s  %-17s  %s  [%s]\n", ch.ID, ch.Severity, ch.Type, ch.Subtype, sectionRef(ch))
	}
}

func describeDocument(d model.DocumentMeta) string {
	s := fmt.Sprintf("%s (%s, %d sections)", d.Ref, d.Format, d.Sections)
	if d.Fetch != nil && d.Fetch.LastModified != "" {
		s += ", last modified " + d.Fetch.LastModified
	}
	return s
}

func sectionRef(ch model.Change) string {
	switch {
	case ch.OldSection == "":
		return ch.NewSection
	case ch.NewSection == "", ch.OldSection == ch.NewSection:
		return ch.OldSection
	default:
		return ch.OldSection + " -> " + ch.NewSection
	}
}

func excerpt(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) > maxExcerptRunes {
		text = string([]rune(text)[:maxExcerptRunes]) + "..."
	}
	return text
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
