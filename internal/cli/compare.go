package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/regdiff/internal/metrics"
	"github.com/ppiankov/regdiff/internal/model"
	"github.com/ppiankov/regdiff/internal/pipeline"
)

const reportBase = "regdiff-report"

var (
	outJSON        string
	outMD          string
	metricsOut     string
	compareTimeout time.Duration
)

// compareCmd represents the compare command
var compareCmd = &cobra.Command{
	Use:   "compare <old> <new>",
	Short: "Compare two versions of a regulatory document",
	Long: `Compare segments both versions into numbered sections, aligns them and
reports every difference with a type, subtype and severity:
- TRUE_CHANGE: a rule changed (limits, obligations, scope)
- STRUCTURAL_CHANGE: sections moved, split or renumbered
- EDITORIAL_CHANGE: same rule, different wording
- NOISE: extraction artifacts such as page headers

Each reference may be a file path (.txt, .html, .json, .yaml) or an http(s) URL.

Example:
  regdiff compare car7-r1.txt car7-r2.txt
  regdiff compare old.html https://example.org/circular.html --md report.md
  regdiff compare old.txt new.txt --include-non-true --json changes.json`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	// Output flags
	compareCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (default: <output.dir>/regdiff-report.json)")
	compareCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (default: <output.dir>/regdiff-report.md)")
	compareCmd.Flags().StringVar(&metricsOut, "metrics-out", "", "write Prometheus textfile metrics to this path")
	compareCmd.Flags().DurationVar(&compareTimeout, "timeout", 2*time.Minute, "overall comparison timeout")
	compareCmd.Flags().String("format", "both", "report format when no path is given (json, md, both)")
	compareCmd.Flags().String("output-dir", ".", "directory for default report paths")

	addCompareFlags(compareCmd.Flags())
}

func runCompare(cmd *cobra.Command, args []string) error {
	oldRef, newRef := args[0], args[1]

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), compareTimeout)
	defer cancel()

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Comparing: %s -> %s\n", oldRef, newRef)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", compareTimeout)
		fmt.Fprintf(os.Stderr, "Embeddings: %v\n", cfg.Embedding.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	var recorder *metrics.Recorder
	if metricsOut != "" {
		recorder = metrics.NewRecorder()
	}
	p := newPipeline(&cfg, pipeline.WithRecorder(recorder))

	report, err := p.Compare(ctx, oldRef, newRef)
	if err != nil {
		return fmt.Errorf("compare failed: %w", err)
	}

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "✓ Segmented %d old and %d new sections\n", report.Old.Sections, report.New.Sections)
		fmt.Fprintf(os.Stderr, "✓ Matched %d sections (%s similarity)\n", report.Matching.Matched, report.Matching.SimilarityMode)
		fmt.Fprintf(os.Stderr, "✓ Calculated change pressure: %d/100\n", report.Score.Index)
		if report.LLM != nil && report.LLM.Enabled {
			fmt.Fprintf(os.Stderr, "✓ Generated LLM summary using %s/%s\n", report.LLM.Provider, report.LLM.Model)
		}
		fmt.Fprintln(os.Stderr)
	}

	jsonPath, mdPath := reportPaths(cfg.Output, reportBase, outJSON, outMD)
	if err := ensureDirs(jsonPath, mdPath); err != nil {
		return err
	}
	if err := p.RenderReport(report, jsonPath, mdPath, cfg.Output.Verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	if recorder != nil {
		if err := recorder.WriteTextfile(metricsOut); err != nil {
			return err
		}
	}
	return nil
}

// newPipeline builds a pipeline logging to stderr per cfg.Logging
func newPipeline(cfg *model.Config, opts ...pipeline.Option) *pipeline.Pipeline {
	logger := newLogger(cfg.Logging, os.Stderr)
	return pipeline.NewPipeline(cfg, append([]pipeline.Option{pipeline.WithLogger(logger)}, opts...)...)
}

// reportPaths resolves output paths. Explicit paths win; otherwise the
// configured format decides which of <dir>/<base>.json and .md are written.
func reportPaths(out model.OutputConfig, base, jsonFlag, mdFlag string) (jsonPath, mdPath string) {
	if jsonFlag != "" || mdFlag != "" {
		return jsonFlag, mdFlag
	}

	dir := out.Dir
	if dir == "" {
		dir = "."
	}
	if out.Format == "json" || out.Format == "both" {
		jsonPath = filepath.Join(dir, base+".json")
	}
	if out.Format == "md" || out.Format == "both" {
		mdPath = filepath.Join(dir, base+".md")
	}
	return jsonPath, mdPath
}

func ensureDirs(paths ...string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	return nil
}
