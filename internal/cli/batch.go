package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/regdiff/internal/model"
	"github.com/ppiankov/regdiff/internal/pipeline"
	"github.com/ppiankov/regdiff/internal/worker"
)

var batchTimeout time.Duration

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <manifest>",
	Short: "Compare many document pairs from a manifest in parallel",
	Long: `Batch processes a manifest of document pairs concurrently:
- One "old new" pair per line, separated by spaces or a tab
- Blank lines and lines starting with # are ignored
- Each pair produces <output-dir>/<old>__<new>.json and .md

Example:
  regdiff batch circulars.txt
  regdiff batch circulars.txt --concurrency 8 --output-dir ./reports
  regdiff batch circulars.txt --timeout 30m --no-robots`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	d := model.DefaultConfig()

	// Concurrency flags
	batchCmd.Flags().Int("concurrency", d.Concurrency.BatchWorkers, "number of comparisons run in parallel")
	batchCmd.Flags().String("output-dir", d.Output.Dir, "output directory for reports")
	batchCmd.Flags().String("format", d.Output.Format, "report format (json, md, both)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")

	addCompareFlags(batchCmd.Flags())
}

// pipelineComparer adapts Pipeline.Compare to worker.Comparer
type pipelineComparer struct {
	p *pipeline.Pipeline
}

func (c pipelineComparer) Compare(ctx context.Context, oldRef, newRef string) (*model.Report, error) {
	return c.p.Compare(ctx, oldRef, newRef)
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "===========================================================\n")
	fmt.Fprintf(stderr, "  regdiff Batch Processing\n")
	fmt.Fprintf(stderr, "===========================================================\n")
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "  Manifest:     %s\n", file)
	fmt.Fprintf(stderr, "  Workers:      %d\n", cfg.Concurrency.BatchWorkers)
	fmt.Fprintf(stderr, "  Output dir:   %s\n", cfg.Output.Dir)
	fmt.Fprintf(stderr, "  Timeout:      %v\n", batchTimeout)
	if cfg.LLM.Provider != "" {
		fmt.Fprintf(stderr, "  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	}
	fmt.Fprintf(stderr, "\n")

	// Create output directory
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p := newPipeline(&cfg, pipeline.WithWarnings(stderr))
	processor := worker.NewBatchProcessor(pipelineComparer{p: p}, cfg.Concurrency.BatchWorkers)

	fmt.Fprintf(stderr, "Comparing pairs with %d workers...\n\n", cfg.Concurrency.BatchWorkers)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	failures := writeBatchReports(stderr, p.Renderer(), cfg.Output, results)

	// Summary
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "===========================================================\n")
	fmt.Fprintf(stderr, "  Batch Complete\n")
	fmt.Fprintf(stderr, "===========================================================\n")
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "  Total:     %d pairs\n", len(results))
	fmt.Fprintf(stderr, "  Success:   %d\n", len(results)-failures)
	fmt.Fprintf(stderr, "  Failures:  %d\n", failures)
	fmt.Fprintf(stderr, "  Output:    %s\n", cfg.Output.Dir)
	fmt.Fprintf(stderr, "\n")

	if failures > 0 {
		return fmt.Errorf("%d of %d comparisons failed", failures, len(results))
	}
	return nil
}

// writeBatchReports renders each successful result under its pair slug and
// returns the number of failed pairs
func writeBatchReports(w io.Writer, renderer *pipeline.Renderer, out model.OutputConfig, results []*worker.CompareResult) int {
	failures := 0
	for _, result := range results {
		pair := result.Pair
		if result.Error != nil {
			failures++
			fmt.Fprintf(w, "✗ line %d %s -> %s: %v\n", pair.Line, pair.Old, pair.New, result.Error)
			continue
		}

		jsonPath, mdPath := reportPaths(out, pair.Slug(), "", "")
		if jsonPath != "" {
			if err := renderer.RenderJSON(result.Report, jsonPath); err != nil {
				failures++
				fmt.Fprintf(w, "✗ %s: failed to write JSON: %v\n", pair.Slug(), err)
				continue
			}
		}
		if mdPath != "" {
			if err := renderer.RenderMarkdown(result.Report, mdPath); err != nil {
				failures++
				fmt.Fprintf(w, "✗ %s: failed to write Markdown: %v\n", pair.Slug(), err)
				continue
			}
		}

		fmt.Fprintf(w, "✓ %s (%d changes, pressure %d/100)\n", pair.Slug(), len(result.Report.Changes), result.Report.Score.Index)
	}
	return failures
}
