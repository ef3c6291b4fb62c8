package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/regdiff/internal/pipeline"
	"github.com/ppiankov/regdiff/internal/watch"
)

var watchDebounce time.Duration

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <old> <new>",
	Short: "Re-run a comparison whenever either document changes",
	Long: `Watch compares two local documents once, then re-runs the comparison
and rewrites the reports every time either file is saved.

Example:
  regdiff watch car7-r1.txt car7-r2-draft.txt
  regdiff watch old.yaml new.yaml --debounce 2s --md draft-diff.md`,
	Args: cobra.ExactArgs(2),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (default: <output.dir>/regdiff-report.json)")
	watchCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (default: <output.dir>/regdiff-report.md)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "quiet period before re-running")
	watchCmd.Flags().String("format", "both", "report format when no path is given (json, md, both)")
	watchCmd.Flags().String("output-dir", ".", "directory for default report paths")

	addCompareFlags(watchCmd.Flags())
}

func runWatch(cmd *cobra.Command, args []string) error {
	oldRef, newRef := args[0], args[1]
	for _, ref := range args {
		if pipeline.IsRemote(ref) {
			return fmt.Errorf("watch needs local files, got %s", ref)
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cfg.Logging, os.Stderr)
	p := newPipeline(&cfg)

	jsonPath, mdPath := reportPaths(cfg.Output, reportBase, outJSON, outMD)
	if err := ensureDirs(jsonPath, mdPath); err != nil {
		return err
	}

	compare := func(ctx context.Context) {
		report, err := p.Compare(ctx, oldRef, newRef)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ compare failed: %v\n", err)
			return
		}
		if err := p.RenderReport(report, jsonPath, mdPath, cfg.Output.Verbose); err != nil {
			fmt.Fprintf(os.Stderr, "✗ render failed: %v\n", err)
		}
	}

	w, err := watch.New([]string{oldRef, newRef}, watchDebounce, logger)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	compare(ctx)
	fmt.Fprintf(os.Stderr, "\nWatching %s and %s (Ctrl-C to stop)\n", oldRef, newRef)

	err = w.Run(ctx, func(ctx context.Context, changed []string) {
		fmt.Fprintf(os.Stderr, "\n[%s] changed: %s\n", time.Now().Format("15:04:05"), strings.Join(changed, ", "))
		compare(ctx)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
