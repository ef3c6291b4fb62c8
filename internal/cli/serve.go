package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ppiankov/regdiff/internal/metrics"
	"github.com/ppiankov/regdiff/internal/pipeline"
	"github.com/ppiankov/regdiff/internal/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve comparisons over HTTP",
	Long: `Serve exposes the comparison engine as a JSON API:
- POST /v1/compare  compare two pre-segmented section lists
- GET  /healthz     liveness probe
- GET  /metrics     Prometheus metrics

Example:
  regdiff serve
  regdiff serve --addr 127.0.0.1:9090 --include-non-true`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "listen address")

	addCompareFlags(serveCmd.Flags())
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cfg.Logging, os.Stderr)
	recorder := metrics.NewRecorder(metrics.WithProcessCollectors())
	p := pipeline.NewPipeline(&cfg, pipeline.WithLogger(logger), pipeline.WithRecorder(recorder))

	fmt.Fprintf(cmd.ErrOrStderr(), "regdiff %s listening on %s\n", version, cfg.Server.Addr)
	return server.New(p, recorder, cfg.Server, logger).Run(ctx)
}
