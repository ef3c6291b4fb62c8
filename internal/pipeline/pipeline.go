package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/regdiff/internal/cache"
	"github.com/ppiankov/regdiff/internal/digest"
	"github.com/ppiankov/regdiff/internal/engine"
	"github.com/ppiankov/regdiff/internal/extract/adapters"
	"github.com/ppiankov/regdiff/internal/llm"
	"github.com/ppiankov/regdiff/internal/metrics"
	"github.com/ppiankov/regdiff/internal/model"
	"github.com/ppiankov/regdiff/internal/score"
	"github.com/ppiankov/regdiff/internal/summary"
	"github.com/ppiankov/regdiff/internal/util"
	"github.com/ppiankov/regdiff/internal/worker"
)

// Pipeline orchestrates the complete comparison: load, segment, compare,
// describe, score, narrate
type Pipeline struct {
	loader     *Loader
	engine     *engine.Engine
	scorer     *score.Scorer
	renderer   *Renderer
	summarizer *llm.Summarizer // Optional LLM summarizer (nil if disabled)
	recorder   *metrics.Recorder
	logger     *slog.Logger
	warnings   io.Writer
	config     *model.Config
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger passed down to the engine
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithRecorder records every comparison in r
func WithRecorder(r *metrics.Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithWarnings redirects "Warning:" lines, stderr by default
func WithWarnings(w io.Writer) Option {
	return func(p *Pipeline) {
		p.warnings = w
	}
}

// WithOutput redirects the console summary, stdout by default
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) {
		p.renderer.out = w
	}
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		scorer:   score.NewScorer(),
		renderer: NewRenderer(cfg.Output.IncludeFooter),
		logger:   slog.New(slog.DiscardHandler),
		warnings: os.Stderr,
		config:   cfg,
	}
	for _, opt := range opts {
		opt(p)
	}

	fetcher := NewFetcher(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes,
		cfg.HTTP.InsecureTLS, cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy)
	if cfg.HTTP.RespectRobots {
		proxy := util.NewProxyFunc(cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy)
		fetcher.WithRobots(util.NewRobotsChecker(cfg.HTTP.UserAgent, cfg.HTTP.Timeout, proxy))
	}
	p.loader = NewLoader(fetcher, adapters.NewRegistry())

	engineOpts := []engine.Option{engine.WithLogger(p.logger)}
	if cfg.Embedding.Enabled {
		embedCfg := llm.EmbeddingConfigFromModel(cfg.Embedding).WithProxy(cfg.HTTP)
		embedOpts := []llm.EmbedderOption{
			llm.WithLimiter(worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)),
			llm.WithBatchSize(cfg.Embedding.BatchSize),
		}
		if vc := newVectorCache(cfg.Cache); vc != nil {
			embedOpts = append(embedOpts, llm.WithVectorCache(vc, cfg.Cache.TTL))
		}
		engineOpts = append(engineOpts,
			engine.WithEmbedder(llm.NewEmbedderFactory(embedCfg, embedOpts...)),
			engine.WithFallbackHook(func(err error) {
				p.recorder.EmbeddingFallback()
				p.warnf("embeddings disabled, using lexical similarity: %v", err)
			}),
		)
	}
	p.engine = engine.New(*cfg, engineOpts...)

	// Create LLM summarizer if configured
	if cfg.LLM.Provider != "" {
		s, err := llm.NewSummarizer(llm.ConfigFromModel(cfg.LLM).WithProxy(cfg.HTTP))
		if err != nil {
			p.warnf("Failed to initialize LLM provider: %v", err)
		} else {
			p.summarizer = s
		}
	}

	return p
}

// newVectorCache layers memory over disk. Without a usable directory only
// the memory layer is kept.
func newVectorCache(cfg model.CacheConfig) cache.Cache {
	if !cfg.Enabled {
		return nil
	}

	dir := cfg.Dir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cache.NewMemoryCache(cfg.TTL, 10*time.Minute)
		}
		dir = filepath.Join(home, ".regdiff", "cache")
	}
	return cache.NewLayeredCache(time.Hour, dir, cfg.TTL)
}

func (p *Pipeline) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.logger.Warn(msg)
	_, _ = fmt.Fprintf(p.warnings, "Warning: %s\n", msg)
}

// Source is an already segmented document version
type Source struct {
	Meta     model.DocumentMeta
	Sections model.Sections
}

// CompareOption overrides validation settings for one comparison
type CompareOption func(*model.ValidationConfig)

// StrictMode overrides validation.strict_mode
func StrictMode(on bool) CompareOption {
	return func(v *model.ValidationConfig) {
		v.StrictMode = on
	}
}

// IncludeNonTrue overrides validation.include_non_true
func IncludeNonTrue(on bool) CompareOption {
	return func(v *model.ValidationConfig) {
		v.IncludeNonTrue = on
	}
}

// Compare loads both references (file paths or URLs) and builds the report
func (p *Pipeline) Compare(ctx context.Context, oldRef, newRef string, opts ...CompareOption) (*model.Report, error) {
	oldDoc, err := p.loader.Load(ctx, oldRef)
	if err != nil {
		return nil, err
	}
	newDoc, err := p.loader.Load(ctx, newRef)
	if err != nil {
		return nil, err
	}

	return p.CompareSections(ctx,
		Source{Meta: oldDoc.Meta(), Sections: oldDoc.Sections},
		Source{Meta: newDoc.Meta(), Sections: newDoc.Sections},
		opts...)
}

// CompareSections runs the engine on segmented inputs and builds the report
func (p *Pipeline) CompareSections(ctx context.Context, oldSrc, newSrc Source, opts ...CompareOption) (*model.Report, error) {
	eng := p.engine
	if len(opts) > 0 {
		cfg := *p.config
		for _, opt := range opts {
			opt(&cfg.Validation)
		}
		eng = p.engine.WithConfig(cfg)
	}

	// 1. Match, classify, refine, order
	res, err := eng.Compare(ctx, oldSrc.Sections, newSrc.Sections)
	if err != nil {
		return nil, fmt.Errorf("compare: %w", err)
	}

	report := &model.Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Old:         oldSrc.Meta,
		New:         newSrc.Meta,
		Changes:     res.Changes,
		Matching:    res.Matching,
		Validation:  res.Validation,
		Principles:  model.DefaultPrinciples(),
	}
	report.Old.Sections = len(oldSrc.Sections)
	report.New.Sections = len(newSrc.Sections)

	// 2. Digests make the run auditable
	if report.Old.Digest, err = digest.Sections(oldSrc.Sections); err != nil {
		return nil, fmt.Errorf("digest old sections: %w", err)
	}
	if report.New.Digest, err = digest.Sections(newSrc.Sections); err != nil {
		return nil, fmt.Errorf("digest new sections: %w", err)
	}
	if report.ChangesDigest, err = digest.Changes(res.Changes); err != nil {
		return nil, fmt.Errorf("digest changes: %w", err)
	}

	// 3. Templated descriptions
	if p.config.Output.Summaries {
		report.Summaries = make([]model.ChangeSummary, 0, len(res.Changes))
		for _, ch := range res.Changes {
			report.Summaries = append(report.Summaries, model.ChangeSummary{
				ChangeID:    ch.ID,
				Label:       summary.DisplayLabel(ch.Subtype),
				Description: summary.Describe(ch),
			})
		}
	}

	// 4. Score
	report.Score = p.scorer.Calculate(res.Changes, model.RunStats{Matching: res.Matching, Validation: res.Validation})

	// 5. Generate LLM summary if enabled (AFTER scoring, never affects classification)
	if p.summarizer != nil && p.summarizer.IsEnabled() {
		llmSummary, err := p.summarizer.GenerateSummary(ctx, *report)
		if err != nil {
			p.warnf("LLM summary generation failed: %v", err)
		} else if llmSummary != nil {
			report.LLM = llmSummary
		}
	}

	p.recorder.ObserveComparison(res.Changes, res.Validation, res.Duration)
	p.logger.Debug("comparison complete",
		"run_id", report.RunID,
		"changes", len(report.Changes),
		"pressure", report.Score.Index,
		"similarity", res.Matching.SimilarityMode)

	return report, nil
}

// Renderer returns the report renderer
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}

// RenderReport renders the report to the specified outputs
func (p *Pipeline) RenderReport(report *model.Report, jsonPath string, mdPath string, verbose bool) error {
	out := p.renderer.out

	// Render JSON
	if jsonPath != "" {
		if err := p.renderer.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			_, _ = fmt.Fprintf(out, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	// Render Markdown
	if mdPath != "" {
		if err := p.renderer.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			_, _ = fmt.Fprintf(out, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	// Render LLM summary to separate file if present
	if report.LLM != nil && report.LLM.Enabled && mdPath != "" {
		llmMdPath := strings.TrimSuffix(mdPath, ".md") + ".llm.md"
		if err := p.renderer.RenderLLMMarkdown(llm.RenderSeparateMarkdown(report.LLM), llmMdPath); err != nil {
			p.warnf("Failed to write LLM summary: %v", err)
		} else if verbose {
			_, _ = fmt.Fprintf(out, "✓ Wrote LLM Summary: %s\n", llmMdPath)
		}
	}

	// Print summary to stdout
	p.renderer.RenderSummary(report)

	return nil
}
