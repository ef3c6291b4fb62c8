// Package engine runs the section matching and change classification
// pipeline: match, classify, refine, order.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ppiankov/regdiff/internal/classify"
	"github.com/ppiankov/regdiff/internal/match"
	"github.com/ppiankov/regdiff/internal/model"
	"github.com/ppiankov/regdiff/internal/similarity"
	"github.com/ppiankov/regdiff/internal/validate"
)

// Result is the outcome of one comparison
type Result struct {
	Changes         []model.Change        // Visible changes, severity-then-id ordered
	All             []model.Change        // Every refined record before filtering
	Matches         []match.Pair          // Accepted section pairs
	Matching        model.MatchStats      // Alignment statistics
	Validation      model.ValidationStats // Refinement statistics
	EmbeddingActive bool                  // Whether semantic scores used embeddings
	Duration        time.Duration
}

// Engine compares two section mappings. It is safe for concurrent use.
// Every Compare call is one run: it gets its own change id sequence and its
// own similarity scorer, so an embedding fallback never outlives the run.
type Engine struct {
	cfg        model.Config
	logger     *slog.Logger
	backend    *sharedBackend
	onFallback func(error)
}

// Option configures an Engine
type Option func(*options)

type options struct {
	logger     *slog.Logger
	embedder   similarity.EmbedderFactory
	onFallback func(error)
}

// WithLogger sets the engine logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEmbedder enables embedding-augmented semantic similarity
func WithEmbedder(factory similarity.EmbedderFactory) Option {
	return func(o *options) {
		o.embedder = factory
	}
}

// WithFallbackHook is called once if the embedding backend is disabled
func WithFallbackHook(fn func(error)) Option {
	return func(o *options) {
		o.onFallback = fn
	}
}

// New creates an engine
func New(cfg model.Config, opts ...Option) *Engine {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		cfg:        cfg,
		logger:     o.logger,
		onFallback: o.onFallback,
	}
	if o.embedder != nil {
		e.backend = &sharedBackend{factory: o.embedder}
	}
	return e
}

// WithConfig returns an engine running under cfg that shares this engine's
// embedding backend
func (e *Engine) WithConfig(cfg model.Config) *Engine {
	clone := *e
	clone.cfg = cfg
	return &clone
}

func (e *Engine) newScorer() *similarity.Scorer {
	opts := []similarity.Option{similarity.WithLogger(e.logger)}
	if e.backend != nil {
		opts = append(opts, similarity.WithEmbedder(e.backend.get))
	}
	if e.onFallback != nil {
		opts = append(opts, similarity.WithFallbackHook(e.onFallback))
	}
	return similarity.NewScorer(opts...)
}

// sharedBackend keeps the first embedder that was built successfully.
// Failures are not kept, so the next run tries again.
type sharedBackend struct {
	factory similarity.EmbedderFactory

	mu       sync.Mutex
	embedder similarity.Embedder
}

func (b *sharedBackend) get(ctx context.Context) (similarity.Embedder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.embedder != nil {
		return b.embedder, nil
	}
	emb, err := b.factory(ctx)
	if err != nil {
		return nil, err
	}
	b.embedder = emb
	return emb, nil
}

// Compare aligns the two versions and returns the classified changes.
// Section ids are taken from the map keys. The inputs are not modified.
func (e *Engine) Compare(ctx context.Context, oldSecs, newSecs model.Sections) (*Result, error) {
	start := time.Now()

	oldSecs = oldSecs.Stamped()
	newSecs = newSecs.Stamped()
	scorer := e.newScorer()

	matcher := match.NewMatcher(scorer, match.Config{
		MatchThreshold:           e.cfg.Matching.MatchThreshold,
		HeadingFallbackThreshold: e.cfg.Matching.HeadingFallbackThreshold,
		Workers:                  e.cfg.Concurrency.Workers,
	})
	aligned, err := matcher.Match(ctx, oldSecs, newSecs)
	if err != nil {
		return nil, fmt.Errorf("match sections: %w", err)
	}

	e.logger.Debug("sections aligned",
		"old_sections", len(oldSecs),
		"new_sections", len(newSecs),
		"matched", len(aligned.Matches),
		"similarity_mode", scorer.Mode())

	changes, err := e.classify(ctx, scorer, oldSecs, newSecs, aligned)
	if err != nil {
		return nil, err
	}

	refiner := validate.NewValidator(scorer, validate.Config{
		MaxTrueChanges: e.cfg.Validation.MaxTrueChanges,
		CapTrigger:     e.cfg.Validation.CapTrigger,
		StrictMode:     e.cfg.Validation.StrictMode,
		IncludeNonTrue: e.cfg.Validation.IncludeNonTrue,
	})
	outcome := refiner.Refine(ctx, changes)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("refine changes: %w", err)
	}

	if outcome.Stats.CapApplied {
		e.logger.Info("true change volume cap applied", "capped", outcome.Stats.Capped)
	}

	res := &Result{
		Changes:         Order(outcome.Changes),
		All:             outcome.All,
		Matches:         aligned.Matches,
		Matching:        matchStats(scorer, oldSecs, newSecs, aligned),
		Validation:      outcome.Stats,
		EmbeddingActive: scorer.EmbeddingActive(),
		Duration:        time.Since(start),
	}

	e.logger.Debug("comparison complete",
		"classified", outcome.Stats.Classified,
		"visible", outcome.Stats.Visible,
		"duration", res.Duration)

	return res, nil
}

// classify labels matched pairs in acceptance order, then unmatched old and
// unmatched new sections in document order
func (e *Engine) classify(ctx context.Context, scorer *similarity.Scorer, oldSecs, newSecs model.Sections, aligned match.Result) ([]model.Change, error) {
	classifier := classify.New(scorer, classify.NewSequence(), classify.Config{
		UnchangedThreshold:  e.cfg.Matching.UnchangedThreshold,
		RelocationThreshold: e.cfg.Matching.RelocationThreshold,
	})

	var changes []model.Change
	for _, pair := range aligned.Matches {
		if ch, ok := classifier.ClassifyMatched(ctx, oldSecs[pair.OldID], newSecs[pair.NewID], pair.Score); ok {
			changes = append(changes, ch)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("classify matches: %w", err)
	}

	oldOrder := oldSecs.OrderedIDs()
	newOrder := newSecs.OrderedIDs()

	for _, id := range aligned.UnmatchedOld {
		changes = append(changes, classifier.ClassifyUnmatchedOld(ctx, oldSecs[id], newSecs, newOrder))
	}
	for _, id := range aligned.UnmatchedNew {
		changes = append(changes, classifier.ClassifyUnmatchedNew(ctx, newSecs[id], oldSecs, oldOrder))
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("classify unmatched sections: %w", err)
	}

	return changes, nil
}

func matchStats(scorer *similarity.Scorer, oldSecs, newSecs model.Sections, aligned match.Result) model.MatchStats {
	stats := model.MatchStats{
		OldSections:    len(oldSecs),
		NewSections:    len(newSecs),
		Matched:        len(aligned.Matches),
		UnmatchedOld:   len(aligned.UnmatchedOld),
		UnmatchedNew:   len(aligned.UnmatchedNew),
		SimilarityMode: scorer.Mode(),
	}
	for _, p := range aligned.Matches {
		if p.Pass == match.PassHeading {
			stats.HeadingFallback++
		}
	}
	return stats
}
