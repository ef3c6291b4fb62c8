package similarity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
)

// Semantic blend weights when an embedding backend is active
const (
	embeddingWeight = 0.75
	lexicalWeight   = 0.25
)

// Embedder turns texts into embedding vectors, one per input text
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderFactory constructs an Embedder on first use
type EmbedderFactory func(ctx context.Context) (Embedder, error)

// ErrDimensionMismatch is reported when two vectors cannot be compared
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Scorer computes lexical and semantic similarity.
//
// The embedding backend is built lazily, at most once. A construction or
// inference failure disables it for the lifetime of the Scorer, after which
// every semantic score is the lexical score. Failures never reach callers.
// Errors caused by the caller's own context ending do not disable it.
// A Scorer is safe for concurrent use; use one Scorer per comparison run.
type Scorer struct {
	factory    EmbedderFactory
	logger     *slog.Logger
	onFallback func(error)

	initOnce sync.Once
	embedder Embedder
	ready    atomic.Bool
	disabled atomic.Bool

	mu      sync.Mutex
	vectors map[string][]float32
}

// Option configures a Scorer
type Option func(*Scorer)

// WithEmbedder enables embedding-augmented similarity
func WithEmbedder(factory EmbedderFactory) Option {
	return func(s *Scorer) {
		s.factory = factory
	}
}

// WithLogger sets the logger used to record backend fallbacks
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFallbackHook registers a callback invoked once when the backend is disabled
func WithFallbackHook(fn func(error)) Option {
	return func(s *Scorer) {
		s.onFallback = fn
	}
}

// NewScorer creates a Scorer. Without WithEmbedder it is lexical-only.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		logger:  slog.New(slog.DiscardHandler),
		vectors: make(map[string][]float32),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lexical returns the lexical similarity of a and b
func (s *Scorer) Lexical(a, b string) float64 {
	return Lexical(a, b)
}

// Semantic returns 0.75*embedding + 0.25*lexical when the embedding backend is
// active, otherwise the lexical similarity. Inputs are trimmed first.
func (s *Scorer) Semantic(ctx context.Context, a, b string) float64 {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)

	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	lex := Lexical(a, b)
	emb, ok := s.embeddingSimilarity(ctx, a, b)
	if !ok {
		return lex
	}
	return embeddingWeight*emb + lexicalWeight*lex
}

// Prime embeds texts in one batch so later Semantic calls hit the memo.
// It is a no-op for a lexical-only Scorer.
func (s *Scorer) Prime(ctx context.Context, texts []string) {
	e := s.backend(ctx)
	if e == nil {
		return
	}
	trimmed := make([]string, 0, len(texts))
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			trimmed = append(trimmed, t)
		}
	}
	_, _ = s.lookup(ctx, e, trimmed...)
}

// EmbeddingActive reports whether semantic scores currently use embeddings
func (s *Scorer) EmbeddingActive() bool {
	return s.ready.Load() && !s.disabled.Load()
}

// Mode returns "embedding" or "lexical"
func (s *Scorer) Mode() string {
	if s.EmbeddingActive() {
		return "embedding"
	}
	return "lexical"
}

func (s *Scorer) backend(ctx context.Context) Embedder {
	if s.factory == nil || s.disabled.Load() {
		return nil
	}

	s.initOnce.Do(func() {
		e, err := s.factory(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.disable(fmt.Errorf("init embedder: %w", err))
			}
			return
		}
		if e == nil {
			s.disable(errors.New("init embedder: no backend configured"))
			return
		}
		s.embedder = e
		s.ready.Store(true)
	})

	if s.disabled.Load() || !s.ready.Load() {
		return nil
	}
	return s.embedder
}

func (s *Scorer) embeddingSimilarity(ctx context.Context, a, b string) (float64, bool) {
	e := s.backend(ctx)
	if e == nil {
		return 0, false
	}

	vecs, ok := s.lookup(ctx, e, a, b)
	if !ok {
		return 0, false
	}

	sim, err := cosine(vecs[0], vecs[1])
	if err != nil {
		s.disable(err)
		return 0, false
	}
	return math.Max(0, math.Min(1, sim)), true
}

// lookup returns vectors for texts, embedding the ones not memoized yet
func (s *Scorer) lookup(ctx context.Context, e Embedder, texts ...string) ([][]float32, bool) {
	out := make([][]float32, len(texts))
	var missing []string
	seen := make(map[string]bool)

	s.mu.Lock()
	for i, t := range texts {
		if v, ok := s.vectors[t]; ok {
			out[i] = v
		} else if !seen[t] {
			seen[t] = true
			missing = append(missing, t)
		}
	}
	s.mu.Unlock()

	if len(missing) > 0 {
		vecs, err := e.Embed(ctx, missing)
		if err != nil {
			if ctx.Err() == nil {
				s.disable(fmt.Errorf("embed: %w", err))
			}
			return nil, false
		}
		if len(vecs) != len(missing) {
			s.disable(fmt.Errorf("embed: got %d vectors for %d texts", len(vecs), len(missing)))
			return nil, false
		}

		s.mu.Lock()
		for i, t := range missing {
			s.vectors[t] = vecs[i]
		}
		for i, t := range texts {
			if out[i] == nil {
				out[i] = s.vectors[t]
			}
		}
		s.mu.Unlock()
	}

	return out, true
}

func (s *Scorer) disable(err error) {
	if s.disabled.Swap(true) {
		return
	}
	s.logger.Debug("embedding backend disabled, using lexical similarity", "error", err)
	if s.onFallback != nil {
		s.onFallback(err)
	}
}

func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
