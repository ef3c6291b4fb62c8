package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/regdiff/internal/cache"
	"github.com/ppiankov/regdiff/internal/similarity"
	"github.com/ppiankov/regdiff/internal/worker"
)

// Embedder adapts a Provider to similarity.Embedder, with an optional vector
// cache and rate limiting. Only cache misses reach the provider.
type Embedder struct {
	provider  Provider
	model     string
	cache     cache.Cache
	ttl       time.Duration
	limiter   *worker.Limiter
	batchSize int
}

// EmbedderOption configures an Embedder
type EmbedderOption func(*Embedder)

// WithVectorCache stores vectors in c for ttl
func WithVectorCache(c cache.Cache, ttl time.Duration) EmbedderOption {
	return func(e *Embedder) {
		e.cache = c
		e.ttl = ttl
	}
}

// WithLimiter waits on l before each provider call
func WithLimiter(l *worker.Limiter) EmbedderOption {
	return func(e *Embedder) {
		e.limiter = l
	}
}

// WithBatchSize caps the number of texts per provider call
func WithBatchSize(n int) EmbedderOption {
	return func(e *Embedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// NewEmbedder wraps provider; model only namespaces cache keys
func NewEmbedder(provider Provider, model string, opts ...EmbedderOption) *Embedder {
	e := &Embedder{
		provider:  provider,
		model:     model,
		batchSize: 64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Embed returns one vector per text, in input order
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var missing []int
	for i, text := range texts {
		if v, ok := e.cached(text); ok {
			out[i] = v
			continue
		}
		missing = append(missing, i)
	}

	for start := 0; start < len(missing); start += e.batchSize {
		end := start + e.batchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		inputs := make([]string, len(batch))
		for j, idx := range batch {
			inputs[j] = texts[idx]
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx, e.provider.Name()); err != nil {
				return nil, fmt.Errorf("rate limit: %w", err)
			}
		}

		vectors, err := e.provider.Embed(ctx, inputs)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(inputs) {
			return nil, fmt.Errorf("%s returned %d vectors for %d texts", e.provider.Name(), len(vectors), len(inputs))
		}

		for j, idx := range batch {
			out[idx] = vectors[j]
			e.store(texts[idx], vectors[j])
		}
	}

	return out, nil
}

func (e *Embedder) cached(text string) ([]float32, bool) {
	if e.cache == nil {
		return nil, false
	}
	data, ok := e.cache.Get(cache.VectorKey(e.provider.Name(), e.model, text))
	if !ok {
		return nil, false
	}
	v, err := cache.DecodeVector(data)
	if err != nil {
		return nil, false
	}
	return v, true
}

func (e *Embedder) store(text string, v []float32) {
	if e.cache == nil || len(v) == 0 {
		return
	}
	// A failed write only costs a recomputation next run
	_ = e.cache.Set(cache.VectorKey(e.provider.Name(), e.model, text), cache.EncodeVector(v), e.ttl)
}

// NewEmbedderFactory builds the provider lazily, on the first semantic score.
// An unknown or unreachable provider fails the factory, which the similarity
// scorer treats as a permanent fallback to lexical scoring.
func NewEmbedderFactory(config Config, opts ...EmbedderOption) similarity.EmbedderFactory {
	return func(ctx context.Context) (similarity.Embedder, error) {
		provider, err := NewProvider(config)
		if err != nil {
			return nil, fmt.Errorf("embedding provider: %w", err)
		}
		if provider == nil {
			return nil, errors.New("embedding provider not configured")
		}
		if !provider.IsAvailable(ctx) {
			return nil, fmt.Errorf("embedding provider %s not available", provider.Name())
		}
		return NewEmbedder(provider, config.Model, opts...), nil
	}
}
