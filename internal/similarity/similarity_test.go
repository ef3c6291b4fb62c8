package similarity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "the flight duty", Normalize("  The\tFLIGHT \n duty  "))
	assert.Equal(t, "", Normalize("   "))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"fdp", "13", "hours", "para", "4", "2"}, Tokenize("FDP: 13 hours (para 4.2)"))
}

func TestJaccard(t *testing.T) {
	assert.Equal(t, 1.0, Jaccard("", ""))
	assert.Equal(t, 0.0, Jaccard("rest", ""))
	assert.InDelta(t, 1.0/3.0, Jaccard("crew rest", "rest period"), 1e-9)
}

func TestSequenceRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1.0},
		{"abcd", "", 0.0},
		{"abcd", "abcd", 1.0},
		{"abcd", "bcde", 0.75},
		{"abxcd", "abcd", 8.0 / 9.0},
		{"13 hours", "11 hours", 14.0 / 16.0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, SequenceRatio(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSequenceRatio_LongInputsUsePopularityRule(t *testing.T) {
	a := strings.Repeat("a", 300)
	b := strings.Repeat("a", 300)
	// Identical runs still match fully through block extension.
	assert.InDelta(t, 1.0, SequenceRatio(a, b), 1e-9)
}

func TestLexical(t *testing.T) {
	assert.Equal(t, 1.0, Lexical("", "  "))
	assert.Equal(t, 0.0, Lexical("rest", ""))
	assert.InDelta(t, 1.0, Lexical("Crew Rest", "crew   rest"), 1e-9)

	s := Lexical("The flight duty period shall not exceed 13 hours.", "The flight duty period shall not exceed 11 hours.")
	assert.Greater(t, s, 0.85)
	assert.Less(t, s, 1.0)
}

func TestScorer_LexicalOnly(t *testing.T) {
	s := NewScorer()
	ctx := context.Background()

	assert.Equal(t, 1.0, s.Semantic(ctx, " ", ""))
	assert.Equal(t, 0.0, s.Semantic(ctx, "rest", "  "))
	assert.InDelta(t, Lexical("crew rest", "crew duty"), s.Semantic(ctx, "crew rest", "crew duty"), 1e-12)
	assert.False(t, s.EmbeddingActive())
	assert.Equal(t, "lexical", s.Mode())
}

type fakeEmbedder struct {
	calls atomic.Int32
	vecs  map[string][]float32
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vecs[t]
		if !ok {
			v = []float32{0, 0, 1}
		}
		out[i] = v
	}
	return out, nil
}

func TestScorer_EmbeddingBlend(t *testing.T) {
	fe := &fakeEmbedder{vecs: map[string][]float32{
		"crew rest":   {1, 0, 0},
		"rest period": {1, 0, 0},
	}}
	s := NewScorer(WithEmbedder(func(context.Context) (Embedder, error) { return fe, nil }))
	ctx := context.Background()

	got := s.Semantic(ctx, "crew rest", "rest period")
	want := 0.75*1.0 + 0.25*Lexical("crew rest", "rest period")
	assert.InDelta(t, want, got, 1e-9)
	assert.True(t, s.EmbeddingActive())

	// Memoized: a second call embeds nothing new.
	calls := fe.calls.Load()
	s.Semantic(ctx, "rest period", "crew rest")
	assert.Equal(t, calls, fe.calls.Load())
}

func TestScorer_NegativeCosineClamped(t *testing.T) {
	fe := &fakeEmbedder{vecs: map[string][]float32{
		"alpha": {1, 0},
		"omega": {-1, 0},
	}}
	s := NewScorer(WithEmbedder(func(context.Context) (Embedder, error) { return fe, nil }))

	got := s.Semantic(context.Background(), "alpha", "omega")
	assert.InDelta(t, 0.25*Lexical("alpha", "omega"), got, 1e-9)
}

func TestScorer_InitFailureFallsBackOnce(t *testing.T) {
	var attempts, hooks atomic.Int32
	s := NewScorer(
		WithEmbedder(func(context.Context) (Embedder, error) {
			attempts.Add(1)
			return nil, errors.New("model not installed")
		}),
		WithFallbackHook(func(error) { hooks.Add(1) }),
	)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.InDelta(t, Lexical("crew rest", "crew duty"), s.Semantic(ctx, "crew rest", "crew duty"), 1e-12)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), attempts.Load())
	assert.Equal(t, int32(1), hooks.Load())
	assert.Equal(t, "lexical", s.Mode())
}

func TestScorer_InferenceFailureIsPermanent(t *testing.T) {
	fe := &fakeEmbedder{err: errors.New("connection refused")}
	s := NewScorer(WithEmbedder(func(context.Context) (Embedder, error) { return fe, nil }))
	ctx := context.Background()

	require.InDelta(t, Lexical("a rule", "b rule"), s.Semantic(ctx, "a rule", "b rule"), 1e-12)
	s.Semantic(ctx, "c rule", "d rule")
	s.Prime(ctx, []string{"e rule"})

	assert.Equal(t, int32(1), fe.calls.Load())
	assert.False(t, s.EmbeddingActive())
}

func TestScorer_CancelledCallerKeepsBackend(t *testing.T) {
	var hooks atomic.Int32
	fe := &fakeEmbedder{vecs: map[string][]float32{
		"crew rest":   {1, 0, 0},
		"rest period": {1, 0, 0},
	}}
	s := NewScorer(
		WithEmbedder(func(context.Context) (Embedder, error) { return fe, nil }),
		WithFallbackHook(func(error) { hooks.Add(1) }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.InDelta(t, Lexical("crew rest", "rest period"), s.Semantic(ctx, "crew rest", "rest period"), 1e-12)
	assert.True(t, s.EmbeddingActive(), "a cancelled caller is not a backend failure")

	got := s.Semantic(context.Background(), "crew rest", "rest period")
	assert.InDelta(t, 0.75+0.25*Lexical("crew rest", "rest period"), got, 1e-9)
	assert.Equal(t, int32(2), fe.calls.Load())
	assert.Zero(t, hooks.Load())
}

func TestScorer_CancelledInitIsNotAFallback(t *testing.T) {
	var hooks atomic.Int32
	s := NewScorer(
		WithEmbedder(func(ctx context.Context) (Embedder, error) { return nil, ctx.Err() }),
		WithFallbackHook(func(error) { hooks.Add(1) }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.InDelta(t, Lexical("a rule", "b rule"), s.Semantic(ctx, "a rule", "b rule"), 1e-12)
	assert.Zero(t, hooks.Load())
	assert.Equal(t, "lexical", s.Mode())
}

func TestScorer_DimensionMismatchDisables(t *testing.T) {
	fe := &fakeEmbedder{vecs: map[string][]float32{
		"short": {1},
		"long":  {1, 0},
	}}
	s := NewScorer(WithEmbedder(func(context.Context) (Embedder, error) { return fe, nil }))

	got := s.Semantic(context.Background(), "short", "long")
	assert.InDelta(t, Lexical("short", "long"), got, 1e-12)
	assert.False(t, s.EmbeddingActive())
}

func TestScorer_PrimeBatches(t *testing.T) {
	fe := &fakeEmbedder{}
	s := NewScorer(WithEmbedder(func(context.Context) (Embedder, error) { return fe, nil }))
	ctx := context.Background()

	s.Prime(ctx, []string{"one", "two", " ", "one"})
	require.Equal(t, int32(1), fe.calls.Load())

	s.Semantic(ctx, "one", "two")
	assert.Equal(t, int32(1), fe.calls.Load())
}
