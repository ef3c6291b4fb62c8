package match

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/regdiff/internal/model"
	"github.com/ppiankov/regdiff/internal/similarity"
)

func newTestMatcher() *Matcher {
	return NewMatcher(similarity.NewScorer(), Config{
		MatchThreshold:           0.58,
		HeadingFallbackThreshold: 0.82,
		Workers:                  4,
	})
}

func sections(list ...model.Section) model.Sections {
	out := make(model.Sections, len(list))
	for i, s := range list {
		s.Position = i
		out[s.ID] = s
	}
	return out
}

func TestPairScorer_IdenticalSections(t *testing.T) {
	p := NewPairScorer(similarity.NewScorer())
	s := model.Section{ID: "1", Heading: "Standby", Body: "Standby duty is limited to 16 hours."}

	assert.InDelta(t, 1.0, p.Score(context.Background(), s, s), 1e-9)
}

func TestPairScorer_Weights(t *testing.T) {
	p := NewPairScorer(similarity.NewScorer())
	before := model.Section{Heading: "Rest", Body: "crew rest shall be ten hours", Meaning: "crew rest ten hours"}
	after := model.Section{Heading: "Rest", Body: "something else entirely", Meaning: "crew rest ten hours"}

	want := 0.25*1.0 + 0.65*1.0 + 0.10*similarity.Lexical(before.Body, after.Body)
	assert.InDelta(t, want, p.Score(context.Background(), before, after), 1e-9)
}

func TestMatcher_MovedSectionMatches(t *testing.T) {
	before := sections(model.Section{ID: "5.2", Heading: "Standby", Body: "Standby duty is limited to 16 hours."})
	after := sections(model.Section{ID: "9.4", Heading: "Standby", Body: "Standby duty is limited to 16 hours."})

	res, err := newTestMatcher().Match(context.Background(), before, after)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)

	assert.Equal(t, "5.2", res.Matches[0].OldID)
	assert.Equal(t, "9.4", res.Matches[0].NewID)
	assert.Equal(t, PassFull, res.Matches[0].Pass)
	assert.InDelta(t, 1.0, res.Matches[0].Score, 1e-9)
	assert.Empty(t, res.UnmatchedOld)
	assert.Empty(t, res.UnmatchedNew)
}

func TestMatcher_OneToOne(t *testing.T) {
	body := "The operator shall ensure adequate rest facilities for crew."
	before := sections(model.Section{ID: "1", Heading: "Rest facilities", Body: body})
	after := sections(
		model.Section{ID: "1", Heading: "Rest facilities", Body: body},
		model.Section{ID: "2", Heading: "Rest facilities", Body: body},
	)

	res, err := newTestMatcher().Match(context.Background(), before, after)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)

	// Equal scores: enumeration order wins.
	assert.Equal(t, "1", res.Matches[0].NewID)
	assert.Equal(t, []string{"2"}, res.UnmatchedNew)
}

func TestMatcher_HeadingFallback(t *testing.T) {
	before := sections(model.Section{ID: "3", Heading: "Flight time limitations", Body: "Aaaa bbbb cccc dddd."})
	after := sections(model.Section{ID: "7", Heading: "Flight Time Limitations:", Body: "Zzzz yyyy xxxx wwww vvvv uuuu."})

	res, err := newTestMatcher().Match(context.Background(), before, after)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)

	heading := similarity.Lexical(before["3"].Heading, after["7"].Heading)
	require.GreaterOrEqual(t, heading, 0.82)
	assert.Equal(t, PassHeading, res.Matches[0].Pass)
	assert.InDelta(t, heading*0.92, res.Matches[0].Score, 1e-9)
}

func TestMatcher_EmptySides(t *testing.T) {
	before := sections(model.Section{ID: "1", Heading: "A", Body: "alpha"})

	res, err := newTestMatcher().Match(context.Background(), before, model.Sections{})
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.Equal(t, []string{"1"}, res.UnmatchedOld)

	res, err = newTestMatcher().Match(context.Background(), model.Sections{}, model.Sections{})
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.Empty(t, res.UnmatchedOld)
	assert.Empty(t, res.UnmatchedNew)
}

func TestMatcher_Deterministic(t *testing.T) {
	before := sections(
		model.Section{ID: "1", Heading: "Applicability", Body: "These requirements apply to all scheduled operators."},
		model.Section{ID: "2", Heading: "Flight duty", Body: "Flight duty period shall not exceed 13 hours."},
		model.Section{ID: "3", Heading: "Rest", Body: "Minimum rest shall be 10 hours."},
	)
	after := sections(
		model.Section{ID: "1", Heading: "Applicability", Body: "These requirements apply to all operators."},
		model.Section{ID: "2", Heading: "Rest", Body: "Minimum rest shall be 12 hours."},
		model.Section{ID: "3", Heading: "Flight duty", Body: "Flight duty period shall not exceed 11 hours."},
	)

	first, err := newTestMatcher().Match(context.Background(), before, after)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := newTestMatcher().Match(context.Background(), before, after)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMatcher_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	before := sections(model.Section{ID: "1", Heading: "A", Body: "alpha"})
	after := sections(model.Section{ID: "1", Heading: "A", Body: "alpha"})

	_, err := newTestMatcher().Match(ctx, before, after)
	assert.ErrorIs(t, err, context.Canceled)
}
