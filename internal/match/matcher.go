package match

import (
	"context"
	"runtime"
	"sort"

	"github.com/ppiankov/regdiff/internal/model"
	"github.com/ppiankov/regdiff/internal/similarity"
	"github.com/ppiankov/regdiff/internal/worker"
)

// headingDiscount scales heading-only matches below full-signal matches
const headingDiscount = 0.92

// Pass identifies which matching pass accepted a pair
type Pass int

const (
	PassFull    Pass = 1 // Weighted pair score
	PassHeading Pass = 2 // Heading-only fallback
)

// Config holds matcher thresholds
type Config struct {
	MatchThreshold           float64
	HeadingFallbackThreshold float64
	Workers                  int // Parallel pair-scoring workers (0 = NumCPU)
}

// Pair is an accepted old/new correspondence
type Pair struct {
	OldID string  `json:"old_id"`
	NewID string  `json:"new_id"`
	Score float64 `json:"score"`
	Pass  Pass    `json:"pass"`
}

// Result is the outcome of matching two section sets.
// Matches are in acceptance order; unmatched ids are in document order.
type Result struct {
	Matches      []Pair
	UnmatchedOld []string
	UnmatchedNew []string
}

// Matcher performs two-pass greedy matching
type Matcher struct {
	cfg    Config
	scorer *similarity.Scorer
	pairs  *PairScorer
}

// NewMatcher creates a matcher
func NewMatcher(scorer *similarity.Scorer, cfg Config) *Matcher {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Matcher{
		cfg:    cfg,
		scorer: scorer,
		pairs:  NewPairScorer(scorer),
	}
}

type candidate struct {
	oldID, newID string
	score        float64
}

// Match aligns the old and new sections. Sections must already carry their ids.
func (m *Matcher) Match(ctx context.Context, oldSecs, newSecs model.Sections) (Result, error) {
	oldIDs := oldSecs.OrderedIDs()
	newIDs := newSecs.OrderedIDs()

	m.prime(ctx, oldSecs, newSecs)

	scored, err := m.scoreAll(ctx, oldSecs, newSecs, oldIDs, newIDs)
	if err != nil {
		return Result{}, err
	}

	matchedOld := make(map[string]bool)
	matchedNew := make(map[string]bool)
	var matches []Pair

	accept := func(cands []candidate, threshold, scale float64, pass Pass) {
		sort.SliceStable(cands, func(i, j int) bool {
			return cands[i].score > cands[j].score
		})
		for _, c := range cands {
			if c.score < threshold {
				break
			}
			if matchedOld[c.oldID] || matchedNew[c.newID] {
				continue
			}
			matchedOld[c.oldID] = true
			matchedNew[c.newID] = true
			matches = append(matches, Pair{OldID: c.oldID, NewID: c.newID, Score: c.score * scale, Pass: pass})
		}
	}

	accept(scored, m.cfg.MatchThreshold, 1.0, PassFull)

	var headingCands []candidate
	for _, oid := range oldIDs {
		if matchedOld[oid] {
			continue
		}
		for _, nid := range newIDs {
			if matchedNew[nid] {
				continue
			}
			headingCands = append(headingCands, candidate{
				oldID: oid,
				newID: nid,
				score: m.scorer.Lexical(oldSecs[oid].Heading, newSecs[nid].Heading),
			})
		}
	}
	accept(headingCands, m.cfg.HeadingFallbackThreshold, headingDiscount, PassHeading)

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{Matches: matches}
	for _, oid := range oldIDs {
		if !matchedOld[oid] {
			res.UnmatchedOld = append(res.UnmatchedOld, oid)
		}
	}
	for _, nid := range newIDs {
		if !matchedNew[nid] {
			res.UnmatchedNew = append(res.UnmatchedNew, nid)
		}
	}
	return res, nil
}

// prime batches every comparison text through the embedding backend
func (m *Matcher) prime(ctx context.Context, oldSecs, newSecs model.Sections) {
	texts := make([]string, 0, len(oldSecs)+len(newSecs))
	for _, s := range oldSecs {
		texts = append(texts, s.ComparisonText())
	}
	for _, s := range newSecs {
		texts = append(texts, s.ComparisonText())
	}
	sort.Strings(texts)
	m.scorer.Prime(ctx, texts)
}

// rowJob scores one old section against every new section
type rowJob struct {
	ctx     context.Context
	pairs   *PairScorer
	section model.Section
	newIDs  []string
	newSecs model.Sections
}

type rowResult struct {
	scores []float64
}

func (r *rowResult) GetError() error { return nil }

func (j *rowJob) Execute(ctx context.Context) worker.Result {
	scores := make([]float64, len(j.newIDs))
	for i, nid := range j.newIDs {
		scores[i] = j.pairs.Score(j.ctx, j.section, j.newSecs[nid])
	}
	return &rowResult{scores: scores}
}

// scoreAll computes pair scores in parallel and returns them in
// (old order) x (new order) enumeration order
func (m *Matcher) scoreAll(ctx context.Context, oldSecs, newSecs model.Sections, oldIDs, newIDs []string) ([]candidate, error) {
	if len(oldIDs) == 0 || len(newIDs) == 0 {
		return nil, ctx.Err()
	}

	jobs := make([]worker.Job, len(oldIDs))
	for i, oid := range oldIDs {
		jobs[i] = &rowJob{ctx: ctx, pairs: m.pairs, section: oldSecs[oid], newIDs: newIDs, newSecs: newSecs}
	}

	results := worker.NewPoolWithContext(ctx, m.cfg.Workers).Run(jobs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cands := make([]candidate, 0, len(oldIDs)*len(newIDs))
	for i, oid := range oldIDs {
		row := results[i].(*rowResult)
		for j, nid := range newIDs {
			cands = append(cands, candidate{oldID: oid, newID: nid, score: row.scores[j]})
		}
	}
	return cands, nil
}
