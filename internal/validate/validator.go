// Package validate refines the classifier's raw change list: it re-checks
// TRUE_CHANGE records, merges records on the same topic, caps the TRUE_CHANGE
// volume and filters what the caller sees.
//
// Every pass returns a new slice and leaves its input untouched.
package validate

import (
	"context"
	"sort"

	"github.com/ppiankov/regdiff/internal/classify"
	"github.com/ppiankov/regdiff/internal/model"
	"github.com/ppiankov/regdiff/internal/score"
	"github.com/ppiankov/regdiff/internal/similarity"
)

// Refinement gates
const (
	impactSimilarityBelow = 0.64
	topicLexicalMin       = 0.92
	topicSemanticMin      = 0.94
)

// Config holds refinement settings
type Config struct {
	MaxTrueChanges int  // TRUE_CHANGE records kept when the cap triggers
	CapTrigger     int  // Cap triggers when TRUE_CHANGE count exceeds this
	StrictMode     bool // Drop non-TRUE records unless IncludeNonTrue
	IncludeNonTrue bool
}

// Outcome is the result of refinement
type Outcome struct {
	Changes []model.Change        // Visible records, in classification order
	All     []model.Change        // Every record after passes 1-3, before filtering
	Stats   model.ValidationStats // What each pass did
}

// Validator runs the refinement passes
type Validator struct {
	cfg    Config
	scorer *similarity.Scorer
}

// NewValidator creates a validator
func NewValidator(scorer *similarity.Scorer, cfg Config) *Validator {
	return &Validator{cfg: cfg, scorer: scorer}
}

// Refine runs the impact pass, topic dedup, volume cap and filter in order
func (v *Validator) Refine(ctx context.Context, changes []model.Change) Outcome {
	stats := model.ValidationStats{Classified: len(changes)}

	refined, downgraded := v.OperationalImpactPass(ctx, changes)
	stats.OperationalDowngrades = downgraded

	refined, merged := v.DedupeByTopic(ctx, refined)
	stats.Merged = merged

	refined, capped, applied := CapOverDetection(refined, v.cfg.CapTrigger, v.cfg.MaxTrueChanges)
	stats.Capped = capped
	stats.CapApplied = applied

	visible, noise, nonTrue := Filter(refined, v.cfg.StrictMode, v.cfg.IncludeNonTrue)
	stats.DroppedNoise = noise
	stats.DroppedNonTrue = nonTrue
	stats.Visible = len(visible)

	return Outcome{Changes: visible, All: refined, Stats: stats}
}

// OperationalImpactPass re-examines every TRUE_CHANGE and downgrades those
// without clear operational impact. It returns the number downgraded.
func (v *Validator) OperationalImpactPass(ctx context.Context, changes []model.Change) ([]model.Change, int) {
	out := make([]model.Change, 0, len(changes))
	downgraded := 0

	for _, ch := range changes {
		if ch.Type != model.ChangeTrue || v.keepsImpact(ctx, ch) {
			out = append(out, ch)
			continue
		}
		out = append(out, downgrade(ch))
		downgraded++
	}

	return out, downgraded
}

func (v *Validator) keepsImpact(ctx context.Context, ch model.Change) bool {
	switch ch.Subtype {
	case model.SubtypeNumericLimit, model.SubtypeApplicability:
		return true
	case model.SubtypeRuleRemoved, model.SubtypeRuleAdded:
		if classify.IsSubstantiveRule(ch.OldText + " " + ch.NewText) {
			return true
		}
	}

	sim := v.scorer.Semantic(ctx, ch.OldText, ch.NewText)
	return sim < impactSimilarityBelow && (classify.IsSubstantiveRule(ch.OldText) || classify.IsSubstantiveRule(ch.NewText))
}

// DedupeByTopic folds each record into the first earlier record with the
// same type and subtype whose topic or text is close enough. Section id
// sets are unioned and the higher similarity score is kept. It returns the
// number of records folded.
func (v *Validator) DedupeByTopic(ctx context.Context, changes []model.Change) ([]model.Change, int) {
	out := make([]model.Change, 0, len(changes))
	merged := 0

	for _, ch := range changes {
		target := -1
		for i := range out {
			if v.sameTopic(ctx, out[i], ch) {
				target = i
				break
			}
		}

		if target < 0 {
			out = append(out, ch)
			continue
		}

		ex := out[target]
		ex.OldSection = model.JoinSectionIDs(ex.OldSection, ch.OldSection)
		ex.NewSection = model.JoinSectionIDs(ex.NewSection, ch.NewSection)
		if ch.SimilarityScore > ex.SimilarityScore {
			ex.SimilarityScore = ch.SimilarityScore
		}
		out[target] = ex
		merged++
	}

	return out, merged
}

func (v *Validator) sameTopic(ctx context.Context, existing, ch model.Change) bool {
	if existing.Type != ch.Type || existing.Subtype != ch.Subtype {
		return false
	}
	topicSim := v.scorer.Lexical(similarity.Normalize(ch.Topic), similarity.Normalize(existing.Topic))
	if topicSim >= topicLexicalMin {
		return true
	}
	textSim := v.scorer.Semantic(ctx, ch.OldText+" "+ch.NewText, existing.OldText+" "+existing.NewText)
	return textSim >= topicSemanticMin
}

// CapOverDetection keeps only the maxKeep most confident TRUE_CHANGE records
// once there are more than trigger of them. The rest are downgraded. It
// returns the number downgraded and whether the cap applied.
func CapOverDetection(changes []model.Change, trigger, maxKeep int) ([]model.Change, int, bool) {
	out := make([]model.Change, len(changes))
	copy(out, changes)

	var ranked []model.Change
	for _, ch := range changes {
		if ch.Type == model.ChangeTrue {
			ranked = append(ranked, ch)
		}
	}
	if len(ranked) <= trigger {
		return out, 0, false
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return score.TrueChangeConfidence(ranked[i]) > score.TrueChangeConfidence(ranked[j])
	})

	keep := make(map[string]bool, maxKeep)
	for i := 0; i < len(ranked) && i < maxKeep; i++ {
		keep[ranked[i].ID] = true
	}

	capped := 0
	for i, ch := range out {
		if ch.Type == model.ChangeTrue && !keep[ch.ID] {
			out[i] = downgrade(ch)
			capped++
		}
	}

	return out, capped, true
}

// Filter drops NOISE records, and every non-TRUE record when strict and not
// includeNonTrue. It returns the counts of each kind dropped.
func Filter(changes []model.Change, strict, includeNonTrue bool) ([]model.Change, int, int) {
	out := make([]model.Change, 0, len(changes))
	noise, nonTrue := 0, 0

	for _, ch := range changes {
		switch {
		case ch.Type == model.ChangeNoise:
			noise++
		case strict && !includeNonTrue && ch.Type != model.ChangeTrue:
			nonTrue++
		default:
			out = append(out, ch)
		}
	}

	return out, noise, nonTrue
}

func downgrade(ch model.Change) model.Change {
	ch.Type = model.ChangeSemanticMinor
	ch.Subtype = model.SubtypeClarification
	ch.Severity = model.SeverityMinor
	return ch
}
