// Package classify labels matched and unmatched sections with a change type,
// subtype and severity.
package classify

import (
	"context"
	"strconv"

	"github.com/ppiankov/regdiff/internal/model"
	"github.com/ppiankov/regdiff/internal/similarity"
)

// Rule gates for matched pairs
const (
	headingChangedBelow    = 0.90
	headingChangeTextMin   = 0.93
	moveTextMin            = 0.90
	numericContextMin      = 0.84
	applicabilityTextBelow = 0.84
	requirementTextBelow   = 0.66
)

// Relocation gates for unmatched sections
const (
	relocationSemanticWeight = 0.75
	relocationHeadingWeight  = 0.25
	relocationSemanticMin    = 0.80
	relocationHeadingMin     = 0.88
)

// Config holds classifier thresholds
type Config struct {
	UnchangedThreshold  float64
	RelocationThreshold float64
}

// Classifier applies the ordered rule policy. It is not tied to one run:
// ids come from the Sequence it was built with.
type Classifier struct {
	cfg    Config
	scorer *similarity.Scorer
	seq    *Sequence
}

// New creates a classifier
func New(scorer *similarity.Scorer, seq *Sequence, cfg Config) *Classifier {
	return &Classifier{cfg: cfg, scorer: scorer, seq: seq}
}

// ClassifyMatched labels an accepted pair. The bool is false when the pair
// is unchanged and no record should be emitted.
func (c *Classifier) ClassifyMatched(ctx context.Context, oldSec, newSec model.Section, score float64) (model.Change, bool) {
	oldText := oldSec.ComparisonText()
	newText := newSec.ComparisonText()
	idChanged := oldSec.ID != newSec.ID

	if similarity.Normalize(oldText) == similarity.Normalize(newText) || score >= c.cfg.UnchangedThreshold {
		if !idChanged {
			return model.Change{}, false
		}
		return c.build(&oldSec, &newSec, model.ChangeStructural, model.SeverityMinor, model.SubtypeStructuralMove, score), true
	}

	if IsNoise(oldText) && IsNoise(newText) {
		return c.build(&oldSec, &newSec, model.ChangeNoise, model.SeverityMinor, model.SubtypeOCRArtifact, score), true
	}

	headingSim := c.scorer.Lexical(oldSec.Heading, newSec.Heading)
	textSim := c.scorer.Semantic(ctx, oldText, newText)

	if headingSim < headingChangedBelow && textSim >= headingChangeTextMin {
		return c.build(&oldSec, &newSec, model.ChangeStructural, model.SeverityMinor, model.SubtypeHeadingChange, score), true
	}

	if idChanged && textSim >= moveTextMin {
		return c.build(&oldSec, &newSec, model.ChangeStructural, model.SeverityMinor, model.SubtypeStructuralMove, score), true
	}

	if IsOperationalNumericChange(oldText, newText) {
		stripped := c.scorer.Semantic(ctx, RemoveNumbers(oldText), RemoveNumbers(newText))
		if stripped >= numericContextMin {
			return c.trueChange(&oldSec, &newSec, model.SubtypeNumericLimit, oldText, newText, score), true
		}
	}

	if (ContainsScopeSignal(oldText) || ContainsScopeSignal(newText)) && textSim < applicabilityTextBelow {
		return c.trueChange(&oldSec, &newSec, model.SubtypeApplicability, oldText, newText, score), true
	}

	if ContainsRegulatorySignal(oldText) || ContainsRegulatorySignal(newText) {
		if textSim < requirementTextBelow && (IsSubstantiveRule(oldText) || IsSubstantiveRule(newText)) {
			return c.trueChange(&oldSec, &newSec, model.SubtypeOperational, oldText, newText, score), true
		}
	}

	return c.build(&oldSec, &newSec, model.ChangeSemanticMinor, model.SeverityMinor, model.SubtypeClarification, score), true
}

// ClassifyUnmatchedOld labels an old section that found no partner.
// order lists the candidate ids in document order.
func (c *Classifier) ClassifyUnmatchedOld(ctx context.Context, oldSec model.Section, candidates model.Sections, order []string) model.Change {
	text := oldSec.ComparisonText()

	if IsNoise(text) {
		return c.build(&oldSec, nil, model.ChangeNoise, model.SeverityMinor, model.SubtypeNonRegulatory, 0)
	}

	best, found := c.bestRelocation(ctx, oldSec, candidates, order)
	if found && c.relocated(best) {
		newSec := candidates[best.id]
		return c.build(&oldSec, &newSec, model.ChangeStructural, model.SeverityMinor, model.SubtypeMovedRule, best.combo)
	}

	if !IsSubstantiveRule(text) {
		return c.build(&oldSec, nil, model.ChangeSemanticMinor, model.SeverityMinor, model.SubtypeSplitMerge, best.comboOrZero())
	}

	return c.trueChange(&oldSec, nil, model.SubtypeRuleRemoved, text, "", 0)
}

// ClassifyUnmatchedNew labels a new section that found no partner.
// order lists the candidate ids in document order.
func (c *Classifier) ClassifyUnmatchedNew(ctx context.Context, newSec model.Section, candidates model.Sections, order []string) model.Change {
	text := newSec.ComparisonText()

	if IsNoise(text) {
		return c.build(nil, &newSec, model.ChangeNoise, model.SeverityMinor, model.SubtypeNonRegulatory, 0)
	}

	best, found := c.bestRelocation(ctx, newSec, candidates, order)
	if found && c.relocated(best) {
		oldSec := candidates[best.id]
		return c.build(&oldSec, &newSec, model.ChangeStructural, model.SeverityMinor, model.SubtypeMovedRule, best.combo)
	}

	if !IsSubstantiveRule(text) {
		return c.build(nil, &newSec, model.ChangeSemanticMinor, model.SeverityMinor, model.SubtypeSplitMerge, best.comboOrZero())
	}

	return c.trueChange(nil, &newSec, model.SubtypeRuleAdded, "", text, 0)
}

type relocation struct {
	id       string
	semantic float64
	heading  float64
	combo    float64
}

func (r relocation) comboOrZero() float64 {
	if r.id == "" {
		return 0
	}
	return r.combo
}

// bestRelocation finds the candidate with the highest combined score.
// Ties keep the earliest candidate in order.
func (c *Classifier) bestRelocation(ctx context.Context, sec model.Section, candidates model.Sections, order []string) (relocation, bool) {
	text := sec.ComparisonText()
	best := relocation{combo: -1}

	for _, id := range order {
		cand, ok := candidates[id]
		if !ok {
			continue
		}
		sem := c.scorer.Semantic(ctx, text, cand.ComparisonText())
		head := c.scorer.Lexical(sec.Heading, cand.Heading)
		combo := relocationSemanticWeight*sem + relocationHeadingWeight*head
		if combo > best.combo {
			best = relocation{id: id, semantic: sem, heading: head, combo: combo}
		}
	}

	return best, best.id != ""
}

func (c *Classifier) relocated(r relocation) bool {
	return r.combo >= c.cfg.RelocationThreshold || r.semantic >= relocationSemanticMin || r.heading >= relocationHeadingMin
}

func (c *Classifier) trueChange(oldSec, newSec *model.Section, subtype, oldText, newText string, score float64) model.Change {
	severity := SeverityFor(model.ChangeTrue, subtype, oldText, newText)
	return c.build(oldSec, newSec, model.ChangeTrue, severity, subtype, score)
}

// build assembles a change record. Either section may be nil.
func (c *Classifier) build(oldSec, newSec *model.Section, changeType model.ChangeType, severity model.Severity, subtype string, score float64) model.Change {
	var oldID, newID, oldText, newText, topic string
	if oldSec != nil {
		oldID = oldSec.ID
		oldText = oldSec.ComparisonText()
		topic = oldSec.Heading
	}
	if newSec != nil {
		newID = newSec.ID
		newText = newSec.ComparisonText()
		topic = newSec.Heading
	}
	if topic == "" {
		topic = oldID
	}
	if topic == "" {
		topic = newID
	}

	return model.Change{
		ID:              c.seq.Next(),
		Type:            changeType,
		Subtype:         subtype,
		Severity:        severity,
		OldSection:      oldID,
		NewSection:      newID,
		OldText:         oldText,
		NewText:         newText,
		Topic:           topic,
		SimilarityScore: Round3(score),
		NumericDelta:    NumericDelta(oldText, newText),
	}
}

// Round3 rounds the exact binary value to three decimals, ties to even
func Round3(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 3, 64), 64)
	return r
}
