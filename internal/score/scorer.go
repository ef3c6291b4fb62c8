package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/regdiff/internal/classify"
	"github.com/ppiankov/regdiff/internal/model"
)

// Change pressure weights per visible change
const (
	criticalWeight = 10
	moderateWeight = 4
	minorWeight    = 1
)

// TrueChangeConfidence ranks TRUE_CHANGE records for the volume cap
func TrueChangeConfidence(ch model.Change) float64 {
	switch ch.Subtype {
	case model.SubtypeNumericLimit:
		return 1.0
	case model.SubtypeApplicability:
		return 0.95
	}

	text := ch.OldText + " " + ch.NewText
	score := 0.40
	if classify.IsSubstantiveRule(text) {
		score += 0.25
	}
	if classify.ContainsRegulatorySignal(text) {
		score += 0.20
	}
	if classify.HasTimeOrUnit(text) {
		score += 0.10
	}
	score += math.Max(0, 0.1-ch.SimilarityScore*0.05)
	return math.Min(1.0, score)
}

// Scorer calculates the change pressure index and generates signals
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate builds the transparent breakdown for the visible changes
func (s *Scorer) Calculate(changes []model.Change, stats model.RunStats) model.Score {
	counts := countChanges(changes)

	var signals []model.Signal

	// 1. Change pressure (0-100)
	index, pressureSignal := s.calculatePressure(counts)
	signals = append(signals, pressureSignal)

	// 2. Severity mix
	signals = append(signals, s.severityMix(counts, len(changes)))

	// 3. Match coverage
	signals = append(signals, s.matchCoverage(stats.Matching))

	// 4. Refinement passes (only when they did something)
	if stats.Validation.CapApplied {
		signals = append(signals, s.volumeCap(stats.Validation))
	}
	if stats.Validation.Merged > 0 {
		signals = append(signals, s.topicMerge(stats.Validation))
	}
	if stats.Validation.OperationalDowngrades > 0 {
		signals = append(signals, s.downgrades(stats.Validation))
	}

	// 5. Similarity backend
	signals = append(signals, s.similarityMode(stats.Matching))

	return model.Score{
		Index:   index,
		Level:   determineLevel(index, counts),
		Counts:  counts,
		Signals: signals,
	}
}

func countChanges(changes []model.Change) map[string]int {
	counts := map[string]int{
		string(model.ChangeTrue):          0,
		string(model.ChangeStructural):    0,
		string(model.ChangeSemanticMinor): 0,
		string(model.SeverityCritical):    0,
		string(model.SeverityModerate):    0,
		string(model.SeverityMinor):       0,
	}
	for _, ch := range changes {
		counts[string(ch.Type)]++
		counts[string(ch.Severity)]++
	}
	return counts
}

// calculatePressure calculates the weighted severity index (0-100 points)
func (s *Scorer) calculatePressure(counts map[string]int) (int, model.Signal) {
	critical := counts[string(model.SeverityCritical)]
	moderate := counts[string(model.SeverityModerate)]
	minor := counts[string(model.SeverityMinor)]

	raw := criticalWeight*critical + moderateWeight*moderate + minorWeight*minor
	index := min(100, raw)

	severity := model.SignalInfo
	if critical > 0 {
		severity = model.SignalCritical
	} else if moderate > 0 {
		severity = model.SignalWarning
	}

	return index, model.Signal{
		Type:        model.SignalChangePressure,
		Severity:    severity,
		Description: fmt.Sprintf("Change pressure: %d/100", index),
		Data: map[string]any{
			"critical": critical,
			"moderate": moderate,
			"minor":    minor,
			"index":    index,
			"formula":  "min(100, 10*critical + 4*moderate + 1*minor)",
		},
	}
}

// severityMix reports the visible changes per severity
func (s *Scorer) severityMix(counts map[string]int, total int) model.Signal {
	critical := counts[string(model.SeverityCritical)]

	severity := model.SignalInfo
	if critical > 0 {
		severity = model.SignalWarning
	}

	return model.Signal{
		Type:     model.SignalSeverityMix,
		Severity: severity,
		Description: fmt.Sprintf("%d visible changes: %d critical, %d moderate, %d minor",
			total, critical, counts[string(model.SeverityModerate)], counts[string(model.SeverityMinor)]),
		Data: map[string]any{
			"total":       total,
			"true_change": counts[string(model.ChangeTrue)],
			"structural":  counts[string(model.ChangeStructural)],
			"minor_text":  counts[string(model.ChangeSemanticMinor)],
		},
	}
}

// matchCoverage reports how many sections found a partner
func (s *Scorer) matchCoverage(m model.MatchStats) model.Signal {
	larger := max(m.OldSections, m.NewSections)
	if larger == 0 {
		return model.Signal{
			Type:        model.SignalMatchCoverage,
			Severity:    model.SignalWarning,
			Description: "No sections on either side",
			Data:        map[string]any{"old_sections": 0, "new_sections": 0},
		}
	}

	ratio := float64(m.Matched) / float64(larger)

	severity := model.SignalInfo
	if ratio < 0.5 {
		severity = model.SignalWarning
	}

	return model.Signal{
		Type:        model.SignalMatchCoverage,
		Severity:    severity,
		Description: fmt.Sprintf("Matched %d of %d sections (%.0f%%)", m.Matched, larger, ratio*100),
		Data: map[string]any{
			"old_sections":     m.OldSections,
			"new_sections":     m.NewSections,
			"matched":          m.Matched,
			"heading_fallback": m.HeadingFallback,
			"unmatched_old":    m.UnmatchedOld,
			"unmatched_new":    m.UnmatchedNew,
			"ratio":            ratio,
			"formula":          "matched / max(old_sections, new_sections)",
		},
	}
}

func (s *Scorer) volumeCap(v model.ValidationStats) model.Signal {
	return model.Signal{
		Type:        model.SignalVolumeCap,
		Severity:    model.SignalWarning,
		Description: fmt.Sprintf("TRUE_CHANGE volume cap applied: %d low-confidence records downgraded", v.Capped),
		Data: map[string]any{
			"capped":  v.Capped,
			"formula": "keep top max_true_changes by confidence when TRUE_CHANGE count > cap_trigger",
		},
	}
}

func (s *Scorer) topicMerge(v model.ValidationStats) model.Signal {
	return model.Signal{
		Type:        model.SignalTopicMerge,
		Severity:    model.SignalInfo,
		Description: fmt.Sprintf("%d records merged into earlier records on the same topic", v.Merged),
		Data: map[string]any{
			"merged":  v.Merged,
			"formula": "same type and subtype, and topic lexical >= 0.92 or text semantic >= 0.94",
		},
	}
}

func (s *Scorer) downgrades(v model.ValidationStats) model.Signal {
	return model.Signal{
		Type:        model.SignalDowngrade,
		Severity:    model.SignalInfo,
		Description: fmt.Sprintf("%d TRUE_CHANGE records downgraded by the operational impact pass", v.OperationalDowngrades),
		Data: map[string]any{
			"downgraded": v.OperationalDowngrades,
		},
	}
}

func (s *Scorer) similarityMode(m model.MatchStats) model.Signal {
	mode := m.SimilarityMode
	if mode == "" {
		mode = "lexical"
	}
	return model.Signal{
		Type:        model.SignalSimilarityMode,
		Severity:    model.SignalInfo,
		Description: fmt.Sprintf("Similarity backend: %s", mode),
		Data: map[string]any{
			"mode": mode,
		},
	}
}

// determineLevel maps the index to a coarse level
func determineLevel(index int, counts map[string]int) string {
	if index == 0 {
		return "none"
	}
	if counts[string(model.SeverityCritical)] > 0 || index >= 60 {
		return "high"
	}
	if index >= 20 {
		return "medium"
	}
	return "low"
}
