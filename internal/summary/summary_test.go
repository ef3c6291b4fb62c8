package summary

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ppiankov/regdiff/internal/model"
)

func TestDisplayLabel(t *testing.T) {
	assert.Equal(t, LabelAdded, DisplayLabel(model.SubtypeRuleAdded))
	assert.Equal(t, LabelRemoved, DisplayLabel(model.SubtypeRuleRemoved))
	assert.Equal(t, LabelModified, DisplayLabel(model.SubtypeNumericLimit))
	assert.Equal(t, LabelModified, DisplayLabel("anything else"))
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		ch   model.Change
		want string
	}{
		{
			name: "numeric from to",
			ch: model.Change{
				Subtype: model.SubtypeNumericLimit,
				OldText: "The flight duty period shall not exceed 13 hours.",
				NewText: "The flight duty period shall not exceed 11 hours.",
			},
			want: "The flight duty period has changed from 13 to 11.",
		},
		{
			name: "numeric added only",
			ch: model.Change{
				Subtype: model.SubtypeNumericLimit,
				OldText: "Crew shall rest before duty.",
				NewText: "Crew shall rest 10 hours before duty.",
			},
			want: "The rest requirement now includes 10, which was not specified earlier.",
		},
		{
			name: "numeric removed only, duplicates collapsed",
			ch: model.Change{
				Subtype: model.SubtypeNumericLimit,
				OldText: "Standby of 12 hours, max 12 hours.",
				NewText: "Standby as rostered.",
			},
			want: "The standby limit no longer includes 12.",
		},
		{
			name: "numeric without differing numbers",
			ch:   model.Change{Subtype: model.SubtypeNumericLimit, OldText: "Limit 5.", NewText: "Limit 5 apply."},
			want: "Operational numeric limits were revised.",
		},
		{
			name: "applicability",
			ch: model.Change{
				Subtype: model.SubtypeApplicability,
				OldText: "Applies to scheduled operators. Other text.",
				NewText: "Applies to all operators.",
			},
			want: "Applicability has been revised. Earlier: Applies to scheduled operators. Now: Applies to all operators.",
		},
		{
			name: "applicability one side empty",
			ch:   model.Change{Subtype: model.SubtypeApplicability, NewText: "Applies to all operators."},
			want: "Applicability scope has changed for operators or operations covered by this rule.",
		},
		{
			name: "added",
			ch:   model.Change{Subtype: model.SubtypeRuleAdded, NewText: "Crew shall report fatigue."},
			want: "A new operational requirement has been added: Crew shall report fatigue.",
		},
		{
			name: "removed empty",
			ch:   model.Change{Subtype: model.SubtypeRuleRemoved},
			want: "An existing operational requirement has been removed.",
		},
		{
			name: "modified",
			ch: model.Change{
				Subtype: model.SubtypeOperational,
				OldText: "Standby may be assigned.",
				NewText: "Standby must be assigned in writing.",
			},
			want: "The standby limit has been revised. Earlier: Standby may be assigned. Now: Standby must be assigned in writing.",
		},
		{
			name: "modified one side empty",
			ch:   model.Change{Subtype: model.SubtypeOperational, NewText: "Flight time is logged."},
			want: "The flight time has been revised with operational impact.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.ch))
		})
	}
}

func TestFirstSentence_Truncates(t *testing.T) {
	long := strings.TrimSpace(strings.Repeat("word ", 40)) + ". Second."
	got := firstSentence(long)

	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Len(t, strings.Fields(strings.TrimSuffix(got, "...")), maxSentenceWords)
	assert.Equal(t, "3.5 hours apply.", firstSentence("3.5 hours apply. Then more."))
}

func TestContextLabel(t *testing.T) {
	assert.Equal(t, "flight duty period", contextLabel("FDP extension"))
	assert.Equal(t, "rest after standby", contextLabel("rest after standby duty"))
	assert.Equal(t, "applicability", contextLabel("This is applicable"))
	assert.Equal(t, "operational requirement", contextLabel("records"))
}

func TestHighlight(t *testing.T) {
	got := Highlight("The limit has changed from 13 to 11 hours and no longer includes 10:30.")
	assert.Equal(t, "The **limit** has changed from **13** to **11 hours** and **no longer** includes **10:30**.", got)
}

func TestSentenceCase(t *testing.T) {
	assert.Equal(t, "Élan", sentenceCase("élan"))
	assert.Equal(t, "", sentenceCase("   "))
}
