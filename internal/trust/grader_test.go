package trust

import (
	"testing"

	"github.com/richxcame/scamshield/internal/features"
	"github.com/stretchr/testify/assert"
)

func years(v float64) *float64 { return &v }

func TestGradeFor_Boundaries(t *testing.T) {
	tests := []struct {
		score int
		grade Grade
		label string
	}{
		{100, GradeA, "Trusted"},
		{81, GradeA, "Trusted"},
		{80, GradeB, "Low Risk"},
		{61, GradeB, "Low Risk"},
		{60, GradeC, "Use Caution"},
		{41, GradeC, "Use Caution"},
		{40, GradeD, "Suspicious"},
		{21, GradeD, "Suspicious"},
		{20, GradeF, "Dangerous"},
		{0, GradeF, "Dangerous"},
	}
	for _, tt := range tests {
		g, l := GradeFor(tt.score)
		assert.Equal(t, tt.grade, g, "score=%d", tt.score)
		assert.Equal(t, tt.label, l, "score=%d", tt.score)
	}
}

func TestScore_NoSignals(t *testing.T) {
	res := Score(nil, "website", nil)
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, GradeA, res.Grade)
	assert.Empty(t, res.NegativeFactors)
	assert.Empty(t, res.PositiveFactors)
}

func TestScore_Penalties(t *testing.T) {
	signals := []features.Signal{
		{Name: "spam_language", Weight: 25},
		{Name: "high_intent_phrase", Weight: 5},
		{Name: "bot_like_username", Weight: 15},
		{Name: "ignored", Weight: -10},
		{Name: "zero", Weight: 0},
	}
	res := Score(signals, "message", nil)

	assert.Equal(t, 55, res.Score)
	assert.Equal(t, GradeC, res.Grade)
	assert.Len(t, res.NegativeFactors, 3)
	assert.Equal(t, -25.0, res.NegativeFactors[0].Points)
}

func TestScore_FloorsAtZeroBeforeBonuses(t *testing.T) {
	signals := []features.Signal{{Name: "blocklisted", Weight: 60}, {Name: "campaign", Weight: 40}, {Name: "spam", Weight: 25}}
	ctx := &Context{ValidTLS: true}

	res := Score(signals, "website", ctx)

	assert.Equal(t, 5, res.Score)
	assert.Equal(t, GradeF, res.Grade)
}

func TestScore_BonusesCapped(t *testing.T) {
	ctx := &Context{DomainAgeYears: years(12), WhitelistedBrand: true, ValidTLS: true, KnownRegistrar: true}
	signals := []features.Signal{{Name: "dot_count", Weight: 4}, {Name: "domain_dots", Weight: 4}, {Name: "long", Weight: 40}}

	res := Score(signals, "website", ctx)

	// 100 - 48 + min(35, 35)
	assert.Equal(t, 87, res.Score)
	assert.Len(t, res.PositiveFactors, 4)
}

func TestScore_CappedAt100(t *testing.T) {
	ctx := &Context{DomainAgeYears: years(8), WhitelistedBrand: true}
	res := Score([]features.Signal{{Weight: 4}}, "url", ctx)
	assert.Equal(t, 100, res.Score)
}

func TestScore_DomainAgeMustExceedFiveYears(t *testing.T) {
	res := Score([]features.Signal{{Weight: 30}}, "domain", &Context{DomainAgeYears: years(5)})
	assert.Equal(t, 70, res.Score)
	assert.Empty(t, res.PositiveFactors)
}

func TestScore_ContextIgnoredForNonWebInputs(t *testing.T) {
	res := Score([]features.Signal{{Weight: 30}}, "phone", &Context{ValidTLS: true, WhitelistedBrand: true})
	assert.Equal(t, 70, res.Score)
	assert.Empty(t, res.PositiveFactors)
}

func TestScore_AlwaysInRange(t *testing.T) {
	ctx := &Context{DomainAgeYears: years(20), WhitelistedBrand: true, ValidTLS: true, KnownRegistrar: true}
	for _, w := range []float64{0, 0.5, 19.5, 59, 100, 500} {
		for _, c := range []*Context{nil, ctx} {
			res := Score([]features.Signal{{Weight: w}}, "website", c)
			assert.GreaterOrEqual(t, res.Score, 0)
			assert.LessOrEqual(t, res.Score, 100)
		}
	}
}
