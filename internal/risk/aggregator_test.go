package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregate_Empty(t *testing.T) {
	a := Aggregate(nil)
	assert.Zero(t, a.Score)
	assert.Equal(t, LabelLow, a.Label)
	assert.Empty(t, a.Contributions)
}

func TestAggregate_SingleContributionIsItsOwnScore(t *testing.T) {
	for _, score := range []float64{0, 0.125, 0.487, 0.9, 1} {
		for _, weight := range []float64{0.1, 1, 7.5} {
			a := Aggregate([]Contribution{{Source: "x", Score: score, Weight: weight}})
			assert.Equal(t, score, a.Score, "score=%v weight=%v", score, weight)
		}
	}
}

func TestAggregate_WeightedMean(t *testing.T) {
	a := Aggregate([]Contribution{
		{Source: "spam", Score: 1.0, Weight: 0.25},
		{Source: "fingerprint", Score: 0.6, Weight: 0.3},
		{Source: "url", Score: 0.125, Weight: 0.2},
	})

	// (0.25 + 0.18 + 0.025) / 0.75
	assert.Equal(t, 0.607, a.Score)
	assert.Equal(t, LabelHigh, a.Label)
	assert.Len(t, a.Contributions, 3)
}

func TestAggregate_IgnoresInvalidContributions(t *testing.T) {
	a := Aggregate([]Contribution{
		{Source: "ok", Score: 0.4, Weight: 1},
		{Source: "zero-weight", Score: 1, Weight: 0},
		{Source: "negative", Score: 1, Weight: -2},
		{Source: "nan", Score: math.NaN(), Weight: 1},
	})
	assert.Equal(t, 0.4, a.Score)
	assert.Len(t, a.Contributions, 1)
}

func TestAggregate_ClampsScores(t *testing.T) {
	a := Aggregate([]Contribution{{Score: 1.7, Weight: 1}, {Score: -0.5, Weight: 1}})
	assert.Equal(t, 0.5, a.Score)
}

func TestLabelFor_Boundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  Label
	}{
		{0, LabelLow},
		{0.3, LabelLow},
		{0.301, LabelMedium},
		{0.6, LabelMedium},
		{0.601, LabelHigh},
		{1, LabelHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LabelFor(tt.score), "score=%v", tt.score)
	}
}

func TestBuilder(t *testing.T) {
	var b Builder
	b.Add("spam", 1, 0.25).AddIf(false, "ai", 0.9, 0.1).AddIf(true, "url", 0, 0.2)

	assert.Equal(t, 2, b.Len())
	a := b.Assess()
	assert.Equal(t, 0.556, a.Score)
	assert.Equal(t, LabelMedium, a.Label)
}
