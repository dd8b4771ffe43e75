// Package risk fuses per-scorer results into one bounded risk score.
package risk

import "math"

// Label is the coarse risk bucket
type Label string

const (
	LabelHigh   Label = "HIGH"
	LabelMedium Label = "MEDIUM"
	LabelLow    Label = "LOW"
)

// Contribution is one scorer's normalized score and its weight
type Contribution struct {
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// Assessment is the fused outcome
type Assessment struct {
	Score         float64        `json:"score"`
	Label         Label          `json:"label"`
	Contributions []Contribution `json:"contributions"`
}

// Aggregate computes the weighted mean of contributions rounded to 3
// decimals. Contributions with a non-positive weight are ignored and
// scores are clamped to [0,1]. No contributions yields 0 / LOW.
func Aggregate(contributions []Contribution) Assessment {
	kept := make([]Contribution, 0, len(contributions))
	var sum, weights float64
	for _, c := range contributions {
		if c.Weight <= 0 || math.IsNaN(c.Score) || math.IsNaN(c.Weight) {
			continue
		}
		c.Score = math.Max(0, math.Min(1, c.Score))
		sum += c.Score * c.Weight
		weights += c.Weight
		kept = append(kept, c)
	}

	a := Assessment{Label: LabelLow, Contributions: kept}
	if weights == 0 {
		return a
	}
	a.Score = math.Round(sum/weights*1000) / 1000
	a.Label = LabelFor(a.Score)
	return a
}

// LabelFor buckets a score: above 0.6 is HIGH, above 0.3 MEDIUM
func LabelFor(score float64) Label {
	switch {
	case score > 0.6:
		return LabelHigh
	case score > 0.3:
		return LabelMedium
	default:
		return LabelLow
	}
}

// Builder collects contributions from scorers that produced a result
type Builder struct {
	contributions []Contribution
}

// Add records a contribution
func (b *Builder) Add(source string, score, weight float64) *Builder {
	b.contributions = append(b.contributions, Contribution{Source: source, Score: score, Weight: weight})
	return b
}

// AddIf records a contribution only when present is true
func (b *Builder) AddIf(present bool, source string, score, weight float64) *Builder {
	if present {
		b.Add(source, score, weight)
	}
	return b
}

// Len returns how many contributions were recorded
func (b *Builder) Len() int {
	return len(b.contributions)
}

// Assess aggregates the recorded contributions
func (b *Builder) Assess() Assessment {
	return Aggregate(b.contributions)
}
