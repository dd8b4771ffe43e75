// Package trust maps scan signals to a human-facing 0-100 trust score and letter grade.
package trust

import (
	"math"

	"github.com/richxcame/scamshield/internal/features"
)

// Grade is a letter grade from A (trusted) to F (dangerous)
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

const maxBonus = 35

// Bonus points for positive evidence about a website
const (
	BonusDomainAge        = 10
	BonusWhitelistedBrand = 15
	BonusValidTLS         = 5
	BonusKnownRegistrar   = 5
)

var gradeBands = []struct {
	min   int
	grade Grade
	label string
}{
	{81, GradeA, "Trusted"},
	{61, GradeB, "Low Risk"},
	{41, GradeC, "Use Caution"},
	{21, GradeD, "Suspicious"},
	{0, GradeF, "Dangerous"},
}

// Context is optional positive evidence about a website
type Context struct {
	DomainAgeYears   *float64 `json:"domain_age_years,omitempty"`
	WhitelistedBrand bool     `json:"whitelisted_brand"`
	ValidTLS         bool     `json:"valid_tls"`
	KnownRegistrar   bool     `json:"known_registrar"`
}

// Factor explains one adjustment to the score
type Factor struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Points      float64 `json:"points"`
}

// Result is the graded trust score
type Result struct {
	Score           int      `json:"score"`
	Grade           Grade    `json:"grade"`
	Label           string   `json:"label"`
	PositiveFactors []Factor `json:"positive_factors"`
	NegativeFactors []Factor `json:"negative_factors"`
}

// Score computes min(100, max(0, 100 - penalties) + min(35, bonuses)).
// Only signals with a positive weight count as penalties. Context bonuses
// apply to website, url and domain inputs.
func Score(signals []features.Signal, inputType string, ctx *Context) Result {
	res := Result{PositiveFactors: []Factor{}, NegativeFactors: []Factor{}}

	var penalties float64
	for _, s := range signals {
		if s.Weight <= 0 {
			continue
		}
		penalties += s.Weight
		res.NegativeFactors = append(res.NegativeFactors, Factor{Name: s.Name, Description: s.Description, Points: -s.Weight})
	}

	var bonuses float64
	if ctx != nil && appliesTo(inputType) {
		add := func(name, desc string, points float64) {
			bonuses += points
			res.PositiveFactors = append(res.PositiveFactors, Factor{Name: name, Description: desc, Points: points})
		}
		if ctx.DomainAgeYears != nil && *ctx.DomainAgeYears > 5 {
			add("domain_age", "domain registered more than 5 years ago", BonusDomainAge)
		}
		if ctx.WhitelistedBrand {
			add("whitelisted_brand", "domain belongs to a known brand", BonusWhitelistedBrand)
		}
		if ctx.ValidTLS {
			add("valid_tls", "site serves a valid TLS certificate", BonusValidTLS)
		}
		if ctx.KnownRegistrar {
			add("known_registrar", "domain uses a reputable registrar", BonusKnownRegistrar)
		}
	}

	score := math.Max(0, 100-penalties) + math.Min(maxBonus, bonuses)
	res.Score = int(math.Round(math.Min(100, score)))
	res.Grade, res.Label = GradeFor(res.Score)
	return res
}

// GradeFor maps a score to its grade using inclusive lower bounds 81/61/41/21/0
func GradeFor(score int) (Grade, string) {
	for _, b := range gradeBands {
		if score >= b.min {
			return b.grade, b.label
		}
	}
	return GradeF, "Dangerous"
}

func appliesTo(inputType string) bool {
	switch inputType {
	case "website", "url", "domain":
		return true
	}
	return false
}
