package entity

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/scamshield/internal/decay"
	"github.com/richxcame/scamshield/internal/intel"
)

const (
	// reports needed for ~63% of full report evidence
	reportSaturation = 3.0
	indicatorWeight  = 0.9
	neighbourDamping = 0.3
)

// EntityRisk is the correlation outcome for one extracted entity
type EntityRisk struct {
	Ref
	EntityID      *uuid.UUID `json:"entity_id,omitempty"`
	ReportCount   int        `json:"report_count"`
	ConfirmedScam bool       `json:"confirmed_scam"`
	LastSeen      *time.Time `json:"last_seen,omitempty"`
	LastReported  *time.Time `json:"last_reported_at,omitempty"`
	Freshness     float64    `json:"freshness"`
	Campaign      *string    `json:"campaign,omitempty"`
	Neighbours    int        `json:"neighbours"`
	Risk          float64    `json:"risk"`
}

// Known reports whether the entity carries live prior evidence: a campaign
// indicator, or community reports or a confirmed verdict that have not
// decayed past their TTL. Scan sightings alone do not count.
func (r EntityRisk) Known() bool {
	if r.Campaign != nil {
		return true
	}
	return (r.ReportCount > 0 || r.ConfirmedScam) && r.Freshness > 0
}

// GraphResult is the EntityGraph contribution to a scan
type GraphResult struct {
	NetworkRiskScore float64      `json:"network_risk_score"`
	Entities         []EntityRisk `json:"entities"`
	Campaigns        []string     `json:"linked_campaigns,omitempty"`
	IndicatorHits    int          `json:"indicator_hits"`
	TotalReports     int          `json:"total_reports"`
	RecentReports    int          `json:"recent_reports"`
	ConfirmedCount   int          `json:"confirmed_count"`
}

// Known reports whether any entity matched prior intelligence
func (g *GraphResult) Known() bool {
	if g == nil {
		return false
	}
	for _, e := range g.Entities {
		if e.Known() {
			return true
		}
	}
	return false
}

func statusFactor(s intel.CampaignStatus) float64 {
	switch s {
	case intel.CampaignDeclining:
		return 0.75
	case intel.CampaignDormant:
		return 0.5
	default:
		return 1
	}
}

// ownRisk scores the direct evidence on one entity: decayed community
// reports (or a confirmed verdict) and any curated indicator match.
func ownRisk(e *intel.Entity, match *intel.IndicatorMatch, eng *decay.Engine, now time.Time) (risk, freshness float64) {
	if e != nil {
		evidence := 1 - math.Exp(-float64(e.ReportCount)/reportSaturation)
		if e.ConfirmedScam {
			evidence = 1
		}
		freshness = eng.FreshnessFactor(e.EvidenceAt(), e.Type, now)
		risk = evidence * freshness
	}
	if match != nil {
		risk = math.Max(risk, indicatorWeight*statusFactor(match.Campaign.Status))
	}
	return risk, freshness
}

// networkRisk adds a damped share of the riskiest neighbour to own risk
func networkRisk(own, neighbourMax float64) float64 {
	v := own + (1-own)*neighbourDamping*neighbourMax
	return round3(math.Min(1, math.Max(0, v)))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
