package scan

import (
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/scamshield/internal/blocklist"
	"github.com/richxcame/scamshield/internal/decay"
	"github.com/richxcame/scamshield/internal/enrichment"
	"github.com/richxcame/scamshield/internal/entity"
	"github.com/richxcame/scamshield/internal/features"
	"github.com/richxcame/scamshield/internal/fingerprint"
	"github.com/richxcame/scamshield/internal/risk"
	"github.com/richxcame/scamshield/internal/trust"
)

// Request is one input to score
type Request struct {
	Type  string `json:"type" validate:"required,scan_type"`
	Value string `json:"value" validate:"required,notblank,max=5000"`
}

// FingerprintRequest asks for a campaign match only
type FingerprintRequest struct {
	Content string `json:"content" validate:"required,notblank,max=5000"`
	Type    string `json:"type" validate:"omitempty,scan_type"`
}

// TrustScoreRequest grades caller-supplied signals
type TrustScoreRequest struct {
	Signals   []features.Signal `json:"signals" validate:"max=100"`
	InputType string            `json:"input_type" validate:"required,scan_type"`
	Context   *trust.Context    `json:"context,omitempty"`
}

// BlocklistQuery is the query string of GET /blocklist/check
type BlocklistQuery struct {
	Domain string `form:"domain" json:"domain" validate:"required,notblank,max=500"`
}

// Result is the unified verdict of one scan. Subsystem sections are nil
// when the subsystem did not apply or did not finish within its budget.
type Result struct {
	ScanID           uuid.UUID            `json:"scan_id"`
	InputType        string               `json:"input_type"`
	OverallRiskScore float64              `json:"overall_risk_score"`
	OverallRiskLabel risk.Label           `json:"overall_risk_label"`
	Confidence       decay.Confidence     `json:"confidence"`
	Contributions    []risk.Contribution  `json:"contributions"`
	Blocklist        *BlocklistHit        `json:"blocklist,omitempty"`
	URLAnalysis      *features.URLResult  `json:"url_analysis,omitempty"`
	Spam             *features.SpamResult `json:"spam,omitempty"`
	Graph            *entity.GraphResult  `json:"graph,omitempty"`
	Fingerprint      *fingerprint.Result  `json:"fingerprint,omitempty"`
	AIDetection      *features.AIResult   `json:"ai_detection,omitempty"`
	BotDetection     *features.BotResult  `json:"bot_detection,omitempty"`
	Enrichment       []enrichment.Result  `json:"enrichment,omitempty"`
	Trust            trust.Result         `json:"trust"`
	Signals          []features.Signal    `json:"signals"`
	Unavailable      []string             `json:"unavailable,omitempty"`
	ScannedAt        time.Time            `json:"scanned_at"`
	DurationMs       int64                `json:"duration_ms"`
	Entities         []entity.Ref         `json:"entities"`
}

// Partial reports whether any subsystem missed its budget or failed
func (r *Result) Partial() bool {
	return len(r.Unavailable) > 0
}

// BlocklistHit is the blocklist verdict over every domain a scan touched
type BlocklistHit struct {
	Checked []string           `json:"checked"`
	Hits    []blocklist.Result `json:"hits"`
}

// Blocked reports whether any checked domain is on the list
func (b *BlocklistHit) Blocked() bool {
	return b != nil && len(b.Hits) > 0
}

// Completed is the payload of scan.completed events
type Completed struct {
	ScanID     uuid.UUID        `json:"scan_id"`
	InputType  string           `json:"input_type"`
	Score      float64          `json:"score"`
	Label      risk.Label       `json:"label"`
	Confidence decay.Confidence `json:"confidence"`
	Campaign   *string          `json:"campaign,omitempty"`
	Partial    bool             `json:"partial"`
	ScannedAt  time.Time        `json:"scanned_at"`
}
