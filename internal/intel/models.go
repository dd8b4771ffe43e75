package intel

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an entity or indicator has never been seen.
// Callers treat it as absence of evidence, not as a failure.
var ErrNotFound = errors.New("intel: not found")

// EntityType is the kind of observable tracked in the intelligence graph
type EntityType string

const (
	EntityEmail        EntityType = "email"
	EntityPhone        EntityType = "phone"
	EntityURL          EntityType = "url"
	EntityDomain       EntityType = "domain"
	EntityCryptoWallet EntityType = "crypto_wallet"
	EntityIP           EntityType = "ip"
	EntityUsername     EntityType = "username"
)

// EntityTypes lists every tracked entity type
var EntityTypes = []EntityType{
	EntityEmail, EntityPhone, EntityURL, EntityDomain, EntityCryptoWallet, EntityIP, EntityUsername,
}

// Valid reports whether t is a known entity type
func (t EntityType) Valid() bool {
	for _, known := range EntityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Entity is a normalized observable. Unique per (Type, Value); never deleted.
// LastSeen moves on every sighting, LastReportedAt only when a report names it.
type Entity struct {
	ID             uuid.UUID  `json:"id"`
	Type           EntityType `json:"type"`
	Value          string     `json:"value"`
	FirstSeen      time.Time  `json:"first_seen"`
	LastSeen       time.Time  `json:"last_seen"`
	LastReportedAt *time.Time `json:"last_reported_at,omitempty"`
	ReportCount    int        `json:"report_count"`
	ConfirmedScam  bool       `json:"confirmed_scam"`
}

// EvidenceAt is when the entity's report evidence was last refreshed.
// Rows that predate report timestamps fall back to LastSeen.
func (e *Entity) EvidenceAt() time.Time {
	if e.LastReportedAt != nil {
		return *e.LastReportedAt
	}
	return e.LastSeen
}

// CampaignStatus is the curation state of a campaign
type CampaignStatus string

const (
	CampaignActive    CampaignStatus = "active"
	CampaignDeclining CampaignStatus = "declining"
	CampaignDormant   CampaignStatus = "dormant"
)

// Indicator belongs to exactly one campaign
type Indicator struct {
	ID         uuid.UUID  `json:"id"`
	Type       EntityType `json:"type"`
	Value      string     `json:"value"`
	CampaignID uuid.UUID  `json:"campaign_id"`
}

// Campaign is a curated cluster of indicators attributed to one scam family
type Campaign struct {
	ID          uuid.UUID      `json:"id"`
	FamilyName  string         `json:"family_name"`
	Indicators  []Indicator    `json:"indicators"`
	Status      CampaignStatus `json:"status"`
	FirstSeen   time.Time      `json:"first_seen"`
	Regions     []string       `json:"regions"`
	ReportCount int            `json:"report_count"`
	// Templates are representative messages used for fingerprinting.
	Templates []string `json:"templates,omitempty"`
}

// Report is a community submission
type Report struct {
	ID        uuid.UUID   `json:"id"`
	ScamType  string      `json:"scam_type"`
	Message   string      `json:"message"`
	Province  *string     `json:"province,omitempty"`
	EntityIDs []uuid.UUID `json:"entity_ids"`
	Verified  bool        `json:"verified"`
	Upvotes   int         `json:"upvotes"`
	CreatedAt time.Time   `json:"created_at"`
}

// IndicatorMatch is an indicator together with its owning campaign
type IndicatorMatch struct {
	Indicator Indicator `json:"indicator"`
	Campaign  Campaign  `json:"campaign"`
}
