// Package enrichment runs best-effort third-party lookups that add context
// to a scan. Every lookup settles to a value or an "unknown" placeholder.
package enrichment

import "time"

// Kind discriminates enrichment payloads
type Kind string

const (
	KindUsernamePresence Kind = "username_presence"
	KindFactCheck        Kind = "fact_check"
	KindDomainProfile    Kind = "domain_profile"
)

// Status of a settled lookup
type Status string

const (
	StatusOK      Status = "ok"
	StatusUnknown Status = "unknown"
)

// Payload is implemented by the closed set of lookup results below
type Payload interface {
	Kind() Kind
	isPayload()
}

// UsernamePresence records whether a handle exists on one platform.
// Exists is nil when the platform answered ambiguously.
type UsernamePresence struct {
	Username string `json:"username"`
	Platform string `json:"platform"`
	Exists   *bool  `json:"exists"`
}

// Claim is one fact-checked claim
type Claim struct {
	Text      string `json:"text"`
	Claimant  string `json:"claimant,omitempty"`
	Rating    string `json:"rating,omitempty"`
	Publisher string `json:"publisher,omitempty"`
	URL       string `json:"url,omitempty"`
}

// FactCheck lists published fact-checks matching a text
type FactCheck struct {
	Query  string  `json:"query"`
	Claims []Claim `json:"claims"`
}

// DomainProfile is registration and transport evidence about a domain
type DomainProfile struct {
	Domain           string     `json:"domain"`
	RegisteredAt     *time.Time `json:"registered_at,omitempty"`
	AgeYears         *float64   `json:"age_years,omitempty"`
	Registrar        string     `json:"registrar,omitempty"`
	KnownRegistrar   bool       `json:"known_registrar"`
	ValidTLS         *bool      `json:"valid_tls"`
	WhitelistedBrand bool       `json:"whitelisted_brand"`
}

func (UsernamePresence) Kind() Kind { return KindUsernamePresence }
func (FactCheck) Kind() Kind        { return KindFactCheck }
func (DomainProfile) Kind() Kind    { return KindDomainProfile }

func (UsernamePresence) isPayload() {}
func (FactCheck) isPayload()        {}
func (DomainProfile) isPayload()    {}

// Result is one settled lookup. Payload is nil when Status is unknown.
type Result struct {
	Kind       Kind    `json:"kind"`
	Key        string  `json:"key"`
	Status     Status  `json:"status"`
	Payload    Payload `json:"payload,omitempty"`
	Error      string  `json:"error,omitempty"`
	DurationMs int64   `json:"duration_ms"`
}
