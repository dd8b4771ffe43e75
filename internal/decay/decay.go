package decay

import (
	"math"
	"time"

	"github.com/richxcame/scamshield/internal/intel"
)

const day = 24 * time.Hour

// Profile is the per-indicator-class decay configuration, in days
type Profile struct {
	HalfLifeDays float64
	MinFactor    float64
	HardTTLDays  float64
}

// DefaultProfiles: phishing URLs decay fastest, wallets slowest.
var DefaultProfiles = map[intel.EntityType]Profile{
	intel.EntityURL:          {HalfLifeDays: 7, MinFactor: 0.05, HardTTLDays: 90},
	intel.EntityDomain:       {HalfLifeDays: 30, MinFactor: 0.10, HardTTLDays: 365},
	intel.EntityIP:           {HalfLifeDays: 14, MinFactor: 0.05, HardTTLDays: 90},
	intel.EntityPhone:        {HalfLifeDays: 45, MinFactor: 0.10, HardTTLDays: 365},
	intel.EntityEmail:        {HalfLifeDays: 60, MinFactor: 0.10, HardTTLDays: 365},
	intel.EntityUsername:     {HalfLifeDays: 90, MinFactor: 0.10, HardTTLDays: 365},
	intel.EntityCryptoWallet: {HalfLifeDays: 180, MinFactor: 0.20, HardTTLDays: 730},
}

var fallbackProfile = Profile{HalfLifeDays: 30, MinFactor: 0.10, HardTTLDays: 365}

// Engine turns last-seen timestamps into freshness multipliers. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	profiles map[intel.EntityType]Profile
}

// NewEngine creates an engine; nil profiles selects DefaultProfiles
func NewEngine(profiles map[intel.EntityType]Profile) *Engine {
	if profiles == nil {
		profiles = DefaultProfiles
	}
	return &Engine{profiles: profiles}
}

// Profile returns the decay profile for t
func (e *Engine) Profile(t intel.EntityType) Profile {
	if p, ok := e.profiles[t]; ok {
		return p
	}
	return fallbackProfile
}

// FreshnessFactor returns 0 for a zero lastSeen or once the hard TTL has
// elapsed, 1 for sightings at or after now, and otherwise the exponential
// decay floored at the profile's MinFactor.
func (e *Engine) FreshnessFactor(lastSeen time.Time, t intel.EntityType, now time.Time) float64 {
	if lastSeen.IsZero() {
		return 0
	}
	return e.factorForAge(now.Sub(lastSeen), t)
}

func (e *Engine) factorForAge(age time.Duration, t intel.EntityType) float64 {
	elapsedDays := float64(age) / float64(day)
	if elapsedDays <= 0 {
		return 1
	}

	p := e.Profile(t)
	if elapsedDays >= p.HardTTLDays {
		return 0
	}

	f := math.Exp(-math.Ln2 / p.HalfLifeDays * elapsedDays)
	return math.Min(1, math.Max(p.MinFactor, f))
}

// DecayWeight scales weight by freshness, rounded to 2 decimals
func (e *Engine) DecayWeight(weight float64, lastSeen time.Time, t intel.EntityType, now time.Time) float64 {
	return math.Round(weight*e.FreshnessFactor(lastSeen, t, now)*100) / 100
}
