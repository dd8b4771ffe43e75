package resilience

import "time"

const (
	defaultInterval  = time.Minute
	defaultOpenFor   = 30 * time.Second
	defaultTripAfter = 5
)

// UpstreamSettings are the breaker settings shared by the scoring upstreams:
// five consecutive failures open the breaker for 30s, and one probe call is
// let through while half-open.
func UpstreamSettings(name string) Settings {
	return Settings{Name: name}.withDefaults()
}

func (s Settings) withDefaults() Settings {
	if s.Name == "" {
		s.Name = "upstream"
	}
	if s.Interval <= 0 {
		s.Interval = defaultInterval
	}
	if s.Timeout <= 0 {
		s.Timeout = defaultOpenFor
	}
	if s.FailureThreshold == 0 {
		s.FailureThreshold = defaultTripAfter
	}
	if s.SuccessThreshold == 0 {
		s.SuccessThreshold = 1
	}
	return s
}
