package enrichment

import (
	"context"
	"strings"
	"time"

	"github.com/richxcame/scamshield/internal/blocklist"
	"github.com/richxcame/scamshield/internal/trust"
	"github.com/richxcame/scamshield/pkg/config"
	"github.com/richxcame/scamshield/pkg/httpclient"
	"github.com/richxcame/scamshield/pkg/ratelimit"
	"github.com/richxcame/scamshield/pkg/resilience"
)

const defaultLookupTimeout = 3 * time.Second

// Service picks the lookups relevant to an input and settles them
type Service struct {
	timeout   time.Duration
	usernames *UsernameChecker
	facts     *FactChecker
	domains   *DomainProfiler
}

// NewService wires lookups from cfg. Lookups without an endpoint are skipped.
func NewService(cfg config.EnrichmentConfig, cooldown *ratelimit.Cooldown) *Service {
	timeout := cfg.LookupTimeout
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	s := &Service{timeout: timeout}

	if len(cfg.UsernamePlatforms) > 0 {
		client := httpclient.NewClient("", timeout).With(httpclient.WithDefaultRetry())
		s.usernames = NewUsernameChecker(client, cooldown, cfg.UsernamePlatforms)
	}
	if cfg.FactCheckURL != "" {
		s.facts = NewFactChecker(newGuardedClient("fact-check", cfg.FactCheckURL, timeout), cfg.FactCheckAPIKey)
	}
	if cfg.DomainProfileURL != "" {
		s.domains = NewDomainProfiler(newGuardedClient("rdap", cfg.DomainProfileURL, timeout), nil)
	}
	return s
}

// NewServiceWith assembles a service from prebuilt lookups, any of which may be nil
func NewServiceWith(timeout time.Duration, usernames *UsernameChecker, facts *FactChecker, domains *DomainProfiler) *Service {
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	return &Service{timeout: timeout, usernames: usernames, facts: facts, domains: domains}
}

func newGuardedClient(name, baseURL string, timeout time.Duration) *httpclient.Client {
	breaker := resilience.NewCircuitBreaker(
		resilience.UpstreamSettings(name),
		resilience.Degraded(name),
	)
	return httpclient.NewClient(strings.TrimSuffix(baseURL, "/"), timeout).With(
		httpclient.WithDefaultRetry(),
		httpclient.WithBreaker(breaker),
	)
}

// Tasks returns the lookups for one scan input
func (s *Service) Tasks(inputType, value string) []Task {
	var tasks []Task
	switch inputType {
	case "username":
		if s.usernames != nil {
			tasks = append(tasks, s.usernames.Tasks(value)...)
		}
	case "message":
		if s.facts != nil && strings.TrimSpace(value) != "" {
			tasks = append(tasks, s.facts.Task(value))
		}
	case "website", "url", "domain":
		if s.domains != nil {
			if d := blocklist.NormalizeDomain(value); d != "" {
				tasks = append(tasks, s.domains.Task(d))
			}
		}
	}
	return tasks
}

// Enrich settles every lookup relevant to the input. It never fails.
func (s *Service) Enrich(ctx context.Context, inputType, value string) []Result {
	tasks := s.Tasks(inputType, value)
	if len(tasks) == 0 {
		return nil
	}
	return SettleAll(ctx, s.timeout, tasks)
}

// TrustContext derives positive trust evidence from a settled domain profile
func TrustContext(results []Result) *trust.Context {
	for _, r := range results {
		p, ok := r.Payload.(DomainProfile)
		if r.Status != StatusOK || !ok {
			continue
		}
		return &trust.Context{
			DomainAgeYears:   p.AgeYears,
			WhitelistedBrand: p.WhitelistedBrand,
			ValidTLS:         p.ValidTLS != nil && *p.ValidTLS,
			KnownRegistrar:   p.KnownRegistrar,
		}
	}
	return nil
}

// UsernameExists summarizes presence checks: how many platforms confirmed
// the handle and how many answered at all.
func UsernameExists(results []Result) (found, answered int) {
	for _, r := range results {
		p, ok := r.Payload.(UsernamePresence)
		if r.Status != StatusOK || !ok || p.Exists == nil {
			continue
		}
		answered++
		if *p.Exists {
			found++
		}
	}
	return found, answered
}
