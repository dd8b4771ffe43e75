package blocklist

import (
	"fmt"
	"math"
	"net"
	"net/url"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/publicsuffix"
)

var (
	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blocklist_lookups_total",
			Help: "Blocklist membership lookups by result",
		},
		[]string{"result"},
	)

	entriesGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blocklist_entries",
			Help: "Distinct domains in the loaded blocklist",
		},
	)
)

// Result of a membership test. MatchedDomain is the exact entry or parent that hit.
type Result struct {
	Blocked       bool    `json:"blocked"`
	MatchedDomain *string `json:"matched_domain"`
}

// Stats describes the filter parameters chosen at build time
type Stats struct {
	Elements        int     `json:"elements"`
	Bits            uint    `json:"bits"`
	HashFunctions   uint    `json:"hash_functions"`
	TargetFPRate    float64 `json:"target_fp_rate"`
	EstimatedFPRate float64 `json:"estimated_fp_rate"`
}

// Blocklist is an immutable probabilistic domain denylist. It is built once
// and safe for concurrent reads without locking. Every domain inserted at
// build time tests positive.
type Blocklist struct {
	filter   *bloom.BloomFilter
	count    int
	targetFP float64
}

// New builds the filter sized for len(domains) at the target false-positive rate
func New(domains []string, fpRate float64) (*Blocklist, error) {
	if fpRate <= 0 || fpRate >= 1 {
		return nil, fmt.Errorf("false positive rate must be in (0,1), got %v", fpRate)
	}

	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		if n := NormalizeDomain(d); n != "" {
			set[n] = struct{}{}
		}
	}

	n := len(set)
	if n == 0 {
		n = 1
	}
	filter := bloom.NewWithEstimates(uint(n), fpRate)
	for d := range set {
		filter.AddString(d)
	}

	entriesGauge.Set(float64(len(set)))
	return &Blocklist{filter: filter, count: len(set), targetFP: fpRate}, nil
}

// IsBlocked tests the domain, then each parent down to the registrable
// domain. Public suffixes themselves are never tested.
func (b *Blocklist) IsBlocked(domain string) Result {
	d := NormalizeDomain(domain)
	if d == "" {
		lookupsTotal.WithLabelValues("invalid").Inc()
		return Result{}
	}

	for _, candidate := range candidates(d) {
		if b.filter.TestString(candidate) {
			lookupsTotal.WithLabelValues("blocked").Inc()
			matched := candidate
			return Result{Blocked: true, MatchedDomain: &matched}
		}
	}

	lookupsTotal.WithLabelValues("clean").Inc()
	return Result{}
}

// Len returns the number of distinct domains inserted
func (b *Blocklist) Len() int {
	return b.count
}

// Stats returns the filter parameters and the theoretical false-positive rate
func (b *Blocklist) Stats() Stats {
	m, k := b.filter.Cap(), b.filter.K()
	return Stats{
		Elements:        b.count,
		Bits:            m,
		HashFunctions:   k,
		TargetFPRate:    b.targetFP,
		EstimatedFPRate: estimateFP(m, k, uint(b.count)),
	}
}

// estimateFP is (1 - e^(-kn/m))^k
func estimateFP(m, k, n uint) float64 {
	if m == 0 || n == 0 {
		return 0
	}
	return math.Pow(1-math.Exp(-float64(k)*float64(n)/float64(m)), float64(k))
}

// NormalizeDomain lowercases, strips scheme, port, trailing dot and a leading "www.".
func NormalizeDomain(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = u.Host
	} else if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = strings.Trim(s, "[]")
	s = strings.TrimSuffix(s, ".")
	s = strings.TrimPrefix(s, "www.")
	return s
}

func candidates(domain string) []string {
	out := []string{domain}
	if net.ParseIP(domain) != nil {
		return out
	}

	registrable, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		return out
	}

	for d := domain; d != registrable; {
		i := strings.IndexByte(d, '.')
		if i < 0 {
			break
		}
		d = d[i+1:]
		out = append(out, d)
	}
	return out
}
