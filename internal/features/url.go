package features

import (
	"fmt"
	"math"
	"net"
	"net/url"
	"strings"
)

// pointsPerFeature: 8 features x 12.5 = 100
const pointsPerFeature = 12.5

// URLFeatures are the structural properties compared against the centroids
type URLFeatures struct {
	URLLength     int  `json:"url_length"`
	DotCount      int  `json:"dot_count"`
	HyphenCount   int  `json:"hyphen_count"`
	DomainLength  int  `json:"domain_length"`
	DomainDots    int  `json:"domain_dots"`
	DomainHyphens int  `json:"domain_hyphens"`
	IsIP          bool `json:"is_ip"`
	HasTLS        bool `json:"has_tls"`
}

type centroid struct {
	name          string
	phish, legit  float64
	value         func(URLFeatures) float64
	describeAsHit string
}

// Centroids are averages over labelled phishing and legitimate URL sets.
var urlCentroids = []centroid{
	{"url_length", 74.6, 45.2, func(f URLFeatures) float64 { return float64(f.URLLength) }, "URL is unusually long"},
	{"dot_count", 3.4, 2.1, func(f URLFeatures) float64 { return float64(f.DotCount) }, "URL contains many dots"},
	{"hyphen_count", 1.8, 0.4, func(f URLFeatures) float64 { return float64(f.HyphenCount) }, "URL contains many hyphens"},
	{"domain_length", 22.5, 13.1, func(f URLFeatures) float64 { return float64(f.DomainLength) }, "domain name is unusually long"},
	{"domain_dots", 2.6, 1.6, func(f URLFeatures) float64 { return float64(f.DomainDots) }, "domain has many subdomain levels"},
	{"domain_hyphens", 0.9, 0.1, func(f URLFeatures) float64 { return float64(f.DomainHyphens) }, "domain contains hyphens"},
	{"is_ip", 0.18, 0, func(f URLFeatures) float64 { return boolFloat(f.IsIP) }, "host is a raw IP address"},
	{"has_tls", 0.42, 0.97, func(f URLFeatures) float64 { return boolFloat(f.HasTLS) }, "connection is not encrypted (no HTTPS)"},
}

// URLResult is the nearest-centroid verdict for one URL
type URLResult struct {
	Valid      bool        `json:"valid"`
	Score      float64     `json:"score"` // 0..100
	Host       string      `json:"host,omitempty"`
	Features   URLFeatures `json:"features"`
	Suspicious []string    `json:"suspicious_features"`
	Signals    []Signal    `json:"signals,omitempty"`
}

// Normalized returns the score in [0,1]
func (r URLResult) Normalized() float64 {
	return r.Score / 100
}

// ExtractURLFeatures parses raw, assuming plain http when no scheme is given
func ExtractURLFeatures(raw string) (URLFeatures, string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return URLFeatures{}, "", fmt.Errorf("empty url")
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return URLFeatures{}, "", fmt.Errorf("parse url: %w", err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return URLFeatures{}, "", fmt.Errorf("url has no host")
	}

	return URLFeatures{
		URLLength:     len(s),
		DotCount:      strings.Count(s, "."),
		HyphenCount:   strings.Count(s, "-"),
		DomainLength:  len(host),
		DomainDots:    strings.Count(host, "."),
		DomainHyphens: strings.Count(host, "-"),
		IsIP:          net.ParseIP(host) != nil,
		HasTLS:        strings.EqualFold(u.Scheme, "https"),
	}, host, nil
}

// ScoreURL compares each feature with the phishing and legitimate centroids.
// A feature counts when strictly closer to the phishing centroid; ties do not.
// Unparseable input yields an invalid, zero-score result.
func ScoreURL(raw string) URLResult {
	f, host, err := ExtractURLFeatures(raw)
	if err != nil {
		return URLResult{}
	}

	res := URLResult{Valid: true, Host: host, Features: f, Suspicious: []string{}}
	for _, c := range urlCentroids {
		if closerToPhish(c.value(f), c.phish, c.legit) {
			res.Score += pointsPerFeature
			res.Suspicious = append(res.Suspicious, c.name)
			res.Signals = append(res.Signals, Signal{
				Source:      "url_structure",
				Name:        c.name,
				Description: fmt.Sprintf("%s: %s", host, c.describeAsHit),
				Weight:      4,
			})
		}
	}
	return res
}

// distances within tieEpsilon of each other are a tie, which favors legit
const tieEpsilon = 1e-9

func closerToPhish(v, phish, legit float64) bool {
	return math.Abs(v-phish) < math.Abs(v-legit)-tieEpsilon
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
