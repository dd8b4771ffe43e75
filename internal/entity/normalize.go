package entity

import (
	"net"
	"net/url"
	"strings"
	"unicode"

	"github.com/richxcame/scamshield/internal/blocklist"
	"github.com/richxcame/scamshield/internal/intel"
	"golang.org/x/net/publicsuffix"
)

// Normalize canonicalises raw for t. ok is false when raw cannot be an entity of that type.
func Normalize(t intel.EntityType, raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", false
	}

	switch t {
	case intel.EntityEmail:
		v = strings.ToLower(strings.TrimPrefix(v, "mailto:"))
		at := strings.LastIndex(v, "@")
		if at <= 0 || at == len(v)-1 || strings.ContainsAny(v, " \t") {
			return "", false
		}
		return v, true

	case intel.EntityPhone:
		return normalizePhone(v)

	case intel.EntityURL:
		return normalizeURL(v)

	case intel.EntityDomain:
		d := blocklist.NormalizeDomain(v)
		if net.ParseIP(d) == nil && !hasPublicSuffix(d) {
			return "", false
		}
		return d, true

	case intel.EntityIP:
		ip := net.ParseIP(strings.Trim(v, "[]"))
		if ip == nil {
			return "", false
		}
		return ip.String(), true

	case intel.EntityUsername:
		v = strings.ToLower(strings.TrimPrefix(v, "@"))
		if v == "" || strings.ContainsAny(v, " \t") {
			return "", false
		}
		return v, true

	case intel.EntityCryptoWallet:
		if strings.ContainsAny(v, " \t") {
			return "", false
		}
		return strings.ToLower(v), true
	}
	return "", false
}

// normalizePhone keeps digits and a leading plus; 00 prefixes become +.
func normalizePhone(v string) (string, bool) {
	var b strings.Builder
	for i, r := range v {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if strings.HasPrefix(out, "00") {
		out = "+" + out[2:]
	}
	if len(strings.TrimPrefix(out, "+")) < 7 {
		return "", false
	}
	return out, true
}

func normalizeURL(v string) (string, bool) {
	s := v
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	out := strings.ToLower(u.String())
	return strings.TrimSuffix(out, "/"), true
}

// hostOf returns the registrable-looking host of a URL entity value
func hostOf(rawURL string) string {
	s := rawURL
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	return blocklist.NormalizeDomain(u.Hostname())
}

// hasPublicSuffix reports whether d ends in an ICANN suffix and has a label before it
func hasPublicSuffix(d string) bool {
	if !strings.Contains(d, ".") {
		return false
	}
	suffix, icann := publicsuffix.PublicSuffix(d)
	return icann && suffix != d
}
