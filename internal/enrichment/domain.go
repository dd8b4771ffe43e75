package enrichment

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"time"

	"github.com/richxcame/scamshield/pkg/httpclient"
	"golang.org/x/net/publicsuffix"
)

// whitelistedBrands are registrable domains of widely impersonated brands
var whitelistedBrands = map[string]bool{
	"google.com": true, "microsoft.com": true, "apple.com": true, "amazon.com": true,
	"paypal.com": true, "facebook.com": true, "instagram.com": true, "whatsapp.com": true,
	"netflix.com": true, "github.com": true, "standardbank.co.za": true, "fnb.co.za": true,
	"absa.co.za": true, "capitecbank.co.za": true, "nedbank.co.za": true, "sars.gov.za": true,
	"takealot.com": true, "postoffice.co.za": true, "vodacom.co.za": true, "mtn.co.za": true,
}

// knownRegistrars are matched case-insensitively as substrings of the RDAP registrar name
var knownRegistrars = []string{
	"markmonitor", "csc corporate domains", "godaddy", "namecheap", "cloudflare",
	"google", "gandi", "tucows", "network solutions", "amazon registrar",
	"zacr", "domains.co.za", "hetzner", "ovh",
}

type rdapDomain struct {
	LDHName string `json:"ldhName"`
	Events  []struct {
		Action string    `json:"eventAction"`
		Date   time.Time `json:"eventDate"`
	} `json:"events"`
	Entities []struct {
		Roles      []string      `json:"roles"`
		VCardArray []interface{} `json:"vcardArray"`
	} `json:"entities"`
}

// TLSProbe reports whether host serves a certificate that verifies.
// It returns an error when the answer is unknown.
type TLSProbe func(ctx context.Context, host string) (bool, error)

// DomainProfiler combines RDAP registration data with a TLS handshake
type DomainProfiler struct {
	client *httpclient.Client
	probe  TLSProbe
	now    func() time.Time
}

// NewDomainProfiler creates a profiler querying an RDAP base URL. A nil
// probe dials port 443.
func NewDomainProfiler(client *httpclient.Client, probe TLSProbe) *DomainProfiler {
	if probe == nil {
		probe = DialTLS
	}
	return &DomainProfiler{client: client, probe: probe, now: time.Now}
}

// Task returns the lookup for domain
func (d *DomainProfiler) Task(domain string) Task {
	return Task{
		Kind: KindDomainProfile,
		Key:  domain,
		Run: func(ctx context.Context) (Payload, error) {
			return d.profile(ctx, domain)
		},
	}
}

func (d *DomainProfiler) profile(ctx context.Context, domain string) (Payload, error) {
	p := DomainProfile{Domain: domain}
	if reg, err := publicsuffix.EffectiveTLDPlusOne(domain); err == nil {
		p.WhitelistedBrand = whitelistedBrands[reg]
	}

	type probeResult struct {
		ok  bool
		err error
	}
	tlsDone := make(chan probeResult, 1)
	go func() {
		ok, err := d.probe(ctx, domain)
		tlsDone <- probeResult{ok, err}
	}()

	rdapErr := d.rdap(ctx, &p)

	tr := <-tlsDone
	if tr.err == nil {
		p.ValidTLS = &tr.ok
	}

	if rdapErr != nil && tr.err != nil {
		return nil, errors.Join(rdapErr, tr.err)
	}
	return p, nil
}

func (d *DomainProfiler) rdap(ctx context.Context, p *DomainProfile) error {
	var resp rdapDomain
	if err := d.client.GetJSON(ctx, "/domain/"+p.Domain, map[string]string{"Accept": "application/rdap+json"}, &resp); err != nil {
		return fmt.Errorf("rdap %s: %w", p.Domain, err)
	}

	for _, ev := range resp.Events {
		if ev.Action == "registration" && !ev.Date.IsZero() {
			reg := ev.Date
			age := math.Round(d.now().Sub(reg).Hours()/24/365.25*10) / 10
			p.RegisteredAt = &reg
			p.AgeYears = &age
			break
		}
	}

	for _, e := range resp.Entities {
		if hasRole(e.Roles, "registrar") {
			p.Registrar = vcardName(e.VCardArray)
			break
		}
	}
	p.KnownRegistrar = isKnownRegistrar(p.Registrar)
	return nil
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

// vcardName extracts the fn property from a jCard array
func vcardName(card []interface{}) string {
	if len(card) < 2 {
		return ""
	}
	props, ok := card[1].([]interface{})
	if !ok {
		return ""
	}
	for _, raw := range props {
		prop, ok := raw.([]interface{})
		if !ok || len(prop) < 4 {
			continue
		}
		if name, _ := prop[0].(string); name == "fn" {
			v, _ := prop[3].(string)
			return v
		}
	}
	return ""
}

func isKnownRegistrar(name string) bool {
	n := strings.ToLower(name)
	if n == "" {
		return false
	}
	for _, r := range knownRegistrars {
		if strings.Contains(n, r) {
			return true
		}
	}
	return false
}

// DialTLS completes a verified TLS handshake with host:443. Verification
// failures answer false; network failures are unknown.
func DialTLS(ctx context.Context, host string) (bool, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: 2 * time.Second},
		Config:    &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12},
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, "443"))
	if err == nil {
		_ = conn.Close()
		return true, nil
	}

	var verifyErr *tls.CertificateVerificationError
	if errors.As(err, &verifyErr) {
		return false, nil
	}
	return false, err
}
