package entity

import (
	"testing"

	"github.com/richxcame/scamshield/internal/features"
	"github.com/richxcame/scamshield/internal/intel"
	"github.com/stretchr/testify/assert"
)

func TestExtract_MessageDomains(t *testing.T) {
	refs := Extract("message", "URGENT: your refund is ready, click bit.ly/xyz to claim now", nil)
	assert.Equal(t, []Ref{{Type: intel.EntityDomain, Value: "bit.ly"}}, refs)
}

func TestExtract_MessageEmailsAndURLs(t *testing.T) {
	refs := Extract("message", "Email Refunds@sars-help.co.za or visit https://sars-refund.co.za/claim now", nil)
	assert.Equal(t, []Ref{
		{Type: intel.EntityEmail, Value: "refunds@sars-help.co.za"},
		{Type: intel.EntityDomain, Value: "sars-refund.co.za"},
	}, refs)
}

func TestExtract_WebsiteWithSignals(t *testing.T) {
	signals := []features.Signal{
		{Description: "secure-login.example.com: URL contains many hyphens"},
		{Description: "text reads as machine generated (p=0.93)"},
	}
	refs := Extract("website", "https://secure-login.example.com/verify", signals)

	assert.Equal(t, []Ref{
		{Type: intel.EntityURL, Value: "https://secure-login.example.com/verify"},
		{Type: intel.EntityDomain, Value: "secure-login.example.com"},
	}, refs)
}

func TestExtract_PrimaryTypes(t *testing.T) {
	tests := []struct {
		input string
		value string
		want  Ref
	}{
		{"email", "Bob@Example.com", Ref{intel.EntityEmail, "bob@example.com"}},
		{"phone", "082 555 0199", Ref{intel.EntityPhone, "0825550199"}},
		{"crypto", "bc1QXYZ", Ref{intel.EntityCryptoWallet, "bc1qxyz"}},
		{"username", "@Bot_4821", Ref{intel.EntityUsername, "bot_4821"}},
		{"ip", "8.8.8.8", Ref{intel.EntityIP, "8.8.8.8"}},
		{"domain", "www.example.org", Ref{intel.EntityDomain, "example.org"}},
	}
	for _, tt := range tests {
		refs := Extract(tt.input, tt.value, nil)
		assert.Equal(t, []Ref{tt.want}, refs, tt.input)
	}
}

func TestExtract_SignalDomainsAreAdded(t *testing.T) {
	refs := Extract("phone", "082 555 0199", []features.Signal{{Description: "number advertised on evil.example.net"}})
	assert.Equal(t, []Ref{
		{Type: intel.EntityPhone, Value: "0825550199"},
		{Type: intel.EntityDomain, Value: "evil.example.net"},
	}, refs)
}

func TestExtract_InvalidPrimaryIsDropped(t *testing.T) {
	assert.Empty(t, Extract("email", "not-an-email", nil))
	assert.Empty(t, Extract("message", "", nil))
}

func TestDedupe(t *testing.T) {
	refs := Dedupe([]Ref{
		{intel.EntityDomain, "Example.com"},
		{intel.EntityDomain, "www.example.com"},
		{intel.EntityURL, "example.com"},
		{intel.EntityEmail, "broken"},
	})
	assert.Equal(t, []Ref{
		{intel.EntityDomain, "example.com"},
		{intel.EntityURL, "http://example.com"},
	}, refs)
}

func TestTypeForInput(t *testing.T) {
	typ, ok := TypeForInput("website")
	assert.True(t, ok)
	assert.Equal(t, intel.EntityURL, typ)

	_, ok = TypeForInput("message")
	assert.False(t, ok)
}
