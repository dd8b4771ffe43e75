package entity

import (
	"testing"

	"github.com/richxcame/scamshield/internal/intel"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		t     intel.EntityType
		raw   string
		want  string
		valid bool
	}{
		{"email lowercased", intel.EntityEmail, "  Refunds@SARS-Help.co.za ", "refunds@sars-help.co.za", true},
		{"email mailto", intel.EntityEmail, "mailto:a@b.com", "a@b.com", true},
		{"email without at", intel.EntityEmail, "nobody.example.com", "", false},
		{"email trailing at", intel.EntityEmail, "nobody@", "", false},
		{"phone formatting", intel.EntityPhone, "+27 (82) 555-0199", "+27825550199", true},
		{"phone 00 prefix", intel.EntityPhone, "0027 82 555 0199", "+27825550199", true},
		{"phone too short", intel.EntityPhone, "12-34", "", false},
		{"url lowercased", intel.EntityURL, "HTTP://Bit.LY/XYZ/", "http://bit.ly/xyz", true},
		{"url without scheme", intel.EntityURL, "bit.ly/xyz", "http://bit.ly/xyz", true},
		{"url fragment dropped", intel.EntityURL, "https://a.example.com/p#frag", "https://a.example.com/p", true},
		{"domain www", intel.EntityDomain, "WWW.Example.COM.", "example.com", true},
		{"domain from url", intel.EntityDomain, "https://login.example.co.za/path", "login.example.co.za", true},
		{"domain unknown suffix", intel.EntityDomain, "john.doe", "", false},
		{"domain bare suffix", intel.EntityDomain, "co.za", "", false},
		{"ip v4", intel.EntityIP, " 10.0.0.1 ", "10.0.0.1", true},
		{"ip v6 brackets", intel.EntityIP, "[::1]", "::1", true},
		{"ip invalid", intel.EntityIP, "300.1.1.1", "", false},
		{"username at", intel.EntityUsername, "@Support_Desk", "support_desk", true},
		{"username space", intel.EntityUsername, "two words", "", false},
		{"wallet", intel.EntityCryptoWallet, " 0xAbC123 ", "0xabc123", true},
		{"empty", intel.EntityEmail, "   ", "", false},
		{"unknown type", intel.EntityType("fax"), "123", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.t, tt.raw)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
