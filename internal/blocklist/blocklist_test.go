package blocklist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/richxcame/scamshield/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productionSize = 49762

func syntheticDomains(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("scam-%d-login.example%d.com", i, i%97)
	}
	return out
}

// newPadded sizes the filter well past the handful of entries under test so
// stray false positives stay negligible.
func newPadded(t *testing.T, domains ...string) *Blocklist {
	t.Helper()
	all := append([]string(nil), domains...)
	for i := 0; i < 2000; i++ {
		all = append(all, fmt.Sprintf("pad-%d.invalid", i))
	}
	bl, err := New(all, 0.0001)
	require.NoError(t, err)
	return bl
}

func TestNew_NoFalseNegatives(t *testing.T) {
	domains := syntheticDomains(productionSize)
	bl, err := New(domains, 0.001)
	require.NoError(t, err)
	assert.Equal(t, productionSize, bl.Len())

	for _, d := range domains {
		res := bl.IsBlocked(d)
		if !res.Blocked {
			t.Fatalf("inserted domain %s not blocked", d)
		}
		require.NotNil(t, res.MatchedDomain)
		assert.Equal(t, d, *res.MatchedDomain)
	}
}

func TestNew_FalsePositiveRateWithinTolerance(t *testing.T) {
	bl, err := New(syntheticDomains(productionSize), 0.001)
	require.NoError(t, err)

	const samples = 100000
	hits := 0
	for i := 0; i < samples; i++ {
		if bl.IsBlocked(fmt.Sprintf("clean-%d.org", i)).Blocked {
			hits++
		}
	}
	rate := float64(hits) / samples
	assert.LessOrEqual(t, rate, 0.003, "empirical fp rate %.5f", rate)

	stats := bl.Stats()
	assert.InDelta(t, 0.001, stats.EstimatedFPRate, 0.0005)
	assert.Equal(t, uint(10), stats.HashFunctions)
	assert.Greater(t, stats.Bits, uint(700000))
}

func TestIsBlocked_SubdomainsOfBlockedDomain(t *testing.T) {
	bl := newPadded(t, "evil.example", "phish.co.uk")

	tests := []struct {
		input   string
		blocked bool
		matched string
	}{
		{"evil.example", true, "evil.example"},
		{"login.evil.example", true, "evil.example"},
		{"a.b.c.evil.example", true, "evil.example"},
		{"WWW.Evil.Example", true, "evil.example"},
		{"https://secure.evil.example:8443/path?q=1", true, "evil.example"},
		{"evil.example.", true, "evil.example"},
		{"account.phish.co.uk", true, "phish.co.uk"},
		{"notevil.example", false, ""},
		{"example", false, ""},
		{"", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res := bl.IsBlocked(tt.input)
			assert.Equal(t, tt.blocked, res.Blocked)
			if tt.blocked {
				require.NotNil(t, res.MatchedDomain)
				assert.Equal(t, tt.matched, *res.MatchedDomain)
			} else {
				assert.Nil(t, res.MatchedDomain)
			}
		})
	}
}

func TestIsBlocked_StopsAtPublicSuffix(t *testing.T) {
	// a suffix entry must not take down every registrable domain below it
	bl := newPadded(t, "co.uk")

	assert.False(t, bl.IsBlocked("shop.co.uk").Blocked)
	assert.False(t, bl.IsBlocked("login.shop.co.uk").Blocked)
}

func TestCandidates(t *testing.T) {
	assert.Equal(t, []string{"a.b.evil.co.uk", "b.evil.co.uk", "evil.co.uk"}, candidates("a.b.evil.co.uk"))
	assert.Equal(t, []string{"evil.com"}, candidates("evil.com"))
	assert.Equal(t, []string{"192.0.2.7"}, candidates("192.0.2.7"))
}

func TestNormalizeDomain(t *testing.T) {
	assert.Equal(t, "evil.example", NormalizeDomain("  WWW.EVIL.EXAMPLE  "))
	assert.Equal(t, "evil.example", NormalizeDomain("http://www.evil.example/login"))
	assert.Equal(t, "evil.example", NormalizeDomain("evil.example/path"))
	assert.Equal(t, "192.0.2.7", NormalizeDomain("192.0.2.7:80"))
	assert.Equal(t, "", NormalizeDomain("   "))
}

func TestNew_RejectsBadRate(t *testing.T) {
	for _, rate := range []float64{0, 1, -0.1, 1.5} {
		_, err := New([]string{"a.example"}, rate)
		assert.Error(t, err, rate)
	}
}

func TestNew_Empty(t *testing.T) {
	bl, err := New(nil, 0.001)
	require.NoError(t, err)
	assert.Equal(t, 0, bl.Len())
	assert.False(t, bl.IsBlocked("anything.example").Blocked)
}

func TestParseList(t *testing.T) {
	input := `# curated denylist
evil.example
0.0.0.0 tracker.example   # hosts format

   spaced.example
127.0.0.1	localhost-style.example
`
	domains, err := ParseList(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"evil.example", "tracker.example", "spaced.example", "localhost-style.example"}, domains)
}

func TestLoad_FromLocalSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blocklist.txt"), []byte("evil.example\nbad.example\n"), 0o600))

	bl, err := Load(context.Background(), storage.NewLocalSource(dir), "blocklist.txt", 0.001)
	require.NoError(t, err)
	assert.Equal(t, 2, bl.Len())
	assert.True(t, bl.IsBlocked("x.bad.example").Blocked)

	_, err = Load(context.Background(), storage.NewLocalSource(dir), "missing.txt", 0.001)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func BenchmarkIsBlocked(b *testing.B) {
	bl, _ := New(syntheticDomains(productionSize), 0.001)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bl.IsBlocked("login.secure.clean-site.example.org")
	}
}
