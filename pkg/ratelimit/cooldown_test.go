package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCooldown_ReserveSpacesCallsPerKey(t *testing.T) {
	clock := newFakeClock()
	c := NewCooldown(200 * time.Millisecond)
	c.now = clock.Now

	assert.Equal(t, time.Duration(0), c.Reserve("api.example.com"))
	assert.Equal(t, 200*time.Millisecond, c.Reserve("api.example.com"))
	assert.Equal(t, 400*time.Millisecond, c.Reserve("api.example.com"))
	assert.Equal(t, time.Duration(0), c.Reserve("other.example.com"))

	clock.Advance(time.Second)
	assert.Equal(t, time.Duration(0), c.Reserve("api.example.com"))
}

func TestCooldown_ZeroIntervalNeverWaits(t *testing.T) {
	c := NewCooldown(0)
	for i := 0; i < 5; i++ {
		assert.Zero(t, c.Reserve("k"))
	}
}

func TestCooldown_WaitHonoursContext(t *testing.T) {
	c := NewCooldown(time.Hour)
	require.NoError(t, c.Wait(context.Background(), "k"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := c.Wait(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCooldown_Sweep(t *testing.T) {
	clock := newFakeClock()
	c := NewCooldown(time.Second)
	c.now = clock.Now

	c.Reserve("a")
	clock.Advance(2 * time.Second)
	c.Reserve("b")

	assert.Equal(t, 1, c.Sweep())
}
