package enrichment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payloadTask(key string, p Payload, err error, delay time.Duration) Task {
	return Task{
		Kind: KindUsernamePresence,
		Key:  key,
		Run: func(ctx context.Context) (Payload, error) {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			return p, err
		},
	}
}

func TestSettleAll_PartialResults(t *testing.T) {
	hit := UsernamePresence{Username: "sipho", Platform: "github.com", Exists: boolPtr(true)}
	stuck := make(chan struct{})
	defer close(stuck)

	tasks := []Task{
		payloadTask("ok", hit, nil, 0),
		payloadTask("fails", nil, errors.New("connection refused"), 0),
		payloadTask("slow", hit, nil, time.Second),
		{Kind: KindFactCheck, Key: "ignores-ctx", Run: func(context.Context) (Payload, error) {
			<-stuck
			return FactCheck{}, nil
		}},
		{Kind: KindFactCheck, Key: "panics", Run: func(context.Context) (Payload, error) {
			panic("boom")
		}},
		payloadTask("empty", nil, nil, 0),
	}

	start := time.Now()
	results := SettleAll(context.Background(), 50*time.Millisecond, tasks)

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	require.Len(t, results, len(tasks))

	assert.Equal(t, StatusOK, results[0].Status)
	assert.Equal(t, hit, results[0].Payload)
	assert.Equal(t, "ok", results[0].Key)

	for _, r := range results[1:] {
		assert.Equal(t, StatusUnknown, r.Status, r.Key)
		assert.Nil(t, r.Payload, r.Key)
		assert.NotEmpty(t, r.Error, r.Key)
	}
	assert.Contains(t, results[4].Error, "boom")
}

func TestSettleAll_Empty(t *testing.T) {
	assert.Empty(t, SettleAll(context.Background(), time.Second, nil))
}

func TestSettleAll_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := SettleAll(ctx, time.Second, []Task{payloadTask("slow", FactCheck{}, nil, time.Second)})
	assert.Equal(t, StatusUnknown, results[0].Status)
}
