package resilience

import (
	"context"

	"github.com/richxcame/scamshield/pkg/logger"
	"go.uber.org/zap"
)

// FallbackFunc answers for the upstream while its breaker rejects calls.
type FallbackFunc func(ctx context.Context, err error) (interface{}, error)

func reject(context.Context, error) (interface{}, error) {
	return nil, ErrCircuitOpen
}

// Degraded logs the rejection and still returns ErrCircuitOpen, leaving the
// caller to substitute its own answer (heuristic detector, unavailable lookup).
func Degraded(upstream string) FallbackFunc {
	return func(ctx context.Context, err error) (interface{}, error) {
		logger.WithContext(ctx).Warn("upstream breaker open, degrading",
			zap.String("upstream", upstream),
			zap.Error(err),
		)
		return nil, ErrCircuitOpen
	}
}
