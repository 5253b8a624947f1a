package gateway

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Breaker defaults: trip after five consecutive backend failures and probe
// again after thirty seconds.
const (
	DefaultMaxFailures = 5
	DefaultOpenTimeout = 30 * time.Second
)

func newBreaker(maxFailures uint32, openTimeout time.Duration, logger *zap.Logger) *gobreaker.CircuitBreaker[*response] {
	if maxFailures == 0 {
		maxFailures = DefaultMaxFailures
	}
	if openTimeout <= 0 {
		openTimeout = DefaultOpenTimeout
	}
	settings := gobreaker.Settings{
		Name:        "bookgraph-backend",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			BreakerState.Set(breakerStateValue(to))
			logger.Warn("breaker_state_changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: isBackendHealthy,
	}
	return gobreaker.NewCircuitBreaker[*response](settings)
}

// isBackendHealthy decides which errors count against the breaker. Client
// errors (4xx) and caller cancellation say nothing about backend health.
func isBackendHealthy(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.StatusCode >= 400 && re.StatusCode < 500
	}
	return false
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
