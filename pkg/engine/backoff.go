package engine

import (
	"math/rand"
	"time"
)

// BackoffStrategy defines how to calculate the next wait time.
type BackoffStrategy interface {
	Next(attempt int) time.Duration
}

// ExponentialBackoff implements exponential backoff with jitter.
type ExponentialBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64 // 0.0 to 1.0
}

// Next calculates the wait duration for the given attempt (0-based).
func (b *ExponentialBackoff) Next(attempt int) time.Duration {
	if attempt < 0 {
		return b.Base
	}

	delay := float64(b.Base)
	for i := 0; i < attempt; i++ {
		delay *= b.Factor
		if delay > float64(b.Max) {
			break
		}
	}
	if delay > float64(b.Max) {
		delay = float64(b.Max)
	}

	// delay * (1 ± Jitter)
	if b.Jitter > 0 {
		delay += delay * (rand.Float64()*2 - 1) * b.Jitter
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}

// failureBackoff delays a periodic task after consecutive failures: the
// first retry waits twice the interval, capped at eight intervals.
func failureBackoff(interval time.Duration) *ExponentialBackoff {
	return &ExponentialBackoff{
		Base:   2 * interval,
		Max:    8 * interval,
		Factor: 2.0,
		Jitter: 0.1,
	}
}
