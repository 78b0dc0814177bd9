// Package workqueue provides a rate-limited worker pool gating calls to
// external services.
package workqueue

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Queue bounds concurrent submissions and smooths them with a token bucket.
// A single Queue instance is shared by everything that talks to one upstream,
// so retries compete fairly with fresh calls for slots.
type Queue struct {
	slots   chan struct{}
	limiter *rate.Limiter
}

// New creates a Queue with at most concurrency simultaneous submissions and
// an average of rps submissions per second.
func New(concurrency int, rps float64) *Queue {
	if concurrency <= 0 {
		concurrency = 1
	}
	if rps <= 0 {
		rps = 1
	}
	return &Queue{
		slots:   make(chan struct{}, concurrency),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Do runs fn after acquiring a pool slot and a rate token. It blocks until
// both are available or ctx is done.
func (q *Queue) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case q.slots <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("acquire queue slot: %w", ctx.Err())
	}
	defer func() { <-q.slots }()

	if err := q.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("acquire rate token: %w", err)
	}

	return fn(ctx)
}
