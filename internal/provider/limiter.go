package provider

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// maxQueueDelay bounds how long a caller may sit behind the token bucket
// before being rejected instead of queued.
const maxQueueDelay = time.Second

// Limiter wraps a token bucket for one adapter. Concurrent callers are
// serialized FIFO by the reservation order; a caller whose reservation
// would wait longer than maxQueueDelay is rejected with RateLimited
// rather than queued indefinitely.
type Limiter struct {
	provider string
	bucket   *rate.Limiter
}

// NewLimiter builds a token bucket refilling at rpm requests per minute
// with the given burst capacity.
func NewLimiter(provider string, rpm, burst int) *Limiter {
	if rpm < 1 {
		rpm = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		provider: provider,
		bucket:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), burst),
	}
}

// Acquire blocks until a token is available, the queue delay bound is
// exceeded, or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	r := l.bucket.Reserve()
	if !r.OK() {
		return &Error{Provider: l.provider, Kind: KindRateLimited, Message: "bucket cannot satisfy request"}
	}

	delay := r.Delay()
	if delay > maxQueueDelay {
		r.Cancel()
		return &Error{
			Provider: l.provider,
			Kind:     KindRateLimited,
			Message:  fmt.Sprintf("would wait %s for a token", delay.Round(time.Millisecond)),
		}
	}
	if delay == 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// Tokens reports the currently available token count, for status output.
func (l *Limiter) Tokens() float64 { return l.bucket.Tokens() }
