package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter paces work using the token bucket algorithm.
//
// It serves two purposes in a run:
//   - capping data throughput, where one token is one byte (WaitN)
//   - pacing connection attempts, where one token is one attempt (Wait)
//
// A zero rate means unlimited; every call returns immediately.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter that refills perSecond tokens per second and
// holds at most burst tokens.
//
// Special cases:
//   - perSecond = 0: no limiting
//   - burst = 0: burst defaults to perSecond
//
// Example:
//
//	// 100 MiB/s with a 1 MiB bucket
//	limiter := New(100<<20, 1<<20)
func New(perSecond, burst uint) *RateLimiter {
	if perSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = perSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), int(burst)),
	}
}

// Unlimited reports whether the limiter lets everything through.
func (r *RateLimiter) Unlimited() bool {
	return r.limiter.Limit() == rate.Inf
}

// Allow reports whether one token is available now, consuming it if so.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until one token is available or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// WaitN blocks until n tokens have been consumed or ctx is cancelled.
//
// Requests larger than the bucket are split into bucket-sized waits, so a
// single large transfer is paced rather than rejected.
func (r *RateLimiter) WaitN(ctx context.Context, n int) error {
	if r.Unlimited() {
		return ctx.Err()
	}

	burst := r.limiter.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := r.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// SetLimit changes the sustained rate. Zero disables limiting.
func (r *RateLimiter) SetLimit(perSecond uint) {
	if perSecond == 0 {
		r.limiter.SetLimit(rate.Inf)
		return
	}
	r.limiter.SetLimit(rate.Limit(perSecond))
	if r.limiter.Burst() == 0 {
		r.limiter.SetBurst(int(perSecond))
	}
}

// Tokens returns the number of tokens currently in the bucket.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
