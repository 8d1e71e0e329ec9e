package ratelimiter

import (
	"context"
	"testing"
	"time"
)

// TestNew verifies limiter creation with different parameters.
func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		perSecond uint
		burst     uint
		unlimited bool
	}{
		{name: "byte rate", perSecond: 1 << 20, burst: 64 << 10},
		{name: "dial pacing", perSecond: 5, burst: 1},
		{name: "default burst", perSecond: 100, burst: 0},
		{name: "unlimited (zero rate)", perSecond: 0, burst: 0, unlimited: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.perSecond, tt.burst)
			if limiter == nil || limiter.limiter == nil {
				t.Fatal("New() returned an unusable limiter")
			}
			if limiter.Unlimited() != tt.unlimited {
				t.Fatalf("Unlimited() = %v, want %v", limiter.Unlimited(), tt.unlimited)
			}
		})
	}
}

// TestAllow verifies that Allow() enforces the bucket size.
func TestAllow(t *testing.T) {
	limiter := New(10, 10)

	for i := 0; i < 10; i++ {
		if !limiter.Allow() {
			t.Fatalf("attempt %d should be allowed (within burst)", i)
		}
	}

	if limiter.Allow() {
		t.Fatal("attempt should be limited after burst exhausted")
	}
}

// TestWait verifies that Wait() blocks until a token is available.
func TestWait(t *testing.T) {
	limiter := New(10, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("first wait should succeed: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("second wait should succeed: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 50*time.Millisecond || elapsed > 250*time.Millisecond {
		t.Fatalf("wait time %v outside expected range 50ms-250ms", elapsed)
	}
}

// TestWaitN_SplitsLargeRequests verifies a request bigger than the bucket
// is paced instead of failing.
func TestWaitN_SplitsLargeRequests(t *testing.T) {
	// 1000 B/s, 100 B bucket: 300 bytes need ~200ms after the first bucket
	limiter := New(1000, 100)

	start := time.Now()
	if err := limiter.WaitN(context.Background(), 300); err != nil {
		t.Fatalf("WaitN should succeed: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 150*time.Millisecond {
		t.Fatalf("WaitN returned after %v, expected pacing", elapsed)
	}
}

// TestWaitN_ContextCancellation verifies that waiting respects cancellation.
func TestWaitN_ContextCancellation(t *testing.T) {
	limiter := New(1, 1)
	if !limiter.Allow() {
		t.Fatal("first token should be available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := limiter.WaitN(ctx, 5); err == nil {
		t.Fatal("WaitN should fail once the context expires")
	}
}

// TestUnlimited verifies the zero rate never blocks.
func TestUnlimited(t *testing.T) {
	limiter := New(0, 0)

	for i := 0; i < 1000; i++ {
		if !limiter.Allow() {
			t.Fatalf("unlimited limiter should allow attempt %d", i)
		}
	}
	if err := limiter.WaitN(context.Background(), 1<<30); err != nil {
		t.Fatalf("unlimited WaitN should not fail: %v", err)
	}
}

// TestSetLimit verifies switching between limited and unlimited.
func TestSetLimit(t *testing.T) {
	limiter := New(10, 10)

	limiter.SetLimit(0)
	if !limiter.Unlimited() {
		t.Fatal("SetLimit(0) should disable limiting")
	}

	limiter.SetLimit(100)
	if limiter.Unlimited() {
		t.Fatal("SetLimit(100) should enable limiting")
	}
}

// BenchmarkWaitN measures the unlimited fast path.
func BenchmarkWaitN(b *testing.B) {
	limiter := New(0, 0)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = limiter.WaitN(ctx, 1<<20)
	}
}
