// Package local implements group.Group for ranks running as goroutines in a
// single process. It is used for single-node runs and by tests that need
// several ranks without spawning processes.
package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/dittobench/internal/logger"
	"github.com/marmos91/dittobench/pkg/group"
	"golang.org/x/sync/errgroup"
)

// World holds the shared state of all in-process ranks.
//
// The barrier is reusable: every time the last rank arrives, the current
// release channel is closed and a fresh one is installed for the next round.
type World struct {
	size int

	mu      sync.Mutex
	arrived int
	release chan struct{}

	aborted   chan struct{}
	abortOnce sync.Once
	abortCode int
	onAbort   group.AbortFunc
}

// Option configures a World.
type Option func(*World)

// WithAbortFunc sets the hook run once when any rank aborts.
func WithAbortFunc(fn group.AbortFunc) Option {
	return func(w *World) {
		w.onAbort = fn
	}
}

// NewWorld creates a world of size ranks. Size must be positive.
func NewWorld(size int, opts ...Option) (*World, error) {
	if size <= 0 {
		return nil, fmt.Errorf("local group: size must be positive, got %d", size)
	}

	w := &World{
		size:    size,
		release: make(chan struct{}),
		aborted: make(chan struct{}),
		onAbort: func(int) {},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Member returns the group view for rank.
func (w *World) Member(rank int) group.Group {
	return &member{world: w, rank: rank}
}

// Aborted reports whether the world was aborted and with which code.
func (w *World) Aborted() (bool, int) {
	select {
	case <-w.aborted:
		return true, w.abortCode
	default:
		return false, 0
	}
}

func (w *World) barrier(ctx context.Context) error {
	w.mu.Lock()
	select {
	case <-w.aborted:
		w.mu.Unlock()
		return group.ErrAborted
	default:
	}

	ch := w.release
	w.arrived++
	if w.arrived == w.size {
		w.arrived = 0
		w.release = make(chan struct{})
		close(ch)
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-w.aborted:
		return group.ErrAborted
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *World) abort(rank, code int) {
	w.abortOnce.Do(func() {
		logger.Error("rank %d aborting group with status %d", rank, code)
		w.abortCode = code
		close(w.aborted)
		w.onAbort(code)
	})
}

type member struct {
	world *World
	rank  int
}

func (m *member) Rank() int { return m.rank }
func (m *member) Size() int { return m.world.size }

func (m *member) Barrier(ctx context.Context) error {
	return m.world.barrier(ctx)
}

func (m *member) Abort(ctx context.Context, code int) error {
	m.world.abort(m.rank, code)
	return nil
}

// Run executes fn once per rank, each in its own goroutine, and waits for
// all of them. The first error cancels the context passed to the others.
func Run(ctx context.Context, w *World, fn func(ctx context.Context, g group.Group) error) error {
	eg, ctx := errgroup.WithContext(ctx)
	for rank := 0; rank < w.size; rank++ {
		g := w.Member(rank)
		eg.Go(func() error {
			if err := fn(ctx, g); err != nil {
				return fmt.Errorf("rank %d: %w", g.Rank(), err)
			}
			return nil
		})
	}
	return eg.Wait()
}
