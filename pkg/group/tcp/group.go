// Package tcp implements group.Group for ranks running as separate
// processes, possibly on different hosts.
//
// Rank 0 is the coordinator: it listens on the configured address, waits
// until every other rank has connected and said hello, and then arbitrates
// barriers and aborts. All other ranks dial the coordinator.
//
// Protocol:
// Every message is a small XDR structure framed with the ONC-RPC record
// marking header (4 bytes, high bit = last fragment, low 31 bits = length).
//
//	member                      coordinator
//	  | -- hello{rank} -------------> |
//	  | -- enter{epoch} ------------> |   counted until all ranks entered
//	  | <------------ release{epoch}  |   broadcast to every member
//	  | -- abort{code} -------------> |   relayed to every other member
//
// Barrier epochs count up from 1 on every rank; a release for epoch N ends
// the N-th barrier.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/marmos91/dittobench/internal/logger"
	"github.com/marmos91/dittobench/internal/ratelimiter"
	"github.com/marmos91/dittobench/pkg/group"
)

// ErrPeerLost is returned by Barrier when a connection to another rank broke.
var ErrPeerLost = errors.New("lost connection to process group")

// Config configures one rank's membership.
type Config struct {
	// Rank of this process in [0, Size)
	Rank int

	// Size is the number of participating processes
	Size int

	// Address of the coordinator (host:port). Rank 0 listens on it.
	Address string

	// Listener, when set, is used by rank 0 instead of listening on Address
	Listener net.Listener

	// DialTimeout bounds how long members wait for the coordinator and
	// how long the coordinator waits for all members.
	// Default: 60s
	DialTimeout time.Duration

	// DialRate is the number of connection attempts per second.
	// Default: 5
	DialRate uint

	// OnAbort runs once when the group is aborted.
	// Default: exit the process with the abort code
	OnAbort group.AbortFunc
}

func (c *Config) applyDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 60 * time.Second
	}
	if c.DialRate == 0 {
		c.DialRate = 5
	}
	if c.OnAbort == nil {
		c.OnAbort = func(code int) { os.Exit(code) }
	}
}

func (c *Config) validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("tcp group: size must be positive, got %d", c.Size)
	}
	if c.Rank < 0 || c.Rank >= c.Size {
		return fmt.Errorf("tcp group: rank %d out of range [0, %d)", c.Rank, c.Size)
	}
	if c.Address == "" && c.Listener == nil {
		return fmt.Errorf("tcp group: coordinator address is required")
	}
	return nil
}

// Group is one rank's membership in a TCP process group.
type Group struct {
	cfg   Config
	epoch uint64

	aborted   chan struct{}
	abortOnce sync.Once

	lost     chan struct{}
	lostOnce sync.Once

	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// member side
	coordinator *conn
	releases    chan uint64

	// coordinator side
	listener net.Listener
	peers    []*conn
	mu       sync.Mutex
	arrivals map[uint64]int
	waiters  map[uint64]chan struct{}
}

// Join connects this rank to the group and returns once every rank is
// connected (coordinator) or the coordinator accepted the hello (member).
func Join(ctx context.Context, cfg Config) (*Group, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	g := &Group{
		cfg:      cfg,
		aborted:  make(chan struct{}),
		lost:     make(chan struct{}),
		closing:  make(chan struct{}),
		releases: make(chan uint64, 1),
		arrivals: make(map[uint64]int),
		waiters:  make(map[uint64]chan struct{}),
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	var err error
	if cfg.Rank == 0 {
		err = g.serve(ctx)
	} else {
		err = g.dial(ctx)
	}
	if err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

func (g *Group) Rank() int { return g.cfg.Rank }
func (g *Group) Size() int { return g.cfg.Size }

// Barrier blocks until every rank has entered the same barrier epoch.
func (g *Group) Barrier(ctx context.Context) error {
	g.epoch++
	epoch := g.epoch

	if g.cfg.Rank == 0 {
		ch := g.arrive(epoch)
		select {
		case <-ch:
			return nil
		case <-g.aborted:
			return group.ErrAborted
		case <-g.lost:
			return ErrPeerLost
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := g.coordinator.send(&message{Kind: msgEnter, Rank: uint32(g.cfg.Rank), Epoch: epoch}); err != nil {
		return fmt.Errorf("%w: %v", ErrPeerLost, err)
	}

	select {
	case released := <-g.releases:
		if released != epoch {
			return fmt.Errorf("barrier epoch mismatch: entered %d, released %d", epoch, released)
		}
		return nil
	case <-g.aborted:
		return group.ErrAborted
	case <-g.lost:
		return ErrPeerLost
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Abort notifies every other rank and runs the abort hook. It returns only
// when the hook returns.
func (g *Group) Abort(ctx context.Context, code int) error {
	abort := &message{Kind: msgAbort, Rank: uint32(g.cfg.Rank), Code: int32(code)}

	if g.cfg.Rank == 0 {
		g.broadcast(abort, -1)
	} else if err := g.coordinator.send(abort); err != nil {
		logger.Warn("could not forward abort to coordinator: %v", err)
	}

	g.runAbort(code)
	return nil
}

// Close tears down every connection. It does not notify other ranks.
func (g *Group) Close() error {
	g.closeOnce.Do(func() {
		close(g.closing)
		if g.listener != nil {
			_ = g.listener.Close()
		}
		if g.coordinator != nil {
			_ = g.coordinator.Close()
		}
		for _, p := range g.peers {
			if p != nil {
				_ = p.Close()
			}
		}
	})
	g.wg.Wait()
	return nil
}

func (g *Group) runAbort(code int) {
	g.abortOnce.Do(func() {
		logger.Error("process group aborted with status %d", code)
		close(g.aborted)
		g.cfg.OnAbort(code)
	})
}

func (g *Group) markLost(err error) {
	select {
	case <-g.closing:
		return
	default:
	}
	g.lostOnce.Do(func() {
		logger.Warn("process group connection lost: %v", err)
		close(g.lost)
	})
}

// ============================================================================
// Member side
// ============================================================================

func (g *Group) dial(ctx context.Context) error {
	limiter := ratelimiter.New(g.cfg.DialRate, 1)
	var d net.Dialer

	for attempt := 1; ; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("tcp group: coordinator %s unreachable after %d attempts: %w",
				g.cfg.Address, attempt-1, err)
		}

		c, err := d.DialContext(ctx, "tcp", g.cfg.Address)
		if err != nil {
			logger.Debug("dial %s (attempt %d): %v", g.cfg.Address, attempt, err)
			continue
		}

		g.coordinator = newConn(c, 0)
		break
	}

	if err := g.coordinator.send(&message{Kind: msgHello, Rank: uint32(g.cfg.Rank)}); err != nil {
		return err
	}
	logger.Debug("joined process group at %s as rank %d of %d", g.cfg.Address, g.cfg.Rank, g.cfg.Size)

	g.wg.Add(1)
	go g.memberLoop()
	return nil
}

func (g *Group) memberLoop() {
	defer g.wg.Done()

	for {
		m, err := g.coordinator.receive()
		if err != nil {
			g.markLost(err)
			return
		}

		switch m.Kind {
		case msgRelease:
			select {
			case g.releases <- m.Epoch:
			case <-g.closing:
				return
			}
		case msgAbort:
			g.runAbort(int(m.Code))
		default:
			logger.Debug("ignoring %s from coordinator", kindName(m.Kind))
		}
	}
}
