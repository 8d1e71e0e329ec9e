package tcp

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/marmos91/dittobench/internal/logger"
)

// serve runs the coordinator handshake: listen, then accept connections
// until every member rank has said hello.
func (g *Group) serve(ctx context.Context) error {
	ln := g.cfg.Listener
	if ln == nil {
		var lc net.ListenConfig
		l, err := lc.Listen(ctx, "tcp", g.cfg.Address)
		if err != nil {
			return fmt.Errorf("tcp group: listen on %s: %w", g.cfg.Address, err)
		}
		ln = l
	}
	g.listener = ln
	g.peers = make([]*conn, g.cfg.Size)

	logger.Debug("coordinator listening on %s for %d members", ln.Addr(), g.cfg.Size-1)

	// Unblock Accept when the handshake deadline expires.
	handshakeDone := make(chan struct{})
	defer close(handshakeDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-handshakeDone:
		}
	}()

	for joined := 1; joined < g.cfg.Size; {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("tcp group: only %d of %d ranks joined: %w", joined, g.cfg.Size, ctx.Err())
			}
			return fmt.Errorf("tcp group: accept: %w", err)
		}

		if dl, ok := ctx.Deadline(); ok {
			_ = c.SetReadDeadline(dl)
		}
		hello, err := readMessage(c)
		_ = c.SetReadDeadline(time.Time{})
		if err != nil || hello.Kind != msgHello {
			logger.Warn("rejecting connection from %s: bad hello", c.RemoteAddr())
			_ = c.Close()
			continue
		}

		rank := int(hello.Rank)
		if rank <= 0 || rank >= g.cfg.Size || g.peers[rank] != nil {
			logger.Warn("rejecting connection from %s: invalid or duplicate rank %d", c.RemoteAddr(), rank)
			_ = c.Close()
			continue
		}

		g.peers[rank] = newConn(c, rank)
		joined++
		logger.Debug("rank %d joined from %s (%d/%d)", rank, c.RemoteAddr(), joined, g.cfg.Size)
	}

	// All ranks are connected; stop accepting.
	_ = ln.Close()

	for _, p := range g.peers[1:] {
		g.wg.Add(1)
		go g.peerLoop(p)
	}
	return nil
}

func (g *Group) peerLoop(p *conn) {
	defer g.wg.Done()

	for {
		m, err := p.receive()
		if err != nil {
			g.markLost(fmt.Errorf("rank %d: %w", p.rank, err))
			return
		}

		switch m.Kind {
		case msgEnter:
			g.arrive(m.Epoch)
		case msgAbort:
			logger.Debug("rank %d requested abort with status %d", p.rank, m.Code)
			g.broadcast(m, p.rank)
			g.runAbort(int(m.Code))
		default:
			logger.Debug("ignoring %s from rank %d", kindName(m.Kind), p.rank)
		}
	}
}

// arrive counts one rank into the barrier for epoch and returns the
// channel closed when the barrier completes.
func (g *Group) arrive(epoch uint64) <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	ch, ok := g.waiters[epoch]
	if !ok {
		ch = make(chan struct{})
		g.waiters[epoch] = ch
	}

	g.arrivals[epoch]++
	if g.arrivals[epoch] == g.cfg.Size {
		delete(g.arrivals, epoch)
		delete(g.waiters, epoch)
		close(ch)
		g.broadcast(&message{Kind: msgRelease, Epoch: epoch}, -1)
	}
	return ch
}

// broadcast sends m to every member except the one with rank skip.
func (g *Group) broadcast(m *message, skip int) {
	for _, p := range g.peers {
		if p == nil || p.rank == skip {
			continue
		}
		if err := p.send(m); err != nil {
			logger.Warn("%v", err)
		}
	}
}
