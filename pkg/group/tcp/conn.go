package tcp

import (
	"fmt"
	"net"
	"sync"
)

// conn is one framed connection between a member and the coordinator.
// Sends are serialised; receives happen on a single reader goroutine.
type conn struct {
	net.Conn
	rank int

	writeMu sync.Mutex
}

func newConn(c net.Conn, rank int) *conn {
	return &conn{Conn: c, rank: rank}
}

func (c *conn) send(m *message) error {
	frame, err := encodeMessage(m)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.Write(frame); err != nil {
		return fmt.Errorf("send %s to rank %d: %w", kindName(m.Kind), c.rank, err)
	}
	return nil
}

func (c *conn) receive() (*message, error) {
	return readMessage(c.Conn)
}
