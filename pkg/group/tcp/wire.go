package tcp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// Message kinds exchanged between ranks and the coordinator.
const (
	msgHello   uint32 = 1 // member -> coordinator, carries Rank
	msgEnter   uint32 = 2 // member -> coordinator, carries Epoch
	msgRelease uint32 = 3 // coordinator -> member, carries Epoch
	msgAbort   uint32 = 4 // either direction, carries Code
)

const (
	lastFragment   = 0x80000000
	fragmentLength = 0x7FFFFFFF

	// maxMessageSize bounds a single frame; group messages are tiny.
	maxMessageSize = 1024
)

// message is the single XDR structure every frame carries. Unused fields
// are zero for a given kind.
type message struct {
	Kind  uint32
	Rank  uint32
	Epoch uint64
	Code  int32
}

func kindName(kind uint32) string {
	switch kind {
	case msgHello:
		return "hello"
	case msgEnter:
		return "enter"
	case msgRelease:
		return "release"
	case msgAbort:
		return "abort"
	default:
		return fmt.Sprintf("unknown(%d)", kind)
	}
}

type fragmentHeader struct {
	IsLast bool
	Length uint32
}

// encodeMessage XDR-encodes m and prepends a record-marking header.
func encodeMessage(m *message) ([]byte, error) {
	var body bytes.Buffer
	if _, err := xdr.Marshal(&body, m); err != nil {
		return nil, fmt.Errorf("marshal %s: %w", kindName(m.Kind), err)
	}

	frame := make([]byte, 4+body.Len())
	binary.BigEndian.PutUint32(frame[0:4], lastFragment|uint32(body.Len()))
	copy(frame[4:], body.Bytes())
	return frame, nil
}

func readFragmentHeader(r io.Reader) (*fragmentHeader, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}

	header := binary.BigEndian.Uint32(buf[:])
	return &fragmentHeader{
		IsLast: (header & lastFragment) != 0,
		Length: header & fragmentLength,
	}, nil
}

// readMessage reads one framed message. Messages always fit one fragment.
func readMessage(r io.Reader) (*message, error) {
	header, err := readFragmentHeader(r)
	if err != nil {
		return nil, err
	}
	if !header.IsLast {
		return nil, fmt.Errorf("multi-fragment records are not supported")
	}
	if header.Length > maxMessageSize {
		return nil, fmt.Errorf("message too large: %d bytes", header.Length)
	}

	body := make([]byte, header.Length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}

	m := &message{}
	if _, err := xdr.Unmarshal(bytes.NewReader(body), m); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return m, nil
}
