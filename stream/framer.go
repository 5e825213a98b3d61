package stream

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/routeware/bgpd/bgp"
)

// Framer reassembles an arbitrary byte stream into complete,
// length-delimited BGP messages. It maintains a single growing buffer
// per peer, as described in spec.md §4.2: Push appends bytes, Next
// returns one complete frame at a time (or bgp.ErrNeedMore, or a
// framing error), and the buffer never grows past MaxMessageLength
// plus one in-flight message.
//
// Once Next returns a framing error the Framer is poisoned: every
// subsequent call returns the same error. There is no recovery short
// of discarding the Framer, matching the FSM's "close the session, no
// retry" policy for framing errors.
type Framer struct {
	buf    bytes.Buffer
	poison error
}

// NewFramer creates an empty Framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Push appends a chunk of bytes read from the transport. It is a
// no-op once the Framer has been poisoned by a framing error.
func (f *Framer) Push(chunk []byte) {
	if f.poison != nil {
		return
	}
	f.buf.Write(chunk)
}

// Next returns the next complete message frame, with its header still
// attached, or bgp.ErrNeedMore if the buffer does not yet hold one, or
// a framing error if the header is malformed. The returned slice is a
// copy; callers may retain it.
func (f *Framer) Next() ([]byte, error) {
	if f.poison != nil {
		return nil, f.poison
	}

	avail := f.buf.Bytes()
	if len(avail) < bgp.HeaderLength {
		return nil, bgp.ErrNeedMore
	}

	if !bytes.Equal(avail[:bgp.MarkerLength], bgp.Marker[:]) {
		return nil, f.poisonWith(bgp.NewFramingError(bgp.SubcodeConnectionNotSynchronized))
	}

	length := binary.BigEndian.Uint16(avail[bgp.MarkerLength : bgp.MarkerLength+2])
	if length < bgp.HeaderLength || length > bgp.MaxMessageLength {
		return nil, f.poisonWith(bgp.NewFramingError(bgp.SubcodeBadMessageLength))
	}

	typ := bgp.Type(avail[bgp.MarkerLength+2])
	switch typ {
	case bgp.OPEN:
		if length < bgp.MinOpenLength {
			return nil, f.poisonWith(bgp.NewFramingError(bgp.SubcodeBadMessageLength))
		}
	case bgp.UPDATE:
		if length < bgp.MinUpdateLength {
			return nil, f.poisonWith(bgp.NewFramingError(bgp.SubcodeBadMessageLength))
		}
	case bgp.NOTIFICATION:
		if length < bgp.MinNotificationLength {
			return nil, f.poisonWith(bgp.NewFramingError(bgp.SubcodeBadMessageLength))
		}
	case bgp.KEEPALIVE:
		if length != bgp.MinKeepaliveLength {
			return nil, f.poisonWith(bgp.NewFramingError(bgp.SubcodeBadMessageLength))
		}
	default:
		return nil, f.poisonWith(bgp.NewFramingError(bgp.SubcodeBadMessageType))
	}

	if len(avail) < int(length) {
		return nil, bgp.ErrNeedMore
	}

	frame := make([]byte, length)
	copy(frame, avail[:length])
	f.buf.Next(int(length))
	return frame, nil
}

func (f *Framer) poisonWith(err error) error {
	wrapped := errors.Wrap(err, "stream: framing error")
	f.poison = wrapped
	return wrapped
}

// Poisoned reports whether a prior framing error has permanently
// closed this Framer to further progress.
func (f *Framer) Poisoned() bool {
	return f.poison != nil
}
