package transport

import (
	"context"
	"net"
)

// Stream is the minimal capability contract a connected byte transport must
// satisfy. It promises opaque chunk delivery only: no framing, no message
// boundaries. Reassembly belongs to the frame decoder.
type Stream interface {
	// ReadChunk reads whatever bytes are available into p. It follows
	// io.Reader semantics with one extra guarantee: it never returns (0, nil).
	// A clean end-of-stream is io.EOF.
	ReadChunk(p []byte) (int, error)

	// WriteChunk writes p in full. A returned error means the write failed as
	// a unit; callers never need to reason about partial writes.
	WriteChunk(p []byte) error

	// PeerAddr reports the remote endpoint.
	PeerAddr() (net.Addr, error)

	// Shutdown closes the stream and unblocks any in-flight reads or writes.
	// Safe to call more than once.
	Shutdown() error
}

// Listener accepts inbound streams.
type Listener interface {
	Accept() (Stream, net.Addr, error)
	LocalAddr() net.Addr
	Close() error
}

// Connector establishes outbound streams.
type Connector interface {
	Connect(ctx context.Context, addr string) (Stream, error)
}
