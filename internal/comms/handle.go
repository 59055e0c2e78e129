package comms

import (
	"errors"
	"net"
	"sync"
)

var (
	// ErrConnectionClosed is returned by Send on a dead connection and by
	// Receive once the peer closed or the I/O loop terminated. For Receive
	// it is the end-of-connection signal, not a fault.
	ErrConnectionClosed = errors.New("comms: connection closed")

	// ErrListenerNotFound is returned when stopping an address with no
	// registered listener.
	ErrListenerNotFound = errors.New("comms: no listener registered at address")
)

// ConnectionHandle is the application-facing side of one connection. Sends
// go through a bounded channel drained by the connection's I/O loop; a slow
// peer eventually blocks Send, which is the intended backpressure path.
// The handle is safe for concurrent use, though messages from concurrent
// Send calls are ordered only relative to each call's completion.
type ConnectionHandle[T any] struct {
	sendCh chan T
	recvCh chan T
	peer   net.Addr

	closeOnce sync.Once
	closeReq  chan struct{} // Close() fires this; the loop acts on it
	done      chan struct{} // closed by the loop on exit
}

func newConnectionHandle[T any](peer net.Addr, capacity int) *ConnectionHandle[T] {
	return &ConnectionHandle[T]{
		sendCh:   make(chan T, capacity),
		recvCh:   make(chan T, capacity),
		peer:     peer,
		closeReq: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Send enqueues msg for the peer, blocking while the outbound channel is
// full. It fails immediately once the connection is closed.
func (h *ConnectionHandle[T]) Send(msg T) error {
	select {
	case <-h.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case h.sendCh <- msg:
		return nil
	case <-h.done:
		return ErrConnectionClosed
	}
}

// Receive returns the next inbound message, blocking until one arrives.
// Once the connection is down and all delivered messages are drained it
// returns ErrConnectionClosed rather than blocking forever.
func (h *ConnectionHandle[T]) Receive() (T, error) {
	msg, ok := <-h.recvCh
	if !ok {
		var zero T
		return zero, ErrConnectionClosed
	}
	return msg, nil
}

// PeerAddr reports the remote endpoint.
func (h *ConnectionHandle[T]) PeerAddr() net.Addr {
	return h.peer
}

// Close asks the I/O loop to tear the connection down. Idempotent; it does
// not wait for the loop to finish.
func (h *ConnectionHandle[T]) Close() {
	h.closeOnce.Do(func() {
		close(h.closeReq)
	})
}

// Done is closed when the connection's I/O loop has fully terminated.
func (h *ConnectionHandle[T]) Done() <-chan struct{} {
	return h.done
}
