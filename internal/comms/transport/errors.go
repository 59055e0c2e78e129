package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Transport failure taxonomy. Higher layers compare with errors.Is; both the
// taxonomy sentinel and the original error stay matchable, so a caller can
// still tell use-of-closed apart from a peer reset inside the same bucket.
var (
	ErrConnectionRefused = errors.New("transport: connection refused")
	ErrConnectionClosed  = errors.New("transport: connection closed")
	ErrTimeout           = errors.New("transport: operation timed out")
	ErrUnreachable       = errors.New("transport: host unreachable")
	ErrAddressInUse      = errors.New("transport: address in use")
	ErrPermissionDenied  = errors.New("transport: permission denied")
)

// Classify maps an OS-level network error onto the transport taxonomy.
// io.EOF passes through untouched: it is the clean end-of-stream signal,
// not a failure. Errors with no taxonomy bucket are returned as-is.
func Classify(err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return err
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("%w: %w", ErrConnectionRefused, err)
	case errors.Is(err, net.ErrClosed),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE):
		return fmt.Errorf("%w: %w", ErrConnectionClosed, err)
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	case errors.Is(err, syscall.EADDRINUSE):
		return fmt.Errorf("%w: %w", ErrAddressInUse, err)
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	case errors.Is(err, syscall.ETIMEDOUT):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
