package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// markedRetryable lets transports tag errors as retryable explicitly.
type markedRetryable struct {
	err error
}

func (e *markedRetryable) Error() string { return e.err.Error() }
func (e *markedRetryable) Unwrap() error { return e.err }

// MarkRetryable wraps err so IsRetryable always accepts it.
func MarkRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &markedRetryable{err: err}
}

// IsRetryable reports whether err belongs to the fixed retryable set:
// connection-level failures and generic I/O timeouts. Programmer errors and
// explicit cancellation always propagate without retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var marked *markedRetryable
	if errors.As(err, &marked) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
