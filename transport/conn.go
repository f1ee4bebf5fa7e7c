package transport

import (
	"context"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/pkg/errors"
)

var (
	ErrConnClosed         = errors.New("connection is closed")
	ErrConnListenerClosed = errors.New("conn listener is closed")
	ErrConnRefused        = errors.New("connection refused")
	ErrConnReset          = errors.New("connection reset")
	ErrNetUnreachable     = errors.New("network is unreachable")
	ErrHostUnreachable    = errors.New("host is unreachable")
	ErrAddrAlreadyInUse   = errors.New("address already in use")
	ErrTimeout            = errors.New("timed out")
)

// MapError translates an operating system error into one of the package errors.
// Errors that have no counterpart are returned unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var sentinel error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		sentinel = ErrConnRefused
	case errors.Is(err, syscall.ENETUNREACH):
		sentinel = ErrNetUnreachable
	case errors.Is(err, syscall.EHOSTUNREACH):
		sentinel = ErrHostUnreachable
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		sentinel = ErrConnReset
	case errors.Is(err, syscall.EADDRINUSE):
		sentinel = ErrAddrAlreadyInUse
	case errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrClosedPipe):
		sentinel = ErrConnClosed
	case errors.Is(err, os.ErrDeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		sentinel = ErrTimeout
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			sentinel = ErrTimeout
		}
	}

	if sentinel == nil || errors.Is(err, sentinel) {
		return err
	}
	return errors.Wrap(sentinel, err.Error())
}

// IsRetryable reports whether another address may succeed where this one failed.
func IsRetryable(err error) bool {
	for _, target := range []error{
		ErrConnRefused, ErrConnReset, ErrNetUnreachable, ErrHostUnreachable, ErrTimeout, ErrConnClosed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
