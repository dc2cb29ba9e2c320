package retry

import (
	"context"
	"errors"
	"net"
	"syscall"

	"github.com/lllypuk/corekit/internal/domain/errs"
)

// IsTransient is the default classifier. Timeouts, connection-level network
// failures and errors explicitly marked with errs.ErrTransient are
// retryable; everything else, including context cancellation, is fatal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, errs.ErrTransient) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
