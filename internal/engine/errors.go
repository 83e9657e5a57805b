package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/fixitrock/rockdl/internal/engine/types"
)

// ErrRangeNotSupported is returned when a resume was requested but the
// server answered with the whole body.
var ErrRangeNotSupported = errors.New("server does not support range requests")

// StatusError is an unexpected HTTP status from the file host.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("unexpected status: %s", e.Status)
	}
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

func newStatusError(resp *http.Response) *StatusError {
	return &StatusError{Code: resp.StatusCode, Status: resp.Status}
}

// ClassifyError maps a transfer error to an ErrorKind. A nil error has no kind.
func ClassifyError(err error) types.ErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return types.ErrorKindCancelled
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == http.StatusUnauthorized,
			se.Code == http.StatusForbidden,
			se.Code == http.StatusGone:
			return types.ErrorKindExpired
		case se.Code == http.StatusRequestTimeout,
			se.Code == http.StatusTooManyRequests,
			se.Code >= 500:
			return types.ErrorKindNetwork
		}
		return types.ErrorKindGeneric
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return types.ErrorKindNetwork
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return types.ErrorKindNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.ErrorKindNetwork
	}

	return types.ErrorKindGeneric
}
