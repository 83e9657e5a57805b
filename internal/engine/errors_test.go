package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/fixitrock/rockdl/internal/engine/types"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorKind
	}{
		{"nil", nil, ""},
		{"cancelled", fmt.Errorf("read body: %w", context.Canceled), types.ErrorKindCancelled},
		{"forbidden", &StatusError{Code: 403}, types.ErrorKindExpired},
		{"unauthorized", fmt.Errorf("probe: %w", &StatusError{Code: 401}), types.ErrorKindExpired},
		{"gone", &StatusError{Code: 410}, types.ErrorKindExpired},
		{"server error", &StatusError{Code: 502}, types.ErrorKindNetwork},
		{"rate limited", &StatusError{Code: 429}, types.ErrorKindNetwork},
		{"not found", &StatusError{Code: 404}, types.ErrorKindGeneric},
		{"deadline", context.DeadlineExceeded, types.ErrorKindNetwork},
		{"truncated body", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), types.ErrorKindNetwork},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, types.ErrorKindNetwork},
		{"dns", &net.DNSError{Err: "no such host", Name: "x.invalid"}, types.ErrorKindNetwork},
		{"disk full", errors.New("write error: no space left on device"), types.ErrorKindGeneric},
		{"range", ErrRangeNotSupported, types.ErrorKindGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestStatusError_Message(t *testing.T) {
	if got := (&StatusError{Code: 404}).Error(); got != "unexpected status code: 404" {
		t.Errorf("unexpected message %q", got)
	}
	if got := (&StatusError{Code: 403, Status: "403 Forbidden"}).Error(); got != "unexpected status: 403 Forbidden" {
		t.Errorf("unexpected message %q", got)
	}
}
