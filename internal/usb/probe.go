package usb

import (
	"context"
	"io"
	"strings"
	"time"
)

// Probe timeouts. Each probe sends one command and waits once.
const (
	ADBTimeout      = 2 * time.Second
	FastbootTimeout = 3 * time.Second
)

const (
	adbCommand      = "host:version\n"
	fastbootCommand = "getvar:version\n"
)

// ProbeADB reports whether the device answers an ADB host:version command.
func ProbeADB(ctx context.Context, port io.ReadWriter) bool {
	return probe(ctx, port, adbCommand, ADBTimeout, func(resp string) bool {
		return strings.Contains(resp, "OKAY")
	})
}

// ProbeFastboot reports whether the device answers a fastboot getvar.
func ProbeFastboot(ctx context.Context, port io.ReadWriter) bool {
	return probe(ctx, port, fastbootCommand, FastbootTimeout, func(resp string) bool {
		return strings.Contains(resp, "OKAY") || strings.Contains(strings.ToLower(resp), "fastboot")
	})
}

// probe writes cmd and waits up to timeout for a single read. Any failure
// counts as no match. The reader goroutine exits when the port's Read
// returns, which closing the port guarantees.
func probe(ctx context.Context, port io.ReadWriter, cmd string, timeout time.Duration, match func(string) bool) bool {
	if port == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := io.WriteString(port, cmd); err != nil {
		return false
	}

	resp := make(chan string, 1)
	go func() {
		buf := make([]byte, 256)
		n, _ := port.Read(buf)
		resp <- string(buf[:n])
	}()

	select {
	case s := <-resp:
		return match(s)
	case <-ctx.Done():
		return false
	}
}
