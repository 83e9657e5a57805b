package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fixitrock/rockdl/internal/engine/types"
	"github.com/fixitrock/rockdl/internal/utils"
)

// probeAttempts bounds retries for transport failures; HTTP errors are final.
const probeAttempts = 3

// ProbeResult contains all metadata from server probe
type ProbeResult struct {
	FileSize      int64 // 0 when unknown
	SupportsRange bool
	Filename      string
	ContentType   string
}

// ProbeServer sends GET with Range: bytes=0-0 to learn size, range support
// and the file name. headers may be nil.
func ProbeServer(ctx context.Context, client *http.Client, runtime *types.RuntimeConfig, rawurl, filenameHint string, headers map[string]string) (*ProbeResult, error) {
	utils.Debug("Probing server: %s", rawurl)

	if client == nil {
		client = NewHTTPClient(runtime)
	}

	var resp *http.Response
	var err error

	for i := 0; i < probeAttempts; i++ {
		if i > 0 {
			utils.Debug("Retrying probe... attempt %d", i+1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * 500 * time.Millisecond):
			}
		}

		resp, err = doProbe(ctx, client, runtime, rawurl, headers)
		if err == nil || ctx.Err() != nil {
			break
		}
	}

	if err != nil {
		return nil, fmt.Errorf("probe request failed: %w", err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		_ = resp.Body.Close()
	}()

	utils.Debug("Probe response status: %d", resp.StatusCode)

	result := &ProbeResult{}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		result.SupportsRange = true
		result.FileSize = parseContentRangeTotal(resp.Header.Get("Content-Range"))
	case http.StatusOK:
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			result.FileSize, _ = strconv.ParseInt(cl, 10, 64)
		}
	case http.StatusRequestedRangeNotSatisfiable:
		// Empty files cannot satisfy bytes=0-0.
		result.SupportsRange = true
	default:
		return nil, newStatusError(resp)
	}

	result.Filename = DetermineFilename(filenameHint, rawurl, resp.Header)
	result.ContentType = resp.Header.Get("Content-Type")

	utils.Debug("Probe complete - filename: %s, size: %d, range: %v",
		result.Filename, result.FileSize, result.SupportsRange)

	return result, nil
}

func doProbe(ctx context.Context, client *http.Client, runtime *types.RuntimeConfig, rawurl string, headers map[string]string) (*http.Response, error) {
	probeCtx, cancel := context.WithTimeout(ctx, runtime.GetProbeTimeout())

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, rawurl, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create probe request: %w", err)
	}
	for key, val := range headers {
		if key != "Range" {
			req.Header.Set(key, val)
		}
	}
	req.Header.Set("Range", "bytes=0-0")
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", runtime.GetUserAgent())
	}

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// parseContentRangeTotal extracts TOTAL from "bytes 0-0/TOTAL"; "*" or
// malformed values yield 0.
func parseContentRangeTotal(contentRange string) int64 {
	idx := strings.LastIndex(contentRange, "/")
	if idx == -1 {
		return 0
	}
	sizeStr := strings.TrimSpace(contentRange[idx+1:])
	if sizeStr == "*" {
		return 0
	}
	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil || size < 0 {
		return 0
	}
	return size
}
