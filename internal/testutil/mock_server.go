// Package testutil provides testing utilities for the rockdl download manager.
package testutil

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// MockServer is a configurable file host for download testing. It serves a
// single blob at every path, optionally honouring Range requests.
type MockServer struct {
	Server *httptest.Server

	// Configuration
	FileSize       int64         // Size of the served file
	SupportsRanges bool          // Whether to honour HTTP Range requests
	ContentType    string        // Content-Type header value
	Filename       string        // Filename in Content-Disposition header
	RandomData     bool          // If true, serve random data; otherwise serve zeros
	Latency        time.Duration // Artificial latency before the response
	ChunkDelay     time.Duration // Pause after each 32KB chunk (simulates slow links)
	FailAfterBytes int64         // Drop the first request after this many bytes (0 = never)
	Status         int           // Force this status code on every request (0 = normal)

	// Tracking
	RequestCount   atomic.Int64
	BytesServed    atomic.Int64
	RangeRequests  atomic.Int64
	FullRequests   atomic.Int64
	FailedRequests atomic.Int64

	mu        sync.Mutex
	reqNum    int
	lastRange string

	data          []byte
	CustomHandler http.HandlerFunc
}

// MockServerOption is a function that configures a MockServer.
type MockServerOption func(*MockServer)

// WithHandler sets a custom request handler.
func WithHandler(h http.HandlerFunc) MockServerOption {
	return func(m *MockServer) {
		m.CustomHandler = h
	}
}

// WithFileSize sets the file size to serve.
func WithFileSize(size int64) MockServerOption {
	return func(m *MockServer) {
		m.FileSize = size
	}
}

// WithData serves the given bytes verbatim. It overrides WithFileSize.
func WithData(b []byte) MockServerOption {
	return func(m *MockServer) {
		m.data = b
		m.FileSize = int64(len(b))
	}
}

// WithRangeSupport enables or disables Range request support.
func WithRangeSupport(enabled bool) MockServerOption {
	return func(m *MockServer) {
		m.SupportsRanges = enabled
	}
}

// WithContentType sets the Content-Type header.
func WithContentType(ct string) MockServerOption {
	return func(m *MockServer) {
		m.ContentType = ct
	}
}

// WithFilename sets the filename in Content-Disposition header.
// An empty name omits the header.
func WithFilename(name string) MockServerOption {
	return func(m *MockServer) {
		m.Filename = name
	}
}

// WithRandomData enables serving random bytes instead of zeros.
func WithRandomData(random bool) MockServerOption {
	return func(m *MockServer) {
		m.RandomData = random
	}
}

// WithLatency adds artificial latency per request.
func WithLatency(d time.Duration) MockServerOption {
	return func(m *MockServer) {
		m.Latency = d
	}
}

// WithChunkDelay pauses after every chunk written.
func WithChunkDelay(d time.Duration) MockServerOption {
	return func(m *MockServer) {
		m.ChunkDelay = d
	}
}

// WithFailAfterBytes cuts the first request after serving n bytes.
// Later requests complete normally so resume paths can be exercised.
func WithFailAfterBytes(n int64) MockServerOption {
	return func(m *MockServer) {
		m.FailAfterBytes = n
	}
}

// WithStatus makes every request answer with the given status code.
func WithStatus(code int) MockServerOption {
	return func(m *MockServer) {
		m.Status = code
	}
}

func newMockServer(opts []MockServerOption) *MockServer {
	m := &MockServer{
		FileSize:       1024 * 1024, // 1MB default
		SupportsRanges: true,
		ContentType:    "application/octet-stream",
		Filename:       "testfile.bin",
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.data == nil {
		m.data = make([]byte, m.FileSize)
		if m.RandomData {
			_, _ = rand.Read(m.data)
		}
	}
	return m
}

// NewMockServer creates a new mock HTTP server with the given options.
func NewMockServer(opts ...MockServerOption) *MockServer {
	m := newMockServer(opts)
	m.Server = NewHTTPServer(http.HandlerFunc(m.handleRequest))
	return m
}

// NewMockServerT creates a new mock HTTP server, registers cleanup and
// skips the test if binding fails.
func NewMockServerT(t *testing.T, opts ...MockServerOption) *MockServer {
	t.Helper()
	m := newMockServer(opts)
	m.Server = NewHTTPServerT(t, http.HandlerFunc(m.handleRequest))
	t.Cleanup(m.Close)
	return m
}

// URL returns the server's URL.
func (m *MockServer) URL() string {
	return m.Server.URL
}

// Data returns the bytes being served.
func (m *MockServer) Data() []byte {
	return m.data
}

// LastRange returns the Range header of the most recent request.
func (m *MockServer) LastRange() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRange
}

// Close shuts down the mock server.
func (m *MockServer) Close() {
	if m.Server != nil {
		m.Server.Close()
	}
}

// Reset clears all tracking counters.
func (m *MockServer) Reset() {
	m.RequestCount.Store(0)
	m.BytesServed.Store(0)
	m.RangeRequests.Store(0)
	m.FullRequests.Store(0)
	m.FailedRequests.Store(0)
	m.mu.Lock()
	m.reqNum = 0
	m.lastRange = ""
	m.mu.Unlock()
}

// Stats returns a summary of server statistics.
func (m *MockServer) Stats() MockServerStats {
	return MockServerStats{
		TotalRequests:  m.RequestCount.Load(),
		BytesServed:    m.BytesServed.Load(),
		RangeRequests:  m.RangeRequests.Load(),
		FullRequests:   m.FullRequests.Load(),
		FailedRequests: m.FailedRequests.Load(),
	}
}

// MockServerStats contains server statistics.
type MockServerStats struct {
	TotalRequests  int64
	BytesServed    int64
	RangeRequests  int64
	FullRequests   int64
	FailedRequests int64
}

func (m *MockServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	if m.CustomHandler != nil {
		m.CustomHandler(w, r)
		return
	}

	m.RequestCount.Add(1)

	rangeHeader := r.Header.Get("Range")
	m.mu.Lock()
	m.reqNum++
	reqNum := m.reqNum
	m.lastRange = rangeHeader
	m.mu.Unlock()

	if m.Status != 0 {
		m.FailedRequests.Add(1)
		http.Error(w, http.StatusText(m.Status), m.Status)
		return
	}

	if m.Latency > 0 {
		time.Sleep(m.Latency)
	}

	if r.Method == http.MethodHead {
		m.setCommonHeaders(w, 0, m.FileSize-1)
		if m.SupportsRanges {
			w.Header().Set("Accept-Ranges", "bytes")
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	start := int64(0)
	end := m.FileSize - 1

	if rangeHeader != "" && m.SupportsRanges {
		m.RangeRequests.Add(1)

		var err error
		start, end, err = parseRange(rangeHeader, m.FileSize)
		if err != nil {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", m.FileSize))
			http.Error(w, "Invalid range", http.StatusRequestedRangeNotSatisfiable)
			return
		}

		m.setCommonHeaders(w, start, end)
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, m.FileSize))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		m.FullRequests.Add(1)
		m.setCommonHeaders(w, 0, m.FileSize-1)
		if m.SupportsRanges {
			w.Header().Set("Accept-Ranges", "bytes")
		}
		w.WriteHeader(http.StatusOK)
	}

	length := end - start + 1
	written := int64(0)
	flusher, _ := w.(http.Flusher)

	chunkSize := int64(32 * 1024)
	for written < length {
		if m.FailAfterBytes > 0 && reqNum == 1 && written >= m.FailAfterBytes {
			m.FailedRequests.Add(1)
			// ErrAbortHandler drops the connection without a server log line.
			panic(http.ErrAbortHandler)
		}

		n := chunkSize
		if remaining := length - written; remaining < n {
			n = remaining
		}
		if m.FailAfterBytes > 0 && reqNum == 1 && written+n > m.FailAfterBytes {
			n = m.FailAfterBytes - written
		}

		from := start + written
		nw, err := w.Write(m.data[from : from+n])
		if err != nil {
			return
		}
		written += int64(nw)
		m.BytesServed.Add(int64(nw))
		if flusher != nil {
			flusher.Flush()
		}

		if m.ChunkDelay > 0 {
			time.Sleep(m.ChunkDelay)
		}
	}
}

func (m *MockServer) setCommonHeaders(w http.ResponseWriter, start, end int64) {
	w.Header().Set("Content-Type", m.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	if m.Filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, m.Filename))
	}
}

// parseRange parses an HTTP Range header and returns start, end positions.
// Handles formats like "bytes=0-499", "bytes=500-" and "bytes=-500".
func parseRange(rangeHeader string, fileSize int64) (int64, int64, error) {
	if !strings.HasPrefix(rangeHeader, "bytes=") {
		return 0, 0, fmt.Errorf("invalid range prefix")
	}

	rangeSpec := strings.TrimPrefix(rangeHeader, "bytes=")
	parts := strings.Split(rangeSpec, "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid range format")
	}

	var start, end int64
	var err error

	if parts[0] == "" {
		end = fileSize - 1
		start, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, err
		}
		start = fileSize - start
	} else {
		start, err = strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return 0, 0, err
		}

		if parts[1] == "" {
			end = fileSize - 1
		} else {
			end, err = strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return 0, 0, err
			}
			if end >= fileSize {
				end = fileSize - 1
			}
		}
	}

	if start < 0 || start > end {
		return 0, 0, fmt.Errorf("range out of bounds")
	}

	return start, end, nil
}
