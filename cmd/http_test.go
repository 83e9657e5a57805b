package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixitrock/rockdl/internal/core"
	"github.com/fixitrock/rockdl/internal/engine/events"
	"github.com/fixitrock/rockdl/internal/engine/types"
	"github.com/fixitrock/rockdl/internal/testutil"
)

func doRequest(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestDownloadRequest_ToItem(t *testing.T) {
	item, err := DownloadRequest{URL: " https://example.com/fw/rom.zip "}.toItem()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/fw/rom.zip", item.DownloadURL)
	assert.Equal(t, "rom.zip", item.Name)
	assert.NotEmpty(t, item.ID)

	item, err = DownloadRequest{URL: "https://example.com/a", Filename: "b.img"}.toItem()
	require.NoError(t, err)
	assert.Equal(t, "b.img", item.Name)

	full := types.Item{ID: "x1", Name: "boot.img", DownloadURL: "https://example.com/boot"}
	item, err = DownloadRequest{Item: full}.toItem()
	require.NoError(t, err)
	assert.Equal(t, full, item)

	_, err = DownloadRequest{}.toItem()
	assert.Error(t, err)

	_, err = DownloadRequest{URL: "https://example.com/a", Item: types.Item{Path: "../etc"}}.toItem()
	assert.Error(t, err)

	_, err = DownloadRequest{URL: "https://example.com/a", Filename: "../../x"}.toItem()
	assert.Error(t, err)

	item, err = DownloadRequest{URL: "https://example.com/a", Item: types.Item{Dest: "/etc/passwd"}}.toItem()
	require.NoError(t, err)
	assert.Empty(t, item.Dest, "callers cannot pick the destination file")
}

func TestConfinePath(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{name: "empty keeps default", path: "", want: ""},
		{name: "root itself", path: root, want: root},
		{name: "nested absolute", path: filepath.Join(root, "roms", "pixel"), want: filepath.Join(root, "roms", "pixel")},
		{name: "relative is a subfolder", path: filepath.Join("roms", "pixel"), want: filepath.Join(root, "roms", "pixel")},
		{name: "outside root", path: filepath.Dir(root), wantErr: true},
		{name: "sibling with shared prefix", path: root + "-evil", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := confinePath(tt.path, root)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	got, err := confinePath("/anywhere", "")
	require.NoError(t, err)
	assert.Equal(t, "/anywhere", got, "no root, no confinement")
}

func TestHTTPHandler_ConfinesDownloadPath(t *testing.T) {
	mock := testutil.NewMockServerT(t, testutil.WithFileSize(4*1024))
	svc, outDir := newTestService(t)
	h := newHTTPHandler(svc, testToken, func() string { return outDir })

	w := doRequest(t, h, http.MethodPost, "/download", map[string]string{
		"url":  mock.URL() + "/boot.img",
		"path": t.TempDir(),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "outside the download directory")

	w = doRequest(t, h, http.MethodPost, "/download", map[string]string{
		"url":  mock.URL() + "/boot.img",
		"path": "pixel",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	var rec *types.DownloadRecord
	require.Eventually(t, func() bool {
		var err error
		rec, err = svc.GetStatus(resp["id"])
		return err == nil && rec.Status == types.StatusCompleted
	}, 10*time.Second, 20*time.Millisecond)
	assert.Equal(t, filepath.Join(outDir, "pixel", "boot.img"), rec.DownloadPath)
}

func TestHTTPHandler_Auth(t *testing.T) {
	svc, _ := newTestService(t)
	h := newHTTPHandler(svc, testToken, nil)

	// Health is public.
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/list", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/list", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// An empty token never authenticates.
	open := newHTTPHandler(svc, "", nil)
	req = httptest.NewRequest(http.MethodGet, "/list", nil)
	req.Header.Set("Authorization", "Bearer ")
	w = httptest.NewRecorder()
	open.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHTTPHandler_CORSPreflight(t *testing.T) {
	svc, _ := newTestService(t)
	h := newHTTPHandler(svc, testToken, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/download", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestHTTPHandler_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	h := newHTTPHandler(svc, testToken, nil)

	tests := []struct {
		name   string
		method string
		target string
		body   any
		want   int
	}{
		{"list empty", http.MethodGet, "/list", nil, http.StatusOK},
		{"list wrong method", http.MethodPost, "/list", nil, http.StatusMethodNotAllowed},
		{"download wrong method", http.MethodPut, "/download", nil, http.StatusMethodNotAllowed},
		{"status missing id", http.MethodGet, "/download", nil, http.StatusBadRequest},
		{"status unknown id", http.MethodGet, "/download?id=nope", nil, http.StatusNotFound},
		{"add without url", http.MethodPost, "/download", map[string]string{}, http.StatusBadRequest},
		{"add traversal", http.MethodPost, "/download", map[string]string{"url": "https://example.com/a", "path": "../../tmp"}, http.StatusBadRequest},
		{"pause unknown", http.MethodPost, "/pause?id=nope", nil, http.StatusNotFound},
		{"pause wrong method", http.MethodGet, "/pause?id=nope", nil, http.StatusMethodNotAllowed},
		{"resume missing id", http.MethodPost, "/resume", nil, http.StatusBadRequest},
		{"delete unknown", http.MethodDelete, "/delete?id=nope", nil, http.StatusNotFound},
		{"clear", http.MethodPost, "/clear", nil, http.StatusOK},
		{"clear wrong method", http.MethodGet, "/clear", nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	w := doRequest(t, h, http.MethodGet, "/list", nil)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))

	req := httptest.NewRequest(http.MethodPost, "/download", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPHandler_ClosedService(t *testing.T) {
	svc, _ := newTestService(t)
	h := newHTTPHandler(svc, testToken, nil)
	require.NoError(t, svc.Shutdown())

	w := doRequest(t, h, http.MethodPost, "/download", map[string]string{"url": "https://example.com/a.bin"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHTTPHandler_DownloadLifecycle(t *testing.T) {
	server := testutil.NewMockServerT(t, testutil.WithFileSize(64*1024))
	svc, outDir := newTestService(t)
	h := newHTTPHandler(svc, testToken, nil)

	w := doRequest(t, h, http.MethodPost, "/download", map[string]string{
		"url":      server.URL() + "/firmware.bin",
		"filename": "firmware.bin",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp["status"])
	id := resp["id"]
	require.NotEmpty(t, id)

	var rec types.DownloadRecord
	require.Eventually(t, func() bool {
		w := doRequest(t, h, http.MethodGet, "/download?id="+id, nil)
		if w.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
			return false
		}
		return rec.Status == types.StatusCompleted
	}, 10*time.Second, 20*time.Millisecond)

	assert.Equal(t, 100, rec.Progress)
	assert.Equal(t, int64(64*1024), rec.Size)
	require.NotEmpty(t, rec.DownloadPath)
	assert.Equal(t, outDir, filepath.Dir(rec.DownloadPath))
	info, err := os.Stat(rec.DownloadPath)
	require.NoError(t, err)
	assert.Equal(t, int64(64*1024), info.Size())

	w = doRequest(t, h, http.MethodGet, "/list", nil)
	var records []types.DownloadRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].ID)

	w = doRequest(t, h, http.MethodPost, "/clear", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(t, h, http.MethodGet, "/download?id="+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.FileExists(t, rec.DownloadPath)
}

func TestHTTPHandler_EventsOverSSE(t *testing.T) {
	requireTCPListener(t)
	svc, _ := newTestService(t)
	server := httptest.NewServer(newHTTPHandler(svc, testToken, nil))
	t.Cleanup(server.Close)

	remote := core.NewRemoteDownloadService(server.URL, testToken)
	t.Cleanup(func() { _ = remote.Shutdown() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, stop, err := remote.StreamEvents(ctx)
	require.NoError(t, err)
	defer stop()

	want := events.DeviceChangedMsg{Ports: []events.DevicePort{
		{Name: "/dev/ttyACM0", VendorID: "18d1", ProductID: "4ee7", Kind: "adb"},
	}}

	// The remote connects asynchronously, so publish until it hears one.
	var got events.DeviceChangedMsg
	require.Eventually(t, func() bool {
		require.NoError(t, svc.Publish(want))
		select {
		case msg := <-stream:
			m, ok := msg.(events.DeviceChangedMsg)
			if ok {
				got = m
			}
			return ok
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, want, got)
}

func TestHTTPHandler_RemoteClientRoundTrip(t *testing.T) {
	requireTCPListener(t)
	mock := testutil.NewMockServerT(t, testutil.WithFileSize(32*1024))
	svc, _ := newTestService(t)
	server := httptest.NewServer(newHTTPHandler(svc, testToken, nil))
	t.Cleanup(server.Close)

	remote := core.NewRemoteDownloadService(server.URL, testToken)
	t.Cleanup(func() { _ = remote.Shutdown() })

	id, err := remote.DownloadFile(types.Item{ID: "r1", Name: "recovery.img", DownloadURL: mock.URL() + "/recovery.img"})
	require.NoError(t, err)
	assert.Equal(t, "r1", id)

	require.Eventually(t, func() bool {
		rec, err := remote.GetStatus("r1")
		return err == nil && rec.Status == types.StatusCompleted
	}, 10*time.Second, 20*time.Millisecond)

	_, err = remote.GetStatus("missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, remote.Delete("r1"))
	records, err := remote.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListen(t *testing.T) {
	requireTCPListener(t)
	port, ln, err := listen(0)
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()
	assert.GreaterOrEqual(t, port, defaultPort)

	// The exact port is taken, so binding it again fails.
	_, _, err = listen(port)
	assert.Error(t, err)

	next, ln2 := findAvailablePort(port)
	require.NotNil(t, ln2)
	defer func() { _ = ln2.Close() }()
	assert.Greater(t, next, port)
}
