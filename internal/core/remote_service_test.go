package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixitrock/rockdl/internal/engine/events"
	"github.com/fixitrock/rockdl/internal/engine/types"
)

type fakeDaemon struct {
	mu      sync.Mutex
	actions []string
	added   []types.Item
}

func (d *fakeDaemon) handler(token string) http.Handler {
	mux := http.NewServeMux()
	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}

	mux.HandleFunc("/list", auth(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]types.DownloadRecord{
			{ID: "a", Name: "a.zip", Status: types.StatusDownloading, Progress: 42},
		})
	}))
	mux.HandleFunc("/download", auth(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var item types.Item
			if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			d.mu.Lock()
			d.added = append(d.added, item)
			d.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]string{"id": item.ID})
			return
		}
		if r.URL.Query().Get("id") != "a" {
			http.Error(w, "download not found", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(types.DownloadRecord{ID: "a", Name: "a.zip", Status: types.StatusPaused})
	}))
	for _, path := range []string{"/pause", "/resume", "/delete", "/clear"} {
		path := path
		mux.HandleFunc(path, auth(func(w http.ResponseWriter, r *http.Request) {
			d.mu.Lock()
			d.actions = append(d.actions, path+"?"+r.URL.RawQuery)
			d.mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
	}
	mux.HandleFunc("/events", auth(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		_, _ = fmt.Fprint(w, ": heartbeat\n\n")
		_, _ = fmt.Fprint(w, "event: bogus\ndata: {}\n\n")
		_, _ = fmt.Fprint(w, "event: progress\ndata: {\"DownloadID\":\"a\",\"Downloaded\":10,\"Total\":100}\n\n")
		_, _ = fmt.Fprint(w, "event: error\ndata: {\"DownloadID\":\"a\",\"Kind\":\"expired\",\"Err\":\"gone\"}\n\n")
		flusher.Flush()
		<-r.Context().Done()
	}))
	return mux
}

func newRemote(t *testing.T) (*RemoteDownloadService, *fakeDaemon) {
	t.Helper()
	d := &fakeDaemon{}
	srv := httptest.NewServer(d.handler("secret"))
	t.Cleanup(srv.Close)

	svc := NewRemoteDownloadService(srv.URL, "secret")
	t.Cleanup(func() {
		_ = svc.Shutdown()
		svc.Client.CloseIdleConnections()
		svc.SSEClient.CloseIdleConnections()
	})
	return svc, d
}

func TestRemote_ListAndStatus(t *testing.T) {
	svc, _ := newRemote(t)

	list, err := svc.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 42, list[0].Progress)

	rec, err := svc.GetStatus("a")
	require.NoError(t, err)
	assert.Equal(t, types.StatusPaused, rec.Status)

	_, err = svc.GetStatus("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemote_Actions(t *testing.T) {
	svc, d := newRemote(t)

	id, err := svc.DownloadFile(types.Item{ID: "x", Name: "x.img", DownloadURL: "http://host/x.img"})
	require.NoError(t, err)
	assert.Equal(t, "x", id)

	require.NoError(t, svc.Pause("x"))
	require.NoError(t, svc.Resume("x"))
	require.NoError(t, svc.Delete("a b"))
	require.NoError(t, svc.ClearCompleted())
	assert.Error(t, svc.Publish(events.DeviceChangedMsg{}))

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Equal(t, []types.Item{{ID: "x", Name: "x.img", DownloadURL: "http://host/x.img"}}, d.added)
	assert.Equal(t, []string{"/pause?id=x", "/resume?id=x", "/delete?id=a+b", "/clear?"}, d.actions)
}

func TestRemote_Unauthorized(t *testing.T) {
	svc, _ := newRemote(t)
	svc.Token = "wrong"

	_, err := svc.List()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestRemote_StreamEvents(t *testing.T) {
	svc, _ := newRemote(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stream, stop, err := svc.StreamEvents(ctx)
	require.NoError(t, err)

	first := <-stream
	progress, ok := first.(events.ProgressMsg)
	require.True(t, ok, "unknown events are skipped, got %T", first)
	assert.Equal(t, int64(10), progress.Downloaded)

	second := <-stream
	failed, ok := second.(events.DownloadErrorMsg)
	require.True(t, ok)
	assert.Equal(t, types.ErrorKindExpired, failed.Kind)
	assert.EqualError(t, failed.Err, "gone")

	stop()
	for range stream {
	}
}
