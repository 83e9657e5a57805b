package cmd

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fixitrock/rockdl/internal/core"
	"github.com/fixitrock/rockdl/internal/engine"
	"github.com/fixitrock/rockdl/internal/engine/events"
	"github.com/fixitrock/rockdl/internal/engine/types"
	"github.com/fixitrock/rockdl/internal/utils"
)

const sseHeartbeat = 15 * time.Second

// DownloadRequest is the body of POST /download. It accepts a full item or
// the short form used by browser extensions (url plus optional filename).
type DownloadRequest struct {
	types.Item
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// toItem fills in defaults. The id is generated when missing and the name
// falls back to the URL's file name.
func (r DownloadRequest) toItem() (types.Item, error) {
	item := r.Item
	if item.DownloadURL == "" {
		item.DownloadURL = strings.TrimSpace(r.URL)
	}
	if item.DownloadURL == "" {
		return item, errors.New("URL is required")
	}
	if strings.Contains(item.Path, "..") || strings.Contains(r.Filename, "..") || strings.Contains(item.Name, "..") {
		return item, errors.New("invalid path")
	}
	if item.Name == "" {
		item.Name = engine.DetermineFilename(r.Filename, item.DownloadURL, nil)
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	// The destination file is chosen by the engine, never by the caller.
	item.Dest = ""
	return item, nil
}

// confinePath resolves item.Path inside root. Relative paths are taken as
// subfolders of root; absolute paths must already lie within it. An empty
// root disables the check.
func confinePath(path, root string) (string, error) {
	if path == "" || root == "" {
		return path, nil
	}
	root = filepath.Clean(utils.EnsureAbsPath(root))
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the download directory", path)
	}
	return path, nil
}

// newHTTPHandler builds the daemon API around svc. Every route except
// /health requires the bearer token. downloadRoot reports the directory
// that requested paths must stay inside; nil leaves paths unchecked.
func newHTTPHandler(svc core.DownloadService, token string, downloadRoot func() string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": Version})
	})

	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			id := r.URL.Query().Get("id")
			if id == "" {
				http.Error(w, "Missing id parameter", http.StatusBadRequest)
				return
			}
			rec, err := svc.GetStatus(id)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, rec)

		case http.MethodPost:
			var req DownloadRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
				return
			}
			item, err := req.toItem()
			if err == nil && downloadRoot != nil {
				item.Path, err = confinePath(item.Path, downloadRoot())
			}
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			utils.Debug("Received download request: URL=%s, Path=%s", item.DownloadURL, item.Path)

			id, err := svc.DownloadFile(item)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "queued", "id": id})

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	action := func(name string, fn func(string) error, methods ...string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(methods, r.Method) {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			id := r.URL.Query().Get("id")
			if id == "" {
				http.Error(w, "Missing id parameter", http.StatusBadRequest)
				return
			}
			if err := fn(id); err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": name, "id": id})
		}
	}
	mux.HandleFunc("/pause", action("paused", svc.Pause, http.MethodPost))
	mux.HandleFunc("/resume", action("resumed", svc.Resume, http.MethodPost))
	mux.HandleFunc("/delete", action("deleted", svc.Delete, http.MethodPost, http.MethodDelete))

	mux.HandleFunc("/clear", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := svc.ClearCompleted(); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	})

	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		records, err := svc.List()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if records == nil {
			records = []types.DownloadRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	})

	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		serveEvents(w, r, svc)
	})

	return corsMiddleware(authMiddleware(token, mux))
}

// serveEvents streams service events as server-sent events until the client
// goes away or the service closes the stream.
func serveEvents(w http.ResponseWriter, r *http.Request, svc core.DownloadService) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	stream, stop, err := svc.StreamEvents(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case msg, ok := <-stream:
			if !ok {
				return
			}
			name := events.Name(msg)
			if name == "" {
				continue
			}
			data, err := json.Marshal(msg)
			if err != nil {
				utils.Debug("SSE encode %s: %v", name, err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func authMiddleware(token string, next http.Handler) http.Handler {
	expected := []byte("Bearer " + token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		got := []byte(r.Header.Get("Authorization"))
		if token == "" || subtle.ConstantTimeCompare(got, expected) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Debug("Error encoding response: %v", err)
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		http.Error(w, "Download not found", http.StatusNotFound)
	case errors.Is(err, core.ErrInvalidItem):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, core.ErrClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// findAvailablePort tries ports starting from 'start' until one is available
func findAvailablePort(start int) (int, net.Listener) {
	for port := start; port < start+100; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			return port, ln
		}
	}
	return 0, nil
}

// listen binds the API listener: the exact port when given, else the first
// free port from defaultPort.
func listen(port int) (int, net.Listener, error) {
	if port > 0 {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			return 0, nil, fmt.Errorf("could not bind to port %d: %w", port, err)
		}
		return port, ln, nil
	}
	p, ln := findAvailablePort(defaultPort)
	if ln == nil {
		return 0, nil, errors.New("could not find available port")
	}
	return p, ln, nil
}
