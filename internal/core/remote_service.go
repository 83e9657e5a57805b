package core

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fixitrock/rockdl/internal/engine/events"
	"github.com/fixitrock/rockdl/internal/engine/types"
	"github.com/fixitrock/rockdl/internal/utils"
)

// RemoteDownloadService implements DownloadService for a remote daemon.
type RemoteDownloadService struct {
	BaseURL   string
	Token     string
	Client    *http.Client
	SSEClient *http.Client
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewRemoteDownloadService creates a new remote service instance.
func NewRemoteDownloadService(baseURL string, token string) *RemoteDownloadService {
	ctx, cancel := context.WithCancel(context.Background())
	return &RemoteDownloadService{
		BaseURL:   baseURL,
		Token:     token,
		Client:    &http.Client{Timeout: 30 * time.Second},
		SSEClient: &http.Client{},
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *RemoteDownloadService) doRequest(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(s.ctx, method, s.BaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+s.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		defer func() { _ = resp.Body.Close() }()
		// Limit error body read to 1KB to prevent DoS
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSpace(string(bodyBytes)))
		}
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	return resp, nil
}

// List returns every record known to the daemon.
func (s *RemoteDownloadService) List() ([]types.DownloadRecord, error) {
	resp, err := s.doRequest("GET", "/list", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var records []types.DownloadRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetStatus returns the record of a single download by id.
func (s *RemoteDownloadService) GetStatus(id string) (*types.DownloadRecord, error) {
	resp, err := s.doRequest("GET", "/download?id="+url.QueryEscape(id), nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var rec types.DownloadRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DownloadFile registers item with the daemon.
func (s *RemoteDownloadService) DownloadFile(item types.Item) (string, error) {
	resp, err := s.doRequest("POST", "/download", item)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var result map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result["id"], nil
}

// Pause pauses an active download.
func (s *RemoteDownloadService) Pause(id string) error {
	return s.action("/pause", id)
}

// Resume resumes a paused download.
func (s *RemoteDownloadService) Resume(id string) error {
	return s.action("/resume", id)
}

// Delete cancels and removes a download.
func (s *RemoteDownloadService) Delete(id string) error {
	return s.action("/delete", id)
}

// ClearCompleted removes finished records on the daemon.
func (s *RemoteDownloadService) ClearCompleted() error {
	resp, err := s.doRequest("POST", "/clear", nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (s *RemoteDownloadService) action(path, id string) error {
	resp, err := s.doRequest("POST", path+"?id="+url.QueryEscape(id), nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Shutdown stops the service.
func (s *RemoteDownloadService) Shutdown() error {
	s.cancel()
	return nil
}

// StreamEvents returns a channel that receives real-time download events via SSE.
func (s *RemoteDownloadService) StreamEvents(ctx context.Context) (<-chan any, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan any, eventBuffer)
	go s.streamWithReconnect(ctx, ch)
	return ch, cancel, nil
}

// Publish emits an event into the service's event stream.
// Remote services do not accept client-side event injection.
func (s *RemoteDownloadService) Publish(any) error {
	return errors.New("publish not supported for remote service")
}

func (s *RemoteDownloadService) streamWithReconnect(ctx context.Context, ch chan any) {
	defer close(ch)
	backoff := 1 * time.Second
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ctx.Done():
			return
		default:
		}

		err := s.connectSSE(ctx, ch)
		if err == nil {
			return // Clean shutdown (e.g. server closed stream cleanly or context canceled during request)
		}
		// Check context again before sleeping
		select {
		case <-s.ctx.Done():
			return
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			// Continue
		}

		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *RemoteDownloadService) connectSSE(ctx context.Context, ch chan any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", s.BaseURL+"/events", nil)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+s.Token)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Connection", "keep-alive")

	resp, err := s.SSEClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != 200 {
		return fmt.Errorf("failed to connect to event stream: %s", resp.Status)
	}

	reader := bufio.NewReader(resp.Body)
	for {
		eventType := ""
		var dataLines []string

		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return err
			}
			line = strings.TrimRight(line, "\r\n")

			// Blank line dispatches event
			if line == "" {
				break
			}
			// Comment/heartbeat
			if strings.HasPrefix(line, ":") {
				continue
			}
			if strings.HasPrefix(line, "event:") {
				eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
				continue
			}
			if strings.HasPrefix(line, "data:") {
				dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
				continue
			}
		}

		if eventType == "" || len(dataLines) == 0 {
			continue
		}
		jsonData := strings.Join(dataLines, "\n")

		msg, err := events.Decode(eventType, []byte(jsonData))
		if err != nil {
			utils.Debug("Dropping SSE event %q: %v", eventType, err)
			continue
		}

		// Non-blocking send
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full to prevent blocking the reader
		}
	}
}
