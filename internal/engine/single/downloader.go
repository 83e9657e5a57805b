package single

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fixitrock/rockdl/internal/engine"
	"github.com/fixitrock/rockdl/internal/engine/events"
	"github.com/fixitrock/rockdl/internal/engine/types"
	"github.com/fixitrock/rockdl/internal/utils"
)

// SingleDownloader streams a file over one connection into
// "<dest>.rockdl", resuming from the partial file when the server honours
// Range requests. The partial file is kept on error and cancellation.
type SingleDownloader struct {
	Client       *http.Client
	ProgressChan chan<- any           // ProgressMsg sink, may be nil
	ID           string               // Download ID
	State        *types.ProgressState // Shared state for polling
	Runtime      *types.RuntimeConfig
	Headers      map[string]string // Custom HTTP headers (cookies, auth, etc.)
}

// Result describes a finished transfer.
type Result struct {
	Path    string // final location, may differ from the requested dest
	Written int64  // bytes on disk
	Offset  int64  // bytes reused from a previous session
	Elapsed time.Duration
}

// NewSingleDownloader creates a downloader. A nil client gets one built
// from runtime.
func NewSingleDownloader(id string, progressCh chan<- any, state *types.ProgressState, runtime *types.RuntimeConfig, client *http.Client) *SingleDownloader {
	if client == nil {
		client = engine.NewHTTPClient(runtime)
	}
	return &SingleDownloader{
		Client:       client,
		ProgressChan: progressCh,
		ID:           id,
		State:        state,
		Runtime:      runtime,
	}
}

// Download fetches rawurl into destPath. probe carries what ProbeServer
// learned; a nil probe is treated as unknown size without range support.
func (d *SingleDownloader) Download(ctx context.Context, rawurl, destPath string, probe *engine.ProbeResult) (*Result, error) {
	if probe == nil {
		probe = &engine.ProbeResult{}
	}
	workingPath := destPath + types.IncompleteSuffix
	total := probe.FileSize

	offset := int64(0)
	if probe.SupportsRange {
		if info, err := os.Stat(workingPath); err == nil {
			offset = info.Size()
		}
		if total > 0 && offset > total {
			utils.Debug("Partial file %s larger than remote (%d > %d), restarting", workingPath, offset, total)
			offset = 0
		}
	}

	if d.State != nil {
		d.State.SetTotalSize(total)
		d.State.StartSession(offset)
	}

	start := time.Now()

	if total > 0 && offset == total {
		utils.Debug("Partial file %s already complete", workingPath)
		return d.finalize(workingPath, destPath, offset, offset, start)
	}

	resp, err := d.request(ctx, rawurl, offset)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			utils.Debug("Error closing response body: %v", err)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusPartialContent && offset > 0:
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
		if offset > 0 {
			utils.Debug("Server ignored Range for %s, restarting from zero", d.ID)
		}
		offset = 0
		if d.State != nil {
			d.State.StartSession(0)
		}
	default:
		return nil, &engine.StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	if err := os.MkdirAll(filepath.Dir(workingPath), 0o755); err != nil {
		return nil, fmt.Errorf("create destination dir: %w", err)
	}
	outFile, err := os.OpenFile(workingPath, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open working file: %w", err)
	}
	closed := false
	defer func() {
		if !closed {
			_ = outFile.Close()
		}
	}()

	written, err := d.copy(ctx, outFile, resp.Body, offset, total, start)
	if err != nil {
		return nil, err
	}
	if total > 0 && written != total {
		return nil, fmt.Errorf("short body: got %d of %d bytes: %w", written, total, io.ErrUnexpectedEOF)
	}

	if err := outFile.Sync(); err != nil {
		return nil, fmt.Errorf("sync error: %w", err)
	}
	closed = true
	if err := outFile.Close(); err != nil {
		return nil, fmt.Errorf("close error: %w", err)
	}

	return d.finalize(workingPath, destPath, written, offset, start)
}

func (d *SingleDownloader) request(ctx context.Context, rawurl string, offset int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, err
	}
	for key, val := range d.Headers {
		req.Header.Set(key, val)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", d.Runtime.GetUserAgent())
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	} else {
		req.Header.Del("Range")
	}
	return d.Client.Do(req)
}

// copy streams body into out and returns the total bytes on disk.
func (d *SingleDownloader) copy(ctx context.Context, out io.Writer, body io.Reader, offset, total int64, start time.Time) (int64, error) {
	buf := make([]byte, d.Runtime.GetWorkerBufferSize())
	interval := d.Runtime.GetProgressInterval()
	written := offset
	lastEmit := time.Time{}

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, readErr := body.Read(buf)
		if nr > 0 {
			nw, writeErr := out.Write(buf[:nr])
			if nw > 0 {
				written += int64(nw)
				if d.State != nil {
					d.State.Downloaded.Store(written)
				}
			}
			if writeErr != nil {
				return written, fmt.Errorf("write error: %w", writeErr)
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
			if time.Since(lastEmit) >= interval {
				lastEmit = time.Now()
				d.emitProgress(written, total, start)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				d.emitProgress(written, total, start)
				return written, nil
			}
			if ctx.Err() != nil {
				return written, ctx.Err()
			}
			return written, fmt.Errorf("read error: %w", readErr)
		}
	}
}

func (d *SingleDownloader) emitProgress(written, total int64, start time.Time) {
	if d.ProgressChan == nil {
		return
	}
	msg := events.ProgressMsg{
		DownloadID: d.ID,
		Downloaded: written,
		Total:      total,
		Elapsed:    time.Since(start),
	}
	if d.State != nil {
		msg.Speed = d.State.SessionSpeed()
	}
	select {
	case d.ProgressChan <- msg:
	default:
		// Progress is lossy; the next tick carries newer numbers.
	}
}

func (d *SingleDownloader) finalize(workingPath, destPath string, written, offset int64, start time.Time) (*Result, error) {
	if filepath.Ext(destPath) == "" {
		dir, base := filepath.Split(destPath)
		destPath = filepath.Join(dir, engine.WithSniffedExtension(base, workingPath))
	}
	finalPath, err := claimPath(destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to finalize file: %w", err)
	}

	if err := os.Rename(workingPath, finalPath); err != nil {
		// Fallback: copy if rename fails (cross-device)
		if copyErr := copyFile(workingPath, finalPath); copyErr != nil {
			_ = os.Remove(finalPath)
			return nil, fmt.Errorf("failed to finalize file: %w", copyErr)
		}
		_ = os.Remove(workingPath)
	}

	elapsed := time.Since(start)
	if d.State != nil {
		d.State.Done.Store(true)
	}
	utils.Debug("Downloaded %s in %s (%s/s)",
		finalPath,
		elapsed.Round(time.Millisecond),
		utils.ConvertBytesToHumanReadable(int64(float64(written-offset)/maxSeconds(elapsed))),
	)

	return &Result{Path: finalPath, Written: written, Offset: offset, Elapsed: elapsed}, nil
}

// claimPath creates an empty placeholder at the first free variant of path
// so concurrent finalizers never pick the same name. The rename replaces it.
func claimPath(path string) (string, error) {
	for {
		candidate := utils.UniqueFilePath(path)
		f, err := os.OpenFile(candidate, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return candidate, f.Close()
		}
		if !os.IsExist(err) {
			return "", err
		}
	}
}

func maxSeconds(d time.Duration) float64 {
	if s := d.Seconds(); s > 0 {
		return s
	}
	return 1
}

// copyFile copies a file from src to dst (fallback when rename fails)
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if err := in.Close(); err != nil {
			utils.Debug("Error closing input file: %v", err)
		}
	}()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); err != nil {
			utils.Debug("Error closing output file: %v", err)
		}
	}()

	buf := make([]byte, 1024*1024)
	if _, err := io.CopyBuffer(out, in, buf); err != nil {
		return err
	}
	return out.Sync()
}
