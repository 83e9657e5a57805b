// Package archive copies completed downloads to a blob bucket.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"

	"github.com/fixitrock/rockdl/internal/utils"
)

// ErrNoBucket is returned by Open for an empty bucket URL.
var ErrNoBucket = errors.New("archive: no bucket url")

// Archiver uploads finished files into a bucket opened from a gocloud URL
// such as file:///srv/roms or mem://.
type Archiver struct {
	bucket *blob.Bucket
	prefix string
}

// Open opens the bucket at bucketURL. Keys are written under prefix.
func Open(ctx context.Context, bucketURL, prefix string) (*Archiver, error) {
	if bucketURL == "" {
		return nil, ErrNoBucket
	}
	bkt, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket: %w", err)
	}
	return New(bkt, prefix), nil
}

// New wraps an already opened bucket.
func New(bkt *blob.Bucket, prefix string) *Archiver {
	return &Archiver{bucket: bkt, prefix: prefix}
}

// Key returns the object key a local file is stored under.
func (a *Archiver) Key(localPath string) string {
	return path.Join(a.prefix, filepath.Base(localPath))
}

// Archive streams localPath into the bucket.
func (a *Archiver) Archive(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	key := a.Key(localPath)
	w, err := a.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("new writer %s: %w", key, err)
	}
	n, err := io.Copy(w, f)
	if err != nil {
		_ = w.Close()
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish %s: %w", key, err)
	}
	utils.Debug("Archived %s (%d bytes) to %s", localPath, n, key)
	return nil
}

// Exists reports whether the archived copy of localPath is present.
func (a *Archiver) Exists(ctx context.Context, localPath string) (bool, error) {
	return a.bucket.Exists(ctx, a.Key(localPath))
}

// Close closes the underlying bucket.
func (a *Archiver) Close() error {
	return a.bucket.Close()
}
