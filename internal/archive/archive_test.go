package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
)

func TestArchive_Memblob(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, "mem://", "roms")
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	src := filepath.Join(t.TempDir(), "boot.img")
	require.NoError(t, os.WriteFile(src, []byte("android boot image"), 0o644))

	require.NoError(t, a.Archive(ctx, src))
	assert.Equal(t, "roms/boot.img", a.Key(src))

	ok, err := a.Exists(ctx, src)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := a.bucket.ReadAll(ctx, "roms/boot.img")
	require.NoError(t, err)
	assert.Equal(t, "android boot image", string(got))
}

func TestArchive_Fileblob(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	bkt, err := blob.OpenBucket(ctx, "file://"+filepath.ToSlash(dir))
	require.NoError(t, err)

	a := New(bkt, "")
	defer func() { _ = a.Close() }()

	src := filepath.Join(t.TempDir(), "firmware.zip")
	require.NoError(t, os.WriteFile(src, []byte("PK"), 0o644))
	require.NoError(t, a.Archive(ctx, src))

	got, err := os.ReadFile(filepath.Join(dir, "firmware.zip"))
	require.NoError(t, err)
	assert.Equal(t, "PK", string(got))
}

func TestArchive_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, "", "")
	assert.ErrorIs(t, err, ErrNoBucket)

	_, err = Open(ctx, "nosuchscheme://bucket", "")
	assert.Error(t, err)

	a, err := Open(ctx, "mem://", "")
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	assert.Error(t, a.Archive(ctx, filepath.Join(t.TempDir(), "missing.bin")))
}
