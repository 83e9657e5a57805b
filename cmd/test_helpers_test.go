package cmd

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fixitrock/rockdl/internal/core"
	"github.com/fixitrock/rockdl/internal/download"
	"github.com/fixitrock/rockdl/internal/engine/state"
	"github.com/fixitrock/rockdl/internal/registry"
)

const testToken = "test-token"

func requireTCPListener(t *testing.T) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("tcp listener unavailable: %v", err)
		return
	}
	_ = ln.Close()
}

// newTestService builds a local service over a temp database. Downloads
// without a path land in the returned directory.
func newTestService(t *testing.T) (*core.LocalDownloadService, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := state.Open(filepath.Join(dir, "state.db"))
	require.NoError(t, err)

	outDir := filepath.Join(dir, "out")
	reg := registry.New(store)
	pool := download.NewWorkerPool(2, download.WithDefaultDir(outDir))
	svc := core.NewLocalDownloadService(reg, pool)
	t.Cleanup(func() {
		_ = svc.Shutdown()
		_ = store.Close()
	})
	return svc, outDir
}
