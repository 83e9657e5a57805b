package cmd

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/fixitrock/rockdl/internal/config"
)

var (
	lockMu       sync.Mutex
	instanceLock *flock.Flock
)

func lockPath() string {
	return filepath.Join(config.GetRuntimeDir(), config.AppName+".lock")
}

// AcquireLock takes the single-instance lock. It reports false when another
// process already holds it.
func AcquireLock() (bool, error) {
	lockMu.Lock()
	defer lockMu.Unlock()

	if instanceLock != nil {
		return true, nil
	}
	if err := config.EnsureDirs(); err != nil {
		return false, fmt.Errorf("create app dir: %w", err)
	}

	fl := flock.New(lockPath())
	locked, err := fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("lock %s: %w", fl.Path(), err)
	}
	if !locked {
		return false, nil
	}
	instanceLock = fl
	return true, nil
}

// ReleaseLock releases the lock taken by AcquireLock.
func ReleaseLock() error {
	lockMu.Lock()
	defer lockMu.Unlock()

	if instanceLock == nil {
		return nil
	}
	err := instanceLock.Unlock()
	instanceLock = nil
	return err
}
