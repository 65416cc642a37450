package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFileName = ".coursedl.lock"

// ErrAlreadyRunning is returned when another run holds the output tree.
var ErrAlreadyRunning = errors.New("another coursedl run is using this output directory")

// AcquireLock takes the run lock for outputDir without blocking.
func AcquireLock(outputDir string) (*flock.Flock, error) {
	lock := flock.New(filepath.Join(outputDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring run lock: %w", err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}
	return lock, nil
}

// ReleaseLock releases a lock returned by AcquireLock. A nil lock is a no-op.
func ReleaseLock(lock *flock.Flock) error {
	if lock == nil {
		return nil
	}
	return lock.Unlock()
}
