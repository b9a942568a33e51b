// SPDX-License-Identifier: AGPL-3.0-only
package singleton

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock represents an acquired single-instance lock on the history database.
// Two assistant processes writing the same database would interleave
// conversation rows, so only the lock holder opens it for writing.
type Lock struct {
	flock *flock.Flock
}

// TryAcquire attempts to acquire the single-instance lock for the given
// database path. It returns the lock and true if acquired, or nil and false
// when another assistant process already holds it.
func TryAcquire(dbPath string) (*Lock, bool, error) {
	lockPath := dbPath + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return nil, false, fmt.Errorf("singleton: create lock directory: %w", err)
	}

	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("singleton: try lock %s: %w", lockPath, err)
	}
	if !locked {
		return nil, false, nil
	}
	return &Lock{flock: fl}, true, nil
}

// Release releases the single-instance lock.
func (l *Lock) Release() error {
	return l.flock.Unlock()
}
