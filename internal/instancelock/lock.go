// Package instancelock prevents two node processes from sharing the
// same data directory. internal/node's Node acquires the lock when it
// starts; its dispatchers are already running by then, since they start
// when the Node is constructed.
package instancelock

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

const lockFileName = "LOCK"

// ErrAlreadyLocked is returned by Acquire when another process already
// holds the lock.
var ErrAlreadyLocked = errors.New("instancelock: data directory is already in use by another process")

// Lock guards a data directory with an exclusive, advisory file lock.
type Lock struct {
	flock *flock.Flock
	path  string
}

// New builds a Lock for dataDir without acquiring it. dataDir need not
// exist yet: Acquire creates it.
func New(dataDir string) *Lock {
	path := filepath.Join(dataDir, lockFileName)
	return &Lock{flock: flock.New(path), path: path}
}

// Acquire takes the exclusive lock, failing fast with ErrAlreadyLocked
// rather than blocking, so node startup fails immediately instead of
// hanging behind a stale process.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return errors.Wrap(err, "instancelock: create data directory")
	}

	locked, err := l.flock.TryLock()
	if err != nil {
		return errors.Wrap(err, "instancelock: acquire lock")
	}
	if !locked {
		return ErrAlreadyLocked
	}
	return nil
}

// Release gives up the lock. Safe to call on a Lock that never
// successfully acquired it.
func (l *Lock) Release() error {
	return errors.Wrap(l.flock.Unlock(), "instancelock: release lock")
}

// Path returns the lock file's location, for logging.
func (l *Lock) Path() string { return l.path }
