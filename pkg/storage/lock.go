package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

const lockFileName = ".tracker.lock"

// ErrLocked is returned when another tracker already holds the data directory
var ErrLocked = errors.New("data directory is locked by another tracker")

type Lock struct {
	file *os.File
}

// AcquireLock takes an exclusive, non blocking flock on the data root. The lock is released by
// Release or when the process exits.
func AcquireLock(dataRoot string) (*Lock, error) {
	if err := os.MkdirAll(dataRoot, 0o755); err != nil {
		return nil, err
	}

	path := filepath.Join(dataRoot, lockFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%s: %w", path, ErrLocked)
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	file.Truncate(0)
	fmt.Fprintf(file, "%d\n", os.Getpid())

	return &Lock{file: file}, nil
}

func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	err := l.file.Close()
	l.file = nil

	return err
}
