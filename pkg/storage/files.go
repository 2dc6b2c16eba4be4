package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/sourcegraph/conc/panics"
)

// ErrNotFound is returned by reads of files that were never written
var ErrNotFound = errors.New("file not found")

// StorageError wraps read failures of existing files. Callers treat it as "no prior data".
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("read %s: %s", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func readParquet[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}

	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, &StorageError{Path: path, Err: err}
	}

	return rows, nil
}

// encodeParquet writes rows to w, turning a schema panic from the encoder into an error
func encodeParquet[T any](w io.Writer, rows []T) (err error) {
	var catcher panics.Catcher
	catcher.Try(func() {
		err = parquet.Write(w, rows)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		return recovered.AsError()
	}

	return err
}

// writeParquet replaces path with rows. The file is written next to the target, synced and
// renamed so readers only ever see a complete file.
func writeParquet[T any](path string, rows []T) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return err
	}

	temporary, err := os.CreateTemp(directory, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	temporaryPath := temporary.Name()

	cleanup := func(err error) error {
		temporary.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := encodeParquet(temporary, rows); err != nil {
		return cleanup(err)
	}
	if err := temporary.Sync(); err != nil {
		return cleanup(err)
	}
	if err := temporary.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
