// Package store loads and saves the library tables as one whole snapshot.
//
// A session calls Load once at start and Save once at exit. No backend
// guards against another process writing the same files in between.
package store

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"library-lending/library"
)

// Store persists a complete set of library tables.
type Store interface {
	// Load returns the saved tables, or empty tables on first run.
	Load() (*library.Tables, error)
	// Save replaces everything saved with t.
	Save(t *library.Tables) error
	Close() error
}

// Backends lists the accepted backend names.
var Backends = []string{"json", "sqlite", "cbor"}

// Open returns the named backend rooted at dir.
func Open(backend, dir string, logger *slog.Logger) (Store, error) {
	logger = orDiscard(logger).With("backend", backend, "dir", dir)
	switch backend {
	case "json":
		return NewJSONStore(dir, logger)
	case "sqlite":
		return NewSQLiteStore(filepath.Join(dir, "library.db"), logger)
	case "cbor":
		return NewCBORStore(filepath.Join(dir, "library.cbor"), logger)
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}
