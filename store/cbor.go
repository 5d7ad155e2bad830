package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"library-lending/library"
)

// CBORStore keeps the whole snapshot in one compact CBOR file.
type CBORStore struct {
	path   string
	enc    cbor.EncMode
	logger *slog.Logger
}

// NewCBORStore returns a CBORStore writing to path.
func NewCBORStore(path string, logger *slog.Logger) (*CBORStore, error) {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	// Canonical encoding keeps map order stable, so equal tables give equal files.
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor enc mode: %w", err)
	}
	return &CBORStore{path: path, enc: enc, logger: orDiscard(logger)}, nil
}

// Load decodes the snapshot file; a missing file loads as empty tables.
func (s *CBORStore) Load() (*library.Tables, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("snapshot missing, starting empty")
		return library.NewTables(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	t, err := fromSnapshot(snap)
	if err != nil {
		return nil, err
	}
	s.logger.Info("tables loaded", "people", len(t.People), "books", len(t.Books),
		"loans", len(t.Loans), "history", len(t.History))
	return t, nil
}

// Save encodes t and replaces the snapshot file.
func (s *CBORStore) Save(t *library.Tables) error {
	data, err := s.enc.Marshal(toSnapshot(t))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	s.logger.Info("tables saved", "bytes", len(data))
	return nil
}

// Close is a no-op.
func (s *CBORStore) Close() error { return nil }
