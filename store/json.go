package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"library-lending/library"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// File names of the JSON backend.
const (
	PeopleFile    = "people_database.json"
	BooksFile     = "books_database.json"
	BorrowedFile  = "borrowed_books.json"
	HistoryFile   = "borrow_history.json"
	PasswordsFile = "passwords.json"
	IDsFile       = "id_counters.json"
)

// JSONStore keeps each table in its own JSON file, rows keyed by id.
type JSONStore struct {
	dir    string
	logger *slog.Logger
}

// NewJSONStore returns a JSONStore in dir, creating dir if needed.
func NewJSONStore(dir string, logger *slog.Logger) (*JSONStore, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &JSONStore{dir: dir, logger: orDiscard(logger)}, nil
}

func (s *JSONStore) files(snap *snapshot) []struct {
	name string
	v    any
} {
	return []struct {
		name string
		v    any
	}{
		{PeopleFile, &snap.People},
		{BooksFile, &snap.Books},
		{BorrowedFile, &snap.Loans},
		{HistoryFile, &snap.History},
		{PasswordsFile, &snap.Secrets},
		{IDsFile, &snap.IDs},
	}
}

// Load reads every table file; missing files load as empty tables.
func (s *JSONStore) Load() (*library.Tables, error) {
	var snap snapshot
	for _, f := range s.files(&snap) {
		path := filepath.Join(s.dir, f.name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("table file missing, starting empty", "file", f.name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.name, err)
		}
		if err := json.Unmarshal(data, f.v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.name, err)
		}
	}
	t, err := fromSnapshot(snap)
	if err != nil {
		return nil, err
	}
	s.logger.Info("tables loaded", "people", len(t.People), "books", len(t.Books),
		"loans", len(t.Loans), "history", len(t.History))
	return t, nil
}

// Save writes every table file.
func (s *JSONStore) Save(t *library.Tables) error {
	snap := toSnapshot(t)
	for _, f := range s.files(&snap) {
		data, err := json.MarshalIndent(f.v, "", "    ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", f.name, err)
		}
		if err := writeFileAtomic(filepath.Join(s.dir, f.name), data); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	s.logger.Info("tables saved")
	return nil
}

// Close is a no-op.
func (s *JSONStore) Close() error { return nil }
