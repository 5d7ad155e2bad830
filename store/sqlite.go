package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"library-lending/library"
)

// SQLiteStore keeps the tables in a SQLite database. Save replaces every
// table inside one transaction, so a snapshot is written whole or not at all.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the SQLite database at dbPath and
// applies schema migrations.
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists so first-run succeeds.
	if err := ensureDir(filepath.Dir(dbPath)); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, logger: orDiscard(logger)}, nil
}

// Close closes the DB.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// History keeps ids of removed people and books, so it has no foreign keys.
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS people (
            id INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL,
            role TEXT NOT NULL CHECK (role IN ('Librarian','Student')),
            joined_on TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS books (
            id INTEGER PRIMARY KEY,
            name TEXT NOT NULL UNIQUE,
            author TEXT NOT NULL,
            genre TEXT NOT NULL,
            available INTEGER NOT NULL CHECK (available >= 0),
            total INTEGER NOT NULL CHECK (total >= 1 AND available <= total)
        );`,
		`CREATE TABLE IF NOT EXISTS loans (
            user_id INTEGER NOT NULL REFERENCES people(id),
            book_id INTEGER NOT NULL REFERENCES books(id),
            book_name TEXT NOT NULL,
            user_name TEXT NOT NULL,
            issued_on TEXT NOT NULL,
            due_on TEXT NOT NULL,
            PRIMARY KEY (user_id, book_id)
        );`,
		`CREATE TABLE IF NOT EXISTS history (
            seq INTEGER PRIMARY KEY,
            user_id INTEGER NOT NULL,
            book_id INTEGER NOT NULL,
            book_name TEXT NOT NULL,
            user_name TEXT NOT NULL,
            issued_on TEXT NOT NULL,
            due_on TEXT NOT NULL,
            returned_on TEXT NOT NULL,
            late BOOLEAN NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS secrets (
            user_id TEXT PRIMARY KEY,
            secret TEXT NOT NULL
        );`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Snapshot
// ---------------------------------------------------------------------------

// Load reads every table.
func (s *SQLiteStore) Load() (*library.Tables, error) {
	snap := snapshot{
		People:  map[string]personRecord{},
		Books:   map[string]bookRecord{},
		Loans:   map[string]loanRecord{},
		History: map[string]historyRecord{},
		Secrets: map[string]string{},
	}

	if err := s.each(`SELECT id,name,email,role,joined_on FROM people`, func(rows *sql.Rows) error {
		var id int64
		var r personRecord
		if err := rows.Scan(&id, &r.Name, &r.Email, &r.Role, &r.JoinedOn); err != nil {
			return err
		}
		snap.People[key(id)] = r
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load people: %w", err)
	}

	if err := s.each(`SELECT id,name,author,genre,available,total FROM books`, func(rows *sql.Rows) error {
		var id int64
		var r bookRecord
		if err := rows.Scan(&id, &r.Name, &r.Author, &r.Genre, &r.Available, &r.Total); err != nil {
			return err
		}
		snap.Books[key(id)] = r
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load books: %w", err)
	}

	row := 0
	if err := s.each(`SELECT user_id,book_id,book_name,user_name,issued_on,due_on FROM loans ORDER BY user_id, book_id`, func(rows *sql.Rows) error {
		var r loanRecord
		if err := rows.Scan(&r.UserID, &r.BookID, &r.BookName, &r.UserName, &r.IssuedOn, &r.DueOn); err != nil {
			return err
		}
		row++
		snap.Loans[key(int64(row))] = r
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load loans: %w", err)
	}

	if err := s.each(`SELECT seq,user_id,book_id,book_name,user_name,issued_on,due_on,returned_on,late FROM history ORDER BY seq`, func(rows *sql.Rows) error {
		var seq int64
		var r historyRecord
		if err := rows.Scan(&seq, &r.UserID, &r.BookID, &r.BookName, &r.UserName, &r.IssuedOn, &r.DueOn, &r.ReturnedOn, &r.Late); err != nil {
			return err
		}
		snap.History[key(seq)] = r
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	if err := s.each(`SELECT user_id,secret FROM secrets`, func(rows *sql.Rows) error {
		var id, secret string
		if err := rows.Scan(&id, &secret); err != nil {
			return err
		}
		snap.Secrets[id] = secret
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	for _, c := range []struct {
		key string
		dst *int64
	}{
		{"last_person_id", &snap.IDs.LastPersonID},
		{"last_book_id", &snap.IDs.LastBookID},
	} {
		err := s.db.QueryRow(`SELECT value FROM meta WHERE key=?`, c.key).Scan(c.dst)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("load %s: %w", c.key, err)
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

func (s *SQLiteStore) each(query string, scan func(*sql.Rows) error) error {
	rows, err := s.db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Save replaces the contents of every table with t in one transaction.
func (s *SQLiteStore) Save(t *library.Tables) error {
	snap := toSnapshot(t)

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Children before parents so foreign keys hold throughout.
	for _, table := range []string{"loans", "history", "secrets", "books", "people"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	insert := func(query string, rows func(stmt *sql.Stmt) error) error {
		stmt, err := tx.Prepare(query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		return rows(stmt)
	}

	if err := insert(`INSERT INTO people(id,name,email,role,joined_on) VALUES(?,?,?,?,?)`, func(stmt *sql.Stmt) error {
		for id, p := range t.People {
			r := snap.People[key(id)]
			if _, err := stmt.Exec(p.ID, r.Name, r.Email, r.Role, r.JoinedOn); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("save people: %w", err)
	}

	if err := insert(`INSERT INTO books(id,name,author,genre,available,total) VALUES(?,?,?,?,?,?)`, func(stmt *sql.Stmt) error {
		for id, b := range t.Books {
			r := snap.Books[key(id)]
			if _, err := stmt.Exec(b.ID, r.Name, r.Author, r.Genre, r.Available, r.Total); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("save books: %w", err)
	}

	if err := insert(`INSERT INTO loans(user_id,book_id,book_name,user_name,issued_on,due_on) VALUES(?,?,?,?,?,?)`, func(stmt *sql.Stmt) error {
		for _, r := range snap.Loans {
			if _, err := stmt.Exec(r.UserID, r.BookID, r.BookName, r.UserName, r.IssuedOn, r.DueOn); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("save loans: %w", err)
	}

	if err := insert(`INSERT INTO history(seq,user_id,book_id,book_name,user_name,issued_on,due_on,returned_on,late) VALUES(?,?,?,?,?,?,?,?,?)`, func(stmt *sql.Stmt) error {
		for i := range t.History {
			r := snap.History[key(int64(i+1))]
			if _, err := stmt.Exec(i+1, r.UserID, r.BookID, r.BookName, r.UserName, r.IssuedOn, r.DueOn, r.ReturnedOn, r.Late); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("save history: %w", err)
	}

	if err := insert(`INSERT INTO secrets(user_id,secret) VALUES(?,?)`, func(stmt *sql.Stmt) error {
		for id, secret := range snap.Secrets {
			if _, err := stmt.Exec(id, secret); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("save secrets: %w", err)
	}

	for k, v := range map[string]int64{"last_person_id": snap.IDs.LastPersonID, "last_book_id": snap.IDs.LastBookID} {
		if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES(?,?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, k, v); err != nil {
			return fmt.Errorf("save %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Info("tables saved")
	return nil
}
