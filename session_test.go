package main

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-lending/auth"
	"library-lending/config"
	"library-lending/library"
	"library-lending/store"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// seed saves a librarian and one copy of Dune to a fresh JSON data dir.
func seed(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	tables := library.NewTables()
	tables.People[1] = &library.Person{ID: 1, Name: "Lena Ortiz", Email: "lena@example.com", Role: library.RoleLibrarian, JoinedOn: library.MustParseDate("01-12-2023")}
	tables.Books[1] = &library.Book{ID: 1, Name: "Dune", Author: "Frank Herbert", Genre: "Sci-Fi", Available: 1, Total: 1}
	save(t, cfg, tables)
	return cfg
}

func save(t *testing.T, cfg config.Config, tables *library.Tables) {
	t.Helper()
	st, err := store.Open(cfg.Backend, cfg.DataDir, nil)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Save(tables))
}

func load(t *testing.T, cfg config.Config) *library.Tables {
	t.Helper()
	st, err := store.Open(cfg.Backend, cfg.DataDir, nil)
	require.NoError(t, err)
	defer st.Close()
	tables, err := st.Load()
	require.NoError(t, err)
	return tables
}

func run(t *testing.T, cfg config.Config, lines ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := runSession(cfg, strings.NewReader(strings.Join(lines, "\n")+"\n"), &out, discard())
	return out.String(), err
}

func TestRegisterAndIssue(t *testing.T) {
	cfg := seed(t)
	out, err := run(t, cfg,
		"no", "Asha Rao", "Asha@Example.com", "student", "pw1", "pw1", "yes",
		"3", "dune", "yes",
		"exit", "yes", "Save",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Your ID is 2.")
	assert.Contains(t, out, `"Dune" issued to Asha Rao.`)
	assert.Contains(t, out, "Library records saved.")

	tables := load(t, cfg)
	require.Contains(t, tables.People, int64(2))
	assert.Equal(t, "asha@example.com", tables.People[2].Email)

	loan := tables.Loans[library.LoanKey{UserID: 2, BookID: 1}]
	require.NotNil(t, loan)
	assert.Equal(t, loan.IssuedOn.AddDays(7), loan.DueOn)
	assert.Equal(t, 0, tables.Books[1].Available)

	assert.True(t, auth.IsHashed(tables.Secrets[2]))
	assert.NoError(t, auth.New(tables.Secrets, cfg.LibrarianSecret).Login(tables.People[2], "pw1"))
}

func TestRegisterAsksAgainForEmptyPassword(t *testing.T) {
	cfg := seed(t)
	out, err := run(t, cfg,
		"no", "Asha Rao", "asha@example.com", "student", "", "   ", "pw1", "pw1", "yes",
		"exit", "yes", "Save",
	)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "The password cannot be empty."))
	assert.Contains(t, out, "Your ID is 2.")

	tables := load(t, cfg)
	require.Contains(t, tables.People, int64(2))
	assert.NoError(t, auth.New(tables.Secrets, cfg.LibrarianSecret).Login(tables.People[2], "pw1"))
}

func TestAddUserAsksAgainForEmptyPassword(t *testing.T) {
	cfg := seed(t)
	out, err := run(t, cfg,
		"yes", "1", "lib123",
		"15", "Chen Wei", "chen@example.com", "student", "", "pw2", "pw2", "yes",
		"exit", "yes", "Save",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "The password cannot be empty.")
	assert.Contains(t, out, "User Chen Wei added with ID 2.")

	tables := load(t, cfg)
	require.Contains(t, tables.People, int64(2))
	require.Contains(t, tables.Secrets, int64(2))
	assert.NoError(t, auth.New(tables.Secrets, cfg.LibrarianSecret).Login(tables.People[2], "pw2"))
}

func TestStudentWithoutPasswordIsSentToLibrarian(t *testing.T) {
	cfg := seed(t)
	tables := load(t, cfg)
	tables.People[2] = &library.Person{ID: 2, Name: "Sam", Role: library.RoleStudent, JoinedOn: library.MustParseDate("01-01-2024")}
	save(t, cfg, tables)

	out, err := run(t, cfg, "yes", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "No password is set for this account.")
	assert.NotContains(t, out, "Enter your password")
	assert.Contains(t, out, "Changes discarded.")
}

func TestLibrarianChangesAreDiscardedWithoutSave(t *testing.T) {
	cfg := seed(t)
	out, err := run(t, cfg,
		"yes", "1", "wrong", "lib123",
		"13", "Persuasion", "2", "Jane Austen", "Romance", "yes",
		"exit", "yes", "Dont Save",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Invalid Password.")
	assert.Contains(t, out, `Book "Persuasion" added with ID 2.`)
	assert.Contains(t, out, "Changes discarded.")

	tables := load(t, cfg)
	assert.Len(t, tables.Books, 1)
}

func TestStudentCannotUseLibrarianOptions(t *testing.T) {
	cfg := seed(t)
	tables := load(t, cfg)
	tables.People[2] = &library.Person{ID: 2, Name: "Sam", Role: library.RoleStudent, JoinedOn: library.MustParseDate("01-01-2024")}
	tables.Secrets[2] = "sam123"
	save(t, cfg, tables)

	out, err := run(t, cfg, "yes", "2", "sam123", "9", "exit", "yes", "Dont Save")
	require.NoError(t, err)
	assert.Contains(t, out, "Unknown option.")
	assert.NotContains(t, out, "View All Borrowed Books")
}

func TestBusinessErrorsAreReported(t *testing.T) {
	cfg := seed(t)
	out, err := run(t, cfg,
		"yes", "1", "lib123",
		"4", "me",
		"14", "Hamlet",
		"exit", "yes", "Dont Save",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "No books are currently borrowed.")
	assert.Contains(t, out, "This book does not exist.")
}

func TestEndOfInputDiscards(t *testing.T) {
	cfg := seed(t)
	out, err := run(t, cfg, "yes", "1", "lib123", "13", "Persuasion")
	require.NoError(t, err)
	assert.Contains(t, out, "Changes discarded.")
	assert.Len(t, load(t, cfg).Books, 1)
}

func TestCorruptRecordsAbortWithoutSaving(t *testing.T) {
	cfg := seed(t)
	tables := load(t, cfg)
	tables.Books[1].Available = 0
	save(t, cfg, tables)

	_, err := run(t, cfg, "yes", "1", "lib123", "exit", "yes", "Save")
	require.Error(t, err)
	assert.True(t, library.IsFatal(err))
	assert.Equal(t, 0, load(t, cfg).Books[1].Available)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "You have already borrowed this book.", describe(library.ErrAlreadyBorrowed))
	assert.Equal(t, "Cancelling command.", describe(library.ErrCancelled))
	assert.Equal(t, "The password cannot be empty.", describe(auth.ErrEmptySecret))
	assert.Equal(t, "Error: unexpected EOF", describe(io.ErrUnexpectedEOF))
}
