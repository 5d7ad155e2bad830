// Command import_books adds books listed in a CSV file to the library
// records. Each row is name,author,genre,copies; a header row is skipped.
package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"library-lending/config"
	"library-lending/library"
	"library-lending/store"
)

func main() {
	if err := newImportCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newImportCmd() *cobra.Command {
	var envFile, dataDir, backend string
	cmd := &cobra.Command{
		Use:           "import_books <books.csv>",
		Short:         "Import books from a CSV file (name,author,genre,copies)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = dataDir
			}
			if cmd.Flags().Changed("backend") {
				cfg.Backend = backend
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
			return importBooks(cfg, f, cmd.OutOrStdout(), logger)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file with LIBRARY_* settings")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "directory holding the library records")
	cmd.Flags().StringVar(&backend, "backend", "", "storage backend: json, sqlite or cbor")
	return cmd
}

// row is one parsed CSV line.
type row struct {
	line   int
	name   string
	author string
	genre  string
	copies int
}

func readRows(r io.Reader) ([]row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true

	var rows []row
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		copies, err := strconv.Atoi(strings.TrimSpace(rec[3]))
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("line %d: copies %q is not a number", line, rec[3])
		}
		rows = append(rows, row{
			line:   line,
			name:   strings.TrimSpace(rec[0]),
			author: strings.TrimSpace(rec[1]),
			genre:  strings.TrimSpace(rec[2]),
			copies: copies,
		})
	}
}

// importBooks adds every row that is not already catalogued and saves the
// records once at the end.
func importBooks(cfg config.Config, r io.Reader, out io.Writer, logger *slog.Logger) error {
	rows, err := readRows(r)
	if err != nil {
		return fmt.Errorf("read csv: %w", err)
	}

	st, err := store.Open(cfg.Backend, cfg.DataDir, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	tables, err := st.Load()
	if err != nil {
		return err
	}
	ledger := library.NewLedger(tables, cfg.Policy(), library.NewResolver(cfg.Matching()), logger)
	if err := ledger.Verify(); err != nil {
		return err
	}

	fmt.Fprintf(out, "Importing %d books...\n", len(rows))
	successCount, skipCount, errorCount := 0, 0, 0
	for _, rw := range rows {
		fmt.Fprintf(out, "Importing: %s by %s... ", rw.name, rw.author)
		b, err := ledger.AddBook(rw.name, rw.author, rw.genre, rw.copies)
		switch {
		case errors.Is(err, library.ErrDuplicateBook):
			fmt.Fprintln(out, "SKIPPED - already in the library")
			skipCount++
		case library.IsFatal(err):
			return err
		case err != nil:
			fmt.Fprintf(out, "ERROR (line %d) - %v\n", rw.line, err)
			errorCount++
		default:
			fmt.Fprintf(out, "SUCCESS (ID: %d)\n", b.ID)
			successCount++
		}
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d books\n", successCount)
	fmt.Fprintf(out, "Skipped: %d\n", skipCount)
	fmt.Fprintf(out, "Errors: %d\n", errorCount)
	if successCount == 0 {
		return nil
	}
	if err := st.Save(ledger.Tables()); err != nil {
		return fmt.Errorf("save records: %w", err)
	}

	fmt.Fprintln(out, "\nLibrary books:")
	fmt.Fprintf(out, "%-3s %-50s %-30s\n", "ID", "Name", "Author")
	fmt.Fprintln(out, strings.Repeat("-", 85))
	for _, book := range ledger.Books() {
		fmt.Fprintf(out, "%-3d %-50s %-30s\n", book.ID, truncateString(book.Name, 50), truncateString(book.Author, 30))
	}
	return nil
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
