package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"library-lending/auth"
	"library-lending/config"
	"library-lending/library"
	"library-lending/store"
)

type rootOptions struct {
	envFile     string
	dataDir     string
	backend     string
	borrowLimit int
	returnDays  int
	logLevel    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "library",
		Short:         "Library lending desk",
		Long:          "Issue and return books, keep the catalogue and manage library accounts.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return report(cmd, err)
			}
			return report(cmd, runSession(cfg, cmd.InOrStdin(), cmd.OutOrStdout(), logger))
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.envFile, "env-file", ".env", "dotenv file with LIBRARY_* settings")
	f.StringVar(&opts.dataDir, "data-dir", "", "directory holding the library records")
	f.StringVar(&opts.backend, "backend", "", "storage backend: json, sqlite or cbor")
	f.IntVar(&opts.borrowLimit, "borrow-limit", 0, "maximum books one person may hold")
	f.IntVar(&opts.returnDays, "return-days", 0, "days until an issued book is due")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	cmd.AddCommand(newVerifyCmd(opts), newConvertCmd(opts))
	return cmd
}

// load resolves the configuration with flags taking precedence, and builds
// the session logger.
func (o *rootOptions) load(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.envFile)
	if err != nil {
		return cfg, nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = o.dataDir
	}
	if flags.Changed("backend") {
		cfg.Backend = o.backend
	}
	if flags.Changed("borrow-limit") {
		cfg.BorrowLimit = o.borrowLimit
	}
	if flags.Changed("return-days") {
		cfg.ReturnDays = o.returnDays
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}

	logger, err := newLogger(cmd.ErrOrStderr(), o.logLevel)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(h).With("session_id", uuid.NewString()), nil
}

func report(cmd *cobra.Command, err error) error {
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return err
}

// openLedger loads the saved tables and verifies them before any change.
func openLedger(cfg config.Config, logger *slog.Logger) (store.Store, *library.Ledger, error) {
	st, err := store.Open(cfg.Backend, cfg.DataDir, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	tables, err := st.Load()
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("load records: %w", err)
	}
	ledger := library.NewLedger(tables, cfg.Policy(), library.NewResolver(cfg.Matching()), logger)
	if err := ledger.Verify(); err != nil {
		st.Close()
		return nil, nil, err
	}
	return st, ledger, nil
}

// runSession runs one desk session and saves only when the user asks to.
// An inconsistent table set is never written back.
func runSession(cfg config.Config, in io.Reader, out io.Writer, logger *slog.Logger) error {
	st, ledger, err := openLedger(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	con := newConsole(in, out)
	con.println("Welcome to the Library!")

	authn := auth.New(ledger.Tables().Secrets, cfg.LibrarianSecret)
	save, err := newSession(con, ledger, authn, logger).run()
	if err != nil {
		logger.Error("session aborted", "error", err)
		return err
	}
	if !save {
		con.println("\nChanges discarded. Goodbye!")
		return nil
	}
	if err := ledger.Verify(); err != nil {
		return err
	}
	if err := st.Save(ledger.Tables()); err != nil {
		return fmt.Errorf("save records: %w", err)
	}
	con.println("\nLibrary records saved. Goodbye!")
	return nil
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the saved records for consistency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return report(cmd, err)
			}
			st, ledger, err := openLedger(cfg, logger)
			if err != nil {
				if library.IsFatal(err) {
					for _, e := range unwrapAll(err) {
						fmt.Fprintln(cmd.OutOrStdout(), e)
					}
				}
				return report(cmd, err)
			}
			defer st.Close()
			t := ledger.Tables()
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d people, %d books, %d borrowed, %d history records\n",
				len(t.People), len(t.Books), len(t.Loans), len(t.History))
			return nil
		},
	}
}

func newConvertCmd(opts *rootOptions) *cobra.Command {
	var to, toDir string
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Copy the saved records into another backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return report(cmd, err)
			}
			if toDir == "" {
				toDir = cfg.DataDir
			}
			if to == cfg.Backend && toDir == cfg.DataDir {
				return report(cmd, errors.New("source and destination are the same"))
			}
			src, ledger, err := openLedger(cfg, logger)
			if err != nil {
				return report(cmd, err)
			}
			defer src.Close()

			dst, err := store.Open(to, toDir, logger)
			if err != nil {
				return report(cmd, fmt.Errorf("open destination: %w", err))
			}
			defer dst.Close()
			if err := dst.Save(ledger.Tables()); err != nil {
				return report(cmd, fmt.Errorf("save destination: %w", err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Copied records from %s (%s) to %s (%s)\n", cfg.Backend, cfg.DataDir, to, toDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "sqlite", "destination backend")
	cmd.Flags().StringVar(&toDir, "to-dir", "", "destination directory (default: the data dir)")
	return cmd
}

// unwrapAll flattens errors joined with errors.Join.
func unwrapAll(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
