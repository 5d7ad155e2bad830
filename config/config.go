// Package config provides the settings a library session runs with.
//
// Values come, in increasing precedence, from Default, an optional dotenv
// file, LIBRARY_* environment variables and finally command-line flags
// applied by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"library-lending/library"
)

// Environment variable names.
const (
	EnvBorrowLimit     = "LIBRARY_BORROW_LIMIT"
	EnvReturnDays      = "LIBRARY_RETURN_DAYS"
	EnvMatchLimit      = "LIBRARY_MATCH_LIMIT"
	EnvMatchCutoff     = "LIBRARY_MATCH_CUTOFF"
	EnvLibrarianSecret = "LIBRARY_LIBRARIAN_SECRET"
	EnvDataDir         = "LIBRARY_DATA_DIR"
	EnvBackend         = "LIBRARY_BACKEND"
)

// Config is the full session configuration.
type Config struct {
	BorrowLimit     int     `validate:"min=1"`
	ReturnDays      int     `validate:"min=1"`
	MatchLimit      int     `validate:"min=1"`
	MatchCutoff     float64 `validate:"min=0,max=100"`
	LibrarianSecret string  `validate:"required"`
	DataDir         string  `validate:"required"`
	Backend         string  `validate:"oneof=json sqlite cbor"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		BorrowLimit:     library.DefaultPolicy.BorrowLimit,
		ReturnDays:      library.DefaultPolicy.ReturnDays,
		MatchLimit:      library.DefaultMatchOptions.Limit,
		MatchCutoff:     library.DefaultMatchOptions.Cutoff,
		LibrarianSecret: "lib123",
		DataDir:         "data",
		Backend:         "json",
	}
}

// Load starts from Default and applies envFile (skipped when empty or
// missing) and then the process environment. The result is validated.
func Load(envFile string) (Config, error) {
	cfg := Default()

	values := map[string]string{}
	if envFile != "" {
		fileValues, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			values = fileValues
		case errors.Is(err, fs.ErrNotExist):
		default:
			return cfg, fmt.Errorf("read env file %s: %w", envFile, err)
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	}

	if err := cfg.apply(lookup); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) apply(lookup func(string) (string, bool)) error {
	ints := []struct {
		key string
		dst *int
	}{
		{EnvBorrowLimit, &c.BorrowLimit},
		{EnvReturnDays, &c.ReturnDays},
		{EnvMatchLimit, &c.MatchLimit},
	}
	for _, f := range ints {
		v, ok := lookup(f.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = n
	}
	if v, ok := lookup(EnvMatchCutoff); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMatchCutoff, err)
		}
		c.MatchCutoff = f
	}
	if v, ok := lookup(EnvLibrarianSecret); ok {
		c.LibrarianSecret = v
	}
	if v, ok := lookup(EnvDataDir); ok {
		c.DataDir = v
	}
	if v, ok := lookup(EnvBackend); ok {
		c.Backend = v
	}
	return nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Policy returns the lending rules for the ledger.
func (c Config) Policy() library.Policy {
	return library.Policy{BorrowLimit: c.BorrowLimit, ReturnDays: c.ReturnDays}
}

// Matching returns the fuzzy-match bounds for the resolver.
func (c Config) Matching() library.MatchOptions {
	return library.MatchOptions{Limit: c.MatchLimit, Cutoff: c.MatchCutoff}
}
