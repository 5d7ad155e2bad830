// Package auth checks the secrets people log in with.
//
// Librarians share one secret supplied by configuration. Students each own
// an entry in the secret map persisted with the library tables. Entries are
// written as bcrypt hashes; older plain-text entries are still accepted and
// are replaced by a hash the next time the secret changes.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"library-lending/library"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrLibrarianSecret    = errors.New("auth: the librarian secret is managed by the technical team")
	ErrNotPermitted       = errors.New("auth: not permitted")
	ErrEmptySecret        = errors.New("auth: secret cannot be empty")
	ErrSecretTooLong      = errors.New("auth: secret is longer than 72 bytes")
)

// maxSecretLen is the longest input bcrypt hashes.
const maxSecretLen = 72

// CheckNewSecret reports whether secret may be stored.
func CheckNewSecret(secret string) error {
	if strings.TrimSpace(secret) == "" {
		return ErrEmptySecret
	}
	if len(secret) > maxSecretLen {
		return ErrSecretTooLong
	}
	return nil
}

// Authenticator verifies and updates secrets in a live secret map.
type Authenticator struct {
	secrets   map[int64]string
	librarian string
	cost      int
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithCost sets the bcrypt cost used for new hashes.
func WithCost(cost int) Option {
	return func(a *Authenticator) { a.cost = cost }
}

// New returns an Authenticator over secrets, which it updates in place.
func New(secrets map[int64]string, librarianSecret string, opts ...Option) *Authenticator {
	a := &Authenticator{secrets: secrets, librarian: librarianSecret, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Login verifies secret for p.
func (a *Authenticator) Login(p *library.Person, secret string) error {
	switch p.Role {
	case library.RoleLibrarian:
		return a.CheckLibrarianSecret(secret)
	case library.RoleStudent:
		stored, ok := a.secrets[p.ID]
		if !ok || !matches(stored, secret) {
			return ErrInvalidCredentials
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidCredentials, p.Role)
	}
}

// CheckLibrarianSecret verifies the shared librarian secret.
func (a *Authenticator) CheckLibrarianSecret(secret string) error {
	if subtle.ConstantTimeCompare([]byte(secret), []byte(a.librarian)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// SetSecret stores a hash of secret for person id.
func (a *Authenticator) SetSecret(id int64, secret string) error {
	if err := CheckNewSecret(secret); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), a.cost)
	if err != nil {
		return fmt.Errorf("hash secret: %w", err)
	}
	a.secrets[id] = string(hash)
	return nil
}

// HasSecret reports whether person id has a stored secret.
func (a *Authenticator) HasSecret(id int64) bool {
	_, ok := a.secrets[id]
	return ok
}

// ChangeSecret sets target's secret on behalf of actor. Students may only
// change their own secret and must give the current one; librarians may
// reset any student's secret without it. Nobody changes the librarian
// secret here.
func (a *Authenticator) ChangeSecret(actor, target *library.Person, current, next string) error {
	if target.Role == library.RoleLibrarian {
		return ErrLibrarianSecret
	}
	if actor.Role != library.RoleLibrarian {
		if actor.ID != target.ID {
			return ErrNotPermitted
		}
		if err := a.Login(target, current); err != nil {
			return err
		}
	}
	return a.SetSecret(target.ID, next)
}

// IsHashed reports whether a stored secret is a bcrypt hash.
func IsHashed(stored string) bool {
	_, err := bcrypt.Cost([]byte(stored))
	return err == nil
}

func matches(stored, secret string) bool {
	if IsHashed(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(secret)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(secret)) == 1
}
