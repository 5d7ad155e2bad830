package library

import "errors"

// Business-rule outcomes. Callers recover from these locally.
var (
	ErrBookNotFound        = errors.New("library: book not found")
	ErrBorrowLimitExceeded = errors.New("library: borrow limit reached")
	ErrAlreadyBorrowed     = errors.New("library: book already borrowed by this person")
	ErrNoCopiesAvailable   = errors.New("library: no copies left to lend")
	ErrNotBorrowed         = errors.New("library: book is not borrowed by this person")
	ErrPersonNotFound      = errors.New("library: person not found")
	ErrHasActiveLoans      = errors.New("library: person still holds borrowed books")
	ErrBookOnLoan          = errors.New("library: copies of this book are still on loan")
	ErrDuplicateBook       = errors.New("library: a book with this name already exists")
	ErrInvalidRole         = errors.New("library: role must be Librarian or Student")
	ErrInvalidInput        = errors.New("library: invalid input")
	ErrCancelled           = errors.New("library: cancelled")
)

// ErrAllocationExhausted is returned when no further identifier can be issued.
var ErrAllocationExhausted = errors.New("library: identifier allocation exhausted")

// ErrInvariantViolation signals corrupted ledger state. It is never a user
// error: the session must stop without saving.
var ErrInvariantViolation = errors.New("library: invariant violation")

// IsFatal reports whether err must end the session without saving.
func IsFatal(err error) bool { return errors.Is(err, ErrInvariantViolation) }
