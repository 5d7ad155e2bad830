package library

import (
	"errors"
	"fmt"
)

// CheckInvariants verifies the cross-table rules the ledger must keep after
// every mutation. Each broken rule yields one error wrapping
// ErrInvariantViolation; all of them are joined.
func CheckInvariants(t *Tables, borrowLimit int) error {
	var errs []error
	violation := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvariantViolation}, args...)...))
	}

	onLoan := make(map[int64]int)
	perPerson := make(map[int64]int)
	for key, l := range t.Loans {
		if key != l.Key() {
			violation("loan stored under %+v belongs to %+v", key, l.Key())
		}
		onLoan[l.BookID]++
		perPerson[l.UserID]++
		if _, ok := t.Books[l.BookID]; !ok {
			violation("loan of user %d references missing book %d", l.UserID, l.BookID)
		}
		if _, ok := t.People[l.UserID]; !ok {
			violation("loan of book %d references missing person %d", l.BookID, l.UserID)
		}
	}

	for _, id := range sortedIDs(t.Books) {
		b := t.Books[id]
		if b.ID != id {
			violation("book stored under id %d carries id %d", id, b.ID)
		}
		if b.Total < 1 {
			violation("book %d has %d total copies", id, b.Total)
		}
		if b.Available < 0 || b.Available > b.Total {
			violation("book %d has %d of %d copies available", id, b.Available, b.Total)
		}
		if want := b.Total - onLoan[id]; b.Available != want {
			violation("book %d has %d copies available, want %d", id, b.Available, want)
		}
	}

	for _, id := range sortedIDs(perPerson) {
		if perPerson[id] > borrowLimit {
			violation("person %d holds %d loans, limit is %d", id, perPerson[id], borrowLimit)
		}
	}

	for _, id := range sortedIDs(t.People) {
		if p := t.People[id]; p.ID != id {
			violation("person stored under id %d carries id %d", id, p.ID)
		}
	}

	// A live id that also appears in history must still be the same entity:
	// books keep their name, and a person cannot have borrowed before joining.
	for _, h := range t.History {
		if b, ok := t.Books[h.BookID]; ok && b.Name != h.BookName {
			violation("book id %d reassigned from %q to %q", h.BookID, h.BookName, b.Name)
		}
		if p, ok := t.People[h.UserID]; ok && !p.JoinedOn.IsZero() && h.IssuedOn.Before(p.JoinedOn) {
			violation("person id %d joined on %s after a loan issued on %s", h.UserID, p.JoinedOn, h.IssuedOn)
		}
	}

	return errors.Join(errs...)
}
