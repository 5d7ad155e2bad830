package library

import (
	"fmt"
	"math"
)

// FirstID is allocated when neither the live tables nor history hold an id.
const FirstID int64 = 1

// Allocator hands out person and book identifiers. It consults the live
// tables, history and the recorded high-water marks, so the id of a removed
// person or book is never handed out again.
type Allocator struct {
	tables *Tables
}

// NewAllocator returns an Allocator reading from t.
func NewAllocator(t *Tables) *Allocator { return &Allocator{tables: t} }

// NextPersonID returns the next unused person id. Calling it twice without
// an insert in between yields the same value.
func (a *Allocator) NextPersonID() (int64, error) {
	if a.tables == nil || (a.tables.People == nil && a.tables.History == nil) {
		return 0, fmt.Errorf("%w: no people or history table", ErrAllocationExhausted)
	}
	high := max(FirstID-1, a.tables.LastPersonID)
	for id := range a.tables.People {
		high = max(high, id)
	}
	for _, h := range a.tables.History {
		high = max(high, h.UserID)
	}
	return next(high)
}

// NextBookID returns the next unused book id.
func (a *Allocator) NextBookID() (int64, error) {
	if a.tables == nil || (a.tables.Books == nil && a.tables.History == nil) {
		return 0, fmt.Errorf("%w: no books or history table", ErrAllocationExhausted)
	}
	high := max(FirstID-1, a.tables.LastBookID)
	for id := range a.tables.Books {
		high = max(high, id)
	}
	for _, h := range a.tables.History {
		high = max(high, h.BookID)
	}
	return next(high)
}

func next(high int64) (int64, error) {
	if high == math.MaxInt64 {
		return 0, ErrAllocationExhausted
	}
	return high + 1, nil
}
