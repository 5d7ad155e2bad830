package library

import (
	"sort"

	"github.com/jinzhu/copier"
)

// Role is the kind of account a person holds.
type Role string

const (
	RoleLibrarian Role = "Librarian"
	RoleStudent   Role = "Student"
)

// Roles lists every valid role in display order.
var Roles = []Role{RoleLibrarian, RoleStudent}

// Valid reports whether r is one of Roles.
func (r Role) Valid() bool { return r == RoleLibrarian || r == RoleStudent }

// Person represents a registered library user.
type Person struct {
	ID       int64
	Name     string
	Email    string
	Role     Role
	JoinedOn Date
}

// Book represents a catalogue title and the state of its copies.
// Available is maintained by the ledger and must always equal Total minus
// the number of active loans on the book.
type Book struct {
	ID        int64
	Name      string
	Author    string
	Genre     string
	Available int
	Total     int
}

// LoanKey identifies an active loan. A person holds at most one copy of a book.
type LoanKey struct {
	UserID int64
	BookID int64
}

// ActiveLoan is an outstanding, unreturned borrowing of one book by one person.
type ActiveLoan struct {
	UserID   int64
	BookID   int64
	BookName string
	UserName string
	IssuedOn Date
	DueOn    Date
}

// Key returns the loan's table key.
func (l *ActiveLoan) Key() LoanKey { return LoanKey{UserID: l.UserID, BookID: l.BookID} }

// HistoryRecord is a closed loan. It is never modified once written.
type HistoryRecord struct {
	UserID     int64
	BookID     int64
	BookName   string
	UserName   string
	IssuedOn   Date
	DueOn      Date
	ReturnedOn Date
	Late       bool
}

// Tables is the full in-memory state of the library: four keyed tables and
// the student secret map. A session loads it once and saves it once.
//
// LastPersonID and LastBookID are the highest ids ever allocated. They keep
// the id of a removed record reserved even when no history row mentions it.
type Tables struct {
	People  map[int64]*Person
	Books   map[int64]*Book
	Loans   map[LoanKey]*ActiveLoan
	History []*HistoryRecord
	Secrets map[int64]string

	LastPersonID int64
	LastBookID   int64
}

// NewTables returns an empty, ready to use Tables.
func NewTables() *Tables {
	return &Tables{
		People:  make(map[int64]*Person),
		Books:   make(map[int64]*Book),
		Loans:   make(map[LoanKey]*ActiveLoan),
		Secrets: make(map[int64]string),
	}
}

// Clone returns a deep copy that shares no records with t.
func (t *Tables) Clone() *Tables {
	c := NewTables()
	for id, p := range t.People {
		c.People[id] = cloneRecord(p)
	}
	for id, b := range t.Books {
		c.Books[id] = cloneRecord(b)
	}
	for k, l := range t.Loans {
		c.Loans[k] = cloneRecord(l)
	}
	if t.History != nil {
		c.History = make([]*HistoryRecord, 0, len(t.History))
		for _, h := range t.History {
			c.History = append(c.History, cloneRecord(h))
		}
	}
	for id, s := range t.Secrets {
		c.Secrets[id] = s
	}
	c.LastPersonID, c.LastBookID = t.LastPersonID, t.LastBookID
	return c
}

func cloneRecord[T any](src *T) *T {
	dst := new(T)
	if err := copier.Copy(dst, src); err != nil {
		// Records are flat structs of the same type; copier cannot fail on them.
		panic(err)
	}
	return dst
}

func sortedIDs[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// sortLoans orders loans by user, then issue date, then book.
func sortLoans(loans []*ActiveLoan) {
	sort.Slice(loans, func(i, j int) bool {
		a, b := loans[i], loans[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if a.IssuedOn != b.IssuedOn {
			return a.IssuedOn.Before(b.IssuedOn)
		}
		return a.BookID < b.BookID
	})
}
