package library

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
)

// Policy holds the lending rules injected at construction.
type Policy struct {
	BorrowLimit int // most active loans one person may hold
	ReturnDays  int // loan length from issue to due date
}

// DefaultPolicy mirrors the library's stock configuration.
var DefaultPolicy = Policy{BorrowLimit: 5, ReturnDays: 7}

// Ledger owns the lending tables and the issue/return state machine.
//
// Every mutating method validates its preconditions against the state
// immediately before the call, applies the change to the in-memory tables
// and then runs CheckInvariants. A failed precondition leaves the tables
// untouched. An invariant failure is returned wrapped in
// ErrInvariantViolation and the tables must not be saved.
//
// A Ledger is not safe for concurrent use; one session drives it.
type Ledger struct {
	tables   *Tables
	policy   Policy
	resolver *Resolver
	ids      *Allocator
	logger   *slog.Logger
}

// NewLedger wraps t. A nil resolver uses DefaultMatchOptions, a nil
// logger discards output and unset policy fields take DefaultPolicy values.
func NewLedger(t *Tables, policy Policy, resolver *Resolver, logger *slog.Logger) *Ledger {
	if t == nil {
		t = NewTables()
	}
	if resolver == nil {
		resolver = NewResolver(DefaultMatchOptions)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if policy.BorrowLimit <= 0 {
		policy.BorrowLimit = DefaultPolicy.BorrowLimit
	}
	if policy.ReturnDays <= 0 {
		policy.ReturnDays = DefaultPolicy.ReturnDays
	}
	return &Ledger{
		tables:   t,
		policy:   policy,
		resolver: resolver,
		ids:      NewAllocator(t),
		logger:   logger,
	}
}

// Tables returns the live tables, for persistence.
func (l *Ledger) Tables() *Tables { return l.tables }

// Policy returns the lending rules in force.
func (l *Ledger) Policy() Policy { return l.policy }

// Verify runs the invariant checks on the current state.
func (l *Ledger) Verify() error { return l.guard("verify") }

// NextPersonID returns the id the next added person will get.
func (l *Ledger) NextPersonID() (int64, error) { return l.ids.NextPersonID() }

// NextBookID returns the id the next added book will get.
func (l *Ledger) NextBookID() (int64, error) { return l.ids.NextBookID() }

func (l *Ledger) guard(op string) error {
	if err := CheckInvariants(l.tables, l.policy.BorrowLimit); err != nil {
		l.logger.Error("ledger corrupted", "op", op, "error", err)
		return err
	}
	return nil
}

func (l *Ledger) reject(op string, err error) error {
	l.logger.Debug("operation rejected", "op", op, "error", err)
	return err
}

// ---------------------------------------------------------------------------
// Circulation
// ---------------------------------------------------------------------------

// CanBorrow reports whether userID exists and is below the borrow limit.
func (l *Ledger) CanBorrow(userID int64) error {
	if _, ok := l.tables.People[userID]; !ok {
		return fmt.Errorf("%w: id %d", ErrPersonNotFound, userID)
	}
	if n := l.loanCount(userID); n >= l.policy.BorrowLimit {
		return fmt.Errorf("%w: %d of %d", ErrBorrowLimitExceeded, n, l.policy.BorrowLimit)
	}
	return nil
}

// CheckIssue reports whether userID may borrow the book named bookKey now.
// It changes nothing.
func (l *Ledger) CheckIssue(userID int64, bookKey string) (*Book, error) {
	if err := l.CanBorrow(userID); err != nil {
		return nil, err
	}
	book := l.bookByName(bookKey)
	if book == nil {
		return nil, fmt.Errorf("%w: %q", ErrBookNotFound, bookKey)
	}
	if _, ok := l.tables.Loans[LoanKey{UserID: userID, BookID: book.ID}]; ok {
		return nil, fmt.Errorf("%w: %q", ErrAlreadyBorrowed, book.Name)
	}
	if book.Available <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoCopiesAvailable, book.Name)
	}
	return cloneRecord(book), nil
}

// Issue lends one copy of the book named bookKey to userID, due
// Policy.ReturnDays after today.
func (l *Ledger) Issue(userID int64, bookKey string, today Date) (*ActiveLoan, error) {
	checked, err := l.CheckIssue(userID, bookKey)
	if err != nil {
		return nil, l.reject("issue", err)
	}
	book := l.tables.Books[checked.ID]
	person := l.tables.People[userID]

	loan := &ActiveLoan{
		UserID:   userID,
		BookID:   book.ID,
		BookName: book.Name,
		UserName: person.Name,
		IssuedOn: today,
		DueOn:    today.AddDays(l.policy.ReturnDays),
	}
	book.Available--
	l.tables.Loans[loan.Key()] = loan

	if err := l.guard("issue"); err != nil {
		return nil, err
	}
	l.logger.Info("book issued",
		"user_id", userID, "book_id", book.ID, "book", book.Name,
		"issued_on", loan.IssuedOn.String(), "due_on", loan.DueOn.String())
	return cloneRecord(loan), nil
}

// CheckReturn finds the active loan of userID whose book is named bookKey.
// Only the person's own loans are searched. It changes nothing.
func (l *Ledger) CheckReturn(userID int64, bookKey string) (*ActiveLoan, error) {
	for _, loan := range l.loansOf(userID) {
		if loan.BookName == bookKey {
			return cloneRecord(loan), nil
		}
	}
	if l.bookByName(bookKey) == nil {
		return nil, fmt.Errorf("%w: %q", ErrBookNotFound, bookKey)
	}
	return nil, fmt.Errorf("%w: %q", ErrNotBorrowed, bookKey)
}

// Return closes the loan of the book named bookKey held by userID. The
// loan is late only when today is strictly after its due date.
func (l *Ledger) Return(userID int64, bookKey string, today Date) (*HistoryRecord, error) {
	checked, err := l.CheckReturn(userID, bookKey)
	if err != nil {
		return nil, l.reject("return", err)
	}
	loan := l.tables.Loans[checked.Key()]

	rec := &HistoryRecord{
		UserID:     loan.UserID,
		BookID:     loan.BookID,
		BookName:   loan.BookName,
		UserName:   loan.UserName,
		IssuedOn:   loan.IssuedOn,
		DueOn:      loan.DueOn,
		ReturnedOn: today,
		Late:       today.After(loan.DueOn),
	}
	l.tables.History = append(l.tables.History, rec)
	delete(l.tables.Loans, loan.Key())
	if book, ok := l.tables.Books[loan.BookID]; ok {
		book.Available++
	}

	if err := l.guard("return"); err != nil {
		return nil, err
	}
	l.logger.Info("book returned",
		"user_id", userID, "book_id", rec.BookID, "book", rec.BookName,
		"returned_on", today.String(), "late", rec.Late)
	return cloneRecord(rec), nil
}

// ---------------------------------------------------------------------------
// Catalogue
// ---------------------------------------------------------------------------

// CheckAddBook reports whether a book with this name and copy count may be added.
func (l *Ledger) CheckAddBook(name string, total int) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: book name is empty", ErrInvalidInput)
	}
	if total < 1 {
		return fmt.Errorf("%w: total copies must be at least 1, got %d", ErrInvalidInput, total)
	}
	if l.bookByName(name) != nil {
		return fmt.Errorf("%w: %q", ErrDuplicateBook, name)
	}
	return nil
}

// AddBook adds a title with total copies, all available.
func (l *Ledger) AddBook(name, author, genre string, total int) (*Book, error) {
	if err := l.CheckAddBook(name, total); err != nil {
		return nil, l.reject("add book", err)
	}
	id, err := l.ids.NextBookID()
	if err != nil {
		return nil, err
	}
	book := &Book{ID: id, Name: name, Author: author, Genre: genre, Available: total, Total: total}
	l.tables.Books[id] = book
	l.tables.LastBookID = id

	if err := l.guard("add book"); err != nil {
		return nil, err
	}
	l.logger.Info("book added", "book_id", id, "book", name, "total", total)
	return cloneRecord(book), nil
}

// CheckRemoveBook reports whether book id may be removed.
func (l *Ledger) CheckRemoveBook(id int64) (*Book, error) {
	book, ok := l.tables.Books[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrBookNotFound, id)
	}
	if out := book.Total - book.Available; out > 0 {
		return nil, fmt.Errorf("%w: %d cop(ies) of %q", ErrBookOnLoan, out, book.Name)
	}
	return cloneRecord(book), nil
}

// RemoveBook deletes a book that has no copies on loan. Its id stays
// reserved.
func (l *Ledger) RemoveBook(id int64) (*Book, error) {
	book, err := l.CheckRemoveBook(id)
	if err != nil {
		return nil, l.reject("remove book", err)
	}
	delete(l.tables.Books, id)

	if err := l.guard("remove book"); err != nil {
		return nil, err
	}
	l.logger.Info("book removed", "book_id", id, "book", book.Name)
	return book, nil
}

// ---------------------------------------------------------------------------
// People
// ---------------------------------------------------------------------------

// AddPerson registers a person joining on joined.
func (l *Ledger) AddPerson(name, email string, role Role, joined Date) (*Person, error) {
	if strings.TrimSpace(name) == "" {
		return nil, l.reject("add person", fmt.Errorf("%w: name is empty", ErrInvalidInput))
	}
	if !role.Valid() {
		return nil, l.reject("add person", fmt.Errorf("%w: %q", ErrInvalidRole, role))
	}
	id, err := l.ids.NextPersonID()
	if err != nil {
		return nil, err
	}
	p := &Person{ID: id, Name: name, Email: email, Role: role, JoinedOn: joined}
	l.tables.People[id] = p
	l.tables.LastPersonID = id

	if err := l.guard("add person"); err != nil {
		return nil, err
	}
	l.logger.Info("person added", "user_id", id, "role", string(role))
	return cloneRecord(p), nil
}

// CheckRemovePerson reports whether person id may be removed.
func (l *Ledger) CheckRemovePerson(id int64) (*Person, error) {
	p, ok := l.tables.People[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrPersonNotFound, id)
	}
	if n := l.loanCount(id); n > 0 {
		return nil, fmt.Errorf("%w: %d book(s)", ErrHasActiveLoans, n)
	}
	return cloneRecord(p), nil
}

// RemovePerson deletes a person holding no loans, along with their secret.
func (l *Ledger) RemovePerson(id int64) (*Person, error) {
	p, err := l.CheckRemovePerson(id)
	if err != nil {
		return nil, l.reject("remove person", err)
	}
	delete(l.tables.People, id)
	delete(l.tables.Secrets, id)

	if err := l.guard("remove person"); err != nil {
		return nil, err
	}
	l.logger.Info("person removed", "user_id", id)
	return p, nil
}

// UpdatePerson changes a person's name and email. Empty values keep the
// current ones.
func (l *Ledger) UpdatePerson(id int64, name, email string) (*Person, error) {
	p, ok := l.tables.People[id]
	if !ok {
		return nil, l.reject("update person", fmt.Errorf("%w: id %d", ErrPersonNotFound, id))
	}
	if name != "" {
		p.Name = name
	}
	if email != "" {
		p.Email = email
	}

	if err := l.guard("update person"); err != nil {
		return nil, err
	}
	l.logger.Info("person updated", "user_id", id)
	return cloneRecord(p), nil
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// ResolveBookReference resolves a free-text title against the catalogue.
func (l *Ledger) ResolveBookReference(query string, c Confirmer) string {
	return l.resolver.Resolve(query, l.bookNames(), c)
}

// ResolveLoanReference resolves a free-text title against the books
// userID currently holds, never the whole catalogue.
func (l *Ledger) ResolveLoanReference(userID int64, query string, c Confirmer) string {
	loans := l.loansOf(userID)
	names := make([]string, 0, len(loans))
	for _, loan := range loans {
		names = append(names, loan.BookName)
	}
	return l.resolver.Resolve(query, names, c)
}

// ResolvePersonReference resolves a free-text name against known people.
func (l *Ledger) ResolvePersonReference(query string, c Confirmer) string {
	return l.resolver.Resolve(query, l.distinct(func(p *Person) string { return p.Name }), c)
}

// ResolveAuthor resolves against authors already in the catalogue.
func (l *Ledger) ResolveAuthor(query string, c Confirmer) string {
	return l.resolver.Resolve(query, l.distinctBooks(func(b *Book) string { return b.Author }), c)
}

// ResolveGenre resolves against genres already in the catalogue.
func (l *Ledger) ResolveGenre(query string, c Confirmer) string {
	return l.resolver.Resolve(query, l.distinctBooks(func(b *Book) string { return b.Genre }), c)
}

// ResolveRole resolves a free-text role.
func (l *Ledger) ResolveRole(query string, c Confirmer) (Role, error) {
	names := make([]string, 0, len(Roles))
	for _, r := range Roles {
		names = append(names, string(r))
	}
	role := Role(l.resolver.Resolve(query, names, c))
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, query)
	}
	return role, nil
}

// SimilarBooks lists catalogue titles close to query, for duplicate warnings.
func (l *Ledger) SimilarBooks(query string) []string {
	return l.resolver.CandidatesLike(query, l.bookNames())
}

// SimilarPeople lists people whose names are close to name.
func (l *Ledger) SimilarPeople(name string) []*Person {
	var out []*Person
	for _, n := range l.resolver.CandidatesLike(name, l.distinct(func(p *Person) string { return p.Name })) {
		out = append(out, l.PeopleNamed(n)...)
	}
	return out
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// Person returns a copy of person id.
func (l *Ledger) Person(id int64) (*Person, error) {
	p, ok := l.tables.People[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrPersonNotFound, id)
	}
	return cloneRecord(p), nil
}

// Book returns a copy of book id.
func (l *Ledger) Book(id int64) (*Book, error) {
	b, ok := l.tables.Books[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrBookNotFound, id)
	}
	return cloneRecord(b), nil
}

// BookByName returns the book whose name is exactly name.
func (l *Ledger) BookByName(name string) (*Book, error) {
	b := l.bookByName(name)
	if b == nil {
		return nil, fmt.Errorf("%w: %q", ErrBookNotFound, name)
	}
	return cloneRecord(b), nil
}

// People returns every person ordered by id.
func (l *Ledger) People() []*Person {
	out := make([]*Person, 0, len(l.tables.People))
	for _, id := range sortedIDs(l.tables.People) {
		out = append(out, cloneRecord(l.tables.People[id]))
	}
	return out
}

// PeopleNamed returns every person whose name is exactly name.
func (l *Ledger) PeopleNamed(name string) []*Person {
	var out []*Person
	for _, id := range sortedIDs(l.tables.People) {
		if p := l.tables.People[id]; p.Name == name {
			out = append(out, cloneRecord(p))
		}
	}
	return out
}

// Books returns the catalogue ordered by genre, author, then name.
func (l *Ledger) Books() []*Book {
	out := make([]*Book, 0, len(l.tables.Books))
	for _, id := range sortedIDs(l.tables.Books) {
		out = append(out, cloneRecord(l.tables.Books[id]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Genre != b.Genre {
			return a.Genre < b.Genre
		}
		if a.Author != b.Author {
			return a.Author < b.Author
		}
		return a.Name < b.Name
	})
	return out
}

// LoansOf returns the active loans of userID, oldest first.
func (l *Ledger) LoansOf(userID int64) []*ActiveLoan {
	loans := l.loansOf(userID)
	for i, loan := range loans {
		loans[i] = cloneRecord(loan)
	}
	return loans
}

// ActiveLoans returns every active loan.
func (l *Ledger) ActiveLoans() []*ActiveLoan {
	out := make([]*ActiveLoan, 0, len(l.tables.Loans))
	for _, loan := range l.tables.Loans {
		out = append(out, cloneRecord(loan))
	}
	sortLoans(out)
	return out
}

// Overdue returns the active loans whose due date is before asOf.
func (l *Ledger) Overdue(asOf Date) []*ActiveLoan {
	var out []*ActiveLoan
	for _, loan := range l.ActiveLoans() {
		if loan.DueOn.Before(asOf) {
			out = append(out, loan)
		}
	}
	return out
}

// History returns the closed loans of userID in the order they closed.
func (l *Ledger) History(userID int64) []*HistoryRecord {
	var out []*HistoryRecord
	for _, h := range l.tables.History {
		if h.UserID == userID {
			out = append(out, cloneRecord(h))
		}
	}
	return out
}

// AllHistory returns every closed loan in the order they closed.
func (l *Ledger) AllHistory() []*HistoryRecord {
	out := make([]*HistoryRecord, 0, len(l.tables.History))
	for _, h := range l.tables.History {
		out = append(out, cloneRecord(h))
	}
	return out
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (l *Ledger) loanCount(userID int64) int {
	n := 0
	for key := range l.tables.Loans {
		if key.UserID == userID {
			n++
		}
	}
	return n
}

func (l *Ledger) loansOf(userID int64) []*ActiveLoan {
	var out []*ActiveLoan
	for key, loan := range l.tables.Loans {
		if key.UserID == userID {
			out = append(out, loan)
		}
	}
	sortLoans(out)
	return out
}

func (l *Ledger) bookByName(name string) *Book {
	for _, id := range sortedIDs(l.tables.Books) {
		if b := l.tables.Books[id]; b.Name == name {
			return b
		}
	}
	return nil
}

func (l *Ledger) bookNames() []string {
	ids := sortedIDs(l.tables.Books)
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, l.tables.Books[id].Name)
	}
	return names
}

func (l *Ledger) distinct(field func(*Person) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range sortedIDs(l.tables.People) {
		v := field(l.tables.People[id])
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func (l *Ledger) distinctBooks(field func(*Book) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range sortedIDs(l.tables.Books) {
		v := field(l.tables.Books[id])
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
