package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jan1 = MustParseDate("01-01-2024")

// newTestLedger returns a ledger holding two students and three books.
// Dune has a single copy.
func newTestLedger(t *testing.T, policy Policy) *Ledger {
	t.Helper()
	tables := NewTables()
	tables.People[10] = &Person{ID: 10, Name: "Asha Rao", Email: "asha@example.com", Role: RoleStudent, JoinedOn: jan1}
	tables.People[11] = &Person{ID: 11, Name: "Bilal Khan", Email: "bilal@example.com", Role: RoleStudent, JoinedOn: jan1}
	tables.Books[1] = &Book{ID: 1, Name: "Dune", Author: "Frank Herbert", Genre: "Sci-Fi", Available: 1, Total: 1}
	tables.Books[2] = &Book{ID: 2, Name: "Emma", Author: "Jane Austen", Genre: "Romance", Available: 2, Total: 2}
	tables.Books[3] = &Book{ID: 3, Name: "Hamlet", Author: "William Shakespeare", Genre: "Drama", Available: 3, Total: 3}
	tables.Secrets[10] = "asha-secret"

	l := NewLedger(tables, policy, nil, nil)
	require.NoError(t, l.Verify())
	return l
}

func TestIssueAndReturnScenario(t *testing.T) {
	l := newTestLedger(t, DefaultPolicy)

	loan, err := l.Issue(10, "Dune", jan1)
	require.NoError(t, err)
	assert.Equal(t, "01-01-2024", loan.IssuedOn.String())
	assert.Equal(t, "08-01-2024", loan.DueOn.String())
	assert.Equal(t, "Asha Rao", loan.UserName)

	dune, err := l.Book(1)
	require.NoError(t, err)
	assert.Equal(t, 0, dune.Available)

	_, err = l.Issue(11, "Dune", jan1)
	assert.ErrorIs(t, err, ErrNoCopiesAvailable)

	rec, err := l.Return(10, "Dune", MustParseDate("10-01-2024"))
	require.NoError(t, err)
	assert.True(t, rec.Late)
	assert.Equal(t, "10-01-2024", rec.ReturnedOn.String())

	dune, err = l.Book(1)
	require.NoError(t, err)
	assert.Equal(t, 1, dune.Available)
	assert.Empty(t, l.LoansOf(10))
	assert.Len(t, l.History(10), 1)
	require.NoError(t, l.Verify())
}

func TestReturnLateOnlyAfterDueDate(t *testing.T) {
	tests := []struct {
		name  string
		after int
		late  bool
	}{
		{"same day", 0, false},
		{"on due date", 7, false},
		{"day after due date", 8, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t, DefaultPolicy)
			_, err := l.Issue(10, "Emma", jan1)
			require.NoError(t, err)
			rec, err := l.Return(10, "Emma", jan1.AddDays(tt.after))
			require.NoError(t, err)
			assert.Equal(t, tt.late, rec.Late)
		})
	}
}

func TestIssueRejectionsChangeNothing(t *testing.T) {
	l := newTestLedger(t, Policy{BorrowLimit: 2, ReturnDays: 7})
	_, err := l.Issue(10, "Emma", jan1)
	require.NoError(t, err)
	_, err = l.Issue(10, "Hamlet", jan1)
	require.NoError(t, err)

	tests := []struct {
		name   string
		userID int64
		book   string
		want   error
	}{
		{"over the limit", 10, "Dune", ErrBorrowLimitExceeded},
		{"unknown person", 99, "Dune", ErrPersonNotFound},
		{"unknown book", 11, "Dunes", ErrBookNotFound},
		{"same book twice", 11, "Emma", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := l.Tables().Clone()
			_, err := l.Issue(tt.userID, tt.book, jan1)
			if tt.want == nil {
				require.NoError(t, err)
				_, err = l.Issue(tt.userID, tt.book, jan1)
				assert.ErrorIs(t, err, ErrAlreadyBorrowed)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, before, l.Tables())
		})
	}
}

func TestCheckIssuePrecedence(t *testing.T) {
	l := newTestLedger(t, Policy{BorrowLimit: 1, ReturnDays: 7})
	_, err := l.Issue(10, "Dune", jan1)
	require.NoError(t, err)

	// The limit is checked before the book is looked up.
	_, err = l.CheckIssue(10, "No Such Book")
	assert.ErrorIs(t, err, ErrBorrowLimitExceeded)

	_, err = l.CheckIssue(11, "Dune")
	assert.ErrorIs(t, err, ErrNoCopiesAvailable)
}

func TestReturnRejections(t *testing.T) {
	l := newTestLedger(t, DefaultPolicy)
	_, err := l.Issue(11, "Emma", jan1)
	require.NoError(t, err)
	before := l.Tables().Clone()

	_, err = l.Return(10, "Emma", jan1)
	assert.ErrorIs(t, err, ErrNotBorrowed)

	_, err = l.Return(10, "Persuasion", jan1)
	assert.ErrorIs(t, err, ErrBookNotFound)

	assert.Equal(t, before, l.Tables())
}

func TestOverdue(t *testing.T) {
	l := newTestLedger(t, DefaultPolicy)
	_, err := l.Issue(10, "Dune", jan1)
	require.NoError(t, err)
	_, err = l.Issue(11, "Emma", jan1.AddDays(3))
	require.NoError(t, err)

	assert.Empty(t, l.Overdue(MustParseDate("08-01-2024")))

	overdue := l.Overdue(MustParseDate("09-01-2024"))
	require.Len(t, overdue, 1)
	assert.Equal(t, "Dune", overdue[0].BookName)

	assert.Len(t, l.Overdue(MustParseDate("12-01-2024")), 2)
}

func TestRemovePersonRequiresNoLoans(t *testing.T) {
	l := newTestLedger(t, DefaultPolicy)
	_, err := l.Issue(10, "Dune", jan1)
	require.NoError(t, err)

	_, err = l.RemovePerson(10)
	assert.ErrorIs(t, err, ErrHasActiveLoans)

	_, err = l.Return(10, "Dune", jan1)
	require.NoError(t, err)
	removed, err := l.RemovePerson(10)
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", removed.Name)
	assert.NotContains(t, l.Tables().Secrets, int64(10))

	_, err = l.RemovePerson(10)
	assert.ErrorIs(t, err, ErrPersonNotFound)

	// History keeps id 10 reserved.
	id, err := l.NextPersonID()
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)
	require.NoError(t, l.Verify())
}

func TestRemovedIDsAreNotReused(t *testing.T) {
	l := newTestLedger(t, DefaultPolicy)
	_, err := l.Issue(11, "Hamlet", jan1)
	require.NoError(t, err)
	_, err = l.Return(11, "Hamlet", jan1)
	require.NoError(t, err)

	_, err = l.RemoveBook(3)
	require.NoError(t, err)
	b, err := l.AddBook("Macbeth", "William Shakespeare", "Drama", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), b.ID)
	require.NoError(t, l.Verify())
}

func TestIDsOfRecordsWithoutHistoryAreNotReused(t *testing.T) {
	l := newTestLedger(t, DefaultPolicy)

	p, err := l.AddPerson("Chen Wei", "", RoleStudent, jan1)
	require.NoError(t, err)
	assert.Equal(t, int64(12), p.ID)
	_, err = l.RemovePerson(p.ID)
	require.NoError(t, err)
	next, err := l.NextPersonID()
	require.NoError(t, err)
	assert.Equal(t, int64(13), next)

	b, err := l.AddBook("Macbeth", "William Shakespeare", "Drama", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), b.ID)
	_, err = l.RemoveBook(b.ID)
	require.NoError(t, err)
	next, err = l.NextBookID()
	require.NoError(t, err)
	assert.Equal(t, int64(5), next)

	assert.Equal(t, int64(12), l.Tables().LastPersonID)
	assert.Equal(t, int64(4), l.Tables().LastBookID)
}

func TestCatalogueChanges(t *testing.T) {
	l := newTestLedger(t, DefaultPolicy)

	_, err := l.AddBook("Dune", "Frank Herbert", "Sci-Fi", 2)
	assert.ErrorIs(t, err, ErrDuplicateBook)
	_, err = l.AddBook("Persuasion", "Jane Austen", "Romance", 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = l.AddBook("  ", "Jane Austen", "Romance", 1)
	assert.ErrorIs(t, err, ErrInvalidInput)

	b, err := l.AddBook("Persuasion", "Jane Austen", "Romance", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Available)

	_, err = l.Issue(10, "Persuasion", jan1)
	require.NoError(t, err)
	_, err = l.RemoveBook(b.ID)
	assert.ErrorIs(t, err, ErrBookOnLoan)

	_, err = l.RemoveBook(99)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestPeopleChanges(t *testing.T) {
	l := newTestLedger(t, DefaultPolicy)

	_, err := l.AddPerson("", "x@example.com", RoleStudent, jan1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = l.AddPerson("Chen Wei", "", Role("Janitor"), jan1)
	assert.ErrorIs(t, err, ErrInvalidRole)

	p, err := l.AddPerson("Chen Wei", "chen@example.com", RoleLibrarian, jan1)
	require.NoError(t, err)
	assert.Equal(t, int64(12), p.ID)

	updated, err := l.UpdatePerson(p.ID, "", "wei@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Chen Wei", updated.Name)
	assert.Equal(t, "wei@example.com", updated.Email)

	_, err = l.UpdatePerson(99, "X", "")
	assert.ErrorIs(t, err, ErrPersonNotFound)
}

func TestReadsReturnCopies(t *testing.T) {
	l := newTestLedger(t, DefaultPolicy)

	b, err := l.Book(1)
	require.NoError(t, err)
	b.Available = 100
	p, err := l.Person(10)
	require.NoError(t, err)
	p.Name = "Changed"

	require.NoError(t, l.Verify())
	assert.Equal(t, "Asha Rao", l.Tables().People[10].Name)
}

func TestBooksOrder(t *testing.T) {
	l := newTestLedger(t, DefaultPolicy)
	var names []string
	for _, b := range l.Books() {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"Hamlet", "Emma", "Dune"}, names)
}

func TestResolveRole(t *testing.T) {
	l := newTestLedger(t, DefaultPolicy)

	role, err := l.ResolveRole("student", DeclineAll)
	require.NoError(t, err)
	assert.Equal(t, RoleStudent, role)

	role, err = l.ResolveRole("studnet", ConfirmFunc(func(c string) bool { return c == "Student" }))
	require.NoError(t, err)
	assert.Equal(t, RoleStudent, role)

	_, err = l.ResolveRole("studnet", DeclineAll)
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestResolveLoanReferenceOnlySearchesOwnLoans(t *testing.T) {
	l := newTestLedger(t, DefaultPolicy)
	_, err := l.Issue(11, "Dune", jan1)
	require.NoError(t, err)

	got := l.ResolveLoanReference(10, "dune", DeclineAll)
	assert.Equal(t, "dune", got)
	got = l.ResolveLoanReference(11, "dune", DeclineAll)
	assert.Equal(t, "Dune", got)
}

func TestSimilarPeople(t *testing.T) {
	l := newTestLedger(t, DefaultPolicy)
	similar := l.SimilarPeople("asha rao")
	require.Len(t, similar, 1)
	assert.Equal(t, int64(10), similar[0].ID)
	assert.Empty(t, l.SimilarPeople("Zed"))
}
