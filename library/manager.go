package library

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Prompter asks the person at the desk a yes/no question.
type Prompter interface {
	Confirm(question string) bool
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(question string) bool

func (f PrompterFunc) Confirm(question string) bool { return f(question) }

// Manager is a thin façade over the Ledger, keeping CLI code simple. It
// gathers every confirmation a flow needs before calling the ledger, so a
// declined question returns ErrCancelled with the tables untouched.
type Manager struct {
	ledger   *Ledger
	prompt   Prompter
	logger   *slog.Logger
	validate *validator.Validate
}

// NewManager returns a Manager driving l through p.
func NewManager(l *Ledger, p Prompter, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{ledger: l, prompt: p, logger: logger, validate: validator.New()}
}

// Ledger returns the managed ledger.
func (m *Manager) Ledger() *Ledger { return m.ledger }

func (m *Manager) didYouMean() Confirmer {
	return ConfirmFunc(func(candidate string) bool {
		return m.prompt.Confirm(fmt.Sprintf("Did you mean %s?", candidate))
	})
}

func (m *Manager) cancelled(flow string) error {
	m.logger.Debug("flow cancelled", "flow", flow)
	return fmt.Errorf("%w: %s", ErrCancelled, flow)
}

// ------------------ Circulation ------------------

// IssueBook resolves title against the catalogue and, once confirmed,
// lends it to userID.
func (m *Manager) IssueBook(userID int64, title string, today Date) (*ActiveLoan, error) {
	if err := m.ledger.CanBorrow(userID); err != nil {
		return nil, err
	}
	name := m.ledger.ResolveBookReference(title, m.didYouMean())
	book, err := m.ledger.CheckIssue(userID, name)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("Issue %q by %s (%s)?", book.Name, book.Author, book.Genre)
	if !m.prompt.Confirm(q) {
		return nil, m.cancelled("issue book")
	}
	return m.ledger.Issue(userID, name, today)
}

// ReturnBook resolves title against the books userID holds and, once
// confirmed, closes that loan.
func (m *Manager) ReturnBook(userID int64, title string, today Date) (*HistoryRecord, error) {
	name := m.ledger.ResolveLoanReference(userID, title, m.didYouMean())
	if _, err := m.ledger.CheckReturn(userID, name); err != nil {
		return nil, err
	}
	if !m.prompt.Confirm(fmt.Sprintf("Return %q?", name)) {
		return nil, m.cancelled("return book")
	}
	return m.ledger.Return(userID, name, today)
}

// ------------------ Catalogue ------------------

// NewBook is the input of AddBook.
type NewBook struct {
	Name   string `validate:"required"`
	Author string `validate:"required"`
	Genre  string `validate:"required"`
	Copies int    `validate:"min=1"`
}

// AddBook adds a title after matching its author and genre against the
// existing catalogue. A title that resolves to an existing book is
// rejected with ErrDuplicateBook.
func (m *Manager) AddBook(in NewBook) (*Book, error) {
	if err := m.check(in); err != nil {
		return nil, err
	}
	in.Name = m.ledger.ResolveBookReference(in.Name, m.didYouMean())
	if err := m.ledger.CheckAddBook(in.Name, in.Copies); err != nil {
		return nil, err
	}
	in.Author = m.ledger.ResolveAuthor(in.Author, m.didYouMean())
	in.Genre = m.ledger.ResolveGenre(in.Genre, m.didYouMean())

	id, err := m.ledger.NextBookID()
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("Add book %d: %q by %s (%s), %d cop(ies)?", id, in.Name, in.Author, in.Genre, in.Copies)
	if !m.prompt.Confirm(q) {
		return nil, m.cancelled("add book")
	}
	return m.ledger.AddBook(in.Name, in.Author, in.Genre, in.Copies)
}

// RemoveBook resolves title and, once confirmed, removes the book.
func (m *Manager) RemoveBook(title string) (*Book, error) {
	name := m.ledger.ResolveBookReference(title, m.didYouMean())
	book, err := m.ledger.BookByName(name)
	if err != nil {
		return nil, err
	}
	if _, err := m.ledger.CheckRemoveBook(book.ID); err != nil {
		return nil, err
	}
	q := fmt.Sprintf("Delete book %d: %q by %s?", book.ID, book.Name, book.Author)
	if !m.prompt.Confirm(q) {
		return nil, m.cancelled("remove book")
	}
	return m.ledger.RemoveBook(book.ID)
}

// ------------------ People ------------------

// NewPerson is the input of AddPerson.
type NewPerson struct {
	Name  string `validate:"required"`
	Email string `validate:"omitempty,email"`
	Role  string `validate:"required"`
}

// AddPerson registers a person. When similar names already exist the user
// is asked whether the person is among them; yes cancels.
func (m *Manager) AddPerson(in NewPerson, joined Date) (*Person, error) {
	if err := m.check(in); err != nil {
		return nil, err
	}
	if similar := m.ledger.SimilarPeople(in.Name); len(similar) > 0 {
		names := make([]string, 0, len(similar))
		for _, p := range similar {
			names = append(names, fmt.Sprintf("%s <%s> (%s, joined %s)", p.Name, p.Email, p.Role, p.JoinedOn))
		}
		if m.prompt.Confirm("Is the person already registered as one of: " + strings.Join(names, "; ") + "?") {
			return nil, m.cancelled("add person")
		}
	}
	role, err := m.ledger.ResolveRole(in.Role, m.didYouMean())
	if err != nil {
		return nil, err
	}
	id, err := m.ledger.NextPersonID()
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("Add person %d: %s <%s> as %s?", id, in.Name, in.Email, role)
	if !m.prompt.Confirm(q) {
		return nil, m.cancelled("add person")
	}
	return m.ledger.AddPerson(in.Name, strings.ToLower(in.Email), role, joined)
}

// RemovePerson removes person id once confirmed.
func (m *Manager) RemovePerson(id int64) (*Person, error) {
	p, err := m.ledger.CheckRemovePerson(id)
	if err != nil {
		return nil, err
	}
	if !m.prompt.Confirm(fmt.Sprintf("Delete %s (ID: %d)?", p.Name, p.ID)) {
		return nil, m.cancelled("remove person")
	}
	return m.ledger.RemovePerson(id)
}

// UpdatePerson changes name and email once confirmed; empty keeps a value.
func (m *Manager) UpdatePerson(id int64, name, email string) (*Person, error) {
	p, err := m.ledger.Person(id)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = p.Name
	}
	if email == "" {
		email = p.Email
	}
	if err := m.validate.Var(email, "omitempty,email"); err != nil {
		return nil, fmt.Errorf("%w: email %q", ErrInvalidInput, email)
	}
	if !m.prompt.Confirm(fmt.Sprintf("Update account %d to %s <%s>?", id, name, email)) {
		return nil, m.cancelled("update person")
	}
	return m.ledger.UpdatePerson(id, name, strings.ToLower(email))
}

// FindPeople resolves name against known people and returns everyone
// carrying the resolved name.
func (m *Manager) FindPeople(name string) ([]*Person, error) {
	resolved := m.ledger.ResolvePersonReference(name, m.didYouMean())
	people := m.ledger.PeopleNamed(resolved)
	if len(people) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrPersonNotFound, name)
	}
	return people, nil
}

func (m *Manager) check(in any) error {
	if err := m.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
