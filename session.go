package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"library-lending/auth"
	"library-lending/library"
)

// errQuit ends the session without an error; the user is asked about saving.
var errQuit = errors.New("quit")

// session is one interactive run: login, the option menu, then save or discard.
type session struct {
	con    *console
	ledger *library.Ledger
	mgr    *library.Manager
	auth   *auth.Authenticator
	logger *slog.Logger
	today  func() library.Date

	user *library.Person
}

func newSession(con *console, ledger *library.Ledger, authn *auth.Authenticator, logger *slog.Logger) *session {
	return &session{
		con:    con,
		ledger: ledger,
		mgr:    library.NewManager(ledger, con, logger),
		auth:   authn,
		logger: logger,
		today:  library.Today,
	}
}

// run drives the session and reports whether the user chose to save. A
// non-nil error means the session aborted and nothing may be saved.
func (s *session) run() (bool, error) {
	if err := s.login(); err != nil {
		if errors.Is(err, errQuit) {
			return false, nil
		}
		return false, err
	}
	s.logger.Info("logged in", "user_id", s.user.ID, "role", string(s.user.Role))

	s.printOptions()
	for {
		option, ok := s.con.ask("Enter the option code (or 'options' to show options) : ")
		if !ok {
			break
		}
		err := s.dispatch(strings.ToLower(option))
		if errors.Is(err, errQuit) {
			break
		}
		if err != nil {
			return false, err
		}
	}
	return s.askSave(), nil
}

func (s *session) askSave() bool {
	s.con.println("\nDo you want to save all the updates to library records you made?")
	for {
		v, ok := s.con.ask("Please enter 'Save' or 'Dont Save' : ")
		if !ok {
			return false
		}
		switch strings.ToLower(v) {
		case "save":
			return true
		case "dont save", "don't save":
			return false
		}
		s.con.println("\nPlease enter 'Save' or 'Dont Save'.")
	}
}

func (s *session) isLibrarian() bool { return s.user.Role == library.RoleLibrarian }

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func (s *session) login() error {
	s.con.println("Are you an existing user?")
	if s.con.Confirm("Please confirm") {
		return s.existingUser()
	}
	return s.register()
}

func (s *session) existingUser() error {
	for {
		v, ok := s.con.ask("Enter your ID (or 'exit') : ")
		if !ok || strings.EqualFold(v, "exit") {
			return errQuit
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.con.println("Please enter an integer.")
			continue
		}
		p, err := s.ledger.Person(id)
		if err != nil {
			s.con.println("\nWe could not find your id.")
			continue
		}
		if p.Role == library.RoleStudent && !s.auth.HasSecret(p.ID) {
			s.con.println("\nNo password is set for this account. Please ask a librarian to set one.")
			return errQuit
		}
		s.user = p
		break
	}

	prompt := "Enter your password (or 'exit') : "
	if s.isLibrarian() {
		prompt = "Enter the librarian password (or 'exit') : "
	}
	for {
		secret, err := s.con.readSecret(prompt)
		if err != nil || strings.EqualFold(secret, "exit") {
			return errQuit
		}
		if err := s.auth.Login(s.user, secret); err == nil {
			return nil
		}
		if s.isLibrarian() {
			s.con.println("\nInvalid Password.")
		} else {
			s.con.println("\nInvalid Password. If you forgot, please ask a librarian to reset your password.")
		}
	}
}

func (s *session) register() error {
	name, ok := s.con.ask("Enter your name (or 'exit') : ")
	if !ok || strings.EqualFold(name, "exit") {
		return errQuit
	}
	if similar := s.ledger.SimilarPeople(name); len(similar) > 0 {
		s.con.println("\nPlease confirm if you are in the database below :")
		printPeople(s.con, similar)
		if s.con.Confirm("Are you in the database?") {
			s.con.println("\nPlease login with your credentials.")
			return errQuit
		}
	}
	email, ok := s.con.ask("Enter your email (or 'exit') : ")
	if !ok || strings.EqualFold(email, "exit") {
		return errQuit
	}

	var role library.Role
	for {
		v, ok := s.con.ask("Enter your role (or 'exit') : ")
		if !ok || strings.EqualFold(v, "exit") {
			return errQuit
		}
		r, err := s.ledger.ResolveRole(v, s.didYouMean())
		if err == nil {
			role = r
			break
		}
		s.con.println("\nEnter a valid role ('Student'/'Librarian').")
	}

	var secret string
	if role == library.RoleLibrarian {
		for {
			v, err := s.con.readSecret("Please enter the librarian password (or 'exit') : ")
			if err != nil || v == "exit" {
				return errQuit
			}
			if s.auth.CheckLibrarianSecret(v) == nil {
				break
			}
			s.con.println("\nInvalid librarian password. Please contact technical team if you forgot the password.")
		}
	} else {
		v, ok := s.con.newSecret("Enter a password for your account (or 'cancel') : ")
		if !ok {
			return errQuit
		}
		secret = v
	}

	id, err := s.ledger.NextPersonID()
	if err != nil {
		return err
	}
	s.con.println("\nYou are about to create an account with following details :")
	s.con.printf("User ID : %d\nName : %s\nEmail : %s\nRole : %s\n", id, name, email, role)
	if !s.con.Confirm("Please confirm") {
		s.con.println("\nAccount Creation Stopped.")
		return errQuit
	}
	p, err := s.ledger.AddPerson(name, strings.ToLower(email), role, s.today())
	if err != nil {
		if library.IsFatal(err) {
			return err
		}
		s.con.println(describe(err))
		return errQuit
	}
	if role == library.RoleStudent {
		if err := s.auth.SetSecret(p.ID, secret); err != nil {
			if err := s.undoAddPerson(p.ID); err != nil {
				return err
			}
			s.con.println("\nAccount Creation Stopped. " + describe(err))
			return errQuit
		}
	}
	s.user = p
	s.con.printf("\nAccount created. Your ID is %d.\n", p.ID)
	return nil
}

// undoAddPerson removes a person added moments ago whose secret could not
// be stored.
func (s *session) undoAddPerson(id int64) error {
	if _, err := s.ledger.RemovePerson(id); err != nil {
		return fmt.Errorf("undo add person %d: %w", id, err)
	}
	return nil
}

func (s *session) didYouMean() library.Confirmer {
	return library.ConfirmFunc(func(candidate string) bool {
		return s.con.Confirm(fmt.Sprintf("Did you mean %s?", candidate))
	})
}

// ---------------------------------------------------------------------------
// Targets
// ---------------------------------------------------------------------------

// target returns the person an option acts on: students always act for
// themselves, librarians may give another id or "me".
func (s *session) target() (*library.Person, bool) {
	if !s.isLibrarian() {
		return s.user, true
	}
	for {
		v, ok := s.con.askCancellable("Enter the id of the person (or 'me') : ")
		if !ok {
			return nil, false
		}
		if strings.EqualFold(v, "me") {
			return s.user, true
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.con.println("Please enter an integer.")
			continue
		}
		p, err := s.ledger.Person(id)
		if err != nil {
			s.con.println("No person exists with this id.")
			continue
		}
		return p, true
	}
}

// historyTarget is target that also accepts "all"; nil means everyone.
func (s *session) historyTarget() (*library.Person, bool) {
	if !s.isLibrarian() {
		return s.user, true
	}
	for {
		v, ok := s.con.askCancellable("Enter the id of the person (or 'me'/'all') : ")
		if !ok {
			return nil, false
		}
		switch strings.ToLower(v) {
		case "me":
			return s.user, true
		case "all":
			return nil, true
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.con.println("Please enter an integer.")
			continue
		}
		p, err := s.ledger.Person(id)
		if err != nil {
			s.con.println("No person exists with this id.")
			continue
		}
		return p, true
	}
}

// describe turns a ledger outcome into a message for the desk.
func describe(err error) string {
	switch {
	case errors.Is(err, library.ErrCancelled):
		return "Cancelling command."
	case errors.Is(err, library.ErrBookNotFound):
		return "This book does not exist."
	case errors.Is(err, library.ErrBorrowLimitExceeded):
		return "Borrow limit reached. Return a book before borrowing another."
	case errors.Is(err, library.ErrAlreadyBorrowed):
		return "You have already borrowed this book."
	case errors.Is(err, library.ErrNoCopiesAvailable):
		return "This book has no more copies left in library. All have been borrowed."
	case errors.Is(err, library.ErrNotBorrowed):
		return "You have not borrowed this book."
	case errors.Is(err, library.ErrPersonNotFound):
		return "No user found."
	case errors.Is(err, library.ErrHasActiveLoans):
		return "Please return all books before deleting the account."
	case errors.Is(err, library.ErrBookOnLoan):
		return "Copies of this book are still borrowed; it cannot be removed yet."
	case errors.Is(err, library.ErrDuplicateBook):
		return "This book already exists."
	case errors.Is(err, library.ErrInvalidRole):
		return "Enter a valid role ('Student'/'Librarian')."
	case errors.Is(err, auth.ErrLibrarianSecret):
		return "Please ask the technical team to update the librarian password."
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Password entered does not match your current password."
	case errors.Is(err, auth.ErrEmptySecret):
		return "The password cannot be empty."
	case errors.Is(err, auth.ErrSecretTooLong):
		return "The password must be at most 72 bytes long."
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}

// settle reports a handler outcome. Only fatal errors are passed back up.
func (s *session) settle(err error) error {
	if err == nil {
		return nil
	}
	if library.IsFatal(err) {
		s.con.println("\nLibrary records are inconsistent; exiting without saving.")
		return err
	}
	s.con.println("\n" + describe(err))
	return nil
}
