package main

import (
	"fmt"
	"strings"

	"library-lending/auth"
	"library-lending/library"
)

type option struct {
	code      string
	label     string
	librarian bool
	handle    func(*session) error
}

var options = []option{
	{"1", "View Library Card", false, handleViewCard},
	{"2", "View All Books", false, handleListBooks},
	{"3", "Issue Book", false, handleIssue},
	{"4", "Return Book", false, handleReturn},
	{"5", "View Borrow History", false, handleHistory},
	{"6", "Update Account Details", false, handleUpdateAccount},
	{"7", "Change Password", false, handleChangePassword},
	{"8", "Delete Account", false, handleDeleteAccount},
	{"9", "View All Borrowed Books", true, handleListLoans},
	{"10", "View Overdue Books", true, handleListOverdue},
	{"11", "View All Users", true, handleListPeople},
	{"12", "Find User", true, handleFindPeople},
	{"13", "Add Book", true, handleAddBook},
	{"14", "Remove Book", true, handleRemoveBook},
	{"15", "Add User", true, handleAddPerson},
}

func (s *session) printOptions() {
	s.con.println("\nOptions :")
	for _, o := range options {
		if o.librarian && !s.isLibrarian() {
			continue
		}
		s.con.printf("  %-3s %s\n", o.code+".", o.label)
	}
	s.con.println("  exit Exit")
}

// dispatch runs one menu choice. errQuit ends the menu.
func (s *session) dispatch(code string) error {
	switch code {
	case "":
		return nil
	case "options":
		s.printOptions()
		return nil
	case "exit":
		if s.con.Confirm("Are you sure you want to exit?") {
			return errQuit
		}
		return nil
	}
	for _, o := range options {
		if o.code != code {
			continue
		}
		if o.librarian && !s.isLibrarian() {
			break
		}
		return o.handle(s)
	}
	s.con.println("Unknown option. Enter 'options' to see the available options.")
	return nil
}

// ------------------ Account ------------------

func handleViewCard(s *session) error {
	p, ok := s.target()
	if !ok {
		return nil
	}
	s.con.println("\nLibrary Card")
	s.con.printf("User ID   : %d\n", p.ID)
	s.con.printf("Name      : %s\n", p.Name)
	s.con.printf("Email     : %s\n", p.Email)
	s.con.printf("Role      : %s\n", p.Role)
	s.con.printf("Joined On : %s\n", p.JoinedOn)
	loans := s.ledger.LoansOf(p.ID)
	s.con.printf("Borrowed  : %d of %d\n", len(loans), s.ledger.Policy().BorrowLimit)
	if len(loans) > 0 {
		printLoans(s.con, loans)
	}
	return nil
}

func handleUpdateAccount(s *session) error {
	p, ok := s.target()
	if !ok {
		return nil
	}
	name, ok := s.con.askCancellable(fmt.Sprintf("Enter the new name (or 'same' to keep %q) : ", p.Name))
	if !ok {
		return s.settle(library.ErrCancelled)
	}
	email, ok := s.con.askCancellable(fmt.Sprintf("Enter the new email (or 'same' to keep %q) : ", p.Email))
	if !ok {
		return s.settle(library.ErrCancelled)
	}
	if strings.EqualFold(name, "same") {
		name = ""
	}
	if strings.EqualFold(email, "same") {
		email = ""
	}
	updated, err := s.mgr.UpdatePerson(p.ID, name, email)
	if err != nil {
		return s.settle(err)
	}
	if updated.ID == s.user.ID {
		s.user = updated
	}
	s.con.println("\nAccount details updated.")
	return nil
}

func handleChangePassword(s *session) error {
	p, ok := s.target()
	if !ok {
		return nil
	}
	if p.Role == library.RoleLibrarian {
		return s.settle(auth.ErrLibrarianSecret)
	}
	var current string
	if !s.isLibrarian() {
		v, err := s.con.readSecret("Enter your current password (or 'cancel') : ")
		if err != nil || strings.EqualFold(v, "cancel") {
			return s.settle(library.ErrCancelled)
		}
		current = v
	}
	next, ok := s.con.newSecret("Enter the new password (or 'cancel') : ")
	if !ok {
		return s.settle(library.ErrCancelled)
	}
	if !s.con.Confirm(fmt.Sprintf("Change the password of %s (ID: %d)?", p.Name, p.ID)) {
		return s.settle(library.ErrCancelled)
	}
	if err := s.auth.ChangeSecret(s.user, p, current, next); err != nil {
		return s.settle(err)
	}
	s.logger.Info("secret changed", "user_id", p.ID, "by", s.user.ID)
	s.con.println("\nPassword changed.")
	return nil
}

func handleDeleteAccount(s *session) error {
	p, ok := s.target()
	if !ok {
		return nil
	}
	if _, err := s.mgr.RemovePerson(p.ID); err != nil {
		return s.settle(err)
	}
	s.con.printf("\nAccount %d deleted.\n", p.ID)
	if p.ID == s.user.ID {
		return errQuit
	}
	return nil
}

// ------------------ Circulation ------------------

func handleIssue(s *session) error {
	p, ok := s.target()
	if !ok {
		return nil
	}
	if err := s.ledger.CanBorrow(p.ID); err != nil {
		return s.settle(err)
	}
	if loans := s.ledger.LoansOf(p.ID); len(loans) > 0 {
		s.con.println("\nCurrently borrowed :")
		printLoans(s.con, loans)
	}
	title, ok := s.con.askCancellable("Enter the name of the book (or 'cancel') : ")
	if !ok {
		return s.settle(library.ErrCancelled)
	}
	loan, err := s.mgr.IssueBook(p.ID, title, s.today())
	if err != nil {
		return s.settle(err)
	}
	s.con.printf("\n%q issued to %s. Please return it by %s.\n", loan.BookName, loan.UserName, loan.DueOn)
	return nil
}

func handleReturn(s *session) error {
	p, ok := s.target()
	if !ok {
		return nil
	}
	loans := s.ledger.LoansOf(p.ID)
	if len(loans) == 0 {
		s.con.println("\nNo books are currently borrowed.")
		return nil
	}
	printLoans(s.con, loans)
	title, ok := s.con.askCancellable("Enter the name of the book to return (or 'cancel') : ")
	if !ok {
		return s.settle(library.ErrCancelled)
	}
	rec, err := s.mgr.ReturnBook(p.ID, title, s.today())
	if err != nil {
		return s.settle(err)
	}
	s.con.printf("\n%q returned on %s.\n", rec.BookName, rec.ReturnedOn)
	if rec.Late {
		s.con.printf("The book was due on %s and was returned late.\n", rec.DueOn)
	}
	return nil
}

func handleHistory(s *session) error {
	p, ok := s.historyTarget()
	if !ok {
		return nil
	}
	var records []*library.HistoryRecord
	if p == nil {
		records = s.ledger.AllHistory()
	} else {
		records = s.ledger.History(p.ID)
	}
	if len(records) == 0 {
		s.con.println("\nNo borrow history.")
		return nil
	}
	s.con.printf("\n%-8s %-20s %-30s %-12s %-12s %-12s %s\n", "User ID", "Name", "Book", "Issued On", "Due On", "Returned On", "Late")
	s.con.println(strings.Repeat("-", 105))
	for _, r := range records {
		late := "No"
		if r.Late {
			late = "Yes"
		}
		s.con.printf("%-8d %-20s %-30s %-12s %-12s %-12s %s\n",
			r.UserID,
			truncateString(r.UserName, 20),
			truncateString(r.BookName, 30),
			r.IssuedOn, r.DueOn, r.ReturnedOn, late)
	}
	return nil
}

func handleListLoans(s *session) error {
	loans := s.ledger.ActiveLoans()
	if len(loans) == 0 {
		s.con.println("\nNo books are currently borrowed.")
		return nil
	}
	printLoans(s.con, loans)
	return nil
}

func handleListOverdue(s *session) error {
	loans := s.ledger.Overdue(s.today())
	if len(loans) == 0 {
		s.con.println("\nNo books are overdue.")
		return nil
	}
	printLoans(s.con, loans)
	return nil
}

// ------------------ Catalogue ------------------

func handleListBooks(s *session) error {
	books := s.ledger.Books()
	if len(books) == 0 {
		s.con.println("\nNo books in the library.")
		return nil
	}
	s.con.printf("\n%-5s %-30s %-25s %-15s %-10s %s\n", "ID", "Name", "Author", "Genre", "Available", "Total")
	s.con.println(strings.Repeat("-", 95))
	for _, b := range books {
		s.con.printf("%-5d %-30s %-25s %-15s %-10d %d\n",
			b.ID,
			truncateString(b.Name, 30),
			truncateString(b.Author, 25),
			truncateString(b.Genre, 15),
			b.Available, b.Total)
	}
	return nil
}

func handleAddBook(s *session) error {
	var in library.NewBook
	var ok bool
	if in.Name, ok = s.con.askCancellable("Enter the name of the book (or 'cancel') : "); !ok {
		return s.settle(library.ErrCancelled)
	}
	if similar := s.ledger.SimilarBooks(in.Name); len(similar) > 0 {
		s.con.println("\nSimilar books already in the library : " + strings.Join(similar, ", "))
	}
	if in.Copies, ok = s.con.askInt("Enter the number of copies : ", 1); !ok {
		return s.settle(library.ErrCancelled)
	}
	if in.Author, ok = s.con.askCancellable("Enter the author : "); !ok {
		return s.settle(library.ErrCancelled)
	}
	if in.Genre, ok = s.con.askCancellable("Enter the genre : "); !ok {
		return s.settle(library.ErrCancelled)
	}
	b, err := s.mgr.AddBook(in)
	if err != nil {
		return s.settle(err)
	}
	s.con.printf("\nBook %q added with ID %d.\n", b.Name, b.ID)
	return nil
}

func handleRemoveBook(s *session) error {
	title, ok := s.con.askCancellable("Enter the name of the book to remove (or 'cancel') : ")
	if !ok {
		return s.settle(library.ErrCancelled)
	}
	b, err := s.mgr.RemoveBook(title)
	if err != nil {
		return s.settle(err)
	}
	s.con.printf("\nBook %q removed.\n", b.Name)
	return nil
}

// ------------------ People ------------------

func handleListPeople(s *session) error {
	people := s.ledger.People()
	if len(people) == 0 {
		s.con.println("\nNo users registered.")
		return nil
	}
	printPeople(s.con, people)
	return nil
}

func handleFindPeople(s *session) error {
	name, ok := s.con.askCancellable("Enter the name of the user (or 'cancel') : ")
	if !ok {
		return s.settle(library.ErrCancelled)
	}
	people, err := s.mgr.FindPeople(name)
	if err != nil {
		return s.settle(err)
	}
	printPeople(s.con, people)
	return nil
}

func handleAddPerson(s *session) error {
	var in library.NewPerson
	var ok bool
	if in.Name, ok = s.con.askCancellable("Enter the name (or 'cancel') : "); !ok {
		return s.settle(library.ErrCancelled)
	}
	if in.Email, ok = s.con.askCancellable("Enter the email : "); !ok {
		return s.settle(library.ErrCancelled)
	}
	roleInput, ok := s.con.askCancellable("Enter the role ('Student'/'Librarian') : ")
	if !ok {
		return s.settle(library.ErrCancelled)
	}
	role, err := s.ledger.ResolveRole(roleInput, s.didYouMean())
	if err != nil {
		return s.settle(err)
	}
	in.Role = string(role)

	var secret string
	if role == library.RoleStudent {
		if secret, ok = s.con.newSecret("Enter a password for the account (or 'cancel') : "); !ok {
			return s.settle(library.ErrCancelled)
		}
	}
	p, err := s.mgr.AddPerson(in, s.today())
	if err != nil {
		return s.settle(err)
	}
	if role == library.RoleStudent {
		if err := s.auth.SetSecret(p.ID, secret); err != nil {
			if err := s.undoAddPerson(p.ID); err != nil {
				return err
			}
			return s.settle(err)
		}
	}
	s.con.printf("\nUser %s added with ID %d.\n", p.Name, p.ID)
	return nil
}

// ------------------ Tables ------------------

func printLoans(c *console, loans []*library.ActiveLoan) {
	c.printf("\n%-8s %-20s %-30s %-12s %s\n", "User ID", "Name", "Book", "Issued On", "Due On")
	c.println(strings.Repeat("-", 85))
	for _, l := range loans {
		c.printf("%-8d %-20s %-30s %-12s %s\n",
			l.UserID,
			truncateString(l.UserName, 20),
			truncateString(l.BookName, 30),
			l.IssuedOn, l.DueOn)
	}
}

func printPeople(c *console, people []*library.Person) {
	c.printf("\n%-5s %-25s %-30s %-10s %s\n", "ID", "Name", "Email", "Role", "Joined On")
	c.println(strings.Repeat("-", 85))
	for _, p := range people {
		c.printf("%-5d %-25s %-30s %-10s %s\n",
			p.ID,
			truncateString(p.Name, 25),
			truncateString(p.Email, 30),
			p.Role, p.JoinedOn)
	}
}

// truncateString truncates a string to the specified length with ellipsis
func truncateString(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	return string(r[:maxLength-3]) + "..."
}
