package store

import (
	"fmt"
	"sort"
	"strconv"

	"library-lending/library"
)

// The record types below are the on-disk shape of each table. Rows are
// keyed by id (people, books) or row number (loans, history), dates are
// DD-MM-YYYY strings and secret-map keys are strings.

type personRecord struct {
	Name     string `json:"Name" cbor:"Name"`
	Email    string `json:"Email" cbor:"Email"`
	Role     string `json:"Role" cbor:"Role"`
	JoinedOn string `json:"Joined On" cbor:"Joined On"`
}

type bookRecord struct {
	Name      string `json:"Book Name" cbor:"Book Name"`
	Author    string `json:"Author" cbor:"Author"`
	Genre     string `json:"Genre" cbor:"Genre"`
	Available int    `json:"Available" cbor:"Available"`
	Total     int    `json:"Total" cbor:"Total"`
}

type loanRecord struct {
	UserName string `json:"Name" cbor:"Name"`
	BookName string `json:"Book Name" cbor:"Book Name"`
	UserID   int64  `json:"User ID" cbor:"User ID"`
	BookID   int64  `json:"Book ID" cbor:"Book ID"`
	IssuedOn string `json:"Issued On" cbor:"Issued On"`
	DueOn    string `json:"Due On" cbor:"Due On"`
}

type historyRecord struct {
	UserName   string `json:"Name" cbor:"Name"`
	BookName   string `json:"Book Name" cbor:"Book Name"`
	UserID     int64  `json:"User ID" cbor:"User ID"`
	BookID     int64  `json:"Book ID" cbor:"Book ID"`
	IssuedOn   string `json:"Issued On" cbor:"Issued On"`
	DueOn      string `json:"Due On" cbor:"Due On"`
	ReturnedOn string `json:"Returned On" cbor:"Returned On"`
	Late       bool   `json:"Late Return" cbor:"Late Return"`
}

// idsRecord holds the highest person and book ids ever allocated.
type idsRecord struct {
	LastPersonID int64 `json:"Last Person ID" cbor:"Last Person ID"`
	LastBookID   int64 `json:"Last Book ID" cbor:"Last Book ID"`
}

// snapshot is every table in record form.
type snapshot struct {
	People  map[string]personRecord  `json:"people" cbor:"people"`
	Books   map[string]bookRecord    `json:"books" cbor:"books"`
	Loans   map[string]loanRecord    `json:"borrowed" cbor:"borrowed"`
	History map[string]historyRecord `json:"history" cbor:"history"`
	Secrets map[string]string        `json:"passwords" cbor:"passwords"`
	IDs     idsRecord                `json:"ids" cbor:"ids"`
}

func key(id int64) string { return strconv.FormatInt(id, 10) }

func toSnapshot(t *library.Tables) snapshot {
	s := snapshot{
		People:  make(map[string]personRecord, len(t.People)),
		Books:   make(map[string]bookRecord, len(t.Books)),
		Loans:   make(map[string]loanRecord, len(t.Loans)),
		History: make(map[string]historyRecord, len(t.History)),
		Secrets: make(map[string]string, len(t.Secrets)),
		IDs:     idsRecord{LastPersonID: t.LastPersonID, LastBookID: t.LastBookID},
	}
	for id, p := range t.People {
		s.People[key(id)] = personRecord{Name: p.Name, Email: p.Email, Role: string(p.Role), JoinedOn: p.JoinedOn.String()}
	}
	for id, b := range t.Books {
		s.Books[key(id)] = bookRecord{Name: b.Name, Author: b.Author, Genre: b.Genre, Available: b.Available, Total: b.Total}
	}
	for i, l := range orderedLoans(t) {
		s.Loans[key(int64(i+1))] = loanRecord{
			UserName: l.UserName, BookName: l.BookName, UserID: l.UserID, BookID: l.BookID,
			IssuedOn: l.IssuedOn.String(), DueOn: l.DueOn.String(),
		}
	}
	for i, h := range t.History {
		s.History[key(int64(i+1))] = historyRecord{
			UserName: h.UserName, BookName: h.BookName, UserID: h.UserID, BookID: h.BookID,
			IssuedOn: h.IssuedOn.String(), DueOn: h.DueOn.String(), ReturnedOn: h.ReturnedOn.String(),
			Late: h.Late,
		}
	}
	for id, secret := range t.Secrets {
		s.Secrets[key(id)] = secret
	}
	return s
}

func fromSnapshot(s snapshot) (*library.Tables, error) {
	t := library.NewTables()
	for k, r := range s.People {
		id, err := parseKey("people", k)
		if err != nil {
			return nil, err
		}
		joined, err := library.ParseDate(r.JoinedOn)
		if err != nil {
			return nil, fmt.Errorf("person %d: %w", id, err)
		}
		t.People[id] = &library.Person{ID: id, Name: r.Name, Email: r.Email, Role: library.Role(r.Role), JoinedOn: joined}
	}
	for k, r := range s.Books {
		id, err := parseKey("books", k)
		if err != nil {
			return nil, err
		}
		t.Books[id] = &library.Book{ID: id, Name: r.Name, Author: r.Author, Genre: r.Genre, Available: r.Available, Total: r.Total}
	}
	for _, k := range sortedKeys(s.Loans) {
		r := s.Loans[k]
		loan, err := loanFromRecord(r)
		if err != nil {
			return nil, fmt.Errorf("borrowed row %s: %w", k, err)
		}
		if _, dup := t.Loans[loan.Key()]; dup {
			return nil, fmt.Errorf("borrowed row %s: duplicate loan of book %d to user %d", k, r.BookID, r.UserID)
		}
		t.Loans[loan.Key()] = loan
	}
	for _, k := range sortedKeys(s.History) {
		h, err := historyFromRecord(s.History[k])
		if err != nil {
			return nil, fmt.Errorf("history row %s: %w", k, err)
		}
		t.History = append(t.History, h)
	}
	for k, secret := range s.Secrets {
		id, err := parseKey("passwords", k)
		if err != nil {
			return nil, err
		}
		t.Secrets[id] = secret
	}
	if s.IDs.LastPersonID < 0 || s.IDs.LastBookID < 0 {
		return nil, fmt.Errorf("ids: negative high-water mark %+v", s.IDs)
	}
	t.LastPersonID, t.LastBookID = s.IDs.LastPersonID, s.IDs.LastBookID
	return t, nil
}

func loanFromRecord(r loanRecord) (*library.ActiveLoan, error) {
	issued, err := library.ParseDate(r.IssuedOn)
	if err != nil {
		return nil, err
	}
	due, err := library.ParseDate(r.DueOn)
	if err != nil {
		return nil, err
	}
	return &library.ActiveLoan{
		UserID: r.UserID, BookID: r.BookID, BookName: r.BookName, UserName: r.UserName,
		IssuedOn: issued, DueOn: due,
	}, nil
}

func historyFromRecord(r historyRecord) (*library.HistoryRecord, error) {
	loan, err := loanFromRecord(loanRecord{
		UserName: r.UserName, BookName: r.BookName, UserID: r.UserID, BookID: r.BookID,
		IssuedOn: r.IssuedOn, DueOn: r.DueOn,
	})
	if err != nil {
		return nil, err
	}
	returned, err := library.ParseDate(r.ReturnedOn)
	if err != nil {
		return nil, err
	}
	return &library.HistoryRecord{
		UserID: loan.UserID, BookID: loan.BookID, BookName: loan.BookName, UserName: loan.UserName,
		IssuedOn: loan.IssuedOn, DueOn: loan.DueOn, ReturnedOn: returned, Late: r.Late,
	}, nil
}

func parseKey(table, k string) (int64, error) {
	id, err := strconv.ParseInt(k, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: bad key %q: %w", table, k, err)
	}
	return id, nil
}

// sortedKeys orders numeric row keys numerically, so row 10 follows row 9.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.ParseInt(keys[i], 10, 64)
		b, errB := strconv.ParseInt(keys[j], 10, 64)
		if errA != nil || errB != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})
	return keys
}

func orderedLoans(t *library.Tables) []*library.ActiveLoan {
	loans := make([]*library.ActiveLoan, 0, len(t.Loans))
	for _, l := range t.Loans {
		loans = append(loans, l)
	}
	sort.Slice(loans, func(i, j int) bool {
		if loans[i].UserID != loans[j].UserID {
			return loans[i].UserID < loans[j].UserID
		}
		return loans[i].BookID < loans[j].BookID
	})
	return loans
}
