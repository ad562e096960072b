// Package store defines the persistence contract of the library service and
// its SQLite implementation. Other backends live in subpackages.
package store

import (
	"context"
	"errors"

	"github.com/erazemk/knjiznica/internal/model"
)

// ErrDuplicate is returned when a write violates a uniqueness rule, such as a
// second loan for the same book or a reused username.
var ErrDuplicate = errors.New("duplicate record")

// ErrBookOnLoan is returned by DeleteBook for a book that is not available.
var ErrBookOnLoan = errors.New("book is on loan")

// UpdateResult reports how many records an update matched and changed.
// A conditional update whose precondition failed has Modified == 0, and so
// does a write of values the record already holds.
type UpdateResult struct {
	Matched  int64
	Modified int64
}

// BookStore persists catalog entries. Lookups return nil, nil when the book
// does not exist.
type BookStore interface {
	ListBooks(ctx context.Context) ([]model.Book, error)
	GetBook(ctx context.Context, id string) (*model.Book, error)
	CreateBook(ctx context.Context, b *model.Book) (*model.Book, error)
	UpdateBook(ctx context.Context, id string, u model.BookUpdate) (*model.Book, error)
	// DeleteBook removes an available book and returns it as it was. The
	// availability check and the removal are one atomic step.
	DeleteBook(ctx context.Context, id string) (*model.Book, error)

	// SetAvailability overwrites the flag regardless of its current value.
	SetAvailability(ctx context.Context, id string, value int) (UpdateResult, error)
	// CompareAndSetAvailability writes to only if the flag currently equals from.
	CompareAndSetAvailability(ctx context.Context, id string, from, to int) (UpdateResult, error)

	SetBookCover(ctx context.Context, id string, data []byte, mime string) (UpdateResult, error)
	GetBookCover(ctx context.Context, id string) ([]byte, string, error)
}

// UserStore persists patrons.
type UserStore interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	CreateUser(ctx context.Context, u *model.User) (*model.User, error)
	FindUserByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error)
	FindUserByUsernameAndEmail(ctx context.Context, username, email string) (*model.User, error)
	UpdateUserRole(ctx context.Context, id, role string) (UpdateResult, error)
	UpdateUserPenalty(ctx context.Context, id string, p model.Penalty) (UpdateResult, error)
}

// LoanStore persists loan records. Records are inserted and deleted, never
// updated.
type LoanStore interface {
	CreateLoan(ctx context.Context, l *model.Loan) (*model.Loan, error)
	GetLoanByBook(ctx context.Context, bookID string) (*model.Loan, error)
	DeleteLoan(ctx context.Context, id string) (int64, error)
	ListLoans(ctx context.Context) ([]model.Loan, error)
}

// Store is a complete storage backend.
type Store interface {
	BookStore
	UserStore
	LoanStore

	// ValidID reports whether id is well formed for this backend.
	ValidID(id string) bool
	Close() error
}
