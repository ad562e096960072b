package lending

import (
	"context"
	"fmt"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// Availability owns the is_available flag of books. It keeps no state of its
// own; every call reads or writes the store.
type Availability struct {
	books store.BookStore
}

// NewAvailability returns an Availability backed by books.
func NewAvailability(books store.BookStore) *Availability {
	return &Availability{books: books}
}

// GetBook returns the book with id or ErrBookNotFound.
func (a *Availability) GetBook(ctx context.Context, id string) (*model.Book, error) {
	b, err := a.books.GetBook(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrBookNotFound, id)
	}
	return b, nil
}

// SetAvailability writes the flag unconditionally and returns the book as
// stored afterwards. Setting the current value again is not an error.
func (a *Availability) SetAvailability(ctx context.Context, id string, available bool) (*model.Book, error) {
	value := model.OnLoan
	if available {
		value = model.Available
	}

	res, err := a.books.SetAvailability(ctx, id, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if res.Matched == 0 {
		return nil, fmt.Errorf("%w: %s", ErrBookNotFound, id)
	}
	return a.GetBook(ctx, id)
}

// Reserve marks an available book as on loan. It fails with
// ErrConcurrentModification when the book was not available at the moment of
// the write, so at most one of several concurrent callers succeeds.
func (a *Availability) Reserve(ctx context.Context, id string) error {
	res, err := a.books.CompareAndSetAvailability(ctx, id, model.Available, model.OnLoan)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if res.Modified == 0 {
		return fmt.Errorf("%w: %s", ErrConcurrentModification, id)
	}
	return nil
}
