package filestore

import (
	"context"
	"slices"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// CreateLoan appends a loan. A second loan for the same book yields
// store.ErrDuplicate.
func (s *FileStore) CreateLoan(ctx context.Context, l *model.Loan) (*model.Loan, error) {
	created := *l
	created.ID = newID()

	err := s.update(ctx, func(d *document) (bool, error) {
		for _, existing := range d.Loans {
			if existing.BookID == l.BookID {
				return false, store.ErrDuplicate
			}
		}
		d.Loans = append(d.Loans, created)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GetLoanByBook returns the loan referencing a book, if any.
func (s *FileStore) GetLoanByBook(ctx context.Context, bookID string) (*model.Loan, error) {
	var loan *model.Loan
	err := s.view(ctx, func(d *document) error {
		for _, l := range d.Loans {
			if l.BookID == bookID {
				loan = &l
				return nil
			}
		}
		return nil
	})
	return loan, err
}

// DeleteLoan removes a loan and returns how many records were deleted.
func (s *FileStore) DeleteLoan(ctx context.Context, id string) (int64, error) {
	var deleted int64
	err := s.update(ctx, func(d *document) (bool, error) {
		i := slices.IndexFunc(d.Loans, func(l model.Loan) bool { return l.ID == id })
		if i < 0 {
			return false, nil
		}
		d.Loans = slices.Delete(d.Loans, i, i+1)
		deleted = 1
		return true, nil
	})
	return deleted, err
}

// ListLoans returns all active loans in creation order.
func (s *FileStore) ListLoans(ctx context.Context) ([]model.Loan, error) {
	var loans []model.Loan
	err := s.view(ctx, func(d *document) error {
		loans = append(loans, d.Loans...)
		return nil
	})
	return loans, err
}
