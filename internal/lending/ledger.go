package lending

import (
	"context"
	"fmt"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// Ledger owns loan records. It checks no business rules; that is the
// Coordinator's job.
type Ledger struct {
	loans store.LoanStore
}

// NewLedger returns a Ledger backed by loans.
func NewLedger(loans store.LoanStore) *Ledger {
	return &Ledger{loans: loans}
}

// CreateLoan records that bookID is lent to userID.
func (l *Ledger) CreateLoan(ctx context.Context, bookID, userID string, loanDate, returnDate time.Time) (*model.Loan, error) {
	loan, err := l.loans.CreateLoan(ctx, &model.Loan{
		BookID:     bookID,
		UserID:     userID,
		LoanDate:   loanDate,
		ReturnDate: returnDate,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return loan, nil
}

// FindActiveLoanByBook returns the loan referencing bookID, or nil.
func (l *Ledger) FindActiveLoanByBook(ctx context.Context, bookID string) (*model.Loan, error) {
	loan, err := l.loans.GetLoanByBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return loan, nil
}

// RemoveLoan deletes a loan record or fails with ErrLoanNotFound.
func (l *Ledger) RemoveLoan(ctx context.Context, loanID string) error {
	n, err := l.loans.DeleteLoan(ctx, loanID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrLoanNotFound, loanID)
	}
	return nil
}

// ListLoans returns every active loan.
func (l *Ledger) ListLoans(ctx context.Context) ([]model.Loan, error) {
	loans, err := l.loans.ListLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return loans, nil
}
