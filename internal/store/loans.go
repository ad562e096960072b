package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/knjiznica/internal/model"
)

const loanColumns = `id, book_id, user_id, loan_date, return_date`

func scanLoan(row interface{ Scan(...any) error }) (*model.Loan, error) {
	var (
		l                  model.Loan
		id, bookID, userID int64
	)
	if err := row.Scan(&id, &bookID, &userID, &l.LoanDate, &l.ReturnDate); err != nil {
		return nil, err
	}
	l.ID = formatID(id)
	l.BookID = formatID(bookID)
	l.UserID = formatID(userID)
	return &l, nil
}

// CreateLoan records a loan. A second loan for the same book yields ErrDuplicate.
func (s *SQLStore) CreateLoan(ctx context.Context, l *model.Loan) (*model.Loan, error) {
	bookID, ok := parseID(l.BookID)
	if !ok {
		return nil, fmt.Errorf("creating loan: invalid book id %q", l.BookID)
	}
	userID, ok := parseID(l.UserID)
	if !ok {
		return nil, fmt.Errorf("creating loan: invalid user id %q", l.UserID)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO loans (book_id, user_id, loan_date, return_date) VALUES (?, ?, ?, ?)`,
		bookID, userID, l.LoanDate.UTC(), l.ReturnDate.UTC(),
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("creating loan: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting loan id: %w", err)
	}

	created := *l
	created.ID = formatID(id)
	return &created, nil
}

// GetLoanByBook returns the loan referencing a book, if any.
func (s *SQLStore) GetLoanByBook(ctx context.Context, bookID string) (*model.Loan, error) {
	n, ok := parseID(bookID)
	if !ok {
		return nil, nil
	}
	l, err := scanLoan(s.db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE book_id = ?`, n,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting loan by book: %w", err)
	}
	return l, nil
}

// DeleteLoan removes a loan and returns how many rows were deleted.
func (s *SQLStore) DeleteLoan(ctx context.Context, id string) (int64, error) {
	n, ok := parseID(id)
	if !ok {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, n)
	if err != nil {
		return 0, fmt.Errorf("deleting loan: %w", err)
	}
	return res.RowsAffected()
}

// ListLoans returns all active loans, oldest first.
func (s *SQLStore) ListLoans(ctx context.Context) ([]model.Loan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY loan_date, id`)
	if err != nil {
		return nil, fmt.Errorf("listing loans: %w", err)
	}
	defer rows.Close()

	var loans []model.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning loan: %w", err)
		}
		loans = append(loans, *l)
	}
	return loans, rows.Err()
}
