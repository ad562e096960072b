package model

import "time"

// DefaultLoanPeriod is the due date offset used when the borrower gives none.
const DefaultLoanPeriod = 14 * 24 * time.Hour

// Loan records that a book is currently lent to a user.
type Loan struct {
	ID         string    `json:"id"`
	BookID     string    `json:"bookId"`
	UserID     string    `json:"userId"`
	LoanDate   time.Time `json:"loanDate"`
	ReturnDate time.Time `json:"returnDate"`
}

// DueDate returns requested when set, otherwise loanDate plus DefaultLoanPeriod.
func DueDate(loanDate time.Time, requested *time.Time) time.Time {
	if requested != nil {
		return *requested
	}
	return loanDate.Add(DefaultLoanPeriod)
}
