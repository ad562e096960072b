package lending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// LoanRequest is the input of LoanBook. ReturnDate is optional and accepts
// either a calendar date (2006-01-02) or an RFC 3339 timestamp.
type LoanRequest struct {
	UserID     string
	BookID     string
	ReturnDate string
}

// Coordinator runs the loan and return workflows across the availability
// manager and the ledger. It holds no locks; concurrent loans of the same book
// are serialized by the store's conditional update.
type Coordinator struct {
	books   *Availability
	ledger  *Ledger
	users   store.UserStore
	validID func(string) bool
	now     func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces time.Now as the source of loan dates.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator returns a Coordinator over s.
func NewCoordinator(s store.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		books:   NewAvailability(s),
		ledger:  NewLedger(s),
		users:   s,
		validID: s.ValidID,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Availability returns the availability manager the coordinator uses.
func (c *Coordinator) Availability() *Availability { return c.books }

// Ledger returns the loan ledger the coordinator uses.
func (c *Coordinator) Ledger() *Ledger { return c.ledger }

// LoanBook lends a book to a user. The book is reserved before the loan is
// written; if the write then fails the book stays reserved and
// ErrConsistencyGap is returned.
func (c *Coordinator) LoanBook(ctx context.Context, req LoanRequest) (*model.Loan, error) {
	if err := c.checkID("user", req.UserID); err != nil {
		return nil, err
	}
	if err := c.checkID("book", req.BookID); err != nil {
		return nil, err
	}
	requested, err := parseReturnDate(req.ReturnDate)
	if err != nil {
		return nil, err
	}

	user, err := c.users.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: looking up user: %w", ErrPersist, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, req.UserID)
	}

	book, err := c.books.GetBook(ctx, req.BookID)
	if err != nil {
		return nil, err
	}
	if book.IsAvailable != model.Available {
		return nil, fmt.Errorf("%w: %s", ErrBookUnavailable, book.ID)
	}

	if err := c.books.Reserve(ctx, book.ID); err != nil {
		return nil, err
	}

	loanDate := c.now().UTC()
	loan, err := c.ledger.CreateLoan(ctx, book.ID, user.ID, loanDate, model.DueDate(loanDate, requested))
	if err != nil {
		slog.Error("book reserved but loan not recorded",
			"book", book.ID, "user", user.ID, "error", err)
		return nil, fmt.Errorf("%w: book %s reserved without loan: %w", ErrConsistencyGap, book.ID, err)
	}

	slog.Info("book loaned", "book", book.ID, "user", user.ID, "loan", loan.ID)
	return loan, nil
}

// ReturnBook removes a book's loan if one exists and then marks the book
// available. It is permissive: returning a book that is not on loan succeeds.
// The removed loan is returned, or nil when there was none.
//
// The loan goes first so that the book never looks available while a loan
// still references it; a LoanBook racing the return gets ErrBookUnavailable.
func (c *Coordinator) ReturnBook(ctx context.Context, bookID string) (*model.Loan, error) {
	if err := c.checkID("book", bookID); err != nil {
		return nil, err
	}

	if _, err := c.books.GetBook(ctx, bookID); err != nil {
		return nil, err
	}

	loan, err := c.ledger.FindActiveLoanByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if loan != nil {
		err := c.ledger.RemoveLoan(ctx, loan.ID)
		switch {
		case errors.Is(err, ErrLoanNotFound):
			// A concurrent return already removed it.
			loan = nil
		case err != nil:
			return nil, err
		}
	}

	if _, err := c.books.SetAvailability(ctx, bookID, true); err != nil {
		if loan == nil {
			return nil, err
		}
		slog.Error("loan removed but book not made available",
			"book", bookID, "loan", loan.ID, "error", err)
		return nil, fmt.Errorf("%w: book %s still on loan after removing loan %s: %w",
			ErrConsistencyGap, bookID, loan.ID, err)
	}

	if loan == nil {
		slog.Info("book returned without active loan", "book", bookID)
		return nil, nil
	}
	slog.Info("book returned", "book", bookID, "user", loan.UserID, "loan", loan.ID)
	return loan, nil
}

func (c *Coordinator) checkID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s id is required", ErrInvalidRequest, kind)
	}
	if !c.validID(id) {
		return fmt.Errorf("%w: malformed %s id %q", ErrInvalidRequest, kind, id)
	}
	return nil
}

// parseReturnDate returns nil for an empty value.
func parseReturnDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: return date %q is not a date", ErrInvalidRequest, s)
}
