package lending

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// Report lists records that break the rule "a book is on loan exactly when
// one loan references it".
type Report struct {
	// Orphaned are books marked on loan that no loan references.
	Orphaned []string `json:"orphaned"`
	// Dangling are loans whose book is available or no longer exists.
	Dangling []string `json:"dangling"`
}

// Clean reports whether nothing was found.
func (r *Report) Clean() bool {
	return len(r.Orphaned) == 0 && len(r.Dangling) == 0
}

// Reconciler finds consistency gaps left by failed loans and returns. It
// never repairs them: a book reserved by an in-flight LoanBook looks exactly
// like an orphan until its loan is written.
type Reconciler struct {
	books store.BookStore
	loans *Ledger
}

// NewReconciler returns a Reconciler over s.
func NewReconciler(s store.Store) *Reconciler {
	return &Reconciler{books: s, loans: NewLedger(s)}
}

// Check compares book availability with the loan records.
func (r *Reconciler) Check(ctx context.Context) (*Report, error) {
	books, err := r.books.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing books: %w", ErrPersist, err)
	}
	loans, err := r.loans.ListLoans(ctx)
	if err != nil {
		return nil, err
	}

	loaned := make(map[string]bool, len(loans))
	for _, l := range loans {
		loaned[l.BookID] = true
	}
	byID := make(map[string]model.Book, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}

	report := &Report{Orphaned: []string{}, Dangling: []string{}}
	for _, b := range books {
		if b.IsAvailable == model.OnLoan && !loaned[b.ID] {
			report.Orphaned = append(report.Orphaned, b.ID)
		}
	}
	for _, l := range loans {
		b, ok := byID[l.BookID]
		if !ok || b.IsAvailable == model.Available {
			report.Dangling = append(report.Dangling, l.ID)
		}
	}
	return report, nil
}

// Run calls Check every interval until ctx is cancelled and logs findings.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := r.Check(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Error("reconciliation failed", "error", err)
				}
				continue
			}
			if !report.Clean() {
				slog.Error("loan records out of sync",
					"orphaned_books", report.Orphaned, "dangling_loans", report.Dangling)
			}
		}
	}
}
