package lending

import "errors"

// Errors returned by the loan lifecycle. Callers match them with errors.Is;
// the wrapped message carries the detail.
var (
	// ErrInvalidRequest means an identifier or date was missing or malformed.
	// Nothing has been written.
	ErrInvalidRequest = errors.New("invalid request")

	ErrUserNotFound = errors.New("user not found")
	ErrBookNotFound = errors.New("book not found")
	ErrLoanNotFound = errors.New("loan not found")

	// ErrBookUnavailable means the book was already on loan when checked.
	ErrBookUnavailable = errors.New("book is not available")

	// ErrConcurrentModification means another request reserved the book
	// between the availability check and the conditional update.
	ErrConcurrentModification = errors.New("book availability changed concurrently")

	// ErrPersist means a storage operation failed before any state changed
	// or while changing a single record.
	ErrPersist = errors.New("storage operation failed")

	// ErrConsistencyGap means a multi-step operation failed half way and the
	// book's availability no longer matches its loan records. It is never
	// retried automatically.
	ErrConsistencyGap = errors.New("availability and loan records out of sync")
)
