package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/knjiznica/internal/lending"
)

// lendingError maps loan lifecycle errors to responses. Storage details are
// logged, never returned.
func lendingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lending.ErrInvalidRequest):
		jsonError(w, http.StatusBadRequest, "Missing or invalid userId, bookId or returnDate.")
	case errors.Is(err, lending.ErrUserNotFound):
		jsonError(w, http.StatusNotFound, "User not found.")
	case errors.Is(err, lending.ErrBookNotFound):
		jsonError(w, http.StatusNotFound, "Book not found.")
	case errors.Is(err, lending.ErrBookUnavailable):
		jsonError(w, http.StatusBadRequest, "Book is not available.")
	case errors.Is(err, lending.ErrConcurrentModification):
		jsonError(w, http.StatusInternalServerError, "Failed to update book availability.")
	case errors.Is(err, lending.ErrConsistencyGap):
		// Already logged by the coordinator.
		jsonError(w, http.StatusInternalServerError, "Book availability and loan records are out of sync.")
	default:
		slog.Error("loan operation failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "An error occurred.")
	}
}
