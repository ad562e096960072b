package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/knjiznica/internal/lending"
	"github.com/erazemk/knjiznica/internal/model"
)

// LoansHandler handles lending endpoints.
type LoansHandler struct {
	Coordinator *lending.Coordinator
	Reconciler  *lending.Reconciler
}

type loanRequest struct {
	UserID     string `json:"userId" validate:"required"`
	BookID     string `json:"bookId" validate:"required"`
	ReturnDate string `json:"returnDate"`
}

// Loan handles POST /api/books/loan.
func (h *LoansHandler) Loan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid JSON data.")
		return
	}
	if err := validate.Struct(req); err != nil {
		jsonError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	loan, err := h.Coordinator.LoanBook(r.Context(), lending.LoanRequest{
		UserID:     req.UserID,
		BookID:     req.BookID,
		ReturnDate: req.ReturnDate,
	})
	if err != nil {
		lendingError(w, err)
		return
	}

	jsonResponse(w, http.StatusCreated, map[string]any{
		"message": "Book loaned successfully.",
		"loan":    loan,
	})
}

// Return handles PUT /api/books/return?id=.
func (h *LoansHandler) Return(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, "Book ID is required.")
		return
	}

	if _, err := h.Coordinator.ReturnBook(r.Context(), id); err != nil {
		lendingError(w, err)
		return
	}

	jsonMessage(w, http.StatusOK, "Book returned successfully.")
}

// List handles GET /api/loans.
func (h *LoansHandler) List(w http.ResponseWriter, r *http.Request) {
	loans, err := h.Coordinator.Ledger().ListLoans(r.Context())
	if err != nil {
		slog.Error("failed to list loans", "error", err)
		jsonError(w, http.StatusInternalServerError, "Failed to fetch loans.")
		return
	}
	if loans == nil {
		loans = []model.Loan{}
	}
	jsonResponse(w, http.StatusOK, loans)
}

// Reconcile handles GET /api/loans/reconcile.
func (h *LoansHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.Reconciler.Check(r.Context())
	if err != nil {
		slog.Error("failed to reconcile loans", "error", err)
		jsonError(w, http.StatusInternalServerError, "Failed to check loan records.")
		return
	}
	if !report.Clean() {
		slog.Error("loan records out of sync",
			"orphaned_books", report.Orphaned, "dangling_loans", report.Dangling)
	}
	jsonResponse(w, http.StatusOK, report)
}
