package api

import (
	"net/http"

	"github.com/erazemk/knjiznica/internal/lending"
	"github.com/erazemk/knjiznica/internal/store"
)

// NewRouter creates the API router with all endpoints registered. Loans go
// through coord; everything else talks to s directly.
func NewRouter(s store.Store, coord *lending.Coordinator) http.Handler {
	mux := http.NewServeMux()

	books := &BooksHandler{Store: s}
	loans := &LoansHandler{Coordinator: coord, Reconciler: lending.NewReconciler(s)}
	users := &UsersHandler{Store: s}

	// Books.
	mux.HandleFunc("GET /api/books", books.List)
	mux.HandleFunc("POST /api/books", books.Create)
	mux.HandleFunc("PUT /api/books", books.Update)
	mux.HandleFunc("DELETE /api/books", books.Delete)
	mux.HandleFunc("PUT /api/books/{id}/cover", books.UploadCover)
	mux.HandleFunc("GET /api/books/{id}/cover", books.GetCover)

	// Loans.
	mux.HandleFunc("POST /api/books/loan", loans.Loan)
	mux.HandleFunc("PUT /api/books/return", loans.Return)
	mux.HandleFunc("GET /api/loans", loans.List)
	mux.HandleFunc("GET /api/loans/reconcile", loans.Reconcile)

	// Users.
	mux.HandleFunc("GET /api/users", users.List)
	mux.HandleFunc("POST /api/users", users.Create)
	mux.HandleFunc("POST /api/users/login", users.Login)
	mux.HandleFunc("PUT /api/users/upgrade", users.MakeAdmin)
	mux.HandleFunc("PUT /api/users", users.UpdatePenalty)

	return mux
}
