package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/knjiznica/internal/imaging"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// maxCoverBytes bounds cover uploads.
const maxCoverBytes = 5 << 20

// BooksHandler handles catalog endpoints.
type BooksHandler struct {
	Store store.Store
}

type createBookRequest struct {
	Title  string   `json:"title" validate:"required"`
	Author string   `json:"author" validate:"required"`
	Price  *float64 `json:"price" validate:"required,gte=0"`
}

type updateBookRequest struct {
	Title  *string  `json:"title" validate:"omitempty,min=1"`
	Author *string  `json:"author" validate:"omitempty,min=1"`
	Price  *float64 `json:"price" validate:"omitempty,gte=0"`
}

// List handles GET /api/books.
func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	books, err := h.Store.ListBooks(r.Context())
	if err != nil {
		slog.Error("failed to list books", "error", err)
		jsonError(w, http.StatusInternalServerError, "Failed to fetch books.")
		return
	}
	if books == nil {
		books = []model.Book{}
	}
	jsonResponse(w, http.StatusOK, books)
}

// Create handles POST /api/books.
func (h *BooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid JSON data.")
		return
	}
	if err := validate.Struct(req); err != nil {
		jsonError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	book, err := h.Store.CreateBook(r.Context(), &model.Book{
		Title:  req.Title,
		Author: req.Author,
		Price:  *req.Price,
	})
	if err != nil {
		slog.Error("failed to create book", "error", err)
		jsonError(w, http.StatusInternalServerError, "Failed to add book.")
		return
	}

	slog.Info("book added", "book", book.ID, "title", book.Title)
	jsonResponse(w, http.StatusCreated, map[string]string{
		"message": "New book added successfully.",
		"bookId":  book.ID,
	})
}

// Update handles PUT /api/books?id=.
func (h *BooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookID(w, r.URL.Query().Get("id"))
	if !ok {
		return
	}

	var req updateBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid JSON data.")
		return
	}
	update := model.BookUpdate{Title: req.Title, Author: req.Author, Price: req.Price}
	if update.Empty() {
		jsonError(w, http.StatusBadRequest, "No fields to update provided.")
		return
	}
	if err := validate.Struct(req); err != nil {
		jsonError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	book, err := h.Store.UpdateBook(r.Context(), id, update)
	if err != nil {
		slog.Error("failed to update book", "book", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "Failed to update book.")
		return
	}
	if book == nil {
		jsonError(w, http.StatusNotFound, "Book not found.")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"message": "Book updated successfully.",
		"book":    book,
	})
}

// Delete handles DELETE /api/books?id=. Books on loan cannot be removed.
func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookID(w, r.URL.Query().Get("id"))
	if !ok {
		return
	}

	removed, err := h.Store.DeleteBook(r.Context(), id)
	if errors.Is(err, store.ErrBookOnLoan) {
		jsonError(w, http.StatusConflict, "Book is on loan and cannot be removed.")
		return
	}
	if err != nil {
		slog.Error("failed to delete book", "book", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "Failed to remove book.")
		return
	}
	if removed == nil {
		jsonError(w, http.StatusNotFound, "Book not found.")
		return
	}

	slog.Info("book removed", "book", id)
	jsonResponse(w, http.StatusOK, removed)
}

// UploadCover handles PUT /api/books/{id}/cover.
func (h *BooksHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookID(w, r.PathValue("id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCoverBytes)
	if err := r.ParseMultipartForm(maxCoverBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "File too large or invalid multipart form.")
		return
	}

	file, _, err := r.FormFile("cover")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "Cover file required.")
		return
	}
	defer file.Close()

	cover, err := imaging.ProcessCover(file)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupported) {
			jsonError(w, http.StatusBadRequest, "Cover must be a JPEG, PNG or WebP image.")
			return
		}
		slog.Error("failed to process cover", "book", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "Failed to process cover.")
		return
	}

	res, err := h.Store.SetBookCover(r.Context(), id, cover.Data, cover.MIME)
	if err != nil {
		slog.Error("failed to save cover", "book", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "Failed to save cover.")
		return
	}
	if res.Matched == 0 {
		jsonError(w, http.StatusNotFound, "Book not found.")
		return
	}

	jsonMessage(w, http.StatusOK, "Cover uploaded successfully.")
}

// GetCover handles GET /api/books/{id}/cover.
func (h *BooksHandler) GetCover(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookID(w, r.PathValue("id"))
	if !ok {
		return
	}

	data, mime, err := h.Store.GetBookCover(r.Context(), id)
	if err != nil {
		slog.Error("failed to get cover", "book", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "Failed to get cover.")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "No cover.")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// bookID checks a book id taken from the request and writes a 400 when it is
// missing or malformed.
func (h *BooksHandler) bookID(w http.ResponseWriter, id string) (string, bool) {
	if id == "" {
		jsonError(w, http.StatusBadRequest, "Book ID is required.")
		return "", false
	}
	if !h.Store.ValidID(id) {
		jsonError(w, http.StatusBadRequest, "Invalid book ID.")
		return "", false
	}
	return id, true
}
