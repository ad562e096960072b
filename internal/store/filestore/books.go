package filestore

import (
	"bytes"
	"context"
	"slices"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// ListBooks returns all books in insertion order.
func (s *FileStore) ListBooks(ctx context.Context) ([]model.Book, error) {
	var books []model.Book
	err := s.view(ctx, func(d *document) error {
		for _, r := range d.Books {
			books = append(books, r.Book)
		}
		return nil
	})
	return books, err
}

// GetBook returns a book by ID.
func (s *FileStore) GetBook(ctx context.Context, id string) (*model.Book, error) {
	var book *model.Book
	err := s.view(ctx, func(d *document) error {
		if r := d.book(id); r != nil {
			b := r.Book
			book = &b
		}
		return nil
	})
	return book, err
}

// CreateBook appends a new, available book.
func (s *FileStore) CreateBook(ctx context.Context, b *model.Book) (*model.Book, error) {
	created := *b
	created.ID = newID()
	created.IsAvailable = model.Available
	created.CoverMime = ""

	err := s.update(ctx, func(d *document) (bool, error) {
		d.Books = append(d.Books, bookRecord{Book: created})
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateBook overwrites the descriptive fields set in u.
func (s *FileStore) UpdateBook(ctx context.Context, id string, u model.BookUpdate) (*model.Book, error) {
	var book *model.Book
	err := s.update(ctx, func(d *document) (bool, error) {
		r := d.book(id)
		if r == nil {
			return false, nil
		}
		u.Apply(&r.Book)
		b := r.Book
		book = &b
		return true, nil
	})
	return book, err
}

// DeleteBook removes an available book and returns it as it was. A book on
// loan yields store.ErrBookOnLoan.
func (s *FileStore) DeleteBook(ctx context.Context, id string) (*model.Book, error) {
	var book *model.Book
	err := s.update(ctx, func(d *document) (bool, error) {
		i := slices.IndexFunc(d.Books, func(r bookRecord) bool { return r.ID == id })
		if i < 0 {
			return false, nil
		}
		if d.Books[i].IsAvailable != model.Available {
			return false, store.ErrBookOnLoan
		}
		b := d.Books[i].Book
		book = &b
		d.Books = slices.Delete(d.Books, i, i+1)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// SetAvailability sets a book's availability flag.
func (s *FileStore) SetAvailability(ctx context.Context, id string, value int) (store.UpdateResult, error) {
	var res store.UpdateResult
	err := s.update(ctx, func(d *document) (bool, error) {
		r := d.book(id)
		if r == nil {
			return false, nil
		}
		res.Matched = 1
		if r.IsAvailable == value {
			return false, nil
		}
		r.IsAvailable = value
		res.Modified = 1
		return true, nil
	})
	return res, err
}

// CompareAndSetAvailability sets the flag to `to` only while it equals `from`.
func (s *FileStore) CompareAndSetAvailability(ctx context.Context, id string, from, to int) (store.UpdateResult, error) {
	var res store.UpdateResult
	err := s.update(ctx, func(d *document) (bool, error) {
		r := d.book(id)
		if r == nil || r.IsAvailable != from {
			return false, nil
		}
		res.Matched = 1
		r.IsAvailable = to
		res.Modified = 1
		return true, nil
	})
	return res, err
}

// SetBookCover stores a book's cover image.
func (s *FileStore) SetBookCover(ctx context.Context, id string, data []byte, mime string) (store.UpdateResult, error) {
	var res store.UpdateResult
	err := s.update(ctx, func(d *document) (bool, error) {
		r := d.book(id)
		if r == nil {
			return false, nil
		}
		if bytes.Equal(r.Cover, data) && r.CoverMime == mime {
			res = store.UpdateResult{Matched: 1}
			return false, nil
		}
		r.Cover = data
		r.CoverMime = mime
		res = store.UpdateResult{Matched: 1, Modified: 1}
		return true, nil
	})
	return res, err
}

// GetBookCover returns a book's cover image and MIME type.
func (s *FileStore) GetBookCover(ctx context.Context, id string) ([]byte, string, error) {
	var (
		data []byte
		mime string
	)
	err := s.view(ctx, func(d *document) error {
		if r := d.book(id); r != nil {
			data, mime = r.Cover, r.CoverMime
		}
		return nil
	})
	return data, mime, err
}
