package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/knjiznica/internal/model"
)

const bookColumns = `id, title, author, price, is_available, cover_mime`

func scanBook(row interface{ Scan(...any) error }) (*model.Book, error) {
	var (
		b         model.Book
		id        int64
		coverMime sql.NullString
	)
	if err := row.Scan(&id, &b.Title, &b.Author, &b.Price, &b.IsAvailable, &coverMime); err != nil {
		return nil, err
	}
	b.ID = formatID(id)
	b.CoverMime = coverMime.String
	return &b, nil
}

// ListBooks returns all books ordered by id.
func (s *SQLStore) ListBooks(ctx context.Context) ([]model.Book, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	defer rows.Close()

	var books []model.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning book: %w", err)
		}
		books = append(books, *b)
	}
	return books, rows.Err()
}

// GetBook returns a book by ID.
func (s *SQLStore) GetBook(ctx context.Context, id string) (*model.Book, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	b, err := scanBook(s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, n))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting book: %w", err)
	}
	return b, nil
}

// CreateBook inserts a new, available book.
func (s *SQLStore) CreateBook(ctx context.Context, b *model.Book) (*model.Book, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO books (title, author, price, is_available) VALUES (?, ?, ?, ?)`,
		b.Title, b.Author, b.Price, model.Available,
	)
	if err != nil {
		return nil, fmt.Errorf("creating book: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting book id: %w", err)
	}

	return s.GetBook(ctx, formatID(id))
}

// UpdateBook overwrites the descriptive fields set in u.
func (s *SQLStore) UpdateBook(ctx context.Context, id string, u model.BookUpdate) (*model.Book, error) {
	b, err := s.GetBook(ctx, id)
	if err != nil || b == nil {
		return nil, err
	}
	u.Apply(b)

	_, err = s.db.ExecContext(ctx,
		`UPDATE books SET title = ?, author = ?, price = ? WHERE id = ?`,
		b.Title, b.Author, b.Price, b.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating book: %w", err)
	}
	return b, nil
}

// DeleteBook removes an available book and returns it as it was. A book on
// loan yields ErrBookOnLoan.
func (s *SQLStore) DeleteBook(ctx context.Context, id string) (*model.Book, error) {
	b, err := s.GetBook(ctx, id)
	if err != nil || b == nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM books WHERE id = ? AND is_available = ?`, b.ID, model.Available,
	)
	if err != nil {
		return nil, fmt.Errorf("deleting book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("deleting book: %w", err)
	}
	if n == 0 {
		// Either lent out or removed since the read above.
		current, err := s.GetBook(ctx, id)
		if err != nil || current == nil {
			return nil, err
		}
		return nil, ErrBookOnLoan
	}
	return b, nil
}

// SetAvailability sets a book's availability flag.
func (s *SQLStore) SetAvailability(ctx context.Context, id string, value int) (UpdateResult, error) {
	n, ok := parseID(id)
	if !ok {
		return UpdateResult{}, nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE books SET is_available = ? WHERE id = ? AND is_available != ?`,
		value, n, value,
	)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("setting availability: %w", err)
	}
	result, err := s.changeResult(ctx, res, "books", n)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("setting availability: %w", err)
	}
	return result, nil
}

// CompareAndSetAvailability sets the flag to `to` only while it equals `from`.
// The check and the write are one statement, so concurrent callers cannot both
// succeed.
func (s *SQLStore) CompareAndSetAvailability(ctx context.Context, id string, from, to int) (UpdateResult, error) {
	n, ok := parseID(id)
	if !ok {
		return UpdateResult{}, nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE books SET is_available = ? WHERE id = ? AND is_available = ?`,
		to, n, from,
	)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("setting availability: %w", err)
	}
	return updateResult(res)
}

// SetBookCover stores a book's cover image.
func (s *SQLStore) SetBookCover(ctx context.Context, id string, data []byte, mime string) (UpdateResult, error) {
	n, ok := parseID(id)
	if !ok {
		return UpdateResult{}, nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE books SET cover = ?, cover_mime = ?
		 WHERE id = ? AND (cover IS NOT ? OR cover_mime IS NOT ?)`,
		data, mime, n, data, mime,
	)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("setting book cover: %w", err)
	}
	result, err := s.changeResult(ctx, res, "books", n)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("setting book cover: %w", err)
	}
	return result, nil
}

// GetBookCover returns a book's cover image and MIME type.
func (s *SQLStore) GetBookCover(ctx context.Context, id string) ([]byte, string, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, "", nil
	}
	var (
		data []byte
		mime sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT cover, cover_mime FROM books WHERE id = ?`, n,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting book cover: %w", err)
	}
	return data, mime.String, nil
}
