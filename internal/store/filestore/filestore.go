// Package filestore keeps the whole library in a single JSON document on disk.
//
// Every call re-reads the file and every write replaces it atomically through
// a temporary file and rename. A mutex serialises read-modify-write cycles, so
// the conditional availability update is atomic within one process. Sharing a
// file between processes is not supported.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// bookRecord is a book as persisted, cover bytes included.
type bookRecord struct {
	model.Book
	Cover []byte `json:"cover,omitempty"`
}

type document struct {
	Books []bookRecord `json:"books"`
	Users []model.User `json:"users"`
	Loans []model.Loan `json:"loans"`
}

// FileStore is the JSON file backend. Identifiers are UUIDs.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ store.Store = (*FileStore)(nil)

// Open returns a store backed by the file at path, creating an empty document
// if the file does not exist yet.
func Open(path string) (*FileStore, error) {
	s := &FileStore{path: path}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		if err := s.write(&document{}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("checking data file: %w", err)
	}

	// Fail early on a corrupt file.
	if _, err := s.read(); err != nil {
		return nil, err
	}
	return s, nil
}

// ValidID reports whether id is a UUID.
func (s *FileStore) ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Close is a no-op; the file is not held open between calls.
func (s *FileStore) Close() error {
	return nil
}

func newID() string {
	return uuid.NewString()
}

func (s *FileStore) read() (*document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading data file: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing data file: %w", err)
	}
	return &doc, nil
}

func (s *FileStore) write(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding data file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".knjiznica-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing data file: %w", err)
	}
	return nil
}

// view runs fn on a fresh copy of the document.
func (s *FileStore) view(ctx context.Context, fn func(*document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	return fn(doc)
}

// update runs fn on a fresh copy of the document and persists it when fn
// reports a change.
func (s *FileStore) update(ctx context.Context, fn func(*document) (bool, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	changed, err := fn(doc)
	if err != nil || !changed {
		return err
	}
	return s.write(doc)
}

func (d *document) book(id string) *bookRecord {
	for i := range d.Books {
		if d.Books[i].ID == id {
			return &d.Books[i]
		}
	}
	return nil
}

func (d *document) user(id string) *model.User {
	for i := range d.Users {
		if d.Users[i].ID == id {
			return &d.Users[i]
		}
	}
	return nil
}
