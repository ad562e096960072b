package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLStore is the SQLite backend. Identifiers are decimal row ids.
type SQLStore struct {
	db *sql.DB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps an open database whose schema has been ensured.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// ValidID reports whether id is a positive integer.
func (s *SQLStore) ValidID(id string) bool {
	_, ok := parseID(id)
	return ok
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	code := serr.Code()
	if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	// Without extended result codes only the primary code is reported.
	return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(serr.Error(), "UNIQUE")
}

// updateResult converts RowsAffected for statements whose WHERE clause holds
// only on rows the statement changes, such as a conditional update.
func updateResult(res sql.Result) (UpdateResult, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{Matched: n, Modified: n}, nil
}

// changeResult is updateResult for writes that skip rows already holding the
// new values. SQLite does not count such rows, so when nothing changed it
// checks whether the row exists to tell a no-op from a missing record.
func (s *SQLStore) changeResult(ctx context.Context, res sql.Result, table string, id int64) (UpdateResult, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return UpdateResult{}, err
	}
	if n > 0 {
		return UpdateResult{Matched: n, Modified: n}, nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = ?)`, id,
	).Scan(&exists); err != nil {
		return UpdateResult{}, err
	}
	if exists {
		return UpdateResult{Matched: 1}, nil
	}
	return UpdateResult{}, nil
}
