package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAppliesPragmas(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "library.sqlite3"))
	require.NoError(t, err)
	defer database.Close()

	var fk int
	require.NoError(t, database.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	require.Equal(t, 1, fk)

	var mode string
	require.NoError(t, database.QueryRow("PRAGMA journal_mode").Scan(&mode))
	require.Equal(t, "wal", mode)
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	database := NewTestDB(t)

	require.NoError(t, EnsureSchema(database))

	for _, table := range []string{"books", "users", "loans"} {
		var name string
		err := database.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestOneLoanPerBook(t *testing.T) {
	database := NewTestDB(t)

	_, err := database.Exec(`INSERT INTO books (title, author) VALUES ('Dune', 'Herbert')`)
	require.NoError(t, err)
	_, err = database.Exec(`INSERT INTO users (username, email, name) VALUES ('ana', 'ana@example.com', 'Ana')`)
	require.NoError(t, err)

	insert := `INSERT INTO loans (book_id, user_id, loan_date, return_date) VALUES (1, 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`
	_, err = database.Exec(insert)
	require.NoError(t, err)
	_, err = database.Exec(insert)
	require.Error(t, err)
}
