// Package storetest holds behaviour checks shared by every store backend.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) store.Store

// Run exercises s against the store.Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("Books", func(t *testing.T) { testBooks(t, newStore(t)) })
	t.Run("Availability", func(t *testing.T) { testAvailability(t, newStore(t)) })
	t.Run("ConcurrentReserve", func(t *testing.T) { testConcurrentReserve(t, newStore(t)) })
	t.Run("DeleteOnLoan", func(t *testing.T) { testDeleteOnLoan(t, newStore(t)) })
	t.Run("Covers", func(t *testing.T) { testCovers(t, newStore(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Loans", func(t *testing.T) { testLoans(t, newStore(t)) })
	t.Run("UnknownIDs", func(t *testing.T) { testUnknownIDs(t, newStore(t)) })
}

// SeedBook creates an available book.
func SeedBook(t *testing.T, s store.Store, title string) *model.Book {
	t.Helper()
	b, err := s.CreateBook(context.Background(), &model.Book{Title: title, Author: "Author", Price: 9.5})
	require.NoError(t, err)
	require.NotNil(t, b)
	return b
}

// SeedUser creates a user whose username and email derive from username.
func SeedUser(t *testing.T, s store.Store, username string) *model.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), model.NewUser(username, username+"@example.com", ""))
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}

func testBooks(t *testing.T, s store.Store) {
	ctx := context.Background()

	b := SeedBook(t, s, "Dune")
	assert.True(t, s.ValidID(b.ID))
	assert.Equal(t, "Dune", b.Title)
	assert.Equal(t, model.Available, b.IsAvailable)

	SeedBook(t, s, "Emma")
	books, err := s.ListBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 2)

	title := "Dune Messiah"
	price := 12.0
	updated, err := s.UpdateBook(ctx, b.ID, model.BookUpdate{Title: &title, Price: &price})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Dune Messiah", updated.Title)
	assert.Equal(t, "Author", updated.Author)
	assert.Equal(t, 12.0, updated.Price)

	got, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	removed, err := s.DeleteBook(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, b.ID, removed.ID)

	got, err = s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testAvailability(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := SeedBook(t, s, "Dune")

	res, err := s.CompareAndSetAvailability(ctx, b.ID, model.Available, model.OnLoan)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Modified)

	// The precondition no longer holds.
	res, err = s.CompareAndSetAvailability(ctx, b.ID, model.Available, model.OnLoan)
	require.NoError(t, err)
	assert.EqualValues(t, 0, res.Modified)

	got, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OnLoan, got.IsAvailable)

	res, err = s.SetAvailability(ctx, b.ID, model.Available)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Matched)
	assert.EqualValues(t, 1, res.Modified)

	// Writing the current value matches the book but changes nothing.
	res, err = s.SetAvailability(ctx, b.ID, model.Available)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Matched)
	assert.EqualValues(t, 0, res.Modified)

	got, err = s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Available, got.IsAvailable)
}

func testConcurrentReserve(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := SeedBook(t, s, "Dune")

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int64
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.CompareAndSetAvailability(ctx, b.ID, model.Available, model.OnLoan)
			assert.NoError(t, err)
			mu.Lock()
			wins += res.Modified
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)
}

func testDeleteOnLoan(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := SeedBook(t, s, "Dune")

	_, err := s.CompareAndSetAvailability(ctx, b.ID, model.Available, model.OnLoan)
	require.NoError(t, err)

	removed, err := s.DeleteBook(ctx, b.ID)
	assert.ErrorIs(t, err, store.ErrBookOnLoan)
	assert.Nil(t, removed)

	got, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got, "a book on loan must survive a delete")

	_, err = s.SetAvailability(ctx, b.ID, model.Available)
	require.NoError(t, err)
	removed, err = s.DeleteBook(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, b.ID, removed.ID)
}

func testCovers(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := SeedBook(t, s, "Dune")

	data, mime, err := s.GetBookCover(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Empty(t, mime)

	res, err := s.SetBookCover(ctx, b.ID, []byte("jpeg bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Matched)
	assert.EqualValues(t, 1, res.Modified)

	res, err = s.SetBookCover(ctx, b.ID, []byte("jpeg bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Matched)
	assert.EqualValues(t, 0, res.Modified)

	data, mime, err = s.GetBookCover(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))
	assert.Equal(t, "image/jpeg", mime)

	got, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", got.CoverMime)
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()

	u := SeedUser(t, s, "ana")
	assert.True(t, s.ValidID(u.ID))
	assert.Equal(t, model.RoleUser, u.Role)
	assert.Equal(t, model.NoPenalty, u.Penalty)

	_, err := s.CreateUser(ctx, model.NewUser("ana", "other@example.com", ""))
	assert.ErrorIs(t, err, store.ErrDuplicate)

	found, err := s.FindUserByUsernameOrEmail(ctx, "nobody", "ana@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, u.ID, found.ID)

	found, err = s.FindUserByUsernameAndEmail(ctx, "ana", "wrong@example.com")
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = s.FindUserByUsernameAndEmail(ctx, "ana", "ana@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)

	res, err := s.UpdateUserRole(ctx, u.ID, model.RoleAdmin)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Matched)
	assert.EqualValues(t, 1, res.Modified)

	res, err = s.UpdateUserRole(ctx, u.ID, model.RoleAdmin)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Matched)
	assert.EqualValues(t, 0, res.Modified)

	penalty := model.Penalty{Reason: "Late return", Fine: 2.5}
	res, err = s.UpdateUserPenalty(ctx, u.ID, penalty)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Modified)

	res, err = s.UpdateUserPenalty(ctx, u.ID, penalty)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Matched)
	assert.EqualValues(t, 0, res.Modified)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, got.Role)
	assert.Equal(t, penalty, got.Penalty)

	SeedUser(t, s, "bor")
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func testLoans(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := SeedBook(t, s, "Dune")
	u := SeedUser(t, s, "ana")

	loanDate := time.Date(2024, 10, 18, 9, 30, 0, 0, time.UTC)
	l, err := s.CreateLoan(ctx, &model.Loan{
		BookID:     b.ID,
		UserID:     u.ID,
		LoanDate:   loanDate,
		ReturnDate: model.DueDate(loanDate, nil),
	})
	require.NoError(t, err)
	require.NotEmpty(t, l.ID)

	got, err := s.GetLoanByBook(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, l.ID, got.ID)
	assert.Equal(t, u.ID, got.UserID)
	assert.True(t, got.LoanDate.Equal(loanDate))
	assert.True(t, got.ReturnDate.Equal(loanDate.Add(model.DefaultLoanPeriod)))

	loans, err := s.ListLoans(ctx)
	require.NoError(t, err)
	assert.Len(t, loans, 1)

	n, err := s.DeleteLoan(ctx, l.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = s.DeleteLoan(ctx, l.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	got, err = s.GetLoanByBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testUnknownIDs(t *testing.T, s store.Store) {
	ctx := context.Background()
	assert.False(t, s.ValidID(""))
	assert.False(t, s.ValidID("not an id"))

	// Delete a freshly created book to get a well-formed id that matches nothing.
	b := SeedBook(t, s, "Gone")
	_, err := s.DeleteBook(ctx, b.ID)
	require.NoError(t, err)

	got, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	res, err := s.SetAvailability(ctx, b.ID, model.Available)
	require.NoError(t, err)
	assert.EqualValues(t, 0, res.Matched)

	updated, err := s.UpdateBook(ctx, b.ID, model.BookUpdate{})
	require.NoError(t, err)
	assert.Nil(t, updated)

	user, err := s.GetUser(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, user)
}
