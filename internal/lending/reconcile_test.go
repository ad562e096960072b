package lending_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/lending"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
	"github.com/erazemk/knjiznica/internal/store/storetest"
)

var errDiskFull = errors.New("disk full")

// failingStore wraps a real store and fails selected loan writes.
type failingStore struct {
	store.Store
	failCreate       bool
	failDelete       bool
	failAvailability bool
}

func (f *failingStore) CreateLoan(ctx context.Context, l *model.Loan) (*model.Loan, error) {
	if f.failCreate {
		return nil, errDiskFull
	}
	return f.Store.CreateLoan(ctx, l)
}

func (f *failingStore) DeleteLoan(ctx context.Context, id string) (int64, error) {
	if f.failDelete {
		return 0, errDiskFull
	}
	return f.Store.DeleteLoan(ctx, id)
}

func (f *failingStore) SetAvailability(ctx context.Context, id string, value int) (store.UpdateResult, error) {
	if f.failAvailability {
		return store.UpdateResult{}, errDiskFull
	}
	return f.Store.SetAvailability(ctx, id, value)
}

func TestLoanCreationFailureLeavesGap(t *testing.T) {
	ctx := context.Background()
	s := &failingStore{Store: store.NewSQLStore(db.NewTestDB(t)), failCreate: true}
	c := lending.NewCoordinator(s)
	user := storetest.SeedUser(t, s, "ana")
	book := storetest.SeedBook(t, s, "Pod svobodnim soncem")

	_, err := c.LoanBook(ctx, lending.LoanRequest{UserID: user.ID, BookID: book.ID})
	require.Error(t, err)
	assert.ErrorIs(t, err, lending.ErrConsistencyGap)
	assert.ErrorIs(t, err, errDiskFull)

	// The reservation is not rolled back.
	got, err := c.Availability().GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OnLoan, got.IsAvailable)

	report, err := lending.NewReconciler(s).Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{book.ID}, report.Orphaned)
	assert.Empty(t, report.Dangling)
	assert.False(t, report.Clean())

	// Returning the book closes the gap.
	_, err = c.ReturnBook(ctx, book.ID)
	require.NoError(t, err)
	report, err = lending.NewReconciler(s).Check(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestLoanRemovalFailureKeepsBookOnLoan(t *testing.T) {
	ctx := context.Background()
	s := &failingStore{Store: store.NewSQLStore(db.NewTestDB(t))}
	c := lending.NewCoordinator(s)
	user := storetest.SeedUser(t, s, "ana")
	book := storetest.SeedBook(t, s, "Visoška kronika")

	_, err := c.LoanBook(ctx, lending.LoanRequest{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)

	s.failDelete = true
	_, err = c.ReturnBook(ctx, book.ID)
	assert.ErrorIs(t, err, lending.ErrPersist)
	assert.NotErrorIs(t, err, lending.ErrConsistencyGap)

	// Nothing changed: the book is still on loan under the same record.
	got, err := c.Availability().GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OnLoan, got.IsAvailable)
	assertConsistent(t, s)

	s.failDelete = false
	_, err = c.ReturnBook(ctx, book.ID)
	require.NoError(t, err)
	assertConsistent(t, s)
}

func TestAvailabilityFailureAfterRemovalLeavesGap(t *testing.T) {
	ctx := context.Background()
	s := &failingStore{Store: store.NewSQLStore(db.NewTestDB(t))}
	c := lending.NewCoordinator(s)
	user := storetest.SeedUser(t, s, "ana")
	book := storetest.SeedBook(t, s, "Kekec")

	_, err := c.LoanBook(ctx, lending.LoanRequest{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)

	s.failAvailability = true
	_, err = c.ReturnBook(ctx, book.ID)
	assert.ErrorIs(t, err, lending.ErrConsistencyGap)
	assert.ErrorIs(t, err, errDiskFull)

	report, err := lending.NewReconciler(s).Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{book.ID}, report.Orphaned)
	assert.Empty(t, report.Dangling)

	// Retrying the return closes the gap.
	s.failAvailability = false
	returned, err := c.ReturnBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Nil(t, returned)
	assertConsistent(t, s)
}

func TestAvailabilityFailureWithoutLoanIsPersistError(t *testing.T) {
	ctx := context.Background()
	s := &failingStore{Store: store.NewSQLStore(db.NewTestDB(t)), failAvailability: true}
	c := lending.NewCoordinator(s)
	book := storetest.SeedBook(t, s, "Jara gospoda")

	_, err := c.ReturnBook(ctx, book.ID)
	assert.ErrorIs(t, err, lending.ErrPersist)
	assert.NotErrorIs(t, err, lending.ErrConsistencyGap)
}

func TestReconcilerFindsDanglingLoans(t *testing.T) {
	ctx := context.Background()
	s := store.NewSQLStore(db.NewTestDB(t))
	user := storetest.SeedUser(t, s, "ana")
	book := storetest.SeedBook(t, s, "Solzice")

	// A loan written directly, bypassing the coordinator, for an available book.
	loan, err := s.CreateLoan(ctx, &model.Loan{
		BookID:     book.ID,
		UserID:     user.ID,
		LoanDate:   fixedNow,
		ReturnDate: fixedNow.Add(time.Hour),
	})
	require.NoError(t, err)

	report, err := lending.NewReconciler(s).Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{loan.ID}, report.Dangling)
	assert.Empty(t, report.Orphaned)
}

func TestReconcilerRunStopsOnCancel(t *testing.T) {
	s := store.NewSQLStore(db.NewTestDB(t))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		lending.NewReconciler(s).Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}
