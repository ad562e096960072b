package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

type loanDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	BookID     primitive.ObjectID `bson:"bookId"`
	UserID     primitive.ObjectID `bson:"userId"`
	LoanDate   time.Time          `bson:"loanDate"`
	ReturnDate time.Time          `bson:"returnDate"`
}

func (d loanDoc) model() *model.Loan {
	return &model.Loan{
		ID:         d.ID.Hex(),
		BookID:     d.BookID.Hex(),
		UserID:     d.UserID.Hex(),
		LoanDate:   d.LoanDate,
		ReturnDate: d.ReturnDate,
	}
}

// CreateLoan inserts a loan. A second loan for the same book yields
// store.ErrDuplicate.
func (s *MongoStore) CreateLoan(ctx context.Context, l *model.Loan) (*model.Loan, error) {
	bookID, ok := objectID(l.BookID)
	if !ok {
		return nil, fmt.Errorf("creating loan: invalid book id %q", l.BookID)
	}
	userID, ok := objectID(l.UserID)
	if !ok {
		return nil, fmt.Errorf("creating loan: invalid user id %q", l.UserID)
	}

	d := loanDoc{
		ID:         primitive.NewObjectID(),
		BookID:     bookID,
		UserID:     userID,
		LoanDate:   l.LoanDate.UTC(),
		ReturnDate: l.ReturnDate.UTC(),
	}
	_, err := s.loans.InsertOne(ctx, d)
	if mongo.IsDuplicateKeyError(err) {
		return nil, store.ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("creating loan: %w", err)
	}
	return d.model(), nil
}

// GetLoanByBook returns the loan referencing a book, if any.
func (s *MongoStore) GetLoanByBook(ctx context.Context, bookID string) (*model.Loan, error) {
	oid, ok := objectID(bookID)
	if !ok {
		return nil, nil
	}
	var d loanDoc
	found, err := findOne(ctx, s.loans, bson.D{{Key: "bookId", Value: oid}}, &d)
	if err != nil {
		return nil, fmt.Errorf("getting loan by book: %w", err)
	}
	if !found {
		return nil, nil
	}
	return d.model(), nil
}

// DeleteLoan removes a loan and returns how many documents were deleted.
func (s *MongoStore) DeleteLoan(ctx context.Context, id string) (int64, error) {
	oid, ok := objectID(id)
	if !ok {
		return 0, nil
	}
	res, err := s.loans.DeleteOne(ctx, byID(oid))
	if err != nil {
		return 0, fmt.Errorf("deleting loan: %w", err)
	}
	return res.DeletedCount, nil
}

// ListLoans returns all active loans, oldest first.
func (s *MongoStore) ListLoans(ctx context.Context) ([]model.Loan, error) {
	cur, err := s.loans.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "loanDate", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("listing loans: %w", err)
	}
	var docs []loanDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding loans: %w", err)
	}

	loans := make([]model.Loan, 0, len(docs))
	for _, d := range docs {
		loans = append(loans, *d.model())
	}
	return loans, nil
}
