package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

type bookDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Author      string             `bson:"author"`
	Price       float64            `bson:"price"`
	IsAvailable int                `bson:"is_available"`
	CoverMime   string             `bson:"cover_mime,omitempty"`
}

func (d bookDoc) model() *model.Book {
	return &model.Book{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Author:      d.Author,
		Price:       d.Price,
		IsAvailable: d.IsAvailable,
		CoverMime:   d.CoverMime,
	}
}

// withoutCover keeps cover bytes out of ordinary reads.
var withoutCover = bson.D{{Key: "cover", Value: 0}}

// ListBooks returns all books.
func (s *MongoStore) ListBooks(ctx context.Context) ([]model.Book, error) {
	cur, err := s.books.Find(ctx, bson.D{}, options.Find().SetProjection(withoutCover))
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	var docs []bookDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding books: %w", err)
	}

	books := make([]model.Book, 0, len(docs))
	for _, d := range docs {
		books = append(books, *d.model())
	}
	return books, nil
}

// GetBook returns a book by ID.
func (s *MongoStore) GetBook(ctx context.Context, id string) (*model.Book, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, nil
	}
	var d bookDoc
	found, err := findOne(ctx, s.books, byID(oid), &d, options.FindOne().SetProjection(withoutCover))
	if err != nil {
		return nil, fmt.Errorf("getting book: %w", err)
	}
	if !found {
		return nil, nil
	}
	return d.model(), nil
}

// CreateBook inserts a new, available book.
func (s *MongoStore) CreateBook(ctx context.Context, b *model.Book) (*model.Book, error) {
	d := bookDoc{
		ID:          primitive.NewObjectID(),
		Title:       b.Title,
		Author:      b.Author,
		Price:       b.Price,
		IsAvailable: model.Available,
	}
	if _, err := s.books.InsertOne(ctx, d); err != nil {
		return nil, fmt.Errorf("creating book: %w", err)
	}
	return d.model(), nil
}

// UpdateBook overwrites the descriptive fields set in u.
func (s *MongoStore) UpdateBook(ctx context.Context, id string, u model.BookUpdate) (*model.Book, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, nil
	}

	set := bson.D{}
	if u.Title != nil {
		set = append(set, bson.E{Key: "title", Value: *u.Title})
	}
	if u.Author != nil {
		set = append(set, bson.E{Key: "author", Value: *u.Author})
	}
	if u.Price != nil {
		set = append(set, bson.E{Key: "price", Value: *u.Price})
	}
	if len(set) == 0 {
		return s.GetBook(ctx, id)
	}

	if _, err := s.books.UpdateOne(ctx, byID(oid), bson.D{{Key: "$set", Value: set}}); err != nil {
		return nil, fmt.Errorf("updating book: %w", err)
	}
	return s.GetBook(ctx, id)
}

// DeleteBook removes an available book and returns it as it was. The filter
// includes the availability flag, so a book lent out after the read is kept
// and store.ErrBookOnLoan returned.
func (s *MongoStore) DeleteBook(ctx context.Context, id string) (*model.Book, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, nil
	}
	var d bookDoc
	found, err := findOne(ctx, s.books, byID(oid), &d, options.FindOne().SetProjection(withoutCover))
	if err != nil {
		return nil, fmt.Errorf("getting book: %w", err)
	}
	if !found {
		return nil, nil
	}

	filter := bson.D{{Key: "_id", Value: oid}, {Key: "is_available", Value: model.Available}}
	res, err := s.books.DeleteOne(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("deleting book: %w", err)
	}
	if res.DeletedCount == 0 {
		found, err := findOne(ctx, s.books, byID(oid), &bookDoc{}, options.FindOne().SetProjection(withoutCover))
		if err != nil {
			return nil, fmt.Errorf("getting book: %w", err)
		}
		if !found {
			return nil, nil
		}
		return nil, store.ErrBookOnLoan
	}
	return d.model(), nil
}

// SetAvailability sets a book's availability flag.
func (s *MongoStore) SetAvailability(ctx context.Context, id string, value int) (store.UpdateResult, error) {
	oid, ok := objectID(id)
	if !ok {
		return store.UpdateResult{}, nil
	}
	res, err := s.books.UpdateOne(ctx, byID(oid),
		bson.D{{Key: "$set", Value: bson.D{{Key: "is_available", Value: value}}}},
	)
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("setting availability: %w", err)
	}
	return updateResult(res), nil
}

// CompareAndSetAvailability sets the flag to `to` only while it equals `from`.
// The filter includes the current value, so MongoDB's single-document
// atomicity lets exactly one concurrent caller modify the book.
func (s *MongoStore) CompareAndSetAvailability(ctx context.Context, id string, from, to int) (store.UpdateResult, error) {
	oid, ok := objectID(id)
	if !ok {
		return store.UpdateResult{}, nil
	}
	filter := bson.D{{Key: "_id", Value: oid}, {Key: "is_available", Value: from}}
	res, err := s.books.UpdateOne(ctx, filter,
		bson.D{{Key: "$set", Value: bson.D{{Key: "is_available", Value: to}}}},
	)
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("setting availability: %w", err)
	}
	return updateResult(res), nil
}

// SetBookCover stores a book's cover image.
func (s *MongoStore) SetBookCover(ctx context.Context, id string, data []byte, mime string) (store.UpdateResult, error) {
	oid, ok := objectID(id)
	if !ok {
		return store.UpdateResult{}, nil
	}
	res, err := s.books.UpdateOne(ctx, byID(oid), bson.D{{Key: "$set", Value: bson.D{
		{Key: "cover", Value: data},
		{Key: "cover_mime", Value: mime},
	}}})
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("setting book cover: %w", err)
	}
	return updateResult(res), nil
}

// GetBookCover returns a book's cover image and MIME type.
func (s *MongoStore) GetBookCover(ctx context.Context, id string) ([]byte, string, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, "", nil
	}
	var d struct {
		Cover     []byte `bson:"cover"`
		CoverMime string `bson:"cover_mime"`
	}
	found, err := findOne(ctx, s.books, byID(oid), &d)
	if err != nil {
		return nil, "", fmt.Errorf("getting book cover: %w", err)
	}
	if !found {
		return nil, "", nil
	}
	return d.Cover, d.CoverMime, nil
}
