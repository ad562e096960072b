// Package mongostore is the MongoDB backend. Books, users and loans live in
// their own collections and are addressed by object ids.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/erazemk/knjiznica/internal/store"
)

// Collection names.
const (
	booksCollection = "books"
	usersCollection = "users"
	loansCollection = "loans"
)

// MongoStore is the document database backend.
type MongoStore struct {
	client *mongo.Client
	books  *mongo.Collection
	users  *mongo.Collection
	loans  *mongo.Collection
}

var _ store.Store = (*MongoStore)(nil)

// Connect dials uri, selects database dbName and ensures its indexes.
func Connect(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	database := client.Database(dbName)
	s := &MongoStore{
		client: client,
		books:  database.Collection(booksCollection),
		users:  database.Collection(usersCollection),
		loans:  database.Collection(loansCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// ensureIndexes backs the uniqueness rules: one loan per book, unique
// usernames and emails.
func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	if _, err := s.loans.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "bookId", Value: 1}},
		Options: unique,
	}); err != nil {
		return fmt.Errorf("creating loans index: %w", err)
	}

	if _, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
	}); err != nil {
		return fmt.Errorf("creating users indexes: %w", err)
	}
	return nil
}

// ValidID reports whether id is a 24 character hex object id.
func (s *MongoStore) ValidID(id string) bool {
	_, err := primitive.ObjectIDFromHex(id)
	return err == nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

// Drop removes the whole database. Used by tests.
func (s *MongoStore) Drop(ctx context.Context) error {
	return s.books.Database().Drop(ctx)
}

func objectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	return oid, err == nil
}

func byID(oid primitive.ObjectID) bson.D {
	return bson.D{{Key: "_id", Value: oid}}
}

func updateResult(res *mongo.UpdateResult) store.UpdateResult {
	return store.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}
}

// findOne decodes the first match into out and reports whether one existed.
func findOne(ctx context.Context, c *mongo.Collection, filter any, out any, opts ...*options.FindOneOptions) (bool, error) {
	err := c.FindOne(ctx, filter, opts...).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
