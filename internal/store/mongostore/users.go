package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

type userDoc struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Username string             `bson:"username"`
	Email    string             `bson:"email"`
	Name     string             `bson:"name"`
	Role     string             `bson:"role"`
	Penalty  model.Penalty      `bson:"penalty"`
}

func (d userDoc) model() *model.User {
	return &model.User{
		ID:       d.ID.Hex(),
		Username: d.Username,
		Email:    d.Email,
		Name:     d.Name,
		Role:     d.Role,
		Penalty:  d.Penalty,
	}
}

// ListUsers returns all users.
func (s *MongoStore) ListUsers(ctx context.Context) ([]model.User, error) {
	cur, err := s.users.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding users: %w", err)
	}

	users := make([]model.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, *d.model())
	}
	return users, nil
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.D) (*model.User, error) {
	var d userDoc
	found, err := findOne(ctx, s.users, filter, &d)
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	if !found {
		return nil, nil
	}
	return d.model(), nil
}

// GetUser returns a user by ID.
func (s *MongoStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, nil
	}
	return s.findUser(ctx, byID(oid))
}

// CreateUser inserts a new user. A reused username or email yields
// store.ErrDuplicate.
func (s *MongoStore) CreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	d := userDoc{
		ID:       primitive.NewObjectID(),
		Username: u.Username,
		Email:    u.Email,
		Name:     u.Name,
		Role:     u.Role,
		Penalty:  u.Penalty,
	}
	_, err := s.users.InsertOne(ctx, d)
	if mongo.IsDuplicateKeyError(err) {
		return nil, store.ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return d.model(), nil
}

// FindUserByUsernameOrEmail returns a user matching either field.
func (s *MongoStore) FindUserByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	return s.findUser(ctx, bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "username", Value: username}},
		bson.D{{Key: "email", Value: email}},
	}}})
}

// FindUserByUsernameAndEmail returns the user matching both fields.
func (s *MongoStore) FindUserByUsernameAndEmail(ctx context.Context, username, email string) (*model.User, error) {
	return s.findUser(ctx, bson.D{
		{Key: "username", Value: username},
		{Key: "email", Value: email},
	})
}

// UpdateUserRole updates a user's role.
func (s *MongoStore) UpdateUserRole(ctx context.Context, id, role string) (store.UpdateResult, error) {
	return s.setUserField(ctx, id, "role", role)
}

// UpdateUserPenalty replaces a user's penalty.
func (s *MongoStore) UpdateUserPenalty(ctx context.Context, id string, p model.Penalty) (store.UpdateResult, error) {
	return s.setUserField(ctx, id, "penalty", p)
}

func (s *MongoStore) setUserField(ctx context.Context, id, field string, value any) (store.UpdateResult, error) {
	oid, ok := objectID(id)
	if !ok {
		return store.UpdateResult{}, nil
	}
	res, err := s.users.UpdateOne(ctx, byID(oid),
		bson.D{{Key: "$set", Value: bson.D{{Key: field, Value: value}}}},
	)
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("updating user %s: %w", field, err)
	}
	return updateResult(res), nil
}
