package filestore

import (
	"context"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// ListUsers returns all users in insertion order.
func (s *FileStore) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := s.view(ctx, func(d *document) error {
		users = append(users, d.Users...)
		return nil
	})
	return users, err
}

// GetUser returns a user by ID.
func (s *FileStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user *model.User
	err := s.view(ctx, func(d *document) error {
		if u := d.user(id); u != nil {
			c := *u
			user = &c
		}
		return nil
	})
	return user, err
}

// CreateUser appends a new user. A reused username or email yields
// store.ErrDuplicate.
func (s *FileStore) CreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	created := *u
	created.ID = newID()

	err := s.update(ctx, func(d *document) (bool, error) {
		for _, existing := range d.Users {
			if existing.Username == u.Username || existing.Email == u.Email {
				return false, store.ErrDuplicate
			}
		}
		d.Users = append(d.Users, created)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *FileStore) findUser(ctx context.Context, match func(model.User) bool) (*model.User, error) {
	var user *model.User
	err := s.view(ctx, func(d *document) error {
		for _, u := range d.Users {
			if match(u) {
				user = &u
				return nil
			}
		}
		return nil
	})
	return user, err
}

// FindUserByUsernameOrEmail returns a user matching either field.
func (s *FileStore) FindUserByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	return s.findUser(ctx, func(u model.User) bool {
		return u.Username == username || u.Email == email
	})
}

// FindUserByUsernameAndEmail returns the user matching both fields.
func (s *FileStore) FindUserByUsernameAndEmail(ctx context.Context, username, email string) (*model.User, error) {
	return s.findUser(ctx, func(u model.User) bool {
		return u.Username == username && u.Email == email
	})
}

// UpdateUserRole updates a user's role.
func (s *FileStore) UpdateUserRole(ctx context.Context, id, role string) (store.UpdateResult, error) {
	return s.updateUser(ctx, id, func(u *model.User) bool {
		if u.Role == role {
			return false
		}
		u.Role = role
		return true
	})
}

// UpdateUserPenalty replaces a user's penalty.
func (s *FileStore) UpdateUserPenalty(ctx context.Context, id string, p model.Penalty) (store.UpdateResult, error) {
	return s.updateUser(ctx, id, func(u *model.User) bool {
		if u.Penalty == p {
			return false
		}
		u.Penalty = p
		return true
	})
}

func (s *FileStore) updateUser(ctx context.Context, id string, fn func(*model.User) bool) (store.UpdateResult, error) {
	var res store.UpdateResult
	err := s.update(ctx, func(d *document) (bool, error) {
		u := d.user(id)
		if u == nil {
			return false, nil
		}
		res.Matched = 1
		if !fn(u) {
			return false, nil
		}
		res.Modified = 1
		return true, nil
	})
	return res, err
}
