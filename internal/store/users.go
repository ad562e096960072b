package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/knjiznica/internal/model"
)

const userColumns = `id, username, email, name, role, penalty_reason, penalty_fine`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var (
		u  model.User
		id int64
	)
	if err := row.Scan(&id, &u.Username, &u.Email, &u.Name, &u.Role, &u.Penalty.Reason, &u.Penalty.Fine); err != nil {
		return nil, err
	}
	u.ID = formatID(id)
	return &u, nil
}

func (s *SQLStore) queryUser(ctx context.Context, where string, args ...any) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// ListUsers returns all users ordered by id.
func (s *SQLStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// GetUser returns a user by ID.
func (s *SQLStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	u, err := s.queryUser(ctx, `id = ?`, n)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// CreateUser inserts a new user. A reused username or email yields ErrDuplicate.
func (s *SQLStore) CreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, name, role, penalty_reason, penalty_fine)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.Name, u.Role, u.Penalty.Reason, u.Penalty.Fine,
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	return s.GetUser(ctx, formatID(id))
}

// FindUserByUsernameOrEmail returns a user matching either field.
func (s *SQLStore) FindUserByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	u, err := s.queryUser(ctx, `username = ? OR email = ? ORDER BY id LIMIT 1`, username, email)
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return u, nil
}

// FindUserByUsernameAndEmail returns the user matching both fields.
func (s *SQLStore) FindUserByUsernameAndEmail(ctx context.Context, username, email string) (*model.User, error) {
	u, err := s.queryUser(ctx, `username = ? AND email = ?`, username, email)
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return u, nil
}

// UpdateUserRole updates a user's role.
func (s *SQLStore) UpdateUserRole(ctx context.Context, id, role string) (UpdateResult, error) {
	n, ok := parseID(id)
	if !ok {
		return UpdateResult{}, nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET role = ? WHERE id = ? AND role != ?`, role, n, role,
	)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("updating user role: %w", err)
	}
	result, err := s.changeResult(ctx, res, "users", n)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("updating user role: %w", err)
	}
	return result, nil
}

// UpdateUserPenalty replaces a user's penalty.
func (s *SQLStore) UpdateUserPenalty(ctx context.Context, id string, p model.Penalty) (UpdateResult, error) {
	n, ok := parseID(id)
	if !ok {
		return UpdateResult{}, nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET penalty_reason = ?, penalty_fine = ?
		 WHERE id = ? AND (penalty_reason != ? OR penalty_fine != ?)`,
		p.Reason, p.Fine, n, p.Reason, p.Fine,
	)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("updating user penalty: %w", err)
	}
	result, err := s.changeResult(ctx, res, "users", n)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("updating user penalty: %w", err)
	}
	return result, nil
}
