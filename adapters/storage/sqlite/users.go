package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/asistenteai/asistente/domain"
)

// ErrUsernameTaken is returned when registering a username that exists.
var ErrUsernameTaken = errors.New("username already taken")

// ErrUserNotFound is returned by GetUserByUsername for unknown usernames.
var ErrUserNotFound = errors.New("user not found")

// CreateUser inserts a new login account with an already-hashed password.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (domain.User, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`,
		username, passwordHash,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.User{}, ErrUsernameTaken
		}
		return domain.User{}, fmt.Errorf("inserting user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.User{}, fmt.Errorf("reading user id: %w", err)
	}
	return domain.User{ID: id, Username: username, PasswordHash: passwordHash}, nil
}

// GetUserByUsername looks up a login account.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash FROM users WHERE username = ?`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}
