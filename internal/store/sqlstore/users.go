package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vovakirdan/guildchat-server/internal/store"
)

const userColumns = `u.id, u.username, u.email, u.profile, u.description, u.created_at,
	u.is_online, u.is_staff, u.is_superuser, u.code`

func scanUser(row scanner, u *store.User) error {
	return row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.Profile,
		&u.Description,
		&u.CreatedAt,
		&u.IsOnline,
		&u.IsStaff,
		&u.IsSuperuser,
		&u.Code,
	)
}

// CreateUser creates a new account.
func (s *Store) CreateUser(ctx context.Context, nu store.NewUser) (*store.User, error) {
	query := `
		INSERT INTO users (username, email, created_at, is_staff, is_superuser, code)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	var id int64
	err := s.db.QueryRowContext(ctx, s.q(query),
		nu.Username, nu.Email, s.timestamp(), nu.IsStaff, nu.IsSuperuser, nu.Code,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = ?`

	var u store.User
	if err := scanUser(s.db.QueryRowContext(ctx, s.q(query), id), &u); err != nil {
		return nil, notFound("user", err)
	}
	return &u, nil
}

// GetUserBySession resolves the owner of a session.
func (s *Store) GetUserBySession(ctx context.Context, sessionID string) (*store.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		INNER JOIN user_sessions us ON us.user_id = u.id
		WHERE us.session_id = ?
	`
	var u store.User
	if err := scanUser(s.db.QueryRowContext(ctx, s.q(query), sessionID), &u); err != nil {
		return nil, notFound("session user", err)
	}
	return &u, nil
}

// CreateSession opens a new login session for a user.
func (s *Store) CreateSession(ctx context.Context, userID int64) (*store.Session, error) {
	sess := &store.Session{ID: uuid.NewString(), UserID: userID}
	query := `INSERT INTO user_sessions (session_id, user_id) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, s.q(query), sess.ID, sess.UserID); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// TouchSession records a login on the session.
func (s *Store) TouchSession(ctx context.Context, sessionID string) error {
	query := `UPDATE user_sessions SET last_login = ? WHERE session_id = ?`
	if _, err := s.db.ExecContext(ctx, s.q(query), s.timestamp(), sessionID); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// SetUserOnline toggles the presence flag.
func (s *Store) SetUserOnline(ctx context.Context, userID int64, online bool) error {
	query := `UPDATE users SET is_online = ? WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, s.q(query), online, userID); err != nil {
		return fmt.Errorf("set user online: %w", err)
	}
	return nil
}
