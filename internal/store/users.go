package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chatwire/pkg/interfaces"
	"chatwire/pkg/types"
)

// Users implements interfaces.IdentityDirectory.
type Users struct {
	s *Store
}

var _ interfaces.IdentityDirectory = (*Users)(nil)

// Create inserts a user and returns it with the assigned id.
func (u *Users) Create(ctx context.Context, username, nickname, avatar string) (*types.User, error) {
	res, err := u.s.exec(
		`INSERT INTO users (username, nickname, avatar, status) VALUES (?, ?, ?, ?)`,
		username, nickname, avatar, types.StatusOffline)
	if err != nil {
		return nil, fmt.Errorf("failed to create user %q: %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &types.User{
		ID:       id,
		Username: username,
		Nickname: nickname,
		Avatar:   avatar,
		Status:   types.StatusOffline,
	}, nil
}

// FindByIdentity resolves a username to its user record.
func (u *Users) FindByIdentity(ctx context.Context, identity string) (*types.User, error) {
	row := u.s.db.QueryRowContext(ctx,
		`SELECT id, username, nickname, avatar, status FROM users WHERE username = ?`, identity)
	var user types.User
	if err := row.Scan(&user.ID, &user.Username, &user.Nickname, &user.Avatar, &user.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user %q: %w", identity, err)
	}
	return &user, nil
}

// FindByID loads a user by numeric id.
func (u *Users) FindByID(ctx context.Context, userID int64) (*types.User, error) {
	row := u.s.db.QueryRowContext(ctx,
		`SELECT id, username, nickname, avatar, status FROM users WHERE id = ?`, userID)
	var user types.User
	if err := row.Scan(&user.ID, &user.Username, &user.Nickname, &user.Avatar, &user.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user %d: %w", userID, err)
	}
	return &user, nil
}

// UpdateStatus flips the persisted presence status field.
func (u *Users) UpdateStatus(ctx context.Context, userID int64, status types.Status) error {
	if !types.IsValidStatus(status) {
		return fmt.Errorf("invalid status %q", status)
	}
	_, err := u.s.exec(`UPDATE users SET status = ? WHERE id = ?`, status, userID)
	if err != nil {
		return fmt.Errorf("failed to update status for user %d: %w", userID, err)
	}
	return nil
}
