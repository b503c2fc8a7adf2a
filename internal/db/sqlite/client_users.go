package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/groupwarden/groupwarden/internal/db"
)

func (s *sqliteClient) GetUser(ctx context.Context, userID int64) (*db.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var user db.User
	err := s.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = ?`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *sqliteClient) EnsureUser(ctx context.Context, user *db.User, chatID int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
		INSERT INTO users (id, username, display_name, is_bot, role_level)
		VALUES (:id, :username, :display_name, :is_bot, :role_level)
		ON CONFLICT(id) DO UPDATE SET
		username = excluded.username,
		display_name = excluded.display_name
	`
	if _, err := s.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", user.ID, err)
	}
	if chatID == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_members (chat_id, user_id, last_active)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(chat_id, user_id) DO NOTHING
	`, chatID, user.ID)
	if err != nil {
		return fmt.Errorf("failed to register chat member: %w", err)
	}
	return nil
}

func (s *sqliteClient) SetRoleLevel(ctx context.Context, userID int64, level int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, err := s.db.ExecContext(ctx, `UPDATE users SET role_level = ? WHERE id = ?`, level, userID)
	return err
}

func (s *sqliteClient) FindUserByUsername(ctx context.Context, username string) (*db.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var user db.User
	err := s.db.GetContext(ctx, &user, `SELECT * FROM users WHERE username = ? LIMIT 1`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *sqliteClient) TouchActivity(ctx context.Context, chatID, userID int64, at time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_members (chat_id, user_id, last_active, messages)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
		last_active = excluded.last_active,
		messages = chat_members.messages + 1
	`, chatID, userID, at)
	return err
}

func (s *sqliteClient) GetInactiveMembers(ctx context.Context, chatID int64, before time.Time) ([]int64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var userIDs []int64
	err := s.db.SelectContext(ctx, &userIDs, `
		SELECT user_id FROM chat_members
		WHERE chat_id = ? AND last_active < ?
	`, chatID, before)
	return userIDs, err
}

func (s *sqliteClient) RemoveMember(ctx context.Context, chatID, userID int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM chat_members WHERE chat_id = ? AND user_id = ?`, chatID, userID)
	return err
}
