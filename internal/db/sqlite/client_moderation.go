package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/groupwarden/groupwarden/internal/db"
)

func (s *sqliteClient) AppendWarning(ctx context.Context, warning *db.Warning) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
		INSERT INTO warnings (chat_id, user_id, reason, issued_by, issued_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		warning.ChatID,
		warning.UserID,
		warning.Reason,
		warning.IssuedBy,
		warning.IssuedAt,
	)
	return err
}

func (s *sqliteClient) PopWarning(ctx context.Context, chatID, userID int64) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM warnings WHERE id = (
			SELECT id FROM warnings
			WHERE chat_id = ? AND user_id = ?
			ORDER BY issued_at DESC, id DESC LIMIT 1
		)
	`, chatID, userID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *sqliteClient) CountWarnings(ctx context.Context, chatID, userID int64) (int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM warnings WHERE chat_id = ? AND user_id = ?
	`, chatID, userID)
	return count, err
}

func (s *sqliteClient) ClearWarnings(ctx context.Context, chatID, userID int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM warnings WHERE chat_id = ? AND user_id = ?`, chatID, userID)
	return err
}

func (s *sqliteClient) SetMute(ctx context.Context, mute *db.MuteState) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
		INSERT INTO mutes (chat_id, user_id, until, reason, issued_by, issued_at)
		VALUES (:chat_id, :user_id, :until, :reason, :issued_by, :issued_at)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
		until = excluded.until,
		reason = excluded.reason,
		issued_by = excluded.issued_by,
		issued_at = excluded.issued_at
	`
	_, err := s.db.NamedExecContext(ctx, query, mute)
	return err
}

func (s *sqliteClient) ClearMute(ctx context.Context, chatID, userID int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM mutes WHERE chat_id = ? AND user_id = ?`, chatID, userID)
	return err
}

func (s *sqliteClient) GetMute(ctx context.Context, chatID, userID int64) (*db.MuteState, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var mute db.MuteState
	err := s.db.GetContext(ctx, &mute, `
		SELECT * FROM mutes WHERE chat_id = ? AND user_id = ?
	`, chatID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &mute, nil
}

type banRow struct {
	ChatID   int64        `db:"chat_id"`
	UserID   int64        `db:"user_id"`
	Until    sql.NullTime `db:"until"`
	Reason   string       `db:"reason"`
	IssuedBy int64        `db:"issued_by"`
	IssuedAt sql.NullTime `db:"issued_at"`
}

func (s *sqliteClient) SetBan(ctx context.Context, ban *db.BanState) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	// zero Until persists as NULL, read back as a permanent ban
	until := sql.NullTime{Time: ban.Until, Valid: !ban.Until.IsZero()}
	query := `
		INSERT INTO bans (chat_id, user_id, until, reason, issued_by, issued_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
		until = excluded.until,
		reason = excluded.reason,
		issued_by = excluded.issued_by,
		issued_at = excluded.issued_at
	`
	_, err := s.db.ExecContext(ctx, query,
		ban.ChatID,
		ban.UserID,
		until,
		ban.Reason,
		ban.IssuedBy,
		ban.IssuedAt,
	)
	return err
}

func (s *sqliteClient) ClearBan(ctx context.Context, chatID, userID int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM bans WHERE chat_id = ? AND user_id = ?`, chatID, userID)
	return err
}

func (s *sqliteClient) GetBan(ctx context.Context, chatID, userID int64) (*db.BanState, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var row banRow
	err := s.db.GetContext(ctx, &row, `
		SELECT * FROM bans WHERE chat_id = ? AND user_id = ?
	`, chatID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	ban := &db.BanState{
		ChatID:   row.ChatID,
		UserID:   row.UserID,
		Reason:   row.Reason,
		IssuedBy: row.IssuedBy,
	}
	if row.Until.Valid {
		ban.Until = row.Until.Time
	}
	if row.IssuedAt.Valid {
		ban.IssuedAt = row.IssuedAt.Time
	}
	return ban, nil
}

func (s *sqliteClient) LogModerationAction(ctx context.Context, entry *db.ModerationLog) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
		INSERT INTO moderation_log (chat_id, user_id, action, reason, issued_by, issued_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ChatID,
		entry.UserID,
		entry.Action,
		entry.Reason,
		entry.IssuedBy,
		entry.IssuedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to log moderation action: %w", err)
	}
	return nil
}

func (s *sqliteClient) GetModerationLogs(ctx context.Context, chatID int64, limit int) ([]*db.ModerationLog, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var logs []*db.ModerationLog
	err := s.db.SelectContext(ctx, &logs, `
		SELECT * FROM moderation_log
		WHERE chat_id = ?
		ORDER BY issued_at DESC, id DESC
		LIMIT ?
	`, chatID, limit)
	return logs, err
}
