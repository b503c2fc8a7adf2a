package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/groupwarden/groupwarden/internal/db"
)

func ttlModifier(ttl time.Duration) string {
	return fmt.Sprintf("+%d seconds", int64(ttl.Seconds()))
}

func (s *sqliteClient) GetKV(ctx context.Context, key string) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var value string
	err := s.db.GetContext(ctx, &value, `
		SELECT value FROM kv_store
		WHERE key = ? AND (expires_at IS NULL OR expires_at > datetime('now'))
	`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", db.ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (s *sqliteClient) SetKV(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if ttl <= 0 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO kv_store (key, value, expires_at, updated_at)
			VALUES (?, ?, NULL, datetime('now'))
			ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = NULL,
			updated_at = excluded.updated_at
		`, key, value)
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, expires_at, updated_at)
		VALUES (?, ?, datetime('now', ?), datetime('now'))
		ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		expires_at = excluded.expires_at,
		updated_at = excluded.updated_at
	`, key, value, ttlModifier(ttl))
	return err
}

func (s *sqliteClient) DeleteKV(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query, args, err := sqlx.In(`DELETE FROM kv_store WHERE key IN (?)`, keys)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	return err
}

// GetKVTTL returns the remaining lifetime of a key. A negative duration
// means the key exists without expiry, db.ErrNotFound means absent or expired.
func (s *sqliteClient) GetKVTTL(ctx context.Context, key string) (time.Duration, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var remaining sql.NullFloat64
	err := s.db.GetContext(ctx, &remaining, `
		SELECT CAST(strftime('%s', expires_at) AS REAL) - CAST(strftime('%s', 'now') AS REAL)
		FROM kv_store
		WHERE key = ? AND (expires_at IS NULL OR expires_at > datetime('now'))
	`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, db.ErrNotFound
		}
		return 0, err
	}
	if !remaining.Valid {
		return -1, nil
	}
	return time.Duration(remaining.Float64 * float64(time.Second)), nil
}
