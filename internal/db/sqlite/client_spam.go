package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
)

// IncrSpamCounter bumps the counter under key and returns the new value.
// A row whose window has lapsed restarts at 1 with a fresh expiry, so the
// whole increment stays a single atomic statement.
func (s *sqliteClient) IncrSpamCounter(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	modifier := ttlModifier(ttl)
	var count int64
	err := s.db.GetContext(ctx, &count, `
		INSERT INTO spam_state (key, count, expires_at)
		VALUES (?, 1, datetime('now', ?))
		ON CONFLICT(key) DO UPDATE SET
		count = CASE WHEN spam_state.expires_at <= datetime('now') THEN 1 ELSE spam_state.count + 1 END,
		expires_at = CASE WHEN spam_state.expires_at <= datetime('now') THEN datetime('now', ?) ELSE spam_state.expires_at END
		RETURNING count
	`, key, modifier, modifier)
	return count, err
}

// PushSpamHash appends hash to the rolling window under key, trims it to the
// most recent limit entries and returns the window contents.
func (s *sqliteClient) PushSpamHash(ctx context.Context, key, hash string, limit int, ttl time.Duration) ([]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var raw string
	err = tx.GetContext(ctx, &raw, `
		SELECT value FROM spam_state
		WHERE key = ? AND expires_at > datetime('now')
	`, key)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	var hashes []string
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &hashes); err != nil {
			hashes = nil
		}
	}
	hashes = append(hashes, hash)
	if limit > 0 && len(hashes) > limit {
		hashes = lo.Subset(hashes, -limit, uint(limit))
	}

	encoded, err := json.Marshal(hashes)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO spam_state (key, count, value, expires_at)
		VALUES (?, 0, ?, datetime('now', ?))
		ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		expires_at = excluded.expires_at
	`, key, string(encoded), ttlModifier(ttl))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return hashes, nil
}

// SpamKeyTTL returns the remaining lifetime of a spam state key, zero when
// absent or expired.
func (s *sqliteClient) SpamKeyTTL(ctx context.Context, key string) (time.Duration, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var remaining float64
	err := s.db.GetContext(ctx, &remaining, `
		SELECT CAST(strftime('%s', expires_at) AS REAL) - CAST(strftime('%s', 'now') AS REAL)
		FROM spam_state
		WHERE key = ? AND expires_at > datetime('now')
	`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return time.Duration(remaining * float64(time.Second)), nil
}

func (s *sqliteClient) ClearSpamState(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query, args, err := sqlx.In(`DELETE FROM spam_state WHERE key IN (?)`, keys)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	return err
}
