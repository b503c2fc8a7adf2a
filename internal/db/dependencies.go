package db

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type Client interface {
	Close() error

	// SweepExpired opportunistically drops expired KV and spam state rows.
	// Reads never depend on it, expired rows already read as absent.
	SweepExpired(ctx context.Context) (int64, error)

	UserStore
	ModerationStore
	KVStore
	SpamStateStore
}

// UserStore holds durable per-user records and chat membership activity.
type UserStore interface {
	GetUser(ctx context.Context, userID int64) (*User, error)
	EnsureUser(ctx context.Context, user *User, chatID int64) error
	SetRoleLevel(ctx context.Context, userID int64, level int) error
	FindUserByUsername(ctx context.Context, username string) (*User, error)

	TouchActivity(ctx context.Context, chatID, userID int64, at time.Time) error
	GetInactiveMembers(ctx context.Context, chatID int64, before time.Time) ([]int64, error)
	RemoveMember(ctx context.Context, chatID, userID int64) error
}

// ModerationStore persists warnings, mute/ban state and the moderation log.
type ModerationStore interface {
	AppendWarning(ctx context.Context, warning *Warning) error
	PopWarning(ctx context.Context, chatID, userID int64) (bool, error)
	CountWarnings(ctx context.Context, chatID, userID int64) (int, error)
	ClearWarnings(ctx context.Context, chatID, userID int64) error

	SetMute(ctx context.Context, mute *MuteState) error
	ClearMute(ctx context.Context, chatID, userID int64) error
	GetMute(ctx context.Context, chatID, userID int64) (*MuteState, error)

	SetBan(ctx context.Context, ban *BanState) error
	ClearBan(ctx context.Context, chatID, userID int64) error
	GetBan(ctx context.Context, chatID, userID int64) (*BanState, error)

	LogModerationAction(ctx context.Context, entry *ModerationLog) error
	GetModerationLogs(ctx context.Context, chatID int64, limit int) ([]*ModerationLog, error)
}

// KVStore is a TTL-capable key-value store. Expired keys read as absent.
type KVStore interface {
	GetKV(ctx context.Context, key string) (string, error)
	SetKV(ctx context.Context, key, value string, ttl time.Duration) error
	DeleteKV(ctx context.Context, keys ...string) error
	GetKVTTL(ctx context.Context, key string) (time.Duration, error)
}

// SpamStateStore holds the ephemeral per-(chat,user) spam counters. Every
// mutation is a single atomic statement, state auto-expires via TTL.
type SpamStateStore interface {
	IncrSpamCounter(ctx context.Context, key string, ttl time.Duration) (int64, error)
	PushSpamHash(ctx context.Context, key, hash string, limit int, ttl time.Duration) ([]string, error)
	SpamKeyTTL(ctx context.Context, key string) (time.Duration, error)
	ClearSpamState(ctx context.Context, keys ...string) error
}
