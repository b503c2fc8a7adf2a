package db

import "time"

type (
	User struct {
		ID          int64  `db:"id"`
		Username    string `db:"username"`
		DisplayName string `db:"display_name"`
		IsBot       bool   `db:"is_bot"`
		RoleLevel   int    `db:"role_level"`
	}

	Warning struct {
		ID       int64     `db:"id"`
		ChatID   int64     `db:"chat_id"`
		UserID   int64     `db:"user_id"`
		Reason   string    `db:"reason"`
		IssuedBy int64     `db:"issued_by"`
		IssuedAt time.Time `db:"issued_at"`
	}

	MuteState struct {
		ChatID   int64     `db:"chat_id"`
		UserID   int64     `db:"user_id"`
		Until    time.Time `db:"until"`
		Reason   string    `db:"reason"`
		IssuedBy int64     `db:"issued_by"`
		IssuedAt time.Time `db:"issued_at"`
	}

	BanState struct {
		ChatID   int64     `db:"chat_id"`
		UserID   int64     `db:"user_id"`
		Until    time.Time `db:"until"` // zero value means permanent
		Reason   string    `db:"reason"`
		IssuedBy int64     `db:"issued_by"`
		IssuedAt time.Time `db:"issued_at"`
	}

	ModerationLog struct {
		ID       int64     `db:"id"`
		ChatID   int64     `db:"chat_id"`
		UserID   int64     `db:"user_id"`
		Action   string    `db:"action"`
		Reason   string    `db:"reason"`
		IssuedBy int64     `db:"issued_by"`
		IssuedAt time.Time `db:"issued_at"`
	}

	ChatMember struct {
		ChatID     int64     `db:"chat_id"`
		UserID     int64     `db:"user_id"`
		LastActive time.Time `db:"last_active"`
		Messages   int64     `db:"messages"`
	}
)

// Role levels, ascending authority. Mutes and bans never apply at or above
// RoleChatOwner.
const (
	RoleUser       = 0
	RoleJuniorMod  = 1
	RoleModerator  = 2
	RoleSeniorMod  = 3
	RoleSeniorAdm  = 4
	RoleDeputy     = 5
	RoleChatOwner  = 6
	RoleBotOwner   = 7
)

// ActiveMute reports whether the mute is still in force at the given time.
// Expiry is computed at read time, there is no background sweep.
func (m *MuteState) ActiveMute(now time.Time) bool {
	if m == nil {
		return false
	}
	return m.Until.After(now)
}

// ActiveBan reports whether the ban is in force. A zero Until means permanent.
func (b *BanState) ActiveBan(now time.Time) bool {
	if b == nil {
		return false
	}
	return b.Until.IsZero() || b.Until.After(now)
}
