package bot

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/groupwarden/groupwarden/internal/db"
	"github.com/groupwarden/groupwarden/internal/settings"
	"github.com/groupwarden/groupwarden/internal/telegram"
)

// ServiceBot defines bot-specific operations
type ServiceBot interface {
	GetBot() *api.BotAPI
	GetOps() *telegram.Operations
}

// ServiceDB defines database-specific operations
type ServiceDB interface {
	GetDB() db.Client
}

// Service defines the core bot service interface
type Service interface {
	ServiceBot
	ServiceDB
	GetSettings(ctx context.Context, chatID int64) (*settings.Antispam, error)
	SetSettings(ctx context.Context, chatID int64, profile *settings.Antispam) error
}

// Handler defines the interface for all update handlers in the system
type Handler interface {
	Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (proceed bool, err error)
}
