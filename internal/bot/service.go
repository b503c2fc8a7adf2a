package bot

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/groupwarden/groupwarden/internal/db"
	"github.com/groupwarden/groupwarden/internal/settings"
	"github.com/groupwarden/groupwarden/internal/telegram"
)

type service struct {
	bot          *api.BotAPI
	db           db.Client
	ops          *telegram.Operations
	settingsStor *settings.Store
}

func NewService(botAPI *api.BotAPI, dbClient db.Client) *service {
	return &service{
		bot:          botAPI,
		db:           dbClient,
		ops:          telegram.NewOperations(botAPI),
		settingsStor: settings.NewStore(dbClient),
	}
}

func (s *service) GetBot() *api.BotAPI {
	return s.bot
}

func (s *service) GetDB() db.Client {
	return s.db
}

func (s *service) GetOps() *telegram.Operations {
	return s.ops
}

func (s *service) GetSettings(ctx context.Context, chatID int64) (*settings.Antispam, error) {
	return s.settingsStor.Get(ctx, chatID)
}

func (s *service) SetSettings(ctx context.Context, chatID int64, profile *settings.Antispam) error {
	return s.settingsStor.Set(ctx, chatID, profile)
}
