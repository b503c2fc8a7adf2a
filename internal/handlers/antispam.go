package handlers

import (
	"context"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/groupwarden/groupwarden/internal/antispam"
	"github.com/groupwarden/groupwarden/internal/bot"
	"github.com/groupwarden/groupwarden/internal/config"
	"github.com/groupwarden/groupwarden/internal/db"
	"github.com/groupwarden/groupwarden/internal/observability"
)

// Antispam is the message-path handler: classify, enforce, suppress.
// A message that produced a violation never reaches later handlers,
// whatever the enforcement outcome was.
type Antispam struct {
	s         bot.Service
	tracker   *antispam.Tracker
	evaluator *antispam.Evaluator
	enforcer  *antispam.Enforcer
	notifier  *antispam.Notifier
}

func NewAntispam(s bot.Service) *Antispam {
	cfg := config.Get()
	tracker := antispam.NewTracker(s.GetDB())
	notifier := antispam.NewNotifier(s.GetOps(), s.GetDB())
	return &Antispam{
		s:         s,
		tracker:   tracker,
		evaluator: antispam.NewEvaluator(tracker, antispam.NewDNSBL(cfg.Antispam.DNSBLZone)),
		enforcer:  antispam.NewEnforcer(s.GetDB(), s.GetOps(), notifier, cfg.Antispam.NotifyDedupTTL, s.GetBot().Self.ID),
		notifier:  notifier,
	}
}

func (a *Antispam) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if u.CallbackQuery != nil && antispam.IsControlCallback(u.CallbackQuery.Data) {
		if err := a.notifier.HandleCallback(ctx, u.CallbackQuery); err != nil {
			return false, errors.WithMessage(err, "cant handle moderation callback")
		}
		return false, nil
	}

	if u.Message == nil || chat == nil || user == nil {
		return true, nil
	}
	if !chat.IsGroup() && !chat.IsSuperGroup() {
		return true, nil
	}
	m := u.Message
	entry := a.getLogEntry().WithFields(log.Fields{
		"chat_id": chat.ID,
		"user_id": user.ID,
	})

	sender := &db.User{
		ID:          user.ID,
		Username:    user.UserName,
		DisplayName: bot.GetFullName(user),
		IsBot:       user.IsBot,
	}
	if err := a.s.GetDB().EnsureUser(ctx, sender, chat.ID); err != nil {
		entry.WithError(err).Error("cant ensure user")
	}
	if err := a.s.GetDB().TouchActivity(ctx, chat.ID, user.ID, time.Now()); err != nil {
		entry.WithError(err).Warn("cant touch activity")
	}

	stored, err := a.s.GetDB().GetUser(ctx, user.ID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return true, errors.WithMessage(err, "cant load user record")
	}
	if stored != nil {
		sender.RoleLevel = stored.RoleLevel
	}
	if user.ID == config.Get().OwnerID {
		sender.RoleLevel = db.RoleBotOwner
	}

	profile, err := a.s.GetSettings(ctx, chat.ID)
	if err != nil {
		return true, errors.WithMessage(err, "cant load chat settings")
	}

	v := a.evaluator.Evaluate(ctx, m, profile, sender.RoleLevel)
	if v == nil {
		return true, nil
	}
	observability.RecordViolation(v.Filter)
	entry.WithFields(log.Fields{
		"filter": v.Filter,
		"reason": v.Reason,
	}).Info("violation detected")

	if _, err := a.enforcer.Enforce(ctx, v, profile, sender, chat.ID, m); err != nil {
		entry.WithError(err).Error("enforcement failed")
	}
	return false, nil
}

func (a *Antispam) getLogEntry() *log.Entry {
	return log.WithField("context", "antispam")
}
