package antispam

import (
	"context"
	"fmt"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/groupwarden/groupwarden/internal/db"
	"github.com/groupwarden/groupwarden/internal/observability"
	"github.com/groupwarden/groupwarden/internal/settings"
	"github.com/groupwarden/groupwarden/internal/telegram"
)

const (
	minMuteDuration = 30 * time.Second
	maxMuteDuration = 365 * 24 * time.Hour
)

// Outcome describes what enforcement actually did.
type Outcome struct {
	Action         string
	Escalated      bool
	NoOp           bool
	MessageDeleted bool
}

// Enforcer turns a violation into a platform action. Durable records are
// written before the platform call, so a crash mid-enforcement leaves the
// record authoritative. Repeat notifications for the same
// (chat, user, filter) are suppressed within a short window.
type Enforcer struct {
	store    db.Client
	ops      *telegram.Operations
	notifier *Notifier
	dedupTTL time.Duration
	selfID   int64
}

// NewEnforcer wires the enforcement engine. selfID is the bot's own user
// id, recorded as the issuer on every warning, mute, ban and log row.
func NewEnforcer(store db.Client, ops *telegram.Operations, notifier *Notifier, dedupTTL time.Duration, selfID int64) *Enforcer {
	return &Enforcer{
		store:    store,
		ops:      ops,
		notifier: notifier,
		dedupTTL: dedupTTL,
		selfID:   selfID,
	}
}

func (e *Enforcer) Enforce(ctx context.Context, v *Violation, profile *settings.Antispam, sender *db.User, chatID int64, msg *api.Message) (Outcome, error) {
	entry := log.WithFields(log.Fields{
		"chat_id": chatID,
		"user_id": sender.ID,
		"filter":  v.Filter,
	})

	// sender may have been promoted or excepted since evaluation
	if sender.RoleLevel >= db.RoleChatOwner || profile.IsExemptUser(sender.ID) {
		entry.Debug("sender exempt at enforcement time, skipping")
		return Outcome{NoOp: true}, nil
	}

	action, duration := profile.Resolve(v.Filter)
	outcome := Outcome{Action: action}

	// telegram links are purged up front regardless of the configured action
	if v.Filter == settings.FilterTelegramLinks {
		if err := e.ops.DeleteMessage(ctx, chatID, msg.MessageID); err != nil {
			entry.WithError(err).Warn("cant delete offending message")
		} else {
			outcome.MessageDeleted = true
		}
	}

	if action == settings.ActionMute {
		muted, err := e.isActivelyMuted(ctx, chatID, sender.ID)
		if err != nil {
			return outcome, err
		}
		if muted {
			entry.Debug("sender already muted, skipping duplicate restriction")
			outcome.NoOp = true
			return outcome, nil
		}
	}

	now := time.Now()
	reason := v.Reason

	switch action {
	case settings.ActionDelete:
		if !outcome.MessageDeleted {
			if err := e.ops.DeleteMessage(ctx, chatID, msg.MessageID); err != nil {
				entry.WithError(err).Warn("cant delete offending message")
			} else {
				outcome.MessageDeleted = true
			}
		}

	case settings.ActionWarn:
		count, err := e.store.CountWarnings(ctx, chatID, sender.ID)
		if err != nil {
			return outcome, errors.WithMessage(err, "count warnings")
		}
		if count < profile.WarningThreshold {
			warning := &db.Warning{
				ChatID:   chatID,
				UserID:   sender.ID,
				Reason:   reason,
				IssuedBy: e.selfID,
				IssuedAt: now,
			}
			if err := e.store.AppendWarning(ctx, warning); err != nil {
				return outcome, errors.WithMessage(err, "append warning")
			}
			e.tellSender(ctx, sender.ID, fmt.Sprintf("You received a warning (%d/%d): %s", count+1, profile.WarningThreshold, reason))
			break
		}
		// threshold reached, escalate to a mute
		muted, err := e.isActivelyMuted(ctx, chatID, sender.ID)
		if err != nil {
			return outcome, err
		}
		if muted {
			entry.Debug("sender already muted, skipping escalation")
			outcome.NoOp = true
			return outcome, nil
		}
		outcome.Action = settings.ActionMute
		outcome.Escalated = true
		action = settings.ActionMute
		reason = "exceeded warning threshold"
		duration = time.Duration(profile.MuteDuration) * time.Second
		fallthrough

	case settings.ActionMute:
		duration = clampMuteDuration(duration)
		until := now.Add(duration)
		mute := &db.MuteState{
			ChatID:   chatID,
			UserID:   sender.ID,
			Until:    until,
			Reason:   reason,
			IssuedBy: e.selfID,
			IssuedAt: now,
		}
		if err := e.store.SetMute(ctx, mute); err != nil {
			return outcome, errors.WithMessage(err, "persist mute")
		}
		if err := e.ops.MuteUser(ctx, chatID, sender.ID, until); err != nil {
			entry.WithError(err).Error("cant restrict user")
			return outcome, err
		}
		e.tellSender(ctx, sender.ID, fmt.Sprintf("You were muted for %s: %s", duration, reason))

	case settings.ActionBan:
		var until time.Time
		if duration > 0 {
			until = now.Add(duration)
		}
		ban := &db.BanState{
			ChatID:   chatID,
			UserID:   sender.ID,
			Until:    until,
			Reason:   reason,
			IssuedBy: e.selfID,
			IssuedAt: now,
		}
		if err := e.store.SetBan(ctx, ban); err != nil {
			return outcome, errors.WithMessage(err, "persist ban")
		}
		if err := e.ops.BanUser(ctx, chatID, sender.ID, until); err != nil {
			entry.WithError(err).Error("cant ban user")
			return outcome, err
		}
		e.tellSender(ctx, sender.ID, fmt.Sprintf("You were banned: %s", reason))

	default:
		return outcome, fmt.Errorf("unknown enforcement action %q", action)
	}

	observability.RecordEnforcement(action)

	logEntry := &db.ModerationLog{
		ChatID:   chatID,
		UserID:   sender.ID,
		Action:   action,
		Reason:   fmt.Sprintf("%s: %s", v.Filter, reason),
		IssuedBy: e.selfID,
		IssuedAt: now,
	}
	if err := e.store.LogModerationAction(ctx, logEntry); err != nil {
		entry.WithError(err).Error("cant write moderation log")
	}

	if e.shouldNotify(ctx, chatID, sender.ID, v.Filter) {
		if err := e.notifier.NotifyAdmins(ctx, profile.AdminGroup, v, sender, chatID, action, messageText(msg)); err != nil {
			entry.WithError(err).Warn("cant notify admin group")
		}
	}
	return outcome, nil
}

func (e *Enforcer) isActivelyMuted(ctx context.Context, chatID, userID int64) (bool, error) {
	mute, err := e.store.GetMute(ctx, chatID, userID)
	if err != nil {
		return false, errors.WithMessage(err, "load mute state")
	}
	return mute.ActiveMute(time.Now()), nil
}

// tellSender is best-effort, the bot often cant message users who never
// started a private chat with it.
func (e *Enforcer) tellSender(ctx context.Context, userID int64, text string) {
	if err := e.ops.SendMessage(ctx, api.NewMessage(userID, text)); err != nil {
		log.WithError(err).WithField("user_id", userID).Debug("cant message sender")
	}
}

// shouldNotify suppresses duplicate admin notices for the same
// (chat, user, filter) within the de-dup window.
func (e *Enforcer) shouldNotify(ctx context.Context, chatID, userID int64, filterID string) bool {
	key := fmt.Sprintf("notify:%d:%d:%s", chatID, userID, filterID)
	if _, err := e.store.GetKV(ctx, key); err == nil {
		return false
	}
	if err := e.store.SetKV(ctx, key, "1", e.dedupTTL); err != nil {
		log.WithError(err).Warn("cant set notification de-dup marker")
	}
	return true
}

func clampMuteDuration(d time.Duration) time.Duration {
	if d < minMuteDuration {
		return minMuteDuration
	}
	if d > maxMuteDuration {
		return maxMuteDuration
	}
	return d
}
