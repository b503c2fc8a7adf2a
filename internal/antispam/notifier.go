package antispam

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/groupwarden/groupwarden/internal/db"
	gwerrors "github.com/groupwarden/groupwarden/internal/errors"
	"github.com/groupwarden/groupwarden/internal/settings"
	"github.com/groupwarden/groupwarden/internal/telegram"
)

const (
	callbackPrefix = "spamctl"
	VerbConfirm    = "confirm"
	VerbCancel     = "cancel"

	excerptLimit = 100
)

// CallbackData is the payload behind the confirm and cancel buttons.
type CallbackData struct {
	Verb   string
	UserID int64
	ChatID int64
	Action string
}

func (c *CallbackData) Encode() string {
	return fmt.Sprintf("%s:%s:%d:%d:%s", callbackPrefix, c.Verb, c.UserID, c.ChatID, c.Action)
}

// IsControlCallback reports whether the payload belongs to the notifier.
func IsControlCallback(data string) bool {
	return strings.HasPrefix(data, callbackPrefix+":")
}

func ParseCallback(data string) (*CallbackData, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 5 || parts[0] != callbackPrefix {
		return nil, fmt.Errorf("%w: malformed callback payload", gwerrors.ErrInvalidInput)
	}
	if parts[1] != VerbConfirm && parts[1] != VerbCancel {
		return nil, fmt.Errorf("%w: unknown callback verb %q", gwerrors.ErrInvalidInput, parts[1])
	}
	userID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad user id", gwerrors.ErrInvalidInput)
	}
	chatID, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad chat id", gwerrors.ErrInvalidInput)
	}
	return &CallbackData{
		Verb:   parts[1],
		UserID: userID,
		ChatID: chatID,
		Action: parts[4],
	}, nil
}

// Notifier posts enforcement notices to the admin group and reverses
// actions when an admin presses cancel. Confirm is an acknowledgement,
// the action was already applied eagerly.
type Notifier struct {
	ops   *telegram.Operations
	store db.Client
}

func NewNotifier(ops *telegram.Operations, store db.Client) *Notifier {
	return &Notifier{ops: ops, store: store}
}

func excerpt(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) > excerptLimit {
		return string(runes[:excerptLimit]) + "…"
	}
	return string(runes)
}

func mention(sender *db.User) string {
	if sender.Username != "" {
		return "@" + sender.Username
	}
	if sender.DisplayName != "" {
		return sender.DisplayName
	}
	return strconv.FormatInt(sender.ID, 10)
}

func (n *Notifier) NotifyAdmins(ctx context.Context, adminGroup int64, v *Violation, sender *db.User, chatID int64, action, text string) error {
	if adminGroup == 0 {
		return nil
	}
	body := fmt.Sprintf(
		"Spam detected\nUser: %s (%d)\nChat: %d\nRule: %s\nReason: %s\nAction: %s",
		mention(sender), sender.ID, chatID, v.Filter, v.Reason, action,
	)
	if quoted := excerpt(text); quoted != "" {
		body += fmt.Sprintf("\n\n«%s»", quoted)
	}

	confirm := CallbackData{Verb: VerbConfirm, UserID: sender.ID, ChatID: chatID, Action: action}
	cancel := CallbackData{Verb: VerbCancel, UserID: sender.ID, ChatID: chatID, Action: action}
	msg := api.NewMessage(adminGroup, body)
	msg.ReplyMarkup = api.NewInlineKeyboardMarkup(
		api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData("✅ Confirm", confirm.Encode()),
			api.NewInlineKeyboardButtonData("↩️ Cancel", cancel.Encode()),
		),
	)
	return n.ops.SendMessage(ctx, msg)
}

// HandleCallback resolves a pressed button and answers it.
func (n *Notifier) HandleCallback(ctx context.Context, cq *api.CallbackQuery) error {
	cb, err := ParseCallback(cq.Data)
	if err != nil {
		return err
	}
	switch cb.Verb {
	case VerbConfirm:
		return n.ops.AnswerCallback(ctx, cq.ID, "Action confirmed")
	case VerbCancel:
		if err := n.Cancel(ctx, cb); err != nil {
			log.WithError(err).WithField("callback", cq.Data).Error("cant reverse action")
			return n.ops.AnswerCallback(ctx, cq.ID, "Reversal failed")
		}
		return n.ops.AnswerCallback(ctx, cq.ID, "Action reversed")
	}
	return nil
}

// Cancel reverses a previously applied action. Delete has nothing to
// reverse, the message is already gone.
func (n *Notifier) Cancel(ctx context.Context, cb *CallbackData) error {
	switch cb.Action {
	case settings.ActionWarn:
		if _, err := n.store.PopWarning(ctx, cb.ChatID, cb.UserID); err != nil {
			return errors.WithMessage(err, "pop warning")
		}
	case settings.ActionMute:
		if err := n.ops.UnmuteUser(ctx, cb.ChatID, cb.UserID); err != nil {
			return err
		}
		if err := n.store.ClearMute(ctx, cb.ChatID, cb.UserID); err != nil {
			return errors.WithMessage(err, "clear mute state")
		}
	case settings.ActionBan:
		if err := n.ops.UnbanUser(ctx, cb.ChatID, cb.UserID); err != nil {
			return err
		}
		if err := n.store.ClearBan(ctx, cb.ChatID, cb.UserID); err != nil {
			return errors.WithMessage(err, "clear ban state")
		}
	case settings.ActionDelete:
		// informational only
	default:
		return fmt.Errorf("%w: unknown action %q", gwerrors.ErrInvalidInput, cb.Action)
	}
	return nil
}
