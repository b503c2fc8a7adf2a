package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/groupwarden/groupwarden/internal/antispam"
	"github.com/groupwarden/groupwarden/internal/bot"
	"github.com/groupwarden/groupwarden/internal/config"
	"github.com/groupwarden/groupwarden/internal/db"
)

const (
	moderatorRoleThreshold = db.RoleSeniorAdm
	defaultInactiveDays    = 30
)

// Admin serves the moderation command surface and the settings wizard.
type Admin struct {
	s       bot.Service
	wizard  *Wizard
	tracker *antispam.Tracker
}

func NewAdmin(s bot.Service) *Admin {
	return &Admin{
		s:       s,
		wizard:  NewWizard(s),
		tracker: antispam.NewTracker(s.GetDB()),
	}
}

func (a *Admin) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (proceed bool, err error) {
	if u.CallbackQuery != nil && IsWizardCallback(u.CallbackQuery.Data) {
		return a.handleWizardCallback(ctx, u.CallbackQuery, user)
	}

	if chat == nil || user == nil || u.Message == nil || user.IsBot {
		return true, nil
	}
	m := u.Message
	entry := a.getLogEntry().WithFields(log.Fields{
		"chat_id": chat.ID,
		"user_id": user.ID,
	})

	if !m.IsCommand() {
		pending, err := a.wizard.HasPendingInput(ctx, chat.ID)
		if err != nil {
			return true, errors.WithMessage(err, "cant check wizard session")
		}
		if !pending {
			return true, nil
		}
		role, err := a.resolveRole(ctx, chat.ID, user)
		if err != nil {
			return true, err
		}
		if role < moderatorRoleThreshold {
			return true, nil
		}
		consumed, err := a.wizard.HandleText(ctx, m)
		if err != nil {
			return true, errors.WithMessage(err, "wizard input failed")
		}
		return !consumed, nil
	}

	role, err := a.resolveRole(ctx, chat.ID, user)
	if err != nil {
		return true, err
	}
	entry.WithField("command", m.Command()).Trace("admin command")

	switch m.Command() {
	case "antispam_settings":
		if role < moderatorRoleThreshold {
			return false, a.reply(ctx, m, "You need moderator rights for that.")
		}
		if err := a.wizard.Start(ctx, chat.ID); err != nil {
			return false, errors.WithMessage(err, "cant start settings wizard")
		}
		return false, nil

	case "set_admin_group":
		if role < moderatorRoleThreshold {
			return false, a.reply(ctx, m, "You need moderator rights for that.")
		}
		return false, a.setAdminGroup(ctx, m)

	case "reset_spam":
		if role < moderatorRoleThreshold {
			return false, a.reply(ctx, m, "You need moderator rights for that.")
		}
		return false, a.resetSpam(ctx, m)

	case "kick_inactive":
		if role < db.RoleChatOwner {
			return false, a.reply(ctx, m, "Only the chat owner can do that.")
		}
		return false, a.kickInactive(ctx, m)
	}
	return true, nil
}

func (a *Admin) handleWizardCallback(ctx context.Context, cq *api.CallbackQuery, user *api.User) (bool, error) {
	if cq.Message == nil || user == nil {
		return true, nil
	}
	role, err := a.resolveRole(ctx, cq.Message.Chat.ID, user)
	if err != nil {
		return true, err
	}
	if role < moderatorRoleThreshold {
		return false, a.s.GetOps().AnswerCallback(ctx, cq.ID, "Moderator rights required")
	}
	if err := a.wizard.HandleCallback(ctx, cq); err != nil {
		return false, errors.WithMessage(err, "wizard callback failed")
	}
	return false, nil
}

// resolveRole combines the stored role with the live chat member status,
// whichever grants more.
func (a *Admin) resolveRole(ctx context.Context, chatID int64, user *api.User) (int, error) {
	if user.ID == config.Get().OwnerID {
		return db.RoleBotOwner, nil
	}
	role := db.RoleUser
	stored, err := a.s.GetDB().GetUser(ctx, user.ID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return 0, errors.WithMessage(err, "cant load user record")
	}
	if stored != nil {
		role = stored.RoleLevel
	}

	chatMember, err := a.s.GetBot().GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			UserID: user.ID,
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
		},
	})
	if err != nil {
		log.WithError(err).WithField("chat_id", chatID).Warn("cant get chat member")
		return role, nil
	}
	switch {
	case chatMember.IsCreator():
		role = max(role, db.RoleChatOwner)
	case chatMember.IsAdministrator() && chatMember.CanRestrictMembers:
		role = max(role, db.RoleSeniorAdm)
	}
	return role, nil
}

// botHasRights verifies the bot can restrict and delete before a path that
// needs it, so the admin gets a clear message instead of a platform error.
func (a *Admin) botHasRights(ctx context.Context, chatID int64) (bool, error) {
	b := a.s.GetBot()
	self, err := b.GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			UserID: b.Self.ID,
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
		},
	})
	if err != nil {
		return false, errors.WithMessage(err, "cant get own chat member status")
	}
	return self.IsAdministrator() && self.CanRestrictMembers, nil
}

func (a *Admin) setAdminGroup(ctx context.Context, m *api.Message) error {
	id, err := parseAdminGroupID(strings.TrimSpace(m.CommandArguments()))
	if err != nil {
		return a.reply(ctx, m, "Usage: /set_admin_group <-100…> (0 to unset)")
	}
	profile, err := a.s.GetSettings(ctx, m.Chat.ID)
	if err != nil {
		return errors.WithMessage(err, "cant load settings")
	}
	updated := *profile
	updated.AdminGroup = id
	if err := a.s.SetSettings(ctx, m.Chat.ID, &updated); err != nil {
		return errors.WithMessage(err, "cant store settings")
	}
	if id == 0 {
		return a.reply(ctx, m, "Admin group unset.")
	}
	return a.reply(ctx, m, fmt.Sprintf("Admin group set to %d.", id))
}

func (a *Admin) resetSpam(ctx context.Context, m *api.Message) error {
	arg := strings.TrimSpace(m.CommandArguments())
	if arg == "" {
		return a.reply(ctx, m, "Usage: /reset_spam <user id or @username>")
	}

	var target *db.User
	var err error
	if strings.HasPrefix(arg, "@") {
		target, err = a.s.GetDB().FindUserByUsername(ctx, strings.TrimPrefix(arg, "@"))
	} else {
		var id int64
		id, err = strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return a.reply(ctx, m, fmt.Sprintf("%q is not a user id or @username.", arg))
		}
		target, err = a.s.GetDB().GetUser(ctx, id)
	}
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return a.reply(ctx, m, fmt.Sprintf("Never seen %s in here, nothing to reset.", arg))
		}
		return errors.WithMessage(err, "cant look up user")
	}

	if err := a.tracker.Reset(ctx, m.Chat.ID, target.ID); err != nil {
		return errors.WithMessage(err, "cant reset spam state")
	}
	if err := a.s.GetDB().ClearWarnings(ctx, m.Chat.ID, target.ID); err != nil {
		return errors.WithMessage(err, "cant clear warnings")
	}
	return a.reply(ctx, m, fmt.Sprintf("Spam state for %s reset.", arg))
}

func (a *Admin) kickInactive(ctx context.Context, m *api.Message) error {
	profile, err := a.s.GetSettings(ctx, m.Chat.ID)
	if err != nil {
		return errors.WithMessage(err, "cant load settings")
	}
	if !profile.AutoKickInactive {
		return a.reply(ctx, m, "Auto-kick of inactive members is disabled for this chat.")
	}

	days := defaultInactiveDays
	if arg, ok := strings.CutPrefix(strings.TrimSpace(m.CommandArguments()), "days="); ok {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return a.reply(ctx, m, "Usage: /kick_inactive [days=N]")
		}
		days = n
	}

	canAct, err := a.botHasRights(ctx, m.Chat.ID)
	if err != nil {
		return err
	}
	if !canAct {
		return a.reply(ctx, m, "I need admin rights with ban permission to do that.")
	}

	before := time.Now().AddDate(0, 0, -days)
	inactive, err := a.s.GetDB().GetInactiveMembers(ctx, m.Chat.ID, before)
	if err != nil {
		return errors.WithMessage(err, "cant list inactive members")
	}

	kicked := 0
	for _, userID := range inactive {
		// ban plus unban is a kick, the user may rejoin later
		if err := a.s.GetOps().BanUser(ctx, m.Chat.ID, userID, time.Time{}); err != nil {
			log.WithError(err).WithField("user_id", userID).Warn("cant kick inactive member")
			continue
		}
		if err := a.s.GetOps().UnbanUser(ctx, m.Chat.ID, userID); err != nil {
			log.WithError(err).WithField("user_id", userID).Warn("cant lift kick ban")
		}
		if err := a.s.GetDB().RemoveMember(ctx, m.Chat.ID, userID); err != nil {
			log.WithError(err).WithField("user_id", userID).Warn("cant drop membership record")
		}
		if err := a.s.GetDB().ClearWarnings(ctx, m.Chat.ID, userID); err != nil {
			log.WithError(err).WithField("user_id", userID).Warn("cant clear warnings")
		}
		kicked++
	}
	return a.reply(ctx, m, fmt.Sprintf("Kicked %d members inactive for over %d days.", kicked, days))
}

func (a *Admin) reply(ctx context.Context, m *api.Message, text string) error {
	msg := api.NewMessage(m.Chat.ID, text)
	msg.ReplyParameters = api.ReplyParameters{MessageID: m.MessageID}
	return a.s.GetOps().SendMessage(ctx, msg)
}

func (a *Admin) getLogEntry() *log.Entry {
	return log.WithField("context", "admin")
}
