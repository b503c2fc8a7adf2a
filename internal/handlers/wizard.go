package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/groupwarden/groupwarden/internal/bot"
	"github.com/groupwarden/groupwarden/internal/db"
	gwerrors "github.com/groupwarden/groupwarden/internal/errors"
	"github.com/groupwarden/groupwarden/internal/settings"
)

// Wizard states. Each state accepts a fixed input shape and names its
// transition targets explicitly, nothing is inferred from chat history.
const (
	StateMainMenu            = "main_menu"
	StateSelectFilter        = "select_filter"
	StateSetLimit            = "set_limit"
	StateSetAction           = "set_action"
	StateSetDuration         = "set_duration"
	StateSetFloodSeconds     = "set_flood_seconds"
	StateSetSpamWords        = "set_spam_words"
	StateSetExceptionsUsers  = "set_exceptions_users"
	StateSetExceptionsDomain = "set_exceptions_domains"
	StateSetMediaFilter      = "set_media_filter"
	StateSetAdminGroup       = "set_admin_group"
)

const (
	wizardPrefix     = "wiz"
	wizardSessionTTL = time.Hour
)

// textInputStates lists states whose next input arrives as a plain message.
var textInputStates = []string{
	StateSetLimit,
	StateSetDuration,
	StateSetFloodSeconds,
	StateSetSpamWords,
	StateSetExceptionsUsers,
	StateSetExceptionsDomain,
	StateSetAdminGroup,
}

// Session is the persisted wizard position: where the admin is and the
// uncommitted settings draft. Nothing touches the live profile until save.
type Session struct {
	ChatID   int64              `json:"chat_id"`
	State    string             `json:"state"`
	FilterID string             `json:"filter_id,omitempty"`
	Draft    *settings.Antispam `json:"draft"`
}

type Wizard struct {
	s bot.Service
}

func NewWizard(s bot.Service) *Wizard {
	return &Wizard{s: s}
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("wizard:%d", chatID)
}

func (w *Wizard) loadSession(ctx context.Context, chatID int64) (*Session, error) {
	raw, err := w.s.GetDB().GetKV(ctx, sessionKey(chatID))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.WithMessage(err, "load wizard session")
	}
	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, errors.WithMessage(err, "decode wizard session")
	}
	return &session, nil
}

func (w *Wizard) saveSession(ctx context.Context, session *Session) error {
	encoded, err := json.Marshal(session)
	if err != nil {
		return errors.WithMessage(err, "encode wizard session")
	}
	return w.s.GetDB().SetKV(ctx, sessionKey(session.ChatID), string(encoded), wizardSessionTTL)
}

func (w *Wizard) dropSession(ctx context.Context, chatID int64) error {
	return w.s.GetDB().DeleteKV(ctx, sessionKey(chatID))
}

// HasPendingInput reports whether the chat's session waits for a typed reply.
func (w *Wizard) HasPendingInput(ctx context.Context, chatID int64) (bool, error) {
	session, err := w.loadSession(ctx, chatID)
	if err != nil || session == nil {
		return false, err
	}
	return lo.Contains(textInputStates, session.State), nil
}

// Start opens the wizard with a fresh draft copied from the live profile.
func (w *Wizard) Start(ctx context.Context, chatID int64) error {
	profile, err := w.s.GetSettings(ctx, chatID)
	if err != nil {
		return errors.WithMessage(err, "load settings for wizard")
	}
	draft := *profile
	session := &Session{ChatID: chatID, State: StateMainMenu, Draft: &draft}
	if err := w.saveSession(ctx, session); err != nil {
		return err
	}
	return w.sendMainMenu(ctx, session)
}

func wizData(parts ...string) string {
	return wizardPrefix + ":" + strings.Join(parts, ":")
}

// IsWizardCallback reports whether the payload belongs to the wizard.
func IsWizardCallback(data string) bool {
	return strings.HasPrefix(data, wizardPrefix+":")
}

func (w *Wizard) sendMainMenu(ctx context.Context, session *Session) error {
	status := "disabled"
	if session.Draft.Enabled {
		status = "enabled"
	}
	msg := api.NewMessage(session.ChatID, fmt.Sprintf("Antispam settings (%s). Changes apply on save.", status))
	msg.ReplyMarkup = api.NewInlineKeyboardMarkup(
		api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData("Filters", wizData("filters")),
			api.NewInlineKeyboardButtonData("Toggle antispam", wizData("toggle")),
		),
		api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData("Excepted users", wizData("exceptions", "users")),
			api.NewInlineKeyboardButtonData("Excepted domains", wizData("exceptions", "domains")),
		),
		api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData("Media filter", wizData("media_filter")),
			api.NewInlineKeyboardButtonData("Admin group", wizData("admin_group")),
		),
		api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData("💾 Save", wizData("save")),
			api.NewInlineKeyboardButtonData("✖️ Discard", wizData("discard")),
		),
	)
	return w.s.GetOps().SendMessage(ctx, msg)
}

func (w *Wizard) sendFilterList(ctx context.Context, session *Session) error {
	rows := make([][]api.InlineKeyboardButton, 0, len(settings.FilterIDs())+1)
	for _, id := range settings.FilterIDs() {
		label := id
		if session.Draft.Filter(id).Enabled {
			label += " ✓"
		}
		rows = append(rows, api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData(label, wizData("filter", id)),
		))
	}
	rows = append(rows, api.NewInlineKeyboardRow(
		api.NewInlineKeyboardButtonData("« Back", wizData("menu")),
	))
	msg := api.NewMessage(session.ChatID, "Pick a filter to configure.")
	msg.ReplyMarkup = api.NewInlineKeyboardMarkup(rows...)
	return w.s.GetOps().SendMessage(ctx, msg)
}

func (w *Wizard) sendFilterMenu(ctx context.Context, session *Session) error {
	f := session.Draft.Filter(session.FilterID)
	if f == nil {
		return fmt.Errorf("%w: unknown filter %q", gwerrors.ErrInvalidInput, session.FilterID)
	}
	action, duration := session.Draft.Resolve(session.FilterID)
	body := fmt.Sprintf(
		"Filter %s\nEnabled: %t\nAction: %s\nLimit: %d\nDuration: %s",
		session.FilterID, f.Enabled, action, f.Limit, duration,
	)
	rows := [][]api.InlineKeyboardButton{
		api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData("Toggle", wizData("filter_toggle")),
			api.NewInlineKeyboardButtonData("Action", wizData("ask", StateSetAction)),
		),
		api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData("Limit", wizData("ask", StateSetLimit)),
			api.NewInlineKeyboardButtonData("Duration", wizData("ask", StateSetDuration)),
		),
	}
	switch session.FilterID {
	case settings.FilterFlood:
		rows = append(rows, api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData("Window seconds", wizData("ask", StateSetFloodSeconds)),
		))
	case settings.FilterSpamWords:
		rows = append(rows, api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData("Word list", wizData("ask", StateSetSpamWords)),
		))
	}
	rows = append(rows, api.NewInlineKeyboardRow(
		api.NewInlineKeyboardButtonData("« Back", wizData("filters")),
	))
	msg := api.NewMessage(session.ChatID, body)
	msg.ReplyMarkup = api.NewInlineKeyboardMarkup(rows...)
	return w.s.GetOps().SendMessage(ctx, msg)
}

func (w *Wizard) sendActionMenu(ctx context.Context, session *Session) error {
	msg := api.NewMessage(session.ChatID, fmt.Sprintf("Pick the action for %s.", session.FilterID))
	msg.ReplyMarkup = api.NewInlineKeyboardMarkup(
		api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData("delete", wizData("action", settings.ActionDelete)),
			api.NewInlineKeyboardButtonData("warn", wizData("action", settings.ActionWarn)),
		),
		api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData("mute", wizData("action", settings.ActionMute)),
			api.NewInlineKeyboardButtonData("ban", wizData("action", settings.ActionBan)),
		),
	)
	return w.s.GetOps().SendMessage(ctx, msg)
}

func (w *Wizard) sendMediaFilterMenu(ctx context.Context, session *Session) error {
	status := "disabled"
	if session.Draft.MediaFilter.Enabled {
		status = "enabled"
	}
	msg := api.NewMessage(session.ChatID, fmt.Sprintf("Media filter is %s. Attachments are removed while it is on.", status))
	msg.ReplyMarkup = api.NewInlineKeyboardMarkup(
		api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData("Enable", wizData("media", "on")),
			api.NewInlineKeyboardButtonData("Disable", wizData("media", "off")),
		),
		api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData("« Back", wizData("menu")),
		),
	)
	return w.s.GetOps().SendMessage(ctx, msg)
}

func (w *Wizard) prompt(ctx context.Context, chatID int64, text string) error {
	return w.s.GetOps().SendMessage(ctx, api.NewMessage(chatID, text))
}

// HandleCallback advances the FSM on a button press.
func (w *Wizard) HandleCallback(ctx context.Context, cq *api.CallbackQuery) error {
	if cq.Message == nil {
		return nil
	}
	chatID := cq.Message.Chat.ID
	session, err := w.loadSession(ctx, chatID)
	if err != nil {
		return err
	}
	if session == nil {
		return w.s.GetOps().AnswerCallback(ctx, cq.ID, "Session expired, run /antispam_settings again")
	}

	parts := strings.Split(strings.TrimPrefix(cq.Data, wizardPrefix+":"), ":")
	event := parts[0]
	arg := ""
	if len(parts) > 1 {
		arg = parts[1]
	}

	if err := w.s.GetOps().AnswerCallback(ctx, cq.ID, ""); err != nil {
		return err
	}

	switch event {
	case "menu":
		session.State, session.FilterID = StateMainMenu, ""
		if err := w.saveSession(ctx, session); err != nil {
			return err
		}
		return w.sendMainMenu(ctx, session)

	case "filters":
		session.State, session.FilterID = StateSelectFilter, ""
		if err := w.saveSession(ctx, session); err != nil {
			return err
		}
		return w.sendFilterList(ctx, session)

	case "filter":
		if session.Draft.Filter(arg) == nil {
			return fmt.Errorf("%w: unknown filter %q", gwerrors.ErrInvalidInput, arg)
		}
		session.State, session.FilterID = StateSelectFilter, arg
		if err := w.saveSession(ctx, session); err != nil {
			return err
		}
		return w.sendFilterMenu(ctx, session)

	case "filter_toggle":
		f := session.Draft.Filter(session.FilterID)
		if f == nil {
			return fmt.Errorf("%w: no filter selected", gwerrors.ErrInvalidInput)
		}
		f.Enabled = !f.Enabled
		if err := w.saveSession(ctx, session); err != nil {
			return err
		}
		return w.sendFilterMenu(ctx, session)

	case "toggle":
		session.Draft.Enabled = !session.Draft.Enabled
		if err := w.saveSession(ctx, session); err != nil {
			return err
		}
		return w.sendMainMenu(ctx, session)

	case "ask":
		return w.transitionToInput(ctx, session, arg)

	case "exceptions":
		target := StateSetExceptionsUsers
		promptText := "Send the excepted user ids, comma separated. Send - to clear."
		if arg == "domains" {
			target = StateSetExceptionsDomain
			promptText = "Send the excepted domains, comma separated. Send - to clear."
		}
		session.State = target
		if err := w.saveSession(ctx, session); err != nil {
			return err
		}
		return w.prompt(ctx, chatID, promptText)

	case "media_filter":
		session.State = StateSetMediaFilter
		if err := w.saveSession(ctx, session); err != nil {
			return err
		}
		return w.sendMediaFilterMenu(ctx, session)

	case "media":
		if session.State != StateSetMediaFilter {
			return fmt.Errorf("%w: media toggle outside its state", gwerrors.ErrInvalidInput)
		}
		session.Draft.MediaFilter.Enabled = arg == "on"
		session.State = StateMainMenu
		if err := w.saveSession(ctx, session); err != nil {
			return err
		}
		return w.sendMainMenu(ctx, session)

	case "admin_group":
		session.State = StateSetAdminGroup
		if err := w.saveSession(ctx, session); err != nil {
			return err
		}
		return w.prompt(ctx, chatID, "Send the admin group chat id (-100…). Send 0 to unset.")

	case "action":
		f := session.Draft.Filter(session.FilterID)
		if f == nil {
			return fmt.Errorf("%w: no filter selected", gwerrors.ErrInvalidInput)
		}
		f.Action = arg
		session.State = StateSelectFilter
		if err := w.saveSession(ctx, session); err != nil {
			return err
		}
		return w.sendFilterMenu(ctx, session)

	case "save":
		if err := w.s.SetSettings(ctx, chatID, session.Draft); err != nil {
			if errors.Is(err, gwerrors.ErrInvalidInput) {
				return w.prompt(ctx, chatID, fmt.Sprintf("Settings rejected: %v", err))
			}
			return err
		}
		if err := w.dropSession(ctx, chatID); err != nil {
			return err
		}
		return w.prompt(ctx, chatID, "Settings saved.")

	case "discard":
		if err := w.dropSession(ctx, chatID); err != nil {
			return err
		}
		return w.prompt(ctx, chatID, "Changes discarded.")
	}
	return nil
}

func (w *Wizard) transitionToInput(ctx context.Context, session *Session, state string) error {
	prompts := map[string]string{
		StateSetLimit:        "Send the new limit (a number, at least 1).",
		StateSetDuration:     "Send the new duration in seconds.",
		StateSetFloodSeconds: "Send the flood window in seconds (5-60).",
		StateSetSpamWords:    "Send the forbidden words, comma separated.",
	}
	promptText, ok := prompts[state]
	if !ok && state != StateSetAction {
		return fmt.Errorf("%w: unknown wizard state %q", gwerrors.ErrInvalidInput, state)
	}
	if session.Draft.Filter(session.FilterID) == nil {
		return fmt.Errorf("%w: no filter selected", gwerrors.ErrInvalidInput)
	}
	session.State = state
	if err := w.saveSession(ctx, session); err != nil {
		return err
	}
	if state == StateSetAction {
		return w.sendActionMenu(ctx, session)
	}
	return w.prompt(ctx, session.ChatID, promptText)
}

// HandleText consumes a typed reply for the state that asked for it.
func (w *Wizard) HandleText(ctx context.Context, m *api.Message) (bool, error) {
	session, err := w.loadSession(ctx, m.Chat.ID)
	if err != nil {
		return false, err
	}
	if session == nil || !lo.Contains(textInputStates, session.State) {
		return false, nil
	}
	input := strings.TrimSpace(m.Text)

	fail := func(text string) (bool, error) {
		return true, w.prompt(ctx, m.Chat.ID, text)
	}

	switch session.State {
	case StateSetLimit:
		n, err := strconv.Atoi(input)
		if err != nil || n < 1 {
			return fail("Expected a number of at least 1, try again.")
		}
		session.Draft.Filter(session.FilterID).Limit = n

	case StateSetDuration:
		n, err := strconv.ParseInt(input, 10, 64)
		if err != nil || n < 0 {
			return fail("Expected a non-negative number of seconds, try again.")
		}
		session.Draft.Filter(session.FilterID).Duration = n

	case StateSetFloodSeconds:
		n, err := strconv.Atoi(input)
		if err != nil || n < 5 || n > 60 {
			return fail("Expected a number between 5 and 60, try again.")
		}
		session.Draft.Flood.Seconds = n

	case StateSetSpamWords:
		session.Draft.SpamWords.Words = splitList(input)

	case StateSetExceptionsUsers:
		if input == "-" {
			session.Draft.Exceptions.Users = nil
			break
		}
		ids := make([]int64, 0)
		for _, token := range splitList(input) {
			id, err := strconv.ParseInt(token, 10, 64)
			if err != nil {
				return fail(fmt.Sprintf("%q is not a user id, try again.", token))
			}
			ids = append(ids, id)
		}
		session.Draft.Exceptions.Users = ids

	case StateSetExceptionsDomain:
		if input == "-" {
			session.Draft.Exceptions.Domains = nil
			break
		}
		session.Draft.Exceptions.Domains = lo.Map(splitList(input), func(d string, _ int) string {
			return strings.ToLower(d)
		})

	case StateSetAdminGroup:
		id, err := parseAdminGroupID(input)
		if err != nil {
			return fail("Expected a supergroup id starting with -100, or 0 to unset.")
		}
		session.Draft.AdminGroup = id
	}

	if session.FilterID != "" {
		session.State = StateSelectFilter
	} else {
		session.State = StateMainMenu
	}
	if err := w.saveSession(ctx, session); err != nil {
		return true, err
	}
	if session.FilterID != "" {
		return true, w.sendFilterMenu(ctx, session)
	}
	return true, w.sendMainMenu(ctx, session)
}

func splitList(input string) []string {
	return lo.FilterMap(strings.Split(input, ","), func(s string, _ int) (string, bool) {
		trimmed := strings.TrimSpace(s)
		return trimmed, trimmed != ""
	})
}

func parseAdminGroupID(input string) (int64, error) {
	if input == "0" {
		return 0, nil
	}
	id, err := strconv.ParseInt(input, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: not a chat id", gwerrors.ErrInvalidInput)
	}
	if !strings.HasPrefix(input, "-100") {
		return 0, fmt.Errorf("%w: not a supergroup id", gwerrors.ErrInvalidInput)
	}
	return id, nil
}
