package handlers

import (
	"context"
	"sync"
	"testing"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/groupwarden/groupwarden/internal/db"
	"github.com/groupwarden/groupwarden/internal/db/sqlite"
	"github.com/groupwarden/groupwarden/internal/settings"
	"github.com/groupwarden/groupwarden/internal/telegram"
)

type recordingBot struct {
	mu    sync.Mutex
	calls []api.Chattable
}

func (r *recordingBot) Request(c api.Chattable) (*api.APIResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	return &api.APIResponse{Ok: true}, nil
}

// testService wires a real store behind the service interface without
// touching process-level config.
type testService struct {
	db       db.Client
	ops      *telegram.Operations
	profiles map[int64]*settings.Antispam
}

func newTestService(t *testing.T) (*testService, *recordingBot) {
	t.Helper()
	client, err := sqlite.NewSQLiteClient(context.Background(), t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	bot := &recordingBot{}
	return &testService{
		db:       client,
		ops:      telegram.NewOperations(bot),
		profiles: map[int64]*settings.Antispam{},
	}, bot
}

func (s *testService) GetBot() *api.BotAPI          { return nil }
func (s *testService) GetOps() *telegram.Operations { return s.ops }
func (s *testService) GetDB() db.Client             { return s.db }

func (s *testService) GetSettings(ctx context.Context, chatID int64) (*settings.Antispam, error) {
	if profile, ok := s.profiles[chatID]; ok {
		return profile, nil
	}
	return settings.Default(), nil
}

func (s *testService) SetSettings(ctx context.Context, chatID int64, profile *settings.Antispam) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	s.profiles[chatID] = profile
	return nil
}

func callback(chatID int64, data string) *api.CallbackQuery {
	return &api.CallbackQuery{
		ID:      "cb-1",
		Data:    data,
		Message: &api.Message{Chat: api.Chat{ID: chatID}},
	}
}

func textMessage(chatID int64, text string) *api.Message {
	return &api.Message{Chat: api.Chat{ID: chatID}, Text: text}
}

func TestWizardFullFlow(t *testing.T) {
	service, _ := newTestService(t)
	wizard := NewWizard(service)
	ctx := context.Background()
	const chatID = int64(-100)

	if err := wizard.Start(ctx, chatID); err != nil {
		t.Fatalf("start: %v", err)
	}
	pending, err := wizard.HasPendingInput(ctx, chatID)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if pending {
		t.Fatalf("main menu must not expect text input")
	}

	steps := []string{
		"wiz:filters",
		"wiz:filter:flood",
		"wiz:ask:set_limit",
	}
	for _, data := range steps {
		if err := wizard.HandleCallback(ctx, callback(chatID, data)); err != nil {
			t.Fatalf("callback %q: %v", data, err)
		}
	}

	pending, err = wizard.HasPendingInput(ctx, chatID)
	if err != nil {
		t.Fatalf("pending after ask: %v", err)
	}
	if !pending {
		t.Fatalf("set_limit must expect text input")
	}

	consumed, err := wizard.HandleText(ctx, textMessage(chatID, "7"))
	if err != nil {
		t.Fatalf("text input: %v", err)
	}
	if !consumed {
		t.Fatalf("valid input not consumed")
	}

	if err := wizard.HandleCallback(ctx, callback(chatID, "wiz:save")); err != nil {
		t.Fatalf("save: %v", err)
	}

	saved, ok := service.profiles[chatID]
	if !ok {
		t.Fatalf("settings not persisted on save")
	}
	if saved.Flood.Limit != 7 {
		t.Fatalf("draft change lost: flood limit %d", saved.Flood.Limit)
	}

	// session is gone, further callbacks hit the expiry notice path
	session, err := wizard.loadSession(ctx, chatID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session != nil {
		t.Fatalf("session survived save")
	}
}

func TestWizardRejectsBadLimitInput(t *testing.T) {
	service, _ := newTestService(t)
	wizard := NewWizard(service)
	ctx := context.Background()
	const chatID = int64(-100)

	if err := wizard.Start(ctx, chatID); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, data := range []string{"wiz:filters", "wiz:filter:flood", "wiz:ask:set_limit"} {
		if err := wizard.HandleCallback(ctx, callback(chatID, data)); err != nil {
			t.Fatalf("callback %q: %v", data, err)
		}
	}

	consumed, err := wizard.HandleText(ctx, textMessage(chatID, "zero"))
	if err != nil {
		t.Fatalf("text input: %v", err)
	}
	if !consumed {
		t.Fatalf("bad input should still be consumed by the wizard")
	}

	// state must remain set_limit so the admin can try again
	session, err := wizard.loadSession(ctx, chatID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session == nil || session.State != StateSetLimit {
		t.Fatalf("state lost on invalid input: %#v", session)
	}
}

func TestWizardDiscardDropsDraft(t *testing.T) {
	service, _ := newTestService(t)
	wizard := NewWizard(service)
	ctx := context.Background()
	const chatID = int64(-100)

	if err := wizard.Start(ctx, chatID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := wizard.HandleCallback(ctx, callback(chatID, "wiz:toggle")); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := wizard.HandleCallback(ctx, callback(chatID, "wiz:discard")); err != nil {
		t.Fatalf("discard: %v", err)
	}

	if _, ok := service.profiles[chatID]; ok {
		t.Fatalf("discard must not persist the draft")
	}
}

func TestWizardMediaFilterState(t *testing.T) {
	service, _ := newTestService(t)
	wizard := NewWizard(service)
	ctx := context.Background()
	const chatID = int64(-100)

	if err := wizard.Start(ctx, chatID); err != nil {
		t.Fatalf("start: %v", err)
	}

	// the toggle must not work before entering the state
	if err := wizard.HandleCallback(ctx, callback(chatID, "wiz:media:on")); err == nil {
		t.Fatalf("media toggle accepted outside its state")
	}

	if err := wizard.HandleCallback(ctx, callback(chatID, "wiz:media_filter")); err != nil {
		t.Fatalf("enter media filter state: %v", err)
	}
	pending, err := wizard.HasPendingInput(ctx, chatID)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if pending {
		t.Fatalf("media filter state must not expect text input")
	}

	if err := wizard.HandleCallback(ctx, callback(chatID, "wiz:media:on")); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	session, err := wizard.loadSession(ctx, chatID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session.State != StateMainMenu {
		t.Fatalf("toggle did not return to the main menu: %q", session.State)
	}
	if !session.Draft.MediaFilter.Enabled {
		t.Fatalf("draft media filter not enabled")
	}

	if err := wizard.HandleCallback(ctx, callback(chatID, "wiz:save")); err != nil {
		t.Fatalf("save: %v", err)
	}
	saved, ok := service.profiles[chatID]
	if !ok || !saved.MediaFilter.Enabled {
		t.Fatalf("media filter change not persisted: %#v", saved)
	}
}

func TestWizardAdminGroupValidation(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		input string
		want  int64
		ok    bool
	}{
		{"-1001234567890", -1001234567890, true},
		{"0", 0, true},
		{"12345", 0, false},
		{"-10", 0, false},
		{"banana", 0, false},
	} {
		got, err := parseAdminGroupID(tc.input)
		if tc.ok != (err == nil) {
			t.Fatalf("input %q: unexpected error state %v", tc.input, err)
		}
		if err == nil && got != tc.want {
			t.Fatalf("input %q: got %d want %d", tc.input, got, tc.want)
		}
	}
}
