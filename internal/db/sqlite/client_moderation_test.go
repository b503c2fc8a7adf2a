package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/groupwarden/groupwarden/internal/db"
)

func TestWarningsAppendCountPop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, err := NewSQLiteClient(ctx, t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	now := time.Now()
	for i := 0; i < 3; i++ {
		warning := &db.Warning{
			ChatID:   -100,
			UserID:   7,
			Reason:   "flood",
			IssuedAt: now.Add(time.Duration(i) * time.Second),
		}
		if err := client.AppendWarning(ctx, warning); err != nil {
			t.Fatalf("append #%d: %v", i+1, err)
		}
	}

	count, err := client.CountWarnings(ctx, -100, 7)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("unexpected count: got %d want 3", count)
	}

	popped, err := client.PopWarning(ctx, -100, 7)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if !popped {
		t.Fatalf("expected a warning to pop")
	}
	count, err = client.CountWarnings(ctx, -100, 7)
	if err != nil {
		t.Fatalf("recount: %v", err)
	}
	if count != 2 {
		t.Fatalf("unexpected count after pop: got %d want 2", count)
	}

	if err := client.ClearWarnings(ctx, -100, 7); err != nil {
		t.Fatalf("clear: %v", err)
	}
	popped, err = client.PopWarning(ctx, -100, 7)
	if err != nil {
		t.Fatalf("pop empty: %v", err)
	}
	if popped {
		t.Fatalf("popped from empty warning list")
	}
}

func TestMuteRoundTripAndExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, err := NewSQLiteClient(ctx, t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	now := time.Now()
	mute := &db.MuteState{
		ChatID:   -100,
		UserID:   7,
		Until:    now.Add(30 * time.Minute),
		Reason:   "flood",
		IssuedAt: now,
	}
	if err := client.SetMute(ctx, mute); err != nil {
		t.Fatalf("set mute: %v", err)
	}

	got, err := client.GetMute(ctx, -100, 7)
	if err != nil {
		t.Fatalf("get mute: %v", err)
	}
	if !got.ActiveMute(now) {
		t.Fatalf("expected active mute: %#v", got)
	}
	if got.ActiveMute(now.Add(time.Hour)) {
		t.Fatalf("mute should expire at read time")
	}

	if err := client.ClearMute(ctx, -100, 7); err != nil {
		t.Fatalf("clear mute: %v", err)
	}
	got, err = client.GetMute(ctx, -100, 7)
	if err != nil {
		t.Fatalf("get cleared mute: %v", err)
	}
	if got.ActiveMute(now) {
		t.Fatalf("cleared mute still active")
	}
}

func TestPermanentBanRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, err := NewSQLiteClient(ctx, t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	now := time.Now()
	ban := &db.BanState{
		ChatID:   -100,
		UserID:   7,
		Reason:   "spam words",
		IssuedAt: now,
	}
	if err := client.SetBan(ctx, ban); err != nil {
		t.Fatalf("set ban: %v", err)
	}

	got, err := client.GetBan(ctx, -100, 7)
	if err != nil {
		t.Fatalf("get ban: %v", err)
	}
	if !got.Until.IsZero() {
		t.Fatalf("permanent ban should read back with zero until: %v", got.Until)
	}
	if !got.ActiveBan(now.AddDate(10, 0, 0)) {
		t.Fatalf("permanent ban should never expire")
	}

	if err := client.ClearBan(ctx, -100, 7); err != nil {
		t.Fatalf("clear ban: %v", err)
	}
	got, err = client.GetBan(ctx, -100, 7)
	if err != nil {
		t.Fatalf("get cleared ban: %v", err)
	}
	if got.ActiveBan(now) {
		t.Fatalf("cleared ban still active")
	}
}

func TestModerationLogOrderAndLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, err := NewSQLiteClient(ctx, t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	now := time.Now()
	for i, action := range []string{"delete", "warn", "mute"} {
		entry := &db.ModerationLog{
			ChatID:   -100,
			UserID:   7,
			Action:   action,
			IssuedAt: now.Add(time.Duration(i) * time.Second),
		}
		if err := client.LogModerationAction(ctx, entry); err != nil {
			t.Fatalf("log %q: %v", action, err)
		}
	}

	logs, err := client.GetModerationLogs(ctx, -100, 2)
	if err != nil {
		t.Fatalf("get logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("unexpected log count: got %d want 2", len(logs))
	}
	if logs[0].Action != "mute" || logs[1].Action != "warn" {
		t.Fatalf("logs not newest-first: %q, %q", logs[0].Action, logs[1].Action)
	}
}
