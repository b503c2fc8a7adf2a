package antispam_test

import (
	"context"
	"testing"
	"time"

	"github.com/groupwarden/groupwarden/internal/antispam"
	"github.com/groupwarden/groupwarden/internal/db"
	"github.com/groupwarden/groupwarden/internal/settings"
	"github.com/groupwarden/groupwarden/internal/telegram"
)

func TestCallbackEncodeParseRoundTrip(t *testing.T) {
	t.Parallel()

	original := &antispam.CallbackData{
		Verb:   antispam.VerbCancel,
		UserID: 7,
		ChatID: -1001234567890,
		Action: settings.ActionMute,
	}
	parsed, err := antispam.ParseCallback(original.Encode())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if *parsed != *original {
		t.Fatalf("round trip mismatch: got %#v want %#v", parsed, original)
	}
}

func TestParseCallbackRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, data := range []string{
		"",
		"spamctl",
		"spamctl:confirm:7",
		"spamctl:yeet:7:-100:mute",
		"other:confirm:7:-100:mute",
		"spamctl:cancel:seven:-100:mute",
		"spamctl:cancel:7:chat:mute",
	} {
		if _, err := antispam.ParseCallback(data); err == nil {
			t.Fatalf("accepted garbage payload %q", data)
		}
	}
}

func TestIsControlCallback(t *testing.T) {
	t.Parallel()

	if !antispam.IsControlCallback("spamctl:confirm:7:-100:warn") {
		t.Fatalf("own payload not recognized")
	}
	if antispam.IsControlCallback("wiz:menu") {
		t.Fatalf("foreign payload claimed")
	}
}

func TestCancelReversesWarn(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	ctx := context.Background()
	notifier := antispam.NewNotifier(telegram.NewOperations(&fakeBot{}), client)

	warning := &db.Warning{ChatID: -100, UserID: 7, Reason: "flood", IssuedAt: time.Now()}
	if err := client.AppendWarning(ctx, warning); err != nil {
		t.Fatalf("seed warning: %v", err)
	}

	cb := &antispam.CallbackData{Verb: antispam.VerbCancel, UserID: 7, ChatID: -100, Action: settings.ActionWarn}
	if err := notifier.Cancel(ctx, cb); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	count, err := client.CountWarnings(ctx, -100, 7)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("warning not popped: %d", count)
	}
}

func TestCancelReversesMute(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	ctx := context.Background()
	fake := &fakeBot{}
	notifier := antispam.NewNotifier(telegram.NewOperations(fake), client)

	mute := &db.MuteState{ChatID: -100, UserID: 7, Until: time.Now().Add(time.Hour), IssuedAt: time.Now()}
	if err := client.SetMute(ctx, mute); err != nil {
		t.Fatalf("seed mute: %v", err)
	}

	cb := &antispam.CallbackData{Verb: antispam.VerbCancel, UserID: 7, ChatID: -100, Action: settings.ActionMute}
	if err := notifier.Cancel(ctx, cb); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	got, err := client.GetMute(ctx, -100, 7)
	if err != nil {
		t.Fatalf("get mute: %v", err)
	}
	if got.ActiveMute(time.Now()) {
		t.Fatalf("mute state not cleared")
	}
	if fake.count(isRestrict) != 1 {
		t.Fatalf("expected one unrestrict call, got %d", fake.count(isRestrict))
	}
}

func TestCancelDeleteIsInformational(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	fake := &fakeBot{}
	notifier := antispam.NewNotifier(telegram.NewOperations(fake), client)

	cb := &antispam.CallbackData{Verb: antispam.VerbCancel, UserID: 7, ChatID: -100, Action: settings.ActionDelete}
	if err := notifier.Cancel(context.Background(), cb); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("delete cancel must not call the platform: %d calls", len(fake.calls))
	}
}
