package settings_test

import (
	"context"
	"testing"

	"github.com/groupwarden/groupwarden/internal/db"
	"github.com/groupwarden/groupwarden/internal/db/sqlite"
	"github.com/groupwarden/groupwarden/internal/settings"
)

func newTestStore(t *testing.T) (*settings.Store, db.Client) {
	t.Helper()
	t.Setenv("GW_TOKEN", "123:TEST")

	client, err := sqlite.NewSQLiteClient(context.Background(), t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return settings.NewStore(client), client
}

func TestStoreCreatesDefaultsLazily(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	profile, err := store.Get(ctx, -100123)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !profile.Enabled || profile.WarningThreshold != 3 {
		t.Fatalf("unexpected defaults: %#v", profile)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	profile := settings.Default()
	profile.Flood.Limit = 9
	profile.AdminGroup = -100999
	if err := store.Set(ctx, -100123, profile); err != nil {
		t.Fatalf("set: %v", err)
	}

	store.Invalidate(-100123)
	got, err := store.Get(ctx, -100123)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Flood.Limit != 9 || got.AdminGroup != -100999 {
		t.Fatalf("round trip lost data: %#v", got)
	}
}

func TestStoreRejectsInvalidProfile(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	bad := settings.Default()
	bad.DefaultAction = "obliterate"
	if err := store.Set(ctx, -100123, bad); err == nil {
		t.Fatalf("expected validation error")
	}

	// the live profile must be untouched
	got, err := store.Get(ctx, -100123)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DefaultAction != settings.ActionWarn {
		t.Fatalf("invalid profile leaked: %q", got.DefaultAction)
	}
}

func TestStoreRecoversFromCorruptPayload(t *testing.T) {
	store, client := newTestStore(t)
	ctx := context.Background()

	if err := client.SetKV(ctx, "settings:antispam:-100123", "{not json", 0); err != nil {
		t.Fatalf("seed corrupt payload: %v", err)
	}
	got, err := store.Get(ctx, -100123)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("recovered profile invalid: %v", err)
	}
}
