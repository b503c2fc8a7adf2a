package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/groupwarden/groupwarden/internal/db"
)

func TestEnsureUserPreservesRoleLevel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, err := NewSQLiteClient(ctx, t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	user := &db.User{ID: 7, Username: "alice", DisplayName: "Alice"}
	if err := client.EnsureUser(ctx, user, -100); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := client.SetRoleLevel(ctx, 7, db.RoleSeniorAdm); err != nil {
		t.Fatalf("set role: %v", err)
	}

	// a later message must not demote the user
	if err := client.EnsureUser(ctx, &db.User{ID: 7, Username: "alice2"}, -100); err != nil {
		t.Fatalf("re-ensure: %v", err)
	}

	got, err := client.GetUser(ctx, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RoleLevel != db.RoleSeniorAdm {
		t.Fatalf("role level lost on upsert: got %d", got.RoleLevel)
	}
	if got.Username != "alice2" {
		t.Fatalf("username not refreshed: got %q", got.Username)
	}
}

func TestFindUserByUsername(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, err := NewSQLiteClient(ctx, t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if err := client.EnsureUser(ctx, &db.User{ID: 7, Username: "alice"}, 0); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	got, err := client.FindUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != 7 {
		t.Fatalf("unexpected user: %#v", got)
	}
	if _, err := client.FindUserByUsername(ctx, "ghost"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInactiveMembers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, err := NewSQLiteClient(ctx, t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	now := time.Now()
	if err := client.TouchActivity(ctx, -100, 1, now.AddDate(0, 0, -40)); err != nil {
		t.Fatalf("touch stale: %v", err)
	}
	if err := client.TouchActivity(ctx, -100, 2, now); err != nil {
		t.Fatalf("touch fresh: %v", err)
	}

	inactive, err := client.GetInactiveMembers(ctx, -100, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("inactive: %v", err)
	}
	if len(inactive) != 1 || inactive[0] != 1 {
		t.Fatalf("unexpected inactive set: %v", inactive)
	}

	if err := client.RemoveMember(ctx, -100, 1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	inactive, err = client.GetInactiveMembers(ctx, -100, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("inactive after remove: %v", err)
	}
	if len(inactive) != 0 {
		t.Fatalf("member not removed: %v", inactive)
	}
}
