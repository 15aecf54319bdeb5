package auth_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jheath/partsbin/internal/auth"
	"github.com/jheath/partsbin/internal/store"
)

func newUserStore(t *testing.T) *auth.Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s, err := auth.NewStore(context.Background(), db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestCreateUser_And_Authenticate(t *testing.T) {
	s := newUserStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "alice", "correct horse", auth.RoleMember, "", "electrical")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == "" {
		t.Error("user ID not assigned")
	}

	got, err := s.Authenticate(ctx, "alice", "correct horse")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.Username != "alice" || got.Subteam != "electrical" {
		t.Errorf("user = %+v", got)
	}

	if _, err := s.Authenticate(ctx, "alice", "wrong"); !errors.Is(err, auth.ErrBadCredentials) {
		t.Errorf("wrong password = %v, want ErrBadCredentials", err)
	}
	if _, err := s.Authenticate(ctx, "mallory", "whatever"); !errors.Is(err, auth.ErrBadCredentials) {
		t.Errorf("unknown user = %v, want ErrBadCredentials", err)
	}
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	s := newUserStore(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "alice", "password1", auth.RoleMember, "", ""); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := s.CreateUser(ctx, "alice", "password2", auth.RoleMember, "", ""); !errors.Is(err, auth.ErrUserExists) {
		t.Errorf("duplicate = %v, want ErrUserExists", err)
	}
}

func TestLinkDevice(t *testing.T) {
	s := newUserStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "alice", "password1", auth.RoleMember, "", "")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if err := s.LinkDevice(ctx, u.ID, "dev_1"); err != nil {
		t.Fatalf("LinkDevice: %v", err)
	}
	// Relinking is a no-op, not a duplicate.
	if err := s.LinkDevice(ctx, u.ID, "dev_1"); err != nil {
		t.Fatalf("LinkDevice again: %v", err)
	}
	if err := s.LinkDevice(ctx, u.ID, "dev_2"); err != nil {
		t.Fatalf("LinkDevice second: %v", err)
	}

	got, err := s.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if len(got.Devices) != 2 {
		t.Errorf("devices = %v, want 2 entries", got.Devices)
	}
}
