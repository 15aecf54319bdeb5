package prefs_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jheath/partsbin/internal/prefs"
	"github.com/jheath/partsbin/internal/store"
	"github.com/jheath/partsbin/pkg/models"
)

func newPrefStore(t *testing.T) *prefs.Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s, err := prefs.NewStore(context.Background(), db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

func TestGet_MissingRecord(t *testing.T) {
	s := newPrefStore(t)

	_, err := s.Get(context.Background(), "alice")
	if !errors.Is(err, prefs.ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestMerge_CreatesFromDefaults(t *testing.T) {
	s := newPrefStore(t)
	ctx := context.Background()

	r, err := s.Merge(ctx, "alice", models.PreferencePatch{Theme: strPtr("ocean")})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	// The patched field takes effect; everything else comes from defaults.
	if r.Theme != "ocean" {
		t.Errorf("theme = %q, want ocean", r.Theme)
	}
	if r.Language != models.DefaultLanguage || r.ItemsPerPage != models.DefaultItemsPerPage {
		t.Errorf("defaults not applied: %+v", r)
	}
	if !r.NotificationsEnabled || r.AutoBackup {
		t.Errorf("boolean defaults wrong: %+v", r)
	}
}

func TestMerge_PreservesSiblingFields(t *testing.T) {
	s := newPrefStore(t)
	ctx := context.Background()

	if _, err := s.Merge(ctx, "alice", models.PreferencePatch{
		Theme:        strPtr("forest"),
		ItemsPerPage: intPtr(50),
	}); err != nil {
		t.Fatalf("Merge seed: %v", err)
	}

	// A later patch touching only language must not disturb theme or paging.
	r, err := s.Merge(ctx, "alice", models.PreferencePatch{Language: strPtr("es")})
	if err != nil {
		t.Fatalf("Merge patch: %v", err)
	}
	if r.Theme != "forest" || r.ItemsPerPage != 50 {
		t.Errorf("sibling fields dropped: %+v", r)
	}
	if r.Language != "es" {
		t.Errorf("language = %q, want es", r.Language)
	}
}

func TestMerge_InvalidThemeSnapsToDefault(t *testing.T) {
	s := newPrefStore(t)

	r, err := s.Merge(context.Background(), "alice", models.PreferencePatch{Theme: strPtr("hotdog-stand")})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if r.Theme != models.DefaultTheme {
		t.Errorf("theme = %q, want %q", r.Theme, models.DefaultTheme)
	}
}

func TestDelete_IsIdempotent(t *testing.T) {
	s := newPrefStore(t)
	ctx := context.Background()

	if _, err := s.Merge(ctx, "alice", models.PreferencePatch{AutoBackup: boolPtr(true)}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := s.Delete(ctx, "alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "alice"); err != nil {
		t.Fatalf("Delete again: %v", err)
	}
	if _, err := s.Get(ctx, "alice"); !errors.Is(err, prefs.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestList_OrdersAndIsolatesIdentities(t *testing.T) {
	s := newPrefStore(t)
	ctx := context.Background()

	for _, id := range []string{"alice", "dev_123", "bob"} {
		if _, err := s.Merge(ctx, id, models.PreferencePatch{}); err != nil {
			t.Fatalf("Merge %s: %v", id, err)
		}
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
}
