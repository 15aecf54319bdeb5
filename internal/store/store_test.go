package store_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jheath/partsbin/internal/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMigrate_AppliesOnce(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	applied := 0
	migrations := []store.Migration{
		{
			Version:     1,
			Description: "create widgets table",
			Up: func(tx *sql.Tx) error {
				applied++
				_, err := tx.Exec(`CREATE TABLE widgets (id TEXT PRIMARY KEY)`)
				return err
			},
		},
	}

	if err := s.Migrate(ctx, "widgets", migrations); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := s.Migrate(ctx, "widgets", migrations); err != nil {
		t.Fatalf("Migrate (second run): %v", err)
	}
	if applied != 1 {
		t.Errorf("migration applied %d times, want 1", applied)
	}
}

func TestMigrate_ComponentsAreIndependent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	mk := func(table string) []store.Migration {
		return []store.Migration{{
			Version:     1,
			Description: "create " + table,
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`CREATE TABLE ` + table + ` (id TEXT PRIMARY KEY)`)
				return err
			},
		}}
	}

	if err := s.Migrate(ctx, "alpha", mk("alpha_rows")); err != nil {
		t.Fatalf("Migrate alpha: %v", err)
	}
	if err := s.Migrate(ctx, "beta", mk("beta_rows")); err != nil {
		t.Fatalf("Migrate beta: %v", err)
	}

	for _, table := range []string{"alpha_rows", "beta_rows"} {
		if _, err := s.DB().Exec(`INSERT INTO ` + table + ` (id) VALUES ('x')`); err != nil {
			t.Errorf("insert into %s: %v", table, err)
		}
	}
}

func TestTx_RollbackOnError(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if _, err := s.DB().Exec(`CREATE TABLE items (id TEXT PRIMARY KEY)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	boom := errors.New("boom")
	err := s.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO items (id) VALUES ('a')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Tx error = %v, want boom", err)
	}

	var count int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("rows after rollback = %d, want 0", count)
	}
}

func TestCheckVersion(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	// First run records the version.
	if err := s.CheckVersion(ctx, "0.2.0"); err != nil {
		t.Fatalf("CheckVersion first run: %v", err)
	}
	// Same version passes.
	if err := s.CheckVersion(ctx, "0.2.0"); err != nil {
		t.Fatalf("CheckVersion same: %v", err)
	}
	// Newer binary upgrades the stored version.
	if err := s.CheckVersion(ctx, "0.3.0"); err != nil {
		t.Fatalf("CheckVersion newer: %v", err)
	}
	// Older binary is rejected.
	if err := s.CheckVersion(ctx, "0.2.0"); !errors.Is(err, store.ErrNewerSchema) {
		t.Fatalf("CheckVersion older = %v, want ErrNewerSchema", err)
	}
	// dev always passes.
	if err := s.CheckVersion(ctx, "dev"); err != nil {
		t.Fatalf("CheckVersion dev: %v", err)
	}
}
