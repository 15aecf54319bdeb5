// Package prefs implements the server-side authoritative preference store.
// Each logical identity owns exactly one record; writes are partial merges
// so concurrent devices can never blank each other's fields.
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jheath/partsbin/internal/store"
	"github.com/jheath/partsbin/pkg/models"
	"github.com/jheath/partsbin/pkg/themes"
)

// ErrNotFound is returned when no record exists for an identity.
var ErrNotFound = errors.New("preference record not found")

// Migrations for the prefs component.
var Migrations = []store.Migration{
	{
		Version:     1,
		Description: "create preferences table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE preferences (
					identity              TEXT PRIMARY KEY,
					theme                 TEXT NOT NULL,
					language              TEXT NOT NULL,
					items_per_page        INTEGER NOT NULL,
					default_view          TEXT NOT NULL,
					notifications_enabled INTEGER NOT NULL,
					auto_backup           INTEGER NOT NULL,
					updated_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
				)
			`)
			return err
		},
	},
	{
		Version:     2,
		Description: "create preference history table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE preference_history (
					id         INTEGER PRIMARY KEY AUTOINCREMENT,
					identity   TEXT NOT NULL,
					theme      TEXT NOT NULL,
					changed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
				);
				CREATE INDEX idx_pref_history_identity ON preference_history(identity);
			`)
			return err
		},
	},
}

// Store persists preference records in SQLite.
type Store struct {
	db *store.Store
}

// NewStore creates a preference store and runs its migrations.
func NewStore(ctx context.Context, db *store.Store) (*Store, error) {
	if err := db.Migrate(ctx, "prefs", Migrations); err != nil {
		return nil, fmt.Errorf("migrate prefs: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the record for an identity, or ErrNotFound.
func (s *Store) Get(ctx context.Context, identity string) (*models.PreferenceRecord, error) {
	row := s.db.DB().QueryRowContext(ctx, `
		SELECT identity, theme, language, items_per_page, default_view,
		       notifications_enabled, auto_backup, updated_at
		FROM preferences WHERE identity = ?`, identity)

	var r models.PreferenceRecord
	err := row.Scan(&r.Identity, &r.Theme, &r.Language, &r.ItemsPerPage,
		&r.DefaultView, &r.NotificationsEnabled, &r.AutoBackup, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query preferences %q: %w", identity, err)
	}
	return &r, nil
}

// Merge applies a partial patch to an identity's record, creating the record
// from defaults first if none exists. Fields absent from the patch keep
// their stored values. Returns the post-merge record.
func (s *Store) Merge(ctx context.Context, identity string, patch models.PreferencePatch) (*models.PreferenceRecord, error) {
	var merged models.PreferenceRecord

	err := s.db.Tx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT identity, theme, language, items_per_page, default_view,
			       notifications_enabled, auto_backup, updated_at
			FROM preferences WHERE identity = ?`, identity)

		var r models.PreferenceRecord
		scanErr := row.Scan(&r.Identity, &r.Theme, &r.Language, &r.ItemsPerPage,
			&r.DefaultView, &r.NotificationsEnabled, &r.AutoBackup, &r.UpdatedAt)
		if errors.Is(scanErr, sql.ErrNoRows) {
			r = models.DefaultPreferences(identity)
		} else if scanErr != nil {
			return fmt.Errorf("query preferences %q: %w", identity, scanErr)
		}

		prevTheme := r.Theme
		patch.Apply(&r)

		// An unknown theme never persists; snap to the default rather than
		// rejecting the whole patch.
		if !themes.Valid(r.Theme) {
			r.Theme = themes.DefaultID
		}
		r.UpdatedAt = time.Now().UTC()

		_, execErr := tx.ExecContext(ctx, `
			INSERT INTO preferences (identity, theme, language, items_per_page, default_view,
			                         notifications_enabled, auto_backup, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(identity) DO UPDATE SET
				theme = excluded.theme,
				language = excluded.language,
				items_per_page = excluded.items_per_page,
				default_view = excluded.default_view,
				notifications_enabled = excluded.notifications_enabled,
				auto_backup = excluded.auto_backup,
				updated_at = excluded.updated_at`,
			r.Identity, r.Theme, r.Language, r.ItemsPerPage, r.DefaultView,
			r.NotificationsEnabled, r.AutoBackup, r.UpdatedAt,
		)
		if execErr != nil {
			return fmt.Errorf("upsert preferences %q: %w", identity, execErr)
		}

		if r.Theme != prevTheme {
			if _, histErr := tx.ExecContext(ctx,
				"INSERT INTO preference_history (identity, theme) VALUES (?, ?)",
				r.Identity, r.Theme,
			); histErr != nil {
				return fmt.Errorf("record theme change: %w", histErr)
			}
		}

		merged = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &merged, nil
}

// Delete removes an identity's record. Deleting a missing record is a no-op.
func (s *Store) Delete(ctx context.Context, identity string) error {
	_, err := s.db.DB().ExecContext(ctx,
		"DELETE FROM preferences WHERE identity = ?", identity,
	)
	if err != nil {
		return fmt.Errorf("delete preferences %q: %w", identity, err)
	}
	return nil
}

// List returns all preference records, most recently updated first.
func (s *Store) List(ctx context.Context) ([]models.PreferenceRecord, error) {
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT identity, theme, language, items_per_page, default_view,
		       notifications_enabled, auto_backup, updated_at
		FROM preferences ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	defer rows.Close()

	var out []models.PreferenceRecord
	for rows.Next() {
		var r models.PreferenceRecord
		if err := rows.Scan(&r.Identity, &r.Theme, &r.Language, &r.ItemsPerPage,
			&r.DefaultView, &r.NotificationsEnabled, &r.AutoBackup, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan preferences: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneHistory deletes theme-change history older than the retention window.
func (s *Store) PruneHistory(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	res, err := s.db.DB().ExecContext(ctx,
		"DELETE FROM preference_history WHERE changed_at < ?", cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("prune preference history: %w", err)
	}
	return res.RowsAffected()
}
