// Package devices implements device identity registration and lookup for
// the benchtop agents.
package devices

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jheath/partsbin/internal/store"
	"github.com/jheath/partsbin/pkg/models"
)

// ErrNotFound is returned when no device matches the query.
var ErrNotFound = errors.New("device not found")

// Migrations for the devices component.
var Migrations = []store.Migration{
	{
		Version:     1,
		Description: "create devices table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE devices (
					device_id        TEXT PRIMARY KEY,
					fingerprint_hash TEXT NOT NULL,
					fingerprint_data TEXT NOT NULL DEFAULT '{}',
					user_agent       TEXT NOT NULL DEFAULT '',
					platform         TEXT NOT NULL DEFAULT '',
					timezone         TEXT NOT NULL DEFAULT '',
					created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
					last_seen        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
				);
				CREATE UNIQUE INDEX idx_devices_fingerprint ON devices(fingerprint_hash);
			`)
			return err
		},
	},
}

// Store persists device identities in SQLite.
type Store struct {
	db *store.Store
}

// NewStore creates a device store and runs its migrations.
func NewStore(ctx context.Context, db *store.Store) (*Store, error) {
	if err := db.Migrate(ctx, "devices", Migrations); err != nil {
		return nil, fmt.Errorf("migrate devices: %w", err)
	}
	return &Store{db: db}, nil
}

// Exists reports whether a device with the given ID is registered.
func (s *Store) Exists(ctx context.Context, deviceID string) (bool, error) {
	var count int
	err := s.db.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM devices WHERE device_id = ?", deviceID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query device %q: %w", deviceID, err)
	}
	return count > 0, nil
}

// FindByFingerprint returns the device ID registered for a fingerprint hash.
// Returns ErrNotFound if no device has that fingerprint.
func (s *Store) FindByFingerprint(ctx context.Context, hash string) (string, error) {
	var id string
	err := s.db.DB().QueryRowContext(ctx,
		"SELECT device_id FROM devices WHERE fingerprint_hash = ?", hash,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query fingerprint: %w", err)
	}
	return id, nil
}

// Create registers a new device and returns its issued ID. If a device with
// the same fingerprint hash already exists, the existing ID is returned so
// that concurrent registrations from one machine converge on one identity.
func (s *Store) Create(ctx context.Context, req models.CreateDeviceRequest) (string, error) {
	fpData, err := json.Marshal(req.FingerprintData)
	if err != nil {
		return "", fmt.Errorf("marshal fingerprint data: %w", err)
	}

	id := "dev_" + uuid.NewString()
	err = s.db.Tx(ctx, func(tx *sql.Tx) error {
		// Re-check under the write lock: another agent on the same machine
		// may have registered between lookup and create.
		var existing string
		scanErr := tx.QueryRowContext(ctx,
			"SELECT device_id FROM devices WHERE fingerprint_hash = ?", req.FingerprintHash,
		).Scan(&existing)
		if scanErr == nil {
			id = existing
			return nil
		}
		if !errors.Is(scanErr, sql.ErrNoRows) {
			return scanErr
		}

		_, execErr := tx.ExecContext(ctx, `
			INSERT INTO devices (device_id, fingerprint_hash, fingerprint_data, user_agent, platform, timezone)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, req.FingerprintHash, string(fpData), req.UserAgent, req.Platform, req.Timezone,
		)
		return execErr
	})
	if err != nil {
		return "", fmt.Errorf("create device: %w", err)
	}
	return id, nil
}

// Touch updates a device's last_seen timestamp.
func (s *Store) Touch(ctx context.Context, deviceID string) error {
	res, err := s.db.DB().ExecContext(ctx,
		"UPDATE devices SET last_seen = CURRENT_TIMESTAMP WHERE device_id = ?", deviceID,
	)
	if err != nil {
		return fmt.Errorf("touch device %q: %w", deviceID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns the full device record.
func (s *Store) Get(ctx context.Context, deviceID string) (*models.DeviceIdentity, error) {
	row := s.db.DB().QueryRowContext(ctx, `
		SELECT device_id, fingerprint_hash, fingerprint_data, user_agent, platform, timezone, created_at, last_seen
		FROM devices WHERE device_id = ?`, deviceID)
	return scanDevice(row)
}

// List returns all registered devices ordered by most recently seen.
func (s *Store) List(ctx context.Context) ([]models.DeviceIdentity, error) {
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT device_id, fingerprint_hash, fingerprint_data, user_agent, platform, timezone, created_at, last_seen
		FROM devices ORDER BY last_seen DESC`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var out []models.DeviceIdentity
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// PruneStale deletes devices not seen within the retention window and
// returns how many were removed.
func (s *Store) PruneStale(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	res, err := s.db.DB().ExecContext(ctx,
		"DELETE FROM devices WHERE last_seen < ?", cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("prune devices: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*models.DeviceIdentity, error) {
	var (
		d      models.DeviceIdentity
		fpData string
	)
	err := row.Scan(&d.DeviceID, &d.FingerprintHash, &fpData, &d.UserAgent,
		&d.Platform, &d.Timezone, &d.CreatedAt, &d.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan device: %w", err)
	}
	if err := json.Unmarshal([]byte(fpData), &d.FingerprintData); err != nil {
		// Tolerate malformed stored data rather than failing the read.
		d.FingerprintData = models.Fingerprint{}
	}
	return &d, nil
}
