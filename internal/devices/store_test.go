package devices_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jheath/partsbin/internal/devices"
	"github.com/jheath/partsbin/internal/store"
	"github.com/jheath/partsbin/pkg/models"
)

func newDeviceStore(t *testing.T) *devices.Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s, err := devices.NewStore(context.Background(), db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

const testHash = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func TestCreate_IssuesPrefixedID(t *testing.T) {
	s := newDeviceStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, models.CreateDeviceRequest{
		FingerprintHash: testHash,
		Platform:        "linux/amd64",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(id) < 5 || id[:4] != "dev_" {
		t.Errorf("device ID = %q, want dev_ prefix", id)
	}

	exists, err := s.Exists(ctx, id)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Error("created device does not exist")
	}
}

func TestCreate_DuplicateFingerprintReturnsExistingID(t *testing.T) {
	s := newDeviceStore(t)
	ctx := context.Background()

	first, err := s.Create(ctx, models.CreateDeviceRequest{FingerprintHash: testHash})
	if err != nil {
		t.Fatalf("Create first: %v", err)
	}
	second, err := s.Create(ctx, models.CreateDeviceRequest{FingerprintHash: testHash})
	if err != nil {
		t.Fatalf("Create second: %v", err)
	}
	if first != second {
		t.Errorf("duplicate fingerprint issued new ID: %q != %q", first, second)
	}
}

func TestFindByFingerprint(t *testing.T) {
	s := newDeviceStore(t)
	ctx := context.Background()

	if _, err := s.FindByFingerprint(ctx, testHash); !errors.Is(err, devices.ErrNotFound) {
		t.Fatalf("lookup before create = %v, want ErrNotFound", err)
	}

	id, err := s.Create(ctx, models.CreateDeviceRequest{FingerprintHash: testHash})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.FindByFingerprint(ctx, testHash)
	if err != nil {
		t.Fatalf("FindByFingerprint: %v", err)
	}
	if got != id {
		t.Errorf("FindByFingerprint = %q, want %q", got, id)
	}
}

func TestTouch_UnknownDevice(t *testing.T) {
	s := newDeviceStore(t)

	err := s.Touch(context.Background(), "dev_missing")
	if !errors.Is(err, devices.ErrNotFound) {
		t.Errorf("Touch unknown = %v, want ErrNotFound", err)
	}
}

func TestGet_RoundTripsFingerprintData(t *testing.T) {
	s := newDeviceStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, models.CreateDeviceRequest{
		FingerprintHash: testHash,
		FingerprintData: models.Fingerprint{"hostname": "bench-01", "os": "linux"},
		Timezone:        "America/Chicago",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	d, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.FingerprintData["hostname"] != "bench-01" {
		t.Errorf("fingerprint data = %v, want hostname=bench-01", d.FingerprintData)
	}
	if d.Timezone != "America/Chicago" {
		t.Errorf("timezone = %q", d.Timezone)
	}
}

func TestPruneStale(t *testing.T) {
	s := newDeviceStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, models.CreateDeviceRequest{FingerprintHash: testHash})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A fresh device survives a generous retention window.
	n, err := s.PruneStale(ctx, time.Hour)
	if err != nil {
		t.Fatalf("PruneStale: %v", err)
	}
	if n != 0 {
		t.Errorf("pruned %d devices, want 0", n)
	}

	// A zero window makes everything stale.
	n, err = s.PruneStale(ctx, 0)
	if err != nil {
		t.Fatalf("PruneStale: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d devices, want 1", n)
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, devices.ErrNotFound) {
		t.Errorf("Get after prune = %v, want ErrNotFound", err)
	}
}
