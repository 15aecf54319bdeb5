// Package testutil provides shared test fixtures.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/jheath/partsbin/pkg/models"
)

// NewDeviceIdentity returns a DeviceIdentity with sensible defaults,
// suitable for test fixtures. Override individual fields with options.
func NewDeviceIdentity(opts ...func(*models.DeviceIdentity)) models.DeviceIdentity {
	d := models.DeviceIdentity{
		DeviceID:        "dev_" + uuid.New().String(),
		FingerprintHash: "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		UserAgent:       "partsbin-benchtop",
		Platform:        "linux/amd64",
		Timezone:        "UTC",
		CreatedAt:       time.Now().UTC(),
		LastSeen:        time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// WithFingerprintHash sets the identity's fingerprint hash.
func WithFingerprintHash(hash string) func(*models.DeviceIdentity) {
	return func(d *models.DeviceIdentity) { d.FingerprintHash = hash }
}

// WithPlatform sets the identity's platform string.
func WithPlatform(platform string) func(*models.DeviceIdentity) {
	return func(d *models.DeviceIdentity) { d.Platform = platform }
}

// WithLastSeen sets the identity's last_seen timestamp.
func WithLastSeen(t time.Time) func(*models.DeviceIdentity) {
	return func(d *models.DeviceIdentity) { d.LastSeen = t }
}

// NewPreferenceRecord returns a PreferenceRecord built from the defaults,
// suitable for test fixtures.
func NewPreferenceRecord(identity string, opts ...func(*models.PreferenceRecord)) models.PreferenceRecord {
	r := models.DefaultPreferences(identity)
	r.UpdatedAt = time.Now().UTC()
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// WithTheme sets the record's theme.
func WithTheme(theme string) func(*models.PreferenceRecord) {
	return func(r *models.PreferenceRecord) { r.Theme = theme }
}

// WithItemsPerPage sets the record's page size.
func WithItemsPerPage(n int) func(*models.PreferenceRecord) {
	return func(r *models.PreferenceRecord) { r.ItemsPerPage = n }
}

// NewInventoryItem returns an InventoryItem suitable for test fixtures.
func NewInventoryItem(partNumber string, opts ...func(*models.InventoryItem)) models.InventoryItem {
	it := models.InventoryItem{
		PartNumber:  partNumber,
		Quantity:    1,
		Description: "test part",
		Category:    "misc",
		CreatedBy:   "tester",
	}
	for _, opt := range opts {
		opt(&it)
	}
	return it
}

// WithQuantity sets the item quantity.
func WithQuantity(n int) func(*models.InventoryItem) {
	return func(it *models.InventoryItem) { it.Quantity = n }
}

// WithCategory sets the item category.
func WithCategory(c string) func(*models.InventoryItem) {
	return func(it *models.InventoryItem) { it.Category = c }
}
