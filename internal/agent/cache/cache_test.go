package cache_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jheath/partsbin/internal/agent/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) (*cache.Cache, string) {
	t.Helper()
	dir := t.TempDir()
	c, err := cache.New(filepath.Join(dir, "partsbin-benchtop"))
	require.NoError(t, err)
	return c, c.Dir()
}

func TestDeviceID_RoundTrip(t *testing.T) {
	c, _ := newCache(t)

	assert.Empty(t, c.DeviceID())

	require.NoError(t, c.SetDeviceID("dev_abc"))
	assert.Equal(t, "dev_abc", c.DeviceID())

	s := c.Load()
	assert.False(t, s.CachedAt.IsZero())

	require.NoError(t, c.ClearDeviceID())
	assert.Empty(t, c.DeviceID())
}

func TestLoad_CorruptStateActsAsEmpty(t *testing.T) {
	c, dir := newCache(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte("{not json"), 0o600))

	assert.Empty(t, c.DeviceID())
	// Writing over the corrupt file recovers the slot.
	require.NoError(t, c.SetDeviceID("dev_new"))
	assert.Equal(t, "dev_new", c.DeviceID())
}

func TestTheme_IndependentOfDeviceID(t *testing.T) {
	c, _ := newCache(t)

	require.NoError(t, c.SetTheme("ocean"))
	require.NoError(t, c.SetDeviceID("dev_abc"))

	assert.Equal(t, "ocean", c.Theme())
	assert.Equal(t, "dev_abc", c.DeviceID())
}

func TestStateFilePermissions(t *testing.T) {
	c, dir := newCache(t)
	require.NoError(t, c.SetDeviceID("dev_abc"))

	info, err := os.Stat(filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestMigrateLegacy_PlainTextIDFile(t *testing.T) {
	c, dir := newCache(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "device_id"), []byte("dev_legacy\n"), 0o600))

	migrated, err := c.MigrateLegacy()
	require.NoError(t, err)
	assert.True(t, migrated)
	assert.Equal(t, "dev_legacy", c.DeviceID())

	_, statErr := os.Stat(filepath.Join(dir, "device_id"))
	assert.True(t, os.IsNotExist(statErr), "legacy file removed after migration")
}

func TestMigrateLegacy_JSONStateFile(t *testing.T) {
	c, dir := newCache(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "agent-state.json"),
		[]byte(`{"agent_id":"dev_from_json"}`), 0o600))

	migrated, err := c.MigrateLegacy()
	require.NoError(t, err)
	assert.True(t, migrated)
	assert.Equal(t, "dev_from_json", c.DeviceID())
}

func TestMigrateLegacy_NoOpWhenModernStatePopulated(t *testing.T) {
	c, dir := newCache(t)

	require.NoError(t, c.SetDeviceID("dev_current"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "device_id"), []byte("dev_stale"), 0o600))

	migrated, err := c.MigrateLegacy()
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.Equal(t, "dev_current", c.DeviceID(), "legacy state must never clobber a live identity")
}

func TestMigrateLegacy_NothingToMigrate(t *testing.T) {
	c, _ := newCache(t)

	migrated, err := c.MigrateLegacy()
	require.NoError(t, err)
	assert.False(t, migrated)
}
