// Package cache persists the agent's local state: the cached device ID and
// a local theme fallback used when the server is unreachable.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// stateFile is the current on-disk slot.
	stateFile = "state.json"
	// schemaVersion is bumped when the state layout changes.
	schemaVersion = 2

	// Legacy artifacts from the v1 agent: a plain-text device ID file and a
	// loosely structured JSON state file.
	legacyIDFile    = "device_id"
	legacyStateFile = "agent-state.json"
)

// State is the persisted agent state.
type State struct {
	SchemaVersion int       `json:"schema_version"`
	DeviceID      string    `json:"device_id,omitempty"`
	CachedAt      time.Time `json:"cached_at,omitempty"`
	// Theme is a local fallback applied before the server answers, and the
	// only theme source when running without a server.
	Theme string `json:"theme,omitempty"`
}

// Cache reads and writes agent state under a directory.
type Cache struct {
	dir string
}

// New creates a Cache rooted at dir, creating the directory if needed.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir %q: %w", dir, err)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the state directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Load reads the current state. A missing or unreadable state file yields an
// empty state, never an error: local state is a cache, and a corrupt cache
// is equivalent to no cache.
func (c *Cache) Load() State {
	var s State
	b, err := os.ReadFile(filepath.Join(c.dir, stateFile))
	if err != nil {
		return State{SchemaVersion: schemaVersion}
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return State{SchemaVersion: schemaVersion}
	}
	return s
}

// save writes state atomically with owner-only permissions.
func (c *Cache) save(s State) error {
	s.SchemaVersion = schemaVersion

	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	path := filepath.Join(c.dir, stateFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	return nil
}

// DeviceID returns the cached device ID, or "" if none is cached.
func (c *Cache) DeviceID() string {
	return c.Load().DeviceID
}

// SetDeviceID caches a device ID with the current timestamp.
func (c *Cache) SetDeviceID(id string) error {
	s := c.Load()
	s.DeviceID = id
	s.CachedAt = time.Now().UTC()
	return c.save(s)
}

// ClearDeviceID drops the cached device ID. Called when the server no
// longer recognizes the cached value.
func (c *Cache) ClearDeviceID() error {
	s := c.Load()
	s.DeviceID = ""
	s.CachedAt = time.Time{}
	return c.save(s)
}

// Theme returns the locally cached theme, or "" if none is set.
func (c *Cache) Theme() string {
	return c.Load().Theme
}

// SetTheme stores the local theme fallback.
func (c *Cache) SetTheme(theme string) error {
	s := c.Load()
	s.Theme = theme
	return c.save(s)
}

// MigrateLegacy performs the one-time import of v1 agent state. If the
// current state already has a device ID the migration is a no-op, so a
// half-written legacy file can never clobber a working identity. Legacy
// artifacts are removed once their content is safe in the new slot.
func (c *Cache) MigrateLegacy() (migrated bool, err error) {
	if c.Load().DeviceID != "" {
		c.removeLegacyArtifacts()
		return false, nil
	}

	id := c.readLegacyID()
	if id == "" {
		return false, nil
	}

	if err := c.SetDeviceID(id); err != nil {
		return false, fmt.Errorf("migrate legacy state: %w", err)
	}
	c.removeLegacyArtifacts()
	return true, nil
}

// readLegacyID tries the v1 artifacts in order of reliability.
func (c *Cache) readLegacyID() string {
	// agent-state.json carried the ID under either key depending on agent
	// minor version.
	if b, err := os.ReadFile(filepath.Join(c.dir, legacyStateFile)); err == nil {
		var legacy struct {
			DeviceID string `json:"device_id"`
			AgentID  string `json:"agent_id"`
		}
		if json.Unmarshal(b, &legacy) == nil {
			if legacy.DeviceID != "" {
				return legacy.DeviceID
			}
			if legacy.AgentID != "" {
				return legacy.AgentID
			}
		}
	}

	if b, err := os.ReadFile(filepath.Join(c.dir, legacyIDFile)); err == nil {
		return strings.TrimSpace(string(b))
	}
	return ""
}

func (c *Cache) removeLegacyArtifacts() {
	for _, name := range []string{legacyIDFile, legacyStateFile} {
		err := os.Remove(filepath.Join(c.dir, name))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			// Best-effort cleanup; a leftover file only costs a stat next run.
			continue
		}
	}
}
