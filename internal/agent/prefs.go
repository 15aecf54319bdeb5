package agent

import (
	"context"
	"sync"
	"time"

	"github.com/jheath/partsbin/internal/agent/cache"
	"github.com/jheath/partsbin/pkg/models"
	"github.com/jheath/partsbin/pkg/themes"
	"go.uber.org/zap"
)

// persistTimeout bounds background preference writes.
const persistTimeout = 10 * time.Second

// PrefsAPI is the server surface the preference service needs.
type PrefsAPI interface {
	Health(ctx context.Context) error
	GetPreferences(ctx context.Context, identity string) (*models.PreferenceRecord, error)
	SavePreferences(ctx context.Context, identity string, patch models.PreferencePatch) (*models.PreferenceRecord, error)
}

// Prefs is the client-side preference service. Reads never fail: every
// degraded path (unreachable server, missing record) degrades to a usable
// record built from defaults and the local cache. Writes are optimistic --
// the merged record is returned immediately and the remote save is
// best-effort with no rollback.
type Prefs struct {
	api    PrefsAPI
	cache  *cache.Cache
	logger *zap.Logger

	mu        sync.Mutex
	probed    bool
	localOnly bool
	current   *models.PreferenceRecord

	inflight sync.WaitGroup // background persists not yet landed
}

// NewPrefs creates the preference service.
func NewPrefs(api PrefsAPI, c *cache.Cache, logger *zap.Logger) *Prefs {
	return &Prefs{api: api, cache: c, logger: logger}
}

// LocalOnly reports whether this session is operating without a reachable
// server. Probed once per session on first use.
func (p *Prefs) LocalOnly(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.localOnlyLocked(ctx)
}

func (p *Prefs) localOnlyLocked(ctx context.Context) bool {
	if !p.probed {
		p.localOnly = p.api.Health(ctx) != nil
		p.probed = true
		if p.localOnly {
			p.logger.Info("server unreachable, preferences running local-only")
		}
	}
	return p.localOnly
}

// Get returns the preference record for an identity. It never returns an
// error: missing records yield persisted defaults, and an unreachable
// server yields defaults overlaid with the locally cached theme.
func (p *Prefs) Get(ctx context.Context, identity string) models.PreferenceRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.localOnlyLocked(ctx) {
		return p.localRecordLocked(identity)
	}

	record, err := p.api.GetPreferences(ctx, identity)
	if err != nil {
		p.logger.Warn("preference fetch failed, using local record",
			zap.String("identity", identity), zap.Error(err))
		return p.localRecordLocked(identity)
	}

	if record == nil {
		// First touch: derive defaults and persist them remotely so every
		// device of this identity starts from the same record.
		defaults := models.DefaultPreferences(identity)
		saved, err := p.api.SavePreferences(ctx, identity, models.PatchFrom(defaults))
		if err != nil {
			p.logger.Warn("persist first-touch defaults failed",
				zap.String("identity", identity), zap.Error(err))
			p.current = &defaults
			return defaults
		}
		record = saved
	}

	p.current = record
	p.rememberThemeLocked(record.Theme)
	return *record
}

// Save merges a partial patch. The locally merged record is returned
// immediately; the remote write is fire-and-forget, and a remote failure
// never rolls the local state back.
func (p *Prefs) Save(ctx context.Context, identity string, patch models.PreferencePatch) models.PreferenceRecord {
	p.mu.Lock()

	base := p.currentLocked(identity)
	patch.Apply(&base)
	if !themes.Valid(base.Theme) {
		base.Theme = themes.DefaultID
	}
	p.current = &base
	p.rememberThemeLocked(base.Theme)
	local := base

	localOnly := p.localOnlyLocked(ctx)
	p.mu.Unlock()

	if !localOnly {
		p.inflight.Add(1)
		go func() {
			defer p.inflight.Done()
			p.persist(identity, patch)
		}()
	}
	return local
}

// Flush blocks until every background persist started so far has finished.
// Short-lived callers (the CLI) must call it before exiting or optimistic
// writes die with the process.
func (p *Prefs) Flush() {
	p.inflight.Wait()
}

// UpdateTheme is the common single-field write.
func (p *Prefs) UpdateTheme(ctx context.Context, identity, themeID string) models.PreferenceRecord {
	if !themes.Valid(themeID) {
		themeID = themes.DefaultID
	}
	return p.Save(ctx, identity, models.PreferencePatch{Theme: &themeID})
}

// persist runs the background remote save. Uses a fresh context: the write
// must not die with the request that triggered it.
func (p *Prefs) persist(identity string, patch models.PreferencePatch) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	merged, err := p.api.SavePreferences(ctx, identity, patch)
	if err != nil {
		p.logger.Warn("preference sync failed, keeping local state",
			zap.String("identity", identity), zap.Error(err))
		return
	}

	// Adopt the server's post-merge record so sibling-field updates from
	// other devices land here too.
	p.mu.Lock()
	p.current = merged
	p.rememberThemeLocked(merged.Theme)
	p.mu.Unlock()
}

func (p *Prefs) currentLocked(identity string) models.PreferenceRecord {
	if p.current != nil {
		return *p.current
	}
	return p.localRecordLocked(identity)
}

// localRecordLocked builds the best record available without the server.
func (p *Prefs) localRecordLocked(identity string) models.PreferenceRecord {
	if p.current != nil {
		return *p.current
	}
	record := models.DefaultPreferences(identity)
	if theme := p.cache.Theme(); themes.Valid(theme) {
		record.Theme = theme
	}
	p.current = &record
	return record
}

func (p *Prefs) rememberThemeLocked(theme string) {
	if err := p.cache.SetTheme(theme); err != nil {
		p.logger.Warn("cache theme", zap.Error(err))
	}
}
