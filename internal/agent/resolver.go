// Package agent implements the benchtop client core: device identity
// resolution, preference sync, and theme management.
package agent

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jheath/partsbin/internal/agent/cache"
	"github.com/jheath/partsbin/internal/agent/fingerprint"
	"github.com/jheath/partsbin/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Outcome classifies how an identity resolution concluded.
type Outcome string

const (
	// OutcomeCached means the locally cached ID was verified and reused.
	OutcomeCached Outcome = "cached"
	// OutcomeMatched means the server matched this device by fingerprint.
	OutcomeMatched Outcome = "matched"
	// OutcomeCreated means a fresh identity was registered.
	OutcomeCreated Outcome = "created"
	// OutcomeFallback means the server was unreachable and a temporary ID
	// was issued. The temporary ID is cached so repeated resolutions during
	// one outage agree; step-1 verification discards it once the server is
	// back.
	OutcomeFallback Outcome = "fallback"
)

// tempPrefix marks locally synthesized identities.
const tempPrefix = "temp_"

// Resolution is the result of identity resolution.
type Resolution struct {
	ID      string
	Outcome Outcome
}

// DeviceAPI is the server surface the resolver needs.
type DeviceAPI interface {
	VerifyDevice(ctx context.Context, deviceID string) (bool, error)
	FindDeviceByFingerprint(ctx context.Context, hash string) (string, error)
	CreateDevice(ctx context.Context, req models.CreateDeviceRequest) (string, error)
}

// Resolver resolves this device's durable identity. Safe for concurrent
// use; overlapping calls share one resolution via singleflight.
type Resolver struct {
	api    DeviceAPI
	cache  *cache.Cache
	probes []fingerprint.Probe
	logger *zap.Logger

	group singleflight.Group

	mu       sync.Mutex
	resolved *Resolution // Verified once per process; later calls short-circuit.
}

// NewResolver creates a Resolver using the default probe set.
func NewResolver(api DeviceAPI, c *cache.Cache, logger *zap.Logger) *Resolver {
	return &Resolver{
		api:    api,
		cache:  c,
		probes: fingerprint.DefaultProbes(),
		logger: logger,
	}
}

// Resolve returns this device's identity. The full verification runs at
// most once per process; subsequent calls return the memoized result.
// Resolve never returns an error: when the server is unreachable it falls
// back to a session-scoped temporary ID.
func (r *Resolver) Resolve(ctx context.Context) Resolution {
	r.mu.Lock()
	if r.resolved != nil {
		res := *r.resolved
		r.mu.Unlock()
		return res
	}
	r.mu.Unlock()

	v, _, _ := r.group.Do("resolve", func() (any, error) {
		res := r.resolve(ctx)
		if res.Outcome != OutcomeFallback {
			// Fallbacks stay unmemoized (though cached) so a later call can
			// recover once the server comes back.
			r.mu.Lock()
			r.resolved = &res
			r.mu.Unlock()
		}
		return res, nil
	})
	return v.(Resolution)
}

func (r *Resolver) resolve(ctx context.Context) Resolution {
	// Step 1: cached ID, verified against the server before trusting it.
	if cached := r.cache.DeviceID(); cached != "" {
		exists, err := r.api.VerifyDevice(ctx, cached)
		if err != nil {
			r.logger.Warn("device verification unreachable, using fallback identity", zap.Error(err))
			return r.fallback()
		}
		if exists {
			r.logger.Debug("cached device identity verified", zap.String("device_id", cached))
			return Resolution{ID: cached, Outcome: OutcomeCached}
		}
		// The server forgot this device (reset, prune). The stale cache
		// entry is cleared so the next steps re-derive identity.
		r.logger.Info("cached device identity stale, clearing", zap.String("device_id", cached))
		if err := r.cache.ClearDeviceID(); err != nil {
			r.logger.Warn("clear stale device id", zap.Error(err))
		}
	}

	// Step 2: fingerprint lookup recovers identity after local state loss.
	fp := fingerprint.Collect(r.probes)
	hash := fingerprint.Hash(fp)

	id, err := r.api.FindDeviceByFingerprint(ctx, hash)
	if err != nil {
		r.logger.Warn("fingerprint lookup unreachable, using fallback identity", zap.Error(err))
		return r.fallback()
	}
	if id != "" {
		if err := r.cache.SetDeviceID(id); err != nil {
			r.logger.Warn("cache matched device id", zap.Error(err))
		}
		r.logger.Info("device identity recovered by fingerprint", zap.String("device_id", id))
		return Resolution{ID: id, Outcome: OutcomeMatched}
	}

	// Step 3: first contact, register a fresh identity.
	id, err = r.api.CreateDevice(ctx, models.CreateDeviceRequest{
		FingerprintHash: hash,
		FingerprintData: fp,
		Platform:        fingerprint.Platform(),
		Timezone:        fingerprint.Timezone(),
		UserAgent:       "partsbin-benchtop",
	})
	if err != nil {
		r.logger.Warn("device registration unreachable, using fallback identity", zap.Error(err))
		return r.fallback()
	}
	if err := r.cache.SetDeviceID(id); err != nil {
		r.logger.Warn("cache created device id", zap.Error(err))
	}
	r.logger.Info("device identity created", zap.String("device_id", id))
	return Resolution{ID: id, Outcome: OutcomeCreated}
}

// fallback issues a temporary identity and caches it, so every resolution
// during one outage returns the same ID and preferences written under it
// stay readable. A cached temp ID never survives a reachable server: the
// step-1 existence check fails for it, clearing the slot and re-deriving a
// durable identity.
func (r *Resolver) fallback() Resolution {
	if cached := r.cache.DeviceID(); strings.HasPrefix(cached, tempPrefix) {
		return Resolution{ID: cached, Outcome: OutcomeFallback}
	}
	id := tempID()
	if err := r.cache.SetDeviceID(id); err != nil {
		r.logger.Warn("cache fallback id", zap.Error(err))
	}
	return Resolution{ID: id, Outcome: OutcomeFallback}
}

func tempID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		// math-free degenerate case: timestamp alone still yields a usable ID
		return fmt.Sprintf("%s%d_0", tempPrefix, time.Now().UnixMilli())
	}
	return fmt.Sprintf("%s%d_%s", tempPrefix, time.Now().UnixMilli(), hex.EncodeToString(b))
}
