package agent

import (
	"context"
	"sync"

	"github.com/jheath/partsbin/pkg/themes"
	"go.uber.org/zap"
)

// ThemeState is the theme manager lifecycle state. There is deliberately no
// error state: every failure path lands in Ready with a usable theme.
type ThemeState string

const (
	ThemeUninitialized ThemeState = "uninitialized"
	ThemeResolving     ThemeState = "resolving"
	ThemeReady         ThemeState = "ready"
)

// ApplyFunc pushes a theme into the UI layer.
type ApplyFunc func(theme themes.Theme)

// ThemeManager owns the active theme. Theme switches apply synchronously
// (the UI updates immediately) while persistence runs in the background
// through the preference service.
type ThemeManager struct {
	prefs    *Prefs
	identity string
	apply    ApplyFunc
	logger   *zap.Logger

	mu      sync.RWMutex
	state   ThemeState
	current themes.Theme
}

// NewThemeManager creates a ThemeManager. apply may be nil when no UI is
// attached (headless CLI runs).
func NewThemeManager(prefs *Prefs, apply ApplyFunc, logger *zap.Logger) *ThemeManager {
	return &ThemeManager{
		prefs:   prefs,
		apply:   apply,
		logger:  logger,
		state:   ThemeUninitialized,
		current: themes.Default(),
	}
}

// Init resolves the identity's theme and applies it. The default theme is
// applied up front so the UI is never unstyled while the server answers.
// Init always ends in Ready.
func (m *ThemeManager) Init(ctx context.Context, identity string) {
	m.mu.Lock()
	m.identity = identity
	m.state = ThemeResolving
	m.mu.Unlock()

	m.applyTheme(themes.Default())

	record := m.prefs.Get(ctx, identity)
	theme, ok := themes.Get(record.Theme)
	if !ok {
		theme = themes.Default()
	}
	m.applyTheme(theme)

	m.mu.Lock()
	m.state = ThemeReady
	m.mu.Unlock()
	m.logger.Debug("theme manager ready",
		zap.String("identity", identity),
		zap.String("theme", theme.ID))
}

// SetTheme switches the active theme. The switch is applied synchronously;
// persistence happens in the background. Unknown IDs snap to the default.
func (m *ThemeManager) SetTheme(ctx context.Context, themeID string) themes.Theme {
	theme, ok := themes.Get(themeID)
	if !ok {
		theme = themes.Default()
	}
	m.applyTheme(theme)

	m.mu.RLock()
	identity := m.identity
	m.mu.RUnlock()
	if identity != "" {
		m.prefs.UpdateTheme(ctx, identity, theme.ID)
	}
	return theme
}

// Current returns the active theme.
func (m *ThemeManager) Current() themes.Theme {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// IsDark reports whether the active theme is a dark palette.
func (m *ThemeManager) IsDark() bool {
	return m.Current().Dark
}

// State returns the lifecycle state.
func (m *ThemeManager) State() ThemeState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Ready reports whether initialization has completed.
func (m *ThemeManager) Ready() bool {
	return m.State() == ThemeReady
}

func (m *ThemeManager) applyTheme(theme themes.Theme) {
	m.mu.Lock()
	m.current = theme
	apply := m.apply
	m.mu.Unlock()

	if apply != nil {
		apply(theme)
	}
}
