package models

import "time"

// Default preference values, assigned on first touch for a never-seen
// identity and persisted remotely so every device derives the same record.
const (
	DefaultTheme        = "dark"
	DefaultLanguage     = "en"
	DefaultItemsPerPage = 25
	DefaultView         = "grid"
)

// PreferenceRecord is the single authoritative preference document for one
// logical identity (a username when authenticated, else a device ID).
type PreferenceRecord struct {
	Identity             string    `json:"identity"`
	Theme                string    `json:"theme"`
	Language             string    `json:"language"`
	ItemsPerPage         int       `json:"items_per_page"`
	DefaultView          string    `json:"default_view"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	AutoBackup           bool      `json:"auto_backup"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// DefaultPreferences returns the documented default record for an identity.
func DefaultPreferences(identity string) PreferenceRecord {
	return PreferenceRecord{
		Identity:             identity,
		Theme:                DefaultTheme,
		Language:             DefaultLanguage,
		ItemsPerPage:         DefaultItemsPerPage,
		DefaultView:          DefaultView,
		NotificationsEnabled: true,
		AutoBackup:           false,
	}
}

// PreferencePatch is a partial preference update. Nil fields are left
// untouched by a merge -- a patch can never blindly drop sibling fields the
// caller didn't include.
type PreferencePatch struct {
	Theme                *string `json:"theme,omitempty"`
	Language             *string `json:"language,omitempty"`
	ItemsPerPage         *int    `json:"items_per_page,omitempty"`
	DefaultView          *string `json:"default_view,omitempty"`
	NotificationsEnabled *bool   `json:"notifications_enabled,omitempty"`
	AutoBackup           *bool   `json:"auto_backup,omitempty"`
}

// Apply merges the patch into the record. Only non-nil fields are written.
func (p PreferencePatch) Apply(r *PreferenceRecord) {
	if p.Theme != nil {
		r.Theme = *p.Theme
	}
	if p.Language != nil {
		r.Language = *p.Language
	}
	if p.ItemsPerPage != nil {
		r.ItemsPerPage = *p.ItemsPerPage
	}
	if p.DefaultView != nil {
		r.DefaultView = *p.DefaultView
	}
	if p.NotificationsEnabled != nil {
		r.NotificationsEnabled = *p.NotificationsEnabled
	}
	if p.AutoBackup != nil {
		r.AutoBackup = *p.AutoBackup
	}
}

// PatchFrom returns a patch carrying every field of the record. Used when a
// full locally merged record must be persisted (e.g. first-touch defaults).
func PatchFrom(r PreferenceRecord) PreferencePatch {
	return PreferencePatch{
		Theme:                &r.Theme,
		Language:             &r.Language,
		ItemsPerPage:         &r.ItemsPerPage,
		DefaultView:          &r.DefaultView,
		NotificationsEnabled: &r.NotificationsEnabled,
		AutoBackup:           &r.AutoBackup,
	}
}

// GetPreferencesResponse wraps a preference read. Record is null when no
// record exists for the identity; callers substitute defaults.
type GetPreferencesResponse struct {
	Record *PreferenceRecord `json:"record"`
}
