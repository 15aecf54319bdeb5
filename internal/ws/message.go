package ws

import (
	"time"

	"github.com/jheath/partsbin/pkg/models"
)

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	MessagePrefsUpdated   MessageType = "prefs.updated"
	MessageDeviceCreated  MessageType = "device.created"
	MessageInventorySaved MessageType = "inventory.saved"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// PrefsUpdatedData is the payload for prefs.updated messages. Other devices
// of the same identity apply the record immediately instead of waiting for
// their next session start.
type PrefsUpdatedData struct {
	Record models.PreferenceRecord `json:"record"`
}

// DeviceCreatedData is the payload for device.created messages.
type DeviceCreatedData struct {
	DeviceID string `json:"device_id"`
}

// InventorySavedData is the payload for inventory.saved messages.
type InventorySavedData struct {
	Item models.InventoryItem `json:"item"`
}
