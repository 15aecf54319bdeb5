// Package models contains the wire-level data structures shared between the
// PartsBin server and the benchtop agent.
package models

import "time"

// DeviceIdentity is the durable identity record for one physical device.
// The fingerprint hash is a lookup heuristic only -- it is never an
// authorization input.
type DeviceIdentity struct {
	DeviceID        string      `json:"device_id"`
	FingerprintHash string      `json:"fingerprint_hash"`
	FingerprintData Fingerprint `json:"fingerprint_data,omitempty"`
	UserAgent       string      `json:"user_agent,omitempty"`
	Platform        string      `json:"platform,omitempty"`
	Timezone        string      `json:"timezone,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	LastSeen        time.Time   `json:"last_seen"`
}

// Fingerprint is the raw probe payload a device submits alongside its hash.
// Keys are probe names, values are the collected signals. Stored server-side
// for inspection; only the hash participates in lookups.
type Fingerprint map[string]string

// VerifyDeviceRequest asks whether a cached device ID is still registered.
type VerifyDeviceRequest struct {
	DeviceID string `json:"device_id"`
}

// VerifyDeviceResponse reports whether the device ID exists.
type VerifyDeviceResponse struct {
	Exists bool `json:"exists"`
}

// LookupDeviceRequest resolves a device by fingerprint hash when no cached
// ID is available.
type LookupDeviceRequest struct {
	FingerprintHash string `json:"fingerprint_hash"`
}

// LookupDeviceResponse carries the matched device ID, or empty when no
// registration exists for the hash.
type LookupDeviceResponse struct {
	DeviceID string `json:"device_id,omitempty"`
}

// CreateDeviceRequest registers a new device identity.
type CreateDeviceRequest struct {
	FingerprintHash string      `json:"fingerprint_hash"`
	FingerprintData Fingerprint `json:"fingerprint_data,omitempty"`
	UserAgent       string      `json:"user_agent,omitempty"`
	Platform        string      `json:"platform,omitempty"`
	Timezone        string      `json:"timezone,omitempty"`
}

// CreateDeviceResponse carries the issued (or previously issued) device ID.
type CreateDeviceResponse struct {
	DeviceID string `json:"device_id"`
}

// HeartbeatRequest bumps a device's last_seen timestamp.
type HeartbeatRequest struct {
	DeviceID string `json:"device_id"`
}
