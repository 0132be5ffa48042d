// Package store persists the hub device and entity registries.
package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Device is a persisted device registry record.
type Device struct {
	ID            string      `json:"id"`
	Identifiers   [][2]string `json:"identifiers"`
	Name          string      `json:"name"`
	Manufacturer  string      `json:"manufacturer,omitempty"`
	Model         string      `json:"model,omitempty"`
	ViaDeviceID   string      `json:"via_device_id,omitempty"`
	Integration   string      `json:"integration,omitempty"`
	ConfigEntries []string    `json:"config_entries,omitempty"`
}

// Entity is a persisted entity registry record.
type Entity struct {
	EntityID      string `json:"entity_id"`
	UniqueID      string `json:"unique_id"`
	Platform      string `json:"platform"`
	Integration   string `json:"integration"`
	DeviceID      string `json:"device_id,omitempty"`
	ConfigEntryID string `json:"config_entry_id,omitempty"`
	OriginalName  string `json:"original_name,omitempty"`
}

// Key identifies an entity independently of its entity ID.
func (e Entity) Key() string {
	return e.Integration + "/" + e.Platform + "/" + e.UniqueID
}
