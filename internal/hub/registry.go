package hub

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/barneyonline/core/internal/store"
)

// Store persists registry records. A nil Store keeps everything in memory.
type Store interface {
	SaveDevice(store.Device) error
	ListDevices() ([]store.Device, error)
	SaveEntity(store.Entity) error
	DeleteEntity(store.Entity) error
	ListEntities() ([]store.Entity, error)
}

type (
	Device      = store.Device
	EntityEntry = store.Entity
)

// Identifier names a device within an integration.
type Identifier struct {
	Domain string
	ID     string
}

// DeviceInfo describes the device an entity belongs to.
type DeviceInfo struct {
	Identifiers  []Identifier
	Name         string
	Manufacturer string
	Model        string
	ViaDevice    *Identifier
	// ConfigEntryID overrides the config entry the entity is added under.
	ConfigEntryID string
}

var deviceNamespace = uuid.MustParse("5b4f1f2e-3a1d-4f59-9c1e-6f1c2b9d8e41")

// DeviceRegistry tracks devices with IDs that stay stable across restarts.
type DeviceRegistry struct {
	mu      sync.RWMutex
	devices map[string]Device
	store   Store
}

func newDeviceRegistry(s Store) (*DeviceRegistry, error) {
	r := &DeviceRegistry{devices: make(map[string]Device), store: s}
	if s == nil {
		return r, nil
	}
	devices, err := s.ListDevices()
	if err != nil {
		return nil, fmt.Errorf("load devices: %w", err)
	}
	for _, d := range devices {
		r.devices[d.ID] = d
	}
	return r, nil
}

// DeviceIDFor derives the device ID for a set of identifiers.
func DeviceIDFor(identifiers []Identifier) string {
	keys := make([]string, 0, len(identifiers))
	for _, ident := range identifiers {
		keys = append(keys, ident.Domain+":"+ident.ID)
	}
	sort.Strings(keys)
	id := uuid.NewSHA1(deviceNamespace, []byte(strings.Join(keys, "|")))
	return strings.ReplaceAll(id.String(), "-", "")
}

// GetOrCreate returns the device matching any of info's identifiers,
// refreshing its metadata, or registers a new one.
func (r *DeviceRegistry) GetOrCreate(integration, configEntryID string, info DeviceInfo) (Device, error) {
	if len(info.Identifiers) == 0 {
		return Device{}, fmt.Errorf("device info has no identifiers")
	}
	if info.ConfigEntryID != "" {
		configEntryID = info.ConfigEntryID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dev, ok := r.findLocked(info.Identifiers)
	if !ok {
		dev = Device{ID: DeviceIDFor(info.Identifiers), Integration: integration}
	}
	for _, ident := range info.Identifiers {
		pair := [2]string{ident.Domain, ident.ID}
		if !slices.Contains(dev.Identifiers, pair) {
			dev.Identifiers = append(dev.Identifiers, pair)
		}
	}
	if info.Name != "" {
		dev.Name = info.Name
	}
	if info.Manufacturer != "" {
		dev.Manufacturer = info.Manufacturer
	}
	if info.Model != "" {
		dev.Model = info.Model
	}
	if info.ViaDevice != nil {
		if via, ok := r.findLocked([]Identifier{*info.ViaDevice}); ok {
			dev.ViaDeviceID = via.ID
		}
	}
	if configEntryID != "" && !slices.Contains(dev.ConfigEntries, configEntryID) {
		dev.ConfigEntries = append(dev.ConfigEntries, configEntryID)
	}
	if dev.Integration == "" {
		dev.Integration = integration
	}

	if r.store != nil {
		if err := r.store.SaveDevice(dev); err != nil {
			return Device{}, fmt.Errorf("save device: %w", err)
		}
	}
	r.devices[dev.ID] = dev
	return dev, nil
}

func (r *DeviceRegistry) findLocked(identifiers []Identifier) (Device, bool) {
	for _, dev := range r.devices {
		for _, ident := range identifiers {
			if slices.Contains(dev.Identifiers, [2]string{ident.Domain, ident.ID}) {
				return dev, true
			}
		}
	}
	return Device{}, false
}

// Get returns a device by ID.
func (r *DeviceRegistry) Get(id string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dev, ok := r.devices[id]
	return dev, ok
}

// ByIdentifier returns the device carrying ident.
func (r *DeviceRegistry) ByIdentifier(ident Identifier) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findLocked([]Identifier{ident})
}

// List returns all devices sorted by name then ID.
func (r *DeviceRegistry) List() []Device {
	r.mu.RLock()
	out := make([]Device, 0, len(r.devices))
	for _, dev := range r.devices {
		out = append(out, dev)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// EntityRegistry assigns entity IDs to (integration, platform, unique ID)
// triples and remembers them.
type EntityRegistry struct {
	mu    sync.RWMutex
	byKey map[string]EntityEntry
	byID  map[string]string
	store Store
}

func newEntityRegistry(s Store) (*EntityRegistry, error) {
	r := &EntityRegistry{
		byKey: make(map[string]EntityEntry),
		byID:  make(map[string]string),
		store: s,
	}
	if s == nil {
		return r, nil
	}
	entries, err := s.ListEntities()
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}
	for _, e := range entries {
		r.byKey[e.Key()] = e
		r.byID[e.EntityID] = e.Key()
	}
	return r, nil
}

// GetOrCreate returns the registry entry for the given unique ID, creating
// one with an entity ID derived from suggestedName when it is new.
func (r *EntityRegistry) GetOrCreate(platform Platform, integration, uniqueID, suggestedName, deviceID, configEntryID string) (EntityEntry, error) {
	probe := EntityEntry{Platform: string(platform), Integration: integration, UniqueID: uniqueID}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byKey[probe.Key()]
	if !ok {
		entry = probe
		entry.EntityID = r.freeEntityIDLocked(string(platform), Slugify(suggestedName))
	}
	entry.DeviceID = deviceID
	entry.ConfigEntryID = configEntryID
	entry.OriginalName = suggestedName

	if r.store != nil {
		if err := r.store.SaveEntity(entry); err != nil {
			return EntityEntry{}, fmt.Errorf("save entity: %w", err)
		}
	}
	r.byKey[entry.Key()] = entry
	r.byID[entry.EntityID] = entry.Key()
	return entry, nil
}

func (r *EntityRegistry) freeEntityIDLocked(platform, object string) string {
	base := platform + "." + object
	candidate := base
	for n := 2; ; n++ {
		if _, taken := r.byID[candidate]; !taken {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", base, n)
	}
}

// Get returns the entry for an entity ID.
func (r *EntityRegistry) Get(entityID string) (EntityEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.byID[entityID]
	if !ok {
		return EntityEntry{}, false
	}
	return r.byKey[key], true
}

// EntriesForDevice lists entries attached to deviceID sorted by entity ID.
func (r *EntityRegistry) EntriesForDevice(deviceID string) []EntityEntry {
	return r.filter(func(e EntityEntry) bool { return e.DeviceID == deviceID })
}

// EntriesForConfigEntry lists entries created by a config entry.
func (r *EntityRegistry) EntriesForConfigEntry(configEntryID string) []EntityEntry {
	return r.filter(func(e EntityEntry) bool { return e.ConfigEntryID == configEntryID })
}

func (r *EntityRegistry) filter(keep func(EntityEntry) bool) []EntityEntry {
	r.mu.RLock()
	var out []EntityEntry
	for _, e := range r.byKey {
		if keep(e) {
			out = append(out, e)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// Remove forgets an entity so its ID can be reused.
func (r *EntityRegistry) Remove(entityID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.byID[entityID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	}
	entry := r.byKey[key]
	if r.store != nil {
		if err := r.store.DeleteEntity(entry); err != nil {
			return fmt.Errorf("delete entity: %w", err)
		}
	}
	delete(r.byKey, key)
	delete(r.byID, entityID)
	return nil
}

// Slugify lower-cases s and replaces runs of anything but letters and digits
// with a single underscore.
func Slugify(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	out := strings.TrimSuffix(b.String(), "_")
	if out == "" {
		return "unnamed"
	}
	return out
}
