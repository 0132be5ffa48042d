// Package hub is the in-process home automation runtime integrations plug
// into: entity and device registries, entity state, services, device actions
// and polling coordinators.
package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Hub ties the registries together.
type Hub struct {
	Bus      *EventBus
	States   *StateMachine
	Services *ServiceRegistry
	Devices  *DeviceRegistry
	Entities *EntityRegistry
	Actions  *ActionRegistry

	logger *slog.Logger

	mu   sync.RWMutex
	live map[string]liveEntity
}

type liveEntity struct {
	entity   Entity
	platform Platform
	entry    EntityEntry
}

// New builds a hub. Registries are loaded from s when it is non-nil.
func New(s Store, logger *slog.Logger) (*Hub, error) {
	bus := NewEventBus(logger.With("component", "bus"))

	devices, err := newDeviceRegistry(s)
	if err != nil {
		return nil, err
	}
	entities, err := newEntityRegistry(s)
	if err != nil {
		return nil, err
	}

	h := &Hub{
		Bus:      bus,
		States:   NewStateMachine(bus),
		Services: NewServiceRegistry(bus, logger.With("component", "services")),
		Devices:  devices,
		Entities: entities,
		logger:   logger,
		live:     make(map[string]liveEntity),
	}
	h.Actions = NewActionRegistry(devices, logger.With("component", "device_actions"))

	h.registerClimateServices()
	h.registerNumberServices()
	return h, nil
}

// ConfigEntryID derives a stable config entry ID for an integration instance.
func ConfigEntryID(integration, key string) string {
	return uuid.NewSHA1(deviceNamespace, []byte("entry:"+integration+":"+key)).String()
}

// AddEntitiesOptions controls AddEntities.
type AddEntitiesOptions struct {
	Integration     string
	ConfigEntryID   string
	Platform        Platform
	UpdateBeforeAdd bool
}

// AddEntities registers entities and writes their initial state. A failed
// update before add is logged and the entity is still added.
func (h *Hub) AddEntities(ctx context.Context, opts AddEntitiesOptions, entities ...Entity) error {
	for _, e := range entities {
		if opts.UpdateBeforeAdd {
			if err := e.Update(ctx); err != nil {
				h.logger.Warn("update before add failed", "unique_id", e.UniqueID(), "error", err)
			}
		}

		var (
			deviceID   string
			deviceName string
		)
		if info := e.DeviceInfo(); info != nil {
			dev, err := h.Devices.GetOrCreate(opts.Integration, opts.ConfigEntryID, *info)
			if err != nil {
				return fmt.Errorf("register device for %s: %w", e.UniqueID(), err)
			}
			deviceID, deviceName = dev.ID, dev.Name
		}

		name := e.Name()
		if named, ok := e.(DeviceNamed); ok && named.HasEntityName() && deviceName != "" {
			name = deviceName + " " + name
		}

		entry, err := h.Entities.GetOrCreate(opts.Platform, opts.Integration, e.UniqueID(), name, deviceID, opts.ConfigEntryID)
		if err != nil {
			return fmt.Errorf("register entity %s: %w", e.UniqueID(), err)
		}

		h.mu.Lock()
		h.live[entry.EntityID] = liveEntity{entity: e, platform: opts.Platform, entry: entry}
		h.mu.Unlock()

		if err := h.WriteState(entry.EntityID, nil); err != nil {
			return err
		}
		h.logger.Debug("entity added", "entity_id", entry.EntityID, "unique_id", entry.UniqueID)
	}
	return nil
}

// Entity returns the live entity behind entityID.
func (h *Hub) Entity(entityID string) (Entity, Platform, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	le, ok := h.live[entityID]
	return le.entity, le.platform, ok
}

// EntityIDs returns the IDs of live entities created by configEntryID.
func (h *Hub) EntityIDs(configEntryID string) []string {
	h.mu.RLock()
	var out []string
	for id, le := range h.live {
		if configEntryID == "" || le.entry.ConfigEntryID == configEntryID {
			out = append(out, id)
		}
	}
	h.mu.RUnlock()
	sort.Strings(out)
	return out
}

// WriteState renders the entity's current state into the state machine.
func (h *Hub) WriteState(entityID string, c *Context) error {
	h.mu.RLock()
	le, ok := h.live[entityID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	}
	state, attrs, err := renderState(le.platform, le.entity)
	if err != nil {
		return fmt.Errorf("render %s: %w", entityID, err)
	}
	h.States.Set(entityID, state, attrs, c)
	return nil
}

// WriteEntryStates refreshes the state of every entity of a config entry.
func (h *Hub) WriteEntryStates(configEntryID string) {
	for _, id := range h.EntityIDs(configEntryID) {
		if err := h.WriteState(id, nil); err != nil {
			h.logger.Error("write state failed", "entity_id", id, "error", err)
		}
	}
}

// UpdateEntity polls an entity and writes its state.
func (h *Hub) UpdateEntity(ctx context.Context, entityID string) error {
	e, _, ok := h.Entity(entityID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	}
	if err := e.Update(ctx); err != nil {
		return err
	}
	return h.WriteState(entityID, nil)
}

// RemoveConfigEntry drops the live entities and states of a config entry.
// Registry entries are kept so entity IDs survive a reload.
func (h *Hub) RemoveConfigEntry(configEntryID string) {
	for _, id := range h.EntityIDs(configEntryID) {
		h.mu.Lock()
		delete(h.live, id)
		h.mu.Unlock()
		h.States.Remove(id)
	}
}

// entityService adapts fn into a handler fanned out over call.Data["entity_id"].
func (h *Hub) entityService(platform Platform, fn func(ctx context.Context, e Entity, call ServiceCall) error) ServiceHandler {
	return func(ctx context.Context, call ServiceCall) error {
		ids, _ := call.Data["entity_id"].([]string)
		for _, id := range ids {
			e, p, ok := h.Entity(id)
			if !ok || p != platform {
				return Errorf(ErrEntityNotFound, "Entity %s not found", id)
			}
			if err := fn(ctx, e, call); err != nil {
				return err
			}
			if err := h.WriteState(id, call.Context); err != nil {
				return err
			}
		}
		return nil
	}
}
