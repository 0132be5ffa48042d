package hub

import (
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
)

// State is the current state of an entity.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
	Context     *Context       `json:"context,omitempty"`
}

// Domain returns the entity domain of the state.
func (s State) Domain() string {
	domain, _ := SplitEntityID(s.EntityID)
	return domain
}

// StateMachine holds entity states and announces changes on the bus.
type StateMachine struct {
	mu     sync.RWMutex
	states map[string]*State
	bus    *EventBus
}

func NewStateMachine(bus *EventBus) *StateMachine {
	return &StateMachine{states: make(map[string]*State), bus: bus}
}

// Set stores a state. state_changed is emitted only when the state value or
// attributes differ from the stored one.
func (m *StateMachine) Set(entityID, state string, attributes map[string]any, ctx *Context) {
	now := time.Now().UTC()
	if ctx == nil {
		ctx = NewContext()
	}

	m.mu.Lock()
	old := m.states[entityID]
	if old != nil && old.State == state && reflect.DeepEqual(old.Attributes, attributes) {
		m.mu.Unlock()
		return
	}

	next := &State{
		EntityID:    entityID,
		State:       state,
		Attributes:  attributes,
		LastChanged: now,
		LastUpdated: now,
		Context:     ctx,
	}
	if old != nil && old.State == state {
		next.LastChanged = old.LastChanged
	}
	m.states[entityID] = next
	m.mu.Unlock()

	var oldCopy *State
	if old != nil {
		c := *old
		oldCopy = &c
	}
	newCopy := *next
	m.bus.Emit(Event{
		Type:    EventStateChanged,
		Data:    StateChangedData{EntityID: entityID, OldState: oldCopy, NewState: &newCopy},
		Context: ctx,
	})
}

// Remove deletes a state and emits state_changed with a nil new state.
func (m *StateMachine) Remove(entityID string) bool {
	m.mu.Lock()
	old, ok := m.states[entityID]
	delete(m.states, entityID)
	m.mu.Unlock()
	if !ok {
		return false
	}
	m.bus.Emit(Event{
		Type: EventStateChanged,
		Data: StateChangedData{EntityID: entityID, OldState: old},
	})
	return true
}

// Get returns the state of entityID.
func (m *StateMachine) Get(entityID string) (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[entityID]
	if !ok {
		return State{}, false
	}
	return *s, true
}

// All returns every state, optionally limited to one domain, sorted by entity ID.
func (m *StateMachine) All(domain string) []State {
	m.mu.RLock()
	out := make([]State, 0, len(m.states))
	for id, s := range m.states {
		if domain != "" && !strings.HasPrefix(id, domain+".") {
			continue
		}
		out = append(out, *s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}
