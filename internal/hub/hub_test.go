package hub

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barneyonline/core/internal/logging"
	"github.com/barneyonline/core/internal/store"
)

type fakeClimate struct {
	mu       sync.Mutex
	uniqueID string
	name     string
	device   *DeviceInfo
	mode     HVACMode
	modes    []HVACMode
	target   float64
	current  float64
	updates  int
}

func (f *fakeClimate) UniqueID() string        { return f.uniqueID }
func (f *fakeClimate) Name() string            { return f.name }
func (f *fakeClimate) DeviceInfo() *DeviceInfo { return f.device }
func (f *fakeClimate) Update(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	return nil
}
func (f *fakeClimate) CurrentTemperature() float64 { return f.current }
func (f *fakeClimate) TargetTemperature() float64  { return f.target }
func (f *fakeClimate) HVACMode() HVACMode          { return f.mode }
func (f *fakeClimate) HVACModes() []HVACMode       { return f.modes }
func (f *fakeClimate) MinTemp() float64            { return f.target - 2 }
func (f *fakeClimate) MaxTemp() float64            { return f.target + 2 }
func (f *fakeClimate) TemperatureUnit() string     { return UnitCelsius }
func (f *fakeClimate) SupportedFeatures() int      { return ClimateFeatureTargetTemperature }
func (f *fakeClimate) SetTemperature(_ context.Context, t *float64) error {
	if t != nil {
		f.target = *t
	}
	return nil
}
func (f *fakeClimate) SetHVACMode(_ context.Context, m HVACMode) error {
	f.mode = m
	return nil
}

type fakeNumber struct {
	uniqueID string
	name     string
	device   *DeviceInfo
	value    float64
	max      float64
}

func (f *fakeNumber) UniqueID() string             { return f.uniqueID }
func (f *fakeNumber) Name() string                 { return f.name }
func (f *fakeNumber) DeviceInfo() *DeviceInfo      { return f.device }
func (f *fakeNumber) Update(context.Context) error { return nil }
func (f *fakeNumber) HasEntityName() bool          { return true }
func (f *fakeNumber) NativeValue() float64         { return f.value }
func (f *fakeNumber) NativeMinValue() float64      { return 0 }
func (f *fakeNumber) NativeMaxValue() float64      { return f.max }
func (f *fakeNumber) NativeStep() float64          { return 1 }
func (f *fakeNumber) NativeUnit() string           { return UnitCelsius }
func (f *fakeNumber) DeviceClass() string          { return "temperature" }
func (f *fakeNumber) Icon() string                 { return "mdi:thermostat" }
func (f *fakeNumber) SetNativeValue(_ context.Context, v float64) error {
	f.value = v
	return nil
}

func newHub(t *testing.T, s Store) *Hub {
	t.Helper()
	h, err := New(s, logging.Discard())
	require.NoError(t, err)
	return h
}

func unitDevice() *DeviceInfo {
	return &DeviceInfo{
		Identifiers:  []Identifier{{Domain: "daikin", ID: "AABBCC"}},
		Name:         "House",
		Manufacturer: "Daikin",
	}
}

func TestAddEntitiesAssignsIDsAndState(t *testing.T) {
	h := newHub(t, nil)
	ctx := context.Background()

	climate := &fakeClimate{
		uniqueID: "AABBCC-zone-climate0",
		name:     "Living climate",
		mode:     HVACModeCool,
		modes:    []HVACMode{HVACModeOff, HVACModeCool},
		target:   22,
		current:  21,
		device: &DeviceInfo{
			Identifiers: []Identifier{{Domain: "daikin", ID: "AABBCC_zone_0"}},
			Name:        "Living climate",
			ViaDevice:   &Identifier{Domain: "daikin", ID: "AABBCC"},
		},
	}
	number := &fakeNumber{uniqueID: "AABBCC-zone-temp0", name: "Living temperature", device: unitDevice(), value: 21, max: 24}

	require.NoError(t, h.AddEntities(ctx, AddEntitiesOptions{Integration: "daikin", ConfigEntryID: "entry", Platform: PlatformNumber}, number))
	require.NoError(t, h.AddEntities(ctx, AddEntitiesOptions{Integration: "daikin", ConfigEntryID: "entry", Platform: PlatformClimate, UpdateBeforeAdd: true}, climate))

	assert.Equal(t, 1, climate.updates)

	state, ok := h.States.Get("number.house_living_temperature")
	require.True(t, ok)
	assert.Equal(t, "21", state.State)
	assert.Equal(t, 24.0, state.Attributes["max"])

	state, ok = h.States.Get("climate.living_climate")
	require.True(t, ok)
	assert.Equal(t, "cool", state.State)
	assert.Equal(t, 20.0, state.Attributes["min_temp"])

	zoneDev, ok := h.Devices.ByIdentifier(Identifier{Domain: "daikin", ID: "AABBCC_zone_0"})
	require.True(t, ok)
	unitDev, ok := h.Devices.ByIdentifier(Identifier{Domain: "daikin", ID: "AABBCC"})
	require.True(t, ok)
	assert.Equal(t, unitDev.ID, zoneDev.ViaDeviceID)
	assert.Equal(t, []string{"entry"}, zoneDev.ConfigEntries)

	entries := h.Entities.EntriesForDevice(zoneDev.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, "climate.living_climate", entries[0].EntityID)
}

func TestEntityIDCollisionsAreSuffixed(t *testing.T) {
	h := newHub(t, nil)
	ctx := context.Background()
	opts := AddEntitiesOptions{Integration: "daikin", ConfigEntryID: "entry", Platform: PlatformClimate}

	a := &fakeClimate{uniqueID: "a", name: "Zone climate", modes: []HVACMode{HVACModeOff}}
	b := &fakeClimate{uniqueID: "b", name: "Zone climate", modes: []HVACMode{HVACModeOff}}
	require.NoError(t, h.AddEntities(ctx, opts, a, b))

	assert.Equal(t, []string{"climate.zone_climate", "climate.zone_climate_2"}, h.EntityIDs("entry"))
}

func TestEntityIDsSurviveRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	s, err := store.NewBoltStore(path)
	require.NoError(t, err)

	h := newHub(t, s)
	c := &fakeClimate{uniqueID: "u1", name: "Bedroom climate", modes: []HVACMode{HVACModeOff}}
	require.NoError(t, h.AddEntities(context.Background(), AddEntitiesOptions{Integration: "daikin", Platform: PlatformClimate}, c))
	require.NoError(t, s.Close())

	s, err = store.NewBoltStore(path)
	require.NoError(t, err)
	defer s.Close()

	h = newHub(t, s)
	renamed := &fakeClimate{uniqueID: "u1", name: "Renamed climate", modes: []HVACMode{HVACModeOff}}
	require.NoError(t, h.AddEntities(context.Background(), AddEntitiesOptions{Integration: "daikin", Platform: PlatformClimate}, renamed))

	_, ok := h.States.Get("climate.bedroom_climate")
	assert.True(t, ok, "entity id should be reused for the same unique id")
}

func TestClimateServices(t *testing.T) {
	h := newHub(t, nil)
	ctx := context.Background()
	c := &fakeClimate{uniqueID: "z", name: "Zone climate", mode: HVACModeOff, modes: []HVACMode{HVACModeOff, HVACModeHeat}, target: 22}
	require.NoError(t, h.AddEntities(ctx, AddEntitiesOptions{Integration: "daikin", Platform: PlatformClimate}, c))

	_, err := h.Services.Call(ctx, "climate", "turn_on", map[string]any{"entity_id": "climate.zone_climate"})
	require.NoError(t, err)
	assert.Equal(t, HVACModeHeat, c.mode)

	state, _ := h.States.Get("climate.zone_climate")
	assert.Equal(t, "heat", state.State)

	_, err = h.Services.Call(ctx, "climate", "turn_off", map[string]any{"entity_id": []any{"climate.zone_climate"}})
	require.NoError(t, err)
	assert.Equal(t, HVACModeOff, c.mode)

	_, err = h.Services.Call(ctx, "climate", "set_temperature", map[string]any{"entity_id": "climate.zone_climate", "temperature": "23"})
	require.NoError(t, err)
	assert.Equal(t, 23.0, c.target)

	_, err = h.Services.Call(ctx, "climate", "set_hvac_mode", map[string]any{"entity_id": "climate.zone_climate", "hvac_mode": "cool"})
	var userErr *Error
	require.ErrorAs(t, err, &userErr)

	_, err = h.Services.Call(ctx, "climate", "turn_on", map[string]any{"entity_id": "climate.missing"})
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestNumberSetValueValidatesRange(t *testing.T) {
	h := newHub(t, nil)
	ctx := context.Background()
	n := &fakeNumber{uniqueID: "n", name: "Zone temperature", value: 20, max: 24}
	require.NoError(t, h.AddEntities(ctx, AddEntitiesOptions{Integration: "daikin", Platform: PlatformNumber}, n))

	_, err := h.Services.Call(ctx, "number", "set_value", map[string]any{"entity_id": "number.zone_temperature", "value": 23})
	require.NoError(t, err)
	assert.Equal(t, 23.0, n.value)

	_, err = h.Services.Call(ctx, "number", "set_value", map[string]any{"entity_id": "number.zone_temperature", "value": 30})
	assert.ErrorIs(t, err, ErrInvalidData)
	assert.Equal(t, 23.0, n.value)

	for _, value := range []string{"NaN", "+Inf", "-Inf"} {
		_, err = h.Services.Call(ctx, "number", "set_value", map[string]any{"entity_id": "number.zone_temperature", "value": value})
		assert.ErrorIs(t, err, ErrInvalidData, value)
	}
	assert.Equal(t, 23.0, n.value)
}

func TestServiceRegistry(t *testing.T) {
	h := newHub(t, nil)
	ctx := context.Background()

	var events []string
	h.Bus.On(EventServiceRegistered, func(e Event) { events = append(events, e.Type) })
	h.Bus.On(EventServiceRemoved, func(e Event) { events = append(events, e.Type) })

	schema := NewSchema(Required("zone_id", CoerceInt))
	got := make(chan ServiceCall, 1)
	h.Services.Register("demo", "ping", func(_ context.Context, call ServiceCall) error {
		got <- call
		return nil
	}, &schema)
	assert.True(t, h.Services.Has("demo", "ping"))

	callCtx := NewContext()
	returned, err := h.Services.Call(ctx, "demo", "ping", map[string]any{"zone_id": "2"}, WithContext(callCtx))
	require.NoError(t, err)
	assert.Equal(t, callCtx, returned)
	call := <-got
	assert.Equal(t, 2, call.Data["zone_id"])

	_, err = h.Services.Call(ctx, "demo", "ping", map[string]any{"zone_id": 1, "extra": true})
	assert.ErrorIs(t, err, ErrInvalidData)

	_, err = h.Services.Call(ctx, "demo", "ping", map[string]any{"zone_id": 1}, NonBlocking())
	require.NoError(t, err)
	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("non-blocking call never ran")
	}

	h.Services.Remove("demo", "ping")
	assert.False(t, h.Services.Has("demo", "ping"))
	_, err = h.Services.Call(ctx, "demo", "ping", nil)
	assert.ErrorIs(t, err, ErrServiceNotFound)

	assert.Equal(t, []string{EventServiceRegistered, EventServiceRemoved}, events)
}

func TestServiceDescriptions(t *testing.T) {
	h := newHub(t, nil)
	descs, err := LoadServiceDescriptions([]byte(`
ping:
  name: Ping
  description: Ping something.
  fields:
    zone_id:
      description: Zone index.
      required: true
      example: 1
`))
	require.NoError(t, err)
	h.Services.Register("demo", "ping", func(context.Context, ServiceCall) error { return nil }, nil)
	h.Services.SetDescriptions("demo", descs)

	var found bool
	for _, info := range h.Services.Services() {
		if info.Domain == "demo" && info.Service == "ping" {
			found = true
			assert.Equal(t, "Ping", info.Description.Name)
			assert.True(t, info.Description.Fields["zone_id"].Required)
		}
	}
	assert.True(t, found)
}

func TestStateChangedOnlyOnDifference(t *testing.T) {
	h := newHub(t, nil)
	var changes int
	h.Bus.On(EventStateChanged, func(Event) { changes++ })

	h.States.Set("number.x", "1", map[string]any{"a": 1}, nil)
	h.States.Set("number.x", "1", map[string]any{"a": 1}, nil)
	h.States.Set("number.x", "2", map[string]any{"a": 1}, nil)
	assert.Equal(t, 2, changes)

	assert.True(t, h.States.Remove("number.x"))
	assert.Equal(t, 3, changes)
}

func TestEventBusRecoversPanics(t *testing.T) {
	bus := NewEventBus(logging.Discard())
	var delivered bool
	bus.On("x", func(Event) { panic("boom") })
	bus.OnAll(func(Event) { delivered = true })
	bus.Emit(Event{Type: "x"})
	assert.True(t, delivered)
}

func TestCoordinatorNotifiesListeners(t *testing.T) {
	fail := errors.New("offline")
	var next error
	c := NewCoordinator("test", time.Minute, func(context.Context) error { return next }, logging.Discard())

	calls := 0
	remove := c.AddListener(func() { calls++ })

	require.NoError(t, c.Refresh(context.Background()))
	assert.True(t, c.LastUpdateSuccess())

	next = fail
	assert.ErrorIs(t, c.Refresh(context.Background()), fail)
	assert.False(t, c.LastUpdateSuccess())
	assert.Equal(t, 2, calls)

	remove()
	_ = c.Refresh(context.Background())
	assert.Equal(t, 2, calls)
}

func TestCoordinatorRequestRefreshSkipsFreshData(t *testing.T) {
	updates := 0
	c := NewCoordinator("test", time.Minute, func(context.Context) error {
		updates++
		return nil
	}, logging.Discard())

	require.NoError(t, c.RequestRefresh(context.Background(), time.Minute))
	require.NoError(t, c.RequestRefresh(context.Background(), time.Minute))
	assert.Equal(t, 1, updates)

	require.NoError(t, c.RequestRefresh(context.Background(), 0))
	assert.Equal(t, 2, updates)
}

type recordingProvider struct {
	calls []ActionConfig
}

func (p *recordingProvider) ActionSchema() Schema {
	return ActionBaseSchema.Extend(Required(ActionType, In("turn_on")), Required(ActionEntityID, EntityDomain("climate")))
}

func (p *recordingProvider) Actions(_ context.Context, deviceID string) ([]ActionConfig, error) {
	return []ActionConfig{{ActionDeviceID: deviceID, ActionDomain: "climate", ActionEntityID: "climate.x", ActionType: "turn_on"}}, nil
}

func (p *recordingProvider) CallAction(_ context.Context, config ActionConfig, _ map[string]any, _ *Context) error {
	p.calls = append(p.calls, config)
	return nil
}

func TestActionRegistryRoutesByDeviceIntegration(t *testing.T) {
	h := newHub(t, nil)
	dev, err := h.Devices.GetOrCreate("daikin", "entry", *unitDevice())
	require.NoError(t, err)

	p := &recordingProvider{}
	h.Actions.Register("daikin", p)

	actions, err := h.Actions.ListForDevice(context.Background(), dev.ID)
	require.NoError(t, err)
	require.Len(t, actions, 1)

	action := actions[0]
	action["metadata"] = map[string]any{}
	require.NoError(t, h.Actions.Call(context.Background(), action, nil, nil))
	require.Len(t, p.calls, 1)
	assert.NotContains(t, p.calls[0], "metadata")

	_, err = h.Actions.ListForDevice(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	bad := ActionConfig{ActionDeviceID: dev.ID, ActionDomain: "climate", ActionEntityID: "light.x", ActionType: "turn_on"}
	assert.ErrorIs(t, h.Actions.Call(context.Background(), bad, nil, nil), ErrInvalidData)
}

func TestSchemaValidators(t *testing.T) {
	v, err := CoerceInt(3.9)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = CoerceInt("3.5")
	assert.Error(t, err)

	_, err = PositiveInt(-1)
	assert.Error(t, err)
	v, err = PositiveInt("0")
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	v, err = CoerceFloat("21.5")
	require.NoError(t, err)
	assert.Equal(t, 21.5, v)

	_, err = EntityDomain("climate")("number.zone")
	assert.Error(t, err)
	v, err = EntityDomain("climate")("Climate.Zone_1")
	require.NoError(t, err)
	assert.Equal(t, "climate.zone_1", v)

	v, err = EntityIDs("climate.a, climate.b")
	require.NoError(t, err)
	assert.Equal(t, []string{"climate.a", "climate.b"}, v)

	assert.Equal(t, "living_room_temperature", Slugify("Living Room  temperature!"))
	assert.False(t, ValidEntityID("climate._x"))
}
