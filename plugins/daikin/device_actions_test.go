package daikin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barneyonline/core/internal/hub"
)

func zoneDeviceID(t *testing.T, h *hub.Hub, zoneID string) string {
	t.Helper()
	dev, ok := h.Devices.ByIdentifier(hub.Identifier{Domain: Domain, ID: fakeMAC + "_zone_" + zoneID})
	require.True(t, ok)
	return dev.ID
}

func TestListDeviceActions(t *testing.T) {
	f := newFakeAirBase(t)
	_, h := setupPlugin(t, f)
	deviceID := zoneDeviceID(t, h, "1")

	actions, err := h.Actions.ListForDevice(context.Background(), deviceID)
	require.NoError(t, err)
	require.Len(t, actions, 3)

	var types []string
	for _, a := range actions {
		assert.Equal(t, deviceID, a[hub.ActionDeviceID])
		assert.Equal(t, "climate", a[hub.ActionDomain])
		assert.Equal(t, "climate.kitchen_climate", a[hub.ActionEntityID])
		types = append(types, a.String(hub.ActionType))
	}
	assert.Equal(t, []string{"turn_on", "turn_off", "set_zone_temperature"}, types)
}

func TestUnitDeviceHasNoActions(t *testing.T) {
	f := newFakeAirBase(t)
	_, h := setupPlugin(t, f)
	unit, ok := h.Devices.ByIdentifier(hub.Identifier{Domain: Domain, ID: fakeMAC})
	require.True(t, ok)

	actions, err := h.Actions.ListForDevice(context.Background(), unit.ID)
	require.NoError(t, err)
	assert.Empty(t, actions, "number entities do not get actions")
}

func TestSetZoneTemperatureAction(t *testing.T) {
	f := newFakeAirBase(t)
	_, h := setupPlugin(t, f)
	deviceID := zoneDeviceID(t, h, "0")

	err := h.Actions.Call(context.Background(), hub.ActionConfig{
		hub.ActionDeviceID: deviceID,
		hub.ActionDomain:   "climate",
		hub.ActionEntityID: "climate.living_climate",
		hub.ActionType:     "set_zone_temperature",
		"zone_id":          2,
		"temperature":      "18",
	}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"22", "21", "18", "0"}, f.heatSetpoints())
}

func TestSetZoneTemperatureActionWithoutFieldsDoesNothing(t *testing.T) {
	f := newFakeAirBase(t)
	_, h := setupPlugin(t, f)
	deviceID := zoneDeviceID(t, h, "0")

	for _, extra := range []hub.ActionConfig{{}, {"zone_id": 1}, {"temperature": 20}} {
		config := hub.ActionConfig{
			hub.ActionDeviceID: deviceID,
			hub.ActionDomain:   "climate",
			hub.ActionEntityID: "climate.living_climate",
			hub.ActionType:     "set_zone_temperature",
		}
		for k, v := range extra {
			config[k] = v
		}
		require.NoError(t, h.Actions.Call(context.Background(), config, nil, nil))
	}
	assert.Zero(t, f.setCount())
}

func TestTurnOnAndOffActions(t *testing.T) {
	f := newFakeAirBase(t)
	p, h := setupPlugin(t, f)
	deviceID := zoneDeviceID(t, h, "1")
	ctx := context.Background()
	call := func(typ string) error {
		return h.Actions.Call(ctx, hub.ActionConfig{
			hub.ActionDeviceID: deviceID,
			hub.ActionDomain:   "climate",
			hub.ActionEntityID: "climate.kitchen_climate",
			hub.ActionType:     typ,
		}, nil, hub.NewContext())
	}

	require.NoError(t, call("turn_off"))
	assert.Equal(t, 1, f.setCount())
	assert.Equal(t, []string{"1", "0", "1", "0"}, f.onOff())

	require.NoError(t, call("turn_on"))
	assert.Equal(t, 1, f.setCount(), "zones are only opened while the unit is off")

	f.setPower(false)
	require.NoError(t, p.units[0].coordinator.Refresh(ctx))
	require.NoError(t, call("turn_on"))
	assert.Equal(t, []string{"1", "1", "1", "0"}, f.onOff())
}

func TestActionSchemaRejectsBadConfig(t *testing.T) {
	f := newFakeAirBase(t)
	_, h := setupPlugin(t, f)
	deviceID := zoneDeviceID(t, h, "0")

	cases := []hub.ActionConfig{
		{hub.ActionType: "explode", hub.ActionEntityID: "climate.living_climate"},
		{hub.ActionType: "turn_on", hub.ActionEntityID: "number.lounge_living_temperature"},
		{hub.ActionType: "set_zone_temperature", hub.ActionEntityID: "climate.living_climate", "zone_id": -1, "temperature": 20},
	}
	for _, c := range cases {
		c[hub.ActionDeviceID] = deviceID
		c[hub.ActionDomain] = "climate"
		assert.ErrorIs(t, h.Actions.Call(context.Background(), c, nil, nil), hub.ErrInvalidData)
	}
	assert.Zero(t, f.setCount())
}
