package daikin

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barneyonline/core/internal/hub"
)

func newTestZoneClimate(t *testing.T, dev Device, zoneID int) *ZoneClimate {
	t.Helper()
	c, err := NewZoneClimate(dev, zoneID, "entry", nil, testLogger())
	require.NoError(t, err)
	return c
}

func TestZoneClimateAttributes(t *testing.T) {
	c := newTestZoneClimate(t, newStubDevice(), 1)

	assert.Equal(t, fakeMAC+"-zone-climate1", c.UniqueID())
	assert.Equal(t, "Kitchen climate", c.Name())
	assert.Equal(t, []hub.HVACMode{hub.HVACModeOff, hub.HVACModeHeat}, c.HVACModes())
	assert.Equal(t, 20.0, c.MinTemp())
	assert.Equal(t, 24.0, c.MaxTemp())
	assert.Equal(t, 22.0, c.TargetTemperature())
	assert.Equal(t, 21.0, c.CurrentTemperature())
	assert.Equal(t, hub.HVACModeHeat, c.HVACMode())

	info := c.DeviceInfo()
	assert.Equal(t, []hub.Identifier{{Domain: Domain, ID: fakeMAC + "_zone_1"}}, info.Identifiers)
	assert.Equal(t, &hub.Identifier{Domain: Domain, ID: fakeMAC}, info.ViaDevice)
	assert.Equal(t, "entry", info.ConfigEntryID)
}

func TestZoneClimateRequiresTemperatureControl(t *testing.T) {
	dev := newStubDevice()
	_, err := NewZoneClimate(dev, 2, "entry", nil, testLogger())
	assert.ErrorIs(t, err, ErrNoTemperatureControl)

	_, err = NewZoneClimate(dev, 9, "entry", nil, testLogger())
	assert.ErrorIs(t, err, ErrNoTemperatureControl)
}

func TestZoneClimateOffWhenUnitOff(t *testing.T) {
	dev := newStubDevice()
	dev.on = false
	c := newTestZoneClimate(t, dev, 0)
	assert.Equal(t, hub.HVACModeOff, c.HVACMode())
}

func TestZoneClimateSetTemperature(t *testing.T) {
	dev := newStubDevice()
	c := newTestZoneClimate(t, dev, 0)
	ctx := context.Background()

	out := 30.0
	require.NoError(t, c.SetTemperature(ctx, &out))
	assert.Empty(t, dev.recorded(), "out of range values are ignored")

	in := 23.0
	require.NoError(t, c.SetTemperature(ctx, &in))
	assert.Equal(t, []zoneWrite{{zoneID: 0, key: "lztemp_h", value: "23"}}, dev.recorded())
	assert.Equal(t, 23.0, c.TargetTemperature())
	assert.Equal(t, 23.0, c.CurrentTemperature())

	require.NoError(t, c.SetTemperature(ctx, nil))
	assert.Len(t, dev.recorded(), 1)
}

func TestZoneClimateIgnoresNonFiniteTemperature(t *testing.T) {
	dev := newStubDevice()
	c := newTestZoneClimate(t, dev, 0)

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		require.NoError(t, c.SetTemperature(context.Background(), &v))
	}
	assert.Empty(t, dev.recorded())
	assert.Equal(t, 22.0, c.TargetTemperature())
}

func TestZoneClimateSetTemperatureDoesNotRetry(t *testing.T) {
	dev := newStubDevice()
	dev.failures = 1
	c := newTestZoneClimate(t, dev, 0)

	v := 21.0
	assert.Error(t, c.SetTemperature(context.Background(), &v))
	assert.Len(t, dev.recorded(), 1)
	assert.Equal(t, 22.0, c.TargetTemperature())
}

func TestZoneClimateSetHVACMode(t *testing.T) {
	ctx := context.Background()

	t.Run("off while unit on closes the zone", func(t *testing.T) {
		dev := newStubDevice()
		c := newTestZoneClimate(t, dev, 0)
		require.NoError(t, c.SetHVACMode(ctx, hub.HVACModeOff))
		assert.Equal(t, []zoneWrite{{zoneID: 0, key: "zone_onoff", value: "0"}}, dev.recorded())
	})

	t.Run("off while unit off does nothing", func(t *testing.T) {
		dev := newStubDevice()
		dev.on = false
		c := newTestZoneClimate(t, dev, 0)
		require.NoError(t, c.SetHVACMode(ctx, hub.HVACModeOff))
		assert.Empty(t, dev.recorded())
	})

	t.Run("on while unit off opens the zone", func(t *testing.T) {
		dev := newStubDevice()
		dev.on = false
		c := newTestZoneClimate(t, dev, 1)
		require.NoError(t, c.SetHVACMode(ctx, hub.HVACModeHeat))
		assert.Equal(t, []zoneWrite{{zoneID: 1, key: "zone_onoff", value: "1"}}, dev.recorded())
	})

	t.Run("on while unit on does nothing", func(t *testing.T) {
		dev := newStubDevice()
		c := newTestZoneClimate(t, dev, 1)
		require.NoError(t, c.SetHVACMode(ctx, hub.HVACModeHeat))
		assert.Empty(t, dev.recorded())
	})
}
