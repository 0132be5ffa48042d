package daikin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/barneyonline/core/internal/hub"
)

var ErrNoTemperatureControl = errors.New("zone does not have temperature control")

// ZoneClimate exposes a zone as its own climate device.
type ZoneClimate struct {
	device  Device
	refresh RefreshFunc
	zoneID  int
	logger  *slog.Logger

	uniqueID string
	name     string
	info     *hub.DeviceInfo
	modes    []hub.HVACMode
	min      float64
	max      float64

	mu      sync.RWMutex
	target  float64
	current float64
}

var _ hub.ClimateEntity = (*ZoneClimate)(nil)

// NewZoneClimate builds the climate entity for zone zoneID of the unit.
// configEntryID binds the zone device to the unit's config entry.
func NewZoneClimate(dev Device, zoneID int, configEntryID string, refresh RefreshFunc, logger *slog.Logger) (*ZoneClimate, error) {
	zone, ok := zoneAt(dev, zoneID)
	if !ok || zone.Temperature == 0 {
		return nil, fmt.Errorf("zone %d: %w", zoneID, ErrNoTemperatureControl)
	}

	target, known := dev.TargetTemperature()
	if !known {
		target = defaultTargetTemperature
	}

	mac := dev.MAC()
	name := zone.Name + " climate"
	return &ZoneClimate{
		device:   dev,
		refresh:  refresh,
		zoneID:   zoneID,
		logger:   logger,
		uniqueID: fmt.Sprintf("%s-zone-climate%d", mac, zoneID),
		name:     name,
		info: &hub.DeviceInfo{
			Identifiers:   []hub.Identifier{{Domain: Domain, ID: fmt.Sprintf("%s_zone_%d", mac, zoneID)}},
			Name:          name,
			Manufacturer:  manufacturer,
			Model:         defaultModel,
			ViaDevice:     &hub.Identifier{Domain: Domain, ID: mac},
			ConfigEntryID: configEntryID,
		},
		modes:   []hub.HVACMode{hub.HVACModeOff, dev.HVACMode()},
		min:     target - 2,
		max:     target + 2,
		target:  target,
		current: zone.Temperature,
	}, nil
}

func (c *ZoneClimate) UniqueID() string            { return c.uniqueID }
func (c *ZoneClimate) Name() string                { return c.name }
func (c *ZoneClimate) DeviceInfo() *hub.DeviceInfo { return c.info }
func (c *ZoneClimate) HVACModes() []hub.HVACMode   { return c.modes }
func (c *ZoneClimate) MinTemp() float64            { return c.min }
func (c *ZoneClimate) MaxTemp() float64            { return c.max }
func (c *ZoneClimate) TemperatureUnit() string     { return hub.UnitCelsius }
func (c *ZoneClimate) SupportedFeatures() int      { return hub.ClimateFeatureTargetTemperature }

func (c *ZoneClimate) CurrentTemperature() float64 {
	if zone, ok := zoneAt(c.device, c.zoneID); ok {
		return zone.Temperature
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *ZoneClimate) TargetTemperature() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.target
}

func (c *ZoneClimate) HVACMode() hub.HVACMode {
	if !c.device.IsOn() {
		return hub.HVACModeOff
	}
	return c.device.HVACMode()
}

// Update refreshes the unit and re-reads the zone setpoint.
func (c *ZoneClimate) Update(ctx context.Context) error {
	if c.refresh != nil {
		if err := c.refresh(ctx); err != nil {
			return err
		}
	}
	if zone, ok := zoneAt(c.device, c.zoneID); ok {
		c.mu.Lock()
		c.current = zone.Temperature
		c.mu.Unlock()
	}
	return nil
}

// SetTemperature writes the zone setpoint. Values outside the zone range are
// ignored.
func (c *ZoneClimate) SetTemperature(ctx context.Context, temperature *float64) error {
	if temperature == nil {
		return nil
	}
	t := *temperature
	if !inRange(t, c.min, c.max) {
		c.logger.Debug("ignoring zone temperature outside range", "zone_id", c.zoneID, "temperature", t, "min", c.min, "max", c.max)
		return nil
	}

	value, err := zoneSetpoint(t)
	if err != nil {
		return err
	}
	if err := c.device.SetZone(ctx, c.zoneID, "lztemp_h", value); err != nil {
		return err
	}
	c.mu.Lock()
	c.target = t
	c.mu.Unlock()
	return c.Update(ctx)
}

// SetHVACMode switches the zone damper. The unit itself is never powered on
// or off from a zone.
func (c *ZoneClimate) SetHVACMode(ctx context.Context, mode hub.HVACMode) error {
	if mode == hub.HVACModeOff {
		if c.device.IsOn() {
			if err := c.device.TurnOffZone(ctx, c.zoneID); err != nil {
				return err
			}
		}
	} else if !c.device.IsOn() {
		if err := c.device.TurnOnZone(ctx, c.zoneID); err != nil {
			return err
		}
	}
	return c.Update(ctx)
}
