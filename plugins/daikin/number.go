package daikin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/barneyonline/core/internal/hub"
)

// ZoneTemperature exposes a zone setpoint as a number entity.
type ZoneTemperature struct {
	device  Device
	refresh RefreshFunc
	zoneID  int
	info    *hub.DeviceInfo
	retry   retryPolicy
	logger  *slog.Logger

	uniqueID string
	name     string
	min      float64
	max      float64

	mu      sync.Mutex
	current float64
}

var _ hub.NumberEntity = (*ZoneTemperature)(nil)

// NewZoneTemperature builds the number entity for zone zoneID. info is the
// unit device the entity is attached to.
func NewZoneTemperature(dev Device, zoneID int, info *hub.DeviceInfo, refresh RefreshFunc, logger *slog.Logger) *ZoneTemperature {
	z := &ZoneTemperature{
		device:   dev,
		refresh:  refresh,
		zoneID:   zoneID,
		info:     info,
		retry:    defaultRetry,
		logger:   logger,
		uniqueID: fmt.Sprintf("%s-zone-temp%d", dev.MAC(), zoneID),
	}

	zone, ok := zoneAt(dev, zoneID)
	z.name = zone.Name + " temperature"

	target := defaultTargetTemperature
	if t, known := dev.TargetTemperature(); known {
		target = t
	} else {
		logger.Debug("Using default target temperature of 22.")
	}

	if ok {
		z.current = zone.Temperature
	} else {
		logger.Error("Failed to retrieve zone temperature, using default value.", "zone_id", zoneID)
		z.current = target
	}
	z.min, z.max = zoneNumberRange(dev)
	return z
}

func (z *ZoneTemperature) UniqueID() string            { return z.uniqueID }
func (z *ZoneTemperature) Name() string                { return z.name }
func (z *ZoneTemperature) HasEntityName() bool         { return true }
func (z *ZoneTemperature) DeviceInfo() *hub.DeviceInfo { return z.info }
func (z *ZoneTemperature) NativeMinValue() float64     { return z.min }
func (z *ZoneTemperature) NativeMaxValue() float64     { return z.max }
func (z *ZoneTemperature) NativeStep() float64         { return 1 }
func (z *ZoneTemperature) NativeUnit() string          { return hub.UnitCelsius }
func (z *ZoneTemperature) DeviceClass() string         { return "temperature" }
func (z *ZoneTemperature) Icon() string                { return "mdi:thermostat" }

func (z *ZoneTemperature) Update(ctx context.Context) error {
	if z.refresh == nil {
		return nil
	}
	return z.refresh(ctx)
}

// NativeValue re-reads the zone setpoint, keeping the last known value when
// the zone cannot be read.
func (z *ZoneTemperature) NativeValue() float64 {
	z.mu.Lock()
	defer z.mu.Unlock()
	if zone, ok := zoneAt(z.device, z.zoneID); ok {
		z.current = zone.Temperature
	} else {
		z.logger.Error("Failed to update zone temperature; using last known value.", "zone_id", z.zoneID)
	}
	return z.current
}

// SetNativeValue writes value as the zone setpoint, retrying failed writes.
func (z *ZoneTemperature) SetNativeValue(ctx context.Context, value float64) error {
	if !inRange(value, z.min, z.max) {
		return outOfRangeError(value, z.min, z.max)
	}

	z.mu.Lock()
	z.current = value
	z.mu.Unlock()

	attempts, err := z.retry.setZoneTemperature(ctx, z.device, z.zoneID, value, func(attempt int, err error) {
		z.logger.Error(fmt.Sprintf("Attempt %d: Failed to set zone temperature", attempt), "zone_id", z.zoneID, "error", err)
	})
	if err != nil {
		return hub.Errorf(err, "Failed to set zone temperature after %d attempts: %v", attempts, err)
	}
	z.logger.Debug("Successfully set zone temperature", "zone_id", z.zoneID, "temperature", value)
	return nil
}
