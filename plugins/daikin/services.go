package daikin

import (
	"context"
	"fmt"

	"github.com/barneyonline/core/internal/hub"
)

const serviceSetZoneTemperature = "set_zone_temperature"

var setZoneTemperatureSchema = hub.NewSchema(
	hub.Required("zone_id", hub.CoerceInt),
	hub.Required("temperature", hub.CoerceFloat),
)

func (p *Plugin) registerServices(h *hub.Hub) {
	h.Services.Register(Domain, serviceSetZoneTemperature, p.handleSetZoneTemperature, &setZoneTemperatureSchema)
	p.logger.Info("Daikin custom services registered.")
}

func (p *Plugin) unregisterServices(h *hub.Hub) {
	h.Services.Remove(Domain, serviceSetZoneTemperature)
	p.logger.Info("Daikin custom services unregistered.")
}

// handleSetZoneTemperature applies the setpoint to the zone on every unit.
// Failures are logged per unit and never fail the call.
func (p *Plugin) handleSetZoneTemperature(ctx context.Context, call hub.ServiceCall) error {
	zoneID := call.Data["zone_id"].(int)
	temperature := call.Data["temperature"].(float64)
	p.logger.Debug("Received call to set zone temperature", "zone_id", zoneID, "temperature", temperature)
	if _, err := zoneSetpoint(temperature); err != nil {
		p.logger.Error(fmt.Sprintf("Failed to set zone temperature: %v", err), "zone_id", zoneID)
		return nil
	}

	for _, u := range p.units {
		dev := u.Device()
		if dev == nil {
			p.logger.Warn(fmt.Sprintf("No device found in coordinator for entry %s", u.entryID))
			continue
		}
		p.setZoneTemperature(ctx, dev, zoneID, temperature)
	}
	return nil
}

// setZoneTemperature runs the retried write for one unit and logs the outcome.
func (p *Plugin) setZoneTemperature(ctx context.Context, dev *AirBase, zoneID int, temperature float64) (int, error) {
	mac := dev.MAC()
	attempts, err := p.retry.setZoneTemperature(ctx, dev, zoneID, temperature, func(attempt int, err error) {
		p.logger.Error(fmt.Sprintf("Attempt %d: Failed to set zone temperature on device %s: %v", attempt, mac, err))
	})
	if err != nil {
		p.logger.Error(fmt.Sprintf("Failed to set zone temperature after %d attempts: %v", attempts, err), "mac", mac)
		return attempts, err
	}
	p.logger.Debug("Set zone temperature", "mac", mac, "zone_id", zoneID, "temperature", temperature, "attempts", attempts)
	return attempts, nil
}
