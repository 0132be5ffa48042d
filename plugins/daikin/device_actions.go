package daikin

import (
	"context"

	"github.com/barneyonline/core/internal/hub"
)

const (
	actionTurnOn             = "turn_on"
	actionTurnOff            = "turn_off"
	actionSetZoneTemperature = "set_zone_temperature"

	confZoneID      = "zone_id"
	confTemperature = "temperature"
)

var actionSchema = hub.ActionBaseSchema.Extend(
	hub.Required(hub.ActionType, hub.In(actionTurnOn, actionTurnOff, actionSetZoneTemperature)),
	hub.Required(hub.ActionEntityID, hub.EntityDomain(string(hub.PlatformClimate))),
	hub.Optional(confZoneID, hub.PositiveInt),
	hub.Optional(confTemperature, hub.CoerceFloat),
)

// actionProvider offers turn on, turn off and zone temperature actions for
// every climate entity of a Daikin device.
type actionProvider struct {
	hub *hub.Hub
}

var _ hub.ActionProvider = (*actionProvider)(nil)

func (a *actionProvider) ActionSchema() hub.Schema {
	return actionSchema
}

func (a *actionProvider) Actions(_ context.Context, deviceID string) ([]hub.ActionConfig, error) {
	dev, ok := a.hub.Devices.Get(deviceID)
	if !ok || dev.Integration != Domain {
		return nil, nil
	}

	var actions []hub.ActionConfig
	for _, entry := range a.hub.Entities.EntriesForDevice(deviceID) {
		if entry.Platform != string(hub.PlatformClimate) {
			continue
		}
		for _, typ := range []string{actionTurnOn, actionTurnOff, actionSetZoneTemperature} {
			actions = append(actions, hub.ActionConfig{
				hub.ActionDeviceID: deviceID,
				hub.ActionDomain:   string(hub.PlatformClimate),
				hub.ActionEntityID: entry.EntityID,
				hub.ActionType:     typ,
			})
		}
	}
	return actions, nil
}

func (a *actionProvider) CallAction(ctx context.Context, config hub.ActionConfig, _ map[string]any, callCtx *hub.Context) error {
	switch config.String(hub.ActionType) {
	case actionSetZoneTemperature:
		zoneID, hasZone := config[confZoneID]
		temperature, hasTemp := config[confTemperature]
		if !hasZone || !hasTemp {
			return nil
		}
		_, err := a.hub.Services.Call(ctx, Domain, serviceSetZoneTemperature, map[string]any{
			"zone_id":     zoneID,
			"temperature": temperature,
		}, hub.WithContext(callCtx))
		return err
	case actionTurnOn, actionTurnOff:
		_, err := a.hub.Services.Call(ctx, string(hub.PlatformClimate), config.String(hub.ActionType), map[string]any{
			"entity_id": config.String(hub.ActionEntityID),
		}, hub.WithContext(callCtx))
		return err
	default:
		return nil
	}
}
