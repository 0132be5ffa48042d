package hub

import (
	"context"
	"slices"
)

// HVACMode is the operating mode of a climate entity.
type HVACMode string

const (
	HVACModeOff      HVACMode = "off"
	HVACModeHeat     HVACMode = "heat"
	HVACModeCool     HVACMode = "cool"
	HVACModeHeatCool HVACMode = "heat_cool"
	HVACModeAuto     HVACMode = "auto"
	HVACModeDry      HVACMode = "dry"
	HVACModeFanOnly  HVACMode = "fan_only"
)

var allHVACModes = []string{
	string(HVACModeOff),
	string(HVACModeHeat),
	string(HVACModeCool),
	string(HVACModeHeatCool),
	string(HVACModeAuto),
	string(HVACModeDry),
	string(HVACModeFanOnly),
}

// ClimateFeatureTargetTemperature marks entities accepting a target temperature.
const ClimateFeatureTargetTemperature = 1

const UnitCelsius = "°C"

// ClimateEntity is an entity exposed under the climate platform.
type ClimateEntity interface {
	Entity
	CurrentTemperature() float64
	TargetTemperature() float64
	HVACMode() HVACMode
	HVACModes() []HVACMode
	MinTemp() float64
	MaxTemp() float64
	TemperatureUnit() string
	SupportedFeatures() int
	// SetTemperature receives nil when the call carried no temperature.
	SetTemperature(ctx context.Context, temperature *float64) error
	SetHVACMode(ctx context.Context, mode HVACMode) error
}

func climateState(c ClimateEntity) (string, map[string]any) {
	modes := make([]string, 0, len(c.HVACModes()))
	for _, m := range c.HVACModes() {
		modes = append(modes, string(m))
	}
	return string(c.HVACMode()), map[string]any{
		"friendly_name":       c.Name(),
		"hvac_modes":          modes,
		"min_temp":            c.MinTemp(),
		"max_temp":            c.MaxTemp(),
		"current_temperature": c.CurrentTemperature(),
		"temperature":         c.TargetTemperature(),
		"temperature_unit":    c.TemperatureUnit(),
		"supported_features":  c.SupportedFeatures(),
	}
}

func (h *Hub) registerClimateServices() {
	entitySchema := NewSchema(Required("entity_id", EntityIDs))

	h.Services.Register(string(PlatformClimate), "turn_on", h.entityService(PlatformClimate, func(ctx context.Context, e Entity, _ ServiceCall) error {
		c := e.(ClimateEntity)
		for _, mode := range []HVACMode{HVACModeHeatCool, HVACModeAuto} {
			if slices.Contains(c.HVACModes(), mode) {
				return c.SetHVACMode(ctx, mode)
			}
		}
		for _, mode := range c.HVACModes() {
			if mode != HVACModeOff {
				return c.SetHVACMode(ctx, mode)
			}
		}
		return Errorf(nil, "%s does not support turning on", c.Name())
	}), &entitySchema)

	h.Services.Register(string(PlatformClimate), "turn_off", h.entityService(PlatformClimate, func(ctx context.Context, e Entity, _ ServiceCall) error {
		c := e.(ClimateEntity)
		if !slices.Contains(c.HVACModes(), HVACModeOff) {
			return Errorf(nil, "%s does not support turning off", c.Name())
		}
		return c.SetHVACMode(ctx, HVACModeOff)
	}), &entitySchema)

	tempSchema := entitySchema.Extend(Optional("temperature", CoerceFloat))
	h.Services.Register(string(PlatformClimate), "set_temperature", h.entityService(PlatformClimate, func(ctx context.Context, e Entity, call ServiceCall) error {
		var temperature *float64
		if v, ok := call.Data["temperature"].(float64); ok {
			temperature = &v
		}
		return e.(ClimateEntity).SetTemperature(ctx, temperature)
	}), &tempSchema)

	modeSchema := entitySchema.Extend(Required("hvac_mode", In(allHVACModes...)))
	h.Services.Register(string(PlatformClimate), "set_hvac_mode", h.entityService(PlatformClimate, func(ctx context.Context, e Entity, call ServiceCall) error {
		c := e.(ClimateEntity)
		mode := HVACMode(call.Data["hvac_mode"].(string))
		if !slices.Contains(c.HVACModes(), mode) {
			return Errorf(nil, "HVAC mode %s is not valid for %s. Valid HVAC modes are: %v", mode, c.Name(), c.HVACModes())
		}
		return c.SetHVACMode(ctx, mode)
	}), &modeSchema)
}
