package hub

import (
	"context"
	"strconv"
)

// NumberEntity is an entity exposed under the number platform.
type NumberEntity interface {
	Entity
	NativeValue() float64
	NativeMinValue() float64
	NativeMaxValue() float64
	NativeStep() float64
	NativeUnit() string
	DeviceClass() string
	Icon() string
	SetNativeValue(ctx context.Context, value float64) error
}

func numberState(n NumberEntity) (string, map[string]any) {
	attrs := map[string]any{
		"friendly_name": n.Name(),
		"min":           n.NativeMinValue(),
		"max":           n.NativeMaxValue(),
		"step":          n.NativeStep(),
		"mode":          "auto",
	}
	if unit := n.NativeUnit(); unit != "" {
		attrs["unit_of_measurement"] = unit
	}
	if class := n.DeviceClass(); class != "" {
		attrs["device_class"] = class
	}
	if icon := n.Icon(); icon != "" {
		attrs["icon"] = icon
	}
	return strconv.FormatFloat(n.NativeValue(), 'f', -1, 64), attrs
}

func (h *Hub) registerNumberServices() {
	schema := NewSchema(
		Required("entity_id", EntityIDs),
		Required("value", CoerceFloat),
	)
	h.Services.Register(string(PlatformNumber), "set_value", h.entityService(PlatformNumber, func(ctx context.Context, e Entity, call ServiceCall) error {
		n := e.(NumberEntity)
		value := call.Data["value"].(float64)
		if !(n.NativeMinValue() <= value && value <= n.NativeMaxValue()) {
			return Errorf(ErrInvalidData, "Value %v for %s is outside valid range %v - %v",
				value, n.Name(), n.NativeMinValue(), n.NativeMaxValue())
		}
		return n.SetNativeValue(ctx, value)
	}), &schema)
}
