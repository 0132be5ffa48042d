package hub

import (
	"context"
	"fmt"
)

// Platform is the entity domain an entity is exposed under.
type Platform string

const (
	PlatformClimate Platform = "climate"
	PlatformNumber  Platform = "number"
)

// Entity is implemented by everything the hub tracks state for. Platform
// specific behaviour comes from ClimateEntity or NumberEntity.
type Entity interface {
	UniqueID() string
	Name() string
	DeviceInfo() *DeviceInfo
	Update(ctx context.Context) error
}

// DeviceNamed entities are named relative to their device, so the entity ID
// is derived from "<device name> <entity name>".
type DeviceNamed interface {
	HasEntityName() bool
}

// renderState returns the state string and attributes for e.
func renderState(platform Platform, e Entity) (string, map[string]any, error) {
	switch platform {
	case PlatformClimate:
		c, ok := e.(ClimateEntity)
		if !ok {
			return "", nil, fmt.Errorf("%T is not a climate entity", e)
		}
		state, attrs := climateState(c)
		return state, attrs, nil
	case PlatformNumber:
		n, ok := e.(NumberEntity)
		if !ok {
			return "", nil, fmt.Errorf("%T is not a number entity", e)
		}
		state, attrs := numberState(n)
		return state, attrs, nil
	default:
		return "", nil, fmt.Errorf("unknown platform %q", platform)
	}
}
