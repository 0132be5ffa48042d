package daikin

import (
	"context"
	"strconv"
	"strings"

	"github.com/barneyonline/core/internal/hub"
)

const (
	Domain       = "daikin"
	manufacturer = "Daikin"

	defaultTargetTemperature = 22.0
)

// Device is the part of the AirBase client zone entities use.
type Device interface {
	MAC() string
	Zones() []Zone
	TargetTemperature() (float64, bool)
	HVACMode() hub.HVACMode
	IsOn() bool
	SetZone(ctx context.Context, zoneID int, key, value string) error
	TurnOnZone(ctx context.Context, zoneID int) error
	TurnOffZone(ctx context.Context, zoneID int) error
}

var _ Device = (*AirBase)(nil)

// RefreshFunc brings the device values up to date.
type RefreshFunc func(ctx context.Context) error

func unitDeviceInfo(mac, name, model string) *hub.DeviceInfo {
	return &hub.DeviceInfo{
		Identifiers:  []hub.Identifier{{Domain: Domain, ID: mac}},
		Name:         name,
		Manufacturer: manufacturer,
		Model:        model,
	}
}

func zoneAt(dev Device, zoneID int) (Zone, bool) {
	zones := dev.Zones()
	if zoneID < 0 || zoneID >= len(zones) {
		return Zone{}, false
	}
	return zones[zoneID], true
}

// hasTemperatureControl matches zones that get entities: named, with a setpoint.
func hasTemperatureControl(z Zone) bool {
	return z.Name != "-" && z.Temperature != 0
}

// zoneNumberRange is the range the zone number entity accepts: 0 up to two
// degrees above the unit target.
func zoneNumberRange(dev Device) (float64, float64) {
	target := defaultTargetTemperature
	if t, ok := dev.TargetTemperature(); ok {
		target = t
	}
	return 0, target + 2
}

// inRange is false for NaN.
func inRange(value, lo, hi float64) bool {
	return lo <= value && value <= hi
}

func outOfRangeError(value, lo, hi float64) error {
	return hub.Errorf(nil, "Value %s out of range (%s-%s).", formatDegrees(value), formatDegrees(lo), formatDegrees(hi))
}

// formatDegrees prints whole values with one decimal, e.g. 24.0.
func formatDegrees(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}
