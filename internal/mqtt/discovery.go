package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/barneyonline/core/internal/hub"
)

type discoveryMsg struct {
	Topic   string
	Payload []byte
}

type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

// haClimate is a Home Assistant MQTT climate config.
type haClimate struct {
	Name                     string    `json:"name"`
	UniqueID                 string    `json:"unique_id"`
	AvailabilityTopic        string    `json:"availability_topic"`
	Modes                    []string  `json:"modes"`
	ModeStateTopic           string    `json:"mode_state_topic"`
	ModeStateTemplate        string    `json:"mode_state_template"`
	ModeCommandTopic         string    `json:"mode_command_topic"`
	ModeCommandTemplate      string    `json:"mode_command_template"`
	CurrentTemperatureTopic  string    `json:"current_temperature_topic"`
	CurrentTemperatureTmpl   string    `json:"current_temperature_template"`
	TemperatureStateTopic    string    `json:"temperature_state_topic"`
	TemperatureStateTemplate string    `json:"temperature_state_template"`
	TemperatureCommandTopic  string    `json:"temperature_command_topic"`
	TemperatureCommandTmpl   string    `json:"temperature_command_template"`
	MinTemp                  float64   `json:"min_temp,omitempty"`
	MaxTemp                  float64   `json:"max_temp,omitempty"`
	TempStep                 float64   `json:"temp_step,omitempty"`
	TemperatureUnit          string    `json:"temperature_unit,omitempty"`
	Device                   *haDevice `json:"device,omitempty"`
}

// haNumber is a Home Assistant MQTT number config.
type haNumber struct {
	Name              string    `json:"name"`
	UniqueID          string    `json:"unique_id"`
	AvailabilityTopic string    `json:"availability_topic"`
	StateTopic        string    `json:"state_topic"`
	ValueTemplate     string    `json:"value_template"`
	CommandTopic      string    `json:"command_topic"`
	CommandTemplate   string    `json:"command_template"`
	Min               float64   `json:"min"`
	Max               float64   `json:"max"`
	Step              float64   `json:"step"`
	UnitOfMeasurement string    `json:"unit_of_measurement,omitempty"`
	DeviceClass       string    `json:"device_class,omitempty"`
	Icon              string    `json:"icon,omitempty"`
	Device            *haDevice `json:"device,omitempty"`
}

// buildDiscovery returns the discovery config of st. Only climate and
// number entities are announced.
func (b *Bridge) buildDiscovery(st hub.State) (discoveryMsg, bool) {
	domain, object := hub.SplitEntityID(st.EntityID)
	stateTopic := b.entityTopic(st.EntityID, "state")
	setTopic := b.entityTopic(st.EntityID, "set")
	name := attrString(st.Attributes, "friendly_name")
	if name == "" {
		name = object
	}
	uniqueID := "gohome_" + domain + "_" + object
	device := b.deviceFor(st.EntityID)

	var config any
	switch domain {
	case string(hub.PlatformClimate):
		config = haClimate{
			Name:                     name,
			UniqueID:                 uniqueID,
			AvailabilityTopic:        b.statusTopic(),
			Modes:                    attrStrings(st.Attributes, "hvac_modes"),
			ModeStateTopic:           stateTopic,
			ModeStateTemplate:        "{{ value_json.state }}",
			ModeCommandTopic:         setTopic,
			ModeCommandTemplate:      `{"hvac_mode": "{{ value }}"}`,
			CurrentTemperatureTopic:  stateTopic,
			CurrentTemperatureTmpl:   "{{ value_json.attributes.current_temperature }}",
			TemperatureStateTopic:    stateTopic,
			TemperatureStateTemplate: "{{ value_json.attributes.temperature }}",
			TemperatureCommandTopic:  setTopic,
			TemperatureCommandTmpl:   `{"temperature": {{ value }}}`,
			MinTemp:                  attrFloat(st.Attributes, "min_temp"),
			MaxTemp:                  attrFloat(st.Attributes, "max_temp"),
			TempStep:                 1,
			TemperatureUnit:          "C",
			Device:                   device,
		}
	case string(hub.PlatformNumber):
		config = haNumber{
			Name:              name,
			UniqueID:          uniqueID,
			AvailabilityTopic: b.statusTopic(),
			StateTopic:        stateTopic,
			ValueTemplate:     "{{ value_json.state }}",
			CommandTopic:      setTopic,
			CommandTemplate:   `{"value": {{ value }}}`,
			Min:               attrFloat(st.Attributes, "min"),
			Max:               attrFloat(st.Attributes, "max"),
			Step:              attrFloat(st.Attributes, "step"),
			UnitOfMeasurement: attrString(st.Attributes, "unit_of_measurement"),
			DeviceClass:       attrString(st.Attributes, "device_class"),
			Icon:              attrString(st.Attributes, "icon"),
			Device:            device,
		}
	default:
		return discoveryMsg{}, false
	}

	payload, err := json.Marshal(config)
	if err != nil {
		return discoveryMsg{}, false
	}
	return discoveryMsg{
		Topic:   fmt.Sprintf("%s/%s/%s/config", b.opts.DiscoveryPrefix, domain, object),
		Payload: payload,
	}, true
}

func (b *Bridge) deviceFor(entityID string) *haDevice {
	entry, ok := b.hub.Entities.Get(entityID)
	if !ok || entry.DeviceID == "" {
		return nil
	}
	dev, ok := b.hub.Devices.Get(entry.DeviceID)
	if !ok {
		return nil
	}
	out := &haDevice{
		Name:         dev.Name,
		Manufacturer: dev.Manufacturer,
		Model:        dev.Model,
		Identifiers:  []string{dev.ID},
	}
	for _, ident := range dev.Identifiers {
		out.Identifiers = append(out.Identifiers, ident[0]+"_"+ident[1])
	}
	if dev.ViaDeviceID != "" {
		out.ViaDevice = dev.ViaDeviceID
	}
	return out
}

func attrString(attrs map[string]any, key string) string {
	s, _ := attrs[key].(string)
	return s
}

func attrFloat(attrs map[string]any, key string) float64 {
	switch v := attrs[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func attrStrings(attrs map[string]any, key string) []string {
	switch v := attrs[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
