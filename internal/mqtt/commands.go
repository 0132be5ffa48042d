package mqtt

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/barneyonline/core/internal/hub"
)

// handleSet maps <prefix>/<domain>/<object_id>/set payloads onto entity
// services.
func (b *Bridge) handleSet(topic string, payload []byte) {
	parts := strings.Split(strings.TrimPrefix(topic, b.opts.TopicPrefix+"/"), "/")
	if len(parts) != 3 || parts[2] != "set" || parts[0] == "service" {
		return
	}
	entityID := parts[0] + "." + parts[1]
	if !hub.ValidEntityID(entityID) {
		b.logger.Warn("MQTT command for invalid entity", "topic", topic)
		return
	}

	calls, ok := commandCalls(parts[0], entityID, payload)
	if !ok {
		b.logger.Warn("unsupported MQTT command", "topic", topic, "payload", string(payload))
		return
	}
	for _, c := range calls {
		b.call(c.domain, c.service, c.data)
	}
}

// handleServiceCommand runs <prefix>/service/<domain>/<service> with the JSON
// object payload as service data.
func (b *Bridge) handleServiceCommand(topic string, payload []byte) {
	parts := strings.Split(strings.TrimPrefix(topic, b.opts.TopicPrefix+"/"), "/")
	if len(parts) != 3 || parts[0] != "service" {
		return
	}
	data := map[string]any{}
	if len(strings.TrimSpace(string(payload))) > 0 {
		if !gjson.ValidBytes(payload) {
			b.logger.Warn("invalid MQTT service payload", "topic", topic)
			return
		}
		result := gjson.ParseBytes(payload)
		if !result.IsObject() {
			b.logger.Warn("MQTT service payload is not an object", "topic", topic)
			return
		}
		data, _ = result.Value().(map[string]any)
	}
	b.call(parts[1], parts[2], data)
}

type serviceCall struct {
	domain  string
	service string
	data    map[string]any
}

func commandCalls(domain, entityID string, payload []byte) ([]serviceCall, bool) {
	if !gjson.ValidBytes(payload) {
		return nil, false
	}
	result := gjson.ParseBytes(payload)

	switch domain {
	case string(hub.PlatformClimate):
		if !result.IsObject() {
			return nil, false
		}
		var calls []serviceCall
		if mode := result.Get("hvac_mode"); mode.Exists() {
			calls = append(calls, serviceCall{
				domain:  domain,
				service: "set_hvac_mode",
				data:    map[string]any{"entity_id": entityID, "hvac_mode": mode.String()},
			})
		}
		if temp := result.Get("temperature"); temp.Exists() {
			calls = append(calls, serviceCall{
				domain:  domain,
				service: "set_temperature",
				data:    map[string]any{"entity_id": entityID, "temperature": temp.Value()},
			})
		}
		return calls, len(calls) > 0
	case string(hub.PlatformNumber):
		value := result
		if result.IsObject() {
			value = result.Get("value")
		}
		if !value.Exists() || (value.Type != gjson.Number && value.Type != gjson.String) {
			return nil, false
		}
		return []serviceCall{{
			domain:  domain,
			service: "set_value",
			data:    map[string]any{"entity_id": entityID, "value": value.Value()},
		}}, true
	}
	return nil, false
}

func (b *Bridge) call(domain, service string, data map[string]any) {
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()
	if _, err := b.hub.Services.Call(ctx, domain, service, data); err != nil {
		b.logger.Warn("MQTT command failed", "domain", domain, "service", service, "error", err)
		return
	}
	b.logger.Debug("MQTT command", "domain", domain, "service", service)
}
