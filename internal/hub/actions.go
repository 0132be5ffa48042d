package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

const (
	ActionDeviceID = "device_id"
	ActionDomain   = "domain"
	ActionEntityID = "entity_id"
	ActionType     = "type"
)

// ActionConfig is one device action as listed to and sent back by callers.
type ActionConfig map[string]any

// String returns a string value of the config or "".
func (c ActionConfig) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// ActionBaseSchema holds the keys every device action carries.
var ActionBaseSchema = NewSchema(
	Required(ActionDeviceID, String),
	Required(ActionDomain, String),
)

// ActionProvider lists and executes device actions for an integration.
type ActionProvider interface {
	ActionSchema() Schema
	Actions(ctx context.Context, deviceID string) ([]ActionConfig, error)
	CallAction(ctx context.Context, config ActionConfig, variables map[string]any, callCtx *Context) error
}

// ActionRegistry dispatches device actions to providers.
type ActionRegistry struct {
	mu        sync.RWMutex
	providers map[string]ActionProvider
	devices   *DeviceRegistry
	logger    *slog.Logger
}

func NewActionRegistry(devices *DeviceRegistry, logger *slog.Logger) *ActionRegistry {
	return &ActionRegistry{
		providers: make(map[string]ActionProvider),
		devices:   devices,
		logger:    logger,
	}
}

func (r *ActionRegistry) Register(domain string, p ActionProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[domain] = p
}

func (r *ActionRegistry) Remove(domain string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, domain)
}

// ListForDevice collects the actions every provider offers for deviceID.
func (r *ActionRegistry) ListForDevice(ctx context.Context, deviceID string) ([]ActionConfig, error) {
	if _, ok := r.devices.Get(deviceID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}

	r.mu.RLock()
	domains := make([]string, 0, len(r.providers))
	for domain := range r.providers {
		domains = append(domains, domain)
	}
	r.mu.RUnlock()
	sort.Strings(domains)

	var out []ActionConfig
	for _, domain := range domains {
		p, ok := r.provider(domain)
		if !ok {
			continue
		}
		actions, err := p.Actions(ctx, deviceID)
		if err != nil {
			return nil, fmt.Errorf("%s actions: %w", domain, err)
		}
		out = append(out, actions...)
	}
	return out, nil
}

// Call validates config against the provider schema and runs the action.
// The provider is chosen by the config domain, falling back to the
// integration that owns the device.
func (r *ActionRegistry) Call(ctx context.Context, config ActionConfig, variables map[string]any, callCtx *Context) error {
	cfg := make(ActionConfig, len(config))
	for k, v := range config {
		if k == "metadata" {
			continue
		}
		cfg[k] = v
	}

	p, err := r.resolve(cfg)
	if err != nil {
		return err
	}
	validated, err := p.ActionSchema().Validate(cfg)
	if err != nil {
		return err
	}
	if callCtx == nil {
		callCtx = NewContext()
	}
	return p.CallAction(ctx, ActionConfig(validated), variables, callCtx)
}

func (r *ActionRegistry) resolve(config ActionConfig) (ActionProvider, error) {
	if p, ok := r.provider(config.String(ActionDomain)); ok {
		return p, nil
	}
	deviceID := config.String(ActionDeviceID)
	dev, ok := r.devices.Get(deviceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	if p, ok := r.provider(dev.Integration); ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w for domain %q", ErrNoActionHandler, config.String(ActionDomain))
}

func (r *ActionRegistry) provider(domain string) (ActionProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[domain]
	return p, ok
}
