package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ServiceCall is what a service handler receives.
type ServiceCall struct {
	Domain  string
	Service string
	Data    map[string]any
	Context *Context
}

// ServiceHandler executes a service call.
type ServiceHandler func(ctx context.Context, call ServiceCall) error

// ServiceDescription documents a service, as loaded from services.yaml.
type ServiceDescription struct {
	Name        string                      `yaml:"name" json:"name,omitempty"`
	Description string                      `yaml:"description" json:"description,omitempty"`
	Fields      map[string]FieldDescription `yaml:"fields" json:"fields,omitempty"`
}

// FieldDescription documents one service field.
type FieldDescription struct {
	Name        string         `yaml:"name" json:"name,omitempty"`
	Description string         `yaml:"description" json:"description,omitempty"`
	Required    bool           `yaml:"required" json:"required,omitempty"`
	Example     any            `yaml:"example" json:"example,omitempty"`
	Selector    map[string]any `yaml:"selector" json:"selector,omitempty"`
}

// LoadServiceDescriptions parses a services.yaml document keyed by service name.
func LoadServiceDescriptions(data []byte) (map[string]ServiceDescription, error) {
	out := make(map[string]ServiceDescription)
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse service descriptions: %w", err)
	}
	return out, nil
}

// ServiceInfo is a registered service with its description.
type ServiceInfo struct {
	Domain      string             `json:"domain"`
	Service     string             `json:"service"`
	Description ServiceDescription `json:"description"`
}

type registeredService struct {
	handler ServiceHandler
	schema  *Schema
}

type callOptions struct {
	blocking bool
	context  *Context
}

// CallOption tunes ServiceRegistry.Call.
type CallOption func(*callOptions)

// NonBlocking returns as soon as the call is validated and dispatched.
func NonBlocking() CallOption {
	return func(o *callOptions) { o.blocking = false }
}

// WithContext attributes the call to c.
func WithContext(c *Context) CallOption {
	return func(o *callOptions) { o.context = c }
}

// ServiceRegistry maps domain/service names to handlers.
type ServiceRegistry struct {
	mu           sync.RWMutex
	services     map[string]map[string]registeredService
	descriptions map[string]map[string]ServiceDescription
	bus          *EventBus
	logger       *slog.Logger
}

func NewServiceRegistry(bus *EventBus, logger *slog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:     make(map[string]map[string]registeredService),
		descriptions: make(map[string]map[string]ServiceDescription),
		bus:          bus,
		logger:       logger,
	}
}

// Register adds or replaces a service. A nil schema passes data through.
func (r *ServiceRegistry) Register(domain, service string, handler ServiceHandler, schema *Schema) {
	domain, service = strings.ToLower(domain), strings.ToLower(service)

	r.mu.Lock()
	if r.services[domain] == nil {
		r.services[domain] = make(map[string]registeredService)
	}
	r.services[domain][service] = registeredService{handler: handler, schema: schema}
	r.mu.Unlock()

	r.bus.Emit(Event{Type: EventServiceRegistered, Data: ServiceEventData{Domain: domain, Service: service}})
}

// Remove deletes a service. Removing an unknown service is a no-op.
func (r *ServiceRegistry) Remove(domain, service string) {
	domain, service = strings.ToLower(domain), strings.ToLower(service)

	r.mu.Lock()
	_, ok := r.services[domain][service]
	if ok {
		delete(r.services[domain], service)
		if len(r.services[domain]) == 0 {
			delete(r.services, domain)
		}
	}
	r.mu.Unlock()

	if !ok {
		r.logger.Warn("unable to remove unknown service", "domain", domain, "service", service)
		return
	}
	r.bus.Emit(Event{Type: EventServiceRemoved, Data: ServiceEventData{Domain: domain, Service: service}})
}

// Has reports whether domain.service is registered.
func (r *ServiceRegistry) Has(domain, service string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.services[strings.ToLower(domain)][strings.ToLower(service)]
	return ok
}

// SetDescriptions attaches services.yaml descriptions to a domain.
func (r *ServiceRegistry) SetDescriptions(domain string, descriptions map[string]ServiceDescription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptions[strings.ToLower(domain)] = descriptions
}

// Services lists registered services sorted by domain and name.
func (r *ServiceRegistry) Services() []ServiceInfo {
	r.mu.RLock()
	var out []ServiceInfo
	for domain, services := range r.services {
		for service := range services {
			out = append(out, ServiceInfo{
				Domain:      domain,
				Service:     service,
				Description: r.descriptions[domain][service],
			})
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Domain != out[j].Domain {
			return out[i].Domain < out[j].Domain
		}
		return out[i].Service < out[j].Service
	})
	return out
}

// Call validates data against the service schema and runs the handler. By
// default the call blocks until the handler returns.
func (r *ServiceRegistry) Call(ctx context.Context, domain, service string, data map[string]any, opts ...CallOption) (*Context, error) {
	options := callOptions{blocking: true}
	for _, opt := range opts {
		opt(&options)
	}
	callCtx := options.context
	if callCtx == nil {
		callCtx = NewContext()
	}

	domain, service = strings.ToLower(domain), strings.ToLower(service)
	r.mu.RLock()
	svc, ok := r.services[domain][service]
	r.mu.RUnlock()
	if !ok {
		return callCtx, fmt.Errorf("%w: %s.%s", ErrServiceNotFound, domain, service)
	}

	if data == nil {
		data = map[string]any{}
	}
	if svc.schema != nil {
		validated, err := svc.schema.Validate(data)
		if err != nil {
			return callCtx, fmt.Errorf("%s.%s: %w", domain, service, err)
		}
		data = validated
	}

	r.bus.Emit(Event{
		Type:    EventCallService,
		Data:    CallServiceData{Domain: domain, Service: service, Data: data},
		Context: callCtx,
	})

	call := ServiceCall{Domain: domain, Service: service, Data: data, Context: callCtx}
	if options.blocking {
		return callCtx, svc.handler(ctx, call)
	}

	go func() {
		if err := svc.handler(context.WithoutCancel(ctx), call); err != nil {
			r.logger.Error("service call failed", "domain", domain, "service", service, "error", err)
		}
	}()
	return callCtx, nil
}
