package daikin

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"github.com/barneyonline/core/internal/config"
	"github.com/barneyonline/core/internal/core"
	"github.com/barneyonline/core/internal/hub"
	"github.com/barneyonline/core/internal/rate"
)

//go:embed AGENTS.md
var agentsMD string

//go:embed dashboard.json
var dashboardJSON []byte

//go:embed services.yaml
var servicesYAML []byte

// Plugin implements the GoHome plugin contract for AirBase units.
type Plugin struct {
	cfg    Config
	logger *slog.Logger
	retry  retryPolicy
	units  []*unit

	configErr error

	mu        sync.RWMutex
	hub       *hub.Hub
	cancel    context.CancelFunc
	listeners []func()
	wg        sync.WaitGroup
}

var (
	_ core.Plugin      = (*Plugin)(nil)
	_ core.Integration = (*Plugin)(nil)
	_ rate.RateLimited = (*Plugin)(nil)
)

// NewPlugin constructs the plugin from config. It reports false when the
// daikin section is absent.
func NewPlugin(cfg *config.DaikinConfig, logger *slog.Logger) (*Plugin, bool) {
	if cfg == nil {
		return nil, false
	}
	p := &Plugin{
		logger: logger.With("plugin", Domain),
		retry:  defaultRetry,
	}

	runtimeCfg, err := ConfigFrom(cfg)
	if err != nil {
		p.configErr = err
		return p, true
	}
	p.cfg = runtimeCfg

	decl := p.RateLimits()
	for _, uc := range runtimeCfg.Units {
		p.units = append(p.units, newUnit(uc, runtimeCfg, decl, p.logger))
	}
	return p, true
}

func (p *Plugin) ID() string {
	return Domain
}

func (p *Plugin) Manifest() core.Manifest {
	return core.Manifest{
		PluginID:    Domain,
		DisplayName: "Daikin AirBase",
		Version:     "0.2.0",
		Services:    []string{"gohome.plugins.daikin.v1.DaikinService"},
	}
}

func (p *Plugin) AgentsMD() string {
	return agentsMD
}

func (p *Plugin) RateLimits() rate.Declaration {
	limit := p.cfg.MaxRequestsPerMinute
	if limit <= 0 {
		limit = defaultMaxRequestsPerMinute
	}
	return rate.Provider(Domain).
		MaxRequestsPer(rate.Minute, limit).
		CacheFor(readCacheTTL,
			"/skyfi/"+resourceBasicInfo,
			"/skyfi/"+resourceModelInfo,
			"/skyfi/"+resourceControlInfo,
			"/skyfi/"+resourceSensorInfo,
		).
		CooldownAfterError(overloadCooldown)
}

func (p *Plugin) Dashboards() []core.Dashboard {
	return []core.Dashboard{{Name: "daikin-airbase", JSON: dashboardJSON}}
}

func (p *Plugin) RegisterGRPC(server *grpc.Server) {
	if err := registerDaikinService(server, p); err != nil {
		p.logger.Error("register daikin service", "error", err)
	}
}

func (p *Plugin) Collectors() []prometheus.Collector {
	return []prometheus.Collector{NewMetricsCollector(p), zoneSetCounter}
}

func (p *Plugin) Health() core.HealthStatus {
	status, _ := p.health()
	return status
}

func (p *Plugin) HealthMessage() string {
	_, msg := p.health()
	return msg
}

func (p *Plugin) health() (core.HealthStatus, string) {
	if p.configErr != nil {
		return core.HealthError, p.configErr.Error()
	}
	var failing []string
	for _, u := range p.units {
		if !u.coordinator.LastUpdateSuccess() {
			msg := u.cfg.Host + ": not polled yet"
			if err := u.coordinator.LastError(); err != nil {
				msg = u.cfg.Host + ": " + err.Error()
			}
			failing = append(failing, msg)
		}
	}
	switch {
	case len(failing) == 0:
		return core.HealthHealthy, ""
	case len(failing) == len(p.units):
		return core.HealthError, strings.Join(failing, "; ")
	default:
		return core.HealthDegraded, strings.Join(failing, "; ")
	}
}

// Setup registers services and device actions, connects every unit and
// starts polling. Units that cannot be reached yet are retried on each poll
// and get their entities once they answer.
func (p *Plugin) Setup(ctx context.Context, h *hub.Hub) error {
	if p.configErr != nil {
		return p.configErr
	}

	descriptions, err := hub.LoadServiceDescriptions(servicesYAML)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.hub != nil {
		p.mu.Unlock()
		return errors.New("daikin already set up")
	}
	p.hub = h
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	p.registerServices(h)
	h.Services.SetDescriptions(Domain, descriptions)
	h.Actions.Register(Domain, &actionProvider{hub: h})

	for _, u := range p.units {
		u := u
		remove := u.coordinator.AddListener(func() { p.onRefresh(runCtx, u) })
		p.mu.Lock()
		p.listeners = append(p.listeners, remove)
		p.mu.Unlock()
		if err := u.coordinator.Refresh(ctx); err != nil {
			p.logger.Warn("daikin unit not ready, retrying on next poll", "host", u.cfg.Host, "error", err)
		}
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			u.coordinator.Run(runCtx)
		}()
	}
	return nil
}

// Unload stops polling and removes everything Setup added.
func (p *Plugin) Unload(_ context.Context, h *hub.Hub) error {
	p.mu.Lock()
	cancel := p.cancel
	listeners := p.listeners
	p.cancel = nil
	p.listeners = nil
	p.hub = nil
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	p.wg.Wait()
	for _, remove := range listeners {
		remove()
	}

	p.unregisterServices(h)
	h.Actions.Remove(Domain)
	for _, u := range p.units {
		h.RemoveConfigEntry(u.entryID)
		u.resetAdded()
	}
	return nil
}

func (p *Plugin) currentHub() *hub.Hub {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hub
}

func (p *Plugin) onRefresh(ctx context.Context, u *unit) {
	h := p.currentHub()
	if h == nil {
		return
	}
	if u.markAdded() {
		if err := p.addEntities(ctx, h, u); err != nil {
			p.logger.Error("add daikin entities", "host", u.cfg.Host, "error", err)
		}
		return
	}
	h.WriteEntryStates(u.entryID)
}

func (p *Plugin) addEntities(ctx context.Context, h *hub.Hub, u *unit) error {
	dev := u.Device()
	info := unitDeviceInfo(dev.MAC(), u.Name(), dev.Model())
	if _, err := h.Devices.GetOrCreate(Domain, u.entryID, *info); err != nil {
		return fmt.Errorf("register unit device: %w", err)
	}

	zones := dev.Zones()
	if len(zones) == 0 {
		p.logger.Debug("No zones found on Daikin device.", "host", u.cfg.Host)
		return nil
	}
	p.logger.Debug("Detected zones", "host", u.cfg.Host, "zones", zones)

	var (
		numbers  []hub.Entity
		climates []hub.Entity
	)
	for i, zone := range zones {
		if !hasTemperatureControl(zone) {
			continue
		}
		number := NewZoneTemperature(dev, i, info, u.refresh, p.logger)
		number.retry = p.retry
		numbers = append(numbers, number)

		climate, err := NewZoneClimate(dev, i, u.entryID, u.refresh, p.logger)
		if err != nil {
			p.logger.Warn("skipping zone climate", "zone_id", i, "error", err)
			continue
		}
		climates = append(climates, climate)
	}

	if err := h.AddEntities(ctx, hub.AddEntitiesOptions{
		Integration:     Domain,
		ConfigEntryID:   u.entryID,
		Platform:        hub.PlatformNumber,
		UpdateBeforeAdd: true,
	}, numbers...); err != nil {
		return err
	}
	return h.AddEntities(ctx, hub.AddEntitiesOptions{
		Integration:     Domain,
		ConfigEntryID:   u.entryID,
		Platform:        hub.PlatformClimate,
		UpdateBeforeAdd: true,
	}, climates...)
}

// unitByID finds a unit by MAC, host or config entry ID.
func (p *Plugin) unitByID(id string) (*unit, bool) {
	for _, u := range p.units {
		if u.matches(id) {
			return u, true
		}
	}
	return nil, false
}

// writeStates pushes the unit's current values into entity state.
func (p *Plugin) writeStates(u *unit) {
	if h := p.currentHub(); h != nil {
		h.WriteEntryStates(u.entryID)
	}
}
