package daikin

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/barneyonline/core/internal/hub"
	"github.com/barneyonline/core/internal/rate"
)

// minTimeBetweenUpdates throttles entity-driven refreshes.
const minTimeBetweenUpdates = 10 * time.Second

// unit is one configured adapter together with its config entry.
type unit struct {
	entryID     string
	cfg         UnitConfig
	client      *http.Client
	timeout     time.Duration
	logger      *slog.Logger
	coordinator *hub.Coordinator

	mu     sync.RWMutex
	device *AirBase
	added  bool
}

func newUnit(cfg UnitConfig, pluginCfg Config, decl rate.Declaration, logger *slog.Logger) *unit {
	u := &unit{
		entryID: hub.ConfigEntryID(Domain, cfg.Host),
		cfg:     cfg,
		client:  rate.WrapHTTP(decl, &http.Client{}),
		timeout: pluginCfg.RequestTimeout,
		logger:  logger.With("host", cfg.Host),
	}
	u.coordinator = hub.NewCoordinator("daikin "+cfg.Host, pluginCfg.PollInterval, u.update, u.logger)
	return u
}

// update connects on first use, then polls the adapter.
func (u *unit) update(ctx context.Context) error {
	if dev := u.Device(); dev != nil {
		return dev.Update(ctx)
	}

	dev, err := NewAirBase(u.cfg.Host,
		WithHTTPClient(u.client),
		WithTimeout(u.timeout),
		WithLogger(u.logger),
	)
	if err != nil {
		return err
	}
	if err := dev.Init(ctx); err != nil {
		return err
	}

	u.mu.Lock()
	u.device = dev
	u.mu.Unlock()
	u.logger.Info("connected to daikin unit", "mac", dev.MAC(), "name", dev.Name(), "zones", len(dev.Zones()))
	return nil
}

// Device returns the connected adapter, nil until it answered once.
func (u *unit) Device() *AirBase {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.device
}

func (u *unit) refresh(ctx context.Context) error {
	return u.coordinator.RequestRefresh(ctx, minTimeBetweenUpdates)
}

// Name prefers the configured name over the adapter's own.
func (u *unit) Name() string {
	if u.cfg.Name != "" {
		return u.cfg.Name
	}
	if dev := u.Device(); dev != nil && dev.Name() != "" {
		return dev.Name()
	}
	return u.cfg.Host
}

// markAdded reports whether entities still need adding and records that
// they now are.
func (u *unit) markAdded() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.added || u.device == nil {
		return false
	}
	u.added = true
	return true
}

func (u *unit) resetAdded() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.added = false
}

// matches reports whether id names this unit by MAC, host or entry ID.
func (u *unit) matches(id string) bool {
	if id == u.cfg.Host || id == u.entryID {
		return true
	}
	dev := u.Device()
	return dev != nil && dev.MAC() == id
}
