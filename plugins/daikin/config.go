package daikin

import (
	"fmt"
	"strings"
	"time"

	"github.com/barneyonline/core/internal/config"
)

const (
	defaultPollInterval         = 60 * time.Second
	defaultMaxRequestsPerMinute = 120
	readCacheTTL                = 2 * time.Second
	// overloadCooldown must stay below defaultRetry.Delay.
	overloadCooldown = 500 * time.Millisecond
)

// Config defines runtime configuration for the AirBase integration.
type Config struct {
	Units                []UnitConfig
	PollInterval         time.Duration
	RequestTimeout       time.Duration
	MaxRequestsPerMinute int
}

// UnitConfig is one adapter on the local network.
type UnitConfig struct {
	Host string
	Name string
}

// ConfigFrom converts the loaded config section into runtime config.
func ConfigFrom(cfg *config.DaikinConfig) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("daikin config is required")
	}

	out := Config{
		PollInterval:         defaultPollInterval,
		RequestTimeout:       defaultRequestTimeout,
		MaxRequestsPerMinute: defaultMaxRequestsPerMinute,
	}
	if cfg.PollIntervalSeconds > 0 {
		out.PollInterval = time.Duration(cfg.PollIntervalSeconds) * time.Second
	}
	if cfg.RequestTimeoutSeconds > 0 {
		out.RequestTimeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	}
	if cfg.MaxRequestsPerMinute > 0 {
		out.MaxRequestsPerMinute = int(cfg.MaxRequestsPerMinute)
	}

	for i, unit := range cfg.Units {
		if unit == nil {
			continue
		}
		host := strings.TrimSpace(unit.Host)
		if host == "" {
			return Config{}, fmt.Errorf("daikin.units[%d].host is required", i)
		}
		out.Units = append(out.Units, UnitConfig{Host: host, Name: strings.TrimSpace(unit.Name)})
	}
	if len(out.Units) == 0 {
		return Config{}, fmt.Errorf("daikin.units is empty")
	}

	return out, nil
}
