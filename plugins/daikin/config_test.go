package daikin

import (
	"strings"
	"testing"
	"time"

	"github.com/barneyonline/core/internal/config"
)

func TestConfigFrom(t *testing.T) {
	cfg, err := ConfigFrom(&config.DaikinConfig{
		Units:               []*config.DaikinUnitConfig{{Host: " 192.168.1.20 ", Name: " Upstairs "}, nil},
		PollIntervalSeconds: 30,
	})
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if len(cfg.Units) != 1 || cfg.Units[0].Host != "192.168.1.20" || cfg.Units[0].Name != "Upstairs" {
		t.Fatalf("unexpected units %+v", cfg.Units)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Fatalf("unexpected poll interval %s", cfg.PollInterval)
	}
	if cfg.RequestTimeout != defaultRequestTimeout || cfg.MaxRequestsPerMinute != defaultMaxRequestsPerMinute {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestConfigFromErrors(t *testing.T) {
	cases := map[string]*config.DaikinConfig{
		"daikin config is required": nil,
		"daikin.units is empty":     {},
		"daikin.units[0].host":      {Units: []*config.DaikinUnitConfig{{Name: "x"}}},
	}
	for want, cfg := range cases {
		_, err := ConfigFrom(cfg)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q, got %v", want, err)
		}
	}
}
