package plugins

import (
	"testing"

	"github.com/barneyonline/core/internal/config"
	"github.com/barneyonline/core/internal/logging"
)

func TestCompiledSkipsUnconfiguredPlugins(t *testing.T) {
	if got := Compiled(nil, logging.Discard()); got != nil {
		t.Fatalf("expected no plugins for nil config, got %d", len(got))
	}
	if got := Compiled(&config.Config{}, logging.Discard()); len(got) != 0 {
		t.Fatalf("expected no plugins without a daikin section, got %d", len(got))
	}
}

func TestCompiledBuildsDaikin(t *testing.T) {
	cfg := &config.Config{Daikin: &config.DaikinConfig{
		Units: []*config.DaikinUnitConfig{{Host: "192.168.1.20"}},
	}}
	got := Compiled(cfg, logging.Discard())
	if len(got) != 1 || got[0].ID() != "daikin" {
		t.Fatalf("expected the daikin plugin, got %v", got)
	}
	if len(Integrations(got)) != 1 {
		t.Fatalf("expected daikin to be a hub integration")
	}
}
