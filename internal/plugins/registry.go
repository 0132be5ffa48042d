// Package plugins holds the plugin factories compiled into this build.
package plugins

import (
	"log/slog"

	"github.com/barneyonline/core/internal/config"
	"github.com/barneyonline/core/internal/core"
)

// Factory builds a plugin instance from the loaded config. It reports false
// when the plugin is not configured.
type Factory func(*config.Config, *slog.Logger) (core.Plugin, bool)

var compiled []Factory

// Register adds a compiled-in plugin factory to the registry.
func Register(factory Factory) {
	compiled = append(compiled, factory)
}

// Compiled returns the configured plugin instances for this build.
func Compiled(cfg *config.Config, logger *slog.Logger) []core.Plugin {
	if cfg == nil {
		return nil
	}
	out := make([]core.Plugin, 0, len(compiled))
	for _, factory := range compiled {
		plugin, ok := factory(cfg, logger)
		if !ok {
			continue
		}
		out = append(out, plugin)
	}
	return out
}

// Integrations returns the plugins that plug into the hub.
func Integrations(plugins []core.Plugin) []core.Integration {
	var out []core.Integration
	for _, p := range plugins {
		if i, ok := p.(core.Integration); ok {
			out = append(out, i)
		}
	}
	return out
}
