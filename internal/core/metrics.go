package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// MetricsRegistry builds the process registry: runtime collectors, build
// info, one health gauge per plugin, plugin collectors and any extras.
func MetricsRegistry(version string, plugins []Plugin, extra ...prometheus.Collector) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gohome_build_info",
		Help: "Build information",
	}, []string{"version"})
	buildInfo.WithLabelValues(version).Set(1)
	registry.MustRegister(buildInfo)

	for _, plugin := range plugins {
		registry.MustRegister(pluginHealthGauge(plugin))
		registry.MustRegister(plugin.Collectors()...)
	}
	registry.MustRegister(extra...)
	return registry
}

// pluginHealthGauge reads 1 while the plugin is healthy, 0.5 degraded, 0 in error.
func pluginHealthGauge(plugin Plugin) prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "gohome_plugin_health",
		Help:        "Plugin health (1 healthy, 0.5 degraded, 0 error)",
		ConstLabels: prometheus.Labels{"plugin": plugin.ID()},
	}, func() float64 {
		switch plugin.Health() {
		case HealthHealthy:
			return 1
		case HealthDegraded:
			return 0.5
		default:
			return 0
		}
	})
}
