package server

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/barneyonline/core/internal/core"
)

// HealthHandler answers liveness probes.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type pluginHealth struct {
	PluginID string `json:"plugin_id"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

// PluginHealthHandler answers 503 while any plugin reports an error.
func PluginHealthHandler(plugins []core.Plugin) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		code := http.StatusOK
		report := make([]pluginHealth, 0, len(plugins))
		for _, p := range plugins {
			health := p.Health()
			if health == core.HealthError {
				code = http.StatusServiceUnavailable
			}
			report = append(report, pluginHealth{PluginID: p.ID(), Status: string(health), Message: p.HealthMessage()})
		}
		writeJSON(w, code, report)
	})
}

func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// DashboardsHandler serves dashboards keyed by URL path. The bare prefix
// lists the available paths.
func DashboardsHandler(prefix string, dashboards map[string][]byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == prefix {
			paths := make([]string, 0, len(dashboards))
			for path := range dashboards {
				paths = append(paths, path)
			}
			sort.Strings(paths)
			writeJSON(w, http.StatusOK, paths)
			return
		}
		data, ok := dashboards[r.URL.Path]
		if !ok {
			writeJSON(w, http.StatusNotFound, apiError{Message: "Dashboard not found."})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}
