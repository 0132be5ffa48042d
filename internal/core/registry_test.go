package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type stubPlugin struct {
	id            string
	dashboards    []Dashboard
	health        HealthStatus
	healthMessage string
}

func (s stubPlugin) ID() string { return s.id }

func (s stubPlugin) Manifest() Manifest {
	return Manifest{
		PluginID:    s.id,
		DisplayName: "Daikin AirBase",
		Version:     "0.2.0",
		Services:    []string{"gohome.plugins.daikin.v1.DaikinService"},
	}
}

func (s stubPlugin) AgentsMD() string                   { return "# " + s.id }
func (s stubPlugin) Dashboards() []Dashboard            { return s.dashboards }
func (s stubPlugin) RegisterGRPC(*grpc.Server)          {}
func (s stubPlugin) Collectors() []prometheus.Collector { return nil }
func (s stubPlugin) Health() HealthStatus               { return s.health }
func (s stubPlugin) HealthMessage() string              { return s.healthMessage }

func newStubPlugin(id string) stubPlugin {
	return stubPlugin{
		id:         id,
		health:     HealthHealthy,
		dashboards: []Dashboard{{Name: "airbase", JSON: []byte(`{"title":"AirBase"}`)}},
	}
}

func TestRegistryListPluginsReportsHealth(t *testing.T) {
	degraded := newStubPlugin("daikin")
	degraded.health = HealthDegraded
	degraded.healthMessage = "192.0.2.10: timeout"
	svc := NewRegistryService([]Plugin{degraded})

	resp, err := svc.ListPlugins(context.Background(), &ListPluginsRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Plugins, 1)

	got := resp.Plugins[0]
	assert.Equal(t, "daikin", got.PluginID)
	assert.Equal(t, "Daikin AirBase", got.DisplayName)
	assert.Equal(t, string(HealthDegraded), got.Status)
}

func TestRegistryDescribePlugin(t *testing.T) {
	svc := NewRegistryService([]Plugin{newStubPlugin("daikin")})

	resp, err := svc.DescribePlugin(context.Background(), &DescribePluginRequest{PluginID: "daikin"})
	require.NoError(t, err)
	require.NotNil(t, resp.Plugin)
	assert.Equal(t, "# daikin", resp.Plugin.AgentsMD)
	assert.Equal(t, []string{"gohome.plugins.daikin.v1.DaikinService"}, resp.Plugin.Services)
	require.Len(t, resp.Plugin.Dashboards, 1)
	assert.Equal(t, "/dashboards/daikin/airbase.json", resp.Plugin.Dashboards[0].Path)

	_, err = svc.DescribePlugin(context.Background(), &DescribePluginRequest{PluginID: "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestDashboardsMap(t *testing.T) {
	dashboards := DashboardsMap([]Plugin{newStubPlugin("daikin")})
	assert.Equal(t, `{"title":"AirBase"}`, string(dashboards["/dashboards/daikin/airbase.json"]))
}

func TestWriteDashboardsSkipsUnchangedFiles(t *testing.T) {
	dir := t.TempDir()
	plugins := []Plugin{newStubPlugin("daikin")}
	require.NoError(t, WriteDashboards(dir, plugins))

	path := filepath.Join(dir, "daikin", "airbase.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"title":"AirBase"}`, string(data))

	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, old, old))
	require.NoError(t, WriteDashboards(dir, plugins))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old), "unchanged dashboard was rewritten")

	require.NoError(t, WriteDashboards("", plugins))
}

func TestValidatePlugins(t *testing.T) {
	assert.NoError(t, ValidatePlugins([]Plugin{newStubPlugin("daikin")}))
	assert.Error(t, ValidatePlugins([]Plugin{newStubPlugin("daikin"), newStubPlugin("daikin")}))
	assert.Error(t, ValidatePlugins([]Plugin{newStubPlugin("Bad-ID")}))
}

func TestFilterPlugins(t *testing.T) {
	compiled := []Plugin{newStubPlugin("daikin"), newStubPlugin("extra")}

	active := FilterPlugins(compiled, map[string]bool{"daikin": true}, false)
	require.Len(t, active, 1)
	assert.Equal(t, "daikin", active[0].ID())

	assert.Len(t, FilterPlugins(compiled, map[string]bool{}, true), 2)
}

func TestValidateEnabledPlugins(t *testing.T) {
	compiled := []Plugin{newStubPlugin("daikin")}
	assert.NoError(t, ValidateEnabledPlugins(compiled, map[string]bool{"daikin": true}, false))
	assert.Error(t, ValidateEnabledPlugins(compiled, map[string]bool{"missing": true}, false))
	assert.NoError(t, ValidateEnabledPlugins(compiled, map[string]bool{"missing": true}, true))
}

func TestMetricsRegistryReportsPluginHealth(t *testing.T) {
	degraded := newStubPlugin("daikin")
	degraded.health = HealthDegraded

	registry := MetricsRegistry("1.2.3", []Plugin{degraded})
	families, err := registry.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			if gauge := metric.GetGauge(); gauge != nil {
				values[family.GetName()] = gauge.GetValue()
			}
		}
	}
	assert.Equal(t, 0.5, values["gohome_plugin_health"])
	assert.Equal(t, 1.0, values["gohome_build_info"])
}
