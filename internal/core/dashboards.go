package core

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// DashboardsMap keys every plugin dashboard by its HTTP path.
func DashboardsMap(plugins []Plugin) map[string][]byte {
	result := make(map[string][]byte)
	for _, plugin := range plugins {
		id := plugin.Manifest().PluginID
		for _, dash := range plugin.Dashboards() {
			result[dashboardPath(id, dash.Name)] = dash.JSON
		}
	}
	return result
}

// WriteDashboards writes <dir>/<plugin>/<name>.json for Grafana file
// provisioning. Files whose content is unchanged are left alone so Grafana
// does not reload them.
func WriteDashboards(dir string, plugins []Plugin) error {
	if dir == "" {
		return nil
	}

	for _, plugin := range plugins {
		pluginDir := filepath.Join(dir, plugin.Manifest().PluginID)
		for _, dash := range plugin.Dashboards() {
			if err := os.MkdirAll(pluginDir, 0o755); err != nil {
				return fmt.Errorf("create dashboard dir: %w", err)
			}
			path := filepath.Join(pluginDir, dash.Name+".json")
			if current, err := os.ReadFile(path); err == nil && bytes.Equal(current, dash.JSON) {
				continue
			}
			tmp := path + ".tmp"
			if err := os.WriteFile(tmp, dash.JSON, 0o644); err != nil {
				return fmt.Errorf("write dashboard %s: %w", path, err)
			}
			if err := os.Rename(tmp, path); err != nil {
				return fmt.Errorf("replace dashboard %s: %w", path, err)
			}
		}
	}
	return nil
}
