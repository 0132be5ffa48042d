package core

import (
	context "context"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/barneyonline/core/internal/rpc"
	"github.com/barneyonline/core/internal/schema"
)

type ListPluginsRequest struct{}

type ListPluginsResponse struct {
	Plugins []PluginSummary `json:"plugins,omitempty"`
}

type PluginSummary struct {
	PluginID    string `json:"plugin_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Version     string `json:"version,omitempty"`
	Status      string `json:"status,omitempty"`
}

type DescribePluginRequest struct {
	PluginID string `json:"plugin_id,omitempty"`
}

type DescribePluginResponse struct {
	Plugin *PluginDescriptor `json:"plugin,omitempty"`
}

type PluginDescriptor struct {
	PluginID      string          `json:"plugin_id,omitempty"`
	DisplayName   string          `json:"display_name,omitempty"`
	Version       string          `json:"version,omitempty"`
	Services      []string        `json:"services,omitempty"`
	AgentsMD      string          `json:"agents_md,omitempty"`
	Dashboards    []DashboardLink `json:"dashboards,omitempty"`
	Status        string          `json:"status,omitempty"`
	HealthMessage string          `json:"health_message,omitempty"`
}

type DashboardLink struct {
	Name string `json:"name,omitempty"`
	Path string `json:"path,omitempty"`
}

// RegistryService provides plugin discovery to clients.
type RegistryService struct {
	plugins []Plugin
	mu      sync.RWMutex
}

func NewRegistryService(plugins []Plugin) *RegistryService {
	return &RegistryService{plugins: plugins}
}

// Register installs the registry on server.
func (r *RegistryService) Register(server *grpc.Server) error {
	return rpc.Register(server, schema.RegistryService, r,
		rpc.Unary("ListPlugins", r.ListPlugins),
		rpc.Unary("DescribePlugin", r.DescribePlugin),
	)
}

func (r *RegistryService) ListPlugins(ctx context.Context, _ *ListPluginsRequest) (*ListPluginsResponse, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	resp := &ListPluginsResponse{}
	for _, p := range r.plugins {
		manifest := p.Manifest()
		resp.Plugins = append(resp.Plugins, PluginSummary{
			PluginID:    manifest.PluginID,
			DisplayName: manifest.DisplayName,
			Version:     manifest.Version,
			Status:      string(p.Health()),
		})
	}

	return resp, nil
}

func (r *RegistryService) DescribePlugin(ctx context.Context, req *DescribePluginRequest) (*DescribePluginResponse, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		manifest := p.Manifest()
		if manifest.PluginID != req.PluginID {
			continue
		}

		descriptor := &PluginDescriptor{
			PluginID:      manifest.PluginID,
			DisplayName:   manifest.DisplayName,
			Version:       manifest.Version,
			Services:      manifest.Services,
			AgentsMD:      p.AgentsMD(),
			Status:        string(p.Health()),
			HealthMessage: p.HealthMessage(),
		}

		for _, d := range p.Dashboards() {
			descriptor.Dashboards = append(descriptor.Dashboards, DashboardLink{
				Name: d.Name,
				Path: dashboardPath(manifest.PluginID, d.Name),
			})
		}

		return &DescribePluginResponse{Plugin: descriptor}, nil
	}

	return nil, status.Errorf(codes.NotFound, "plugin %q not found", req.PluginID)
}

func dashboardPath(pluginID, name string) string {
	return "/dashboards/" + pluginID + "/" + name + ".json"
}
