// Package router installs the core and plugin gRPC services.
package router

import (
	"fmt"

	"google.golang.org/grpc"

	"github.com/barneyonline/core/internal/core"
	"github.com/barneyonline/core/internal/hub"
)

// RegisterPlugins registers the registry and hub services followed by every
// plugin's own services on the gRPC server.
func RegisterPlugins(server *grpc.Server, plugins []core.Plugin, h *hub.Hub) error {
	if err := core.NewRegistryService(plugins).Register(server); err != nil {
		return fmt.Errorf("register registry service: %w", err)
	}
	if h != nil {
		if err := core.NewHubService(h).Register(server); err != nil {
			return fmt.Errorf("register hub service: %w", err)
		}
	}

	for _, p := range plugins {
		p.RegisterGRPC(server)
	}
	return nil
}
