package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/grpc"

	"github.com/barneyonline/core/internal/core"
	"github.com/barneyonline/core/internal/rpc"
	"github.com/barneyonline/core/internal/schema"
)

func pluginsCmd(ctx context.Context, conn *grpc.ClientConn, args []string, out outputMode) {
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}
	switch args[0] {
	case "list":
		listPlugins(ctx, conn, out)
	case "describe":
		if len(args) < 2 {
			fatal("describe", fmt.Errorf("missing plugin id"))
		}
		describePlugin(ctx, conn, args[1], out)
	default:
		usage()
		os.Exit(2)
	}
}

func listPlugins(ctx context.Context, conn *grpc.ClientConn, out outputMode) {
	resp, err := rpc.Invoke[core.ListPluginsRequest, core.ListPluginsResponse](ctx, conn, schema.RegistryService, "ListPlugins", &core.ListPluginsRequest{})
	if err != nil {
		fatal("list plugins", err)
	}
	if out.json {
		out.printJSON(resp)
		return
	}
	rows := [][]string{{"ID", "NAME", "VERSION", "STATUS"}}
	for _, p := range resp.Plugins {
		rows = append(rows, []string{p.PluginID, p.DisplayName, p.Version, p.Status})
	}
	out.table(rows)
}

func describePlugin(ctx context.Context, conn *grpc.ClientConn, id string, out outputMode) {
	resp, err := rpc.Invoke[core.DescribePluginRequest, core.DescribePluginResponse](ctx, conn, schema.RegistryService, "DescribePlugin", &core.DescribePluginRequest{PluginID: id})
	if err != nil {
		fatal("describe plugin", err)
	}
	p := resp.Plugin
	if p == nil {
		fatal("describe plugin", fmt.Errorf("plugin %q not found", id))
	}
	if out.json {
		out.printJSON(p)
		return
	}

	status := p.Status
	if p.HealthMessage != "" {
		status += " (" + p.HealthMessage + ")"
	}
	dashboards := make([]string, 0, len(p.Dashboards))
	for _, d := range p.Dashboards {
		dashboards = append(dashboards, d.Path)
	}
	out.table([][]string{
		{"FIELD", "VALUE"},
		{"id", p.PluginID},
		{"name", p.DisplayName},
		{"version", p.Version},
		{"status", status},
		{"services", strings.Join(p.Services, ", ")},
		{"dashboards", strings.Join(dashboards, ", ")},
	})
	if p.AgentsMD != "" {
		fmt.Println()
		fmt.Println(strings.TrimSpace(p.AgentsMD))
	}
}
