package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fullstorydev/grpcurl"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/barneyonline/core/internal/config"
)

func main() {
	global := flag.NewFlagSet("gohome-cli", flag.ExitOnError)
	jsonOutput := global.Bool("json", false, "print JSON")
	addrFlag := global.String("addr", "", "gRPC address (default from GOHOME_GRPC_ADDR or config)")
	global.Usage = usage
	_ = global.Parse(os.Args[1:])
	args := global.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	addr := *addrFlag
	if addr == "" {
		addr = resolveAddr()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := grpcurl.BlockingDial(ctx, "tcp", addr, insecure.NewCredentials())
	if err != nil {
		fatal("dial", err)
	}
	defer conn.Close()

	out := outputMode{json: *jsonOutput}
	switch args[0] {
	case "plugins":
		pluginsCmd(ctx, conn, args[1:], out)
	case "services":
		servicesCmd(ctx, conn)
	case "methods":
		methodsCmd(ctx, conn, args[1:])
	case "call":
		callCmd(ctx, conn, args[1:])
	case "states":
		statesCmd(ctx, conn, args[1:], out)
	case "service":
		serviceCmd(ctx, conn, args[1:])
	case "devices":
		devicesCmd(ctx, conn, out)
	case "actions":
		actionsCmd(ctx, conn, args[1:], out)
	case "daikin":
		daikinCmd(ctx, conn, args[1:], out)
	default:
		usage()
		os.Exit(2)
	}
}

func resolveAddr() string {
	if value := os.Getenv("GOHOME_GRPC_ADDR"); value != "" {
		return value
	}
	for _, path := range configSearchPaths() {
		if addr := addrFromConfig(path); addr != "" {
			return addr
		}
	}
	return "gohome:9000"
}

func configSearchPaths() []string {
	paths := []string{config.DefaultPath}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".config", "gohome", "config.pbtxt"))
	}
	return paths
}

func addrFromConfig(path string) string {
	cfg, err := config.Load(path)
	if err != nil || cfg == nil || cfg.Core == nil {
		return ""
	}
	return cfg.Core.GRPCAddr
}

func usage() {
	fmt.Println("gohome-cli [--json] [--addr host:port] <command> [args]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  plugins list")
	fmt.Println("  plugins describe <plugin_id>")
	fmt.Println("  services")
	fmt.Println("  methods <service | alias>")
	fmt.Println("  call <alias.method | service/method> --data '{}' (or pipe JSON via stdin)")
	fmt.Println("  states [domain | entity_id]")
	fmt.Println("  service <domain>.<service> [key=value ...] [--data '{}'] [--no-wait]")
	fmt.Println("  devices")
	fmt.Println("  actions list <device_id>")
	fmt.Println("  actions call <device_id> --data '{...}'")
	fmt.Println("  daikin units")
	fmt.Println("  daikin zones [unit_id]")
	fmt.Println("  daikin set <zone> <temp> [--unit unit_id]")
	fmt.Println("  daikin power <zone> on|off [--unit unit_id]")
}

func fatal(action string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", action, err)
	os.Exit(1)
}
