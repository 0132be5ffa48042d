package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/peterbourgon/ff/v3"

	"github.com/barneyonline/core/internal/config"
	"github.com/barneyonline/core/internal/logging"
)

// validateMain checks a config file and the plugins it enables without
// starting anything.
func validateMain(args []string) int {
	fs := flag.NewFlagSet("gohome validate", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultPath, "path to config.pbtxt")
	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("GOHOME")); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		return 1
	}
	active, err := activePlugins(cfg, logging.Discard())
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		return 1
	}

	ids := make([]string, 0, len(active))
	for _, p := range active {
		ids = append(ids, p.ID())
	}
	sort.Strings(ids)
	fmt.Printf("config ok: %s\n", *configPath)
	for _, id := range ids {
		fmt.Printf("  plugin %s\n", id)
	}
	return 0
}
