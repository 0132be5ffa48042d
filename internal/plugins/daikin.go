//go:build !gohome_no_daikin

package plugins

import (
	"log/slog"

	"github.com/barneyonline/core/internal/config"
	"github.com/barneyonline/core/internal/core"
	"github.com/barneyonline/core/plugins/daikin"
)

func init() {
	Register(func(cfg *config.Config, logger *slog.Logger) (core.Plugin, bool) {
		p, ok := daikin.NewPlugin(cfg.Daikin, logger)
		if !ok {
			return nil, false
		}
		return p, true
	})
}
