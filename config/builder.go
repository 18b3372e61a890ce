package config

import (
	"github.com/jpalmerr/pageblocks"
)

// BuildOptions converts parsed configuration into renderer options.
//
// Zero values are left out so the renderer defaults apply.
func BuildOptions(cfg *Config) []pageblocks.Option {
	opts := []pageblocks.Option{
		pageblocks.WithOrigin(cfg.Origin),
		pageblocks.WithPort(cfg.Port),
		pageblocks.WithTimeout(cfg.Timeout.Duration()),
	}

	if cfg.Title != "" {
		opts = append(opts, pageblocks.WithTitle(cfg.Title))
	}
	if cfg.PublicURL != "" {
		opts = append(opts, pageblocks.WithPublicURL(cfg.PublicURL))
	}
	if len(cfg.ProductionDomains) > 0 {
		opts = append(opts, pageblocks.WithProductionDomains(cfg.ProductionDomains...))
	}
	if cfg.CodeBase != "" {
		opts = append(opts, pageblocks.WithCodeBase(cfg.CodeBase))
	}
	if cfg.Libs.Base != "" || cfg.Libs.List != "" {
		opts = append(opts, pageblocks.WithLibs(cfg.Libs.Base, cfg.Libs.List))
	}
	if cfg.RUM != (RUMConfig{}) {
		opts = append(opts, pageblocks.WithRUM(cfg.RUM.Collector, cfg.RUM.Generation, cfg.RUM.Weight))
	}
	if cfg.Delayed.Script != "" || cfg.Delayed.Delay != 0 {
		opts = append(opts, pageblocks.WithDelayed(cfg.Delayed.Script, cfg.Delayed.Delay.Duration()))
	}
	if len(cfg.LCPBlocks) > 0 {
		opts = append(opts, pageblocks.WithLCPBlocks(cfg.LCPBlocks...))
	}
	if len(cfg.SplitBlocks) > 0 {
		opts = append(opts, pageblocks.WithSplitBlocks(cfg.SplitBlocks...))
	}
	if len(cfg.Warm.Pages) > 0 {
		opts = append(opts, pageblocks.WithWarmPages(cfg.Warm.Interval.Duration(), cfg.Warm.Concurrency, cfg.Warm.Pages...))
	}

	return opts
}
