// Package commands holds the CLI actions. Each action builds its own
// logger and engine from flags so commands stay independently testable.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"taxharvest/models"
	"taxharvest/pkg/amount"
	"taxharvest/pkg/artifacts"
	"taxharvest/pkg/browser"
	"taxharvest/pkg/engine"
	"taxharvest/pkg/extract"
	"taxharvest/pkg/fetcher"
	"taxharvest/pkg/ratelimit"
	"taxharvest/pkg/registry"
)

func newLogger(c *cli.Context) *slog.Logger {
	logLevel := slog.LevelInfo
	if c.Bool("quiet") {
		logLevel = slog.LevelError
	}
	if c.Bool("verbose") {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// buildConfig merges defaults, the optional YAML file, and flag overrides.
func buildConfig(c *cli.Context) (models.Config, error) {
	cfg := models.DefaultConfig()
	if path := c.String("config"); path != "" {
		loaded, err := models.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("retries") {
		cfg.RetryCount = c.Int("retries")
	}
	if c.IsSet("headless") {
		cfg.Headless = c.Bool("headless")
	}
	if c.IsSet("artifact-dir") {
		cfg.ArtifactDir = c.String("artifact-dir")
	}
	return cfg, nil
}

// buildEngine assembles the full extraction stack. The returned stop func
// tears down any browsers that were started.
func buildEngine(cfg models.Config, logger *slog.Logger) (*engine.Engine, func(), error) {
	validator := amount.Validator{
		MinTax:   cfg.MinTaxAmount,
		MaxTax:   cfg.MaxTaxAmount,
		MinRatio: cfg.MinTaxRatio,
		MaxRatio: cfg.MaxTaxRatio,
	}

	limiter := ratelimit.New(cfg.RateInterval)
	f := fetcher.New(cfg.HTTPTimeout, limiter, cfg.UserAgent, logger)
	httpStrategy := extract.NewHTTP(f, validator, logger)

	store, err := artifacts.NewStore(cfg.ArtifactDir)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing artifact store: %w", err)
	}
	browserStrategy := browser.NewStrategy(browser.OptionsFrom(cfg), validator, store, logger)

	eng := engine.New(cfg, registry.New(), httpStrategy, browserStrategy, logger)
	return eng, browserStrategy.Stop, nil
}
