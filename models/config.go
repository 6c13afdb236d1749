package models

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the engine tunables. All values come from defaults, an
// optional YAML file, and CLI flag overrides, in that order.
type Config struct {
	// Workers caps simultaneous browser sessions per batch.
	Workers int
	// HTTPWorkers caps concurrent plain-HTTP extractions. HTTP-only
	// jurisdictions never wait behind browser allocation.
	HTTPWorkers int
	// RetryCount is the number of attempts per record for transient
	// failures.
	RetryCount int

	HTTPTimeout     time.Duration
	NavTimeout      time.Duration
	SelectorTimeout time.Duration
	// RateInterval is the minimum spacing between network requests from
	// one extractor instance.
	RateInterval time.Duration
	// BatchPause separates consecutive browser batches.
	BatchPause time.Duration

	// Plausibility bounds for tax amounts. Empirically chosen defaults,
	// not tax law; tune per portfolio.
	MinTaxAmount float64
	MaxTaxAmount float64
	MinTaxRatio  float64
	MaxTaxRatio  float64

	Headless    bool
	UserAgent   string
	ArtifactDir string
}

// DefaultUserAgent is a realistic desktop UA; several county sites serve
// degraded or blocked pages to obvious non-browser clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return Config{
		Workers:         3,
		HTTPWorkers:     4,
		RetryCount:      3,
		HTTPTimeout:     30 * time.Second,
		NavTimeout:      30 * time.Second,
		SelectorTimeout: 10 * time.Second,
		RateInterval:    2 * time.Second,
		BatchPause:      2 * time.Second,
		MinTaxAmount:    100,
		MaxTaxAmount:    100_000,
		MinTaxRatio:     0.001,
		MaxTaxRatio:     0.05,
		Headless:        true,
		UserAgent:       DefaultUserAgent,
		ArtifactDir:     "th-artifacts",
	}
}

// fileConfig mirrors Config for YAML with durations as strings ("30s").
type fileConfig struct {
	Workers         *int     `yaml:"workers"`
	HTTPWorkers     *int     `yaml:"http_workers"`
	RetryCount      *int     `yaml:"retry_count"`
	HTTPTimeout     string   `yaml:"http_timeout"`
	NavTimeout      string   `yaml:"nav_timeout"`
	SelectorTimeout string   `yaml:"selector_timeout"`
	RateInterval    string   `yaml:"rate_interval"`
	BatchPause      string   `yaml:"batch_pause"`
	MinTaxAmount    *float64 `yaml:"min_tax_amount"`
	MaxTaxAmount    *float64 `yaml:"max_tax_amount"`
	MinTaxRatio     *float64 `yaml:"min_tax_ratio"`
	MaxTaxRatio     *float64 `yaml:"max_tax_ratio"`
	Headless        *bool    `yaml:"headless"`
	UserAgent       string   `yaml:"user_agent"`
	ArtifactDir     string   `yaml:"artifact_dir"`
}

// LoadConfig reads a YAML config file and merges it over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if fc.Workers != nil {
		cfg.Workers = *fc.Workers
	}
	if fc.HTTPWorkers != nil {
		cfg.HTTPWorkers = *fc.HTTPWorkers
	}
	if fc.RetryCount != nil {
		cfg.RetryCount = *fc.RetryCount
	}
	if fc.MinTaxAmount != nil {
		cfg.MinTaxAmount = *fc.MinTaxAmount
	}
	if fc.MaxTaxAmount != nil {
		cfg.MaxTaxAmount = *fc.MaxTaxAmount
	}
	if fc.MinTaxRatio != nil {
		cfg.MinTaxRatio = *fc.MinTaxRatio
	}
	if fc.MaxTaxRatio != nil {
		cfg.MaxTaxRatio = *fc.MaxTaxRatio
	}
	if fc.Headless != nil {
		cfg.Headless = *fc.Headless
	}
	if fc.UserAgent != "" {
		cfg.UserAgent = fc.UserAgent
	}
	if fc.ArtifactDir != "" {
		cfg.ArtifactDir = fc.ArtifactDir
	}

	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{fc.HTTPTimeout, &cfg.HTTPTimeout},
		{fc.NavTimeout, &cfg.NavTimeout},
		{fc.SelectorTimeout, &cfg.SelectorTimeout},
		{fc.RateInterval, &cfg.RateInterval},
		{fc.BatchPause, &cfg.BatchPause},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return cfg, fmt.Errorf("invalid duration %q in config: %w", d.raw, err)
		}
		*d.dst = parsed
	}

	return cfg, nil
}
