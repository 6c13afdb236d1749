// Package browser drives headless-browser extraction for jurisdictions
// whose portals render through JavaScript or require multi-step search
// flows. Two backends implement the same Automator surface so per-county
// routines stay backend-agnostic.
package browser

import (
	"context"
	"time"

	"taxharvest/models"
)

// Automator is one live page session. Routines are written against this
// interface only; they never see playwright or rod types.
type Automator interface {
	// Navigate loads a URL and waits for the given load condition.
	Navigate(ctx context.Context, url string, wait models.WaitStrategy) error
	// Fill types value into the first element matching selector.
	Fill(ctx context.Context, selector, value string) error
	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error
	// Press sends a key (e.g. "Enter") to the element matching selector.
	Press(ctx context.Context, selector, key string) error
	// Texts returns the text of every matching element.
	Texts(ctx context.Context, selector string) []string
	// WaitVisible blocks until selector matches a visible element.
	WaitVisible(ctx context.Context, selector string) error
	// PageText returns the rendered text of the whole page.
	PageText(ctx context.Context) (string, error)
	// Content returns the page HTML.
	Content(ctx context.Context) (string, error)
	// URL returns the current page URL.
	URL() string
	// Title returns the current page title.
	Title() string
	// Screenshot captures the viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// Close releases the page.
	Close() error
}

// Backend owns one browser process and mints page sessions from it.
type Backend interface {
	Name() string
	// Start launches the browser. Safe to call once per run.
	Start(ctx context.Context) error
	// NewSession opens a fresh page.
	NewSession(ctx context.Context) (Automator, error)
	// Stop tears the browser down.
	Stop() error
}

// Options carries the launch and per-action tunables shared by backends.
type Options struct {
	Headless        bool
	UserAgent       string
	NavTimeout      time.Duration
	SelectorTimeout time.Duration
}

// OptionsFrom extracts backend options from the engine config.
func OptionsFrom(cfg models.Config) Options {
	return Options{
		Headless:        cfg.Headless,
		UserAgent:       cfg.UserAgent,
		NavTimeout:      cfg.NavTimeout,
		SelectorTimeout: cfg.SelectorTimeout,
	}
}
