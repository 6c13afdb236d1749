package models

// Method selects how a jurisdiction's tax pages are reached.
type Method string

const (
	MethodHTTP    Method = "http"
	MethodBrowser Method = "browser"
)

// BrowserType selects which automation backend drives a browser jurisdiction.
type BrowserType string

const (
	BrowserPlaywright BrowserType = "playwright"
	BrowserRod        BrowserType = "rod"
)

// Confidence records how reliable a jurisdiction's extraction routine has
// proven in practice. Advisory only; it does not change control flow.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// WaitStrategy is the page-load condition a browser routine waits for.
// Some county sites poll forever and never reach network idle, so the
// strategy is configured per jurisdiction rather than globally.
type WaitStrategy string

const (
	WaitNetworkIdle      WaitStrategy = "networkidle"
	WaitDOMContentLoaded WaitStrategy = "domcontentloaded"
	WaitLoad             WaitStrategy = "load"
)

// JurisdictionConfig is one static registry entry: how to recognize a
// jurisdiction and which extraction machinery it needs.
type JurisdictionConfig struct {
	// Key is the case-insensitive substring matched against the record's
	// jurisdiction name, and the lookup key for label sets and routines.
	Key string
	// Name is the human-readable jurisdiction name.
	Name string
	// Method chooses between plain HTTP parsing and browser automation.
	Method Method
	// Confidence is the observed reliability of this entry.
	Confidence Confidence
	// URLPattern is a domain substring used as a fallback match when the
	// jurisdiction name itself is unrecognized.
	URLPattern string
	// BrowserType picks the automation backend for browser jurisdictions.
	BrowserType BrowserType
	// Wait overrides the page-load wait condition. Empty means the
	// routine's default.
	Wait WaitStrategy
	// Routine names the navigation routine to run for browser
	// jurisdictions. Empty means Key; several counties share a routine
	// (e.g. Vance and Beaufort reuse the Wayne portal flow).
	Routine string
}

// RoutineKey returns the navigation routine name for this entry.
func (c JurisdictionConfig) RoutineKey() string {
	if c.Routine != "" {
		return c.Routine
	}
	return c.Key
}
