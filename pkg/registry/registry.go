// Package registry maps jurisdiction names and tax-site domains to the
// extraction configuration each one needs. The table is static: adding a
// jurisdiction means adding an entry here plus, for browser jurisdictions, a
// navigation routine — orchestration code never changes.
package registry

import (
	"net/url"
	"strings"

	"taxharvest/models"
)

// Registry resolves property records to jurisdiction configurations.
type Registry struct {
	entries []models.JurisdictionConfig
}

// New returns a registry seeded with the known-good jurisdictions.
func New() *Registry {
	return &Registry{entries: defaultEntries()}
}

// NewWith returns a registry over a custom table. Used by tests and by
// callers that maintain their own jurisdiction lists.
func NewWith(entries []models.JurisdictionConfig) *Registry {
	return &Registry{entries: entries}
}

// Entries returns a copy of the table.
func (r *Registry) Entries() []models.JurisdictionConfig {
	out := make([]models.JurisdictionConfig, len(r.entries))
	copy(out, r.entries)
	return out
}

// Resolve finds the configuration for a record. It first matches the entry
// key as a case-insensitive substring of the jurisdiction name, then falls
// back to matching each entry's URL pattern against the link's host. Returns
// nil when neither matches; it never errors.
func (r *Registry) Resolve(jurisdiction, link string) *models.JurisdictionConfig {
	name := strings.ToLower(jurisdiction)
	if name != "" {
		for i := range r.entries {
			if strings.Contains(name, strings.ToLower(r.entries[i].Key)) {
				cfg := r.entries[i]
				return &cfg
			}
		}
	}

	host := hostOf(link)
	if host == "" {
		return nil
	}
	for i := range r.entries {
		pattern := r.entries[i].URLPattern
		if pattern != "" && strings.Contains(host, pattern) {
			cfg := r.entries[i]
			return &cfg
		}
	}
	return nil
}

func hostOf(link string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		// Tolerate bare "host/path" links from hand-filled sheets.
		return strings.ToLower(strings.SplitN(link, "/", 2)[0])
	}
	return strings.ToLower(u.Host)
}

func defaultEntries() []models.JurisdictionConfig {
	return []models.JurisdictionConfig{
		// HTTP-only jurisdictions: plain GET plus HTML parsing works.
		{
			Key: "montgomery", Name: "Montgomery County, TX",
			Method: models.MethodHTTP, Confidence: models.ConfidenceHigh,
			URLPattern: "actweb.acttax.com",
		},
		{
			Key: "fort bend", Name: "Fort Bend County, TX",
			Method: models.MethodHTTP, Confidence: models.ConfidenceHigh,
			URLPattern: "fortbendcountytx.gov",
		},
		{
			Key: "chambers", Name: "Chambers County, TX",
			Method: models.MethodHTTP, Confidence: models.ConfidenceMedium,
			URLPattern: "co.chambers.tx.us",
		},
		{
			Key: "galveston", Name: "Galveston County, TX",
			Method: models.MethodHTTP, Confidence: models.ConfidenceMedium,
			URLPattern: "galvestoncountytx.gov",
		},
		{
			Key: "aldine", Name: "Aldine ISD, TX",
			Method: models.MethodHTTP, Confidence: models.ConfidenceHigh,
			URLPattern: "tax.aldine.k12.tx.us",
		},
		{
			Key: "goose creek", Name: "Goose Creek ISD, TX",
			Method: models.MethodHTTP, Confidence: models.ConfidenceHigh,
			URLPattern: "tax.gccisd.net",
		},

		// Browser jurisdictions: JavaScript-heavy portals or multi-step
		// search flows.
		{
			Key: "maricopa", Name: "Maricopa County, AZ",
			Method: models.MethodBrowser, Confidence: models.ConfidenceHigh,
			URLPattern: "treasurer.maricopa.gov", BrowserType: models.BrowserPlaywright,
			Wait: models.WaitNetworkIdle,
		},
		{
			Key: "harris", Name: "Harris County, TX",
			Method: models.MethodBrowser, Confidence: models.ConfidenceHigh,
			URLPattern: "hctax.net", BrowserType: models.BrowserPlaywright,
			Wait: models.WaitNetworkIdle,
		},
		{
			Key: "wayne", Name: "Wayne County, NC",
			Method: models.MethodBrowser, Confidence: models.ConfidenceMedium,
			URLPattern: "waynegov.com", BrowserType: models.BrowserRod,
			// The Wayne portal keeps a polling script alive; network
			// idle never fires.
			Wait: models.WaitDOMContentLoaded,
		},
		{
			Key: "johnston", Name: "Johnston County, NC",
			Method: models.MethodBrowser, Confidence: models.ConfidenceMedium,
			URLPattern: "johnstonnc.com", BrowserType: models.BrowserRod,
			Wait: models.WaitDOMContentLoaded,
		},
		{
			Key: "craven", Name: "Craven County, NC",
			Method: models.MethodBrowser, Confidence: models.ConfidenceMedium,
			URLPattern: "bttaxpayerportal.com", BrowserType: models.BrowserRod,
			Wait: models.WaitDOMContentLoaded,
		},
		{
			Key: "wilson", Name: "Wilson County, NC",
			Method: models.MethodBrowser, Confidence: models.ConfidenceMedium,
			URLPattern: "wilsonnc.devnetwedge.com", BrowserType: models.BrowserRod,
			Wait: models.WaitDOMContentLoaded,
		},
		{
			Key: "orleans", Name: "Orleans Parish, LA",
			Method: models.MethodBrowser, Confidence: models.ConfidenceMedium,
			URLPattern: "nola.gov", BrowserType: models.BrowserPlaywright,
			Wait: models.WaitNetworkIdle, Routine: "generic",
		},
		{
			Key: "miami", Name: "Miami-Dade County, FL",
			Method: models.MethodBrowser, Confidence: models.ConfidenceMedium,
			URLPattern: "miamidade.gov", BrowserType: models.BrowserPlaywright,
			Wait: models.WaitNetworkIdle, Routine: "generic",
		},

		// Counties whose portals mirror another county's flow.
		{
			Key: "vance", Name: "Vance County, NC",
			Method: models.MethodBrowser, Confidence: models.ConfidenceLow,
			BrowserType: models.BrowserRod,
			Wait:        models.WaitDOMContentLoaded, Routine: "wayne",
		},
		{
			Key: "beaufort", Name: "Beaufort County, NC",
			Method: models.MethodBrowser, Confidence: models.ConfidenceLow,
			URLPattern: "bcpwa.ncptscloud.com", BrowserType: models.BrowserRod,
			Wait: models.WaitDOMContentLoaded, Routine: "wayne",
		},
		{
			Key: "moore", Name: "Moore County, NC",
			Method: models.MethodBrowser, Confidence: models.ConfidenceLow,
			URLPattern: "selfservice.moorecountync.gov", BrowserType: models.BrowserRod,
			Wait: models.WaitDOMContentLoaded, Routine: "generic",
		},
	}
}
