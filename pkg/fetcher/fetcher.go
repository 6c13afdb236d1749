// Package fetcher wraps the HTTP client used for direct-request
// jurisdictions. It applies the shared rate limiter, browser-like headers,
// and surfaces non-200 responses as typed errors so callers can tell a
// transient 503 from a permanent 404.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"taxharvest/pkg/ratelimit"
)

// StatusError reports a non-200 HTTP response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s %s", e.Code, http.StatusText(e.Code), e.URL)
}

// Transient reports whether retrying the same request could plausibly
// succeed. Rate limiting and server-side failures qualify; client errors
// do not.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Fetcher issues rate-limited GET requests with a consistent identity.
type Fetcher struct {
	client    *http.Client
	limiter   *ratelimit.Limiter
	userAgent string
	logger    *slog.Logger
}

// New builds a Fetcher. A nil limiter disables request spacing; a nil
// logger falls back to slog.Default().
func New(timeout time.Duration, limiter *ratelimit.Limiter, userAgent string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		limiter:   limiter,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Get fetches a URL and returns the body along with the final URL after
// redirects. Non-200 responses return a *StatusError.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, finalURL, &StatusError{Code: resp.StatusCode, URL: finalURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, finalURL, fmt.Errorf("reading body from %s: %w", finalURL, err)
	}

	f.logger.Debug("fetched page",
		"url", rawURL,
		"final_url", finalURL,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds())

	return body, finalURL, nil
}

// GetDocument fetches a URL and parses it as HTML.
func (f *Fetcher) GetDocument(ctx context.Context, rawURL string) (*goquery.Document, string, error) {
	body, finalURL, err := f.Get(ctx, rawURL)
	if err != nil {
		return nil, finalURL, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, finalURL, fmt.Errorf("parsing html from %s: %w", finalURL, err)
	}
	return doc, finalURL, nil
}
