// Package extract defines the extraction strategy contract and the
// direct-HTTP strategy for jurisdictions whose tax portals render amounts
// server-side.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net"

	"taxharvest/models"
	"taxharvest/pkg/fetcher"
)

// ErrRequiresManual marks properties whose portals block automation
// (CAPTCHA, login walls, paid lookups). The orchestrator records these
// without retrying.
var ErrRequiresManual = errors.New("requires manual lookup")

// ErrNoAmount means the page was reachable and parsed but no plausible tax
// amount survived filtering.
var ErrNoAmount = errors.New("no plausible tax amount found")

// Strategy extracts tax data for one property under one jurisdiction
// configuration.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, rec models.PropertyRecord, cfg models.JurisdictionConfig) (*models.ExtractedFields, error)
}

// DiagnosedError carries debug artifact paths captured at failure time so
// the result row can point at them.
type DiagnosedError struct {
	Err            error
	ScreenshotPath string
	PagePath       string
}

func (e *DiagnosedError) Error() string { return e.Err.Error() }
func (e *DiagnosedError) Unwrap() error { return e.Err }

// TransientError wraps failures worth retrying: timeouts, dropped
// connections, flaky page loads.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable. Returns nil for a nil err.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether a retry of the same extraction could
// plausibly succeed. Context cancellation from the caller, unsupported
// jurisdictions, and manual-only portals are permanent; network hiccups,
// deadline expiry, and 5xx responses are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var se *fetcher.StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}

	if errors.Is(err, ErrRequiresManual) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return false
}
