package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"taxharvest/models"
	"taxharvest/pkg/amount"
	"taxharvest/pkg/artifacts"
	"taxharvest/pkg/extract"
	"taxharvest/pkg/steps"
)

// Strategy implements browser-driven extraction. Backends start lazily on
// first use so an HTTP-only run never launches a browser.
type Strategy struct {
	backends  map[models.BrowserType]Backend
	validator amount.Validator
	store     *artifacts.Store
	logger    *slog.Logger

	mu      sync.Mutex
	started map[models.BrowserType]bool
}

// NewStrategy wires the browser strategy. store may be nil to disable
// failure artifacts.
func NewStrategy(opts Options, v amount.Validator, store *artifacts.Store, logger *slog.Logger) *Strategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Strategy{
		backends: map[models.BrowserType]Backend{
			models.BrowserPlaywright: NewPlaywright(opts, logger),
			models.BrowserRod:        NewRod(opts, logger),
		},
		validator: v,
		store:     store,
		logger:    logger,
		started:   make(map[models.BrowserType]bool),
	}
}

// NewStrategyWith injects backends directly. Used by tests.
func NewStrategyWith(backends map[models.BrowserType]Backend, v amount.Validator, store *artifacts.Store, logger *slog.Logger) *Strategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Strategy{
		backends:  backends,
		validator: v,
		store:     store,
		logger:    logger,
		started:   make(map[models.BrowserType]bool),
	}
}

func (s *Strategy) Name() string { return "browser" }

// Extract runs the jurisdiction's navigation routine in a fresh page
// session.
func (s *Strategy) Extract(ctx context.Context, rec models.PropertyRecord, cfg models.JurisdictionConfig) (*models.ExtractedFields, error) {
	routine, ok := RoutineFor(cfg.RoutineKey())
	if !ok {
		return nil, fmt.Errorf("no navigation routine for jurisdiction %s", cfg.Key)
	}

	insts, err := steps.Parse(rec.ExtractionSteps)
	if err != nil {
		// Property id goes after the first colon so the summary buckets
		// these together instead of one bucket per property.
		return nil, fmt.Errorf("unsupported extraction steps: property %s: %w", rec.PropertyID, err)
	}

	backend, err := s.backend(ctx, cfg.BrowserType)
	if err != nil {
		return nil, extract.Transient(err)
	}

	session, err := backend.NewSession(ctx)
	if err != nil {
		return nil, extract.Transient(err)
	}
	defer session.Close()

	req := RoutineRequest{
		Record:    rec,
		Config:    cfg,
		Steps:     insts,
		Validator: s.validator,
		Logger:    s.logger,
	}

	fields, err := routine(ctx, session, req)
	if err != nil {
		if errors.Is(err, ErrMissingInput) || errors.Is(err, extract.ErrRequiresManual) {
			return nil, err
		}
		return nil, s.diagnose(ctx, session, rec, extract.Transient(err))
	}

	if fields.Empty() {
		return nil, s.diagnose(ctx, session, rec, fmt.Errorf("%w at %s", extract.ErrNoAmount, session.URL()))
	}
	return fields, nil
}

// backend returns the backend for a browser type, starting it on first
// use. Unknown types fall back to playwright.
func (s *Strategy) backend(ctx context.Context, bt models.BrowserType) (Backend, error) {
	if _, ok := s.backends[bt]; !ok {
		bt = models.BrowserPlaywright
	}
	b := s.backends[bt]

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started[bt] {
		if err := b.Start(ctx); err != nil {
			return nil, fmt.Errorf("starting %s backend: %w", b.Name(), err)
		}
		s.started[bt] = true
	}
	return b, nil
}

// Stop tears down every backend that was started.
func (s *Strategy) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for bt, started := range s.started {
		if !started {
			continue
		}
		if err := s.backends[bt].Stop(); err != nil {
			s.logger.Warn("stopping browser backend", "backend", string(bt), "error", err)
		}
		s.started[bt] = false
	}
}

// diagnose captures a screenshot and page dump for a failed session and
// attaches the paths to the error.
func (s *Strategy) diagnose(ctx context.Context, session Automator, rec models.PropertyRecord, cause error) error {
	if s.store == nil {
		return cause
	}
	diag := &extract.DiagnosedError{Err: cause}

	if png, err := session.Screenshot(ctx); err == nil {
		if path, err := s.store.SaveScreenshot(rec.PropertyID, png); err == nil {
			diag.ScreenshotPath = path
		}
	}
	if html, err := session.Content(ctx); err == nil {
		if path, err := s.store.SavePage(rec.PropertyID, []byte(html)); err == nil {
			diag.PagePath = path
		}
	}

	if diag.ScreenshotPath == "" && diag.PagePath == "" {
		return cause
	}
	s.logger.Debug("saved failure artifacts",
		"property_id", rec.PropertyID,
		"screenshot", diag.ScreenshotPath,
		"page", diag.PagePath)
	return diag
}
