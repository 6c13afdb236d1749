// Package engine orchestrates extraction runs: it resolves each property
// record to a jurisdiction, picks the right strategy, retries transient
// failures with backoff, and aggregates batch results.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"taxharvest/models"
	"taxharvest/pkg/extract"
	"taxharvest/pkg/fetcher"
	"taxharvest/pkg/registry"
)

// Engine runs extractions over a jurisdiction registry and two strategies.
type Engine struct {
	cfg      models.Config
	registry *registry.Registry
	http     extract.Strategy
	browser  extract.Strategy
	logger   *slog.Logger

	// backoff returns the pause before retry n (1-based). Injectable so
	// tests do not sleep for real.
	backoff func(attempt int) time.Duration
	// progress, when set, observes every finished result.
	progress func(models.ExtractionResult)
}

// New wires an engine. Either strategy may be nil; records routed to a nil
// strategy fail with a clear error instead of panicking.
func New(cfg models.Config, reg *registry.Registry, httpStrategy, browserStrategy extract.Strategy, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		registry: reg,
		http:     httpStrategy,
		browser:  browserStrategy,
		logger:   logger,
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<attempt) * time.Second
		},
	}
}

// SetBackoff overrides the retry pause schedule.
func (e *Engine) SetBackoff(f func(attempt int) time.Duration) { e.backoff = f }

// SetProgress registers a per-result observer. Called from worker
// goroutines; the callback must be safe for concurrent use.
func (e *Engine) SetProgress(f func(models.ExtractionResult)) { e.progress = f }

// ExtractOne processes a single record end to end.
func (e *Engine) ExtractOne(ctx context.Context, rec models.PropertyRecord) models.ExtractionResult {
	res := e.extractOne(ctx, rec)
	if e.progress != nil {
		e.progress(res)
	}
	return res
}

func (e *Engine) extractOne(ctx context.Context, rec models.PropertyRecord) models.ExtractionResult {
	start := time.Now()
	res := models.ExtractionResult{
		PropertyID:   rec.PropertyID,
		PropertyName: rec.PropertyName,
		Jurisdiction: rec.Jurisdiction,
		Status:       models.StatusPending,
		Timestamp:    start,
	}
	defer func() { res.Duration = time.Since(start) }()

	if rec.Skippable() {
		res.Status = models.StatusSkipped
		res.Notes = "entity-level record, nothing to extract"
		return res
	}

	cfg := e.registry.Resolve(rec.Jurisdiction, rec.TaxBillLink)
	if cfg == nil {
		res.Status = models.StatusUnsupported
		res.Error = fmt.Sprintf("Unsupported jurisdiction: %s", rec.Jurisdiction)
		return res
	}
	res.Jurisdiction = cfg.Name

	strat := e.strategyFor(cfg.Method)
	if strat == nil {
		res.Status = models.StatusFailed
		res.Error = fmt.Sprintf("Unavailable: no %s strategy configured", cfg.Method)
		return res
	}
	res.Method = methodLabel(strat, *cfg)

	retries := e.cfg.RetryCount
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		res.Attempts = attempt

		attemptCtx, cancel := context.WithTimeout(ctx, e.attemptBudget(cfg.Method))
		fields, err := strat.Extract(attemptCtx, rec, *cfg)
		cancel()

		if err == nil {
			res.Fields = fields
			if fields.TaxAmount != nil {
				res.Status = models.StatusSuccess
			} else {
				res.Status = models.StatusPartial
				res.Notes = "page reached but no amount passed validation"
			}
			e.logger.Info("extracted property",
				"property_id", rec.PropertyID,
				"jurisdiction", cfg.Key,
				"status", string(res.Status),
				"attempts", attempt)
			return res
		}
		lastErr = err

		var diag *extract.DiagnosedError
		if errors.As(err, &diag) {
			res.ScreenshotPath = diag.ScreenshotPath
		}

		if errors.Is(err, extract.ErrRequiresManual) {
			res.Status = models.StatusRequiresManual
			res.Error = errorLabel(err)
			return res
		}
		if ctx.Err() != nil {
			break
		}
		if !extract.IsTransient(err) {
			break
		}
		if attempt < retries {
			e.logger.Warn("retrying after transient failure",
				"property_id", rec.PropertyID,
				"jurisdiction", cfg.Key,
				"attempt", attempt,
				"error", err)
			if !sleepCtx(ctx, e.backoff(attempt)) {
				break
			}
		}
	}

	res.Status = models.StatusFailed
	res.Error = errorLabel(lastErr)
	e.logger.Error("extraction failed",
		"property_id", rec.PropertyID,
		"jurisdiction", cfg.Key,
		"attempts", res.Attempts,
		"error", lastErr)
	return res
}

func (e *Engine) strategyFor(m models.Method) extract.Strategy {
	if m == models.MethodBrowser {
		return e.browser
	}
	return e.http
}

// attemptBudget is the wall-clock ceiling for one attempt.
func (e *Engine) attemptBudget(m models.Method) time.Duration {
	if m == models.MethodBrowser {
		return e.cfg.NavTimeout + 4*e.cfg.SelectorTimeout
	}
	return e.cfg.HTTPTimeout + e.cfg.RateInterval
}

func methodLabel(s extract.Strategy, cfg models.JurisdictionConfig) string {
	if cfg.Method == models.MethodBrowser && cfg.BrowserType != "" {
		return string(cfg.BrowserType)
	}
	return s.Name()
}

// errorLabel normalizes error text so the summary's breakdown buckets stay
// coarse: the text before the first colon becomes the bucket.
func errorLabel(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("Timeout: %v", err)
	case errors.Is(err, extract.ErrNoAmount):
		return fmt.Sprintf("No amount: %v", err)
	case errors.Is(err, extract.ErrRequiresManual):
		return fmt.Sprintf("Requires manual: %v", err)
	}
	var se *fetcher.StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("HTTP %d: %v", se.Code, err)
	}
	return err.Error()
}

// sleepCtx pauses for d unless the context ends first. Reports whether the
// full pause elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// ExtractBatch processes records concurrently: HTTP records through a
// worker pool, browser records in bounded batches with a pause between
// them. Results come back in input order.
func (e *Engine) ExtractBatch(ctx context.Context, records []models.PropertyRecord) ([]models.ExtractionResult, models.Summary) {
	summary := models.Summary{StartedAt: time.Now()}

	type indexed struct {
		idx int
		rec models.PropertyRecord
	}
	var httpJobs, browserJobs []indexed
	results := make([]models.ExtractionResult, len(records))

	for i, rec := range records {
		cfg := e.registry.Resolve(rec.Jurisdiction, rec.TaxBillLink)
		switch {
		case rec.Skippable() || cfg == nil:
			// Cheap terminal outcomes, handled inline.
			results[i] = e.ExtractOne(ctx, rec)
		case cfg.Method == models.MethodBrowser:
			browserJobs = append(browserJobs, indexed{i, rec})
		default:
			httpJobs = append(httpJobs, indexed{i, rec})
		}
	}

	// HTTP pool. The shared rate limiter inside the fetcher spaces actual
	// requests; the pool just bounds goroutines.
	if len(httpJobs) > 0 {
		workers := e.cfg.HTTPWorkers
		if workers < 1 {
			workers = 1
		}
		jobs := make(chan indexed)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for job := range jobs {
					results[job.idx] = e.ExtractOne(ctx, job.rec)
				}
			}()
		}
		for _, job := range httpJobs {
			jobs <- job
		}
		close(jobs)
		wg.Wait()
	}

	// Browser batches: at most Workers concurrent sessions, BatchPause
	// between batches so county sites see breathing room.
	batchSize := e.cfg.Workers
	if batchSize < 1 {
		batchSize = 1
	}
	for start := 0; start < len(browserJobs); start += batchSize {
		end := start + batchSize
		if end > len(browserJobs) {
			end = len(browserJobs)
		}

		var wg sync.WaitGroup
		for _, job := range browserJobs[start:end] {
			wg.Add(1)
			go func(job indexed) {
				defer wg.Done()
				results[job.idx] = e.ExtractOne(ctx, job.rec)
			}(job)
		}
		wg.Wait()

		if end < len(browserJobs) {
			e.logger.Debug("pausing between browser batches",
				"completed", end, "total", len(browserJobs))
			if !sleepCtx(ctx, e.cfg.BatchPause) {
				// Run cancelled; mark the remainder failed.
				for _, job := range browserJobs[end:] {
					results[job.idx] = e.ExtractOne(ctx, job.rec)
				}
				break
			}
		}
	}

	for _, res := range results {
		summary.Add(res)
	}
	summary.FinishedAt = time.Now()

	e.logger.Info("batch finished",
		"total", summary.TotalRecords,
		"successful", summary.Successful,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"unsupported", summary.Unsupported,
		"partial", summary.Partial)

	return results, summary
}
