package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"taxharvest/models"
	"taxharvest/pkg/extract"
	"taxharvest/pkg/registry"
)

// mockStrategy scripts per-call outcomes.
type mockStrategy struct {
	mu      sync.Mutex
	name    string
	calls   int
	outcome func(call int) (*models.ExtractedFields, error)
}

func (m *mockStrategy) Name() string { return m.name }

func (m *mockStrategy) Extract(ctx context.Context, rec models.PropertyRecord, cfg models.JurisdictionConfig) (*models.ExtractedFields, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.mu.Unlock()
	return m.outcome(call)
}

func (m *mockStrategy) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func successFields(tax float64) *models.ExtractedFields {
	return &models.ExtractedFields{TaxAmount: &tax}
}

func testConfig() models.Config {
	cfg := models.DefaultConfig()
	cfg.BatchPause = 0
	cfg.RateInterval = 0
	return cfg
}

func newTestEngine(httpStrat, browserStrat extract.Strategy) *Engine {
	e := New(testConfig(), registry.New(), httpStrat, browserStrat, nil)
	e.SetBackoff(func(int) time.Duration { return time.Millisecond })
	return e
}

func TestExtractOneSuccess(t *testing.T) {
	strat := &mockStrategy{name: "http", outcome: func(int) (*models.ExtractedFields, error) {
		return successFields(1234.56), nil
	}}
	e := newTestEngine(strat, nil)

	rec := models.PropertyRecord{
		PropertyID:   "P1",
		Jurisdiction: "Montgomery County",
		TaxBillLink:  "https://actweb.acttax.com/act_webdev/montgomery/showdetail2.jsp?can=1",
	}
	res := e.ExtractOne(context.Background(), rec)

	if res.Status != models.StatusSuccess {
		t.Fatalf("Status = %s, want success (error %q)", res.Status, res.Error)
	}
	if res.Fields == nil || *res.Fields.TaxAmount != 1234.56 {
		t.Errorf("Fields = %+v", res.Fields)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
	if res.Method != "http" {
		t.Errorf("Method = %q, want http", res.Method)
	}
}

func TestExtractOneSkipsEntityRecords(t *testing.T) {
	strat := &mockStrategy{name: "http", outcome: func(int) (*models.ExtractedFields, error) {
		t.Error("strategy must not be called for skipped records")
		return nil, nil
	}}
	e := newTestEngine(strat, strat)

	records := []models.PropertyRecord{
		{PropertyID: "E1", PropertyType: models.PropertyTypeEntity, Jurisdiction: "Montgomery"},
		{PropertyID: "E2", Jurisdiction: "Montgomery", TaxBillLink: models.LinkSentinelEntity},
		{PropertyID: "E3", Jurisdiction: "Montgomery", TaxBillLink: ""},
	}
	for _, rec := range records {
		res := e.ExtractOne(context.Background(), rec)
		if res.Status != models.StatusSkipped {
			t.Errorf("record %s: Status = %s, want skipped", rec.PropertyID, res.Status)
		}
	}
	if strat.callCount() != 0 {
		t.Errorf("strategy called %d times for skippable records", strat.callCount())
	}
}

func TestExtractOneUnsupportedJurisdiction(t *testing.T) {
	strat := &mockStrategy{name: "http", outcome: func(int) (*models.ExtractedFields, error) {
		return successFields(1), nil
	}}
	e := newTestEngine(strat, strat)

	rec := models.PropertyRecord{
		PropertyID:   "P1",
		Jurisdiction: "Atlantis County",
		TaxBillLink:  "https://atlantis.example.gov/taxes",
	}
	res := e.ExtractOne(context.Background(), rec)

	if res.Status != models.StatusUnsupported {
		t.Fatalf("Status = %s, want unsupported", res.Status)
	}
	if res.Error == "" {
		t.Error("unsupported result should carry an error message")
	}
	if strat.callCount() != 0 {
		t.Error("strategy must not run for unsupported jurisdictions")
	}
}

func TestExtractOneRetriesTransientThenSucceeds(t *testing.T) {
	strat := &mockStrategy{name: "http", outcome: func(call int) (*models.ExtractedFields, error) {
		if call < 3 {
			return nil, extract.Transient(errors.New("connection reset"))
		}
		return successFields(2000), nil
	}}
	e := newTestEngine(strat, nil)

	var waits []time.Duration
	e.SetBackoff(func(attempt int) time.Duration {
		d := time.Duration(attempt) * time.Millisecond
		waits = append(waits, d)
		return d
	})

	rec := models.PropertyRecord{
		PropertyID:   "P1",
		Jurisdiction: "Montgomery",
		TaxBillLink:  "https://actweb.acttax.com/x?can=1",
	}
	res := e.ExtractOne(context.Background(), rec)

	if res.Status != models.StatusSuccess {
		t.Fatalf("Status = %s, want success after retries (error %q)", res.Status, res.Error)
	}
	if strat.callCount() != 3 {
		t.Errorf("strategy called %d times, want 3", strat.callCount())
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
	if len(waits) != 2 {
		t.Errorf("backoff consulted %d times, want 2", len(waits))
	}
}

func TestExtractOnePermanentErrorNotRetried(t *testing.T) {
	strat := &mockStrategy{name: "http", outcome: func(int) (*models.ExtractedFields, error) {
		return nil, errors.New("selector not found")
	}}
	e := newTestEngine(strat, nil)

	rec := models.PropertyRecord{
		PropertyID:   "P1",
		Jurisdiction: "Montgomery",
		TaxBillLink:  "https://actweb.acttax.com/x?can=1",
	}
	res := e.ExtractOne(context.Background(), rec)

	if res.Status != models.StatusFailed {
		t.Fatalf("Status = %s, want failed", res.Status)
	}
	if strat.callCount() != 1 {
		t.Errorf("strategy called %d times, want 1 (no retry on permanent errors)", strat.callCount())
	}
}

func TestExtractOneTransientExhaustsRetries(t *testing.T) {
	strat := &mockStrategy{name: "http", outcome: func(int) (*models.ExtractedFields, error) {
		return nil, extract.Transient(errors.New("flaky page"))
	}}
	e := newTestEngine(strat, nil)

	rec := models.PropertyRecord{
		PropertyID:   "P1",
		Jurisdiction: "Montgomery",
		TaxBillLink:  "https://actweb.acttax.com/x?can=1",
	}
	res := e.ExtractOne(context.Background(), rec)

	if res.Status != models.StatusFailed {
		t.Fatalf("Status = %s, want failed", res.Status)
	}
	if strat.callCount() != 3 {
		t.Errorf("strategy called %d times, want 3", strat.callCount())
	}
}

func TestExtractOneRequiresManual(t *testing.T) {
	strat := &mockStrategy{name: "http", outcome: func(int) (*models.ExtractedFields, error) {
		return nil, extract.ErrRequiresManual
	}}
	e := newTestEngine(strat, nil)

	rec := models.PropertyRecord{
		PropertyID:   "P1",
		Jurisdiction: "Montgomery",
		TaxBillLink:  "https://actweb.acttax.com/x?can=1",
	}
	res := e.ExtractOne(context.Background(), rec)

	if res.Status != models.StatusRequiresManual {
		t.Fatalf("Status = %s, want requires_manual", res.Status)
	}
	if strat.callCount() != 1 {
		t.Errorf("strategy called %d times, want 1", strat.callCount())
	}
}

func TestExtractOnePartialWhenNoTaxAmount(t *testing.T) {
	strat := &mockStrategy{name: "http", outcome: func(int) (*models.ExtractedFields, error) {
		return &models.ExtractedFields{OwnerName: "ACME LLC"}, nil
	}}
	e := newTestEngine(strat, nil)

	rec := models.PropertyRecord{
		PropertyID:   "P1",
		Jurisdiction: "Montgomery",
		TaxBillLink:  "https://actweb.acttax.com/x?can=1",
	}
	res := e.ExtractOne(context.Background(), rec)

	if res.Status != models.StatusPartial {
		t.Fatalf("Status = %s, want partial", res.Status)
	}
	if res.Notes == "" {
		t.Error("partial results should explain themselves in Notes")
	}
}

func TestExtractBatch(t *testing.T) {
	var httpCalls, browserCalls atomic.Int64
	httpStrat := &mockStrategy{name: "http", outcome: func(int) (*models.ExtractedFields, error) {
		httpCalls.Add(1)
		return successFields(1500), nil
	}}
	browserStrat := &mockStrategy{name: "browser", outcome: func(int) (*models.ExtractedFields, error) {
		browserCalls.Add(1)
		return successFields(2500), nil
	}}
	e := newTestEngine(httpStrat, browserStrat)

	records := []models.PropertyRecord{
		{PropertyID: "H1", Jurisdiction: "Montgomery", TaxBillLink: "https://actweb.acttax.com/x?can=1"},
		{PropertyID: "B1", Jurisdiction: "Harris County", TaxBillLink: "https://www.hctax.net/x", AccountNumber: "1"},
		{PropertyID: "S1", Jurisdiction: "Montgomery", TaxBillLink: models.LinkSentinelEntity},
		{PropertyID: "U1", Jurisdiction: "Atlantis", TaxBillLink: "https://atlantis.example.gov/x"},
		{PropertyID: "H2", Jurisdiction: "Fort Bend", TaxBillLink: "https://fortbendcountytx.gov/x"},
	}

	results, summary := e.ExtractBatch(context.Background(), records)

	if len(results) != len(records) {
		t.Fatalf("got %d results, want %d", len(results), len(records))
	}
	for i, res := range results {
		if res.PropertyID != records[i].PropertyID {
			t.Errorf("result %d = %s, want input order preserved (%s)", i, res.PropertyID, records[i].PropertyID)
		}
	}

	if summary.TotalRecords != 5 || summary.Successful != 3 || summary.Skipped != 1 || summary.Unsupported != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if httpCalls.Load() != 2 {
		t.Errorf("http strategy called %d times, want 2", httpCalls.Load())
	}
	if browserCalls.Load() != 1 {
		t.Errorf("browser strategy called %d times, want 1", browserCalls.Load())
	}
	if summary.JurisdictionBreakdown["Harris County, TX"] == nil {
		t.Errorf("jurisdiction breakdown missing Harris: %+v", summary.JurisdictionBreakdown)
	}
}

func TestExtractBatchProgressCallback(t *testing.T) {
	strat := &mockStrategy{name: "http", outcome: func(int) (*models.ExtractedFields, error) {
		return successFields(1000), nil
	}}
	e := newTestEngine(strat, nil)

	var mu sync.Mutex
	var seen []string
	e.SetProgress(func(res models.ExtractionResult) {
		mu.Lock()
		seen = append(seen, res.PropertyID)
		mu.Unlock()
	})

	records := []models.PropertyRecord{
		{PropertyID: "P1", Jurisdiction: "Montgomery", TaxBillLink: "https://actweb.acttax.com/x?can=1"},
		{PropertyID: "P2", Jurisdiction: "Galveston", TaxBillLink: "https://galvestoncountytx.gov/x"},
	}
	e.ExtractBatch(context.Background(), records)

	if len(seen) != 2 {
		t.Errorf("progress saw %d results, want 2", len(seen))
	}
}

func TestExtractBatchProgressCountsUnderConcurrency(t *testing.T) {
	httpStrat := &mockStrategy{name: "http", outcome: func(int) (*models.ExtractedFields, error) {
		return successFields(1500), nil
	}}
	browserStrat := &mockStrategy{name: "browser", outcome: func(int) (*models.ExtractedFields, error) {
		return successFields(2500), nil
	}}
	e := newTestEngine(httpStrat, browserStrat)

	var done atomic.Int64
	e.SetProgress(func(models.ExtractionResult) { done.Add(1) })

	// Enough records to keep both the HTTP pool and the browser batches
	// invoking the observer from several goroutines at once.
	var records []models.PropertyRecord
	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			records = append(records, models.PropertyRecord{
				PropertyID:   fmt.Sprintf("H%d", i),
				Jurisdiction: "Montgomery",
				TaxBillLink:  "https://actweb.acttax.com/x?can=1",
			})
		} else {
			records = append(records, models.PropertyRecord{
				PropertyID:   fmt.Sprintf("B%d", i),
				Jurisdiction: "Harris County",
				TaxBillLink:  "https://www.hctax.net/x",
			})
		}
	}

	e.ExtractBatch(context.Background(), records)

	if done.Load() != int64(len(records)) {
		t.Errorf("progress counted %d results, want %d", done.Load(), len(records))
	}
}

func TestErrorLabelBuckets(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", context.DeadlineExceeded, "Timeout"},
		{"no amount", extract.ErrNoAmount, "No amount"},
		{"requires manual", extract.ErrRequiresManual, "Requires manual"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := models.ExtractionResult{Error: errorLabel(tt.err)}
			if got := res.ErrorKind(); got != tt.want {
				t.Errorf("ErrorKind() = %q, want %q", got, tt.want)
			}
		})
	}
}
