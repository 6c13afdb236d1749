package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the terminal (or in-flight) state of one extraction attempt.
type Status string

const (
	StatusPending        Status = "pending"
	StatusRunning        Status = "running"
	StatusSuccess        Status = "success"
	StatusFailed         Status = "failed"
	StatusSkipped        Status = "skipped"
	StatusUnsupported    Status = "unsupported"
	StatusRequiresManual Status = "requires_manual"
	StatusPartial        Status = "partial"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s != StatusPending && s != StatusRunning
}

// ExtractedFields is the semi-structured payload of a successful (or partial)
// extraction: a known set of optional typed fields plus an open-ended
// diagnostics bag for strategy-specific debug output.
type ExtractedFields struct {
	// TaxAmount is the amount due, the primary field every strategy
	// hunts for. Nil means not found (or nothing passed validation).
	TaxAmount *float64 `json:"tax_amount,omitempty"`
	// PropertyValue is the assessed/market value when a page exposes it.
	// Kept separate so it can corroborate (or veto) TaxAmount.
	PropertyValue   *float64 `json:"property_value,omitempty"`
	OwnerName       string   `json:"owner_name,omitempty"`
	PropertyAddress string   `json:"property_address,omitempty"`
	AccountNumber   string   `json:"account_number,omitempty"`
	TaxYear         string   `json:"tax_year,omitempty"`
	DueDate         string   `json:"due_date,omitempty"`
	// AllAmountsFound preserves every dollar amount seen on the page so a
	// human can audit ambiguous extractions after the fact.
	AllAmountsFound []float64 `json:"all_amounts_found,omitempty"`
	FinalURL        string    `json:"final_url,omitempty"`
	// Raw holds strategy-specific diagnostics (page titles, matched
	// selectors, text samples).
	Raw map[string]string `json:"raw,omitempty"`
}

// Empty reports whether no field of interest was extracted at all.
func (f *ExtractedFields) Empty() bool {
	if f == nil {
		return true
	}
	return f.TaxAmount == nil && f.PropertyValue == nil &&
		f.OwnerName == "" && f.PropertyAddress == "" &&
		f.AccountNumber == "" && f.TaxYear == "" && f.DueDate == ""
}

// SetRaw records a diagnostic key/value, allocating the bag lazily.
func (f *ExtractedFields) SetRaw(key, value string) {
	if f.Raw == nil {
		f.Raw = make(map[string]string)
	}
	f.Raw[key] = value
}

// ExtractionResult is the outcome of one attempt for one record. Results are
// created fresh per attempt and never mutated after being returned.
type ExtractionResult struct {
	PropertyID   string           `json:"property_id"`
	PropertyName string           `json:"property_name"`
	Jurisdiction string           `json:"jurisdiction,omitempty"`
	Status       Status           `json:"extraction_status"`
	Fields       *ExtractedFields `json:"extracted_data,omitempty"`
	Error        string           `json:"extraction_error,omitempty"`
	Notes        string           `json:"extraction_notes,omitempty"`
	// Method records which strategy produced the result: "http",
	// "playwright" or "rod".
	Method         string        `json:"extraction_method,omitempty"`
	Attempts       int           `json:"attempts,omitempty"`
	Duration       time.Duration `json:"-"`
	Timestamp      time.Time     `json:"extraction_timestamp"`
	ScreenshotPath string        `json:"screenshot_path,omitempty"`
}

// FieldsJSON renders the extracted fields as a single JSON value for the
// one-column CSV representation. Returns "" when nothing was extracted.
func (r ExtractionResult) FieldsJSON() string {
	if r.Fields == nil {
		return ""
	}
	b, err := json.Marshal(r.Fields)
	if err != nil {
		return ""
	}
	return string(b)
}

// ErrorKind is the coarse error category used for summary breakdowns: the
// leading token of the error message, so operators see "Timeout: 12" style
// counts without reading every row.
func (r ExtractionResult) ErrorKind() string {
	if r.Error == "" {
		return ""
	}
	kind, _, _ := strings.Cut(r.Error, ":")
	return strings.TrimSpace(kind)
}

// JurisdictionStats is the per-jurisdiction slice of a run summary.
type JurisdictionStats struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Summary aggregates one batch run.
type Summary struct {
	TotalRecords   int `json:"total_records"`
	Successful     int `json:"successful"`
	Failed         int `json:"failed"`
	Skipped        int `json:"skipped"`
	Unsupported    int `json:"unsupported"`
	RequiresManual int `json:"requires_manual"`
	Partial        int `json:"partial"`
	// ErrorBreakdown groups failures by ErrorKind.
	ErrorBreakdown map[string]int `json:"error_breakdown,omitempty"`
	// JurisdictionBreakdown groups outcomes by jurisdiction name.
	JurisdictionBreakdown map[string]*JurisdictionStats `json:"jurisdiction_breakdown,omitempty"`
	// MethodBreakdown counts results per extraction method.
	MethodBreakdown map[string]int `json:"method_breakdown,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
}

// Add folds one result into the summary.
func (s *Summary) Add(res ExtractionResult) {
	s.TotalRecords++
	switch res.Status {
	case StatusSuccess:
		s.Successful++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	case StatusUnsupported:
		s.Unsupported++
	case StatusRequiresManual:
		s.RequiresManual++
	case StatusPartial:
		s.Partial++
	}
	if kind := res.ErrorKind(); kind != "" && res.Status == StatusFailed {
		if s.ErrorBreakdown == nil {
			s.ErrorBreakdown = make(map[string]int)
		}
		s.ErrorBreakdown[kind]++
	}
	if res.Method != "" {
		if s.MethodBreakdown == nil {
			s.MethodBreakdown = make(map[string]int)
		}
		s.MethodBreakdown[res.Method]++
	}
	if res.Jurisdiction != "" {
		if s.JurisdictionBreakdown == nil {
			s.JurisdictionBreakdown = make(map[string]*JurisdictionStats)
		}
		js := s.JurisdictionBreakdown[res.Jurisdiction]
		if js == nil {
			js = &JurisdictionStats{}
			s.JurisdictionBreakdown[res.Jurisdiction] = js
		}
		js.Total++
		switch res.Status {
		case StatusSuccess:
			js.Successful++
		case StatusFailed:
			js.Failed++
		case StatusSkipped:
			js.Skipped++
		}
	}
}
