package csvio

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"taxharvest/models"
)

// resultHeader is the output CSV shape: one row per input record with the
// extracted fields JSON-encoded into a single column.
var resultHeader = []string{
	"property_id",
	"property_name",
	"jurisdiction",
	"extraction_status",
	"extraction_method",
	"attempts",
	"duration_ms",
	"tax_amount",
	"extracted_data",
	"extraction_error",
	"extraction_notes",
	"screenshot_path",
	"extraction_timestamp",
}

// WriteResults writes extraction results as CSV.
func WriteResults(path string, results []models.ExtractionResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(resultHeader); err != nil {
		return fmt.Errorf("writing results header: %w", err)
	}

	for _, res := range results {
		if err := w.Write(resultRow(res)); err != nil {
			return fmt.Errorf("writing result for %s: %w", res.PropertyID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing results: %w", err)
	}
	return nil
}

func resultRow(res models.ExtractionResult) []string {
	var taxAmount string
	if res.Fields != nil && res.Fields.TaxAmount != nil {
		taxAmount = fmt.Sprintf("%.2f", *res.Fields.TaxAmount)
	}
	return []string{
		res.PropertyID,
		res.PropertyName,
		res.Jurisdiction,
		string(res.Status),
		res.Method,
		fmt.Sprintf("%d", res.Attempts),
		fmt.Sprintf("%d", res.Duration.Milliseconds()),
		taxAmount,
		res.FieldsJSON(),
		res.Error,
		res.Notes,
		res.ScreenshotPath,
		res.Timestamp.Format("2006-01-02T15:04:05"),
	}
}

// WriteSummary writes the run summary as pretty JSON.
func WriteSummary(path string, summary models.Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing summary file: %w", err)
	}
	return nil
}
