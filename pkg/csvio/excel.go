package csvio

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"taxharvest/models"
)

// WriteWorkbook writes results and summary as an Excel workbook with one
// sheet per audience: everything, the wins, the failures to triage, and the
// run totals.
func WriteWorkbook(path string, results []models.ExtractionResult, summary models.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeResultSheet(f, "All Results", results, nil); err != nil {
		return err
	}
	if err := writeResultSheet(f, "Successful", results, func(r models.ExtractionResult) bool {
		return r.Status == models.StatusSuccess || r.Status == models.StatusPartial
	}); err != nil {
		return err
	}
	if err := writeResultSheet(f, "Failed", results, func(r models.ExtractionResult) bool {
		return r.Status == models.StatusFailed || r.Status == models.StatusRequiresManual
	}); err != nil {
		return err
	}
	if err := writeSummarySheet(f, summary); err != nil {
		return err
	}

	// Drop the default sheet so the workbook opens on All Results.
	f.DeleteSheet("Sheet1")

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

func writeResultSheet(f *excelize.File, name string, results []models.ExtractionResult, keep func(models.ExtractionResult) bool) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("creating sheet %s: %w", name, err)
	}
	if err := writeRow(f, name, 1, resultHeader); err != nil {
		return err
	}

	rowNum := 2
	for _, res := range results {
		if keep != nil && !keep(res) {
			continue
		}
		if err := writeRow(f, name, rowNum, resultRow(res)); err != nil {
			return err
		}
		rowNum++
	}
	return nil
}

func writeSummarySheet(f *excelize.File, summary models.Summary) error {
	const name = "Summary"
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("creating sheet %s: %w", name, err)
	}

	rows := [][]string{
		{"total_records", fmt.Sprintf("%d", summary.TotalRecords)},
		{"successful", fmt.Sprintf("%d", summary.Successful)},
		{"partial", fmt.Sprintf("%d", summary.Partial)},
		{"failed", fmt.Sprintf("%d", summary.Failed)},
		{"skipped", fmt.Sprintf("%d", summary.Skipped)},
		{"unsupported", fmt.Sprintf("%d", summary.Unsupported)},
		{"requires_manual", fmt.Sprintf("%d", summary.RequiresManual)},
		{"started_at", summary.StartedAt.Format("2006-01-02T15:04:05")},
		{"finished_at", summary.FinishedAt.Format("2006-01-02T15:04:05")},
	}

	for _, kv := range sortedCounts(summary.ErrorBreakdown) {
		rows = append(rows, []string{"error: " + kv.key, fmt.Sprintf("%d", kv.count)})
	}
	for _, kv := range sortedCounts(summary.MethodBreakdown) {
		rows = append(rows, []string{"method: " + kv.key, fmt.Sprintf("%d", kv.count)})
	}

	for i, row := range rows {
		if err := writeRow(f, name, i+1, row); err != nil {
			return err
		}
	}
	return nil
}

type keyCount struct {
	key   string
	count int
}

func sortedCounts(m map[string]int) []keyCount {
	out := make([]keyCount, 0, len(m))
	for k, v := range m {
		out = append(out, keyCount{k, v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

func writeRow(f *excelize.File, sheet string, row int, values []string) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("computing cell for %s row %d: %w", sheet, row, err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("writing cell %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}
