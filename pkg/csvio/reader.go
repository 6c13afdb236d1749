// Package csvio is the data boundary: it reads property records from the
// portfolio CSV and writes extraction results back out as CSV, JSON and
// Excel.
package csvio

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"taxharvest/models"
)

// Input column names. The header is the contract; column order is not.
const (
	colPropertyID      = "property id"
	colPropertyName    = "property name"
	colJurisdiction    = "jurisdiction"
	colState           = "state"
	colPropertyType    = "property type"
	colCloseDate       = "close date"
	colAmountDue       = "amount due"
	colPrevYearTaxes   = "previous year taxes"
	colExtractionSteps = "extraction steps"
	colAcctNumber      = "acct number"
	colPropertyAddress = "property address"
	colNextDueDate     = "next due date"
	colTaxBillLink     = "tax bill link"
	colParentEntity    = "parent entity"
)

// ReadRecords loads property records from a CSV file. Files exported from
// spreadsheets arrive in UTF-8, Latin-1 or Windows-1252; all three are
// tolerated.
func ReadRecords(path string) ([]models.PropertyRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading input file: %w", err)
	}
	return parseRecords(decodeText(raw))
}

// decodeText normalizes file bytes to UTF-8. Windows-1252 is a strict
// superset of printable Latin-1, so one fallback decode covers both.
func decodeText(raw []byte) []byte {
	// Strip a UTF-8 BOM if present.
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(raw) {
		return raw
	}
	decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), raw)
	if err != nil {
		return raw
	}
	return decoded
}

func parseRecords(data []byte) ([]models.PropertyRecord, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := idx[colPropertyID]; !ok {
		return nil, fmt.Errorf("input csv is missing the %q column", "Property ID")
	}

	field := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []models.PropertyRecord
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv line %d: %w", line, err)
		}

		rec := models.PropertyRecord{
			PropertyID:        field(row, colPropertyID),
			PropertyName:      field(row, colPropertyName),
			Jurisdiction:      field(row, colJurisdiction),
			State:             field(row, colState),
			PropertyType:      field(row, colPropertyType),
			CloseDate:         field(row, colCloseDate),
			AmountDue:         field(row, colAmountDue),
			PreviousYearTaxes: field(row, colPrevYearTaxes),
			ExtractionSteps:   field(row, colExtractionSteps),
			AccountNumber:     field(row, colAcctNumber),
			PropertyAddress:   field(row, colPropertyAddress),
			NextDueDate:       field(row, colNextDueDate),
			TaxBillLink:       field(row, colTaxBillLink),
			ParentEntity:      field(row, colParentEntity),
		}
		if rec.PropertyID == "" && rec.PropertyName == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
