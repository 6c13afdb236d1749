// Package models defines the data structures shared across the extraction
// pipeline: input property records, jurisdiction configuration, extraction
// results, and run summaries.
package models

// LinkSentinelEntity marks rows whose tax-bill-link column holds the literal
// placeholder used for entity rows in the source spreadsheets.
const LinkSentinelEntity = "entity"

// Property types as they appear in the input data.
const (
	PropertyTypeProperty  = "property"
	PropertyTypeEntity    = "entity"
	PropertyTypeSubEntity = "sub-entity"
)

// PropertyRecord is one row of input: a property plus everything we know
// about where and how to find its tax bill. Records are immutable for the
// duration of an extraction attempt.
type PropertyRecord struct {
	PropertyID        string
	PropertyName      string
	Jurisdiction      string
	State             string
	PropertyType      string
	CloseDate         string
	AmountDue         string
	PreviousYearTaxes string
	ExtractionSteps   string
	AccountNumber     string
	PropertyAddress   string
	NextDueDate       string
	TaxBillLink       string
	ParentEntity      string
}

// Skippable reports whether the record should never be extracted: entity and
// sub-entity rows have no tax bill of their own, and rows without a usable
// link (or with the sentinel placeholder) cannot be fetched.
func (r PropertyRecord) Skippable() bool {
	if r.PropertyType == PropertyTypeEntity || r.PropertyType == PropertyTypeSubEntity {
		return true
	}
	return r.TaxBillLink == "" || r.TaxBillLink == LinkSentinelEntity
}
