package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"taxharvest/models"
	"taxharvest/pkg/amount"
	"taxharvest/pkg/extract"
	"taxharvest/pkg/steps"
)

// ErrMissingInput marks records that cannot be extracted because the input
// row lacks a required value (link, account, parcel). Never retried.
var ErrMissingInput = errors.New("missing input")

// RoutineRequest carries everything a navigation routine needs for one
// property.
type RoutineRequest struct {
	Record    models.PropertyRecord
	Config    models.JurisdictionConfig
	Steps     []steps.Instruction
	Validator amount.Validator
	Logger    *slog.Logger
}

// Routine is one county's navigation and scrape flow. Routines are written
// against the Automator interface, so the same flow runs under either
// backend.
type Routine func(ctx context.Context, a Automator, req RoutineRequest) (*models.ExtractedFields, error)

var routines = map[string]Routine{
	"maricopa": maricopaRoutine,
	"harris":   harrisRoutine,
	"wayne":    wayneRoutine,
	"johnston": johnstonRoutine,
	"craven":   cravenRoutine,
	"wilson":   wilsonRoutine,
	"generic":  genericRoutine,
}

// RoutineFor looks up the navigation routine by key.
func RoutineFor(key string) (Routine, bool) {
	r, ok := routines[key]
	return r, ok
}

// amountKeywords are the labels browser routines scan rendered text for.
var amountKeywords = []string{
	"total amount due", "amount due", "total due", "taxes due",
	"balance due", "total billed", "current due",
}

// valueExclusions mark lines whose dollar figures are valuations, not
// bills.
var valueExclusions = []string{"assessed", "market value", "appraised", "land value"}

// maricopaRoutine drives the Maricopa treasurer parcel search. The parcel
// form takes the number in four segments (book, map, item, split), so a
// "501-38-249" style parcel is cut apart before filling.
func maricopaRoutine(ctx context.Context, a Automator, req RoutineRequest) (*models.ExtractedFields, error) {
	if err := a.Navigate(ctx, "https://treasurer.maricopa.gov/", req.Config.Wait); err != nil {
		return nil, err
	}

	parcel := req.Record.AccountNumber
	if v, ok := steps.FillValue(req.Steps, "parcel"); ok {
		parcel = v
	}
	book, mapp, item, split := segmentParcel(parcel)
	if book == "" {
		return nil, fmt.Errorf("%w: no usable parcel number for property %s", ErrMissingInput, req.Record.PropertyID)
	}

	segments := []struct{ selector, value string }{
		{"#txtParcelNumBook", book},
		{"#txtParcelNumMap", mapp},
		{"#txtParcelNumItem", item},
		{"#txtParcelNumSplit", split},
	}
	for _, seg := range segments {
		if seg.value == "" {
			continue
		}
		if err := a.Fill(ctx, seg.selector, seg.value); err != nil {
			return nil, err
		}
	}

	if err := clickFirst(ctx, a, []string{"#btnGo", "input[type='submit']", "button[type='submit']"}); err != nil {
		return nil, err
	}

	return scrapeRenderedPage(ctx, a, req, nil)
}

var parcelSegmentRe = regexp.MustCompile(`^(\d{3})(\d{2})(\d{3})([A-Za-z]?)$`)

// segmentParcel splits a Maricopa parcel number into its book/map/item/split
// segments. Accepts both dashed ("501-38-249A") and compact ("50138249A")
// forms.
func segmentParcel(parcel string) (book, mapp, item, split string) {
	cleaned := strings.ToUpper(strings.TrimSpace(parcel))
	cleaned = strings.NewReplacer("-", "", ".", "", " ", "").Replace(cleaned)
	m := parcelSegmentRe.FindStringSubmatch(cleaned)
	if m == nil {
		return "", "", "", ""
	}
	return m[1], m[2], m[3], m[4]
}

// harrisRoutine runs the Harris County tax office account search. The
// portal's markup shifts between releases, so both the search box and the
// results are located through fallback selector lists.
func harrisRoutine(ctx context.Context, a Automator, req RoutineRequest) (*models.ExtractedFields, error) {
	if err := a.Navigate(ctx, "https://www.hctax.net/Property/PropertyTax", req.Config.Wait); err != nil {
		return nil, err
	}

	account := req.Record.AccountNumber
	if v, ok := steps.FillValue(req.Steps, "account"); ok {
		account = v
	}
	if account == "" {
		return nil, fmt.Errorf("%w: no account number for property %s", ErrMissingInput, req.Record.PropertyID)
	}

	if err := fillFirst(ctx, a, []string{
		"#txtSearchValue", "input[name='searchval']", "input[type='search']", "input[type='text']",
	}, account); err != nil {
		return nil, err
	}
	if err := clickFirst(ctx, a, []string{
		"#btnSubmitTaxSearch", "button[type='submit']", "input[type='submit']",
	}); err != nil {
		return nil, err
	}
	// Results render into a table; scraping before it appears reads the
	// search form instead.
	if err := a.WaitVisible(ctx, "table"); err != nil {
		return nil, err
	}

	return scrapeRenderedPage(ctx, a, req, nil)
}

// wayneRoutine covers the NC portal family (Wayne, Vance, Beaufort) that
// lists an owner's bills with a "Total Billed" column.
func wayneRoutine(ctx context.Context, a Automator, req RoutineRequest) (*models.ExtractedFields, error) {
	if req.Record.TaxBillLink == "" {
		return nil, fmt.Errorf("%w: no tax bill link for property %s", ErrMissingInput, req.Record.PropertyID)
	}
	if err := a.Navigate(ctx, req.Record.TaxBillLink, req.Config.Wait); err != nil {
		return nil, err
	}

	// Some links land on a search form rather than the bill itself.
	if name, ok := steps.FillValue(req.Steps, "name"); ok {
		if err := fillFirst(ctx, a, []string{
			"input[name*='Name']", "input[id*='Name']", "input[type='text']",
		}, name); err == nil {
			clickFirst(ctx, a, []string{"input[type='submit']", "button[type='submit']"})
		}
	}

	keywords := append([]string{"total billed"}, amountKeywords...)
	return scrapeRenderedPage(ctx, a, req, keywords)
}

// johnstonRoutine searches the Johnston County bill list. Result rows are
// matched on the account number when one is known; the row index from the
// extraction steps is only a fallback, since the list reorders as bills are
// paid.
func johnstonRoutine(ctx context.Context, a Automator, req RoutineRequest) (*models.ExtractedFields, error) {
	if req.Record.TaxBillLink == "" {
		return nil, fmt.Errorf("%w: no tax bill link for property %s", ErrMissingInput, req.Record.PropertyID)
	}
	if err := a.Navigate(ctx, req.Record.TaxBillLink, req.Config.Wait); err != nil {
		return nil, err
	}

	if v, ok := steps.FillValue(req.Steps, "account"); ok {
		if err := fillFirst(ctx, a, []string{
			"input[name*='account']", "input[id*='account']", "input[type='text']",
		}, v); err == nil {
			clickFirst(ctx, a, []string{"input[type='submit']", "button[type='submit']"})
		}
	}

	if account := req.Record.AccountNumber; account != "" {
		rows := a.Texts(ctx, "table tr")
		var billRows int
		for _, row := range rows {
			if strings.Contains(row, account) {
				fields := fieldsFromText(row, req.Validator, nil)
				if fields.TaxAmount != nil {
					finishRenderedFields(ctx, a, fields)
					return fields, nil
				}
			}
			if len(amount.Dollars(row)) > 0 {
				billRows++
			}
		}
		// Several bills listed and none carries our account number;
		// picking one by position would be a guess.
		if billRows > 1 {
			return nil, fmt.Errorf("%w: account %s not found among %d listed bills",
				extract.ErrRequiresManual, account, billRows)
		}
	}

	return scrapeRenderedPage(ctx, a, req, nil)
}

// cravenRoutine drives the BT taxpayer portal used by Craven County: fill
// the account search, then open the most recent bill (the last row).
func cravenRoutine(ctx context.Context, a Automator, req RoutineRequest) (*models.ExtractedFields, error) {
	link := req.Record.TaxBillLink
	if link == "" {
		link = "https://www.bttaxpayerportal.com/ITSPublicCR/"
	}
	if err := a.Navigate(ctx, link, req.Config.Wait); err != nil {
		return nil, err
	}

	account := req.Record.AccountNumber
	if v, ok := steps.FillValue(req.Steps, "account"); ok {
		account = v
	}
	if account != "" {
		if err := fillFirst(ctx, a, []string{
			"input[name*='account']", "input[id*='Account']", "input[type='text']",
		}, account); err != nil {
			return nil, err
		}
		if err := clickFirst(ctx, a, []string{
			"button[type='submit']", "input[type='submit']", "#btnSearch",
		}); err != nil {
			return nil, err
		}
		// Open the newest bill.
		clickFirst(ctx, a, []string{"table tbody tr:last-child a", "table tr:last-child td a"})
	}

	return scrapeRenderedPage(ctx, a, req, nil)
}

// wilsonRoutine runs the devnetwedge search used by Wilson County: search
// by parcel, open the first hit.
func wilsonRoutine(ctx context.Context, a Automator, req RoutineRequest) (*models.ExtractedFields, error) {
	link := req.Record.TaxBillLink
	if link == "" {
		link = "https://wilsonnc.devnetwedge.com/"
	}
	if err := a.Navigate(ctx, link, req.Config.Wait); err != nil {
		return nil, err
	}

	query := req.Record.AccountNumber
	if v, ok := steps.FillValue(req.Steps, "parcel"); ok {
		query = v
	}
	if query != "" {
		if err := fillFirst(ctx, a, []string{
			"#search-text", "input[name='SearchText']", "input[type='search']", "input[type='text']",
		}, query); err != nil {
			return nil, err
		}
		if err := a.Press(ctx, "#search-text", "Enter"); err != nil {
			clickFirst(ctx, a, []string{"button[type='submit']", "input[type='submit']"})
		}
		clickFirst(ctx, a, []string{"table tbody tr:first-child a", "table tr td a"})
	}

	return scrapeRenderedPage(ctx, a, req, nil)
}

// genericRoutine loads the record's own link and scans the rendered text.
// Used for jurisdictions with no tuned flow; confidence is accordingly low.
func genericRoutine(ctx context.Context, a Automator, req RoutineRequest) (*models.ExtractedFields, error) {
	if req.Record.TaxBillLink == "" {
		return nil, fmt.Errorf("%w: no tax bill link for property %s", ErrMissingInput, req.Record.PropertyID)
	}
	if err := a.Navigate(ctx, req.Record.TaxBillLink, req.Config.Wait); err != nil {
		return nil, err
	}

	// Follow any explicit steps the record carries.
	for _, inst := range req.Steps {
		switch inst.Action {
		case steps.ActionFill:
			fillFirst(ctx, a, []string{
				fmt.Sprintf("input[name*='%s']", cssEscape(inst.Field)),
				"input[type='text']",
			}, inst.Value)
		case steps.ActionClick:
			clickFirst(ctx, a, []string{
				"button[type='submit']", "input[type='submit']", "a",
			})
		}
	}

	return scrapeRenderedPage(ctx, a, req, nil)
}

// scrapeRenderedPage reads the rendered text and extracts fields from it.
// keywords overrides the default amount labels when non-nil.
func scrapeRenderedPage(ctx context.Context, a Automator, req RoutineRequest, keywords []string) (*models.ExtractedFields, error) {
	text, err := a.PageText(ctx)
	if err != nil {
		return nil, err
	}
	fields := fieldsFromText(text, req.Validator, keywords)
	finishRenderedFields(ctx, a, fields)
	if fields.AccountNumber == "" {
		fields.AccountNumber = req.Record.AccountNumber
	}
	return fields, nil
}

func finishRenderedFields(ctx context.Context, a Automator, fields *models.ExtractedFields) {
	fields.FinalURL = a.URL()
	if title := strings.TrimSpace(a.Title()); title != "" {
		fields.SetRaw("page_title", title)
	}
}

// fieldsFromText extracts amounts from rendered page text. Lines naming a
// valuation are excluded from the tax-amount hunt but still feed
// PropertyValue.
func fieldsFromText(text string, v amount.Validator, keywords []string) *models.ExtractedFields {
	if keywords == nil {
		keywords = amountKeywords
	}
	fields := &models.ExtractedFields{}

	var candidates []float64
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)

		if containsAny(lower, valueExclusions) {
			if fields.PropertyValue == nil {
				for _, val := range amount.Dollars(line) {
					if val > 0 {
						fields.PropertyValue = &val
						break
					}
				}
			}
			continue
		}
		if containsAny(lower, keywords) {
			candidates = append(candidates, amount.Dollars(line)...)
		}
	}

	// Nothing labeled: fall back to every dollar figure on the page and
	// let plausibility filtering decide.
	if len(candidates) == 0 {
		candidates = amount.Dollars(text)
	}

	var propertyValue float64
	if fields.PropertyValue != nil {
		propertyValue = *fields.PropertyValue
	}
	if tax, ok := v.FirstPlausible(candidates, propertyValue); ok {
		fields.TaxAmount = &tax
	}
	if len(candidates) > 10 {
		candidates = candidates[:10]
	}
	fields.AllAmountsFound = candidates

	return fields
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// fillFirst tries each selector until one accepts the value.
func fillFirst(ctx context.Context, a Automator, selectors []string, value string) error {
	var lastErr error
	for _, sel := range selectors {
		if err := a.Fill(ctx, sel, value); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("no fillable element matched: %w", lastErr)
}

// clickFirst tries each selector until one clicks.
func clickFirst(ctx context.Context, a Automator, selectors []string) error {
	var lastErr error
	for _, sel := range selectors {
		if err := a.Click(ctx, sel); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("no clickable element matched: %w", lastErr)
}

var cssUnsafe = regexp.MustCompile(`[^a-zA-Z0-9 _\-]`)

func cssEscape(s string) string {
	s = cssUnsafe.ReplaceAllString(s, "")
	return strings.ReplaceAll(strings.TrimSpace(strings.ToLower(s)), " ", "")
}
