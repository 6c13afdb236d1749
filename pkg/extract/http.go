package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"taxharvest/models"
	"taxharvest/pkg/amount"
	"taxharvest/pkg/fetcher"
)

// maxAmountsKept caps AllAmountsFound so a fee-schedule page cannot bloat
// every result row.
const maxAmountsKept = 10

var (
	accountPathRe = regexp.MustCompile(`\d{8,}`)
	taxYearRe     = regexp.MustCompile(`20\d{2}`)
	// Markup or script fragments bleeding into a scraped cell mean the
	// selector landed somewhere wrong.
	contaminationRe = regexp.MustCompile(`[<>{}]|function\s*\(|var\s+\w+\s*=`)
)

// HTTPStrategy extracts from portals that render tax data server-side, so a
// single GET plus HTML parsing is enough.
type HTTPStrategy struct {
	fetcher   *fetcher.Fetcher
	validator amount.Validator
	logger    *slog.Logger
}

// NewHTTP builds the direct-request strategy.
func NewHTTP(f *fetcher.Fetcher, v amount.Validator, logger *slog.Logger) *HTTPStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPStrategy{fetcher: f, validator: v, logger: logger}
}

func (s *HTTPStrategy) Name() string { return "http" }

// Extract fetches the record's tax bill page and scrapes it. For ACT-style
// portals the account number is injected into the query string so the
// request lands on the detail page instead of the search form.
func (s *HTTPStrategy) Extract(ctx context.Context, rec models.PropertyRecord, cfg models.JurisdictionConfig) (*models.ExtractedFields, error) {
	link := strings.TrimSpace(rec.TaxBillLink)
	if link == "" {
		return nil, fmt.Errorf("no tax bill link for property %s", rec.PropertyID)
	}

	if cfg.RoutineKey() == "montgomery" {
		link = montgomeryDetailURL(link, rec)
	}

	doc, finalURL, err := s.fetcher.GetDocument(ctx, link)
	if err != nil {
		return nil, err
	}

	fields := s.parseDocument(doc, cfg, rec)
	fields.FinalURL = finalURL
	if fields.AccountNumber == "" {
		fields.AccountNumber = accountNumberFor(rec, finalURL)
	}

	if fields.Empty() {
		return nil, fmt.Errorf("%w at %s", ErrNoAmount, finalURL)
	}

	s.logger.Debug("http extraction parsed",
		"property_id", rec.PropertyID,
		"jurisdiction", cfg.Key,
		"tax_amount_found", fields.TaxAmount != nil,
		"amounts_seen", len(fields.AllAmountsFound))

	return fields, nil
}

// montgomeryDetailURL rewrites an ACT tax link to point straight at the
// account detail page when the link itself only reaches the search form.
func montgomeryDetailURL(link string, rec models.PropertyRecord) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	q := u.Query()
	if q.Get("can") != "" {
		return link
	}
	can := accountNumberFor(rec, link)
	if can == "" {
		return link
	}
	q.Set("can", can)
	q.Set("ownerno", "0")
	u.RawQuery = q.Encode()
	return u.String()
}

// accountNumberFor recovers the account identifier, preferring the record's
// own field, then well-known query parameters, then a long digit run in the
// URL path.
func accountNumberFor(rec models.PropertyRecord, link string) string {
	if acct := strings.TrimSpace(rec.AccountNumber); acct != "" {
		return acct
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	q := u.Query()
	for _, param := range []string{"can", "account", "acct", "parcel", "pin"} {
		if v := strings.TrimSpace(q.Get(param)); v != "" {
			return v
		}
	}
	return accountPathRe.FindString(u.Path)
}

func (s *HTTPStrategy) parseDocument(doc *goquery.Document, cfg models.JurisdictionConfig, rec models.PropertyRecord) *models.ExtractedFields {
	labels := labelsFor(cfg.RoutineKey())
	fields := &models.ExtractedFields{}

	// Property value first: it gates the plausibility ratio for every
	// amount candidate that follows.
	if raw, ok := labeledCellText(doc, labels.values); ok {
		if v, parsed := amount.Parse(raw); parsed && v > 0 {
			fields.PropertyValue = &v
		}
	}
	var propertyValue float64
	if fields.PropertyValue != nil {
		propertyValue = *fields.PropertyValue
	}

	// Priority one: amounts sitting next to a known label.
	candidates := labeledAmounts(doc, labels.amounts)

	// Priority two: dollar figures in text lines mentioning an amount
	// keyword.
	pageText := doc.Text()
	if len(candidates) == 0 {
		candidates = keywordLineAmounts(pageText, labels.amounts)
	}

	// Last resort: strip boilerplate with readability and rescan. Catches
	// portals that bury the bill in a content div with no table markup.
	if len(candidates) == 0 {
		candidates = s.readabilityAmounts(doc, rec.TaxBillLink)
	}

	fields.AllAmountsFound = capAmounts(dedupeAmounts(candidates), maxAmountsKept)
	if tax, ok := s.validator.FirstPlausible(candidates, propertyValue); ok {
		fields.TaxAmount = &tax
	}

	if owner, ok := labeledCellText(doc, labels.owners); ok {
		fields.OwnerName = owner
	}
	if addr, ok := labeledCellText(doc, labels.address); ok {
		fields.PropertyAddress = addr
	}
	if yearText, ok := labeledCellText(doc, labels.taxYears); ok {
		fields.TaxYear = taxYearRe.FindString(yearText)
	}
	if due, ok := labeledCellText(doc, labels.dueDates); ok {
		fields.DueDate = amount.ParseDate(due)
	}

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		fields.SetRaw("page_title", title)
	}

	return fields
}

// labeledAmounts scans table cells for each label and collects the dollar
// amounts in the label's own cell and its next few siblings, in label
// priority order.
func labeledAmounts(doc *goquery.Document, labels []string) []float64 {
	for _, label := range labels {
		var found []float64
		doc.Find("td, th").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
			text := normalizeCell(cell.Text())
			if !strings.Contains(strings.ToLower(text), label) {
				return true
			}
			found = append(found, amountsNear(cell)...)
			// One labeled row per label is enough; later rows are
			// usually payment history.
			return len(found) == 0
		})
		if len(found) > 0 {
			return found
		}
	}
	return nil
}

// amountsNear reads dollar figures from a label cell and up to three
// following sibling cells, skipping anything that looks like leaked markup.
func amountsNear(cell *goquery.Selection) []float64 {
	var out []float64
	collect := func(text string) {
		if contaminationRe.MatchString(text) {
			return
		}
		out = append(out, amount.Dollars(text)...)
	}
	collect(cell.Text())
	sibling := cell.Next()
	for i := 0; i < 3 && sibling.Length() > 0; i++ {
		collect(sibling.Text())
		sibling = sibling.Next()
	}
	return out
}

// labeledCellText returns the text of the cell following the first cell
// whose text contains one of the labels.
func labeledCellText(doc *goquery.Document, labels []string) (string, bool) {
	for _, label := range labels {
		var value string
		doc.Find("td, th").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
			text := normalizeCell(cell.Text())
			if !strings.Contains(strings.ToLower(text), label) {
				return true
			}
			next := normalizeCell(cell.Next().Text())
			if next != "" && !contaminationRe.MatchString(next) {
				value = next
				return false
			}
			// Label and value in the same cell, "Owner Name: SMITH".
			if _, after, ok := strings.Cut(strings.ToLower(text), label); ok {
				trimmed := strings.TrimLeft(after, ": \t")
				if trimmed != "" {
					start := len(text) - len(trimmed)
					value = strings.TrimSpace(text[start:])
					return false
				}
			}
			return true
		})
		if value != "" {
			return value, true
		}
	}
	return "", false
}

// keywordLineAmounts scans plain text line by line for amount keywords.
func keywordLineAmounts(pageText string, keywords []string) []float64 {
	var found []float64
	for _, line := range strings.Split(pageText, "\n") {
		lower := strings.ToLower(line)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				found = append(found, amount.Dollars(line)...)
				break
			}
		}
	}
	return found
}

func (s *HTTPStrategy) readabilityAmounts(doc *goquery.Document, pageURL string) []float64 {
	html, err := doc.Html()
	if err != nil {
		return nil
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(html), u)
	if err != nil {
		s.logger.Debug("readability fallback failed", "error", err)
		return nil
	}
	return amount.Dollars(article.TextContent)
}

func normalizeCell(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func dedupeAmounts(amounts []float64) []float64 {
	seen := make(map[float64]struct{}, len(amounts))
	var out []float64
	for _, a := range amounts {
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

func capAmounts(amounts []float64, n int) []float64 {
	if len(amounts) > n {
		return amounts[:n]
	}
	return amounts
}
