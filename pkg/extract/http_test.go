package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taxharvest/models"
	"taxharvest/pkg/amount"
	"taxharvest/pkg/fetcher"
)

func newTestStrategy(t *testing.T) *HTTPStrategy {
	t.Helper()
	f := fetcher.New(5*time.Second, nil, "test-agent", nil)
	return NewHTTP(f, amount.NewValidator(), nil)
}

func TestExtractLabeledAmount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><table>
			<tr><td>Owner Name</td><td>ACME HOLDINGS LLC</td></tr>
			<tr><td>Total Amount Due</td><td>$1,234.56</td></tr>
		</table></body></html>`))
	}))
	defer srv.Close()

	s := newTestStrategy(t)
	rec := models.PropertyRecord{PropertyID: "P1", TaxBillLink: srv.URL}
	cfg := models.JurisdictionConfig{Key: "galveston", Method: models.MethodHTTP}

	fields, err := s.Extract(context.Background(), rec, cfg)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if fields.TaxAmount == nil || *fields.TaxAmount != 1234.56 {
		t.Errorf("TaxAmount = %v, want 1234.56", fields.TaxAmount)
	}
	if fields.OwnerName != "ACME HOLDINGS LLC" {
		t.Errorf("OwnerName = %q", fields.OwnerName)
	}
}

func TestExtractMontgomeryInjectsAccount(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		if r.URL.Query().Get("can") == "" {
			// Search form, no amounts.
			w.Write([]byte(`<html><body>Enter an account number</body></html>`))
			return
		}
		w.Write([]byte(`<html><body><table>
			<tr><td>Current Amount Due</td><td>$1,234.56</td></tr>
		</table></body></html>`))
	}))
	defer srv.Close()

	s := newTestStrategy(t)
	rec := models.PropertyRecord{
		PropertyID:    "P2",
		AccountNumber: "0003510100300",
		TaxBillLink:   srv.URL + "/act_webdev/montgomery/showdetail2.jsp",
	}
	cfg := models.JurisdictionConfig{Key: "montgomery", Method: models.MethodHTTP}

	fields, err := s.Extract(context.Background(), rec, cfg)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if fields.TaxAmount == nil || *fields.TaxAmount != 1234.56 {
		t.Errorf("TaxAmount = %v, want 1234.56", fields.TaxAmount)
	}
	if !strings.Contains(gotQuery, "can=0003510100300") || !strings.Contains(gotQuery, "ownerno=0") {
		t.Errorf("query = %q, want can and ownerno injected", gotQuery)
	}
	if fields.AccountNumber != "0003510100300" {
		t.Errorf("AccountNumber = %q", fields.AccountNumber)
	}
}

func TestExtractPrefersPlausibleOverAssessedValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><table>
			<tr><td>Assessed Value</td><td>$500,000</td></tr>
			<tr><td>Total Amount Due</td><td>$500,000</td><td>$8,314.99</td></tr>
		</table></body></html>`))
	}))
	defer srv.Close()

	s := newTestStrategy(t)
	rec := models.PropertyRecord{PropertyID: "P3", TaxBillLink: srv.URL}
	cfg := models.JurisdictionConfig{Key: "fort bend", Method: models.MethodHTTP}

	fields, err := s.Extract(context.Background(), rec, cfg)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if fields.PropertyValue == nil || *fields.PropertyValue != 500000 {
		t.Errorf("PropertyValue = %v, want 500000", fields.PropertyValue)
	}
	if fields.TaxAmount == nil || *fields.TaxAmount != 8314.99 {
		t.Errorf("TaxAmount = %v, want 8314.99 (assessed value must be rejected)", fields.TaxAmount)
	}
}

func TestExtractKeywordLineFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><div>Account summary</div>\n<div>Taxes due for 2025: $2,500.00</div></body></html>"))
	}))
	defer srv.Close()

	s := newTestStrategy(t)
	rec := models.PropertyRecord{PropertyID: "P4", TaxBillLink: srv.URL}
	cfg := models.JurisdictionConfig{Key: "chambers", Method: models.MethodHTTP}

	fields, err := s.Extract(context.Background(), rec, cfg)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if fields.TaxAmount == nil || *fields.TaxAmount != 2500 {
		t.Errorf("TaxAmount = %v, want 2500", fields.TaxAmount)
	}
}

func TestExtractNoAmountFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>Session expired.</p></body></html>`))
	}))
	defer srv.Close()

	s := newTestStrategy(t)
	rec := models.PropertyRecord{PropertyID: "P5", TaxBillLink: srv.URL}
	cfg := models.JurisdictionConfig{Key: "galveston", Method: models.MethodHTTP}

	_, err := s.Extract(context.Background(), rec, cfg)
	if !errors.Is(err, ErrNoAmount) {
		t.Fatalf("err = %v, want ErrNoAmount", err)
	}
	if IsTransient(err) {
		t.Error("missing amounts must not be retried")
	}
}

func TestExtractServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := newTestStrategy(t)
	rec := models.PropertyRecord{PropertyID: "P6", TaxBillLink: srv.URL}
	cfg := models.JurisdictionConfig{Key: "galveston", Method: models.MethodHTTP}

	_, err := s.Extract(context.Background(), rec, cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsTransient(err) {
		t.Errorf("503 should be transient, got %v", err)
	}
}

func TestExtractSkipsContaminatedCells(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><table>
			<tr><td>Total Amount Due</td><td>var total = "$999,999.00"</td><td>$1,500.00</td></tr>
		</table></body></html>`))
	}))
	defer srv.Close()

	s := newTestStrategy(t)
	rec := models.PropertyRecord{PropertyID: "P7", TaxBillLink: srv.URL}
	cfg := models.JurisdictionConfig{Key: "galveston", Method: models.MethodHTTP}

	fields, err := s.Extract(context.Background(), rec, cfg)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if fields.TaxAmount == nil || *fields.TaxAmount != 1500 {
		t.Errorf("TaxAmount = %v, want 1500 from the clean cell", fields.TaxAmount)
	}
}

func TestAccountNumberFor(t *testing.T) {
	tests := []struct {
		name string
		rec  models.PropertyRecord
		link string
		want string
	}{
		{"record field wins", models.PropertyRecord{AccountNumber: "A-1"}, "https://x.gov/?can=999", "A-1"},
		{"can parameter", models.PropertyRecord{}, "https://x.gov/detail?can=0003510100300", "0003510100300"},
		{"parcel parameter", models.PropertyRecord{}, "https://x.gov/detail?parcel=50138249", "50138249"},
		{"digits in path", models.PropertyRecord{}, "https://x.gov/bills/123456789/view", "123456789"},
		{"nothing", models.PropertyRecord{}, "https://x.gov/search", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := accountNumberFor(tt.rec, tt.link); got != tt.want {
				t.Errorf("accountNumberFor = %q, want %q", got, tt.want)
			}
		})
	}
}
