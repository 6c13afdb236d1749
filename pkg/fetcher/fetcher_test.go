package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGetSetsIdentityHeaders(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := New(5*time.Second, nil, "test-agent/1.0", nil)
	body, finalURL, err := f.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotUA != "test-agent/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if !strings.Contains(gotAccept, "text/html") {
		t.Errorf("Accept = %q, want text/html preference", gotAccept)
	}
	if !strings.Contains(string(body), "ok") {
		t.Errorf("body = %q", body)
	}
	if finalURL != srv.URL {
		t.Errorf("finalURL = %q, want %q", finalURL, srv.URL)
	}
}

func TestGetFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/detail?can=0003510100300", http.StatusFound)
	})
	mux.HandleFunc("/detail", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("detail page"))
	})

	f := New(5*time.Second, nil, "ua", nil)
	_, finalURL, err := f.Get(context.Background(), srv.URL+"/start")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !strings.Contains(finalURL, "can=0003510100300") {
		t.Errorf("finalURL = %q, want redirect target with query preserved", finalURL)
	}
}

func TestGetStatusError(t *testing.T) {
	tests := []struct {
		name          string
		code          int
		wantTransient bool
	}{
		{"not found", http.StatusNotFound, false},
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer srv.Close()

			f := New(5*time.Second, nil, "ua", nil)
			_, _, err := f.Get(context.Background(), srv.URL)

			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v, want *StatusError", err)
			}
			if se.Code != tt.code {
				t.Errorf("Code = %d, want %d", se.Code, tt.code)
			}
			if se.Transient() != tt.wantTransient {
				t.Errorf("Transient() = %v, want %v", se.Transient(), tt.wantTransient)
			}
		})
	}
}

func TestGetDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><table><tr><td>Total Amount Due</td><td>$1,234.56</td></tr></table></body></html>`))
	}))
	defer srv.Close()

	f := New(5*time.Second, nil, "ua", nil)
	doc, _, err := f.GetDocument(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got := doc.Find("td").First().Text(); got != "Total Amount Due" {
		t.Errorf("first td = %q", got)
	}
}

func TestGetContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	f := New(5*time.Second, nil, "ua", nil)
	if _, _, err := f.Get(ctx, srv.URL); err == nil {
		t.Error("Get should fail when the context expires")
	}
}
