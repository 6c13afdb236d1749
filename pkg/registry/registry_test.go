package registry

import (
	"testing"

	"taxharvest/models"
)

func TestResolveByJurisdictionName(t *testing.T) {
	r := New()

	tests := []struct {
		name         string
		jurisdiction string
		wantKey      string
		wantMethod   models.Method
	}{
		{"exact county name", "Montgomery", "montgomery", models.MethodHTTP},
		{"name inside longer text", "Montgomery County TX", "montgomery", models.MethodHTTP},
		{"case insensitive", "HARRIS", "harris", models.MethodBrowser},
		{"nc county", "Wayne County", "wayne", models.MethodBrowser},
		{"isd", "Aldine ISD", "aldine", models.MethodHTTP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := r.Resolve(tt.jurisdiction, "")
			if cfg == nil {
				t.Fatalf("Resolve(%q) = nil", tt.jurisdiction)
			}
			if cfg.Key != tt.wantKey {
				t.Errorf("Resolve(%q).Key = %q, want %q", tt.jurisdiction, cfg.Key, tt.wantKey)
			}
			if cfg.Method != tt.wantMethod {
				t.Errorf("Resolve(%q).Method = %q, want %q", tt.jurisdiction, cfg.Method, tt.wantMethod)
			}
		})
	}
}

func TestResolveFallsBackToURLPattern(t *testing.T) {
	r := New()

	cfg := r.Resolve("Unknown County", "https://actweb.acttax.com/act_webdev/montgomery/showdetail2.jsp?can=0003510100300")
	if cfg == nil {
		t.Fatal("expected URL-pattern fallback to resolve")
	}
	if cfg.Key != "montgomery" {
		t.Errorf("fallback resolved %q, want montgomery", cfg.Key)
	}
}

func TestResolveUnknownReturnsNil(t *testing.T) {
	r := New()
	if cfg := r.Resolve("Atlantis", "https://example.org/taxes"); cfg != nil {
		t.Errorf("Resolve unknown = %+v, want nil", cfg)
	}
}

func TestResolveEmptyInputs(t *testing.T) {
	r := New()
	if cfg := r.Resolve("", ""); cfg != nil {
		t.Errorf("Resolve empty = %+v, want nil", cfg)
	}
}

func TestRoutineAliases(t *testing.T) {
	r := New()

	vance := r.Resolve("Vance County", "")
	if vance == nil {
		t.Fatal("vance not resolved")
	}
	if vance.RoutineKey() != "wayne" {
		t.Errorf("vance routine = %q, want wayne", vance.RoutineKey())
	}

	harris := r.Resolve("Harris", "")
	if harris.RoutineKey() != "harris" {
		t.Errorf("harris routine = %q, want harris", harris.RoutineKey())
	}
}

func TestResolveCopiesEntry(t *testing.T) {
	r := New()
	a := r.Resolve("Montgomery", "")
	b := r.Resolve("Montgomery", "")
	a.Name = "mutated"
	if b.Name == "mutated" {
		t.Error("Resolve must return independent copies")
	}
}

func TestNewWith(t *testing.T) {
	custom := []models.JurisdictionConfig{{
		Key: "testonly", Name: "Test County",
		Method: models.MethodHTTP, URLPattern: "test.example.gov",
	}}
	r := NewWith(custom)

	if cfg := r.Resolve("Testonly Parish", ""); cfg == nil {
		t.Error("custom entry not resolved by name")
	}
	if cfg := r.Resolve("", "https://test.example.gov/bill/1"); cfg == nil {
		t.Error("custom entry not resolved by URL")
	}
	if cfg := r.Resolve("Montgomery", ""); cfg != nil {
		t.Error("default entries must not leak into custom registry")
	}
}
