package extract

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"taxharvest/pkg/fetcher"
)

type fakeNetErr struct{}

func (fakeNetErr) Error() string   { return "read tcp: connection reset" }
func (fakeNetErr) Timeout() bool   { return true }
func (fakeNetErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"wrapped transient", Transient(errors.New("page load flake")), true},
		{"deadline", context.DeadlineExceeded, true},
		{"deadline wrapped", fmt.Errorf("navigating: %w", context.DeadlineExceeded), true},
		{"caller cancel", context.Canceled, false},
		{"net error", fakeNetErr{}, true},
		{"server error", &fetcher.StatusError{Code: 503}, true},
		{"rate limited", &fetcher.StatusError{Code: 429}, true},
		{"not found", &fetcher.StatusError{Code: 404}, false},
		{"requires manual", ErrRequiresManual, false},
		{"requires manual wrapped", fmt.Errorf("captcha: %w", ErrRequiresManual), false},
		{"no amount", ErrNoAmount, false},
		{"plain error", errors.New("selector not found"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTransientNil(t *testing.T) {
	if Transient(nil) != nil {
		t.Error("Transient(nil) must stay nil")
	}
}
