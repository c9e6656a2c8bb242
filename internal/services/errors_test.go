package services_test

import (
	"errors"
	"testing"

	"newshound/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("connection refused")
	err := services.Wrap(services.ErrTransient, "twitter", "search", "request failed", base)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatal("expected wrapped error to match ErrTransient")
	}
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped error to match original error")
	}
	want := "transient failure: twitter: search: request failed: connection refused"
	if err.Error() != want {
		t.Fatalf("error = %q, want %q", err.Error(), want)
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "enrich", "analyze", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatal("nil marker should default to ErrTransient")
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation", services.Wrap(services.ErrValidation, "filter", "score", "", nil), false},
		{"configuration", services.Wrap(services.ErrConfiguration, "deliver", "send", "", nil), false},
		{"transient", services.Wrap(services.ErrTransient, "twitter", "search", "", nil), true},
		{"budget", services.Wrap(services.ErrBudget, "fetch", "reserve", "", nil), true},
		{"plain", errors.New("boom"), true},
	}
	for _, tc := range cases {
		if got := services.Retryable(tc.err); got != tc.want {
			t.Fatalf("%s: Retryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}
