package services_test

import (
	"errors"
	"strings"
	"testing"

	"slidecast/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("exit status 1")
	err := services.Wrap(services.ErrConversionFailed, "convert", "soffice", "renderer exited", base)
	if !errors.Is(err, services.ErrConversionFailed) {
		t.Fatal("expected wrapped error to match marker")
	}
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped error to retain cause")
	}
	if !strings.Contains(err.Error(), "convert: soffice: renderer exited") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestWrapNilMarkerDefaultsToConversionFailed(t *testing.T) {
	err := services.Wrap(nil, "convert", "", "something broke", nil)
	if !errors.Is(err, services.ErrConversionFailed) {
		t.Fatalf("expected default marker, got %v", err)
	}
}

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{services.Wrap(services.ErrTimeout, "convert", "soffice", "deadline exceeded", nil), "ConversionTimeout"},
		{services.Wrap(services.ErrResource, "workspace", "acquire", "disk full", nil), "ResourceError"},
		{services.Wrap(services.ErrRasterizationFailed, "rasterize", "pdftoppm", "no pages", nil), "RasterizationFailed"},
		{services.Wrap(services.ErrConversionFailed, "convert", "soffice", "bad input", nil), "ConversionFailed"},
		{services.Wrap(services.ErrNotFound, "registry", "get", "unknown job", nil), "NotFound"},
		{errors.New("anything else"), "ConversionFailed"},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestDetailStripsSentinelPrefix(t *testing.T) {
	err := services.Wrap(services.ErrTimeout, "convert", "soffice", "budget exceeded", nil)
	detail := services.Detail(err)
	if strings.HasPrefix(detail, "timeout:") {
		t.Fatalf("expected sentinel prefix stripped, got %q", detail)
	}
	if !strings.Contains(detail, "budget exceeded") {
		t.Fatalf("expected detail preserved, got %q", detail)
	}
}
