package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf_Taxonomy(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{ErrInvalidSoilModel, KindInput},
		{ErrInvalidGeometry, KindInput},
		{ErrUnknownMethod, KindInput},
		{ErrSchemaVersion, KindInput},
		{ErrEmbedderUnavailable, KindDependency},
		{ErrStoreUnavailable, KindDependency},
		{ErrDimensionMismatch, KindIntegrity},
		{ErrDuplicateIdentity, KindIntegrity},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Errorf("KindOf(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestKindOf_WrappedErrorKeepsClass(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NewFieldError("grid_resistance", "area", 0, ErrInvalidGeometry))
	if KindOf(wrapped) != KindInput {
		t.Fatal("wrapping must not change the handling class")
	}
	if !IsInput(wrapped) {
		t.Fatal("IsInput should see through wrapping")
	}
}

func TestKindOf_UnknownDefaultsToDependency(t *testing.T) {
	if got := KindOf(errors.New("mystery")); got != KindDependency {
		t.Fatalf("got %v, want KindDependency (the only safely retryable class)", got)
	}
}

func TestFieldError_Message(t *testing.T) {
	err := NewFieldError("adiabatic_sizing", "material", "brass", ErrUnsupportedMaterial)
	msg := err.Error()
	for _, want := range []string{"adiabatic_sizing", "material", "brass"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
	if !errors.Is(err, ErrUnsupportedMaterial) {
		t.Error("FieldError must unwrap to its sentinel")
	}
}
