package calc

import (
	"errors"
	"testing"

	"github.com/EarthmarkAI/earthmark-mvp/engine/domain"
)

func TestSizeConductor_RoundsUpToStandard(t *testing.T) {
	// 25 kA for 1 s in copper needs ~56 mm2, which rounds to 70.
	size, err := SizeConductor(25000, 1, domain.MaterialCopper)
	if err != nil {
		t.Fatal(err)
	}
	if size != 70 {
		t.Fatalf("got %v mm2, want 70", size)
	}

	raw, err := RawAdiabaticSection(25000, 1, domain.MaterialCopper)
	if err != nil {
		t.Fatal(err)
	}
	if raw <= 50 || raw >= 70 {
		t.Errorf("raw section %v should fall between the standard sizes 50 and 70", raw)
	}
}

func TestSizeConductor_AlwaysStandardSize(t *testing.T) {
	cases := []struct {
		current  float64
		duration float64
		material domain.Material
	}{
		{5000, 0.2, domain.MaterialCopper},
		{10000, 0.5, domain.MaterialCopper},
		{25000, 1, domain.MaterialAluminium},
		{25000, 1, domain.MaterialSteel},
		{40000, 3, domain.MaterialCopper},
	}
	standard := map[float64]bool{}
	for _, s := range domain.StandardCrossSections {
		standard[s] = true
	}
	for _, tc := range cases {
		size, err := SizeConductor(tc.current, tc.duration, tc.material)
		if err != nil {
			t.Fatalf("%+v: %v", tc, err)
		}
		if !standard[size] {
			t.Errorf("%+v: %v mm2 is not a standard cross-section", tc, size)
		}
		raw, err := RawAdiabaticSection(tc.current, tc.duration, tc.material)
		if err != nil {
			t.Fatal(err)
		}
		if size < raw {
			t.Errorf("%+v: standard size %v below required %v", tc, size, raw)
		}
	}
}

func TestSizeConductor_WeakerMaterialNeedsMore(t *testing.T) {
	cu, err := SizeConductor(25000, 1, domain.MaterialCopper)
	if err != nil {
		t.Fatal(err)
	}
	st, err := SizeConductor(25000, 1, domain.MaterialSteel)
	if err != nil {
		t.Fatal(err)
	}
	if st <= cu {
		t.Errorf("steel %v mm2 should exceed copper %v mm2", st, cu)
	}
}

func TestSizeConductor_UnsupportedMaterial(t *testing.T) {
	_, err := SizeConductor(25000, 1, domain.Material("brass"))
	if !errors.Is(err, domain.ErrUnsupportedMaterial) {
		t.Fatalf("got %v, want ErrUnsupportedMaterial", err)
	}
}

func TestSizeConductor_RejectsNonPositiveInputs(t *testing.T) {
	if _, err := SizeConductor(0, 1, domain.MaterialCopper); !errors.Is(err, domain.ErrInvalidFaultParams) {
		t.Errorf("zero current: got %v", err)
	}
	if _, err := SizeConductor(25000, 0, domain.MaterialCopper); !errors.Is(err, domain.ErrInvalidFaultParams) {
		t.Errorf("zero duration: got %v", err)
	}
}

func TestSizeConductor_BeyondLargestStandard(t *testing.T) {
	// An absurd fault level overflows the standard range rather than
	// silently clamping to 300 mm2.
	_, err := SizeConductor(500000, 3, domain.MaterialSteel)
	if !errors.Is(err, domain.ErrInvalidFaultParams) {
		t.Fatalf("got %v, want ErrInvalidFaultParams", err)
	}
}
