package calc

import (
	"errors"
	"math"
	"testing"

	"github.com/EarthmarkAI/earthmark-mvp/engine/domain"
)

// referenceSoil is a uniform 100 ohm-m profile.
func referenceSoil() domain.SoilModel {
	return domain.SoilModel{
		Measurements: []domain.ResistivityMeasurement{
			{Depth: 1, Resistivity: 100},
		},
	}
}

// referenceGrid is a 50x50 m grid with 1100 m of 70 mm2 conductor at
// 0.5 m depth.
func referenceGrid() domain.GridGeometry {
	return domain.GridGeometry{
		Length:          50,
		Width:           50,
		ConductorLength: 1100,
		BurialDepth:     0.5,
		MeshSpacing:     5,
		ConductorSize:   70,
	}
}

func TestGridResistance_AllMethodsPositive(t *testing.T) {
	for _, m := range []Method{MethodLaurent, MethodSverak, MethodSchwarz} {
		rg, err := GridResistance(referenceSoil(), referenceGrid(), m)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", m, err)
		}
		if rg <= 0 || math.IsNaN(rg) || math.IsInf(rg, 0) {
			t.Errorf("%s: resistance %v not a positive finite value", m, rg)
		}
	}
}

func TestGridResistance_MethodsAgreeOnReferenceCase(t *testing.T) {
	// For a conventionally proportioned grid the three formulas land
	// within a few percent of each other (here, around 1 ohm).
	results := map[Method]float64{}
	for _, m := range []Method{MethodLaurent, MethodSverak, MethodSchwarz} {
		rg, err := GridResistance(referenceSoil(), referenceGrid(), m)
		if err != nil {
			t.Fatalf("%s: %v", m, err)
		}
		results[m] = rg
	}
	for a, ra := range results {
		for b, rb := range results {
			if diff := math.Abs(ra-rb) / ra; diff > 0.05 {
				t.Errorf("%s=%.4f and %s=%.4f differ by %.1f%%, want <= 5%%", a, ra, b, rb, diff*100)
			}
		}
	}
}

func TestGridResistance_Deterministic(t *testing.T) {
	first, err := GridResistance(referenceSoil(), referenceGrid(), MethodSchwarz)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := GridResistance(referenceSoil(), referenceGrid(), MethodSchwarz)
		if err != nil {
			t.Fatal(err)
		}
		if again != first {
			t.Fatalf("run %d: got %v, want %v", i, again, first)
		}
	}
}

func TestGridResistance_MoreConductorLowersResistance(t *testing.T) {
	for _, m := range []Method{MethodLaurent, MethodSverak, MethodSchwarz} {
		prev := math.Inf(1)
		for _, l := range []float64{800, 1100, 1400} {
			g := referenceGrid()
			g.ConductorLength = l
			rg, err := GridResistance(referenceSoil(), g, m)
			if err != nil {
				t.Fatalf("%s L=%v: %v", m, l, err)
			}
			if rg >= prev {
				t.Errorf("%s: resistance %v at L=%v not below %v", m, rg, l, prev)
			}
			prev = rg
		}
	}
}

func TestGridResistance_ScalesWithResistivity(t *testing.T) {
	soil := referenceSoil()
	low, err := GridResistance(soil, referenceGrid(), MethodSverak)
	if err != nil {
		t.Fatal(err)
	}
	soil.Measurements[0].Resistivity = 200
	high, err := GridResistance(soil, referenceGrid(), MethodSverak)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(high-2*low) > 1e-9 {
		t.Errorf("doubling resistivity: got %v, want %v", high, 2*low)
	}
}

func TestGridResistance_UnknownMethod(t *testing.T) {
	_, err := GridResistance(referenceSoil(), referenceGrid(), Method("wenner"))
	if !errors.Is(err, domain.ErrUnknownMethod) {
		t.Fatalf("got %v, want ErrUnknownMethod", err)
	}
	if !domain.IsInput(err) {
		t.Error("unknown method should classify as input error")
	}
}

func TestGridResistance_InvalidInputs(t *testing.T) {
	g := referenceGrid()
	g.ConductorLength = 0
	if _, err := GridResistance(referenceSoil(), g, MethodLaurent); !errors.Is(err, domain.ErrInvalidGeometry) {
		t.Errorf("zero conductor length: got %v, want ErrInvalidGeometry", err)
	}

	if _, err := GridResistance(domain.SoilModel{}, referenceGrid(), MethodLaurent); !errors.Is(err, domain.ErrInvalidSoilModel) {
		t.Errorf("empty soil: got %v, want ErrInvalidSoilModel", err)
	}
}

func TestGridResistance_SchwarzNeedsConductorSize(t *testing.T) {
	g := referenceGrid()
	g.ConductorSize = 0
	_, err := GridResistance(referenceSoil(), g, MethodSchwarz)
	if !errors.Is(err, domain.ErrInvalidGeometry) {
		t.Fatalf("got %v, want ErrInvalidGeometry", err)
	}
	var fe *domain.FieldError
	if !errors.As(err, &fe) || fe.Field != "conductor_size" {
		t.Errorf("expected a conductor_size field error, got %v", err)
	}
}

func TestSchwarzCoefficients_DeepGridUsesLastFit(t *testing.T) {
	g := referenceGrid()
	g.BurialDepth = 10 // ratio above sqrt(A)/6
	k1, k2 := schwarzCoefficients(g)
	if k1 != -0.05*1+1.13 || k2 != -0.05*1+4.40 {
		t.Errorf("got k1=%v k2=%v, want the h=sqrt(A)/6 fit", k1, k2)
	}
}
