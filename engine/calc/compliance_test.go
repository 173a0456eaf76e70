package calc

import (
	"errors"
	"testing"

	"github.com/EarthmarkAI/earthmark-mvp/engine/domain"
)

func referenceStudy() Study {
	return Study{
		Soil:     referenceSoil(),
		Grid:     referenceGrid(),
		Fault:    referenceFault(),
		Surface:  SurfaceLayer{Resistivity: 3000, Thickness: 0.1},
		Material: domain.MaterialCopper,
		Method:   MethodSverak,
	}
}

func TestEvaluateCompliance_VerdictsMatchComparisons(t *testing.T) {
	result, err := EvaluateCompliance(referenceStudy())
	if err != nil {
		t.Fatal(err)
	}

	if got := result.Compliance.Touch; got != domain.Verdict(result.TouchActual <= result.TouchTolerable) {
		t.Errorf("touch verdict %v contradicts actual=%.1f tolerable=%.1f", got, result.TouchActual, result.TouchTolerable)
	}
	if got := result.Compliance.Step; got != domain.Verdict(result.StepActual <= result.StepTolerable) {
		t.Errorf("step verdict %v contradicts actual=%.1f tolerable=%.1f", got, result.StepActual, result.StepTolerable)
	}
	if got := result.Compliance.Conductor; got != domain.Verdict(referenceGrid().ConductorSize >= result.RequiredConductorSize) {
		t.Errorf("conductor verdict %v contradicts installed=%.0f required=%.0f", got, referenceGrid().ConductorSize, result.RequiredConductorSize)
	}
	if result.Method != string(MethodSverak) {
		t.Errorf("method %q not recorded", result.Method)
	}
}

func TestEvaluateCompliance_UndersizedConductorFails(t *testing.T) {
	s := referenceStudy()
	s.Grid.ConductorSize = 16
	s.Fault.ThreePhaseCurrent = 25000
	s.Fault.ClearanceDuration = 1

	result, err := EvaluateCompliance(s)
	if err != nil {
		t.Fatal(err)
	}
	if result.Compliance.Conductor != domain.Fail {
		t.Errorf("16 mm2 against a 25 kA / 1 s fault should fail, required %v", result.RequiredConductorSize)
	}
}

func TestEvaluateCompliance_Reproducible(t *testing.T) {
	first, err := EvaluateCompliance(referenceStudy())
	if err != nil {
		t.Fatal(err)
	}
	second, err := EvaluateCompliance(referenceStudy())
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("identical studies diverged:\n%+v\n%+v", first, second)
	}
}

func TestEvaluateCompliance_PropagatesInputErrors(t *testing.T) {
	s := referenceStudy()
	s.Method = Method("nope")
	if _, err := EvaluateCompliance(s); !errors.Is(err, domain.ErrUnknownMethod) {
		t.Errorf("bad method: got %v", err)
	}

	s = referenceStudy()
	s.Material = domain.Material("brass")
	if _, err := EvaluateCompliance(s); !errors.Is(err, domain.ErrUnsupportedMaterial) {
		t.Errorf("bad material: got %v", err)
	}
}
