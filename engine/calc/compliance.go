package calc

import (
	"github.com/EarthmarkAI/earthmark-mvp/engine/domain"
)

// Study is everything EvaluateCompliance needs for one full design check.
type Study struct {
	Soil      domain.SoilModel
	Grid      domain.GridGeometry
	Fault     domain.FaultParameters
	Surface   SurfaceLayer
	Material  domain.Material
	Method    Method
	HeavyBody bool // 70 kg body-current criterion instead of 50 kg
}

// EvaluateCompliance runs the full calculation chain and marks each safety
// criterion pass/fail by direct comparison: actual ≤ tolerable passes,
// installed conductor ≥ required passes. Out-of-range inputs fail with the
// relevant input error; nothing is clamped into validity, since a clamped
// input would mask an unsafe design.
func EvaluateCompliance(s Study) (domain.CalculationResult, error) {
	rg, err := GridResistance(s.Soil, s.Grid, s.Method)
	if err != nil {
		return domain.CalculationResult{}, err
	}

	volts, err := TouchStepVoltage(rg, s.Soil, s.Grid, s.Fault, s.Surface, s.HeavyBody)
	if err != nil {
		return domain.CalculationResult{}, err
	}

	required, err := SizeConductor(s.Fault.GridCurrent(), s.Fault.ClearanceDuration, s.Material)
	if err != nil {
		return domain.CalculationResult{}, err
	}

	return domain.CalculationResult{
		GridResistance:        rg,
		GroundPotentialRise:   volts.GPR,
		TouchTolerable:        volts.TouchTolerable,
		TouchActual:           volts.TouchActual,
		StepTolerable:         volts.StepTolerable,
		StepActual:            volts.StepActual,
		RequiredConductorSize: required,
		Compliance: domain.Compliance{
			Touch:     domain.Verdict(volts.TouchActual <= volts.TouchTolerable),
			Step:      domain.Verdict(volts.StepActual <= volts.StepTolerable),
			Conductor: domain.Verdict(s.Grid.ConductorSize >= required),
		},
		Method: string(s.Method),
	}, nil
}
