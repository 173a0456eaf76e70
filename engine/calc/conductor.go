package calc

import (
	"math"

	"github.com/EarthmarkAI/earthmark-mvp/engine/domain"
)

// adiabaticK is the material coefficient k in S = I·√t / k (A·s^½ per mm²):
// all fault heat is assumed to stay in the conductor for the clearance
// time. Aluminium and steel are scaled from copper by the usual k-ratios.
var adiabaticK = map[domain.Material]float64{
	domain.MaterialCopper:    446,
	domain.MaterialAluminium: 290,
	domain.MaterialSteel:     156,
}

// SizeConductor returns the minimum standard cross-section (mm²) able to
// carry faultCurrent (A) for duration (s) without exceeding the material's
// temperature rise. The raw adiabatic value is always rounded UP to a
// member of domain.StandardCrossSections; rounding down would undersize
// the conductor.
func SizeConductor(faultCurrent, duration float64, material domain.Material) (float64, error) {
	if faultCurrent <= 0 {
		return 0, domain.NewFieldError("adiabatic_sizing", "fault_current", faultCurrent, domain.ErrInvalidFaultParams)
	}
	if duration <= 0 {
		return 0, domain.NewFieldError("adiabatic_sizing", "duration", duration, domain.ErrInvalidFaultParams)
	}
	k, ok := adiabaticK[material]
	if !ok {
		return 0, domain.NewFieldError("adiabatic_sizing", "material", material, domain.ErrUnsupportedMaterial)
	}

	raw := faultCurrent * math.Sqrt(duration) / k
	for _, size := range domain.StandardCrossSections {
		if size >= raw {
			return size, nil
		}
	}
	return 0, domain.NewFieldError("adiabatic_sizing", "required_cross_section", raw, domain.ErrInvalidFaultParams)
}

// RawAdiabaticSection exposes the unrounded S = I·√t/k value for reporting.
func RawAdiabaticSection(faultCurrent, duration float64, material domain.Material) (float64, error) {
	k, ok := adiabaticK[material]
	if !ok {
		return 0, domain.NewFieldError("adiabatic_sizing", "material", material, domain.ErrUnsupportedMaterial)
	}
	if faultCurrent <= 0 || duration <= 0 {
		return 0, domain.NewFieldError("adiabatic_sizing", "fault_current", faultCurrent, domain.ErrInvalidFaultParams)
	}
	return faultCurrent * math.Sqrt(duration) / k, nil
}
