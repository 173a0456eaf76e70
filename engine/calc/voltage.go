package calc

import (
	"math"

	"github.com/EarthmarkAI/earthmark-mvp/engine/domain"
)

// SurfaceLayer describes the optional high-resistivity surface dressing
// (crushed rock, asphalt) above the grid. A zero value means bare soil.
type SurfaceLayer struct {
	Resistivity float64 // ohm-m
	Thickness   float64 // metres
}

// VoltageSet carries the touch/step comparison for one fault scenario.
// Tolerable values come from the body-current criterion; actual values from
// the grid's geometry and the current it discharges.
type VoltageSet struct {
	TouchTolerable float64
	StepTolerable  float64
	TouchActual    float64
	StepActual     float64
	GPR            float64
}

// Body-current constants: k/√t with k per assumed body weight.
const (
	bodyFactor50kg = 0.116
	bodyFactor70kg = 0.157
)

// TouchStepVoltage evaluates tolerable and actual touch/step voltages for a
// grid of known resistance. heavyBody selects the 70 kg criterion; the
// default is the more conservative 50 kg.
func TouchStepVoltage(gridResistance float64, soil domain.SoilModel, g domain.GridGeometry, fault domain.FaultParameters, surface SurfaceLayer, heavyBody bool) (VoltageSet, error) {
	if err := domain.ValidateFaultParameters(fault); err != nil {
		return VoltageSet{}, err
	}
	if err := domain.ValidateSoilModel(soil); err != nil {
		return VoltageSet{}, err
	}
	if err := domain.ValidateGridGeometry(g); err != nil {
		return VoltageSet{}, err
	}
	if gridResistance <= 0 {
		return VoltageSet{}, domain.NewFieldError("touch_step_voltage", "grid_resistance", gridResistance, domain.ErrInvalidGeometry)
	}
	if surface.Resistivity > 0 && surface.Thickness <= 0 {
		return VoltageSet{}, domain.NewFieldError("touch_step_voltage", "surface_thickness", surface.Thickness, domain.ErrInvalidSoilModel)
	}

	rho := soil.ApparentResistivity()
	k := bodyFactor50kg
	if heavyBody {
		k = bodyFactor70kg
	}

	// Surface derating. Without a dressing layer the foot contact
	// resistance is set by the native soil and Cs is 1.
	cs, rhoS := 1.0, rho
	if surface.Resistivity > rho {
		rhoS = surface.Resistivity
		cs = 1 - 0.09*(1-rho/rhoS)/(2*surface.Thickness+0.09)
	}

	sqrtT := math.Sqrt(fault.ClearanceDuration)
	set := VoltageSet{
		TouchTolerable: (1000 + 1.5*cs*rhoS) * k / sqrtT,
		StepTolerable:  (1000 + 6*cs*rhoS) * k / sqrtT,
	}

	ig := fault.GridCurrent()
	set.GPR = ig * gridResistance

	n := effectiveConductors(g)
	ki := 0.644 + 0.148*n
	km := meshFactor(g, n)
	ks := stepFactor(g, n)

	set.TouchActual = rho * km * ki * ig / g.ConductorLength
	set.StepActual = rho * ks * ki * ig / (0.75 * g.ConductorLength)

	// The mesh voltage cannot exceed the full grid potential rise.
	if set.TouchActual > set.GPR {
		set.TouchActual = set.GPR
	}
	return set, nil
}

// effectiveConductors is the geometric factor n = na·nb: the equivalent
// number of parallel conductors of a rectangular grid. Grids too sparse for
// the mesh formulas are evaluated at its lower bound of 2.
func effectiveConductors(g domain.GridGeometry) float64 {
	lp := g.Perimeter()
	na := 2 * g.ConductorLength / lp
	nb := math.Sqrt(lp / (4 * math.Sqrt(g.Area())))
	n := na * nb
	if n < 2 {
		n = 2
	}
	return n
}

// meshFactor is Km, the geometry factor of the worst-case mesh corner.
func meshFactor(g domain.GridGeometry, n float64) float64 {
	d := conductorDiameter(g.ConductorSize)
	if g.ConductorSize <= 0 {
		// Sizing hasn't been chosen yet; evaluate at the smallest standard
		// conductor, which maximises Km.
		d = conductorDiameter(domain.StandardCrossSections[0])
	}
	h := g.BurialDepth
	spacing := g.MeshSpacing

	kii := math.Pow(2*n, -2/n) // no rod bed: corner meshes carry more current
	kh := math.Sqrt(1 + h/1.0)

	geom := spacing*spacing/(16*h*d) + (spacing+2*h)*(spacing+2*h)/(8*spacing*d) - h/(4*d)
	return 1 / (2 * math.Pi) * (math.Log(geom) + kii/kh*math.Log(8/(math.Pi*(2*n-1))))
}

// stepFactor is Ks, the geometry factor of the worst-case step just outside
// the perimeter conductor.
func stepFactor(g domain.GridGeometry, n float64) float64 {
	h := g.BurialDepth
	spacing := g.MeshSpacing
	return 1 / math.Pi * (1/(2*h) + 1/(spacing+h) + (1-math.Pow(0.5, n-2))/spacing)
}
