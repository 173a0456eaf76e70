// Package calc implements the earthing calculation engine: grid resistance,
// touch/step voltages, and conductor sizing per the IEEE 80 formula family.
// Every function is pure and deterministic; identical inputs always yield
// identical outputs, which the report QA cross-check relies on.
package calc

import (
	"math"

	"github.com/EarthmarkAI/earthmark-mvp/engine/domain"
)

// Method selects a grid-resistance strategy. The set is closed: callers
// pick explicitly, nothing is inferred from the input shape.
type Method string

const (
	// MethodLaurent is the simplified lumped-parameter formula: the grid as
	// an equivalent plate plus the buried conductor term.
	MethodLaurent Method = "laurent"
	// MethodSverak adds the mesh correction for burial depth and the
	// grid's areal extent.
	MethodSverak Method = "sverak"
	// MethodSchwarz models the horizontal conductor lattice with the
	// aspect-ratio coefficients k1/k2.
	MethodSchwarz Method = "schwarz"
)

type resistanceFn func(rho float64, g domain.GridGeometry) (float64, error)

// methods is the closed strategy set.
var methods = map[Method]resistanceFn{
	MethodLaurent: laurent,
	MethodSverak:  sverak,
	MethodSchwarz: schwarz,
}

// GridResistance computes the earth grid's resistance to remote earth in
// ohms using the named method over the soil's single-layer equivalent
// resistivity.
func GridResistance(soil domain.SoilModel, g domain.GridGeometry, method Method) (float64, error) {
	if err := domain.ValidateSoilModel(soil); err != nil {
		return 0, err
	}
	if err := domain.ValidateGridGeometry(g); err != nil {
		return 0, err
	}
	fn, ok := methods[method]
	if !ok {
		return 0, domain.NewFieldError("grid_resistance", "method", string(method), domain.ErrUnknownMethod)
	}
	return fn(soil.ApparentResistivity(), g)
}

// laurent: Rg = ρ/(4r) + ρ/L with r the radius of the equivalent plate.
func laurent(rho float64, g domain.GridGeometry) (float64, error) {
	r := math.Sqrt(g.Area() / math.Pi)
	return rho/(4*r) + rho/g.ConductorLength, nil
}

// sverak: Rg = ρ [ 1/L + 1/√(20A) (1 + 1/(1 + h√(20/A))) ].
func sverak(rho float64, g domain.GridGeometry) (float64, error) {
	a := g.Area()
	depthTerm := 1 + 1/(1+g.BurialDepth*math.Sqrt(20/a))
	return rho * (1/g.ConductorLength + depthTerm/math.Sqrt(20*a)), nil
}

// schwarz: Rg = ρ/(πL) [ ln(2L/a') + k1 L/√A − k2 ] for the horizontal
// lattice alone (no rod bed is modelled). a' = √(d·2h) for a conductor of
// diameter d buried at depth h.
func schwarz(rho float64, g domain.GridGeometry) (float64, error) {
	if g.ConductorSize <= 0 {
		return 0, domain.NewFieldError("grid_resistance", "conductor_size", g.ConductorSize, domain.ErrInvalidGeometry)
	}
	d := conductorDiameter(g.ConductorSize)
	aPrime := math.Sqrt(d * 2 * g.BurialDepth)
	sqrtA := math.Sqrt(g.Area())
	k1, k2 := schwarzCoefficients(g)
	l := g.ConductorLength
	return rho / (math.Pi * l) * (math.Log(2*l/aPrime) + k1*l/sqrtA - k2), nil
}

// schwarzCoefficients returns the k1/k2 lattice coefficients, linearly
// interpolated over the burial-depth ratio between the published fits at
// h = 0, h = √A/10, and h = √A/6.
func schwarzCoefficients(g domain.GridGeometry) (k1, k2 float64) {
	x := g.Length / g.Width
	if x < 1 {
		x = 1 / x
	}
	sqrtA := math.Sqrt(g.Area())

	type fit struct{ ratio, a1, b1, a2, b2 float64 }
	fits := []fit{
		{0, -0.04, 1.41, 0.15, 5.50},
		{1.0 / 10, -0.05, 1.20, 0.10, 4.68},
		{1.0 / 6, -0.05, 1.13, -0.05, 4.40},
	}

	r := g.BurialDepth / sqrtA
	if r <= fits[0].ratio {
		return fits[0].a1*x + fits[0].b1, fits[0].a2*x + fits[0].b2
	}
	for i := 1; i < len(fits); i++ {
		if r <= fits[i].ratio {
			lo, hi := fits[i-1], fits[i]
			t := (r - lo.ratio) / (hi.ratio - lo.ratio)
			k1 = lerp(lo.a1*x+lo.b1, hi.a1*x+hi.b1, t)
			k2 = lerp(lo.a2*x+lo.b2, hi.a2*x+hi.b2, t)
			return k1, k2
		}
	}
	last := fits[len(fits)-1]
	return last.a1*x + last.b1, last.a2*x + last.b2
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// conductorDiameter converts a cross-section in mm² to the equivalent
// round-conductor diameter in metres.
func conductorDiameter(crossSectionMM2 float64) float64 {
	return 2 * math.Sqrt(crossSectionMM2*1e-6/math.Pi)
}
