// Package domain defines the core types, constants, and validation for the
// Earthmark engine. It acts as the validation gate at pipeline entry points:
// loose project payloads are re-validated here into the strict schema before
// any calculation runs.
package domain

// SchemaVersion is the project-input schema this build accepts.
const SchemaVersion = "1"

// ResistivityMeasurement is a single soil resistivity reading at depth.
type ResistivityMeasurement struct {
	Depth       float64 `json:"depth"`       // metres, > 0
	Resistivity float64 `json:"resistivity"` // ohm-metres, > 0
}

// TwoLayerModel is an optional two-layer soil interpretation.
type TwoLayerModel struct {
	TopResistivity    float64 `json:"top_resistivity"`
	BottomResistivity float64 `json:"bottom_resistivity"`
	TopLayerDepth     float64 `json:"top_layer_depth"`
}

// SoilModel is an ordered resistivity profile. Depths are strictly
// increasing and all resistivities positive and finite.
type SoilModel struct {
	Measurements []ResistivityMeasurement `json:"measurements"`
	TwoLayer     *TwoLayerModel           `json:"two_layer,omitempty"`
}

// ApparentResistivity returns the single-layer equivalent resistivity:
// the depth-weighted mean of the measured profile.
func (s SoilModel) ApparentResistivity() float64 {
	if len(s.Measurements) == 0 {
		return 0
	}
	var sum, span float64
	prev := 0.0
	for _, m := range s.Measurements {
		d := m.Depth - prev
		sum += m.Resistivity * d
		span += d
		prev = m.Depth
	}
	if span <= 0 {
		return s.Measurements[0].Resistivity
	}
	return sum / span
}

// GridGeometry describes the buried earth grid.
type GridGeometry struct {
	Length          float64 `json:"length"`           // metres
	Width           float64 `json:"width"`            // metres
	ConductorLength float64 `json:"conductor_length"` // total buried conductor, metres
	BurialDepth     float64 `json:"burial_depth"`     // metres
	MeshSpacing     float64 `json:"mesh_spacing"`     // metres between parallel conductors
	ConductorSize   float64 `json:"conductor_size"`   // installed cross-section, mm²
}

// Area returns length × width in m².
func (g GridGeometry) Area() float64 { return g.Length * g.Width }

// Perimeter returns the grid perimeter in metres.
func (g GridGeometry) Perimeter() float64 { return 2 * (g.Length + g.Width) }

// FaultParameters describes the earth-fault scenario driving the design.
type FaultParameters struct {
	ThreePhaseCurrent  float64 `json:"three_phase_current"`            // amperes
	GroundFaultCurrent float64 `json:"ground_fault_current,omitempty"` // amperes, optional
	ClearanceDuration  float64 `json:"clearance_duration"`             // seconds, > 0
	DivisionFactor     float64 `json:"division_factor,omitempty"`      // Sf, default 1.0
	DecrementFactor    float64 `json:"decrement_factor,omitempty"`     // Df, default 1.0
}

// GridCurrent is the current actually discharged by the grid: the ground
// fault current when measured, otherwise the three-phase level, scaled by
// the division and decrement factors.
func (f FaultParameters) GridCurrent() float64 {
	i := f.ThreePhaseCurrent
	if f.GroundFaultCurrent > 0 {
		i = f.GroundFaultCurrent
	}
	sf, df := f.DivisionFactor, f.DecrementFactor
	if sf <= 0 {
		sf = 1
	}
	if df <= 0 {
		df = 1
	}
	return i * sf * df
}

// Material identifies an earthing conductor material.
type Material string

const (
	MaterialCopper    Material = "copper"
	MaterialAluminium Material = "aluminium"
	MaterialSteel     Material = "steel"
)

// ValidMaterials is the set of recognised conductor materials.
var ValidMaterials = map[Material]bool{
	MaterialCopper: true, MaterialAluminium: true, MaterialSteel: true,
}

// StandardCrossSections are the commercially available conductor sizes in
// mm², ascending. Sizing always rounds up to a member of this list.
var StandardCrossSections = []float64{16, 25, 35, 50, 70, 95, 120, 150, 185, 240, 300}

// Verdict is a single pass/fail compliance outcome.
type Verdict bool

const (
	Pass Verdict = true
	Fail Verdict = false
)

func (v Verdict) String() string {
	if v == Pass {
		return "pass"
	}
	return "fail"
}

// Compliance collects the per-criterion verdicts.
type Compliance struct {
	Touch     Verdict `json:"touch"`
	Step      Verdict `json:"step"`
	Conductor Verdict `json:"conductor"`
}

// CalculationResult is the immutable record of one calculation invocation.
// A new invocation always yields a new value; nothing mutates one after
// creation, which is what makes report reproduction auditable.
type CalculationResult struct {
	GridResistance        float64    `json:"grid_resistance"`         // ohms
	GroundPotentialRise   float64    `json:"ground_potential_rise"`   // volts
	TouchTolerable        float64    `json:"touch_voltage_tolerable"` // volts
	TouchActual           float64    `json:"touch_voltage_actual"`    // volts
	StepTolerable         float64    `json:"step_voltage_tolerable"`  // volts
	StepActual            float64    `json:"step_voltage_actual"`     // volts
	RequiredConductorSize float64    `json:"required_conductor_size"` // mm², standard
	Compliance            Compliance `json:"compliance"`
	Method                string     `json:"method_used"`
}

// ProjectFingerprint is the structural identity of a project used by the
// similar-project retrieval mode: no free text, only classifier fields.
type ProjectFingerprint struct {
	VoltageClass string `json:"voltage_class"` // e.g. "33kV"
	ProjectType  string `json:"project_type"`  // e.g. "substation"
}

// VoltageClasses lists the recognised nominal system voltages.
var VoltageClasses = map[string]bool{
	"11kV": true, "22kV": true, "33kV": true, "66kV": true, "110kV": true,
	"132kV": true, "220kV": true, "275kV": true, "330kV": true,
}

// ProjectTypes lists the recognised installation categories.
var ProjectTypes = map[string]bool{
	"substation": true, "solar_farm": true, "wind_farm": true,
	"commercial": true, "industrial": true,
}
