package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// ValidateSoilModel checks the profile invariants: at least one measurement,
// strictly increasing depths, positive finite resistivities.
func ValidateSoilModel(s SoilModel) error {
	if len(s.Measurements) == 0 {
		return NewFieldError("soil_model", "measurements", "[]", ErrInvalidSoilModel)
	}
	prev := 0.0
	for i, m := range s.Measurements {
		if m.Depth <= prev || math.IsInf(m.Depth, 0) || math.IsNaN(m.Depth) {
			return NewFieldError("soil_model", fmt.Sprintf("measurements[%d].depth", i), m.Depth, ErrInvalidSoilModel)
		}
		if m.Resistivity <= 0 || math.IsInf(m.Resistivity, 0) || math.IsNaN(m.Resistivity) {
			return NewFieldError("soil_model", fmt.Sprintf("measurements[%d].resistivity", i), m.Resistivity, ErrInvalidSoilModel)
		}
		prev = m.Depth
	}
	if tl := s.TwoLayer; tl != nil {
		if tl.TopResistivity <= 0 || tl.BottomResistivity <= 0 || tl.TopLayerDepth <= 0 {
			return NewFieldError("soil_model", "two_layer", *tl, ErrInvalidSoilModel)
		}
	}
	return nil
}

// ValidateGridGeometry checks the grid invariants used by every resistance
// method: positive area and conductor length, sane depth and spacing.
func ValidateGridGeometry(g GridGeometry) error {
	if g.Area() <= 0 {
		return NewFieldError("grid_geometry", "area", g.Area(), ErrInvalidGeometry)
	}
	if g.ConductorLength <= 0 {
		return NewFieldError("grid_geometry", "conductor_length", g.ConductorLength, ErrInvalidGeometry)
	}
	if g.BurialDepth <= 0 {
		return NewFieldError("grid_geometry", "burial_depth", g.BurialDepth, ErrInvalidGeometry)
	}
	if g.MeshSpacing <= 0 {
		return NewFieldError("grid_geometry", "mesh_spacing", g.MeshSpacing, ErrInvalidGeometry)
	}
	return nil
}

// ValidateFaultParameters checks the fault scenario invariants.
func ValidateFaultParameters(f FaultParameters) error {
	if f.ThreePhaseCurrent <= 0 {
		return NewFieldError("fault_parameters", "three_phase_current", f.ThreePhaseCurrent, ErrInvalidFaultParams)
	}
	if f.GroundFaultCurrent < 0 {
		return NewFieldError("fault_parameters", "ground_fault_current", f.GroundFaultCurrent, ErrInvalidFaultParams)
	}
	if f.ClearanceDuration <= 0 {
		return NewFieldError("fault_parameters", "clearance_duration", f.ClearanceDuration, ErrInvalidFaultParams)
	}
	return nil
}

// ProjectInput is the strict, versioned schema the calculation engine
// accepts. Arbitrary JSON from the orchestrator is re-validated into this
// shape at the boundary; nothing downstream trusts duck-typed access.
type ProjectInput struct {
	SchemaVersion      string             `json:"schema_version"`
	Fingerprint        ProjectFingerprint `json:"fingerprint"`
	Soil               SoilModel          `json:"soil"`
	SurfaceResistivity float64            `json:"surface_resistivity,omitempty"` // ohm-m, 0 = no surface layer
	SurfaceThickness   float64            `json:"surface_thickness,omitempty"`   // metres
	Grid               GridGeometry       `json:"grid"`
	Fault              FaultParameters    `json:"fault"`
	ConductorMaterial  Material           `json:"conductor_material"`
}

// FieldIssue is one problem found while validating a project payload.
type FieldIssue struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Severity string `json:"severity"` // "error" or "warning"
}

// ValidationReport is the boundary validator's full answer: the parsed
// input when it passed, plus every issue found either way.
type ValidationReport struct {
	Status       string        `json:"status"` // "pass" or "fail"
	Completeness float64       `json:"completeness_score"`
	Errors       []FieldIssue  `json:"errors"`
	Warnings     []FieldIssue  `json:"warnings"`
	Input        *ProjectInput `json:"-"`
}

// ParseProjectInput decodes a loose JSON payload into the strict schema and
// validates every section, accumulating per-field issues rather than
// stopping at the first. Unknown fields are rejected so schema drift is
// caught at the boundary instead of silently ignored.
func ParseProjectInput(payload []byte) (ValidationReport, error) {
	var in ProjectInput
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return ValidationReport{Status: "fail"}, NewFieldError("project_input", "payload", "<json>", fmt.Errorf("%w: %v", ErrInvalidSoilModel, err))
	}
	if in.SchemaVersion != SchemaVersion {
		return ValidationReport{Status: "fail"}, NewFieldError("project_input", "schema_version", in.SchemaVersion, ErrSchemaVersion)
	}

	rep := ValidationReport{Status: "pass"}
	addErr := func(field, msg string) {
		rep.Errors = append(rep.Errors, FieldIssue{Field: field, Message: msg, Severity: "error"})
	}
	addWarn := func(field, msg string) {
		rep.Warnings = append(rep.Warnings, FieldIssue{Field: field, Message: msg, Severity: "warning"})
	}

	if err := ValidateSoilModel(in.Soil); err != nil {
		addErr("soil", err.Error())
	}
	if err := ValidateGridGeometry(in.Grid); err != nil {
		addErr("grid", err.Error())
	}
	if err := ValidateFaultParameters(in.Fault); err != nil {
		addErr("fault", err.Error())
	}
	if in.ConductorMaterial != "" && !ValidMaterials[in.ConductorMaterial] {
		addErr("conductor_material", fmt.Sprintf("%v: %s", ErrUnsupportedMaterial, in.ConductorMaterial))
	}
	if in.SurfaceResistivity < 0 || in.SurfaceThickness < 0 {
		addErr("surface_resistivity", "surface layer values must be non-negative")
	}
	if in.Fingerprint.VoltageClass != "" && !VoltageClasses[in.Fingerprint.VoltageClass] {
		addWarn("fingerprint.voltage_class", fmt.Sprintf("unrecognised voltage class %q", in.Fingerprint.VoltageClass))
	}
	if in.Fingerprint.ProjectType != "" && !ProjectTypes[in.Fingerprint.ProjectType] {
		addWarn("fingerprint.project_type", fmt.Sprintf("unrecognised project type %q", in.Fingerprint.ProjectType))
	}
	if in.Fault.GroundFaultCurrent == 0 {
		addWarn("fault.ground_fault_current", "not supplied; three-phase level will be used for grid current")
	}

	rep.Completeness = completeness(in)
	if len(rep.Errors) > 0 {
		rep.Status = "fail"
		return rep, nil
	}
	rep.Input = &in
	return rep, nil
}

// completeness scores how much of the optional schema the caller filled in.
// Required sections weigh 1, optional refinements weigh 0.5.
func completeness(in ProjectInput) float64 {
	total, have := 0.0, 0.0
	score := func(weight float64, present bool) {
		total += weight
		if present {
			have += weight
		}
	}
	score(1, len(in.Soil.Measurements) > 0)
	score(1, in.Grid.Area() > 0)
	score(1, in.Fault.ThreePhaseCurrent > 0)
	score(0.5, in.Soil.TwoLayer != nil)
	score(0.5, in.Fault.GroundFaultCurrent > 0)
	score(0.5, in.SurfaceResistivity > 0)
	score(0.5, in.Fingerprint.VoltageClass != "")
	score(0.5, in.ConductorMaterial != "")
	if total == 0 {
		return 0
	}
	return have / total
}
