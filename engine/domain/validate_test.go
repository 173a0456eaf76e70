package domain

import (
	"errors"
	"testing"
)

func validSoil() SoilModel {
	return SoilModel{
		Measurements: []ResistivityMeasurement{
			{Depth: 0.5, Resistivity: 120},
			{Depth: 1.5, Resistivity: 90},
			{Depth: 3.0, Resistivity: 60},
		},
	}
}

func TestValidateSoilModel_Valid(t *testing.T) {
	if err := ValidateSoilModel(validSoil()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateSoilModel_DepthsMustIncrease(t *testing.T) {
	s := validSoil()
	s.Measurements[2].Depth = 1.0 // below the previous reading
	err := ValidateSoilModel(s)
	if !errors.Is(err, ErrInvalidSoilModel) {
		t.Fatalf("got %v, want ErrInvalidSoilModel", err)
	}
}

func TestValidateSoilModel_RejectsNonPositiveResistivity(t *testing.T) {
	s := validSoil()
	s.Measurements[1].Resistivity = 0
	if err := ValidateSoilModel(s); !errors.Is(err, ErrInvalidSoilModel) {
		t.Fatalf("got %v, want ErrInvalidSoilModel", err)
	}
}

func TestValidateSoilModel_Empty(t *testing.T) {
	if err := ValidateSoilModel(SoilModel{}); !errors.Is(err, ErrInvalidSoilModel) {
		t.Fatalf("got %v, want ErrInvalidSoilModel", err)
	}
}

func TestApparentResistivity_DepthWeighted(t *testing.T) {
	s := SoilModel{Measurements: []ResistivityMeasurement{
		{Depth: 1, Resistivity: 100},
		{Depth: 3, Resistivity: 40},
	}}
	// (100*1 + 40*2) / 3 = 60
	if got := s.ApparentResistivity(); got != 60 {
		t.Fatalf("got %v, want 60", got)
	}
}

func validPayload() []byte {
	return []byte(`{
		"schema_version": "1",
		"fingerprint": {"voltage_class": "33kV", "project_type": "substation"},
		"soil": {
			"measurements": [{"depth": 1, "resistivity": 100}],
			"two_layer": {"top_resistivity": 120, "bottom_resistivity": 60, "top_layer_depth": 2}
		},
		"surface_resistivity": 3000,
		"surface_thickness": 0.1,
		"grid": {"length": 50, "width": 50, "conductor_length": 1100, "burial_depth": 0.5, "mesh_spacing": 5, "conductor_size": 70},
		"fault": {"three_phase_current": 8000, "ground_fault_current": 4000, "clearance_duration": 0.5},
		"conductor_material": "copper"
	}`)
}

func TestParseProjectInput_Valid(t *testing.T) {
	report, err := ParseProjectInput(validPayload())
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != "pass" {
		t.Fatalf("status %q, errors %v", report.Status, report.Errors)
	}
	if report.Input == nil {
		t.Fatal("passing report must carry the parsed input")
	}
	if report.Completeness != 1 {
		t.Errorf("fully specified payload scored %v, want 1", report.Completeness)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", report.Warnings)
	}
}

func TestParseProjectInput_UnknownFieldRejected(t *testing.T) {
	payload := []byte(`{"schema_version": "1", "grid_resistence": 1}`)
	if _, err := ParseProjectInput(payload); err == nil {
		t.Fatal("misspelled field should be rejected, not ignored")
	}
}

func TestParseProjectInput_WrongSchemaVersion(t *testing.T) {
	payload := []byte(`{"schema_version": "2"}`)
	_, err := ParseProjectInput(payload)
	if !errors.Is(err, ErrSchemaVersion) {
		t.Fatalf("got %v, want ErrSchemaVersion", err)
	}
}

func TestParseProjectInput_AccumulatesAllErrors(t *testing.T) {
	payload := []byte(`{
		"schema_version": "1",
		"soil": {"measurements": []},
		"grid": {"length": 0, "width": 50, "conductor_length": 1100, "burial_depth": 0.5, "mesh_spacing": 5},
		"fault": {"three_phase_current": 0, "clearance_duration": 0.5},
		"conductor_material": "brass"
	}`)
	report, err := ParseProjectInput(payload)
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != "fail" {
		t.Fatalf("status %q, want fail", report.Status)
	}
	if len(report.Errors) < 4 {
		t.Errorf("expected soil, grid, fault, and material errors together, got %v", report.Errors)
	}
	if report.Input != nil {
		t.Error("failing report must not expose the input")
	}
}

func TestParseProjectInput_WarningsDoNotFail(t *testing.T) {
	payload := []byte(`{
		"schema_version": "1",
		"fingerprint": {"voltage_class": "13.8kV"},
		"soil": {"measurements": [{"depth": 1, "resistivity": 100}]},
		"grid": {"length": 50, "width": 50, "conductor_length": 1100, "burial_depth": 0.5, "mesh_spacing": 5},
		"fault": {"three_phase_current": 8000, "clearance_duration": 0.5}
	}`)
	report, err := ParseProjectInput(payload)
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != "pass" {
		t.Fatalf("warnings alone must not fail validation: %v", report.Errors)
	}
	if len(report.Warnings) < 2 {
		// Unknown voltage class and missing ground fault current.
		t.Errorf("expected warnings, got %v", report.Warnings)
	}
	if report.Completeness >= 1 {
		t.Errorf("sparse payload scored %v, want below 1", report.Completeness)
	}
}

func TestGridCurrent_FactorsDefaultToOne(t *testing.T) {
	f := FaultParameters{ThreePhaseCurrent: 8000, ClearanceDuration: 1}
	if got := f.GridCurrent(); got != 8000 {
		t.Fatalf("got %v, want 8000", got)
	}
	f.GroundFaultCurrent = 4000
	f.DivisionFactor = 0.6
	f.DecrementFactor = 1.1
	want := 4000 * 0.6 * 1.1
	if got := f.GridCurrent(); got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}
