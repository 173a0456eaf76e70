package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error for the caller's handling policy:
// input errors are caller-fixable and never retried, dependency errors may
// be retried by the caller with backoff, integrity errors are fatal to the
// affected item only.
type Kind int

const (
	KindInput Kind = iota
	KindDependency
	KindIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindDependency:
		return "dependency"
	case KindIntegrity:
		return "integrity"
	}
	return "unknown"
}

// Sentinel errors for the calculation engine.
var (
	ErrInvalidSoilModel    = errors.New("invalid soil model")
	ErrInvalidGeometry     = errors.New("invalid geometry")
	ErrInvalidFaultParams  = errors.New("invalid fault parameters")
	ErrUnsupportedMaterial = errors.New("unsupported material")
	ErrUnknownMethod       = errors.New("unknown calculation method")
)

// Sentinel errors for the retrieval pipeline.
var (
	ErrInvalidChunkConfig  = errors.New("invalid chunk configuration")
	ErrEmbedderUnavailable = errors.New("embedding model unavailable")
	ErrStoreUnavailable    = errors.New("vector store unavailable")
	ErrDimensionMismatch   = errors.New("stored vector dimension mismatch")
	ErrDuplicateIdentity   = errors.New("chunk identity conflict")
	ErrSchemaVersion       = errors.New("unsupported schema version")
)

// kinds maps sentinels to their handling class.
var kinds = map[error]Kind{
	ErrInvalidSoilModel:    KindInput,
	ErrInvalidGeometry:     KindInput,
	ErrInvalidFaultParams:  KindInput,
	ErrUnsupportedMaterial: KindInput,
	ErrUnknownMethod:       KindInput,
	ErrInvalidChunkConfig:  KindInput,
	ErrSchemaVersion:       KindInput,
	ErrEmbedderUnavailable: KindDependency,
	ErrStoreUnavailable:    KindDependency,
	ErrDimensionMismatch:   KindIntegrity,
	ErrDuplicateIdentity:   KindIntegrity,
}

// FieldError wraps a sentinel with enough context for an engineer to
// correct the input: which formula rejected it and which field carried the
// offending value.
type FieldError struct {
	Formula string // e.g. "grid_resistance", "adiabatic_sizing"
	Field   string
	Value   string
	Wrapped error
}

func (e *FieldError) Error() string {
	if e.Formula == "" {
		return fmt.Sprintf("%s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
	}
	return fmt.Sprintf("%s: %s: %s (value=%q)", e.Formula, e.Wrapped, e.Field, e.Value)
}

func (e *FieldError) Unwrap() error { return e.Wrapped }

// NewFieldError creates a FieldError.
func NewFieldError(formula, field string, value any, wrapped error) *FieldError {
	return &FieldError{Formula: formula, Field: field, Value: fmt.Sprint(value), Wrapped: wrapped}
}

// KindOf reports the handling class of err. Errors outside the taxonomy
// default to dependency, the only class a caller may safely retry.
func KindOf(err error) Kind {
	for sentinel, k := range kinds {
		if errors.Is(err, sentinel) {
			return k
		}
	}
	return KindDependency
}

// IsInput reports whether err is caller-fixable.
func IsInput(err error) bool { return err != nil && KindOf(err) == KindInput }

// IsIntegrity reports whether err indicates corrupted or conflicting state.
func IsIntegrity(err error) bool { return err != nil && KindOf(err) == KindIntegrity }
