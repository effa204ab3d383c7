package domain

import (
	"fmt"
	"strings"
)

// ValidationKind enumerates the invariant classes enforced at the registry boundary.
type ValidationKind string

// Validation kinds surfaced synchronously by registry writes.
const (
	KindDuplicateCode           ValidationKind = "duplicate_code"
	KindOutOfRangePercentage    ValidationKind = "out_of_range_percentage"
	KindNegativeValue           ValidationKind = "negative_value"
	KindMissingInspectionFields ValidationKind = "missing_inspection_fields"
	KindDanglingEdge            ValidationKind = "dangling_edge"
	KindMissingField            ValidationKind = "missing_field"
	KindInvalidEnum             ValidationKind = "invalid_enum"
	KindReferencedByActive      ValidationKind = "referenced_by_active"
)

// ValidationError reports the specific invariant a write violated. The
// registry is left unchanged whenever one is returned.
type ValidationError struct {
	Kind ValidationKind `json:"kind"`
	// Code is the operation code being written.
	Code string `json:"code,omitempty"`
	// Field names the offending attribute, when the violation is field-scoped.
	Field string `json:"field,omitempty"`
	// Ref is the referenced operation code for edge-related violations.
	Ref    string `json:"ref,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Sentinel values for errors.Is matching on kind alone.
var (
	ErrDuplicateCode           = ValidationError{Kind: KindDuplicateCode}
	ErrOutOfRangePercentage    = ValidationError{Kind: KindOutOfRangePercentage}
	ErrNegativeValue           = ValidationError{Kind: KindNegativeValue}
	ErrMissingInspectionFields = ValidationError{Kind: KindMissingInspectionFields}
	ErrDanglingEdge            = ValidationError{Kind: KindDanglingEdge}
	ErrMissingField            = ValidationError{Kind: KindMissingField}
	ErrInvalidEnum             = ValidationError{Kind: KindInvalidEnum}
	ErrReferencedByActive      = ValidationError{Kind: KindReferencedByActive}
)

func (e ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Code != "" {
		fmt.Fprintf(&b, " on %s", e.Code)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %s", e.Field)
	}
	if e.Ref != "" {
		fmt.Fprintf(&b, " ref %s", e.Ref)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	return b.String()
}

// Is matches another ValidationError of the same kind.
func (e ValidationError) Is(target error) bool {
	t, ok := target.(ValidationError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// ErrNotFound is returned by mutating calls that name an absent operation code.
// Reads never return it; a miss is an empty result.
type ErrNotFound struct {
	Entity EntityType
	Code   string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Code)
}
