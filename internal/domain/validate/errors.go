package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/athletegraph/internal/domain/ontology"
)

// Sentinel kinds, matched with errors.Is.
var (
	ErrUnmappedField  = errors.New("unmapped field")
	ErrTypeCoercion   = errors.New("type coercion failed")
	ErrUnitNotAllowed = errors.New("unit not allowed")
)

// UnmappedFieldError is a structural mismatch between mapping and schema.
// It stops a whole batch.
type UnmappedFieldError struct {
	Fields []string
}

func (e *UnmappedFieldError) Error() string {
	return fmt.Sprintf("mapping leaves required fields unresolved: %s", strings.Join(e.Fields, ", "))
}

func (e *UnmappedFieldError) Unwrap() error { return ErrUnmappedField }

// TypeCoercionError reports a value that cannot become the field's type.
type TypeCoercionError struct {
	Row   int
	Field string
	Value any
	Err   error
}

func (e *TypeCoercionError) Error() string {
	msg := fmt.Sprintf("row %d: field %q: cannot use %v", e.Row, e.Field, e.Value)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TypeCoercionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTypeCoercion}
	}
	return []error{ErrTypeCoercion, e.Err}
}

// UnitNotAllowedError rejects a unit outside the ontology.
type UnitNotAllowedError struct {
	Unit    string
	Allowed ontology.AllowedUnitSet
}

func (e *UnitNotAllowedError) Error() string {
	return fmt.Sprintf("unit %q not allowed; allowed units: %s", e.Unit, e.Allowed)
}

func (e *UnitNotAllowedError) Unwrap() error { return ErrUnitNotAllowed }

// Reason returns a short machine label for err, used in metrics and API
// error codes.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrUnmappedField):
		return "unmapped_field"
	case errors.Is(err, ErrUnitNotAllowed):
		return "unit_not_allowed"
	case errors.Is(err, ErrTypeCoercion):
		return "type_coercion"
	default:
		return "invalid"
	}
}
