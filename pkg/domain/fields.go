package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FieldKind enumerates the declared value types of custom event fields.
type FieldKind string

// Supported field kinds. Date values travel as RFC 3339 strings.
const (
	FieldBool    FieldKind = "bool"
	FieldInt     FieldKind = "int"
	FieldString  FieldKind = "string"
	FieldDecimal FieldKind = "decimal"
	FieldDate    FieldKind = "date"
)

// FieldAssociation names the entity category a field is attached to.
type FieldAssociation string

const (
	FieldOnRegistration FieldAssociation = "registration"
	FieldOnCourse       FieldAssociation = "course"
	FieldOnLodgement    FieldAssociation = "lodgement"
)

// FieldDefinition declares a custom field on an event. Fee conditions
// reference registration fields by name, so renames must keep stored
// conditions in sync.
type FieldDefinition struct {
	Name        string           `json:"name"`
	Kind        FieldKind        `json:"kind"`
	Association FieldAssociation `json:"association"`
}

// FieldValues is the validated value bag attached to a registration,
// course or lodgement.
type FieldValues map[string]any

// Clone returns a shallow copy; values are JSON scalars and immutable.
func (f FieldValues) Clone() FieldValues {
	if f == nil {
		return nil
	}
	cp := make(FieldValues, len(f))
	for k, v := range f {
		cp[k] = v
	}
	return cp
}

// Bool returns the named field coerced to bool; absent or mistyped values
// evaluate to false. Fee conditions use this accessor.
func (f FieldValues) Bool(name string) bool {
	v, ok := f[name]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// ValidateFieldValues checks every value against its declared kind and
// association. Unknown names and kind mismatches are rejected.
func ValidateFieldValues(defs map[string]FieldDefinition, assoc FieldAssociation, values FieldValues) error {
	for name, value := range values {
		def, ok := defs[name]
		if !ok {
			return ValidationError{Field: name, Reason: "field is not defined on the event"}
		}
		if def.Association != assoc {
			return ValidationError{Field: name, Reason: "field belongs to " + string(def.Association)}
		}
		if value == nil {
			continue
		}
		if err := checkFieldKind(name, def.Kind, value); err != nil {
			return err
		}
	}
	return nil
}

func checkFieldKind(name string, kind FieldKind, value any) error {
	switch kind {
	case FieldBool:
		if _, ok := value.(bool); !ok {
			return ValidationError{Field: name, Reason: "expected bool"}
		}
	case FieldInt:
		switch v := value.(type) {
		case int, int64:
		case float64:
			if v != float64(int64(v)) {
				return ValidationError{Field: name, Reason: "expected integer"}
			}
		default:
			return ValidationError{Field: name, Reason: "expected integer"}
		}
	case FieldString:
		if _, ok := value.(string); !ok {
			return ValidationError{Field: name, Reason: "expected string"}
		}
	case FieldDecimal:
		switch v := value.(type) {
		case decimal.Decimal:
		case string:
			if _, err := decimal.NewFromString(v); err != nil {
				return ValidationError{Field: name, Reason: "expected decimal string"}
			}
		case float64:
		default:
			return ValidationError{Field: name, Reason: "expected decimal"}
		}
	case FieldDate:
		s, ok := value.(string)
		if !ok {
			return ValidationError{Field: name, Reason: "expected RFC 3339 date string"}
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			if _, err := time.Parse("2006-01-02", s); err != nil {
				return ValidationError{Field: name, Reason: "expected RFC 3339 date string"}
			}
		}
	default:
		return ValidationError{Field: name, Reason: "unknown field kind " + string(kind)}
	}
	return nil
}
