package models

import (
	"encoding/json"
	"sort"
	"strings"

	dErrors "civreg/pkg/domain-errors"
)

// Field names as they appear on the wire and in the approval workflow.
// HealthID and the timestamps are deliberately absent: they are not
// updatable through any field-level path.
const (
	FieldNationalID              = "nid"
	FieldBirthRegistrationNumber = "bin_brn"
	FieldUID                     = "uid"
	FieldNameBangla              = "name_bangla"
	FieldGivenName               = "given_name"
	FieldSurName                 = "sur_name"
	FieldDateOfBirth             = "date_of_birth"
	FieldGender                  = "gender"
	FieldOccupation              = "occupation"
	FieldEducationLevel          = "edu_level"
	FieldReligion                = "religion"
	FieldBloodGroup              = "blood_group"
	FieldStatus                  = "status"
	FieldHouseholdCode           = "household_code"
	FieldPhoneNumber             = "phone_number"
	FieldPrimaryContactNumber    = "primary_contact_number"
	FieldPresentAddress          = "present_address"
	FieldPermanentAddress        = "permanent_address"
)

type accessor struct {
	get func(*Person) any
	set func(*Person, any) error
}

func stringAccessor(get func(*Person) *string) accessor {
	return accessor{
		get: func(p *Person) any { return *get(p) },
		set: func(p *Person, v any) error {
			s, ok := v.(string)
			if !ok && v != nil {
				return dErrors.New(dErrors.CodeInvalidInput, "expected string value")
			}
			*get(p) = s
			return nil
		},
	}
}

func addressAccessor(get func(*Person) *Address) accessor {
	return accessor{
		get: func(p *Person) any { return *get(p) },
		set: func(p *Person, v any) error {
			a, ok := v.(Address)
			if !ok {
				return dErrors.New(dErrors.CodeInvalidInput, "expected address value")
			}
			*get(p) = a
			return nil
		},
	}
}

func phoneAccessor(get func(*Person) *PhoneNumber) accessor {
	return accessor{
		get: func(p *Person) any { return *get(p) },
		set: func(p *Person, v any) error {
			n, ok := v.(PhoneNumber)
			if !ok {
				return dErrors.New(dErrors.CodeInvalidInput, "expected phone number value")
			}
			*get(p) = n
			return nil
		},
	}
}

var accessors = map[string]accessor{
	FieldNationalID:              stringAccessor(func(p *Person) *string { return &p.NationalID }),
	FieldBirthRegistrationNumber: stringAccessor(func(p *Person) *string { return &p.BirthRegistrationNumber }),
	FieldUID:                     stringAccessor(func(p *Person) *string { return &p.UID }),
	FieldNameBangla:              stringAccessor(func(p *Person) *string { return &p.NameBangla }),
	FieldGivenName:               stringAccessor(func(p *Person) *string { return &p.GivenName }),
	FieldSurName:                 stringAccessor(func(p *Person) *string { return &p.SurName }),
	FieldDateOfBirth:             stringAccessor(func(p *Person) *string { return &p.DateOfBirth }),
	FieldGender:                  stringAccessor(func(p *Person) *string { return &p.Gender }),
	FieldOccupation:              stringAccessor(func(p *Person) *string { return &p.Occupation }),
	FieldEducationLevel:          stringAccessor(func(p *Person) *string { return &p.EducationLevel }),
	FieldReligion:                stringAccessor(func(p *Person) *string { return &p.Religion }),
	FieldBloodGroup:              stringAccessor(func(p *Person) *string { return &p.BloodGroup }),
	FieldStatus:                  stringAccessor(func(p *Person) *string { return &p.Status }),
	FieldHouseholdCode:           stringAccessor(func(p *Person) *string { return &p.HouseholdCode }),
	FieldPhoneNumber:             phoneAccessor(func(p *Person) *PhoneNumber { return &p.PhoneNumber }),
	FieldPrimaryContactNumber:    phoneAccessor(func(p *Person) *PhoneNumber { return &p.PrimaryContactNumber }),
	FieldPresentAddress:          addressAccessor(func(p *Person) *Address { return &p.PresentAddress }),
	FieldPermanentAddress:        addressAccessor(func(p *Person) *Address { return &p.PermanentAddress }),
}

// KnownField reports whether name is an updatable field.
func KnownField(name string) bool {
	_, ok := accessors[name]
	return ok
}

// FieldNames returns all updatable field names in ascending order.
func FieldNames() []string {
	names := make([]string, 0, len(accessors))
	for name := range accessors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetField reads the named field from p.
func GetField(p *Person, name string) (any, error) {
	acc, ok := accessors[name]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown field %q", name)
	}
	return acc.get(p), nil
}

// SetField writes v into the named field of p. The value must be the field's
// native type (string, Address, or PhoneNumber).
func SetField(p *Person, name string, v any) error {
	acc, ok := accessors[name]
	if !ok {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown field %q", name)
	}
	return acc.set(p, v)
}

// DecodeValue unmarshals a raw JSON value into the named field's native type.
func DecodeValue(name string, raw json.RawMessage) (any, error) {
	switch name {
	case FieldPresentAddress, FieldPermanentAddress:
		var a Address
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "field %q: malformed address", name)
		}
		return a, nil
	case FieldPhoneNumber, FieldPrimaryContactNumber:
		var n PhoneNumber
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "field %q: malformed phone number", name)
		}
		return n, nil
	default:
		if !KnownField(name) {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown field %q", name)
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "field %q: expected string", name)
		}
		return s, nil
	}
}

// ValueEqual compares two field values. Empty string, nil, and zero-valued
// blocks are all treated as the same "no value" state: optional identifiers
// that are absent must never look like a change.
func ValueEqual(a, b any) bool {
	if ValueEmpty(a) && ValueEmpty(b) {
		return true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case Address:
		bv, ok := b.(Address)
		return ok && av == bv
	case PhoneNumber:
		bv, ok := b.(PhoneNumber)
		return ok && av == bv
	case nil:
		return ValueEmpty(b)
	default:
		return false
	}
}

// ValueEmpty reports whether v is the "no value" state for its type.
func ValueEmpty(v any) bool {
	switch tv := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(tv) == ""
	case Address:
		return tv.IsEmpty()
	case PhoneNumber:
		return tv.IsEmpty()
	default:
		return false
	}
}

