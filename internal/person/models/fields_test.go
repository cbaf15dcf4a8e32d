package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "civreg/pkg/domain-errors"
)

func TestGetSetField(t *testing.T) {
	p := &Person{HealthID: "hid-1", GivenName: "Rahim"}

	t.Run("string round trip", func(t *testing.T) {
		require.NoError(t, SetField(p, FieldOccupation, "teacher"))
		v, err := GetField(p, FieldOccupation)
		require.NoError(t, err)
		assert.Equal(t, "teacher", v)
		assert.Equal(t, "teacher", p.Occupation)
	})

	t.Run("address round trip", func(t *testing.T) {
		addr := Address{DivisionID: "10", DistrictID: "20", UpazilaID: "30"}
		require.NoError(t, SetField(p, FieldPresentAddress, addr))
		v, err := GetField(p, FieldPresentAddress)
		require.NoError(t, err)
		assert.Equal(t, addr, v)
	})

	t.Run("phone round trip", func(t *testing.T) {
		phone := PhoneNumber{CountryCode: "880", Number: "1712345678"}
		require.NoError(t, SetField(p, FieldPhoneNumber, phone))
		v, err := GetField(p, FieldPhoneNumber)
		require.NoError(t, err)
		assert.Equal(t, phone, v)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := GetField(p, "hid")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		err = SetField(p, "nope", "x")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("type mismatch", func(t *testing.T) {
		err := SetField(p, FieldGivenName, Address{DivisionID: "10"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		err = SetField(p, FieldPresentAddress, "not an address")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestFieldNames(t *testing.T) {
	names := FieldNames()
	require.NotEmpty(t, names)
	assert.IsIncreasing(t, names)
	for _, name := range names {
		assert.True(t, KnownField(name))
	}
	assert.False(t, KnownField("hid"), "health id is not an updatable field")
	assert.False(t, KnownField("created_at"))
}

func TestDecodeValue(t *testing.T) {
	t.Run("string field", func(t *testing.T) {
		v, err := DecodeValue(FieldNationalID, json.RawMessage(`"1234567890123"`))
		require.NoError(t, err)
		assert.Equal(t, "1234567890123", v)
	})

	t.Run("address field", func(t *testing.T) {
		v, err := DecodeValue(FieldPermanentAddress, json.RawMessage(`{"division_id":"10","district_id":"20"}`))
		require.NoError(t, err)
		assert.Equal(t, Address{DivisionID: "10", DistrictID: "20"}, v)
	})

	t.Run("phone field", func(t *testing.T) {
		v, err := DecodeValue(FieldPrimaryContactNumber, json.RawMessage(`{"number":"1712345678"}`))
		require.NoError(t, err)
		assert.Equal(t, PhoneNumber{Number: "1712345678"}, v)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := DecodeValue("bogus", json.RawMessage(`"x"`))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("wrong shape for string field", func(t *testing.T) {
		_, err := DecodeValue(FieldGender, json.RawMessage(`{"a":1}`))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("malformed block", func(t *testing.T) {
		_, err := DecodeValue(FieldPresentAddress, json.RawMessage(`"just a string"`))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"equal strings", "x", "x", true},
		{"different strings", "x", "y", false},
		{"empty string equals nil", "", nil, true},
		{"whitespace string is empty", "  ", "", true},
		{"equal addresses", Address{DivisionID: "10"}, Address{DivisionID: "10"}, true},
		{"different addresses", Address{DivisionID: "10"}, Address{DivisionID: "20"}, false},
		{"zero address equals nil", Address{}, nil, true},
		{"equal phones", PhoneNumber{Number: "1"}, PhoneNumber{Number: "1"}, true},
		{"zero phone equals empty string", PhoneNumber{}, "", true},
		{"cross-type comparison", "10", Address{DivisionID: "10"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValueEqual(tt.a, tt.b))
			assert.Equal(t, tt.want, ValueEqual(tt.b, tt.a))
		})
	}
}

func TestValueEmpty(t *testing.T) {
	assert.True(t, ValueEmpty(nil))
	assert.True(t, ValueEmpty(""))
	assert.True(t, ValueEmpty(Address{}))
	assert.True(t, ValueEmpty(PhoneNumber{}))
	assert.False(t, ValueEmpty("x"))
	assert.False(t, ValueEmpty(Address{PostCode: "1212"}))
}

func TestOverlay(t *testing.T) {
	base := Address{DivisionID: "10", DistrictID: "20", AddressLine: "old line"}
	out := base.Overlay(Address{AddressLine: "new line", PostCode: "1212"})

	assert.Equal(t, "10", out.DivisionID)
	assert.Equal(t, "20", out.DistrictID)
	assert.Equal(t, "new line", out.AddressLine)
	assert.Equal(t, "1212", out.PostCode)
	assert.Equal(t, "old line", base.AddressLine, "overlay must not mutate the receiver")

	phone := PhoneNumber{CountryCode: "880", Number: "111"}
	assert.Equal(t, PhoneNumber{CountryCode: "880", Number: "222"}, phone.Overlay(PhoneNumber{Number: "222"}))
}
