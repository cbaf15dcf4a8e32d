// Package models defines the canonical person record and its approval
// workflow types. Everything here is plain data; behavior that spans stores
// lives in the merge, approve, and index packages.
package models

import "time"

// Address is a block field: it is staged, accepted, and rejected as one unit.
// Geo codes are two-digit strings at each administrative level; empty means
// the level is not set. The struct is comparable so blocks can be diffed
// with ==.
type Address struct {
	DivisionID         string `json:"division_id,omitempty"`
	DistrictID         string `json:"district_id,omitempty"`
	UpazilaID          string `json:"upazila_id,omitempty"`
	CityCorporationID  string `json:"city_corporation_id,omitempty"`
	UnionOrUrbanWardID string `json:"union_or_urban_ward_id,omitempty"`
	RuralWardID        string `json:"rural_ward_id,omitempty"`
	AddressLine        string `json:"address_line,omitempty"`
	HoldingNumber      string `json:"holding_number,omitempty"`
	PostCode           string `json:"post_code,omitempty"`
}

// IsEmpty reports whether no part of the address is set.
func (a Address) IsEmpty() bool { return a == Address{} }

// Overlay returns a with every non-empty field of in written over it.
// Used to build a block's composite value from a partial sub-field update.
func (a Address) Overlay(in Address) Address {
	if in.DivisionID != "" {
		a.DivisionID = in.DivisionID
	}
	if in.DistrictID != "" {
		a.DistrictID = in.DistrictID
	}
	if in.UpazilaID != "" {
		a.UpazilaID = in.UpazilaID
	}
	if in.CityCorporationID != "" {
		a.CityCorporationID = in.CityCorporationID
	}
	if in.UnionOrUrbanWardID != "" {
		a.UnionOrUrbanWardID = in.UnionOrUrbanWardID
	}
	if in.RuralWardID != "" {
		a.RuralWardID = in.RuralWardID
	}
	if in.AddressLine != "" {
		a.AddressLine = in.AddressLine
	}
	if in.HoldingNumber != "" {
		a.HoldingNumber = in.HoldingNumber
	}
	if in.PostCode != "" {
		a.PostCode = in.PostCode
	}
	return a
}

// PhoneNumber is a block field, staged and resolved as one unit.
type PhoneNumber struct {
	CountryCode string `json:"country_code,omitempty"`
	AreaCode    string `json:"area_code,omitempty"`
	Number      string `json:"number,omitempty"`
	Extension   string `json:"extension,omitempty"`
}

// IsEmpty reports whether no part of the phone number is set.
func (p PhoneNumber) IsEmpty() bool { return p == PhoneNumber{} }

// Overlay returns p with every non-empty field of in written over it.
func (p PhoneNumber) Overlay(in PhoneNumber) PhoneNumber {
	if in.CountryCode != "" {
		p.CountryCode = in.CountryCode
	}
	if in.AreaCode != "" {
		p.AreaCode = in.AreaCode
	}
	if in.Number != "" {
		p.Number = in.Number
	}
	if in.Extension != "" {
		p.Extension = in.Extension
	}
	return p
}

// Person is the canonical record of truth for one individual. HealthID is
// assigned once at creation and never changes; every other field mutates in
// place through updates and approval resolutions.
type Person struct {
	HealthID                string      `json:"hid"`
	NationalID              string      `json:"nid,omitempty"`
	BirthRegistrationNumber string      `json:"bin_brn,omitempty"`
	UID                     string      `json:"uid,omitempty"`
	NameBangla              string      `json:"name_bangla,omitempty"`
	GivenName               string      `json:"given_name,omitempty"`
	SurName                 string      `json:"sur_name,omitempty"`
	DateOfBirth             string      `json:"date_of_birth,omitempty"`
	Gender                  string      `json:"gender,omitempty"`
	Occupation              string      `json:"occupation,omitempty"`
	EducationLevel          string      `json:"edu_level,omitempty"`
	Religion                string      `json:"religion,omitempty"`
	BloodGroup              string      `json:"blood_group,omitempty"`
	Status                  string      `json:"status,omitempty"`
	HouseholdCode           string      `json:"household_code,omitempty"`
	PhoneNumber             PhoneNumber `json:"phone_number,omitempty"`
	PrimaryContactNumber    PhoneNumber `json:"primary_contact_number,omitempty"`
	PresentAddress          Address     `json:"present_address,omitempty"`
	PermanentAddress        Address     `json:"permanent_address,omitempty"`
	CreatedAt               time.Time   `json:"created_at"`
	UpdatedAt               time.Time   `json:"updated_at"`
}

// Clone returns a deep copy. All fields are values, so a shallow copy is a
// deep copy; keeping the method makes call sites explicit about intent.
func (p *Person) Clone() *Person {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
