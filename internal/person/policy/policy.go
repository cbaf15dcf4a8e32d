// Package policy maps field names to their approval treatment. The table is
// externally configured and read-mostly; it is injected into the merger and
// resolver rather than consulted as process-wide state so tests can
// substitute arbitrary policies.
package policy

import "civreg/internal/person/models"

// Approval classifies how an incoming change to a field is handled.
type Approval int

const (
	// NoApproval applies the change to the canonical record immediately.
	NoApproval Approval = iota
	// RequiresApproval stages the change as a pending proposal.
	RequiresApproval
	// ApprovalPerBlock stages the field's whole composite value as one
	// unit; sub-fields are never staged or resolved individually.
	ApprovalPerBlock
)

// Policy is the immutable field→approval table.
type Policy struct {
	rules map[string]Approval
}

// New builds a policy from an explicit rule table. Fields absent from the
// table default to NoApproval.
func New(rules map[string]Approval) *Policy {
	cp := make(map[string]Approval, len(rules))
	for f, a := range rules {
		cp[f] = a
	}
	return &Policy{rules: cp}
}

// Default is the production table: identity-critical fields require
// approval, contact and address blocks are approved per block, and
// descriptive fields apply immediately.
func Default() *Policy {
	return New(map[string]Approval{
		models.FieldNationalID:              RequiresApproval,
		models.FieldBirthRegistrationNumber: RequiresApproval,
		models.FieldUID:                     RequiresApproval,
		models.FieldGender:                  RequiresApproval,
		models.FieldDateOfBirth:             RequiresApproval,
		models.FieldPhoneNumber:             ApprovalPerBlock,
		models.FieldPrimaryContactNumber:    ApprovalPerBlock,
		models.FieldPresentAddress:          ApprovalPerBlock,
		models.FieldPermanentAddress:        ApprovalPerBlock,
	})
}

// PolicyFor returns the approval treatment for a field.
func (p *Policy) PolicyFor(field string) Approval {
	if a, ok := p.rules[field]; ok {
		return a
	}
	return NoApproval
}

// IsBlock reports whether the field is one of the composite block fields,
// independent of its approval treatment.
func IsBlock(field string) bool {
	switch field {
	case models.FieldPhoneNumber, models.FieldPrimaryContactNumber,
		models.FieldPresentAddress, models.FieldPermanentAddress:
		return true
	}
	return false
}
