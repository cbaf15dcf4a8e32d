// Package approve resolves pending proposals back into canonical values.
// Resolution is always explicit: the approver restates the value being
// accepted or rejected, and the engine never auto-picks a winner among
// competing proposals.
package approve

import (
	"civreg/internal/person/models"
	dErrors "civreg/pkg/domain-errors"
)

// Decision is an approver's verdict on one proposed value.
type Decision int

const (
	Accept Decision = iota + 1
	Reject
)

// String implements fmt.Stringer for logs and change events.
func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// Outcome reports what a resolution did, so the orchestrator knows whether
// the canonical record changed and which mappings to refresh.
type Outcome struct {
	Field string
	// Pending is the updated set after resolution.
	Pending models.PendingApprovalSet
	// Accepted is true when the canonical field must be set to Value.
	Accepted bool
	// Value is the accepted canonical value; meaningful only when Accepted.
	Value any
}

// Resolve applies an accept/reject decision for field against the pending
// set. value must exactly match an outstanding proposal; a mismatch is a
// caller error (stale client view), never silently resolved against the
// most recent proposal.
//
// Accept discards every competing proposal for the field along with the
// entry itself. Reject removes only the matching proposal; siblings stay
// pending and the canonical value is untouched.
func Resolve(pending models.PendingApprovalSet, field string, decision Decision, value any) (*Outcome, error) {
	pa := pending.Get(field)
	if pa == nil {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no pending approval for field %q", field)
	}
	if !pa.HasValue(value) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no pending proposal for field %q with the given value", field)
	}

	updated := pending.Clone()
	switch decision {
	case Accept:
		updated = updated.RemoveField(field)
		return &Outcome{Field: field, Pending: updated, Accepted: true, Value: value}, nil
	case Reject:
		updated, _ = updated.RemoveValue(field, value)
		return &Outcome{Field: field, Pending: updated}, nil
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown decision")
	}
}
