package models

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	id "civreg/pkg/domain"
)

// PendingApprovalFieldDetails is one competing proposal for a field: who
// proposed which value, and when. Key is a time-ordered (version 1) UUID so
// concurrent submissions from independent writers never collide and still
// sort by submission time.
type PendingApprovalFieldDetails struct {
	Key         uuid.UUID    `json:"key"`
	Value       any          `json:"value"`
	RequestedBy id.Requester `json:"requested_by"`
	SubmittedAt time.Time    `json:"submitted_at"`
}

// NewSubmissionKey returns a fresh time-ordered submission key.
func NewSubmissionKey() uuid.UUID {
	key, err := uuid.NewUUID()
	if err != nil {
		// NewUUID only fails when the clock or node ID is unavailable;
		// a random UUID keeps the entry unique, losing only ordering.
		return uuid.New()
	}
	return key
}

// PendingApproval holds every outstanding proposal for one field or block.
// CurrentValue is the canonical value frozen when the first proposal was
// staged; it is a reference point for conflict display, not merge input.
// Details is ordered newest first.
//
// Invariant: a PendingApproval never exists with empty Details. Mutators on
// PendingApprovalSet delete the whole entry as soon as its last proposal is
// removed.
type PendingApproval struct {
	Field        string                        `json:"field"`
	CurrentValue any                           `json:"current_value"`
	Details      []PendingApprovalFieldDetails `json:"details"`
}

// Latest returns the most recent submission time across Details.
func (pa *PendingApproval) Latest() time.Time {
	var latest time.Time
	for _, d := range pa.Details {
		if d.SubmittedAt.After(latest) {
			latest = d.SubmittedAt
		}
	}
	return latest
}

// HasValue reports whether any outstanding proposal carries the given value.
func (pa *PendingApproval) HasValue(v any) bool {
	for _, d := range pa.Details {
		if ValueEqual(d.Value, v) {
			return true
		}
	}
	return false
}

// pendingApprovalJSON mirrors PendingApproval with raw values so decoding
// can restore each value's native type from the field name.
type pendingApprovalJSON struct {
	Field        string             `json:"field"`
	CurrentValue json.RawMessage    `json:"current_value"`
	Details      []fieldDetailsJSON `json:"details"`
}

type fieldDetailsJSON struct {
	Key         uuid.UUID       `json:"key"`
	Value       json.RawMessage `json:"value"`
	RequestedBy id.Requester    `json:"requested_by"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// UnmarshalJSON restores typed values (string, Address, PhoneNumber) from
// the field name, so pending sets survive store round-trips intact.
func (pa *PendingApproval) UnmarshalJSON(data []byte) error {
	var shadow pendingApprovalJSON
	if err := json.Unmarshal(data, &shadow); err != nil {
		return err
	}
	pa.Field = shadow.Field
	if len(shadow.CurrentValue) > 0 && string(shadow.CurrentValue) != "null" {
		v, err := DecodeValue(shadow.Field, shadow.CurrentValue)
		if err != nil {
			return err
		}
		pa.CurrentValue = v
	} else {
		pa.CurrentValue = nil
	}
	pa.Details = make([]PendingApprovalFieldDetails, 0, len(shadow.Details))
	for _, d := range shadow.Details {
		v, err := DecodeValue(shadow.Field, d.Value)
		if err != nil {
			return err
		}
		pa.Details = append(pa.Details, PendingApprovalFieldDetails{
			Key:         d.Key,
			Value:       v,
			RequestedBy: d.RequestedBy,
			SubmittedAt: d.SubmittedAt,
		})
	}
	return nil
}

// PendingApprovalSet is a record's outstanding proposals, ordered by field
// name ascending for deterministic iteration.
type PendingApprovalSet []*PendingApproval

// Get returns the entry for field, or nil.
func (s PendingApprovalSet) Get(field string) *PendingApproval {
	for _, pa := range s {
		if pa.Field == field {
			return pa
		}
	}
	return nil
}

// IsEmpty reports whether there are no outstanding proposals at all.
func (s PendingApprovalSet) IsEmpty() bool { return len(s) == 0 }

// Fields returns the field names with outstanding proposals, ascending.
func (s PendingApprovalSet) Fields() []string {
	fields := make([]string, 0, len(s))
	for _, pa := range s {
		fields = append(fields, pa.Field)
	}
	return fields
}

// Latest returns the most recent submission time across every field.
func (s PendingApprovalSet) Latest() time.Time {
	var latest time.Time
	for _, pa := range s {
		if t := pa.Latest(); t.After(latest) {
			latest = t
		}
	}
	return latest
}

// Clone deep-copies the set so callers can mutate without aliasing stored state.
func (s PendingApprovalSet) Clone() PendingApprovalSet {
	if s == nil {
		return nil
	}
	out := make(PendingApprovalSet, 0, len(s))
	for _, pa := range s {
		cp := &PendingApproval{
			Field:        pa.Field,
			CurrentValue: pa.CurrentValue,
			Details:      make([]PendingApprovalFieldDetails, len(pa.Details)),
		}
		copy(cp.Details, pa.Details)
		out = append(out, cp)
	}
	return out
}

// Stage records a proposal for field. A new entry freezes current as the
// reference value; an existing entry gains one more competing proposal.
// Details stay ordered newest first.
func (s PendingApprovalSet) Stage(field string, current any, detail PendingApprovalFieldDetails) PendingApprovalSet {
	pa := s.Get(field)
	if pa == nil {
		pa = &PendingApproval{Field: field, CurrentValue: current}
		s = append(s, pa)
		sort.Slice(s, func(i, j int) bool { return s[i].Field < s[j].Field })
	}
	pa.Details = append(pa.Details, detail)
	sort.SliceStable(pa.Details, func(i, j int) bool {
		return pa.Details[i].SubmittedAt.After(pa.Details[j].SubmittedAt)
	})
	return s
}

// RemoveField drops the whole entry for field, if present.
func (s PendingApprovalSet) RemoveField(field string) PendingApprovalSet {
	for i, pa := range s {
		if pa.Field == field {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// RemoveValue drops every proposal for field whose value matches v. When the
// last proposal goes, the whole entry goes with it. Returns the new set and
// how many proposals were removed.
func (s PendingApprovalSet) RemoveValue(field string, v any) (PendingApprovalSet, int) {
	pa := s.Get(field)
	if pa == nil {
		return s, 0
	}
	kept := pa.Details[:0]
	removed := 0
	for _, d := range pa.Details {
		if ValueEqual(d.Value, v) {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	pa.Details = kept
	if len(pa.Details) == 0 {
		s = s.RemoveField(field)
	}
	return s, removed
}
