// Package merge partitions an incoming partial update into changes that
// apply to the canonical record immediately and changes that accumulate as
// pending proposals, according to the approval policy.
package merge

import (
	"sort"
	"time"

	"civreg/internal/person/models"
	"civreg/internal/person/policy"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

// Change is one direct canonical write, reported for change notifications.
type Change struct {
	Field string
	Old   any
	New   any
}

// Result is the outcome of merging one update request.
type Result struct {
	// Record is the canonical record after direct writes. It aliases the
	// record passed in; callers own the copy.
	Record *models.Person
	// Pending is the updated pending set after staging and cancellations.
	Pending models.PendingApprovalSet
	// Applied lists fields written directly into the canonical record.
	Applied []Change
	// Staged lists fields that gained a pending proposal.
	Staged []string
	// Cancelled lists fields whose pending entry a direct write removed.
	Cancelled []string
}

// Changed reports whether the merge did anything at all. A request whose
// fields all equal current canonical values is a legitimate no-op.
func (r *Result) Changed() bool {
	return len(r.Applied) > 0 || len(r.Staged) > 0 || len(r.Cancelled) > 0
}

// Apply merges the incoming fields into record under the given policy.
// record is mutated in place; pending is cloned before mutation.
//
// Per-field rules:
//   - unknown fields are caller errors
//   - an incoming value equal to the canonical value is skipped
//   - NoApproval fields write directly, and cancel any pending entry for
//     the same field (immediate fields never accumulate proposals)
//   - RequiresApproval and ApprovalPerBlock fields leave the canonical
//     value untouched and stage a proposal; block fields stage their whole
//     composite value with incoming sub-fields overlaid on the current block
func Apply(record *models.Person, fields map[string]any, pending models.PendingApprovalSet,
	pol *policy.Policy, requester id.Requester, now time.Time) (*Result, error) {

	res := &Result{Record: record, Pending: pending.Clone()}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if !models.KnownField(name) {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown field %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		current, err := models.GetField(record, name)
		if err != nil {
			return nil, err
		}
		incoming := composite(name, current, fields[name])

		switch pol.PolicyFor(name) {
		case policy.NoApproval:
			if res.Pending.Get(name) != nil {
				res.Pending = res.Pending.RemoveField(name)
				res.Cancelled = append(res.Cancelled, name)
			}
			if models.ValueEqual(current, incoming) {
				continue
			}
			if err := models.SetField(record, name, incoming); err != nil {
				return nil, err
			}
			res.Applied = append(res.Applied, Change{Field: name, Old: current, New: incoming})

		case policy.RequiresApproval, policy.ApprovalPerBlock:
			if models.ValueEqual(current, incoming) {
				continue
			}
			if pa := res.Pending.Get(name); pa != nil && pa.HasValue(incoming) {
				// The same value is already on the table; a duplicate
				// proposal would only clutter resolution.
				continue
			}
			res.Pending = res.Pending.Stage(name, current, models.PendingApprovalFieldDetails{
				Key:         models.NewSubmissionKey(),
				Value:       incoming,
				RequestedBy: requester,
				SubmittedAt: now,
			})
			res.Staged = append(res.Staged, name)
		}
	}
	return res, nil
}

// composite folds a partial block update onto the current block value so the
// whole block is staged or written as one unit. Scalar fields pass through.
func composite(name string, current, incoming any) any {
	if !policy.IsBlock(name) {
		return incoming
	}
	switch in := incoming.(type) {
	case models.Address:
		if cur, ok := current.(models.Address); ok {
			return cur.Overlay(in)
		}
	case models.PhoneNumber:
		if cur, ok := current.(models.PhoneNumber); ok {
			return cur.Overlay(in)
		}
	}
	return incoming
}
