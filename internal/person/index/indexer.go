// Package index computes the minimal set of idempotent writes that keep the
// identifier indexes, catchment mappings, and pending-approval mappings
// consistent with a canonical record.
//
// Every operation in a plan is independent, idempotent, and derived purely
// from the old and new canonical state, never from a delta log: deleting an
// absent row or re-inserting an identical row is a no-op, so a plan can be
// retried or partially applied and a later reconciliation converges to the
// same result.
package index

import (
	"strings"

	"civreg/internal/catchment"
	"civreg/internal/person/models"
)

// Kind names one identifier index.
type Kind string

const (
	KindNationalID        Kind = "nid"
	KindBirthRegistration Kind = "bin_brn"
	KindUID               Kind = "uid"
	KindHouseholdCode     Kind = "household_code"
	KindPhoneNumber       Kind = "phone_number"
	KindNameLocation      Kind = "name_location"
)

// Kinds lists every identifier index kind.
var Kinds = []Kind{
	KindNationalID,
	KindBirthRegistration,
	KindUID,
	KindHouseholdCode,
	KindPhoneNumber,
	KindNameLocation,
}

// Entry is one identifier index row: (kind, value) → health ID.
type Entry struct {
	Kind     Kind
	Value    string
	HealthID string
}

// MappingRow is one catchment or pending-approval mapping row. LastUpdated
// is a time-ordered identifier (UnixNano) used as the pagination cursor.
type MappingRow struct {
	CatchmentID string
	LastUpdated int64
	HealthID    string
}

// Plan is the set of writes reconciling one record mutation. Deletes and
// puts are separated per table so stores can apply them independently.
type Plan struct {
	DeleteEntries      []Entry
	PutEntries         []Entry
	DeleteCatchments   []MappingRow
	PutCatchments      []MappingRow
	DeleteApprovalRows []MappingRow
	PutApprovalRows    []MappingRow
}

// Empty reports whether the plan contains no writes.
func (p *Plan) Empty() bool {
	return len(p.DeleteEntries) == 0 && len(p.PutEntries) == 0 &&
		len(p.DeleteCatchments) == 0 && len(p.PutCatchments) == 0 &&
		len(p.DeleteApprovalRows) == 0 && len(p.PutApprovalRows) == 0
}

// Ops counts the writes in the plan.
func (p *Plan) Ops() int {
	return len(p.DeleteEntries) + len(p.PutEntries) +
		len(p.DeleteCatchments) + len(p.PutCatchments) +
		len(p.DeleteApprovalRows) + len(p.PutApprovalRows)
}

// BuildPlan diffs the old canonical state (nil on create) against the new
// one. oldPending/newPending are the pending sets before and after the
// mutation; they drive the pending-approval mapping lifecycle.
func BuildPlan(old, cur *models.Person, oldPending, newPending models.PendingApprovalSet) Plan {
	var plan Plan

	for _, kind := range Kinds {
		oldVal := ""
		if old != nil {
			oldVal = identifierValue(old, kind)
		}
		newVal := identifierValue(cur, kind)
		if oldVal == newVal {
			continue
		}
		if oldVal != "" {
			plan.DeleteEntries = append(plan.DeleteEntries, Entry{Kind: kind, Value: oldVal, HealthID: cur.HealthID})
		}
		if newVal != "" {
			plan.PutEntries = append(plan.PutEntries, Entry{Kind: kind, Value: newVal, HealthID: cur.HealthID})
		}
	}

	oldCatchments := []string{}
	if old != nil {
		oldCatchments = catchment.IDs(old.PresentAddress)
	}
	newCatchments := catchment.IDs(cur.PresentAddress)

	// Catchment rows are address-derived only: identical sets mean no
	// writes even if unrelated fields changed.
	if !sameSet(oldCatchments, newCatchments) {
		ts := cur.UpdatedAt.UnixNano()
		for _, c := range oldCatchments {
			plan.DeleteCatchments = append(plan.DeleteCatchments, MappingRow{CatchmentID: c, HealthID: cur.HealthID})
		}
		for _, c := range newCatchments {
			plan.PutCatchments = append(plan.PutCatchments, MappingRow{CatchmentID: c, LastUpdated: ts, HealthID: cur.HealthID})
		}
	}

	plan.reconcileApprovalRows(cur.HealthID, oldCatchments, newCatchments, oldPending, newPending)
	return plan
}

// reconcileApprovalRows keeps the pending-approval mapping in lock-step with
// the pending set: rows exist exactly while the set is non-empty, one per
// current catchment, stamped with the newest submission time.
func (p *Plan) reconcileApprovalRows(healthID string, oldCatchments, newCatchments []string,
	oldPending, newPending models.PendingApprovalSet) {

	hadRows := !oldPending.IsEmpty() && len(oldCatchments) > 0
	wantRows := !newPending.IsEmpty() && len(newCatchments) > 0

	if !hadRows && !wantRows {
		return
	}
	if hadRows && !wantRows {
		for _, c := range oldCatchments {
			p.DeleteApprovalRows = append(p.DeleteApprovalRows, MappingRow{CatchmentID: c, HealthID: healthID})
		}
		return
	}

	newTS := newPending.Latest().UnixNano()
	if hadRows {
		oldTS := oldPending.Latest().UnixNano()
		if oldTS == newTS && sameSet(oldCatchments, newCatchments) {
			return
		}
		// Rows are keyed by catchment+record, so refreshing a timestamp
		// is an upsert; deletes are only needed for departed catchments.
		for _, c := range oldCatchments {
			if !contains(newCatchments, c) {
				p.DeleteApprovalRows = append(p.DeleteApprovalRows, MappingRow{CatchmentID: c, HealthID: healthID})
			}
		}
	}
	for _, c := range newCatchments {
		p.PutApprovalRows = append(p.PutApprovalRows, MappingRow{CatchmentID: c, LastUpdated: newTS, HealthID: healthID})
	}
}

// identifierValue derives the indexable value of one kind from a record.
// Blank derivations mean "no mapping" and never produce an index row.
func identifierValue(p *models.Person, kind Kind) string {
	switch kind {
	case KindNationalID:
		return strings.TrimSpace(p.NationalID)
	case KindBirthRegistration:
		return strings.TrimSpace(p.BirthRegistrationNumber)
	case KindUID:
		return strings.TrimSpace(p.UID)
	case KindHouseholdCode:
		return strings.TrimSpace(p.HouseholdCode)
	case KindPhoneNumber:
		return strings.TrimSpace(p.PhoneNumber.Number)
	case KindNameLocation:
		return nameLocationValue(p)
	default:
		return ""
	}
}

// nameLocationValue builds the compound given-name+catchment key. It needs
// both a given name and an upazila-level address; anything less is not
// searchable by name within a catchment.
func nameLocationValue(p *models.Person) string {
	a := p.PresentAddress
	if p.GivenName == "" || a.DivisionID == "" || a.DistrictID == "" || a.UpazilaID == "" {
		return ""
	}
	key := a.DivisionID + a.DistrictID + a.UpazilaID + ":" + strings.ToLower(strings.TrimSpace(p.GivenName))
	if p.SurName != "" {
		key += ":" + strings.ToLower(strings.TrimSpace(p.SurName))
	}
	return key
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, v := range a {
		if !contains(b, v) {
			return false
		}
	}
	return true
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
