// Package catchment derives geographic catchment identifiers from a present
// address and evaluates catchment-scoped authority.
//
// A catchment ID is the concatenation of geo codes down to one
// administrative level: division "10", district "1020", upazila "102030",
// and so on. A record therefore belongs to one catchment per populated
// level, coarsest first.
package catchment

import "civreg/internal/person/models"

// IDs returns every catchment the address belongs to, coarsest first.
// Levels are hierarchical: derivation stops at the first unset level.
// An address without a division yields no catchments.
func IDs(a models.Address) []string {
	levels := []string{
		a.DivisionID,
		a.DistrictID,
		a.UpazilaID,
		a.CityCorporationID,
		a.UnionOrUrbanWardID,
		a.RuralWardID,
	}
	var ids []string
	prefix := ""
	for _, code := range levels {
		if code == "" {
			break
		}
		prefix += code
		ids = append(ids, prefix)
	}
	return ids
}

// Authority is the set of catchments a caller is entitled to act on, as
// granted by the token issuer.
type Authority []string

// Covers reports whether the authority reaches any of the record's
// catchments. Because a record carries one catchment per granularity, an
// approver scoped to "1020" covers every record in that district without
// prefix arithmetic.
func (a Authority) Covers(recordCatchments []string) bool {
	for _, granted := range a {
		for _, c := range recordCatchments {
			if granted == c {
				return true
			}
		}
	}
	return false
}
