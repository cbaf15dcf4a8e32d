// Package domain holds small identity types shared by services, stores, and
// transport without dragging in business logic.
package domain

import "strings"

// Requester identifies who asked for a change. Exactly the identities the
// approval workflow distinguishes: a facility system, an individual provider,
// or an admin user. Zero or more may be set; all empty means anonymous.
type Requester struct {
	FacilityID string `json:"facility_id,omitempty"`
	ProviderID string `json:"provider_id,omitempty"`
	AdminID    string `json:"admin_id,omitempty"`
}

// IsEmpty reports whether no identity is present.
func (r Requester) IsEmpty() bool {
	return r.FacilityID == "" && r.ProviderID == "" && r.AdminID == ""
}

// String renders a compact identity for logs and change events.
func (r Requester) String() string {
	parts := make([]string, 0, 3)
	if r.FacilityID != "" {
		parts = append(parts, "facility:"+r.FacilityID)
	}
	if r.ProviderID != "" {
		parts = append(parts, "provider:"+r.ProviderID)
	}
	if r.AdminID != "" {
		parts = append(parts, "admin:"+r.AdminID)
	}
	if len(parts) == 0 {
		return "anonymous"
	}
	return strings.Join(parts, ",")
}
