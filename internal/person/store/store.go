// Package store defines the persistence boundary of the registry engine.
//
// Stores are interface-driven to keep the domain logic testable and to allow
// swapping in-memory and external persistence without rewiring business
// code. The backing store is assumed to offer per-row atomicity only; no
// interface method spans rows, and every write is idempotent so reconcile
// plans can be retried and interleaved safely.
package store

import (
	"context"

	"civreg/internal/person/index"
	"civreg/internal/person/models"
)

// RecordStore persists canonical records.
type RecordStore interface {
	// Create inserts a new record. Returns sentinel.ErrConflict when the
	// health ID already exists; an existing record is never overwritten.
	Create(ctx context.Context, p *models.Person) error
	// Update overwrites the record row. Last write wins at the row level.
	Update(ctx context.Context, p *models.Person) error
	// Find returns the record or sentinel.ErrNotFound.
	Find(ctx context.Context, healthID string) (*models.Person, error)
}

// ApprovalStore persists each record's pending approval set.
type ApprovalStore interface {
	// Load returns the record's pending set; an empty set when none.
	Load(ctx context.Context, healthID string) (models.PendingApprovalSet, error)
	// Save replaces the record's pending set. Saving an empty set removes
	// the row entirely.
	Save(ctx context.Context, healthID string, set models.PendingApprovalSet) error
}

// IndexStore persists identifier index rows.
type IndexStore interface {
	// Put inserts or overwrites the (kind, value) → health ID row.
	Put(ctx context.Context, e index.Entry) error
	// Delete removes the row; deleting an absent row is a no-op.
	Delete(ctx context.Context, kind index.Kind, value string) error
	// Lookup returns the health ID mapped to (kind, value), or
	// sentinel.ErrNotFound.
	Lookup(ctx context.Context, kind index.Kind, value string) (string, error)
}

// MappingStore persists catchment-keyed rows ordered by their time-ordered
// identifier. It backs both the catchment mapping and the pending-approval
// mapping, which share shape and semantics.
type MappingStore interface {
	// Put upserts the row keyed by (catchment, health ID).
	Put(ctx context.Context, row index.MappingRow) error
	// Delete removes the row; deleting an absent row is a no-op.
	Delete(ctx context.Context, catchmentID, healthID string) error
	// List returns rows in catchmentID with after < lastUpdated < before,
	// ascending, up to limit. Zero bounds mean unbounded.
	List(ctx context.Context, catchmentID string, after, before int64, limit int) ([]index.MappingRow, error)
	// ListRecent is List with descending order, for most-recent-first
	// pending approval inboxes.
	ListRecent(ctx context.Context, catchmentID string, after, before int64, limit int) ([]index.MappingRow, error)
}
