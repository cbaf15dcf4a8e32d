// Package postgres implements the registry stores on PostgreSQL.
//
// Each logical table is a simple key→row mapping. Inserts are upserts and
// deletes tolerate absent rows, so reconcile plans stay idempotent at the
// storage level.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"civreg/internal/person/index"
	"civreg/internal/person/models"
	"civreg/internal/person/store"
)

// Store implements every store interface on one database handle.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Schema creates the registry tables. Safe to run at every startup.
const Schema = `
CREATE TABLE IF NOT EXISTS records (
	health_id  TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_approvals (
	health_id TEXT PRIMARY KEY,
	doc       JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS index_entries (
	kind      TEXT NOT NULL,
	value     TEXT NOT NULL,
	health_id TEXT NOT NULL,
	PRIMARY KEY (kind, value)
);

CREATE TABLE IF NOT EXISTS catchment_mapping (
	catchment_id TEXT NOT NULL,
	health_id    TEXT NOT NULL,
	last_updated BIGINT NOT NULL,
	PRIMARY KEY (catchment_id, health_id)
);
CREATE INDEX IF NOT EXISTS catchment_mapping_cursor
	ON catchment_mapping (catchment_id, last_updated);

CREATE TABLE IF NOT EXISTS pending_approval_mapping (
	catchment_id TEXT NOT NULL,
	health_id    TEXT NOT NULL,
	last_updated BIGINT NOT NULL,
	PRIMARY KEY (catchment_id, health_id)
);
CREATE INDEX IF NOT EXISTS pending_approval_mapping_cursor
	ON pending_approval_mapping (catchment_id, last_updated);
`

// EnsureSchema applies the schema.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure registry schema: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// RecordStore
// -----------------------------------------------------------------------------

func (s *Store) Create(ctx context.Context, p *models.Person) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	query := `
		INSERT INTO records (health_id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err = s.db.ExecContext(ctx, query, p.HealthID, doc, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return store.ErrConflict
		}
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, p *models.Person) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	query := `
		UPDATE records SET doc = $2, updated_at = $3 WHERE health_id = $1
	`
	res, err := s.db.ExecContext(ctx, query, p.HealthID, doc, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Find(ctx context.Context, healthID string) (*models.Person, error) {
	var doc []byte
	query := `SELECT doc FROM records WHERE health_id = $1`
	err := s.db.QueryRowContext(ctx, query, healthID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find record: %w", err)
	}
	var p models.Person
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("unmarshal record %s: %w", healthID, err)
	}
	return &p, nil
}

// -----------------------------------------------------------------------------
// ApprovalStore
// -----------------------------------------------------------------------------

func (s *Store) Load(ctx context.Context, healthID string) (models.PendingApprovalSet, error) {
	var doc []byte
	query := `SELECT doc FROM pending_approvals WHERE health_id = $1`
	err := s.db.QueryRowContext(ctx, query, healthID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load pending approvals: %w", err)
	}
	var set models.PendingApprovalSet
	if err := json.Unmarshal(doc, &set); err != nil {
		return nil, fmt.Errorf("unmarshal pending approvals %s: %w", healthID, err)
	}
	return set, nil
}

func (s *Store) Save(ctx context.Context, healthID string, set models.PendingApprovalSet) error {
	if set.IsEmpty() {
		_, err := s.db.ExecContext(ctx, `DELETE FROM pending_approvals WHERE health_id = $1`, healthID)
		if err != nil {
			return fmt.Errorf("delete pending approvals: %w", err)
		}
		return nil
	}
	doc, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshal pending approvals: %w", err)
	}
	query := `
		INSERT INTO pending_approvals (health_id, doc)
		VALUES ($1, $2)
		ON CONFLICT (health_id) DO UPDATE SET doc = EXCLUDED.doc
	`
	if _, err := s.db.ExecContext(ctx, query, healthID, doc); err != nil {
		return fmt.Errorf("save pending approvals: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// IndexStore
// -----------------------------------------------------------------------------

func (s *Store) Put(ctx context.Context, e index.Entry) error {
	query := `
		INSERT INTO index_entries (kind, value, health_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (kind, value) DO UPDATE SET health_id = EXCLUDED.health_id
	`
	if _, err := s.db.ExecContext(ctx, query, string(e.Kind), e.Value, e.HealthID); err != nil {
		return fmt.Errorf("put index entry %s: %w", e.Kind, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, kind index.Kind, value string) error {
	query := `DELETE FROM index_entries WHERE kind = $1 AND value = $2`
	if _, err := s.db.ExecContext(ctx, query, string(kind), value); err != nil {
		return fmt.Errorf("delete index entry %s: %w", kind, err)
	}
	return nil
}

func (s *Store) Lookup(ctx context.Context, kind index.Kind, value string) (string, error) {
	var healthID string
	query := `SELECT health_id FROM index_entries WHERE kind = $1 AND value = $2`
	err := s.db.QueryRowContext(ctx, query, string(kind), value).Scan(&healthID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup index entry %s: %w", kind, err)
	}
	return healthID, nil
}

// -----------------------------------------------------------------------------
// MappingStore (one instance per table)
// -----------------------------------------------------------------------------

// Mappings is a MappingStore bound to one mapping table.
type Mappings struct {
	db    *sql.DB
	table string
}

// CatchmentMappings returns the store for the catchment mapping table.
func (s *Store) CatchmentMappings() *Mappings {
	return &Mappings{db: s.db, table: "catchment_mapping"}
}

// ApprovalMappings returns the store for the pending-approval mapping table.
func (s *Store) ApprovalMappings() *Mappings {
	return &Mappings{db: s.db, table: "pending_approval_mapping"}
}

func (m *Mappings) Put(ctx context.Context, row index.MappingRow) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (catchment_id, health_id, last_updated)
		VALUES ($1, $2, $3)
		ON CONFLICT (catchment_id, health_id) DO UPDATE SET last_updated = EXCLUDED.last_updated
	`, m.table)
	if _, err := m.db.ExecContext(ctx, query, row.CatchmentID, row.HealthID, row.LastUpdated); err != nil {
		return fmt.Errorf("put %s row: %w", m.table, err)
	}
	return nil
}

func (m *Mappings) Delete(ctx context.Context, catchmentID, healthID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE catchment_id = $1 AND health_id = $2`, m.table)
	if _, err := m.db.ExecContext(ctx, query, catchmentID, healthID); err != nil {
		return fmt.Errorf("delete %s row: %w", m.table, err)
	}
	return nil
}

func (m *Mappings) List(ctx context.Context, catchmentID string, after, before int64, limit int) ([]index.MappingRow, error) {
	return m.list(ctx, catchmentID, after, before, limit, "ASC")
}

func (m *Mappings) ListRecent(ctx context.Context, catchmentID string, after, before int64, limit int) ([]index.MappingRow, error) {
	return m.list(ctx, catchmentID, after, before, limit, "DESC")
}

func (m *Mappings) list(ctx context.Context, catchmentID string, after, before int64, limit int, order string) ([]index.MappingRow, error) {
	query := fmt.Sprintf(`
		SELECT catchment_id, health_id, last_updated
		FROM %s
		WHERE catchment_id = $1
		  AND ($2 = 0 OR last_updated > $2)
		  AND ($3 = 0 OR last_updated < $3)
		ORDER BY last_updated %s, health_id
		LIMIT $4
	`, m.table, order)
	if limit <= 0 {
		limit = 100
	}
	rows, err := m.db.QueryContext(ctx, query, catchmentID, after, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", m.table, err)
	}
	defer rows.Close()

	var out []index.MappingRow
	for rows.Next() {
		var row index.MappingRow
		if err := rows.Scan(&row.CatchmentID, &row.HealthID, &row.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", m.table, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", m.table, err)
	}
	return out, nil
}
