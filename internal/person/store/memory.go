package store

import (
	"context"
	"sort"
	"sync"

	"civreg/internal/person/index"
	"civreg/internal/person/models"
)

// In-memory stores keep unit tests fast and serve as the reference
// implementation of the store contracts. They intentionally favor clarity
// over performance.

type MemoryRecords struct {
	mu      sync.RWMutex
	records map[string]*models.Person
}

func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{records: make(map[string]*models.Person)}
}

func (s *MemoryRecords) Create(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[p.HealthID]; ok {
		return ErrConflict
	}
	s.records[p.HealthID] = p.Clone()
	return nil
}

func (s *MemoryRecords) Update(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[p.HealthID]; !ok {
		return ErrNotFound
	}
	s.records[p.HealthID] = p.Clone()
	return nil
}

func (s *MemoryRecords) Find(_ context.Context, healthID string) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.records[healthID]; ok {
		return p.Clone(), nil
	}
	return nil, ErrNotFound
}

type MemoryApprovals struct {
	mu   sync.RWMutex
	sets map[string]models.PendingApprovalSet
}

func NewMemoryApprovals() *MemoryApprovals {
	return &MemoryApprovals{sets: make(map[string]models.PendingApprovalSet)}
}

func (s *MemoryApprovals) Load(_ context.Context, healthID string) (models.PendingApprovalSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sets[healthID].Clone(), nil
}

func (s *MemoryApprovals) Save(_ context.Context, healthID string, set models.PendingApprovalSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set.IsEmpty() {
		delete(s.sets, healthID)
		return nil
	}
	s.sets[healthID] = set.Clone()
	return nil
}

type MemoryIndexes struct {
	mu      sync.RWMutex
	entries map[index.Kind]map[string]string
}

func NewMemoryIndexes() *MemoryIndexes {
	return &MemoryIndexes{entries: make(map[index.Kind]map[string]string)}
}

func (s *MemoryIndexes) Put(_ context.Context, e index.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind, ok := s.entries[e.Kind]
	if !ok {
		kind = make(map[string]string)
		s.entries[e.Kind] = kind
	}
	kind[e.Value] = e.HealthID
	return nil
}

func (s *MemoryIndexes) Delete(_ context.Context, kind index.Kind, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries[kind], value)
	return nil
}

func (s *MemoryIndexes) Lookup(_ context.Context, kind index.Kind, value string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if healthID, ok := s.entries[kind][value]; ok {
		return healthID, nil
	}
	return "", ErrNotFound
}

// Entries returns every row of one kind, for invariant checks in tests.
func (s *MemoryIndexes) Entries(kind index.Kind) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.entries[kind]))
	for v, hid := range s.entries[kind] {
		out[v] = hid
	}
	return out
}

type MemoryMappings struct {
	mu   sync.RWMutex
	rows map[string]map[string]int64 // catchment → health ID → lastUpdated
}

func NewMemoryMappings() *MemoryMappings {
	return &MemoryMappings{rows: make(map[string]map[string]int64)}
}

func (s *MemoryMappings) Put(_ context.Context, row index.MappingRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byRecord, ok := s.rows[row.CatchmentID]
	if !ok {
		byRecord = make(map[string]int64)
		s.rows[row.CatchmentID] = byRecord
	}
	byRecord[row.HealthID] = row.LastUpdated
	return nil
}

func (s *MemoryMappings) Delete(_ context.Context, catchmentID, healthID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows[catchmentID], healthID)
	return nil
}

func (s *MemoryMappings) List(_ context.Context, catchmentID string, after, before int64, limit int) ([]index.MappingRow, error) {
	return s.list(catchmentID, after, before, limit, false), nil
}

func (s *MemoryMappings) ListRecent(_ context.Context, catchmentID string, after, before int64, limit int) ([]index.MappingRow, error) {
	return s.list(catchmentID, after, before, limit, true), nil
}

func (s *MemoryMappings) list(catchmentID string, after, before int64, limit int, desc bool) []index.MappingRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []index.MappingRow
	for healthID, ts := range s.rows[catchmentID] {
		if after > 0 && ts <= after {
			continue
		}
		if before > 0 && ts >= before {
			continue
		}
		rows = append(rows, index.MappingRow{CatchmentID: catchmentID, LastUpdated: ts, HealthID: healthID})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].LastUpdated == rows[j].LastUpdated {
			return rows[i].HealthID < rows[j].HealthID
		}
		if desc {
			return rows[i].LastUpdated > rows[j].LastUpdated
		}
		return rows[i].LastUpdated < rows[j].LastUpdated
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// Rows returns every row in one catchment, for invariant checks in tests.
func (s *MemoryMappings) Rows(catchmentID string) map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.rows[catchmentID]))
	for hid, ts := range s.rows[catchmentID] {
		out[hid] = ts
	}
	return out
}
