// Package service is the record consistency engine: it applies creates,
// updates, and approval resolutions to the canonical record and keeps every
// derived index and mapping in lock-step.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"civreg/internal/catchment"
	"civreg/internal/person/approve"
	"civreg/internal/person/index"
	"civreg/internal/person/merge"
	"civreg/internal/person/metrics"
	"civreg/internal/person/models"
	"civreg/internal/person/policy"
	"civreg/internal/person/store"
	"civreg/internal/platform/idgen"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/feed"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/platform/tracing"
	"civreg/pkg/requestcontext"
)

// Stores bundles the persistence dependencies of the engine.
type Stores struct {
	Records     store.RecordStore
	Approvals   store.ApprovalStore
	Indexes     store.IndexStore
	Catchments  store.MappingStore
	ApprovalMap store.MappingStore
}

// Service orchestrates record mutations and index reconciliation.
type Service struct {
	stores  Stores
	policy  *policy.Policy
	ids     idgen.Allocator
	feed    feed.Publisher
	logger  *slog.Logger
	metrics *metrics.Metrics
	locks   *keyedLocks
}

// Option configures optional service dependencies.
type Option func(*Service)

// WithFeed sets the change-notification publisher.
func WithFeed(p feed.Publisher) Option {
	return func(s *Service) { s.feed = p }
}

// WithMetrics sets the engine metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(stores Stores, pol *policy.Policy, ids idgen.Allocator, opts ...Option) *Service {
	s := &Service{
		stores: stores,
		policy: pol,
		ids:    ids,
		logger: slog.Default(),
		locks:  newKeyedLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new canonical record. A record arriving with a
// pre-assigned health ID must not exist yet; a record without one gets an
// ID from the allocator. No pending staging is possible on create.
func (s *Service) Create(ctx context.Context, p *models.Person) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Create")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("create", time.Since(start)) }()

	now := requestcontext.Now(ctx)
	rec := p.Clone()
	if rec.HealthID == "" {
		rec.HealthID = s.ids.NextID()
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if err := s.stores.Records.Create(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return "", dErrors.Newf(dErrors.CodeConflict, "health id %q already registered", rec.HealthID)
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to create record")
	}

	s.reconcile(ctx, nil, rec, nil, nil)
	s.publish(ctx, feed.Change{
		HealthID:  rec.HealthID,
		Action:    feed.ActionCreated,
		At:        now,
		Requester: requestcontext.Requester(ctx),
	})
	s.metrics.RecordCreated()
	return rec.HealthID, nil
}

// Update merges a partial change into the record. Fields whose policy
// requires approval accumulate as pending proposals; the rest write
// directly. A request whose fields all equal current canonical values is a
// legitimate no-op.
func (s *Service) Update(ctx context.Context, healthID string, fields map[string]any) (*models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Update")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("update", time.Since(start)) }()

	unlock := s.locks.Lock(healthID)
	defer unlock()

	existing, err := s.stores.Records.Find(ctx, healthID)
	if err != nil {
		return nil, notFoundOrInternal(err, healthID)
	}
	oldPending, err := s.stores.Approvals.Load(ctx, healthID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pending approvals")
	}

	now := requestcontext.Now(ctx)
	requester := requestcontext.Requester(ctx)

	rec := existing.Clone()
	res, err := merge.Apply(rec, fields, oldPending, s.policy, requester, now)
	if err != nil {
		return nil, err
	}
	if !res.Changed() {
		return existing, nil
	}

	rec.UpdatedAt = now
	if err := s.stores.Records.Update(ctx, rec); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist record")
	}
	if err := s.stores.Approvals.Save(ctx, healthID, res.Pending); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist pending approvals")
	}

	s.reconcile(ctx, existing, rec, oldPending, res.Pending)

	action := feed.ActionUpdated
	if len(res.Applied) == 0 && len(res.Staged) > 0 {
		action = feed.ActionApprovalStaged
	}
	change := feed.Change{
		HealthID:      healthID,
		Action:        action,
		At:            now,
		Requester:     requester,
		PendingFields: res.Pending.Fields(),
	}
	for _, applied := range res.Applied {
		change.Fields = append(change.Fields, feed.FieldChange{Field: applied.Field, Old: applied.Old, New: applied.New})
	}
	s.publish(ctx, change)
	s.metrics.RecordUpdated()
	return rec, nil
}

// ResolvePending applies an approver's accept/reject decision to one
// pending field or block. The approver's catchment authority must cover the
// record's current present-address catchment; authority is checked before
// any mutation so a refusal has no partial effects.
func (s *Service) ResolvePending(ctx context.Context, healthID, field string, decision approve.Decision, value any) (*models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "person.ResolvePending")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("resolve", time.Since(start)) }()

	unlock := s.locks.Lock(healthID)
	defer unlock()

	rec, err := s.stores.Records.Find(ctx, healthID)
	if err != nil {
		return nil, notFoundOrInternal(err, healthID)
	}

	authority := catchment.Authority(requestcontext.CatchmentAuthority(ctx))
	if !authority.Covers(catchment.IDs(rec.PresentAddress)) {
		return nil, dErrors.New(dErrors.CodeForbidden, "approver catchment does not cover this record")
	}

	oldPending, err := s.stores.Approvals.Load(ctx, healthID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pending approvals")
	}

	outcome, err := approve.Resolve(oldPending, field, decision, value)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	updated := rec.Clone()
	oldValue, _ := models.GetField(rec, field)
	if outcome.Accepted {
		if err := models.SetField(updated, field, outcome.Value); err != nil {
			return nil, err
		}
		updated.UpdatedAt = now
		if err := s.stores.Records.Update(ctx, updated); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist record")
		}
	}
	if err := s.stores.Approvals.Save(ctx, healthID, outcome.Pending); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist pending approvals")
	}

	s.reconcile(ctx, rec, updated, oldPending, outcome.Pending)

	change := feed.Change{
		HealthID:      healthID,
		At:            now,
		Requester:     requestcontext.Requester(ctx),
		PendingFields: outcome.Pending.Fields(),
	}
	if outcome.Accepted {
		change.Action = feed.ActionApprovalAccepted
		change.Fields = []feed.FieldChange{{Field: field, Old: oldValue, New: outcome.Value}}
	} else {
		change.Action = feed.ActionApprovalRejected
		change.Fields = []feed.FieldChange{{Field: field}}
	}
	s.publish(ctx, change)
	s.metrics.ApprovalResolved(decision.String())
	return updated, nil
}

// FindByHealthID loads one canonical record.
func (s *Service) FindByHealthID(ctx context.Context, healthID string) (*models.Person, error) {
	rec, err := s.stores.Records.Find(ctx, healthID)
	if err != nil {
		return nil, notFoundOrInternal(err, healthID)
	}
	return rec, nil
}

// FindByIdentifier resolves an identifier value through its index, then
// loads the canonical record.
func (s *Service) FindByIdentifier(ctx context.Context, kind index.Kind, value string) (*models.Person, error) {
	if value == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "identifier value is required")
	}
	healthID, err := s.stores.Indexes.Lookup(ctx, kind, value)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "no record for %s %q", kind, value)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "identifier lookup failed")
	}
	return s.FindByHealthID(ctx, healthID)
}

// CatchmentPage is one page of catchment-scoped records.
type CatchmentPage struct {
	Records []*models.Person
	// LastMarker is the time-ordered cursor of the final row, to be passed
	// back as the next page's after marker. Zero when the page is empty.
	LastMarker int64
}

// FindByCatchment lists records in a catchment updated after the given
// markers, oldest first. since and after are alternative cursors; the
// stricter one wins.
func (s *Service) FindByCatchment(ctx context.Context, catchmentID string, since time.Time, after int64, limit int) (*CatchmentPage, error) {
	if catchmentID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "catchment id is required")
	}
	if !since.IsZero() && since.UnixNano() > after {
		after = since.UnixNano()
	}
	rows, err := s.stores.Catchments.List(ctx, catchmentID, after, 0, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "catchment search failed")
	}

	page := &CatchmentPage{}
	for _, row := range rows {
		rec, err := s.stores.Records.Find(ctx, row.HealthID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				// Stale mapping row; repair rather than surface.
				_ = s.stores.Catchments.Delete(ctx, row.CatchmentID, row.HealthID)
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load record")
		}
		page.Records = append(page.Records, rec)
		page.LastMarker = row.LastUpdated
	}
	return page, nil
}

// PendingSummary describes one record's approval backlog within a catchment.
type PendingSummary struct {
	HealthID    string    `json:"hid"`
	CatchmentID string    `json:"catchment_id"`
	LastUpdated int64     `json:"last_updated"`
	Fields      []string  `json:"fields"`
	Latest      time.Time `json:"latest_submission"`
}

// ListPendingApprovals lists records with outstanding proposals in a
// catchment, most recently staged first.
func (s *Service) ListPendingApprovals(ctx context.Context, catchmentID string, after, before int64, limit int) ([]PendingSummary, error) {
	if catchmentID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "catchment id is required")
	}
	rows, err := s.stores.ApprovalMap.ListRecent(ctx, catchmentID, after, before, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "pending approval search failed")
	}

	summaries := make([]PendingSummary, 0, len(rows))
	for _, row := range rows {
		set, err := s.stores.Approvals.Load(ctx, row.HealthID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pending approvals")
		}
		if set.IsEmpty() {
			// Mapping row outlived its pending set; repair in passing.
			_ = s.stores.ApprovalMap.Delete(ctx, row.CatchmentID, row.HealthID)
			continue
		}
		summaries = append(summaries, PendingSummary{
			HealthID:    row.HealthID,
			CatchmentID: row.CatchmentID,
			LastUpdated: row.LastUpdated,
			Fields:      set.Fields(),
			Latest:      set.Latest(),
		})
	}
	return summaries, nil
}

// PendingApprovals returns a record's outstanding proposals.
func (s *Service) PendingApprovals(ctx context.Context, healthID string) (models.PendingApprovalSet, error) {
	if _, err := s.stores.Records.Find(ctx, healthID); err != nil {
		return nil, notFoundOrInternal(err, healthID)
	}
	set, err := s.stores.Approvals.Load(ctx, healthID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pending approvals")
	}
	return set, nil
}

func (s *Service) publish(ctx context.Context, change feed.Change) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, change); err != nil {
		s.logger.WarnContext(ctx, "change notification failed",
			slog.String("health_id", change.HealthID),
			slog.String("action", string(change.Action)),
			slog.String("error", err.Error()))
	}
}

func notFoundOrInternal(err error, healthID string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Newf(dErrors.CodeNotFound, "record %q not found", healthID)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load record")
}
