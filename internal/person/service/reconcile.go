package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"civreg/internal/person/index"
	"civreg/internal/person/models"
)

const (
	reconcileAttempts    = 3
	reconcileRetryDelay  = 50 * time.Millisecond
	reconcileConcurrency = 8
)

// reconcile computes and applies the index plan for one record mutation.
//
// Every operation is idempotent and independently retryable. Failures are
// logged and counted but never propagated: once the canonical record write
// has succeeded it is the durable truth, and residual index drift is left
// for the next mutation or read-path repair to correct rather than rolled
// back.
func (s *Service) reconcile(ctx context.Context, old, cur *models.Person, oldPending, newPending models.PendingApprovalSet) {
	plan := index.BuildPlan(old, cur, oldPending, newPending)
	if plan.Empty() {
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileConcurrency)

	for _, e := range plan.DeleteEntries {
		g.Go(s.indexOp(ctx, "index_delete", func(ctx context.Context) error {
			return s.stores.Indexes.Delete(ctx, e.Kind, e.Value)
		}))
	}
	for _, e := range plan.PutEntries {
		g.Go(s.indexOp(ctx, "index_put", func(ctx context.Context) error {
			return s.stores.Indexes.Put(ctx, e)
		}))
	}
	for _, row := range plan.DeleteCatchments {
		g.Go(s.indexOp(ctx, "catchment_delete", func(ctx context.Context) error {
			return s.stores.Catchments.Delete(ctx, row.CatchmentID, row.HealthID)
		}))
	}
	for _, row := range plan.PutCatchments {
		g.Go(s.indexOp(ctx, "catchment_put", func(ctx context.Context) error {
			return s.stores.Catchments.Put(ctx, row)
		}))
	}
	for _, row := range plan.DeleteApprovalRows {
		g.Go(s.indexOp(ctx, "approval_map_delete", func(ctx context.Context) error {
			return s.stores.ApprovalMap.Delete(ctx, row.CatchmentID, row.HealthID)
		}))
	}
	for _, row := range plan.PutApprovalRows {
		g.Go(s.indexOp(ctx, "approval_map_put", func(ctx context.Context) error {
			return s.stores.ApprovalMap.Put(ctx, row)
		}))
	}

	_ = g.Wait()
}

// indexOp wraps one reconcile write with retries. The returned closure
// always reports nil so one failed write never cancels its siblings.
func (s *Service) indexOp(ctx context.Context, name string, op func(context.Context) error) func() error {
	return func() error {
		var err error
		for attempt := 1; attempt <= reconcileAttempts; attempt++ {
			if err = op(ctx); err == nil {
				s.metrics.ReconcileOp("ok")
				return nil
			}
			if ctx.Err() != nil {
				break
			}
			select {
			case <-time.After(time.Duration(attempt) * reconcileRetryDelay):
			case <-ctx.Done():
			}
		}
		s.metrics.ReconcileOp("failed")
		s.logger.WarnContext(ctx, "index reconcile op failed",
			slog.String("op", name),
			slog.String("error", err.Error()))
		return nil
	}
}
