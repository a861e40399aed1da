package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gatherhall/lifecycle/internal/clock"
	"github.com/gatherhall/lifecycle/internal/domain"
	"github.com/gatherhall/lifecycle/internal/metrics"
)

// ReconcilerStore provides the bounded samples the drift loop examines.
type ReconcilerStore interface {
	ListRecentlyUpdatedEvents(ctx context.Context, since time.Time, limit int) ([]domain.Event, error)
	ListRecentlyUpdatedStakedTickets(ctx context.Context, since time.Time, limit int) ([]domain.Ticket, error)
	GetEvent(ctx context.Context, id string) (domain.Event, error)
}

const (
	reconcileInterval   = 30 * time.Minute
	reconcileWindow     = 48 * time.Hour
	reconcileBatchLimit = 200
	reconcileGrace      = time.Hour
)

// ReconcileSummary is the operator-facing result of one reconciliation
// pass.
type ReconcileSummary struct {
	Examined int
	Repaired int
	Skipped  int
	Failed   int
}

// Reconciler recomputes what each sampled aggregate's status should be
// from the current time and related facts, ignoring the stored value,
// and repairs mismatches through the executor. It only ever moves
// forward along declared edges, so it can run concurrently with the
// scheduler and the sweeps; the compare-and-swap resolves any race.
type Reconciler struct {
	exec   *Executor
	store  ReconcilerStore
	clock  clock.Clock
	logger *log.Logger
}

func NewReconciler(exec *Executor, store ReconcilerStore, clk clock.Clock, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.Default()
	}
	return &Reconciler{
		exec:   exec,
		store:  store,
		clock:  clk,
		logger: logger,
	}
}

// RunOnce performs a single reconciliation pass.
func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileSummary, error) {
	var sum ReconcileSummary
	now := r.clock.Now()
	since := now.Add(-reconcileWindow)

	events, err := r.store.ListRecentlyUpdatedEvents(ctx, since, reconcileBatchLimit)
	if err != nil {
		return sum, fmt.Errorf("sample events: %w", err)
	}
	for _, ev := range events {
		sum.Examined++
		r.repairEvent(ctx, &sum, ev, now)
	}

	tickets, err := r.store.ListRecentlyUpdatedStakedTickets(ctx, since, reconcileBatchLimit)
	if err != nil {
		return sum, fmt.Errorf("sample tickets: %w", err)
	}
	for _, t := range tickets {
		sum.Examined++
		r.repairTicket(ctx, &sum, t, now)
	}

	r.logger.Printf(
		"reconciler: examined=%d repaired=%d skipped=%d failed=%d",
		sum.Examined, sum.Repaired, sum.Skipped, sum.Failed,
	)
	return sum, nil
}

func (r *Reconciler) repairEvent(ctx context.Context, sum *ReconcileSummary, ev domain.Event, now time.Time) {
	for _, next := range expectedEventPath(ev, now) {
		_, err := r.exec.Execute(ctx, domain.KindEvent, ev.ID, next, TransitionContext{
			Actor:  domain.ActorSystem,
			Reason: "reconciliation drift repair",
		})
		switch {
		case err == nil:
			sum.Repaired++
			metrics.ReconcilerRepairsTotal.Inc()
			r.logger.Printf("reconciler: fixed drift event=%s to=%s", ev.ID, next)
		case IsExpectedConflict(err):
			sum.Skipped++
			return
		default:
			sum.Failed++
			r.logger.Printf("reconciler: repair event %s -> %s: %v", ev.ID, next, err)
			return
		}
	}
}

func (r *Reconciler) repairTicket(ctx context.Context, sum *ReconcileSummary, t domain.Ticket, now time.Time) {
	ev, err := r.store.GetEvent(ctx, t.EventID)
	if err != nil {
		sum.Failed++
		r.logger.Printf("reconciler: read event %s for ticket %s: %v", t.EventID, t.ID, err)
		return
	}
	if ev.EndsAt == nil || now.Before(ev.EndsAt.Add(reconcileGrace)) {
		return
	}

	_, err = r.exec.Execute(ctx, domain.KindTicket, t.ID, domain.TicketForfeited, TransitionContext{
		Actor:  domain.ActorSystem,
		Reason: "reconciliation drift repair",
	})
	switch {
	case err == nil:
		sum.Repaired++
		metrics.ReconcilerRepairsTotal.Inc()
		r.logger.Printf("reconciler: fixed drift ticket=%s to=%s", t.ID, domain.TicketForfeited)
	case IsExpectedConflict(err):
		sum.Skipped++
	default:
		sum.Failed++
		r.logger.Printf("reconciler: repair ticket %s: %v", t.ID, err)
	}
}

// expectedEventPath returns the legal edges separating the stored
// status from the status implied by the clock, in order. An event past
// its end but still published must pass through live first; the table
// has no published->ended edge.
func expectedEventPath(ev domain.Event, now time.Time) []domain.Status {
	var path []domain.Status
	status := ev.Status
	if status == domain.EventPublished && ev.StartsAt != nil && !now.Before(*ev.StartsAt) {
		path = append(path, domain.EventLive)
		status = domain.EventLive
	}
	if status == domain.EventLive && ev.Over(now) {
		path = append(path, domain.EventEnded)
	}
	return path
}

// Run drives reconciliation passes until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Printf("reconciler: %v", err)
			}
		}
	}
}
