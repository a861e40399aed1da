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

// SweepStore provides the time-window scans the catch-up jobs run.
type SweepStore interface {
	ListEventsDueToStart(ctx context.Context, now time.Time, limit int) ([]domain.Event, error)
	ListEventsDueToEnd(ctx context.Context, now time.Time, limit int) ([]domain.Event, error)
	// ListNoShowTickets returns staked tickets whose event's scheduled
	// end is at or before endedBefore.
	ListNoShowTickets(ctx context.Context, endedBefore time.Time, limit int) ([]domain.Ticket, error)
}

const (
	startSweepInterval  = 5 * time.Minute
	endSweepInterval    = 5 * time.Minute
	noShowSweepInterval = 15 * time.Minute
	noShowGracePeriod   = time.Hour
	sweepBatchLimit     = 500
)

// SweepSummary is the operator-facing result of one sweep run.
type SweepSummary struct {
	Job          string
	Scanned      int
	Transitioned int
	Skipped      int
	Failed       int
}

// Sweeper runs the periodic catch-up jobs. They cover the same ground
// as the scheduler's timers on purpose: timers are lost on restarts and
// deploys, so every trigger condition is also polled. Redundant
// attempts fall out as rule-table no-ops.
type Sweeper struct {
	exec   *Executor
	store  SweepStore
	clock  clock.Clock
	logger *log.Logger
}

func NewSweeper(exec *Executor, store SweepStore, clk clock.Clock, logger *log.Logger) *Sweeper {
	if logger == nil {
		logger = log.Default()
	}
	return &Sweeper{
		exec:   exec,
		store:  store,
		clock:  clk,
		logger: logger,
	}
}

// RunStartSweep transitions published events whose start has passed.
func (s *Sweeper) RunStartSweep(ctx context.Context) (SweepSummary, error) {
	sum := SweepSummary{Job: "start_sweep"}
	events, err := s.store.ListEventsDueToStart(ctx, s.clock.Now(), sweepBatchLimit)
	if err != nil {
		return sum, fmt.Errorf("list events due to start: %w", err)
	}
	for _, ev := range events {
		s.attempt(ctx, &sum, domain.KindEvent, ev.ID, domain.EventLive, "start sweep catch-up")
	}
	s.logSummary(sum)
	return sum, nil
}

// RunEndSweep transitions live events whose end has passed.
func (s *Sweeper) RunEndSweep(ctx context.Context) (SweepSummary, error) {
	sum := SweepSummary{Job: "end_sweep"}
	events, err := s.store.ListEventsDueToEnd(ctx, s.clock.Now(), sweepBatchLimit)
	if err != nil {
		return sum, fmt.Errorf("list events due to end: %w", err)
	}
	for _, ev := range events {
		s.attempt(ctx, &sum, domain.KindEvent, ev.ID, domain.EventEnded, "end sweep catch-up")
	}
	s.logSummary(sum)
	return sum, nil
}

// RunNoShowSweep forfeits staked tickets whose event ended at least the
// grace period ago.
func (s *Sweeper) RunNoShowSweep(ctx context.Context) (SweepSummary, error) {
	sum := SweepSummary{Job: "no_show_sweep"}
	cutoff := s.clock.Now().Add(-noShowGracePeriod)
	tickets, err := s.store.ListNoShowTickets(ctx, cutoff, sweepBatchLimit)
	if err != nil {
		return sum, fmt.Errorf("list no-show tickets: %w", err)
	}
	for _, t := range tickets {
		s.attempt(ctx, &sum, domain.KindTicket, t.ID, domain.TicketForfeited, "no-show sweep forfeit")
	}
	s.logSummary(sum)
	return sum, nil
}

func (s *Sweeper) attempt(ctx context.Context, sum *SweepSummary, kind domain.AggregateKind, id string, target domain.Status, reason string) {
	sum.Scanned++
	_, err := s.exec.Execute(ctx, kind, id, target, TransitionContext{
		Actor:  domain.ActorSystem,
		Reason: reason,
	})
	switch {
	case err == nil:
		sum.Transitioned++
		metrics.SweepTransitionsTotal.WithLabelValues(sum.Job).Inc()
	case IsExpectedConflict(err):
		sum.Skipped++
		metrics.SweepSkipsTotal.WithLabelValues(sum.Job).Inc()
	default:
		sum.Failed++
		metrics.SweepFailuresTotal.WithLabelValues(sum.Job).Inc()
		s.logger.Printf("%s: %s %s -> %s: %v", sum.Job, kind, id, target, err)
	}
}

func (s *Sweeper) logSummary(sum SweepSummary) {
	s.logger.Printf(
		"%s: scanned=%d transitioned=%d skipped=%d failed=%d",
		sum.Job, sum.Scanned, sum.Transitioned, sum.Skipped, sum.Failed,
	)
}

// Run drives the three sweeps on their cadences until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	startTicker := time.NewTicker(startSweepInterval)
	defer startTicker.Stop()
	endTicker := time.NewTicker(endSweepInterval)
	defer endTicker.Stop()
	noShowTicker := time.NewTicker(noShowSweepInterval)
	defer noShowTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-startTicker.C:
			if _, err := s.RunStartSweep(ctx); err != nil {
				s.logger.Printf("start_sweep: %v", err)
			}
		case <-endTicker.C:
			if _, err := s.RunEndSweep(ctx); err != nil {
				s.logger.Printf("end_sweep: %v", err)
			}
		case <-noShowTicker.C:
			if _, err := s.RunNoShowSweep(ctx); err != nil {
				s.logger.Printf("no_show_sweep: %v", err)
			}
		}
	}
}
