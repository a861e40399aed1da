package app

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/gatherhall/lifecycle/internal/domain"
)

func TestScheduler_ChainsFullLifecycle(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := newManualClock(t0)
	ledger := newFakeLedger(
		[]domain.Event{{ID: "e1", Name: "Meetup", Status: domain.EventDraft, UpdatedAt: t0}},
		[]domain.Ticket{{ID: "t1", EventID: "e1", Status: domain.TicketStaked, Stake: &domain.Stake{TxHash: "0xstake"}, UpdatedAt: t0}},
	)

	logger := log.New(io.Discard, "", 0)
	dispatcher := NewDispatcher(logger)
	exec := NewExecutor(ledger, clk, dispatcher)
	sched := NewScheduler(exec, ledger, clk, logger, WithNoShowGrace(30*time.Minute))
	sched.Register(dispatcher)
	defer sched.Stop()

	starts := t0.Add(time.Hour)
	ends := t0.Add(3 * time.Hour)
	_, err := exec.Execute(context.Background(), domain.KindEvent, "e1", domain.EventPublished, TransitionContext{
		Actor:    "user:organizer",
		Schedule: &Schedule{StartsAt: starts, EndsAt: ends},
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	// Publishing arms the start trigger; nothing fires before the instant.
	clk.Advance(30 * time.Minute)
	assertStatusStays(t, func() domain.Status { return ledger.eventStatus("e1") }, domain.EventPublished)

	clk.Advance(30 * time.Minute)
	waitForStatus(t, func() domain.Status { return ledger.eventStatus("e1") }, domain.EventLive)

	clk.Advance(2 * time.Hour)
	waitForStatus(t, func() domain.Status { return ledger.eventStatus("e1") }, domain.EventEnded)

	// The no-show pass waits out the grace period before forfeiting.
	assertStatusStays(t, func() domain.Status { return ledger.ticketStatus("t1") }, domain.TicketStaked)

	clk.Advance(30 * time.Minute)
	waitForStatus(t, func() domain.Status { return ledger.ticketStatus("t1") }, domain.TicketForfeited)
}

func TestScheduler_StaleTriggerSkipped(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := newManualClock(t0)
	ledger := newFakeLedger(
		[]domain.Event{{ID: "e1", Status: domain.EventArchived, UpdatedAt: t0}},
		nil,
	)

	logger := log.New(io.Discard, "", 0)
	exec := NewExecutor(ledger, clk, nil)
	sched := NewScheduler(exec, ledger, clk, logger)

	// The trigger's instant is already past; on wake the aggregate is no
	// longer in the expected prior status, so the trigger is dropped.
	sched.ScheduleAt(domain.KindEvent, "e1", domain.EventLive, t0.Add(-time.Minute), domain.EventPublished)
	sched.Stop()

	if got := ledger.eventStatus("e1"); got != domain.EventArchived {
		t.Fatalf("expected archived untouched, got %s", got)
	}
	if len(ledger.transitions) != 0 {
		t.Fatalf("expected no audit entries, got %d", len(ledger.transitions))
	}
}

func TestScheduler_RestoreReArmsTimers(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := newManualClock(t0)
	starts := t0.Add(time.Hour)
	ends := t0.Add(2 * time.Hour)
	pastEnd := t0.Add(-time.Minute)
	ledger := newFakeLedger(
		[]domain.Event{
			{ID: "e1", Status: domain.EventPublished, StartsAt: &starts, EndsAt: &ends, UpdatedAt: t0},
			{ID: "e2", Status: domain.EventLive, EndsAt: &pastEnd, UpdatedAt: t0},
			{ID: "e3", Status: domain.EventDraft, UpdatedAt: t0},
		},
		nil,
	)

	logger := log.New(io.Discard, "", 0)
	exec := NewExecutor(ledger, clk, nil)
	sched := NewScheduler(exec, ledger, clk, logger)
	defer sched.Stop()

	if err := sched.Restore(context.Background()); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	// e2's end already passed, so its trigger fires on the catch-up path.
	waitForStatus(t, func() domain.Status { return ledger.eventStatus("e2") }, domain.EventEnded)

	clk.Advance(time.Hour)
	waitForStatus(t, func() domain.Status { return ledger.eventStatus("e1") }, domain.EventLive)

	if got := ledger.eventStatus("e3"); got != domain.EventDraft {
		t.Fatalf("expected draft event untouched, got %s", got)
	}
}

func waitForStatus(t *testing.T, get func() domain.Status, want domain.Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if get() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %s, last saw %s", want, get())
}

func assertStatusStays(t *testing.T, get func() domain.Status, want domain.Status) {
	t.Helper()
	time.Sleep(20 * time.Millisecond)
	if got := get(); got != want {
		t.Fatalf("expected status to stay %s, got %s", want, got)
	}
}

// manualClock only moves when Advance is called. Sleepers wake as soon
// as the clock reaches their instant.
type manualClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []chan struct{}
}

func newManualClock(t time.Time) *manualClock {
	return &manualClock{now: t}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) SleepUntil(ctx context.Context, t time.Time) error {
	for {
		c.mu.Lock()
		if !c.now.Before(t) {
			c.mu.Unlock()
			return nil
		}
		ch := make(chan struct{})
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()
	for _, ch := range waiters {
		close(ch)
	}
}
