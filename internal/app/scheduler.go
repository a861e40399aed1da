package app

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gatherhall/lifecycle/internal/clock"
	"github.com/gatherhall/lifecycle/internal/domain"
	"github.com/gatherhall/lifecycle/internal/metrics"
)

// SchedulerStore is the read surface the scheduler needs: status
// re-validation on wake, the staked tickets of an event for the no-show
// pass, and the events whose timers must be re-armed after a restart.
type SchedulerStore interface {
	GetEvent(ctx context.Context, id string) (domain.Event, error)
	GetTicket(ctx context.Context, id string) (domain.Ticket, error)
	ListStakedTicketsByEvent(ctx context.Context, eventID string) ([]domain.Ticket, error)
	ListScheduledEvents(ctx context.Context) ([]domain.Event, error)
}

const defaultNoShowGrace = 30 * time.Minute

// Scheduler suspends one goroutine per scheduled transition until its
// exact instant, re-validates the aggregate on wake and drives the
// transition through the executor. Follow-up triggers chain off the
// dispatcher, so a transition applied by a sweep or an operator still
// schedules its successors. Timers are in-process; Restore re-arms them
// on boot and the sweeps catch anything lost in between.
type Scheduler struct {
	exec        *Executor
	store       SchedulerStore
	clock       clock.Clock
	logger      *log.Logger
	noShowGrace time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type SchedulerOption func(*Scheduler)

// WithNoShowGrace overrides the delay between an event ending and the
// scheduled forfeit pass over its staked tickets.
func WithNoShowGrace(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.noShowGrace = d
		}
	}
}

func NewScheduler(exec *Executor, store SchedulerStore, clk clock.Clock, logger *log.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		exec:        exec,
		store:       store,
		clock:       clk,
		logger:      logger,
		noShowGrace: defaultNoShowGrace,
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register subscribes the scheduler's chaining handlers.
func (s *Scheduler) Register(d *Dispatcher) {
	d.Subscribe(EventPublishedName, s.HandleDomainEvent)
	d.Subscribe(EventStartedName, s.HandleDomainEvent)
	d.Subscribe(EventEndedName, s.HandleDomainEvent)
}

// Stop cancels all pending timers and waits for in-flight work.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// ScheduleAt arms a single-shot trigger: sleep until when, re-validate
// that the aggregate is still in expectedPrior, then transition it to
// target. A past instant fires immediately (catch-up path).
func (s *Scheduler) ScheduleAt(kind domain.AggregateKind, id string, target domain.Status, when time.Time, expectedPrior domain.Status) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.clock.SleepUntil(s.ctx, when); err != nil {
			return
		}
		s.fire(kind, id, target, expectedPrior)
	}()
}

func (s *Scheduler) fire(kind domain.AggregateKind, id string, target domain.Status, expectedPrior domain.Status) {
	current, err := s.currentStatus(s.ctx, kind, id)
	if err != nil {
		s.logger.Printf("scheduler: read %s %s: %v", kind, id, err)
		return
	}
	if current != expectedPrior {
		// Another path already moved the aggregate; the trigger is
		// stale and is dropped, not retried.
		metrics.ScheduledTriggersStaleTotal.Inc()
		s.logger.Printf("scheduler: stale trigger %s %s: expected %s, found %s", kind, id, expectedPrior, current)
		return
	}

	_, err = s.exec.Execute(s.ctx, kind, id, target, TransitionContext{
		Actor:  domain.ActorSystem,
		Reason: "scheduled transition",
	})
	if err != nil {
		if IsExpectedConflict(err) {
			metrics.ScheduledTriggersStaleTotal.Inc()
			s.logger.Printf("scheduler: trigger %s %s -> %s lost race: %v", kind, id, target, err)
		} else {
			s.logger.Printf("scheduler: trigger %s %s -> %s failed: %v", kind, id, target, err)
		}
		return
	}
	metrics.ScheduledTriggersFiredTotal.Inc()
}

func (s *Scheduler) currentStatus(ctx context.Context, kind domain.AggregateKind, id string) (domain.Status, error) {
	switch kind {
	case domain.KindEvent:
		ev, err := s.store.GetEvent(ctx, id)
		if err != nil {
			return "", err
		}
		return ev.Status, nil
	case domain.KindTicket:
		t, err := s.store.GetTicket(ctx, id)
		if err != nil {
			return "", err
		}
		return t.Status, nil
	default:
		return "", domain.ErrUnknownKind
	}
}

// HandleDomainEvent chains follow-up schedules: publish arms the start
// trigger, start arms the end trigger, end arms the no-show grace pass.
func (s *Scheduler) HandleDomainEvent(ctx context.Context, ev DomainEvent) {
	switch ev.Name {
	case EventPublishedName:
		s.scheduleEventStart(ev.AggregateID)
	case EventStartedName:
		s.scheduleEventEnd(ev.AggregateID)
	case EventEndedName:
		s.scheduleNoShowPass(ev.AggregateID)
	}
}

func (s *Scheduler) scheduleEventStart(eventID string) {
	event, err := s.store.GetEvent(s.ctx, eventID)
	if err != nil {
		s.logger.Printf("scheduler: read event %s: %v", eventID, err)
		return
	}
	if event.StartsAt == nil {
		s.logger.Printf("scheduler: event %s published without a start instant", eventID)
		return
	}
	s.ScheduleAt(domain.KindEvent, eventID, domain.EventLive, *event.StartsAt, domain.EventPublished)
}

func (s *Scheduler) scheduleEventEnd(eventID string) {
	event, err := s.store.GetEvent(s.ctx, eventID)
	if err != nil {
		s.logger.Printf("scheduler: read event %s: %v", eventID, err)
		return
	}
	if event.EndsAt == nil {
		s.logger.Printf("scheduler: event %s live without an end instant", eventID)
		return
	}
	s.ScheduleAt(domain.KindEvent, eventID, domain.EventEnded, *event.EndsAt, domain.EventLive)
}

func (s *Scheduler) scheduleNoShowPass(eventID string) {
	when := s.clock.Now().Add(s.noShowGrace)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.clock.SleepUntil(s.ctx, when); err != nil {
			return
		}
		s.forfeitStaked(eventID)
	}()
}

// forfeitStaked forfeits every ticket still staked on the event. Each
// forfeit goes through the executor, so tickets that were refunded or
// checked in meanwhile are skipped by the rule table.
func (s *Scheduler) forfeitStaked(eventID string) {
	tickets, err := s.store.ListStakedTicketsByEvent(s.ctx, eventID)
	if err != nil {
		s.logger.Printf("scheduler: list staked tickets for event %s: %v", eventID, err)
		return
	}

	forfeited, skipped := 0, 0
	for _, t := range tickets {
		_, err := s.exec.Execute(s.ctx, domain.KindTicket, t.ID, domain.TicketForfeited, TransitionContext{
			Actor:  domain.ActorSystem,
			Reason: "no-show forfeit after event end",
		})
		switch {
		case err == nil:
			forfeited++
		case IsExpectedConflict(err):
			skipped++
		default:
			s.logger.Printf("scheduler: forfeit ticket %s: %v", t.ID, err)
		}
	}
	s.logger.Printf("scheduler: no-show pass event=%s forfeited=%d skipped=%d", eventID, forfeited, skipped)
}

// Restore re-arms timers for events that were mid-lifecycle when the
// process last stopped.
func (s *Scheduler) Restore(ctx context.Context) error {
	events, err := s.store.ListScheduledEvents(ctx)
	if err != nil {
		return err
	}
	restored := 0
	for _, ev := range events {
		switch ev.Status {
		case domain.EventPublished:
			if ev.StartsAt != nil {
				s.ScheduleAt(domain.KindEvent, ev.ID, domain.EventLive, *ev.StartsAt, domain.EventPublished)
				restored++
			}
		case domain.EventLive:
			if ev.EndsAt != nil {
				s.ScheduleAt(domain.KindEvent, ev.ID, domain.EventEnded, *ev.EndsAt, domain.EventLive)
				restored++
			}
		}
	}
	s.logger.Printf("scheduler: restored %d triggers", restored)
	return nil
}
