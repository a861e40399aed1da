package app

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gatherhall/lifecycle/internal/domain"
)

// Domain event names emitted on successful transitions. The scheduler
// and the escrow hooks subscribe to these; external fan-out consumers
// would too.
const (
	EventPublishedName  = "event.published"
	EventStartedName    = "event.started"
	EventEndedName      = "event.ended"
	TicketCheckedInName = "ticket.checked_in"
	TicketForfeitedName = "ticket.forfeited"
)

// DomainEventName maps a successful transition to its event name.
func DomainEventName(kind domain.AggregateKind, to domain.Status) string {
	if kind == domain.KindEvent && to == domain.EventLive {
		return EventStartedName
	}
	return string(kind) + "." + string(to)
}

// DomainEvent describes one successful transition for asynchronous
// consumers. Delivery is at-least-once; handlers must be idempotent.
type DomainEvent struct {
	Name        string
	Kind        domain.AggregateKind
	AggregateID string
	From        domain.Status
	To          domain.Status
	Actor       string
	OccurredAt  time.Time
}

// Handler consumes one domain event. Handlers run synchronously in the
// publisher's goroutine and must not block for long.
type Handler func(ctx context.Context, ev DomainEvent)

// Dispatcher fans domain events out to subscribed handlers in-process.
// It carries no persistence of its own; the transition ledger is the
// durable record and the sweeps re-derive anything a lost event would
// have triggered.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *log.Logger
}

func NewDispatcher(logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for one event name.
func (d *Dispatcher) Subscribe(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = append(d.handlers[name], h)
}

// Publish delivers the event to every handler subscribed to its name.
func (d *Dispatcher) Publish(ctx context.Context, ev DomainEvent) {
	d.mu.RLock()
	handlers := d.handlers[ev.Name]
	d.mu.RUnlock()

	d.logger.Printf(
		"domain event name=%s kind=%s id=%s from=%s to=%s actor=%s",
		ev.Name, ev.Kind, ev.AggregateID, ev.From, ev.To, ev.Actor,
	)
	for _, h := range handlers {
		h(ctx, ev)
	}
}
