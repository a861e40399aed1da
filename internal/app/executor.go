package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gatherhall/lifecycle/internal/clock"
	"github.com/gatherhall/lifecycle/internal/domain"
	"github.com/google/uuid"
)

// Ledger is the durable record of aggregate statuses plus the
// append-only transition audit log. The status columns are owned
// exclusively by the executor; nothing else writes them.
type Ledger interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetEvent(ctx context.Context, id string) (domain.Event, error)
	GetTicket(ctx context.Context, id string) (domain.Ticket, error)
	// UpdateEventStatus applies the status change only if the stored
	// status still equals from, returning whether the row was updated.
	UpdateEventStatus(ctx context.Context, id string, from, to domain.Status, change EventChange, now time.Time) (bool, error)
	UpdateTicketStatus(ctx context.Context, id string, from, to domain.Status, change TicketChange, now time.Time) (bool, error)
	AppendTransition(ctx context.Context, rec domain.TransitionRecord) error
}

// EventChange carries the side fields written together with an event
// status update.
type EventChange struct {
	StartsAt *time.Time
	EndsAt   *time.Time
}

// TicketChange carries the side fields written together with a ticket
// status update.
type TicketChange struct {
	Stake        *domain.Stake
	RefundTxHash string
	CheckedInAt  *time.Time
}

// Schedule is the pair of instants fixed when an event is published.
type Schedule struct {
	StartsAt time.Time
	EndsAt   time.Time
}

// TransitionContext describes who requested a transition and carries
// the edge-specific payload its guard may require.
type TransitionContext struct {
	Actor        string
	Reason       string
	Metadata     map[string]string
	Schedule     *Schedule
	Stake        *domain.Stake
	RefundTxHash string
}

// TransitionResult reports a successfully applied transition.
type TransitionResult struct {
	Previous       domain.Status
	New            domain.Status
	TransitionedAt time.Time
}

// Executor is the single mutation choke-point for aggregate statuses.
// It validates the requested edge against the rule table, runs the
// matching guard, applies a compare-and-swap update and appends the
// audit entry in one transaction. It performs no external I/O; escrow
// and notification side effects ride on the dispatcher afterwards.
type Executor struct {
	ledger     Ledger
	clock      clock.Clock
	dispatcher *Dispatcher
	guards     map[string]GuardFunc
}

func NewExecutor(ledger Ledger, clk clock.Clock, dispatcher *Dispatcher) *Executor {
	e := &Executor{
		ledger:     ledger,
		clock:      clk,
		dispatcher: dispatcher,
		guards:     make(map[string]GuardFunc),
	}
	e.registerDefaultGuards()
	return e
}

func (e *Executor) Execute(ctx context.Context, kind domain.AggregateKind, id string, target domain.Status, tc TransitionContext) (TransitionResult, error) {
	if !domain.KnownStatus(kind, target) {
		if domain.Statuses(kind) == nil {
			return TransitionResult{}, domain.ErrUnknownKind
		}
		return TransitionResult{}, fmt.Errorf("%w: %q", domain.ErrUnknownStatus, target)
	}

	current, err := e.loadStatus(ctx, kind, id)
	if err != nil {
		return TransitionResult{}, err
	}

	if domain.IsTerminal(kind, current) {
		return TransitionResult{}, fmt.Errorf("%w: %s", domain.ErrTerminalState, current)
	}
	if !domain.CanTransition(kind, current, target) {
		return TransitionResult{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, target)
	}

	if guard, ok := e.guards[guardKey(kind, current, target)]; ok {
		if err := guard(ctx, id, tc); err != nil {
			return TransitionResult{}, err
		}
	}

	now := e.clock.Now()
	err = e.ledger.WithTx(ctx, func(txCtx context.Context) error {
		applied, err := e.applyUpdate(txCtx, kind, id, current, target, tc, now)
		if err != nil {
			return err
		}
		if !applied {
			// A concurrent transition won the race between our read and
			// the conditional write. The caller must re-read, not retry.
			return domain.ErrConcurrentModification
		}
		return e.ledger.AppendTransition(txCtx, domain.TransitionRecord{
			ID:          uuid.NewString(),
			Kind:        kind,
			AggregateID: id,
			From:        current,
			To:          target,
			Actor:       tc.Actor,
			Reason:      tc.Reason,
			Metadata:    auditMetadata(target, tc, now),
			CreatedAt:   now,
		})
	})
	if err != nil {
		return TransitionResult{}, err
	}

	if e.dispatcher != nil {
		e.dispatcher.Publish(ctx, DomainEvent{
			Name:        DomainEventName(kind, target),
			Kind:        kind,
			AggregateID: id,
			From:        current,
			To:          target,
			Actor:       tc.Actor,
			OccurredAt:  now,
		})
	}

	return TransitionResult{Previous: current, New: target, TransitionedAt: now}, nil
}

func (e *Executor) loadStatus(ctx context.Context, kind domain.AggregateKind, id string) (domain.Status, error) {
	switch kind {
	case domain.KindEvent:
		ev, err := e.ledger.GetEvent(ctx, id)
		if err != nil {
			return "", err
		}
		return ev.Status, nil
	case domain.KindTicket:
		t, err := e.ledger.GetTicket(ctx, id)
		if err != nil {
			return "", err
		}
		return t.Status, nil
	default:
		return "", domain.ErrUnknownKind
	}
}

func (e *Executor) applyUpdate(ctx context.Context, kind domain.AggregateKind, id string, from, to domain.Status, tc TransitionContext, now time.Time) (bool, error) {
	switch kind {
	case domain.KindEvent:
		var change EventChange
		if to == domain.EventPublished && tc.Schedule != nil {
			starts := tc.Schedule.StartsAt
			ends := tc.Schedule.EndsAt
			change.StartsAt = &starts
			change.EndsAt = &ends
		}
		return e.ledger.UpdateEventStatus(ctx, id, from, to, change, now)
	case domain.KindTicket:
		var change TicketChange
		switch to {
		case domain.TicketStaked:
			change.Stake = tc.Stake
		case domain.TicketRefunded:
			change.RefundTxHash = tc.RefundTxHash
		case domain.TicketCheckedIn:
			checkedIn := now
			change.CheckedInAt = &checkedIn
		}
		return e.ledger.UpdateTicketStatus(ctx, id, from, to, change, now)
	default:
		return false, domain.ErrUnknownKind
	}
}

// auditMetadata merges the caller's metadata with the edge-specific side
// fields so the ledger entry is self-contained.
func auditMetadata(target domain.Status, tc TransitionContext, now time.Time) map[string]string {
	md := make(map[string]string, len(tc.Metadata)+4)
	for k, v := range tc.Metadata {
		md[k] = v
	}
	switch target {
	case domain.EventPublished:
		if tc.Schedule != nil {
			md["starts_at"] = tc.Schedule.StartsAt.UTC().Format(time.RFC3339)
			md["ends_at"] = tc.Schedule.EndsAt.UTC().Format(time.RFC3339)
		}
	case domain.TicketStaked:
		if tc.Stake != nil {
			md["stake_amount"] = tc.Stake.Amount
			md["stake_currency"] = tc.Stake.Currency
			md["stake_tx_hash"] = tc.Stake.TxHash
		}
	case domain.TicketRefunded:
		if tc.RefundTxHash != "" {
			md["refund_tx_hash"] = tc.RefundTxHash
		}
	case domain.TicketCheckedIn:
		md["checked_in_at"] = now.UTC().Format(time.RFC3339)
	}
	if len(md) == 0 {
		return nil
	}
	return md
}

// IsExpectedConflict reports whether err is one of the outcomes that
// simply means another path already handled the aggregate. Jobs treat
// these as no-ops rather than failures.
func IsExpectedConflict(err error) bool {
	return errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrTerminalState) ||
		errors.Is(err, domain.ErrConcurrentModification)
}
