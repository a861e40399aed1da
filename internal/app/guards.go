package app

import (
	"context"
	"fmt"

	"github.com/gatherhall/lifecycle/internal/domain"
)

// GuardFunc is a predicate gating one specific status edge. A nil
// return allows the transition; a GuardRejectedError refuses it with a
// reason the caller can surface.
type GuardFunc func(ctx context.Context, aggregateID string, tc TransitionContext) error

func guardKey(kind domain.AggregateKind, from, to domain.Status) string {
	return fmt.Sprintf("%s:%s->%s", kind, from, to)
}

// RegisterGuard installs a guard for one edge, replacing any existing
// guard for that edge.
func (e *Executor) RegisterGuard(kind domain.AggregateKind, from, to domain.Status, guard GuardFunc) {
	e.guards[guardKey(kind, from, to)] = guard
}

func (e *Executor) registerDefaultGuards() {
	e.RegisterGuard(domain.KindEvent, domain.EventDraft, domain.EventPublished, e.guardEventPublish)
	e.RegisterGuard(domain.KindTicket, domain.TicketApproved, domain.TicketStaked, guardTicketStake)
	e.RegisterGuard(domain.KindTicket, domain.TicketStaked, domain.TicketRefunded, guardTicketRefund)
	e.RegisterGuard(domain.KindTicket, domain.TicketStaked, domain.TicketForfeited, e.guardTicketForfeit)
}

// Publishing fixes the event's schedule, so both instants must arrive
// with the transition.
func (e *Executor) guardEventPublish(ctx context.Context, eventID string, tc TransitionContext) error {
	if tc.Schedule == nil || tc.Schedule.StartsAt.IsZero() || tc.Schedule.EndsAt.IsZero() {
		return &domain.GuardRejectedError{Reason: "publishing requires start and end instants"}
	}
	if !tc.Schedule.EndsAt.After(tc.Schedule.StartsAt) {
		return &domain.GuardRejectedError{Reason: "scheduled end must be after scheduled start"}
	}
	return nil
}

func guardTicketStake(ctx context.Context, ticketID string, tc TransitionContext) error {
	if tc.Stake == nil || tc.Stake.TxHash == "" {
		return &domain.GuardRejectedError{Reason: "stake data with a transaction hash is required"}
	}
	return nil
}

func guardTicketRefund(ctx context.Context, ticketID string, tc TransitionContext) error {
	if tc.RefundTxHash == "" {
		return &domain.GuardRejectedError{Reason: "refund transaction hash is required"}
	}
	return nil
}

// A stake may be forfeited once the parent event is ended or archived,
// or once its scheduled end has passed even if no trigger has flipped
// the event yet. The second clause is the catch-up path and must stay.
func (e *Executor) guardTicketForfeit(ctx context.Context, ticketID string, tc TransitionContext) error {
	ticket, err := e.ledger.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	event, err := e.ledger.GetEvent(ctx, ticket.EventID)
	if err != nil {
		return err
	}
	if event.Status == domain.EventEnded || event.Status == domain.EventArchived {
		return nil
	}
	if event.Over(e.clock.Now()) {
		return nil
	}
	return &domain.GuardRejectedError{Reason: "cannot forfeit until event has ended"}
}
