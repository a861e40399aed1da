package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gatherhall/lifecycle/internal/clock"
	"github.com/gatherhall/lifecycle/internal/domain"
)

func TestRegistryService(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("creates event in draft", func(t *testing.T) {
		ledger := newFakeLedger(nil, nil)
		svc := NewRegistryService(ledger, clock.NewFixed(now))

		event, err := svc.CreateEvent(context.Background(), CreateEventInput{Name: "Demo Day"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if event.ID == "" {
			t.Fatalf("expected event ID to be set")
		}
		if event.Status != domain.EventDraft {
			t.Fatalf("expected draft, got %s", event.Status)
		}
		if event.CreatedAt != now {
			t.Fatalf("expected created_at %v, got %v", now, event.CreatedAt)
		}
	})

	t.Run("rejects empty event name", func(t *testing.T) {
		ledger := newFakeLedger(nil, nil)
		svc := NewRegistryService(ledger, clock.NewFixed(now))

		_, err := svc.CreateEvent(context.Background(), CreateEventInput{})
		if !errors.Is(err, domain.ErrEventNameRequired) {
			t.Fatalf("expected ErrEventNameRequired, got %v", err)
		}
	})

	t.Run("registers pending ticket on open event", func(t *testing.T) {
		ledger := newFakeLedger(
			[]domain.Event{{ID: "e1", Status: domain.EventPublished}},
			nil,
		)
		svc := NewRegistryService(ledger, clock.NewFixed(now))

		ticket, err := svc.RegisterTicket(context.Background(), RegisterTicketInput{EventID: "e1"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if ticket.Status != domain.TicketPending {
			t.Fatalf("expected pending, got %s", ticket.Status)
		}
		if ticket.EventID != "e1" {
			t.Fatalf("expected event e1, got %s", ticket.EventID)
		}
	})

	t.Run("registration closed once event ended", func(t *testing.T) {
		ledger := newFakeLedger(
			[]domain.Event{{ID: "e1", Status: domain.EventEnded}},
			nil,
		)
		svc := NewRegistryService(ledger, clock.NewFixed(now))

		_, err := svc.RegisterTicket(context.Background(), RegisterTicketInput{EventID: "e1"})
		if !errors.Is(err, domain.ErrRegistrationClosed) {
			t.Fatalf("expected ErrRegistrationClosed, got %v", err)
		}
	})

	t.Run("registration on unknown event", func(t *testing.T) {
		ledger := newFakeLedger(nil, nil)
		svc := NewRegistryService(ledger, clock.NewFixed(now))

		_, err := svc.RegisterTicket(context.Background(), RegisterTicketInput{EventID: "ghost"})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStatusService(t *testing.T) {
	t.Parallel()

	t.Run("event status info lists valid next statuses", func(t *testing.T) {
		ledger := newFakeLedger(
			[]domain.Event{{ID: "e1", Name: "Demo", Status: domain.EventPublished}},
			nil,
		)
		svc := NewStatusService(ledger)

		info, err := svc.GetStatusInfo(context.Background(), domain.KindEvent, "e1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if info.CurrentStatus != domain.EventPublished {
			t.Fatalf("expected published, got %s", info.CurrentStatus)
		}
		if info.IsTerminal {
			t.Fatalf("published must not be terminal")
		}
		if len(info.ValidNextStatuses) != 2 {
			t.Fatalf("expected 2 next statuses, got %v", info.ValidNextStatuses)
		}
		if info.Event == nil || info.Event.Name != "Demo" {
			t.Fatalf("expected event payload, got %+v", info.Event)
		}
	})

	t.Run("terminal ticket has no next statuses", func(t *testing.T) {
		ledger := newFakeLedger(
			[]domain.Event{{ID: "e1", Status: domain.EventEnded}},
			[]domain.Ticket{{ID: "t1", EventID: "e1", Status: domain.TicketForfeited}},
		)
		svc := NewStatusService(ledger)

		info, err := svc.GetStatusInfo(context.Background(), domain.KindTicket, "t1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !info.IsTerminal {
			t.Fatalf("forfeited must be terminal")
		}
		if info.ValidNextStatuses != nil {
			t.Fatalf("expected no next statuses, got %v", info.ValidNextStatuses)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		svc := NewStatusService(newFakeLedger(nil, nil))
		_, err := svc.GetStatusInfo(context.Background(), domain.AggregateKind("order"), "x")
		if !errors.Is(err, domain.ErrUnknownKind) {
			t.Fatalf("expected ErrUnknownKind, got %v", err)
		}
		if _, err := svc.ListTransitions(context.Background(), domain.AggregateKind("order"), "x"); !errors.Is(err, domain.ErrUnknownKind) {
			t.Fatalf("expected ErrUnknownKind, got %v", err)
		}
	})
}
