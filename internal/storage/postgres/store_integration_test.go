package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gatherhall/lifecycle/internal/app"
	"github.com/gatherhall/lifecycle/internal/domain"
	"github.com/gatherhall/lifecycle/internal/testutil"
	"github.com/google/uuid"
)

func TestEventStore(t *testing.T) {
	pool := testutil.NewTestPool(t)
	store := NewStore(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("GetEvent maps missing and malformed ids", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		id := testutil.InsertEvent(t, ctx, pool, "Concert", domain.EventDraft, nil, nil)
		ev, err := store.GetEvent(ctx, id)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if ev.Name != "Concert" || ev.Status != domain.EventDraft {
			t.Fatalf("unexpected event: %+v", ev)
		}

		if _, err := store.GetEvent(ctx, "00000000-0000-0000-0000-000000000001"); err != domain.ErrNotFound {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := store.GetEvent(ctx, "not-a-uuid"); err != domain.ErrInvalidID {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})

	t.Run("UpdateEventStatus is a compare-and-swap", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		starts := now.Add(time.Hour)
		ends := now.Add(2 * time.Hour)
		id := testutil.InsertEvent(t, ctx, pool, "Concert", domain.EventDraft, nil, nil)

		applied, err := store.UpdateEventStatus(ctx, id, domain.EventDraft, domain.EventPublished, app.EventChange{StartsAt: &starts, EndsAt: &ends}, now)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !applied {
			t.Fatalf("expected update to apply")
		}

		ev, err := store.GetEvent(ctx, id)
		if err != nil {
			t.Fatalf("get event: %v", err)
		}
		if ev.Status != domain.EventPublished {
			t.Fatalf("expected published, got %s", ev.Status)
		}
		if ev.StartsAt == nil || !ev.StartsAt.Equal(starts) {
			t.Fatalf("expected starts_at %v, got %v", starts, ev.StartsAt)
		}

		// The stored status no longer matches the expected prior, so the
		// same write must miss.
		applied, err = store.UpdateEventStatus(ctx, id, domain.EventDraft, domain.EventPublished, app.EventChange{}, now)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if applied {
			t.Fatalf("expected stale update to miss")
		}

		// A change with no schedule must not clear the stored instants.
		applied, err = store.UpdateEventStatus(ctx, id, domain.EventPublished, domain.EventLive, app.EventChange{}, now)
		if err != nil || !applied {
			t.Fatalf("expected live update to apply, got applied=%t err=%v", applied, err)
		}
		ev, err = store.GetEvent(ctx, id)
		if err != nil {
			t.Fatalf("get event: %v", err)
		}
		if ev.StartsAt == nil || ev.EndsAt == nil {
			t.Fatalf("expected schedule preserved, got %+v", ev)
		}
	})

	t.Run("due and scheduled listings", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		past := now.Add(-time.Hour)
		future := now.Add(time.Hour)
		due := testutil.InsertEvent(t, ctx, pool, "Due", domain.EventPublished, &past, &future)
		testutil.InsertEvent(t, ctx, pool, "Early", domain.EventPublished, &future, nil)
		ending := testutil.InsertEvent(t, ctx, pool, "Ending", domain.EventLive, &past, &past)
		testutil.InsertEvent(t, ctx, pool, "Draft", domain.EventDraft, nil, nil)

		starts, err := store.ListEventsDueToStart(ctx, now, 10)
		if err != nil {
			t.Fatalf("list due to start: %v", err)
		}
		if len(starts) != 1 || starts[0].ID != due {
			t.Fatalf("expected only the due event, got %+v", starts)
		}

		ends, err := store.ListEventsDueToEnd(ctx, now, 10)
		if err != nil {
			t.Fatalf("list due to end: %v", err)
		}
		if len(ends) != 1 || ends[0].ID != ending {
			t.Fatalf("expected only the ending event, got %+v", ends)
		}

		scheduled, err := store.ListScheduledEvents(ctx)
		if err != nil {
			t.Fatalf("list scheduled: %v", err)
		}
		if len(scheduled) != 3 {
			t.Fatalf("expected 3 scheduled events, got %d", len(scheduled))
		}
	})
}

func TestTicketStore(t *testing.T) {
	pool := testutil.NewTestPool(t)
	store := NewStore(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	stake := &domain.Stake{Amount: "25", Currency: "USDC", TxHash: "0xstake", Wallet: "0xwallet"}

	t.Run("CreateTicket enforces the event reference", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		err := store.CreateTicket(ctx, domain.Ticket{
			ID:        uuid.NewString(),
			EventID:   "00000000-0000-0000-0000-000000000001",
			Status:    domain.TicketPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != domain.ErrNotFound {
			t.Fatalf("expected ErrNotFound for missing event, got %v", err)
		}
	})

	t.Run("UpdateTicketStatus fills side fields and round-trips the stake", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		eventID := testutil.InsertEvent(t, ctx, pool, "Concert", domain.EventPublished, nil, nil)
		ticketID := testutil.InsertTicket(t, ctx, pool, eventID, domain.TicketApproved, nil)

		applied, err := store.UpdateTicketStatus(ctx, ticketID, domain.TicketApproved, domain.TicketStaked, app.TicketChange{Stake: stake}, now)
		if err != nil || !applied {
			t.Fatalf("expected stake update to apply, got applied=%t err=%v", applied, err)
		}

		ticket, err := store.GetTicket(ctx, ticketID)
		if err != nil {
			t.Fatalf("get ticket: %v", err)
		}
		if ticket.Status != domain.TicketStaked {
			t.Fatalf("expected staked, got %s", ticket.Status)
		}
		if ticket.Stake == nil || *ticket.Stake != *stake {
			t.Fatalf("expected stake round-trip, got %+v", ticket.Stake)
		}

		applied, err = store.UpdateTicketStatus(ctx, ticketID, domain.TicketApproved, domain.TicketStaked, app.TicketChange{}, now)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if applied {
			t.Fatalf("expected stale update to miss")
		}
	})

	t.Run("ListNoShowTickets joins against the event schedule", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		endedLongAgo := now.Add(-2 * time.Hour)
		endedRecently := now.Add(-10 * time.Minute)
		oldEvent := testutil.InsertEvent(t, ctx, pool, "Old", domain.EventEnded, nil, &endedLongAgo)
		freshEvent := testutil.InsertEvent(t, ctx, pool, "Fresh", domain.EventEnded, nil, &endedRecently)

		overdue := testutil.InsertTicket(t, ctx, pool, oldEvent, domain.TicketStaked, stake)
		testutil.InsertTicket(t, ctx, pool, freshEvent, domain.TicketStaked, stake)
		testutil.InsertTicket(t, ctx, pool, oldEvent, domain.TicketCheckedIn, stake)

		got, err := store.ListNoShowTickets(ctx, now.Add(-time.Hour), 10)
		if err != nil {
			t.Fatalf("list no-show tickets: %v", err)
		}
		if len(got) != 1 || got[0].ID != overdue {
			t.Fatalf("expected only the overdue staked ticket, got %+v", got)
		}
	})

	t.Run("RecordSettlement stores the hash without touching status", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		eventID := testutil.InsertEvent(t, ctx, pool, "Concert", domain.EventEnded, nil, nil)
		ticketID := testutil.InsertTicket(t, ctx, pool, eventID, domain.TicketForfeited, stake)

		if err := store.RecordSettlement(ctx, ticketID, "0xsettle"); err != nil {
			t.Fatalf("record settlement: %v", err)
		}
		ticket, err := store.GetTicket(ctx, ticketID)
		if err != nil {
			t.Fatalf("get ticket: %v", err)
		}
		if ticket.SettlementTxHash != "0xsettle" {
			t.Fatalf("expected settlement hash, got %q", ticket.SettlementTxHash)
		}
		if ticket.Status != domain.TicketForfeited {
			t.Fatalf("expected status untouched, got %s", ticket.Status)
		}

		if err := store.RecordSettlement(ctx, "00000000-0000-0000-0000-000000000001", "0x"); err != domain.ErrNotFound {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestTransitionStore(t *testing.T) {
	pool := testutil.NewTestPool(t)
	store := NewStore(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("append and list newest first", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		eventID := testutil.InsertEvent(t, ctx, pool, "Concert", domain.EventLive, nil, nil)

		first := domain.TransitionRecord{
			ID:          uuid.NewString(),
			Kind:        domain.KindEvent,
			AggregateID: eventID,
			From:        domain.EventDraft,
			To:          domain.EventPublished,
			Actor:       "user:alice",
			Reason:      "go live",
			Metadata:    map[string]string{"starts_at": now.Format(time.RFC3339)},
			CreatedAt:   now.Add(-time.Hour),
		}
		second := domain.TransitionRecord{
			ID:          uuid.NewString(),
			Kind:        domain.KindEvent,
			AggregateID: eventID,
			From:        domain.EventPublished,
			To:          domain.EventLive,
			Actor:       domain.ActorSystem,
			Reason:      "scheduled transition",
			CreatedAt:   now,
		}
		if err := store.AppendTransition(ctx, first); err != nil {
			t.Fatalf("append first: %v", err)
		}
		if err := store.AppendTransition(ctx, second); err != nil {
			t.Fatalf("append second: %v", err)
		}

		records, err := store.ListTransitions(ctx, domain.KindEvent, eventID)
		if err != nil {
			t.Fatalf("list transitions: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("expected 2 records, got %d", len(records))
		}
		if records[0].ID != second.ID || records[1].ID != first.ID {
			t.Fatalf("expected newest first, got %s then %s", records[0].ID, records[1].ID)
		}
		if records[1].Metadata["starts_at"] != first.Metadata["starts_at"] {
			t.Fatalf("expected metadata round-trip, got %v", records[1].Metadata)
		}
		if records[0].Metadata != nil {
			t.Fatalf("expected empty metadata to come back nil, got %v", records[0].Metadata)
		}
	})
}

func TestStoreWithTx(t *testing.T) {
	pool := testutil.NewTestPool(t)
	store := NewStore(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("rollback discards the conditional write", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		id := testutil.InsertEvent(t, ctx, pool, "Concert", domain.EventLive, nil, nil)

		wantErr := domain.ErrConcurrentModification
		err := store.WithTx(ctx, func(txCtx context.Context) error {
			applied, err := store.UpdateEventStatus(txCtx, id, domain.EventLive, domain.EventEnded, app.EventChange{}, time.Now().UTC())
			if err != nil {
				t.Fatalf("update in tx: %v", err)
			}
			if !applied {
				t.Fatalf("expected update to apply inside tx")
			}
			return wantErr
		})
		if err != wantErr {
			t.Fatalf("expected %v, got %v", wantErr, err)
		}

		ev, err := store.GetEvent(ctx, id)
		if err != nil {
			t.Fatalf("get event: %v", err)
		}
		if ev.Status != domain.EventLive {
			t.Fatalf("expected rollback to keep live, got %s", ev.Status)
		}
	})
}
