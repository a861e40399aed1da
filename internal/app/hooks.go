package app

import (
	"context"
	"log"

	"github.com/gatherhall/lifecycle/internal/domain"
	"github.com/gatherhall/lifecycle/internal/escrow"
	"github.com/gatherhall/lifecycle/internal/metrics"
)

// HookStore is the slice of the ledger the escrow hooks touch. They
// never write status fields.
type HookStore interface {
	GetTicket(ctx context.Context, id string) (domain.Ticket, error)
	RecordSettlement(ctx context.Context, ticketID, txHash string) error
}

// Hooks runs the post-transition escrow side effects. They are
// best-effort: the status transition has already committed by the time
// a hook runs, and an escrow failure is reported and counted but never
// rolls the transition back. A separate idempotent retry job re-drives
// failed settlements from the ledger.
type Hooks struct {
	escrow escrow.Client
	store  HookStore
	logger *log.Logger
}

func NewHooks(client escrow.Client, store HookStore, logger *log.Logger) *Hooks {
	if logger == nil {
		logger = log.Default()
	}
	return &Hooks{
		escrow: client,
		store:  store,
		logger: logger,
	}
}

// Register subscribes the hooks to the transitions they react to.
func (h *Hooks) Register(d *Dispatcher) {
	d.Subscribe(TicketCheckedInName, func(ctx context.Context, ev DomainEvent) {
		h.OnTicketCheckedIn(ctx, ev.AggregateID)
	})
	d.Subscribe(TicketForfeitedName, func(ctx context.Context, ev DomainEvent) {
		h.OnTicketForfeited(ctx, ev.AggregateID)
	})
}

// OnTicketCheckedIn releases the guest's stake back to their wallet.
func (h *Hooks) OnTicketCheckedIn(ctx context.Context, ticketID string) {
	h.settle(ctx, ticketID, false)
}

// OnTicketForfeited claims the stake for the organizer.
func (h *Hooks) OnTicketForfeited(ctx context.Context, ticketID string) {
	h.settle(ctx, ticketID, true)
}

func (h *Hooks) settle(ctx context.Context, ticketID string, forfeit bool) {
	op := "release"
	if forfeit {
		op = "forfeit"
	}

	ticket, err := h.store.GetTicket(ctx, ticketID)
	if err != nil {
		h.logger.Printf("escrow %s: read ticket %s: %v", op, ticketID, err)
		return
	}
	if ticket.Stake == nil {
		return
	}

	var res escrow.Result
	if forfeit {
		res, err = h.escrow.Forfeit(ctx, ticket.EventID, ticket.ID, ticket.Stake.Wallet)
	} else {
		res, err = h.escrow.Release(ctx, ticket.EventID, ticket.ID, ticket.Stake.Wallet)
	}
	if err != nil || !res.Success {
		metrics.EscrowFailuresTotal.Inc()
		h.logger.Printf("escrow %s failed ticket=%s err=%v success=%t", op, ticketID, err, res.Success)
		return
	}

	if res.TxHash != "" {
		if err := h.store.RecordSettlement(ctx, ticketID, res.TxHash); err != nil {
			h.logger.Printf("escrow %s: record settlement ticket=%s: %v", op, ticketID, err)
			return
		}
	}
	h.logger.Printf("escrow %s ticket=%s tx=%s", op, ticketID, res.TxHash)
}
