package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/gatherhall/lifecycle/internal/app"
	"github.com/gatherhall/lifecycle/internal/domain"
	"github.com/jackc/pgx/v5"
)

const ticketColumns = `id, event_id, status, stake_amount, stake_currency, stake_tx_hash, stake_wallet,
refund_tx_hash, settlement_tx_hash, checked_in_at, created_at, updated_at`

func (s *Store) CreateTicket(ctx context.Context, ticket domain.Ticket) error {
	const stmt = `
INSERT INTO tickets (id, event_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)`

	_, err := s.exec(ctx, stmt,
		ticket.ID,
		ticket.EventID,
		ticket.Status,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

func (s *Store) GetTicket(ctx context.Context, id string) (domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	t, err := scanTicket(s.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Ticket{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Ticket{}, domain.ErrNotFound
		}
		return domain.Ticket{}, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

// UpdateTicketStatus is the conditional write for tickets. Side fields
// only ever fill in; they are never cleared by a later transition.
func (s *Store) UpdateTicketStatus(ctx context.Context, id string, from, to domain.Status, change app.TicketChange, now time.Time) (bool, error) {
	const stmt = `
UPDATE tickets
SET status = $3,
    stake_amount = COALESCE($4, stake_amount),
    stake_currency = COALESCE($5, stake_currency),
    stake_tx_hash = COALESCE($6, stake_tx_hash),
    stake_wallet = COALESCE($7, stake_wallet),
    refund_tx_hash = COALESCE($8, refund_tx_hash),
    checked_in_at = COALESCE($9, checked_in_at),
    updated_at = $10
WHERE id = $1 AND status = $2`

	var stakeAmount, stakeCurrency, stakeTxHash, stakeWallet *string
	if change.Stake != nil {
		stakeAmount = &change.Stake.Amount
		stakeCurrency = &change.Stake.Currency
		stakeTxHash = &change.Stake.TxHash
		stakeWallet = &change.Stake.Wallet
	}
	var refundTxHash *string
	if change.RefundTxHash != "" {
		refundTxHash = &change.RefundTxHash
	}

	tag, err := s.exec(ctx, stmt,
		id, from, to,
		stakeAmount, stakeCurrency, stakeTxHash, stakeWallet,
		refundTxHash,
		change.CheckedInAt,
		now,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("update ticket status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListStakedTicketsByEvent(ctx context.Context, eventID string) ([]domain.Ticket, error) {
	const query = `
SELECT ` + ticketColumns + `
FROM tickets
WHERE event_id = $1 AND status = 'staked'
ORDER BY created_at`

	return s.listTickets(ctx, "list staked tickets", query, eventID)
}

// ListNoShowTickets returns staked tickets whose event's scheduled end
// is at or before endedBefore. The forfeit guard re-checks the event on
// each transition, so this scan can stay coarse.
func (s *Store) ListNoShowTickets(ctx context.Context, endedBefore time.Time, limit int) ([]domain.Ticket, error) {
	const query = `
SELECT t.id, t.event_id, t.status, t.stake_amount, t.stake_currency, t.stake_tx_hash, t.stake_wallet,
t.refund_tx_hash, t.settlement_tx_hash, t.checked_in_at, t.created_at, t.updated_at
FROM tickets t
JOIN events e ON e.id = t.event_id
WHERE t.status = 'staked' AND e.ends_at IS NOT NULL AND e.ends_at <= $1
ORDER BY e.ends_at
LIMIT $2`

	return s.listTickets(ctx, "list no-show tickets", query, endedBefore, limit)
}

func (s *Store) ListRecentlyUpdatedStakedTickets(ctx context.Context, since time.Time, limit int) ([]domain.Ticket, error) {
	const query = `
SELECT ` + ticketColumns + `
FROM tickets
WHERE status = 'staked' AND updated_at >= $1
ORDER BY updated_at DESC
LIMIT $2`

	return s.listTickets(ctx, "list recently updated staked tickets", query, since, limit)
}

// RecordSettlement stores the escrow transaction hash produced by a
// release or forfeit. It deliberately does not touch status.
func (s *Store) RecordSettlement(ctx context.Context, ticketID, txHash string) error {
	const stmt = `UPDATE tickets SET settlement_tx_hash = $2, updated_at = NOW() WHERE id = $1`

	tag, err := s.exec(ctx, stmt, ticketID, txHash)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("record settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) listTickets(ctx context.Context, op, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tickets, nil
}

func scanTicket(row pgx.Row) (domain.Ticket, error) {
	var t domain.Ticket
	var stakeAmount, stakeCurrency, stakeTxHash, stakeWallet *string
	var refundTxHash, settlementTxHash *string

	err := row.Scan(
		&t.ID, &t.EventID, &t.Status,
		&stakeAmount, &stakeCurrency, &stakeTxHash, &stakeWallet,
		&refundTxHash, &settlementTxHash, &t.CheckedInAt,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return domain.Ticket{}, err
	}

	if stakeTxHash != nil {
		t.Stake = &domain.Stake{TxHash: *stakeTxHash}
		if stakeAmount != nil {
			t.Stake.Amount = *stakeAmount
		}
		if stakeCurrency != nil {
			t.Stake.Currency = *stakeCurrency
		}
		if stakeWallet != nil {
			t.Stake.Wallet = *stakeWallet
		}
	}
	if refundTxHash != nil {
		t.RefundTxHash = *refundTxHash
	}
	if settlementTxHash != nil {
		t.SettlementTxHash = *settlementTxHash
	}
	return t, nil
}
