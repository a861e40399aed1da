package domain

import "time"

// Stake describes funds held against a ticket while it is staked.
type Stake struct {
	Amount   string
	Currency string
	TxHash   string
	Wallet   string
}

// Ticket represents one guest's registration on one event.
type Ticket struct {
	ID      string
	EventID string
	Status  Status
	// Stake is set when the ticket enters staked and kept afterwards so
	// hooks can release or forfeit the funds.
	Stake *Stake
	// RefundTxHash is set when the ticket enters refunded.
	RefundTxHash string
	// SettlementTxHash is recorded by the escrow hooks after a
	// successful release (check-in) or forfeit (no-show).
	SettlementTxHash string
	CheckedInAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
