package domain

import "time"

// ActorSystem marks transitions triggered by the engine itself
// (scheduler wakes, sweeps, reconciliation).
const ActorSystem = "system"

// UserActor formats the actor string for a user-triggered transition.
func UserActor(userID string) string {
	return "user:" + userID
}

// TransitionRecord is one immutable entry in the append-only audit
// ledger. Records are never updated or deleted.
type TransitionRecord struct {
	ID          string
	Kind        AggregateKind
	AggregateID string
	From        Status
	To          Status
	Actor       string
	Reason      string
	Metadata    map[string]string
	CreatedAt   time.Time
}
