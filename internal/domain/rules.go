package domain

// AggregateKind names an aggregate family with its own status lifecycle.
type AggregateKind string

const (
	KindEvent  AggregateKind = "event"
	KindTicket AggregateKind = "ticket"
)

// Status is a lifecycle state of an aggregate. The value sets for events
// and tickets are disjoint; the rule tables below are the single source
// of truth for which transitions are legal.
type Status string

const (
	EventDraft     Status = "draft"
	EventPublished Status = "published"
	EventLive      Status = "live"
	EventEnded     Status = "ended"
	EventArchived  Status = "archived"
)

const (
	TicketPending         Status = "pending"
	TicketPendingApproval Status = "pending_approval"
	TicketApproved        Status = "approved"
	TicketRejected        Status = "rejected"
	TicketIssued          Status = "issued"
	TicketStaked          Status = "staked"
	TicketCheckedIn       Status = "checked_in"
	TicketRefunded        Status = "refunded"
	TicketForfeited       Status = "forfeited"
	TicketRevoked         Status = "revoked"
)

// Terminal statuses map to nil: no outgoing edges, ever. Archiving an
// event is an operator action but still flows through the executor, so
// the archived edges are part of the table.
var eventEdges = map[Status][]Status{
	EventDraft:     {EventPublished, EventArchived},
	EventPublished: {EventLive, EventArchived},
	EventLive:      {EventEnded, EventArchived},
	EventEnded:     {EventArchived},
	EventArchived:  nil,
}

// A staked ticket can only leave through checked_in, refunded or
// forfeited; revoking it would strand the held funds.
var ticketEdges = map[Status][]Status{
	TicketPending:         {TicketPendingApproval, TicketApproved, TicketRejected, TicketRevoked},
	TicketPendingApproval: {TicketApproved, TicketRejected, TicketRevoked},
	TicketApproved:        {TicketIssued, TicketStaked, TicketRevoked},
	TicketIssued:          {TicketCheckedIn, TicketRevoked},
	TicketStaked:          {TicketCheckedIn, TicketRefunded, TicketForfeited},
	TicketRejected:        nil,
	TicketCheckedIn:       nil,
	TicketRefunded:        nil,
	TicketForfeited:       nil,
	TicketRevoked:         nil,
}

func edgeTable(kind AggregateKind) map[Status][]Status {
	switch kind {
	case KindEvent:
		return eventEdges
	case KindTicket:
		return ticketEdges
	default:
		return nil
	}
}

// KnownStatus reports whether s is a declared status for the kind.
func KnownStatus(kind AggregateKind, s Status) bool {
	_, ok := edgeTable(kind)[s]
	return ok
}

// CanTransition reports whether (from, to) is a declared edge.
func CanTransition(kind AggregateKind, from, to Status) bool {
	for _, next := range edgeTable(kind)[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s has no outgoing edges.
func IsTerminal(kind AggregateKind, s Status) bool {
	table := edgeTable(kind)
	next, ok := table[s]
	return ok && len(next) == 0
}

// ValidNextStatuses returns a copy of the declared targets for s.
func ValidNextStatuses(kind AggregateKind, s Status) []Status {
	next := edgeTable(kind)[s]
	if len(next) == 0 {
		return nil
	}
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// Statuses returns every declared status for the kind, or nil for an
// unknown kind.
func Statuses(kind AggregateKind) []Status {
	table := edgeTable(kind)
	if table == nil {
		return nil
	}
	out := make([]Status, 0, len(table))
	for s := range table {
		out = append(out, s)
	}
	return out
}
