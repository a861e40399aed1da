package app

import (
	"context"

	"github.com/gatherhall/lifecycle/internal/domain"
)

// StatusStore is the read-only surface for status introspection.
type StatusStore interface {
	GetEvent(ctx context.Context, id string) (domain.Event, error)
	GetTicket(ctx context.Context, id string) (domain.Ticket, error)
	ListTransitions(ctx context.Context, kind domain.AggregateKind, id string) ([]domain.TransitionRecord, error)
}

// StatusInfo is the introspection view used by UI/API layers.
type StatusInfo struct {
	Kind              domain.AggregateKind
	ID                string
	CurrentStatus     domain.Status
	ValidNextStatuses []domain.Status
	IsTerminal        bool
	// Exactly one of Event/Ticket is set, carrying the lifecycle fields
	// of the aggregate.
	Event  *domain.Event
	Ticket *domain.Ticket
}

type StatusService struct {
	store StatusStore
}

func NewStatusService(store StatusStore) *StatusService {
	return &StatusService{store: store}
}

func (s *StatusService) GetStatusInfo(ctx context.Context, kind domain.AggregateKind, id string) (StatusInfo, error) {
	info := StatusInfo{Kind: kind, ID: id}
	switch kind {
	case domain.KindEvent:
		ev, err := s.store.GetEvent(ctx, id)
		if err != nil {
			return StatusInfo{}, err
		}
		info.CurrentStatus = ev.Status
		info.Event = &ev
	case domain.KindTicket:
		t, err := s.store.GetTicket(ctx, id)
		if err != nil {
			return StatusInfo{}, err
		}
		info.CurrentStatus = t.Status
		info.Ticket = &t
	default:
		return StatusInfo{}, domain.ErrUnknownKind
	}

	info.ValidNextStatuses = domain.ValidNextStatuses(kind, info.CurrentStatus)
	info.IsTerminal = domain.IsTerminal(kind, info.CurrentStatus)
	return info, nil
}

// ListTransitions returns the aggregate's audit history, newest first.
func (s *StatusService) ListTransitions(ctx context.Context, kind domain.AggregateKind, id string) ([]domain.TransitionRecord, error) {
	if kind != domain.KindEvent && kind != domain.KindTicket {
		return nil, domain.ErrUnknownKind
	}
	return s.store.ListTransitions(ctx, kind, id)
}
