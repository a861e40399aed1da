package app

import (
	"context"

	"github.com/gatherhall/lifecycle/internal/clock"
	"github.com/gatherhall/lifecycle/internal/domain"
	"github.com/google/uuid"
)

// RegistryStore persists new aggregates. Creation is part of the engine
// because creation fixes the initial status.
type RegistryStore interface {
	CreateEvent(ctx context.Context, event domain.Event) error
	GetEvent(ctx context.Context, id string) (domain.Event, error)
	CreateTicket(ctx context.Context, ticket domain.Ticket) error
}

type RegistryService struct {
	store RegistryStore
	clock clock.Clock
}

func NewRegistryService(store RegistryStore, clk clock.Clock) *RegistryService {
	return &RegistryService{
		store: store,
		clock: clk,
	}
}

type CreateEventInput struct {
	Name string
}

// CreateEvent creates an event in draft; publishing later fixes its
// schedule.
func (s *RegistryService) CreateEvent(ctx context.Context, in CreateEventInput) (domain.Event, error) {
	if in.Name == "" {
		return domain.Event{}, domain.ErrEventNameRequired
	}

	now := s.clock.Now()
	event := domain.Event{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Status:    domain.EventDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

type RegisterTicketInput struct {
	EventID string
}

// RegisterTicket creates a pending ticket on an event that is still
// open for registration.
func (s *RegistryService) RegisterTicket(ctx context.Context, in RegisterTicketInput) (domain.Ticket, error) {
	if in.EventID == "" {
		return domain.Ticket{}, domain.ErrInvalidID
	}

	event, err := s.store.GetEvent(ctx, in.EventID)
	if err != nil {
		return domain.Ticket{}, err
	}
	if event.Status == domain.EventEnded || event.Status == domain.EventArchived {
		return domain.Ticket{}, domain.ErrRegistrationClosed
	}

	now := s.clock.Now()
	ticket := domain.Ticket{
		ID:        uuid.NewString(),
		EventID:   in.EventID,
		Status:    domain.TicketPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateTicket(ctx, ticket); err != nil {
		return domain.Ticket{}, err
	}
	return ticket, nil
}
