package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gatherhall/lifecycle/internal/app"
	"github.com/gatherhall/lifecycle/internal/domain"
)

// EventRegistrar is the minimal interface for creating aggregates.
type EventRegistrar interface {
	CreateEvent(ctx context.Context, in app.CreateEventInput) (domain.Event, error)
	RegisterTicket(ctx context.Context, in app.RegisterTicketInput) (domain.Ticket, error)
}

// HandleCreateEvent returns an HTTP handler for creating draft events.
func HandleCreateEvent(svc EventRegistrar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createEventRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		event, err := svc.CreateEvent(r.Context(), app.CreateEventInput{Name: req.Name})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, createEventResponse{
			ID:        event.ID,
			Name:      event.Name,
			Status:    string(event.Status),
			CreatedAt: event.CreatedAt,
		})
	}
}

// HandleRegisterTicket returns an HTTP handler for
// POST /events/{id}/tickets.
func HandleRegisterTicket(svc EventRegistrar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		eventID, ok := parseRegisterTicketPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		ticket, err := svc.RegisterTicket(r.Context(), app.RegisterTicketInput{EventID: eventID})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, registerTicketResponse{
			ID:        ticket.ID,
			EventID:   ticket.EventID,
			Status:    string(ticket.Status),
			CreatedAt: ticket.CreatedAt,
		})
	}
}

func parseRegisterTicketPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 {
		return "", false
	}
	if parts[0] != "events" || parts[2] != "tickets" {
		return "", false
	}
	if parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

type createEventRequest struct {
	Name string `json:"name"`
}

type createEventResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type registerTicketResponse struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
