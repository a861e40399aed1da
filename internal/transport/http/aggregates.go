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

const actorHeader = "X-Actor-ID"

// StatusReader is the minimal read surface for aggregate introspection.
type StatusReader interface {
	GetStatusInfo(ctx context.Context, kind domain.AggregateKind, id string) (app.StatusInfo, error)
	ListTransitions(ctx context.Context, kind domain.AggregateKind, id string) ([]domain.TransitionRecord, error)
}

// Transitioner is the minimal interface for requesting a transition.
type Transitioner interface {
	Execute(ctx context.Context, kind domain.AggregateKind, id string, target domain.Status, tc app.TransitionContext) (app.TransitionResult, error)
}

// HandleAggregates serves /aggregates/{kind}/{id}/status and
// /aggregates/{kind}/{id}/transitions.
func HandleAggregates(status StatusReader, exec Transitioner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, id, resource, ok := parseAggregatePath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch resource {
		case "status":
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			handleGetStatus(w, r, status, kind, id)
		case "transitions":
			switch r.Method {
			case http.MethodGet:
				handleListTransitions(w, r, status, kind, id)
			case http.MethodPost:
				handleRequestTransition(w, r, exec, kind, id)
			default:
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			}
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func parseAggregatePath(path string) (domain.AggregateKind, string, string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 || parts[0] != "aggregates" {
		return "", "", "", false
	}
	if parts[1] == "" || parts[2] == "" || parts[3] == "" {
		return "", "", "", false
	}
	return domain.AggregateKind(parts[1]), parts[2], parts[3], true
}

func handleGetStatus(w http.ResponseWriter, r *http.Request, svc StatusReader, kind domain.AggregateKind, id string) {
	info, err := svc.GetStatusInfo(r.Context(), kind, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := statusInfoResponse{
		Kind:              string(info.Kind),
		ID:                info.ID,
		CurrentStatus:     string(info.CurrentStatus),
		ValidNextStatuses: statusStrings(info.ValidNextStatuses),
		IsTerminal:        info.IsTerminal,
	}
	if info.Event != nil {
		resp.Event = &eventBody{
			Name:      info.Event.Name,
			StartsAt:  info.Event.StartsAt,
			EndsAt:    info.Event.EndsAt,
			CreatedAt: info.Event.CreatedAt,
			UpdatedAt: info.Event.UpdatedAt,
		}
	}
	if info.Ticket != nil {
		resp.Ticket = &ticketBody{
			EventID:          info.Ticket.EventID,
			RefundTxHash:     info.Ticket.RefundTxHash,
			SettlementTxHash: info.Ticket.SettlementTxHash,
			CheckedInAt:      info.Ticket.CheckedInAt,
			CreatedAt:        info.Ticket.CreatedAt,
			UpdatedAt:        info.Ticket.UpdatedAt,
		}
		if info.Ticket.Stake != nil {
			resp.Ticket.Stake = &stakeBody{
				Amount:   info.Ticket.Stake.Amount,
				Currency: info.Ticket.Stake.Currency,
				TxHash:   info.Ticket.Stake.TxHash,
				Wallet:   info.Ticket.Stake.Wallet,
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func handleListTransitions(w http.ResponseWriter, r *http.Request, svc StatusReader, kind domain.AggregateKind, id string) {
	records, err := svc.ListTransitions(r.Context(), kind, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]transitionRecordBody, 0, len(records))
	for _, rec := range records {
		resp = append(resp, transitionRecordBody{
			ID:        rec.ID,
			From:      string(rec.From),
			To:        string(rec.To),
			Actor:     rec.Actor,
			Reason:    rec.Reason,
			Metadata:  rec.Metadata,
			CreatedAt: rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func handleRequestTransition(w http.ResponseWriter, r *http.Request, exec Transitioner, kind domain.AggregateKind, id string) {
	actorID := r.Header.Get(actorHeader)
	if actorID == "" {
		writeError(w, http.StatusBadRequest, codeActorRequired, domain.ErrActorRequired.Error())
		return
	}

	var req transitionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	if req.TargetStatus == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "target_status is required")
		return
	}

	tc := app.TransitionContext{
		Actor:        domain.UserActor(actorID),
		Reason:       req.Reason,
		Metadata:     req.Metadata,
		RefundTxHash: req.RefundTxHash,
	}
	if req.Schedule != nil {
		tc.Schedule = &app.Schedule{
			StartsAt: req.Schedule.StartsAt,
			EndsAt:   req.Schedule.EndsAt,
		}
	}
	if req.Stake != nil {
		tc.Stake = &domain.Stake{
			Amount:   req.Stake.Amount,
			Currency: req.Stake.Currency,
			TxHash:   req.Stake.TxHash,
			Wallet:   req.Stake.Wallet,
		}
	}

	res, err := exec.Execute(r.Context(), kind, id, domain.Status(req.TargetStatus), tc)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transitionResponse{
		PreviousStatus: string(res.Previous),
		NewStatus:      string(res.New),
		TransitionedAt: res.TransitionedAt,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func statusStrings(statuses []domain.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

type transitionRequest struct {
	TargetStatus string            `json:"target_status"`
	Reason       string            `json:"reason"`
	Metadata     map[string]string `json:"metadata"`
	Schedule     *scheduleBody     `json:"schedule"`
	Stake        *stakeBody        `json:"stake"`
	RefundTxHash string            `json:"refund_tx_hash"`
}

type scheduleBody struct {
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

type stakeBody struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	TxHash   string `json:"tx_hash"`
	Wallet   string `json:"wallet"`
}

type transitionResponse struct {
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	TransitionedAt time.Time `json:"transitioned_at"`
}

type statusInfoResponse struct {
	Kind              string      `json:"kind"`
	ID                string      `json:"id"`
	CurrentStatus     string      `json:"current_status"`
	ValidNextStatuses []string    `json:"valid_next_statuses"`
	IsTerminal        bool        `json:"is_terminal"`
	Event             *eventBody  `json:"event,omitempty"`
	Ticket            *ticketBody `json:"ticket,omitempty"`
}

type eventBody struct {
	Name      string     `json:"name"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type ticketBody struct {
	EventID          string     `json:"event_id"`
	Stake            *stakeBody `json:"stake,omitempty"`
	RefundTxHash     string     `json:"refund_tx_hash,omitempty"`
	SettlementTxHash string     `json:"settlement_tx_hash,omitempty"`
	CheckedInAt      *time.Time `json:"checked_in_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type transitionRecordBody struct {
	ID        string            `json:"id"`
	From      string            `json:"from"`
	To        string            `json:"to"`
	Actor     string            `json:"actor"`
	Reason    string            `json:"reason,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
