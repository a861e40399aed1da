package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gatherhall/lifecycle/internal/domain"
)

const (
	codeMethodNotAllowed       = "method_not_allowed"
	codeNotFound               = "not_found"
	codeInvalidRequestBody     = "invalid_request_body"
	codeInvalidID              = "invalid_id"
	codeUnknownKind            = "unknown_kind"
	codeUnknownStatus          = "unknown_status"
	codeTerminalState          = "terminal_state"
	codeInvalidTransition      = "invalid_transition"
	codeGuardRejected          = "guard_rejected"
	codeConcurrentModification = "concurrent_modification"
	codeActorRequired          = "actor_required"
	codeEventNameRequired      = "event_name_required"
	codeRegistrationClosed     = "registration_closed"
	codeForbidden              = "forbidden"
	codeInternalError          = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps the engine's error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var guardErr *domain.GuardRejectedError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrUnknownKind):
		writeError(w, http.StatusBadRequest, codeUnknownKind, err.Error())
	case errors.Is(err, domain.ErrUnknownStatus):
		writeError(w, http.StatusBadRequest, codeUnknownStatus, err.Error())
	case errors.Is(err, domain.ErrTerminalState):
		writeError(w, http.StatusConflict, codeTerminalState, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, codeInvalidTransition, err.Error())
	case errors.As(err, &guardErr):
		writeError(w, http.StatusUnprocessableEntity, codeGuardRejected, guardErr.Reason)
	case errors.Is(err, domain.ErrConcurrentModification):
		writeError(w, http.StatusConflict, codeConcurrentModification, err.Error())
	case errors.Is(err, domain.ErrActorRequired):
		writeError(w, http.StatusBadRequest, codeActorRequired, err.Error())
	case errors.Is(err, domain.ErrEventNameRequired):
		writeError(w, http.StatusBadRequest, codeEventNameRequired, err.Error())
	case errors.Is(err, domain.ErrRegistrationClosed):
		writeError(w, http.StatusConflict, codeRegistrationClosed, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
