package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/safetap/api/internal/alert"
	"github.com/safetap/api/internal/contact"
	"github.com/safetap/api/internal/history"
	"github.com/safetap/api/internal/location"
	"github.com/safetap/api/internal/protocol"
	"github.com/safetap/api/internal/report"
	"github.com/safetap/api/internal/settings"
	"github.com/safetap/api/internal/user"
	"github.com/safetap/api/internal/util"
)

const maxBodyBytes = 4 << 20

// SuccessEnvelope padroniza respostas com dados.
type SuccessEnvelope struct {
	Data  any `json:"data"`
	Error any `json:"error"`
}

// ErrorEnvelope padroniza respostas de erro.
type ErrorEnvelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
}

// ErrorBody descreve falhas normalizadas.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// WriteJSON escreve envelope de sucesso.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessEnvelope{Data: data, Error: nil})
}

// WriteError escreve envelope de erro e mantém formato consistente.
func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		Data:  nil,
		Error: &ErrorBody{Code: code, Message: message, Details: details},
	})
}

// decodeJSON lê o corpo com limite de tamanho. Corpo vazio é aceito quando allowEmpty.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// writeDomainError traduz erros de domínio para status e código HTTP.
func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	var (
		verr *util.ValidationError
		qerr queryError
	)
	switch {
	case errors.Is(err, alert.ErrAlreadyActive):
		WriteError(w, http.StatusConflict, "ALREADY_ACTIVE", err.Error(), nil)
	case errors.Is(err, alert.ErrNotActive):
		WriteError(w, http.StatusConflict, "NOT_ACTIVE", err.Error(), nil)
	case errors.Is(err, alert.ErrCooldown):
		w.Header().Set("Retry-After", "60")
		WriteError(w, http.StatusTooManyRequests, "COOLDOWN", err.Error(), nil)
	case errors.Is(err, user.ErrDuplicateUsername):
		WriteError(w, http.StatusConflict, "DUPLICATE_USERNAME", err.Error(), nil)
	case errors.Is(err, user.ErrInvalidCredentials), errors.Is(err, user.ErrRoleMismatch):
		WriteError(w, http.StatusUnauthorized, "AUTH", err.Error(), nil)
	case errors.Is(err, user.ErrSelfDelete):
		WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	case errors.Is(err, user.ErrNotFound), errors.Is(err, contact.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, protocol.ErrUnknownEmergencyType),
		errors.Is(err, contact.ErrInvalidType),
		errors.Is(err, contact.ErrInvalidPriority),
		errors.Is(err, settings.ErrInvalidHoldDuration),
		errors.Is(err, location.ErrInvalidCoordinates),
		errors.Is(err, history.ErrInvalidType),
		errors.Is(err, user.ErrInvalidRole),
		errors.Is(err, user.ErrInvalidStatus),
		errors.Is(err, report.ErrInvalidSnapshot):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.As(err, &qerr):
		WriteError(w, http.StatusBadRequest, "VALIDATION", qerr.Error(), nil)
	case errors.As(err, &verr):
		WriteError(w, http.StatusBadRequest, "VALIDATION", verr.Message, map[string]string{"field": verr.Field})
	default:
		log.Error().Err(err).Msg(fallback)
		WriteError(w, http.StatusInternalServerError, "INTERNAL", fallback, nil)
	}
}
