package http

import (
	"net/http"

	"github.com/safetap/api/internal/alert"
	"github.com/safetap/api/internal/contact"
	"github.com/safetap/api/internal/history"
	httpmiddleware "github.com/safetap/api/internal/http/middleware"
	"github.com/safetap/api/internal/protocol"
)

type startPanicPayload struct {
	EmergencyType string `json:"emergency_type"`
}

type pollResponse struct {
	Status alert.Status  `json:"status"`
	Result *alert.Result `json:"result,omitempty"`
}

func userActor(r *http.Request) alert.Actor {
	return alert.UserActor(httpmiddleware.GetUsername(r.Context()))
}

func anonymousActor(r *http.Request) alert.Actor {
	return alert.AnonymousActor(httpmiddleware.GetSessionToken(r.Context()))
}

// StartPanic inicia a pressão do botão para o usuário autenticado.
func (h *Handler) StartPanic(w http.ResponseWriter, r *http.Request) {
	h.startPanic(w, r, userActor(r))
}

// StartAnonymousPanic inicia a pressão para sessão anônima. Na primeira vez a
// sessão recebe os contatos padrão.
func (h *Handler) StartAnonymousPanic(w http.ResponseWriter, r *http.Request) {
	actor := anonymousActor(r)
	if err := contact.Seed(r.Context(), h.deps.Contacts, actor.Key); err != nil {
		writeDomainError(w, err, "não foi possível preparar contatos")
		return
	}
	h.startPanic(w, r, actor)
}

func (h *Handler) startPanic(w http.ResponseWriter, r *http.Request, actor alert.Actor) {
	var payload startPanicPayload
	if err := decodeJSON(r, &payload, true); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	t, err := protocol.ParseType(payload.EmergencyType)
	if err != nil {
		writeDomainError(w, err, "tipo de emergência inválido")
		return
	}

	sess, err := h.deps.Alerts.Start(r.Context(), actor, t)
	if err != nil {
		writeDomainError(w, err, "não foi possível iniciar alerta")
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{
		"session":          sess,
		"required_seconds": sess.Required.Seconds(),
	})
}

// CancelPanic solta o botão antes do limite.
func (h *Handler) CancelPanic(w http.ResponseWriter, r *http.Request) {
	h.cancelPanic(w, r, userActor(r))
}

// CancelAnonymousPanic solta o botão da sessão anônima.
func (h *Handler) CancelAnonymousPanic(w http.ResponseWriter, r *http.Request) {
	h.cancelPanic(w, r, anonymousActor(r))
}

func (h *Handler) cancelPanic(w http.ResponseWriter, r *http.Request, actor alert.Actor) {
	if err := h.deps.Alerts.Cancel(r.Context(), actor); err != nil {
		writeDomainError(w, err, "não foi possível cancelar alerta")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"state": string(alert.StateIdle)})
}

// PollPanic avalia o alerta do usuário e devolve o resultado quando comitado.
func (h *Handler) PollPanic(w http.ResponseWriter, r *http.Request) {
	h.pollPanic(w, r, userActor(r))
}

// PollAnonymousPanic avalia o alerta da sessão anônima.
func (h *Handler) PollAnonymousPanic(w http.ResponseWriter, r *http.Request) {
	h.pollPanic(w, r, anonymousActor(r))
}

func (h *Handler) pollPanic(w http.ResponseWriter, r *http.Request, actor alert.Actor) {
	status, res, err := h.deps.Alerts.Poll(r.Context(), actor)
	if err != nil {
		writeDomainError(w, err, "não foi possível avaliar alerta")
		return
	}
	WriteJSON(w, http.StatusOK, pollResponse{Status: status, Result: res})
}

// ListActiveAlerts lista os alertas em pressão no momento (painel de resgate).
func (h *Handler) ListActiveAlerts(w http.ResponseWriter, r *http.Request) {
	active := h.deps.Alerts.Active()
	if active == nil {
		active = []alert.Session{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"alerts": active})
}

// ListEmergencies lista PanicEvents com filtros username, type e limit.
func (h *Handler) ListEmergencies(w http.ResponseWriter, r *http.Request) {
	f, err := auditFilter(r)
	if err != nil {
		writeDomainError(w, err, "filtro inválido")
		return
	}
	events, err := h.deps.Audit.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, err, "não foi possível listar emergências")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"emergencies": events})
}

func auditFilter(r *http.Request) (history.AuditFilter, error) {
	q := r.URL.Query()
	var f history.AuditFilter
	f.Username = q.Get("username")
	if v := q.Get("type"); v != "" {
		t, err := protocol.ParseType(v)
		if err != nil {
			return f, err
		}
		f.EmergencyType = t
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		return f, err
	}
	f.Limit = limit
	return f, nil
}
