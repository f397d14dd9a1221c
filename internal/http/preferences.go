package http

import (
	"net/http"

	httpmiddleware "github.com/safetap/api/internal/http/middleware"
	"github.com/safetap/api/internal/location"
	"github.com/safetap/api/internal/util"
)

type locationPayload struct {
	Lat      float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng      float64 `json:"lng" validate:"gte=-180,lte=180"`
	Accuracy float64 `json:"accuracy" validate:"gte=0"`
}

// GetSettings devolve as preferências do usuário.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.deps.Settings.Get(r.Context(), httpmiddleware.GetUsername(r.Context()))
	if err != nil {
		writeDomainError(w, err, "não foi possível carregar preferências")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"settings": s})
}

// UpdateSettings aplica atualização parcial sobre as preferências atuais.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	owner := httpmiddleware.GetUsername(r.Context())
	current, err := h.deps.Settings.Get(r.Context(), owner)
	if err != nil {
		writeDomainError(w, err, "não foi possível carregar preferências")
		return
	}
	// campos ausentes no JSON mantêm o valor atual
	if err := decodeJSON(r, &current, false); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	saved, err := h.deps.Settings.Save(r.Context(), owner, current)
	if err != nil {
		writeDomainError(w, err, "não foi possível salvar preferências")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"settings": saved})
}

// ResetSettings volta às preferências padrão.
func (h *Handler) ResetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.deps.Settings.Reset(r.Context(), httpmiddleware.GetUsername(r.Context()))
	if err != nil {
		writeDomainError(w, err, "não foi possível restaurar preferências")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"settings": s})
}

// GetLocation devolve a última posição conhecida.
func (h *Handler) GetLocation(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Locations.Current(r.Context(), httpmiddleware.GetUsername(r.Context()))
	if err != nil {
		writeDomainError(w, err, "não foi possível carregar localização")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"location": snap})
}

// UpdateLocation grava nova posição reportada pelo aparelho.
func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var payload locationPayload
	if err := decodeJSON(r, &payload, false); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	if err := util.ValidateStruct(payload); err != nil {
		writeDomainError(w, err, "localização inválida")
		return
	}

	snap, err := h.deps.Locations.Update(r.Context(), httpmiddleware.GetUsername(r.Context()), location.Snapshot{
		Lat:      payload.Lat,
		Lng:      payload.Lng,
		Accuracy: payload.Accuracy,
	})
	if err != nil {
		writeDomainError(w, err, "não foi possível gravar localização")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"location": snap})
}
