package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/safetap/api/internal/contact"
	httpmiddleware "github.com/safetap/api/internal/http/middleware"
)

type contactPayload struct {
	Name     string `json:"name"`
	Number   string `json:"number"`
	Type     string `json:"type"`
	Icon     string `json:"icon"`
	Priority int    `json:"priority"`
}

func (p contactPayload) toContact() contact.Contact {
	return contact.Contact{
		Name:     p.Name,
		Number:   p.Number,
		Type:     contact.Type(p.Type),
		Icon:     p.Icon,
		Priority: contact.Priority(p.Priority),
	}
}

// ListContacts devolve os contatos de emergência do usuário.
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	owner := httpmiddleware.GetUsername(r.Context())
	contacts, err := h.deps.Contacts.List(r.Context(), owner)
	if err != nil {
		writeDomainError(w, err, "não foi possível listar contatos")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"contacts": contacts})
}

// AddContact cadastra contato; prioridade padrão 2.
func (h *Handler) AddContact(w http.ResponseWriter, r *http.Request) {
	var payload contactPayload
	if err := decodeJSON(r, &payload, false); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	c, err := h.deps.Contacts.Add(r.Context(), httpmiddleware.GetUsername(r.Context()), payload.toContact())
	if err != nil {
		writeDomainError(w, err, "não foi possível cadastrar contato")
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"contact": c})
}

// UpdateContact substitui os dados do contato.
func (h *Handler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	var payload contactPayload
	if err := decodeJSON(r, &payload, false); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	c := payload.toContact()
	c.ID = id

	updated, err := h.deps.Contacts.Update(r.Context(), httpmiddleware.GetUsername(r.Context()), c)
	if err != nil {
		writeDomainError(w, err, "não foi possível atualizar contato")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"contact": updated})
}

// DeleteContact remove o contato.
func (h *Handler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}
	if err := h.deps.Contacts.Delete(r.Context(), httpmiddleware.GetUsername(r.Context()), id); err != nil {
		writeDomainError(w, err, "não foi possível remover contato")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
