package http

import (
	"net/http"
	"strings"

	"github.com/safetap/api/internal/auth"
	"github.com/safetap/api/internal/contact"
	httpmiddleware "github.com/safetap/api/internal/http/middleware"
	"github.com/safetap/api/internal/user"
)

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Register cadastra conta civil (ou equipe de resgate) com os contatos padrão.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var payload user.RegisterInput
	if err := decodeJSON(r, &payload, false); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	u, err := h.deps.Users.Register(r.Context(), payload)
	if err != nil {
		writeDomainError(w, err, "não foi possível cadastrar")
		return
	}

	if err := contact.Seed(r.Context(), h.deps.Contacts, u.Username); err != nil {
		h.logger.Warn().Err(err).Str("username", u.Username).Msg("contatos padrão não cadastrados")
	}

	WriteJSON(w, http.StatusCreated, map[string]any{"user": u})
}

// Login autentica e devolve token de acesso. "role" opcional restringe o perfil.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := decodeJSON(r, &payload, false); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	if strings.TrimSpace(payload.Username) == "" || payload.Password == "" {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "username e senha são obrigatórios", nil)
		return
	}

	var expected user.Role
	if strings.TrimSpace(payload.Role) != "" {
		role, err := user.ParseRole(payload.Role)
		if err != nil {
			writeDomainError(w, err, "papel inválido")
			return
		}
		expected = role
	}

	u, err := h.deps.Users.Authenticate(r.Context(), payload.Username, payload.Password, expected)
	if err != nil {
		writeDomainError(w, err, "erro ao autenticar")
		return
	}

	token, expires, err := h.deps.JWT.GenerateAccessToken(u.ID.String(), u.Username, string(u.Role))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro ao emitir token", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"expires_at":   expires,
		"user":         u,
	})
}

// NewAnonymousSession emite token para uso do botão de pânico sem conta.
func (h *Handler) NewAnonymousSession(w http.ResponseWriter, r *http.Request) {
	token, err := auth.NewSessionToken()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível criar sessão", nil)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]string{"session_token": token})
}

// Me devolve o perfil do usuário autenticado.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.deps.Users.Get(r.Context(), httpmiddleware.GetUsername(r.Context()))
	if err != nil {
		writeDomainError(w, err, "não foi possível carregar perfil")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"user": u})
}
