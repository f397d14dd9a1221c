package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/safetap/api/internal/alert"
	"github.com/safetap/api/internal/auth"
	httpmiddleware "github.com/safetap/api/internal/http/middleware"
	"github.com/safetap/api/internal/report"
	"github.com/safetap/api/internal/user"
)

type statusPayload struct {
	Status string `json:"status"`
}

type rolePayload struct {
	Role string `json:"role"`
}

type trimPayload struct {
	Keep *int `json:"keep"`
}

// AdminStats devolve o resumo do painel administrativo.
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.Reports.Stats(r.Context())
	if err != nil {
		writeDomainError(w, err, "não foi possível calcular estatísticas")
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// ListUsers lista todas as contas.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.deps.Users.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "não foi possível listar usuários")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"users": users})
}

// SetUserStatus ativa ou suspende a conta.
func (h *Handler) SetUserStatus(w http.ResponseWriter, r *http.Request) {
	var payload statusPayload
	if err := decodeJSON(r, &payload, false); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	status, err := user.ParseStatus(payload.Status)
	if err != nil {
		writeDomainError(w, err, "status inválido")
		return
	}

	u, err := h.deps.Users.SetStatus(r.Context(), chi.URLParam(r, "username"), status)
	if err != nil {
		writeDomainError(w, err, "não foi possível alterar status")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"user": u})
}

// SetUserRole altera o papel da conta.
func (h *Handler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	var payload rolePayload
	if err := decodeJSON(r, &payload, false); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	role, err := user.ParseRole(payload.Role)
	if err != nil {
		writeDomainError(w, err, "papel inválido")
		return
	}

	u, err := h.deps.Users.SetRole(r.Context(), chi.URLParam(r, "username"), role)
	if err != nil {
		writeDomainError(w, err, "não foi possível alterar papel")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"user": u})
}

// ResetUserPassword redefine a senha para o valor temporário fixo.
func (h *Handler) ResetUserPassword(w http.ResponseWriter, r *http.Request) {
	u, err := h.deps.Users.ResetPassword(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeDomainError(w, err, "não foi possível redefinir senha")
		return
	}
	h.logger.Info().Str("username", u.Username).Str("by", httpmiddleware.GetUsername(r.Context())).Msg("senha redefinida")
	WriteJSON(w, http.StatusOK, map[string]any{"user": u, "temporary_password": auth.ResetPassword})
}

// DeleteUser remove a conta e os dados do dono. O administrador não pode
// remover a si mesmo. Emergências auditadas permanecem.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor := httpmiddleware.GetUsername(r.Context())
	username := user.NormalizeUsername(chi.URLParam(r, "username"))
	if err := h.deps.Users.Delete(r.Context(), actor, username); err != nil {
		writeDomainError(w, err, "não foi possível remover usuário")
		return
	}
	if err := h.purgeOwner(r.Context(), username); err != nil {
		h.logger.Error().Err(err).Str("username", username).Msg("falha ao limpar dados da conta removida")
		writeDomainError(w, err, "conta removida, mas a limpeza dos dados falhou")
		return
	}
	h.logger.Info().Str("username", username).Str("by", actor).Msg("usuário removido")
	w.WriteHeader(http.StatusNoContent)
}

// purgeOwner apaga contatos, preferências, histórico, posição e alerta em
// andamento do dono.
func (h *Handler) purgeOwner(ctx context.Context, owner string) error {
	h.deps.Alerts.Discard(alert.UserActor(owner))
	if err := h.deps.Contacts.DeleteOwner(ctx, owner); err != nil {
		return fmt.Errorf("contatos: %w", err)
	}
	if _, err := h.deps.Settings.Reset(ctx, owner); err != nil {
		return fmt.Errorf("preferências: %w", err)
	}
	if err := h.deps.History.Clear(ctx, owner); err != nil {
		return fmt.Errorf("histórico: %w", err)
	}
	if err := h.deps.Locations.Forget(ctx, owner); err != nil {
		return fmt.Errorf("localização: %w", err)
	}
	return nil
}

// Export devolve snapshot JSON de usuários e emergências para download.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Reports.Export(r.Context())
	if err != nil {
		writeDomainError(w, err, "não foi possível exportar")
		return
	}
	w.Header().Set("Content-Disposition", attachment("safetap-export", "json", snap.ExportedAt))
	WriteJSON(w, http.StatusOK, snap)
}

// Import substitui usuários e emergências pelo snapshot enviado.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	var snap report.Snapshot
	if err := decodeJSON(r, &snap, false); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	if err := h.deps.Reports.Import(r.Context(), snap); err != nil {
		writeDomainError(w, err, "não foi possível importar")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{
		"users":        len(snap.Users),
		"panic_events": len(snap.PanicEvents),
	})
}

// UsersReport gera o relatório CSV de usuários.
func (h *Handler) UsersReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment("users_report", "csv", time.Now()))
	if err := h.deps.Reports.WriteUsersCSV(r.Context(), w); err != nil {
		h.logger.Error().Err(err).Msg("relatório de usuários falhou")
	}
}

// EmergenciesReport gera o relatório CSV de emergências, aceitando os
// mesmos filtros de /rescue/emergencies.
func (h *Handler) EmergenciesReport(w http.ResponseWriter, r *http.Request) {
	f, err := auditFilter(r)
	if err != nil {
		writeDomainError(w, err, "filtro inválido")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment("emergencies_report", "csv", time.Now()))
	if err := h.deps.Reports.WriteEmergenciesCSV(r.Context(), w, f); err != nil {
		h.logger.Error().Err(err).Msg("relatório de emergências falhou")
	}
}

// TrimHistory mantém os eventos mais recentes de cada usuário (padrão 100).
func (h *Handler) TrimHistory(w http.ResponseWriter, r *http.Request) {
	var payload trimPayload
	if err := decodeJSON(r, &payload, true); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}
	keep := report.DefaultTrimKeep
	if payload.Keep != nil {
		if *payload.Keep < 0 {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "keep não pode ser negativo", nil)
			return
		}
		keep = *payload.Keep
	}

	removed, err := h.deps.Reports.TrimHistory(r.Context(), keep)
	if err != nil {
		writeDomainError(w, err, "não foi possível limpar histórico")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"removed": removed, "keep": keep})
}

// ResetDemoData apaga emergências e histórico, mantendo as contas.
func (h *Handler) ResetDemoData(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Reports.ResetDemoData(r.Context()); err != nil {
		writeDomainError(w, err, "não foi possível reiniciar dados")
		return
	}
	h.logger.Warn().Str("by", httpmiddleware.GetUsername(r.Context())).Msg("dados de demonstração reiniciados")
	WriteJSON(w, http.StatusOK, map[string]bool{"reset": true})
}

func attachment(name, ext string, at time.Time) string {
	return fmt.Sprintf(`attachment; filename="%s_%s.%s"`, name, at.UTC().Format("2006-01-02"), ext)
}
