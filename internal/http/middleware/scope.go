package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/safetap/api/internal/auth"
)

// AnonymousSession valida o token de sessão anônima da rota ({token}) e o injeta no contexto.
func AnonymousSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")
		if err := auth.ValidateSessionToken(token); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "token de sessão inválido")
			return
		}
		ctx := context.WithValue(r.Context(), ContextKeySession, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionToken retorna o token anônimo validado.
func GetSessionToken(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeySession).(string)
	return val
}
