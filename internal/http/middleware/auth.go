package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/safetap/api/internal/auth"
)

type contextKey string

const (
	ContextKeySubject  contextKey = "subject"
	ContextKeyUsername contextKey = "username"
	ContextKeyRole     contextKey = "role"
	ContextKeySession  contextKey = "session"
)

// Auth valida JWT de acesso e injeta claims no contexto.
func Auth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "AUTH", "token ausente")
				return
			}

			claims, err := jwtManager.ParseAndValidate(parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "token inválido")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySubject, claims.Subject)
			ctx = context.WithValue(ctx, ContextKeyUsername, claims.Username)
			ctx = context.WithValue(ctx, ContextKeyRole, claims.Role)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActiveAccount roda depois de Auth e recusa tokens cuja conta não está mais ativa.
func ActiveAccount(active func(ctx context.Context, subject, username, role string) (bool, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ok, err := active(ctx, GetSubject(ctx), GetUsername(ctx), GetRole(ctx))
			if err != nil {
				writeError(w, http.StatusInternalServerError, "INTERNAL", "falha ao validar conta")
				return
			}
			if !ok {
				writeError(w, http.StatusUnauthorized, "AUTH", "conta inativa ou removida")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetSubject recupera subject do contexto.
func GetSubject(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeySubject).(string)
	return val
}

// GetUsername recupera o username autenticado.
func GetUsername(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeyUsername).(string)
	return val
}

// GetRole recupera o papel do token.
func GetRole(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeyRole).(string)
	return val
}

// RequireRoles garante que o usuário possua um dos papéis informados.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role != "" {
			allowed[role] = struct{}{}
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allowed[strings.ToLower(GetRole(r.Context()))]; ok {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, http.StatusForbidden, "FORBIDDEN", "acesso restrito")
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
