package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/safetap/api/internal/auth"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthAndRequireRoles(t *testing.T) {
	jwtManager := auth.NewJWTManager("0123456789abcdef0123456789abcdef", time.Hour)
	token, _, err := jwtManager.GenerateAccessToken("id", "ana", "rescue")
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUsername(r.Context())
	})
	handler := Auth(jwtManager)(RequireRoles("rescue", "admin")(inner))

	req := httptest.NewRequest(http.MethodGet, "/rescue/active", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("sem token: esperava 401, veio %d", rec.Code)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || seen != "ana" {
		t.Fatalf("esperava acesso liberado, status=%d user=%q", rec.Code, seen)
	}

	adminOnly := Auth(jwtManager)(RequireRoles("admin")(okHandler()))
	rec = httptest.NewRecorder()
	adminOnly.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("papel insuficiente: esperava 403, veio %d", rec.Code)
	}
}

func TestIPRateLimit(t *testing.T) {
	handler := IPRateLimit(NewRateLimiter(1, 2))(okHandler())
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("sequência inesperada: %v", codes)
	}
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://app.safetap.ph", "*.rescue.ph"})(okHandler())
	cases := map[string]bool{
		"https://app.safetap.ph":  true,
		"https://team.rescue.ph":  true,
		"https://rescue.ph":       false,
		"https://evil.example.ph": false,
	}
	for origin, allowed := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		got := rec.Header().Get("Access-Control-Allow-Origin") == origin
		if got != allowed {
			t.Fatalf("origin %s: esperava %v", origin, allowed)
		}
	}
}

func TestRecover(t *testing.T) {
	handler := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("esperava 500, veio %d", rec.Code)
	}
}
