package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/safetap/api/internal/alert"
	"github.com/safetap/api/internal/auth"
	"github.com/safetap/api/internal/config"
	"github.com/safetap/api/internal/contact"
	"github.com/safetap/api/internal/history"
	"github.com/safetap/api/internal/location"
	"github.com/safetap/api/internal/report"
	"github.com/safetap/api/internal/settings"
	"github.com/safetap/api/internal/user"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testServer struct {
	handler http.Handler
	clock   *testClock
	users   *user.Service
	log     *history.MemoryLog
	audit   *history.MemoryAudit
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		JWTSecret:       "0123456789abcdef0123456789abcdef",
		JWTAccessTTL:    time.Hour,
		RateLimitPublic: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		RateLimitAuth:   config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}

	clock := &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	users := user.NewService(user.NewMemoryStore())
	contacts := contact.NewMemoryDirectory()
	log := history.NewMemoryLog()
	audit := history.NewMemoryAudit()
	prefs := settings.NewMemoryStore(3)
	locations := location.NewTracker(location.NewMemoryBackend(), log)

	engine := alert.NewEngine(alert.Dependencies{
		Clock:     clock,
		Contacts:  contacts,
		Settings:  prefs,
		Locations: locations,
		Log:       log,
		Audit:     audit,
	}, 0, zerolog.Nop())

	handler := NewRouter(cfg, Dependencies{
		JWT:       auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL),
		Users:     users,
		Contacts:  contacts,
		Settings:  prefs,
		Locations: locations,
		History:   log,
		Audit:     audit,
		Alerts:    engine,
		Reports:   report.NewService(users, audit, log),
	})

	return &testServer{handler: handler, clock: clock, users: users, log: log, audit: audit}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "10.1.1.1:4000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var envelope map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("%s %s: resposta inválida: %v", method, path, err)
		}
	}
	return rec, envelope
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	rec, env := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body=%s", username, rec.Code, rec.Body.String())
	}
	data := env["data"].(map[string]any)
	return data["access_token"].(string)
}

func errorCode(env map[string]any) string {
	e, _ := env["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestRegisterLoginAndPanicFlow(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "Maria",
		"password": "secret123",
		"name":     "Maria Santos",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d body=%s", rec.Code, rec.Body.String())
	}

	rec, env := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "maria",
		"password": "outra123",
		"name":     "Outra Maria",
	})
	if rec.Code != http.StatusConflict || errorCode(env) != "DUPLICATE_USERNAME" {
		t.Fatalf("esperava DUPLICATE_USERNAME, veio %d %v", rec.Code, env)
	}

	token := s.login(t, "maria", "secret123")

	rec, env = s.do(t, http.MethodGet, "/contacts", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("contacts: status %d", rec.Code)
	}
	if got := len(env["data"].(map[string]any)["contacts"].([]any)); got != len(contact.DefaultContacts()) {
		t.Fatalf("esperava contatos padrão, veio %d", got)
	}

	rec, _ = s.do(t, http.MethodPost, "/panic/start", token, map[string]string{"emergency_type": "medical"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start: status %d body=%s", rec.Code, rec.Body.String())
	}

	rec, env = s.do(t, http.MethodPost, "/panic/start", token, map[string]string{"emergency_type": "police"})
	if rec.Code != http.StatusConflict || errorCode(env) != "ALREADY_ACTIVE" {
		t.Fatalf("esperava ALREADY_ACTIVE, veio %d %v", rec.Code, env)
	}

	s.clock.Advance(time.Second)
	_, env = s.do(t, http.MethodGet, "/panic", token, nil)
	status := env["data"].(map[string]any)["status"].(map[string]any)
	if status["state"] != string(alert.StateHolding) {
		t.Fatalf("esperava holding, veio %v", status["state"])
	}

	s.clock.Advance(2 * time.Second)
	rec, env = s.do(t, http.MethodGet, "/panic", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("poll: status %d", rec.Code)
	}
	data := env["data"].(map[string]any)
	if data["status"].(map[string]any)["state"] != string(alert.StateCommitted) {
		t.Fatalf("esperava committed, veio %v", data["status"])
	}
	result := data["result"].(map[string]any)
	if result["emergency_type"] != "medical" || result["notified_count"].(float64) != 4 {
		t.Fatalf("resultado inesperado: %v", result)
	}

	_, env = s.do(t, http.MethodGet, "/panic", token, nil)
	if env["data"].(map[string]any)["status"].(map[string]any)["state"] != string(alert.StateIdle) {
		t.Fatalf("poll após commit deveria ser idle")
	}

	rec, env = s.do(t, http.MethodGet, "/history?type=alert", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history: status %d", rec.Code)
	}
	// quatro destinatários mais a sirene
	if got := len(env["data"].(map[string]any)["events"].([]any)); got != 5 {
		t.Fatalf("esperava 5 eventos de alerta, veio %d", got)
	}

	events, err := s.audit.List(context.Background(), history.AuditFilter{})
	if err != nil || len(events) != 1 || events[0].Username != "maria" {
		t.Fatalf("auditoria inesperada: %v %v", events, err)
	}

	rec, env = s.do(t, http.MethodPost, "/panic/cancel", token, nil)
	if rec.Code != http.StatusConflict || errorCode(env) != "NOT_ACTIVE" {
		t.Fatalf("esperava NOT_ACTIVE, veio %d %v", rec.Code, env)
	}
}

func TestUnknownEmergencyTypeRejected(t *testing.T) {
	s := newTestServer(t)
	if _, err := s.users.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	token := s.login(t, "john_doe", "user123")

	rec, env := s.do(t, http.MethodPost, "/panic/start", token, map[string]string{"emergency_type": "alien"})
	if rec.Code != http.StatusBadRequest || errorCode(env) != "VALIDATION" {
		t.Fatalf("esperava VALIDATION, veio %d %v", rec.Code, env)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	if _, err := s.users.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	userToken := s.login(t, "john_doe", "user123")
	rec, _ := s.do(t, http.MethodGet, "/admin/stats", userToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("usuário comum: esperava 403, veio %d", rec.Code)
	}

	rescueToken := s.login(t, "rescue_team", "rescue123")
	rec, _ = s.do(t, http.MethodGet, "/rescue/active", rescueToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("resgate: esperava 200, veio %d", rec.Code)
	}

	adminToken := s.login(t, "admin", "admin123")
	rec, env := s.do(t, http.MethodGet, "/admin/stats", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin: esperava 200, veio %d", rec.Code)
	}
	if total := env["data"].(map[string]any)["total_users"].(float64); total != float64(len(user.DefaultAccounts())) {
		t.Fatalf("total_users inesperado: %v", total)
	}

	rec, env = s.do(t, http.MethodDelete, "/admin/users/admin", adminToken, nil)
	if rec.Code != http.StatusForbidden || errorCode(env) != "FORBIDDEN" {
		t.Fatalf("auto-remoção: esperava FORBIDDEN, veio %d %v", rec.Code, env)
	}

	rec, _ = s.do(t, http.MethodPatch, "/admin/users/john_doe/status", adminToken, map[string]string{"status": "suspended"})
	if rec.Code != http.StatusOK {
		t.Fatalf("suspender: status %d", rec.Code)
	}
	rec, env = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "john_doe", "password": "user123"})
	if rec.Code != http.StatusUnauthorized || errorCode(env) != "AUTH" {
		t.Fatalf("conta suspensa deveria falhar login, veio %d", rec.Code)
	}
	rec, env = s.do(t, http.MethodPost, "/panic/start", userToken, nil)
	if rec.Code != http.StatusUnauthorized || errorCode(env) != "AUTH" {
		t.Fatalf("token de conta suspensa deveria ser recusado, veio %d %v", rec.Code, env)
	}
}

func TestDeletedAccountLosesAccessAndData(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	if _, err := s.users.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	adminToken := s.login(t, "admin", "admin123")

	register := func() {
		t.Helper()
		rec, _ := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
			"username": "ana",
			"password": "secret123",
			"name":     "Ana Reyes",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("register: status %d body=%s", rec.Code, rec.Body.String())
		}
	}

	register()
	oldToken := s.login(t, "ana", "secret123")

	rec, _ := s.do(t, http.MethodPost, "/contacts", oldToken, map[string]string{"name": "Secret Lover", "number": "0917", "type": "other"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add contact: status %d body=%s", rec.Code, rec.Body.String())
	}
	rec, _ = s.do(t, http.MethodPut, "/settings", oldToken, map[string]int{"panic_duration": 7})
	if rec.Code != http.StatusOK {
		t.Fatalf("settings: status %d", rec.Code)
	}
	rec, _ = s.do(t, http.MethodPut, "/location", oldToken, map[string]float64{"lat": 10.3, "lng": 123.9, "accuracy": 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("location: status %d", rec.Code)
	}
	rec, _ = s.do(t, http.MethodPost, "/panic/start", oldToken, map[string]string{"emergency_type": "medical"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start: status %d", rec.Code)
	}

	rec, _ = s.do(t, http.MethodDelete, "/admin/users/ana", adminToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d body=%s", rec.Code, rec.Body.String())
	}

	s.clock.Advance(10 * time.Second)
	rec, env := s.do(t, http.MethodGet, "/panic", oldToken, nil)
	if rec.Code != http.StatusUnauthorized || errorCode(env) != "AUTH" {
		t.Fatalf("token de conta removida deveria ser recusado, veio %d %v", rec.Code, env)
	}
	rec, _ = s.do(t, http.MethodPost, "/panic/start", oldToken, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("start com conta removida: esperava 401, veio %d", rec.Code)
	}
	if events, _ := s.audit.List(ctx, history.AuditFilter{}); len(events) != 0 {
		t.Fatalf("alerta de conta removida não deveria ser auditado: %v", events)
	}

	register()
	rec, _ = s.do(t, http.MethodGet, "/contacts", oldToken, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("token antigo não deveria valer para a conta recriada, veio %d", rec.Code)
	}

	token := s.login(t, "ana", "secret123")
	_, env = s.do(t, http.MethodGet, "/contacts", token, nil)
	contacts := env["data"].(map[string]any)["contacts"].([]any)
	if len(contacts) != len(contact.DefaultContacts()) {
		t.Fatalf("esperava apenas contatos padrão, veio %d", len(contacts))
	}
	for _, c := range contacts {
		if c.(map[string]any)["name"] == "Secret Lover" {
			t.Fatalf("contato da conta anterior herdado: %v", c)
		}
	}

	_, env = s.do(t, http.MethodGet, "/settings", token, nil)
	if got := env["data"].(map[string]any)["settings"].(map[string]any)["panic_duration"].(float64); got != 3 {
		t.Fatalf("preferências herdadas: panic_duration=%v", got)
	}

	_, env = s.do(t, http.MethodGet, "/history", token, nil)
	if got := len(env["data"].(map[string]any)["events"].([]any)); got != 0 {
		t.Fatalf("histórico herdado: %d eventos", got)
	}

	_, env = s.do(t, http.MethodGet, "/panic", token, nil)
	if env["data"].(map[string]any)["status"].(map[string]any)["state"] != string(alert.StateIdle) {
		t.Fatalf("alerta da conta anterior não foi descartado: %v", env["data"])
	}
}

func TestHistoryCursorAtDefaultLimit(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	if _, err := s.users.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	token := s.login(t, "jane_smith", "user123")

	for i := 0; i < 250; i++ {
		if _, err := s.log.Append(ctx, history.Event{Owner: "jane_smith", Type: history.TypeSystem, Title: "evento"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	_, env := s.do(t, http.MethodGet, "/history", token, nil)
	data := env["data"].(map[string]any)
	if got := len(data["events"].([]any)); got != 200 {
		t.Fatalf("página padrão deveria ter 200 eventos, veio %d", got)
	}
	cursor, ok := data["next_cursor"].(float64)
	if !ok {
		t.Fatalf("next_cursor ausente na página padrão: %v", data)
	}

	_, env = s.do(t, http.MethodGet, fmt.Sprintf("/history?before=%d", int64(cursor)), token, nil)
	data = env["data"].(map[string]any)
	if got := len(data["events"].([]any)); got != 50 {
		t.Fatalf("segunda página deveria ter 50 eventos, veio %d", got)
	}
	if _, ok := data["next_cursor"]; ok {
		t.Fatalf("última página não deveria ter cursor")
	}

	_, env = s.do(t, http.MethodGet, "/history?limit=5000", token, nil)
	if _, ok := env["data"].(map[string]any)["next_cursor"]; !ok {
		t.Fatalf("limite acima do máximo deveria paginar com cursor")
	}
}

func TestAnonymousPanicIsIsolated(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/auth/anonymous", "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("sessão anônima: status %d", rec.Code)
	}
	token := env["data"].(map[string]any)["session_token"].(string)
	base := "/panic/anonymous/" + token

	rec, _ = s.do(t, http.MethodPost, base+"/start", "", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start anônimo: status %d body=%s", rec.Code, rec.Body.String())
	}

	s.clock.Advance(3 * time.Second)
	_, env = s.do(t, http.MethodGet, base, "", nil)
	result := env["data"].(map[string]any)["result"].(map[string]any)
	if result["emergency_type"] != "general" {
		t.Fatalf("tipo padrão deveria ser general: %v", result)
	}

	events, _ := s.audit.List(context.Background(), history.AuditFilter{})
	if len(events) != 0 {
		t.Fatalf("sessão anônima não deve gerar auditoria, veio %d", len(events))
	}

	rec, _ = s.do(t, http.MethodGet, "/panic/anonymous/curto", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("token inválido: esperava 400, veio %d", rec.Code)
	}
}

func TestHistoryFilterValidation(t *testing.T) {
	s := newTestServer(t)
	if _, err := s.users.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	token := s.login(t, "jane_smith", "user123")

	for _, q := range []string{"?type=bogus", "?day=01-03-2024", "?before=abc", "?limit=-1"} {
		rec, _ := s.do(t, http.MethodGet, "/history"+q, token, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: esperava 400, veio %d", q, rec.Code)
		}
	}
}
