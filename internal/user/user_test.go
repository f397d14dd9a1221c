package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/safetap/api/internal/auth"
)

func newTestService() *Service {
	svc := NewService(NewMemoryStore())
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC) }
	return svc
}

func TestRegisterCaseFoldsUsername(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	u, err := svc.Register(ctx, RegisterInput{Username: " Alice ", Password: "segredo1", Name: "Alice"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Username != "alice" || u.Role != RoleUser || u.Authority != DefaultAuthority || u.Status != StatusActive {
		t.Fatalf("usuário inesperado: %+v", u)
	}
	if u.PasswordHash == "segredo1" {
		t.Fatalf("senha não pode ser persistida em texto puro")
	}

	if _, err := svc.Register(ctx, RegisterInput{Username: "ALICE", Password: "outra123", Name: "Outra"}); !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("esperava ErrDuplicateUsername, veio %v", err)
	}
}

func TestRegisterRescueAuthority(t *testing.T) {
	svc := newTestService()
	u, err := svc.Register(context.Background(), RegisterInput{Username: "bravo", Password: "segredo1", Name: "Bravo", Authority: "Rescue Team"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Role != RoleRescue {
		t.Fatalf("autoridade Rescue Team deveria virar rescue, veio %s", u.Role)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService()
	cases := []RegisterInput{
		{Username: "", Password: "segredo1", Name: "X"},
		{Username: "ok_user", Password: "123", Name: "X"},
		{Username: "ok_user", Password: "segredo1", Name: ""},
		{Username: "ok_user", Password: "segredo1", Name: "X", Email: "não-é-email"},
	}
	for _, in := range cases {
		if _, err := svc.Register(context.Background(), in); err == nil {
			t.Fatalf("esperava erro de validação para %+v", in)
		}
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	if _, err := svc.Register(ctx, RegisterInput{Username: "carla", Password: "segredo1", Name: "Carla"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Authenticate(ctx, "carla", "errada", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("senha errada: esperava ErrInvalidCredentials, veio %v", err)
	}
	if _, err := svc.Authenticate(ctx, "ninguem", "segredo1", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("usuário inexistente: esperava ErrInvalidCredentials, veio %v", err)
	}
	stored, _ := svc.Get(ctx, "carla")
	if stored.LastLogin != nil {
		t.Fatalf("falha de login não deve alterar LastLogin")
	}

	if _, err := svc.Authenticate(ctx, "carla", "segredo1", RoleAdmin); !errors.Is(err, ErrRoleMismatch) {
		t.Fatalf("esperava ErrRoleMismatch, veio %v", err)
	}

	u, err := svc.Authenticate(ctx, "CARLA", "segredo1", RoleUser)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.LastLogin == nil {
		t.Fatalf("login deveria registrar LastLogin")
	}

	if _, err := svc.SetStatus(ctx, "carla", StatusSuspended); err != nil {
		t.Fatalf("suspender: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "carla", "segredo1", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("conta suspensa: esperava ErrInvalidCredentials, veio %v", err)
	}
}

func TestAdminOperations(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	if _, err := svc.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}

	users, _ := svc.List(ctx)
	if len(users) != len(DefaultAccounts()) {
		t.Fatalf("esperava %d contas, veio %d", len(DefaultAccounts()), len(users))
	}
	admin, _ := svc.Get(ctx, "admin")
	if admin.Role != RoleAdmin {
		t.Fatalf("admin com papel %s", admin.Role)
	}

	// Seed é idempotente.
	created, err := svc.Seed(ctx)
	if err != nil || len(created) != 0 {
		t.Fatalf("seed repetido criou %d contas, err=%v", len(created), err)
	}

	if _, err := svc.ResetPassword(ctx, "john_doe"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "john_doe", auth.ResetPassword, RoleUser); err != nil {
		t.Fatalf("login com senha resetada: %v", err)
	}

	if _, err := svc.SetRole(ctx, "jane_smith", RoleRescue); err != nil {
		t.Fatalf("set role: %v", err)
	}
	if _, err := svc.SetRole(ctx, "jane_smith", Role("root")); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("esperava ErrInvalidRole, veio %v", err)
	}

	if err := svc.Delete(ctx, "admin", "Admin"); !errors.Is(err, ErrSelfDelete) {
		t.Fatalf("esperava ErrSelfDelete, veio %v", err)
	}
	if err := svc.Delete(ctx, "admin", "jane_smith"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, "jane_smith"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("esperava ErrNotFound após remoção, veio %v", err)
	}
}

func TestReplaceRejectsDuplicates(t *testing.T) {
	svc := newTestService()
	err := svc.Replace(context.Background(), []User{{Username: "a1b"}, {Username: "A1B"}})
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("esperava ErrDuplicateUsername, veio %v", err)
	}
}

func TestSessionActive(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	u, err := svc.Register(ctx, RegisterInput{Username: "dora", Password: "segredo1", Name: "Dora"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	sub, role := u.ID.String(), string(u.Role)

	if ok, err := svc.SessionActive(ctx, sub, "dora", role); err != nil || !ok {
		t.Fatalf("conta recém-criada deveria estar ativa: %v %v", ok, err)
	}
	if ok, _ := svc.SessionActive(ctx, sub, "dora", string(RoleAdmin)); ok {
		t.Fatalf("papel divergente do token deveria invalidar a sessão")
	}

	if _, err := svc.SetStatus(ctx, "dora", StatusSuspended); err != nil {
		t.Fatalf("status: %v", err)
	}
	if ok, _ := svc.SessionActive(ctx, sub, "dora", role); ok {
		t.Fatalf("conta suspensa não deveria estar ativa")
	}

	if err := svc.Delete(ctx, "admin", "dora"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, err := svc.SessionActive(ctx, sub, "dora", role); err != nil || ok {
		t.Fatalf("conta removida não deveria estar ativa: %v %v", ok, err)
	}

	again, err := svc.Register(ctx, RegisterInput{Username: "dora", Password: "segredo1", Name: "Dora"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if again.ID == u.ID {
		t.Fatalf("conta recriada deveria ter novo ID")
	}
	if ok, _ := svc.SessionActive(ctx, sub, "dora", role); ok {
		t.Fatalf("token antigo não deveria valer para a conta recriada")
	}
}
