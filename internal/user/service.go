package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/safetap/api/internal/auth"
	"github.com/safetap/api/internal/util"
)

// RegisterInput reúne os campos do formulário de cadastro.
type RegisterInput struct {
	Username  string `json:"username" validate:"required,username"`
	Password  string `json:"password" validate:"required,min=6,max=128"`
	Name      string `json:"name" validate:"required,max=120"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"omitempty,max=32"`
	Authority string `json:"authority" validate:"omitempty,max=64"`
	Role      Role   `json:"-"`
}

// Service reúne regras de negócio de contas.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService cria uma nova instância do serviço.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Register cria a conta com status ativo.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	input.Username = NormalizeUsername(input.Username)
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	input.Authority = strings.TrimSpace(input.Authority)
	if err := util.ValidateStruct(input); err != nil {
		return User{}, err
	}

	if _, err := s.store.GetByUsername(ctx, input.Username); err == nil {
		return User{}, ErrDuplicateUsername
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	if input.Authority == "" {
		input.Authority = DefaultAuthority
	}
	role := input.Role
	if role == "" {
		role = RoleUser
		if strings.EqualFold(input.Authority, "Rescue Team") {
			role = RoleRescue
		}
	}

	hash, err := auth.Hash(input.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash: %w", err)
	}

	now := s.now().UTC()
	u := User{
		ID:           uuid.New(),
		Username:     input.Username,
		Name:         input.Name,
		Email:        input.Email,
		Phone:        strings.TrimSpace(input.Phone),
		PasswordHash: hash,
		Role:         role,
		Authority:    input.Authority,
		Status:       StatusActive,
		CreatedAt:    now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Authenticate valida credenciais e atualiza o último login.
// expectedRole vazio aceita qualquer papel.
func (s *Service) Authenticate(ctx context.Context, username, password string, expectedRole Role) (User, error) {
	u, err := s.store.GetByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	ok, err := auth.Verify(password, u.PasswordHash)
	if err != nil || !ok {
		return User{}, ErrInvalidCredentials
	}
	if u.Status != StatusActive {
		return User{}, ErrInvalidCredentials
	}
	if expectedRole != "" && u.Role != expectedRole {
		return User{}, ErrRoleMismatch
	}

	now := s.now().UTC()
	u.LastLogin = &now
	if err := s.store.Update(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Get recupera o perfil completo.
func (s *Service) Get(ctx context.Context, username string) (User, error) {
	return s.store.GetByUsername(ctx, NormalizeUsername(username))
}

// SessionActive confere se o token (subject, username, role) ainda corresponde
// a uma conta ativa. Conta removida, suspensa, recriada ou com papel alterado
// devolve false.
func (s *Service) SessionActive(ctx context.Context, subject, username, role string) (bool, error) {
	u, err := s.store.GetByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return u.ID.String() == subject && u.Status == StatusActive && string(u.Role) == role, nil
}

// List devolve todas as contas.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.store.List(ctx)
}

// SetStatus ativa ou suspende a conta.
func (s *Service) SetStatus(ctx context.Context, username string, status Status) (User, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return User{}, err
	}
	return s.mutate(ctx, username, func(u *User) error {
		u.Status = status
		return nil
	})
}

// SetRole altera o papel da conta.
func (s *Service) SetRole(ctx context.Context, username string, role Role) (User, error) {
	if _, err := ParseRole(string(role)); err != nil {
		return User{}, err
	}
	return s.mutate(ctx, username, func(u *User) error {
		u.Role = role
		return nil
	})
}

// ResetPassword redefine a senha para o valor fixo administrativo.
func (s *Service) ResetPassword(ctx context.Context, username string) (User, error) {
	return s.mutate(ctx, username, func(u *User) error {
		hash, err := auth.Hash(auth.ResetPassword)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
		return nil
	})
}

// Delete remove a conta; actor é quem executa a ação.
func (s *Service) Delete(ctx context.Context, actor, username string) error {
	username = NormalizeUsername(username)
	if username == NormalizeUsername(actor) {
		return ErrSelfDelete
	}
	return s.store.Delete(ctx, username)
}

// Replace substitui todas as contas (importação).
func (s *Service) Replace(ctx context.Context, users []User) error {
	if err := PrepareImport(users); err != nil {
		return err
	}
	return s.store.Replace(ctx, users)
}

// PrepareImport normaliza usernames, recusa duplicados e gera IDs ausentes.
func PrepareImport(users []User) error {
	seen := make(map[string]struct{}, len(users))
	for i := range users {
		users[i].Username = NormalizeUsername(users[i].Username)
		if _, dup := seen[users[i].Username]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateUsername, users[i].Username)
		}
		seen[users[i].Username] = struct{}{}
		if users[i].ID == uuid.Nil {
			users[i].ID = uuid.New()
		}
	}
	return nil
}

func (s *Service) mutate(ctx context.Context, username string, fn func(u *User) error) (User, error) {
	u, err := s.store.GetByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		return User{}, err
	}
	if err := fn(&u); err != nil {
		return User{}, err
	}
	if err := s.store.Update(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// DefaultAccounts são as contas de demonstração.
func DefaultAccounts() []RegisterInput {
	return []RegisterInput{
		{Username: "admin", Password: "admin123", Name: "System Administrator", Email: "admin@safetap.com", Phone: "+63 912 345 6789", Authority: "Administrator", Role: RoleAdmin},
		{Username: "rescue_team", Password: "rescue123", Name: "Rescue Team Leader", Email: "rescue@safetap.com", Phone: "+63 912 345 6789", Authority: "Rescue Team", Role: RoleRescue},
		{Username: "john_doe", Password: "user123", Name: "John Doe", Email: "john.doe@example.com", Phone: "+63 912 345 6789", Authority: "Civilian", Role: RoleUser},
		{Username: "jane_smith", Password: "user123", Name: "Jane Smith", Email: "jane.smith@example.com", Phone: "+63 912 345 6790", Authority: "Police Officer", Role: RoleUser},
	}
}

// Seed cadastra as contas de demonstração ausentes. Devolve as criadas.
func (s *Service) Seed(ctx context.Context) ([]User, error) {
	var created []User
	for _, in := range DefaultAccounts() {
		u, err := s.Register(ctx, in)
		if errors.Is(err, ErrDuplicateUsername) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", in.Username, err)
		}
		created = append(created, u)
	}
	return created, nil
}
