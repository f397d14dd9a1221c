package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrDuplicateUsername é retornado quando o username já está cadastrado.
	ErrDuplicateUsername = errors.New("username já existe")
	// ErrInvalidCredentials não distingue usuário inexistente de senha errada.
	ErrInvalidCredentials = errors.New("usuário ou senha inválidos")
	// ErrNotFound indica usuário inexistente em operações administrativas.
	ErrNotFound = errors.New("usuário não encontrado")
	// ErrRoleMismatch indica login com perfil diferente do cadastrado.
	ErrRoleMismatch = errors.New("conta não autorizada para este perfil")
	// ErrSelfDelete impede que o administrador remova a própria conta.
	ErrSelfDelete = errors.New("não é possível remover a própria conta")
	// ErrInvalidRole indica papel fora da lista.
	ErrInvalidRole = errors.New("papel inválido")
	// ErrInvalidStatus indica status fora da lista.
	ErrInvalidStatus = errors.New("status inválido")
)

// Role define o painel que o usuário acessa.
type Role string

const (
	RoleUser   Role = "user"
	RoleRescue Role = "rescue"
	RoleAdmin  Role = "admin"
)

// ParseRole valida papel recebido.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleUser, RoleRescue, RoleAdmin:
		return r, nil
	}
	return "", ErrInvalidRole
}

// Status controla se a conta pode autenticar.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// ParseStatus valida status recebido.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusActive, StatusSuspended:
		return st, nil
	}
	return "", ErrInvalidStatus
}

// DefaultAuthority é a autoridade atribuída quando nenhuma é informada.
const DefaultAuthority = "Civilian"

// User representa uma conta cadastrada.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Authority    string     `json:"authority"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// Store persiste contas. Usernames chegam já normalizados.
type Store interface {
	Create(ctx context.Context, u User) error
	GetByUsername(ctx context.Context, username string) (User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, u User) error
	Delete(ctx context.Context, username string) error
	Replace(ctx context.Context, users []User) error
}

// NormalizeUsername aplica a política de unicidade sem distinção de caixa.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
