package contact

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/safetap/api/internal/util"
)

var (
	// ErrNotFound é retornado quando o contato não existe para o dono informado.
	ErrNotFound = errors.New("contato não encontrado")
	// ErrInvalidType indica tipo fora da lista suportada.
	ErrInvalidType = errors.New("tipo de contato inválido")
	// ErrInvalidPriority indica prioridade diferente de 1 ou 2.
	ErrInvalidPriority = errors.New("prioridade inválida")
)

// Type classifica o contato para roteamento por protocolo.
type Type string

const (
	TypePolice Type = "police"
	TypeBFP    Type = "bfp"
	TypeMedics Type = "medics"
	TypeFamily Type = "family"
	TypeOther  Type = "other"
)

// Priority controla se o contato recebe todos os alertas.
type Priority int

const (
	PriorityAlways Priority = 1
	PriorityNormal Priority = 2
)

// Contact é um contato de emergência de um usuário (ou sessão anônima).
type Contact struct {
	ID        uuid.UUID `json:"id"`
	Owner     string    `json:"-"`
	Name      string    `json:"name" validate:"required,max=80"`
	Number    string    `json:"number" validate:"required,max=32"`
	Type      Type      `json:"type" validate:"required,oneof=police bfp medics family other"`
	Icon      string    `json:"icon" validate:"max=32"`
	Priority  Priority  `json:"priority" validate:"oneof=1 2"`
	CreatedAt time.Time `json:"created_at"`
}

// Directory armazena contatos por dono.
type Directory interface {
	List(ctx context.Context, owner string) ([]Contact, error)
	Add(ctx context.Context, owner string, c Contact) (Contact, error)
	Update(ctx context.Context, owner string, c Contact) (Contact, error)
	Delete(ctx context.Context, owner string, id uuid.UUID) error
	// DeleteOwner remove todos os contatos do dono (conta excluída).
	DeleteOwner(ctx context.Context, owner string) error
}

// ParseType normaliza o tipo informado.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TypePolice, TypeBFP, TypeMedics, TypeFamily, TypeOther:
		return t, nil
	case "":
		return TypeOther, nil
	}
	return "", ErrInvalidType
}

// DefaultIcon devolve o ícone usado quando o contato não define um.
func DefaultIcon(t Type) string {
	switch t {
	case TypePolice:
		return "👮"
	case TypeBFP:
		return "🚒"
	case TypeMedics:
		return "🚑"
	case TypeFamily:
		return "👨‍👩‍👧‍👦"
	}
	return "📞"
}

// Normalize aplica defaults de cadastro (prioridade 2, ícone por tipo) e valida.
func Normalize(c Contact) (Contact, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Number = strings.TrimSpace(c.Number)
	c.Icon = strings.TrimSpace(c.Icon)
	c.Type = Type(strings.ToLower(strings.TrimSpace(string(c.Type))))
	if c.Type == "" {
		c.Type = TypeOther
	}
	if c.Priority == 0 {
		c.Priority = PriorityNormal
	}

	if err := util.ValidateStruct(c); err != nil {
		var verr *util.ValidationError
		if errors.As(err, &verr) {
			switch verr.Field {
			case "type":
				return Contact{}, ErrInvalidType
			case "priority":
				return Contact{}, ErrInvalidPriority
			}
		}
		return Contact{}, err
	}
	if c.Icon == "" {
		c.Icon = DefaultIcon(c.Type)
	}
	return c, nil
}
