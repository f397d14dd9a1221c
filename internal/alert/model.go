package alert

import (
	"context"
	"errors"
	"time"

	"github.com/safetap/api/internal/contact"
	"github.com/safetap/api/internal/location"
	"github.com/safetap/api/internal/notify"
	"github.com/safetap/api/internal/protocol"
	"github.com/safetap/api/internal/settings"
)

var (
	// ErrAlreadyActive indica start com uma sessão já em andamento.
	ErrAlreadyActive = errors.New("alerta já está ativo")
	// ErrNotActive indica cancel sem sessão em andamento.
	ErrNotActive = errors.New("nenhum alerta ativo")
	// ErrCooldown indica novo start dentro do intervalo mínimo após um commit.
	ErrCooldown = errors.New("aguarde antes de disparar novo alerta")
)

// State é a fase da máquina de estados do botão de pânico.
type State string

const (
	StateIdle      State = "idle"
	StateHolding   State = "holding"
	StateCommitted State = "committed"
)

// Clock abstrai o relógio para testes determinísticos.
type Clock interface {
	Now() time.Time
}

// SystemClock usa o relógio do sistema.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Actor identifica quem aciona o alerta. Username vazio indica sessão anônima,
// que dispara normalmente mas não gera PanicEvent.
type Actor struct {
	Key      string
	Username string
}

// Authenticated informa se o ator é uma conta cadastrada.
func (a Actor) Authenticated() bool { return a.Username != "" }

// UserActor cria ator para conta autenticada.
func UserActor(username string) Actor {
	return Actor{Key: username, Username: username}
}

// AnonymousActor cria ator isolado pelo token de sessão.
func AnonymousActor(token string) Actor {
	return Actor{Key: "anon:" + token}
}

// Session é o alerta em andamento (estado Holding).
type Session struct {
	Actor         Actor                  `json:"-"`
	Owner         string                 `json:"owner"`
	EmergencyType protocol.EmergencyType `json:"emergency_type"`
	StartedAt     time.Time              `json:"started_at"`
	Required      time.Duration          `json:"-"`
}

// Status é o retorno de poll.
type Status struct {
	State         State                  `json:"state"`
	EmergencyType protocol.EmergencyType `json:"emergency_type,omitempty"`
	Elapsed       float64                `json:"elapsed_seconds"`
	Required      float64                `json:"required_seconds"`
	Progress      float64                `json:"progress"`
}

// Result descreve um commit concluído.
type Result struct {
	Owner         string                 `json:"-"`
	EmergencyType protocol.EmergencyType `json:"emergency_type"`
	Icon          string                 `json:"icon"`
	Message       string                 `json:"message"`
	Actions       []string               `json:"actions"`
	NotifiedCount int                    `json:"notified_count"`
	Recipients    []string               `json:"recipients"`
	CommittedAt   time.Time              `json:"committed_at"`
}

// ContactLister é a visão do diretório usada no dispatch.
type ContactLister interface {
	List(ctx context.Context, owner string) ([]contact.Contact, error)
}

// SettingsSource fornece tempo de pressão e flags do usuário.
type SettingsSource interface {
	Get(ctx context.Context, owner string) (settings.Settings, error)
}

// LocationSource fornece a posição no momento do commit.
type LocationSource interface {
	Current(ctx context.Context, owner string) (location.Snapshot, error)
}

// Enqueuer agenda entregas reais sem bloquear o commit.
type Enqueuer interface {
	Enqueue(msgs ...notify.Message) error
}
