package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/safetap/api/internal/history"
	"github.com/safetap/api/internal/user"
)

// ErrInvalidSnapshot indica arquivo de importação inconsistente.
var ErrInvalidSnapshot = errors.New("snapshot inválido")

// DefaultTrimKeep é quantos eventos por usuário a limpeza manual mantém.
const DefaultTrimKeep = 100

// UserSource é a visão do cadastro usada pelos relatórios.
type UserSource interface {
	List(ctx context.Context) ([]user.User, error)
	Replace(ctx context.Context, users []user.User) error
}

// Stats é o resumo do painel administrativo.
type Stats struct {
	TotalUsers       int            `json:"total_users"`
	ActiveUsers      int            `json:"active_users"`
	TotalEmergencies int            `json:"total_emergencies"`
	TodayEmergencies int            `json:"today_emergencies"`
	EmergencyTypes   map[string]int `json:"emergency_types"`
}

// ExportedUser inclui o hash para que a importação preserve o login.
type ExportedUser struct {
	user.User
	PasswordHash string `json:"password_hash"`
}

// Snapshot é o formato de exportação/importação.
type Snapshot struct {
	Users       []ExportedUser       `json:"users"`
	PanicEvents []history.PanicEvent `json:"panic_events"`
	ExportedAt  time.Time            `json:"export_timestamp"`
}

// Importer troca usuários e auditoria como uma única operação.
type Importer interface {
	ReplaceAll(ctx context.Context, users []user.User, events []history.PanicEvent) error
}

// Service agrega visões administrativas sobre usuários, auditoria e histórico.
type Service struct {
	users    UserSource
	audit    history.AuditLog
	log      history.Log
	importer Importer
	now      func() time.Time
}

func NewService(users UserSource, audit history.AuditLog, log history.Log) *Service {
	return &Service{
		users:    users,
		audit:    audit,
		log:      log,
		importer: rollbackImporter{users: users, audit: audit},
		now:      time.Now,
	}
}

// WithImporter troca a estratégia de importação (ex.: transação única no Postgres).
func (s *Service) WithImporter(imp Importer) *Service {
	if imp != nil {
		s.importer = imp
	}
	return s
}

// allEvents lê a auditoria inteira (limite zero = sem limite).
func (s *Service) allEvents(ctx context.Context) ([]history.PanicEvent, error) {
	return s.audit.List(ctx, history.AuditFilter{})
}

// Stats calcula totais; "hoje" segue o fuso do servidor.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("listar usuários: %w", err)
	}
	events, err := s.allEvents(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("listar emergências: %w", err)
	}

	st := Stats{
		TotalUsers:       len(users),
		TotalEmergencies: len(events),
		EmergencyTypes:   make(map[string]int),
	}
	for _, u := range users {
		if u.Status == user.StatusActive {
			st.ActiveUsers++
		}
	}

	now := s.now()
	y, m, d := now.Date()
	for _, e := range events {
		st.EmergencyTypes[string(e.EmergencyType)]++
		ey, em, ed := e.Timestamp.In(now.Location()).Date()
		if ey == y && em == m && ed == d {
			st.TodayEmergencies++
		}
	}
	return st, nil
}

// Export gera snapshot completo de usuários e PanicEvents.
func (s *Service) Export(ctx context.Context) (Snapshot, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("listar usuários: %w", err)
	}
	events, err := s.allEvents(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("listar emergências: %w", err)
	}

	snap := Snapshot{
		Users:       make([]ExportedUser, 0, len(users)),
		PanicEvents: events,
		ExportedAt:  s.now().UTC(),
	}
	for _, u := range users {
		snap.Users = append(snap.Users, ExportedUser{User: u, PasswordHash: u.PasswordHash})
	}
	if snap.PanicEvents == nil {
		snap.PanicEvents = []history.PanicEvent{}
	}
	return snap, nil
}

// Import substitui usuários e PanicEvents pelo conteúdo do snapshot.
func (s *Service) Import(ctx context.Context, snap Snapshot) error {
	users := make([]user.User, 0, len(snap.Users))
	for _, eu := range snap.Users {
		u := eu.User
		u.PasswordHash = eu.PasswordHash
		if user.NormalizeUsername(u.Username) == "" || u.PasswordHash == "" {
			return fmt.Errorf("%w: usuário sem username ou senha", ErrInvalidSnapshot)
		}
		if _, err := user.ParseRole(string(u.Role)); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSnapshot, u.Username, err)
		}
		if _, err := user.ParseStatus(string(u.Status)); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSnapshot, u.Username, err)
		}
		users = append(users, u)
	}
	for _, e := range snap.PanicEvents {
		if e.Username == "" || !e.EmergencyType.Valid() {
			return fmt.Errorf("%w: emergência inválida", ErrInvalidSnapshot)
		}
	}

	if err := user.PrepareImport(users); err != nil {
		return fmt.Errorf("importar usuários: %w", err)
	}
	return s.importer.ReplaceAll(ctx, users, snap.PanicEvents)
}

// rollbackImporter troca usuários e auditoria em sequência e restaura as
// contas anteriores se a auditoria falhar.
type rollbackImporter struct {
	users UserSource
	audit history.AuditLog
}

func (r rollbackImporter) ReplaceAll(ctx context.Context, users []user.User, events []history.PanicEvent) error {
	previous, err := r.users.List(ctx)
	if err != nil {
		return fmt.Errorf("listar usuários: %w", err)
	}
	if err := r.users.Replace(ctx, users); err != nil {
		return fmt.Errorf("importar usuários: %w", err)
	}
	if err := r.audit.Replace(ctx, events); err != nil {
		err = fmt.Errorf("importar emergências: %w", err)
		if rerr := r.users.Replace(ctx, previous); rerr != nil {
			return errors.Join(err, fmt.Errorf("restaurar usuários: %w", rerr))
		}
		return err
	}
	return nil
}

// TrimHistory mantém os keep eventos mais recentes de cada usuário.
func (s *Service) TrimHistory(ctx context.Context, keep int) (int, error) {
	owners, err := s.log.Owners(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, owner := range owners {
		n, err := s.log.Trim(ctx, owner, keep)
		if err != nil {
			return removed, fmt.Errorf("limpar histórico de %s: %w", owner, err)
		}
		removed += n
	}
	return removed, nil
}

// ResetDemoData apaga PanicEvents e todo o histórico. Contas são mantidas.
func (s *Service) ResetDemoData(ctx context.Context) error {
	if err := s.audit.Replace(ctx, nil); err != nil {
		return err
	}
	owners, err := s.log.Owners(ctx)
	if err != nil {
		return err
	}
	for _, owner := range owners {
		if err := s.log.Clear(ctx, owner); err != nil {
			return err
		}
	}
	return nil
}
