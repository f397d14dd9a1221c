package protocol

import (
	"errors"
	"strings"

	"github.com/safetap/api/internal/contact"
)

// ErrUnknownEmergencyType é retornado quando o tipo não existe na tabela.
var ErrUnknownEmergencyType = errors.New("tipo de emergência desconhecido")

// EmergencyType é o tipo de emergência selecionado antes da ativação.
type EmergencyType string

const (
	Police          EmergencyType = "police"
	Medical         EmergencyType = "medical"
	BFP             EmergencyType = "bfp"
	NaturalDisaster EmergencyType = "natural_disaster"
	General         EmergencyType = "general"
)

// Types lista os tipos suportados na ordem de exibição.
func Types() []EmergencyType {
	return []EmergencyType{Police, Medical, BFP, NaturalDisaster, General}
}

// Valid informa se o tipo pertence ao enum fechado.
func (t EmergencyType) Valid() bool {
	switch t {
	case Police, Medical, BFP, NaturalDisaster, General:
		return true
	}
	return false
}

// Label formata o tipo para mensagens ("natural_disaster" -> "Natural Disaster").
func (t EmergencyType) Label() string {
	if t == BFP {
		return "BFP"
	}
	parts := strings.Split(string(t), "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// ParseType normaliza o texto recebido. Vazio vira "general".
func ParseType(s string) (EmergencyType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return General, nil
	}
	t := EmergencyType(s)
	if !t.Valid() {
		return "", ErrUnknownEmergencyType
	}
	return t, nil
}

// Protocol descreve como um tipo de emergência é comunicado.
type Protocol struct {
	Type            EmergencyType  `json:"type"`
	Icon            string         `json:"icon"`
	Message         string         `json:"message"`
	Actions         []string       `json:"actions"`
	Targets         []contact.Type `json:"targets,omitempty"`
	NotifyAll       bool           `json:"notify_all"`
	Color           string         `json:"color"`
	BackgroundColor string         `json:"bg_color"`
}

// TargetsType informa se o contato é alvo por tipo (sem considerar prioridade).
func (p Protocol) TargetsType(t contact.Type) bool {
	if p.NotifyAll {
		return true
	}
	for _, target := range p.Targets {
		if target == t {
			return true
		}
	}
	return false
}

// Table é a tabela somente-leitura de protocolos.
type Table struct {
	byType map[EmergencyType]Protocol
}

// NewTable monta tabela a partir da lista informada.
func NewTable(protocols []Protocol) *Table {
	t := &Table{byType: make(map[EmergencyType]Protocol, len(protocols))}
	for _, p := range protocols {
		t.byType[p.Type] = clone(p)
	}
	return t
}

// Lookup resolve o protocolo do tipo.
func (t *Table) Lookup(et EmergencyType) (Protocol, error) {
	p, ok := t.byType[et]
	if !ok {
		return Protocol{}, ErrUnknownEmergencyType
	}
	return clone(p), nil
}

// All devolve os protocolos na ordem de Types().
func (t *Table) All() []Protocol {
	out := make([]Protocol, 0, len(t.byType))
	for _, et := range Types() {
		if p, ok := t.byType[et]; ok {
			out = append(out, clone(p))
		}
	}
	return out
}

func clone(p Protocol) Protocol {
	p.Actions = append([]string(nil), p.Actions...)
	p.Targets = append([]contact.Type(nil), p.Targets...)
	return p
}

// DefaultTable devolve a tabela padrão do aplicativo.
func DefaultTable() *Table {
	return NewTable(defaultProtocols())
}

func defaultProtocols() []Protocol {
	return []Protocol{
		{
			Type:            Police,
			Icon:            "👮",
			Color:           "#3498db",
			Message:         "POLICE EMERGENCY! Need immediate police assistance.",
			Actions:         []string{"Find safe location", "Call police", "Document details if safe"},
			Targets:         []contact.Type{contact.TypePolice, contact.TypeFamily},
			BackgroundColor: "rgba(52, 152, 219, 0.3)",
		},
		{
			Type:            Medical,
			Icon:            "🚑",
			Color:           "#e74c3c",
			Message:         "MEDICAL EMERGENCY! Need immediate medical assistance.",
			Actions:         []string{"Check responsiveness", "Call emergency services", "Provide first aid if trained"},
			Targets:         []contact.Type{contact.TypeMedics, contact.TypeFamily},
			BackgroundColor: "rgba(231, 76, 60, 0.3)",
		},
		{
			Type:            BFP,
			Icon:            "🚒",
			Color:           "#e67e22",
			Message:         "BFP EMERGENCY! Need Bureau of Fire Protection assistance.",
			Actions:         []string{"Evacuate area", "Call BFP", "Use fire extinguisher if safe"},
			Targets:         []contact.Type{contact.TypeBFP, contact.TypePolice},
			BackgroundColor: "rgba(230, 126, 34, 0.3)",
		},
		{
			Type:            NaturalDisaster,
			Icon:            "🌪️",
			Color:           "#9b59b6",
			Message:         "NATURAL DISASTER! Emergency situation due to natural disaster.",
			Actions:         []string{"Take cover immediately", "Follow emergency protocols", "Monitor official channels"},
			Targets:         []contact.Type{contact.TypePolice, contact.TypeBFP, contact.TypeMedics},
			BackgroundColor: "rgba(155, 89, 182, 0.3)",
		},
		{
			Type:            General,
			Icon:            "🚨",
			Color:           "#ff6b6b",
			Message:         "GENERAL EMERGENCY! I need immediate assistance.",
			Actions:         []string{"Assess situation", "Call emergency services", "Move to safe location"},
			NotifyAll:       true,
			BackgroundColor: "rgba(255, 107, 107, 0.3)",
		},
	}
}
