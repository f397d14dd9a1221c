package protocol

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/safetap/api/internal/contact"
)

// targetAll é o sentinela que notifica todos os contatos.
const targetAll = "all"

type tableFile struct {
	Protocols []protocolFile `yaml:"protocols"`
}

type protocolFile struct {
	Type            string   `yaml:"type"`
	Icon            string   `yaml:"icon"`
	Message         string   `yaml:"message"`
	Actions         []string `yaml:"actions"`
	Contacts        []string `yaml:"contacts"`
	Color           string   `yaml:"color"`
	BackgroundColor string   `yaml:"bg_color"`
}

// LoadTable lê overrides em YAML. Tipos ausentes no arquivo mantêm o padrão.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTable(data)
}

// ParseTable interpreta o conteúdo YAML da tabela.
func ParseTable(data []byte) (*Table, error) {
	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("protocolos: %w", err)
	}

	merged := make(map[EmergencyType]Protocol)
	for _, p := range defaultProtocols() {
		merged[p.Type] = p
	}

	for _, pf := range tf.Protocols {
		et := EmergencyType(strings.ToLower(strings.TrimSpace(pf.Type)))
		if !et.Valid() {
			return nil, fmt.Errorf("protocolos: %w: %q", ErrUnknownEmergencyType, pf.Type)
		}
		p := merged[et]
		if pf.Icon != "" {
			p.Icon = pf.Icon
		}
		if pf.Message != "" {
			p.Message = pf.Message
		}
		if len(pf.Actions) > 0 {
			p.Actions = pf.Actions
		}
		if pf.Color != "" {
			p.Color = pf.Color
		}
		if pf.BackgroundColor != "" {
			p.BackgroundColor = pf.BackgroundColor
		}
		if len(pf.Contacts) > 0 {
			targets, all, err := parseTargets(pf.Contacts)
			if err != nil {
				return nil, fmt.Errorf("protocolos: %s: %w", et, err)
			}
			p.Targets = targets
			p.NotifyAll = all
		}
		merged[et] = p
	}

	list := make([]Protocol, 0, len(merged))
	for _, et := range Types() {
		list = append(list, merged[et])
	}
	return NewTable(list), nil
}

func parseTargets(raw []string) ([]contact.Type, bool, error) {
	var targets []contact.Type
	for _, r := range raw {
		if strings.EqualFold(strings.TrimSpace(r), targetAll) {
			return nil, true, nil
		}
		t, err := contact.ParseType(r)
		if err != nil {
			return nil, false, err
		}
		targets = append(targets, t)
	}
	return targets, false, nil
}
