package settings

import (
	"context"
	"errors"
	"strings"

	"github.com/safetap/api/internal/util"
)

// ErrInvalidHoldDuration indica tempo de pressão fora do intervalo aceito.
var ErrInvalidHoldDuration = errors.New("tempo de pressão deve estar entre 1 e 10 segundos")

const (
	MinHoldSeconds = 1
	MaxHoldSeconds = 10

	DefaultEmergencyMessage = "EMERGENCY! I need immediate assistance. My current location has been shared with this alert."
)

// Settings reúne as preferências do usuário lidas pelo alerta.
type Settings struct {
	Notifications    bool   `json:"notifications"`
	LocationTracking bool   `json:"location_tracking"`
	HighAccuracy     bool   `json:"high_accuracy"`
	Vibration        bool   `json:"vibration"`
	SoundAlerts      bool   `json:"sound_alerts"`
	VoiceRecording   bool   `json:"voice_recording"`
	AutoSendAlerts   bool   `json:"auto_send_alerts"`
	HoldDuration     int    `json:"panic_duration" validate:"min=1,max=10"`
	EmergencyMessage string `json:"emergency_message" validate:"max=500"`
}

// Defaults devolve as preferências de uma conta nova.
func Defaults(holdSeconds int) Settings {
	if holdSeconds < MinHoldSeconds || holdSeconds > MaxHoldSeconds {
		holdSeconds = 3
	}
	return Settings{
		Notifications:    true,
		LocationTracking: true,
		HighAccuracy:     true,
		Vibration:        true,
		SoundAlerts:      true,
		VoiceRecording:   true,
		AutoSendAlerts:   true,
		HoldDuration:     holdSeconds,
		EmergencyMessage: DefaultEmergencyMessage,
	}
}

// Validate confere faixa do tempo de pressão e normaliza a mensagem.
func (s Settings) Validate() (Settings, error) {
	s.EmergencyMessage = strings.TrimSpace(s.EmergencyMessage)
	if s.EmergencyMessage == "" {
		s.EmergencyMessage = DefaultEmergencyMessage
	}
	if err := util.ValidateStruct(s); err != nil {
		var verr *util.ValidationError
		if errors.As(err, &verr) && verr.Field == "holdduration" {
			return s, ErrInvalidHoldDuration
		}
		return s, err
	}
	return s, nil
}

// Store persiste preferências por dono.
type Store interface {
	Get(ctx context.Context, owner string) (Settings, error)
	Save(ctx context.Context, owner string, s Settings) (Settings, error)
	Reset(ctx context.Context, owner string) (Settings, error)
}
