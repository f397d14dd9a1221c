package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/safetap/api/internal/contact"
	"github.com/safetap/api/internal/history"
)

// Notifier entrega o alerta a um contato por um canal externo.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Message é uma entrega para um único destinatário.
type Message struct {
	Owner         string           `json:"owner"`
	Recipient     contact.Contact  `json:"recipient"`
	Title         string           `json:"title"`
	Text          string           `json:"text"`
	EmergencyType string           `json:"emergency_type"`
	Location      history.Location `json:"location"`
	CommittedAt   time.Time        `json:"committed_at"`
}

// WebhookNotifier publica JSON em um gateway (SMS, chat).
type WebhookNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewWebhookNotifier devolve nil quando nenhuma URL foi configurada.
func NewWebhookNotifier(webhookURL string, timeout time.Duration) *WebhookNotifier {
	if webhookURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
	}
}

func (w *WebhookNotifier) Notify(ctx context.Context, msg Message) error {
	if w == nil || w.webhookURL == "" {
		return fmt.Errorf("webhook não configurado")
	}

	payload := map[string]any{
		"text":           formatMessage(msg),
		"to":             msg.Recipient.Number,
		"recipient":      msg.Recipient.Name,
		"recipient_type": msg.Recipient.Type,
		"emergency_type": msg.EmergencyType,
		"location":       msg.Location,
		"committed_at":   msg.CommittedAt,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook respondeu %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier apenas registra a entrega; usado quando não há gateway.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, msg Message) error {
	l.logger.Info().
		Str("owner", msg.Owner).
		Str("recipient", msg.Recipient.Name).
		Str("number", msg.Recipient.Number).
		Str("emergency_type", msg.EmergencyType).
		Float64("lat", msg.Location.Lat).
		Float64("lng", msg.Location.Lng).
		Msg(formatMessage(msg))
	return nil
}

func formatMessage(msg Message) string {
	prefix := "[ALERT]"
	if msg.Recipient.Priority == contact.PriorityAlways {
		prefix = "[URGENT]"
	}
	text := fmt.Sprintf("%s %s (lat %.5f, lng %.5f)", msg.Text, mapsLink(msg.Location), msg.Location.Lat, msg.Location.Lng)
	if msg.Title != "" {
		return prefix + " " + msg.Title + "\n" + text
	}
	return prefix + " " + text
}

func mapsLink(loc history.Location) string {
	return fmt.Sprintf("https://maps.google.com/?q=%.6f,%.6f", loc.Lat, loc.Lng)
}
