package alert

import (
	"context"
	"fmt"

	"github.com/safetap/api/internal/contact"
	"github.com/safetap/api/internal/history"
	"github.com/safetap/api/internal/location"
	"github.com/safetap/api/internal/notify"
	"github.com/safetap/api/internal/protocol"
)

const (
	sirenTitle   = "Emergency Siren Activated"
	sirenDetails = "Loud alarm activated to attract attention"
)

// Recipients monta o conjunto de destinatários: contatos do tipo alvo (ou todos),
// mais os de prioridade 1. Nomes repetidos colapsam em uma entrada; vale o último
// contato lido com aquele nome, na posição da primeira ocorrência.
func Recipients(p protocol.Protocol, contacts []contact.Contact) []contact.Contact {
	candidates := make([]contact.Contact, 0, len(contacts))
	for _, c := range contacts {
		if p.NotifyAll || p.TargetsType(c.Type) {
			candidates = append(candidates, c)
		}
	}
	for _, c := range contacts {
		if c.Priority == contact.PriorityAlways {
			candidates = append(candidates, c)
		}
	}

	index := make(map[string]int, len(candidates))
	out := make([]contact.Contact, 0, len(candidates))
	for _, c := range candidates {
		if i, ok := index[c.Name]; ok {
			out[i] = c
			continue
		}
		index[c.Name] = len(out)
		out = append(out, c)
	}
	return out
}

// dispatch executa o envio de um commit. Histórico e auditoria são gravados
// antes de qualquer entrega; falhas de entrega não voltam para cá.
func (e *Engine) dispatch(ctx context.Context, sess Session) (Result, error) {
	p, err := e.protocols.Lookup(sess.EmergencyType)
	if err != nil {
		return Result{}, err
	}

	owner := sess.Actor.Key
	contacts, err := e.contacts.List(ctx, owner)
	if err != nil {
		return Result{}, fmt.Errorf("listar contatos: %w", err)
	}
	prefs, err := e.settings.Get(ctx, owner)
	if err != nil {
		return Result{}, fmt.Errorf("ler preferências: %w", err)
	}

	now := e.clock.Now().UTC()
	recipients := Recipients(p, contacts)
	details := fmt.Sprintf("Emergency: %s. %s", p.Type.Label(), p.Message)

	names := make([]string, 0, len(recipients))
	for _, c := range recipients {
		_, err := e.log.Append(ctx, history.Event{
			Owner:     owner,
			Type:      history.TypeAlert,
			Title:     "Alert sent to " + c.Name,
			Details:   details,
			Timestamp: now,
		})
		if err != nil {
			return Result{}, fmt.Errorf("registrar histórico: %w", err)
		}
		names = append(names, c.Name)
	}

	if prefs.SoundAlerts {
		if _, err := e.log.Append(ctx, history.Event{
			Owner:     owner,
			Type:      history.TypeAlert,
			Title:     sirenTitle,
			Details:   sirenDetails,
			Timestamp: now,
		}); err != nil {
			return Result{}, fmt.Errorf("registrar sirene: %w", err)
		}
	}

	snapshot := location.Default()
	if e.locations != nil {
		// Localização não bloqueia o alerta; sem leitura segue com a posição padrão.
		if current, err := e.locations.Current(ctx, owner); err != nil {
			e.logger.Warn().Err(err).Str("owner", owner).Msg("alert: localização indisponível")
		} else {
			snapshot = current
		}
	}
	loc := snapshot.Location()

	if sess.Actor.Authenticated() {
		if _, err := e.audit.Record(ctx, history.PanicEvent{
			Username:      sess.Actor.Username,
			EmergencyType: sess.EmergencyType,
			Location:      loc,
			Timestamp:     now,
		}); err != nil {
			return Result{}, fmt.Errorf("registrar auditoria: %w", err)
		}
	}

	if e.deliveries != nil && prefs.AutoSendAlerts && len(recipients) > 0 {
		msgs := make([]notify.Message, 0, len(recipients))
		for _, c := range recipients {
			msgs = append(msgs, notify.Message{
				Owner:         owner,
				Recipient:     c,
				Title:         p.Icon + " " + p.Type.Label(),
				Text:          prefs.EmergencyMessage + " " + p.Message,
				EmergencyType: string(p.Type),
				Location:      loc,
				CommittedAt:   now,
			})
		}
		if err := e.deliveries.Enqueue(msgs...); err != nil {
			e.logger.Warn().Err(err).Str("owner", owner).Msg("alert: entregas não enfileiradas")
		}
	}

	return Result{
		Owner:         owner,
		EmergencyType: p.Type,
		Icon:          p.Icon,
		Message:       p.Message,
		Actions:       p.Actions,
		NotifiedCount: len(recipients),
		Recipients:    names,
		CommittedAt:   now,
	}, nil
}
