package settings

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "safetap:settings:"

// HashClient é o subconjunto do cliente Redis usado pelo store.
type HashClient interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore guarda cada conta em um hash Redis.
type RedisStore struct {
	client      HashClient
	holdSeconds int
}

func NewRedisStore(client HashClient, defaultHoldSeconds int) *RedisStore {
	return &RedisStore{client: client, holdSeconds: defaultHoldSeconds}
}

func (r *RedisStore) Get(ctx context.Context, owner string) (Settings, error) {
	fields, err := r.client.HGetAll(ctx, keyPrefix+owner).Result()
	if err != nil {
		return Settings{}, fmt.Errorf("ler preferências: %w", err)
	}
	s := Defaults(r.holdSeconds)
	if len(fields) == 0 {
		return s, nil
	}
	decodeFields(&s, fields)
	return s, nil
}

func (r *RedisStore) Save(ctx context.Context, owner string, s Settings) (Settings, error) {
	s, err := s.Validate()
	if err != nil {
		return Settings{}, err
	}
	if err := r.client.HSet(ctx, keyPrefix+owner, encodeFields(s)).Err(); err != nil {
		return Settings{}, fmt.Errorf("gravar preferências: %w", err)
	}
	return s, nil
}

func (r *RedisStore) Reset(ctx context.Context, owner string) (Settings, error) {
	if err := r.client.Del(ctx, keyPrefix+owner).Err(); err != nil && err != redis.Nil {
		return Settings{}, err
	}
	return Defaults(r.holdSeconds), nil
}

func encodeFields(s Settings) map[string]any {
	return map[string]any{
		"notifications":     strconv.FormatBool(s.Notifications),
		"location_tracking": strconv.FormatBool(s.LocationTracking),
		"high_accuracy":     strconv.FormatBool(s.HighAccuracy),
		"vibration":         strconv.FormatBool(s.Vibration),
		"sound_alerts":      strconv.FormatBool(s.SoundAlerts),
		"voice_recording":   strconv.FormatBool(s.VoiceRecording),
		"auto_send_alerts":  strconv.FormatBool(s.AutoSendAlerts),
		"panic_duration":    strconv.Itoa(s.HoldDuration),
		"emergency_message": s.EmergencyMessage,
	}
}

// decodeFields ignora campos ausentes ou corrompidos, mantendo o default.
func decodeFields(s *Settings, fields map[string]string) {
	flags := map[string]*bool{
		"notifications":     &s.Notifications,
		"location_tracking": &s.LocationTracking,
		"high_accuracy":     &s.HighAccuracy,
		"vibration":         &s.Vibration,
		"sound_alerts":      &s.SoundAlerts,
		"voice_recording":   &s.VoiceRecording,
		"auto_send_alerts":  &s.AutoSendAlerts,
	}
	for name, dst := range flags {
		if raw, ok := fields[name]; ok {
			if v, err := strconv.ParseBool(raw); err == nil {
				*dst = v
			}
		}
	}
	if raw, ok := fields["panic_duration"]; ok {
		if v, err := strconv.Atoi(raw); err == nil && v >= MinHoldSeconds && v <= MaxHoldSeconds {
			s.HoldDuration = v
		}
	}
	if msg, ok := fields["emergency_message"]; ok && msg != "" {
		s.EmergencyMessage = msg
	}
}
