package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port            int
	DBDSN           string
	RedisURL        string
	JWTAccessTTL    time.Duration
	JWTSecret       string
	AllowOrigins    []string
	RateLimitPublic RateLimitConfig
	RateLimitAuth   RateLimitConfig
	ProtocolsPath   string
	SeedDefaults    bool
	Alert           AlertConfig
	Delivery        DeliveryConfig
	History         HistoryConfig
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// AlertConfig agrupa parâmetros do botão de pânico.
type AlertConfig struct {
	DefaultHoldSeconds int
	Cooldown           time.Duration
	SweepSchedule      string
}

// DeliveryConfig controla o envio real (webhook/SMS) após o commit do alerta.
type DeliveryConfig struct {
	WebhookURL     string
	Workers        int
	QueueSize      int
	MaxRetries     int
	RetryBackoff   time.Duration
	RequestTimeout time.Duration
	RatePerSecond  float64
}

// HistoryConfig define retenção do histórico.
type HistoryConfig struct {
	Retention    int
	TrimSchedule string
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	// Sem DSN/Redis o serviço roda com armazenamento em memória.
	cfg.DBDSN = strings.TrimSpace(getEnv("DB_DSN", ""))
	cfg.RedisURL = strings.TrimSpace(getEnv("REDIS_URL", ""))

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET deve ter pelo menos 32 caracteres")
	}

	if cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	for _, origin := range strings.Split(getEnv("ALLOW_ORIGINS", ""), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	cfg.RateLimitPublic = RateLimitConfig{RequestsPerSecond: 10, Burst: 20}
	cfg.RateLimitAuth = RateLimitConfig{RequestsPerSecond: 10, Burst: 40}

	cfg.ProtocolsPath = strings.TrimSpace(getEnv("PROTOCOLS_PATH", ""))

	if cfg.SeedDefaults, err = parseBoolEnv("SEED_DEFAULTS", true); err != nil {
		return nil, err
	}

	hold, err := parseIntEnv("HOLD_DURATION_DEFAULT", 3)
	if err != nil {
		return nil, err
	}
	if hold < 1 || hold > 10 {
		return nil, errors.New("HOLD_DURATION_DEFAULT deve estar entre 1 e 10")
	}
	cfg.Alert.DefaultHoldSeconds = hold
	if cfg.Alert.Cooldown, err = parseDurationEnv("ALERT_COOLDOWN", 0); err != nil {
		return nil, err
	}
	cfg.Alert.SweepSchedule = getEnv("ALERT_SWEEP_SCHEDULE", "@every 1s")

	cfg.Delivery.WebhookURL = strings.TrimSpace(getEnv("DELIVERY_WEBHOOK_URL", ""))
	if cfg.Delivery.Workers, err = parseIntEnv("DELIVERY_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.Delivery.QueueSize, err = parseIntEnv("DELIVERY_QUEUE_SIZE", 256); err != nil {
		return nil, err
	}
	if cfg.Delivery.MaxRetries, err = parseIntEnv("DELIVERY_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.Delivery.RetryBackoff, err = parseDurationEnv("DELIVERY_RETRY_BACKOFF", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.Delivery.RequestTimeout, err = parseDurationEnv("DELIVERY_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	cfg.Delivery.RatePerSecond = 20

	if cfg.History.Retention, err = parseIntEnv("HISTORY_RETENTION", 500); err != nil {
		return nil, err
	}
	cfg.History.TrimSchedule = getEnv("HISTORY_TRIM_SCHEDULE", "@hourly")

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}

func parseIntEnv(key string, def int) (int, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return 0, errors.New(key + " inválido")
	}
	return n, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, errors.New(key + " inválido")
	}
	return b, nil
}
