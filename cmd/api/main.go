package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/safetap/api/internal/alert"
	"github.com/safetap/api/internal/auth"
	"github.com/safetap/api/internal/config"
	"github.com/safetap/api/internal/contact"
	"github.com/safetap/api/internal/db"
	"github.com/safetap/api/internal/history"
	internalhttp "github.com/safetap/api/internal/http"
	"github.com/safetap/api/internal/location"
	"github.com/safetap/api/internal/notify"
	"github.com/safetap/api/internal/protocol"
	"github.com/safetap/api/internal/report"
	"github.com/safetap/api/internal/scheduler"
	"github.com/safetap/api/internal/settings"
	"github.com/safetap/api/internal/user"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

type stores struct {
	users    user.Store
	contacts contact.Directory
	history  history.Log
	audit    history.AuditLog
	settings settings.Store
	location location.Backend
	importer report.Importer
	checks   map[string]func(ctx context.Context) error
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := stores{
		users:    user.NewMemoryStore(),
		contacts: contact.NewMemoryDirectory(),
		history:  history.NewMemoryLog(),
		audit:    history.NewMemoryAudit(),
		settings: settings.NewMemoryStore(cfg.Alert.DefaultHoldSeconds),
		location: location.NewMemoryBackend(),
		checks:   map[string]func(ctx context.Context) error{},
	}

	if cfg.DBDSN != "" {
		pool, err := db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		usePostgres(&st, pool)
		log.Info().Msg("armazenamento: postgres")
	} else {
		log.Warn().Msg("DB_DSN ausente; usando armazenamento em memória")
	}

	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis parse: %w", err)
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()

		st.settings = settings.NewRedisStore(redisClient, cfg.Alert.DefaultHoldSeconds)
		st.location = location.NewRedisBackend(redisClient, 0)
		st.checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	protocols := protocol.DefaultTable()
	if cfg.ProtocolsPath != "" {
		if protocols, err = protocol.LoadTable(cfg.ProtocolsPath); err != nil {
			return fmt.Errorf("protocolos: %w", err)
		}
		log.Info().Str("path", cfg.ProtocolsPath).Msg("tabela de protocolos carregada")
	}

	users := user.NewService(st.users)
	if cfg.SeedDefaults {
		seeded, err := users.Seed(ctx)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		for _, u := range seeded {
			if err := contact.Seed(ctx, st.contacts, u.Username); err != nil {
				return fmt.Errorf("seed contatos %s: %w", u.Username, err)
			}
		}
		if len(seeded) > 0 {
			log.Info().Int("accounts", len(seeded)).Msg("contas de demonstração criadas")
		}
	}

	deliveryLogger := log.With().Str("component", "delivery").Logger()
	var notifier notify.Notifier = notify.NewLogNotifier(deliveryLogger)
	if cfg.Delivery.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Delivery.WebhookURL, cfg.Delivery.RequestTimeout)
	}
	dispatcher := notify.NewDispatcher(notifier, cfg.Delivery, deliveryLogger)
	dispatcher.OnFailure = func(msg notify.Message, failed *notify.DeliveryFailedError) {
		// falha de entrega fica visível no histórico do dono do alerta
		_, err := st.history.Append(context.Background(), history.Event{
			Owner:   msg.Owner,
			Type:    history.TypeSystem,
			Title:   "Delivery failed",
			Details: failed.Error(),
		})
		if err != nil {
			deliveryLogger.Error().Err(err).Msg("registrar falha de entrega")
		}
	}
	dispatcher.Start(context.Background())

	locations := location.NewTracker(st.location, st.history)
	engine := alert.NewEngine(alert.Dependencies{
		Protocols:  protocols,
		Contacts:   st.contacts,
		Settings:   st.settings,
		Locations:  locations,
		Log:        st.history,
		Audit:      st.audit,
		Deliveries: dispatcher,
	}, cfg.Alert.Cooldown, log.With().Str("component", "alert").Logger())

	reports := report.NewService(users, st.audit, st.history).WithImporter(st.importer)

	jobs := scheduler.New(time.UTC, log.With().Str("component", "scheduler").Logger())
	if err := jobs.Add("alert-sweep", cfg.Alert.SweepSchedule, func(ctx context.Context) error {
		_, err := engine.Sweep(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("agendar sweep: %w", err)
	}
	if cfg.History.Retention > 0 {
		if err := jobs.Add("history-trim", cfg.History.TrimSchedule, func(ctx context.Context) error {
			removed, err := reports.TrimHistory(ctx, cfg.History.Retention)
			if removed > 0 {
				log.Info().Int("removed", removed).Msg("histórico antigo removido")
			}
			return err
		}); err != nil {
			return fmt.Errorf("agendar limpeza: %w", err)
		}
	}
	jobs.Start()

	handler := internalhttp.NewRouter(cfg, internalhttp.Dependencies{
		JWT:       auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL),
		Users:     users,
		Contacts:  st.contacts,
		Settings:  st.settings,
		Locations: locations,
		History:   st.history,
		Audit:     st.audit,
		Alerts:    engine,
		Reports:   reports,
		Protocols: protocols,
		Checks:    st.checks,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("API ouvindo em :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("encerrando...")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	jobs.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown http")
	}
	return dispatcher.Stop(shutdownCtx)
}

func usePostgres(st *stores, pool *pgxpool.Pool) {
	st.users = user.NewRepository(pool)
	st.contacts = contact.NewRepository(pool)
	st.history = history.NewRepository(pool)
	st.audit = history.NewAuditRepository(pool)
	st.importer = report.NewPostgresImporter(pool)
	st.checks["postgres"] = pool.Ping
}
