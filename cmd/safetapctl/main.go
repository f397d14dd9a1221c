package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/safetap/api/internal/auth"
	"github.com/safetap/api/internal/contact"
	"github.com/safetap/api/internal/db"
	"github.com/safetap/api/internal/history"
	"github.com/safetap/api/internal/report"
	"github.com/safetap/api/internal/user"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	cmd := os.Args[1]
	args := os.Args[2:]

	// hash não precisa de banco
	if cmd == "hash" {
		if err := runHash(args); err != nil {
			log.Fatal().Err(err).Msg("falha ao gerar hash")
		}
		return
	}

	ctx := context.Background()

	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		log.Fatal().Msg("defina DB_DSN ou DATABASE_URL")
	}

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("não foi possível conectar ao banco")
	}
	defer pool.Close()

	switch cmd {
	case "migrate":
		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("falha na migração")
		}
		log.Info().Msg("schema aplicado")
	case "seed":
		if err := runSeed(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("falha ao criar contas padrão")
		}
	case "export":
		if err := runExport(ctx, pool, args); err != nil {
			log.Fatal().Err(err).Msg("falha ao exportar")
		}
	case "import":
		if err := runImport(ctx, pool, args); err != nil {
			log.Fatal().Err(err).Msg("falha ao importar")
		}
	case "trim":
		if err := runTrim(ctx, pool, args); err != nil {
			log.Fatal().Err(err).Msg("falha ao limpar histórico")
		}
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "safetapctl")
	fmt.Fprintln(os.Stderr, "uso:")
	fmt.Fprintln(os.Stderr, "  safetapctl migrate")
	fmt.Fprintln(os.Stderr, "  safetapctl seed")
	fmt.Fprintln(os.Stderr, "  safetapctl export [--out backup.json]")
	fmt.Fprintln(os.Stderr, "  safetapctl import --file backup.json")
	fmt.Fprintln(os.Stderr, "  safetapctl trim [--keep 100]")
	fmt.Fprintln(os.Stderr, "  safetapctl hash <senha>")
}

func reports(pool *pgxpool.Pool) *report.Service {
	users := user.NewService(user.NewRepository(pool))
	return report.NewService(users, history.NewAuditRepository(pool), history.NewRepository(pool)).
		WithImporter(report.NewPostgresImporter(pool))
}

func runHash(args []string) error {
	if len(args) < 1 {
		return errors.New("informe a senha")
	}
	hash, err := auth.Hash(args[0])
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func runSeed(ctx context.Context, pool *pgxpool.Pool) error {
	users := user.NewService(user.NewRepository(pool))
	contacts := contact.NewRepository(pool)

	seeded, err := users.Seed(ctx)
	if err != nil {
		return err
	}
	for _, u := range seeded {
		if err := contact.Seed(ctx, contacts, u.Username); err != nil {
			return fmt.Errorf("contatos de %s: %w", u.Username, err)
		}
	}

	if len(seeded) == 0 {
		fmt.Println("contas padrão já existem")
		return nil
	}
	for _, u := range seeded {
		fmt.Printf("%s (%s)\n", u.Username, u.Role)
	}
	return nil
}

func runExport(ctx context.Context, pool *pgxpool.Pool, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	out := fs.String("out", "", "arquivo de saída (padrão stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	snap, err := reports(pool).Export(ctx)
	if err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	if *out == "" {
		fmt.Println(string(encoded))
		return nil
	}
	if err := os.WriteFile(*out, encoded, 0o600); err != nil {
		return fmt.Errorf("gravar %s: %w", *out, err)
	}
	log.Info().Int("users", len(snap.Users)).Int("panic_events", len(snap.PanicEvents)).Str("file", *out).Msg("exportação concluída")
	return nil
}

func runImport(ctx context.Context, pool *pgxpool.Pool, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	file := fs.String("file", "", "arquivo JSON gerado por export")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("--file é obrigatório")
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("ler %s: %w", *file, err)
	}
	var snap report.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("parse %s: %w", *file, err)
	}

	if err := reports(pool).Import(ctx, snap); err != nil {
		return err
	}
	log.Info().Int("users", len(snap.Users)).Int("panic_events", len(snap.PanicEvents)).Msg("importação concluída")
	return nil
}

func runTrim(ctx context.Context, pool *pgxpool.Pool, args []string) error {
	fs := flag.NewFlagSet("trim", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	keep := fs.Int("keep", report.DefaultTrimKeep, "eventos mantidos por usuário")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *keep < 0 {
		return errors.New("--keep não pode ser negativo")
	}

	removed, err := reports(pool).TrimHistory(ctx, *keep)
	if err != nil {
		return err
	}
	fmt.Printf("%d eventos removidos\n", removed)
	return nil
}
