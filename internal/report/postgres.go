package report

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/safetap/api/internal/db"
	"github.com/safetap/api/internal/history"
	"github.com/safetap/api/internal/user"
)

// PostgresImporter grava usuários e auditoria na mesma transação.
type PostgresImporter struct {
	pool  *pgxpool.Pool
	users *user.Repository
	audit *history.AuditRepository
}

func NewPostgresImporter(pool *pgxpool.Pool) *PostgresImporter {
	return &PostgresImporter{
		pool:  pool,
		users: user.NewRepository(pool),
		audit: history.NewAuditRepository(pool),
	}
}

func (p *PostgresImporter) ReplaceAll(ctx context.Context, users []user.User, events []history.PanicEvent) error {
	return db.WithTx(ctx, p.pool, func(ctx context.Context, tx pgx.Tx) error {
		if err := p.users.ReplaceTx(ctx, tx, users); err != nil {
			return fmt.Errorf("importar usuários: %w", err)
		}
		if err := p.audit.ReplaceTx(ctx, tx, events); err != nil {
			return fmt.Errorf("importar emergências: %w", err)
		}
		return nil
	})
}
