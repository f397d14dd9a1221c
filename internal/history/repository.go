package history

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/safetap/api/internal/db"
	"github.com/safetap/api/internal/protocol"
)

// Repository implementa Log e AuditLog sobre Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria instância do repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Append(ctx context.Context, e Event) (Event, error) {
	if _, err := ParseType(string(e.Type)); err != nil || e.Type == "" {
		return Event{}, ErrInvalidType
	}
	e = prepare(e, time.Now().UTC())

	const query = `
        INSERT INTO history_events (id, owner, type, title, details, occurred_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING seq
    `
	if err := r.pool.QueryRow(ctx, query, e.ID, e.Owner, string(e.Type), e.Title, e.Details, e.Timestamp).Scan(&e.Seq); err != nil {
		return Event{}, err
	}
	return e, nil
}

func (r *Repository) Query(ctx context.Context, f Filter) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		var (
			clauses = []string{"owner = $1"}
			args    = []any{f.Owner}
			idx     = 2
		)

		if f.Type != "" {
			clauses = append(clauses, fmt.Sprintf("type = $%d", idx))
			args = append(args, string(f.Type))
			idx++
		}
		if f.Before > 0 {
			clauses = append(clauses, fmt.Sprintf("seq < $%d", idx))
			args = append(args, f.Before)
			idx++
		}
		if !f.Day.IsZero() {
			y, m, d := f.Day.Date()
			start := time.Date(y, m, d, 0, 0, 0, 0, f.Day.Location())
			clauses = append(clauses, fmt.Sprintf("occurred_at >= $%d AND occurred_at < $%d", idx, idx+1))
			args = append(args, start, start.AddDate(0, 0, 1))
			idx += 2
		}
		if q := strings.TrimSpace(f.Search); q != "" {
			clauses = append(clauses, fmt.Sprintf("(title || ' ' || details) ILIKE $%d", idx))
			args = append(args, "%"+escapeLike(q)+"%")
			idx++
		}

		query := `SELECT id, owner, type, title, details, occurred_at, seq FROM history_events WHERE ` +
			strings.Join(clauses, " AND ") +
			fmt.Sprintf(" ORDER BY seq DESC LIMIT $%d", idx)
		args = append(args, NormalizeLimit(f.Limit))

		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			yield(Event{}, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				e   Event
				typ string
			)
			if err := rows.Scan(&e.ID, &e.Owner, &typ, &e.Title, &e.Details, &e.Timestamp, &e.Seq); err != nil {
				yield(Event{}, err)
				return
			}
			e.Type = EventType(typ)
			e.Timestamp = e.Timestamp.UTC()
			e.Date = FormatDate(e.Timestamp)
			if !yield(e, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Event{}, err)
		}
	}
}

func (r *Repository) Trim(ctx context.Context, owner string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	const query = `
        DELETE FROM history_events
        WHERE owner = $1 AND seq NOT IN (
            SELECT seq FROM history_events WHERE owner = $1 ORDER BY seq DESC LIMIT $2
        )
    `
	tag, err := r.pool.Exec(ctx, query, owner, keep)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *Repository) Clear(ctx context.Context, owner string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM history_events WHERE owner = $1`, owner)
	return err
}

func (r *Repository) Owners(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT owner FROM history_events ORDER BY owner`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}
		out = append(out, owner)
	}
	return out, rows.Err()
}

// AuditRepository implementa AuditLog sobre Postgres.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository cria instância do repositório de auditoria.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Record(ctx context.Context, e PanicEvent) (PanicEvent, error) {
	e = preparePanic(e, time.Now().UTC())
	if err := insertPanic(ctx, r.pool, e); err != nil {
		return PanicEvent{}, err
	}
	return e, nil
}

func (r *AuditRepository) List(ctx context.Context, f AuditFilter) ([]PanicEvent, error) {
	var (
		clauses []string
		args    []any
		idx     = 1
	)
	if f.Username != "" {
		clauses = append(clauses, fmt.Sprintf("username = $%d", idx))
		args = append(args, f.Username)
		idx++
	}
	if f.EmergencyType != "" {
		clauses = append(clauses, fmt.Sprintf("emergency_type = $%d", idx))
		args = append(args, string(f.EmergencyType))
		idx++
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, fmt.Sprintf("occurred_at >= $%d", idx))
		args = append(args, f.Since)
		idx++
	}

	query := `SELECT id, username, emergency_type, lat, lng, accuracy, occurred_at FROM panic_events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY seq DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", idx)
		args = append(args, f.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]PanicEvent, 0)
	for rows.Next() {
		var (
			e  PanicEvent
			et string
		)
		if err := rows.Scan(&e.ID, &e.Username, &et, &e.Location.Lat, &e.Location.Lng, &e.Location.Accuracy, &e.Timestamp); err != nil {
			return nil, err
		}
		e.EmergencyType = protocol.EmergencyType(et)
		e.Timestamp = e.Timestamp.UTC()
		e.Date = FormatDate(e.Timestamp)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Replace substitui toda a auditoria numa única transação (usado na importação).
func (r *AuditRepository) Replace(ctx context.Context, events []PanicEvent) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return r.ReplaceTx(ctx, tx, events)
	})
}

// ReplaceTx troca toda a auditoria usando a transação do chamador.
func (r *AuditRepository) ReplaceTx(ctx context.Context, q db.Querier, events []PanicEvent) error {
	sorted := make([]PanicEvent, len(events))
	copy(sorted, events)
	// insere do mais antigo para o mais novo para manter a ordem por seq
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	now := time.Now().UTC()
	if _, err := q.Exec(ctx, `DELETE FROM panic_events`); err != nil {
		return err
	}
	for _, e := range sorted {
		if err := insertPanic(ctx, q, preparePanic(e, now)); err != nil {
			return err
		}
	}
	return nil
}

func insertPanic(ctx context.Context, q db.Querier, e PanicEvent) error {
	const query = `
        INSERT INTO panic_events (id, username, emergency_type, lat, lng, accuracy, occurred_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := q.Exec(ctx, query, e.ID, e.Username, string(e.EmergencyType),
		e.Location.Lat, e.Location.Lng, e.Location.Accuracy, e.Timestamp)
	return err
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
