package contact

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provê acesso à tabela de contatos no Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria instância do repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) List(ctx context.Context, owner string) ([]Contact, error) {
	const query = `
        SELECT id, owner, name, number, type, icon, priority, created_at
        FROM contacts
        WHERE owner = $1
        ORDER BY created_at, id
    `

	rows, err := r.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *Repository) Add(ctx context.Context, owner string, c Contact) (Contact, error) {
	c, err := Normalize(c)
	if err != nil {
		return Contact{}, err
	}

	const query = `
        INSERT INTO contacts (id, owner, name, number, type, icon, priority, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, owner, name, number, type, icon, priority, created_at
    `

	row := r.pool.QueryRow(ctx, query,
		uuid.New(), owner, c.Name, c.Number, string(c.Type), c.Icon, int(c.Priority), time.Now().UTC())
	saved, err := scanContact(row)
	if err != nil {
		return Contact{}, err
	}
	return *saved, nil
}

func (r *Repository) Update(ctx context.Context, owner string, c Contact) (Contact, error) {
	id := c.ID
	c, err := Normalize(c)
	if err != nil {
		return Contact{}, err
	}

	const query = `
        UPDATE contacts SET name = $3, number = $4, type = $5, icon = $6, priority = $7
        WHERE id = $1 AND owner = $2
        RETURNING id, owner, name, number, type, icon, priority, created_at
    `

	row := r.pool.QueryRow(ctx, query, id, owner, c.Name, c.Number, string(c.Type), c.Icon, int(c.Priority))
	saved, err := scanContact(row)
	if err != nil {
		return Contact{}, err
	}
	return *saved, nil
}

func (r *Repository) Delete(ctx context.Context, owner string, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM contacts WHERE id = $1 AND owner = $2`, id, owner)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteOwner(ctx context.Context, owner string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM contacts WHERE owner = $1`, owner)
	return err
}

func scanContact(row pgx.Row) (*Contact, error) {
	var (
		c        Contact
		typ      string
		priority int
	)
	if err := row.Scan(&c.ID, &c.Owner, &c.Name, &c.Number, &typ, &c.Icon, &priority, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Type = Type(typ)
	c.Priority = Priority(priority)
	return &c, nil
}
