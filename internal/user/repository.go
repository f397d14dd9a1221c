package user

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/safetap/api/internal/db"
)

const uniqueViolation = "23505"

// Repository provê acesso à tabela users.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria instância do repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, username, name, email, phone, password_hash, role, authority, status, created_at, last_login`

func (r *Repository) Create(ctx context.Context, u User) error {
	return insertUser(ctx, r.pool, u)
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repository) Update(ctx context.Context, u User) error {
	const query = `
        UPDATE users
        SET name = $2, email = $3, phone = $4, password_hash = $5, role = $6,
            authority = $7, status = $8, last_login = $9
        WHERE username = $1
    `
	tag, err := r.pool.Exec(ctx, query, u.Username, u.Name, u.Email, u.Phone, u.PasswordHash,
		string(u.Role), u.Authority, string(u.Status), u.LastLogin)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, username string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Replace(ctx context.Context, users []User) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return r.ReplaceTx(ctx, tx, users)
	})
}

// ReplaceTx troca todas as contas usando a transação do chamador.
func (r *Repository) ReplaceTx(ctx context.Context, q db.Querier, users []User) error {
	if _, err := q.Exec(ctx, `DELETE FROM users`); err != nil {
		return err
	}
	for _, u := range users {
		if err := insertUser(ctx, q, u); err != nil {
			return err
		}
	}
	return nil
}

func insertUser(ctx context.Context, q db.Querier, u User) error {
	const query = `
        INSERT INTO users (` + userColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `
	_, err := q.Exec(ctx, query, u.ID, u.Username, u.Name, u.Email, u.Phone, u.PasswordHash,
		string(u.Role), u.Authority, string(u.Status), u.CreatedAt, u.LastLogin)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateUsername
	}
	return err
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u      User
		role   string
		status string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Email, &u.Phone, &u.PasswordHash,
		&role, &u.Authority, &status, &u.CreatedAt, &u.LastLogin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	u.Role = Role(role)
	u.Status = Status(status)
	return u, nil
}
