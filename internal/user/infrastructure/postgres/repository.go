package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/food-order-events/internal/user/domain"
	"github.com/dmehra2102/food-order-events/pkg/apperr"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Create(ctx context.Context, u domain.User) (domain.User, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO users (name, email) VALUES ($1,$2) RETURNING id`, u.Name, u.Email).Scan(&u.ID)
	if err != nil {
		return domain.User{}, mapErr(err)
	}
	return u, nil
}

func (r *Repository) Update(ctx context.Context, u domain.User) (domain.User, error) {
	ct, err := r.pool.Exec(ctx, `UPDATE users SET name=$2, email=$3 WHERE id=$1`, u.ID, u.Name, u.Email)
	if err != nil {
		return domain.User{}, mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return domain.User{}, apperr.NotFound(apperr.KindUser, u.ID)
	}
	return u, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, `SELECT id, name, email FROM users WHERE id=$1`, id).Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, apperr.NotFound(apperr.KindUser, id)
	}
	return u, err
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, `SELECT id, name, email FROM users WHERE email=$1`, email).Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, apperr.NotFound(apperr.KindUser, email)
	}
	return u, err
}

func (r *Repository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, email FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[domain.User])
}

func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, id).Scan(&ok)
	return ok, err
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound(apperr.KindUser, id)
	}
	return nil
}

// mapErr turns a duplicate email, or deleting a user who still has orders, into a conflict.
func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == uniqueViolation || pgErr.Code == foreignKeyViolation) {
		return errors.Join(apperr.ErrConflict, err)
	}
	return err
}
