package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/food-order-events/internal/restaurant/domain"
	"github.com/dmehra2102/food-order-events/pkg/apperr"
)

const selectMenuItem = `SELECT id, restaurant_id, name, description, price_cents FROM menu_items`

func scanMenuItem(row pgx.CollectableRow) (domain.MenuItem, error) {
	var m domain.MenuItem
	err := row.Scan(&m.ID, &m.RestaurantID, &m.Name, &m.Description, &m.PriceCents)
	return m, err
}

type MenuItemRepository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewMenuItemRepository(log *slog.Logger, pool *pgxpool.Pool) *MenuItemRepository {
	return &MenuItemRepository{log: log, pool: pool}
}

func (r *MenuItemRepository) Create(ctx context.Context, m domain.MenuItem) (domain.MenuItem, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO menu_items (restaurant_id, name, description, price_cents) VALUES ($1,$2,$3,$4) RETURNING id`,
		m.RestaurantID, m.Name, m.Description, m.PriceCents).Scan(&m.ID)
	if err != nil {
		return domain.MenuItem{}, err
	}
	return m, nil
}

func (r *MenuItemRepository) Update(ctx context.Context, m domain.MenuItem) (domain.MenuItem, error) {
	ct, err := r.pool.Exec(ctx, `UPDATE menu_items SET restaurant_id=$2, name=$3, description=$4, price_cents=$5 WHERE id=$1`,
		m.ID, m.RestaurantID, m.Name, m.Description, m.PriceCents)
	if err != nil {
		return domain.MenuItem{}, err
	}
	if ct.RowsAffected() == 0 {
		return domain.MenuItem{}, apperr.NotFound(apperr.KindMenuItem, m.ID)
	}
	return m, nil
}

func (r *MenuItemRepository) Get(ctx context.Context, id int64) (domain.MenuItem, error) {
	rows, err := r.pool.Query(ctx, selectMenuItem+` WHERE id=$1`, id)
	if err != nil {
		return domain.MenuItem{}, err
	}
	m, err := pgx.CollectExactlyOneRow(rows, scanMenuItem)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MenuItem{}, apperr.NotFound(apperr.KindMenuItem, id)
	}
	return m, err
}

// FindByIDs returns each existing item once; callers re-expand duplicates.
func (r *MenuItemRepository) FindByIDs(ctx context.Context, ids []int64) ([]domain.MenuItem, error) {
	rows, err := r.pool.Query(ctx, selectMenuItem+` WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanMenuItem)
}

func (r *MenuItemRepository) ListByRestaurant(ctx context.Context, restaurantID int64) ([]domain.MenuItem, error) {
	rows, err := r.pool.Query(ctx, selectMenuItem+` WHERE restaurant_id=$1 ORDER BY id`, restaurantID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanMenuItem)
}

func (r *MenuItemRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM menu_items WHERE id=$1)`, id).Scan(&ok)
	return ok, err
}

func (r *MenuItemRepository) Delete(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM menu_items WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound(apperr.KindMenuItem, id)
	}
	return nil
}
