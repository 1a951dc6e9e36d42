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

type RestaurantRepository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRestaurantRepository(log *slog.Logger, pool *pgxpool.Pool) *RestaurantRepository {
	return &RestaurantRepository{log: log, pool: pool}
}

func (r *RestaurantRepository) Create(ctx context.Context, in domain.Restaurant) (domain.Restaurant, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Restaurant{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = tx.QueryRow(ctx, `INSERT INTO restaurants (name, email, address, contact) VALUES ($1,$2,$3,$4) RETURNING id`,
		in.Name, in.Email, in.Address, in.Contact).Scan(&in.ID)
	if err != nil {
		return domain.Restaurant{}, err
	}
	if err := insertMenu(ctx, tx, in.ID, in.MenuItems); err != nil {
		return domain.Restaurant{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Restaurant{}, err
	}
	return r.Get(ctx, in.ID)
}

func (r *RestaurantRepository) Update(ctx context.Context, in domain.Restaurant, replaceMenu bool) (domain.Restaurant, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Restaurant{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `UPDATE restaurants SET name=$2, email=$3, address=$4, contact=$5 WHERE id=$1`,
		in.ID, in.Name, in.Email, in.Address, in.Contact)
	if err != nil {
		return domain.Restaurant{}, err
	}
	if ct.RowsAffected() == 0 {
		return domain.Restaurant{}, apperr.NotFound(apperr.KindRestaurant, in.ID)
	}
	if replaceMenu {
		if _, err := tx.Exec(ctx, `DELETE FROM menu_items WHERE restaurant_id=$1`, in.ID); err != nil {
			return domain.Restaurant{}, err
		}
		if err := insertMenu(ctx, tx, in.ID, in.MenuItems); err != nil {
			return domain.Restaurant{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Restaurant{}, err
	}
	return r.Get(ctx, in.ID)
}

func insertMenu(ctx context.Context, tx pgx.Tx, restaurantID int64, items []domain.MenuItem) error {
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`INSERT INTO menu_items (restaurant_id, name, description, price_cents) VALUES ($1,$2,$3,$4)`,
			restaurantID, item.Name, item.Description, item.PriceCents)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (r *RestaurantRepository) Get(ctx context.Context, id int64) (domain.Restaurant, error) {
	var out domain.Restaurant
	err := r.pool.QueryRow(ctx, `SELECT id, name, email, address, contact FROM restaurants WHERE id=$1`, id).
		Scan(&out.ID, &out.Name, &out.Email, &out.Address, &out.Contact)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Restaurant{}, apperr.NotFound(apperr.KindRestaurant, id)
	}
	if err != nil {
		return domain.Restaurant{}, err
	}
	menus, err := r.menus(ctx, []int64{id})
	if err != nil {
		return domain.Restaurant{}, err
	}
	out.MenuItems = menus[id]
	return out, nil
}

func (r *RestaurantRepository) List(ctx context.Context) ([]domain.Restaurant, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, email, address, contact FROM restaurants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Restaurant, error) {
		var out domain.Restaurant
		err := row.Scan(&out.ID, &out.Name, &out.Email, &out.Address, &out.Contact)
		return out, err
	})
	if err != nil || len(list) == 0 {
		return list, err
	}

	ids := make([]int64, 0, len(list))
	for _, rest := range list {
		ids = append(ids, rest.ID)
	}
	menus, err := r.menus(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].MenuItems = menus[list[i].ID]
	}
	return list, nil
}

func (r *RestaurantRepository) menus(ctx context.Context, restaurantIDs []int64) (map[int64][]domain.MenuItem, error) {
	rows, err := r.pool.Query(ctx, selectMenuItem+` WHERE restaurant_id = ANY($1) ORDER BY id`, restaurantIDs)
	if err != nil {
		return nil, err
	}
	items, err := pgx.CollectRows(rows, scanMenuItem)
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]domain.MenuItem, len(restaurantIDs))
	for _, item := range items {
		out[item.RestaurantID] = append(out[item.RestaurantID], item)
	}
	return out, nil
}

func (r *RestaurantRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM restaurants WHERE id=$1)`, id).Scan(&ok)
	return ok, err
}

// Delete cascades to the restaurant's menu items.
func (r *RestaurantRepository) Delete(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM restaurants WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound(apperr.KindRestaurant, id)
	}
	return nil
}
