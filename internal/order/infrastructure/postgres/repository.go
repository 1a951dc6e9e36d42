package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/food-order-events/internal/order/domain"
	"github.com/dmehra2102/food-order-events/pkg/apperr"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Insert(ctx context.Context, o domain.Order) (domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = tx.QueryRow(ctx, `INSERT INTO orders (user_id, restaurant_id, total_cents, status, order_date, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		o.UserID, o.RestaurantID, o.TotalCents, o.Status, o.OrderDate, o.UpdatedAt).Scan(&o.ID)
	if err != nil {
		return domain.Order{}, err
	}

	batch := &pgx.Batch{}
	for i, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, position, menu_item_id, name, price_cents) VALUES ($1,$2,$3,$4,$5)`,
			o.ID, i, item.MenuItemID, item.Name, item.PriceCents)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return domain.Order{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

const selectOrder = `SELECT id, user_id, restaurant_id, total_cents, status, order_date, updated_at FROM orders`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.UserID, &o.RestaurantID, &o.TotalCents, &o.Status, &o.OrderDate, &o.UpdatedAt)
	return o, err
}

func (r *Repository) Get(ctx context.Context, id int64) (domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, selectOrder+` WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, apperr.NotFound(apperr.KindOrder, id)
	}
	if err != nil {
		return domain.Order{}, err
	}
	items, err := r.items(ctx, []int64{id})
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = items[id]
	return o, nil
}

func (r *Repository) ListByRestaurant(ctx context.Context, restaurantID int64) ([]domain.Order, error) {
	return r.list(ctx, selectOrder+` WHERE restaurant_id=$1 ORDER BY id`, restaurantID)
}

func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	return r.list(ctx, selectOrder+` WHERE user_id=$1 ORDER BY id`, userID)
}

func (r *Repository) list(ctx context.Context, query string, arg int64) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Order, error) {
		return scanOrder(row)
	})
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *Repository) items(ctx context.Context, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT order_id, menu_item_id, name, price_cents FROM order_items
		WHERE order_id = ANY($1) ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var orderID int64
		var item domain.OrderItem
		if err := rows.Scan(&orderID, &item.MenuItemID, &item.Name, &item.PriceCents); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], item)
	}
	return out, rows.Err()
}

// UpdateStatus is a compare-and-set on status. A lost race surfaces as apperr.ErrConflict.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, expected, next domain.OrderStatus, at time.Time) error {
	ct, err := r.pool.Exec(ctx, `UPDATE orders SET status=$3, updated_at=$4 WHERE id=$1 AND status=$2`, id, expected, next, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		ok, err := r.Exists(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound(apperr.KindOrder, id)
		}
		return fmt.Errorf("order %d left status %s: %w", id, expected, apperr.ErrConflict)
	}
	return nil
}

func (r *Repository) SetStatus(ctx context.Context, id int64, next domain.OrderStatus, at time.Time) error {
	ct, err := r.pool.Exec(ctx, `UPDATE orders SET status=$2, updated_at=$3 WHERE id=$1`, id, next, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound(apperr.KindOrder, id)
	}
	return nil
}

func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&ok)
	return ok, err
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound(apperr.KindOrder, id)
	}
	return nil
}
