package application

import (
	"context"
	"time"

	"github.com/dmehra2102/food-order-events/internal/order/domain"
	restaurantdomain "github.com/dmehra2102/food-order-events/internal/restaurant/domain"
)

type OrderRepository interface {
	Insert(ctx context.Context, o domain.Order) (domain.Order, error)
	Get(ctx context.Context, id int64) (domain.Order, error)
	ListByRestaurant(ctx context.Context, restaurantID int64) ([]domain.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)
	// UpdateStatus applies next only while the stored status still equals expected.
	UpdateStatus(ctx context.Context, id int64, expected, next domain.OrderStatus, at time.Time) error
	SetStatus(ctx context.Context, id int64, next domain.OrderStatus, at time.Time) error
	Exists(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error
}

type UserDirectory interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type RestaurantDirectory interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type MenuCatalog interface {
	FindByIDs(ctx context.Context, ids []int64) ([]restaurantdomain.MenuItem, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, ev domain.OrderEvent) error
}
