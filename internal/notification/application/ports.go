package application

import (
	"context"

	restaurantdomain "github.com/dmehra2102/food-order-events/internal/restaurant/domain"
	userdomain "github.com/dmehra2102/food-order-events/internal/user/domain"
)

type UserReader interface {
	Get(ctx context.Context, id int64) (userdomain.User, error)
}

type RestaurantReader interface {
	Get(ctx context.Context, id int64) (restaurantdomain.Restaurant, error)
}

type MenuReader interface {
	FindByIDs(ctx context.Context, ids []int64) ([]restaurantdomain.MenuItem, error)
}

type Mail struct {
	To        string
	Subject   string
	HTML      string
	MessageID string
}

type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// Dedup is satisfied by the idempotency stores.
type Dedup interface {
	Has(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}
