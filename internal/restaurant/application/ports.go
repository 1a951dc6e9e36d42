package application

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dmehra2102/food-order-events/internal/restaurant/domain"
)

type RestaurantRepository interface {
	Create(ctx context.Context, r domain.Restaurant) (domain.Restaurant, error)
	// Update replaces scalar fields; the menu is replaced only when replaceMenu is set.
	Update(ctx context.Context, r domain.Restaurant, replaceMenu bool) (domain.Restaurant, error)
	Get(ctx context.Context, id int64) (domain.Restaurant, error)
	List(ctx context.Context) ([]domain.Restaurant, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error
}

type MenuItemRepository interface {
	Create(ctx context.Context, m domain.MenuItem) (domain.MenuItem, error)
	Update(ctx context.Context, m domain.MenuItem) (domain.MenuItem, error)
	Get(ctx context.Context, id int64) (domain.MenuItem, error)
	FindByIDs(ctx context.Context, ids []int64) ([]domain.MenuItem, error)
	ListByRestaurant(ctx context.Context, restaurantID int64) ([]domain.MenuItem, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error
}

var ErrCacheMiss = errors.New("cache miss")

// Cache stores opaque snapshots. Get returns ErrCacheMiss for absent keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
