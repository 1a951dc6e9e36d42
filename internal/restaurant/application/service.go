package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dmehra2102/food-order-events/internal/restaurant/domain"
)

const (
	cachePrefix   = "restaurant:"
	AllKey        = cachePrefix + "all"
	RestaurantTTL = 10 * time.Minute
	ListTTL       = 5 * time.Minute
)

func RestaurantKey(id int64) string {
	return cachePrefix + strconv.FormatInt(id, 10)
}

// Service serves restaurant reads cache-aside and invalidates on every write.
// The cache is never authoritative: any cache failure falls back to the repository.
type Service struct {
	log         *slog.Logger
	restaurants RestaurantRepository
	menu        MenuItemRepository
	cache       Cache
	codec       Codec
}

func NewService(log *slog.Logger, restaurants RestaurantRepository, menu MenuItemRepository, cache Cache, codec Codec) *Service {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &Service{log: log, restaurants: restaurants, menu: menu, cache: cache, codec: codec}
}

func (s *Service) GetRestaurant(ctx context.Context, id int64) (domain.RestaurantView, error) {
	key := RestaurantKey(id)
	var view domain.RestaurantView
	if s.readCache(ctx, key, &view) {
		return view, nil
	}

	r, err := s.restaurants.Get(ctx, id)
	if err != nil {
		return domain.RestaurantView{}, err
	}
	view = r.View()
	s.writeCache(ctx, key, view, RestaurantTTL)
	return view, nil
}

func (s *Service) ListRestaurants(ctx context.Context) ([]domain.RestaurantView, error) {
	var views []domain.RestaurantView
	if s.readCache(ctx, AllKey, &views) {
		return views, nil
	}

	list, err := s.restaurants.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants: %w", err)
	}
	views = make([]domain.RestaurantView, 0, len(list))
	for _, r := range list {
		views = append(views, r.View())
	}
	s.writeCache(ctx, AllKey, views, ListTTL)
	return views, nil
}

// GetRestaurantWithMenu reads the full entity, email included, from the durable store.
func (s *Service) GetRestaurantWithMenu(ctx context.Context, id int64) (domain.Restaurant, error) {
	return s.restaurants.Get(ctx, id)
}

func (s *Service) CreateRestaurant(ctx context.Context, in domain.RestaurantInput) (domain.RestaurantView, error) {
	if err := in.Validate(); err != nil {
		return domain.RestaurantView{}, err
	}
	r := domain.Restaurant{Name: in.Name, Email: in.Email, Address: in.Address, Contact: in.Contact}
	for _, item := range in.MenuItems {
		r.MenuItems = append(r.MenuItems, domain.MenuItem{Name: item.Name, Description: item.Description, PriceCents: item.PriceCents})
	}
	saved, err := s.restaurants.Create(ctx, r)
	if err != nil {
		return domain.RestaurantView{}, fmt.Errorf("failed to create restaurant: %w", err)
	}
	s.invalidate(ctx, AllKey)
	s.log.Info("restaurant added", "restaurant_id", saved.ID, "name", saved.Name)
	return saved.View(), nil
}

func (s *Service) UpdateRestaurant(ctx context.Context, id int64, in domain.RestaurantInput) (domain.RestaurantView, error) {
	if err := in.Validate(); err != nil {
		return domain.RestaurantView{}, err
	}
	existing, err := s.restaurants.Get(ctx, id)
	if err != nil {
		return domain.RestaurantView{}, err
	}
	existing.Name = in.Name
	existing.Email = in.Email
	existing.Address = in.Address
	existing.Contact = in.Contact
	replaceMenu := in.MenuItems != nil
	if replaceMenu {
		existing.MenuItems = existing.MenuItems[:0]
		for _, item := range in.MenuItems {
			existing.MenuItems = append(existing.MenuItems, domain.MenuItem{RestaurantID: id, Name: item.Name, Description: item.Description, PriceCents: item.PriceCents})
		}
	}
	saved, err := s.restaurants.Update(ctx, existing, replaceMenu)
	if err != nil {
		return domain.RestaurantView{}, fmt.Errorf("failed to update restaurant: %w", err)
	}
	s.invalidate(ctx, RestaurantKey(id), AllKey)
	s.log.Info("restaurant cache invalidated", "restaurant_id", id)
	return saved.View(), nil
}

func (s *Service) DeleteRestaurant(ctx context.Context, id int64) error {
	if _, err := s.restaurants.Get(ctx, id); err != nil {
		return err
	}
	if err := s.restaurants.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete restaurant: %w", err)
	}
	s.invalidate(ctx, RestaurantKey(id), AllKey)
	s.log.Info("restaurant deleted", "restaurant_id", id)
	return nil
}

func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	return s.restaurants.Exists(ctx, id)
}

func (s *Service) readCache(ctx context.Context, key string, dst any) bool {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.log.Warn("cache read failed", "key", key, "err", err)
		}
		return false
	}
	if err := s.codec.Unmarshal(raw, dst); err != nil {
		s.log.Error("failed to deserialize cached value", "key", key, "err", err)
		return false
	}
	s.log.Debug("cache hit", "key", key)
	return true
}

func (s *Service) writeCache(ctx context.Context, key string, v any, ttl time.Duration) {
	raw, err := s.codec.Marshal(v)
	if err != nil {
		s.log.Error("failed to serialize value for cache", "key", key, "err", err)
		return
	}
	if err := s.cache.Set(ctx, key, raw, ttl); err != nil {
		s.log.Warn("cache write failed", "key", key, "err", err)
		return
	}
	s.log.Debug("cache populated", "key", key, "ttl", ttl)
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.Error("cache invalidation failed", "keys", keys, "err", err)
	}
}
