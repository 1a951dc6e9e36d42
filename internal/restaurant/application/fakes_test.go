package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dmehra2102/food-order-events/internal/restaurant/domain"
	"github.com/dmehra2102/food-order-events/pkg/apperr"
)

type store struct {
	mu          sync.Mutex
	nextID      int64
	restaurants map[int64]domain.Restaurant
	items       map[int64]domain.MenuItem
	gets        int
	lists       int
}

func newStore() *store {
	return &store{restaurants: map[int64]domain.Restaurant{}, items: map[int64]domain.MenuItem{}}
}

func (s *store) seed(r domain.Restaurant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restaurants[r.ID] = domain.Restaurant{ID: r.ID, Name: r.Name, Email: r.Email, Address: r.Address, Contact: r.Contact}
	for _, m := range r.MenuItems {
		m.RestaurantID = r.ID
		s.items[m.ID] = m
		s.nextID = max(s.nextID, m.ID)
	}
	s.nextID = max(s.nextID, r.ID)
}

func (s *store) withMenu(r domain.Restaurant) domain.Restaurant {
	r.MenuItems = nil
	for _, m := range s.sortedItems() {
		if m.RestaurantID == r.ID {
			r.MenuItems = append(r.MenuItems, m)
		}
	}
	return r
}

func (s *store) sortedItems() []domain.MenuItem {
	out := make([]domain.MenuItem, 0, len(s.items))
	for _, m := range s.items {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type restaurantRepo struct{ *store }

func (r restaurantRepo) Create(_ context.Context, in domain.Restaurant) (domain.Restaurant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	in.ID = r.nextID
	for _, m := range in.MenuItems {
		r.nextID++
		m.ID = r.nextID
		m.RestaurantID = in.ID
		r.items[m.ID] = m
	}
	r.restaurants[in.ID] = domain.Restaurant{ID: in.ID, Name: in.Name, Email: in.Email, Address: in.Address, Contact: in.Contact}
	return r.withMenu(in), nil
}

func (r restaurantRepo) Update(_ context.Context, in domain.Restaurant, replaceMenu bool) (domain.Restaurant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if replaceMenu {
		for id, m := range r.items {
			if m.RestaurantID == in.ID {
				delete(r.items, id)
			}
		}
		for _, m := range in.MenuItems {
			r.nextID++
			m.ID = r.nextID
			m.RestaurantID = in.ID
			r.items[m.ID] = m
		}
	}
	r.restaurants[in.ID] = domain.Restaurant{ID: in.ID, Name: in.Name, Email: in.Email, Address: in.Address, Contact: in.Contact}
	return r.withMenu(in), nil
}

func (r restaurantRepo) Get(_ context.Context, id int64) (domain.Restaurant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	got, ok := r.restaurants[id]
	if !ok {
		return domain.Restaurant{}, apperr.NotFound(apperr.KindRestaurant, id)
	}
	return r.withMenu(got), nil
}

func (r restaurantRepo) List(_ context.Context) ([]domain.Restaurant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	out := make([]domain.Restaurant, 0, len(r.restaurants))
	for _, got := range r.restaurants {
		out = append(out, r.withMenu(got))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r restaurantRepo) Exists(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.restaurants[id]
	return ok, nil
}

func (r restaurantRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.restaurants, id)
	for itemID, m := range r.items {
		if m.RestaurantID == id {
			delete(r.items, itemID)
		}
	}
	return nil
}

type menuRepo struct{ *store }

func (m menuRepo) Create(_ context.Context, in domain.MenuItem) (domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	in.ID = m.nextID
	m.items[in.ID] = in
	return in, nil
}

func (m menuRepo) Update(_ context.Context, in domain.MenuItem) (domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[in.ID] = in
	return in, nil
}

func (m menuRepo) Get(_ context.Context, id int64) (domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	got, ok := m.items[id]
	if !ok {
		return domain.MenuItem{}, apperr.NotFound(apperr.KindMenuItem, id)
	}
	return got, nil
}

func (m menuRepo) FindByIDs(_ context.Context, ids []int64) ([]domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.MenuItem
	for _, id := range ids {
		if got, ok := m.items[id]; ok {
			out = append(out, got)
		}
	}
	return out, nil
}

func (m menuRepo) ListByRestaurant(_ context.Context, restaurantID int64) ([]domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.MenuItem
	for _, got := range m.sortedItems() {
		if got.RestaurantID == restaurantID {
			out = append(out, got)
		}
	}
	return out, nil
}

func (m menuRepo) Exists(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[id]
	return ok, nil
}

func (m menuRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
	failGet error
	failSet error
	failDel error
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet != nil {
		return nil, c.failGet
	}
	v, ok := c.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet != nil {
		return c.failSet
	}
	c.entries[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failDel != nil {
		return c.failDel
	}
	for _, k := range keys {
		delete(c.entries, k)
		delete(c.ttls, k)
	}
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

var errCacheDown = errors.New("dial tcp: connection refused")

type brokenCodec struct{}

func (brokenCodec) Marshal(any) ([]byte, error) { return nil, errors.New("unsupported value") }
func (brokenCodec) Unmarshal([]byte, any) error { return errors.New("corrupt payload") }
