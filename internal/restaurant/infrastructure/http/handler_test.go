package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/food-order-events/internal/restaurant/application"
	"github.com/dmehra2102/food-order-events/internal/restaurant/domain"
	restaurantredis "github.com/dmehra2102/food-order-events/internal/restaurant/infrastructure/redis"
	"github.com/dmehra2102/food-order-events/pkg/apperr"
	"github.com/dmehra2102/food-order-events/pkg/logging"
)

// store backs both repositories so restaurant reads see menu writes.
type store struct {
	mu          sync.Mutex
	nextID      int64
	restaurants map[int64]domain.Restaurant
	items       map[int64]domain.MenuItem
}

func newStore() *store {
	return &store{restaurants: map[int64]domain.Restaurant{}, items: map[int64]domain.MenuItem{}}
}

func (s *store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *store) assemble(r domain.Restaurant) domain.Restaurant {
	r.MenuItems = nil
	for id := int64(1); id <= s.nextID; id++ {
		if m, ok := s.items[id]; ok && m.RestaurantID == r.ID {
			r.MenuItems = append(r.MenuItems, m)
		}
	}
	return r
}

type restaurantRepo struct{ *store }

func (r restaurantRepo) Create(_ context.Context, in domain.Restaurant) (domain.Restaurant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in.ID = r.id()
	for _, m := range in.MenuItems {
		m.ID, m.RestaurantID = r.id(), in.ID
		r.items[m.ID] = m
	}
	r.restaurants[in.ID] = in
	return r.assemble(in), nil
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
			m.ID, m.RestaurantID = r.id(), in.ID
			r.items[m.ID] = m
		}
	}
	r.restaurants[in.ID] = in
	return r.assemble(in), nil
}

func (r restaurantRepo) Get(_ context.Context, id int64) (domain.Restaurant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	got, ok := r.restaurants[id]
	if !ok {
		return domain.Restaurant{}, apperr.NotFound(apperr.KindRestaurant, id)
	}
	return r.assemble(got), nil
}

func (r restaurantRepo) List(_ context.Context) ([]domain.Restaurant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Restaurant
	for id := int64(1); id <= r.nextID; id++ {
		if got, ok := r.restaurants[id]; ok {
			out = append(out, r.assemble(got))
		}
	}
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

func (m menuRepo) Create(_ context.Context, item domain.MenuItem) (domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = m.id()
	m.items[item.ID] = item
	return item, nil
}

func (m menuRepo) Update(_ context.Context, item domain.MenuItem) (domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
	return item, nil
}

func (m menuRepo) Get(_ context.Context, id int64) (domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return domain.MenuItem{}, apperr.NotFound(apperr.KindMenuItem, id)
	}
	return item, nil
}

func (m menuRepo) FindByIDs(_ context.Context, ids []int64) ([]domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.MenuItem
	for _, id := range ids {
		if item, ok := m.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m menuRepo) ListByRestaurant(_ context.Context, restaurantID int64) ([]domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assemble(domain.Restaurant{ID: restaurantID}).MenuItems, nil
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

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newServer(t *testing.T) (*httptest.Server, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := newStore()
	svc := application.NewService(logging.Discard(), restaurantRepo{st}, menuRepo{st}, restaurantredis.NewCache(rdb), nil)
	srv := httptest.NewServer(NewHandler(logging.Discard(), svc).Routes())
	t.Cleanup(srv.Close)
	return srv, mr
}

func send(t *testing.T, method, url, body string) (int, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env
}

const spiceRoute = `{"name":"Spice Route","email":"owner@spiceroute.test","address":"12 Market St","contact":"555-0107",
	"menuItems":[{"name":"Paneer Tikka","description":"grilled","price":249.5},{"name":"Naan","price":"3"}]}`

func TestCreateAndReadRestaurant_CachesView(t *testing.T) {
	srv, mr := newServer(t)

	code, env := send(t, http.MethodPost, srv.URL+"/restaurants/", spiceRoute)
	require.Equal(t, http.StatusCreated, code)
	var created domain.RestaurantView
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Len(t, created.MenuItems, 2)
	assert.Equal(t, "249.50", created.MenuItems[0].Price)
	assert.Equal(t, "3.00", created.MenuItems[1].Price)
	assert.NotContains(t, string(env.Data), "owner@spiceroute.test")

	code, _ = send(t, http.MethodGet, srv.URL+"/restaurants/1", "")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, mr.Exists("restaurant:1"))
	assert.Equal(t, application.RestaurantTTL, mr.TTL("restaurant:1"))

	code, _ = send(t, http.MethodGet, srv.URL+"/restaurants/", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, application.ListTTL, mr.TTL(application.AllKey))

	code, env = send(t, http.MethodGet, srv.URL+"/restaurants/1/menu", "")
	require.Equal(t, http.StatusOK, code)
	var menu []domain.MenuItemView
	require.NoError(t, json.Unmarshal(env.Data, &menu))
	assert.Len(t, menu, 2)
}

func TestMenuWrites_InvalidateCachedRestaurant(t *testing.T) {
	srv, mr := newServer(t)
	code, _ := send(t, http.MethodPost, srv.URL+"/restaurants/", spiceRoute)
	require.Equal(t, http.StatusCreated, code)
	code, _ = send(t, http.MethodGet, srv.URL+"/restaurants/1", "")
	require.Equal(t, http.StatusOK, code)
	require.True(t, mr.Exists("restaurant:1"))

	code, env := send(t, http.MethodPost, srv.URL+"/menu-item/", `{"name":"Lassi","price":"80.00","restaurantId":1}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Contains(t, string(env.Data), `"price":"80.00"`)
	assert.False(t, mr.Exists("restaurant:1"))

	code, env = send(t, http.MethodGet, srv.URL+"/restaurants/1", "")
	require.Equal(t, http.StatusOK, code)
	var view domain.RestaurantView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Len(t, view.MenuItems, 3)

	code, _ = send(t, http.MethodPut, srv.URL+"/menu-item/4", `{"name":"Sweet Lassi","price":90}`)
	assert.Equal(t, http.StatusAccepted, code)
	assert.False(t, mr.Exists("restaurant:1"))

	code, env = send(t, http.MethodGet, srv.URL+"/menu-item/menu-items/4", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"name":"Sweet Lassi"`)

	code, _ = send(t, http.MethodDelete, srv.URL+"/menu-item/4", "")
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = send(t, http.MethodGet, srv.URL+"/menu-item/menu-items/4", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMenuItem_Rejected(t *testing.T) {
	srv, _ := newServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"no restaurant", `{"name":"Lassi","price":"80"}`, http.StatusBadRequest},
		{"unknown restaurant", `{"name":"Lassi","price":"80","restaurantId":9}`, http.StatusNotFound},
		{"too precise", `{"name":"Lassi","price":"80.005","restaurantId":9}`, http.StatusBadRequest},
		{"negative", `{"name":"Lassi","price":"-1","restaurantId":9}`, http.StatusBadRequest},
		{"not a price", `{"name":"Lassi","price":"abc","restaurantId":9}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := send(t, http.MethodPost, srv.URL+"/menu-item/", tt.body)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestUpdateAndDeleteRestaurant(t *testing.T) {
	srv, mr := newServer(t)
	code, _ := send(t, http.MethodPost, srv.URL+"/restaurants/", spiceRoute)
	require.Equal(t, http.StatusCreated, code)
	code, _ = send(t, http.MethodGet, srv.URL+"/restaurants/", "")
	require.Equal(t, http.StatusOK, code)
	require.True(t, mr.Exists(application.AllKey))

	code, env := send(t, http.MethodPut, srv.URL+"/restaurants/1", `{"name":"Spice Route II","email":"owner@spiceroute.test"}`)
	require.Equal(t, http.StatusOK, code)
	var view domain.RestaurantView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "Spice Route II", view.Name)
	assert.Len(t, view.MenuItems, 2, "omitted menu is left untouched")
	assert.False(t, mr.Exists(application.AllKey))

	code, _ = send(t, http.MethodPut, srv.URL+"/restaurants/1", `{"name":"","email":"owner@spiceroute.test"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = send(t, http.MethodDelete, srv.URL+"/restaurants/1", "")
	assert.Equal(t, http.StatusOK, code)
	code, env = send(t, http.MethodGet, srv.URL+"/restaurants/1", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Restaurant not found with id: 1", env.Message)
	code, _ = send(t, http.MethodGet, srv.URL+"/menu-item/menu-items/2", "")
	assert.Equal(t, http.StatusNotFound, code)
}
