package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dmehra2102/food-order-events/internal/order/domain"
	restaurantdomain "github.com/dmehra2102/food-order-events/internal/restaurant/domain"
	"github.com/dmehra2102/food-order-events/pkg/apperr"
)

type memOrders struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]domain.Order
	// beforeUpdate lets a test change the stored row between Get and UpdateStatus.
	beforeUpdate func(rows map[int64]domain.Order)
}

func newMemOrders(seed ...domain.Order) *memOrders {
	m := &memOrders{nextID: 100, rows: map[int64]domain.Order{}}
	for _, o := range seed {
		m.rows[o.ID] = o
	}
	return m
}

func (m *memOrders) Insert(_ context.Context, o domain.Order) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	o.ID = m.nextID
	m.rows[o.ID] = o
	return o, nil
}

func (m *memOrders) Get(_ context.Context, id int64) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.rows[id]
	if !ok {
		return domain.Order{}, apperr.NotFound(apperr.KindOrder, id)
	}
	return o, nil
}

func (m *memOrders) list(match func(domain.Order) bool) []domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.rows {
		if match(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memOrders) ListByRestaurant(_ context.Context, id int64) ([]domain.Order, error) {
	return m.list(func(o domain.Order) bool { return o.RestaurantID == id }), nil
}

func (m *memOrders) ListByUser(_ context.Context, id int64) ([]domain.Order, error) {
	return m.list(func(o domain.Order) bool { return o.UserID == id }), nil
}

func (m *memOrders) UpdateStatus(_ context.Context, id int64, expected, next domain.OrderStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beforeUpdate != nil {
		m.beforeUpdate(m.rows)
	}
	o, ok := m.rows[id]
	if !ok {
		return apperr.NotFound(apperr.KindOrder, id)
	}
	if o.Status != expected {
		return apperr.ErrConflict
	}
	o.Status = next
	o.UpdatedAt = at
	m.rows[id] = o
	return nil
}

func (m *memOrders) SetStatus(_ context.Context, id int64, next domain.OrderStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.rows[id]
	if !ok {
		return apperr.NotFound(apperr.KindOrder, id)
	}
	o.Status = next
	o.UpdatedAt = at
	m.rows[id] = o
	return nil
}

func (m *memOrders) Exists(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	return ok, nil
}

func (m *memOrders) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

type idSet map[int64]bool

func (s idSet) Exists(_ context.Context, id int64) (bool, error) { return s[id], nil }

type memMenu map[int64]restaurantdomain.MenuItem

func (m memMenu) FindByIDs(_ context.Context, ids []int64) ([]restaurantdomain.MenuItem, error) {
	seen := map[int64]bool{}
	var out []restaurantdomain.MenuItem
	for _, id := range ids {
		if item, ok := m[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, item)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Events() []domain.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.OrderEvent(nil), p.events...)
}

var errBrokerDown = errors.New("broker down")
