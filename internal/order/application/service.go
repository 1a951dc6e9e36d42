package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmehra2102/food-order-events/internal/order/domain"
	"github.com/dmehra2102/food-order-events/pkg/apperr"
)

type Service struct {
	log         *slog.Logger
	orders      OrderRepository
	users       UserDirectory
	restaurants RestaurantDirectory
	menu        MenuCatalog
	publisher   EventPublisher
	now         func() time.Time
}

func NewService(log *slog.Logger, orders OrderRepository, users UserDirectory, restaurants RestaurantDirectory, menu MenuCatalog, publisher EventPublisher) *Service {
	return &Service{
		log:         log,
		orders:      orders,
		users:       users,
		restaurants: restaurants,
		menu:        menu,
		publisher:   publisher,
		now:         time.Now,
	}
}

// PlaceOrder validates the referenced user, restaurant and menu items, persists a
// PLACED order and then publishes its event. A failed publish does not undo the order.
func (s *Service) PlaceOrder(ctx context.Context, userID, restaurantID int64, menuItemIDs []int64) (domain.Order, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return domain.Order{}, err
	}
	if err := s.requireRestaurant(ctx, restaurantID); err != nil {
		return domain.Order{}, err
	}

	items, err := s.resolveItems(ctx, menuItemIDs)
	if err != nil {
		return domain.Order{}, err
	}

	o, err := domain.NewOrder(userID, restaurantID, items, s.now())
	if err != nil {
		return domain.Order{}, err
	}
	saved, err := s.orders.Insert(ctx, o)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to save order: %w", err)
	}
	s.log.Info("order placed", "order_id", saved.ID, "user_id", userID, "restaurant_id", restaurantID, "total_cents", saved.TotalCents)

	s.publish(ctx, saved, domain.EventPlaced)
	return saved, nil
}

// resolveItems keeps request order and multiplicity. Unknown ids are dropped; if
// nothing resolves the whole request fails.
func (s *Service) resolveItems(ctx context.Context, ids []int64) ([]domain.OrderItem, error) {
	if len(ids) == 0 {
		return nil, apperr.NotFound(apperr.KindMenuItem, ids)
	}
	found, err := s.menu.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu items: %w", err)
	}
	byID := make(map[int64]domain.OrderItem, len(found))
	for _, m := range found {
		byID[m.ID] = domain.OrderItem{MenuItemID: m.ID, Name: m.Name, PriceCents: m.PriceCents}
	}

	items := make([]domain.OrderItem, 0, len(ids))
	var missing []int64
	for _, id := range ids {
		item, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, apperr.NotFound(apperr.KindMenuItem, missing)
	}
	if len(missing) > 0 {
		s.log.Warn("unknown menu items dropped from order", "menu_item_ids", missing)
	}
	return items, nil
}

func (s *Service) AcceptOrder(ctx context.Context, id int64) (domain.Order, error) {
	return s.UpdateStatusForRestaurant(ctx, id, domain.StatusAccepted)
}

func (s *Service) RejectOrder(ctx context.Context, id int64) (domain.Order, error) {
	return s.UpdateStatusForRestaurant(ctx, id, domain.StatusRejected)
}

// UpdateStatusForRestaurant is the restaurant entry point; only ACCEPTED and REJECTED
// may be requested and the order must still be PLACED.
func (s *Service) UpdateStatusForRestaurant(ctx context.Context, id int64, next domain.OrderStatus) (domain.Order, error) {
	var ev domain.EventStatus
	switch next {
	case domain.StatusAccepted:
		ev = domain.EventAccepted
	case domain.StatusRejected:
		ev = domain.EventRejected
	default:
		return domain.Order{}, apperr.Validation("restaurants may only accept or reject orders, got %s", next)
	}
	return s.transition(ctx, id, "restaurant "+string(next), next, ev)
}

// CancelOrder marks a PLACED order CANCELLED. The record is retained.
func (s *Service) CancelOrder(ctx context.Context, id int64) (domain.Order, error) {
	return s.transition(ctx, id, "cancel order", domain.StatusCancelled, domain.EventCancelled)
}

func (s *Service) transition(ctx context.Context, id int64, operation string, next domain.OrderStatus, ev domain.EventStatus) (domain.Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	current := o.Status
	now := s.now()
	if err := o.Transition(operation, next, now); err != nil {
		return domain.Order{}, err
	}
	if err := s.orders.UpdateStatus(ctx, id, current, next, now); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			// Someone else moved the order first; report against what is stored now.
			latest, getErr := s.orders.Get(ctx, id)
			if getErr != nil {
				return domain.Order{}, getErr
			}
			return domain.Order{}, apperr.InvalidState(operation, string(latest.Status), "Order cannot be modified at this stage.")
		}
		return domain.Order{}, fmt.Errorf("failed to update order status: %w", err)
	}
	s.log.Info("order status changed", "order_id", id, "from", current, "to", next)

	s.publish(ctx, o, ev)
	return o, nil
}

// OverrideStatus writes any known status without consulting the transition table.
// It exists for administrative corrections and publishes nothing.
func (s *Service) OverrideStatus(ctx context.Context, id int64, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, apperr.Validation("unknown order status %q", status)
	}
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	previous := o.Status
	now := s.now()
	o.Override(status, now)
	if err := s.orders.SetStatus(ctx, id, status, now); err != nil {
		return domain.Order{}, fmt.Errorf("failed to override order status: %w", err)
	}
	s.log.Warn("order status overridden", "override", true, "order_id", id, "from", previous, "to", status)
	return o, nil
}

// PurgeOrder hard-deletes a cancelled order. Active orders cannot be purged.
func (s *Service) PurgeOrder(ctx context.Context, id int64) error {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return err
	}
	if o.Active() {
		return apperr.InvalidState("purge order", string(o.Status), "only cancelled orders can be purged")
	}
	if err := s.orders.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to purge order: %w", err)
	}
	s.log.Info("order purged", "order_id", id)
	return nil
}

func (s *Service) GetOrderDetails(ctx context.Context, id int64) (domain.Order, error) {
	return s.orders.Get(ctx, id)
}

func (s *Service) GetOrderStatus(ctx context.Context, id int64) (domain.OrderStatus, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return o.Status, nil
}

func (s *Service) GetOrdersByRestaurant(ctx context.Context, restaurantID int64) ([]domain.Order, error) {
	if err := s.requireRestaurant(ctx, restaurantID); err != nil {
		return nil, err
	}
	return s.orders.ListByRestaurant(ctx, restaurantID)
}

func (s *Service) GetUserOrders(ctx context.Context, userID int64) ([]domain.Order, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.orders.ListByUser(ctx, userID)
}

func (s *Service) requireUser(ctx context.Context, id int64) error {
	ok, err := s.users.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !ok {
		return apperr.NotFound(apperr.KindUser, id)
	}
	return nil
}

func (s *Service) requireRestaurant(ctx context.Context, id int64) error {
	ok, err := s.restaurants.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check restaurant: %w", err)
	}
	if !ok {
		return apperr.NotFound(apperr.KindRestaurant, id)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, o domain.Order, status domain.EventStatus) {
	ev := domain.NewOrderEvent(o, status, s.now())
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Error("order event publish failed", "order_id", o.ID, "event_id", ev.EventID, "status", status, "err", err)
		return
	}
	s.log.Info("order event published", "order_id", o.ID, "event_id", ev.EventID, "status", status)
}
