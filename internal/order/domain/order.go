package domain

import (
	"time"

	"github.com/dmehra2102/food-order-events/pkg/apperr"
)

// OrderItem is a menu item captured at order time. Price is frozen so later menu
// price changes never alter the order total.
type OrderItem struct {
	MenuItemID int64  `json:"menuItemId"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
}

type Order struct {
	ID           int64       `json:"id"`
	UserID       int64       `json:"userId"`
	RestaurantID int64       `json:"restaurantId"`
	Items        []OrderItem `json:"items"`
	TotalCents   int64       `json:"totalCents"`
	Status       OrderStatus `json:"status"`
	OrderDate    time.Time   `json:"orderDate"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

func NewOrder(userID, restaurantID int64, items []OrderItem, now time.Time) (Order, error) {
	if len(items) == 0 {
		return Order{}, apperr.Validation("order must have at least one item")
	}
	var total int64
	for _, item := range items {
		if item.PriceCents < 0 {
			return Order{}, apperr.Validation("menu item %d has a negative price", item.MenuItemID)
		}
		total += item.PriceCents
	}
	now = now.UTC()
	return Order{
		UserID:       userID,
		RestaurantID: restaurantID,
		Items:        items,
		TotalCents:   total,
		Status:       StatusPlaced,
		OrderDate:    now,
		UpdatedAt:    now,
	}, nil
}

func (o Order) MenuItemIDs() []int64 {
	ids := make([]int64, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.MenuItemID)
	}
	return ids
}

// Transition moves the order to next if the transition table allows it.
func (o *Order) Transition(operation string, next OrderStatus, now time.Time) error {
	if !CanTransition(o.Status, next) {
		return apperr.InvalidState(operation, string(o.Status), "Order cannot be modified at this stage.")
	}
	o.Status = next
	o.UpdatedAt = now.UTC()
	return nil
}

// Override sets the status without consulting the transition table.
func (o *Order) Override(next OrderStatus, now time.Time) {
	o.Status = next
	o.UpdatedAt = now.UTC()
}

// Active is false once the order reached CANCELLED; cancelled orders stay queryable until purged.
func (o Order) Active() bool {
	return o.Status != StatusCancelled
}
