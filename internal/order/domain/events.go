package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus is the status vocabulary carried on the bus. PAYMENT_SUCCESS is a
// notification trigger and does not imply a stored status change.
type EventStatus string

const (
	EventPlaced         EventStatus = "PLACED"
	EventAccepted       EventStatus = "ACCEPTED"
	EventRejected       EventStatus = "REJECTED"
	EventPaymentSuccess EventStatus = "PAYMENT_SUCCESS"
	EventCancelled      EventStatus = "CANCELLED"
)

func (s EventStatus) Known() bool {
	switch s {
	case EventPlaced, EventAccepted, EventRejected, EventPaymentSuccess, EventCancelled:
		return true
	}
	return false
}

const EventTypeOrderStatusChanged = "OrderStatusChanged"

type OrderEvent struct {
	EventID      string      `json:"eventId"`
	OrderID      int64       `json:"orderId"`
	UserID       int64       `json:"userId"`
	RestaurantID int64       `json:"restaurantId"`
	MenuItemIDs  []int64     `json:"menuItemIds"`
	Status       EventStatus `json:"status"`
	OccurredAt   time.Time   `json:"occurredAt"`
}

func NewOrderEvent(o Order, status EventStatus, now time.Time) OrderEvent {
	return OrderEvent{
		EventID:      uuid.NewString(),
		OrderID:      o.ID,
		UserID:       o.UserID,
		RestaurantID: o.RestaurantID,
		MenuItemIDs:  o.MenuItemIDs(),
		Status:       status,
		OccurredAt:   now.UTC(),
	}
}
