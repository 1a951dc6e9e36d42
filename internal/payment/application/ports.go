package application

import (
	"context"

	"github.com/dmehra2102/food-order-events/internal/order/domain"
)

type OrderReader interface {
	Get(ctx context.Context, id int64) (domain.Order, error)
}

type PaymentPublisher interface {
	Publish(ctx context.Context, ev domain.OrderEvent) error
}
