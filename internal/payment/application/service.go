package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmehra2102/food-order-events/internal/order/domain"
	"github.com/dmehra2102/food-order-events/pkg/apperr"
)

const Confirmation = "Payment started for order"

type Service struct {
	log    *slog.Logger
	orders OrderReader
	pub    PaymentPublisher
	now    func() time.Time
}

func NewService(log *slog.Logger, orders OrderReader, pub PaymentPublisher) *Service {
	return &Service{log: log, orders: orders, pub: pub, now: time.Now}
}

// InitiatePayment is a mock gateway: an ACCEPTED order immediately yields a
// PAYMENT_SUCCESS event. The stored order status is left untouched.
func (s *Service) InitiatePayment(ctx context.Context, orderID int64) (string, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return "", err
	}
	if o.Status != domain.StatusAccepted {
		return "", apperr.InvalidState("initiate payment", string(o.Status), "payment requires accepted order")
	}

	ev := domain.NewOrderEvent(o, domain.EventPaymentSuccess, s.now())
	if err := s.pub.Publish(ctx, ev); err != nil {
		return "", fmt.Errorf("failed to publish payment event: %w", err)
	}
	s.log.Info("payment processed", "order_id", orderID, "event_id", ev.EventID, "amount_cents", o.TotalCents)
	return Confirmation, nil
}
