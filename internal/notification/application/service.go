package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	orderdomain "github.com/dmehra2102/food-order-events/internal/order/domain"
	restaurantdomain "github.com/dmehra2102/food-order-events/internal/restaurant/domain"
	userdomain "github.com/dmehra2102/food-order-events/internal/user/domain"
	"github.com/dmehra2102/food-order-events/pkg/apperr"
)

// Outcome tells the transport what to do with the delivery.
type Outcome int

const (
	// Ack: handled, duplicate, or unprocessable.
	Ack Outcome = iota
	// DeadLetter: transient failures outlasted the retry budget.
	DeadLetter
	// Requeue: processing was interrupted by shutdown; leave it for redelivery.
	Requeue
)

func (o Outcome) String() string {
	switch o {
	case Ack:
		return "ack"
	case DeadLetter:
		return "dead_letter"
	case Requeue:
		return "requeue"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

type Config struct {
	PublicBaseURL   string
	HandlerTimeout  time.Duration
	RetryMaxWait    time.Duration
	InitialInterval time.Duration
}

type Service struct {
	log         *slog.Logger
	users       UserReader
	restaurants RestaurantReader
	menu        MenuReader
	mailer      Mailer
	dedup       Dedup
	templates   *Templates
	cfg         Config
}

func NewService(log *slog.Logger, users UserReader, restaurants RestaurantReader, menu MenuReader, mailer Mailer, dedup Dedup, cfg Config) (*Service, error) {
	tpl, err := ParseTemplates()
	if err != nil {
		return nil, err
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 30 * time.Second
	}
	if cfg.RetryMaxWait <= 0 {
		cfg.RetryMaxWait = 2 * time.Minute
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	return &Service{
		log:         log,
		users:       users,
		restaurants: restaurants,
		menu:        menu,
		mailer:      mailer,
		dedup:       dedup,
		templates:   tpl,
		cfg:         cfg,
	}, nil
}

func eventKey(eventID string) string { return "notif:event:" + eventID }

func sendKey(eventID, recipient string) string { return "notif:send:" + eventID + ":" + recipient }

// Process handles one raw bus payload and never panics on bad input.
func (s *Service) Process(ctx context.Context, payload []byte) Outcome {
	var ev orderdomain.OrderEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		s.log.ErrorContext(ctx, "malformed order event dropped", "err", err, "payload_bytes", len(payload))
		return Ack
	}
	log := s.log.With("event_id", ev.EventID, "order_id", ev.OrderID, "status", ev.Status)

	if !ev.Status.Known() {
		log.WarnContext(ctx, "unknown order status ignored")
		return Ack
	}

	if ev.EventID != "" {
		seen, err := s.dedup.Has(ctx, eventKey(ev.EventID))
		if err != nil {
			log.WarnContext(ctx, "dedup lookup failed, processing anyway", "err", err)
		}
		if seen {
			log.InfoContext(ctx, "duplicate order event skipped")
			return Ack
		}
	}

	attempt := 0
	op := func() (struct{}, error) {
		attempt++
		actx, cancel := context.WithTimeout(ctx, s.cfg.HandlerTimeout)
		defer cancel()
		err := s.Handle(actx, ev)
		if err != nil && apperr.IsPermanent(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		if err != nil {
			log.WarnContext(ctx, "notification attempt failed", "attempt", attempt, "err", err)
		}
		return struct{}{}, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialInterval
	_, err := backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(s.cfg.RetryMaxWait))
	switch {
	case err == nil:
		if ev.EventID != "" {
			if merr := s.dedup.Mark(ctx, eventKey(ev.EventID)); merr != nil {
				log.WarnContext(ctx, "dedup mark failed", "err", merr)
			}
		}
		log.InfoContext(ctx, "notification processed", "attempts", attempt)
		return Ack
	case apperr.IsPermanent(err):
		log.WarnContext(ctx, "notification aborted", "err", err)
		return Ack
	case ctx.Err() != nil:
		log.WarnContext(ctx, "notification interrupted", "err", err)
		return Requeue
	default:
		log.ErrorContext(ctx, "notification failed, dead-lettering", "attempts", attempt, "err", err)
		return DeadLetter
	}
}

// Handle performs one attempt. Mails already sent for this event are skipped.
func (s *Service) Handle(ctx context.Context, ev orderdomain.OrderEvent) error {
	user, err := s.users.Get(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("resolve user: %w", err)
	}
	restaurant, err := s.restaurants.Get(ctx, ev.RestaurantID)
	if err != nil {
		return fmt.Errorf("resolve restaurant: %w", err)
	}
	data := mailData{
		OrderID:        ev.OrderID,
		UserID:         ev.UserID,
		UserName:       user.Name,
		RestaurantName: restaurant.Name,
	}

	switch ev.Status {
	case orderdomain.EventPlaced:
		if err := s.fillItems(ctx, &data, ev.MenuItemIDs); err != nil {
			return err
		}
		data.AcceptLink = fmt.Sprintf("%s/order/%d/accept", s.cfg.PublicBaseURL, ev.OrderID)
		data.RejectLink = fmt.Sprintf("%s/order/%d/reject", s.cfg.PublicBaseURL, ev.OrderID)
		return s.placed(ctx, ev, user, restaurant, data)
	case orderdomain.EventAccepted:
		if err := s.fillItems(ctx, &data, ev.MenuItemIDs); err != nil {
			return err
		}
		data.PaymentLink = fmt.Sprintf("%s/payments/%d/pay", s.cfg.PublicBaseURL, ev.OrderID)
		return s.send(ctx, ev, user.Email, fmt.Sprintf("Order Accepted - #%d", ev.OrderID), tplUserAccepted, data)
	case orderdomain.EventRejected:
		if err := s.fillItems(ctx, &data, ev.MenuItemIDs); err != nil {
			return err
		}
		return s.send(ctx, ev, user.Email, fmt.Sprintf("Order Rejected - #%d", ev.OrderID), tplUserRejected, data)
	case orderdomain.EventPaymentSuccess:
		return s.send(ctx, ev, user.Email, fmt.Sprintf("Payment Successful - #%d", ev.OrderID), tplUserPayment, data)
	case orderdomain.EventCancelled:
		return s.send(ctx, ev, user.Email, fmt.Sprintf("Order Cancelled - #%d", ev.OrderID), tplUserCancelled, data)
	}
	return apperr.Validation("unknown order status %q", ev.Status)
}

// placed sends both mails concurrently; one failing does not stop the other.
func (s *Service) placed(ctx context.Context, ev orderdomain.OrderEvent, user userdomain.User, restaurant restaurantdomain.Restaurant, data mailData) error {
	var g errgroup.Group
	g.Go(func() error {
		return s.send(ctx, ev, restaurant.Email, fmt.Sprintf("New Order Received - #%d", ev.OrderID), tplRestaurantPlaced, data)
	})
	g.Go(func() error {
		return s.send(ctx, ev, user.Email, fmt.Sprintf("Order PLACED - #%d", ev.OrderID), tplUserPlaced, data)
	})
	return g.Wait()
}

// fillItems resolves line items in event order. Repeated ids count once per
// occurrence so the total matches the stored order.
func (s *Service) fillItems(ctx context.Context, data *mailData, ids []int64) error {
	found, err := s.menu.FindByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("resolve menu items: %w", err)
	}
	byID := make(map[int64]restaurantdomain.MenuItem, len(found))
	for _, m := range found {
		byID[m.ID] = m
	}
	var total int64
	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			s.log.WarnContext(ctx, "menu item missing from notification", "menu_item_id", id)
			continue
		}
		total += m.PriceCents
		data.Items = append(data.Items, lineItem{Name: m.Name, Price: restaurantdomain.FormatPrice(m.PriceCents)})
	}
	data.Total = restaurantdomain.FormatPrice(total)
	return nil
}

func (s *Service) send(ctx context.Context, ev orderdomain.OrderEvent, to, subject, tpl string, data mailData) error {
	key := sendKey(ev.EventID, to)
	if ev.EventID != "" {
		done, err := s.dedup.Has(ctx, key)
		if err != nil {
			s.log.WarnContext(ctx, "dedup lookup failed, sending anyway", "event_id", ev.EventID, "err", err)
		}
		if done {
			s.log.InfoContext(ctx, "mail already sent", "event_id", ev.EventID, "to", to)
			return nil
		}
	}

	body, err := s.templates.Render(tpl, data)
	if err != nil {
		return errors.Join(apperr.ErrValidation, err)
	}
	msgID := ""
	if ev.EventID != "" {
		msgID = ev.EventID + "." + tpl
	}
	if err := s.mailer.Send(ctx, Mail{To: to, Subject: subject, HTML: body, MessageID: msgID}); err != nil {
		return fmt.Errorf("send %s to %s: %w", tpl, to, err)
	}
	s.log.InfoContext(ctx, "mail sent", "event_id", ev.EventID, "order_id", ev.OrderID, "status", ev.Status, "to", to)

	if ev.EventID != "" {
		if err := s.dedup.Mark(ctx, key); err != nil {
			s.log.WarnContext(ctx, "dedup mark failed", "event_id", ev.EventID, "err", err)
		}
	}
	return nil
}
