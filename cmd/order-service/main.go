package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	orderapp "github.com/dmehra2102/food-order-events/internal/order/application"
	orderhttp "github.com/dmehra2102/food-order-events/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/food-order-events/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/food-order-events/internal/order/infrastructure/postgres"
	paymentapp "github.com/dmehra2102/food-order-events/internal/payment/application"
	paymenthttp "github.com/dmehra2102/food-order-events/internal/payment/infrastructure/http"
	restaurantapp "github.com/dmehra2102/food-order-events/internal/restaurant/application"
	restauranthttp "github.com/dmehra2102/food-order-events/internal/restaurant/infrastructure/http"
	restaurantpg "github.com/dmehra2102/food-order-events/internal/restaurant/infrastructure/postgres"
	restaurantredis "github.com/dmehra2102/food-order-events/internal/restaurant/infrastructure/redis"
	userapp "github.com/dmehra2102/food-order-events/internal/user/application"
	userhttp "github.com/dmehra2102/food-order-events/internal/user/infrastructure/http"
	userpg "github.com/dmehra2102/food-order-events/internal/user/infrastructure/postgres"
	"github.com/dmehra2102/food-order-events/pkg/config"
	"github.com/dmehra2102/food-order-events/pkg/logging"
	"github.com/dmehra2102/food-order-events/pkg/outbox"
	"github.com/dmehra2102/food-order-events/pkg/postgres"
	"github.com/dmehra2102/food-order-events/pkg/rabbitmq"
	"github.com/dmehra2102/food-order-events/pkg/shutdown"
	"github.com/dmehra2102/food-order-events/pkg/tracing"
)

func main() {
	log := logging.New("order-service")

	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	cfg := config.LoadOrderService()

	flush, err := tracing.Init(ctx, "order-service", cfg.OTelEndpoint)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = flush(context.Background()) }()

	pool, err := postgres.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Error("schema migration failed", "err", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Reads fall back to postgres while redis is down.
		log.Warn("redis unavailable at startup", "addr", cfg.Redis.Addr, "err", err)
	}

	producer, closeProducer, err := newProducer(ctx, log, cfg.Bus, cfg.SubscriberGroup)
	if err != nil {
		log.Error("event bus connect failed", "driver", cfg.Bus.Driver, "err", err)
		os.Exit(1)
	}
	defer closeProducer()

	// Repositories
	users := userpg.NewRepository(log, pool)
	restaurants := restaurantpg.NewRestaurantRepository(log, pool)
	menu := restaurantpg.NewMenuItemRepository(log, pool)
	orders := orderpg.NewRepository(log, pool)
	events := orderpg.NewOutboxPublisher(log, pool, "order-service")

	// Services
	userSvc := userapp.NewService(log, users)
	restaurantSvc := restaurantapp.NewService(log, restaurants, menu, restaurantredis.NewCache(rdb), nil)
	orderSvc := orderapp.NewService(log, orders, userSvc, restaurantSvc, menu, events)
	paymentSvc := paymentapp.NewService(log, orders, events)

	dispatch := outbox.NewDispatcher(log, producer, cfg.Bus.Topic)
	relay := outbox.NewRelay(log, orderpg.NewOutboxStore(log, pool), dispatch, cfg.RelayID)

	// HTTP server
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	orderhttp.NewHandler(log, orderSvc).Register(r)
	paymenthttp.NewHandler(log, paymentSvc).Register(r)
	restauranthttp.NewHandler(log, restaurantSvc).Register(r)
	userhttp.NewHandler(log, userSvc, orderSvc).Register(r)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Run relay
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	// Run HTTP
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "bus", cfg.Bus.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Info("order-service shutdown complete")
}

// newProducer connects the relay to the configured broker.
func newProducer(ctx context.Context, log *slog.Logger, bus config.Bus, subscriber string) (outbox.Producer, func(), error) {
	switch bus.Driver {
	case "kafka":
		w := orderkafka.NewWriter(bus.KafkaAddrs)
		return w, func() { _ = w.Close() }, nil
	case "rabbitmq":
		c, err := rabbitmq.Dial(ctx, log, bus.RabbitMQURL, rabbitmq.NewTopology(bus.Topic, bus.DLQTopic, subscriber))
		if err != nil {
			return nil, nil, err
		}
		return c, func() { _ = c.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown BUS_DRIVER %q", bus.Driver)
}
