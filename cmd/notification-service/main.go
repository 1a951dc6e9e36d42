package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/food-order-events/internal/notification/application"
	notifygrpc "github.com/dmehra2102/food-order-events/internal/notification/infrastructure/grpc"
	notifykafka "github.com/dmehra2102/food-order-events/internal/notification/infrastructure/kafka"
	"github.com/dmehra2102/food-order-events/internal/notification/infrastructure/mail"
	notifyrabbit "github.com/dmehra2102/food-order-events/internal/notification/infrastructure/rabbitmq"
	restaurantpg "github.com/dmehra2102/food-order-events/internal/restaurant/infrastructure/postgres"
	userpg "github.com/dmehra2102/food-order-events/internal/user/infrastructure/postgres"
	"github.com/dmehra2102/food-order-events/pkg/config"
	"github.com/dmehra2102/food-order-events/pkg/idempotency"
	"github.com/dmehra2102/food-order-events/pkg/logging"
	"github.com/dmehra2102/food-order-events/pkg/postgres"
	"github.com/dmehra2102/food-order-events/pkg/rabbitmq"
	"github.com/dmehra2102/food-order-events/pkg/shutdown"
	"github.com/dmehra2102/food-order-events/pkg/tracing"
)

type runner interface {
	Run(ctx context.Context) error
}

func main() {
	exitCode := 0
	// Registered first so it runs after every other deferred cleanup.
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	log := logging.New("notification-service")
	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	cfg := config.LoadNotificationService()

	flush, err := tracing.Init(ctx, "notification-service", cfg.OTelEndpoint)
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

	dedup, closeDedup := newDedup(ctx, log, cfg)
	defer closeDedup()

	mailer, err := newMailer(log, cfg.SMTP)
	if err != nil {
		log.Error("mailer init failed", "err", err)
		os.Exit(1)
	}

	svc, err := application.NewService(log,
		userpg.NewRepository(log, pool),
		restaurantpg.NewRestaurantRepository(log, pool),
		restaurantpg.NewMenuItemRepository(log, pool),
		mailer, dedup,
		application.Config{
			PublicBaseURL:  cfg.PublicBaseURL,
			HandlerTimeout: cfg.HandlerTimeout,
			RetryMaxWait:   cfg.RetryMaxWait,
		},
	)
	if err != nil {
		log.Error("notification service init failed", "err", err)
		os.Exit(1)
	}

	consumer, closeConsumer, err := newConsumer(ctx, log, cfg.Bus, svc)
	if err != nil {
		log.Error("event bus connect failed", "driver", cfg.Bus.Driver, "err", err)
		os.Exit(1)
	}
	defer closeConsumer()

	// gRPC health server
	health := notifygrpc.NewHealth()
	gs, err := notifygrpc.Run(cfg.GRPCAddr, health)
	if err != nil {
		log.Error("grpc server failed", "err", err)
		os.Exit(1)
	}
	defer gs.GracefulStop()

	log.Info("consuming order events", "driver", cfg.Bus.Driver, "topic", cfg.Bus.Topic, "group", cfg.Bus.GroupID, "grpc", cfg.GRPCAddr)
	consumerDone := consume(ctx, cancel, consumer, health)

	<-ctx.Done()
	if err := <-consumerDone; err != nil {
		log.Error("consumer stopped", "err", err)
		exitCode = 1
	}
	log.Info("notification-service shutdown")
}

// consume runs the consumer in the background. When it returns the service
// reports NOT_SERVING and ctx is cancelled; its error arrives on the channel.
func consume(ctx context.Context, cancel context.CancelFunc, consumer runner, health *notifygrpc.Health) <-chan error {
	done := make(chan error, 1)
	go func() {
		health.Serving()
		err := consumer.Run(ctx)
		health.Stopping()
		cancel()
		done <- err
	}()
	return done
}

func newDedup(ctx context.Context, log *slog.Logger, cfg config.NotificationService) (application.Dedup, func()) {
	if cfg.DedupBackend == "memory" {
		return idempotency.NewMemoryStore(100_000, cfg.DedupTTL), func() {}
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable at startup, duplicates possible until it recovers", "addr", cfg.Redis.Addr, "err", err)
	}
	return idempotency.NewRedisStore(rdb, cfg.DedupTTL), func() { _ = rdb.Close() }
}

func newMailer(log *slog.Logger, cfg config.SMTP) (application.Mailer, error) {
	if cfg.Host == "" {
		log.Warn("SMTP_HOST empty, mails are logged only")
		return mail.NewLogSender(log), nil
	}
	return mail.NewSMTPSender(log, mail.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		From:     cfg.From,
	})
}

func newConsumer(ctx context.Context, log *slog.Logger, bus config.Bus, svc *application.Service) (runner, func(), error) {
	switch bus.Driver {
	case "kafka":
		return notifykafka.NewConsumer(log, bus.KafkaAddrs, bus.Topic, bus.DLQTopic, bus.GroupID, svc), func() {}, nil
	case "rabbitmq":
		client, err := rabbitmq.Dial(ctx, log, bus.RabbitMQURL, rabbitmq.NewTopology(bus.Topic, bus.DLQTopic, bus.GroupID))
		if err != nil {
			return nil, nil, err
		}
		return notifyrabbit.NewConsumer(log, client, 16, svc), func() { _ = client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown BUS_DRIVER %q", bus.Driver)
}
