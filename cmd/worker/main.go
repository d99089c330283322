package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/fulfillment-backend/internal/bootstrap"
	"github.com/angelmondragon/fulfillment-backend/internal/cart"
	"github.com/angelmondragon/fulfillment-backend/internal/ledger"
	"github.com/angelmondragon/fulfillment-backend/internal/notifications"
	"github.com/angelmondragon/fulfillment-backend/internal/orders"
	product "github.com/angelmondragon/fulfillment-backend/internal/products"
	"github.com/angelmondragon/fulfillment-backend/pkg/alert"
	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/db"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/fulfillment-backend/pkg/pubsub"
	"github.com/angelmondragon/fulfillment-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer pubsubClient.Close()

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.ConsumerIdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	engine, err := bootstrap.PricingEngine(cfg, redisClient, prometheus.DefaultRegisterer, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build pricing engine", err)
		os.Exit(1)
	}
	locator, err := bootstrap.Locator(cfg, dbClient.DB(), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build buyer locator", err)
		os.Exit(1)
	}
	mailer, err := bootstrap.Mailer(cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create mailer", err)
		os.Exit(1)
	}
	alerts := bootstrap.Alerts(cfg, mailer, logg)

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	pipeline, err := orders.NewPipeline(orders.PipelineDeps{
		Tx:        dbClient,
		Repo:      orders.NewRepository(dbClient.DB()),
		Catalog:   product.NewRepository(dbClient.DB()),
		Carts:     cart.NewRepository(dbClient.DB()),
		Locator:   locator,
		Engine:    engine,
		Inventory: orders.NewInventory(),
		Ledger:    ledgerService,
		Outbox:    outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Guard:     redisClient,
		Alerts:    alerts,
		Metrics:   metrics.NewPipelineMetrics(prometheus.DefaultRegisterer),
		Config:    cfg.Orders,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order pipeline", err)
		os.Exit(1)
	}

	ordersConsumer, err := orders.NewConsumer(pipeline, pubsubClient.OrdersSubscription(), manager, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders consumer", err)
		os.Exit(1)
	}

	// A nil *alert.Mailer inside the interface would not compare equal to nil.
	var vendorMail interface {
		Send(ctx context.Context, msg alert.Message) error
	}
	if mailer != nil {
		vendorMail = mailer
	}

	notificationsRepo := notifications.NewRepository(dbClient.DB())
	vendorConsumer, err := notifications.NewConsumer(notificationsRepo, vendorMail, pubsubClient.NotificationSubscription(), manager, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification consumer", err)
		os.Exit(1)
	}
	payoutConsumer, err := notifications.NewConsumer(notificationsRepo, vendorMail, pubsubClient.PayoutsSubscription(), manager, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payout notification consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config: cfg,
		Logger: logg,
		Checks: map[string]pinger{
			"database": dbClient.Ping,
			"redis":    redisClient.Ping,
			"pubsub":   pubsubClient.Ping,
		},
		Consumers: map[string]runner{
			"orders":               ordersConsumer,
			"vendor-notifications": vendorConsumer,
			"payout-notifications": payoutConsumer,
		},
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	logg.Info(ctx, "starting worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker exited with error", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "worker shutting down gracefully")
}
