package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/fulfillment-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/fulfillment-backend/api/controllers/webhooks"
	"github.com/angelmondragon/fulfillment-backend/api/middleware"
	"github.com/angelmondragon/fulfillment-backend/internal/checkout"
	"github.com/angelmondragon/fulfillment-backend/internal/notifications"
	"github.com/angelmondragon/fulfillment-backend/internal/orders"
	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/db"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
)

// Cache is the redis surface the HTTP layer needs: readiness, idempotent
// replay and rate limiting.
type Cache interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type jobEnqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload any) (uuid.UUID, error)
}

// Services are the domain handlers mounted by the router.
type Services struct {
	Checkout      checkout.Service
	Notifications notifications.Service
	OrderStatus   orders.StatusService
	Jobs          jobEnqueuer
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	cache Cache,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	webhookPolicy := middleware.NewRateLimitPolicy("webhook", cfg.RateLimit.Window, cfg.RateLimit.WebhookIPLimit, 0)
	quotePolicy := middleware.NewRateLimitPolicy("quote", cfg.RateLimit.Window, cfg.RateLimit.QuoteIPLimit, cfg.RateLimit.QuoteUserLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, cache))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Use(middleware.RateLimit(webhookPolicy, cache, logg))
		r.Post("/payments", webhookcontrollers.PaymentWebhook(cfg.Webhooks.PaymentSecret, svc.Jobs, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(cache, logg))

		r.With(middleware.RateLimit(quotePolicy, cache, logg)).Post("/checkout/quote", controllers.CheckoutQuote(svc.Checkout, logg))
		r.Post("/cart/delivery-option", controllers.CartDeliveryOption(svc.Checkout, logg))

		r.Route("/vendor", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleVendor, enums.ActorRoleAdmin))
			r.Use(middleware.VendorContext(logg))
			r.Put("/products/{productId}/default-delivery-option", controllers.VendorDefaultDeliveryOption(svc.Checkout, logg))
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(svc.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svc.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(svc.Notifications, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))
			r.Post("/orders/{orderId}/status", controllers.AdminOrderStatus(svc.OrderStatus, logg))
		})
	})

	return r
}
