// Package bootstrap builds the collaborators shared by the api and worker binaries.
package bootstrap

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/address"
	"github.com/angelmondragon/fulfillment-backend/internal/delivery"
	"github.com/angelmondragon/fulfillment-backend/pkg/alert"
	"github.com/angelmondragon/fulfillment-backend/pkg/carrier"
	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/geocode"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
	"github.com/angelmondragon/fulfillment-backend/pkg/redis"
)

// PricingEngine wires the carrier rating client behind the redis quote cache.
// Without carrier credentials, or with carrier quotes disabled, international
// options are priced from their static cost.
func PricingEngine(cfg *config.Config, cache *redis.Client, reg prometheus.Registerer, logg *logger.Logger) (*delivery.Engine, error) {
	if cfg.FeatureFlags.DisableCarrierQuotes || !cfg.Carrier.Enabled() {
		logg.Warn(context.Background(), "carrier quotes disabled; using static international costs")
		return delivery.NewEngine(cfg.Pricing, nil, logg), nil
	}

	client, err := carrier.NewClient(cfg.Carrier,
		carrier.WithLogger(logg),
		carrier.WithMetrics(metrics.NewCarrierMetrics(reg)),
	)
	if err != nil {
		return nil, err
	}

	var quoter delivery.CarrierQuoter = delivery.NewRatingQuoter(client)
	if cache != nil && cfg.Pricing.QuoteCacheTTL > 0 {
		quoter = delivery.NewCachedQuoter(quoter, cache, cfg.Pricing.QuoteCacheTTL, logg)
	}
	return delivery.NewEngine(cfg.Pricing, quoter, logg), nil
}

// Locator builds the buyer location service. Geocoding is skipped when no
// API key is configured.
func Locator(cfg *config.Config, db *gorm.DB, logg *logger.Logger) (address.Service, error) {
	var geocoder address.Geocoder
	client, err := geocode.NewClient(cfg.Geocode)
	switch {
	case err == nil:
		geocoder = client
	case cfg.Geocode.APIKey == "":
		logg.Warn(context.Background(), "geocoding disabled; addresses without coordinates use fallbacks")
	default:
		return nil, err
	}
	return address.NewService(address.NewRepository(db), geocoder, cfg.Pricing, logg)
}

// Mailer returns the SendGrid mailer, or nil when no API key is configured.
func Mailer(cfg *config.Config, logg *logger.Logger) (*alert.Mailer, error) {
	mailer, err := alert.NewMailer(cfg.Sendgrid, logg)
	if err != nil {
		if cfg.Sendgrid.APIKey == "" {
			logg.Warn(context.Background(), "sendgrid not configured; emails disabled")
			return nil, nil
		}
		return nil, err
	}
	return mailer, nil
}

// Alerts mails the operator when a mailer exists and logs otherwise.
func Alerts(cfg *config.Config, mailer *alert.Mailer, logg *logger.Logger) alert.Notifier {
	if mailer == nil || cfg.Alerts.OperatorEmail == "" {
		return alert.NewLogNotifier(logg)
	}
	return alert.NewEmailNotifier(mailer, cfg.Alerts.OperatorEmail)
}
