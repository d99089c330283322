package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Pricing      PricingConfig
	Carrier      CarrierConfig
	Geocode      GeocodeConfig
	Transfer     TransferConfig
	Sendgrid     SendgridConfig
	Alerts       AlertsConfig
	Orders       OrdersConfig
	Payouts      PayoutsConfig
	Cron         CronConfig
	Webhooks     WebhooksConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Payouts.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FULFILLMENT_APP_ENV" required:"true"`
	Port         string `envconfig:"FULFILLMENT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"FULFILLMENT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FULFILLMENT_LOG_WARN_STACK" default:"false"`
	// Comma separated.
	CORSOrigins []string `envconfig:"FULFILLMENT_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FULFILLMENT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FULFILLMENT_DB_DSN"`
	Driver string `envconfig:"FULFILLMENT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FULFILLMENT_DB_HOST"`
	LegacyPort     int    `envconfig:"FULFILLMENT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FULFILLMENT_DB_USER"`
	LegacyPassword string `envconfig:"FULFILLMENT_DB_PASSWORD"`
	LegacyName     string `envconfig:"FULFILLMENT_DB_NAME"`
	LegacySSLMode  string `envconfig:"FULFILLMENT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FULFILLMENT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FULFILLMENT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FULFILLMENT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FULFILLMENT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"FULFILLMENT_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FULFILLMENT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FULFILLMENT_REDIS_ADDR"`
	Password     string        `envconfig:"FULFILLMENT_REDIS_PASSWORD"`
	DB           int           `envconfig:"FULFILLMENT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FULFILLMENT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FULFILLMENT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FULFILLMENT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FULFILLMENT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FULFILLMENT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FULFILLMENT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FULFILLMENT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FULFILLMENT_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FULFILLMENT_AUTO_MIGRATE" default:"false"`
	// Disables the per-vendor carrier lookup; international pricing then uses static option costs only.
	DisableCarrierQuotes bool `envconfig:"FULFILLMENT_DISABLE_CARRIER_QUOTES" default:"false"`
}

type EventingConfig struct {
	ConsumerIdempotencyTTL time.Duration `envconfig:"FULFILLMENT_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"FULFILLMENT_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"FULFILLMENT_PUBSUB_ORDERS_TOPIC" default:"fulfillment-orders"`
	OrdersSubscription       string `envconfig:"FULFILLMENT_PUBSUB_ORDERS_SUBSCRIPTION" default:"fulfillment-orders-worker"`
	NotificationTopic        string `envconfig:"FULFILLMENT_PUBSUB_NOTIFICATION_TOPIC" default:"fulfillment-notifications"`
	NotificationSubscription string `envconfig:"FULFILLMENT_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"fulfillment-notifications-worker"`
	PayoutsTopic             string `envconfig:"FULFILLMENT_PUBSUB_PAYOUTS_TOPIC" default:"fulfillment-payouts"`
	PayoutsSubscription      string `envconfig:"FULFILLMENT_PUBSUB_PAYOUTS_SUBSCRIPTION" default:"fulfillment-payouts-notifications"`
	ReceiveMaxOutstanding    int    `envconfig:"FULFILLMENT_PUBSUB_MAX_OUTSTANDING" default:"10"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FULFILLMENT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FULFILLMENT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FULFILLMENT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"FULFILLMENT_OUTBOX_RETENTION_DAYS" default:"14"`
}

// PricingConfig carries the delivery rate card. Rates are decimal strings so money never passes through float64.
type PricingConfig struct {
	BasePrice                  decimal.Decimal `envconfig:"FULFILLMENT_PRICING_BASE_PRICE" default:"13.00"`
	RatePerKM                  decimal.Decimal `envconfig:"FULFILLMENT_PRICING_RATE_PER_KM" default:"2.50"`
	RateConfigured             bool            `envconfig:"FULFILLMENT_PRICING_RATE_CONFIGURED" default:"true"`
	ShortRangeKM               float64         `envconfig:"FULFILLMENT_PRICING_SHORT_RANGE_KM" default:"5"`
	PackagingWeightRate        decimal.Decimal `envconfig:"FULFILLMENT_PRICING_PACKAGING_WEIGHT_RATE" default:"1.0"`
	PackagingVolumeRate        decimal.Decimal `envconfig:"FULFILLMENT_PRICING_PACKAGING_VOLUME_RATE" default:"1.0"`
	ExtraItemSurchargeFraction decimal.Decimal `envconfig:"FULFILLMENT_PRICING_EXTRA_ITEM_SURCHARGE" default:"0.10"`
	InternationalFallbackCost  decimal.Decimal `envconfig:"FULFILLMENT_PRICING_INTERNATIONAL_FALLBACK" default:"50.00"`
	DefaultCountry             string          `envconfig:"FULFILLMENT_PRICING_DEFAULT_COUNTRY" default:"GH"`
	FallbackLatitude           float64         `envconfig:"FULFILLMENT_PRICING_FALLBACK_LAT" default:"5.5600"`
	FallbackLongitude          float64         `envconfig:"FULFILLMENT_PRICING_FALLBACK_LNG" default:"-0.2050"`
	SameDayCutoffHour          int             `envconfig:"FULFILLMENT_PRICING_SAME_DAY_CUTOFF_HOUR" default:"10"`
	QuoteCacheTTL              time.Duration   `envconfig:"FULFILLMENT_PRICING_QUOTE_CACHE_TTL" default:"30m"`
}

func (p PricingConfig) validate() error {
	if p.BasePrice.IsNegative() || p.RatePerKM.IsNegative() {
		return fmt.Errorf("pricing rates must be non-negative")
	}
	if p.ShortRangeKM < 0 {
		return fmt.Errorf("%s must be non-negative", EnvPricingShortRangeKM)
	}
	if p.SameDayCutoffHour < 0 || p.SameDayCutoffHour > 23 {
		return fmt.Errorf("%s must be between 0 and 23", EnvPricingSameDayCutoff)
	}
	return nil
}

type CarrierConfig struct {
	Name          string        `envconfig:"FULFILLMENT_CARRIER_NAME" default:"DHL"`
	BaseURL       string        `envconfig:"FULFILLMENT_CARRIER_BASE_URL" default:"https://api-c.dhl.com"`
	APIKey        string        `envconfig:"FULFILLMENT_CARRIER_API_KEY"`
	AccountNumber string        `envconfig:"FULFILLMENT_CARRIER_ACCOUNT_NUMBER"`
	Timeout       time.Duration `envconfig:"FULFILLMENT_CARRIER_TIMEOUT" default:"4s"`
	// Consecutive failures before the breaker opens.
	BreakerFailures uint32        `envconfig:"FULFILLMENT_CARRIER_BREAKER_FAILURES" default:"5"`
	BreakerCooldown time.Duration `envconfig:"FULFILLMENT_CARRIER_BREAKER_COOLDOWN" default:"30s"`
}

// Enabled reports whether carrier credentials are present.
func (c CarrierConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

type GeocodeConfig struct {
	APIKey  string        `envconfig:"FULFILLMENT_GOOGLE_MAPS_API_KEY"`
	Timeout time.Duration `envconfig:"FULFILLMENT_GEOCODE_TIMEOUT" default:"3s"`
}

type TransferConfig struct {
	SecretKey string        `envconfig:"FULFILLMENT_PAYSTACK_SECRET_KEY"`
	BaseURL   string        `envconfig:"FULFILLMENT_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	Country   string        `envconfig:"FULFILLMENT_PAYSTACK_COUNTRY" default:"ghana"`
	Currency  string        `envconfig:"FULFILLMENT_PAYSTACK_CURRENCY" default:"GHS"`
	Timeout   time.Duration `envconfig:"FULFILLMENT_PAYSTACK_TIMEOUT" default:"10s"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"FULFILLMENT_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"FULFILLMENT_SENDGRID_FROM_EMAIL" default:"no-reply@marketplace.local"`
}

type AlertsConfig struct {
	OperatorEmail string `envconfig:"FULFILLMENT_ALERTS_OPERATOR_EMAIL" default:"ops@marketplace.local"`
}

type OrdersConfig struct {
	MaxAttempts        uint64        `envconfig:"FULFILLMENT_ORDERS_MAX_ATTEMPTS" default:"3"`
	RetryBase          time.Duration `envconfig:"FULFILLMENT_ORDERS_RETRY_BASE" default:"2s"`
	RetryCap           time.Duration `envconfig:"FULFILLMENT_ORDERS_RETRY_CAP" default:"1m"`
	InFlightTTL        time.Duration `envconfig:"FULFILLMENT_ORDERS_INFLIGHT_TTL" default:"2m"`
	NumberMaxAttempts  int           `envconfig:"FULFILLMENT_ORDERS_NUMBER_MAX_ATTEMPTS" default:"5"`
	DashboardURLPrefix string        `envconfig:"FULFILLMENT_ORDERS_DASHBOARD_URL" default:"/vendor/orders"`
}

type PayoutsConfig struct {
	Commission     decimal.Decimal `envconfig:"FULFILLMENT_PAYOUTS_COMMISSION" default:"0.20"`
	MinMatchScore  float64         `envconfig:"FULFILLMENT_PAYOUTS_MIN_MATCH_SCORE" default:"0.75"`
	BankCatalogTTL time.Duration   `envconfig:"FULFILLMENT_PAYOUTS_BANK_CATALOG_TTL" default:"6h"`
	AlertOnFailure bool            `envconfig:"FULFILLMENT_PAYOUTS_ALERT_ON_FAILURE" default:"true"`
	// Attempts per transfer, including the first, for transient provider errors.
	TransferMaxAttempts uint64        `envconfig:"FULFILLMENT_PAYOUTS_TRANSFER_MAX_ATTEMPTS" default:"3"`
	TransferRetryBase   time.Duration `envconfig:"FULFILLMENT_PAYOUTS_TRANSFER_RETRY_BASE" default:"2s"`
}

func (p PayoutsConfig) validate() error {
	if p.Commission.IsNegative() || p.Commission.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be in [0, 1)", EnvPayoutsCommission)
	}
	if p.MinMatchScore <= 0 || p.MinMatchScore > 1 {
		return fmt.Errorf("%s must be in (0, 1]", EnvPayoutsMinMatchScore)
	}
	return nil
}

type CronConfig struct {
	Interval                  time.Duration `envconfig:"FULFILLMENT_CRON_INTERVAL" default:"48h"`
	LockKey                   string        `envconfig:"FULFILLMENT_CRON_LOCK_KEY" default:"ff:cron"`
	LockTTL                   time.Duration `envconfig:"FULFILLMENT_CRON_LOCK_TTL" default:"2h"`
	NotificationRetentionDays int           `envconfig:"FULFILLMENT_CRON_NOTIFICATION_RETENTION_DAYS" default:"90"`
	RunOnce                   bool          `envconfig:"FULFILLMENT_CRON_RUN_ONCE" default:"false"`
}

type WebhooksConfig struct {
	PaymentSecret string `envconfig:"FULFILLMENT_WEBHOOK_PAYMENT_SECRET"`
}

type RateLimitConfig struct {
	Window         time.Duration `envconfig:"FULFILLMENT_RATE_LIMIT_WINDOW" default:"1m"`
	WebhookIPLimit int           `envconfig:"FULFILLMENT_RATE_LIMIT_WEBHOOK_IP" default:"120"`
	QuoteUserLimit int           `envconfig:"FULFILLMENT_RATE_LIMIT_QUOTE_USER" default:"60"`
	QuoteIPLimit   int           `envconfig:"FULFILLMENT_RATE_LIMIT_QUOTE_IP" default:"300"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
