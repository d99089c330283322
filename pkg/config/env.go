package config

const (
	EnvPrefix = "FULFILLMENT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "FULFILLMENT_APP_ENV"
	EnvPort     = "FULFILLMENT_APP_PORT"
	EnvLogLevel = "FULFILLMENT_LOG_LEVEL"

	EnvDBDSN  = "FULFILLMENT_DB_DSN"
	EnvDBHost = "FULFILLMENT_DB_HOST"
	EnvDBUser = "FULFILLMENT_DB_USER"
	EnvDBName = "FULFILLMENT_DB_NAME"

	EnvRedisURL = "FULFILLMENT_REDIS_URL"

	EnvJWTSecret = "FULFILLMENT_JWT_SECRET"
	EnvJWTIssuer = "FULFILLMENT_JWT_ISSUER"

	EnvPricingBasePrice     = "FULFILLMENT_PRICING_BASE_PRICE"
	EnvPricingRatePerKM     = "FULFILLMENT_PRICING_RATE_PER_KM"
	EnvPricingShortRangeKM  = "FULFILLMENT_PRICING_SHORT_RANGE_KM"
	EnvPricingSameDayCutoff = "FULFILLMENT_PRICING_SAME_DAY_CUTOFF_HOUR"

	EnvCarrierAPIKey = "FULFILLMENT_CARRIER_API_KEY"

	EnvPayoutsCommission    = "FULFILLMENT_PAYOUTS_COMMISSION"
	EnvPayoutsMinMatchScore = "FULFILLMENT_PAYOUTS_MIN_MATCH_SCORE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
