package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
)

const (
	ratingPath                  = "/parcel/de/v2/rating"
	responseBodyReadLimit int64 = 1024
	defaultTimeout              = 4 * time.Second
	defaultMinDays              = 5
	defaultMaxDays              = 10
)

var errAPIKeyRequired = errors.New("carrier api key is required")

// RateRequest describes one parcel to rate.
type RateRequest struct {
	OriginCountry      string
	DestinationCountry string
	WeightKG           decimal.Decimal
	VolumeM3           decimal.Decimal
	ShipAt             time.Time
}

// Rate is the carrier's price and transit estimate for a parcel.
type Rate struct {
	Carrier  string
	Cost     decimal.Decimal
	Currency string
	MinDays  int
	MaxDays  int
}

// Client calls the carrier rating API behind a circuit breaker.
type Client struct {
	name       string
	baseURL    string
	apiKey     string
	account    string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[Rate]
	metrics    *metrics.CarrierMetrics
	logg       *logger.Logger
	now        func() time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMetrics records quote outcomes.
func WithMetrics(m *metrics.CarrierMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger attaches a logger for breaker state changes.
func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		if logg != nil {
			c.logg = logg
		}
	}
}

// NewClient builds the rating client from config.
func NewClient(cfg config.CarrierConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errAPIKeyRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		name:       strings.ToUpper(strings.TrimSpace(cfg.Name)),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		account:    cfg.AccountNumber,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		logg:       logger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	c.breaker = gobreaker.NewCircuitBreaker[Rate](gobreaker.Settings{
		Name:        "carrier-" + strings.ToLower(c.name),
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			ctx := c.logg.WithFields(context.Background(), map[string]any{"breaker": name, "from": from.String(), "to": to.String()})
			c.logg.Warn(ctx, "carrier circuit breaker changed state")
		},
	})
	return c, nil
}

// Name is the carrier identifier delivery options refer to.
func (c *Client) Name() string {
	return c.name
}

// Supports reports whether this client can rate for the named carrier.
func (c *Client) Supports(carrier string) bool {
	return strings.EqualFold(strings.TrimSpace(carrier), c.name)
}

// Rate requests a quote. While the breaker is open it fails fast with a dependency error.
func (c *Client) Rate(ctx context.Context, req RateRequest) (Rate, error) {
	if c == nil {
		return Rate{}, pkgerrors.New(pkgerrors.CodeDependency, "carrier client not configured")
	}
	if req.OriginCountry == "" || req.DestinationCountry == "" {
		return Rate{}, pkgerrors.New(pkgerrors.CodeValidation, "origin and destination countries are required")
	}

	rate, err := c.breaker.Execute(func() (Rate, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return c.fetch(callCtx, req)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.metrics.Inc(c.name, "open")
		return Rate{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "carrier temporarily unavailable")
	case err != nil:
		c.metrics.Inc(c.name, "error")
		return Rate{}, err
	}
	c.metrics.Inc(c.name, "ok")
	return rate, nil
}

type ratingRequest struct {
	PlannedShippingDateAndTime string          `json:"plannedShippingDateAndTime"`
	UnitOfMeasurement          string          `json:"unitOfMeasurement"`
	IsCustomsDeclarable        bool            `json:"isCustomsDeclarable"`
	RequestAllRates            bool            `json:"requestAllRates"`
	Accounts                   []ratingAccount `json:"accounts,omitempty"`
	Shipper                    ratingParty     `json:"shipper"`
	Receiver                   ratingParty     `json:"receiver"`
	Packages                   []ratingPackage `json:"packages"`
}

type ratingAccount struct {
	TypeCode string `json:"typeCode"`
	Number   string `json:"number"`
}

type ratingParty struct {
	PostalAddress struct {
		CountryCode string `json:"countryCode"`
		PostalCode  string `json:"postalCode"`
	} `json:"postalAddress"`
}

type ratingPackage struct {
	Weight     float64 `json:"weight"`
	Dimensions struct {
		Length float64 `json:"length"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	} `json:"dimensions"`
}

type ratingResponse struct {
	Products []struct {
		TotalPrice []struct {
			Price         json.Number `json:"price"`
			PriceCurrency string      `json:"priceCurrency"`
		} `json:"totalPrice"`
		EstimatedDeliveryDate struct {
			MinDays *int `json:"minDays"`
			MaxDays *int `json:"maxDays"`
		} `json:"estimatedDeliveryDate"`
	} `json:"products"`
}

func (c *Client) fetch(ctx context.Context, req RateRequest) (Rate, error) {
	shipAt := req.ShipAt
	if shipAt.IsZero() {
		shipAt = c.now()
	}

	body := ratingRequest{
		PlannedShippingDateAndTime: shipAt.UTC().Format("2006-01-02T15:04:05 GMT+00:00"),
		UnitOfMeasurement:          "metric",
		IsCustomsDeclarable:        true,
		RequestAllRates:            true,
		Packages:                   []ratingPackage{parcel(req.WeightKG, req.VolumeM3)},
	}
	if c.account != "" {
		body.Accounts = []ratingAccount{{TypeCode: "shipper", Number: c.account}}
	}
	body.Shipper.PostalAddress.CountryCode = strings.ToUpper(req.OriginCountry)
	body.Shipper.PostalAddress.PostalCode = "00000"
	body.Receiver.PostalAddress.CountryCode = strings.ToUpper(req.DestinationCountry)
	body.Receiver.PostalAddress.PostalCode = "00000"

	payload, err := json.Marshal(body)
	if err != nil {
		return Rate{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal rating request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ratingPath, bytes.NewReader(payload))
	if err != nil {
		return Rate{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build rating request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Rate{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute rating request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return Rate{}, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "rating request failed")
	}

	var apiResp ratingResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return Rate{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode rating response")
	}
	if len(apiResp.Products) == 0 || len(apiResp.Products[0].TotalPrice) == 0 {
		return Rate{}, pkgerrors.New(pkgerrors.CodeDependency, "carrier returned no rates")
	}

	product := apiResp.Products[0]
	cost, err := decimal.NewFromString(product.TotalPrice[0].Price.String())
	if err != nil {
		return Rate{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse rating price")
	}

	rate := Rate{
		Carrier:  c.name,
		Cost:     cost.Round(2),
		Currency: product.TotalPrice[0].PriceCurrency,
		MinDays:  defaultMinDays,
		MaxDays:  defaultMaxDays,
	}
	if d := product.EstimatedDeliveryDate.MinDays; d != nil {
		rate.MinDays = *d
	}
	if d := product.EstimatedDeliveryDate.MaxDays; d != nil {
		rate.MaxDays = *d
	}
	if rate.MaxDays < rate.MinDays {
		rate.MaxDays = rate.MinDays
	}
	return rate, nil
}

// parcel models the volume as a cube, in centimetres.
func parcel(weight, volume decimal.Decimal) ratingPackage {
	var p ratingPackage
	p.Weight = weight.InexactFloat64()
	side := math.Cbrt(volume.InexactFloat64()) * 100
	side = math.Round(side*100) / 100
	p.Dimensions.Length = side
	p.Dimensions.Width = side
	p.Dimensions.Height = side
	return p
}
