package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fulfillment-backend/internal/checkout"
	"github.com/angelmondragon/fulfillment-backend/internal/notifications"
	"github.com/angelmondragon/fulfillment-backend/pkg/auth"
	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type memoryCache struct {
	data     map[string]string
	counters map[string]int64
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string]string{}, counters: map[string]int64{}}
}

func (c *memoryCache) Ping(context.Context) error { return nil }

func (c *memoryCache) Get(_ context.Context, key string) (string, error) {
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (c *memoryCache) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	s, _ := value.(string)
	c.data[key] = s
	return true, nil
}

func (c *memoryCache) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (c *memoryCache) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	c.counters[scope]++
	return c.counters[scope] <= limit, c.counters[scope], nil
}

type stubCheckout struct{ selections int }

func (s *stubCheckout) Quote(_ context.Context, input checkout.QuoteInput) (*checkout.Quote, error) {
	return &checkout.Quote{OwnerID: input.OwnerID}, nil
}

func (s *stubCheckout) SelectDeliveryOption(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) error {
	s.selections++
	return nil
}

func (s *stubCheckout) SetDefaultDeliveryOption(context.Context, uuid.UUID, uuid.UUID, *uuid.UUID, uuid.UUID) error {
	return nil
}

type stubNotifications struct{}

func (stubNotifications) List(context.Context, notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{Items: []models.Notification{}}, nil
}

func (stubNotifications) MarkRead(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (stubNotifications) MarkAllRead(context.Context, uuid.UUID) (int64, error) { return 0, nil }

type stubStatus struct{}

func (stubStatus) Transition(_ context.Context, orderID uuid.UUID, next enums.OrderStatus) (*models.Order, error) {
	return &models.Order{ID: orderID, Status: next}, nil
}

type stubJobs struct{}

func (stubJobs) Enqueue(context.Context, string, any) (uuid.UUID, error) { return uuid.New(), nil }

func testConfig() *config.Config {
	return &config.Config{
		App:      config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}},
		JWT:      config.JWTConfig{Secret: "router-secret", Issuer: "fulfillment", ExpirationMinutes: 5},
		Webhooks: config.WebhooksConfig{PaymentSecret: "whsec"},
		RateLimit: config.RateLimitConfig{
			Window:         time.Minute,
			WebhookIPLimit: 2,
			QuoteUserLimit: 1,
			QuoteIPLimit:   100,
		},
	}
}

type testRouter struct {
	handler http.Handler
	cfg     *config.Config
	cart    *stubCheckout
}

func newTestRouter(t *testing.T) testRouter {
	t.Helper()
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	cart := &stubCheckout{}
	h := NewRouter(cfg, logger.Nop(), stubPinger{}, newMemoryCache(), reg, metrics.NewHTTPMetrics(reg), Services{
		Checkout:      cart,
		Notifications: stubNotifications{},
		OrderStatus:   stubStatus{},
		Jobs:          stubJobs{},
	})
	return testRouter{handler: h, cfg: cfg, cart: cart}
}

func (tr testRouter) token(t *testing.T, role enums.ActorRole, vendorID *uuid.UUID) string {
	t.Helper()
	token, err := auth.MintAccessToken(tr.cfg.JWT, time.Now(), auth.AccessTokenPayload{
		UserID:   uuid.New(),
		VendorID: vendorID,
		Role:     role,
	})
	require.NoError(t, err)
	return token
}

func (tr testRouter) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	tr.handler.ServeHTTP(w, req)
	return w
}

func TestRouterHealthAndMetrics(t *testing.T) {
	tr := newTestRouter(t)

	assert.Equal(t, http.StatusOK, tr.do(httptest.NewRequest(http.MethodGet, "/health/live", nil)).Code)
	assert.Equal(t, http.StatusOK, tr.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil)).Code)

	w := tr.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fulfillment_http_request_duration_seconds")
}

func TestRouterRequiresAuthForAPI(t *testing.T) {
	tr := newTestRouter(t)

	w := tr.do(httptest.NewRequest(http.MethodPost, "/api/v1/checkout/quote", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/quote", nil)
	req.Header.Set("Authorization", "Bearer "+tr.token(t, enums.ActorRoleBuyer, nil))
	assert.Equal(t, http.StatusOK, tr.do(req).Code)
}

func TestRouterQuoteRateLimit(t *testing.T) {
	tr := newTestRouter(t)
	token := tr.token(t, enums.ActorRoleBuyer, nil)

	var codes []int
	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/quote", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		codes = append(codes, tr.do(req).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRouterVendorRoutesRequireVendorRole(t *testing.T) {
	tr := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vendor/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+tr.token(t, enums.ActorRoleBuyer, nil))
	assert.Equal(t, http.StatusForbidden, tr.do(req).Code)

	vendorID := uuid.New()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/vendor/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+tr.token(t, enums.ActorRoleVendor, &vendorID))
	assert.Equal(t, http.StatusOK, tr.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/"+uuid.NewString()+"/status", strings.NewReader(`{"status":"processing"}`))
	req.Header.Set("Authorization", "Bearer "+tr.token(t, enums.ActorRoleVendor, &vendorID))
	req.Header.Set("Idempotency-Key", "k1")
	assert.Equal(t, http.StatusForbidden, tr.do(req).Code)
}

func TestRouterIdempotentDeliveryOption(t *testing.T) {
	tr := newTestRouter(t)
	token := tr.token(t, enums.ActorRoleBuyer, nil)
	body := `{"product_id":"` + uuid.NewString() + `","delivery_option_id":"` + uuid.NewString() + `"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/delivery-option", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusBadRequest, tr.do(req).Code)

	for range 2 {
		req = httptest.NewRequest(http.MethodPost, "/api/v1/cart/delivery-option", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "same-key")
		assert.Equal(t, http.StatusOK, tr.do(req).Code)
	}
	assert.Equal(t, 1, tr.cart.selections)
}

func TestRouterWebhookIsPublicAndRateLimited(t *testing.T) {
	tr := newTestRouter(t)

	var codes []int
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", strings.NewReader(`{}`))
		req.Header.Set("X-Paystack-Signature", "00")
		codes = append(codes, tr.do(req).Code)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}
