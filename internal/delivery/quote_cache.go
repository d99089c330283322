package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

type quoteStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	QuoteKey(parts ...string) string
}

// CachedQuoter shares carrier quotes across requests through Redis. Cache
// failures are logged and bypassed.
//
// Entries are keyed by every quoted input: carrier, both countries, weight and
// volume. Editing a product's weight or volume, or switching an option to
// another carrier, therefore lands on a new key and never reads a stale quote.
// Carrier-side rate changes are bounded by the TTL.
type CachedQuoter struct {
	next  CarrierQuoter
	store quoteStore
	ttl   time.Duration
	logg  *logger.Logger
}

func NewCachedQuoter(next CarrierQuoter, store quoteStore, ttl time.Duration, logg *logger.Logger) *CachedQuoter {
	if logg == nil {
		logg = logger.Nop()
	}
	return &CachedQuoter{next: next, store: store, ttl: ttl, logg: logg}
}

func (c *CachedQuoter) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	key := c.key(req)

	raw, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var cached Quote
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
			return cached, nil
		}
		c.logg.Warn(c.logg.WithField(ctx, "key", key), "discarding unreadable cached quote")
	case !errors.Is(err, redis.Nil):
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "quote cache read failed")
	}

	quote, err := c.next.Quote(ctx, req)
	if err != nil {
		return Quote{}, err
	}

	payload, err := json.Marshal(quote)
	if err == nil {
		err = c.store.Set(ctx, key, payload, c.ttl)
	}
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "quote cache write failed")
	}
	return quote, nil
}

// Invalidate drops the cached quote for req ahead of its TTL, for a carrier
// rate change that must apply immediately.
func (c *CachedQuoter) Invalidate(ctx context.Context, req QuoteRequest) error {
	return c.store.Del(ctx, c.key(req))
}

func (c *CachedQuoter) key(req QuoteRequest) string {
	return c.store.QuoteKey(
		strings.ToLower(strings.TrimSpace(req.Carrier)),
		strings.ToUpper(req.OriginCountry),
		strings.ToUpper(req.DestinationCountry),
		req.WeightKG.StringFixed(3),
		req.VolumeM3.StringFixed(4),
	)
}
