package delivery

import (
	"context"
	"time"

	"github.com/angelmondragon/fulfillment-backend/pkg/carrier"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
)

// CarrierRates is the slice of the carrier client the pricing engine needs.
type CarrierRates interface {
	Supports(carrier string) bool
	Rate(ctx context.Context, req carrier.RateRequest) (carrier.Rate, error)
}

// RatingQuoter adapts a carrier rating client to CarrierQuoter.
type RatingQuoter struct {
	rates CarrierRates
	now   func() time.Time
}

func NewRatingQuoter(rates CarrierRates) *RatingQuoter {
	return &RatingQuoter{rates: rates, now: time.Now}
}

func (q *RatingQuoter) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	if q == nil || q.rates == nil {
		return Quote{}, pkgerrors.New(pkgerrors.CodeDependency, "carrier quotes disabled")
	}
	if !q.rates.Supports(req.Carrier) {
		return Quote{}, pkgerrors.New(pkgerrors.CodeDependency, "no rating client for carrier "+req.Carrier)
	}

	rate, err := q.rates.Rate(ctx, carrier.RateRequest{
		OriginCountry:      req.OriginCountry,
		DestinationCountry: req.DestinationCountry,
		WeightKG:           req.WeightKG,
		VolumeM3:           req.VolumeM3,
		ShipAt:             q.now(),
	})
	if err != nil {
		return Quote{}, err
	}
	return Quote{Carrier: rate.Carrier, Cost: rate.Cost, MinDays: rate.MinDays, MaxDays: rate.MaxDays}, nil
}
