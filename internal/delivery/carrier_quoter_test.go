package delivery

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fulfillment-backend/pkg/carrier"
)

type fakeRates struct {
	name string
	rate carrier.Rate
	got  []carrier.RateRequest
}

func (f *fakeRates) Supports(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), f.name)
}

func (f *fakeRates) Rate(_ context.Context, req carrier.RateRequest) (carrier.Rate, error) {
	f.got = append(f.got, req)
	return f.rate, nil
}

func TestCarrierQuoterMapsRates(t *testing.T) {
	rates := &fakeRates{name: "DHL", rate: carrier.Rate{Carrier: "DHL", Cost: dec("61.40"), MinDays: 4, MaxDays: 8}}
	quoter := NewRatingQuoter(rates)

	quote, err := quoter.Quote(context.Background(), quoteRequest())
	require.NoError(t, err)

	assert.Equal(t, "DHL", quote.Carrier)
	assert.True(t, quote.Cost.Equal(dec("61.40")))
	assert.Equal(t, &Override{MinDays: 4, MaxDays: 8}, quote.Override())
	require.Len(t, rates.got, 1)
	assert.Equal(t, "ng", rates.got[0].OriginCountry)
	assert.False(t, rates.got[0].ShipAt.IsZero())
}

func TestCarrierQuoterRejectsUnknownCarrier(t *testing.T) {
	rates := &fakeRates{name: "DHL"}
	quoter := NewRatingQuoter(rates)

	req := quoteRequest()
	req.Carrier = "FedEx"
	_, err := quoter.Quote(context.Background(), req)
	require.Error(t, err)
	assert.Empty(t, rates.got)
}
