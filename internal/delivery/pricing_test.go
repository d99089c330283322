package delivery

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

type stubQuoter struct {
	quote Quote
	err   error
	calls int
	last  QuoteRequest
}

func (s *stubQuoter) Quote(_ context.Context, req QuoteRequest) (Quote, error) {
	s.calls++
	s.last = req
	return s.quote, s.err
}

func testPricingConfig() config.PricingConfig {
	return config.PricingConfig{
		BasePrice:                  decimal.RequireFromString("13"),
		RatePerKM:                  decimal.RequireFromString("2.50"),
		RateConfigured:             true,
		ShortRangeKM:               5,
		PackagingWeightRate:        decimal.RequireFromString("1.0"),
		PackagingVolumeRate:        decimal.RequireFromString("1.0"),
		ExtraItemSurchargeFraction: decimal.RequireFromString("0.10"),
		InternationalFallbackCost:  decimal.RequireFromString("50.00"),
		DefaultCountry:             "GH",
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func localOption(cost string) *models.DeliveryOption {
	return &models.DeliveryOption{ID: uuid.New(), Name: "Standard", Scope: enums.DeliveryScopeLocal, MinDays: 1, MaxDays: 3, Cost: dec(cost)}
}

func intlOption(cost string, carrier string) *models.DeliveryOption {
	opt := &models.DeliveryOption{ID: uuid.New(), Name: "Express", Scope: enums.DeliveryScopeInternational, MinDays: 5, MaxDays: 10, Cost: dec(cost)}
	if carrier != "" {
		opt.Carrier = &carrier
	}
	return opt
}

func accra() *Coordinates { return &Coordinates{Latitude: 5.61, Longitude: -0.19} }

func localItem(vendorID uuid.UUID, opt *models.DeliveryOption) LineItem {
	return LineItem{
		ProductID:     uuid.New(),
		VendorID:      vendorID,
		VendorCountry: "GH",
		VendorCoords:  &Coordinates{Latitude: 5.60, Longitude: -0.20},
		Quantity:      1,
		WeightKG:      decimal.Zero,
		VolumeM3:      decimal.Zero,
		Option:        opt,
	}
}

func TestHaversineKM(t *testing.T) {
	a := Coordinates{Latitude: 5.60, Longitude: -0.20}
	b := Coordinates{Latitude: 5.61, Longitude: -0.19}

	assert.InDelta(t, 0, HaversineKM(a, a), 1e-9)
	assert.InDelta(t, HaversineKM(a, b), HaversineKM(b, a), 1e-9)
	assert.Less(t, HaversineKM(a, b), 5.0)
	assert.InDelta(t, 111.19, HaversineKM(Coordinates{0, 0}, Coordinates{1, 0}), 0.01)
}

func TestComputeShortRangeLocal(t *testing.T) {
	engine := NewEngine(testPricingConfig(), nil, nil)
	vendorID := uuid.New()

	res := engine.Compute(context.Background(), []LineItem{localItem(vendorID, localOption("10"))}, Destination{CountryCode: "GH", Coords: accra()})

	assert.True(t, res.DeliveryTotal.Equal(dec("23")), "got %s", res.DeliveryTotal)
	assert.True(t, res.Total.Equal(dec("23")))
	assert.True(t, res.VendorFees[vendorID].Equal(dec("23")))
	assert.Empty(t, res.InvalidItems)
	assert.Empty(t, res.DynamicQuotes)
	assert.False(t, res.CoordinatesMissing)
}

func TestLocalFeeBands(t *testing.T) {
	engine := NewEngine(testPricingConfig(), nil, nil)
	cost := dec("10")

	for _, d := range []float64{0, 0.5, 2.2, 4.99, 5} {
		assert.True(t, engine.LocalFee(d, cost).Equal(dec("23")), "distance %v", d)
	}

	assert.True(t, engine.LocalFee(12, cost).Equal(dec("27.50")))

	prev := engine.LocalFee(5.01, cost)
	for d := 5.5; d < 200; d += 0.5 {
		next := engine.LocalFee(d, cost)
		require.True(t, next.GreaterThan(prev), "fee must grow with distance at %v", d)
		prev = next
	}
}

func TestLocalFeeWithoutRateRecord(t *testing.T) {
	cfg := testPricingConfig()
	cfg.RateConfigured = false
	engine := NewEngine(cfg, nil, nil)

	assert.True(t, engine.LocalFee(40, dec("10")).Equal(dec("10")))
}

func TestComputeChargesVendorOnceAndAddsPackagingPerLine(t *testing.T) {
	engine := NewEngine(testPricingConfig(), nil, nil)
	vendorID := uuid.New()

	first := localItem(vendorID, localOption("10"))
	second := localItem(vendorID, localOption("10"))
	second.Quantity = 2
	second.WeightKG = dec("1")
	second.VolumeM3 = dec("0.5")

	res := engine.Compute(context.Background(), []LineItem{first, second}, Destination{CountryCode: "GH", Coords: accra()})

	assert.True(t, res.DeliveryTotal.Equal(dec("23")), "got %s", res.DeliveryTotal)
	assert.True(t, res.PackagingTotal.Equal(dec("3")), "got %s", res.PackagingTotal)
	assert.True(t, res.Total.Equal(dec("26")))
	require.Len(t, res.Lines, 2)
	assert.True(t, res.Lines[1].PackagingFee.Equal(dec("3")))
}

func TestComputeInternationalUsesCarrierQuote(t *testing.T) {
	quoter := &stubQuoter{quote: Quote{Carrier: "DHL", Cost: dec("80"), MinDays: 5, MaxDays: 9}}
	engine := NewEngine(testPricingConfig(), quoter, nil)
	vendorID := uuid.New()
	opt := intlOption("30", "DHL")

	item := LineItem{ProductID: uuid.New(), VendorID: vendorID, VendorCountry: "ng", Quantity: 2, WeightKG: dec("1.5"), VolumeM3: dec("0.1"), Option: opt}
	extra := item
	extra.ProductID = uuid.New()
	extra.Quantity = 1

	res := engine.Compute(context.Background(), []LineItem{item, extra}, Destination{CountryCode: "GH", Coords: accra()})

	assert.Equal(t, 1, quoter.calls)
	assert.Equal(t, "NG", quoter.last.OriginCountry)
	assert.Equal(t, "GH", quoter.last.DestinationCountry)
	assert.True(t, quoter.last.WeightKG.Equal(dec("3")))
	assert.True(t, res.VendorFees[vendorID].Equal(dec("88")), "got %s", res.VendorFees[vendorID])
	require.Contains(t, res.DynamicQuotes, vendorID)
	assert.Equal(t, 9, res.DynamicQuotes[vendorID].MaxDays)
	for _, line := range res.Lines {
		assert.Equal(t, enums.DeliveryScopeInternational, line.Scope)
	}
}

func TestComputeInternationalFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		quoter  CarrierQuoter
		opt     *models.DeliveryOption
		wantFee string
	}{
		{name: "quote failure uses static cost", quoter: &stubQuoter{err: errors.New("timeout")}, opt: intlOption("30", "DHL"), wantFee: "30"},
		{name: "quote failure without cost", quoter: &stubQuoter{err: errors.New("timeout")}, opt: intlOption("0", "DHL"), wantFee: "50"},
		{name: "no carrier on option", quoter: &stubQuoter{}, opt: intlOption("42", ""), wantFee: "42"},
		{name: "no quoter configured", quoter: nil, opt: intlOption("0", "DHL"), wantFee: "50"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine := NewEngine(testPricingConfig(), tc.quoter, nil)
			vendorID := uuid.New()
			items := []LineItem{
				{ProductID: uuid.New(), VendorID: vendorID, VendorCountry: "NG", Quantity: 1, Option: tc.opt},
				{ProductID: uuid.New(), VendorID: vendorID, VendorCountry: "NG", Quantity: 1, Option: tc.opt},
			}

			res := engine.Compute(context.Background(), items, Destination{CountryCode: "GH", Coords: accra()})

			assert.True(t, res.VendorFees[vendorID].Equal(dec(tc.wantFee)), "got %s", res.VendorFees[vendorID])
			assert.Empty(t, res.DynamicQuotes)
			assert.Empty(t, res.InvalidItems)
		})
	}
}

func TestComputeScopeMismatches(t *testing.T) {
	engine := NewEngine(testPricingConfig(), nil, nil)
	dest := Destination{CountryCode: "GH", Coords: accra()}

	t.Run("switches to default international option", func(t *testing.T) {
		fallback := intlOption("35", "")
		item := LineItem{ProductID: uuid.New(), VendorID: uuid.New(), VendorCountry: "NG", Quantity: 1, Option: localOption("10"), DefaultInternational: fallback}

		res := engine.Compute(context.Background(), []LineItem{item}, dest)
		require.Len(t, res.Lines, 1)
		assert.Equal(t, fallback.ID, res.Lines[0].Option.ID)
		assert.True(t, res.DeliveryTotal.Equal(dec("35")))
	})

	t.Run("international vendor without an international option", func(t *testing.T) {
		item := LineItem{ProductID: uuid.New(), VendorID: uuid.New(), VendorCountry: "NG", Quantity: 1, Option: localOption("10")}

		res := engine.Compute(context.Background(), []LineItem{item}, dest)
		require.Len(t, res.InvalidItems, 1)
		assert.Equal(t, ReasonRequiresInternational, res.InvalidItems[0].Reason)
		assert.True(t, res.Total.IsZero())
	})

	t.Run("local vendor with an international option", func(t *testing.T) {
		item := localItem(uuid.New(), intlOption("30", "DHL"))

		res := engine.Compute(context.Background(), []LineItem{item}, dest)
		require.Len(t, res.InvalidItems, 1)
		assert.Equal(t, ReasonInternationalOptionLocal, res.InvalidItems[0].Reason)
	})

	t.Run("no option at all", func(t *testing.T) {
		res := engine.Compute(context.Background(), []LineItem{localItem(uuid.New(), nil)}, dest)
		require.Len(t, res.InvalidItems, 1)
		assert.Equal(t, ReasonNoDeliveryOption, res.InvalidItems[0].Reason)
	})

	t.Run("zero quantity", func(t *testing.T) {
		item := localItem(uuid.New(), localOption("10"))
		item.Quantity = 0

		res := engine.Compute(context.Background(), []LineItem{item}, dest)
		require.Len(t, res.InvalidItems, 1)
		assert.Equal(t, ReasonInvalidQuantity, res.InvalidItems[0].Reason)
	})
}

func TestComputeWithoutCoordinatesIsFree(t *testing.T) {
	quoter := &stubQuoter{quote: Quote{Cost: dec("80")}}
	engine := NewEngine(testPricingConfig(), quoter, nil)
	item := localItem(uuid.New(), localOption("10"))
	item.WeightKG = dec("2")

	res := engine.Compute(context.Background(), []LineItem{item}, Destination{CountryCode: "GH"})

	assert.True(t, res.CoordinatesMissing)
	assert.True(t, res.Total.IsZero())
	assert.True(t, res.PackagingTotal.IsZero())
	assert.Len(t, res.Lines, 1)
	assert.Zero(t, quoter.calls)
}

func TestComputeDefaultsCountries(t *testing.T) {
	engine := NewEngine(testPricingConfig(), nil, nil)
	item := localItem(uuid.New(), localOption("10"))
	item.VendorCountry = ""

	res := engine.Compute(context.Background(), []LineItem{item}, Destination{Coords: accra()})

	assert.Equal(t, "GH", res.BuyerCountry)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, enums.DeliveryScopeLocal, res.Lines[0].Scope)
}
