package payouts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/transfer"
)

type stubCatalog struct {
	banks []transfer.Bank
	err   error
	calls int
}

func (s *stubCatalog) ListBanks(context.Context) ([]transfer.Bank, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.banks, nil
}

func ghanaBanks() []transfer.Bank {
	return []transfer.Bank{
		{Name: "GCB Bank Limited", Code: "040100", Currency: "GHS", Type: "ghipss", Active: true},
		{Name: "Ecobank Ghana Limited", Code: "130100", Currency: "GHS", Type: "ghipss", Active: true},
		{Name: "Fidelity Bank Ghana", Code: "240100", Currency: "GHS", Type: "ghipss", Active: true},
		{Name: "UMB Universal Merchant Bank", Code: "100100", Currency: "GHS", Type: "ghipss", Active: true},
		{Name: "Access Bank Nigeria", Code: "044", Currency: "NGN", Type: "nuban", Active: true},
		{Name: "Old Savings Bank", Code: "999", Currency: "GHS", Type: "ghipss", Active: false},
		{Name: "MTN", Code: "MTN", Currency: "GHS", Type: transfer.RecipientTypeMomo, Active: true},
	}
}

func newResolver(catalog *stubCatalog) *BankResolver {
	return NewBankResolver(catalog, "GHS", time.Hour, 0.75, nil)
}

func TestNormalizeBankName(t *testing.T) {
	assert.Equal(t, "GCB", NormalizeBankName("GCB Bank Limited"))
	assert.Equal(t, "ECOBANK", NormalizeBankName("ecobank ghana ltd"))
	assert.Equal(t, "STANDARD CHARTERED", NormalizeBankName("Standard Chartered Bank Ghana PLC"))
	assert.Empty(t, NormalizeBankName("Bank Limited"))
}

func TestResolveBankNames(t *testing.T) {
	cases := []struct {
		input string
		code  string
		via   string
		score float64
	}{
		{input: "GCB", code: "040100", via: MatchExact, score: 1},
		{input: "GCB BANK LIMITED", code: "040100", via: MatchExact, score: 1},
		{input: "Ecobank Ghana Ltd", code: "130100", via: MatchExact, score: 1},
		{input: "Fidelty Bank", code: "240100", via: MatchFuzzy, score: 0.875},
		{input: "UMB Accra Branch", code: "100100", via: MatchAbbreviation, score: 0.75},
	}
	resolver := newResolver(&stubCatalog{banks: ghanaBanks()})

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			match, ok, err := resolver.Resolve(t.Context(), tc.input)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tc.code, match.Code)
			assert.Equal(t, tc.via, match.Via)
			assert.InDelta(t, tc.score, match.Score, 0.001)
			assert.GreaterOrEqual(t, match.Score, 0.75)
		})
	}
}

func TestResolveRejectsDistantNames(t *testing.T) {
	resolver := newResolver(&stubCatalog{banks: ghanaBanks()})

	for _, name := range []string{"Totally Unknown Lender", "Access Bank", "Old Savings", ""} {
		_, ok, err := resolver.Resolve(t.Context(), name)
		require.NoError(t, err)
		assert.False(t, ok, name)
	}
}

func TestResolveCachesCatalog(t *testing.T) {
	catalog := &stubCatalog{banks: ghanaBanks()}
	resolver := newResolver(catalog)
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	resolver.now = func() time.Time { return now }

	_, _, err := resolver.Resolve(t.Context(), "GCB")
	require.NoError(t, err)
	_, _, err = resolver.Resolve(t.Context(), "Ecobank")
	require.NoError(t, err)
	assert.Equal(t, 1, catalog.calls)

	now = now.Add(2 * time.Hour)
	catalog.err = errors.New("provider down")
	match, ok, err := resolver.Resolve(t.Context(), "GCB")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "040100", match.Code)
	assert.Equal(t, 2, catalog.calls)
}

func TestResolveWithoutCatalog(t *testing.T) {
	resolver := newResolver(&stubCatalog{err: errors.New("provider down")})

	_, ok, err := resolver.Resolve(t.Context(), "GCB")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
}
