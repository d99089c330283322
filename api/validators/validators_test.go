package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/pagination"
)

func TestVerifyHMACSHA512(t *testing.T) {
	body := []byte(`{"event":"charge.success"}`)
	sig := SignHMACSHA512(body, "sk_test")

	assert.True(t, VerifyHMACSHA512(body, "sk_test", sig))
	assert.True(t, VerifyHMACSHA512(body, "sk_test", strings.ToUpper(sig)))
	assert.False(t, VerifyHMACSHA512(body, "other", sig))
	assert.False(t, VerifyHMACSHA512([]byte(`{}`), "sk_test", sig))
	assert.False(t, VerifyHMACSHA512(body, "sk_test", "not-hex"))
	assert.False(t, VerifyHMACSHA512(body, "", sig))
}

type selection struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Note      string `json:"note" validate:"max=5"`
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_id":"x","note":"too long"}`))
	var dest selection
	err := DecodeJSONBody(req, &dest)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a valid uuid", details["product_id"])
	assert.Equal(t, "must be at most 5", details["note"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_id":"5b0e0c5c-8b39-4d3c-9a0a-0d8f5d0b7a11","extra":1}`))
	var dest selection
	require.Error(t, DecodeJSONBody(req, &dest))
}

func TestDecodeOptionalJSONBody(t *testing.T) {
	var dest struct {
		CouponID *string `json:"coupon_id" validate:"omitempty,uuid"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, DecodeOptionalJSONBody(req, &dest))
	assert.Nil(t, dest.CouponID)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"coupon_id":"nope"}`))
	require.Error(t, DecodeOptionalJSONBody(req, &dest))
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=10&bad=x&big=500", nil)

	v, err := ParseQueryInt(req, "limit", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	v, err = ParseQueryInt(req, "missing", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, v)

	_, err = ParseQueryInt(req, "bad", 25, 1, 100)
	require.Error(t, err)
	_, err = ParseQueryInt(req, "big", 25, 1, 100)
	require.Error(t, err)
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?unreadOnly=true&bad=maybe", nil)

	v, err := ParseQueryBool(req, "unreadOnly", false)
	require.NoError(t, err)
	assert.True(t, v)

	v, err = ParseQueryBool(req, "missing", true)
	require.NoError(t, err)
	assert.True(t, v)

	_, err = ParseQueryBool(req, "bad", false)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestParsePage(t *testing.T) {
	page, err := ParsePage(httptest.NewRequest(http.MethodGet, "/?limit=10&cursor=%20abc%20", nil))
	require.NoError(t, err)
	assert.Equal(t, pagination.Params{Limit: 10, Cursor: "abc"}, page)

	page, err = ParsePage(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, pagination.DefaultLimit, page.Limit)

	_, err = ParsePage(httptest.NewRequest(http.MethodGet, "/?limit=500", nil))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
