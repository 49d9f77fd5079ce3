package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/storefront-labs/storefront-backend/pkg/errors"
)

type lineItem struct {
	Quantity int `json:"quantity" validate:"min=1"`
}

type orderBody struct {
	Email string     `json:"email" validate:"required,email"`
	Items []lineItem `json:"items" validate:"required,min=1,dive"`
}

func jsonRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestDecodeJSONBodyNamesFirstFailingField(t *testing.T) {
	var dest orderBody
	err := DecodeJSONBody(jsonRequest(`{"email":"nope","items":[{"quantity":0}]}`), &dest)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, "email must be a valid email", typed.Message())

	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be 1 or more", details["items[0].quantity"])
}

func TestDecodeJSONBodyRejectsEmptyAndUnknown(t *testing.T) {
	var dest orderBody

	err := DecodeJSONBody(jsonRequest(""), &dest)
	assert.Equal(t, "request body is required", pkgerrors.As(err).Message())

	err = DecodeJSONBody(jsonRequest(`{"email":"a@b.co","items":[{"quantity":1}],"coupon":"X"}`), &dest)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	err = DecodeJSONBody(jsonRequest(`{"email":"a@b.co","items":[]}`), &dest)
	assert.Equal(t, "items must contain at least 1 item(s)", pkgerrors.As(err).Message())
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	var dest orderBody
	require.NoError(t, DecodeJSONBody(jsonRequest(`{"email":"a@b.co","items":[{"quantity":2}]}`), &dest))
	assert.Equal(t, 2, dest.Items[0].Quantity)
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=12&bad=x&big=500", nil)

	n, err := QueryInt(r, "limit", 0, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	n, err = QueryInt(r, "missing", 7, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = QueryInt(r, "bad", 0, 0, 100)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = QueryInt(r, "big", 0, 0, 100)
	assert.Equal(t, "big is out of range", pkgerrors.As(err).Message())
}

func TestQueryTextTrimsAndCutsOnRunes(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?search=%20%20sn%C3%B6wboots%20", nil)
	assert.Equal(t, "snöwboots", QueryText(r, "search", 0))
	assert.Equal(t, "snö", QueryText(r, "search", 3))
}

func TestParseUUIDParamReportsNotFound(t *testing.T) {
	withParam := func(value string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", value)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}

	_, err := ParseUUIDParam(withParam("not-a-uuid"), "id", "Product not found")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	assert.Equal(t, "Product not found", pkgerrors.As(err).Message())

	want := uuid.New()
	got, err := ParseUUIDParam(withParam(want.String()), "id", "Product not found")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseOptionalUUID(t *testing.T) {
	id, err := ParseOptionalUUID("  ", "userId")
	require.NoError(t, err)
	assert.Nil(t, id)

	_, err = ParseOptionalUUID("abc", "userId")
	assert.Equal(t, "invalid userId", pkgerrors.As(err).Message())
}
