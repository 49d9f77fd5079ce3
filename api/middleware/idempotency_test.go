package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefront-labs/storefront-backend/pkg/errors"
)

func checkoutRequest(path, key, body string, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if userID != uuid.Nil {
		req = req.WithContext(WithUser(req.Context(), userID, enums.RoleCustomer))
	}
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	return req
}

func TestIdempotentPassesThroughWithoutHeader(t *testing.T) {
	store, mr := newRedisStore(t)
	calls := 0
	handler := Idempotent(store, 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"foo":"bar"}`, string(body))
		w.WriteHeader(http.StatusCreated)
	}))

	for range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, checkoutRequest("/api/checkout", "", `{"foo":"bar"}`, uuid.New()))
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Empty(t, rec.Header().Get("Idempotent-Replay"))
	}

	assert.Equal(t, 2, calls, "keyless requests are not deduplicated")
	assert.Empty(t, mr.Keys())
}

func TestIdempotentReplaysFirstSuccess(t *testing.T) {
	store, mr := newRedisStore(t)
	calls := 0
	handler := Idempotent(store, 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"order-1"}}`))
	}))

	userID := uuid.New()
	send := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, checkoutRequest("/api/checkout/c1/finalize", "abc", `{}`, userID))
		return rec
	}

	first := send()
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get("Idempotent-Replay"))

	replay := send()
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replay"))
	assert.JSONEq(t, `{"data":{"id":"order-1"}}`, replay.Body.String())
	assert.Equal(t, 1, calls)

	key := store.IdempotencyKey(userID.String()+"|POST|/api/checkout/c1/finalize", "abc")
	assert.Equal(t, DefaultIdempotencyTTL, mr.TTL(key))
}

func TestIdempotentRejectsDifferentBody(t *testing.T) {
	store, _ := newRedisStore(t)
	handler := Idempotent(store, time.Hour, nil)(http.HandlerFunc(okHandler))

	handler.ServeHTTP(httptest.NewRecorder(), checkoutRequest("/api/checkout", "xyz", `{"foo":"bar"}`, uuid.Nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, checkoutRequest("/api/checkout", "xyz", `{"foo":"diff"}`, uuid.Nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), decodeAPIError(t, rec).Code)
}

func TestIdempotentRejectsConcurrentDuplicate(t *testing.T) {
	store, _ := newRedisStore(t)
	var duplicate *httptest.ResponseRecorder
	var handler http.Handler
	handler = Idempotent(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if duplicate == nil {
			// A second attempt arrives while the first still holds the key.
			duplicate = httptest.NewRecorder()
			handler.ServeHTTP(duplicate, checkoutRequest("/api/checkout", "busy", `{}`, uuid.Nil))
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, checkoutRequest("/api/checkout", "busy", `{}`, uuid.Nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, duplicate)
	assert.Equal(t, http.StatusConflict, duplicate.Code)
	assert.Equal(t, "request with this Idempotency-Key is still being processed", decodeAPIError(t, duplicate).Message)
}

func TestIdempotentReleasesKeyOnFailure(t *testing.T) {
	store, mr := newRedisStore(t)
	calls := 0
	handler := Idempotent(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, checkoutRequest("/api/checkout/c1/finalize", "retry-me", `{}`, uuid.Nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, mr.Keys(), "failed attempts leave nothing behind")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, checkoutRequest("/api/checkout/c1/finalize", "retry-me", `{}`, uuid.Nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotentScopesKeysPerUser(t *testing.T) {
	store, _ := newRedisStore(t)
	calls := 0
	handler := Idempotent(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), checkoutRequest("/api/checkout", "shared", `{}`, uuid.New()))
	}

	assert.Equal(t, 2, calls)
}

func TestIdempotentWithoutStorePassesThrough(t *testing.T) {
	handler := Idempotent(nil, 0, nil)(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, checkoutRequest("/api/checkout", "", `{}`, uuid.Nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
