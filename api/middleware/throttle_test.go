package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/storefront-labs/storefront-backend/pkg/errors"
)

func loginRequest(email string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/users/login", strings.NewReader(`{"email":"`+email+`","password":"secret"}`))
	req.RemoteAddr = "1.2.3.4:5678"
	return req
}

func TestThrottled_UnderLimitKeepsBodyReadable(t *testing.T) {
	store, _ := newRedisStore(t)
	rule := Throttle{Endpoint: "login", Window: time.Minute, PerAddress: 2, PerEmail: 2}
	handler := Throttled(rule, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"email":"tester@example.com"`)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("tester@example.com"))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestThrottled_EmailCounterNormalisesAddress(t *testing.T) {
	store, mr := newRedisStore(t)
	rule := Throttle{Endpoint: "login", Window: time.Minute, PerEmail: 2}
	handler := Throttled(rule, store, nil)(http.HandlerFunc(okHandler))

	for i, email := range []string{"blocked@example.com", " Blocked@Example.com", "BLOCKED@example.com"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest(email))

		if i < 2 {
			require.Equal(t, http.StatusOK, rec.Code)
			continue
		}
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		body := decodeAPIError(t, rec)
		assert.Equal(t, string(pkgerrors.CodeRateLimit), body.Code)
		assert.Equal(t, "Too many attempts, please try again later", body.Message)
	}

	for _, key := range mr.Keys() {
		assert.NotContains(t, key, "blocked@example.com", "raw emails stay out of redis")
	}

	mr.FastForward(time.Minute + time.Second)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("blocked@example.com"))
	assert.Equal(t, http.StatusOK, rec.Code, "window expiry resets the counter")
}

func TestThrottled_AddressCounterUsesFirstForwardedHop(t *testing.T) {
	store, _ := newRedisStore(t)
	rule := Throttle{Endpoint: "register", Window: time.Minute, PerAddress: 1}
	handler := Throttled(rule, store, nil)(http.HandlerFunc(okHandler))

	send := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/users/register", strings.NewReader(`{"email":"foo@example.com","password":"secret"}`))
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("5.6.7.8, 10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("5.6.7.8, 10.0.0.2"))
	assert.Equal(t, http.StatusOK, send("9.9.9.9"), "other clients are unaffected")
}

func TestThrottled_InactiveRulePassesThrough(t *testing.T) {
	rule := Throttle{Endpoint: "login", PerAddress: 1, PerEmail: 1}
	handler := Throttled(rule, nil, nil)(http.HandlerFunc(okHandler))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/users/login", strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestThrottled_StoreOutageIsDependencyError(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()
	rule := Throttle{Endpoint: "login", Window: time.Minute, PerAddress: 5}
	handler := Throttled(rule, store, nil)(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/users/login", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeDependency), decodeAPIError(t, rec).Code)
}
