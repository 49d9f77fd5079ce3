package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/storefront-labs/storefront-backend/pkg/metrics"
)

// Metrics observes every request under its chi route pattern, so path parameters do not
// explode label cardinality.
func Metrics(m *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(rec, r)

			route := routePattern(r)
			if route == r.URL.Path && rec.statusCode() == http.StatusNotFound {
				route = "unmatched"
			}
			m.Observe(r.Method, route, rec.statusCode(), time.Since(start))
		})
	}
}

// routePattern is only complete once routing has finished, i.e. after next.ServeHTTP returns.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
