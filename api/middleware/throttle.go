package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/storefront-labs/storefront-backend/api/responses"
	pkgerrors "github.com/storefront-labs/storefront-backend/pkg/errors"
	"github.com/storefront-labs/storefront-backend/pkg/logger"
)

// maxCredentialBody bounds how much of a login or register body is buffered to find the email.
const maxCredentialBody = 64 << 10

type counterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// Throttle caps attempts against a credential endpoint. Counters are fixed windows:
// one per client address and one per submitted email. A zero limit disables that counter.
type Throttle struct {
	Endpoint   string
	Window     time.Duration
	PerAddress int
	PerEmail   int
}

func (t Throttle) active() bool {
	return t.Window > 0 && (t.PerAddress > 0 || t.PerEmail > 0)
}

func (t Throttle) endpoint() string {
	if name := strings.ToLower(strings.TrimSpace(t.Endpoint)); name != "" {
		return name
	}
	return "credentials"
}

// Throttled rejects requests over the rule's limits with 429 and a Retry-After hint.
// A counter store failure is a 503; attempts are never let through unmetered.
func Throttled(rule Throttle, store counterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !rule.active() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			endpoint := rule.endpoint()

			if rule.PerAddress > 0 {
				addr := clientAddress(r)
				over, err := exceeded(ctx, store, endpoint+":addr:"+addr, rule.Window, rule.PerAddress)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if over {
					rejectAttempt(ctx, logg, w, rule, map[string]any{"scope": "address", "client_address": addr})
					return
				}
			}

			if rule.PerEmail > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxCredentialBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "could not read request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				if digest := emailDigest(body); digest != "" {
					over, err := exceeded(ctx, store, endpoint+":email:"+digest, rule.Window, rule.PerEmail)
					if err != nil {
						responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
						return
					}
					if over {
						rejectAttempt(ctx, logg, w, rule, map[string]any{"scope": "email", "email_hash": digest})
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func exceeded(ctx context.Context, store counterStore, scope string, window time.Duration, limit int) (bool, error) {
	count, err := store.IncrWithTTL(ctx, store.RateLimitKey(scope), window)
	if err != nil {
		return false, err
	}
	return count > int64(limit), nil
}

func rejectAttempt(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, rule Throttle, fields map[string]any) {
	if logg != nil {
		fields["endpoint"] = rule.endpoint()
		fields["window"] = rule.Window.String()
		logg.Warn(logg.WithFields(ctx, fields), "credential attempts throttled")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(rule.Window.Round(time.Second).Seconds())))
	responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "Too many attempts, please try again later"))
}

// clientAddress prefers the first X-Forwarded-For hop since the API runs behind a load balancer.
func clientAddress(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if addr := strings.TrimSpace(first); addr != "" {
			return addr
		}
	}
	if addr := strings.TrimSpace(r.Header.Get("X-Real-IP")); addr != "" {
		return addr
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

// emailDigest hashes the normalised email so raw addresses never land in redis keys or logs.
func emailDigest(body []byte) string {
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}
