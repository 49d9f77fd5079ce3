package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront-backend/internal/auth"
	"github.com/storefront-labs/storefront-backend/internal/cart"
	"github.com/storefront-labs/storefront-backend/internal/checkout"
	"github.com/storefront-labs/storefront-backend/internal/orders"
	product "github.com/storefront-labs/storefront-backend/internal/products"
	"github.com/storefront-labs/storefront-backend/internal/subscribers"
	"github.com/storefront-labs/storefront-backend/internal/users"
	"github.com/storefront-labs/storefront-backend/pkg/config"
	"github.com/storefront-labs/storefront-backend/pkg/db/dbtest"
	"github.com/storefront-labs/storefront-backend/pkg/db/models"
	"github.com/storefront-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefront-labs/storefront-backend/pkg/errors"
	"github.com/storefront-labs/storefront-backend/pkg/logger"
	"github.com/storefront-labs/storefront-backend/pkg/metrics"
	"github.com/storefront-labs/storefront-backend/pkg/outbox"
	pkgredis "github.com/storefront-labs/storefront-backend/pkg/redis"
	"github.com/storefront-labs/storefront-backend/pkg/types"
)

var fastArgon = config.PasswordConfig{ArgonMemoryKB: 8, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 8, ArgonKeyLen: 16}

type testServer struct {
	handler  http.Handler
	users    *users.Repository
	conn     *gorm.DB
	cfg      *config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logg := logger.Nop()

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 60}
	cfg.Password = fastArgon
	cfg.FeatureFlags.Idempotency = true
	cfg.AuthRateLimit = config.AuthRateLimitConfig{
		LoginWindow: time.Minute, LoginIPLimit: 100, LoginEmailLimit: 100,
		RegisterWindow: time.Minute, RegisterIPLimit: 100, RegisterEmailLimit: 100,
	}

	mr := miniredis.RunT(t)
	redisClient := pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))

	conn := dbtest.OpenClient(t)
	usersRepo := users.NewRepository(conn.DB())
	productsRepo := product.NewRepository(conn.DB())
	reg := prometheus.NewRegistry()
	checkoutMetrics := metrics.NewCheckoutMetrics(reg)

	authSvc, err := auth.NewService(auth.ServiceParams{Users: usersRepo, JWTConfig: cfg.JWT, PasswordConfig: cfg.Password, Logger: logg})
	require.NoError(t, err)
	usersSvc, err := users.NewService(usersRepo, cfg.Password, logg)
	require.NoError(t, err)
	productsSvc, err := product.NewService(productsRepo, product.NewRedisCache(redisClient, time.Minute), logg)
	require.NoError(t, err)
	cartSvc, err := cart.NewService(cart.NewRepository(conn.DB()), conn, productsSvc, logg, checkoutMetrics)
	require.NoError(t, err)
	ordersRepo := orders.NewRepository(conn.DB())
	ordersSvc, err := orders.NewService(ordersRepo, logg)
	require.NoError(t, err)
	checkoutSvc, err := checkout.NewService(
		checkout.NewRepository(conn.DB()), ordersRepo, cartSvc, conn,
		outbox.NewService(outbox.NewRepository(conn.DB()), logg), logg, checkoutMetrics,
	)
	require.NoError(t, err)
	subscribersSvc, err := subscribers.NewService(subscribers.NewRepository(conn.DB()), logg)
	require.NoError(t, err)

	handler := NewRouter(cfg, logg, Dependencies{
		DB:           conn,
		Redis:        redisClient,
		Registry:     reg,
		Metrics:      metrics.NewHTTPMetrics(reg),
		UserResolver: usersRepo,
		Auth:         authSvc,
		Users:        usersSvc,
		Products:     productsSvc,
		Cart:         cartSvc,
		Checkout:     checkoutSvc,
		Orders:       ordersSvc,
		Subscribers:  subscribersSvc,
	})
	return &testServer{handler: handler, users: usersRepo, conn: conn.DB(), cfg: cfg}
}

type call struct {
	method  string
	path    string
	body    any
	token   string
	headers map[string]string
}

func (s *testServer) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	switch body := c.body.(type) {
	case nil:
	case []byte:
		payload = body
	default:
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(c.method, c.path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	return envelope.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var body types.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

type authPayload struct {
	User struct {
		ID   uuid.UUID  `json:"id"`
		Role enums.Role `json:"role"`
	} `json:"user"`
	Token string `json:"token"`
}

func (s *testServer) register(t *testing.T, email string) authPayload {
	t.Helper()
	rec := s.do(t, call{method: http.MethodPost, path: "/api/users/register", body: map[string]string{
		"name": "Jane", "email": email, "password": "secret1",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[authPayload](t, rec)
}

func (s *testServer) promote(t *testing.T, id uuid.UUID) {
	t.Helper()
	_, err := s.users.Update(context.Background(), id, map[string]any{"role": enums.RoleAdmin})
	require.NoError(t, err)
}

func (s *testServer) seedProduct(t *testing.T) *models.Product {
	t.Helper()
	p := &models.Product{
		Name: "Classic Tee", Description: "cotton", Price: decimal.NewFromInt(25), CountInStock: 10,
		SKU: "TEE-" + uuid.NewString()[:8], Category: "Top Wear", Collections: "Summer",
		Sizes: types.StringList{"M"}, Colors: types.StringList{"Red"}, Tags: types.StringList{},
		Images: types.ProductImages{{URL: "https://img/tee.png"}}, IsPublished: true,
	}
	require.NoError(t, s.conn.Create(p).Error)
	return p
}

func TestHealthAndDocs(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, call{method: http.MethodGet, path: "/health/live"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, call{method: http.MethodGet, path: "/health/ready"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, call{method: http.MethodGet, path: "/api-docs/openapi.json"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/checkout/{id}/finalize")

	rec = s.do(t, call{method: http.MethodGet, path: "/metrics"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/health/live"`)
}

func TestProfileRequiresToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, call{method: http.MethodGet, path: "/api/users/profile"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authorized, no token", decodeError(t, rec).Message)

	me := s.register(t, "jane@example.com")
	rec = s.do(t, call{method: http.MethodGet, path: "/api/users/profile", token: me.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, me.User.ID, decodeData[users.UserDTO](t, rec).ID)
}

func TestLoginReturnsToken(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "jane@example.com")

	rec := s.do(t, call{method: http.MethodPost, path: "/api/users/login", body: map[string]string{
		"email": "jane@example.com", "password": "secret1",
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decodeData[authPayload](t, rec).Token)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/users/login", body: map[string]string{
		"email": "jane@example.com", "password": "wrong",
	}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	s := newTestServer(t)
	customer := s.register(t, "customer@example.com")

	for _, path := range []string{"/api/admin/users", "/api/admin/products", "/api/admin/orders"} {
		rec := s.do(t, call{method: http.MethodGet, path: path, token: customer.Token})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "Not authorized as an admin", decodeError(t, rec).Message)
	}

	admin := s.register(t, "admin@example.com")
	s.promote(t, admin.User.ID)
	rec := s.do(t, call{method: http.MethodGet, path: "/api/admin/users", token: admin.Token})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestProductWritesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	customer := s.register(t, "customer@example.com")

	rec := s.do(t, call{method: http.MethodPost, path: "/api/products", token: customer.Token, body: map[string]any{"name": "x"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	p := s.seedProduct(t)
	rec = s.do(t, call{method: http.MethodGet, path: "/api/products/" + p.ID.String()})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Classic Tee", decodeData[models.Product](t, rec).Name)

	rec = s.do(t, call{method: http.MethodGet, path: "/api/products/not-a-uuid"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGuestCartMergeCheckoutFlow(t *testing.T) {
	s := newTestServer(t)
	p := s.seedProduct(t)
	const guestID = "guest_router_flow"

	rec := s.do(t, call{method: http.MethodPost, path: "/api/cart", body: map[string]any{
		"guestId": guestID, "productId": p.ID, "quantity": 2, "size": "M", "color": "Red",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	guestCart := decodeData[models.Cart](t, rec)
	assert.True(t, decimal.NewFromInt(50).Equal(guestCart.TotalPrice))

	me := s.register(t, "buyer@example.com")
	rec = s.do(t, call{method: http.MethodPost, path: "/api/cart/merge", token: me.Token, body: map[string]string{"guestId": guestID}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	merged := decodeData[models.Cart](t, rec)
	require.Len(t, merged.Products, 1)

	checkoutBody := map[string]any{
		"checkoutItems":   merged.Products,
		"shippingAddress": map[string]string{"address": "1 Main St", "city": "Austin", "postalCode": "78701", "country": "US"},
		"paymentMethod":   "PayPal",
		"totalPrice":      merged.TotalPrice,
	}

	rec = s.do(t, call{method: http.MethodPost, path: "/api/checkout", token: me.Token, body: checkoutBody})
	require.Equal(t, http.StatusCreated, rec.Code, "the idempotency key is optional: %s", rec.Body.String())
	assert.Empty(t, rec.Header().Get("Idempotent-Replay"))

	idem := map[string]string{"Idempotency-Key": "create-1"}
	rec = s.do(t, call{method: http.MethodPost, path: "/api/checkout", token: me.Token, body: checkoutBody, headers: idem})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeData[models.Checkout](t, rec)

	replay := s.do(t, call{method: http.MethodPost, path: "/api/checkout", token: me.Token, body: checkoutBody, headers: idem})
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replay"))
	assert.Equal(t, created.ID, decodeData[models.Checkout](t, replay).ID)

	finalizePath := "/api/checkout/" + created.ID.String() + "/finalize"
	rec = s.do(t, call{method: http.MethodPost, path: finalizePath, token: me.Token, headers: map[string]string{"Idempotency-Key": "fin-early"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Checkout is not paid yet", decodeError(t, rec).Message)

	rec = s.do(t, call{method: http.MethodPut, path: "/api/checkout/" + created.ID.String() + "/pay", token: me.Token, body: map[string]any{
		"paymentStatus": "paid", "paymentDetails": map[string]string{"transactionId": "tx-1"},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeData[models.Checkout](t, rec).IsPaid)

	rec = s.do(t, call{method: http.MethodPost, path: finalizePath, token: me.Token})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decodeData[models.Order](t, rec)
	assert.Equal(t, created.ID, order.CheckoutID)

	rec = s.do(t, call{method: http.MethodGet, path: "/api/cart?userId=" + me.User.ID.String(), token: me.Token})
	assert.Equal(t, http.StatusNotFound, rec.Code, "cart is purged on finalize")

	rec = s.do(t, call{method: http.MethodGet, path: "/api/orders/my-orders", token: me.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decodeData[orders.MyOrders](t, rec)
	assert.Equal(t, 1, mine.TotalOrders)
	require.Len(t, mine.Orders, 1)
	assert.Equal(t, order.ID, mine.Orders[0].ID)

	other := s.register(t, "other@example.com")
	rec = s.do(t, call{method: http.MethodGet, path: "/api/orders/" + order.ID.String(), token: other.Token})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubscribeIsPublic(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, call{method: http.MethodPost, path: "/api/subscribe", body: map[string]string{"email": "news@example.com"}})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, call{method: http.MethodPost, path: "/api/subscribe", body: map[string]string{"email": "news@example.com"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadWithoutBucketFailsAsUploadError(t *testing.T) {
	s := newTestServer(t)
	admin := s.register(t, "admin@example.com")
	s.promote(t, admin.User.ID)

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("image", "shoe.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\n0000"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := s.do(t, call{
		method:  http.MethodPost,
		path:    "/api/upload",
		token:   admin.Token,
		body:    form.Bytes(),
		headers: map[string]string{"Content-Type": mw.FormDataContentType()},
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code, rec.Body.String())
	apiErr := decodeError(t, rec)
	assert.Equal(t, string(pkgerrors.CodeUpload), apiErr.Code)
	assert.Equal(t, "Image upload is not configured", apiErr.Message)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/upload"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "the route stays behind the admin guard")
}
