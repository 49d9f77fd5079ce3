package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/storefront-labs/storefront-backend/api/controllers"
	cartcontrollers "github.com/storefront-labs/storefront-backend/api/controllers/cart"
	ordercontrollers "github.com/storefront-labs/storefront-backend/api/controllers/orders"
	"github.com/storefront-labs/storefront-backend/api/docs"
	"github.com/storefront-labs/storefront-backend/api/middleware"
	"github.com/storefront-labs/storefront-backend/internal/auth"
	"github.com/storefront-labs/storefront-backend/internal/cart"
	checkoutsvc "github.com/storefront-labs/storefront-backend/internal/checkout"
	"github.com/storefront-labs/storefront-backend/internal/media"
	"github.com/storefront-labs/storefront-backend/internal/orders"
	product "github.com/storefront-labs/storefront-backend/internal/products"
	"github.com/storefront-labs/storefront-backend/internal/subscribers"
	"github.com/storefront-labs/storefront-backend/internal/users"
	"github.com/storefront-labs/storefront-backend/pkg/config"
	"github.com/storefront-labs/storefront-backend/pkg/db"
	"github.com/storefront-labs/storefront-backend/pkg/enums"
	"github.com/storefront-labs/storefront-backend/pkg/logger"
	"github.com/storefront-labs/storefront-backend/pkg/metrics"
	"github.com/storefront-labs/storefront-backend/pkg/redis"
)

// Dependencies bundles everything the HTTP surface needs.
type Dependencies struct {
	DB       db.Pinger
	Redis    *redis.Client
	Registry *prometheus.Registry
	Metrics  *metrics.HTTPMetrics

	UserResolver middleware.UserResolver

	Auth        auth.Service
	Users       users.Service
	Products    product.Service
	Cart        cart.Service
	Checkout    checkoutsvc.Service
	Orders      orders.Service
	Subscribers subscribers.Service
	Media       media.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.Metrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	loginThrottle := middleware.Throttle{
		Endpoint:   "login",
		Window:     cfg.AuthRateLimit.LoginWindow,
		PerAddress: cfg.AuthRateLimit.LoginIPLimit,
		PerEmail:   cfg.AuthRateLimit.LoginEmailLimit,
	}
	registerThrottle := middleware.Throttle{
		Endpoint:   "register",
		Window:     cfg.AuthRateLimit.RegisterWindow,
		PerAddress: cfg.AuthRateLimit.RegisterIPLimit,
		PerEmail:   cfg.AuthRateLimit.RegisterEmailLimit,
	}

	requireAuth := middleware.Auth(cfg.JWT, deps.UserResolver, logg)
	optionalAuth := middleware.OptionalAuth(cfg.JWT, deps.UserResolver, logg)
	requireAdmin := middleware.RequireRole(enums.RoleAdmin, logg)

	// Route-specific guards are attached with r.With on the handful of routes that need them.
	idempotent, loginLimit, registerLimit := passthrough, passthrough, passthrough
	if deps.Redis != nil {
		loginLimit = middleware.Throttled(loginThrottle, deps.Redis, logg)
		registerLimit = middleware.Throttled(registerThrottle, deps.Redis, logg)
		if cfg.FeatureFlags.Idempotency {
			idempotent = middleware.Idempotent(deps.Redis, cfg.FeatureFlags.IdempotencyTTL, logg)
		}
	}

	pingers := map[string]controllers.Pinger{}
	if deps.DB != nil {
		pingers["db"] = deps.DB
	}
	if deps.Redis != nil {
		pingers["redis"] = deps.Redis
	}

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Welcome to the storefront API"))
	})

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, pingers, logg))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Get("/api-docs", docs.UI())
	r.Get("/api-docs/openapi.json", docs.JSON())

	r.Route("/api/users", func(r chi.Router) {
		r.With(registerLimit).Post("/register", controllers.UserRegister(deps.Auth, logg))
		r.With(loginLimit).Post("/login", controllers.UserLogin(deps.Auth, logg))
		r.With(requireAuth).Get("/profile", controllers.UserProfile(deps.Users, logg))
	})

	r.Route("/api/cart", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/", cartcontrollers.CartFetch(deps.Cart, logg))
			r.Post("/", cartcontrollers.CartAdd(deps.Cart, logg))
			r.Put("/", cartcontrollers.CartUpdateQuantity(deps.Cart, logg))
			r.Delete("/", cartcontrollers.CartRemove(deps.Cart, logg))
		})
		r.With(requireAuth).Post("/merge", cartcontrollers.CartMerge(deps.Cart, logg))
	})

	r.Route("/api/checkout", func(r chi.Router) {
		r.Use(requireAuth)
		r.With(idempotent).Post("/", controllers.CreateCheckout(deps.Checkout, logg))
		r.Get("/{id}", controllers.GetCheckout(deps.Checkout, logg))
		r.Put("/{id}/pay", controllers.PayCheckout(deps.Checkout, logg))
		r.With(idempotent).Post("/{id}/finalize", controllers.FinalizeCheckout(deps.Checkout, logg))
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/my-orders", ordercontrollers.MyOrders(deps.Orders, logg))
		r.Get("/{id}", ordercontrollers.Detail(deps.Orders, logg))
	})

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(deps.Products, logg))
		r.Get("/best-sellers", controllers.BestSeller(deps.Products, logg))
		r.Get("/new-arrivals", controllers.NewArrivals(deps.Products, logg))
		r.Get("/similar/{id}", controllers.SimilarProducts(deps.Products, logg))
		r.Get("/{id}", controllers.GetProduct(deps.Products, logg))

		r.Group(func(r chi.Router) {
			r.Use(requireAuth, requireAdmin)
			r.Post("/", controllers.CreateProduct(deps.Products, logg))
			r.Put("/{id}", controllers.UpdateProduct(deps.Products, logg))
			r.Delete("/{id}", controllers.DeleteProduct(deps.Products, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(requireAuth, requireAdmin)
		r.Route("/users", func(r chi.Router) {
			r.Get("/", controllers.AdminListUsers(deps.Users, logg))
			r.Post("/", controllers.AdminCreateUser(deps.Users, logg))
			r.Put("/{id}", controllers.AdminUpdateUser(deps.Users, logg))
			r.Delete("/{id}", controllers.AdminDeleteUser(deps.Users, logg))
		})
		r.Get("/products", controllers.AdminListProducts(deps.Products, logg))
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.AdminList(deps.Orders, logg))
			r.Put("/{id}", ordercontrollers.AdminUpdateStatus(deps.Orders, logg))
			r.Delete("/{id}", ordercontrollers.AdminDelete(deps.Orders, logg))
		})
	})

	r.Post("/api/subscribe", controllers.Subscribe(deps.Subscribers, logg))

	uploads := deps.Media
	if uploads == nil {
		uploads = media.Disabled()
	}
	r.With(requireAuth, requireAdmin).Post("/api/upload", controllers.UploadImage(uploads, cfg.Media.MaxUploadBytes(), logg))

	return r
}

func passthrough(next http.Handler) http.Handler {
	return next
}
