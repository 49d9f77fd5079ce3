package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/storefront-labs/storefront-backend/api/routes"
	"github.com/storefront-labs/storefront-backend/internal/auth"
	"github.com/storefront-labs/storefront-backend/internal/cart"
	"github.com/storefront-labs/storefront-backend/internal/checkout"
	"github.com/storefront-labs/storefront-backend/internal/media"
	"github.com/storefront-labs/storefront-backend/internal/orders"
	product "github.com/storefront-labs/storefront-backend/internal/products"
	"github.com/storefront-labs/storefront-backend/internal/subscribers"
	"github.com/storefront-labs/storefront-backend/internal/users"
	"github.com/storefront-labs/storefront-backend/pkg/config"
	"github.com/storefront-labs/storefront-backend/pkg/db"
	"github.com/storefront-labs/storefront-backend/pkg/logger"
	"github.com/storefront-labs/storefront-backend/pkg/metrics"
	"github.com/storefront-labs/storefront-backend/pkg/migrate"
	"github.com/storefront-labs/storefront-backend/pkg/outbox"
	"github.com/storefront-labs/storefront-backend/pkg/redis"
	"github.com/storefront-labs/storefront-backend/pkg/storage/gcs"
)

const readHeaderTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	usersRepo := users.NewRepository(dbClient.DB())
	authService, err := auth.NewService(auth.ServiceParams{
		Users:          usersRepo,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return err
	}
	usersService, err := users.NewService(usersRepo, cfg.Password, logg)
	if err != nil {
		return err
	}

	productService, err := product.NewService(
		product.NewRepository(dbClient.DB()),
		product.NewRedisCache(redisClient, cfg.Cache.ProductTTL),
		logg,
	)
	if err != nil {
		return err
	}

	cartService, err := cart.NewService(cart.NewRepository(dbClient.DB()), dbClient, productService, logg, checkoutMetrics)
	if err != nil {
		return err
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(ordersRepo, logg)
	if err != nil {
		return err
	}

	checkoutService, err := checkout.NewService(
		checkout.NewRepository(dbClient.DB()),
		ordersRepo,
		cartService,
		dbClient,
		outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		logg,
		checkoutMetrics,
	)
	if err != nil {
		return err
	}

	subscribersService, err := subscribers.NewService(subscribers.NewRepository(dbClient.DB()), logg)
	if err != nil {
		return err
	}

	var mediaService media.Service
	if cfg.GCS.BucketName == "" {
		logg.Warn(bootCtx, "gcs bucket not configured, image upload disabled")
	} else {
		gcsClient, gcsErr := gcs.NewClient(bootCtx, cfg.GCS, cfg.GCP, logg)
		if gcsErr != nil {
			return gcsErr
		}
		if mediaService, err = media.NewService(gcsClient, cfg.GCS, cfg.Media, logg); err != nil {
			return err
		}
	}

	handler := routes.NewRouter(cfg, logg, routes.Dependencies{
		DB:           dbClient,
		Redis:        redisClient,
		Registry:     registry,
		Metrics:      metrics.NewHTTPMetrics(registry),
		UserResolver: usersRepo,
		Auth:         authService,
		Users:        usersService,
		Products:     productService,
		Cart:         cartService,
		Checkout:     checkoutService,
		Orders:       ordersService,
		Subscribers:  subscribersService,
		Media:        mediaService,
	})

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logg.Info(ctx, "api server stopped gracefully")
	return nil
}
