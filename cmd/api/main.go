package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/relistco/relist-backend/api/routes"
	"github.com/relistco/relist-backend/internal/catalog"
	checkoutsvc "github.com/relistco/relist-backend/internal/checkout"
	"github.com/relistco/relist-backend/internal/ledger"
	"github.com/relistco/relist-backend/internal/listings"
	"github.com/relistco/relist-backend/internal/sellers"
	stripewebhook "github.com/relistco/relist-backend/internal/webhooks/stripe"
	"github.com/relistco/relist-backend/pkg/config"
	"github.com/relistco/relist-backend/pkg/db"
	"github.com/relistco/relist-backend/pkg/logger"
	"github.com/relistco/relist-backend/pkg/mailer"
	"github.com/relistco/relist-backend/pkg/metrics"
	"github.com/relistco/relist-backend/pkg/migrate"
	"github.com/relistco/relist-backend/pkg/redis"
	pkgstripe "github.com/relistco/relist-backend/pkg/stripe"
)

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
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	mailClient := mailer.New(cfg.Sendgrid, logg)

	sellerService, err := sellers.NewService(sellers.ServiceParams{
		Repo:        sellers.NewRepository(dbClient.DB()),
		Stripe:      sellers.NewStripeClient(stripeClient),
		AccountType: stripeClient.AccountType(),
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create seller service", err)
		os.Exit(1)
	}

	listingService, err := listings.NewService(listings.ServiceParams{
		Repo:   listings.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create listing service", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalog.ServiceParams{
		Repo:    catalog.NewRepository(dbClient.DB()),
		Sellers: sellerService,
		Stripe:  catalog.NewStripeClient(stripeClient),
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repo:   ledger.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Listings:   listingService,
		Catalog:    catalogService,
		Sellers:    sellerService,
		Ledger:     ledgerService,
		Stripe:     checkoutsvc.NewStripeClient(stripeClient),
		FeePercent: stripeClient.FeePercent(),
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Ledger:   ledgerService,
		Listings: listingService,
		Sellers:  sellerService,
		Stripe:   stripewebhook.NewStripeClient(stripeClient),
		Mailer:   mailClient,
		Metrics:  webhookMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Stripe.EventIdempotencyTTL, "stripe-events")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			routes.Services{
				Sellers:  sellerService,
				Catalog:  catalogService,
				Listings: listingService,
				Checkout: checkoutService,
				Ledger:   ledgerService,
				Webhooks: webhookService,
				Mailer:   mailClient,
			},
			stripeClient,
			webhookGuard,
			registry,
		),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
}
