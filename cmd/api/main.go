package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/foodapp-backend/api"
	"github.com/angelmondragon/foodapp-backend/api/routes"
	"github.com/angelmondragon/foodapp-backend/internal/boot"
	"github.com/angelmondragon/foodapp-backend/internal/cart"
	"github.com/angelmondragon/foodapp-backend/internal/catalog"
	"github.com/angelmondragon/foodapp-backend/internal/checkout"
	"github.com/angelmondragon/foodapp-backend/internal/orders"
	"github.com/angelmondragon/foodapp-backend/pkg/metrics"
	"github.com/angelmondragon/foodapp-backend/pkg/outbox"
)

const shutdownTimeout = 20 * time.Second

func main() {
	proc := boot.Start("api")
	cfg, logg := proc.Config, proc.Logger

	dbClient := proc.Database(context.Background())

	catalogRepo := catalog.NewRepository(dbClient.DB())
	if cfg.FeatureFlags.AutoSeed {
		seeder, err := catalog.NewSeeder(catalogRepo, dbClient, logg)
		proc.Must("build catalog seeder", err)
		_, err = seeder.Seed(context.Background())
		proc.Must("seed catalog", err)
	}

	redisClient := proc.Redis(context.Background())

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	orderMetrics := metrics.NewOrderMetrics(registry)

	catalogService, err := catalog.NewService(catalogRepo)
	proc.Must("build catalog service", err)

	cartRepo := cart.NewRepository(dbClient.DB())
	cartService, err := cart.NewService(cartRepo, dbClient, catalogRepo)
	proc.Must("build cart service", err)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(ordersRepo, dbClient, outboxService, orderMetrics)
	proc.Must("build orders service", err)

	checkoutService, err := checkout.NewService(checkout.Deps{
		Tx:      dbClient,
		Carts:   cartRepo,
		Catalog: catalogRepo,
		Orders:  ordersRepo,
		Outbox:  outboxService,
		Metrics: orderMetrics,
		Logger:  logg,
	}, checkout.Options{
		MaxAttempts: cfg.Checkout.MaxAttempts,
		BaseBackoff: cfg.Checkout.BaseBackoff,
	})
	proc.Must("build checkout service", err)

	// PORT wins so the platform can assign one.
	addr := ":" + cfg.App.Port
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	ctx, stop := proc.Context(map[string]any{"addr": addr})
	defer stop()

	server := api.NewServer(addr, routes.NewRouter(
		cfg,
		logg,
		dbClient,
		redisClient,
		metrics.NewHTTPMetrics(registry),
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		catalogService,
		cartService,
		checkoutService,
		ordersService,
	))
	proc.OnExit("http server", func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "api server listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			proc.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "api server draining")
	}
	proc.Exit(0)
}
