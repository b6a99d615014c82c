package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/foodapp-backend/internal/boot"
	"github.com/angelmondragon/foodapp-backend/internal/cron"
	"github.com/angelmondragon/foodapp-backend/internal/orders"
	"github.com/angelmondragon/foodapp-backend/pkg/metrics"
	"github.com/angelmondragon/foodapp-backend/pkg/outbox"
)

func main() {
	proc := boot.Start("cron-worker")
	cfg, logg := proc.Config, proc.Logger

	dbClient := proc.Database(context.Background())
	redisClient := proc.Redis(context.Background())

	outboxRepo := outbox.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		dbClient,
		outbox.NewService(outboxRepo, logg),
		metrics.NewOrderMetrics(prometheus.DefaultRegisterer),
	)
	proc.Must("build orders service", err)

	expiry, err := cron.NewPendingOrderExpiryJob(cron.PendingOrderExpiryJobParams{
		Logger: logg,
		Orders: ordersService,
		TTL:    cfg.Orders.PendingTTL,
	})
	proc.Must("build pending order expiry job", err)

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Orders.OutboxRetention,
	})
	proc.Must("build outbox retention job", err)

	jobs, err := cron.NewRegistry(expiry, retention)
	proc.Must("register cron jobs", err)

	lock, err := cron.NewRedisLock(redisClient, lockName(cfg.App.Env), cfg.Orders.CronLockDuration)
	proc.Must("build cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Orders.CronInterval,
	})
	proc.Must("build cron service", err)

	ctx, stop := proc.Context(map[string]any{"interval": cfg.Orders.CronInterval.String()})
	defer stop()
	proc.ServeMetrics(ctx)

	logg.Info(ctx, "cron worker started")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		proc.Exit(1)
	}
	logg.Info(ctx, "cron worker stopped")
	proc.Exit(0)
}

// lockName keeps environments sharing one redis from blocking each other.
func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("cron-worker:%s", env)
}
