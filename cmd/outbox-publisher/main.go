package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/foodapp-backend/internal/boot"
	"github.com/angelmondragon/foodapp-backend/pkg/metrics"
	"github.com/angelmondragon/foodapp-backend/pkg/outbox"
	"github.com/angelmondragon/foodapp-backend/pkg/pubsub"
)

func main() {
	proc := boot.Start("outbox-publisher")
	cfg, logg := proc.Config, proc.Logger

	dbClient := proc.Database(context.Background())

	topics, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	proc.Must("connect pubsub", err)
	proc.OnExit("pubsub", topics.Close)

	service, err := NewService(Deps{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		PubSub:     topics,
		Repository: outbox.NewRepository(dbClient.DB()),
		Metrics:    metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	proc.Must("build outbox publisher", err)

	ctx, stop := proc.Context(map[string]any{"topic": topics.OrdersTopic()})
	defer stop()
	proc.ServeMetrics(ctx)

	logg.Info(ctx, "outbox publisher started")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		proc.Exit(1)
	}
	logg.Info(ctx, "outbox publisher stopped")
	proc.Exit(0)
}
