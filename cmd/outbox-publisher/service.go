package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodapp-backend/pkg/config"
	"github.com/angelmondragon/foodapp-backend/pkg/db/models"
	"github.com/angelmondragon/foodapp-backend/pkg/logger"
)

const (
	fallbackBatch    = 50
	fallbackAttempts = 10
	fallbackPoll     = 500 * time.Millisecond
	publishTimeout   = 15 * time.Second
	maxIdleBackoff   = 10 * time.Second
	backoffJitter    = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicClient interface {
	Ping(context.Context) error
	OrdersTopic() string
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	ClaimPending(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID) error
	MarkFailed(tx *gorm.DB, id uuid.UUID, cause error, maxAttempts int) error
}

type publishRecorder interface {
	ObservePublish(eventType, outcome string)
	ObserveBatch(elapsed time.Duration)
}

type Deps struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           topicClient
	Repository       outboxRepository
	PublisherFactory publisherFactory
	Metrics          publishRecorder
}

// Service relays committed outbox rows to the orders topic.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	repo         outboxRepository
	pubsub       topicClient
	publisherFor publisherFactory
	metrics      publishRecorder
	topic        string
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params Deps) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("outbox publisher: missing config")
	case params.Logger == nil:
		return nil, errors.New("outbox publisher: missing logger")
	case params.DB == nil:
		return nil, errors.New("outbox publisher: missing database")
	case params.PubSub == nil:
		return nil, errors.New("outbox publisher: missing pubsub client")
	case params.Repository == nil:
		return nil, errors.New("outbox publisher: missing outbox repository")
	}

	topic := params.PubSub.OrdersTopic()
	if topic == "" {
		topic = params.Config.PubSub.OrdersTopic
	}

	publisherFor := params.PublisherFactory
	if publisherFor == nil {
		publisherFor = cachedPublishers(params.PubSub)
	}

	outboxCfg := params.Config.Outbox
	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		pubsub:       params.PubSub,
		publisherFor: publisherFor,
		metrics:      params.Metrics,
		topic:        topic,
		batchSize:    positiveOr(outboxCfg.BatchSize, fallbackBatch),
		maxAttempts:  positiveOr(outboxCfg.MaxAttempts, fallbackAttempts),
		pollInterval: pollInterval(outboxCfg.PollIntervalMS),
	}, nil
}

func pollInterval(ms int) time.Duration {
	if ms <= 0 {
		return fallbackPoll
	}
	return time.Duration(ms) * time.Millisecond
}

func positiveOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// Run polls until ctx is cancelled. Full batches drain back to back; idle
// polls and failed batches back off exponentially up to maxIdleBackoff.
func (s *Service) Run(ctx context.Context) error {
	deps := []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.db.Ping},
		{"pubsub", s.pubsub.Ping},
	}
	for _, dep := range deps {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", dep.name), err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	defer s.stopPublisher(ctx)

	backoff := s.newBackoff()
	for {
		if ctx.Err() != nil {
			s.logg.Info(ctx, "outbox publisher stopping")
			return ctx.Err()
		}

		claimed, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
		case claimed:
			backoff = s.newBackoff()
			continue
		}

		wait, _ := backoff.Next()
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (s *Service) newBackoff() retry.Backoff {
	return retry.WithJitter(backoffJitter, retry.WithCappedDuration(maxIdleBackoff, retry.NewExponential(s.pollInterval)))
}

func (s *Service) stopPublisher(ctx context.Context) {
	if stopper, ok := s.publisherFor(s.topic).(interface{ Stop() }); ok {
		s.logg.Info(ctx, "flushing pending publishes")
		stopper.Stop()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
