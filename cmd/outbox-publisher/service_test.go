package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodapp-backend/pkg/config"
	"github.com/angelmondragon/foodapp-backend/pkg/db/models"
	"github.com/angelmondragon/foodapp-backend/pkg/enums"
	"github.com/angelmondragon/foodapp-backend/pkg/logger"
	"github.com/angelmondragon/foodapp-backend/pkg/metrics"
	"github.com/angelmondragon/foodapp-backend/pkg/outbox"
)

var relayConfig = config.OutboxConfig{BatchSize: 2, PollIntervalMS: 100, MaxAttempts: 5}

func TestRelayMarksEachRowIndependently(t *testing.T) {
	rows := &stubOutbox{rows: []models.OutboxEvent{newRow(t, "first"), newRow(t, "second")}}
	pub := &recordingPublisher{results: []error{errors.New("transient"), nil}}
	svc := newRelay(t, rows, pub, relayConfig)

	claimed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, claimed)

	require.Len(t, rows.failed, 1)
	assert.Equal(t, rows.rows[0].ID, rows.failed[0].id)
	assert.Equal(t, 5, rows.failed[0].budget)
	assert.Equal(t, []uuid.UUID{rows.rows[1].ID}, rows.published)
}

func TestRelayMessageShape(t *testing.T) {
	row := newRow(t, "evt-1")
	pub := &recordingPublisher{results: []error{nil}}
	svc := newRelay(t, &stubOutbox{rows: []models.OutboxEvent{row}}, pub, relayConfig)

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, pub.sent, 1)

	msg := pub.sent[0]
	assert.JSONEq(t, string(row.Payload), string(msg.Data))
	assert.Equal(t, row.AggregateID.String(), msg.OrderingKey)
	assert.Equal(t, "evt-1", msg.Attributes["event_id"])
	assert.Equal(t, string(enums.EventOrderCreated), msg.Attributes["event_type"])
	assert.Equal(t, string(enums.AggregateOrder), msg.Attributes["aggregate_type"])
	assert.Equal(t, row.AggregateID.String(), msg.Attributes["aggregate_id"])
}

func TestRelayParksRowsThatCannotSucceed(t *testing.T) {
	garbled := newRow(t, "garbled")
	garbled.Payload = json.RawMessage(`not-json`)

	t.Run("undecodable payload", func(t *testing.T) {
		rows := &stubOutbox{rows: []models.OutboxEvent{garbled}}
		pub := &recordingPublisher{}
		svc := newRelay(t, rows, pub, relayConfig)

		_, err := svc.processBatch(context.Background())
		require.NoError(t, err)
		assert.Empty(t, pub.sent)
		require.Len(t, rows.failed, 1)
		assert.Equal(t, 1, rows.failed[0].budget)
	})

	t.Run("no publisher for topic", func(t *testing.T) {
		rows := &stubOutbox{rows: []models.OutboxEvent{newRow(t, "orphan")}}
		svc := newRelay(t, rows, nil, relayConfig)
		svc.publisherFor = func(string) publisher { return nil }

		_, err := svc.processBatch(context.Background())
		require.NoError(t, err)
		require.Len(t, rows.failed, 1)
		assert.Equal(t, 1, rows.failed[0].budget)
	})
}

func TestRelayEmptyBatch(t *testing.T) {
	recorder := &outcomeRecorder{}
	svc := newRelay(t, &stubOutbox{}, &recordingPublisher{}, relayConfig)
	svc.metrics = recorder

	claimed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Zero(t, recorder.batches)
}

func TestRelayAbortsOnBookkeepingError(t *testing.T) {
	rows := &stubOutbox{rows: []models.OutboxEvent{newRow(t, "evt")}, markErr: errors.New("db down")}
	svc := newRelay(t, rows, &recordingPublisher{results: []error{nil}}, relayConfig)

	_, err := svc.processBatch(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestRelayHoldsLaterEventsOfStalledOrder(t *testing.T) {
	created := newRow(t, "created")
	changed := newRow(t, "changed")
	changed.AggregateID = created.AggregateID
	changed.EventType = enums.EventOrderStatusChanged
	unrelated := newRow(t, "unrelated")

	rows := &stubOutbox{rows: []models.OutboxEvent{created, changed, unrelated}}
	pub := &recordingPublisher{results: []error{errors.New("unavailable"), nil}}
	recorder := &outcomeRecorder{}
	svc := newRelay(t, rows, pub, relayConfig)
	svc.metrics = recorder

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)

	assert.Len(t, pub.sent, 2)
	assert.Equal(t, []uuid.UUID{unrelated.ID}, rows.published)
	require.Len(t, rows.failed, 1)
	assert.Equal(t, created.ID, rows.failed[0].id)
	assert.Equal(t, []string{created.AggregateID.String()}, pub.resumed)
	assert.Equal(t, map[string]int{metrics.OutboxFailed: 1, metrics.OutboxPublished: 1}, recorder.outcomes)
	assert.Equal(t, 1, recorder.batches)
}

func TestNewServiceFallbacks(t *testing.T) {
	svc := newRelay(t, &stubOutbox{}, &recordingPublisher{}, config.OutboxConfig{})
	assert.Equal(t, fallbackBatch, svc.batchSize)
	assert.Equal(t, fallbackAttempts, svc.maxAttempts)
	assert.Equal(t, fallbackPoll, svc.pollInterval)
	assert.Equal(t, "order-events", svc.topic)

	_, err := NewService(Deps{Config: &config.Config{}})
	assert.Error(t, err)
}

func TestIdleBackoffIsCapped(t *testing.T) {
	svc := newRelay(t, &stubOutbox{}, &recordingPublisher{}, relayConfig)
	backoff := svc.newBackoff()

	first, stop := backoff.Next()
	require.False(t, stop)
	assert.InDelta(t, float64(svc.pollInterval), float64(first), float64(backoffJitter))
	for i := 0; i < 20; i++ {
		wait, _ := backoff.Next()
		assert.LessOrEqual(t, wait, maxIdleBackoff+backoffJitter)
	}
}

func newRelay(t *testing.T, rows outboxRepository, pub publisher, outboxCfg config.OutboxConfig) *Service {
	t.Helper()
	svc, err := NewService(Deps{
		Config:           &config.Config{Outbox: outboxCfg},
		Logger:           logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:               inlineTx{},
		PubSub:           staticTopic("order-events"),
		Repository:       rows,
		PublisherFactory: func(string) publisher { return pub },
	})
	require.NoError(t, err)
	return svc
}

func newRow(t *testing.T, eventID string) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		EventType:  string(enums.EventOrderCreated),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
}

type failure struct {
	id     uuid.UUID
	budget int
}

type stubOutbox struct {
	rows      []models.OutboxEvent
	published []uuid.UUID
	failed    []failure
	markErr   error
}

func (s *stubOutbox) ClaimPending(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return s.rows, nil
}

func (s *stubOutbox) MarkPublished(_ *gorm.DB, id uuid.UUID) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.published = append(s.published, id)
	return nil
}

func (s *stubOutbox) MarkFailed(_ *gorm.DB, id uuid.UUID, _ error, maxAttempts int) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.failed = append(s.failed, failure{id: id, budget: maxAttempts})
	return nil
}

// inlineTx runs the callback without a database.
type inlineTx struct{}

func (inlineTx) Ping(context.Context) error { return nil }

func (inlineTx) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type staticTopic string

func (staticTopic) Ping(context.Context) error { return nil }

func (s staticTopic) OrdersTopic() string { return string(s) }

func (staticTopic) Publisher(string) *gcppubsub.Publisher { return nil }

// recordingPublisher resolves each publish with the next queued error.
type recordingPublisher struct {
	results []error
	sent    []*gcppubsub.Message
	resumed []string
}

func (p *recordingPublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	p.sent = append(p.sent, msg)
	var err error
	if len(p.results) > 0 {
		err, p.results = p.results[0], p.results[1:]
	}
	return settled{err: err}
}

func (p *recordingPublisher) Resume(orderingKey string) {
	p.resumed = append(p.resumed, orderingKey)
}

type settled struct{ err error }

func (s settled) Get(context.Context) (string, error) { return "server-id", s.err }

type outcomeRecorder struct {
	outcomes map[string]int
	batches  int
}

func (r *outcomeRecorder) ObservePublish(_, outcome string) {
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[outcome]++
}

func (r *outcomeRecorder) ObserveBatch(time.Duration) { r.batches++ }
