package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodapp-backend/pkg/db/models"
	"github.com/angelmondragon/foodapp-backend/pkg/metrics"
	"github.com/angelmondragon/foodapp-backend/pkg/outbox"
)

// permanentError parks the row on its first failure.
type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// processBatch claims one batch and relays it inside the claiming
// transaction. It reports whether any rows were claimed.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	started := time.Now()
	claimed := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.ClaimPending(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox batch: %w", err)
		}
		claimed = len(events)

		// Once an order's event fails, its later events wait for the next
		// batch so consumers never see a status change before order_created.
		stalled := make(map[uuid.UUID]struct{})
		for i := range events {
			event := events[i]
			if _, skip := stalled[event.AggregateID]; skip {
				continue
			}
			outcome, err := s.relay(ctx, tx, event)
			if err != nil {
				return err
			}
			if s.metrics != nil {
				s.metrics.ObservePublish(string(event.EventType), outcome)
			}
			if outcome != metrics.OutboxPublished {
				stalled[event.AggregateID] = struct{}{}
			}
		}
		return nil
	})
	if claimed > 0 && s.metrics != nil {
		s.metrics.ObserveBatch(time.Since(started))
	}
	return claimed > 0, err
}

// relay publishes one row and records the result on it. The returned error
// is reserved for bookkeeping failures, which abort the batch.
func (s *Service) relay(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (string, error) {
	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return metrics.OutboxParked, s.park(ctx, tx, event, outbox.PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err))
	}

	logCtx := s.logg.WithFields(ctx, s.eventFields(event, envelope))
	err = s.publish(ctx, event, envelope)

	var permanent permanentError
	switch {
	case err == nil:
		if err := s.repo.MarkPublished(tx, event.ID); err != nil {
			return "", fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Info(logCtx, "outbox event published")
		return metrics.OutboxPublished, nil

	case errors.As(err, &permanent):
		return metrics.OutboxParked, s.park(ctx, tx, event, envelope, err)
	}

	attempt := event.AttemptCount + 1
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"attempt_count": attempt,
		"error":         err.Error(),
	})
	if attempt >= s.maxAttempts {
		s.logg.Warn(logCtx, "outbox event exhausted publish attempts")
	} else {
		s.logg.Warn(logCtx, "outbox publish failed")
	}
	if err := s.repo.MarkFailed(tx, event.ID, err, s.maxAttempts); err != nil {
		return "", fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return metrics.OutboxFailed, nil
}

func (s *Service) park(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, envelope outbox.PayloadEnvelope, cause error) error {
	logCtx := s.logg.WithField(s.logg.WithFields(ctx, s.eventFields(event, envelope)), "error", cause.Error())
	s.logg.Warn(logCtx, "outbox event will not be retried")
	if err := s.repo.MarkFailed(tx, event.ID, cause, 1); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, envelope outbox.PayloadEnvelope) error {
	pub := s.publisherFor(s.topic)
	if pub == nil {
		return permanentError{fmt.Errorf("publisher not configured for topic %q", s.topic)}
	}

	msg := &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: event.AggregateID.String(),
		Attributes: map[string]string{
			"event_id":       envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return permanentError{fmt.Errorf("publisher returned no result for topic %q", s.topic)}
	}
	if _, err := result.Get(publishCtx); err != nil {
		// A failed ordering key stays paused until resumed.
		pub.Resume(msg.OrderingKey)
		return err
	}
	return nil
}

func (s *Service) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
		"topic":          s.topic,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}
