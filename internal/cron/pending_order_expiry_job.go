package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/foodapp-backend/pkg/logger"
)

const (
	defaultPendingTTL   = 2 * time.Hour
	defaultExpiryBatch  = 100
	maxExpiryBatchLoops = 50
)

type PendingOrderExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    pendingOrderExpirer
	TTL       time.Duration
	BatchSize int
}

type pendingOrderExpirer interface {
	ExpireStalePending(ctx context.Context, createdBefore time.Time, limit int) (int, error)
}

// NewPendingOrderExpiryJob cancels orders that stayed unpaid past the TTL.
func NewPendingOrderExpiryJob(params PendingOrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &pendingOrderExpiryJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    ttl,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type pendingOrderExpiryJob struct {
	logg   *logger.Logger
	orders pendingOrderExpirer
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

func (j *pendingOrderExpiryJob) Name() string { return "expire-pending-orders" }

// Run drains stale orders batch by batch; the cutoff is fixed for the whole run.
func (j *pendingOrderExpiryJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.ttl)
	var total int64
	for i := 0; i < maxExpiryBatchLoops; i++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		cancelled, err := j.orders.ExpireStalePending(ctx, cutoff, j.batch)
		total += int64(cancelled)
		if err != nil {
			return total, fmt.Errorf("expire pending orders: %w", err)
		}
		if cancelled < j.batch {
			break
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":          cutoff,
		"ttl":             j.ttl.String(),
		"orders_canceled": total,
	}), "pending order expiry complete")
	return total, nil
}
