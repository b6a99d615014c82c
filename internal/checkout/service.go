package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodapp-backend/internal/cart"
	"github.com/angelmondragon/foodapp-backend/internal/catalog"
	"github.com/angelmondragon/foodapp-backend/internal/orders"
	"github.com/angelmondragon/foodapp-backend/internal/pricing"
	"github.com/angelmondragon/foodapp-backend/pkg/db"
	"github.com/angelmondragon/foodapp-backend/pkg/db/models"
	"github.com/angelmondragon/foodapp-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodapp-backend/pkg/errors"
	"github.com/angelmondragon/foodapp-backend/pkg/logger"
	"github.com/angelmondragon/foodapp-backend/pkg/metrics"
	"github.com/angelmondragon/foodapp-backend/pkg/outbox"
	"github.com/angelmondragon/foodapp-backend/pkg/outbox/payloads"
)

const (
	defaultMaxAttempts = 3
	defaultBaseBackoff = 25 * time.Millisecond
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type checkoutRecorder interface {
	ObserveCheckout(outcome string, elapsed time.Duration)
	IncCheckoutRetry()
}

// Service converts a user's cart into an order.
type Service interface {
	Execute(ctx context.Context, userID uuid.UUID, input Input) (*orders.OrderDTO, error)
}

// Input carries the delivery choices made at checkout. GiftDetails is only
// read when IsGift is set.
type Input struct {
	DeliveryTypeID uuid.UUID
	LocationID     uuid.UUID
	IsGift         bool
	GiftDetails    *orders.GiftInput
}

// Options bounds the retry loop around serialization failures and deadlocks.
type Options struct {
	MaxAttempts int
	BaseBackoff time.Duration
}

// Deps groups the collaborators the workflow needs.
type Deps struct {
	Tx      txRunner
	Carts   cart.Repository
	Catalog catalog.Repository
	Orders  orders.Repository
	Outbox  outboxPublisher
	Metrics checkoutRecorder
	Logger  *logger.Logger
}

type service struct {
	tx      txRunner
	carts   cart.Repository
	catalog catalog.Repository
	orders  orders.Repository
	outbox  outboxPublisher
	metrics checkoutRecorder
	logg    *logger.Logger
	opts    Options
}

// NewService builds the checkout service.
func NewService(deps Deps, opts Options) (Service, error) {
	if deps.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if deps.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewOrderMetrics(nil)
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = defaultBaseBackoff
	}
	return &service{
		tx:      deps.Tx,
		carts:   deps.Carts,
		catalog: deps.Catalog,
		orders:  deps.Orders,
		outbox:  deps.Outbox,
		metrics: deps.Metrics,
		logg:    deps.Logger,
		opts:    opts,
	}, nil
}

func (s *service) Execute(ctx context.Context, userID uuid.UUID, input Input) (*orders.OrderDTO, error) {
	started := time.Now()
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var result *orders.OrderDTO
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(s.opts.MaxAttempts-1), retry.NewExponential(s.opts.BaseBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			s.metrics.IncCheckoutRetry()
			s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "retrying checkout after transaction conflict")
		}
		dto, err := s.attempt(ctx, userID, input)
		if err != nil {
			if db.IsRetryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = dto
		return nil
	})
	if err != nil && db.IsRetryable(err) {
		err = pkgerrors.Wrap(pkgerrors.CodeConflict, err, "checkout conflicted with a concurrent update")
	}
	s.metrics.ObserveCheckout(outcomeFor(err), time.Since(started))
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, result.ID.String()), map[string]any{
		"total_amount": result.TotalAmount,
		"items":        len(result.Items),
		"attempts":     attempt,
	})
	s.logg.Info(logCtx, "checkout completed")
	return result, nil
}

// attempt runs the whole workflow in one transaction. The cart row lock is the
// first statement so concurrent checkouts of the same cart serialize here.
func (s *service) attempt(ctx context.Context, userID uuid.UUID, input Input) (*orders.OrderDTO, error) {
	var out *orders.OrderDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		refs := s.catalog.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)

		userCart, err := carts.FindByUserForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
		}
		items, err := carts.ListItems(ctx, userCart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
		}

		deliveryType, err := refs.FindDeliveryType(ctx, input.DeliveryTypeID)
		if err != nil {
			return referenceError(err, "delivery type not found", "load delivery type")
		}
		location, err := refs.FindLocation(ctx, input.LocationID)
		if err != nil {
			return referenceError(err, "location not found", "load location")
		}

		var gift *orders.GiftInput
		if input.IsGift {
			if gift, err = orders.ValidateGift(input.GiftDetails); err != nil {
				return err
			}
		}

		total := pricing.OrderTotal(cart.Lines(items), deliveryType.Price)
		if !pricing.Fits(total) {
			return pkgerrors.New(pkgerrors.CodeValidation, "order total exceeds the maximum order amount").
				WithDetails(map[string]string{"total_amount": pricing.Format(total)})
		}
		order := &models.Order{
			UserID:         userID,
			DeliveryTypeID: deliveryType.ID,
			LocationID:     location.ID,
			IsGift:         input.IsGift,
			Status:         enums.OrderStatusPending,
			TotalAmount:    total,
		}
		if gift != nil {
			details := gift.Model()
			if err := ordersRepo.CreateGiftDetails(ctx, details); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create gift details")
			}
			order.GiftDetailsID = &details.ID
		}
		if err := ordersRepo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if err := ordersRepo.CreateItems(ctx, snapshotItems(order.ID, items)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		if _, err := carts.ClearItems(ctx, userCart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.MemberRoleCustomer)},
			Data: payloads.OrderCreatedEvent{
				OrderID:      order.ID,
				UserID:       userID,
				DeliveryType: deliveryType.Name,
				Location:     location.Name,
				IsGift:       order.IsGift,
				ItemCount:    len(items),
				TotalAmount:  pricing.Format(total),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order event")
		}

		created, err := ordersRepo.FindDetail(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		dto := orders.NewOrderDTO(*created)
		out = &dto
		return nil
	})
	return out, err
}

// snapshotItems copies each cart line with the meal price frozen at this instant.
func snapshotItems(orderID uuid.UUID, items []models.CartItem) []models.OrderItem {
	out := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, models.OrderItem{
			OrderID:             orderID,
			MealID:              item.MealID,
			Quantity:            item.Quantity,
			Portions:            item.Portions,
			Plates:              item.Plates,
			SpecialInstructions: item.SpecialInstructions,
			UnitPrice:           item.Meal.Price,
			TotalPrice:          pricing.LineTotal(item.Meal.Price, item.Quantity, item.Portions, item.Plates),
		})
	}
	return out
}

func referenceError(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case pkgerrors.Is(err, pkgerrors.CodeEmptyCart):
		return metrics.OutcomeEmptyCart
	case pkgerrors.Is(err, pkgerrors.CodeNotFound):
		return metrics.OutcomeNotFound
	case pkgerrors.Is(err, pkgerrors.CodeValidation):
		return metrics.OutcomeValidation
	case pkgerrors.Is(err, pkgerrors.CodeConflict):
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeError
	}
}
