package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodapp-backend/pkg/db/models"
	"github.com/angelmondragon/foodapp-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodapp-backend/pkg/errors"
	"github.com/angelmondragon/foodapp-backend/pkg/metrics"
	"github.com/angelmondragon/foodapp-backend/pkg/outbox"
	"github.com/angelmondragon/foodapp-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/foodapp-backend/pkg/pagination"
)

// ReasonPaymentTimeout marks cancellations issued by the pending-order sweeper.
const ReasonPaymentTimeout = "payment_timeout"

const maxPaymentReferenceLen = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type transitionRecorder interface {
	ObserveTransition(from, to, outcome string)
}

// Service defines order reads and status changes.
type Service interface {
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	Transition(ctx context.Context, input TransitionInput) (*OrderDTO, error)
	ConfirmPayment(ctx context.Context, userID, orderID uuid.UUID, paymentReference *string) (*OrderDTO, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	ExpireStalePending(ctx context.Context, createdBefore time.Time, limit int) (int, error)
}

// TransitionInput moves an order to To. When OwnerID is set the order must
// belong to that user; staff transitions leave it nil.
type TransitionInput struct {
	OrderID          uuid.UUID
	To               enums.OrderStatus
	OwnerID          *uuid.UUID
	ActorID          uuid.UUID
	ActorRole        enums.MemberRole
	PaymentReference *string
	Reason           string
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics transitionRecorder
}

// NewService builds the order service. A nil recorder disables transition metrics.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, recorder transitionRecorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if recorder == nil {
		recorder = metrics.NewOrderMetrics(nil)
	}
	return &service{repo: repo, tx: tx, outbox: outbox, metrics: recorder}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page, next := pagination.Page(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	out := &OrderList{Orders: make([]OrderDTO, 0, len(page)), NextCursor: next}
	for _, o := range page {
		out.Orders = append(out.Orders, NewOrderDTO(o))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindDetail(ctx, orderID)
	if err != nil {
		return nil, orderLookupError(err)
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	dto := NewOrderDTO(*order)
	return &dto, nil
}

func (s *service) ConfirmPayment(ctx context.Context, userID, orderID uuid.UUID, paymentReference *string) (*OrderDTO, error) {
	if paymentReference != nil {
		ref := strings.TrimSpace(*paymentReference)
		if len(ref) > maxPaymentReferenceLen {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference too long").
				WithDetails(map[string]any{"field": "payment_reference", "max": maxPaymentReferenceLen})
		}
		paymentReference = &ref
	}
	return s.Transition(ctx, TransitionInput{
		OrderID:          orderID,
		To:               enums.OrderStatusPaid,
		OwnerID:          &userID,
		ActorID:          userID,
		ActorRole:        enums.MemberRoleCustomer,
		PaymentReference: paymentReference,
	})
}

func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	return s.Transition(ctx, TransitionInput{
		OrderID:   orderID,
		To:        enums.OrderStatusCancelled,
		OwnerID:   &userID,
		ActorID:   userID,
		ActorRole: enums.MemberRoleCustomer,
	})
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*OrderDTO, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.To.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
			WithDetails(map[string]string{"status": string(input.To)})
	}

	var (
		from enums.OrderStatus
		out  *OrderDTO
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, input.OrderID)
		if err != nil {
			return orderLookupError(err)
		}
		if input.OwnerID != nil && order.UserID != *input.OwnerID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		from = order.Status
		if !CanTransition(order.Status, input.To) {
			return pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("cannot move order from %s to %s", order.Status, input.To)).
				WithDetails(map[string]any{
					"from":    order.Status,
					"to":      input.To,
					"allowed": NextStatuses(order.Status),
				})
		}

		if err := repo.UpdateStatus(ctx, order.ID, input.To, input.PaymentReference); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderStatusChangedEvent{
				OrderID: order.ID,
				UserID:  order.UserID,
				From:    order.Status,
				To:      input.To,
				Reason:  input.Reason,
			},
		}
		if input.ActorID != uuid.Nil {
			event.Actor = &outbox.ActorRef{UserID: input.ActorID, Role: string(input.ActorRole)}
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue status event")
		}

		updated, err := repo.FindDetail(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		dto := NewOrderDTO(*updated)
		out = &dto
		return nil
	})
	s.metrics.ObserveTransition(string(from), string(input.To), transitionOutcome(err))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExpireStalePending cancels orders left unpaid since before createdBefore.
// Orders that moved on between the scan and the lock are skipped.
func (s *service) ExpireStalePending(ctx context.Context, createdBefore time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = pagination.MaxLimit
	}
	ids, err := s.repo.ListStalePending(ctx, createdBefore, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale orders")
	}
	cancelled := 0
	for _, id := range ids {
		_, err := s.Transition(ctx, TransitionInput{
			OrderID: id,
			To:      enums.OrderStatusCancelled,
			Reason:  ReasonPaymentTimeout,
		})
		if err != nil {
			if pkgerrors.Is(err, pkgerrors.CodeInvalidState) {
				continue
			}
			return cancelled, err
		}
		cancelled++
	}
	return cancelled, nil
}

func orderLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func transitionOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case pkgerrors.Is(err, pkgerrors.CodeInvalidState):
		return metrics.OutcomeRejected
	case pkgerrors.Is(err, pkgerrors.CodeNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}
