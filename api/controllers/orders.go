package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodapp-backend/api/middleware"
	"github.com/angelmondragon/foodapp-backend/api/validators"
	"github.com/angelmondragon/foodapp-backend/internal/checkout"
	internalorders "github.com/angelmondragon/foodapp-backend/internal/orders"
	"github.com/angelmondragon/foodapp-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodapp-backend/pkg/errors"
	"github.com/angelmondragon/foodapp-backend/pkg/logger"
	"github.com/angelmondragon/foodapp-backend/pkg/pagination"
)

type placeOrderRequest struct {
	DeliveryTypeID string                    `json:"delivery_type_id" validate:"required,uuid"`
	LocationID     string                    `json:"location_id" validate:"required,uuid"`
	IsGift         bool                      `json:"is_gift"`
	GiftDetails    *internalorders.GiftInput `json:"gift_details,omitempty" validate:"-"`
}

func (p placeOrderRequest) toInput() checkout.Input {
	input := checkout.Input{
		DeliveryTypeID: uuid.MustParse(p.DeliveryTypeID),
		LocationID:     uuid.MustParse(p.LocationID),
		IsGift:         p.IsGift,
	}
	if p.IsGift {
		input.GiftDetails = p.GiftDetails
	}
	return input
}

type paymentRequest struct {
	PaymentReference *string `json:"payment_reference,omitempty"`
}

type statusChangeRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason,omitempty" validate:"omitempty,max=255"`
}

// OrderCheckout converts the caller's cart into a pending order.
func OrderCheckout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "checkout", svc != nil, func(rp *reply, r *http.Request) error {
		userID, err := requireUser(r)
		if err != nil {
			return err
		}
		// gift details are checked by checkout once the cart and references resolve
		var body placeOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return err
		}
		order, err := svc.Execute(rp.ctx, userID, body.toInput())
		if err != nil {
			return err
		}
		return rp.created(order)
	})
}

// OrdersList returns the caller's orders newest first.
func OrdersList(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "orders", svc != nil, func(rp *reply, r *http.Request) error {
		userID, err := requireUser(r)
		if err != nil {
			return err
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			return err
		}
		page, err := svc.List(rp.ctx, userID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			return err
		}
		return rp.ok(page)
	})
}

func OrderGet(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "orders", svc != nil, func(rp *reply, r *http.Request) error {
		userID, orderID, err := userAndPath(r, "orderId")
		if err != nil {
			return err
		}
		order, err := svc.Get(rp.ctx, userID, orderID)
		if err != nil {
			return err
		}
		return rp.ok(order)
	})
}

// OrderConfirmPayment is the payment entry point: pending -> paid. The body is optional.
func OrderConfirmPayment(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "orders", svc != nil, func(rp *reply, r *http.Request) error {
		userID, orderID, err := userAndPath(r, "orderId")
		if err != nil {
			return err
		}
		var body paymentRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				return err
			}
		}
		rp.forOrder(orderID)
		order, err := svc.ConfirmPayment(rp.ctx, userID, orderID, body.PaymentReference)
		if err != nil {
			return err
		}
		return rp.ok(order)
	})
}

func OrderCancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "orders", svc != nil, func(rp *reply, r *http.Request) error {
		userID, orderID, err := userAndPath(r, "orderId")
		if err != nil {
			return err
		}
		rp.forOrder(orderID)
		order, err := svc.Cancel(rp.ctx, userID, orderID)
		if err != nil {
			return err
		}
		return rp.ok(order)
	})
}

// StaffOrderStatus moves any order along the state machine on behalf of kitchen staff.
func StaffOrderStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "orders", svc != nil, func(rp *reply, r *http.Request) error {
		actorID, orderID, err := userAndPath(r, "orderId")
		if err != nil {
			return err
		}
		var body statusChangeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return err
		}
		to, err := enums.ParseOrderStatus(strings.ToLower(strings.TrimSpace(body.Status)))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
				WithDetails(map[string]any{"field": "status"})
		}

		rp.forOrder(orderID)
		order, err := svc.Transition(rp.ctx, internalorders.TransitionInput{
			OrderID:   orderID,
			To:        to,
			ActorID:   actorID,
			ActorRole: enums.MemberRole(middleware.RoleFromContext(r.Context())),
			Reason:    strings.TrimSpace(body.Reason),
		})
		if err != nil {
			return err
		}
		return rp.ok(order)
	})
}
