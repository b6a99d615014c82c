package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/foodapp-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once per successful checkout.
type OrderCreatedEvent struct {
	OrderID      uuid.UUID              `json:"order_id"`
	UserID       uuid.UUID              `json:"user_id"`
	DeliveryType enums.DeliveryTypeName `json:"delivery_type"`
	Location     enums.LocationName     `json:"location"`
	IsGift       bool                   `json:"is_gift"`
	ItemCount    int                    `json:"item_count"`
	TotalAmount  string                 `json:"total_amount"`
}

// OrderStatusChangedEvent is emitted for every applied status transition.
type OrderStatusChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	UserID  uuid.UUID         `json:"user_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
	Reason  string            `json:"reason,omitempty"`
}
