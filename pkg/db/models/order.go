package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodapp-backend/pkg/enums"
)

// Order is the frozen result of a checkout. Only Status and PaymentReference change after insert.
type Order struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index:idx_orders_user_created,priority:1"`
	DeliveryTypeID   uuid.UUID         `gorm:"column:delivery_type_id;type:uuid;not null"`
	DeliveryType     DeliveryType      `gorm:"foreignKey:DeliveryTypeID"`
	LocationID       uuid.UUID         `gorm:"column:location_id;type:uuid;not null"`
	Location         Location          `gorm:"foreignKey:LocationID"`
	IsGift           bool              `gorm:"column:is_gift;not null"`
	GiftDetailsID    *uuid.UUID        `gorm:"column:gift_details_id;type:uuid;uniqueIndex:ux_orders_gift_details"`
	GiftDetails      *GiftDetails      `gorm:"foreignKey:GiftDetailsID"`
	Status           enums.OrderStatus `gorm:"column:status;type:order_status;not null"`
	TotalAmount      decimal.Decimal   `gorm:"column:total_amount;type:numeric(10,2);not null"`
	PaymentReference string            `gorm:"column:payment_reference;not null"`
	Items            []OrderItem       `gorm:"foreignKey:OrderID"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime;index:idx_orders_user_created,priority:2"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}
