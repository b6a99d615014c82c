package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodapp-backend/pkg/enums"
)

// DeliveryType is the lookup row backing enums.DeliveryTypeName.
type DeliveryType struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Name      enums.DeliveryTypeName `gorm:"column:name;type:delivery_type_name;not null;uniqueIndex:ux_delivery_types_name"`
	Price     decimal.Decimal        `gorm:"column:price;type:numeric(10,2);not null"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *DeliveryType) BeforeCreate(*gorm.DB) error {
	assignID(&d.ID)
	return nil
}
