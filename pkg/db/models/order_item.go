package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderItem snapshots a cart line at checkout; UnitPrice and TotalPrice never follow the Meal.
type OrderItem struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID             uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	MealID              uuid.UUID       `gorm:"column:meal_id;type:uuid;not null"`
	Meal                Meal            `gorm:"foreignKey:MealID"`
	Quantity            int             `gorm:"column:quantity;not null"`
	Portions            int             `gorm:"column:portions;not null"`
	Plates              int             `gorm:"column:plates;not null"`
	SpecialInstructions string          `gorm:"column:special_instructions;not null"`
	UnitPrice           decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null"`
	TotalPrice          decimal.Decimal `gorm:"column:total_price;type:numeric(10,2);not null"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (o *OrderItem) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}
