package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartItem is a live selection; its price is always derived from the current Meal.
type CartItem struct {
	ID                  uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CartID              uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_meal,priority:1"`
	MealID              uuid.UUID `gorm:"column:meal_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_meal,priority:2"`
	Meal                Meal      `gorm:"foreignKey:MealID"`
	Quantity            int       `gorm:"column:quantity;not null"`
	Portions            int       `gorm:"column:portions;not null"`
	Plates              int       `gorm:"column:plates;not null"`
	SpecialInstructions string    `gorm:"column:special_instructions;not null"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CartItem) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}
