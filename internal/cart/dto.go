package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodapp-backend/internal/catalog"
	"github.com/angelmondragon/foodapp-backend/internal/pricing"
	"github.com/angelmondragon/foodapp-backend/pkg/db/models"
)

// ItemDTO is a cart line with prices derived from the meal's current price.
type ItemDTO struct {
	ID                  uuid.UUID       `json:"id"`
	Meal                catalog.MealDTO `json:"meal"`
	Quantity            int             `json:"quantity"`
	Portions            int             `json:"portions"`
	Plates              int             `json:"plates"`
	SpecialInstructions string          `json:"special_instructions"`
	UnitPrice           string          `json:"unit_price"`
	TotalPrice          string          `json:"total_price"`
}

// Snapshot is the full cart returned by every cart operation.
type Snapshot struct {
	ID          uuid.UUID `json:"id"`
	Items       []ItemDTO `json:"items"`
	ItemCount   int       `json:"item_count"`
	TotalAmount string    `json:"total_amount"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Lines projects cart items onto pricing lines using each meal's live price.
func Lines(items []models.CartItem) []pricing.Line {
	lines := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, pricing.Line{
			UnitPrice: item.Meal.Price,
			Quantity:  item.Quantity,
			Portions:  item.Portions,
			Plates:    item.Plates,
		})
	}
	return lines
}

func newSnapshot(cart *models.Cart, items []models.CartItem) *Snapshot {
	out := &Snapshot{
		ID:          cart.ID,
		Items:       make([]ItemDTO, 0, len(items)),
		ItemCount:   len(items),
		TotalAmount: pricing.Format(pricing.Subtotal(Lines(items))),
		UpdatedAt:   cart.UpdatedAt,
	}
	for _, item := range items {
		out.Items = append(out.Items, ItemDTO{
			ID:                  item.ID,
			Meal:                catalog.NewMealDTO(item.Meal),
			Quantity:            item.Quantity,
			Portions:            item.Portions,
			Plates:              item.Plates,
			SpecialInstructions: item.SpecialInstructions,
			UnitPrice:           pricing.Format(item.Meal.Price),
			TotalPrice:          pricing.Format(pricing.LineTotal(item.Meal.Price, item.Quantity, item.Portions, item.Plates)),
		})
	}
	return out
}
