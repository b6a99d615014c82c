package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodapp-backend/internal/catalog"
	"github.com/angelmondragon/foodapp-backend/internal/pricing"
	"github.com/angelmondragon/foodapp-backend/pkg/db/models"
	"github.com/angelmondragon/foodapp-backend/pkg/enums"
)

// OrderDTO is the customer-facing order with its frozen prices.
type OrderDTO struct {
	ID               uuid.UUID               `json:"id"`
	Status           enums.OrderStatus       `json:"status"`
	TotalAmount      string                  `json:"total_amount"`
	PaymentReference string                  `json:"payment_reference"`
	IsGift           bool                    `json:"is_gift"`
	GiftDetails      *GiftDTO                `json:"gift_details,omitempty"`
	DeliveryType     catalog.DeliveryTypeDTO `json:"delivery_type"`
	Location         catalog.LocationDTO     `json:"location"`
	Items            []OrderItemDTO          `json:"items"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

type OrderItemDTO struct {
	ID                  uuid.UUID `json:"id"`
	MealID              uuid.UUID `json:"meal_id"`
	MealName            string    `json:"meal_name"`
	Quantity            int       `json:"quantity"`
	Portions            int       `json:"portions"`
	Plates              int       `json:"plates"`
	SpecialInstructions string    `json:"special_instructions"`
	UnitPrice           string    `json:"unit_price"`
	TotalPrice          string    `json:"total_price"`
}

type GiftDTO struct {
	RecipientName         string `json:"recipient_name"`
	RecipientMatricNumber string `json:"recipient_matric_number"`
	WhatsAppNumber        string `json:"whatsapp_number"`
}

// OrderList is one page of a user's order history.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// NewOrderDTO maps an order loaded with its associations.
func NewOrderDTO(o models.Order) OrderDTO {
	out := OrderDTO{
		ID:               o.ID,
		Status:           o.Status,
		TotalAmount:      pricing.Format(o.TotalAmount),
		PaymentReference: o.PaymentReference,
		IsGift:           o.IsGift,
		DeliveryType:     catalog.NewDeliveryTypeDTO(o.DeliveryType),
		Location:         catalog.NewLocationDTO(o.Location),
		Items:            make([]OrderItemDTO, 0, len(o.Items)),
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	if o.GiftDetails != nil {
		out.GiftDetails = &GiftDTO{
			RecipientName:         o.GiftDetails.RecipientName,
			RecipientMatricNumber: o.GiftDetails.RecipientMatricNumber,
			WhatsAppNumber:        o.GiftDetails.WhatsAppNumber,
		}
	}
	for _, item := range o.Items {
		out.Items = append(out.Items, OrderItemDTO{
			ID:                  item.ID,
			MealID:              item.MealID,
			MealName:            item.Meal.Name,
			Quantity:            item.Quantity,
			Portions:            item.Portions,
			Plates:              item.Plates,
			SpecialInstructions: item.SpecialInstructions,
			UnitPrice:           pricing.Format(item.UnitPrice),
			TotalPrice:          pricing.Format(item.TotalPrice),
		})
	}
	return out
}
