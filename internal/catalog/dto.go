package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodapp-backend/internal/pricing"
	"github.com/angelmondragon/foodapp-backend/pkg/db/models"
	"github.com/angelmondragon/foodapp-backend/pkg/enums"
)

// MealDTO is the public shape of a menu entry.
type MealDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	ImageURL    *string   `json:"image_url,omitempty"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DeliveryTypeDTO exposes a delivery option and its fee.
type DeliveryTypeDTO struct {
	ID    uuid.UUID              `json:"id"`
	Name  enums.DeliveryTypeName `json:"name"`
	Label string                 `json:"label"`
	Price string                 `json:"price"`
}

// LocationDTO exposes a drop-off point.
type LocationDTO struct {
	ID    uuid.UUID          `json:"id"`
	Name  enums.LocationName `json:"name"`
	Label string             `json:"label"`
}

func NewMealDTO(m models.Meal) MealDTO {
	return MealDTO{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Price:       pricing.Format(m.Price),
		ImageURL:    m.ImageURL,
		IsAvailable: m.IsAvailable,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func NewDeliveryTypeDTO(d models.DeliveryType) DeliveryTypeDTO {
	return DeliveryTypeDTO{
		ID:    d.ID,
		Name:  d.Name,
		Label: d.Name.Label(),
		Price: pricing.Format(d.Price),
	}
}

func NewLocationDTO(l models.Location) LocationDTO {
	return LocationDTO{
		ID:    l.ID,
		Name:  l.Name,
		Label: l.Name.Label(),
	}
}
