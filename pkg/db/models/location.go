package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodapp-backend/pkg/enums"
)

// Location is the lookup row backing enums.LocationName.
type Location struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Name      enums.LocationName `gorm:"column:name;type:location_name;not null;uniqueIndex:ux_locations_name"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *Location) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}
