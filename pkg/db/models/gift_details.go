package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GiftDetails holds recipient metadata for a gift order. Owned by exactly one order.
type GiftDetails struct {
	ID                    uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	RecipientName         string    `gorm:"column:recipient_name;size:255;not null"`
	RecipientMatricNumber string    `gorm:"column:recipient_matric_number;size:20;not null"`
	WhatsAppNumber        string    `gorm:"column:whatsapp_number;size:11;not null"`
	CreatedAt             time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (GiftDetails) TableName() string {
	return "gift_details"
}

func (g *GiftDetails) BeforeCreate(*gorm.DB) error {
	assignID(&g.ID)
	return nil
}
