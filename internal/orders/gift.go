package orders

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/foodapp-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/foodapp-backend/pkg/errors"
)

// GiftInput is the recipient payload supplied with a gift checkout.
type GiftInput struct {
	RecipientName         string `json:"recipient_name" validate:"required,max=255"`
	RecipientMatricNumber string `json:"recipient_matric_number" validate:"required,number,max=20"`
	WhatsAppNumber        string `json:"whatsapp_number" validate:"required,len=11,startswith=0,number"`
}

var giftValidator = newGiftValidator()

func newGiftValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return v
}

var giftMessages = map[string]string{
	"recipient_name":          "recipient name is required and must be at most 255 characters",
	"recipient_matric_number": "matric number must contain only digits (max 20)",
	"whatsapp_number":         "WhatsApp number must be 11 digits starting with 0",
}

// ValidateGift trims and checks the payload. A nil payload is rejected.
func ValidateGift(in *GiftInput) (*GiftInput, error) {
	if in == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gift details are required for gift orders").
			WithDetails(map[string]string{"gift_details": "is required"})
	}
	clean := GiftInput{
		RecipientName:         strings.TrimSpace(in.RecipientName),
		RecipientMatricNumber: strings.TrimSpace(in.RecipientMatricNumber),
		WhatsAppNumber:        strings.TrimSpace(in.WhatsAppNumber),
	}
	if err := giftValidator.Struct(clean); err != nil {
		details := map[string]string{}
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				details[fe.Field()] = giftMessages[fe.Field()]
			}
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid gift details").WithDetails(details)
	}
	return &clean, nil
}

// Model converts a validated payload to its row.
func (g GiftInput) Model() *models.GiftDetails {
	return &models.GiftDetails{
		RecipientName:         g.RecipientName,
		RecipientMatricNumber: g.RecipientMatricNumber,
		WhatsAppNumber:        g.WhatsAppNumber,
	}
}
