package orders

import (
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/foodapp-backend/pkg/errors"
)

func TestValidateGift(t *testing.T) {
	t.Parallel()

	valid := GiftInput{RecipientName: "Ada Obi", RecipientMatricNumber: "190403021", WhatsAppNumber: "08012345678"}

	cases := []struct {
		name    string
		mutate  func(g *GiftInput)
		wantErr string
	}{
		{name: "valid", mutate: func(g *GiftInput) {}},
		{name: "trims whitespace", mutate: func(g *GiftInput) { g.WhatsAppNumber = " 08012345678 " }},
		{name: "missing recipient", mutate: func(g *GiftInput) { g.RecipientName = "   " }, wantErr: "recipient_name"},
		{name: "long recipient", mutate: func(g *GiftInput) { g.RecipientName = strings.Repeat("a", 256) }, wantErr: "recipient_name"},
		{name: "matric letters", mutate: func(g *GiftInput) { g.RecipientMatricNumber = "CSC/19/001" }, wantErr: "recipient_matric_number"},
		{name: "matric too long", mutate: func(g *GiftInput) { g.RecipientMatricNumber = strings.Repeat("1", 21) }, wantErr: "recipient_matric_number"},
		{name: "whatsapp short", mutate: func(g *GiftInput) { g.WhatsAppNumber = "0801234567" }, wantErr: "whatsapp_number"},
		{name: "whatsapp no leading zero", mutate: func(g *GiftInput) { g.WhatsAppNumber = "18012345678" }, wantErr: "whatsapp_number"},
		{name: "whatsapp international", mutate: func(g *GiftInput) { g.WhatsAppNumber = "+2348012345" }, wantErr: "whatsapp_number"},
		{name: "whatsapp decimal", mutate: func(g *GiftInput) { g.WhatsAppNumber = "0801234.567" }, wantErr: "whatsapp_number"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			in := valid
			tc.mutate(&in)
			got, err := ValidateGift(&in)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got.WhatsAppNumber != "08012345678" {
					t.Fatalf("expected trimmed number, got %q", got.WhatsAppNumber)
				}
				return
			}
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			details, _ := typed.Details().(map[string]string)
			if _, ok := details[tc.wantErr]; !ok {
				t.Fatalf("expected detail for %s, got %v", tc.wantErr, details)
			}
		})
	}
}

func TestValidateGiftRequiresPayload(t *testing.T) {
	t.Parallel()

	if _, err := ValidateGift(nil); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for nil payload, got %v", err)
	}
}
