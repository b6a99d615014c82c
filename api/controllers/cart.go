package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodapp-backend/api/validators"
	cartsvc "github.com/angelmondragon/foodapp-backend/internal/cart"
	"github.com/angelmondragon/foodapp-backend/pkg/logger"
)

const maxInstructionsLen = 1000

// cartLine is the editable part of a cart row shared by POST and PATCH.
type cartLine struct {
	Quantity            *int    `json:"quantity,omitempty" validate:"omitempty,min=1,max=1000"`
	Portions            *int    `json:"portions,omitempty" validate:"omitempty,min=1,max=1000"`
	Plates              *int    `json:"plates,omitempty" validate:"omitempty,min=1,max=1000"`
	SpecialInstructions *string `json:"special_instructions,omitempty"`
}

func (l cartLine) toUpdate() cartsvc.UpdateItemInput {
	var notes *string
	if l.SpecialInstructions != nil {
		cleaned := validators.SanitizeString(*l.SpecialInstructions, maxInstructionsLen)
		notes = &cleaned
	}
	return cartsvc.UpdateItemInput{
		Quantity:            l.Quantity,
		Portions:            l.Portions,
		Plates:              l.Plates,
		SpecialInstructions: notes,
	}
}

type addToCartRequest struct {
	MealID string `json:"meal_id" validate:"required,uuid"`
	cartLine
}

func (p addToCartRequest) toInput() cartsvc.UpsertItemInput {
	line := p.toUpdate()
	return cartsvc.UpsertItemInput{
		MealID:              uuid.MustParse(p.MealID),
		Quantity:            line.Quantity,
		Portions:            line.Portions,
		Plates:              line.Plates,
		SpecialInstructions: line.SpecialInstructions,
	}
}

// CartGet returns the caller's cart, creating an empty one on first access.
func CartGet(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "cart", svc != nil, func(rp *reply, r *http.Request) error {
		userID, err := requireUser(r)
		if err != nil {
			return err
		}
		snapshot, err := svc.Get(rp.ctx, userID)
		if err != nil {
			return err
		}
		return rp.ok(snapshot)
	})
}

// CartUpsertItem adds a meal to the cart or overwrites the existing line for it.
func CartUpsertItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "cart", svc != nil, func(rp *reply, r *http.Request) error {
		userID, err := requireUser(r)
		if err != nil {
			return err
		}
		var body addToCartRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return err
		}
		snapshot, err := svc.UpsertItem(rp.ctx, userID, body.toInput())
		if err != nil {
			return err
		}
		return rp.created(snapshot)
	})
}

func CartUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "cart", svc != nil, func(rp *reply, r *http.Request) error {
		userID, itemID, err := userAndPath(r, "itemId")
		if err != nil {
			return err
		}
		var body cartLine
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return err
		}
		snapshot, err := svc.UpdateItem(rp.ctx, userID, itemID, body.toUpdate())
		if err != nil {
			return err
		}
		return rp.ok(snapshot)
	})
}

func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "cart", svc != nil, func(rp *reply, r *http.Request) error {
		userID, itemID, err := userAndPath(r, "itemId")
		if err != nil {
			return err
		}
		snapshot, err := svc.RemoveItem(rp.ctx, userID, itemID)
		if err != nil {
			return err
		}
		return rp.ok(snapshot)
	})
}
