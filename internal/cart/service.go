package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodapp-backend/internal/pricing"
	"github.com/angelmondragon/foodapp-backend/pkg/db"
	"github.com/angelmondragon/foodapp-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/foodapp-backend/pkg/errors"
)

const uniqueCartPerUser = "ux_carts_user"

// Service exposes cart operations scoped to one user.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*Snapshot, error)
	UpsertItem(ctx context.Context, userID uuid.UUID, input UpsertItemInput) (*Snapshot, error)
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, input UpdateItemInput) (*Snapshot, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*Snapshot, error)
}

// UpsertItemInput adds a meal or replaces the existing line for it. Nil
// multipliers default to 1.
type UpsertItemInput struct {
	MealID              uuid.UUID
	Quantity            *int
	Portions            *int
	Plates              *int
	SpecialInstructions *string
}

// UpdateItemInput changes only the supplied fields.
type UpdateItemInput struct {
	Quantity            *int
	Portions            *int
	Plates              *int
	SpecialInstructions *string
}

type service struct {
	repo  Repository
	tx    txRunner
	meals mealLookup
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, tx txRunner, meals mealLookup) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if meals == nil {
		return nil, fmt.Errorf("meal lookup required")
	}
	return &service{repo: repo, tx: tx, meals: meals}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	cart, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, s.repo, cart)
}

func (s *service) UpsertItem(ctx context.Context, userID uuid.UUID, input UpsertItemInput) (*Snapshot, error) {
	if input.MealID == uuid.Nil {
		return nil, validationError("meal_id", "meal_id is required")
	}
	item := models.CartItem{
		MealID:   input.MealID,
		Quantity: valueOrOne(input.Quantity),
		Portions: valueOrOne(input.Portions),
		Plates:   valueOrOne(input.Plates),
	}
	if input.SpecialInstructions != nil {
		item.SpecialInstructions = strings.TrimSpace(*input.SpecialInstructions)
	}
	if err := validateMultipliers(item); err != nil {
		return nil, err
	}

	meal, err := s.meals.FindMeal(ctx, input.MealID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, validationError("meal_id", "meal does not exist")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load meal")
	}
	if !meal.IsAvailable {
		return nil, validationError("meal_id", "meal is not available")
	}
	if err := checkLineTotal(meal, item); err != nil {
		return nil, err
	}

	cart, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	var out *Snapshot
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item.CartID = cart.ID
		if err := repo.UpsertItem(ctx, &item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert cart item")
		}
		if err := repo.Touch(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch cart")
		}
		var err error
		out, err = s.snapshot(ctx, repo, cart)
		return err
	})
	return out, err
}

func (s *service) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, input UpdateItemInput) (*Snapshot, error) {
	cart, err := s.findCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	var out *Snapshot
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItem(ctx, cart.ID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		if input.Quantity != nil {
			item.Quantity = *input.Quantity
		}
		if input.Portions != nil {
			item.Portions = *input.Portions
		}
		if input.Plates != nil {
			item.Plates = *input.Plates
		}
		if input.SpecialInstructions != nil {
			item.SpecialInstructions = strings.TrimSpace(*input.SpecialInstructions)
		}
		if err := validateMultipliers(*item); err != nil {
			return err
		}
		if err := checkLineTotal(&item.Meal, *item); err != nil {
			return err
		}
		if err := repo.SaveItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		if err := repo.Touch(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch cart")
		}
		out, err = s.snapshot(ctx, repo, cart)
		return err
	})
	return out, err
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*Snapshot, error) {
	cart, err := s.findCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	var out *Snapshot
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		deleted, err := repo.DeleteItem(ctx, cart.ID, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
		}
		if deleted == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		if err := repo.Touch(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch cart")
		}
		out, err = s.snapshot(ctx, repo, cart)
		return err
	})
	return out, err
}

// getOrCreate lazily creates the user's cart. A concurrent creator that wins
// the unique index race is re-read instead of failing the request.
func (s *service) getOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	cart, err := s.repo.FindByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	cart = &models.Cart{UserID: userID}
	if err := s.repo.Create(ctx, cart); err != nil {
		if !db.IsUniqueViolation(err, uniqueCartPerUser) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
		}
		cart, err = s.repo.FindByUser(ctx, userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
		}
	}
	return cart, nil
}

// findCart resolves the caller's cart for item-level operations. A user with
// no cart cannot own the item, so absence is reported as a missing item.
func (s *service) findCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *service) snapshot(ctx context.Context, repo Repository, cart *models.Cart) (*Snapshot, error) {
	items, err := repo.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}
	return newSnapshot(cart, items), nil
}

func validateMultipliers(item models.CartItem) error {
	for _, f := range []struct {
		name  string
		value int
	}{
		{"quantity", item.Quantity},
		{"portions", item.Portions},
		{"plates", item.Plates},
	} {
		if f.value < 1 {
			return validationError(f.name, f.name+" must be at least 1")
		}
		if f.value > pricing.MaxMultiplier {
			return validationError(f.name, fmt.Sprintf("%s must be at most %d", f.name, pricing.MaxMultiplier))
		}
	}
	return nil
}

func checkLineTotal(meal *models.Meal, item models.CartItem) error {
	total := pricing.LineTotal(meal.Price, item.Quantity, item.Portions, item.Plates)
	if !pricing.Fits(total) {
		return validationError("quantity", "line total exceeds the maximum order amount")
	}
	return nil
}

func validationError(field, msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]string{"field": field})
}

func valueOrOne(v *int) int {
	if v == nil {
		return 1
	}
	return *v
}
