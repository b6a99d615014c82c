package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/foodapp-backend/pkg/errors"
)

// Service exposes the public, read-only catalog.
type Service interface {
	ListMeals(ctx context.Context, search string) ([]MealDTO, error)
	GetMeal(ctx context.Context, id uuid.UUID) (*MealDTO, error)
	ListDeliveryTypes(ctx context.Context) ([]DeliveryTypeDTO, error)
	GetDeliveryType(ctx context.Context, id uuid.UUID) (*DeliveryTypeDTO, error)
	ListLocations(ctx context.Context) ([]LocationDTO, error)
	GetLocation(ctx context.Context, id uuid.UUID) (*LocationDTO, error)
}

type service struct {
	repo Repository
}

// NewService builds the catalog service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListMeals(ctx context.Context, search string) ([]MealDTO, error) {
	rows, err := s.repo.ListAvailableMeals(ctx, search)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list meals")
	}
	out := make([]MealDTO, 0, len(rows))
	for _, m := range rows {
		out = append(out, NewMealDTO(m))
	}
	return out, nil
}

func (s *service) GetMeal(ctx context.Context, id uuid.UUID) (*MealDTO, error) {
	meal, err := s.repo.FindMeal(ctx, id)
	if err != nil {
		return nil, lookupError(err, "meal not found", "load meal")
	}
	if !meal.IsAvailable {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "meal not found")
	}
	dto := NewMealDTO(*meal)
	return &dto, nil
}

func (s *service) ListDeliveryTypes(ctx context.Context) ([]DeliveryTypeDTO, error) {
	rows, err := s.repo.ListDeliveryTypes(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivery types")
	}
	out := make([]DeliveryTypeDTO, 0, len(rows))
	for _, d := range rows {
		out = append(out, NewDeliveryTypeDTO(d))
	}
	return out, nil
}

func (s *service) GetDeliveryType(ctx context.Context, id uuid.UUID) (*DeliveryTypeDTO, error) {
	dt, err := s.repo.FindDeliveryType(ctx, id)
	if err != nil {
		return nil, lookupError(err, "delivery type not found", "load delivery type")
	}
	dto := NewDeliveryTypeDTO(*dt)
	return &dto, nil
}

func (s *service) ListLocations(ctx context.Context) ([]LocationDTO, error) {
	rows, err := s.repo.ListLocations(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list locations")
	}
	out := make([]LocationDTO, 0, len(rows))
	for _, l := range rows {
		out = append(out, NewLocationDTO(l))
	}
	return out, nil
}

func (s *service) GetLocation(ctx context.Context, id uuid.UUID) (*LocationDTO, error) {
	loc, err := s.repo.FindLocation(ctx, id)
	if err != nil {
		return nil, lookupError(err, "location not found", "load location")
	}
	dto := NewLocationDTO(*loc)
	return &dto, nil
}

func lookupError(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
