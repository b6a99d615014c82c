package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodapp-backend/pkg/db/models"
	"github.com/angelmondragon/foodapp-backend/pkg/enums"
	"github.com/angelmondragon/foodapp-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// DefaultMeal is a menu entry restored by Seed and ResetMeals.
type DefaultMeal struct {
	Name        string
	Description string
	Price       decimal.Decimal
	ImageURL    string
}

const (
	imageRice    = "https://images.unsplash.com/photo-1603133872878-684f208fb84b?w=800&h=600&fit=crop"
	imageSwallow = "https://images.unsplash.com/photo-1565299624946-b28f40a0ca4b?w=800&h=600&fit=crop"
	imageBeans   = "https://images.unsplash.com/photo-1546069901-ba9599a7e63c?w=800&h=600&fit=crop"
)

// DefaultMenu is the stock menu.
var DefaultMenu = []DefaultMeal{
	{Name: "Jollof Rice", Description: "Delicious Nigerian-style jollof rice with chicken and vegetables", Price: decimal.NewFromInt(2500), ImageURL: imageRice},
	{Name: "Fried Rice", Description: "Special fried rice with mixed vegetables and choice of protein", Price: decimal.NewFromInt(2500), ImageURL: imageRice},
	{Name: "Pounded Yam", Description: "Smooth pounded yam served with egusi soup", Price: decimal.NewFromInt(3000), ImageURL: imageSwallow},
	{Name: "Amala", Description: "Traditional amala served with ewedu and gbegiri soup", Price: decimal.NewFromInt(2500), ImageURL: imageSwallow},
	{Name: "Eba", Description: "Fresh eba served with okro soup", Price: decimal.NewFromInt(2000), ImageURL: imageSwallow},
	{Name: "Semo", Description: "Smooth semo served with egusi soup", Price: decimal.NewFromInt(2000), ImageURL: imageSwallow},
	{Name: "Fufu", Description: "Fresh fufu served with light soup", Price: decimal.NewFromInt(2500), ImageURL: imageSwallow},
	{Name: "Beans", Description: "Well-cooked beans with plantain", Price: decimal.NewFromInt(1500), ImageURL: imageBeans},
	{Name: "Yam Porridge", Description: "Delicious yam porridge with fish", Price: decimal.NewFromInt(2000), ImageURL: imageSwallow},
	{Name: "Rice and Beans", Description: "Special rice and beans with plantain", Price: decimal.NewFromInt(2000), ImageURL: imageRice},
}

// DefaultDeliveryFees prices each delivery option.
var DefaultDeliveryFees = map[enums.DeliveryTypeName]decimal.Decimal{
	enums.DeliveryTypeRegular: decimal.NewFromInt(500),
	enums.DeliveryTypeExpress: decimal.NewFromInt(1000),
}

// SeedResult counts what a seed run touched.
type SeedResult struct {
	DeliveryTypes int
	Locations     int
	Meals         int
	Retired       int64
}

// Seeder idempotently installs reference data.
type Seeder struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
}

func NewSeeder(repo Repository, tx txRunner, logg *logger.Logger) (*Seeder, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &Seeder{repo: repo, tx: tx, logg: logg}, nil
}

// Seed ensures delivery types, locations and the default menu exist. Existing
// rows are updated in place so reruns are safe.
func (s *Seeder) Seed(ctx context.Context) (SeedResult, error) {
	var res SeedResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		if res.DeliveryTypes, err = seedDeliveryTypes(ctx, repo); err != nil {
			return err
		}
		if res.Locations, err = seedLocations(ctx, repo); err != nil {
			return err
		}
		res.Meals, err = restoreMenu(ctx, repo)
		return err
	})
	if err != nil {
		return SeedResult{}, err
	}
	s.log(ctx, "catalog seeded", res)
	return res, nil
}

// ResetMeals retires every meal and then restores the default menu. Meals are
// never deleted because order items reference them.
func (s *Seeder) ResetMeals(ctx context.Context) (SeedResult, error) {
	var res SeedResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		if res.Retired, err = repo.MarkAllMealsUnavailable(ctx); err != nil {
			return fmt.Errorf("retire meals: %w", err)
		}
		res.Meals, err = restoreMenu(ctx, repo)
		return err
	})
	if err != nil {
		return SeedResult{}, err
	}
	s.log(ctx, "meals reset", res)
	return res, nil
}

func (s *Seeder) log(ctx context.Context, msg string, res SeedResult) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"delivery_types": res.DeliveryTypes,
		"locations":      res.Locations,
		"meals":          res.Meals,
		"retired":        res.Retired,
	})
	s.logg.Info(ctx, msg)
}

func seedDeliveryTypes(ctx context.Context, repo Repository) (int, error) {
	names := enums.DeliveryTypeNames()
	for _, name := range names {
		dt, err := repo.FindDeliveryTypeByName(ctx, name)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("load delivery type %s: %w", name, err)
		}
		if dt == nil {
			dt = &models.DeliveryType{Name: name}
		}
		dt.Price = DefaultDeliveryFees[name]
		if err := repo.SaveDeliveryType(ctx, dt); err != nil {
			return 0, fmt.Errorf("save delivery type %s: %w", name, err)
		}
	}
	return len(names), nil
}

func seedLocations(ctx context.Context, repo Repository) (int, error) {
	names := enums.LocationNames()
	for _, name := range names {
		_, err := repo.FindLocationByName(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("load location %s: %w", name, err)
		}
		if err := repo.SaveLocation(ctx, &models.Location{Name: name}); err != nil {
			return 0, fmt.Errorf("save location %s: %w", name, err)
		}
	}
	return len(names), nil
}

func restoreMenu(ctx context.Context, repo Repository) (int, error) {
	for _, d := range DefaultMenu {
		meal, err := repo.FindMealByName(ctx, d.Name)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("load meal %s: %w", d.Name, err)
		}
		if meal == nil {
			meal = &models.Meal{Name: d.Name}
		}
		image := d.ImageURL
		meal.Description = d.Description
		meal.Price = d.Price
		meal.ImageURL = &image
		meal.IsAvailable = true
		if err := repo.SaveMeal(ctx, meal); err != nil {
			return 0, fmt.Errorf("save meal %s: %w", d.Name, err)
		}
	}
	return len(DefaultMenu), nil
}
