package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodapp-backend/pkg/db/models"
	"github.com/angelmondragon/foodapp-backend/pkg/enums"
)

// Repository is the persistence surface over meals and the delivery/location lookup tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListAvailableMeals(ctx context.Context, search string) ([]models.Meal, error)
	FindMeal(ctx context.Context, id uuid.UUID) (*models.Meal, error)
	FindMealByName(ctx context.Context, name string) (*models.Meal, error)
	SaveMeal(ctx context.Context, meal *models.Meal) error
	MarkAllMealsUnavailable(ctx context.Context) (int64, error)
	ListDeliveryTypes(ctx context.Context) ([]models.DeliveryType, error)
	FindDeliveryType(ctx context.Context, id uuid.UUID) (*models.DeliveryType, error)
	FindDeliveryTypeByName(ctx context.Context, name enums.DeliveryTypeName) (*models.DeliveryType, error)
	SaveDeliveryType(ctx context.Context, dt *models.DeliveryType) error
	ListLocations(ctx context.Context) ([]models.Location, error)
	FindLocation(ctx context.Context, id uuid.UUID) (*models.Location, error)
	FindLocationByName(ctx context.Context, name enums.LocationName) (*models.Location, error)
	SaveLocation(ctx context.Context, loc *models.Location) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the catalog repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListAvailableMeals(ctx context.Context, search string) ([]models.Meal, error) {
	q := r.db.WithContext(ctx).Where("is_available = ?", true)
	if term := strings.TrimSpace(search); term != "" {
		pattern := "%" + strings.ToLower(term) + "%"
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)", pattern, pattern)
	}
	var meals []models.Meal
	err := q.Order("name ASC").Order("id ASC").Find(&meals).Error
	return meals, err
}

func (r *repository) FindMeal(ctx context.Context, id uuid.UUID) (*models.Meal, error) {
	var meal models.Meal
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&meal).Error; err != nil {
		return nil, err
	}
	return &meal, nil
}

func (r *repository) FindMealByName(ctx context.Context, name string) (*models.Meal, error) {
	var meal models.Meal
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Order("created_at ASC").
		First(&meal).Error
	if err != nil {
		return nil, err
	}
	return &meal, nil
}

func (r *repository) SaveMeal(ctx context.Context, meal *models.Meal) error {
	return r.db.WithContext(ctx).Save(meal).Error
}

func (r *repository) MarkAllMealsUnavailable(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Meal{}).
		Where("is_available = ?", true).
		Update("is_available", false)
	return res.RowsAffected, res.Error
}

func (r *repository) ListDeliveryTypes(ctx context.Context) ([]models.DeliveryType, error) {
	var rows []models.DeliveryType
	err := r.db.WithContext(ctx).Order("price ASC").Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) FindDeliveryType(ctx context.Context, id uuid.UUID) (*models.DeliveryType, error) {
	var dt models.DeliveryType
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&dt).Error; err != nil {
		return nil, err
	}
	return &dt, nil
}

func (r *repository) FindDeliveryTypeByName(ctx context.Context, name enums.DeliveryTypeName) (*models.DeliveryType, error) {
	var dt models.DeliveryType
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&dt).Error; err != nil {
		return nil, err
	}
	return &dt, nil
}

func (r *repository) SaveDeliveryType(ctx context.Context, dt *models.DeliveryType) error {
	return r.db.WithContext(ctx).Save(dt).Error
}

func (r *repository) ListLocations(ctx context.Context) ([]models.Location, error) {
	var rows []models.Location
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) FindLocation(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	var loc models.Location
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&loc).Error; err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *repository) FindLocationByName(ctx context.Context, name enums.LocationName) (*models.Location, error) {
	var loc models.Location
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&loc).Error; err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *repository) SaveLocation(ctx context.Context, loc *models.Location) error {
	return r.db.WithContext(ctx).Save(loc).Error
}
