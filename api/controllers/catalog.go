package controllers

import (
	"net/http"

	"github.com/angelmondragon/foodapp-backend/api/validators"
	"github.com/angelmondragon/foodapp-backend/internal/catalog"
	"github.com/angelmondragon/foodapp-backend/pkg/logger"
)

const maxSearchLen = 100

// MealsList returns available meals, optionally filtered by ?search=.
func MealsList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "catalog", svc != nil, func(rp *reply, r *http.Request) error {
		search, err := validators.ParseQueryString(r, "search", maxSearchLen)
		if err != nil {
			return err
		}
		meals, err := svc.ListMeals(rp.ctx, search)
		if err != nil {
			return err
		}
		return rp.ok(meals)
	})
}

func MealGet(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "catalog", svc != nil, func(rp *reply, r *http.Request) error {
		id, err := validators.ParsePathUUID(r, "mealId")
		if err != nil {
			return err
		}
		meal, err := svc.GetMeal(rp.ctx, id)
		if err != nil {
			return err
		}
		return rp.ok(meal)
	})
}

func DeliveryTypesList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "catalog", svc != nil, func(rp *reply, _ *http.Request) error {
		list, err := svc.ListDeliveryTypes(rp.ctx)
		if err != nil {
			return err
		}
		return rp.ok(list)
	})
}

func DeliveryTypeGet(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "catalog", svc != nil, func(rp *reply, r *http.Request) error {
		id, err := validators.ParsePathUUID(r, "deliveryTypeId")
		if err != nil {
			return err
		}
		dt, err := svc.GetDeliveryType(rp.ctx, id)
		if err != nil {
			return err
		}
		return rp.ok(dt)
	})
}

func LocationsList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "catalog", svc != nil, func(rp *reply, _ *http.Request) error {
		locations, err := svc.ListLocations(rp.ctx)
		if err != nil {
			return err
		}
		return rp.ok(locations)
	})
}

func LocationGet(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(logg, "catalog", svc != nil, func(rp *reply, r *http.Request) error {
		id, err := validators.ParsePathUUID(r, "locationId")
		if err != nil {
			return err
		}
		loc, err := svc.GetLocation(rp.ctx, id)
		if err != nil {
			return err
		}
		return rp.ok(loc)
	})
}
