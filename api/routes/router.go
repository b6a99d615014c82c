package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/foodapp-backend/api/controllers"
	"github.com/angelmondragon/foodapp-backend/api/middleware"
	"github.com/angelmondragon/foodapp-backend/internal/cart"
	"github.com/angelmondragon/foodapp-backend/internal/catalog"
	checkoutsvc "github.com/angelmondragon/foodapp-backend/internal/checkout"
	"github.com/angelmondragon/foodapp-backend/internal/orders"
	"github.com/angelmondragon/foodapp-backend/pkg/config"
	"github.com/angelmondragon/foodapp-backend/pkg/db"
	"github.com/angelmondragon/foodapp-backend/pkg/enums"
	"github.com/angelmondragon/foodapp-backend/pkg/logger"
	"github.com/angelmondragon/foodapp-backend/pkg/metrics"
	"github.com/angelmondragon/foodapp-backend/pkg/redis"
)

// redisStore is the slice of the redis client the HTTP layer depends on.
type redisStore interface {
	redis.IdempotencyStore
	redis.RateLimiter
	Ping(context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient redisStore,
	httpMetrics *metrics.HTTPMetrics,
	metricsHandler http.Handler,
	catalogService catalog.Service,
	cartService cart.Service,
	checkoutService checkoutsvc.Service,
	ordersService orders.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	cartPolicy := middleware.NewRateLimitPolicy("cart", cfg.RateLimit.Window, cfg.RateLimit.CartLimit)
	checkoutPolicy := middleware.NewRateLimitPolicy("checkout", cfg.RateLimit.Window, cfg.RateLimit.CheckoutLimit)

	var (
		cartLimit     = middleware.RateLimit(cartPolicy, redisClient, logg)
		checkoutLimit = middleware.RateLimit(checkoutPolicy, redisClient, logg)

		checkoutOnce   = middleware.Idempotency(redisClient, logg, middleware.CheckoutIdempotency)
		paymentOnce    = middleware.Idempotency(redisClient, logg, middleware.PaymentIdempotency)
		transitionOnce = middleware.Idempotency(redisClient, logg, middleware.TransitionIdempotency)
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    redisClient,
		}))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/meals", controllers.MealsList(catalogService, logg))
		r.Get("/meals/{mealId}", controllers.MealGet(catalogService, logg))
		r.Get("/delivery-types", controllers.DeliveryTypesList(catalogService, logg))
		r.Get("/delivery-types/{deliveryTypeId}", controllers.DeliveryTypeGet(catalogService, logg))
		r.Get("/locations", controllers.LocationsList(catalogService, logg))
		r.Get("/locations/{locationId}", controllers.LocationGet(catalogService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Get("/cart", controllers.CartGet(cartService, logg))
			r.With(cartLimit).Post("/cart", controllers.CartUpsertItem(cartService, logg))
			r.With(cartLimit).Patch("/cart/{itemId}", controllers.CartUpdateItem(cartService, logg))
			r.With(cartLimit).Delete("/cart/{itemId}", controllers.CartRemoveItem(cartService, logg))

			r.Get("/orders", controllers.OrdersList(ordersService, logg))
			r.With(checkoutLimit, checkoutOnce).Post("/orders", controllers.OrderCheckout(checkoutService, logg))
			r.Get("/orders/{orderId}", controllers.OrderGet(ordersService, logg))
			r.With(paymentOnce).Post("/orders/{orderId}/confirm_payment", controllers.OrderConfirmPayment(ordersService, logg))
			r.With(transitionOnce).Post("/orders/{orderId}/cancel", controllers.OrderCancel(ordersService, logg))

			r.With(
				middleware.RequireRoles(logg, enums.MemberRoleStaff, enums.MemberRoleAdmin),
				transitionOnce,
			).Post("/staff/orders/{orderId}/status", controllers.StaffOrderStatus(ordersService, logg))
		})
	})

	return r
}
