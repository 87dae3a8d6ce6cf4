package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/minhtran-dev/savora-backend/api/controllers"
	"github.com/minhtran-dev/savora-backend/api/middleware"
	cartsvc "github.com/minhtran-dev/savora-backend/internal/carts"
	catalogsvc "github.com/minhtran-dev/savora-backend/internal/catalog"
	discountsvc "github.com/minhtran-dev/savora-backend/internal/discounts"
	ordersvc "github.com/minhtran-dev/savora-backend/internal/orders"
	"github.com/minhtran-dev/savora-backend/pkg/config"
	"github.com/minhtran-dev/savora-backend/pkg/db"
	"github.com/minhtran-dev/savora-backend/pkg/enums"
	"github.com/minhtran-dev/savora-backend/pkg/logger"
	"github.com/minhtran-dev/savora-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	discountService discountsvc.Service,
	catalogService catalogsvc.Service,
	orderService ordersvc.Service,
	cartService cartsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	manageCatalog := middleware.RequireRole(logg, enums.ActorRoleAdmin, enums.ActorRoleBranchManager)
	manageOrders := middleware.RequireRole(logg, enums.ActorRoleAdmin, enums.ActorRoleBranchManager, enums.ActorRoleStaff)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/discounts", func(r chi.Router) {
			r.Get("/", controllers.ListDiscounts(discountService, logg))
			r.Get("/{discountId}", controllers.GetDiscount(discountService, logg))
			r.Group(func(r chi.Router) {
				r.Use(manageCatalog)
				r.Post("/", controllers.CreateDiscount(discountService, logg))
				r.Patch("/{discountId}", controllers.UpdateDiscount(discountService, logg))
				r.Delete("/{discountId}", controllers.DeleteDiscount(discountService, logg))
				r.Post("/{discountId}/apply", controllers.ApplyDiscount(discountService, logg))
			})
		})

		r.Route("/dishes", func(r chi.Router) {
			r.Get("/", controllers.ListDishes(catalogService, logg))
			r.Get("/{dishId}", controllers.GetDish(catalogService, logg))
			r.Group(func(r chi.Router) {
				r.Use(manageCatalog)
				r.Post("/", controllers.CreateDish(catalogService, logg))
				r.Patch("/{dishId}", controllers.UpdateDish(catalogService, logg))
				r.Delete("/{dishId}", controllers.DeleteDish(catalogService, logg))
				r.Put("/{dishId}/availability", controllers.SetDishAvailability(catalogService, logg))
			})
		})

		r.Route("/combos", func(r chi.Router) {
			r.Get("/", controllers.ListCombos(catalogService, logg))
			r.Get("/{comboId}", controllers.GetCombo(catalogService, logg))
			r.Group(func(r chi.Router) {
				r.Use(manageCatalog)
				r.Post("/", controllers.CreateCombo(catalogService, logg))
				r.Patch("/{comboId}", controllers.UpdateCombo(catalogService, logg))
				r.Delete("/{comboId}", controllers.DeleteCombo(catalogService, logg))
				r.Put("/{comboId}/items", controllers.ReplaceComboItems(catalogService, logg))
				r.Put("/{comboId}/availability", controllers.SetComboAvailability(catalogService, logg))
				r.Delete("/{comboId}/availability", controllers.ResetComboAvailability(catalogService, logg))
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(orderService, logg))
			r.Post("/", controllers.CreateOrder(orderService, logg))
			r.Get("/{orderId}", controllers.GetOrder(orderService, logg))
			r.Get("/{orderId}/total", controllers.GetOrderTotal(orderService, logg))
			r.Post("/{orderId}/items", controllers.AddOrderItem(orderService, logg))
			r.Patch("/{orderId}/items/{itemId}", controllers.UpdateOrderItem(orderService, logg))
			r.Delete("/{orderId}/items/{itemId}", controllers.RemoveOrderItem(orderService, logg))
			r.Group(func(r chi.Router) {
				r.Use(manageOrders)
				r.Put("/{orderId}/status", controllers.SetOrderStatus(orderService, logg))
				r.Put("/{orderId}/items/{itemId}/status", controllers.SetOrderItemStatus(orderService, logg))
			})
		})

		r.Route("/carts", func(r chi.Router) {
			r.Get("/", controllers.GetCart(cartService, logg))
			r.Post("/items", controllers.AddCartItem(cartService, logg))
			r.Patch("/{cartId}/items/{itemId}", controllers.UpdateCartItem(cartService, logg))
			r.Delete("/{cartId}/items/{itemId}", controllers.RemoveCartItem(cartService, logg))
			r.Post("/{cartId}/convert", controllers.ConvertCart(cartService, logg))
		})
	})

	return r
}
