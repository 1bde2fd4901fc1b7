package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/abubuhammad/georgy-marketplace-backend/api/controllers"
	"github.com/abubuhammad/georgy-marketplace-backend/api/middleware"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/commission"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/orders"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/payouts"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/refunds"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/shipments"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/config"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/logger"
	pkgredis "github.com/abubuhammad/georgy-marketplace-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *pkgredis.Client,
	ordersSvc orders.Service,
	shipmentsSvc shipments.Service,
	refundsSvc refunds.Service,
	payoutsSvc payouts.Service,
	commissionSvc commission.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	var redisP pkgredis.Pinger
	var idemStore pkgredis.IdempotencyStore
	if redisClient != nil {
		redisP = redisClient
		idemStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(logg))
		r.Use(middleware.RequireActor(logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RequireRole(logg, enums.ActorRoleBuyer)).
				Post("/", controllers.CreateOrder(ordersSvc, logg))
			r.Get("/", controllers.ListOrders(ordersSvc, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersSvc, logg))
			r.With(middleware.RequireRole(logg, enums.ActorRoleSeller, enums.ActorRoleAdmin)).
				Post("/{orderId}/status", controllers.UpdateOrderStatus(ordersSvc, logg))
			r.With(middleware.RequireRole(logg, enums.ActorRoleBuyer)).
				Post("/{orderId}/cancel", controllers.CancelOrder(ordersSvc, logg))
			r.With(middleware.RequireRole(logg, enums.ActorRoleBuyer)).
				Post("/{orderId}/refunds", controllers.RequestRefund(refundsSvc, logg))
		})

		r.Route("/refunds", func(r chi.Router) {
			r.Get("/{refundId}", controllers.RefundDetail(refundsSvc, logg))
			r.With(middleware.RequireRole(logg, enums.ActorRoleBuyer)).
				Post("/{refundId}/withdraw", controllers.WithdrawRefund(refundsSvc, logg))
		})

		r.Route("/shipments", func(r chi.Router) {
			r.Get("/{shipmentId}", controllers.ShipmentDetail(shipmentsSvc, logg))
		})

		r.Route("/agent/shipments", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleAgent))
			r.Post("/{shipmentId}/status", controllers.UpdateShipmentStatus(shipmentsSvc, logg))
		})

		r.Route("/agents", func(r chi.Router) {
			r.With(middleware.RequireRole(logg, enums.ActorRoleAgent, enums.ActorRoleAdmin)).
				Get("/{agentId}/balance", controllers.AgentBalance(shipmentsSvc, logg))
		})

		r.Route("/sellers", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleSeller, enums.ActorRoleAdmin))
			r.Get("/{sellerId}/balance", controllers.SellerBalance(payoutsSvc, logg))
			r.Get("/{sellerId}/payouts", controllers.ListSellerPayouts(payoutsSvc, logg))
			r.Post("/{sellerId}/payouts", controllers.RequestPayout(payoutsSvc, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))
			r.Post("/shipments/{shipmentId}/assign", controllers.AssignShipment(shipmentsSvc, logg))
			r.Post("/refunds/{refundId}/decision", controllers.DecideRefund(refundsSvc, logg))
			r.Post("/payouts/process", controllers.ProcessPayouts(payoutsSvc, logg))
			r.Route("/schemes", func(r chi.Router) {
				r.Get("/", controllers.ListSchemes(commissionSvc, logg))
				r.Post("/", controllers.CreateScheme(commissionSvc, logg))
			})
		})
	})

	return r
}
