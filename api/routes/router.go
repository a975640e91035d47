package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/microcopias/copirent-backend/api/controllers"
	"github.com/microcopias/copirent-backend/api/middleware"
	"github.com/microcopias/copirent-backend/internal/audit"
	"github.com/microcopias/copirent-backend/internal/auth"
	"github.com/microcopias/copirent-backend/internal/orders"
	"github.com/microcopias/copirent-backend/internal/payments"
	"github.com/microcopias/copirent-backend/internal/rentals"
	"github.com/microcopias/copirent-backend/internal/reports"
	"github.com/microcopias/copirent-backend/pkg/config"
	"github.com/microcopias/copirent-backend/pkg/db"
	"github.com/microcopias/copirent-backend/pkg/enums"
	"github.com/microcopias/copirent-backend/pkg/logger"
	"github.com/microcopias/copirent-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	authService auth.Service,
	ordersService orders.Service,
	rentalsService rentals.Service,
	paymentsService payments.Service,
	reportsService reports.Service,
	auditService audit.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.Checkout.Window,
		cfg.Checkout.IPLimit,
		cfg.Checkout.EmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())

		r.Group(func(r chi.Router) {
			r.Use(middleware.Idempotency(redisClient, logg))
			r.With(middleware.RateLimit(checkoutPolicy, redisClient, logg)).
				Post("/checkout", controllers.Checkout(ordersService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/auth/login", controllers.AdminLogin(authService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWT, logg))
				r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
				r.Use(middleware.Idempotency(redisClient, logg))

				r.Get("/ping", controllers.AdminPing())

				r.Route("/orders", func(r chi.Router) {
					r.Get("/", controllers.AdminListOrders(ordersService, logg))
					r.Get("/{orderId}", controllers.AdminOrderDetail(ordersService, logg))
					r.Put("/{orderId}", controllers.AdminUpdateOrder(ordersService, logg))
					r.Get("/{orderId}/identity", controllers.AdminRevealOrderIdentity(ordersService, logg))
				})

				r.Route("/rentals", func(r chi.Router) {
					r.Post("/", controllers.AdminCreateRental(rentalsService, logg))
					r.Get("/", controllers.AdminListRentals(rentalsService, logg))
					r.Get("/{rentalId}", controllers.AdminRentalDetail(rentalsService, logg))
					r.Put("/{rentalId}", controllers.AdminUpdateRental(rentalsService, logg))
					r.Post("/{rentalId}/end", controllers.AdminEndRental(rentalsService, logg))
					r.Post("/{rentalId}/reopen", controllers.AdminReopenRental(rentalsService, logg))
					r.Get("/{rentalId}/identity", controllers.AdminRevealRentalIdentity(rentalsService, logg))

					r.Route("/{rentalId}/payments", func(r chi.Router) {
						r.Post("/", controllers.AdminCreatePayment(paymentsService, logg))
						r.Get("/", controllers.AdminListPayments(paymentsService, logg))
						r.Put("/{paymentId}", controllers.AdminUpdatePayment(paymentsService, logg))
						r.Delete("/{paymentId}", controllers.AdminDeletePayment(paymentsService, logg))
					})
				})

				r.Route("/reports", func(r chi.Router) {
					r.Get("/overview", controllers.AdminReportsOverview(reportsService, logg))
					r.Get("/dashboard", controllers.AdminReportsDashboard(reportsService, logg))
				})

				r.Get("/access-logs", controllers.AdminAccessLogs(auditService, logg))
			})
		})
	})

	return r
}
