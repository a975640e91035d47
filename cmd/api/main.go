package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/microcopias/copirent-backend/api/routes"
	"github.com/microcopias/copirent-backend/internal/audit"
	"github.com/microcopias/copirent-backend/internal/auth"
	"github.com/microcopias/copirent-backend/internal/notifications"
	"github.com/microcopias/copirent-backend/internal/orders"
	"github.com/microcopias/copirent-backend/internal/payments"
	"github.com/microcopias/copirent-backend/internal/products"
	"github.com/microcopias/copirent-backend/internal/rentals"
	"github.com/microcopias/copirent-backend/internal/reports"
	"github.com/microcopias/copirent-backend/pkg/config"
	"github.com/microcopias/copirent-backend/pkg/db"
	"github.com/microcopias/copirent-backend/pkg/logger"
	"github.com/microcopias/copirent-backend/pkg/metrics"
	"github.com/microcopias/copirent-backend/pkg/migrate"
	"github.com/microcopias/copirent-backend/pkg/redis"
	"github.com/microcopias/copirent-backend/pkg/security"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	cipher, err := security.NewPIICipher(cfg.PII.Secret)
	if err != nil {
		logg.Error(context.Background(), "failed to build pii cipher", err)
		os.Exit(1)
	}

	core := metrics.NewCoreMetrics(prometheus.DefaultRegisterer)
	sender := notifications.NewSMTPSender(cfg.SMTP)

	gormDB := dbClient.DB()

	auditService, err := audit.NewService(audit.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.NewRepository(gormDB), cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	rentalsService, err := rentals.NewService(
		rentals.NewRepository(gormDB),
		dbClient,
		cipher,
		auditService,
		core,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create rentals service", err)
		os.Exit(1)
	}

	catalog, err := products.NewLookup(products.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog lookup", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(
		orders.NewRepository(gormDB),
		dbClient,
		cipher,
		authService,
		catalog,
		rentalsService,
		auditService,
		sender,
		core,
		logg,
		cfg.Billing,
		cfg.SMTP.AdminTo,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.NewRepository(gormDB), dbClient, sender, core, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	reportsService, err := reports.NewService(reports.NewRepository(gormDB), redisClient, cfg.Reports.CacheTTL, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reports service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			authService,
			ordersService,
			rentalsService,
			paymentsService,
			reportsService,
			auditService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
