package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/abubuhammad/georgy-marketplace-backend/api/routes"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/commission"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/ledger"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/orders"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/payments"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/payouts"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/refunds"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/shipments"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/config"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/logger"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/migrate"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/outbox"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/redis"
)

// shipmentBridge breaks the construction cycle between the order and
// shipment services: orders open shipments, delivered shipments close
// orders. The bridge is handed to the order service empty and bound once
// the shipment service exists.
type shipmentBridge struct {
	svc shipments.Service
}

func (b *shipmentBridge) CreateForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	return b.svc.CreateForOrder(ctx, tx, order)
}

func (b *shipmentBridge) CancelForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	return b.svc.CancelForOrder(ctx, tx, order)
}

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

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	commissionSvc, err := commission.NewService(commission.NewRepository(dbClient.DB()), cfg.Settlement.FallbackPlatformPercentage)
	if err != nil {
		logg.Error(context.Background(), "failed to create commission service", err)
		os.Exit(1)
	}

	paymentsSvc, err := payments.NewService(payments.NewRepository(dbClient.DB()), ledgerSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	bridge := &shipmentBridge{}
	ordersSvc, err := orders.NewService(orders.NewRepository(dbClient.DB()), dbClient, commissionSvc, paymentsSvc, bridge, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	shipmentsSvc, err := shipments.NewService(shipments.NewRepository(dbClient.DB()), dbClient, ledgerSvc, ordersSvc, outboxSvc, cfg.Settlement.AgentCommissionRate)
	if err != nil {
		logg.Error(context.Background(), "failed to create shipments service", err)
		os.Exit(1)
	}
	bridge.svc = shipmentsSvc

	refundsSvc, err := refunds.NewService(refunds.NewRepository(dbClient.DB()), dbClient, paymentsSvc, ordersSvc, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create refunds service", err)
		os.Exit(1)
	}

	payoutsSvc, err := payouts.NewService(payouts.NewRepository(dbClient.DB()), dbClient, ledgerSvc, outboxSvc, payouts.SimulatedProvider{}, cfg.Settlement.PayoutMaxRetries)
	if err != nil {
		logg.Error(context.Background(), "failed to create payouts service", err)
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
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, ordersSvc, shipmentsSvc, refundsSvc, payoutsSvc, commissionSvc),
	}

	shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	go func() {
		<-shutdownCtx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "error draining api server", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shut down gracefully")
}
