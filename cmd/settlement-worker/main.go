package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/abubuhammad/georgy-marketplace-backend/internal/jobs"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/ledger"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/orders"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/payments"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/payouts"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/refunds"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/config"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
	pkgerrors "github.com/abubuhammad/georgy-marketplace-backend/pkg/errors"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/logger"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/metrics"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/migrate"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/outbox"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/redis"
)

// orderGetter exposes read-only order lookups to the refund service without
// constructing the full order state machine in the worker process.
type orderGetter struct {
	repo orders.Repository
}

func (g orderGetter) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := g.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "settlement-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "settlement-worker"

	logg = logger.New(logger.Options{
		ServiceName: "settlement-worker",
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

	paymentsSvc, err := payments.NewService(payments.NewRepository(dbClient.DB()), ledgerSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	payoutsSvc, err := payouts.NewService(payouts.NewRepository(dbClient.DB()), dbClient, ledgerSvc, outboxSvc, payouts.SimulatedProvider{}, cfg.Settlement.PayoutMaxRetries)
	if err != nil {
		logg.Error(context.Background(), "failed to create payouts service", err)
		os.Exit(1)
	}

	// The worker only reads orders to validate refunds; the full order state
	// machine stays in the API process.
	ordersRepo := orders.NewRepository(dbClient.DB())
	refundsSvc, err := refunds.NewService(refunds.NewRepository(dbClient.DB()), dbClient, paymentsSvc, orderGetter{repo: ordersRepo}, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create refunds service", err)
		os.Exit(1)
	}

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)

	payoutJob, err := jobs.NewPayoutProcessingJob(jobs.PayoutProcessingJobParams{
		Logger:    logg,
		Payouts:   payoutsSvc,
		Metrics:   jobMetrics,
		BatchSize: cfg.Worker.BatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payout job", err)
		os.Exit(1)
	}

	refundJob, err := jobs.NewRefundReversalJob(jobs.RefundReversalJobParams{
		Logger:    logg,
		Refunds:   refundsSvc,
		Reverser:  jobs.SimulatedRefundReverser{},
		BatchSize: cfg.Worker.BatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create refund reversal job", err)
		os.Exit(1)
	}

	registry := jobs.NewRegistry()
	registry.Register(payoutJob)
	registry.Register(refundJob)

	lock, err := jobs.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), cfg.Worker.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create worker lock", err)
		os.Exit(1)
	}

	service, err := jobs.NewService(jobs.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Worker.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting settlement worker")

	metricsServer := &http.Server{
		Addr:    ":" + cfg.Worker.MetricsPort,
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "metrics server stopped unexpectedly", err)
		}
	}()
	defer func() {
		if err := metricsServer.Shutdown(context.Background()); err != nil {
			logg.Error(ctx, "error draining metrics server", err)
		}
	}()

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "settlement worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "settlement worker shutting down gracefully")
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("settlement-worker:%s", env)
}
