package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/logger"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/metrics"
)

// payoutProcessor is the slice of the payout service this job drives.
type payoutProcessor interface {
	ListScheduled(ctx context.Context, limit int) ([]models.Payout, error)
	Process(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error)
}

// PayoutProcessingJobParams configure the payout processing job.
type PayoutProcessingJobParams struct {
	Logger    *logger.Logger
	Payouts   payoutProcessor
	Metrics   *metrics.JobMetrics
	BatchSize int
}

// NewPayoutProcessingJob builds the job that pushes scheduled payouts
// through the provider.
func NewPayoutProcessingJob(params PayoutProcessingJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout service required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	return &payoutProcessingJob{
		logg:      params.Logger,
		payouts:   params.Payouts,
		metrics:   params.Metrics,
		batchSize: batchSize,
	}, nil
}

type payoutProcessingJob struct {
	logg      *logger.Logger
	payouts   payoutProcessor
	metrics   *metrics.JobMetrics
	batchSize int
}

func (j *payoutProcessingJob) Name() string { return "payout-processing" }

// Run processes one batch of scheduled payouts. Failures are collected per
// payout so one broken transfer cannot stall the rest of the batch.
func (j *payoutProcessingJob) Run(ctx context.Context) error {
	scheduled, err := j.payouts.ListScheduled(ctx, j.batchSize)
	if err != nil {
		return fmt.Errorf("list scheduled payouts: %w", err)
	}

	var errs []error
	processed := 0
	for _, payout := range scheduled {
		result, err := j.payouts.Process(ctx, payout.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("process payout %s: %w", payout.ID, err))
			continue
		}
		processed++
		if result.Status == enums.PayoutStatusCompleted {
			j.metrics.AddPayoutCents(result.Status.String(), result.TotalCents)
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scheduled": len(scheduled),
		"processed": processed,
		"failed":    len(errs),
	})
	j.logg.Info(logCtx, "payout processing loop complete")
	return multierr.Combine(errs...)
}
