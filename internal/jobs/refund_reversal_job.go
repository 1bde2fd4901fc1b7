package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/logger"
)

// refundCompleter is the slice of the refund service this job drives.
type refundCompleter interface {
	ListApproved(ctx context.Context, limit int) ([]models.Refund, error)
	Complete(ctx context.Context, refundID uuid.UUID, providerRef string) (*models.Refund, error)
}

// RefundReverser confirms the money reversal with the payment provider.
// An approved refund stays approved until this confirmation lands.
type RefundReverser interface {
	ReverseRefund(ctx context.Context, refund *models.Refund) (string, error)
}

// SimulatedRefundReverser is a deterministic stand-in for the real provider.
type SimulatedRefundReverser struct{}

func (SimulatedRefundReverser) ReverseRefund(_ context.Context, refund *models.Refund) (string, error) {
	return fmt.Sprintf("SIM-RF-%s", refund.ID), nil
}

// RefundReversalJobParams configure the refund reversal job.
type RefundReversalJobParams struct {
	Logger    *logger.Logger
	Refunds   refundCompleter
	Reverser  RefundReverser
	BatchSize int
}

// NewRefundReversalJob builds the job that completes approved refunds once
// the provider confirms the reversal.
func NewRefundReversalJob(params RefundReversalJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Refunds == nil {
		return nil, fmt.Errorf("refund service required")
	}
	if params.Reverser == nil {
		return nil, fmt.Errorf("refund reverser required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	return &refundReversalJob{
		logg:      params.Logger,
		refunds:   params.Refunds,
		reverser:  params.Reverser,
		batchSize: batchSize,
	}, nil
}

type refundReversalJob struct {
	logg      *logger.Logger
	refunds   refundCompleter
	reverser  RefundReverser
	batchSize int
}

func (j *refundReversalJob) Name() string { return "refund-reversal" }

// Run confirms one batch of approved refunds. Per-refund failures are
// collected; the refund stays approved and is retried on the next cycle.
func (j *refundReversalJob) Run(ctx context.Context) error {
	approved, err := j.refunds.ListApproved(ctx, j.batchSize)
	if err != nil {
		return fmt.Errorf("list approved refunds: %w", err)
	}

	var errs []error
	completed := 0
	for i := range approved {
		providerRef, err := j.reverser.ReverseRefund(ctx, &approved[i])
		if err != nil {
			errs = append(errs, fmt.Errorf("reverse refund %s: %w", approved[i].ID, err))
			continue
		}
		if _, err := j.refunds.Complete(ctx, approved[i].ID, providerRef); err != nil {
			errs = append(errs, fmt.Errorf("complete refund %s: %w", approved[i].ID, err))
			continue
		}
		completed++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"approved":  len(approved),
		"completed": completed,
		"failed":    len(errs),
	})
	j.logg.Info(logCtx, "refund reversal loop complete")
	return multierr.Combine(errs...)
}
