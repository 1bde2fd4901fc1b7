package payouts

import (
	"context"
	"fmt"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
)

// SimulatedProvider is a deterministic stand-in for the real transfer rail.
// It accepts every payout and derives the reference from the payout id, so
// replays produce the same reference.
type SimulatedProvider struct{}

func (SimulatedProvider) SendPayout(_ context.Context, payout *models.Payout) (string, error) {
	return fmt.Sprintf("SIM-PO-%s", payout.ID), nil
}
