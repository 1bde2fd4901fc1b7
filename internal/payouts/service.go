package payouts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abubuhammad/georgy-marketplace-backend/internal/ledger"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
	pkgerrors "github.com/abubuhammad/georgy-marketplace-backend/pkg/errors"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Provider pushes a scheduled payout onto the external transfer rail and
// returns the provider's reference for the transfer.
type Provider interface {
	SendPayout(ctx context.Context, payout *models.Payout) (string, error)
}

// RequestInput opens a payout for a seller's settled earnings.
type RequestInput struct {
	SellerID    uuid.UUID
	AmountCents *int
	RequestedBy uuid.UUID
}

// BatchAction is the admin ruling applied to a batch of payouts.
type BatchAction string

const (
	BatchActionApprove BatchAction = "approve"
	BatchActionReject  BatchAction = "reject"
)

// BatchItemResult reports the outcome for one payout in a batch decision.
// Failures are isolated per item.
type BatchItemResult struct {
	PayoutID uuid.UUID          `json:"payout_id"`
	Status   enums.PayoutStatus `json:"status,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// PayoutEvent is the outbox payload shared by the payout lifecycle events.
type PayoutEvent struct {
	PayoutID      uuid.UUID          `json:"payout_id"`
	SellerID      uuid.UUID          `json:"seller_id"`
	TotalCents    int                `json:"total_cents"`
	Status        enums.PayoutStatus `json:"status"`
	FailureReason string             `json:"failure_reason,omitempty"`
}

// Service batches a seller's settled payments into payouts. The available
// balance is always derived from payments, refunds and payout holds; no
// stored balance exists to drift.
type Service interface {
	AvailableBalance(ctx context.Context, sellerID uuid.UUID) (int, error)
	Request(ctx context.Context, input RequestInput) (*models.Payout, error)
	Process(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error)
	DecideBatch(ctx context.Context, payoutIDs []uuid.UUID, action BatchAction, adminID uuid.UUID) []BatchItemResult
	Get(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.Payout, error)
	ListScheduled(ctx context.Context, limit int) ([]models.Payout, error)
}

type service struct {
	repo       Repository
	tx         txRunner
	ledger     ledger.Service
	outbox     outboxPublisher
	provider   Provider
	maxRetries int
}

// NewService builds a payout service with the required dependencies.
func NewService(repo Repository, tx txRunner, ledgerSvc ledger.Service, outboxSvc outboxPublisher, provider Provider, maxRetries int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if provider == nil {
		return nil, fmt.Errorf("payout provider required")
	}
	if maxRetries < 1 {
		return nil, fmt.Errorf("max retries must be positive, got %d", maxRetries)
	}
	return &service{
		repo:       repo,
		tx:         tx,
		ledger:     ledgerSvc,
		outbox:     outboxSvc,
		provider:   provider,
		maxRetries: maxRetries,
	}, nil
}

func (s *service) AvailableBalance(ctx context.Context, sellerID uuid.UUID) (int, error) {
	if sellerID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	return s.balance(ctx, s.repo, sellerID)
}

// balance derives the payable amount from the three source tables. A
// negative result means the books no longer add up; that is surfaced as a
// ledger inconsistency and never silently clamped.
func (s *service) balance(ctx context.Context, repo Repository, sellerID uuid.UUID) (int, error) {
	earned, err := repo.SumSellerNet(ctx, sellerID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum seller earnings")
	}
	refunded, err := repo.SumRefundsApplied(ctx, sellerID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum applied refunds")
	}
	holding, err := repo.SumPayoutsHolding(ctx, sellerID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum payout holds")
	}

	available := earned - refunded - holding
	if available < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeLedgerInconsistency, "seller balance is negative").
			WithDetails(map[string]any{
				"seller_id":       sellerID,
				"available_cents": available,
				"earned_cents":    earned,
				"refunded_cents":  refunded,
				"holding_cents":   holding,
			})
	}
	return available, nil
}

// Request claims whole payments for the payout, oldest first. When an amount
// is given it acts as a cap: payments are claimed while their cumulative net
// fits under it, and the payout total is the claimed sum. The claim runs
// under FOR UPDATE on the seller's unallocated payments so two concurrent
// requests cannot allocate the same payment.
func (s *service) Request(ctx context.Context, input RequestInput) (*models.Payout, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if input.RequestedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if input.AmountCents != nil && *input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount must be positive")
	}

	var created *models.Payout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// lock first, then compute: the balance re-check happens under the
		// same lock that guards the allocation
		claimable, err := repo.FindClaimablePaymentsForUpdate(ctx, input.SellerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock claimable payments")
		}

		available, err := s.balance(ctx, repo, input.SellerID)
		if err != nil {
			return err
		}

		requested := available
		if input.AmountCents != nil {
			requested = *input.AmountCents
		}
		if requested > available {
			return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "requested amount exceeds available balance").
				WithDetails(map[string]any{
					"available_cents": available,
					"requested_cents": requested,
				})
		}

		payments, total, err := s.selectPayments(ctx, repo, claimable, requested)
		if err != nil {
			return err
		}
		if len(payments) == 0 || total <= 0 {
			return pkgerrors.New(pkgerrors.CodeBusinessRule, "no settled payments available for payout").
				WithDetails(map[string]any{"rule": "empty_payout", "available_cents": available})
		}

		payout := &models.Payout{
			SellerID:    input.SellerID,
			TotalCents:  total,
			Status:      enums.PayoutStatusScheduled,
			ScheduledAt: time.Now(),
		}
		if _, err := repo.Create(ctx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
		}

		ids := make([]uuid.UUID, 0, len(payments))
		for _, p := range payments {
			ids = append(ids, p.payment.ID)
		}
		claimed, err := repo.ClaimPayments(ctx, payout.ID, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim payments")
		}
		if claimed != int64(len(ids)) {
			return pkgerrors.New(pkgerrors.CodeConflict, "payments were claimed concurrently").
				WithDetails(map[string]any{"expected": len(ids), "claimed": claimed})
		}

		for _, p := range payments {
			if err := s.record(ctx, tx, p.payment, enums.LedgerEntryTypePayoutAllocated, p.netCents, input.RequestedBy, payout.ID); err != nil {
				return err
			}
		}

		if err := s.emit(ctx, tx, enums.EventPayoutScheduled, payout, input.RequestedBy, enums.ActorRoleSeller, false); err != nil {
			return err
		}
		created = payout
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

type claimedPayment struct {
	payment  models.Payment
	netCents int
}

// selectPayments picks payments oldest first while their cumulative net
// stays within the cap. A payment's net is its seller share minus the
// partial refunds already applied to it.
func (s *service) selectPayments(ctx context.Context, repo Repository, claimable []models.Payment, capCents int) ([]claimedPayment, int, error) {
	ids := make([]uuid.UUID, 0, len(claimable))
	for _, payment := range claimable {
		ids = append(ids, payment.ID)
	}
	refunds, err := repo.SumRefundsAppliedByPayment(ctx, ids)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum per-payment refunds")
	}

	var selected []claimedPayment
	total := 0
	for _, payment := range claimable {
		net := payment.SellerNetCents - refunds[payment.ID]
		if net < 0 {
			return nil, 0, pkgerrors.New(pkgerrors.CodeLedgerInconsistency, "payment refunded beyond seller share").
				WithDetails(map[string]any{"payment_id": payment.ID, "net_cents": net})
		}
		if net == 0 {
			continue
		}
		if total+net > capCents {
			continue
		}
		selected = append(selected, claimedPayment{payment: payment, netCents: net})
		total += net
	}
	return selected, total, nil
}

// Process drives a payout through the provider. The provider call runs
// between two transactions: the first moves scheduled to processing under a
// row lock, the second records the outcome. Terminal payouts are a no-op so
// at-least-once delivery from the worker cannot double-pay.
func (s *service) Process(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}

	var payout *models.Payout
	terminal := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := s.load(ctx, repo, payoutID, true)
		if err != nil {
			return err
		}
		if locked.Status.IsTerminal() {
			payout = locked
			terminal = true
			return nil
		}
		if locked.Status == enums.PayoutStatusScheduled {
			if err := repo.Update(ctx, locked.ID, map[string]any{"status": enums.PayoutStatusProcessing}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payout processing")
			}
			locked.Status = enums.PayoutStatusProcessing
		}
		payout = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	if terminal {
		return payout, nil
	}

	providerRef, sendErr := s.provider.SendPayout(ctx, payout)
	if sendErr != nil {
		return s.recordFailure(ctx, payout.ID, sendErr.Error())
	}
	return s.recordCompletion(ctx, payout.ID, providerRef)
}

func (s *service) recordCompletion(ctx context.Context, payoutID uuid.UUID, providerRef string) (*models.Payout, error) {
	var result *models.Payout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payout, err := s.load(ctx, repo, payoutID, true)
		if err != nil {
			return err
		}
		if payout.Status.IsTerminal() {
			result = payout
			return nil
		}

		now := time.Now()
		if err := repo.Update(ctx, payout.ID, map[string]any{
			"status":       enums.PayoutStatusCompleted,
			"provider_ref": providerRef,
			"processed_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete payout")
		}
		payout.Status = enums.PayoutStatusCompleted
		payout.ProviderRef = &providerRef
		payout.ProcessedAt = &now

		if err := s.recordForClaimed(ctx, tx, repo, payout, enums.LedgerEntryTypePayoutCompleted); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, enums.EventPayoutCompleted, payout, payout.SellerID, enums.ActorRoleSystem, true); err != nil {
			return err
		}
		result = payout
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// recordFailure counts the attempt. Below the retry budget the payout drops
// back to scheduled so the worker picks it up again; at the budget it goes
// failed and its payments are released for a future payout.
func (s *service) recordFailure(ctx context.Context, payoutID uuid.UUID, reason string) (*models.Payout, error) {
	var result *models.Payout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payout, err := s.load(ctx, repo, payoutID, true)
		if err != nil {
			return err
		}
		if payout.Status.IsTerminal() {
			result = payout
			return nil
		}

		retries := payout.RetryCount + 1
		if retries < s.maxRetries {
			if err := repo.Update(ctx, payout.ID, map[string]any{
				"status":         enums.PayoutStatusScheduled,
				"retry_count":    retries,
				"failure_reason": reason,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reschedule payout")
			}
			payout.Status = enums.PayoutStatusScheduled
			payout.RetryCount = retries
			payout.FailureReason = &reason
			result = payout
			return nil
		}

		if err := s.failPayout(ctx, tx, repo, payout, retries, reason); err != nil {
			return err
		}
		result = payout
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) failPayout(ctx context.Context, tx *gorm.DB, repo Repository, payout *models.Payout, retries int, reason string) error {
	now := time.Now()
	if err := repo.Update(ctx, payout.ID, map[string]any{
		"status":         enums.PayoutStatusFailed,
		"retry_count":    retries,
		"failure_reason": reason,
		"processed_at":   now,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail payout")
	}
	payout.Status = enums.PayoutStatusFailed
	payout.RetryCount = retries
	payout.FailureReason = &reason

	if err := s.recordForClaimed(ctx, tx, repo, payout, enums.LedgerEntryTypePayoutFailed); err != nil {
		return err
	}
	if err := repo.ReleasePayments(ctx, payout.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release claimed payments")
	}
	return s.emit(ctx, tx, enums.EventPayoutFailed, payout, payout.SellerID, enums.ActorRoleSystem, true)
}

// DecideBatch applies the admin action to each payout independently; one
// item's failure never blocks the others.
func (s *service) DecideBatch(ctx context.Context, payoutIDs []uuid.UUID, action BatchAction, adminID uuid.UUID) []BatchItemResult {
	results := make([]BatchItemResult, 0, len(payoutIDs))
	for _, payoutID := range payoutIDs {
		var (
			payout *models.Payout
			err    error
		)
		switch action {
		case BatchActionApprove:
			payout, err = s.Process(ctx, payoutID)
		case BatchActionReject:
			payout, err = s.reject(ctx, payoutID, adminID)
		default:
			err = pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown action %q", action))
		}

		item := BatchItemResult{PayoutID: payoutID}
		if err != nil {
			item.Error = err.Error()
		} else {
			item.Status = payout.Status
		}
		results = append(results, item)
	}
	return results
}

// reject fails a scheduled payout outright and releases its payments.
func (s *service) reject(ctx context.Context, payoutID, adminID uuid.UUID) (*models.Payout, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}
	if adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	var result *models.Payout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payout, err := s.load(ctx, repo, payoutID, true)
		if err != nil {
			return err
		}
		if payout.Status != enums.PayoutStatusScheduled {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "only scheduled payouts can be rejected").
				WithDetails(map[string]any{"from": payout.Status})
		}
		if err := s.failPayout(ctx, tx, repo, payout, payout.RetryCount, "rejected by admin"); err != nil {
			return err
		}
		result = payout
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}
	return s.load(ctx, s.repo, payoutID, false)
}

func (s *service) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.Payout, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	payouts, err := s.repo.ListBySeller(ctx, sellerID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list seller payouts")
	}
	return payouts, nil
}

func (s *service) ListScheduled(ctx context.Context, limit int) ([]models.Payout, error) {
	payouts, err := s.repo.ListByStatus(ctx, enums.PayoutStatusScheduled, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list scheduled payouts")
	}
	return payouts, nil
}

func (s *service) load(ctx context.Context, repo Repository, payoutID uuid.UUID, forUpdate bool) (*models.Payout, error) {
	find := repo.FindByID
	if forUpdate {
		find = repo.FindByIDForUpdate
	}
	payout, err := find(ctx, payoutID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	return payout, nil
}

// recordForClaimed writes one audit entry per claimed payment at its
// claimed net: the seller share minus refunds applied before the claim,
// the same amount the payout total was built from.
func (s *service) recordForClaimed(ctx context.Context, tx *gorm.DB, repo Repository, payout *models.Payout, entryType enums.LedgerEntryType) error {
	payments, err := repo.FindPaymentsByPayout(ctx, payout.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load claimed payments")
	}
	ids := make([]uuid.UUID, 0, len(payments))
	for i := range payments {
		ids = append(ids, payments[i].ID)
	}
	refunds, err := repo.SumRefundsAppliedByPayment(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum per-payment refunds")
	}
	for i := range payments {
		net := payments[i].SellerNetCents - refunds[payments[i].ID]
		if err := s.record(ctx, tx, payments[i], entryType, net, payout.SellerID, payout.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) record(ctx context.Context, tx *gorm.DB, payment models.Payment, entryType enums.LedgerEntryType, amountCents int, actorID, payoutID uuid.UUID) error {
	metadata, err := json.Marshal(map[string]any{"payout_id": payoutID})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal ledger metadata")
	}
	paymentID := payment.ID
	if _, err := s.ledger.Record(ctx, tx, ledger.RecordEntryInput{
		OrderID:     payment.OrderID,
		PaymentID:   &paymentID,
		SellerID:    payment.SellerID,
		ActorUserID: actorID,
		Type:        entryType,
		AmountCents: amountCents,
		Metadata:    metadata,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record ledger entry")
	}
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, payout *models.Payout, actorID uuid.UUID, role enums.ActorRole, once bool) error {
	reason := ""
	if payout.FailureReason != nil {
		reason = *payout.FailureReason
	}
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayout,
		AggregateID:   payout.ID,
		Actor:         &outbox.ActorRef{UserID: actorID, Role: role.String()},
		Data: PayoutEvent{
			PayoutID:      payout.ID,
			SellerID:      payout.SellerID,
			TotalCents:    payout.TotalCents,
			Status:        payout.Status,
			FailureReason: reason,
		},
		Version: 1,
	}

	emit := s.outbox.Emit
	if once {
		emit = s.outbox.EmitIfNotExists
	}
	if err := emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payout event")
	}
	return nil
}
