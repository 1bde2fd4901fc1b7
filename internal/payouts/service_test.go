package payouts

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abubuhammad/georgy-marketplace-backend/internal/ledger"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
	pkgerrors "github.com/abubuhammad/georgy-marketplace-backend/pkg/errors"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/outbox"
)

type fakeRepository struct {
	payouts      map[uuid.UUID]*models.Payout
	payments     map[uuid.UUID]*models.Payment
	paymentOrder []uuid.UUID
	refunds      map[uuid.UUID]int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		payouts:  map[uuid.UUID]*models.Payout{},
		payments: map[uuid.UUID]*models.Payment{},
		refunds:  map[uuid.UUID]int{},
	}
}

func (f *fakeRepository) addPayment(sellerID uuid.UUID, netCents int, status enums.PaymentStatus) *models.Payment {
	payment := &models.Payment{
		ID:             uuid.New(),
		OrderID:        uuid.New(),
		SellerID:       sellerID,
		AmountCents:    netCents + netCents/19, // split detail irrelevant here
		SellerNetCents: netCents,
		Status:         status,
	}
	f.payments[payment.ID] = payment
	f.paymentOrder = append(f.paymentOrder, payment.ID)
	return payment
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, payout *models.Payout) (*models.Payout, error) {
	payout.ID = uuid.New()
	f.payouts[payout.ID] = payout
	return payout, nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	if payout, ok := f.payouts[id]; ok {
		copied := *payout
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.Payout, error) {
	var out []models.Payout
	for _, payout := range f.payouts {
		if payout.SellerID == sellerID {
			out = append(out, *payout)
		}
	}
	return out, nil
}

func (f *fakeRepository) ListByStatus(ctx context.Context, status enums.PayoutStatus, limit int) ([]models.Payout, error) {
	var out []models.Payout
	for _, payout := range f.payouts {
		if payout.Status == status {
			out = append(out, *payout)
		}
	}
	return out, nil
}

func (f *fakeRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	payout, ok := f.payouts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if status, ok := updates["status"]; ok {
		payout.Status = status.(enums.PayoutStatus)
	}
	if retries, ok := updates["retry_count"]; ok {
		payout.RetryCount = retries.(int)
	}
	if reason, ok := updates["failure_reason"]; ok {
		value := reason.(string)
		payout.FailureReason = &value
	}
	if ref, ok := updates["provider_ref"]; ok {
		value := ref.(string)
		payout.ProviderRef = &value
	}
	return nil
}

func (f *fakeRepository) SumSellerNet(ctx context.Context, sellerID uuid.UUID) (int, error) {
	total := 0
	for _, payment := range f.payments {
		if payment.SellerID == sellerID && payment.Status == enums.PaymentStatusCompleted {
			total += payment.SellerNetCents
		}
	}
	return total, nil
}

func (f *fakeRepository) SumRefundsApplied(ctx context.Context, sellerID uuid.UUID) (int, error) {
	total := 0
	for paymentID, refunded := range f.refunds {
		payment, ok := f.payments[paymentID]
		if ok && payment.SellerID == sellerID && payment.Status == enums.PaymentStatusCompleted {
			total += refunded
		}
	}
	return total, nil
}

func (f *fakeRepository) SumPayoutsHolding(ctx context.Context, sellerID uuid.UUID) (int, error) {
	total := 0
	for _, payout := range f.payouts {
		if payout.SellerID == sellerID && payout.Status.HoldsBalance() {
			total += payout.TotalCents
		}
	}
	return total, nil
}

func (f *fakeRepository) SumRefundsAppliedByPayment(ctx context.Context, paymentIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	totals := map[uuid.UUID]int{}
	for _, id := range paymentIDs {
		if refunded, ok := f.refunds[id]; ok {
			totals[id] = refunded
		}
	}
	return totals, nil
}

func (f *fakeRepository) FindClaimablePaymentsForUpdate(ctx context.Context, sellerID uuid.UUID) ([]models.Payment, error) {
	var out []models.Payment
	for _, id := range f.paymentOrder {
		payment := f.payments[id]
		if payment.SellerID == sellerID && payment.Status == enums.PaymentStatusCompleted && payment.PayoutID == nil {
			out = append(out, *payment)
		}
	}
	return out, nil
}

func (f *fakeRepository) ClaimPayments(ctx context.Context, payoutID uuid.UUID, paymentIDs []uuid.UUID) (int64, error) {
	var claimed int64
	for _, id := range paymentIDs {
		payment, ok := f.payments[id]
		if ok && payment.PayoutID == nil {
			claimedID := payoutID
			payment.PayoutID = &claimedID
			claimed++
		}
	}
	return claimed, nil
}

func (f *fakeRepository) ReleasePayments(ctx context.Context, payoutID uuid.UUID) error {
	for _, payment := range f.payments {
		if payment.PayoutID != nil && *payment.PayoutID == payoutID {
			payment.PayoutID = nil
		}
	}
	return nil
}

func (f *fakeRepository) FindPaymentsByPayout(ctx context.Context, payoutID uuid.UUID) ([]models.Payment, error) {
	var out []models.Payment
	for _, id := range f.paymentOrder {
		payment := f.payments[id]
		if payment.PayoutID != nil && *payment.PayoutID == payoutID {
			out = append(out, *payment)
		}
	}
	return out, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type recordingLedger struct {
	ledger.Service
	entries []ledger.RecordEntryInput
}

func (r *recordingLedger) Record(ctx context.Context, tx *gorm.DB, input ledger.RecordEntryInput) (*models.LedgerEntry, error) {
	r.entries = append(r.entries, input)
	return &models.LedgerEntry{}, nil
}

func (r *recordingLedger) countByType(entryType enums.LedgerEntryType) int {
	count := 0
	for _, entry := range r.entries {
		if entry.Type == entryType {
			count++
		}
	}
	return count
}

type stubOutbox struct {
	emitted []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.emitted = append(s.emitted, event)
	return nil
}

func (s *stubOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	for _, existing := range s.emitted {
		if existing.EventType == event.EventType && existing.AggregateID == event.AggregateID {
			return nil
		}
	}
	s.emitted = append(s.emitted, event)
	return nil
}

// flakyProvider fails the first failures calls, then succeeds.
type flakyProvider struct {
	failures int
	calls    int
}

func (p *flakyProvider) SendPayout(ctx context.Context, payout *models.Payout) (string, error) {
	p.calls++
	if p.calls <= p.failures {
		return "", errors.New("transfer rail unavailable")
	}
	return "REF-" + payout.ID.String(), nil
}

type harness struct {
	svc      Service
	repo     *fakeRepository
	ledger   *recordingLedger
	outbox   *stubOutbox
	provider *flakyProvider
	sellerID uuid.UUID
}

func newHarness(t *testing.T, failures int) *harness {
	t.Helper()
	repo := newFakeRepository()
	led := &recordingLedger{}
	ob := &stubOutbox{}
	provider := &flakyProvider{failures: failures}
	svc, err := NewService(repo, stubTxRunner{}, led, ob, provider, 3)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return &harness{
		svc:      svc,
		repo:     repo,
		ledger:   led,
		outbox:   ob,
		provider: provider,
		sellerID: uuid.New(),
	}
}

func TestAvailableBalance(t *testing.T) {
	h := newHarness(t, 0)
	h.repo.addPayment(h.sellerID, 9000, enums.PaymentStatusCompleted)
	partial := h.repo.addPayment(h.sellerID, 4500, enums.PaymentStatusCompleted)
	h.repo.refunds[partial.ID] = 1500
	h.repo.addPayment(h.sellerID, 7000, enums.PaymentStatusRefunded)
	h.repo.addPayment(h.sellerID, 2000, enums.PaymentStatusPending)
	h.repo.addPayment(uuid.New(), 5000, enums.PaymentStatusCompleted)

	available, err := h.svc.AvailableBalance(context.Background(), h.sellerID)
	if err != nil {
		t.Fatalf("AvailableBalance error: %v", err)
	}
	if available != 12000 {
		t.Fatalf("expected 12000, got %d", available)
	}
}

func TestAvailableBalance_NegativeIsInconsistency(t *testing.T) {
	h := newHarness(t, 0)
	payment := h.repo.addPayment(h.sellerID, 1000, enums.PaymentStatusCompleted)
	h.repo.refunds[payment.ID] = 2500

	_, err := h.svc.AvailableBalance(context.Background(), h.sellerID)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeLedgerInconsistency {
		t.Fatalf("expected ledger inconsistency, got %v", err)
	}
}

func TestRequest_FullBalanceClaimsAllPayments(t *testing.T) {
	h := newHarness(t, 0)
	first := h.repo.addPayment(h.sellerID, 9000, enums.PaymentStatusCompleted)
	second := h.repo.addPayment(h.sellerID, 4500, enums.PaymentStatusCompleted)

	payout, err := h.svc.Request(context.Background(), RequestInput{
		SellerID:    h.sellerID,
		RequestedBy: h.sellerID,
	})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if payout.TotalCents != 13500 {
		t.Fatalf("expected total 13500, got %d", payout.TotalCents)
	}
	if payout.Status != enums.PayoutStatusScheduled {
		t.Fatalf("expected scheduled status, got %q", payout.Status)
	}
	for _, payment := range []*models.Payment{first, second} {
		if payment.PayoutID == nil || *payment.PayoutID != payout.ID {
			t.Fatalf("expected payment %s claimed by payout", payment.ID)
		}
	}
	if got := h.ledger.countByType(enums.LedgerEntryTypePayoutAllocated); got != 2 {
		t.Fatalf("expected 2 allocation entries, got %d", got)
	}
	if len(h.outbox.emitted) != 1 || h.outbox.emitted[0].EventType != enums.EventPayoutScheduled {
		t.Fatalf("expected payout_scheduled event")
	}
}

func TestRequest_CapClaimsOldestFirst(t *testing.T) {
	h := newHarness(t, 0)
	oldest := h.repo.addPayment(h.sellerID, 3000, enums.PaymentStatusCompleted)
	h.repo.addPayment(h.sellerID, 5000, enums.PaymentStatusCompleted)
	amount := 3000

	payout, err := h.svc.Request(context.Background(), RequestInput{
		SellerID:    h.sellerID,
		AmountCents: &amount,
		RequestedBy: h.sellerID,
	})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if payout.TotalCents != 3000 {
		t.Fatalf("expected total 3000, got %d", payout.TotalCents)
	}
	if oldest.PayoutID == nil || *oldest.PayoutID != payout.ID {
		t.Fatalf("expected oldest payment claimed")
	}

	remaining, err := h.svc.AvailableBalance(context.Background(), h.sellerID)
	if err != nil {
		t.Fatalf("AvailableBalance error: %v", err)
	}
	if remaining != 5000 {
		t.Fatalf("expected 5000 still available, got %d", remaining)
	}
}

func TestRequest_PartialRefundReducesClaimedNet(t *testing.T) {
	h := newHarness(t, 0)
	payment := h.repo.addPayment(h.sellerID, 9000, enums.PaymentStatusCompleted)
	h.repo.refunds[payment.ID] = 2000

	payout, err := h.svc.Request(context.Background(), RequestInput{
		SellerID:    h.sellerID,
		RequestedBy: h.sellerID,
	})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if payout.TotalCents != 7000 {
		t.Fatalf("expected total 7000, got %d", payout.TotalCents)
	}
}

func TestRequest_OverRequestFails(t *testing.T) {
	h := newHarness(t, 0)
	h.repo.addPayment(h.sellerID, 5000, enums.PaymentStatusCompleted)
	amount := 6000

	_, err := h.svc.Request(context.Background(), RequestInput{
		SellerID:    h.sellerID,
		AmountCents: &amount,
		RequestedBy: h.sellerID,
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeInsufficientBalance {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestRequest_NothingClaimableFails(t *testing.T) {
	h := newHarness(t, 0)

	_, err := h.svc.Request(context.Background(), RequestInput{
		SellerID:    h.sellerID,
		RequestedBy: h.sellerID,
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeBusinessRule {
		t.Fatalf("expected empty payout rule, got %v", err)
	}
}

func TestRequest_SecondRequestCannotReusePayments(t *testing.T) {
	h := newHarness(t, 0)
	h.repo.addPayment(h.sellerID, 5000, enums.PaymentStatusCompleted)

	if _, err := h.svc.Request(context.Background(), RequestInput{
		SellerID:    h.sellerID,
		RequestedBy: h.sellerID,
	}); err != nil {
		t.Fatalf("Request error: %v", err)
	}

	_, err := h.svc.Request(context.Background(), RequestInput{
		SellerID:    h.sellerID,
		RequestedBy: h.sellerID,
	})
	if err == nil {
		t.Fatalf("expected second request to fail with nothing claimable")
	}
}

func TestProcess_CompletesPayout(t *testing.T) {
	h := newHarness(t, 0)
	h.repo.addPayment(h.sellerID, 5000, enums.PaymentStatusCompleted)
	payout, err := h.svc.Request(context.Background(), RequestInput{SellerID: h.sellerID, RequestedBy: h.sellerID})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}

	processed, err := h.svc.Process(context.Background(), payout.ID)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if processed.Status != enums.PayoutStatusCompleted {
		t.Fatalf("expected completed, got %q", processed.Status)
	}
	if processed.ProviderRef == nil {
		t.Fatalf("expected provider ref stamped")
	}
	if got := h.ledger.countByType(enums.LedgerEntryTypePayoutCompleted); got != 1 {
		t.Fatalf("expected 1 completion entry, got %d", got)
	}

	// completed payout keeps holding the balance
	available, err := h.svc.AvailableBalance(context.Background(), h.sellerID)
	if err != nil {
		t.Fatalf("AvailableBalance error: %v", err)
	}
	if available != 0 {
		t.Fatalf("expected zero balance after completed payout, got %d", available)
	}
}

func TestProcess_CompletionRecordsClaimedNet(t *testing.T) {
	h := newHarness(t, 0)
	payment := h.repo.addPayment(h.sellerID, 9000, enums.PaymentStatusCompleted)
	h.repo.refunds[payment.ID] = 2000

	payout, err := h.svc.Request(context.Background(), RequestInput{SellerID: h.sellerID, RequestedBy: h.sellerID})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if _, err := h.svc.Process(context.Background(), payout.ID); err != nil {
		t.Fatalf("Process error: %v", err)
	}

	// the audit trail must settle the claimed net, not the raw seller share
	for _, entry := range h.ledger.entries {
		if entry.Type == enums.LedgerEntryTypePayoutCompleted && entry.AmountCents != 7000 {
			t.Fatalf("expected completion entry of 7000, got %d", entry.AmountCents)
		}
	}
	if got := h.ledger.countByType(enums.LedgerEntryTypePayoutCompleted); got != 1 {
		t.Fatalf("expected 1 completion entry, got %d", got)
	}
}

func TestProcess_TerminalIsNoOp(t *testing.T) {
	h := newHarness(t, 0)
	h.repo.addPayment(h.sellerID, 5000, enums.PaymentStatusCompleted)
	payout, err := h.svc.Request(context.Background(), RequestInput{SellerID: h.sellerID, RequestedBy: h.sellerID})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}

	if _, err := h.svc.Process(context.Background(), payout.ID); err != nil {
		t.Fatalf("Process error: %v", err)
	}
	calls := h.provider.calls

	again, err := h.svc.Process(context.Background(), payout.ID)
	if err != nil {
		t.Fatalf("expected replay to be a no-op, got %v", err)
	}
	if again.Status != enums.PayoutStatusCompleted {
		t.Fatalf("expected completed on replay, got %q", again.Status)
	}
	if h.provider.calls != calls {
		t.Fatalf("replay must not hit the provider again")
	}
}

func TestProcess_RetriesThenFails(t *testing.T) {
	h := newHarness(t, 10)
	payment := h.repo.addPayment(h.sellerID, 5000, enums.PaymentStatusCompleted)
	payout, err := h.svc.Request(context.Background(), RequestInput{SellerID: h.sellerID, RequestedBy: h.sellerID})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}

	for attempt := 1; attempt <= 2; attempt++ {
		rescheduled, err := h.svc.Process(context.Background(), payout.ID)
		if err != nil {
			t.Fatalf("Process error on attempt %d: %v", attempt, err)
		}
		if rescheduled.Status != enums.PayoutStatusScheduled {
			t.Fatalf("attempt %d: expected rescheduled, got %q", attempt, rescheduled.Status)
		}
		if rescheduled.RetryCount != attempt {
			t.Fatalf("attempt %d: expected retry count %d, got %d", attempt, attempt, rescheduled.RetryCount)
		}
	}

	failed, err := h.svc.Process(context.Background(), payout.ID)
	if err != nil {
		t.Fatalf("Process error on final attempt: %v", err)
	}
	if failed.Status != enums.PayoutStatusFailed {
		t.Fatalf("expected failed after retry budget, got %q", failed.Status)
	}
	if payment.PayoutID != nil {
		t.Fatalf("expected claimed payment released after failure")
	}
	if got := h.ledger.countByType(enums.LedgerEntryTypePayoutFailed); got != 1 {
		t.Fatalf("expected 1 failure entry, got %d", got)
	}

	// released earnings become payable again
	available, err := h.svc.AvailableBalance(context.Background(), h.sellerID)
	if err != nil {
		t.Fatalf("AvailableBalance error: %v", err)
	}
	if available != 5000 {
		t.Fatalf("expected balance restored to 5000, got %d", available)
	}
}

func TestDecideBatch_PartialFailureIsolated(t *testing.T) {
	h := newHarness(t, 0)
	h.repo.addPayment(h.sellerID, 5000, enums.PaymentStatusCompleted)
	payout, err := h.svc.Request(context.Background(), RequestInput{SellerID: h.sellerID, RequestedBy: h.sellerID})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	missing := uuid.New()

	results := h.svc.DecideBatch(context.Background(), []uuid.UUID{payout.ID, missing}, BatchActionApprove, uuid.New())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Error != "" || results[0].Status != enums.PayoutStatusCompleted {
		t.Fatalf("expected first payout completed, got %+v", results[0])
	}
	if results[1].Error == "" {
		t.Fatalf("expected error for unknown payout")
	}
}

func TestDecideBatch_RejectReleasesPayments(t *testing.T) {
	h := newHarness(t, 0)
	payment := h.repo.addPayment(h.sellerID, 5000, enums.PaymentStatusCompleted)
	payout, err := h.svc.Request(context.Background(), RequestInput{SellerID: h.sellerID, RequestedBy: h.sellerID})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}

	results := h.svc.DecideBatch(context.Background(), []uuid.UUID{payout.ID}, BatchActionReject, uuid.New())
	if results[0].Error != "" || results[0].Status != enums.PayoutStatusFailed {
		t.Fatalf("expected rejected payout failed, got %+v", results[0])
	}
	if payment.PayoutID != nil {
		t.Fatalf("expected payment released after rejection")
	}
	if h.provider.calls != 0 {
		t.Fatalf("reject must not hit the provider")
	}
}

func TestDecideBatch_RejectProcessedPayoutFails(t *testing.T) {
	h := newHarness(t, 0)
	h.repo.addPayment(h.sellerID, 5000, enums.PaymentStatusCompleted)
	payout, err := h.svc.Request(context.Background(), RequestInput{SellerID: h.sellerID, RequestedBy: h.sellerID})
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if _, err := h.svc.Process(context.Background(), payout.ID); err != nil {
		t.Fatalf("Process error: %v", err)
	}

	results := h.svc.DecideBatch(context.Background(), []uuid.UUID{payout.ID}, BatchActionReject, uuid.New())
	if results[0].Error == "" {
		t.Fatalf("expected rejection of completed payout to fail")
	}
}
