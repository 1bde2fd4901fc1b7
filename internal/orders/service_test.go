package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abubuhammad/georgy-marketplace-backend/internal/commission"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
	pkgerrors "github.com/abubuhammad/georgy-marketplace-backend/pkg/errors"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/outbox"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/pagination"
)

type stubOrdersRepo struct {
	orders     map[uuid.UUID]*models.Order
	nextNumber int64
}

func newStubOrdersRepo() *stubOrdersRepo {
	return &stubOrdersRepo{orders: map[uuid.UUID]*models.Order{}, nextNumber: 1001}
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	order.ID = uuid.New()
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if order, ok := s.orders[id]; ok {
		copied := *order
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.FindByID(ctx, id)
}

func (s *stubOrdersRepo) FindDetail(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.FindByID(ctx, id)
}

func (s *stubOrdersRepo) List(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	var out []models.Order
	for _, order := range s.orders {
		out = append(out, *order)
	}
	return &OrderList{Orders: out}, nil
}

func (s *stubOrdersRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	order, ok := s.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if status, ok := updates["status"]; ok {
		order.Status = status.(enums.OrderStatus)
	}
	return nil
}

func (s *stubOrdersRepo) NextOrderNumber(ctx context.Context) (int64, error) {
	n := s.nextNumber
	s.nextNumber++
	return n, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubCommission struct{}

func (stubCommission) Split(ctx context.Context, amountCents int, category string) (*commission.Split, error) {
	cut := amountCents / 20
	return &commission.Split{
		AmountCents:      amountCents,
		PlatformCutCents: cut,
		SellerNetCents:   amountCents - cut,
	}, nil
}

func (stubCommission) ListSchemes(ctx context.Context) ([]models.RevenueShareScheme, error) {
	return nil, nil
}

func (stubCommission) CreateScheme(ctx context.Context, input commission.CreateSchemeInput) (*models.RevenueShareScheme, error) {
	return nil, nil
}

type stubPayments struct {
	payments map[uuid.UUID]*models.Payment // keyed by order id
}

func newStubPayments() *stubPayments {
	return &stubPayments{payments: map[uuid.UUID]*models.Payment{}}
}

func (s *stubPayments) CreatePending(ctx context.Context, tx *gorm.DB, order *models.Order, split *commission.Split, actorUserID uuid.UUID) (*models.Payment, error) {
	payment := &models.Payment{
		ID:               uuid.New(),
		OrderID:          order.ID,
		SellerID:         order.SellerID,
		Reference:        "PAY-TEST",
		AmountCents:      split.AmountCents,
		PlatformCutCents: split.PlatformCutCents,
		SellerNetCents:   split.SellerNetCents,
		Status:           enums.PaymentStatusPending,
	}
	s.payments[order.ID] = payment
	return payment, nil
}

func (s *stubPayments) MarkCompleted(ctx context.Context, tx *gorm.DB, paymentID, actorUserID uuid.UUID) (*models.Payment, error) {
	for _, payment := range s.payments {
		if payment.ID == paymentID {
			payment.Status = enums.PaymentStatusCompleted
			return payment, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
}

func (s *stubPayments) MarkCancelled(ctx context.Context, tx *gorm.DB, paymentID, actorUserID uuid.UUID, reason string) (*models.Payment, error) {
	for _, payment := range s.payments {
		if payment.ID == paymentID {
			payment.Status = enums.PaymentStatusCancelled
			return payment, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
}

func (s *stubPayments) ApplyRefund(ctx context.Context, tx *gorm.DB, paymentID, actorUserID uuid.UUID, refundCents int) (*models.Payment, error) {
	return nil, nil
}

func (s *stubPayments) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	return s.FindActiveByOrder(ctx, nil, orderID)
}

func (s *stubPayments) FindActiveByOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Payment, error) {
	if payment, ok := s.payments[orderID]; ok && payment.Status != enums.PaymentStatusCancelled {
		return payment, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
}

type stubShipmentCoordinator struct {
	created   []uuid.UUID
	cancelled []uuid.UUID
}

func (s *stubShipmentCoordinator) CreateForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	s.created = append(s.created, order.ID)
	return nil
}

func (s *stubShipmentCoordinator) CancelForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	s.cancelled = append(s.cancelled, order.ID)
	return nil
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

type testHarness struct {
	svc       Service
	repo      *stubOrdersRepo
	payments  *stubPayments
	shipments *stubShipmentCoordinator
	outbox    *stubOutbox
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	repo := newStubOrdersRepo()
	pay := newStubPayments()
	ship := &stubShipmentCoordinator{}
	ob := &stubOutbox{}
	svc, err := NewService(repo, stubTxRunner{}, stubCommission{}, pay, ship, ob)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return &testHarness{svc: svc, repo: repo, payments: pay, shipments: ship, outbox: ob}
}

func validCreateInput() CreateOrderInput {
	return CreateOrderInput{
		BuyerID:    uuid.New(),
		SellerID:   uuid.New(),
		ProductID:  uuid.New(),
		Category:   "electronics",
		Quantity:   2,
		TotalCents: 10000,
	}
}

func (h *testHarness) createOrder(t *testing.T) *models.Order {
	t.Helper()
	order, err := h.svc.Create(context.Background(), validCreateInput())
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	return order
}

// actorFor resolves the acting user the way the gateway would: the order's
// own seller or buyer for those roles, an arbitrary identity otherwise.
func (h *testHarness) actorFor(t *testing.T, orderID uuid.UUID, role enums.ActorRole) uuid.UUID {
	t.Helper()
	order, ok := h.repo.orders[orderID]
	if !ok {
		t.Fatalf("unknown order %s", orderID)
	}
	switch role {
	case enums.ActorRoleSeller:
		return order.SellerID
	case enums.ActorRoleBuyer:
		return order.BuyerID
	default:
		return uuid.New()
	}
}

func (h *testHarness) transition(t *testing.T, orderID uuid.UUID, target enums.OrderStatus, role enums.ActorRole) *models.Order {
	t.Helper()
	order, err := h.svc.Transition(context.Background(), TransitionInput{
		OrderID:     orderID,
		Target:      target,
		ActorUserID: h.actorFor(t, orderID, role),
		ActorRole:   role,
		ViaShipment: target == enums.OrderStatusDelivered && (role == enums.ActorRoleAgent || role == enums.ActorRoleSystem),
	})
	if err != nil {
		t.Fatalf("Transition to %s error: %v", target, err)
	}
	return order
}

func TestCreate_OpensOrderWithPendingPayment(t *testing.T) {
	h := newHarness(t)
	order := h.createOrder(t)

	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending order, got %q", order.Status)
	}
	if order.Payment == nil || order.Payment.Status != enums.PaymentStatusPending {
		t.Fatalf("expected pending payment attached")
	}
	if order.Payment.PlatformCutCents+order.Payment.SellerNetCents != order.TotalCents {
		t.Fatalf("split identity broken")
	}
	if len(h.outbox.emitted) != 1 || h.outbox.emitted[0].EventType != enums.EventOrderCreated {
		t.Fatalf("expected order_created outbox event, got %+v", h.outbox.emitted)
	}
}

func TestCreate_Validation(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		name   string
		mutate func(in *CreateOrderInput)
	}{
		{"missing buyer", func(in *CreateOrderInput) { in.BuyerID = uuid.Nil }},
		{"missing seller", func(in *CreateOrderInput) { in.SellerID = uuid.Nil }},
		{"buyer equals seller", func(in *CreateOrderInput) { in.SellerID = in.BuyerID }},
		{"missing product", func(in *CreateOrderInput) { in.ProductID = uuid.Nil }},
		{"zero quantity", func(in *CreateOrderInput) { in.Quantity = 0 }},
		{"zero total", func(in *CreateOrderInput) { in.TotalCents = 0 }},
		{"bad currency", func(in *CreateOrderInput) { in.Currency = enums.Currency("XXX") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validCreateInput()
			tc.mutate(&input)
			if _, err := h.svc.Create(context.Background(), input); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestTransition_HappyPath(t *testing.T) {
	h := newHarness(t)
	order := h.createOrder(t)

	h.transition(t, order.ID, enums.OrderStatusConfirmed, enums.ActorRoleSeller)
	h.transition(t, order.ID, enums.OrderStatusShipped, enums.ActorRoleSeller)
	delivered := h.transition(t, order.ID, enums.OrderStatusDelivered, enums.ActorRoleAgent)

	if delivered.Status != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered order, got %q", delivered.Status)
	}
	if len(h.shipments.created) != 1 {
		t.Fatalf("expected one shipment created, got %d", len(h.shipments.created))
	}
	if h.payments.payments[order.ID].Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected payment completed on delivery")
	}
}

func TestTransition_RejectsIllegalSteps(t *testing.T) {
	h := newHarness(t)
	order := h.createOrder(t)

	_, err := h.svc.Transition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Target:      enums.OrderStatusDelivered,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleAdmin,
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeInvalidTransition {
		t.Fatalf("expected invalid transition error, got %v", err)
	}

	h.transition(t, order.ID, enums.OrderStatusConfirmed, enums.ActorRoleSeller)
	h.transition(t, order.ID, enums.OrderStatusShipped, enums.ActorRoleSeller)
	h.transition(t, order.ID, enums.OrderStatusDelivered, enums.ActorRoleAgent)

	_, err = h.svc.Transition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Target:      enums.OrderStatusCancelled,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleAdmin,
	})
	appErr = pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeInvalidTransition {
		t.Fatalf("expected terminal state rejection, got %v", err)
	}
}

func TestTransition_DeliveredIsIdempotentViaShipment(t *testing.T) {
	h := newHarness(t)
	order := h.createOrder(t)
	h.transition(t, order.ID, enums.OrderStatusConfirmed, enums.ActorRoleSeller)
	h.transition(t, order.ID, enums.OrderStatusShipped, enums.ActorRoleSeller)
	h.transition(t, order.ID, enums.OrderStatusDelivered, enums.ActorRoleSystem)

	// replayed confirmation from the shipment flow is a no-op
	again, err := h.svc.Transition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Target:      enums.OrderStatusDelivered,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleSystem,
		ViaShipment: true,
	})
	if err != nil {
		t.Fatalf("expected idempotent delivery, got %v", err)
	}
	if again.Status != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered status, got %q", again.Status)
	}

	deliveredEvents := 0
	for _, event := range h.outbox.emitted {
		if event.EventType == enums.EventOrderDelivered {
			deliveredEvents++
		}
	}
	if deliveredEvents != 1 {
		t.Fatalf("expected a single order_delivered event, got %d", deliveredEvents)
	}
}

func TestTransition_CancelPendingPayment(t *testing.T) {
	h := newHarness(t)
	order := h.createOrder(t)

	cancelled, err := h.svc.Transition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Target:      enums.OrderStatusCancelled,
		ActorUserID: order.BuyerID,
		ActorRole:   enums.ActorRoleBuyer,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled order, got %q", cancelled.Status)
	}
	if h.payments.payments[order.ID].Status != enums.PaymentStatusCancelled {
		t.Fatalf("expected payment cancelled alongside the order")
	}
}

func TestTransition_CancelSettledPaymentRequiresRefund(t *testing.T) {
	h := newHarness(t)
	order := h.createOrder(t)
	h.payments.payments[order.ID].Status = enums.PaymentStatusCompleted

	_, err := h.svc.Transition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Target:      enums.OrderStatusCancelled,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleAdmin,
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeBusinessRule {
		t.Fatalf("expected requires_refund business rule, got %v", err)
	}
}

func TestTransition_Authorization(t *testing.T) {
	h := newHarness(t)
	order := h.createOrder(t)

	_, err := h.svc.Transition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Target:      enums.OrderStatusConfirmed,
		ActorUserID: order.BuyerID,
		ActorRole:   enums.ActorRoleBuyer,
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for buyer confirm, got %v", err)
	}

	_, err = h.svc.Transition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Target:      enums.OrderStatusDelivered,
		ActorUserID: order.SellerID,
		ActorRole:   enums.ActorRoleSeller,
	})
	appErr = pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for seller delivery, got %v", err)
	}
}

func TestTransition_OwnershipEnforced(t *testing.T) {
	h := newHarness(t)
	order := h.createOrder(t)

	// a seller who does not own the order cannot confirm it
	_, err := h.svc.Transition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Target:      enums.OrderStatusConfirmed,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleSeller,
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for foreign seller, got %v", err)
	}

	// a buyer who did not place the order cannot cancel it
	_, err = h.svc.Transition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Target:      enums.OrderStatusCancelled,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleBuyer,
	})
	appErr = pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for foreign buyer, got %v", err)
	}
	if stored := h.repo.orders[order.ID]; stored.Status != enums.OrderStatusPending {
		t.Fatalf("foreign actors must not move the order, got %q", stored.Status)
	}
}

func TestTransition_CancelShippedOrderCancelsShipment(t *testing.T) {
	h := newHarness(t)
	order := h.createOrder(t)
	h.transition(t, order.ID, enums.OrderStatusConfirmed, enums.ActorRoleSeller)
	h.transition(t, order.ID, enums.OrderStatusShipped, enums.ActorRoleSeller)

	cancelled := h.transition(t, order.ID, enums.OrderStatusCancelled, enums.ActorRoleBuyer)
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled order, got %q", cancelled.Status)
	}
	if len(h.shipments.cancelled) != 1 || h.shipments.cancelled[0] != order.ID {
		t.Fatalf("expected the order's shipment closed with it, got %v", h.shipments.cancelled)
	}
}
