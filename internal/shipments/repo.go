package shipments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a shipments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, shipment *models.Shipment) (*models.Shipment, error) {
	if err := r.db.WithContext(ctx).Create(shipment).Error; err != nil {
		return nil, err
	}
	return shipment, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&shipment).Error
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&shipment).Error
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&shipment).Error
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *repository) FindByOrderIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID).
		First(&shipment).Error
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// CreditAgent upserts the agent's running balance, incrementing earnings and
// the delivery counter in one statement.
func (r *repository) CreditAgent(ctx context.Context, agentID uuid.UUID, amountCents int) error {
	balance := models.AgentBalance{
		AgentID:          agentID,
		TotalEarnedCents: amountCents,
		DeliveryCount:    1,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "agent_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"total_earned_cents": gorm.Expr("agent_balances.total_earned_cents + ?", amountCents),
			"delivery_count":     gorm.Expr("agent_balances.delivery_count + 1"),
		}),
	}).Create(&balance).Error
}

func (r *repository) FindAgentBalance(ctx context.Context, agentID uuid.UUID) (*models.AgentBalance, error) {
	var balance models.AgentBalance
	err := r.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		First(&balance).Error
	if err != nil {
		return nil, err
	}
	return &balance, nil
}
