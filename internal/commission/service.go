package commission

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
	pkgerrors "github.com/abubuhammad/georgy-marketplace-backend/pkg/errors"
)

// Split is the commission outcome locked in at order creation.
// PlatformCutCents + SellerNetCents always equals the input amount.
type Split struct {
	AmountCents      int
	PlatformCutCents int
	SellerNetCents   int
	SchemeID         *uuid.UUID
	SchemeCategory   string
}

// Service resolves revenue share schemes and computes the split for an order
// amount. Resolution order: exact category scheme, the "default" scheme, then
// the configured fallback percentage.
type Service interface {
	Split(ctx context.Context, amountCents int, category string) (*Split, error)
	ListSchemes(ctx context.Context) ([]models.RevenueShareScheme, error)
	CreateScheme(ctx context.Context, input CreateSchemeInput) (*models.RevenueShareScheme, error)
}

type service struct {
	repo               Repository
	fallbackPercentage decimal.Decimal
}

// CreateSchemeInput carries the admin payload for a new revenue share scheme.
type CreateSchemeInput struct {
	Name               string
	Category           string
	PlatformPercentage decimal.Decimal
	MinimumFeeCents    *int
	MaximumFeeCents    *int
}

// NewService wires the calculator with its scheme repository and the fallback
// platform percentage applied when no scheme row matches.
func NewService(repo Repository, fallbackPlatformPercentage float64) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("commission repository required")
	}
	fallback := decimal.NewFromFloat(fallbackPlatformPercentage)
	if fallback.IsNegative() || fallback.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("fallback platform percentage %s out of range", fallback)
	}
	return &service{repo: repo, fallbackPercentage: fallback}, nil
}

func (s *service) Split(ctx context.Context, amountCents int, category string) (*Split, error) {
	if amountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	scheme, err := s.resolveScheme(ctx, category)
	if err != nil {
		return nil, err
	}

	pct := s.fallbackPercentage
	schemeCategory := ""
	var schemeID *uuid.UUID
	var minFee, maxFee *int
	if scheme != nil {
		pct = scheme.PlatformPercentage
		schemeCategory = scheme.Category
		id := scheme.ID
		schemeID = &id
		minFee = scheme.MinimumFeeCents
		maxFee = scheme.MaximumFeeCents
	}

	platformCut := int(decimal.NewFromInt(int64(amountCents)).Mul(pct).Floor().IntPart())
	platformCut = clampFee(platformCut, minFee, maxFee, amountCents)

	return &Split{
		AmountCents:      amountCents,
		PlatformCutCents: platformCut,
		SellerNetCents:   amountCents - platformCut,
		SchemeID:         schemeID,
		SchemeCategory:   schemeCategory,
	}, nil
}

func (s *service) resolveScheme(ctx context.Context, category string) (*models.RevenueShareScheme, error) {
	if category != "" && category != models.DefaultSchemeCategory {
		scheme, err := s.repo.FindActiveByCategory(ctx, category)
		if err == nil {
			return scheme, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load revenue share scheme")
		}
	}

	scheme, err := s.repo.FindActiveByCategory(ctx, models.DefaultSchemeCategory)
	if err == nil {
		return scheme, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load default revenue share scheme")
	}
	// No scheme rows at all; the configured fallback applies.
	return nil, nil
}

// clampFee bounds the platform cut by the scheme's fee limits; the cut can
// never exceed the order amount regardless of the configured minimum.
func clampFee(cut int, minFee, maxFee *int, amountCents int) int {
	if minFee != nil && cut < *minFee {
		cut = *minFee
	}
	if maxFee != nil && cut > *maxFee {
		cut = *maxFee
	}
	if cut > amountCents {
		cut = amountCents
	}
	if cut < 0 {
		cut = 0
	}
	return cut
}

func (s *service) ListSchemes(ctx context.Context) ([]models.RevenueShareScheme, error) {
	return s.repo.List(ctx)
}

func (s *service) CreateScheme(ctx context.Context, input CreateSchemeInput) (*models.RevenueShareScheme, error) {
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheme name required")
	}
	if input.Category == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheme category required")
	}
	one := decimal.NewFromInt(1)
	if input.PlatformPercentage.IsNegative() || input.PlatformPercentage.GreaterThan(one) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "platform percentage must be between 0 and 1")
	}
	if input.MinimumFeeCents != nil && *input.MinimumFeeCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum fee must not be negative")
	}
	if input.MaximumFeeCents != nil && *input.MaximumFeeCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "maximum fee must not be negative")
	}
	if input.MinimumFeeCents != nil && input.MaximumFeeCents != nil && *input.MinimumFeeCents > *input.MaximumFeeCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum fee exceeds maximum fee")
	}

	scheme := &models.RevenueShareScheme{
		Name:               input.Name,
		Category:           input.Category,
		PlatformPercentage: input.PlatformPercentage,
		SellerPercentage:   one.Sub(input.PlatformPercentage),
		MinimumFeeCents:    input.MinimumFeeCents,
		MaximumFeeCents:    input.MaximumFeeCents,
		IsActive:           true,
	}
	created, err := s.repo.Create(ctx, scheme)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create revenue share scheme")
	}
	return created, nil
}
