package commission

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/db/models"
)

type fakeRepository struct {
	schemes map[string]*models.RevenueShareScheme
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) FindActiveByCategory(ctx context.Context, category string) (*models.RevenueShareScheme, error) {
	if scheme, ok := f.schemes[category]; ok {
		return scheme, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) List(ctx context.Context) ([]models.RevenueShareScheme, error) {
	var out []models.RevenueShareScheme
	for _, scheme := range f.schemes {
		out = append(out, *scheme)
	}
	return out, nil
}

func (f *fakeRepository) Create(ctx context.Context, scheme *models.RevenueShareScheme) (*models.RevenueShareScheme, error) {
	if f.schemes == nil {
		f.schemes = map[string]*models.RevenueShareScheme{}
	}
	scheme.ID = uuid.New()
	f.schemes[scheme.Category] = scheme
	return scheme, nil
}

func (f *fakeRepository) Deactivate(ctx context.Context, category string) error {
	if scheme, ok := f.schemes[category]; ok {
		scheme.IsActive = false
	}
	return nil
}

func scheme(category string, platformPct string, minFee, maxFee *int) *models.RevenueShareScheme {
	pct := decimal.RequireFromString(platformPct)
	return &models.RevenueShareScheme{
		ID:                 uuid.New(),
		Name:               category + " split",
		Category:           category,
		PlatformPercentage: pct,
		SellerPercentage:   decimal.NewFromInt(1).Sub(pct),
		MinimumFeeCents:    minFee,
		MaximumFeeCents:    maxFee,
		IsActive:           true,
	}
}

func intPtr(v int) *int { return &v }

func TestSplit_CategoryScheme(t *testing.T) {
	repo := &fakeRepository{schemes: map[string]*models.RevenueShareScheme{
		"electronics": scheme("electronics", "0.10", nil, nil),
	}}
	svc, err := NewService(repo, 0.05)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	split, err := svc.Split(context.Background(), 10000, "electronics")
	if err != nil {
		t.Fatalf("Split error: %v", err)
	}
	if split.PlatformCutCents != 1000 {
		t.Fatalf("expected platform cut 1000, got %d", split.PlatformCutCents)
	}
	if split.SellerNetCents != 9000 {
		t.Fatalf("expected seller net 9000, got %d", split.SellerNetCents)
	}
	if split.SchemeCategory != "electronics" {
		t.Fatalf("expected electronics scheme, got %q", split.SchemeCategory)
	}
}

func TestSplit_RoundsDownAndStaysExact(t *testing.T) {
	repo := &fakeRepository{schemes: map[string]*models.RevenueShareScheme{
		"fashion": scheme("fashion", "0.0333", nil, nil),
	}}
	svc, err := NewService(repo, 0.05)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	// 999 * 0.0333 = 33.2667 -> platform takes 33, seller gets the remainder.
	split, err := svc.Split(context.Background(), 999, "fashion")
	if err != nil {
		t.Fatalf("Split error: %v", err)
	}
	if split.PlatformCutCents != 33 {
		t.Fatalf("expected platform cut 33, got %d", split.PlatformCutCents)
	}
	if split.PlatformCutCents+split.SellerNetCents != 999 {
		t.Fatalf("split does not reconstruct the amount: %d + %d", split.PlatformCutCents, split.SellerNetCents)
	}
}

func TestSplit_FallsBackToDefaultScheme(t *testing.T) {
	repo := &fakeRepository{schemes: map[string]*models.RevenueShareScheme{
		models.DefaultSchemeCategory: scheme(models.DefaultSchemeCategory, "0.05", nil, nil),
	}}
	svc, err := NewService(repo, 0.02)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	split, err := svc.Split(context.Background(), 20000, "unknown-category")
	if err != nil {
		t.Fatalf("Split error: %v", err)
	}
	if split.PlatformCutCents != 1000 {
		t.Fatalf("expected default scheme cut 1000, got %d", split.PlatformCutCents)
	}
	if split.SchemeCategory != models.DefaultSchemeCategory {
		t.Fatalf("expected default scheme, got %q", split.SchemeCategory)
	}
}

func TestSplit_HardFallbackWithoutSchemes(t *testing.T) {
	svc, err := NewService(&fakeRepository{}, 0.05)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	split, err := svc.Split(context.Background(), 10000, "anything")
	if err != nil {
		t.Fatalf("Split error: %v", err)
	}
	if split.PlatformCutCents != 500 {
		t.Fatalf("expected fallback cut 500, got %d", split.PlatformCutCents)
	}
	if split.SchemeID != nil {
		t.Fatalf("expected no scheme id on fallback")
	}
}

func TestSplit_FeeClamping(t *testing.T) {
	cases := []struct {
		name        string
		amountCents int
		minFee      *int
		maxFee      *int
		wantCut     int
	}{
		{"minimum raises cut", 1000, intPtr(200), nil, 200},
		{"maximum caps cut", 100000, nil, intPtr(1500), 1500},
		{"minimum never exceeds amount", 100, intPtr(500), nil, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeRepository{schemes: map[string]*models.RevenueShareScheme{
				"books": scheme("books", "0.05", tc.minFee, tc.maxFee),
			}}
			svc, err := NewService(repo, 0.05)
			if err != nil {
				t.Fatalf("unexpected service error: %v", err)
			}
			split, err := svc.Split(context.Background(), tc.amountCents, "books")
			if err != nil {
				t.Fatalf("Split error: %v", err)
			}
			if split.PlatformCutCents != tc.wantCut {
				t.Fatalf("expected cut %d, got %d", tc.wantCut, split.PlatformCutCents)
			}
			if split.PlatformCutCents+split.SellerNetCents != tc.amountCents {
				t.Fatalf("split identity broken: %d + %d != %d", split.PlatformCutCents, split.SellerNetCents, tc.amountCents)
			}
		})
	}
}

func TestSplit_RejectsNonPositiveAmount(t *testing.T) {
	svc, err := NewService(&fakeRepository{}, 0.05)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	if _, err := svc.Split(context.Background(), 0, "any"); err == nil {
		t.Fatalf("expected validation error for zero amount")
	}
	if _, err := svc.Split(context.Background(), -50, "any"); err == nil {
		t.Fatalf("expected validation error for negative amount")
	}
}

func TestCreateScheme_DerivesSellerPercentage(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo, 0.05)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	created, err := svc.CreateScheme(context.Background(), CreateSchemeInput{
		Name:               "Electronics split",
		Category:           "electronics",
		PlatformPercentage: decimal.RequireFromString("0.12"),
	})
	if err != nil {
		t.Fatalf("CreateScheme error: %v", err)
	}
	if !created.Balanced() {
		t.Fatalf("expected balanced scheme, platform %s seller %s", created.PlatformPercentage, created.SellerPercentage)
	}
}

func TestCreateScheme_Validation(t *testing.T) {
	svc, err := NewService(&fakeRepository{}, 0.05)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	cases := []struct {
		name  string
		input CreateSchemeInput
	}{
		{"missing name", CreateSchemeInput{Category: "x", PlatformPercentage: decimal.RequireFromString("0.1")}},
		{"missing category", CreateSchemeInput{Name: "x", PlatformPercentage: decimal.RequireFromString("0.1")}},
		{"percentage above one", CreateSchemeInput{Name: "x", Category: "x", PlatformPercentage: decimal.RequireFromString("1.5")}},
		{"min above max", CreateSchemeInput{Name: "x", Category: "x", PlatformPercentage: decimal.RequireFromString("0.1"), MinimumFeeCents: intPtr(500), MaximumFeeCents: intPtr(100)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateScheme(context.Background(), tc.input); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
