package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/abubuhammad/georgy-marketplace-backend/api/responses"
	"github.com/abubuhammad/georgy-marketplace-backend/api/validators"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/commission"
	pkgerrors "github.com/abubuhammad/georgy-marketplace-backend/pkg/errors"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/logger"
)

// ListSchemes returns the active revenue share schemes.
func ListSchemes(svc commission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		schemes, err := svc.ListSchemes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, schemes)
	}
}

type createSchemeRequest struct {
	Name               string `json:"name" validate:"required"`
	Category           string `json:"category" validate:"required"`
	PlatformPercentage string `json:"platform_percentage" validate:"required"`
	MinimumFeeCents    *int   `json:"minimum_fee_cents" validate:"omitempty,gte=0"`
	MaximumFeeCents    *int   `json:"maximum_fee_cents" validate:"omitempty,gte=0"`
}

// CreateScheme registers a category split; the seller share is derived so
// the two always sum to one.
func CreateScheme(svc commission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createSchemeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		platform, err := decimal.NewFromString(body.PlatformPercentage)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "platform percentage must be a decimal").
					WithDetails(map[string]any{"field": "platform_percentage"}))
			return
		}

		scheme, err := svc.CreateScheme(r.Context(), commission.CreateSchemeInput{
			Name:               body.Name,
			Category:           body.Category,
			PlatformPercentage: platform,
			MinimumFeeCents:    body.MinimumFeeCents,
			MaximumFeeCents:    body.MaximumFeeCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, scheme)
	}
}
