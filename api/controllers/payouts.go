package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/abubuhammad/georgy-marketplace-backend/api/middleware"
	"github.com/abubuhammad/georgy-marketplace-backend/api/responses"
	"github.com/abubuhammad/georgy-marketplace-backend/api/validators"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/payouts"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
	pkgerrors "github.com/abubuhammad/georgy-marketplace-backend/pkg/errors"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/logger"
)

// sellerFromPath resolves the seller path parameter and enforces that a
// seller can only act on their own account; admins may act on any.
func sellerFromPath(r *http.Request) (uuid.UUID, error) {
	sellerID, err := validators.ParsePathUUID("sellerId", chi.URLParam(r, "sellerId"))
	if err != nil {
		return uuid.Nil, err
	}
	role := middleware.ActorRoleFromContext(r.Context())
	if role == enums.ActorRoleAdmin {
		return sellerID, nil
	}
	if middleware.ActorIDFromContext(r.Context()) != sellerID {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "seller account mismatch")
	}
	return sellerID, nil
}

// SellerBalance returns the seller's derived available balance.
func SellerBalance(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := sellerFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		available, err := svc.AvailableBalance(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"seller_id":       sellerID,
			"available_cents": available,
		})
	}
}

type requestPayoutRequest struct {
	AmountCents *int `json:"amount_cents" validate:"omitempty,gt=0"`
}

// RequestPayout schedules a payout for the seller's settled earnings.
func RequestPayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := sellerFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body requestPayoutRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		payout, err := svc.Request(r.Context(), payouts.RequestInput{
			SellerID:    sellerID,
			AmountCents: body.AmountCents,
			RequestedBy: middleware.ActorIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payout)
	}
}

// ListSellerPayouts returns the seller's payout history.
func ListSellerPayouts(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := sellerFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListBySeller(r.Context(), sellerID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

type processPayoutsRequest struct {
	PayoutIDs []string `json:"payout_ids" validate:"required,min=1,dive,uuid"`
	Action    string   `json:"action" validate:"required,oneof=approve reject"`
}

// ProcessPayouts applies the admin action to each payout and reports
// per-item results; a failed item never blocks the rest.
func ProcessPayouts(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body processPayoutsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payoutIDs := make([]uuid.UUID, 0, len(body.PayoutIDs))
		for _, raw := range body.PayoutIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "payout id must be a uuid").
						WithDetails(map[string]any{"value": raw}))
				return
			}
			payoutIDs = append(payoutIDs, id)
		}

		results := svc.DecideBatch(r.Context(), payoutIDs, payouts.BatchAction(body.Action), middleware.ActorIDFromContext(r.Context()))
		responses.WriteSuccess(w, map[string]any{"results": results})
	}
}
