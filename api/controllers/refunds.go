package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/abubuhammad/georgy-marketplace-backend/api/middleware"
	"github.com/abubuhammad/georgy-marketplace-backend/api/responses"
	"github.com/abubuhammad/georgy-marketplace-backend/api/validators"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/refunds"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/logger"
)

type requestRefundRequest struct {
	AmountCents *int   `json:"amount_cents" validate:"omitempty,gt=0"`
	Reason      string `json:"reason" validate:"required"`
}

// RequestRefund opens a refund against a delivered order. The amount
// defaults to the full payment when omitted.
func RequestRefund(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID("orderId", chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body requestRefundRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		refund, err := svc.Request(r.Context(), refunds.RequestInput{
			OrderID:     orderID,
			AmountCents: body.AmountCents,
			Reason:      body.Reason,
			RequestedBy: middleware.ActorIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, refund)
	}
}

type refundDecisionRequest struct {
	Decision      string `json:"decision" validate:"required,oneof=approve reject"`
	OverrideCents *int   `json:"override_cents" validate:"omitempty,gt=0"`
}

// DecideRefund records the admin ruling on a pending refund.
func DecideRefund(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refundID, err := validators.ParsePathUUID("refundId", chi.URLParam(r, "refundId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body refundDecisionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		refund, err := svc.Decide(r.Context(), refunds.DecideInput{
			RefundID:      refundID,
			Decision:      refunds.Decision(body.Decision),
			AdminID:       middleware.ActorIDFromContext(r.Context()),
			OverrideCents: body.OverrideCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, refund)
	}
}

// RefundDetail returns a single refund.
func RefundDetail(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refundID, err := validators.ParsePathUUID("refundId", chi.URLParam(r, "refundId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		refund, err := svc.Get(r.Context(), refundID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, refund)
	}
}

// WithdrawRefund lets the requester pull back an undecided refund.
func WithdrawRefund(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refundID, err := validators.ParsePathUUID("refundId", chi.URLParam(r, "refundId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		refund, err := svc.Cancel(r.Context(), refundID, middleware.ActorIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, refund)
	}
}
