package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/abubuhammad/georgy-marketplace-backend/api/middleware"
	"github.com/abubuhammad/georgy-marketplace-backend/api/responses"
	"github.com/abubuhammad/georgy-marketplace-backend/api/validators"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/orders"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
	pkgerrors "github.com/abubuhammad/georgy-marketplace-backend/pkg/errors"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/logger"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/pagination"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/types"
)

type createOrderRequest struct {
	ProductID       string         `json:"product_id" validate:"required,uuid"`
	SellerID        string         `json:"seller_id" validate:"required,uuid"`
	Category        string         `json:"category" validate:"required"`
	Quantity        int            `json:"quantity" validate:"required,gt=0"`
	TotalCents      int            `json:"total_cents" validate:"required,gt=0"`
	Currency        string         `json:"currency" validate:"omitempty,oneof=NGN USD"`
	ShippingAddress *types.Address `json:"shipping_address" validate:"required"`
	Notes           *string        `json:"notes"`
}

// CreateOrder opens an order for the calling buyer and returns it with its
// pending payment reference.
func CreateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, _ := uuid.Parse(body.ProductID)
		sellerID, _ := uuid.Parse(body.SellerID)
		currency := enums.CurrencyNGN
		if body.Currency != "" {
			currency = enums.Currency(body.Currency)
		}

		order, err := svc.Create(r.Context(), orders.CreateOrderInput{
			BuyerID:         middleware.ActorIDFromContext(r.Context()),
			SellerID:        sellerID,
			ProductID:       productID,
			Category:        body.Category,
			Quantity:        body.Quantity,
			TotalCents:      body.TotalCents,
			Currency:        currency,
			ShippingAddress: body.ShippingAddress,
			Notes:           body.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// OrderDetail returns the order with its payment and shipment.
func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID("orderId", chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// ListOrders returns a cursor page scoped to the caller: buyers see their
// purchases, sellers their sales, admins anything they filter for.
func ListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		filters, err := buildOrderFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func buildOrderFilters(r *http.Request) (orders.OrderFilters, error) {
	var filters orders.OrderFilters

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
				WithDetails(map[string]any{"field": "status"})
		}
		filters.Status = &status
	}

	actorID := middleware.ActorIDFromContext(r.Context())
	switch middleware.ActorRoleFromContext(r.Context()) {
	case enums.ActorRoleBuyer:
		filters.BuyerID = &actorID
	case enums.ActorRoleSeller:
		filters.SellerID = &actorID
	case enums.ActorRoleAdmin:
		if buyerID, err := validators.ParseQueryUUID(r, "buyer_id"); err != nil {
			return filters, err
		} else if buyerID != uuid.Nil {
			filters.BuyerID = &buyerID
		}
		if sellerID, err := validators.ParseQueryUUID(r, "seller_id"); err != nil {
			return filters, err
		} else if sellerID != uuid.Nil {
			filters.SellerID = &sellerID
		}
	default:
		return filters, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot list orders")
	}
	return filters, nil
}

type orderStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Reason *string `json:"reason"`
}

// UpdateOrderStatus runs a seller/admin transition on the order.
func UpdateOrderStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID("orderId", chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body orderStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseOrderStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
					WithDetails(map[string]any{"field": "status"}))
			return
		}

		order, err := svc.Transition(r.Context(), orders.TransitionInput{
			OrderID:     orderID,
			Target:      target,
			ActorUserID: middleware.ActorIDFromContext(r.Context()),
			ActorRole:   middleware.ActorRoleFromContext(r.Context()),
			Reason:      body.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type cancelOrderRequest struct {
	Reason *string `json:"reason"`
}

// CancelOrder is the buyer-facing cancellation shortcut.
func CancelOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID("orderId", chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body cancelOrderRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		order, err := svc.Transition(r.Context(), orders.TransitionInput{
			OrderID:     orderID,
			Target:      enums.OrderStatusCancelled,
			ActorUserID: middleware.ActorIDFromContext(r.Context()),
			ActorRole:   middleware.ActorRoleFromContext(r.Context()),
			Reason:      body.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
