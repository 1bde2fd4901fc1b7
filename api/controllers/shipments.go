package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/abubuhammad/georgy-marketplace-backend/api/middleware"
	"github.com/abubuhammad/georgy-marketplace-backend/api/responses"
	"github.com/abubuhammad/georgy-marketplace-backend/api/validators"
	"github.com/abubuhammad/georgy-marketplace-backend/internal/shipments"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
	pkgerrors "github.com/abubuhammad/georgy-marketplace-backend/pkg/errors"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/logger"
)

type shipmentStatusRequest struct {
	Status         string  `json:"status" validate:"required"`
	TrackingNumber *string `json:"tracking_number"`
	ProofNote      *string `json:"proof_note"`
}

// UpdateShipmentStatus is the delivery agent's progress update. A delivered
// update finalizes the order after the shipment commit.
func UpdateShipmentStatus(svc shipments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shipmentID, err := validators.ParsePathUUID("shipmentId", chi.URLParam(r, "shipmentId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body shipmentStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseShipmentStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "unknown shipment status").
					WithDetails(map[string]any{"field": "status"}))
			return
		}

		shipment, err := svc.UpdateStatus(r.Context(), shipments.UpdateStatusInput{
			ShipmentID:     shipmentID,
			Target:         target,
			ActorUserID:    middleware.ActorIDFromContext(r.Context()),
			ActorRole:      middleware.ActorRoleFromContext(r.Context()),
			TrackingNumber: body.TrackingNumber,
			ProofNote:      body.ProofNote,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, shipment)
	}
}

type assignShipmentRequest struct {
	AgentID           string     `json:"agent_id" validate:"required,uuid"`
	DeliveryFeeCents  int        `json:"delivery_fee_cents" validate:"gte=0"`
	EstimatedDelivery *time.Time `json:"estimated_delivery"`
}

// AssignShipment attaches a delivery agent and fee to a fresh shipment.
func AssignShipment(svc shipments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shipmentID, err := validators.ParsePathUUID("shipmentId", chi.URLParam(r, "shipmentId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body assignShipmentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		agentID, _ := uuid.Parse(body.AgentID)

		shipment, err := svc.Assign(r.Context(), shipments.AssignInput{
			ShipmentID:        shipmentID,
			AgentID:           agentID,
			DeliveryFeeCents:  body.DeliveryFeeCents,
			EstimatedDelivery: body.EstimatedDelivery,
			ActorUserID:       middleware.ActorIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, shipment)
	}
}

// ShipmentDetail returns a single shipment.
func ShipmentDetail(svc shipments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shipmentID, err := validators.ParsePathUUID("shipmentId", chi.URLParam(r, "shipmentId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		shipment, err := svc.Get(r.Context(), shipmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, shipment)
	}
}

// AgentBalance returns the agent's accumulated commission counters.
func AgentBalance(svc shipments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID, err := validators.ParsePathUUID("agentId", chi.URLParam(r, "agentId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		balance, err := svc.AgentBalance(r.Context(), agentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}
