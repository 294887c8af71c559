package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/ridehouse/api/internal/domain"
	"github.com/ridehouse/api/internal/platform/auth"
	"github.com/ridehouse/api/internal/platform/httpx"
	"github.com/ridehouse/api/internal/services"
)

// TrackingHandler exposes fulfillment status transitions and history.
type TrackingHandler struct {
	tracking services.TrackingService
}

// NewTrackingHandler constructs the tracking handler.
func NewTrackingHandler(tracking services.TrackingService) (*TrackingHandler, error) {
	if tracking == nil {
		return nil, errors.New("tracking handler requires tracking service")
	}
	return &TrackingHandler{tracking: tracking}, nil
}

// Routes mounts the tracking endpoints under a sale.
func (h *TrackingHandler) Routes(r chi.Router) {
	r.Patch("/status", h.updateStatus)
	r.Get("/history", h.history)
}

type updateStatusRequest struct {
	Status                domain.SaleStatus `json:"status"`
	Comment               string            `json:"comment,omitempty"`
	TrackingNumber        string            `json:"trackingNumber,omitempty"`
	ShippingCarrier       string            `json:"shippingCarrier,omitempty"`
	EstimatedDeliveryDate *time.Time        `json:"estimatedDeliveryDate,omitempty"`
}

func (h *TrackingHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "caller identity missing", http.StatusUnauthorized))
		return
	}

	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	sale, err := h.tracking.UpdateStatus(ctx, actor, chi.URLParam(r, "saleID"), services.UpdateStatusCommand{
		Status:                req.Status,
		Comment:               req.Comment,
		TrackingNumber:        req.TrackingNumber,
		ShippingCarrier:       req.ShippingCarrier,
		EstimatedDeliveryDate: req.EstimatedDeliveryDate,
	})
	if err != nil {
		writeSaleError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, toSaleResponse(sale))
}

func (h *TrackingHandler) history(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "caller identity missing", http.StatusUnauthorized))
		return
	}

	history, err := h.tracking.History(ctx, actor, chi.URLParam(r, "saleID"))
	if err != nil {
		writeSaleError(ctx, w, err)
		return
	}

	out := make([]statusChangeResponse, 0, len(history))
	for _, change := range history {
		out = append(out, statusChangeResponse{
			Status:    string(change.Status),
			Timestamp: change.Timestamp,
			Comment:   change.Comment,
			UpdatedBy: change.UpdatedBy,
		})
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, out)
}
