package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domain "github.com/ridehouse/api/internal/domain"
	"github.com/ridehouse/api/internal/platform/auth"
	"github.com/ridehouse/api/internal/platform/httpx"
	"github.com/ridehouse/api/internal/platform/requestctx"
	"github.com/ridehouse/api/internal/services"
)

// SalesHandler exposes the sale lifecycle over HTTP.
type SalesHandler struct {
	sales services.SaleService
}

// NewSalesHandler constructs the sales handler.
func NewSalesHandler(sales services.SaleService) (*SalesHandler, error) {
	if sales == nil {
		return nil, errors.New("sales handler requires sale service")
	}
	return &SalesHandler{sales: sales}, nil
}

// Routes mounts the sale endpoints on the router.
func (h *SalesHandler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/report", h.report)
	r.Get("/customer/{customerID}", h.listByCustomer)
	r.Get("/{saleID}", h.get)
	r.Patch("/{saleID}", h.update)
	r.Delete("/{saleID}", h.remove)
	r.Post("/{saleID}/cancel", h.cancel)
	r.Post("/{saleID}/payments", h.addPayment)
}

type createSaleLineRequest struct {
	ProductID       string           `json:"productId"`
	Quantity        int              `json:"quantity"`
	UnitPrice       *decimal.Decimal `json:"unitPrice,omitempty"`
	DiscountPercent decimal.Decimal  `json:"discountPercent"`
	Notes           string           `json:"notes,omitempty"`
}

type createSaleRequest struct {
	CustomerID      string                  `json:"customerId"`
	Lines           []createSaleLineRequest `json:"lines"`
	DiscountAmount  decimal.Decimal         `json:"discountAmount"`
	TaxRate         decimal.Decimal         `json:"taxRate"`
	PaymentMethod   string                  `json:"paymentMethod,omitempty"`
	Notes           string                  `json:"notes,omitempty"`
	InternalNotes   string                  `json:"internalNotes,omitempty"`
	DeliveryDate    *time.Time              `json:"deliveryDate,omitempty"`
	DeliveryAddress string                  `json:"deliveryAddress,omitempty"`
}

func (h *SalesHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "caller identity missing", http.StatusUnauthorized))
		return
	}

	var req createSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.CreateSaleCommand{
		CustomerID:      req.CustomerID,
		Lines:           make([]services.CreateSaleLine, 0, len(req.Lines)),
		DiscountAmount:  req.DiscountAmount,
		TaxRate:         req.TaxRate,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		InternalNotes:   req.InternalNotes,
		DeliveryDate:    req.DeliveryDate,
		DeliveryAddress: req.DeliveryAddress,
	}
	for _, line := range req.Lines {
		cmd.Lines = append(cmd.Lines, services.CreateSaleLine{
			ProductID:       line.ProductID,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			DiscountPercent: line.DiscountPercent,
			Notes:           line.Notes,
		})
	}

	detail, err := h.sales.CreateSale(ctx, actor, cmd)
	if err != nil {
		writeSaleError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusCreated, toSaleDetailResponse(detail))
}

func (h *SalesHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "caller identity missing", http.StatusUnauthorized))
		return
	}

	detail, err := h.sales.GetSale(ctx, actor, chi.URLParam(r, "saleID"))
	if err != nil {
		writeSaleError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, toSaleDetailResponse(detail))
}

func (h *SalesHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "caller identity missing", http.StatusUnauthorized))
		return
	}

	query := services.ListSalesQuery{
		Status:        domain.SaleStatus(r.URL.Query().Get("status")),
		PaymentStatus: domain.PaymentStatus(r.URL.Query().Get("paymentStatus")),
		CustomerID:    r.URL.Query().Get("customerId"),
		SellerID:      r.URL.Query().Get("sellerId"),
	}
	var err error
	if query.From, err = parseTimeParam(r, "from"); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "from must be RFC 3339", http.StatusBadRequest))
		return
	}
	if query.To, err = parseTimeParam(r, "to"); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "to must be RFC 3339", http.StatusBadRequest))
		return
	}

	sales, err := h.sales.ListSales(ctx, actor, query)
	if err != nil {
		writeSaleError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, toSaleListResponse(sales))
}

func (h *SalesHandler) listByCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "caller identity missing", http.StatusUnauthorized))
		return
	}

	sales, err := h.sales.ListByCustomer(ctx, actor, chi.URLParam(r, "customerID"))
	if err != nil {
		writeSaleError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, toSaleListResponse(sales))
}

type updateSaleRequest struct {
	Status          *domain.SaleStatus    `json:"status,omitempty"`
	PaymentStatus   *domain.PaymentStatus `json:"paymentStatus,omitempty"`
	PaymentMethod   *string               `json:"paymentMethod,omitempty"`
	Notes           *string               `json:"notes,omitempty"`
	InternalNotes   *string               `json:"internalNotes,omitempty"`
	DeliveryDate    *time.Time            `json:"deliveryDate,omitempty"`
	DeliveryAddress *string               `json:"deliveryAddress,omitempty"`
	IsDelivered     *bool                 `json:"isDelivered,omitempty"`
}

func (h *SalesHandler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "caller identity missing", http.StatusUnauthorized))
		return
	}

	var req updateSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	sale, err := h.sales.UpdateSale(ctx, actor, chi.URLParam(r, "saleID"), services.UpdateSaleCommand{
		Status:          req.Status,
		PaymentStatus:   req.PaymentStatus,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		InternalNotes:   req.InternalNotes,
		DeliveryDate:    req.DeliveryDate,
		DeliveryAddress: req.DeliveryAddress,
		IsDelivered:     req.IsDelivered,
	})
	if err != nil {
		writeSaleError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, toSaleResponse(sale))
}

type addPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod"`
	Notes         string          `json:"notes,omitempty"`
}

func (h *SalesHandler) addPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "caller identity missing", http.StatusUnauthorized))
		return
	}

	var req addPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	sale, err := h.sales.AddPayment(ctx, actor, chi.URLParam(r, "saleID"), services.AddPaymentCommand{
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		writeSaleError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, toSaleResponse(sale))
}

func (h *SalesHandler) cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "caller identity missing", http.StatusUnauthorized))
		return
	}

	sale, err := h.sales.CancelSale(ctx, actor, chi.URLParam(r, "saleID"))
	if err != nil {
		writeSaleError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, toSaleResponse(sale))
}

func (h *SalesHandler) remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "caller identity missing", http.StatusUnauthorized))
		return
	}

	if err := h.sales.RemoveSale(ctx, actor, chi.URLParam(r, "saleID")); err != nil {
		writeSaleError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SalesHandler) report(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "caller identity missing", http.StatusUnauthorized))
		return
	}

	query := services.ReportQuery{SellerID: r.URL.Query().Get("sellerId")}
	var err error
	if query.From, err = parseTimeParam(r, "from"); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "from must be RFC 3339", http.StatusBadRequest))
		return
	}
	if query.To, err = parseTimeParam(r, "to"); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "to must be RFC 3339", http.StatusBadRequest))
		return
	}

	report, err := h.sales.Report(ctx, actor, query)
	if err != nil {
		writeSaleError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, reportResponse{
		Count:        report.Count,
		TotalRevenue: moneyString(report.TotalRevenue),
		TotalPaid:    moneyString(report.TotalPaid),
		TotalPending: moneyString(report.TotalPending),
	})
}

type reportResponse struct {
	Count        int    `json:"count"`
	TotalRevenue string `json:"totalRevenue"`
	TotalPaid    string `json:"totalPaid"`
	TotalPending string `json:"totalPending"`
}

func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// writeSaleError maps service sentinels onto the HTTP error envelope. Nothing
// below the service layer leaks to the client.
func writeSaleError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrSaleNotFound), errors.Is(err, services.ErrTrackingNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "sale not found", http.StatusNotFound))
	case errors.Is(err, services.ErrSaleInvalidInput), errors.Is(err, services.ErrTrackingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrSaleConflict), errors.Is(err, services.ErrTrackingConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrSaleForbidden), errors.Is(err, services.ErrTrackingForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "operation not permitted", http.StatusForbidden))
	default:
		requestctx.Logger(ctx).Error("sales handler: unexpected failure", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal", "internal error", http.StatusInternalServerError))
	}
}
