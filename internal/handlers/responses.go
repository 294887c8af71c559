package handlers

import (
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/ridehouse/api/internal/domain"
	"github.com/ridehouse/api/internal/services"
)

type saleLineResponse struct {
	ProductID       string `json:"productId"`
	Quantity        int    `json:"quantity"`
	UnitPrice       string `json:"unitPrice"`
	LineTotal       string `json:"lineTotal"`
	DiscountPercent string `json:"discountPercent"`
	DiscountAmount  string `json:"discountAmount"`
	Notes           string `json:"notes,omitempty"`
}

type statusChangeResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Comment   string    `json:"comment,omitempty"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
}

type saleResponse struct {
	ID                    string                 `json:"id"`
	SaleNumber            string                 `json:"saleNumber"`
	CustomerID            string                 `json:"customerId"`
	SellerID              *string                `json:"sellerId,omitempty"`
	Items                 []saleLineResponse     `json:"items"`
	Subtotal              string                 `json:"subtotal"`
	TaxRate               string                 `json:"taxRate"`
	TaxAmount             string                 `json:"taxAmount"`
	DiscountAmount        string                 `json:"discountAmount"`
	TotalAmount           string                 `json:"totalAmount"`
	PaidAmount            string                 `json:"paidAmount"`
	BalanceAmount         string                 `json:"balanceAmount"`
	Status                string                 `json:"status"`
	PaymentStatus         string                 `json:"paymentStatus"`
	PaymentMethod         string                 `json:"paymentMethod,omitempty"`
	Notes                 string                 `json:"notes,omitempty"`
	DeliveryDate          *time.Time             `json:"deliveryDate,omitempty"`
	DeliveryAddress       string                 `json:"deliveryAddress,omitempty"`
	EstimatedDeliveryDate *time.Time             `json:"estimatedDeliveryDate,omitempty"`
	TrackingNumber        string                 `json:"trackingNumber,omitempty"`
	ShippingCarrier       string                 `json:"shippingCarrier,omitempty"`
	IsDelivered           bool                   `json:"isDelivered"`
	CancelledAt           *time.Time             `json:"cancelledAt,omitempty"`
	StatusHistory         []statusChangeResponse `json:"statusHistory"`
	Version               int64                  `json:"version"`
	CreatedAt             time.Time              `json:"createdAt"`
	UpdatedAt             time.Time              `json:"updatedAt"`
}

type customerResponse struct {
	ID       string `json:"id"`
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email,omitempty"`
}

type paymentEntryResponse struct {
	ID            string    `json:"id"`
	Amount        string    `json:"amount"`
	PaymentMethod string    `json:"paymentMethod"`
	Notes         string    `json:"notes,omitempty"`
	RecordedBy    string    `json:"recordedBy,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type saleDetailResponse struct {
	saleResponse
	Customer *customerResponse      `json:"customer,omitempty"`
	Payments []paymentEntryResponse `json:"payments,omitempty"`
}

func moneyString(amount decimal.Decimal) string {
	return domain.RoundMoney(amount).StringFixed(2)
}

func toSaleResponse(sale domain.Sale) saleResponse {
	resp := saleResponse{
		ID:                    sale.ID,
		SaleNumber:            sale.SaleNumber,
		CustomerID:            sale.CustomerID,
		SellerID:              sale.SellerID,
		Items:                 make([]saleLineResponse, 0, len(sale.Items)),
		Subtotal:              moneyString(sale.Subtotal),
		TaxRate:               moneyString(sale.TaxRate),
		TaxAmount:             moneyString(sale.TaxAmount),
		DiscountAmount:        moneyString(sale.DiscountAmount),
		TotalAmount:           moneyString(sale.TotalAmount),
		PaidAmount:            moneyString(sale.PaidAmount),
		BalanceAmount:         moneyString(sale.BalanceAmount()),
		Status:                string(sale.Status),
		PaymentStatus:         string(sale.PaymentStatus),
		PaymentMethod:         sale.PaymentMethod,
		Notes:                 sale.Notes,
		DeliveryDate:          sale.DeliveryDate,
		DeliveryAddress:       sale.DeliveryAddress,
		EstimatedDeliveryDate: sale.EstimatedDeliveryDate,
		TrackingNumber:        sale.TrackingNumber,
		ShippingCarrier:       sale.ShippingCarrier,
		IsDelivered:           sale.IsDelivered,
		CancelledAt:           sale.CancelledAt,
		StatusHistory:         make([]statusChangeResponse, 0, len(sale.StatusHistory)),
		Version:               sale.Version,
		CreatedAt:             sale.CreatedAt,
		UpdatedAt:             sale.UpdatedAt,
	}
	for _, item := range sale.Items {
		resp.Items = append(resp.Items, saleLineResponse{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			UnitPrice:       moneyString(item.UnitPrice),
			LineTotal:       moneyString(item.LineTotal),
			DiscountPercent: item.DiscountPercent.String(),
			DiscountAmount:  moneyString(item.DiscountAmount),
			Notes:           item.Notes,
		})
	}
	for _, change := range sale.StatusHistory {
		resp.StatusHistory = append(resp.StatusHistory, statusChangeResponse{
			Status:    string(change.Status),
			Timestamp: change.Timestamp,
			Comment:   change.Comment,
			UpdatedBy: change.UpdatedBy,
		})
	}
	return resp
}

func toSaleDetailResponse(detail services.SaleDetail) saleDetailResponse {
	resp := saleDetailResponse{saleResponse: toSaleResponse(detail.Sale)}
	if detail.Customer.ID != "" {
		resp.Customer = &customerResponse{
			ID:       detail.Customer.ID,
			FullName: detail.Customer.FullName,
			Email:    detail.Customer.Email,
		}
	}
	for _, entry := range detail.Payments {
		resp.Payments = append(resp.Payments, paymentEntryResponse{
			ID:            entry.ID,
			Amount:        moneyString(entry.Amount),
			PaymentMethod: entry.PaymentMethod,
			Notes:         entry.Notes,
			RecordedBy:    entry.RecordedBy,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return resp
}

func toSaleListResponse(sales []domain.Sale) []saleResponse {
	out := make([]saleResponse, 0, len(sales))
	for _, sale := range sales {
		out = append(out, toSaleResponse(sale))
	}
	return out
}
