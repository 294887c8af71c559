package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/ridehouse/api/internal/domain"
	"github.com/ridehouse/api/internal/platform/auth"
	"github.com/ridehouse/api/internal/platform/jobs"
)

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

// IDGenerator mints opaque identifiers.
type IDGenerator func() string

// EventPublisher emits sale lifecycle events. Implementations must never fail
// the calling operation.
type EventPublisher interface {
	Publish(ctx context.Context, event jobs.SaleEvent)
}

// CreateSaleLine is one requested line on a new sale. UnitPrice overrides the
// catalog price when set; nil means "use the catalog price".
type CreateSaleLine struct {
	ProductID       string
	Quantity        int
	UnitPrice       *decimal.Decimal
	DiscountPercent decimal.Decimal
	Notes           string
}

// CreateSaleCommand carries everything needed to record a new sale.
type CreateSaleCommand struct {
	CustomerID      string
	Lines           []CreateSaleLine
	DiscountAmount  decimal.Decimal
	TaxRate         decimal.Decimal
	PaymentMethod   string
	Notes           string
	InternalNotes   string
	DeliveryDate    *time.Time
	DeliveryAddress string
}

// UpdateSaleCommand is a partial header update. Nil fields are left unchanged.
// Status changes run through the same transition table as the tracking flow.
type UpdateSaleCommand struct {
	Status          *domain.SaleStatus
	PaymentStatus   *domain.PaymentStatus
	PaymentMethod   *string
	Notes           *string
	InternalNotes   *string
	DeliveryDate    *time.Time
	DeliveryAddress *string
	IsDelivered     *bool
}

// AddPaymentCommand records one payment against a sale.
type AddPaymentCommand struct {
	Amount        decimal.Decimal
	PaymentMethod string
	Notes         string
}

// ListSalesQuery narrows scoped sale listings.
type ListSalesQuery struct {
	Status        domain.SaleStatus
	PaymentStatus domain.PaymentStatus
	CustomerID    string
	SellerID      string
	From          *time.Time
	To            *time.Time
}

// ReportQuery bounds the sales report.
type ReportQuery struct {
	From     *time.Time
	To       *time.Time
	SellerID string
}

// SalesReport aggregates totals over non-cancelled sales.
type SalesReport struct {
	Count        int
	TotalRevenue decimal.Decimal
	TotalPaid    decimal.Decimal
	TotalPending decimal.Decimal
}

// SaleDetail is a sale denormalised with the customer projection and, when
// loaded through Get, its payment entries.
type SaleDetail struct {
	Sale     domain.Sale
	Customer domain.Customer
	Payments []domain.PaymentEntry
}

// SaleService owns sale creation, scoped reads, header updates, the payment
// ledger and lifecycle terminations.
type SaleService interface {
	CreateSale(ctx context.Context, actor auth.Actor, cmd CreateSaleCommand) (SaleDetail, error)
	GetSale(ctx context.Context, actor auth.Actor, saleID string) (SaleDetail, error)
	ListSales(ctx context.Context, actor auth.Actor, query ListSalesQuery) ([]domain.Sale, error)
	ListByCustomer(ctx context.Context, actor auth.Actor, customerID string) ([]domain.Sale, error)
	UpdateSale(ctx context.Context, actor auth.Actor, saleID string, cmd UpdateSaleCommand) (domain.Sale, error)
	AddPayment(ctx context.Context, actor auth.Actor, saleID string, cmd AddPaymentCommand) (domain.Sale, error)
	CancelSale(ctx context.Context, actor auth.Actor, saleID string) (domain.Sale, error)
	RemoveSale(ctx context.Context, actor auth.Actor, saleID string) error
	Report(ctx context.Context, actor auth.Actor, query ReportQuery) (SalesReport, error)
}

// UpdateStatusCommand applies one fulfillment transition, optionally carrying
// delivery metadata updated in the same call.
type UpdateStatusCommand struct {
	Status                domain.SaleStatus
	Comment               string
	TrackingNumber        string
	ShippingCarrier       string
	EstimatedDeliveryDate *time.Time
}

// TrackingService drives the fulfillment state machine and exposes the
// append-only history.
type TrackingService interface {
	UpdateStatus(ctx context.Context, actor auth.Actor, saleID string, cmd UpdateStatusCommand) (domain.Sale, error)
	History(ctx context.Context, actor auth.Actor, saleID string) ([]domain.StatusChange, error)
}

// CounterService allocates human-readable sale numbers.
type CounterService interface {
	NextSaleNumber(ctx context.Context, at time.Time) (string, error)
}
