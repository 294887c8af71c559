package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role identifies the kind of actor performing an operation.
type Role string

const (
	// RoleAdmin may read and mutate every sale without restriction.
	RoleAdmin Role = "admin"
	// RoleSeller may read and advance sales they created.
	RoleSeller Role = "seller"
	// RoleCustomer may read their own sales but never mutate fulfillment state.
	RoleCustomer Role = "customer"
)

// SaleStatus enumerates the fulfillment lifecycle stages of a sale.
type SaleStatus string

const (
	// SaleStatusPending indicates the sale has been recorded but not yet confirmed.
	SaleStatusPending SaleStatus = "pending"
	// SaleStatusConfirmed indicates a seller has confirmed the sale.
	SaleStatusConfirmed SaleStatus = "confirmed"
	// SaleStatusProcessing indicates the sale is being worked on.
	SaleStatusProcessing SaleStatus = "processing"
	// SaleStatusPreparing indicates the units are being prepared for handover.
	SaleStatusPreparing SaleStatus = "preparing"
	// SaleStatusReadyForPickup indicates the units await customer pickup.
	SaleStatusReadyForPickup SaleStatus = "ready_for_pickup"
	// SaleStatusInTransit indicates the units are on their way to the customer.
	SaleStatusInTransit SaleStatus = "in_transit"
	// SaleStatusCompleted indicates the sale has been delivered and closed.
	SaleStatusCompleted SaleStatus = "completed"
	// SaleStatusCancelled indicates the sale was cancelled before completion.
	SaleStatusCancelled SaleStatus = "cancelled"
	// SaleStatusRefunded indicates a cancelled sale has been refunded.
	SaleStatusRefunded SaleStatus = "refunded"
)

// PaymentStatus is derived from the paid amount relative to the total amount.
type PaymentStatus string

const (
	// PaymentStatusPending indicates no payment has been received.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusPartial indicates a payment smaller than the total was received.
	PaymentStatusPartial PaymentStatus = "partial"
	// PaymentStatusPaid indicates the sale is fully paid.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusOverdue indicates an outstanding balance past its due date.
	PaymentStatusOverdue PaymentStatus = "overdue"
	// PaymentStatusRefunded indicates payments were returned to the customer.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// ValidSaleStatus reports whether the raw value names a known sale status.
func ValidSaleStatus(raw SaleStatus) bool {
	switch raw {
	case SaleStatusPending, SaleStatusConfirmed, SaleStatusProcessing,
		SaleStatusPreparing, SaleStatusReadyForPickup, SaleStatusInTransit,
		SaleStatusCompleted, SaleStatusCancelled, SaleStatusRefunded:
		return true
	}
	return false
}

// ValidPaymentStatus reports whether the raw value names a known payment status.
func ValidPaymentStatus(raw PaymentStatus) bool {
	switch raw {
	case PaymentStatusPending, PaymentStatusPartial, PaymentStatusPaid,
		PaymentStatusOverdue, PaymentStatusRefunded:
		return true
	}
	return false
}

// RangeQuery represents inclusive range filters for timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// SaleLine is a single priced line owned by its sale. Lines are immutable
// after the sale is created.
type SaleLine struct {
	ProductID       string
	Quantity        int
	UnitPrice       decimal.Decimal
	LineTotal       decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	Notes           string
}

// NetTotal returns the line total after the line discount.
func (l SaleLine) NetTotal() decimal.Decimal {
	return l.LineTotal.Sub(l.DiscountAmount)
}

// StatusChange is a single append-only entry in a sale's status history.
type StatusChange struct {
	Status    SaleStatus
	Timestamp time.Time
	Comment   string
	UpdatedBy string
}

// PaymentEntry records an individual payment applied against a sale.
type PaymentEntry struct {
	ID            string
	SaleID        string
	Amount        decimal.Decimal
	PaymentMethod string
	Notes         string
	RecordedBy    string
	CreatedAt     time.Time
}

// Sale is the aggregate root: the header plus its owned lines, treated as one
// unit of consistency. Version guards read-modify-write updates.
type Sale struct {
	ID         string
	SaleNumber string
	CustomerID string
	SellerID   *string
	Items      []SaleLine

	Subtotal       decimal.Decimal
	TaxRate        decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
	PaidAmount     decimal.Decimal

	Status        SaleStatus
	PaymentStatus PaymentStatus
	PaymentMethod string

	Notes         string
	InternalNotes string

	DeliveryDate          *time.Time
	DeliveryAddress       string
	EstimatedDeliveryDate *time.Time
	TrackingNumber        string
	ShippingCarrier       string
	IsDelivered           bool

	IsDeleted   bool
	CancelledAt *time.Time

	StatusHistory []StatusChange

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BalanceAmount returns the outstanding balance on the sale.
func (s Sale) BalanceAmount() decimal.Decimal {
	return s.TotalAmount.Sub(s.PaidAmount)
}

// IsFullyPaid reports whether payments have covered the total amount.
func (s Sale) IsFullyPaid() bool {
	return s.PaidAmount.GreaterThanOrEqual(s.TotalAmount)
}

// CurrentStatus returns the latest history entry when present, falling back to
// the header status.
func (s Sale) CurrentStatus() SaleStatus {
	if n := len(s.StatusHistory); n > 0 {
		return s.StatusHistory[n-1].Status
	}
	return s.Status
}

// Customer is the external customer-directory projection consumed during sale
// creation. The directory itself is owned by a collaborator service.
type Customer struct {
	ID        string
	FullName  string
	Email     string
	IsActive  bool
	IsDeleted bool
}

// Product is the external catalog projection consumed when validating lines.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	IsActive bool
}
