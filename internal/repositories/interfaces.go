package repositories

import (
	"context"
	"time"

	domain "github.com/ridehouse/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Sales() SaleRepository
	SalePayments() SalePaymentRepository
	Customers() CustomerRepository
	Products() ProductRepository
	Counters() CounterRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository operations into one transactional boundary.
// Implementations make the active transaction visible to repositories through
// the context passed to fn, so all reads and writes inside fn commit or roll
// back together.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SaleRepository persists sale aggregates (header plus owned lines).
type SaleRepository interface {
	// Insert stores a new sale and claims its sale number. A sale number that
	// is already taken surfaces as a RepositoryError conflict so callers can
	// retry with a fresh allocation.
	Insert(ctx context.Context, sale domain.Sale) error
	// Update overwrites the sale after verifying the stored version matches
	// sale.Version; a mismatch surfaces as a RepositoryError conflict.
	Update(ctx context.Context, sale domain.Sale) error
	FindByID(ctx context.Context, saleID string) (domain.Sale, error)
	List(ctx context.Context, filter SaleListFilter) ([]domain.Sale, error)
}

// SalePaymentRepository stores the individual payment entries recorded against a sale.
type SalePaymentRepository interface {
	Insert(ctx context.Context, entry domain.PaymentEntry) error
	List(ctx context.Context, saleID string) ([]domain.PaymentEntry, error)
}

// CustomerRepository reads the customer directory maintained by the customer module.
type CustomerRepository interface {
	FindByID(ctx context.Context, customerID string) (domain.Customer, error)
}

// ProductRepository reads the catalog maintained by the catalog module.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
}

// CounterRepository provides transaction-safe sequence numbers. When the
// context carries an active transaction the increment joins it.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// CounterConfig adjusts optional counter behaviour.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}

// SaleListFilter narrows sale listings. Zero values mean "no filter".
type SaleListFilter struct {
	Status          domain.SaleStatus
	PaymentStatus   domain.PaymentStatus
	CustomerID      string
	SellerID        string
	CreatedRange    domain.RangeQuery[time.Time]
	IncludeDeleted  bool
	ExcludeStatuses []domain.SaleStatus
}
