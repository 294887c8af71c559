package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/ridehouse/api/internal/platform/firestore"
	"github.com/ridehouse/api/internal/repositories"
)

// Registry wires the Firestore-backed repositories behind the repositories.Registry contract.
type Registry struct {
	provider *pfirestore.Provider

	sales        *SaleRepository
	salePayments *SalePaymentRepository
	customers    *CustomerRepository
	products     *ProductRepository
	counters     *CounterRepository
}

// NewRegistry constructs the repository registry on top of a shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	sales, err := NewSaleRepository(provider)
	if err != nil {
		return nil, err
	}
	salePayments, err := NewSalePaymentRepository(provider)
	if err != nil {
		return nil, err
	}
	customers, err := NewCustomerRepository(provider)
	if err != nil {
		return nil, err
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:     provider,
		sales:        sales,
		salePayments: salePayments,
		customers:    customers,
		products:     products,
		counters:     counters,
	}, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Sales returns the sale repository.
func (r *Registry) Sales() repositories.SaleRepository { return r.sales }

// SalePayments returns the payment entry repository.
func (r *Registry) SalePayments() repositories.SalePaymentRepository { return r.salePayments }

// Customers returns the customer directory repository.
func (r *Registry) Customers() repositories.CustomerRepository { return r.customers }

// Products returns the catalog repository.
func (r *Registry) Products() repositories.ProductRepository { return r.products }

// Counters returns the counter repository.
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

// RunInTx implements repositories.UnitOfWork. The transaction is stored on the
// context handed to fn so every repository call inside joins it.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.provider == nil {
		return errors.New("registry not initialised")
	}
	return r.provider.RunTransaction(ctx, func(txCtx context.Context, _ *firestore.Transaction) error {
		return fn(txCtx)
	})
}
