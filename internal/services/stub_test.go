package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/ridehouse/api/internal/domain"
	"github.com/ridehouse/api/internal/platform/jobs"
	"github.com/ridehouse/api/internal/repositories"
)

type stubRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepoError) Error() string      { return e.msg }
func (e *stubRepoError) IsNotFound() bool   { return e.notFound }
func (e *stubRepoError) IsConflict() bool   { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

func notFoundErr(what string) error {
	return &stubRepoError{msg: what + " not found", notFound: true}
}

func conflictErr(what string) error {
	return &stubRepoError{msg: what + " conflict", conflict: true}
}

// stubRegistry is an in-memory repositories.Registry. RunInTx serialises on a
// mutex and restores a snapshot on error, mimicking transactional rollback.
type stubRegistry struct {
	mu sync.Mutex

	sales     map[string]domain.Sale
	claims    map[string]string
	payments  map[string][]domain.PaymentEntry
	customers map[string]domain.Customer
	products  map[string]domain.Product
	counters  map[string]int64

	insertConflicts int
	updateErr       error
	listErr         error
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{
		sales:     map[string]domain.Sale{},
		claims:    map[string]string{},
		payments:  map[string][]domain.PaymentEntry{},
		customers: map[string]domain.Customer{},
		products:  map[string]domain.Product{},
		counters:  map[string]int64{},
	}
}

func (r *stubRegistry) Close(context.Context) error { return nil }

func (r *stubRegistry) Sales() repositories.SaleRepository               { return (*stubSales)(r) }
func (r *stubRegistry) SalePayments() repositories.SalePaymentRepository { return (*stubPayments)(r) }
func (r *stubRegistry) Customers() repositories.CustomerRepository       { return (*stubCustomers)(r) }
func (r *stubRegistry) Products() repositories.ProductRepository         { return (*stubProducts)(r) }
func (r *stubRegistry) Counters() repositories.CounterRepository         { return (*stubCounters)(r) }

func (r *stubRegistry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.snapshot()
	if err := fn(ctx); err != nil {
		r.restore(snapshot)
		return err
	}
	return nil
}

type registrySnapshot struct {
	sales    map[string]domain.Sale
	claims   map[string]string
	payments map[string][]domain.PaymentEntry
	counters map[string]int64
}

func (r *stubRegistry) snapshot() registrySnapshot {
	snap := registrySnapshot{
		sales:    make(map[string]domain.Sale, len(r.sales)),
		claims:   make(map[string]string, len(r.claims)),
		payments: make(map[string][]domain.PaymentEntry, len(r.payments)),
		counters: make(map[string]int64, len(r.counters)),
	}
	for k, v := range r.sales {
		snap.sales[k] = v
	}
	for k, v := range r.claims {
		snap.claims[k] = v
	}
	for k, v := range r.payments {
		snap.payments[k] = append([]domain.PaymentEntry(nil), v...)
	}
	for k, v := range r.counters {
		snap.counters[k] = v
	}
	return snap
}

func (r *stubRegistry) restore(snap registrySnapshot) {
	r.sales = snap.sales
	r.claims = snap.claims
	r.payments = snap.payments
	r.counters = snap.counters
}

type stubSales stubRegistry

func (s *stubSales) Insert(_ context.Context, sale domain.Sale) error {
	r := (*stubRegistry)(s)
	if r.insertConflicts > 0 {
		r.insertConflicts--
		return conflictErr("sale number " + sale.SaleNumber)
	}
	if _, taken := r.claims[sale.SaleNumber]; taken {
		return conflictErr("sale number " + sale.SaleNumber)
	}
	if _, exists := r.sales[sale.ID]; exists {
		return conflictErr("sale " + sale.ID)
	}
	r.claims[sale.SaleNumber] = sale.ID
	r.sales[sale.ID] = sale
	return nil
}

func (s *stubSales) Update(_ context.Context, sale domain.Sale) error {
	r := (*stubRegistry)(s)
	if r.updateErr != nil {
		return r.updateErr
	}
	current, ok := r.sales[sale.ID]
	if !ok {
		return notFoundErr("sale " + sale.ID)
	}
	if current.Version != sale.Version {
		return conflictErr("sale " + sale.ID + " version")
	}
	sale.Version++
	r.sales[sale.ID] = sale
	return nil
}

func (s *stubSales) FindByID(_ context.Context, saleID string) (domain.Sale, error) {
	r := (*stubRegistry)(s)
	sale, ok := r.sales[saleID]
	if !ok {
		return domain.Sale{}, notFoundErr("sale " + saleID)
	}
	return sale, nil
}

func (s *stubSales) List(_ context.Context, filter repositories.SaleListFilter) ([]domain.Sale, error) {
	r := (*stubRegistry)(s)
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []domain.Sale
	for _, sale := range r.sales {
		if filter.Status != "" && sale.Status != filter.Status {
			continue
		}
		if filter.PaymentStatus != "" && sale.PaymentStatus != filter.PaymentStatus {
			continue
		}
		if filter.CustomerID != "" && sale.CustomerID != filter.CustomerID {
			continue
		}
		if filter.SellerID != "" && (sale.SellerID == nil || *sale.SellerID != filter.SellerID) {
			continue
		}
		if !filter.IncludeDeleted && sale.IsDeleted {
			continue
		}
		excluded := false
		for _, status := range filter.ExcludeStatuses {
			if sale.Status == status {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}
		if filter.CreatedRange.From != nil && sale.CreatedAt.Before(*filter.CreatedRange.From) {
			continue
		}
		if filter.CreatedRange.To != nil && sale.CreatedAt.After(*filter.CreatedRange.To) {
			continue
		}
		out = append(out, sale)
	}
	return out, nil
}

type stubPayments stubRegistry

func (s *stubPayments) Insert(_ context.Context, entry domain.PaymentEntry) error {
	r := (*stubRegistry)(s)
	r.payments[entry.SaleID] = append(r.payments[entry.SaleID], entry)
	return nil
}

func (s *stubPayments) List(_ context.Context, saleID string) ([]domain.PaymentEntry, error) {
	r := (*stubRegistry)(s)
	return append([]domain.PaymentEntry(nil), r.payments[saleID]...), nil
}

type stubCustomers stubRegistry

func (s *stubCustomers) FindByID(_ context.Context, customerID string) (domain.Customer, error) {
	r := (*stubRegistry)(s)
	customer, ok := r.customers[customerID]
	if !ok {
		return domain.Customer{}, notFoundErr("customer " + customerID)
	}
	return customer, nil
}

type stubProducts stubRegistry

func (s *stubProducts) FindByID(_ context.Context, productID string) (domain.Product, error) {
	r := (*stubRegistry)(s)
	product, ok := r.products[productID]
	if !ok {
		return domain.Product{}, notFoundErr("product " + productID)
	}
	return product, nil
}

type stubCounters stubRegistry

func (s *stubCounters) Next(_ context.Context, counterID string, step int64) (int64, error) {
	r := (*stubRegistry)(s)
	if step <= 0 {
		step = 1
	}
	r.counters[counterID] += step
	return r.counters[counterID], nil
}

func (s *stubCounters) Configure(context.Context, string, repositories.CounterConfig) error {
	return nil
}

type capturedEvent struct {
	event jobs.SaleEvent
}

type stubPublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (p *stubPublisher) Publish(_ context.Context, event jobs.SaleEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{event: event})
}

func (p *stubPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.event.Type)
	}
	return out
}

func fixedClock(at time.Time) Clock {
	return func() time.Time { return at }
}

func sequentialIDs(prefix string) IDGenerator {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func money(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func seedCustomer(r *stubRegistry, id string) {
	r.customers[id] = domain.Customer{ID: id, FullName: "Test Customer", IsActive: true}
}

func seedProduct(r *stubRegistry, id, price string) {
	r.products[id] = domain.Product{ID: id, Name: "Bike " + id, Price: money(price), IsActive: true}
}
