package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domain "github.com/ridehouse/api/internal/domain"
	"github.com/ridehouse/api/internal/platform/auth"
	"github.com/ridehouse/api/internal/platform/jobs"
	"github.com/ridehouse/api/internal/platform/requestctx"
	"github.com/ridehouse/api/internal/repositories"
)

// Sentinel errors surfaced by the sale service.
var (
	ErrSaleNotFound     = errors.New("sale not found")
	ErrSaleInvalidInput = errors.New("sale input invalid")
	ErrSaleConflict     = errors.New("sale conflict")
	ErrSaleForbidden    = errors.New("sale operation forbidden")
	ErrSaleUnavailable  = errors.New("sale storage unavailable")
)

// saleNumberAttempts bounds retries when a freshly allocated sale number
// loses the uniqueness race at insert time.
const saleNumberAttempts = 3

// Event types published on the sale topic.
const (
	eventSaleCreated       = "sale.created"
	eventSaleStatusChanged = "sale.status.changed"
	eventSalePaymentAdded  = "sale.payment.added"
)

// SaleServiceDeps enumerates the dependencies required by NewSaleService.
type SaleServiceDeps struct {
	Registry     repositories.Registry
	Counter      CounterService
	Events       EventPublisher
	Clock        Clock
	NewSaleID    IDGenerator
	NewPaymentID IDGenerator
}

type saleService struct {
	registry     repositories.Registry
	counter      CounterService
	events       EventPublisher
	clock        Clock
	newSaleID    IDGenerator
	newPaymentID IDGenerator
}

// NewSaleService constructs the sale service. Events may be nil; Clock and the
// ID generators default when unset.
func NewSaleService(deps SaleServiceDeps) (SaleService, error) {
	if deps.Registry == nil {
		return nil, errors.New("sale service requires repository registry")
	}
	if deps.Counter == nil {
		return nil, errors.New("sale service requires counter service")
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	newSaleID := deps.NewSaleID
	if newSaleID == nil {
		newSaleID = func() string { return "sale_" + strings.ToLower(ulid.Make().String()) }
	}
	newPaymentID := deps.NewPaymentID
	if newPaymentID == nil {
		newPaymentID = uuid.NewString
	}
	return &saleService{
		registry:     deps.Registry,
		counter:      deps.Counter,
		events:       deps.Events,
		clock:        clock,
		newSaleID:    newSaleID,
		newPaymentID: newPaymentID,
	}, nil
}

// CreateSale records a new sale in one transaction: customer and product
// checks, pricing, number allocation and the document write all commit or
// roll back together. A lost sale-number race is retried with a fresh
// allocation before surfacing as a conflict.
func (s *saleService) CreateSale(ctx context.Context, actor auth.Actor, cmd CreateSaleCommand) (SaleDetail, error) {
	if actor.Role == domain.RoleCustomer {
		return SaleDetail{}, fmt.Errorf("%w: customers cannot record sales", ErrSaleForbidden)
	}
	if strings.TrimSpace(cmd.CustomerID) == "" {
		return SaleDetail{}, fmt.Errorf("%w: customer id is required", ErrSaleInvalidInput)
	}
	if len(cmd.Lines) == 0 {
		return SaleDetail{}, fmt.Errorf("%w: at least one line is required", ErrSaleInvalidInput)
	}
	for i, line := range cmd.Lines {
		if strings.TrimSpace(line.ProductID) == "" {
			return SaleDetail{}, fmt.Errorf("%w: line %d product id is required", ErrSaleInvalidInput, i)
		}
	}

	var (
		created  domain.Sale
		customer domain.Customer
		lastErr  error
	)

	for attempt := 0; attempt < saleNumberAttempts; attempt++ {
		err := s.registry.RunInTx(ctx, func(txCtx context.Context) error {
			var err error
			customer, err = s.registry.Customers().FindByID(txCtx, cmd.CustomerID)
			if err != nil {
				return s.classify(err, "customer %s", cmd.CustomerID)
			}
			if !customer.IsActive || customer.IsDeleted {
				return fmt.Errorf("%w: customer %s", ErrSaleNotFound, cmd.CustomerID)
			}

			inputs := make([]domain.PricingLineInput, 0, len(cmd.Lines))
			prices := make([]decimal.Decimal, 0, len(cmd.Lines))
			for _, line := range cmd.Lines {
				product, err := s.registry.Products().FindByID(txCtx, line.ProductID)
				if err != nil {
					return s.classify(err, "product %s", line.ProductID)
				}
				if !product.IsActive {
					return fmt.Errorf("%w: product %s", ErrSaleNotFound, line.ProductID)
				}
				unitPrice := product.Price
				if line.UnitPrice != nil {
					unitPrice = *line.UnitPrice
				}
				prices = append(prices, unitPrice)
				inputs = append(inputs, domain.PricingLineInput{
					Quantity:        line.Quantity,
					UnitPrice:       unitPrice,
					DiscountPercent: line.DiscountPercent,
				})
			}

			totals, err := domain.PriceSale(inputs, cmd.TaxRate, cmd.DiscountAmount)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrSaleInvalidInput, err)
			}

			now := s.clock()
			number, err := s.counter.NextSaleNumber(txCtx, now)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrSaleUnavailable, err)
			}

			sale := domain.Sale{
				ID:              s.newSaleID(),
				SaleNumber:      number,
				CustomerID:      customer.ID,
				Items:           make([]domain.SaleLine, 0, len(cmd.Lines)),
				Subtotal:        totals.Subtotal,
				TaxRate:         cmd.TaxRate,
				TaxAmount:       totals.TaxAmount,
				DiscountAmount:  cmd.DiscountAmount,
				TotalAmount:     totals.TotalAmount,
				PaidAmount:      decimal.Zero,
				Status:          domain.SaleStatusPending,
				PaymentStatus:   domain.PaymentStatusPending,
				PaymentMethod:   cmd.PaymentMethod,
				Notes:           cmd.Notes,
				InternalNotes:   cmd.InternalNotes,
				DeliveryDate:    cmd.DeliveryDate,
				DeliveryAddress: cmd.DeliveryAddress,
				StatusHistory: []domain.StatusChange{{
					Status:    domain.SaleStatusPending,
					Timestamp: now,
					Comment:   "sale recorded",
					UpdatedBy: actor.ID,
				}},
				Version:   1,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if actor.Role == domain.RoleSeller {
				sellerID := actor.ID
				sale.SellerID = &sellerID
			}
			for i, line := range cmd.Lines {
				sale.Items = append(sale.Items, domain.SaleLine{
					ProductID:       line.ProductID,
					Quantity:        line.Quantity,
					UnitPrice:       prices[i],
					LineTotal:       totals.Lines[i].LineTotal,
					DiscountPercent: line.DiscountPercent,
					DiscountAmount:  totals.Lines[i].DiscountAmount,
					Notes:           line.Notes,
				})
			}

			if err := s.registry.Sales().Insert(txCtx, sale); err != nil {
				return s.classify(err, "sale %s", sale.SaleNumber)
			}
			created = sale
			return nil
		})
		if err == nil {
			s.publish(ctx, eventSaleCreated, created, map[string]any{
				"customerId":  created.CustomerID,
				"totalAmount": created.TotalAmount.StringFixed(2),
			})
			return SaleDetail{Sale: created, Customer: customer}, nil
		}
		lastErr = err
		if !errors.Is(err, ErrSaleConflict) {
			return SaleDetail{}, err
		}
		requestctx.Logger(ctx).Info("sale number collision, retrying",
			zap.Int("attempt", attempt+1))
	}
	return SaleDetail{}, lastErr
}

// GetSale returns the sale with its customer projection and payment entries,
// provided the actor's scope covers it.
func (s *saleService) GetSale(ctx context.Context, actor auth.Actor, saleID string) (SaleDetail, error) {
	sale, err := s.loadScoped(ctx, actor, saleID)
	if err != nil {
		return SaleDetail{}, err
	}

	detail := SaleDetail{Sale: sale}
	if customer, err := s.registry.Customers().FindByID(ctx, sale.CustomerID); err == nil {
		detail.Customer = customer
	}
	payments, err := s.registry.SalePayments().List(ctx, sale.ID)
	if err != nil {
		return SaleDetail{}, s.classify(err, "payments for sale %s", saleID)
	}
	detail.Payments = payments
	return detail, nil
}

// ListSales lists sales with the actor's scope forced into the query.
func (s *saleService) ListSales(ctx context.Context, actor auth.Actor, query ListSalesQuery) ([]domain.Sale, error) {
	filter := repositories.SaleListFilter{
		Status:        query.Status,
		PaymentStatus: query.PaymentStatus,
		CustomerID:    query.CustomerID,
		SellerID:      query.SellerID,
		CreatedRange:  domain.RangeQuery[time.Time]{From: query.From, To: query.To},
	}
	if query.Status != "" && !domain.ValidSaleStatus(query.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrSaleInvalidInput, query.Status)
	}
	if query.PaymentStatus != "" && !domain.ValidPaymentStatus(query.PaymentStatus) {
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrSaleInvalidInput, query.PaymentStatus)
	}

	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleSeller:
		filter.SellerID = actor.ID
	case domain.RoleCustomer:
		filter.CustomerID = actor.CustomerID
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrSaleForbidden, actor.Role)
	}

	sales, err := s.registry.Sales().List(ctx, filter)
	if err != nil {
		return nil, s.classify(err, "list sales")
	}
	return sales, nil
}

// ListByCustomer lists a customer's sales newest first. Customers may only
// read their own; the mismatch collapses to NotFound.
func (s *saleService) ListByCustomer(ctx context.Context, actor auth.Actor, customerID string) ([]domain.Sale, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, fmt.Errorf("%w: customer id is required", ErrSaleInvalidInput)
	}

	filter := repositories.SaleListFilter{CustomerID: customerID}
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleSeller:
		filter.SellerID = actor.ID
	case domain.RoleCustomer:
		if actor.CustomerID != customerID {
			return nil, fmt.Errorf("%w: customer %s", ErrSaleNotFound, customerID)
		}
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrSaleForbidden, actor.Role)
	}

	sales, err := s.registry.Sales().List(ctx, filter)
	if err != nil {
		return nil, s.classify(err, "list sales for customer %s", customerID)
	}
	return sales, nil
}

// UpdateSale applies a partial header update. Status changes are validated
// against the transition table and appended to the history like any other
// transition.
func (s *saleService) UpdateSale(ctx context.Context, actor auth.Actor, saleID string, cmd UpdateSaleCommand) (domain.Sale, error) {
	if actor.Role == domain.RoleCustomer {
		return domain.Sale{}, fmt.Errorf("%w: customers cannot update sales", ErrSaleForbidden)
	}

	sale, err := s.loadScoped(ctx, actor, saleID)
	if err != nil {
		return domain.Sale{}, err
	}

	now := s.clock()
	statusChanged := false

	if cmd.Status != nil && *cmd.Status != sale.Status {
		next := *cmd.Status
		if !domain.ValidSaleStatus(next) {
			return domain.Sale{}, fmt.Errorf("%w: unknown status %q", ErrSaleInvalidInput, next)
		}
		if !domain.CanTransition(actor.Role, sale.Status, next) {
			return domain.Sale{}, fmt.Errorf("%w: %s cannot move sale from %s to %s", ErrSaleForbidden, actor.Role, sale.Status, next)
		}
		sale.Status = next
		sale.StatusHistory = append(sale.StatusHistory, domain.StatusChange{
			Status:    next,
			Timestamp: now,
			UpdatedBy: actor.ID,
		})
		if next == domain.SaleStatusCompleted {
			sale.IsDelivered = true
		}
		if next == domain.SaleStatusCancelled {
			cancelled := now
			sale.CancelledAt = &cancelled
		}
		statusChanged = true
	}
	if cmd.PaymentStatus != nil {
		if !domain.ValidPaymentStatus(*cmd.PaymentStatus) {
			return domain.Sale{}, fmt.Errorf("%w: unknown payment status %q", ErrSaleInvalidInput, *cmd.PaymentStatus)
		}
		sale.PaymentStatus = *cmd.PaymentStatus
	}
	if cmd.PaymentMethod != nil {
		sale.PaymentMethod = *cmd.PaymentMethod
	}
	if cmd.Notes != nil {
		sale.Notes = *cmd.Notes
	}
	if cmd.InternalNotes != nil {
		sale.InternalNotes = *cmd.InternalNotes
	}
	if cmd.DeliveryDate != nil {
		date := *cmd.DeliveryDate
		sale.DeliveryDate = &date
	}
	if cmd.DeliveryAddress != nil {
		sale.DeliveryAddress = *cmd.DeliveryAddress
	}
	if cmd.IsDelivered != nil {
		sale.IsDelivered = *cmd.IsDelivered
	}
	sale.UpdatedAt = now

	if err := s.registry.Sales().Update(ctx, sale); err != nil {
		return domain.Sale{}, s.classify(err, "sale %s", saleID)
	}
	sale.Version++

	if statusChanged {
		s.publish(ctx, eventSaleStatusChanged, sale, map[string]any{
			"status": string(sale.Status),
		})
	}
	return sale, nil
}

// AddPayment appends a payment entry and re-derives the payment status. An
// amount that would exceed the total is rejected whole; nothing is applied.
func (s *saleService) AddPayment(ctx context.Context, actor auth.Actor, saleID string, cmd AddPaymentCommand) (domain.Sale, error) {
	if actor.Role == domain.RoleCustomer {
		return domain.Sale{}, fmt.Errorf("%w: customers cannot record payments", ErrSaleForbidden)
	}
	if !cmd.Amount.IsPositive() {
		return domain.Sale{}, fmt.Errorf("%w: payment amount must be positive", ErrSaleInvalidInput)
	}
	if strings.TrimSpace(cmd.PaymentMethod) == "" {
		return domain.Sale{}, fmt.Errorf("%w: payment method is required", ErrSaleInvalidInput)
	}

	sale, err := s.loadScoped(ctx, actor, saleID)
	if err != nil {
		return domain.Sale{}, err
	}

	newPaid := sale.PaidAmount.Add(cmd.Amount)
	if newPaid.GreaterThan(sale.TotalAmount) {
		return domain.Sale{}, fmt.Errorf("%w: payment %s exceeds outstanding balance %s",
			ErrSaleConflict, cmd.Amount.StringFixed(2), sale.BalanceAmount().StringFixed(2))
	}

	now := s.clock()
	entry := domain.PaymentEntry{
		ID:            s.newPaymentID(),
		SaleID:        sale.ID,
		Amount:        cmd.Amount,
		PaymentMethod: cmd.PaymentMethod,
		Notes:         cmd.Notes,
		RecordedBy:    actor.ID,
		CreatedAt:     now,
	}

	sale.PaidAmount = newPaid
	switch {
	case newPaid.GreaterThanOrEqual(sale.TotalAmount):
		sale.PaymentStatus = domain.PaymentStatusPaid
	case newPaid.IsPositive():
		sale.PaymentStatus = domain.PaymentStatusPartial
	}
	sale.UpdatedAt = now

	err = s.registry.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.registry.SalePayments().Insert(txCtx, entry); err != nil {
			return s.classify(err, "payment for sale %s", saleID)
		}
		if err := s.registry.Sales().Update(txCtx, sale); err != nil {
			return s.classify(err, "sale %s", saleID)
		}
		return nil
	})
	if err != nil {
		return domain.Sale{}, err
	}
	sale.Version++

	s.publish(ctx, eventSalePaymentAdded, sale, map[string]any{
		"amount":        cmd.Amount.StringFixed(2),
		"paymentStatus": string(sale.PaymentStatus),
	})
	return sale, nil
}

// CancelSale moves the sale to CANCELLED. Completed and refunded sales cannot
// be cancelled.
func (s *saleService) CancelSale(ctx context.Context, actor auth.Actor, saleID string) (domain.Sale, error) {
	return s.cancel(ctx, actor, saleID, false)
}

// RemoveSale soft-deletes the sale: a specialised cancellation that also
// hides it from listings. The document is never erased.
func (s *saleService) RemoveSale(ctx context.Context, actor auth.Actor, saleID string) error {
	_, err := s.cancel(ctx, actor, saleID, true)
	return err
}

func (s *saleService) cancel(ctx context.Context, actor auth.Actor, saleID string, softDelete bool) (domain.Sale, error) {
	if actor.Role == domain.RoleCustomer {
		return domain.Sale{}, fmt.Errorf("%w: customers cannot cancel sales", ErrSaleForbidden)
	}

	sale, err := s.loadScoped(ctx, actor, saleID)
	if err != nil {
		return domain.Sale{}, err
	}

	switch sale.Status {
	case domain.SaleStatusCompleted:
		return domain.Sale{}, fmt.Errorf("%w: completed sale cannot be cancelled", ErrSaleConflict)
	case domain.SaleStatusRefunded:
		return domain.Sale{}, fmt.Errorf("%w: refunded sale cannot be cancelled", ErrSaleConflict)
	}

	now := s.clock()
	if sale.Status != domain.SaleStatusCancelled {
		sale.Status = domain.SaleStatusCancelled
		sale.StatusHistory = append(sale.StatusHistory, domain.StatusChange{
			Status:    domain.SaleStatusCancelled,
			Timestamp: now,
			Comment:   "sale cancelled",
			UpdatedBy: actor.ID,
		})
		cancelled := now
		sale.CancelledAt = &cancelled
	} else if !softDelete {
		return domain.Sale{}, fmt.Errorf("%w: sale is already cancelled", ErrSaleConflict)
	}
	if softDelete {
		sale.IsDeleted = true
	}
	sale.UpdatedAt = now

	if err := s.registry.Sales().Update(ctx, sale); err != nil {
		return domain.Sale{}, s.classify(err, "sale %s", saleID)
	}
	sale.Version++

	s.publish(ctx, eventSaleStatusChanged, sale, map[string]any{
		"status": string(sale.Status),
	})
	return sale, nil
}

// Report aggregates totals over non-cancelled sales in the range. Sellers see
// only their own figures.
func (s *saleService) Report(ctx context.Context, actor auth.Actor, query ReportQuery) (SalesReport, error) {
	if actor.Role == domain.RoleCustomer {
		return SalesReport{}, fmt.Errorf("%w: customers cannot read reports", ErrSaleForbidden)
	}

	filter := repositories.SaleListFilter{
		SellerID:     query.SellerID,
		CreatedRange: domain.RangeQuery[time.Time]{From: query.From, To: query.To},
		ExcludeStatuses: []domain.SaleStatus{
			domain.SaleStatusCancelled, domain.SaleStatusRefunded,
		},
	}
	if actor.Role == domain.RoleSeller {
		filter.SellerID = actor.ID
	}

	sales, err := s.registry.Sales().List(ctx, filter)
	if err != nil {
		return SalesReport{}, s.classify(err, "sales report")
	}

	report := SalesReport{
		TotalRevenue: decimal.Zero,
		TotalPaid:    decimal.Zero,
		TotalPending: decimal.Zero,
	}
	for _, sale := range sales {
		report.Count++
		report.TotalRevenue = report.TotalRevenue.Add(sale.TotalAmount)
		report.TotalPaid = report.TotalPaid.Add(sale.PaidAmount)
		report.TotalPending = report.TotalPending.Add(sale.BalanceAmount())
	}
	return report, nil
}

// loadScoped fetches a sale and collapses anything outside the actor's scope
// into NotFound so existence is never leaked.
func (s *saleService) loadScoped(ctx context.Context, actor auth.Actor, saleID string) (domain.Sale, error) {
	if strings.TrimSpace(saleID) == "" {
		return domain.Sale{}, fmt.Errorf("%w: sale id is required", ErrSaleInvalidInput)
	}

	sale, err := s.registry.Sales().FindByID(ctx, saleID)
	if err != nil {
		return domain.Sale{}, s.classify(err, "sale %s", saleID)
	}

	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleSeller:
		if sale.SellerID == nil || *sale.SellerID != actor.ID {
			return domain.Sale{}, fmt.Errorf("%w: sale %s", ErrSaleNotFound, saleID)
		}
	case domain.RoleCustomer:
		if sale.CustomerID != actor.CustomerID {
			return domain.Sale{}, fmt.Errorf("%w: sale %s", ErrSaleNotFound, saleID)
		}
	default:
		return domain.Sale{}, fmt.Errorf("%w: unknown role %q", ErrSaleForbidden, actor.Role)
	}

	if sale.IsDeleted && actor.Role != domain.RoleAdmin {
		return domain.Sale{}, fmt.Errorf("%w: sale %s", ErrSaleNotFound, saleID)
	}
	return sale, nil
}

// classify maps repository failures onto the service's sentinel errors.
func (s *saleService) classify(err error, format string, args ...any) error {
	subject := fmt.Sprintf(format, args...)
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %s", ErrSaleNotFound, subject)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %s", ErrSaleConflict, subject)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %s", ErrSaleUnavailable, subject)
		}
	}
	return fmt.Errorf("%s: %w", subject, err)
}

func (s *saleService) publish(ctx context.Context, eventType string, sale domain.Sale, payload map[string]any) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, jobs.SaleEvent{
		Type:       eventType,
		SaleID:     sale.ID,
		SaleNumber: sale.SaleNumber,
		OccurredAt: s.clock(),
		Payload:    payload,
	})
}
