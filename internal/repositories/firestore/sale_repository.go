package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	domain "github.com/ridehouse/api/internal/domain"
	pfirestore "github.com/ridehouse/api/internal/platform/firestore"
	"github.com/ridehouse/api/internal/repositories"
)

const (
	salesCollection       = "sales"
	saleNumbersCollection = "saleNumbers"
)

type saleLineDocument struct {
	ProductID       string `firestore:"productId"`
	Quantity        int    `firestore:"quantity"`
	UnitPrice       string `firestore:"unitPrice"`
	LineTotal       string `firestore:"lineTotal"`
	DiscountPercent string `firestore:"discountPercent"`
	DiscountAmount  string `firestore:"discountAmount"`
	Notes           string `firestore:"notes,omitempty"`
}

type statusChangeDocument struct {
	Status    string    `firestore:"status"`
	Timestamp time.Time `firestore:"timestamp"`
	Comment   string    `firestore:"comment,omitempty"`
	UpdatedBy string    `firestore:"updatedBy,omitempty"`
}

type saleDocument struct {
	SaleNumber string             `firestore:"saleNumber"`
	CustomerID string             `firestore:"customerId"`
	SellerID   *string            `firestore:"sellerId,omitempty"`
	Items      []saleLineDocument `firestore:"items"`

	Subtotal       string `firestore:"subtotal"`
	TaxRate        string `firestore:"taxRate"`
	TaxAmount      string `firestore:"taxAmount"`
	DiscountAmount string `firestore:"discountAmount"`
	TotalAmount    string `firestore:"totalAmount"`
	PaidAmount     string `firestore:"paidAmount"`

	Status        string `firestore:"status"`
	PaymentStatus string `firestore:"paymentStatus"`
	PaymentMethod string `firestore:"paymentMethod,omitempty"`

	Notes         string `firestore:"notes,omitempty"`
	InternalNotes string `firestore:"internalNotes,omitempty"`

	DeliveryDate          *time.Time `firestore:"deliveryDate,omitempty"`
	DeliveryAddress       string     `firestore:"deliveryAddress,omitempty"`
	EstimatedDeliveryDate *time.Time `firestore:"estimatedDeliveryDate,omitempty"`
	TrackingNumber        string     `firestore:"trackingNumber,omitempty"`
	ShippingCarrier       string     `firestore:"shippingCarrier,omitempty"`
	IsDelivered           bool       `firestore:"isDelivered"`

	IsDeleted   bool       `firestore:"isDeleted"`
	CancelledAt *time.Time `firestore:"cancelledAt,omitempty"`

	StatusHistory []statusChangeDocument `firestore:"statusHistory"`

	Version   int64     `firestore:"version"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type saleNumberClaim struct {
	SaleID    string    `firestore:"saleId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// SaleRepository implements repositories.SaleRepository on Firestore. Sale
// numbers are kept unique by claiming a saleNumbers/{number} document with a
// transactional create alongside the sale insert.
type SaleRepository struct {
	provider *pfirestore.Provider
	sales    *pfirestore.BaseRepository[saleDocument]
	numbers  *pfirestore.BaseRepository[saleNumberClaim]
}

// NewSaleRepository constructs a Firestore-backed sale repository.
func NewSaleRepository(provider *pfirestore.Provider) (*SaleRepository, error) {
	if provider == nil {
		return nil, errors.New("sale repository requires firestore provider")
	}
	return &SaleRepository{
		provider: provider,
		sales:    pfirestore.NewBaseRepository[saleDocument](provider, salesCollection, nil, nil),
		numbers:  pfirestore.NewBaseRepository[saleNumberClaim](provider, saleNumbersCollection, nil, nil),
	}, nil
}

// Insert stores the sale and claims its number inside a single transaction.
// A duplicate sale number surfaces as a conflict from the claim create.
func (r *SaleRepository) Insert(ctx context.Context, sale domain.Sale) error {
	if strings.TrimSpace(sale.ID) == "" {
		return errors.New("sale repository: sale id is required")
	}
	if strings.TrimSpace(sale.SaleNumber) == "" {
		return errors.New("sale repository: sale number is required")
	}

	doc := encodeSale(sale)

	return r.provider.RunTransaction(ctx, func(txCtx context.Context, _ *firestore.Transaction) error {
		if err := r.numbers.Create(txCtx, sale.SaleNumber, saleNumberClaim{
			SaleID:    sale.ID,
			CreatedAt: sale.CreatedAt,
		}); err != nil {
			return err
		}
		return r.sales.Create(txCtx, sale.ID, doc)
	})
}

// Update overwrites the sale after checking the persisted version still
// matches sale.Version. The check and write run in one transaction, so a
// concurrent writer surfaces as a conflict instead of a lost update.
func (r *SaleRepository) Update(ctx context.Context, sale domain.Sale) error {
	if strings.TrimSpace(sale.ID) == "" {
		return errors.New("sale repository: sale id is required")
	}

	next := sale
	next.Version = sale.Version + 1
	doc := encodeSale(next)

	return r.provider.RunTransaction(ctx, func(txCtx context.Context, _ *firestore.Transaction) error {
		current, err := r.sales.Get(txCtx, sale.ID)
		if err != nil {
			return err
		}
		if current.Data.Version != sale.Version {
			return pfirestore.NewConflictError("sales.update",
				fmt.Errorf("version mismatch: have %d want %d", current.Data.Version, sale.Version))
		}
		return r.sales.Set(txCtx, sale.ID, doc)
	})
}

// FindByID loads a sale aggregate by its opaque identifier.
func (r *SaleRepository) FindByID(ctx context.Context, saleID string) (domain.Sale, error) {
	doc, err := r.sales.Get(ctx, saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	return decodeSale(doc.ID, doc.Data)
}

// List returns sales matching the filter, newest first.
func (r *SaleRepository) List(ctx context.Context, filter repositories.SaleListFilter) ([]domain.Sale, error) {
	docs, err := r.sales.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.Status != "" {
			q = q.Where("status", "==", string(filter.Status))
		}
		if filter.PaymentStatus != "" {
			q = q.Where("paymentStatus", "==", string(filter.PaymentStatus))
		}
		if filter.CustomerID != "" {
			q = q.Where("customerId", "==", filter.CustomerID)
		}
		if filter.SellerID != "" {
			q = q.Where("sellerId", "==", filter.SellerID)
		}
		if !filter.IncludeDeleted {
			q = q.Where("isDeleted", "==", false)
		}
		if len(filter.ExcludeStatuses) > 0 {
			excluded := make([]string, 0, len(filter.ExcludeStatuses))
			for _, status := range filter.ExcludeStatuses {
				excluded = append(excluded, string(status))
			}
			q = q.Where("status", "not-in", excluded)
		}
		if filter.CreatedRange.From != nil {
			q = q.Where("createdAt", ">=", *filter.CreatedRange.From)
		}
		if filter.CreatedRange.To != nil {
			q = q.Where("createdAt", "<=", *filter.CreatedRange.To)
		}
		return q.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	sales := make([]domain.Sale, 0, len(docs))
	for _, doc := range docs {
		sale, err := decodeSale(doc.ID, doc.Data)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, nil
}

func encodeSale(sale domain.Sale) saleDocument {
	doc := saleDocument{
		SaleNumber:            sale.SaleNumber,
		CustomerID:            sale.CustomerID,
		SellerID:              sale.SellerID,
		Items:                 make([]saleLineDocument, 0, len(sale.Items)),
		Subtotal:              encodeMoney(sale.Subtotal),
		TaxRate:               encodeMoney(sale.TaxRate),
		TaxAmount:             encodeMoney(sale.TaxAmount),
		DiscountAmount:        encodeMoney(sale.DiscountAmount),
		TotalAmount:           encodeMoney(sale.TotalAmount),
		PaidAmount:            encodeMoney(sale.PaidAmount),
		Status:                string(sale.Status),
		PaymentStatus:         string(sale.PaymentStatus),
		PaymentMethod:         sale.PaymentMethod,
		Notes:                 sale.Notes,
		InternalNotes:         sale.InternalNotes,
		DeliveryDate:          sale.DeliveryDate,
		DeliveryAddress:       sale.DeliveryAddress,
		EstimatedDeliveryDate: sale.EstimatedDeliveryDate,
		TrackingNumber:        sale.TrackingNumber,
		ShippingCarrier:       sale.ShippingCarrier,
		IsDelivered:           sale.IsDelivered,
		IsDeleted:             sale.IsDeleted,
		CancelledAt:           sale.CancelledAt,
		StatusHistory:         make([]statusChangeDocument, 0, len(sale.StatusHistory)),
		Version:               sale.Version,
		CreatedAt:             sale.CreatedAt,
		UpdatedAt:             sale.UpdatedAt,
	}

	for _, item := range sale.Items {
		doc.Items = append(doc.Items, saleLineDocument{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			UnitPrice:       encodeMoney(item.UnitPrice),
			LineTotal:       encodeMoney(item.LineTotal),
			DiscountPercent: encodeMoney(item.DiscountPercent),
			DiscountAmount:  encodeMoney(item.DiscountAmount),
			Notes:           item.Notes,
		})
	}
	for _, change := range sale.StatusHistory {
		doc.StatusHistory = append(doc.StatusHistory, statusChangeDocument{
			Status:    string(change.Status),
			Timestamp: change.Timestamp,
			Comment:   change.Comment,
			UpdatedBy: change.UpdatedBy,
		})
	}
	return doc
}

func decodeSale(id string, doc saleDocument) (domain.Sale, error) {
	sale := domain.Sale{
		ID:                    id,
		SaleNumber:            doc.SaleNumber,
		CustomerID:            doc.CustomerID,
		SellerID:              doc.SellerID,
		Items:                 make([]domain.SaleLine, 0, len(doc.Items)),
		Status:                domain.SaleStatus(doc.Status),
		PaymentStatus:         domain.PaymentStatus(doc.PaymentStatus),
		PaymentMethod:         doc.PaymentMethod,
		Notes:                 doc.Notes,
		InternalNotes:         doc.InternalNotes,
		DeliveryDate:          doc.DeliveryDate,
		DeliveryAddress:       doc.DeliveryAddress,
		EstimatedDeliveryDate: doc.EstimatedDeliveryDate,
		TrackingNumber:        doc.TrackingNumber,
		ShippingCarrier:       doc.ShippingCarrier,
		IsDelivered:           doc.IsDelivered,
		IsDeleted:             doc.IsDeleted,
		CancelledAt:           doc.CancelledAt,
		StatusHistory:         make([]domain.StatusChange, 0, len(doc.StatusHistory)),
		Version:               doc.Version,
		CreatedAt:             doc.CreatedAt,
		UpdatedAt:             doc.UpdatedAt,
	}

	var err error
	if sale.Subtotal, err = decodeMoney("subtotal", doc.Subtotal); err != nil {
		return domain.Sale{}, err
	}
	if sale.TaxRate, err = decodeMoney("taxRate", doc.TaxRate); err != nil {
		return domain.Sale{}, err
	}
	if sale.TaxAmount, err = decodeMoney("taxAmount", doc.TaxAmount); err != nil {
		return domain.Sale{}, err
	}
	if sale.DiscountAmount, err = decodeMoney("discountAmount", doc.DiscountAmount); err != nil {
		return domain.Sale{}, err
	}
	if sale.TotalAmount, err = decodeMoney("totalAmount", doc.TotalAmount); err != nil {
		return domain.Sale{}, err
	}
	if sale.PaidAmount, err = decodeMoney("paidAmount", doc.PaidAmount); err != nil {
		return domain.Sale{}, err
	}

	for i, item := range doc.Items {
		line := domain.SaleLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Notes:     item.Notes,
		}
		if line.UnitPrice, err = decodeMoney(fmt.Sprintf("items[%d].unitPrice", i), item.UnitPrice); err != nil {
			return domain.Sale{}, err
		}
		if line.LineTotal, err = decodeMoney(fmt.Sprintf("items[%d].lineTotal", i), item.LineTotal); err != nil {
			return domain.Sale{}, err
		}
		if line.DiscountPercent, err = decodeMoney(fmt.Sprintf("items[%d].discountPercent", i), item.DiscountPercent); err != nil {
			return domain.Sale{}, err
		}
		if line.DiscountAmount, err = decodeMoney(fmt.Sprintf("items[%d].discountAmount", i), item.DiscountAmount); err != nil {
			return domain.Sale{}, err
		}
		sale.Items = append(sale.Items, line)
	}

	for _, change := range doc.StatusHistory {
		sale.StatusHistory = append(sale.StatusHistory, domain.StatusChange{
			Status:    domain.SaleStatus(change.Status),
			Timestamp: change.Timestamp,
			Comment:   change.Comment,
			UpdatedBy: change.UpdatedBy,
		})
	}

	return sale, nil
}

// Money persists as fixed two-decimal strings; Firestore has no decimal type
// and float64 would reintroduce binary rounding drift.
func encodeMoney(amount decimal.Decimal) string {
	return domain.RoundMoney(amount).StringFixed(2)
}

func decodeMoney(field, raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("firestore sales decode %s: %w", field, err)
	}
	return amount, nil
}
