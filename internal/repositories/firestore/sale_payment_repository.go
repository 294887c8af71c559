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
)

const paymentsSubcollection = "payments"

type paymentDocument struct {
	Amount        string    `firestore:"amount"`
	PaymentMethod string    `firestore:"paymentMethod"`
	Notes         string    `firestore:"notes,omitempty"`
	RecordedBy    string    `firestore:"recordedBy"`
	CreatedAt     time.Time `firestore:"createdAt"`
}

// SalePaymentRepository stores payment entries under sales/{saleId}/payments.
// Entries are append-only; corrections are modelled as new entries.
type SalePaymentRepository struct {
	provider *pfirestore.Provider
}

// NewSalePaymentRepository constructs a Firestore-backed payment repository.
func NewSalePaymentRepository(provider *pfirestore.Provider) (*SalePaymentRepository, error) {
	if provider == nil {
		return nil, errors.New("sale payment repository requires firestore provider")
	}
	return &SalePaymentRepository{provider: provider}, nil
}

// Insert appends a payment entry. It joins an ambient transaction so the
// entry commits together with the sale's paid-amount update.
func (r *SalePaymentRepository) Insert(ctx context.Context, entry domain.PaymentEntry) error {
	if strings.TrimSpace(entry.SaleID) == "" {
		return errors.New("sale payment repository: sale id is required")
	}
	if strings.TrimSpace(entry.ID) == "" {
		return errors.New("sale payment repository: entry id is required")
	}

	ref, err := r.entryRef(ctx, entry.SaleID, entry.ID)
	if err != nil {
		return err
	}
	doc := paymentDocument{
		Amount:        domain.RoundMoney(entry.Amount).StringFixed(2),
		PaymentMethod: entry.PaymentMethod,
		Notes:         entry.Notes,
		RecordedBy:    entry.RecordedBy,
		CreatedAt:     entry.CreatedAt,
	}

	if tx, ok := pfirestore.TransactionFromContext(ctx); ok {
		if err := tx.Create(ref, doc); err != nil {
			return pfirestore.WrapError("sales.payments.insert", err)
		}
		return nil
	}
	if _, err := ref.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("sales.payments.insert", err)
	}
	return nil
}

// List returns a sale's payment entries ordered oldest first.
func (r *SalePaymentRepository) List(ctx context.Context, saleID string) ([]domain.PaymentEntry, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, pfirestore.WrapError("sales.payments.list", err)
	}

	query := client.Collection(salesCollection).Doc(saleID).
		Collection(paymentsSubcollection).
		OrderBy("createdAt", firestore.Asc)

	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, pfirestore.WrapError("sales.payments.list", err)
	}

	entries := make([]domain.PaymentEntry, 0, len(snaps))
	for _, snap := range snaps {
		var doc paymentDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, pfirestore.WrapError("sales.payments.list", err)
		}
		amount, err := decimal.NewFromString(doc.Amount)
		if err != nil {
			return nil, fmt.Errorf("firestore payments decode amount: %w", err)
		}
		entries = append(entries, domain.PaymentEntry{
			ID:            snap.Ref.ID,
			SaleID:        saleID,
			Amount:        amount,
			PaymentMethod: doc.PaymentMethod,
			Notes:         doc.Notes,
			RecordedBy:    doc.RecordedBy,
			CreatedAt:     doc.CreatedAt,
		})
	}
	return entries, nil
}

func (r *SalePaymentRepository) entryRef(ctx context.Context, saleID, entryID string) (*firestore.DocumentRef, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, pfirestore.WrapError("sales.payments", err)
	}
	return client.Collection(salesCollection).Doc(saleID).
		Collection(paymentsSubcollection).Doc(entryID), nil
}
