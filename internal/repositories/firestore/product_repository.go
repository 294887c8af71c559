package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	domain "github.com/ridehouse/api/internal/domain"
	pfirestore "github.com/ridehouse/api/internal/platform/firestore"
)

const motorcyclesCollection = "motorcycles"

// ProductRepository reads motorcycle records for sale pricing.
type ProductRepository struct {
	base *pfirestore.BaseRepository[domain.Product]
}

func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		base: pfirestore.NewBaseRepository[domain.Product](provider, motorcyclesCollection, nil, decodeProduct),
	}, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.base.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	product := doc.Data
	product.ID = doc.ID
	return product, nil
}

// decodeProduct tolerates the price being stored as a string, integer or
// float; seed data and older records are not uniform.
func decodeProduct(_ context.Context, snap *firestore.DocumentSnapshot) (domain.Product, error) {
	var raw struct {
		Name     string `firestore:"name"`
		Price    any    `firestore:"price"`
		IsActive bool   `firestore:"isActive"`
	}
	if err := snap.DataTo(&raw); err != nil {
		return domain.Product{}, err
	}

	price, err := decodePrice(raw.Price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("firestore motorcycles decode price: %w", err)
	}
	return domain.Product{
		Name:     raw.Name,
		Price:    price,
		IsActive: raw.IsActive,
	}, nil
}

func decodePrice(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case nil:
		return decimal.Zero, nil
	case string:
		return decimal.NewFromString(v)
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported price type %T", value)
	}
}
