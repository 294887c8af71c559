package firestore

import (
	"context"
	"errors"

	domain "github.com/ridehouse/api/internal/domain"
	pfirestore "github.com/ridehouse/api/internal/platform/firestore"
)

const customersCollection = "customers"

type customerDocument struct {
	FullName  string `firestore:"fullName"`
	Email     string `firestore:"email"`
	IsActive  bool   `firestore:"isActive"`
	IsDeleted bool   `firestore:"isDeleted"`
}

// CustomerRepository reads customer records needed to validate sales.
type CustomerRepository struct {
	base *pfirestore.BaseRepository[customerDocument]
}

func NewCustomerRepository(provider *pfirestore.Provider) (*CustomerRepository, error) {
	if provider == nil {
		return nil, errors.New("customer repository requires firestore provider")
	}
	return &CustomerRepository{
		base: pfirestore.NewBaseRepository[customerDocument](provider, customersCollection, nil, nil),
	}, nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, customerID string) (domain.Customer, error) {
	doc, err := r.base.Get(ctx, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	return domain.Customer{
		ID:        doc.ID,
		FullName:  doc.Data.FullName,
		Email:     doc.Data.Email,
		IsActive:  doc.Data.IsActive,
		IsDeleted: doc.Data.IsDeleted,
	}, nil
}
