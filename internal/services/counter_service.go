package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ridehouse/api/internal/repositories"
)

const saleNumberBucketPrefix = "sales:"

// counterService formats transactional counter values into SALE-YYYYMM####
// numbers. Each year+month has its own counter bucket, so the sequence
// restarts at 1 every month while numbers stay unique table-wide through the
// claim made at insert time.
type counterService struct {
	counters repositories.CounterRepository
}

// NewCounterService wires the counter repository into a CounterService.
func NewCounterService(counters repositories.CounterRepository) (CounterService, error) {
	if counters == nil {
		return nil, errors.New("counter service requires counter repository")
	}
	return &counterService{counters: counters}, nil
}

// NextSaleNumber allocates the next number in the bucket for the given time.
// When the context carries an active transaction the allocation joins it.
func (s *counterService) NextSaleNumber(ctx context.Context, at time.Time) (string, error) {
	bucket := at.UTC().Format("200601")
	value, err := s.counters.Next(ctx, saleNumberBucketPrefix+bucket, 1)
	if err != nil {
		return "", fmt.Errorf("allocate sale number for %s: %w", bucket, err)
	}
	return fmt.Sprintf("SALE-%s%04d", bucket, value), nil
}
