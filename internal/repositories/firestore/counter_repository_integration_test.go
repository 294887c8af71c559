//go:build integration

package firestore

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/ridehouse/api/internal/domain"
	pconfig "github.com/ridehouse/api/internal/platform/config"
	pfirestore "github.com/ridehouse/api/internal/platform/firestore"
	"github.com/ridehouse/api/internal/repositories"
)

func emulatorProvider(t *testing.T, projectID string) *pfirestore.Provider {
	t.Helper()

	endpoint := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if endpoint == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{
		ProjectID:    projectID,
		EmulatorHost: endpoint,
	})
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})
	return provider
}

func TestCounterRepositoryIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}

	provider := emulatorProvider(t, "counter-test")

	repo, err := NewCounterRepository(provider)
	if err != nil {
		t.Fatalf("new counter repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	const workers = 16
	results := make([]int64, workers)
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func(idx int) {
			defer wg.Done()
			value, err := repo.Next(ctx, "sales:202608", 1)
			if err != nil {
				t.Errorf("next(%d): %v", idx, err)
				return
			}
			results[idx] = value
		}(i)
	}

	wg.Wait()

	for _, val := range results {
		if val == 0 {
			t.Fatalf("expected counter increments to succeed, got zero values: %+v", results)
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, val := range results {
		expected := int64(i + 1)
		if val != expected {
			t.Fatalf("expected sequence %d at position %d, got %d", expected, i, val)
		}
	}

	// Configure a bounded counter and assert exhaustion.
	max := int64(3)
	start := int64(0)
	if err := repo.Configure(ctx, "sales:bounded", repositories.CounterConfig{
		Step:         1,
		MaxValue:     &max,
		InitialValue: &start,
	}); err != nil {
		t.Fatalf("configure counter: %v", err)
	}

	for i := int64(1); i <= max; i++ {
		value, err := repo.Next(ctx, "sales:bounded", 0)
		if err != nil {
			t.Fatalf("next bounded %d: %v", i, err)
		}
		if value != i {
			t.Fatalf("expected bounded counter %d got %d", i, value)
		}
	}

	_, err = repo.Next(ctx, "sales:bounded", 0)
	if err == nil {
		t.Fatalf("expected exhaustion error")
	}
	var counterErr *repositories.CounterError
	if !errors.As(err, &counterErr) {
		t.Fatalf("expected counter error, got %T %v", err, err)
	}
	if counterErr.Code != repositories.CounterErrorExhausted {
		t.Fatalf("expected exhausted code, got %s", counterErr.Code)
	}
}

func TestSaleNumberClaimIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}

	provider := emulatorProvider(t, "sale-claim-test")

	repo, err := NewSaleRepository(provider)
	if err != nil {
		t.Fatalf("new sale repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	now := time.Now().UTC()
	sale := domain.Sale{
		SaleNumber:    "SALE-2026080042",
		CustomerID:    "cust-1",
		Status:        domain.SaleStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		TotalAmount:   decimal.NewFromInt(100),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	first := sale
	first.ID = "sale_claim_a"
	if err := repo.Insert(ctx, first); err != nil {
		t.Fatalf("insert first: %v", err)
	}

	second := sale
	second.ID = "sale_claim_b"
	err = repo.Insert(ctx, second)
	if err == nil {
		t.Fatalf("expected duplicate sale number to conflict")
	}
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict repository error, got %T %v", err, err)
	}

	// The failed insert must not leave a sale document behind.
	if _, err := repo.FindByID(ctx, second.ID); err == nil {
		t.Fatalf("expected second sale to be absent")
	}

	loaded, err := repo.FindByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("find first: %v", err)
	}
	if loaded.SaleNumber != first.SaleNumber {
		t.Fatalf("expected sale number %q got %q", first.SaleNumber, loaded.SaleNumber)
	}
	if !loaded.TotalAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected total 100 got %s", loaded.TotalAmount)
	}
}
