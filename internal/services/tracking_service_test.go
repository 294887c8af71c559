package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/ridehouse/api/internal/domain"
	"github.com/ridehouse/api/internal/platform/auth"
)

func newTrackingServiceForTest(t *testing.T, registry *stubRegistry, events EventPublisher) TrackingService {
	t.Helper()
	svc, err := NewTrackingService(TrackingServiceDeps{
		Registry: registry,
		Events:   events,
		Clock:    fixedClock(time.Date(2026, 8, 14, 10, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("new tracking service: %v", err)
	}
	return svc
}

// Every (role, from, to) triple is exercised through the service: triples in
// the table succeed and grow the history by exactly one matching entry,
// triples outside it fail with Forbidden and leave the sale untouched.
func TestUpdateStatusExhaustiveTable(t *testing.T) {
	statuses := []domain.SaleStatus{
		domain.SaleStatusPending, domain.SaleStatusConfirmed, domain.SaleStatusProcessing,
		domain.SaleStatusPreparing, domain.SaleStatusReadyForPickup, domain.SaleStatusInTransit,
		domain.SaleStatusCompleted, domain.SaleStatusCancelled, domain.SaleStatusRefunded,
	}
	actors := []auth.Actor{adminActor, sellerActor, customerActor}

	for _, actor := range actors {
		for _, from := range statuses {
			for _, to := range statuses {
				registry := newStubRegistry()
				before := seedSale(registry, "sale_0001", func(s *domain.Sale) {
					s.Status = from
					s.StatusHistory = []domain.StatusChange{{Status: from, Timestamp: s.CreatedAt}}
				})
				svc := newTrackingServiceForTest(t, registry, nil)

				sale, err := svc.UpdateStatus(context.Background(), actor, "sale_0001", UpdateStatusCommand{Status: to})

				if domain.CanTransition(actor.Role, from, to) {
					if err != nil {
						t.Fatalf("%s %s->%s: expected success, got %v", actor.Role, from, to, err)
					}
					if sale.Status != to {
						t.Fatalf("%s %s->%s: status %s", actor.Role, from, to, sale.Status)
					}
					if len(sale.StatusHistory) != len(before.StatusHistory)+1 {
						t.Fatalf("%s %s->%s: history length %d", actor.Role, from, to, len(sale.StatusHistory))
					}
					if last := sale.StatusHistory[len(sale.StatusHistory)-1]; last.Status != to {
						t.Fatalf("%s %s->%s: last history entry %s", actor.Role, from, to, last.Status)
					}
					continue
				}

				if !errors.Is(err, ErrTrackingForbidden) {
					t.Fatalf("%s %s->%s: expected forbidden, got %v", actor.Role, from, to, err)
				}
				after := registry.sales["sale_0001"]
				if after.Status != from || len(after.StatusHistory) != len(before.StatusHistory) {
					t.Fatalf("%s %s->%s: sale mutated on forbidden transition", actor.Role, from, to)
				}
			}
		}
	}
}

// Scenario: seller may not roll a completed sale back, admin may.
func TestUpdateStatusAdminOverride(t *testing.T) {
	registry := newStubRegistry()
	seedSale(registry, "sale_0001", func(s *domain.Sale) {
		s.Status = domain.SaleStatusCompleted
		s.IsDelivered = true
	})
	events := &stubPublisher{}
	svc := newTrackingServiceForTest(t, registry, events)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, sellerActor, "sale_0001", UpdateStatusCommand{
		Status: domain.SaleStatusProcessing,
	})
	if !errors.Is(err, ErrTrackingForbidden) {
		t.Fatalf("seller rollback: got %v, want forbidden", err)
	}

	sale, err := svc.UpdateStatus(ctx, adminActor, "sale_0001", UpdateStatusCommand{
		Status:  domain.SaleStatusProcessing,
		Comment: "correcting mis-scanned delivery",
	})
	if err != nil {
		t.Fatalf("admin rollback: %v", err)
	}
	if sale.Status != domain.SaleStatusProcessing {
		t.Errorf("status: got %s", sale.Status)
	}
	last := sale.StatusHistory[len(sale.StatusHistory)-1]
	if last.Status != domain.SaleStatusProcessing || last.Comment != "correcting mis-scanned delivery" || last.UpdatedBy != adminActor.ID {
		t.Errorf("history entry: %+v", last)
	}
	if got := events.types(); len(got) != 1 || got[0] != "sale.status.changed" {
		t.Errorf("events: %v", got)
	}
}

func TestUpdateStatusCompletedSetsDelivered(t *testing.T) {
	registry := newStubRegistry()
	seedSale(registry, "sale_0001", func(s *domain.Sale) {
		s.Status = domain.SaleStatusInTransit
	})
	svc := newTrackingServiceForTest(t, registry, nil)

	eta := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	sale, err := svc.UpdateStatus(context.Background(), sellerActor, "sale_0001", UpdateStatusCommand{
		Status:                domain.SaleStatusCompleted,
		TrackingNumber:        "TRK-8831",
		ShippingCarrier:       "roadfreight",
		EstimatedDeliveryDate: &eta,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !sale.IsDelivered {
		t.Error("completed sale must be marked delivered")
	}
	if sale.TrackingNumber != "TRK-8831" || sale.ShippingCarrier != "roadfreight" {
		t.Errorf("delivery metadata: %+v", sale)
	}
	if sale.EstimatedDeliveryDate == nil || !sale.EstimatedDeliveryDate.Equal(eta) {
		t.Errorf("eta: %v", sale.EstimatedDeliveryDate)
	}
}

func TestUpdateStatusCancellationTimestamp(t *testing.T) {
	registry := newStubRegistry()
	seedSale(registry, "sale_0001", nil)
	svc := newTrackingServiceForTest(t, registry, nil)

	sale, err := svc.UpdateStatus(context.Background(), sellerActor, "sale_0001", UpdateStatusCommand{
		Status: domain.SaleStatusCancelled,
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if sale.CancelledAt == nil {
		t.Fatal("cancelled sale must carry a cancellation timestamp")
	}
}

func TestUpdateStatusScopeAndValidation(t *testing.T) {
	registry := newStubRegistry()
	seedSale(registry, "sale_0001", nil)
	svc := newTrackingServiceForTest(t, registry, nil)
	ctx := context.Background()

	if _, err := svc.UpdateStatus(ctx, otherSeller, "sale_0001", UpdateStatusCommand{
		Status: domain.SaleStatusConfirmed,
	}); !errors.Is(err, ErrTrackingNotFound) {
		t.Fatalf("other seller: got %v, want not found", err)
	}

	if _, err := svc.UpdateStatus(ctx, sellerActor, "sale_missing", UpdateStatusCommand{
		Status: domain.SaleStatusConfirmed,
	}); !errors.Is(err, ErrTrackingNotFound) {
		t.Fatalf("missing sale: got %v, want not found", err)
	}

	if _, err := svc.UpdateStatus(ctx, sellerActor, "sale_0001", UpdateStatusCommand{
		Status: "shipped",
	}); !errors.Is(err, ErrTrackingInvalidInput) {
		t.Fatalf("unknown status: got %v, want invalid input", err)
	}
}

func TestUpdateStatusVersionConflict(t *testing.T) {
	registry := newStubRegistry()
	seedSale(registry, "sale_0001", nil)
	registry.updateErr = conflictErr("sale sale_0001 version")
	svc := newTrackingServiceForTest(t, registry, nil)

	if _, err := svc.UpdateStatus(context.Background(), sellerActor, "sale_0001", UpdateStatusCommand{
		Status: domain.SaleStatusConfirmed,
	}); !errors.Is(err, ErrTrackingConflict) {
		t.Fatalf("got %v, want conflict", err)
	}
}

func TestHistoryIsScopedCopy(t *testing.T) {
	registry := newStubRegistry()
	seedSale(registry, "sale_0001", func(s *domain.Sale) {
		s.StatusHistory = append(s.StatusHistory, domain.StatusChange{
			Status: domain.SaleStatusConfirmed, Timestamp: s.CreatedAt.Add(time.Hour),
		})
		s.Status = domain.SaleStatusConfirmed
	})
	svc := newTrackingServiceForTest(t, registry, nil)
	ctx := context.Background()

	history, err := svc.History(ctx, customerActor, "sale_0001")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length: got %d", len(history))
	}

	// Mutating the returned slice must not touch the stored aggregate.
	history[0].Status = domain.SaleStatusRefunded
	if registry.sales["sale_0001"].StatusHistory[0].Status == domain.SaleStatusRefunded {
		t.Fatal("history must be returned as a copy")
	}

	if _, err := svc.History(ctx, otherCustomer, "sale_0001"); !errors.Is(err, ErrTrackingNotFound) {
		t.Fatalf("other customer history: got %v, want not found", err)
	}
}
