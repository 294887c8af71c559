package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/ridehouse/api/internal/domain"
	"github.com/ridehouse/api/internal/platform/auth"
	"github.com/ridehouse/api/internal/platform/jobs"
	"github.com/ridehouse/api/internal/repositories"
)

// Sentinel errors surfaced by the tracking service.
var (
	ErrTrackingNotFound     = errors.New("tracked sale not found")
	ErrTrackingInvalidInput = errors.New("tracking input invalid")
	ErrTrackingForbidden    = errors.New("status transition forbidden")
	ErrTrackingConflict     = errors.New("tracking conflict")
)

// TrackingServiceDeps enumerates the dependencies required by NewTrackingService.
type TrackingServiceDeps struct {
	Registry repositories.Registry
	Events   EventPublisher
	Clock    Clock
}

type trackingService struct {
	registry repositories.Registry
	events   EventPublisher
	clock    Clock
}

// NewTrackingService constructs the fulfillment tracking service.
func NewTrackingService(deps TrackingServiceDeps) (TrackingService, error) {
	if deps.Registry == nil {
		return nil, errors.New("tracking service requires repository registry")
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &trackingService{
		registry: deps.Registry,
		events:   deps.Events,
		clock:    clock,
	}, nil
}

// UpdateStatus applies one fulfillment transition: the role is checked
// against the transition table, the history grows by exactly one entry, and
// delivery metadata supplied in the same call is written alongside. The
// persist carries the optimistic version check, so a concurrent mutation
// surfaces as a conflict.
func (s *trackingService) UpdateStatus(ctx context.Context, actor auth.Actor, saleID string, cmd UpdateStatusCommand) (domain.Sale, error) {
	if !domain.ValidSaleStatus(cmd.Status) {
		return domain.Sale{}, fmt.Errorf("%w: unknown status %q", ErrTrackingInvalidInput, cmd.Status)
	}

	sale, err := s.loadScoped(ctx, actor, saleID)
	if err != nil {
		return domain.Sale{}, err
	}

	if !domain.CanTransition(actor.Role, sale.Status, cmd.Status) {
		return domain.Sale{}, fmt.Errorf("%w: %s cannot move sale from %s to %s",
			ErrTrackingForbidden, actor.Role, sale.Status, cmd.Status)
	}

	now := s.clock()
	sale.Status = cmd.Status
	sale.StatusHistory = append(sale.StatusHistory, domain.StatusChange{
		Status:    cmd.Status,
		Timestamp: now,
		Comment:   cmd.Comment,
		UpdatedBy: actor.ID,
	})

	switch cmd.Status {
	case domain.SaleStatusCompleted:
		sale.IsDelivered = true
	case domain.SaleStatusCancelled:
		cancelled := now
		sale.CancelledAt = &cancelled
	}

	if cmd.TrackingNumber != "" {
		sale.TrackingNumber = cmd.TrackingNumber
	}
	if cmd.ShippingCarrier != "" {
		sale.ShippingCarrier = cmd.ShippingCarrier
	}
	if cmd.EstimatedDeliveryDate != nil {
		date := *cmd.EstimatedDeliveryDate
		sale.EstimatedDeliveryDate = &date
	}
	sale.UpdatedAt = now

	if err := s.registry.Sales().Update(ctx, sale); err != nil {
		return domain.Sale{}, s.classify(err, saleID)
	}
	sale.Version++

	if s.events != nil {
		s.events.Publish(ctx, jobs.SaleEvent{
			Type:       "sale.status.changed",
			SaleID:     sale.ID,
			SaleNumber: sale.SaleNumber,
			OccurredAt: now,
			Payload: map[string]any{
				"status":    string(sale.Status),
				"updatedBy": actor.ID,
			},
		})
	}
	return sale, nil
}

// History returns the sale's append-only status history, oldest first.
func (s *trackingService) History(ctx context.Context, actor auth.Actor, saleID string) ([]domain.StatusChange, error) {
	sale, err := s.loadScoped(ctx, actor, saleID)
	if err != nil {
		return nil, err
	}
	history := make([]domain.StatusChange, len(sale.StatusHistory))
	copy(history, sale.StatusHistory)
	return history, nil
}

func (s *trackingService) loadScoped(ctx context.Context, actor auth.Actor, saleID string) (domain.Sale, error) {
	if strings.TrimSpace(saleID) == "" {
		return domain.Sale{}, fmt.Errorf("%w: sale id is required", ErrTrackingInvalidInput)
	}

	sale, err := s.registry.Sales().FindByID(ctx, saleID)
	if err != nil {
		return domain.Sale{}, s.classify(err, saleID)
	}

	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleSeller:
		if sale.SellerID == nil || *sale.SellerID != actor.ID {
			return domain.Sale{}, fmt.Errorf("%w: sale %s", ErrTrackingNotFound, saleID)
		}
	case domain.RoleCustomer:
		if sale.CustomerID != actor.CustomerID {
			return domain.Sale{}, fmt.Errorf("%w: sale %s", ErrTrackingNotFound, saleID)
		}
	default:
		return domain.Sale{}, fmt.Errorf("%w: unknown role %q", ErrTrackingForbidden, actor.Role)
	}

	if sale.IsDeleted && actor.Role != domain.RoleAdmin {
		return domain.Sale{}, fmt.Errorf("%w: sale %s", ErrTrackingNotFound, saleID)
	}
	return sale, nil
}

func (s *trackingService) classify(err error, saleID string) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: sale %s", ErrTrackingNotFound, saleID)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: sale %s was modified concurrently", ErrTrackingConflict, saleID)
		}
	}
	return fmt.Errorf("sale %s: %w", saleID, err)
}
