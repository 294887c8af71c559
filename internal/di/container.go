package di

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ridehouse/api/internal/handlers"
	"github.com/ridehouse/api/internal/platform/auth"
	"github.com/ridehouse/api/internal/platform/config"
	pfirestore "github.com/ridehouse/api/internal/platform/firestore"
	"github.com/ridehouse/api/internal/platform/jobs"
	"github.com/ridehouse/api/internal/repositories"
	repofirestore "github.com/ridehouse/api/internal/repositories/firestore"
	"github.com/ridehouse/api/internal/services"
)

// Container wires configuration, storage, services and handlers together for
// the API binary.
type Container struct {
	Config   config.Config
	Logger   *zap.Logger
	Registry repositories.Registry

	Sales    services.SaleService
	Tracking services.TrackingService

	AuthMiddleware  *auth.Middleware
	SalesHandler    *handlers.SalesHandler
	TrackingHandler *handlers.TrackingHandler

	events *jobs.SaleEventPublisher
}

// New builds the production object graph. Event publishing is enabled only
// when a topic is configured.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		return nil, errors.New("di: logger is required")
	}

	provider := pfirestore.NewProvider(cfg.Firestore)
	registry, err := repofirestore.NewRegistry(provider)
	if err != nil {
		return nil, fmt.Errorf("di: build registry: %w", err)
	}

	var publisher *jobs.SaleEventPublisher
	var events services.EventPublisher
	if cfg.Events.Topic != "" {
		publisher, err = jobs.NewSaleEventPublisher(ctx, cfg.Events.ProjectID, cfg.Events.Topic)
		if err != nil {
			return nil, fmt.Errorf("di: build event publisher: %w", err)
		}
		events = publisher
	} else {
		logger.Info("sale event publishing disabled, no topic configured")
	}

	counter, err := services.NewCounterService(registry.Counters())
	if err != nil {
		return nil, fmt.Errorf("di: build counter service: %w", err)
	}
	sales, err := services.NewSaleService(services.SaleServiceDeps{
		Registry: registry,
		Counter:  counter,
		Events:   events,
	})
	if err != nil {
		return nil, fmt.Errorf("di: build sale service: %w", err)
	}
	tracking, err := services.NewTrackingService(services.TrackingServiceDeps{
		Registry: registry,
		Events:   events,
	})
	if err != nil {
		return nil, fmt.Errorf("di: build tracking service: %w", err)
	}

	authMW, err := auth.NewMiddleware(cfg.Auth.SigningSecret)
	if err != nil {
		return nil, fmt.Errorf("di: build auth middleware: %w", err)
	}
	salesHandler, err := handlers.NewSalesHandler(sales)
	if err != nil {
		return nil, fmt.Errorf("di: build sales handler: %w", err)
	}
	trackingHandler, err := handlers.NewTrackingHandler(tracking)
	if err != nil {
		return nil, fmt.Errorf("di: build tracking handler: %w", err)
	}

	return &Container{
		Config:          cfg,
		Logger:          logger,
		Registry:        registry,
		Sales:           sales,
		Tracking:        tracking,
		AuthMiddleware:  authMW,
		SalesHandler:    salesHandler,
		TrackingHandler: trackingHandler,
		events:          publisher,
	}, nil
}

// Close releases the container's long-lived resources.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var firstErr error
	if c.events != nil {
		if err := c.events.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.Registry != nil {
		if err := c.Registry.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
