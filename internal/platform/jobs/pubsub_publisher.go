package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/ridehouse/api/internal/platform/requestctx"
)

// SaleEvent is the envelope published for sale lifecycle changes.
type SaleEvent struct {
	Type       string         `json:"type"`
	SaleID     string         `json:"saleId"`
	SaleNumber string         `json:"saleNumber"`
	OccurredAt time.Time      `json:"occurredAt"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// SaleEventPublisher publishes sale events to a Pub/Sub topic. Publishing is
// best effort: failures are logged and never fail the originating request.
type SaleEventPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewSaleEventPublisher dials Pub/Sub and binds the topic.
func NewSaleEventPublisher(ctx context.Context, projectID, topicID string) (*SaleEventPublisher, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("jobs: pubsub project id is required")
	}
	if strings.TrimSpace(topicID) == "" {
		return nil, errors.New("jobs: pubsub topic is required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("jobs: create pubsub client: %w", err)
	}
	return &SaleEventPublisher{
		client: client,
		topic:  client.Topic(topicID),
	}, nil
}

// Publish sends the event without blocking the caller on delivery. The result
// is collected on a detached goroutine so request latency stays unaffected.
func (p *SaleEventPublisher) Publish(ctx context.Context, event SaleEvent) {
	if p == nil || p.topic == nil {
		return
	}
	logger := requestctx.Logger(ctx)

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		logger.Warn("jobs: marshal sale event", zap.String("type", event.Type), zap.Error(err))
		return
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type":   event.Type,
			"saleId": event.SaleID,
		},
	})

	go func() {
		waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := result.Get(waitCtx); err != nil {
			logger.Warn("jobs: publish sale event",
				zap.String("type", event.Type),
				zap.String("sale_id", event.SaleID),
				zap.Error(err),
			)
		}
	}()
}

// Close flushes pending messages and releases the client.
func (p *SaleEventPublisher) Close() error {
	if p == nil {
		return nil
	}
	if p.topic != nil {
		p.topic.Stop()
	}
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
