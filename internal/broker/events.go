package broker

import (
	"context"
	"fmt"

	"storefront/internal/models"
)

// EventPublisher handles publishing domain events. Events for one order share
// a key so they land on the same partition.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderPlaced publishes OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishCartClearFailed publishes CartClearFailed event
func (ep *EventPublisher) PublishCartClearFailed(ctx context.Context, event *models.CartClearFailedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

func orderKey(orderID string) string {
	return fmt.Sprintf("order-%s", orderID)
}
