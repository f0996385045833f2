package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func newTestPublisher(w *recordingWriter) *EventPublisher {
	return NewEventPublisher(&Producer{writer: w, logger: util.GetLogger()})
}

func TestPublishOrderPlaced(t *testing.T) {
	w := &recordingWriter{}
	ep := newTestPublisher(w)

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-1",
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:       "o-1",
		OrderNumber:   "ORD-1-0001",
		CustomerID:    "c-1",
		Total:         decimal.RequireFromString("118.00"),
		PaymentMethod: models.PaymentMethodCash,
		PaymentStatus: models.PaymentStatusPending,
	}

	require.NoError(t, ep.PublishOrderPlaced(context.Background(), event))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "order-o-1", string(w.msgs[0].Key))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, models.EventTypeOrderPlaced, decoded["event_type"])
	assert.Equal(t, "ORD-1-0001", decoded["order_number"])
	assert.Equal(t, "118", decoded["total"])
}

func TestPublishCartClearFailed(t *testing.T) {
	w := &recordingWriter{}
	ep := newTestPublisher(w)

	err := ep.PublishCartClearFailed(context.Background(), &models.CartClearFailedEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeCartClearFailed},
		OrderID:   "o-2",
		Reason:    "store down",
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "order-o-2", string(w.msgs[0].Key))
}

func TestPublishEvent_WriteError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker unreachable")}
	ep := newTestPublisher(w)

	err := ep.PublishOrderPlaced(context.Background(), &models.OrderPlacedEvent{OrderID: "o-3"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "broker unreachable")
}
