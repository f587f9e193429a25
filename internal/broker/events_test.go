package broker

import (
	"context"
	"encoding/json"
	"testing"

	"movie-shop/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledPublisherIsNoop(t *testing.T) {
	ep := NewEventPublisher(nil)
	assert.False(t, ep.Enabled())

	err := ep.PublishPaymentReconciled(context.Background(), &models.PaymentReconciledEvent{
		BaseEvent:   models.NewBaseEvent(models.EventTypePaymentReconciled),
		ExternalRef: "TOPUP-1-1000",
	})
	assert.NoError(t, err)

	var nilPublisher *EventPublisher
	assert.NoError(t, nilPublisher.PublishCallbackRejected(context.Background(), &models.CallbackRejectedEvent{}))
}

func TestEventHandlerRoutesByType(t *testing.T) {
	eh := NewEventHandler()

	var reconciled *models.PaymentReconciledEvent
	eh.OnPaymentReconciled(func(_ context.Context, e *models.PaymentReconciledEvent) error {
		reconciled = e
		return nil
	})

	var other []string
	eh.OnOther(func(_ context.Context, e models.BaseEvent) error {
		other = append(other, e.EventType)
		return nil
	})

	value, err := json.Marshal(&models.PaymentReconciledEvent{
		BaseEvent:   models.NewBaseEvent(models.EventTypePaymentReconciled),
		ExternalRef: "TOPUP-1-1000",
		ChatID:      1,
		Amount:      5000,
		Status:      models.IntentStatusSuccess,
	})
	require.NoError(t, err)
	require.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: value}))

	require.NotNil(t, reconciled)
	assert.Equal(t, "TOPUP-1-1000", reconciled.ExternalRef)
	assert.Equal(t, models.Money(5000), reconciled.Amount)

	value, err = json.Marshal(&models.DeliveryFailedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeDeliveryFailed),
	})
	require.NoError(t, err)
	require.NoError(t, eh.Handle(context.Background(), value))
	assert.Equal(t, []string{models.EventTypeDeliveryFailed}, other)
}

func TestEventHandlerRejectsGarbage(t *testing.T) {
	eh := NewEventHandler()
	assert.Error(t, eh.Handle(context.Background(), []byte("not json")))
}
