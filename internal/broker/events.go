package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"movie-shop/internal/models"
	"movie-shop/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher publishes payment events. With a nil producer every
// publish is a no-op, which is how the service runs without Kafka.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// Enabled reports whether events leave the process
func (ep *EventPublisher) Enabled() bool {
	return ep != nil && ep.producer != nil
}

func (ep *EventPublisher) publish(ctx context.Context, key string, event interface{}) error {
	if !ep.Enabled() {
		return nil
	}
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishPaymentInitiated publishes PaymentInitiated event
func (ep *EventPublisher) PublishPaymentInitiated(ctx context.Context, event *models.PaymentInitiatedEvent) error {
	return ep.publish(ctx, event.ExternalRef, event)
}

// PublishPaymentReconciled publishes PaymentReconciled event
func (ep *EventPublisher) PublishPaymentReconciled(ctx context.Context, event *models.PaymentReconciledEvent) error {
	return ep.publish(ctx, event.ExternalRef, event)
}

// PublishCallbackRejected publishes CallbackRejected event
func (ep *EventPublisher) PublishCallbackRejected(ctx context.Context, event *models.CallbackRejectedEvent) error {
	key := event.ExternalRef
	if key == "" {
		key = "unresolved"
	}
	return ep.publish(ctx, key, event)
}

// PublishDeliveryFailed publishes DeliveryFailed event
func (ep *EventPublisher) PublishDeliveryFailed(ctx context.Context, event *models.DeliveryFailedEvent) error {
	return ep.publish(ctx, event.ExternalRef, event)
}

// EventHandler routes incoming events by type
type EventHandler struct {
	handlers map[string]func(context.Context, []byte) error
	fallback func(context.Context, models.BaseEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{handlers: make(map[string]func(context.Context, []byte) error)}
}

// OnPaymentReconciled registers a handler for PaymentReconciled events
func (eh *EventHandler) OnPaymentReconciled(handler func(context.Context, *models.PaymentReconciledEvent) error) {
	eh.handlers[models.EventTypePaymentReconciled] = func(ctx context.Context, b []byte) error {
		var event models.PaymentReconciledEvent
		if err := json.Unmarshal(b, &event); err != nil {
			return fmt.Errorf("failed to unmarshal PaymentReconciled event: %w", err)
		}
		return handler(ctx, &event)
	}
}

// OnCallbackRejected registers a handler for CallbackRejected events
func (eh *EventHandler) OnCallbackRejected(handler func(context.Context, *models.CallbackRejectedEvent) error) {
	eh.handlers[models.EventTypeCallbackRejected] = func(ctx context.Context, b []byte) error {
		var event models.CallbackRejectedEvent
		if err := json.Unmarshal(b, &event); err != nil {
			return fmt.Errorf("failed to unmarshal CallbackRejected event: %w", err)
		}
		return handler(ctx, &event)
	}
}

// OnDeliveryFailed registers a handler for DeliveryFailed events
func (eh *EventHandler) OnDeliveryFailed(handler func(context.Context, *models.DeliveryFailedEvent) error) {
	eh.handlers[models.EventTypeDeliveryFailed] = func(ctx context.Context, b []byte) error {
		var event models.DeliveryFailedEvent
		if err := json.Unmarshal(b, &event); err != nil {
			return fmt.Errorf("failed to unmarshal DeliveryFailed event: %w", err)
		}
		return handler(ctx, &event)
	}
}

// OnPaymentInitiated registers a handler for PaymentInitiated events
func (eh *EventHandler) OnPaymentInitiated(handler func(context.Context, *models.PaymentInitiatedEvent) error) {
	eh.handlers[models.EventTypePaymentInitiated] = func(ctx context.Context, b []byte) error {
		var event models.PaymentInitiatedEvent
		if err := json.Unmarshal(b, &event); err != nil {
			return fmt.Errorf("failed to unmarshal PaymentInitiated event: %w", err)
		}
		return handler(ctx, &event)
	}
}

// OnOther registers a handler for event types without a dedicated handler
func (eh *EventHandler) OnOther(handler func(context.Context, models.BaseEvent) error) {
	eh.fallback = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	return eh.Handle(ctx, msg.Value)
}

// Handle routes a raw event to its handler
func (eh *EventHandler) Handle(ctx context.Context, value []byte) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	if handler, ok := eh.handlers[baseEvent.EventType]; ok {
		return handler(ctx, value)
	}
	if eh.fallback != nil {
		return eh.fallback(ctx, baseEvent)
	}

	util.GetLogger().Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	return nil
}
