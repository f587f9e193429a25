package models

import (
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventTypePaymentInitiated  = "PAYMENT_INITIATED"
	EventTypePaymentReconciled = "PAYMENT_RECONCILED"
	EventTypeCallbackRejected  = "CALLBACK_REJECTED"
	EventTypeDeliveryFailed    = "DELIVERY_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent stamps a new event of eventType
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// PaymentInitiatedEvent published when an STK push was accepted by the gateway
type PaymentInitiatedEvent struct {
	BaseEvent
	ExternalRef string `json:"external_ref"`
	ChatID      int64  `json:"chat_id"`
	Kind        string `json:"kind"`
	ItemID      string `json:"item_id,omitempty"`
	Amount      Money  `json:"amount"`
	CheckoutID  string `json:"checkout_id,omitempty"`
}

// PaymentReconciledEvent published when a callback finalized an intent
type PaymentReconciledEvent struct {
	BaseEvent
	ExternalRef string `json:"external_ref"`
	ChatID      int64  `json:"chat_id"`
	Kind        string `json:"kind"`
	ItemID      string `json:"item_id,omitempty"`
	Amount      Money  `json:"amount"`
	Status      string `json:"status"`
	ResultCode  string `json:"result_code,omitempty"`
	Receipt     string `json:"receipt,omitempty"`
}

// CallbackRejectedEvent published when a callback could not be matched
type CallbackRejectedEvent struct {
	BaseEvent
	ExternalRef string `json:"external_ref,omitempty"`
	Reason      string `json:"reason"`
	Excerpt     string `json:"excerpt"`
}

// DeliveryFailedEvent published when a paid item could not be sent
type DeliveryFailedEvent struct {
	BaseEvent
	ExternalRef string `json:"external_ref"`
	ChatID      int64  `json:"chat_id"`
	ItemID      string `json:"item_id"`
	Reason      string `json:"reason"`
}
