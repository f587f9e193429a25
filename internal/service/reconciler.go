package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"movie-shop/internal/broker"
	"movie-shop/internal/models"
	"movie-shop/internal/payload"
	"movie-shop/internal/store"
	"movie-shop/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// alertExcerptLen bounds the payload excerpt sent to the operator
const alertExcerptLen = 1500

// Notifier sends outbound chat messages
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
	DeliverContent(ctx context.Context, chatID int64, item *models.Item) error
	AlertOperator(ctx context.Context, text string) error
}

// Outcome classifies a reconciled callback
type Outcome string

const (
	OutcomeApplied               Outcome = "applied"
	OutcomeBusinessFailure       Outcome = "business_failure"
	OutcomeDuplicate             Outcome = "duplicate"
	OutcomeUnresolvableReference Outcome = "unresolvable_reference"
	OutcomeUnknownReference      Outcome = "unknown_reference"
	OutcomeDeliveryFailure       Outcome = "delivery_failure"
	OutcomeInternalError         Outcome = "internal_error"
)

// Result describes what a callback did
type Result struct {
	Outcome   Outcome
	Reference string
	Event     payload.Event
	Intent    *models.Intent
	Err       error
	Response  models.CallbackResponse
}

// Reconciler applies gateway callbacks to payment intents
type Reconciler struct {
	store          *store.Store
	registry       *IntentRegistry
	notifier       Notifier
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(
	store *store.Store,
	registry *IntentRegistry,
	notifier Notifier,
	eventPublisher *broker.EventPublisher,
) *Reconciler {
	return &Reconciler{
		store:          store,
		registry:       registry,
		notifier:       notifier,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// Reconcile resolves the callback document, matches it to its intent and
// applies the effect at most once. It returns the result and the HTTP status
// to acknowledge with: 200 for every resolvable outcome, 500 when the store
// failed so the gateway redelivers. Cancellation of ctx is ignored: once a
// callback is accepted it runs to completion.
func (r *Reconciler) Reconcile(ctx context.Context, doc payload.Document) (*Result, int) {
	ctx, span := util.StartSpan(context.WithoutCancel(ctx), "Reconciler.Reconcile")
	defer span.End()

	start := time.Now()
	res := r.reconcile(ctx, doc)

	util.CallbackProcessingLatency.Observe(time.Since(start).Seconds())
	util.CallbacksReceivedTotal.WithLabelValues(string(res.Outcome)).Inc()
	span.SetAttributes(
		attribute.String("external_ref", res.Reference),
		attribute.String("outcome", string(res.Outcome)),
	)

	if res.Outcome == OutcomeInternalError {
		span.RecordError(res.Err)
		r.logger.Error("Callback reconciliation failed",
			zap.String("external_ref", res.Reference),
			zap.Error(res.Err))
		return res, http.StatusInternalServerError
	}

	r.logger.Info("Callback reconciled",
		zap.String("external_ref", res.Reference),
		zap.String("outcome", string(res.Outcome)))
	return res, http.StatusOK
}

func (r *Reconciler) reconcile(ctx context.Context, doc payload.Document) *Result {
	ev := payload.Resolve(doc)
	res := &Result{Event: ev, Reference: ev.Reference}
	excerpt := util.Excerpt(string(doc.Raw()), alertExcerptLen)

	if !ev.HasReference() {
		r.logger.Warn("Callback missing external reference", zap.String("payload", excerpt))
		r.alert(ctx, fmt.Sprintf("⚠️ Callback missing external reference. Payload:\n`%s`", excerpt))
		r.publishRejected(ctx, "", "missing_reference", excerpt)
		return res.reject(OutcomeUnresolvableReference, ErrUnresolvableReference, "missing external reference")
	}

	intent, err := r.registry.Lookup(ctx, ev.Reference)
	if errors.Is(err, ErrIntentNotFound) {
		r.logger.Warn("Unknown external reference", zap.String("external_ref", ev.Reference))
		r.alert(ctx, fmt.Sprintf("⚠️ Unknown external ref: `%s`\nPayload:\n`%s`", ev.Reference, excerpt))
		r.publishRejected(ctx, ev.Reference, "unknown_reference", excerpt)
		return res.reject(OutcomeUnknownReference,
			fmt.Errorf("%w: %s", ErrUnknownReference, ev.Reference), "unknown external reference")
	}
	if err != nil {
		return res.internal(err)
	}
	res.Intent = intent

	if intent.IsTerminal() {
		return res.duplicate()
	}

	if ev.CheckoutID != "" && intent.CheckoutID.Valid && ev.CheckoutID != intent.CheckoutID.String {
		r.logger.Warn("Callback checkout id differs from intent",
			zap.String("external_ref", intent.ExternalRef),
			zap.String("intent_checkout_id", intent.CheckoutID.String),
			zap.String("callback_checkout_id", ev.CheckoutID))
	}

	if !ev.Succeeded() {
		return r.applyFailure(ctx, res)
	}

	switch intent.Kind {
	case models.IntentKindTopup:
		return r.applyTopup(ctx, res)
	case models.IntentKindPurchase:
		return r.applyPurchase(ctx, res)
	}
	return res.internal(fmt.Errorf("unsupported intent kind %q", intent.Kind))
}

func (r *Reconciler) applyTopup(ctx context.Context, res *Result) *Result {
	intent := res.Intent

	st, err := r.store.SettleTopup(ctx, intent.ExternalRef)
	if err != nil {
		return res.internal(err)
	}
	if !st.Applied {
		return res.duplicate()
	}

	util.TopupsCreditedTotal.Inc()
	util.PurchasesTotal.WithLabelValues(models.PurchaseMethodSTKTopup).Inc()
	r.publishReconciled(ctx, res, models.IntentStatusSuccess)

	r.notify(ctx, intent.ChatID, fmt.Sprintf(
		"✅ Top-up successful: KES %s added.\nPrevious balance: KES %s\nNew balance: KES %s",
		intent.Amount, st.PreviousBalance, st.NewBalance))

	res.Outcome = OutcomeApplied
	res.Response = models.CallbackResponse{Status: true}
	return res
}

func (r *Reconciler) applyPurchase(ctx context.Context, res *Result) *Result {
	intent := res.Intent

	var item *models.Item
	if intent.ItemID.Valid {
		found, err := r.store.GetItem(ctx, intent.ItemID.String)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return res.internal(err)
		}
		item = found
	}
	deliverable := item != nil && item.ContentRef != ""

	st, err := r.store.SettlePurchase(ctx, intent.ExternalRef, deliverable)
	if err != nil {
		return res.internal(err)
	}
	if !st.Applied {
		return res.duplicate()
	}
	r.publishReconciled(ctx, res, models.IntentStatusSuccess)

	if !deliverable {
		r.notify(ctx, intent.ChatID, "Payment confirmed but movie missing. Contact admin.")
		return r.deliveryFailed(ctx, res, "movie missing", nil)
	}

	util.PurchasesTotal.WithLabelValues(models.PurchaseMethodSTK).Inc()
	r.notify(ctx, intent.ChatID, fmt.Sprintf("✅ Payment confirmed! Sending *%s* now...", item.Title))

	if err := r.notifier.DeliverContent(ctx, intent.ChatID, item); err != nil {
		r.notify(ctx, intent.ChatID, "Payment confirmed but failed to send movie. Contact admin.")
		return r.deliveryFailed(ctx, res, "delivery failed", err)
	}

	res.Outcome = OutcomeApplied
	res.Response = models.CallbackResponse{Status: true}
	return res
}

func (r *Reconciler) applyFailure(ctx context.Context, res *Result) *Result {
	intent := res.Intent

	changed, err := r.registry.Finalize(ctx, intent.ExternalRef, models.IntentStatusFailed)
	if err != nil {
		return res.internal(err)
	}
	if !changed {
		return res.duplicate()
	}
	r.publishReconciled(ctx, res, models.IntentStatusFailed)

	if intent.Kind == models.IntentKindTopup {
		r.notify(ctx, intent.ChatID, fmt.Sprintf(
			"⚠️ Top-up attempt (KES %s) failed or was cancelled. Please try again.", intent.Amount))
	} else {
		r.notify(ctx, intent.ChatID, fmt.Sprintf(
			"⚠️ Payment for your purchase (KES %s) failed or was cancelled. No movie was delivered.", intent.Amount))
	}

	res.Outcome = OutcomeBusinessFailure
	res.Err = ErrBusinessFailure
	res.Response = models.CallbackResponse{Status: true, Message: "not success"}
	return res
}

func (r *Reconciler) deliveryFailed(ctx context.Context, res *Result, reason string, cause error) *Result {
	intent := res.Intent
	itemID := intent.ItemID.String

	util.DeliveryFailuresTotal.WithLabelValues(reason).Inc()
	r.logger.Error("Paid item not delivered",
		zap.String("external_ref", intent.ExternalRef),
		zap.Int64("chat_id", intent.ChatID),
		zap.String("item_id", itemID),
		zap.String("reason", reason),
		zap.Error(cause))

	r.alert(ctx, fmt.Sprintf("⚠️ Payment `%s` confirmed but %s (chat `%d`, movie `%s`).",
		intent.ExternalRef, reason, intent.ChatID, itemID))

	if err := r.eventPublisher.PublishDeliveryFailed(ctx, &models.DeliveryFailedEvent{
		BaseEvent:   models.NewBaseEvent(models.EventTypeDeliveryFailed),
		ExternalRef: intent.ExternalRef,
		ChatID:      intent.ChatID,
		ItemID:      itemID,
		Reason:      reason,
	}); err != nil {
		r.logger.Error("Failed to publish DeliveryFailed event", zap.Error(err))
	}

	res.Outcome = OutcomeDeliveryFailure
	res.Err = ErrDeliveryFailure
	if cause != nil {
		res.Err = fmt.Errorf("%w: %v", ErrDeliveryFailure, cause)
	}
	res.Response = models.CallbackResponse{Status: false, Message: reason}
	return res
}

func (r *Reconciler) notify(ctx context.Context, chatID int64, text string) {
	if err := r.notifier.Notify(ctx, chatID, text); err != nil {
		util.NotificationFailuresTotal.Inc()
		r.logger.Warn("Failed to notify account", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Reconciler) alert(ctx context.Context, text string) {
	if err := r.notifier.AlertOperator(ctx, text); err != nil {
		util.NotificationFailuresTotal.Inc()
		r.logger.Warn("Failed to alert operator", zap.Error(err))
	}
}

func (r *Reconciler) publishReconciled(ctx context.Context, res *Result, status string) {
	intent := res.Intent
	if err := r.eventPublisher.PublishPaymentReconciled(ctx, &models.PaymentReconciledEvent{
		BaseEvent:   models.NewBaseEvent(models.EventTypePaymentReconciled),
		ExternalRef: intent.ExternalRef,
		ChatID:      intent.ChatID,
		Kind:        intent.Kind,
		ItemID:      intent.ItemID.String,
		Amount:      intent.Amount,
		Status:      status,
		ResultCode:  res.Event.ResultCode,
		Receipt:     res.Event.Receipt,
	}); err != nil {
		r.logger.Error("Failed to publish PaymentReconciled event", zap.Error(err))
	}
}

func (r *Reconciler) publishRejected(ctx context.Context, ref, reason, excerpt string) {
	if err := r.eventPublisher.PublishCallbackRejected(ctx, &models.CallbackRejectedEvent{
		BaseEvent:   models.NewBaseEvent(models.EventTypeCallbackRejected),
		ExternalRef: ref,
		Reason:      reason,
		Excerpt:     excerpt,
	}); err != nil {
		r.logger.Error("Failed to publish CallbackRejected event", zap.Error(err))
	}
}

func (res *Result) reject(outcome Outcome, err error, message string) *Result {
	res.Outcome = outcome
	res.Err = err
	res.Response = models.CallbackResponse{Status: false, Message: message}
	return res
}

func (res *Result) duplicate() *Result {
	res.Outcome = OutcomeDuplicate
	res.Response = models.CallbackResponse{Status: true, Message: "already processed"}
	return res
}

func (res *Result) internal(err error) *Result {
	res.Outcome = OutcomeInternalError
	res.Err = err
	res.Response = models.CallbackResponse{Status: false, Message: "internal error"}
	return res
}
