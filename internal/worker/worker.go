package worker

import (
	"context"
	"fmt"
	"time"

	"movie-shop/internal/broker"
	"movie-shop/internal/models"
	"movie-shop/internal/util"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Updater is the long-poll side of the Telegram client
type Updater interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// UpdateHandler processes one chat update
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// BotWorker polls Telegram and hands updates to the bot one at a time
type BotWorker struct {
	updater     Updater
	handler     UpdateHandler
	pollTimeout time.Duration
	done        chan struct{}
	logger      *zap.Logger
}

// NewBotWorker creates a new bot worker
func NewBotWorker(updater Updater, handler UpdateHandler, pollTimeout time.Duration) *BotWorker {
	return &BotWorker{
		updater:     updater,
		handler:     handler,
		pollTimeout: pollTimeout,
		done:        make(chan struct{}),
		logger:      util.GetLogger(),
	}
}

// Start runs the poll loop until ctx is cancelled or the update channel
// closes. Start must be called once.
func (w *BotWorker) Start(ctx context.Context) error {
	defer close(w.done)
	w.logger.Info("Starting bot worker", zap.Duration("poll_timeout", w.pollTimeout))

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = int(w.pollTimeout.Seconds())
	updates := w.updater.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			w.dispatch(ctx, update)
		}
	}
}

// dispatch keeps a panicking handler from ending the loop
func (w *BotWorker) dispatch(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Update handler panicked",
				zap.Int("update_id", update.UpdateID),
				zap.Any("panic", r))
		}
	}()
	w.handler.HandleUpdate(ctx, update)
}

// Done is closed when Start has returned and no update is in flight
func (w *BotWorker) Done() <-chan struct{} {
	return w.done
}

// Stop stops the poller
func (w *BotWorker) Stop() {
	w.logger.Info("Stopping bot worker")
	w.updater.StopReceivingUpdates()
}

// EventsWorker tails the payment events topic and logs each event
type EventsWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewEventsWorker creates a new events worker
func NewEventsWorker(consumer *broker.Consumer) *EventsWorker {
	w := &EventsWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnPaymentInitiated(w.logInitiated)
	w.eventHandler.OnPaymentReconciled(w.logReconciled)
	w.eventHandler.OnCallbackRejected(w.logRejected)
	w.eventHandler.OnDeliveryFailed(w.logDeliveryFailed)
	w.eventHandler.OnOther(w.logOther)

	return w
}

// Start consumes until ctx is cancelled
func (w *EventsWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting events worker")
	if err := w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage); err != nil {
		return fmt.Errorf("events consumer: %w", err)
	}
	return nil
}

// Stop closes the consumer
func (w *EventsWorker) Stop() error {
	w.logger.Info("Stopping events worker")
	return w.consumer.Close()
}

func (w *EventsWorker) logInitiated(_ context.Context, e *models.PaymentInitiatedEvent) error {
	w.logger.Info("Payment initiated",
		zap.String("external_ref", e.ExternalRef),
		zap.Int64("chat_id", e.ChatID),
		zap.String("kind", e.Kind),
		zap.String("amount", e.Amount.String()))
	return nil
}

func (w *EventsWorker) logReconciled(_ context.Context, e *models.PaymentReconciledEvent) error {
	w.logger.Info("Payment reconciled",
		zap.String("external_ref", e.ExternalRef),
		zap.Int64("chat_id", e.ChatID),
		zap.String("status", e.Status),
		zap.String("amount", e.Amount.String()))
	return nil
}

func (w *EventsWorker) logRejected(_ context.Context, e *models.CallbackRejectedEvent) error {
	w.logger.Warn("Callback rejected",
		zap.String("external_ref", e.ExternalRef),
		zap.String("reason", e.Reason))
	return nil
}

func (w *EventsWorker) logDeliveryFailed(_ context.Context, e *models.DeliveryFailedEvent) error {
	w.logger.Error("Delivery failed",
		zap.String("external_ref", e.ExternalRef),
		zap.Int64("chat_id", e.ChatID),
		zap.String("reason", e.Reason))
	return nil
}

func (w *EventsWorker) logOther(_ context.Context, e models.BaseEvent) error {
	w.logger.Debug("Unhandled event", zap.String("event_type", e.EventType), zap.String("event_id", e.EventID))
	return nil
}
