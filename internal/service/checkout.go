package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"movie-shop/internal/broker"
	"movie-shop/internal/models"
	"movie-shop/internal/payhero"
	"movie-shop/internal/store"
	"movie-shop/internal/util"

	"go.uber.org/zap"
)

// Gateway initiates STK pushes
type Gateway interface {
	Initiate(ctx context.Context, req payhero.StkRequest) (string, error)
}

// Checkout runs the buyer-facing payment flows
type Checkout struct {
	store          *store.Store
	registry       *IntentRegistry
	gateway        Gateway
	notifier       Notifier
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewCheckout creates a new checkout service
func NewCheckout(
	store *store.Store,
	registry *IntentRegistry,
	gateway Gateway,
	notifier Notifier,
	eventPublisher *broker.EventPublisher,
) *Checkout {
	return &Checkout{
		store:          store,
		registry:       registry,
		gateway:        gateway,
		notifier:       notifier,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
		now:            time.Now,
	}
}

// BalancePurchase is the result of a purchase paid from the balance
type BalancePurchase struct {
	Item      *models.Item
	Delivered bool
}

// BuyWithBalance charges the item price and delivers it. The charge and the
// purchase record commit together; delivery failures are reported to the
// buyer but do not refund.
func (c *Checkout) BuyWithBalance(ctx context.Context, chatID int64, itemID string) (*BalancePurchase, error) {
	ctx, span := util.StartSpan(ctx, "Checkout.BuyWithBalance")
	defer span.End()

	item, err := c.deliverableItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if err := c.store.EnsureAccount(ctx, chatID); err != nil {
		return nil, err
	}

	ok, err := c.store.ChargeForPurchase(ctx, chatID, item.ID, item.Price)
	if err != nil {
		return nil, fmt.Errorf("failed to charge balance: %w", err)
	}
	if !ok {
		util.BalanceChargesRejectedTotal.Inc()
		balance, err := c.store.GetBalance(ctx, chatID)
		if err != nil {
			return nil, err
		}
		return nil, &InsufficientFundsError{Balance: balance, Price: item.Price}
	}

	util.PurchasesTotal.WithLabelValues(models.PurchaseMethodBalance).Inc()
	c.logger.Info("Balance purchase",
		zap.Int64("chat_id", chatID),
		zap.String("item_id", item.ID),
		zap.String("amount", item.Price.String()))

	c.notify(ctx, chatID, fmt.Sprintf("✅ Paid KES %s from balance. Sending *%s* now...", item.Price, item.Title))

	result := &BalancePurchase{Item: item}
	if err := c.notifier.DeliverContent(ctx, chatID, item); err != nil {
		util.DeliveryFailuresTotal.WithLabelValues("delivery failed").Inc()
		c.logger.Error("Failed to deliver balance purchase",
			zap.Int64("chat_id", chatID),
			zap.String("item_id", item.ID),
			zap.Error(err))
		c.notify(ctx, chatID, "Failed to send the movie. Contact admin.")
		return result, fmt.Errorf("%w: %v", ErrDeliveryFailure, err)
	}
	result.Delivered = true
	return result, nil
}

// StartPurchase sends an STK push for an item and registers the intent
func (c *Checkout) StartPurchase(ctx context.Context, chatID int64, itemID, phoneText, customer string) (*models.Intent, error) {
	ctx, span := util.StartSpan(ctx, "Checkout.StartPurchase")
	defer span.End()

	phone, err := NormalizePhone(phoneText)
	if err != nil {
		return nil, err
	}
	item, err := c.deliverableItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	intent := &models.Intent{
		ExternalRef: NewReference(models.IntentKindPurchase, chatID, item.ID, c.now()),
		ChatID:      chatID,
		ItemID:      sql.NullString{String: item.ID, Valid: true},
		Amount:      item.Price,
		Kind:        models.IntentKindPurchase,
		Phone:       phone,
	}
	return intent, c.initiate(ctx, intent, customer)
}

// StartTopup sends an STK push that credits the balance once confirmed
func (c *Checkout) StartTopup(ctx context.Context, chatID int64, amount models.Money, phoneText, customer string) (*models.Intent, error) {
	ctx, span := util.StartSpan(ctx, "Checkout.StartTopup")
	defer span.End()

	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	phone, err := NormalizePhone(phoneText)
	if err != nil {
		return nil, err
	}

	intent := &models.Intent{
		ExternalRef: NewReference(models.IntentKindTopup, chatID, "", c.now()),
		ChatID:      chatID,
		Amount:      amount,
		Kind:        models.IntentKindTopup,
		Phone:       phone,
	}
	return intent, c.initiate(ctx, intent, customer)
}

// initiate calls the gateway and registers the intent only once the gateway
// accepted the request.
func (c *Checkout) initiate(ctx context.Context, intent *models.Intent, customer string) error {
	exists, err := c.registry.Exists(ctx, intent.ExternalRef)
	if err != nil {
		return err
	}
	if exists {
		util.PaymentInitiationFailedTotal.WithLabelValues(intent.Kind, "duplicate_reference").Inc()
		return fmt.Errorf("%w: %s", ErrDuplicateReference, intent.ExternalRef)
	}

	checkoutID, err := c.gateway.Initiate(ctx, payhero.StkRequest{
		Amount:       intent.Amount,
		Phone:        intent.Phone,
		Reference:    intent.ExternalRef,
		CustomerName: customer,
	})
	if err != nil {
		reason := "transport"
		if errors.Is(err, payhero.ErrGateway) {
			reason = "rejected"
		}
		util.PaymentInitiationFailedTotal.WithLabelValues(intent.Kind, reason).Inc()
		c.logger.Warn("STK push failed",
			zap.String("external_ref", intent.ExternalRef),
			zap.Int64("chat_id", intent.ChatID),
			zap.Error(err))
		return fmt.Errorf("failed to initiate payment: %w", err)
	}

	if checkoutID != "" {
		intent.CheckoutID = sql.NullString{String: checkoutID, Valid: true}
	}
	if err := c.registry.Create(ctx, intent); err != nil {
		return err
	}
	util.PaymentsInitiatedTotal.WithLabelValues(intent.Kind).Inc()

	if err := c.eventPublisher.PublishPaymentInitiated(ctx, &models.PaymentInitiatedEvent{
		BaseEvent:   models.NewBaseEvent(models.EventTypePaymentInitiated),
		ExternalRef: intent.ExternalRef,
		ChatID:      intent.ChatID,
		Kind:        intent.Kind,
		ItemID:      intent.ItemID.String,
		Amount:      intent.Amount,
		CheckoutID:  checkoutID,
	}); err != nil {
		c.logger.Error("Failed to publish PaymentInitiated event", zap.Error(err))
	}
	return nil
}

// AdminCredit adds amount to an account and tells its owner
func (c *Checkout) AdminCredit(ctx context.Context, chatID int64, amount models.Money) (models.Money, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	balance, err := c.store.Credit(ctx, chatID, amount)
	if err != nil {
		return 0, err
	}
	c.logger.Info("Admin credit", zap.Int64("chat_id", chatID), zap.String("amount", amount.String()))
	c.notify(ctx, chatID, fmt.Sprintf("📥 Admin added KES %s to your balance.", amount))
	return balance, nil
}

// AdminDebit removes amount from an account, never below zero
func (c *Checkout) AdminDebit(ctx context.Context, chatID int64, amount models.Money) (models.Money, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	balance, err := c.store.Debit(ctx, chatID, amount)
	if err != nil {
		return 0, err
	}
	c.logger.Info("Admin debit", zap.Int64("chat_id", chatID), zap.String("amount", amount.String()))
	c.notify(ctx, chatID, fmt.Sprintf(
		"⚠️ Admin removed KES %s from your balance. New balance KES %s.", amount, balance))
	return balance, nil
}

func (c *Checkout) deliverableItem(ctx context.Context, itemID string) (*models.Item, error) {
	item, err := c.store.GetItem(ctx, itemID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	if err != nil {
		return nil, err
	}
	if item.ContentRef == "" {
		return nil, fmt.Errorf("%w: %s", ErrItemUnavailable, itemID)
	}
	return item, nil
}

func (c *Checkout) notify(ctx context.Context, chatID int64, text string) {
	if err := c.notifier.Notify(ctx, chatID, text); err != nil {
		util.NotificationFailuresTotal.Inc()
		c.logger.Warn("Failed to notify account", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
