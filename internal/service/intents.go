package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"movie-shop/internal/models"
	"movie-shop/internal/store"
	"movie-shop/internal/util"

	"go.uber.org/zap"
)

// IntentRegistry creates and finalizes payment intents
type IntentRegistry struct {
	store  *store.Store
	logger *zap.Logger
}

// NewIntentRegistry creates a new intent registry
func NewIntentRegistry(store *store.Store) *IntentRegistry {
	return &IntentRegistry{
		store:  store,
		logger: util.GetLogger(),
	}
}

// Create registers a QUEUED intent; an existing reference is rejected
func (r *IntentRegistry) Create(ctx context.Context, intent *models.Intent) error {
	err := r.store.CreateIntent(ctx, intent)
	if errors.Is(err, store.ErrDuplicateReference) {
		return fmt.Errorf("%w: %s", ErrDuplicateReference, intent.ExternalRef)
	}
	if err != nil {
		return err
	}

	r.logger.Info("Payment intent created",
		zap.String("external_ref", intent.ExternalRef),
		zap.Int64("chat_id", intent.ChatID),
		zap.String("kind", intent.Kind),
		zap.String("amount", intent.Amount.String()))
	return nil
}

// Lookup returns the intent registered under ref
func (r *IntentRegistry) Lookup(ctx context.Context, ref string) (*models.Intent, error) {
	intent, err := r.store.GetIntent(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrIntentNotFound, ref)
	}
	return intent, err
}

// Exists reports whether ref is already registered
func (r *IntentRegistry) Exists(ctx context.Context, ref string) (bool, error) {
	_, err := r.Lookup(ctx, ref)
	if errors.Is(err, ErrIntentNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Finalize moves a QUEUED intent to a terminal status. Finalizing an intent
// that is already terminal is a logged no-op and returns false.
func (r *IntentRegistry) Finalize(ctx context.Context, ref, status string) (bool, error) {
	if status != models.IntentStatusSuccess && status != models.IntentStatusFailed {
		return false, fmt.Errorf("%w: %q", ErrNonTerminalStatus, status)
	}

	changed, err := r.store.TransitionIntent(ctx, ref, status)
	if err != nil {
		return false, err
	}
	if !changed {
		if _, err := r.Lookup(ctx, ref); err != nil {
			return false, err
		}
		r.logger.Info("Intent already finalized",
			zap.String("external_ref", ref),
			zap.String("requested_status", status))
	}
	return changed, nil
}

// NewReference builds the external reference for a payment.
// Top-ups are TOPUP-{chat}-{unix}, purchases PUR-{chat}-{item}-{unix}.
func NewReference(kind string, chatID int64, itemID string, now time.Time) string {
	if kind == models.IntentKindTopup {
		return fmt.Sprintf("TOPUP-%d-%d", chatID, now.Unix())
	}
	return fmt.Sprintf("PUR-%d-%s-%d", chatID, itemID, now.Unix())
}
