package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"movie-shop/internal/models"

	"github.com/jmoiron/sqlx"
)

const intentColumns = "external_ref, chat_id, item_id, amount, kind, phone, status, checkout_id, created_at, finalized_at"

// Settlement describes the outcome of settling an intent
type Settlement struct {
	Intent *models.Intent
	// Applied is false when the intent was already terminal and nothing was written
	Applied         bool
	PreviousBalance models.Money
	NewBalance      models.Money
}

// CreateIntent registers a new QUEUED intent. An existing reference is never overwritten.
func (s *Store) CreateIntent(ctx context.Context, intent *models.Intent) error {
	if intent.CreatedAt == 0 {
		intent.CreatedAt = time.Now().Unix()
	}
	intent.Status = models.IntentStatusQueued

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	err = tx.GetContext(ctx, &exists,
		tx.Rebind("SELECT EXISTS(SELECT 1 FROM payment_intents WHERE external_ref = ?)"), intent.ExternalRef)
	if err != nil {
		return fmt.Errorf("failed to check intent: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateReference, intent.ExternalRef)
	}

	query := `
		INSERT INTO payment_intents (external_ref, chat_id, item_id, amount, kind, phone, status, checkout_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, tx.Rebind(query),
		intent.ExternalRef, intent.ChatID, intent.ItemID, intent.Amount, intent.Kind,
		intent.Phone, intent.Status, intent.CheckoutID, intent.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateReference, intent.ExternalRef)
		}
		return fmt.Errorf("failed to create intent: %w", err)
	}
	return tx.Commit()
}

// GetIntent retrieves an intent by external reference
func (s *Store) GetIntent(ctx context.Context, ref string) (*models.Intent, error) {
	return getIntent(ctx, s.db, ref)
}

// ListRecentIntents retrieves the newest intents first
func (s *Store) ListRecentIntents(ctx context.Context, limit int) ([]models.Intent, error) {
	var intents []models.Intent
	err := s.db.SelectContext(ctx, &intents,
		s.db.Rebind("SELECT "+intentColumns+" FROM payment_intents ORDER BY created_at DESC LIMIT ?"), limit)
	return intents, err
}

// TransitionIntent moves a QUEUED intent to status.
// Returns false when the intent is missing or already terminal.
func (s *Store) TransitionIntent(ctx context.Context, ref, status string) (bool, error) {
	return transitionIntent(ctx, s.db, ref, status)
}

// SettleTopup marks the intent successful, credits its amount and records a
// stk_topup purchase, all in one transaction.
func (s *Store) SettleTopup(ctx context.Context, ref string) (*Settlement, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	intent, err := getIntent(ctx, tx, ref)
	if err != nil {
		return nil, err
	}
	settlement := &Settlement{Intent: intent}

	changed, err := transitionIntent(ctx, tx, ref, models.IntentStatusSuccess)
	if err != nil {
		return nil, err
	}
	if !changed {
		return settlement, nil
	}

	if err := ensureAccount(ctx, tx, intent.ChatID); err != nil {
		return nil, err
	}
	if settlement.PreviousBalance, err = balanceOf(ctx, tx, intent.ChatID); err != nil {
		return nil, err
	}
	if err := credit(ctx, tx, intent.ChatID, intent.Amount); err != nil {
		return nil, err
	}
	if settlement.NewBalance, err = balanceOf(ctx, tx, intent.ChatID); err != nil {
		return nil, err
	}

	p := &models.Purchase{
		ChatID:      intent.ChatID,
		Amount:      intent.Amount,
		Method:      models.PurchaseMethodSTKTopup,
		ExternalRef: sql.NullString{String: ref, Valid: true},
	}
	if err := insertPurchase(ctx, tx, p); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	settlement.Applied = true
	return settlement, nil
}

// SettlePurchase marks the intent successful and, when deliverable, records an
// stk purchase in the same transaction.
func (s *Store) SettlePurchase(ctx context.Context, ref string, deliverable bool) (*Settlement, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	intent, err := getIntent(ctx, tx, ref)
	if err != nil {
		return nil, err
	}
	settlement := &Settlement{Intent: intent}

	changed, err := transitionIntent(ctx, tx, ref, models.IntentStatusSuccess)
	if err != nil {
		return nil, err
	}
	if !changed {
		return settlement, nil
	}

	if deliverable {
		p := &models.Purchase{
			ChatID:      intent.ChatID,
			ItemID:      intent.ItemID,
			Amount:      intent.Amount,
			Method:      models.PurchaseMethodSTK,
			ExternalRef: sql.NullString{String: ref, Valid: true},
		}
		if err := insertPurchase(ctx, tx, p); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	settlement.Applied = true
	return settlement, nil
}

func getIntent(ctx context.Context, q sqlx.ExtContext, ref string) (*models.Intent, error) {
	var intent models.Intent
	err := sqlx.GetContext(ctx, q, &intent,
		q.Rebind("SELECT "+intentColumns+" FROM payment_intents WHERE external_ref = ?"), ref)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func transitionIntent(ctx context.Context, q sqlx.ExtContext, ref, status string) (bool, error) {
	res, err := q.ExecContext(ctx,
		q.Rebind("UPDATE payment_intents SET status = ?, finalized_at = ? WHERE external_ref = ? AND status = ?"),
		status, time.Now().Unix(), ref, models.IntentStatusQueued)
	if err != nil {
		return false, fmt.Errorf("failed to update intent status: %w", err)
	}
	return rowsChanged(res)
}
