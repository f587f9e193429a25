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

// EnsureAccount creates the account with a zero balance if it does not exist
func (s *Store) EnsureAccount(ctx context.Context, chatID int64) error {
	return ensureAccount(ctx, s.db, chatID)
}

// GetAccount retrieves an account by chat ID
func (s *Store) GetAccount(ctx context.Context, chatID int64) (*models.Account, error) {
	var acc models.Account
	err := s.db.GetContext(ctx, &acc,
		s.db.Rebind("SELECT chat_id, balance, created_at FROM accounts WHERE chat_id = ?"), chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// GetBalance returns the balance of an account, zero when it does not exist
func (s *Store) GetBalance(ctx context.Context, chatID int64) (models.Money, error) {
	return balanceOf(ctx, s.db, chatID)
}

// Credit adds amount to the balance, creating the account if needed
func (s *Store) Credit(ctx context.Context, chatID int64, amount models.Money) (models.Money, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if err := ensureAccount(ctx, tx, chatID); err != nil {
		return 0, err
	}
	if err := credit(ctx, tx, chatID, amount); err != nil {
		return 0, err
	}
	balance, err := balanceOf(ctx, tx, chatID)
	if err != nil {
		return 0, err
	}
	return balance, tx.Commit()
}

// Charge deducts amount only when the balance covers it.
// The check and the deduction are one conditional statement, so racing
// charges can never take the balance below zero.
func (s *Store) Charge(ctx context.Context, chatID int64, amount models.Money) (bool, error) {
	return charge(ctx, s.db, chatID, amount)
}

// ChargeForPurchase charges the balance and records the purchase in one transaction
func (s *Store) ChargeForPurchase(ctx context.Context, chatID int64, itemID string, amount models.Money) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	ok, err := charge(ctx, tx, chatID, amount)
	if err != nil || !ok {
		return false, err
	}

	p := &models.Purchase{
		ChatID: chatID,
		ItemID: sql.NullString{String: itemID, Valid: true},
		Amount: amount,
		Method: models.PurchaseMethodBalance,
	}
	if err := insertPurchase(ctx, tx, p); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// Debit removes amount from the balance, clamping at zero, and returns the new balance
func (s *Store) Debit(ctx context.Context, chatID int64, amount models.Money) (models.Money, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if err := ensureAccount(ctx, tx, chatID); err != nil {
		return 0, err
	}
	_, err = tx.ExecContext(ctx,
		tx.Rebind("UPDATE accounts SET balance = CASE WHEN balance > ? THEN balance - ? ELSE 0 END WHERE chat_id = ?"),
		amount, amount, chatID)
	if err != nil {
		return 0, fmt.Errorf("failed to debit balance: %w", err)
	}
	balance, err := balanceOf(ctx, tx, chatID)
	if err != nil {
		return 0, err
	}
	return balance, tx.Commit()
}

func ensureAccount(ctx context.Context, q sqlx.ExtContext, chatID int64) error {
	_, err := q.ExecContext(ctx,
		q.Rebind("INSERT INTO accounts (chat_id, balance, created_at) VALUES (?, 0, ?) ON CONFLICT (chat_id) DO NOTHING"),
		chatID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to ensure account: %w", err)
	}
	return nil
}

func balanceOf(ctx context.Context, q sqlx.ExtContext, chatID int64) (models.Money, error) {
	var balance models.Money
	err := sqlx.GetContext(ctx, q, &balance,
		q.Rebind("SELECT balance FROM accounts WHERE chat_id = ?"), chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

func credit(ctx context.Context, q sqlx.ExtContext, chatID int64, amount models.Money) error {
	_, err := q.ExecContext(ctx,
		q.Rebind("UPDATE accounts SET balance = balance + ? WHERE chat_id = ?"), amount, chatID)
	if err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	return nil
}

func charge(ctx context.Context, q sqlx.ExtContext, chatID int64, amount models.Money) (bool, error) {
	res, err := q.ExecContext(ctx,
		q.Rebind("UPDATE accounts SET balance = balance - ? WHERE chat_id = ? AND balance >= ?"),
		amount, chatID, amount)
	if err != nil {
		return false, fmt.Errorf("failed to charge balance: %w", err)
	}
	return rowsChanged(res)
}
