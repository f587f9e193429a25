package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"movie-shop/internal/models"
)

// GetConversation returns the dialogue state stored on the account row
func (s *Store) GetConversation(ctx context.Context, chatID int64) (models.Conversation, error) {
	var row struct {
		Step   string       `db:"conv_step"`
		ItemID string       `db:"conv_item_id"`
		Amount models.Money `db:"conv_amount"`
	}
	err := s.db.GetContext(ctx, &row,
		s.db.Rebind("SELECT conv_step, conv_item_id, conv_amount FROM accounts WHERE chat_id = ?"), chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, nil
	}
	if err != nil {
		return models.Conversation{}, err
	}
	return models.Conversation{
		Step:   models.ConversationStep(row.Step),
		ItemID: row.ItemID,
		Amount: row.Amount,
	}, nil
}

// SetConversation stores the dialogue state, creating the account if needed
func (s *Store) SetConversation(ctx context.Context, chatID int64, conv models.Conversation) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := ensureAccount(ctx, tx, chatID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		tx.Rebind("UPDATE accounts SET conv_step = ?, conv_item_id = ?, conv_amount = ? WHERE chat_id = ?"),
		string(conv.Step), conv.ItemID, conv.Amount, chatID)
	if err != nil {
		return fmt.Errorf("failed to store conversation: %w", err)
	}
	return tx.Commit()
}

// ClearConversation resets the dialogue state to idle
func (s *Store) ClearConversation(ctx context.Context, chatID int64) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE accounts SET conv_step = '', conv_item_id = '', conv_amount = 0 WHERE chat_id = ?"),
		chatID)
	return err
}
