package store

import (
	"context"
	"fmt"
	"time"

	"movie-shop/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ListPurchases retrieves the most recent purchases of an account
func (s *Store) ListPurchases(ctx context.Context, chatID int64, limit int) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := s.db.SelectContext(ctx, &purchases,
		s.db.Rebind(`SELECT id, chat_id, item_id, amount, method, external_ref, created_at
			FROM purchases WHERE chat_id = ? ORDER BY created_at DESC LIMIT ?`),
		chatID, limit)
	return purchases, err
}

// CountPurchasesByRef counts purchase records written for an intent reference
func (s *Store) CountPurchasesByRef(ctx context.Context, ref string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		s.db.Rebind("SELECT COUNT(*) FROM purchases WHERE external_ref = ?"), ref)
	return n, err
}

func insertPurchase(ctx context.Context, q sqlx.ExtContext, p *models.Purchase) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}

	_, err := q.ExecContext(ctx,
		q.Rebind(`INSERT INTO purchases (id, chat_id, item_id, amount, method, external_ref, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.ChatID, p.ItemID, p.Amount, p.Method, p.ExternalRef, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record purchase: %w", err)
	}
	return nil
}
