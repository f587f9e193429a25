package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"movie-shop/internal/models"
)

const itemColumns = "id, title, price, content_ref, thumb_ref, description"

// UpsertItem inserts an item or replaces all of its attributes
func (s *Store) UpsertItem(ctx context.Context, item *models.Item, sortOrder int) error {
	query := `
		INSERT INTO items (id, title, price, content_ref, thumb_ref, description, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			price = excluded.price,
			content_ref = excluded.content_ref,
			thumb_ref = excluded.thumb_ref,
			description = excluded.description,
			sort_order = excluded.sort_order`

	_, err := s.db.ExecContext(ctx, s.db.Rebind(query),
		item.ID, item.Title, item.Price, item.ContentRef, item.ThumbRef, item.Description, sortOrder)
	if err != nil {
		return fmt.Errorf("failed to upsert item %s: %w", item.ID, err)
	}
	return nil
}

// GetItem retrieves an item by ID
func (s *Store) GetItem(ctx context.Context, id string) (*models.Item, error) {
	var item models.Item
	err := s.db.GetContext(ctx, &item,
		s.db.Rebind("SELECT "+itemColumns+" FROM items WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListItems retrieves the catalog in display order
func (s *Store) ListItems(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	err := s.db.SelectContext(ctx, &items,
		"SELECT "+itemColumns+" FROM items ORDER BY sort_order, id")
	return items, err
}
