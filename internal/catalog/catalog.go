// Package catalog loads the movie list from a YAML file into the store.
package catalog

import (
	"context"
	"fmt"
	"io"
	"os"

	"movie-shop/internal/models"
	"movie-shop/internal/store"
	"movie-shop/internal/util"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// File is the on-disk catalog layout
type File struct {
	Items []models.Item `yaml:"items"`
}

// Parse decodes a catalog and checks every item
func Parse(r io.Reader) ([]models.Item, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	seen := make(map[string]bool, len(f.Items))
	for i, item := range f.Items {
		if item.ID == "" {
			return nil, fmt.Errorf("item %d: missing id", i)
		}
		if seen[item.ID] {
			return nil, fmt.Errorf("item %s: duplicate id", item.ID)
		}
		seen[item.ID] = true
		if item.Title == "" {
			return nil, fmt.Errorf("item %s: missing title", item.ID)
		}
		if !item.Price.IsPositive() {
			return nil, fmt.Errorf("item %s: price must be positive", item.ID)
		}
	}
	return f.Items, nil
}

// LoadFile parses the catalog at path
func LoadFile(path string) ([]models.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Seed upserts items in file order and returns how many were written
func Seed(ctx context.Context, s *store.Store, items []models.Item) (int, error) {
	logger := util.GetLogger()
	for i := range items {
		if err := s.UpsertItem(ctx, &items[i], i); err != nil {
			return i, fmt.Errorf("failed to upsert item %s: %w", items[i].ID, err)
		}
		if items[i].ContentRef == "" {
			logger.Warn("Catalog item has no content and cannot be sold", zap.String("item_id", items[i].ID))
		}
	}
	return len(items), nil
}
