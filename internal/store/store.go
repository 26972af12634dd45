// Package store provides item persistence and category resolution.
package store

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vyrodovalexey/listing-api/internal/model"
)

// Store errors.
var (
	ErrNotFound      = errors.New("item not found")
	ErrInvalidID     = errors.New("invalid item ID")
	ErrEmptyName     = errors.New("item name cannot be empty")
	ErrEmptyCategory = errors.New("category name cannot be empty")
)

// Store defines the item repository operations.
type Store interface {
	// Insert resolves the category and stores the item in one transaction.
	Insert(ctx context.Context, item model.NewItem) (int64, error)

	// List returns every item joined with its category name, in insertion order.
	List(ctx context.Context) ([]model.ItemView, error)

	// Search returns items whose name contains keyword (case-sensitive).
	// An empty keyword matches every item.
	Search(ctx context.Context, keyword string) ([]model.ItemView, error)

	// Get retrieves an item by its primary key.
	Get(ctx context.Context, id int64) (*model.ItemView, error)

	// Categories returns all known categories ordered by id.
	Categories(ctx context.Context) ([]model.Category, error)
}

var (
	itemsInsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "listing",
			Name:      "items_inserted_total",
			Help:      "Number of items committed to the store",
		},
	)

	categoriesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "listing",
			Name:      "categories_created_total",
			Help:      "Number of categories created on first use",
		},
	)
)

func validateNewItem(item model.NewItem) error {
	if item.Name == "" {
		return ErrEmptyName
	}
	if item.Category == "" {
		return ErrEmptyCategory
	}
	return nil
}
