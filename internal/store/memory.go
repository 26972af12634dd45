package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vyrodovalexey/listing-api/internal/model"
)

// MemoryStore implements Store in process memory. It is used for local
// development and tests; data does not survive a restart.
type MemoryStore struct {
	mu             sync.RWMutex
	items          []model.Item
	categories     []model.Category
	categoryByName map[string]int64
	nextItemID     int64
	nextCategoryID int64
}

// NewMemoryStore creates a new MemoryStore instance.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		categoryByName: make(map[string]int64),
		nextItemID:     1,
		nextCategoryID: 1,
	}
}

// Insert resolves the category and stores the item under one lock.
func (s *MemoryStore) Insert(ctx context.Context, item model.NewItem) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("insert item: %w", ctx.Err())
	default:
	}

	if err := validateNewItem(item); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	categoryID, exists := s.categoryByName[item.Category]
	if !exists {
		categoryID = s.nextCategoryID
		s.nextCategoryID++
		s.categoryByName[item.Category] = categoryID
		s.categories = append(s.categories, model.Category{ID: categoryID, Name: item.Category})
		categoriesCreatedTotal.Inc()
	}

	row := model.Item{
		ID:         s.nextItemID,
		Name:       item.Name,
		CategoryID: categoryID,
		ImageName:  item.Image,
	}
	s.nextItemID++
	s.items = append(s.items, row)
	itemsInsertedTotal.Inc()

	return row.ID, nil
}

// List returns every item joined with its category name, in insertion order.
func (s *MemoryStore) List(ctx context.Context) ([]model.ItemView, error) {
	return s.Search(ctx, "")
}

// Search returns items whose name contains keyword (case-sensitive).
func (s *MemoryStore) Search(ctx context.Context, keyword string) ([]model.ItemView, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("search items: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]model.ItemView, 0, len(s.items))
	for _, item := range s.items {
		if !strings.Contains(item.Name, keyword) {
			continue
		}
		views = append(views, s.view(item))
	}

	return views, nil
}

// Get retrieves an item by its ID.
func (s *MemoryStore) Get(ctx context.Context, id int64) (*model.ItemView, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("get item: %w", ctx.Err())
	default:
	}

	if id <= 0 {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// IDs are assigned sequentially and never reused.
	if id > int64(len(s.items)) {
		return nil, ErrNotFound
	}

	view := s.view(s.items[id-1])
	return &view, nil
}

// Categories returns all known categories ordered by id.
func (s *MemoryStore) Categories(ctx context.Context) ([]model.Category, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("list categories: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]model.Category, len(s.categories))
	copy(categories, s.categories)
	return categories, nil
}

// view must be called with s.mu held.
func (s *MemoryStore) view(item model.Item) model.ItemView {
	v := model.ItemView{
		ID:    item.ID,
		Name:  item.Name,
		Image: item.ImageName,
	}
	if idx := item.CategoryID - 1; idx >= 0 && idx < int64(len(s.categories)) {
		name := s.categories[idx].Name
		v.Category = &name
	}
	return v
}
