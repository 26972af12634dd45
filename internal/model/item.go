// Package model defines data structures used throughout the application.
package model

import (
	"errors"
	"time"
)

// Validation errors for item submissions.
var (
	ErrNameRequired     = errors.New("name is required")
	ErrCategoryRequired = errors.New("category is required")
	ErrImageRequired    = errors.New("image is required")
)

// Category is a row of the categories lookup table.
type Category struct {
	ID   int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

// TableName pins the table name used by gorm.
func (Category) TableName() string {
	return "categories"
}

// Item is a persisted listing row. The image is referenced by its content digest.
type Item struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	Name       string    `gorm:"not null"`
	CategoryID int64     `gorm:"not null;index"`
	Category   *Category `gorm:"foreignKey:CategoryID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	ImageName  string    `gorm:"column:image_name;not null;default:''"`
}

// TableName pins the table name used by gorm.
func (Item) TableName() string {
	return "items"
}

// NewItem carries a validated submission into the repository.
type NewItem struct {
	Name     string
	Category string
	Image    string
}

// Submission is the raw form input of POST /items.
type Submission struct {
	Name     string
	Category string
	Image    []byte
	HasImage bool
}

// Validate checks the required fields of a submission. The image is only
// checked when requireImage is set.
func (s *Submission) Validate(requireImage bool) error {
	if s.Name == "" {
		return ErrNameRequired
	}

	if s.Category == "" {
		return ErrCategoryRequired
	}

	if requireImage && !s.HasImage {
		return ErrImageRequired
	}

	return nil
}

// ItemView is an item joined with its category's display name.
// Category is nil when the referenced category row is missing.
type ItemView struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Category *string `json:"category"`
	Image    string  `json:"image"`
}

// SearchResult is the reduced item shape returned by GET /search.
type SearchResult struct {
	Name     string  `json:"name"`
	Category *string `json:"category"`
	Image    string  `json:"image"`
}

// ToSearchResult drops the id from the view.
func (v ItemView) ToSearchResult() SearchResult {
	return SearchResult{
		Name:     v.Name,
		Category: v.Category,
		Image:    v.Image,
	}
}

// MessageResponse is the acknowledgement body used by / and POST /items.
type MessageResponse struct {
	Message string `json:"message"`
}

// ItemsResponse wraps the item list.
type ItemsResponse struct {
	Items []ItemView `json:"items"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Items []SearchResult `json:"items"`
}

// CategoriesResponse wraps the category list.
type CategoriesResponse struct {
	Categories []Category `json:"categories"`
}

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// FeedMessage is pushed to websocket subscribers of the item feed.
type FeedMessage struct {
	Type      string    `json:"type"`
	Item      *ItemView `json:"item,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Feed message types.
const (
	FeedMessageTypeItemCreated = "item_created"
	FeedMessageTypeHello       = "hello"
)

// NewItemCreatedMessage creates a feed message for a freshly stored item.
func NewItemCreatedMessage(item ItemView) FeedMessage {
	return FeedMessage{
		Type:      FeedMessageTypeItemCreated,
		Item:      &item,
		Timestamp: time.Now().UTC(),
	}
}
