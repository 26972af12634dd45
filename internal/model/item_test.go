package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestSubmission_Validate(t *testing.T) {
	tests := []struct {
		name         string
		submission   Submission
		requireImage bool
		wantErr      error
	}{
		{
			name:       "valid submission with image",
			submission: Submission{Name: "jacket", Category: "fashion", Image: []byte("x"), HasImage: true},
			wantErr:    nil,
		},
		{
			name:       "valid submission without image when not required",
			submission: Submission{Name: "jacket", Category: "fashion"},
			wantErr:    nil,
		},
		{
			name:         "missing image when required",
			submission:   Submission{Name: "jacket", Category: "fashion"},
			requireImage: true,
			wantErr:      ErrImageRequired,
		},
		{
			name:       "empty name",
			submission: Submission{Category: "fashion"},
			wantErr:    ErrNameRequired,
		},
		{
			name:       "empty category",
			submission: Submission{Name: "jacket"},
			wantErr:    ErrCategoryRequired,
		},
		{
			name:       "name checked before category",
			submission: Submission{},
			wantErr:    ErrNameRequired,
		},
		{
			name:       "long name and category",
			submission: Submission{Name: strings.Repeat("a", 4096), Category: strings.Repeat("c", 1024)},
			wantErr:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			err := tt.submission.Validate(tt.requireImage)

			// Assert
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestItemView_JSONNullCategory(t *testing.T) {
	// Arrange
	view := ItemView{ID: 1, Name: "orphan", Image: "abc"}

	// Act
	data, err := json.Marshal(view)

	// Assert
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"id":1,"name":"orphan","category":null,"image":"abc"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}

func TestItemView_ToSearchResult(t *testing.T) {
	// Arrange
	category := "fashion"
	view := ItemView{ID: 7, Name: "jacket", Category: &category, Image: "d"}

	// Act
	result := view.ToSearchResult()

	// Assert
	if result.Name != "jacket" || result.Image != "d" {
		t.Errorf("ToSearchResult() = %+v", result)
	}
	if result.Category == nil || *result.Category != "fashion" {
		t.Errorf("ToSearchResult() category = %v, want fashion", result.Category)
	}
}

func TestNewItemCreatedMessage(t *testing.T) {
	// Arrange
	view := ItemView{ID: 3, Name: "lamp", Image: "h"}

	// Act
	msg := NewItemCreatedMessage(view)

	// Assert
	if msg.Type != FeedMessageTypeItemCreated {
		t.Errorf("Type = %s, want %s", msg.Type, FeedMessageTypeItemCreated)
	}
	if msg.Item == nil || msg.Item.ID != 3 {
		t.Errorf("Item = %+v, want id 3", msg.Item)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestTableNames(t *testing.T) {
	if got := (Item{}).TableName(); got != "items" {
		t.Errorf("Item.TableName() = %s, want items", got)
	}
	if got := (Category{}).TableName(); got != "categories" {
		t.Errorf("Category.TableName() = %s, want categories", got)
	}
}
