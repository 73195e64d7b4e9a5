package models

import "time"

// DefaultCategoryColor is used when a category has no color of its own.
const DefaultCategoryColor = "#6b7280"

// Category is a node of the user's category hierarchy as returned by the API.
// ParentID is nil for root categories; UserID is nil for system categories.
type Category struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	ParentID      *string   `json:"parentId,omitempty"`
	UserID        *string   `json:"userId,omitempty"`
	Color         string    `json:"color,omitempty"`
	Icon          string    `json:"icon,omitempty"`
	DocumentCount int       `json:"documentCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// IsSystem reports whether the category is owned by the system rather than a user.
func (c Category) IsSystem() bool {
	return c.UserID == nil || *c.UserID == ""
}

// HasParent reports whether the category declares a parent.
func (c Category) HasParent() bool {
	return c.ParentID != nil && *c.ParentID != ""
}

func (c Category) DisplayColor() string {
	if c.Color == "" {
		return DefaultCategoryColor
	}
	return c.Color
}

// CategoryQuery holds the optional filters of the category list endpoint.
type CategoryQuery struct {
	IncludeSystemCategories *bool
	Hierarchical            *bool
	ParentID                string
}

// CategoryInput is the create/update payload. On update, empty fields are
// left untouched by the server.
type CategoryInput struct {
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	ParentID    *string `json:"parentId,omitempty"`
	Color       string  `json:"color,omitempty"`
	Icon        string  `json:"icon,omitempty"`
}

// CategoryAssignment attaches a single document to a category.
type CategoryAssignment struct {
	DocumentID      string   `json:"documentId"`
	ConfidenceScore *float64 `json:"confidenceScore,omitempty"`
	IsAIGenerated   *bool    `json:"isAiGenerated,omitempty"`
}

// BulkCategoryAssignment attaches many documents to a category.
type BulkCategoryAssignment struct {
	DocumentIDs      []string `json:"documentIds"`
	ConfidenceScore  *float64 `json:"confidenceScore,omitempty"`
	IsAIGenerated    *bool    `json:"isAiGenerated,omitempty"`
	OverrideExisting *bool    `json:"overrideExisting,omitempty"`
}

type BulkAssignResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}
