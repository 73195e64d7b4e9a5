package models

import (
	"path/filepath"
	"strings"
	"time"
)

// HighConfidenceThreshold is the score at or above which an assignment is
// considered high confidence.
const HighConfidenceThreshold = 80

// FileType is a coarse classification of a document's MIME type.
type FileType string

const (
	FileTypeDocument FileType = "document"
	FileTypeImage    FileType = "image"
	FileTypeText     FileType = "text"
	FileTypeOther    FileType = "other"
)

// Document is an uploaded file. Categories is derived data assembled on the
// client from the document's assignments and the categories they reference.
type Document struct {
	ID               string        `json:"id"`
	Filename         string        `json:"filename"`
	OriginalFilename string        `json:"originalFilename"`
	MimeType         string        `json:"mimeType"`
	FileSize         int64         `json:"fileSize"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
	Categories       []CategoryRef `json:"categories,omitempty"`
}

// FileType classifies the document by its MIME type.
func (d Document) FileType() FileType {
	switch {
	case strings.HasPrefix(d.MimeType, "image/"):
		return FileTypeImage
	case strings.HasPrefix(d.MimeType, "text/"):
		return FileTypeText
	case strings.Contains(d.MimeType, "pdf"),
		strings.Contains(d.MimeType, "document"),
		strings.Contains(d.MimeType, "sheet"):
		return FileTypeDocument
	}
	return FileTypeOther
}

// Extension returns the lower-cased extension of the original filename
// without the leading dot.
func (d Document) Extension() string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(d.OriginalFilename), "."))
}

func (d Document) HasCategories() bool {
	return len(d.Categories) > 0
}

func (d Document) AICategories() []CategoryRef {
	return d.filterCategories(func(c CategoryRef) bool { return c.IsAIGenerated })
}

func (d Document) ManualCategories() []CategoryRef {
	return d.filterCategories(func(c CategoryRef) bool { return !c.IsAIGenerated })
}

func (d Document) HighConfidenceCategories() []CategoryRef {
	return d.filterCategories(func(c CategoryRef) bool {
		return c.ConfidenceScore != nil && *c.ConfidenceScore >= HighConfidenceThreshold
	})
}

func (d Document) filterCategories(keep func(CategoryRef) bool) []CategoryRef {
	out := make([]CategoryRef, 0, len(d.Categories))
	for _, c := range d.Categories {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// DocumentCategory is an assignment of a document to a category.
type DocumentCategory struct {
	ID              string    `json:"id"`
	DocumentID      string    `json:"documentId"`
	CategoryID      string    `json:"categoryId"`
	ConfidenceScore *float64  `json:"confidenceScore,omitempty"`
	IsAIGenerated   bool      `json:"isAiGenerated"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// CategoryRef is the document-facing join of an assignment and its category.
type CategoryRef struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Color           string   `json:"color,omitempty"`
	Icon            string   `json:"icon,omitempty"`
	ConfidenceScore *float64 `json:"confidenceScore,omitempty"`
	IsAIGenerated   bool     `json:"isAiGenerated"`
}

// NewCategoryRef merges an assignment with the category it points to.
func NewCategoryRef(a DocumentCategory, c Category) CategoryRef {
	return CategoryRef{
		ID:              c.ID,
		Name:            c.Name,
		Color:           c.Color,
		Icon:            c.Icon,
		ConfidenceScore: a.ConfidenceScore,
		IsAIGenerated:   a.IsAIGenerated,
	}
}

// DocumentList is one page of documents plus the account's storage figures.
type DocumentList struct {
	Documents []Document `json:"documents"`
	TotalSize int64      `json:"totalSize"`
	Quota     int64      `json:"quota"`
	Used      int64      `json:"used"`
}

// DocumentFilter holds the optional filters of the document list endpoint.
type DocumentFilter struct {
	CategoryID           string
	CategoryIDs          []string
	IncludeSubcategories bool
	IsAICategorized      *bool
	MinConfidenceScore   *float64
}

// CategorizationJob identifies a remote categorization job.
type CategorizationJob struct {
	JobID  string `json:"jobId"`
	Status string `json:"status,omitempty"`
}

// BulkCategorization requests categorization of many documents at once.
type BulkCategorization struct {
	DocumentIDs         []string `json:"documentIds"`
	ConfidenceThreshold *float64 `json:"confidenceThreshold,omitempty"`
}
