package client

import (
	"context"
	"io"

	"github.com/dmitrijs2005/docdash/internal/client/models"
)

// AuthAPI covers the authentication endpoints.
type AuthAPI interface {
	Login(ctx context.Context, creds models.Credentials) (models.AuthResponse, error)
	Register(ctx context.Context, creds models.Credentials) (models.AuthResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context) error
	// VerifyEmail returns the new session when the server issues one.
	VerifyEmail(ctx context.Context, req models.EmailVerification) (*models.AuthResponse, error)
	ResendVerification(ctx context.Context, email string) error
	Profile(ctx context.Context) (models.User, error)
}

// CategoryAPI covers the category endpoints.
type CategoryAPI interface {
	ListCategories(ctx context.Context, q models.CategoryQuery) ([]models.Category, error)
	GetCategory(ctx context.Context, id string) (models.Category, error)
	CreateCategory(ctx context.Context, in models.CategoryInput) (models.Category, error)
	UpdateCategory(ctx context.Context, id string, in models.CategoryInput) (models.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	AssignDocument(ctx context.Context, categoryID string, a models.CategoryAssignment) error
	UnassignDocument(ctx context.Context, categoryID, documentID string) error
	BulkAssign(ctx context.Context, categoryID string, a models.BulkCategoryAssignment) (models.BulkAssignResult, error)
	CategoryPath(ctx context.Context, id string) ([]models.Category, error)
	CategoryDescendants(ctx context.Context, id string, includeSelf bool) ([]models.Category, error)
	DocumentCategories(ctx context.Context, documentID string) ([]models.DocumentCategory, error)
}

// DocumentAPI covers the document endpoints.
type DocumentAPI interface {
	ListDocuments(ctx context.Context, f models.DocumentFilter) (models.DocumentList, error)
	GetDocument(ctx context.Context, id string) (models.Document, error)
	UploadDocument(ctx context.Context, f UploadFile, progress ProgressFunc) (models.Document, error)
	DownloadDocument(ctx context.Context, id string, w io.Writer, progress ProgressFunc) (int64, error)
	DeleteDocument(ctx context.Context, id string) error
	CategorizeDocument(ctx context.Context, id string, force bool) (models.CategorizationJob, error)
	BulkCategorize(ctx context.Context, req models.BulkCategorization) (models.CategorizationJob, error)
}

// Client is the whole API surface.
type Client interface {
	AuthAPI
	CategoryAPI
	DocumentAPI
}

var _ Client = (*HTTPClient)(nil)
