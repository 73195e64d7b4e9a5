package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/dmitrijs2005/docdash/internal/client/client"
	"github.com/dmitrijs2005/docdash/internal/client/models"
	"github.com/dmitrijs2005/docdash/internal/logging"
)

// MaxUploadSize is the largest file the server accepts.
const MaxUploadSize = 10 * 1024 * 1024

// AllowedMimeTypes lists the upload types the server accepts.
var AllowedMimeTypes = []string{
	"application/pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"text/plain",
	"text/csv",
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
}

var (
	ErrFileTooLarge     = errors.New("file size must be less than 10MB")
	ErrUnsupportedType  = errors.New("unsupported file type")
	ErrQuotaExceeded    = errors.New("not enough storage left for this file")
	ErrNoDocuments      = errors.New("at least one document required")
	ErrInvalidThreshold = errors.New("confidence threshold must be between 0 and 100")
)

// UserSource exposes the cached user, whose quota bounds uploads.
type UserSource interface {
	User() (models.User, bool)
}

// DocumentService lists documents with their categories and runs document
// mutations.
type DocumentService struct {
	api        client.DocumentAPI
	agg        *Aggregator
	users      UserSource
	invalidate func()
	log        logging.Logger
}

// NewDocumentService builds the service. invalidate, when set, runs after
// every mutation that may change category counts.
func NewDocumentService(api client.DocumentAPI, agg *Aggregator, users UserSource, invalidate func(), log logging.Logger) *DocumentService {
	if log == nil {
		log = logging.Nop()
	}
	if invalidate == nil {
		invalidate = func() {}
	}
	return &DocumentService{api: api, agg: agg, users: users, invalidate: invalidate, log: log.With("component", "documents")}
}

// List fetches one page of documents and attaches their categories.
func (s *DocumentService) List(ctx context.Context, f models.DocumentFilter) (models.DocumentList, error) {
	list, err := s.api.ListDocuments(ctx, f)
	if err != nil {
		return models.DocumentList{}, err
	}
	docs, err := s.agg.Attach(ctx, list.Documents)
	if err != nil {
		return models.DocumentList{}, err
	}
	list.Documents = docs
	return list, nil
}

func (s *DocumentService) Get(ctx context.Context, id string) (models.Document, error) {
	doc, err := s.api.GetDocument(ctx, id)
	if err != nil {
		return models.Document{}, err
	}
	docs, err := s.agg.Attach(ctx, []models.Document{doc})
	if err != nil {
		return models.Document{}, err
	}
	return docs[0], nil
}

// ValidateUpload applies the server's upload rules locally. The quota check
// only runs when a user is cached.
func (s *DocumentService) ValidateUpload(f client.UploadFile) error {
	if !slices.Contains(AllowedMimeTypes, f.MimeType) {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, f.MimeType)
	}
	if f.Size > MaxUploadSize {
		return ErrFileTooLarge
	}
	if s.users != nil {
		if u, ok := s.users.User(); ok && u.StorageQuotaBytes > 0 && !u.CanUploadFile(f.Size) {
			return ErrQuotaExceeded
		}
	}
	return nil
}

func (s *DocumentService) Upload(ctx context.Context, f client.UploadFile, progress client.ProgressFunc) (models.Document, error) {
	if err := s.ValidateUpload(f); err != nil {
		return models.Document{}, err
	}
	doc, err := s.api.UploadDocument(ctx, f, progress)
	if err != nil {
		return models.Document{}, err
	}
	s.log.Info(ctx, "document uploaded", "document_id", doc.ID, "size", f.Size)
	s.invalidate()
	return doc, nil
}

// Download streams the file content into w.
func (s *DocumentService) Download(ctx context.Context, id string, w io.Writer, progress client.ProgressFunc) (int64, error) {
	return s.api.DownloadDocument(ctx, id, w, progress)
}

func (s *DocumentService) Delete(ctx context.Context, id string) error {
	if err := s.api.DeleteDocument(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// Categorize starts a categorization job for one document.
func (s *DocumentService) Categorize(ctx context.Context, id string, force bool) (models.CategorizationJob, error) {
	return s.api.CategorizeDocument(ctx, id, force)
}

func (s *DocumentService) BulkCategorize(ctx context.Context, req models.BulkCategorization) (models.CategorizationJob, error) {
	if len(req.DocumentIDs) == 0 {
		return models.CategorizationJob{}, ErrNoDocuments
	}
	if t := req.ConfidenceThreshold; t != nil && (*t < 0 || *t > 100) {
		return models.CategorizationJob{}, ErrInvalidThreshold
	}
	return s.api.BulkCategorize(ctx, req)
}
