package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/dmitrijs2005/docdash/internal/client/client"
	"github.com/dmitrijs2005/docdash/internal/client/models"
	"github.com/dmitrijs2005/docdash/internal/logging"
)

const (
	// CategoryCacheTTL is how long a fetched category list stays fresh.
	CategoryCacheTTL     = 5 * time.Minute
	categoryCacheCleanup = 10 * time.Minute
)

// CategoryService wraps the category endpoints with a short-lived cache.
// Lists and single categories are cached; any mutation flushes the cache.
type CategoryService struct {
	api   client.CategoryAPI
	cache *cache.Cache
	log   logging.Logger
}

func NewCategoryService(api client.CategoryAPI, ttl time.Duration, log logging.Logger) *CategoryService {
	if ttl <= 0 {
		ttl = CategoryCacheTTL
	}
	if log == nil {
		log = logging.Nop()
	}
	return &CategoryService{
		api:   api,
		cache: cache.New(ttl, categoryCacheCleanup),
		log:   log.With("component", "categories"),
	}
}

// Invalidate drops every cached entry.
func (s *CategoryService) Invalidate() {
	s.cache.Flush()
	s.log.Debug(context.Background(), "category cache flushed")
}

func listKey(q models.CategoryQuery) string {
	opt := func(b *bool) string {
		if b == nil {
			return "-"
		}
		return fmt.Sprint(*b)
	}
	return fmt.Sprintf("list|sys=%s|h=%s|p=%s", opt(q.IncludeSystemCategories), opt(q.Hierarchical), q.ParentID)
}

// List returns a copy of the cached list, so callers may reorder or edit it.
func (s *CategoryService) List(ctx context.Context, q models.CategoryQuery) ([]models.Category, error) {
	key := listKey(q)
	if v, ok := s.cache.Get(key); ok {
		return slices.Clone(v.([]models.Category)), nil
	}
	cats, err := s.api.ListCategories(ctx, q)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, cats, cache.DefaultExpiration)
	return slices.Clone(cats), nil
}

// Tree fetches the flat list and builds the category forest.
func (s *CategoryService) Tree(ctx context.Context, q models.CategoryQuery) ([]*models.CategoryNode, error) {
	cats, err := s.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return models.BuildCategoryTree(cats), nil
}

func (s *CategoryService) GetCategory(ctx context.Context, id string) (models.Category, error) {
	key := "get|" + id
	if v, ok := s.cache.Get(key); ok {
		return v.(models.Category), nil
	}
	c, err := s.api.GetCategory(ctx, id)
	if err != nil {
		return models.Category{}, err
	}
	s.cache.Set(key, c, cache.DefaultExpiration)
	return c, nil
}

// DocumentCategories is never cached: background categorization changes
// assignments without going through this client.
func (s *CategoryService) DocumentCategories(ctx context.Context, documentID string) ([]models.DocumentCategory, error) {
	return s.api.DocumentCategories(ctx, documentID)
}

func (s *CategoryService) Path(ctx context.Context, id string) ([]models.Category, error) {
	return s.api.CategoryPath(ctx, id)
}

func (s *CategoryService) Descendants(ctx context.Context, id string, includeSelf bool) ([]models.Category, error) {
	return s.api.CategoryDescendants(ctx, id, includeSelf)
}

func (s *CategoryService) Create(ctx context.Context, in models.CategoryInput) (models.Category, error) {
	c, err := s.api.CreateCategory(ctx, in)
	s.Invalidate()
	return c, err
}

func (s *CategoryService) Update(ctx context.Context, id string, in models.CategoryInput) (models.Category, error) {
	c, err := s.api.UpdateCategory(ctx, id, in)
	s.Invalidate()
	return c, err
}

func (s *CategoryService) Delete(ctx context.Context, id string) error {
	err := s.api.DeleteCategory(ctx, id)
	s.Invalidate()
	return err
}

func (s *CategoryService) Assign(ctx context.Context, categoryID string, a models.CategoryAssignment) error {
	err := s.api.AssignDocument(ctx, categoryID, a)
	s.Invalidate()
	return err
}

func (s *CategoryService) Unassign(ctx context.Context, categoryID, documentID string) error {
	err := s.api.UnassignDocument(ctx, categoryID, documentID)
	s.Invalidate()
	return err
}

func (s *CategoryService) BulkAssign(ctx context.Context, categoryID string, a models.BulkCategoryAssignment) (models.BulkAssignResult, error) {
	res, err := s.api.BulkAssign(ctx, categoryID, a)
	s.Invalidate()
	return res, err
}
