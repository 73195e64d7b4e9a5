package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/docdash/internal/client/models"
)

const categoriesPath = "/api/v1/categories"

func categoryPath(id string, rest ...string) string {
	p := categoriesPath + "/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

func (c *HTTPClient) ListCategories(ctx context.Context, q models.CategoryQuery) ([]models.Category, error) {
	query := url.Values{}
	if q.IncludeSystemCategories != nil {
		query.Set("includeSystemCategories", strconv.FormatBool(*q.IncludeSystemCategories))
	}
	if q.Hierarchical != nil {
		query.Set("hierarchical", strconv.FormatBool(*q.Hierarchical))
	}
	if q.ParentID != "" {
		query.Set("parentId", q.ParentID)
	}

	var out struct {
		Categories []models.Category `json:"categories"`
	}
	err := c.do(ctx, call{method: http.MethodGet, path: categoriesPath, query: query, out: &out})
	return out.Categories, err
}

func (c *HTTPClient) GetCategory(ctx context.Context, id string) (models.Category, error) {
	var out models.Category
	err := c.do(ctx, call{method: http.MethodGet, path: categoryPath(id), out: &out})
	return out, err
}

func (c *HTTPClient) CreateCategory(ctx context.Context, in models.CategoryInput) (models.Category, error) {
	var out models.Category
	err := c.do(ctx, call{method: http.MethodPost, path: categoriesPath, body: jsonBody(in), out: &out})
	return out, err
}

func (c *HTTPClient) UpdateCategory(ctx context.Context, id string, in models.CategoryInput) (models.Category, error) {
	var out models.Category
	err := c.do(ctx, call{method: http.MethodPut, path: categoryPath(id), body: jsonBody(in), out: &out})
	return out, err
}

func (c *HTTPClient) DeleteCategory(ctx context.Context, id string) error {
	return c.do(ctx, call{method: http.MethodDelete, path: categoryPath(id)})
}

func (c *HTTPClient) AssignDocument(ctx context.Context, categoryID string, a models.CategoryAssignment) error {
	return c.do(ctx, call{method: http.MethodPost, path: categoryPath(categoryID, "documents"), body: jsonBody(a)})
}

func (c *HTTPClient) UnassignDocument(ctx context.Context, categoryID, documentID string) error {
	return c.do(ctx, call{method: http.MethodDelete, path: categoryPath(categoryID, "documents", url.PathEscape(documentID))})
}

func (c *HTTPClient) BulkAssign(ctx context.Context, categoryID string, a models.BulkCategoryAssignment) (models.BulkAssignResult, error) {
	var out models.BulkAssignResult
	err := c.do(ctx, call{method: http.MethodPost, path: categoryPath(categoryID, "documents", "bulk"), body: jsonBody(a), out: &out})
	return out, err
}

// CategoryPath lists the ancestors of a category from the root down to it.
func (c *HTTPClient) CategoryPath(ctx context.Context, id string) ([]models.Category, error) {
	var out []models.Category
	err := c.do(ctx, call{method: http.MethodGet, path: categoryPath(id, "path"), out: &out})
	return out, err
}

func (c *HTTPClient) CategoryDescendants(ctx context.Context, id string, includeSelf bool) ([]models.Category, error) {
	var query url.Values
	if includeSelf {
		query = url.Values{"includeSelf": {"true"}}
	}
	var out []models.Category
	err := c.do(ctx, call{method: http.MethodGet, path: categoryPath(id, "descendants"), query: query, out: &out})
	return out, err
}

// DocumentCategories lists the assignment records of one document.
func (c *HTTPClient) DocumentCategories(ctx context.Context, documentID string) ([]models.DocumentCategory, error) {
	var out []models.DocumentCategory
	err := c.do(ctx, call{method: http.MethodGet, path: categoriesPath + "/documents/" + url.PathEscape(documentID) + "/categories", out: &out})
	return out, err
}
