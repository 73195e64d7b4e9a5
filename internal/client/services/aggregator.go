package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/docdash/internal/client/models"
	"github.com/dmitrijs2005/docdash/internal/logging"
	"github.com/dmitrijs2005/docdash/internal/metrics"
)

// CategoryLookup is what the aggregator needs from the category API.
type CategoryLookup interface {
	DocumentCategories(ctx context.Context, documentID string) ([]models.DocumentCategory, error)
	GetCategory(ctx context.Context, id string) (models.Category, error)
}

// Aggregator attaches category references to documents. For every document
// it fetches the assignments, then the category behind each assignment, all
// concurrently. Failures are contained per branch: a category that cannot
// be fetched is left out, a document whose assignments cannot be fetched
// gets no categories.
type Aggregator struct {
	src     CategoryLookup
	limit   int
	log     logging.Logger
	metrics *metrics.Client
}

// NewAggregator builds an Aggregator. limit bounds the number of concurrent
// fetches at each level; zero or less means unbounded.
func NewAggregator(src CategoryLookup, limit int, log logging.Logger, m *metrics.Client) *Aggregator {
	if log == nil {
		log = logging.Nop()
	}
	return &Aggregator{src: src, limit: limit, log: log.With("component", "aggregator"), metrics: m}
}

// Attach returns copies of docs, in the same order, with Categories filled
// in. The only error is the caller's context ending before the join.
func (a *Aggregator) Attach(ctx context.Context, docs []models.Document) ([]models.Document, error) {
	out := make([]models.Document, len(docs))

	var g errgroup.Group
	if a.limit > 0 {
		g.SetLimit(a.limit)
	}
	for i := range docs {
		out[i] = docs[i]
		g.Go(func() error {
			out[i].Categories = a.categoriesFor(ctx, docs[i].ID)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Aggregator) categoriesFor(ctx context.Context, documentID string) []models.CategoryRef {
	assignments, err := a.src.DocumentCategories(ctx, documentID)
	if err != nil {
		a.log.Warn(ctx, "failed to fetch categories for document", "document_id", documentID, "error", err)
		a.metrics.ObserveBranchFailure(metrics.StageAssignments)
		return []models.CategoryRef{}
	}

	refs := make([]*models.CategoryRef, len(assignments))
	var g errgroup.Group
	if a.limit > 0 {
		g.SetLimit(a.limit)
	}
	for i, as := range assignments {
		g.Go(func() error {
			c, err := a.src.GetCategory(ctx, as.CategoryID)
			if err != nil {
				a.log.Warn(ctx, "failed to fetch category", "category_id", as.CategoryID, "document_id", documentID, "error", err)
				a.metrics.ObserveBranchFailure(metrics.StageCategory)
				return nil
			}
			ref := models.NewCategoryRef(as, c)
			refs[i] = &ref
			return nil
		})
	}
	_ = g.Wait()

	result := make([]models.CategoryRef, 0, len(refs))
	for _, r := range refs {
		if r != nil {
			result = append(result, *r)
		}
	}
	return result
}
