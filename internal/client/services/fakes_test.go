package services

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/docdash/internal/client/client"
	"github.com/dmitrijs2005/docdash/internal/client/models"
	"github.com/dmitrijs2005/docdash/internal/client/storage"
	"github.com/dmitrijs2005/docdash/internal/logging"
)

// ---- storage ----

func setupStore(t *testing.T) *storage.Store {
	t.Helper()
	ctx := context.Background()
	db, err := storage.InitDatabase(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := storage.Open(ctx, db, logging.Nop())
	require.NoError(t, err)
	return s
}

// ---- UI ----

type fakeNav struct {
	mu     sync.Mutex
	routes []Route
}

func (n *fakeNav) Navigate(r Route) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, r)
}

func (n *fakeNav) last() Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.routes) == 0 {
		return ""
	}
	return n.routes[len(n.routes)-1]
}

type fakeNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *fakeNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *fakeNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

// ---- auth API ----

type fakeAuthAPI struct {
	LoginRet     models.AuthResponse
	LoginErr     error
	RegisterRet  models.AuthResponse
	RegisterErr  error
	LogoutErr    error
	LogoutAllErr error
	VerifyRet    *models.AuthResponse
	VerifyErr    error
	ResendErr    error
	ProfileRet   models.User
	ProfileErr   error
	// ProfileHook runs after the profile is "fetched" and before it is returned.
	ProfileHook func()

	mu               sync.Mutex
	LastCreds        models.Credentials
	LastRefreshToken string
	LastVerification models.EmailVerification
	ProfileCalls     int
	LogoutCalls      int
}

func (f *fakeAuthAPI) Login(_ context.Context, c models.Credentials) (models.AuthResponse, error) {
	f.LastCreds = c
	return f.LoginRet, f.LoginErr
}

func (f *fakeAuthAPI) Register(_ context.Context, c models.Credentials) (models.AuthResponse, error) {
	f.LastCreds = c
	return f.RegisterRet, f.RegisterErr
}

func (f *fakeAuthAPI) Logout(_ context.Context, rt string) error {
	f.LastRefreshToken = rt
	f.LogoutCalls++
	return f.LogoutErr
}

func (f *fakeAuthAPI) LogoutAll(context.Context) error {
	f.LogoutCalls++
	return f.LogoutAllErr
}

func (f *fakeAuthAPI) VerifyEmail(_ context.Context, v models.EmailVerification) (*models.AuthResponse, error) {
	f.LastVerification = v
	return f.VerifyRet, f.VerifyErr
}

func (f *fakeAuthAPI) ResendVerification(context.Context, string) error { return f.ResendErr }

func (f *fakeAuthAPI) Profile(context.Context) (models.User, error) {
	f.mu.Lock()
	f.ProfileCalls++
	hook := f.ProfileHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return f.ProfileRet, f.ProfileErr
}

func (f *fakeAuthAPI) profileCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ProfileCalls
}

// ---- category API ----

// fakeCategoryAPI serves categories from a map and counts calls. Per-id
// errors let tests fail individual branches.
type fakeCategoryAPI struct {
	mu          sync.Mutex
	categories  map[string]models.Category
	assignments map[string][]models.DocumentCategory
	catErr      map[string]error
	assignErr   map[string]error
	list        []models.Category
	listErr     error
	mutErr      error

	listCalls int
	getCalls  int
	mutations []string
}

func newFakeCategoryAPI() *fakeCategoryAPI {
	return &fakeCategoryAPI{
		categories:  map[string]models.Category{},
		assignments: map[string][]models.DocumentCategory{},
		catErr:      map[string]error{},
		assignErr:   map[string]error{},
	}
}

func (f *fakeCategoryAPI) ListCategories(context.Context, models.CategoryQuery) ([]models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.list, f.listErr
}

func (f *fakeCategoryAPI) GetCategory(_ context.Context, id string) (models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if err := f.catErr[id]; err != nil {
		return models.Category{}, err
	}
	c, ok := f.categories[id]
	if !ok {
		return models.Category{}, client.ErrNotFound
	}
	return c, nil
}

func (f *fakeCategoryAPI) DocumentCategories(_ context.Context, docID string) ([]models.DocumentCategory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.assignErr[docID]; err != nil {
		return nil, err
	}
	return f.assignments[docID], nil
}

func (f *fakeCategoryAPI) mutate(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations = append(f.mutations, name)
	return f.mutErr
}

func (f *fakeCategoryAPI) CreateCategory(_ context.Context, in models.CategoryInput) (models.Category, error) {
	return models.Category{ID: "new", Name: in.Name}, f.mutate("create")
}

func (f *fakeCategoryAPI) UpdateCategory(_ context.Context, id string, in models.CategoryInput) (models.Category, error) {
	return models.Category{ID: id, Name: in.Name}, f.mutate("update")
}

func (f *fakeCategoryAPI) DeleteCategory(context.Context, string) error { return f.mutate("delete") }

func (f *fakeCategoryAPI) AssignDocument(context.Context, string, models.CategoryAssignment) error {
	return f.mutate("assign")
}

func (f *fakeCategoryAPI) UnassignDocument(context.Context, string, string) error {
	return f.mutate("unassign")
}

func (f *fakeCategoryAPI) BulkAssign(context.Context, string, models.BulkCategoryAssignment) (models.BulkAssignResult, error) {
	return models.BulkAssignResult{}, f.mutate("bulk")
}

func (f *fakeCategoryAPI) CategoryPath(context.Context, string) ([]models.Category, error) {
	return f.list, nil
}

func (f *fakeCategoryAPI) CategoryDescendants(context.Context, string, bool) ([]models.Category, error) {
	return f.list, nil
}

// ---- document API ----

type fakeDocumentAPI struct {
	mu        sync.Mutex
	lists     []models.DocumentList
	listErr   error
	listCalls int

	doc       models.Document
	uploadErr error
	uploaded  []client.UploadFile
	deleted   []string
	deleteErr error
	bulkReq   *models.BulkCategorization
	content   string
}

func (f *fakeDocumentAPI) ListDocuments(context.Context, models.DocumentFilter) (models.DocumentList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.listCalls
	f.listCalls++
	if f.listErr != nil {
		return models.DocumentList{}, f.listErr
	}
	if len(f.lists) == 0 {
		return models.DocumentList{}, nil
	}
	if i >= len(f.lists) {
		i = len(f.lists) - 1
	}
	return f.lists[i], nil
}

func (f *fakeDocumentAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeDocumentAPI) GetDocument(_ context.Context, id string) (models.Document, error) {
	d := f.doc
	d.ID = id
	return d, nil
}

func (f *fakeDocumentAPI) UploadDocument(_ context.Context, u client.UploadFile, progress client.ProgressFunc) (models.Document, error) {
	f.uploaded = append(f.uploaded, u)
	if f.uploadErr != nil {
		return models.Document{}, f.uploadErr
	}
	if progress != nil {
		progress(1)
	}
	return models.Document{ID: "d-new", OriginalFilename: u.Name, MimeType: u.MimeType, FileSize: u.Size}, nil
}

func (f *fakeDocumentAPI) DownloadDocument(_ context.Context, _ string, w io.Writer, _ client.ProgressFunc) (int64, error) {
	n, err := io.WriteString(w, f.content)
	return int64(n), err
}

func (f *fakeDocumentAPI) DeleteDocument(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func (f *fakeDocumentAPI) CategorizeDocument(_ context.Context, id string, _ bool) (models.CategorizationJob, error) {
	return models.CategorizationJob{JobID: "job-" + id}, nil
}

func (f *fakeDocumentAPI) BulkCategorize(_ context.Context, req models.BulkCategorization) (models.CategorizationJob, error) {
	f.bulkReq = &req
	return models.CategorizationJob{JobID: "bulk"}, nil
}

func ptr[T any](v T) *T { return &v }
