package cli

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/docdash/internal/client/client"
	"github.com/dmitrijs2005/docdash/internal/client/models"
	"github.com/dmitrijs2005/docdash/internal/client/services"
)

type fakeSession struct {
	mu       sync.Mutex
	state    services.SessionState
	subs     map[int]func(services.SessionState)
	nextSub  int
	logins   []models.Credentials
	verified []models.EmailVerification
	resent   []string
	logouts  int
	restored int
}

// set replaces the state and publishes it like the real session does.
func (f *fakeSession) set(st services.SessionState) {
	f.mu.Lock()
	f.state = st
	subs := make([]func(services.SessionState), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(st)
	}
}

func (f *fakeSession) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeSession) Subscribe(fn func(services.SessionState)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[int]func(services.SessionState))
	}
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

func (f *fakeSession) Login(_ context.Context, creds models.Credentials) error {
	f.mu.Lock()
	f.logins = append(f.logins, creds)
	f.mu.Unlock()
	f.set(services.SessionState{User: &models.User{Email: creds.Email, EmailVerified: true}, Authenticated: true})
	return nil
}

func (f *fakeSession) Register(_ context.Context, creds models.Credentials) error {
	f.mu.Lock()
	f.logins = append(f.logins, creds)
	f.mu.Unlock()
	f.set(services.SessionState{User: &models.User{Email: creds.Email}, Authenticated: true, VerificationRequired: true})
	return nil
}

func (f *fakeSession) VerifyEmail(_ context.Context, req models.EmailVerification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified = append(f.verified, req)
	return nil
}

func (f *fakeSession) ResendVerification(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resent = append(f.resent, email)
	return nil
}

func (f *fakeSession) Logout(context.Context) error {
	f.mu.Lock()
	f.logouts++
	f.mu.Unlock()
	f.set(services.SessionState{})
	return nil
}

func (f *fakeSession) LogoutAll(ctx context.Context) error { return f.Logout(ctx) }

func (f *fakeSession) Restore(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restored++
	return nil
}

func (f *fakeSession) StartReconciler(ctx context.Context, _ time.Duration) { <-ctx.Done() }

func (f *fakeSession) Snapshot() services.SessionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func signedIn(email string) *fakeSession {
	return &fakeSession{state: services.SessionState{
		User:          &models.User{Email: email, EmailVerified: true, StorageQuotaBytes: 1 << 20, StorageUsedBytes: 1 << 19},
		Authenticated: true,
	}}
}

type fakeDocs struct {
	mu        sync.Mutex
	list      models.DocumentList
	doc       models.Document
	content   string
	err       error
	listCalls int
	uploaded  []string
	deleted   []string
	jobs      []string
	bulk      []models.BulkCategorization
}

func (f *fakeDocs) List(context.Context, models.DocumentFilter) (models.DocumentList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.list, f.err
}

func (f *fakeDocs) Get(_ context.Context, id string) (models.Document, error) {
	d := f.doc
	d.ID = id
	return d, nil
}

func (f *fakeDocs) Upload(_ context.Context, file client.UploadFile, progress client.ProgressFunc) (models.Document, error) {
	if f.err != nil {
		return models.Document{}, f.err
	}
	rc, err := file.Open()
	if err != nil {
		return models.Document{}, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return models.Document{}, err
	}
	f.mu.Lock()
	f.uploaded = append(f.uploaded, file.Name+"|"+file.MimeType+"|"+string(b))
	f.mu.Unlock()
	if progress != nil {
		progress(0.5)
		progress(1)
	}
	return models.Document{ID: "new", OriginalFilename: file.Name}, nil
}

func (f *fakeDocs) Download(_ context.Context, _ string, w io.Writer, progress client.ProgressFunc) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := io.Copy(w, strings.NewReader(f.content))
	if progress != nil {
		progress(1)
	}
	return n, err
}

func (f *fakeDocs) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeDocs) Categorize(_ context.Context, id string, force bool) (models.CategorizationJob, error) {
	job := "job-" + id
	if force {
		job += "-force"
	}
	f.jobs = append(f.jobs, job)
	return models.CategorizationJob{JobID: job}, f.err
}

func (f *fakeDocs) BulkCategorize(_ context.Context, req models.BulkCategorization) (models.CategorizationJob, error) {
	f.bulk = append(f.bulk, req)
	return models.CategorizationJob{JobID: "bulk-job"}, f.err
}

type fakeCats struct {
	cats     []models.Category
	err      error
	created  []models.CategoryInput
	updated  map[string]models.CategoryInput
	deleted  []string
	assigned []string
	removed  []string
	bulk     map[string][]string
	// bulkFailed is reported as failed by BulkAssign
	bulkFailed int
	queries    []models.CategoryQuery
}

func (f *fakeCats) Tree(_ context.Context, q models.CategoryQuery) ([]*models.CategoryNode, error) {
	f.queries = append(f.queries, q)
	return models.BuildCategoryTree(f.cats), f.err
}

func (f *fakeCats) Update(_ context.Context, id string, in models.CategoryInput) (models.Category, error) {
	if f.updated == nil {
		f.updated = make(map[string]models.CategoryInput)
	}
	f.updated[id] = in
	return models.Category{ID: id, Name: in.Name}, f.err
}

func (f *fakeCats) BulkAssign(_ context.Context, categoryID string, a models.BulkCategoryAssignment) (models.BulkAssignResult, error) {
	if f.bulk == nil {
		f.bulk = make(map[string][]string)
	}
	f.bulk[categoryID] = append(f.bulk[categoryID], a.DocumentIDs...)
	return models.BulkAssignResult{Success: len(a.DocumentIDs) - f.bulkFailed, Failed: f.bulkFailed}, f.err
}

// Descendants walks ParentID links from id through the fixture.
func (f *fakeCats) Descendants(_ context.Context, id string, includeSelf bool) ([]models.Category, error) {
	forest := models.BuildCategoryTree(f.cats)
	node, ok := models.FindInForest(forest, id)
	if !ok {
		return nil, f.err
	}
	out := models.FlattenForest([]*models.CategoryNode{node})
	if !includeSelf {
		out = out[1:]
	}
	return out, f.err
}

func (f *fakeCats) Create(_ context.Context, in models.CategoryInput) (models.Category, error) {
	f.created = append(f.created, in)
	return models.Category{ID: "c-new", Name: in.Name}, f.err
}

func (f *fakeCats) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeCats) Assign(_ context.Context, categoryID string, a models.CategoryAssignment) error {
	f.assigned = append(f.assigned, categoryID+"<-"+a.DocumentID)
	return f.err
}

func (f *fakeCats) Unassign(_ context.Context, categoryID, documentID string) error {
	f.removed = append(f.removed, categoryID+"<-"+documentID)
	return f.err
}

func (f *fakeCats) Path(_ context.Context, id string) ([]models.Category, error) {
	var out []models.Category
	byID := make(map[string]models.Category, len(f.cats))
	for _, c := range f.cats {
		byID[c.ID] = c
	}
	for c, ok := byID[id]; ok; {
		out = append([]models.Category{c}, out...)
		if !c.HasParent() {
			break
		}
		c, ok = byID[*c.ParentID]
	}
	return out, f.err
}

type fakeCreds struct {
	exp time.Time
}

func (f fakeCreds) AccessTokenExpiry() (time.Time, bool) {
	return f.exp, !f.exp.IsZero()
}

type fakeThemes struct {
	theme models.Theme
}

func (f *fakeThemes) Theme() models.Theme { return f.theme }

func (f *fakeThemes) SetTheme(_ context.Context, t models.Theme) error {
	f.theme = t
	return nil
}

func ptr[T any](v T) *T { return &v }
