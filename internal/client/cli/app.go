package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/docdash/internal/client/client"
	"github.com/dmitrijs2005/docdash/internal/client/models"
	"github.com/dmitrijs2005/docdash/internal/client/services"
	"github.com/dmitrijs2005/docdash/internal/logging"
)

// SessionService is the session surface the REPL drives.
type SessionService interface {
	Login(ctx context.Context, creds models.Credentials) error
	Register(ctx context.Context, creds models.Credentials) error
	VerifyEmail(ctx context.Context, req models.EmailVerification) error
	ResendVerification(ctx context.Context, email string) error
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) error
	Restore(ctx context.Context) error
	StartReconciler(ctx context.Context, interval time.Duration)
	Snapshot() services.SessionState
	Subscribe(fn func(services.SessionState)) (unsubscribe func())
}

// DocumentService is the document surface the REPL drives.
type DocumentService interface {
	List(ctx context.Context, f models.DocumentFilter) (models.DocumentList, error)
	Get(ctx context.Context, id string) (models.Document, error)
	Upload(ctx context.Context, f client.UploadFile, progress client.ProgressFunc) (models.Document, error)
	Download(ctx context.Context, id string, w io.Writer, progress client.ProgressFunc) (int64, error)
	Delete(ctx context.Context, id string) error
	Categorize(ctx context.Context, id string, force bool) (models.CategorizationJob, error)
	BulkCategorize(ctx context.Context, req models.BulkCategorization) (models.CategorizationJob, error)
}

// CategoryService is the category surface the REPL drives.
type CategoryService interface {
	Tree(ctx context.Context, q models.CategoryQuery) ([]*models.CategoryNode, error)
	Create(ctx context.Context, in models.CategoryInput) (models.Category, error)
	Update(ctx context.Context, id string, in models.CategoryInput) (models.Category, error)
	Delete(ctx context.Context, id string) error
	Assign(ctx context.Context, categoryID string, a models.CategoryAssignment) error
	BulkAssign(ctx context.Context, categoryID string, a models.BulkCategoryAssignment) (models.BulkAssignResult, error)
	Unassign(ctx context.Context, categoryID, documentID string) error
	Path(ctx context.Context, id string) ([]models.Category, error)
	Descendants(ctx context.Context, id string, includeSelf bool) ([]models.Category, error)
}

// ThemeStore persists the UI theme.
type ThemeStore interface {
	Theme() models.Theme
	SetTheme(ctx context.Context, theme models.Theme) error
}

// CredentialInfo exposes what may be shown about the stored credentials.
type CredentialInfo interface {
	AccessTokenExpiry() (time.Time, bool)
}

// Options tune the background work of the App.
type Options struct {
	ProfileCheckInterval time.Duration
	PollInterval         time.Duration
	StalenessWindow      time.Duration
	DownloadDir          string
}

// Deps are the collaborators of the App.
type Deps struct {
	Session    SessionService
	Documents  DocumentService
	Categories CategoryService
	Themes     ThemeStore
	// Credentials is optional; whoami shows the token expiry when set.
	Credentials CredentialInfo
	Router      *Router
	Notifier    *ColorNotifier
	In          io.Reader
	Out         io.Writer
	Logger      logging.Logger
}

// App is the interactive docdash terminal client.
type App struct {
	session  SessionService
	docs     DocumentService
	cats     CategoryService
	themes   ThemeStore
	creds    CredentialInfo
	router   *Router
	notifier *ColorNotifier
	poller   *services.CategorizationPoller
	opts     Options

	in  *bufio.Reader
	out io.Writer
	log logging.Logger
	now func() time.Time

	// state mirrors the session through its subscription.
	stateMu     sync.Mutex
	state       services.SessionState
	unsubscribe func()

	// bg is the context background work started by commands runs under.
	bgMu sync.Mutex
	bg   context.Context
}

func NewApp(d Deps, opts Options) *App {
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	if d.Router == nil {
		d.Router = NewRouter()
	}
	if opts.ProfileCheckInterval <= 0 {
		opts.ProfileCheckInterval = time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = services.DefaultPollInterval
	}
	if opts.StalenessWindow <= 0 {
		opts.StalenessWindow = services.DefaultStalenessWindow
	}
	if opts.DownloadDir == "" {
		opts.DownloadDir = "downloads"
	}
	a := &App{
		session:  d.Session,
		docs:     d.Documents,
		cats:     d.Categories,
		themes:   d.Themes,
		creds:    d.Credentials,
		router:   d.Router,
		notifier: d.Notifier,
		opts:     opts,
		in:       bufio.NewReader(d.In),
		out:      d.Out,
		log:      d.Logger.With("component", "cli"),
		now:      time.Now,
		bg:       context.Background(),
	}
	a.poller = services.NewCategorizationPoller(
		func(ctx context.Context) (models.DocumentList, error) {
			return a.docs.List(ctx, models.DocumentFilter{})
		},
		a.deliverPoll,
		opts.PollInterval, opts.StalenessWindow, a.log,
	)
	a.router.OnChange(a.routeHint)
	a.unsubscribe = d.Session.Subscribe(a.sessionChanged)
	a.sessionChanged(d.Session.Snapshot())
	return a
}

// Run restores the session, starts the profile reconciler and serves the
// REPL until the user leaves or ctx is done.
func (a *App) Run(ctx context.Context) {
	a.notifier.Info("Welcome to docdash (type 'help' for commands)")

	a.bgMu.Lock()
	a.bg = ctx
	a.bgMu.Unlock()

	if err := a.session.Restore(ctx); err != nil {
		a.log.Warn(ctx, "session restore failed", "error", err)
	}

	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.session.StartReconciler(rctx, a.opts.ProfileCheckInterval)
	defer a.poller.Stop()
	defer a.unsubscribe()

	runREPL(ctx, a.commands(), a.isLoggedIn, a.prompt, a.in, a.out, a.report)
}

func (a *App) background() context.Context {
	a.bgMu.Lock()
	defer a.bgMu.Unlock()
	return a.bg
}

func (a *App) sessionChanged(st services.SessionState) {
	a.stateMu.Lock()
	a.state = st
	a.stateMu.Unlock()
}

// sessionState is the last state the session published.
func (a *App) sessionState() services.SessionState {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.state
}

func (a *App) isLoggedIn() bool {
	return a.sessionState().Authenticated
}

func (a *App) prompt() string {
	st := a.sessionState()
	who := "guest"
	if st.User != nil {
		who = st.User.Email
	}
	return fmt.Sprintf("docdash [%s] %s> ", a.router.Current(), who)
}

func (a *App) routeHint(r services.Route) {
	switch r {
	case services.RouteVerifyEmail:
		a.notifier.Info("Check your inbox and run 'verify' with the code you received.")
	case services.RouteDashboard:
		a.notifier.Info("Type 'docs' to list your documents.")
	}
}

// report shows a failed command. Session expiry is announced by the
// session itself, so it is not repeated here.
func (a *App) report(cmd string, err error) {
	if errors.Is(err, client.ErrSessionExpired) {
		return
	}
	a.log.Debug(a.background(), "command failed", "command", cmd, "error", err)
	a.notifier.Error(cmd + ": " + describeError(err))
}

// describeError prefers the first validation message of an API error.
func describeError(err error) string {
	if apiErr, ok := client.AsAPIError(err); ok {
		if field, msg, ok := apiErr.FirstValidationMessage(); ok {
			return field + ": " + msg
		}
		return apiErr.Message
	}
	return err.Error()
}
