package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/dmitrijs2005/docdash/internal/client/client"
	"github.com/dmitrijs2005/docdash/internal/client/models"
	"github.com/dmitrijs2005/docdash/internal/client/services"
	"github.com/dmitrijs2005/docdash/internal/filex"
)

var (
	errPasswordMismatch = errors.New("passwords do not match")
	errEmptyInput       = errors.New("input must not be empty")
	errHasChildren      = errors.New("category has subcategories or documents")
	errUnknownCategory  = errors.New("category not found")
	errBadThreshold     = errors.New("threshold must be a number")
)

func (a *App) commands() []command {
	return []command{
		{name: "register", help: "create an account", guest: true, run: a.register},
		{name: "login", help: "sign in", guest: true, run: a.login},
		{name: "verify", args: "[code]", help: "verify your email address", run: a.verify},
		{name: "resend", help: "send a new verification code", run: a.resend},
		{name: "whoami", help: "show the signed-in account", auth: true, run: a.whoami},
		{name: "logout", help: "sign out of this device", auth: true, run: a.logout},
		{name: "logoutall", help: "sign out of every device", auth: true, run: a.logoutAll},

		{name: "docs", args: "[categoryId]", help: "list documents", auth: true, run: a.listDocuments},
		{name: "show", args: "<documentId>", help: "show a document with its categories", auth: true, run: a.showDocument},
		{name: "upload", args: "<path>", help: "upload a file", auth: true, run: a.upload},
		{name: "download", args: "<documentId> [path]", help: "download a document", auth: true, run: a.download},
		{name: "rm", args: "<documentId>", help: "delete a document", auth: true, run: a.deleteDocument},
		{name: "categorize", args: "<documentId> [force]", help: "queue AI categorization", auth: true, run: a.categorize},
		{name: "bulkcategorize", args: "<documentId>... [threshold=N]", help: "queue AI categorization for many documents", auth: true, run: a.bulkCategorize},
		{name: "watch", help: "refresh documents until categorization settles", auth: true, run: a.watch},
		{name: "unwatch", help: "stop refreshing documents", auth: true, run: a.unwatch},

		{name: "cats", help: "list categories", auth: true, run: a.listCategories},
		{name: "tree", help: "show the category hierarchy", auth: true, run: a.categoryTree},
		{name: "mkcat", args: "<name> [parentId]", help: "create a category", auth: true, run: a.createCategory},
		{name: "renamecat", args: "<categoryId> <name>", help: "rename a category", auth: true, run: a.renameCategory},
		{name: "rmcat", args: "<categoryId>", help: "delete an empty category", auth: true, run: a.deleteCategory},
		{name: "assign", args: "<categoryId> <documentId>", help: "put a document into a category", auth: true, run: a.assign},
		{name: "bulkassign", args: "<categoryId> <documentId>...", help: "put several documents into a category", auth: true, run: a.bulkAssign},
		{name: "unassign", args: "<categoryId> <documentId>", help: "remove a document from a category", auth: true, run: a.unassign},
		{name: "path", args: "<categoryId>", help: "show the ancestors of a category", auth: true, run: a.categoryPath},
		{name: "descendants", args: "<categoryId>", help: "show a category with everything below it", auth: true, run: a.categoryDescendants},

		{name: "theme", args: "[light|dark|system]", help: "show or change the color theme", run: a.theme},
	}
}

func (a *App) readCredentials(confirm bool) (models.Credentials, error) {
	email, err := GetSimpleText(a.in, "Email", a.out)
	if err != nil {
		return models.Credentials{}, err
	}
	if email == "" {
		return models.Credentials{}, errEmptyInput
	}
	pw, err := GetPassword(a.out)
	if err != nil {
		return models.Credentials{}, err
	}
	defer clear(pw)

	if confirm {
		again, err := GetPassword(a.out)
		if err != nil {
			return models.Credentials{}, err
		}
		defer clear(again)
		if string(pw) != string(again) {
			return models.Credentials{}, errPasswordMismatch
		}
	}
	return models.Credentials{Email: email, Password: string(pw)}, nil
}

// The session service reports its own failures, so the session commands
// only surface local input errors.

func (a *App) register(ctx context.Context, _ []string) error {
	a.router.Navigate(services.RouteRegister)
	creds, err := a.readCredentials(true)
	if err != nil {
		return err
	}
	_ = a.session.Register(ctx, creds)
	return nil
}

func (a *App) login(ctx context.Context, _ []string) error {
	creds, err := a.readCredentials(false)
	if err != nil {
		return err
	}
	_ = a.session.Login(ctx, creds)
	return nil
}

// currentEmail is the address of the cached user, asked for when there is none.
func (a *App) currentEmail() (string, error) {
	if u := a.sessionState().User; u != nil && u.Email != "" {
		return u.Email, nil
	}
	email, err := GetSimpleText(a.in, "Email", a.out)
	if err != nil {
		return "", err
	}
	if email == "" {
		return "", errEmptyInput
	}
	return email, nil
}

func (a *App) verify(ctx context.Context, args []string) error {
	email, err := a.currentEmail()
	if err != nil {
		return err
	}
	var code string
	if len(args) > 0 {
		code = args[0]
	} else if code, err = GetSimpleText(a.in, "Verification code", a.out); err != nil {
		return err
	}
	if code == "" {
		return errEmptyInput
	}
	_ = a.session.VerifyEmail(ctx, models.EmailVerification{Email: email, Code: code})
	return nil
}

func (a *App) resend(ctx context.Context, _ []string) error {
	email, err := a.currentEmail()
	if err != nil {
		return err
	}
	_ = a.session.ResendVerification(ctx, email)
	return nil
}

func (a *App) whoami(_ context.Context, _ []string) error {
	st := a.sessionState()
	if st.User == nil {
		fmt.Fprintln(a.out, "Signed in, profile not loaded yet.")
	} else {
		printUser(a.out, *st.User)
	}
	if a.creds == nil {
		return nil
	}
	if exp, ok := a.creds.AccessTokenExpiry(); ok {
		fmt.Fprintf(a.out, "Access token expires %s\n", humanize.RelTime(exp, a.now(), "ago", "from now"))
	}
	return nil
}

func (a *App) logout(ctx context.Context, _ []string) error {
	a.poller.Stop()
	_ = a.session.Logout(ctx)
	return nil
}

func (a *App) logoutAll(ctx context.Context, _ []string) error {
	a.poller.Stop()
	_ = a.session.LogoutAll(ctx)
	return nil
}

func (a *App) listDocuments(ctx context.Context, args []string) error {
	var f models.DocumentFilter
	if len(args) > 0 {
		f.CategoryID = args[0]
		f.IncludeSubcategories = true
	}
	list, err := a.docs.List(ctx, f)
	if err != nil {
		return err
	}
	printDocuments(a.out, list, a.now())
	if f.CategoryID == "" {
		a.schedulePollIfPending(list)
	}
	return nil
}

// schedulePollIfPending keeps the list fresh while uploads wait for
// categorization. The list was just fetched, so the first poll waits.
func (a *App) schedulePollIfPending(list models.DocumentList) {
	if !services.NeedsCategorizationPoll(list.Documents, a.now(), a.opts.StalenessWindow) {
		return
	}
	if !a.poller.Running() {
		a.notifier.Info("Some documents are still being categorized, the list will refresh.")
	}
	a.poller.Schedule(a.background())
}

func (a *App) deliverPoll(list models.DocumentList, err error) {
	if err != nil {
		a.notifier.Error("Refreshing documents failed: " + describeError(err))
		return
	}
	fmt.Fprintln(a.out)
	a.notifier.Info("Documents refreshed")
	printDocuments(a.out, list, a.now())
	fmt.Fprint(a.out, a.prompt())
}

func (a *App) showDocument(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	doc, err := a.docs.Get(ctx, args[0])
	if err != nil {
		return err
	}
	printDocument(a.out, doc, a.now())
	return nil
}

func (a *App) upload(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	info, err := filex.Describe(args[0])
	if err != nil {
		return err
	}

	f := client.UploadFile{
		Name:     info.Name,
		MimeType: info.MimeType,
		Size:     info.Size,
		Open: func() (io.ReadCloser, error) {
			return os.Open(info.Path)
		},
	}
	progress := newProgressPrinter(a.out, "Uploading "+info.Name)
	doc, err := a.docs.Upload(ctx, f, progress.update)
	progress.done()
	if err != nil {
		return err
	}

	a.notifier.Success(fmt.Sprintf("Uploaded %s (%s)", doc.OriginalFilename, doc.ID))
	a.notifier.Info("Categorization runs in the background, the list will refresh.")
	a.poller.Schedule(a.background())
	return nil
}

func (a *App) download(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	doc, err := a.docs.Get(ctx, args[0])
	if err != nil {
		return err
	}

	dest, err := a.downloadPath(doc, args[1:])
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".docdash-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	progress := newProgressPrinter(a.out, "Downloading "+doc.OriginalFilename)
	n, err := a.docs.Download(ctx, doc.ID, tmp, progress.update)
	progress.done()
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return err
	}

	a.notifier.Success(fmt.Sprintf("Saved %s (%s)", dest, formatBytes(n)))
	return nil
}

// downloadPath is the explicit target when given, else the original file
// name inside the download directory.
func (a *App) downloadPath(doc models.Document, explicit []string) (string, error) {
	if len(explicit) > 0 {
		return filepath.Abs(explicit[0])
	}
	dir, err := filex.EnsureDir(a.opts.DownloadDir)
	if err != nil {
		return "", err
	}
	name := doc.OriginalFilename
	if name == "" {
		name = doc.Filename
	}
	return filex.SafeJoin(dir, name)
}

func (a *App) deleteDocument(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	ok, err := Confirm(a.in, "Delete document "+args[0]+"?", a.out)
	if err != nil || !ok {
		return err
	}
	if err := a.docs.Delete(ctx, args[0]); err != nil {
		return err
	}
	a.notifier.Success("Document deleted")
	return nil
}

func (a *App) categorize(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	force := len(args) == 2 && args[1] == "force"
	if len(args) == 2 && !force {
		return errUsage
	}
	job, err := a.docs.Categorize(ctx, args[0], force)
	if err != nil {
		return err
	}
	a.notifier.Success("Categorization queued (job " + job.JobID + ")")
	a.poller.Schedule(a.background())
	return nil
}

// bulkCategorize takes document ids and an optional threshold=N argument
// anywhere in the list.
func (a *App) bulkCategorize(ctx context.Context, args []string) error {
	var req models.BulkCategorization
	for _, arg := range args {
		v, ok := strings.CutPrefix(arg, "threshold=")
		if !ok {
			req.DocumentIDs = append(req.DocumentIDs, arg)
			continue
		}
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errBadThreshold
		}
		req.ConfidenceThreshold = &t
	}
	if len(req.DocumentIDs) == 0 {
		return errUsage
	}
	job, err := a.docs.BulkCategorize(ctx, req)
	if err != nil {
		return err
	}
	a.notifier.Success(fmt.Sprintf("Categorization queued for %d documents (job %s)", len(req.DocumentIDs), job.JobID))
	a.poller.Schedule(a.background())
	return nil
}

func (a *App) watch(_ context.Context, _ []string) error {
	a.poller.Start(a.background())
	return nil
}

func (a *App) unwatch(_ context.Context, _ []string) error {
	a.poller.Stop()
	a.notifier.Info("Stopped refreshing documents")
	return nil
}

// listCategories prints every category with parents ahead of their children.
func (a *App) listCategories(ctx context.Context, _ []string) error {
	withSystem := true
	forest, err := a.cats.Tree(ctx, models.CategoryQuery{IncludeSystemCategories: &withSystem})
	if err != nil {
		return err
	}
	printCategories(a.out, models.FlattenForest(forest))
	return nil
}

func (a *App) categoryTree(ctx context.Context, _ []string) error {
	forest, err := a.cats.Tree(ctx, models.CategoryQuery{})
	if err != nil {
		return err
	}
	printTree(a.out, forest)
	return nil
}

func (a *App) createCategory(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	in := models.CategoryInput{Name: args[0]}
	if len(args) == 2 {
		in.ParentID = &args[1]
	}
	desc, err := GetMultiline(a.in, "Description (optional)", a.out)
	if err != nil {
		return err
	}
	in.Description = desc

	c, err := a.cats.Create(ctx, in)
	if err != nil {
		return err
	}
	a.notifier.Success(fmt.Sprintf("Created category %s (%s)", c.Name, c.ID))
	return nil
}

func (a *App) renameCategory(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	name := strings.Join(args[1:], " ")
	c, err := a.cats.Update(ctx, args[0], models.CategoryInput{Name: name})
	if err != nil {
		return err
	}
	a.notifier.Success(fmt.Sprintf("Renamed category to %s", c.Name))
	return nil
}

func (a *App) deleteCategory(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	forest, err := a.cats.Tree(ctx, models.CategoryQuery{})
	if err != nil {
		return err
	}
	node, ok := models.FindInForest(forest, args[0])
	if !ok {
		return errUnknownCategory
	}
	if !node.CanDelete() {
		return errHasChildren
	}

	ok, err = Confirm(a.in, "Delete category "+node.Name+"?", a.out)
	if err != nil || !ok {
		return err
	}
	if err := a.cats.Delete(ctx, node.ID); err != nil {
		return err
	}
	a.notifier.Success("Category deleted")
	return nil
}

func (a *App) assign(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	manual := false
	err := a.cats.Assign(ctx, args[0], models.CategoryAssignment{DocumentID: args[1], IsAIGenerated: &manual})
	if err != nil {
		return err
	}
	a.notifier.Success("Document assigned")
	return nil
}

func (a *App) bulkAssign(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	manual := false
	res, err := a.cats.BulkAssign(ctx, args[0], models.BulkCategoryAssignment{DocumentIDs: args[1:], IsAIGenerated: &manual})
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		a.notifier.Error(fmt.Sprintf("Assigned %d documents, %d failed", res.Success, res.Failed))
		return nil
	}
	a.notifier.Success(fmt.Sprintf("Assigned %d documents", res.Success))
	return nil
}

func (a *App) unassign(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	if err := a.cats.Unassign(ctx, args[0], args[1]); err != nil {
		return err
	}
	a.notifier.Success("Document removed from category")
	return nil
}

func (a *App) categoryPath(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	path, err := a.cats.Path(ctx, args[0])
	if err != nil {
		return err
	}
	names := make([]string, len(path))
	for i, c := range path {
		names[i] = c.Name
	}
	fmt.Fprintln(a.out, strings.Join(names, " / "))
	return nil
}

func (a *App) categoryDescendants(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	cats, err := a.cats.Descendants(ctx, args[0], true)
	if err != nil {
		return err
	}
	// the requested category has no parent in the list and becomes the root
	printTree(a.out, models.BuildCategoryTree(cats))
	return nil
}

func (a *App) theme(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Theme:", a.themes.Theme())
		return nil
	}
	t := models.Theme(strings.ToLower(args[0]))
	if !t.Valid() || len(args) > 1 {
		return errUsage
	}
	if err := a.themes.SetTheme(ctx, t); err != nil {
		return err
	}
	a.notifier.SetTheme(t)
	a.notifier.Success("Theme set to " + string(t))
	return nil
}
