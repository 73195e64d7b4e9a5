package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dmitrijs2005/docdash/internal/client/models"
)

func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printUser(w io.Writer, u models.User) {
	verified := "yes"
	if !u.EmailVerified {
		verified = "no (run 'verify')"
	}
	tw := newTable(w)
	fmt.Fprintf(tw, "Email:\t%s\n", u.Email)
	fmt.Fprintf(tw, "Verified:\t%s\n", verified)
	fmt.Fprintf(tw, "Storage:\t%s of %s (%d%%)\n",
		formatBytes(u.StorageUsedBytes), formatBytes(u.StorageQuotaBytes), u.StorageUsedPercentage())
	fmt.Fprintf(tw, "Remaining:\t%s\n", formatBytes(u.RemainingStorageBytes()))
	tw.Flush()
}

func printDocuments(w io.Writer, list models.DocumentList, now time.Time) {
	if len(list.Documents) == 0 {
		fmt.Fprintln(w, "No documents yet. Use 'upload <path>' to add one.")
	} else {
		tw := newTable(w)
		fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSIZE\tUPLOADED\tCATEGORIES")
		for _, d := range list.Documents {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				d.ID, d.OriginalFilename, d.FileType(), formatBytes(d.FileSize),
				humanize.RelTime(d.CreatedAt, now, "ago", "from now"), categoryLabels(d))
		}
		tw.Flush()
	}
	if list.Quota > 0 {
		fmt.Fprintf(w, "Storage: %s of %s used\n", formatBytes(list.Used), formatBytes(list.Quota))
	}
}

// categoryLabels renders the categories of d, marking AI assignments with
// their confidence.
func categoryLabels(d models.Document) string {
	if !d.HasCategories() {
		return "-"
	}
	labels := make([]string, len(d.Categories))
	for i, c := range d.Categories {
		labels[i] = categoryLabel(c)
	}
	return strings.Join(labels, ", ")
}

func categoryLabel(c models.CategoryRef) string {
	switch {
	case c.IsAIGenerated && c.ConfidenceScore != nil:
		return fmt.Sprintf("%s (AI %.0f%%)", c.Name, *c.ConfidenceScore)
	case c.IsAIGenerated:
		return c.Name + " (AI)"
	}
	return c.Name
}

func printDocument(w io.Writer, d models.Document, now time.Time) {
	tw := newTable(w)
	fmt.Fprintf(tw, "ID:\t%s\n", d.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", d.OriginalFilename)
	fmt.Fprintf(tw, "Type:\t%s (%s)\n", d.MimeType, d.FileType())
	fmt.Fprintf(tw, "Size:\t%s\n", formatBytes(d.FileSize))
	fmt.Fprintf(tw, "Uploaded:\t%s (%s)\n", d.CreatedAt.Local().Format(time.DateTime),
		humanize.RelTime(d.CreatedAt, now, "ago", "from now"))
	tw.Flush()

	if !d.HasCategories() {
		fmt.Fprintln(w, "Categories: none yet")
		return
	}
	high := make(map[string]bool)
	for _, c := range d.HighConfidenceCategories() {
		high[c.ID] = true
	}
	printRefs := func(title string, refs []models.CategoryRef) {
		if len(refs) == 0 {
			return
		}
		fmt.Fprintln(w, title)
		for _, c := range refs {
			mark := " "
			if high[c.ID] {
				mark = "*"
			}
			fmt.Fprintf(w, "  %s %s\n", mark, categoryLabel(c))
		}
	}
	printRefs("Categories:", d.ManualCategories())
	printRefs("AI categories (* high confidence):", d.AICategories())
}

func printCategories(w io.Writer, cats []models.Category) {
	if len(cats) == 0 {
		fmt.Fprintln(w, "No categories. Use 'mkcat <name>' to create one.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tDOCS\tOWNER\tPARENT\tCOLOR")
	for _, c := range cats {
		owner := "you"
		if c.IsSystem() {
			owner = "system"
		}
		parent := "-"
		if c.HasParent() {
			parent = *c.ParentID
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", c.ID, c.Name, c.DocumentCount, owner, parent, c.DisplayColor())
	}
	tw.Flush()
}

func printTree(w io.Writer, forest []*models.CategoryNode) {
	if len(forest) == 0 {
		fmt.Fprintln(w, "No categories.")
		return
	}
	for _, root := range forest {
		printNode(w, root, "", "")
	}
}

func printNode(w io.Writer, n *models.CategoryNode, lead, childLead string) {
	fmt.Fprintf(w, "%s%s [%s] (%d docs, %d total)\n", lead, n.Name, n.ID, n.DocumentCount, n.TotalDocumentCount())
	for i, c := range n.Children {
		if i == len(n.Children)-1 {
			printNode(w, c, childLead+"└── ", childLead+"    ")
		} else {
			printNode(w, c, childLead+"├── ", childLead+"│   ")
		}
	}
}

// progressPrinter redraws a single percentage line. Updates may arrive
// from the transfer goroutine.
type progressPrinter struct {
	mu    sync.Mutex
	w     io.Writer
	label string
	last  int
	drawn bool
}

func newProgressPrinter(w io.Writer, label string) *progressPrinter {
	return &progressPrinter{w: w, label: label, last: -1}
}

func (p *progressPrinter) update(fraction float64) {
	pct := int(fraction * 100)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if pct == p.last {
		return
	}
	p.last = pct
	p.drawn = true
	fmt.Fprintf(p.w, "\r%s %3d%%", p.label, pct)
}

func (p *progressPrinter) done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn {
		fmt.Fprintln(p.w)
		p.drawn = false
	}
}
