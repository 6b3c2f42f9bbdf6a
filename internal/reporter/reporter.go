package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fenilsonani/macsweep/internal/cleaner"
	"github.com/fenilsonani/macsweep/internal/history"
	"github.com/fenilsonani/macsweep/internal/scanner"
	"github.com/fenilsonani/macsweep/pkg/utils"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatTable   OutputFormat = "table"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatSummary OutputFormat = "summary"
)

// DefaultWidth is used when the writer is not a terminal
const DefaultWidth = 120

// ParseFormat validates a format name
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML, FormatSummary:
		return f, nil
	case "":
		return FormatSummary, nil
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

// Reporter handles report generation
type Reporter struct {
	writer io.Writer
	format OutputFormat
	width  int
}

// New creates a new Reporter. Table width follows the terminal when writer is one.
func New(writer io.Writer, format OutputFormat) *Reporter {
	return &Reporter{
		writer: writer,
		format: format,
		width:  detectWidth(writer),
	}
}

// WithWidth overrides the table width
func (r *Reporter) WithWidth(width int) *Reporter {
	if width > 0 {
		r.width = width
	}
	return r
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func detectWidth(w io.Writer) int {
	if !IsTerminal(w) {
		return DefaultWidth
	}
	width, _, err := term.GetSize(int(w.(*os.File).Fd()))
	if err != nil || width <= 0 {
		return DefaultWidth
	}
	return width
}

// =============================================================================
// Inventory
// =============================================================================

type inventoryReport struct {
	Timestamp          string                   `json:"timestamp" yaml:"timestamp"`
	TotalFiles         int                      `json:"total_files" yaml:"total_files"`
	TotalSize          int64                    `json:"total_size" yaml:"total_size"`
	TotalSizeFormatted string                   `json:"total_size_formatted" yaml:"total_size_formatted"`
	Categories         []scanner.CategoryResult `json:"categories" yaml:"categories"`
}

// Report writes a scan inventory
func (r *Reporter) Report(inv *scanner.Inventory) error {
	switch r.format {
	case FormatTable:
		return r.reportTable(inv)
	case FormatJSON, FormatYAML:
		return r.encode(inventoryReport{
			Timestamp:          inv.ScannedAt.Format(time.RFC3339),
			TotalFiles:         inv.TotalCount(),
			TotalSize:          inv.TotalSize(),
			TotalSizeFormatted: utils.FormatBytes(inv.TotalSize()),
			Categories:         inv.Categories,
		})
	case FormatSummary:
		return r.reportSummary(inv)
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

// reportSummary generates a summary report
func (r *Reporter) reportSummary(inv *scanner.Inventory) error {
	fmt.Fprintf(r.writer, "=== Scan Summary ===\n")
	fmt.Fprintf(r.writer, "Total Files: %d\n", inv.TotalCount())
	fmt.Fprintf(r.writer, "Total Size: %s\n", utils.FormatBytes(inv.TotalSize()))
	fmt.Fprintf(r.writer, "\nBreakdown by Category:\n")

	for _, cat := range inv.Categories {
		label := cat.Label
		if label == "" {
			label = cat.Name
		}
		fmt.Fprintf(r.writer, "  %-28s %6d files, %s\n", label+":", len(cat.Items), utils.FormatBytes(cat.TotalSize))
	}

	return nil
}

// reportTable generates a table report sized to the terminal
func (r *Reporter) reportTable(inv *scanner.Inventory) error {
	const fixed = 12 + 20 + 19 + 10 // size, category, modified, separators and mark
	pathWidth := max(r.width-fixed, 20)
	rule := strings.Repeat("-", min(r.width, pathWidth+fixed))

	fmt.Fprintf(r.writer, "%-*s | %-12s | %-20s | %s\n", pathWidth, "Path", "Size", "Category", "Modified")
	fmt.Fprintln(r.writer, rule)

	for _, item := range inv.All() {
		mark := " "
		if !item.Selected {
			mark = "-"
		}
		fmt.Fprintf(r.writer, "%-*s | %-12s | %-20s | %s%s\n",
			pathWidth, truncatePath(item.Path, pathWidth),
			utils.FormatBytes(item.Size),
			truncate(item.Category, 20),
			formatTime(item.ModifiedAt), mark)
	}

	fmt.Fprintln(r.writer, rule)
	fmt.Fprintf(r.writer, "Total: %d files, %s\n", inv.TotalCount(), utils.FormatBytes(inv.TotalSize()))

	return nil
}

// =============================================================================
// Clean results
// =============================================================================

type cleanReport struct {
	Method     string   `json:"method" yaml:"method"`
	DryRun     bool     `json:"dry_run" yaml:"dry_run"`
	Selected   int      `json:"selected" yaml:"selected"`
	Cleaned    int      `json:"cleaned" yaml:"cleaned"`
	Freed      int64    `json:"freed" yaml:"freed"`
	FreeBefore uint64   `json:"free_before,omitempty" yaml:"free_before,omitempty"`
	FreeAfter  uint64   `json:"free_after,omitempty" yaml:"free_after,omitempty"`
	Cancelled  bool     `json:"cancelled" yaml:"cancelled"`
	FailedPath string   `json:"failed_path,omitempty" yaml:"failed_path,omitempty"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty"`
	Remaining  int      `json:"remaining" yaml:"remaining"`
	Duration   string   `json:"duration" yaml:"duration"`
	Deleted    []string `json:"deleted,omitempty" yaml:"deleted,omitempty"`
}

// ReportClean writes the outcome of a clean
func (r *Reporter) ReportClean(res *cleaner.CleanResult) error {
	switch r.format {
	case FormatJSON, FormatYAML:
		rep := cleanReport{
			Method:     string(res.Method),
			DryRun:     res.DryRun,
			Selected:   res.Selected,
			Cleaned:    res.Cleaned,
			Freed:      res.Freed,
			FreeBefore: res.FreeBefore,
			FreeAfter:  res.FreeAfter,
			Cancelled:  res.Cancelled,
			Remaining:  len(res.Remaining),
			Duration:   res.Duration.Round(time.Millisecond).String(),
			Deleted:    res.Deleted,
		}
		if res.Err != nil {
			rep.FailedPath = res.Err.Path
			rep.Error = res.Err.Error()
		}
		return r.encode(rep)
	case FormatTable, FormatSummary:
		return r.cleanSummary(res)
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

func (r *Reporter) cleanSummary(res *cleaner.CleanResult) error {
	verb := "Cleaned"
	if res.DryRun {
		verb = "Would clean"
	}

	fmt.Fprintf(r.writer, "=== Clean Summary (%s) ===\n", res.Method)
	fmt.Fprintf(r.writer, "%s: %d of %d files, %s\n", verb, res.Cleaned, res.Selected, utils.FormatBytes(res.Freed))
	if res.FreeBefore > 0 && res.FreeAfter > 0 {
		fmt.Fprintf(r.writer, "Free space: %s -> %s\n",
			utils.FormatBytes(int64(res.FreeBefore)), utils.FormatBytes(int64(res.FreeAfter)))
	}
	fmt.Fprintf(r.writer, "Duration: %s\n", res.Duration.Round(time.Millisecond))

	if res.Cancelled {
		fmt.Fprintf(r.writer, "Cancelled: %d files not processed\n", len(res.Remaining))
	}
	if res.Err != nil {
		fmt.Fprintf(r.writer, "\nStopped at %s\n%s\n", res.Err.Path, res.Err.UserMessage())
		if len(res.Remaining) > 0 {
			fmt.Fprintf(r.writer, "%d files were not processed\n", len(res.Remaining))
		}
	}
	return nil
}

// =============================================================================
// History
// =============================================================================

// ReportHistory writes recorded clean runs
func (r *Reporter) ReportHistory(runs []*history.CleanRun, totalFreed int64) error {
	switch r.format {
	case FormatJSON, FormatYAML:
		return r.encode(struct {
			TotalFreed int64               `json:"total_freed" yaml:"total_freed"`
			Runs       []*history.CleanRun `json:"runs" yaml:"runs"`
		}{totalFreed, runs})
	case FormatTable, FormatSummary:
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}

	fmt.Fprintf(r.writer, "%-19s | %-9s | %-10s | %-9s | %8s | %s\n", "Started", "Trigger", "Method", "Status", "Files", "Freed")
	fmt.Fprintln(r.writer, strings.Repeat("-", min(r.width, 80)))
	for _, run := range runs {
		freed := utils.FormatBytes(run.FreedBytes)
		if run.DryRun {
			freed += " (dry run)"
		}
		fmt.Fprintf(r.writer, "%-19s | %-9s | %-10s | %-9s | %8d | %s\n",
			formatTime(run.StartedAt), run.Trigger, run.Method, run.Status, run.Cleaned, freed)
	}
	fmt.Fprintf(r.writer, "\nTotal freed: %s\n", utils.FormatBytes(totalFreed))
	return nil
}

// =============================================================================
// Space lens
// =============================================================================

type treeNode struct {
	Name     string      `json:"name" yaml:"name"`
	Path     string      `json:"path" yaml:"path"`
	Size     int64       `json:"size" yaml:"size"`
	IsDir    bool        `json:"is_dir" yaml:"is_dir"`
	Children []*treeNode `json:"children,omitempty" yaml:"children,omitempty"`
}

func toTreeNode(n *scanner.DiskNode, top int) *treeNode {
	out := &treeNode{Name: n.Name, Path: n.Path, Size: n.Size(), IsDir: n.IsDir}
	for _, c := range n.Largest(top) {
		out.Children = append(out.Children, toTreeNode(c, top))
	}
	return out
}

// ReportTree writes a space-usage tree, keeping the top largest children per level
func (r *Reporter) ReportTree(root *scanner.DiskNode, top int) error {
	switch r.format {
	case FormatJSON, FormatYAML:
		return r.encode(toTreeNode(root, top))
	case FormatTable, FormatSummary:
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}

	fmt.Fprintf(r.writer, "%s  %s\n", utils.FormatBytes(root.Size()), root.Path)
	r.writeTree(root, top, "")
	return nil
}

func (r *Reporter) writeTree(n *scanner.DiskNode, top int, indent string) {
	children := n.Largest(top)
	total := n.Size()
	for i, c := range children {
		branch, next := "├── ", "│   "
		if i == len(children)-1 {
			branch, next = "└── ", "    "
		}
		pct := 0.0
		if total > 0 {
			pct = float64(c.Size()) / float64(total) * 100
		}
		name := c.Name
		if c.IsDir {
			name += "/"
		}
		fmt.Fprintf(r.writer, "%s%s%-10s %5.1f%%  %s\n", indent, branch, utils.FormatBytes(c.Size()), pct, name)
		r.writeTree(c, top, indent+next)
	}
}

// =============================================================================
// Helpers
// =============================================================================

func (r *Reporter) encode(v any) error {
	if r.format == FormatYAML {
		encoder := yaml.NewEncoder(r.writer)
		defer encoder.Close()
		return encoder.Encode(v)
	}
	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func truncatePath(path string, width int) string {
	if len(path) <= width {
		return path
	}
	return "..." + path[len(path)-(width-3):]
}

func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return s[:width-1] + "…"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

// SaveToFile saves an inventory report to a file
func SaveToFile(inv *scanner.Inventory, path string, format OutputFormat) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return New(file, format).Report(inv)
}
