package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fenilsonani/macsweep/internal/cleaner"
	prog "github.com/fenilsonani/macsweep/internal/progress"
	"github.com/fenilsonani/macsweep/internal/reporter"
	"github.com/fenilsonani/macsweep/internal/scanner"
	"github.com/fenilsonani/macsweep/internal/ui/styles"
	"github.com/fenilsonani/macsweep/pkg/utils"
)

// updateMsg carries one reporter snapshot into the program
type updateMsg struct{ update interface{} }

// doneMsg is sent once the operation has returned
type doneMsg struct{}

type closedMsg struct{}

// ProgressModel renders scan and clean progress published by a coordinator
type ProgressModel struct {
	title      string
	updates    <-chan interface{}
	cancel     func()
	spinner    spinner.Model
	bar        progress.Model
	scan       *prog.ScanProgress
	clean      *prog.CleanProgress
	cancelling bool
	done       bool
	startTime  time.Time
}

// NewProgressModel listens on updates; cancel is invoked once on ctrl+c
func NewProgressModel(title string, updates <-chan interface{}, cancel func()) ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SelectedStyle

	return ProgressModel{
		title:     title,
		updates:   updates,
		cancel:    cancel,
		spinner:   s,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		startTime: time.Now(),
	}
}

func waitForUpdate(ch <-chan interface{}) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return updateMsg{u}
	}
}

// Init starts the spinner and the subscription reader
func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForUpdate(m.updates))
}

// Update handles messages
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.cancelling && m.cancel != nil {
				m.cancelling = true
				m.cancel()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-4, 10), 60)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case updateMsg:
		switch u := msg.update.(type) {
		case *prog.ScanProgress:
			m.scan = u
		case *prog.CleanProgress:
			m.clean = u
		}
		return m, waitForUpdate(m.updates)

	case closedMsg:
		return m, nil

	case doneMsg:
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the progress view
func (m ProgressModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render(m.title))
	b.WriteString("\n")

	if m.done {
		b.WriteString(m.status())
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(m.status())
	b.WriteString(" ")
	b.WriteString(styles.DimStyle.Render(fmt.Sprintf("(%s)", prog.FormatDuration(time.Since(m.startTime)))))
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(m.fraction()))
	b.WriteString("\n")

	if m.clean != nil && m.clean.CurrentFile != "" {
		b.WriteString(styles.FilePathStyle.Render(truncateMiddle(m.clean.CurrentFile, 70)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.cancelling {
		b.WriteString(styles.WarningStyle.Render("Cancelling after the current item..."))
	} else {
		b.WriteString(styles.HelpStyle.Render("ctrl+c: cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m ProgressModel) status() string {
	if m.clean != nil {
		return prog.FormatCleanProgress(m.clean)
	}
	return prog.FormatScanProgress(m.scan)
}

func (m ProgressModel) fraction() float64 {
	if m.clean != nil {
		return m.clean.Fraction()
	}
	if m.scan != nil {
		return m.scan.Fraction()
	}
	return 0
}

func truncateMiddle(s string, n int) string {
	r := []rune(s)
	if len(r) <= n || n < 5 {
		return s
	}
	half := (n - 3) / 2
	return string(r[:half]) + "..." + string(r[len(r)-(n-3-half):])
}

// RunScan runs a full scan, showing live progress on a terminal and plain
// status lines otherwise
func RunScan(ctx context.Context, coord *cleaner.Coordinator) (*scanner.Inventory, error) {
	var inv *scanner.Inventory
	err := runWithProgress(ctx, "🔍 Scanning", coord, func() error {
		var err error
		inv, err = coord.RunFullScan(ctx)
		return err
	})
	return inv, err
}

// RunClean cleans items with live progress, see RunScan
func RunClean(ctx context.Context, coord *cleaner.Coordinator, items []scanner.ScanItem, opts cleaner.CleanOptions) (*cleaner.CleanResult, error) {
	var res *cleaner.CleanResult
	title := fmt.Sprintf("🗑️  Cleaning (%s)", opts.Method)
	if opts.DryRun {
		title += " [dry run]"
	}
	err := runWithProgress(ctx, title, coord, func() error {
		var err error
		res, err = coord.CleanSelected(ctx, items, opts)
		return err
	})
	return res, err
}

func runWithProgress(ctx context.Context, title string, coord *cleaner.Coordinator, op func() error) error {
	updates := coord.Reporter().Subscribe()
	defer coord.Reporter().Unsubscribe(updates)

	if !reporter.IsTerminal(os.Stdout) {
		printer := NewLinePrinter(os.Stderr)
		stop := printer.Follow(updates)
		err := op()
		stop()
		return err
	}

	p := tea.NewProgram(NewProgressModel(title, updates, coord.CancelAll))
	errCh := make(chan error, 1)
	go func() {
		err := op()
		p.Send(doneMsg{})
		errCh <- err
	}()

	if _, err := p.Run(); err != nil {
		coord.CancelAll()
		<-errCh
		return fmt.Errorf("progress display failed: %w", err)
	}
	return <-errCh
}

// LinePrinter writes throttled one-line progress updates for pipes and logs
type LinePrinter struct {
	w        io.Writer
	interval time.Duration
	mu       sync.Mutex
	last     time.Time
	lastLine string
}

// NewLinePrinter prints at most one update per second plus every final state
func NewLinePrinter(w io.Writer) *LinePrinter {
	return &LinePrinter{w: w, interval: time.Second}
}

// Print writes the update unless it is a repeat or arrives too soon
func (lp *LinePrinter) Print(update interface{}) {
	var line string
	var final bool
	switch u := update.(type) {
	case *prog.ScanProgress:
		line, final = prog.FormatScanProgress(u), u.Phase != prog.PhaseScanning
	case *prog.CleanProgress:
		line, final = prog.FormatCleanProgress(u), u.Phase != prog.PhaseCleaning
	default:
		return
	}

	lp.mu.Lock()
	defer lp.mu.Unlock()

	now := time.Now()
	if line == lp.lastLine || (!final && now.Sub(lp.last) < lp.interval) {
		return
	}
	lp.last, lp.lastLine = now, line
	fmt.Fprintln(lp.w, line)
}

// Follow prints updates until the returned stop func is called
func (lp *LinePrinter) Follow(updates <-chan interface{}) (stop func()) {
	quit := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		for {
			select {
			case u, ok := <-updates:
				if !ok {
					return
				}
				lp.Print(u)
			case <-quit:
				// drain what the operation already published
				for {
					select {
					case u, ok := <-updates:
						if !ok {
							return
						}
						lp.Print(u)
					default:
						return
					}
				}
			}
		}
	}()

	return func() {
		close(quit)
		<-finished
	}
}

// PrintCleanSummary is a one-line recap used after interactive cleans
func PrintCleanSummary(w io.Writer, res *cleaner.CleanResult) {
	if res == nil {
		return
	}
	verb := "Freed"
	if res.DryRun {
		verb = "Would free"
	}
	line := fmt.Sprintf("%s %s from %d of %d files", verb, utils.FormatBytes(res.Freed), res.Cleaned, res.Selected)
	if res.Err != nil {
		fmt.Fprintln(w, styles.ErrorStyle.Render(line))
		fmt.Fprintln(w, styles.ErrorStyle.Render(res.Err.UserMessage()))
		return
	}
	fmt.Fprintln(w, styles.SuccessStyle.Render(line))
}
