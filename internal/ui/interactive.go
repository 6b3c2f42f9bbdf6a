package ui

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fenilsonani/macsweep/internal/catalog"
	"github.com/fenilsonani/macsweep/internal/cleaner"
	"github.com/fenilsonani/macsweep/internal/scanner"
	"github.com/fenilsonani/macsweep/internal/ui/styles"
)

// ErrAborted is returned when the user leaves the selector without confirming
var ErrAborted = errors.New("cleanup aborted")

// RunSelector shows the category checklist and, once confirmed, applies it to inv
func RunSelector(inv *scanner.Inventory, cat *catalog.Catalog, method cleaner.Method) error {
	p := tea.NewProgram(NewSelector(inv, cat, method), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("error running selector: %w", err)
	}

	m, ok := final.(SelectorModel)
	if !ok || !m.Confirmed() {
		return ErrAborted
	}
	m.Apply(inv)
	return nil
}

// RunInteractive scans, lets the user pick categories, then cleans them
func RunInteractive(ctx context.Context, coord *cleaner.Coordinator, cat *catalog.Catalog, opts cleaner.CleanOptions, out io.Writer) (*cleaner.CleanResult, error) {
	inv, err := RunScan(ctx, coord)
	if err != nil {
		return nil, err
	}
	if inv.TotalCount() == 0 {
		fmt.Fprintln(out, styles.SuccessStyle.Render("✓ Nothing to clean"))
		return nil, nil
	}

	if err := RunSelector(inv, cat, opts.Method); err != nil {
		return nil, err
	}

	res, err := RunClean(ctx, coord, inv.Selected(), opts)
	PrintCleanSummary(out, res)
	return res, err
}
