package ui

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fenilsonani/macsweep/internal/catalog"
	"github.com/fenilsonani/macsweep/internal/cleaner"
	prog "github.com/fenilsonani/macsweep/internal/progress"
	"github.com/fenilsonani/macsweep/internal/scanner"
	"github.com/fenilsonani/macsweep/internal/testutil"
	"github.com/fenilsonani/macsweep/internal/ui/styles"
)

func testInventory() (*scanner.Inventory, *catalog.Catalog) {
	cat := &catalog.Catalog{Categories: []catalog.Category{
		{Name: "caches", Label: "User Cache", Type: catalog.TypeCache},
		{Name: "downloads", Label: "Old Downloads", Type: catalog.TypeDownload},
		{Name: "logs", Label: "User Logs", Type: catalog.TypeLog},
	}}
	inv := &scanner.Inventory{Categories: []scanner.CategoryResult{
		{Name: "caches", Label: "User Cache", TotalSize: 300, Items: []scanner.ScanItem{
			{Path: "/c/a", Size: 100, Category: "caches", Selected: true},
			{Path: "/c/b", Size: 200, Category: "caches", Selected: true, RequiresPrivileges: true},
		}},
		{Name: "downloads", Label: "Old Downloads", TotalSize: 50, Items: []scanner.ScanItem{
			{Path: "/d/setup.dmg", Size: 50, Category: "downloads", Selected: true},
		}},
		{Name: "logs", Label: "User Logs"},
	}}
	return inv, cat
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m SelectorModel, keys ...string) (SelectorModel, tea.Cmd) {
	var cmd tea.Cmd
	var next tea.Model = m
	for _, k := range keys {
		next, cmd = next.(SelectorModel).Update(key(k))
	}
	return next.(SelectorModel), cmd
}

// =============================================================================
// Selector Tests
// =============================================================================

func TestNewSelectorDefaults(t *testing.T) {
	inv, cat := testInventory()
	m := NewSelector(inv, cat, cleaner.MethodTrash)

	rows := m.Rows()
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2 (empty categories hidden)", len(rows))
	}
	if !rows[0].Selected || !rows[0].Privileged || rows[0].Safety != styles.SafetySafe {
		t.Errorf("caches row = %+v", rows[0])
	}
	if rows[1].Selected || rows[1].Safety != styles.SafetyRisky {
		t.Errorf("downloads row should start unchecked: %+v", rows[1])
	}
	if n, size := m.SelectedSize(); n != 2 || size != 300 {
		t.Errorf("SelectedSize() = %d, %d", n, size)
	}
}

func TestSelectorToggleAndBulk(t *testing.T) {
	inv, cat := testInventory()
	m := NewSelector(inv, cat, cleaner.MethodTrash)

	m, _ = press(m, "j", "space")
	if !m.Rows()[1].Selected {
		t.Error("space should toggle the row under the cursor")
	}

	m, _ = press(m, "n")
	if n, _ := m.SelectedSize(); n != 0 {
		t.Errorf("after 'n' selected = %d", n)
	}

	m, _ = press(m, "a")
	if n, size := m.SelectedSize(); n != 3 || size != 350 {
		t.Errorf("after 'a' selected = %d, %d", n, size)
	}

	// cursor is clamped
	m, _ = press(m, "j", "j", "j", "x")
	if m.Rows()[1].Selected {
		t.Error("x should toggle the last row")
	}
}

func TestSelectorConfirmFlow(t *testing.T) {
	inv, cat := testInventory()
	m := NewSelector(inv, cat, cleaner.MethodSecure)

	m, _ = press(m, "enter")
	if !m.confirming {
		t.Fatal("enter should open the confirmation")
	}
	if !strings.Contains(m.View(), "cannot be undone") {
		t.Errorf("secure confirmation should warn:\n%s", m.View())
	}

	m, _ = press(m, "n")
	if m.confirming || m.Confirmed() {
		t.Error("n should return to the checklist")
	}

	m, cmd := press(m, "enter", "y")
	if !m.Confirmed() || cmd == nil {
		t.Error("y should confirm and quit")
	}

	m.Apply(inv)
	sel := inv.Selected()
	if len(sel) != 2 || sel[0].Path != "/c/a" {
		t.Errorf("Selected() after Apply = %+v", sel)
	}
}

func TestSelectorEnterWithNothingSelected(t *testing.T) {
	inv, cat := testInventory()
	m := NewSelector(inv, cat, cleaner.MethodTrash)

	m, _ = press(m, "n", "enter")
	if m.confirming {
		t.Error("confirmation should not open with nothing selected")
	}
}

func TestSelectorQuit(t *testing.T) {
	inv, cat := testInventory()
	m, cmd := press(NewSelector(inv, cat, cleaner.MethodTrash), "q")
	if cmd == nil || m.Confirmed() {
		t.Error("q should quit without confirming")
	}
}

func TestSelectorView(t *testing.T) {
	inv, cat := testInventory()
	view := NewSelector(inv, cat, cleaner.MethodTrash).View()

	for _, want := range []string{"User Cache", "Old Downloads", "SAFE", "RISKY", "admin", "method: trash"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "User Logs") {
		t.Error("empty categories should not be listed")
	}
}

// =============================================================================
// Progress Model Tests
// =============================================================================

func TestProgressModelUpdates(t *testing.T) {
	ch := make(chan interface{}, 1)
	cancelled := 0
	m := NewProgressModel("Scanning", ch, func() { cancelled++ })

	next, cmd := m.Update(updateMsg{&prog.ScanProgress{
		Phase: prog.PhaseScanning, Category: "User Cache", CategoriesDone: 1, CategoriesTotal: 2, StartTime: time.Now(),
	}})
	m = next.(ProgressModel)
	if cmd == nil {
		t.Error("model should keep listening after an update")
	}
	if m.fraction() != 0.5 || !strings.Contains(m.View(), "User Cache") {
		t.Errorf("fraction = %v, view:\n%s", m.fraction(), m.View())
	}

	next, _ = m.Update(updateMsg{&prog.CleanProgress{Phase: prog.PhaseCleaning, Method: "trash", CurrentFile: "/tmp/x", Processed: 1, Total: 4}})
	m = next.(ProgressModel)
	if m.fraction() != 0.25 || !strings.Contains(m.View(), "/tmp/x") {
		t.Errorf("clean fraction = %v, view:\n%s", m.fraction(), m.View())
	}

	for i := 0; i < 2; i++ {
		next, _ = m.Update(key("ctrl+c"))
		m = next.(ProgressModel)
	}
	if cancelled != 1 || !strings.Contains(m.View(), "Cancelling") {
		t.Errorf("cancel called %d times", cancelled)
	}

	next, cmd = m.Update(doneMsg{})
	if !next.(ProgressModel).done || cmd == nil {
		t.Error("doneMsg should quit")
	}
}

func TestWaitForUpdateClosed(t *testing.T) {
	ch := make(chan interface{})
	close(ch)
	if _, ok := waitForUpdate(ch)().(closedMsg); !ok {
		t.Error("closed channel should yield closedMsg")
	}
}

func TestTruncateMiddle(t *testing.T) {
	if got := truncateMiddle("short", 10); got != "short" {
		t.Errorf("truncateMiddle() = %q", got)
	}
	got := truncateMiddle("/Users/me/Library/Caches/com.example/blob", 20)
	if len([]rune(got)) != 20 || !strings.Contains(got, "...") || !strings.HasSuffix(got, "blob") {
		t.Errorf("truncateMiddle() = %q", got)
	}
}

// =============================================================================
// Line Printer Tests
// =============================================================================

func TestLinePrinterThrottles(t *testing.T) {
	var buf bytes.Buffer
	lp := NewLinePrinter(&buf)

	start := time.Now()
	lp.Print(&prog.CleanProgress{Phase: prog.PhaseCleaning, Method: "trash", Processed: 1, Total: 3, StartTime: start})
	lp.Print(&prog.CleanProgress{Phase: prog.PhaseCleaning, Method: "trash", Processed: 2, Total: 3, StartTime: start})
	lp.Print(&prog.CleanProgress{Phase: prog.PhaseComplete, Processed: 3, Total: 3, StartTime: start})
	lp.Print("ignored")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("printed %d lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "Cleanup complete") {
		t.Errorf("final state not printed: %q", lines[1])
	}
}

func TestRunScanWithoutTerminal(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateCacheFile("com.app/blob", 128)

	cat := &catalog.Catalog{Categories: []catalog.Category{
		{Name: "caches", Label: "User Cache", Type: catalog.TypeCache, Roots: []string{f.CachesDir}},
	}}
	coord := cleaner.NewCoordinator(scanner.NewEngine(cat), cleaner.WithTrash(cleaner.NewTrash(f.TrashDir)))

	inv, err := RunScan(context.Background(), coord)
	if err != nil {
		t.Fatalf("RunScan() error = %v", err)
	}
	if inv.TotalCount() != 1 || inv.TotalSize() != 128 {
		t.Errorf("inventory = %d items, %d bytes", inv.TotalCount(), inv.TotalSize())
	}

	res, err := RunClean(context.Background(), coord, inv.Selected(), cleaner.CleanOptions{Method: cleaner.MethodTrash, DryRun: true})
	if err != nil || res.Cleaned != 1 {
		t.Errorf("RunClean() = %+v, %v", res, err)
	}

	var buf bytes.Buffer
	PrintCleanSummary(&buf, res)
	if !strings.Contains(buf.String(), "Would free 128 B") {
		t.Errorf("summary = %q", buf.String())
	}
}
