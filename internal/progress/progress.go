package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/fenilsonani/macsweep/pkg/utils"
)

// Phase represents the current phase of operation
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseScanning  Phase = "scanning"
	PhaseCleaning  Phase = "cleaning"
	PhaseComplete  Phase = "complete"
	PhaseCancelled Phase = "cancelled"
	PhaseError     Phase = "error"
)

// ScanProgress represents progress during scanning
type ScanProgress struct {
	Phase           Phase
	Category        string // label of the category that just finished
	FilesFound      int
	TotalSize       int64
	CategoriesTotal int
	CategoriesDone  int
	StartTime       time.Time
	Error           error
}

// Fraction is the share of categories finished, in [0,1]
func (p *ScanProgress) Fraction() float64 {
	return fraction(p.CategoriesDone, p.CategoriesTotal, p.Phase)
}

// CleanProgress represents progress during cleanup
type CleanProgress struct {
	Phase       Phase
	Method      string
	CurrentFile string
	Processed   int
	Total       int
	FreedSize   int64
	TotalSize   int64
	StartTime   time.Time
	Error       error
}

// Fraction is the share of selected items processed, in [0,1]
func (p *CleanProgress) Fraction() float64 {
	return fraction(p.Processed, p.Total, p.Phase)
}

func fraction(done, total int, phase Phase) float64 {
	if total <= 0 {
		if phase == PhaseComplete {
			return 1
		}
		return 0
	}
	f := float64(done) / float64(total)
	if f > 1 {
		return 1
	}
	return f
}

// ProgressReporter provides thread-safe progress reporting
type ProgressReporter struct {
	scanProgress  *ScanProgress
	cleanProgress *CleanProgress
	mu            sync.RWMutex
	listeners     []chan interface{}
}

// NewProgressReporter creates a new progress reporter
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		listeners: make([]chan interface{}, 0),
	}
}

// Subscribe returns a channel that receives *ScanProgress and *CleanProgress updates.
// Slow subscribers miss intermediate updates rather than blocking the publisher.
func (pr *ProgressReporter) Subscribe() <-chan interface{} {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	ch := make(chan interface{}, 10)
	pr.listeners = append(pr.listeners, ch)
	return ch
}

// Unsubscribe closes and removes a listener channel
func (pr *ProgressReporter) Unsubscribe(ch <-chan interface{}) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	for i, listener := range pr.listeners {
		if listener == ch {
			close(listener)
			pr.listeners = append(pr.listeners[:i], pr.listeners[i+1:]...)
			return
		}
	}
}

// UpdateScanProgress updates scan progress and notifies listeners
func (pr *ProgressReporter) UpdateScanProgress(update *ScanProgress) {
	pr.mu.Lock()
	pr.scanProgress = update
	pr.mu.Unlock()
	pr.publish(update)
}

// UpdateCleanProgress updates clean progress and notifies listeners
func (pr *ProgressReporter) UpdateCleanProgress(update *CleanProgress) {
	pr.mu.Lock()
	pr.cleanProgress = update
	pr.mu.Unlock()
	pr.publish(update)
}

// publish holds the read lock while sending so Unsubscribe cannot close a
// channel mid-send
func (pr *ProgressReporter) publish(update interface{}) {
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	for _, listener := range pr.listeners {
		select {
		case listener <- update:
		default:
			// Skip if channel is full
		}
	}
}

// GetScanProgress returns the current scan progress
func (pr *ProgressReporter) GetScanProgress() *ScanProgress {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	return pr.scanProgress
}

// GetCleanProgress returns the current clean progress
func (pr *ProgressReporter) GetCleanProgress() *CleanProgress {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	return pr.cleanProgress
}

// FormatScanProgress returns a human-readable scan progress string
func FormatScanProgress(p *ScanProgress) string {
	if p == nil {
		return "Initializing..."
	}

	elapsed := time.Since(p.StartTime)

	switch p.Phase {
	case PhaseScanning:
		if p.Category == "" {
			return fmt.Sprintf("Scanning %d categories...", p.CategoriesTotal)
		}
		return fmt.Sprintf("Scanned %s (%d/%d) - %d files (%s) [%s]",
			p.Category,
			p.CategoriesDone,
			p.CategoriesTotal,
			p.FilesFound,
			utils.FormatBytes(p.TotalSize),
			FormatDuration(elapsed))
	case PhaseComplete:
		return fmt.Sprintf("Scan complete: %d files (%s) in %s",
			p.FilesFound,
			utils.FormatBytes(p.TotalSize),
			FormatDuration(elapsed))
	case PhaseCancelled:
		return fmt.Sprintf("Scan cancelled after %d/%d categories", p.CategoriesDone, p.CategoriesTotal)
	case PhaseError:
		return fmt.Sprintf("Scan error: %v", p.Error)
	default:
		return "Scanning..."
	}
}

// FormatCleanProgress returns a human-readable clean progress string
func FormatCleanProgress(p *CleanProgress) string {
	if p == nil {
		return "Preparing..."
	}

	elapsed := time.Since(p.StartTime)

	switch p.Phase {
	case PhaseCleaning:
		eta := ""
		if p.Processed > 0 && p.Total > p.Processed {
			avgTime := elapsed / time.Duration(p.Processed)
			remaining := time.Duration(p.Total-p.Processed) * avgTime
			eta = fmt.Sprintf(" ETA: %s", FormatDuration(remaining))
		}

		return fmt.Sprintf("Cleaning (%s)... %d/%d files (%d%%) - %s freed%s",
			p.Method,
			p.Processed,
			p.Total,
			int(p.Fraction()*100),
			utils.FormatBytes(p.FreedSize),
			eta)
	case PhaseComplete:
		return fmt.Sprintf("Cleanup complete: %d files deleted (%s) in %s",
			p.Processed,
			utils.FormatBytes(p.FreedSize),
			FormatDuration(elapsed))
	case PhaseCancelled:
		return fmt.Sprintf("Cleanup cancelled: %d/%d files deleted (%s)",
			p.Processed,
			p.Total,
			utils.FormatBytes(p.FreedSize))
	case PhaseError:
		return fmt.Sprintf("Cleanup stopped: %v", p.Error)
	default:
		return "Preparing cleanup..."
	}
}

// FormatDuration formats duration in human-readable format
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
