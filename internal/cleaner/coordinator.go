// Package cleaner drives a scan, then deletes the items the caller selected.
// Deletion goes to the trash or through the privileged helper and stops at
// the first failure.
package cleaner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fenilsonani/macsweep/internal/erase"
	"github.com/fenilsonani/macsweep/internal/history"
	"github.com/fenilsonani/macsweep/internal/logging"
	"github.com/fenilsonani/macsweep/internal/privileged"
	"github.com/fenilsonani/macsweep/internal/progress"
	"github.com/fenilsonani/macsweep/internal/scanner"
	"github.com/fenilsonani/macsweep/internal/security"
	"github.com/fenilsonani/macsweep/pkg/utils"
)

// ErrBusy is returned when a scan or clean is already running on the coordinator
var ErrBusy = errors.New("another scan or clean is in progress")

// Method selects how items are deleted
type Method string

const (
	MethodTrash      Method = "trash"
	MethodSecure     Method = "secure"
	MethodPrivileged Method = "privileged"
)

// ParseMethod validates a method name. An empty name means trash.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", MethodTrash:
		return MethodTrash, nil
	case MethodSecure, MethodPrivileged:
		return Method(s), nil
	default:
		return "", fmt.Errorf("unknown clean method %q (want trash, secure or privileged)", s)
	}
}

// Helper is the part of the privileged client the coordinator uses
type Helper interface {
	DeleteFile(ctx context.Context, path string) error
	SecureDelete(ctx context.Context, path string, passes int) error
}

// Recorder stores finished runs
type Recorder interface {
	RecordScan(ctx context.Context, r *history.ScanRun) (int64, error)
	RecordClean(ctx context.Context, r *history.CleanRun) (int64, error)
}

// CleanOptions control one CleanSelected call
type CleanOptions struct {
	Method Method
	// Passes is the overwrite count for MethodSecure; 0 means erase.DefaultPasses
	Passes int
	// Timeout bounds each helper call; 0 means no limit
	Timeout time.Duration
	DryRun  bool
}

// CleanResult reports what a clean did. When it stopped on a failure, Failed
// and Err name the item and cause and Remaining lists the selected items
// that were never attempted.
type CleanResult struct {
	Method     Method
	DryRun     bool
	Selected   int
	Cleaned    int
	Freed      int64
	Deleted    []string
	Failed     *scanner.ScanItem
	Err        *CleanError
	Remaining  []scanner.ScanItem
	Cancelled  bool
	FreeBefore uint64
	FreeAfter  uint64
	Duration   time.Duration
	Manifest   *DeletionManifest
}

// Coordinator owns the session shared by a scan and the clean that follows it
type Coordinator struct {
	engine      *scanner.Engine
	helper      Helper
	trash       *Trash
	validator   *security.PathValidator
	recorder    Recorder
	reporter    *progress.ProgressReporter
	logger      *logging.Logger
	freeSpace   SpaceProbe
	spacePath   string
	trigger     history.Trigger
	retryDelays []time.Duration

	session Session
	running chan struct{}
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithHelper routes secure and privileged deletions through h
func WithHelper(h Helper) Option {
	return func(c *Coordinator) { c.helper = h }
}

// WithTrash sets the trash used by MethodTrash
func WithTrash(t *Trash) Option {
	return func(c *Coordinator) { c.trash = t }
}

// WithValidator sets the path validator applied before local deletion
func WithValidator(v *security.PathValidator) Option {
	return func(c *Coordinator) { c.validator = v }
}

// WithRecorder records every finished scan and clean
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithReporter publishes progress to r
func WithReporter(r *progress.ProgressReporter) Option {
	return func(c *Coordinator) { c.reporter = r }
}

// WithLogger sets the coordinator logger
func WithLogger(l *logging.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithSpaceProbe measures free space on the volume holding path before and after a clean
func WithSpaceProbe(probe SpaceProbe, path string) Option {
	return func(c *Coordinator) {
		c.freeSpace = probe
		c.spacePath = path
	}
}

// WithTrigger tags recorded runs
func WithTrigger(t history.Trigger) Option {
	return func(c *Coordinator) { c.trigger = t }
}

// WithRetryDelays sets the waits between attempts when a file is busy
func WithRetryDelays(delays ...time.Duration) Option {
	return func(c *Coordinator) { c.retryDelays = delays }
}

// NewCoordinator creates a coordinator scanning with engine
func NewCoordinator(engine *scanner.Engine, opts ...Option) *Coordinator {
	c := &Coordinator{
		engine:      engine,
		validator:   security.NewPathValidator(),
		reporter:    progress.NewProgressReporter(),
		logger:      logging.Nop(),
		trigger:     history.TriggerManual,
		retryDelays: []time.Duration{100 * time.Millisecond, 500 * time.Millisecond},
		running:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the live session state
func (c *Coordinator) Session() *Session {
	return &c.session
}

// Reporter returns the progress reporter the coordinator publishes to
func (c *Coordinator) Reporter() *progress.ProgressReporter {
	return c.reporter
}

// CancelAll stops the running scan or clean at the next item boundary.
// A cancelled run returns what it finished without an error.
func (c *Coordinator) CancelAll() {
	if c.session.Cancel() {
		c.logger.Info("cancellation requested")
	}
}

func (c *Coordinator) acquire() bool {
	select {
	case c.running <- struct{}{}:
		return true
	default:
		return false
	}
}

func (c *Coordinator) release() {
	<-c.running
}

// RunFullScan scans every category concurrently and advances the session by
// one category's share as each finishes. After CancelAll it returns the
// categories that had completed; if ctx is cancelled it returns ctx.Err().
func (c *Coordinator) RunFullScan(ctx context.Context) (*scanner.Inventory, error) {
	if !c.acquire() {
		return nil, ErrBusy
	}
	defer c.release()

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	total := c.engine.Categories()
	start := time.Now()
	c.session.begin(progress.PhaseScanning, total, fmt.Sprintf("Scanning %d categories", total), cancel)
	sp := progress.ScanProgress{Phase: progress.PhaseScanning, CategoriesTotal: total, StartTime: start}
	c.reporter.UpdateScanProgress(&sp)

	var results []scanner.CategoryResult
	for res := range c.engine.Stream(scanCtx) {
		if res.Err != nil {
			// interrupted by cancellation, nothing usable
			continue
		}
		results = append(results, res)

		state := c.session.advance(fmt.Sprintf("Scanned %s", res.Label))
		sp.Category = res.Label
		sp.CategoriesDone = state.Processed
		sp.FilesFound += len(res.Items)
		sp.TotalSize += res.TotalSize
		snapshot := sp
		c.reporter.UpdateScanProgress(&snapshot)

		if state.Cancelled {
			break
		}
	}
	cancel()

	if err := ctx.Err(); err != nil {
		c.session.finish(progress.PhaseError, "Scan aborted")
		sp.Phase, sp.Error = progress.PhaseError, err
		c.reporter.UpdateScanProgress(&sp)
		return nil, err
	}

	inv := scanner.Aggregate(results)
	status := history.StatusCompleted
	if c.session.Cancelled() {
		status = history.StatusCancelled
		c.session.finish(progress.PhaseCancelled, "Scan cancelled")
		sp.Phase = progress.PhaseCancelled
	} else {
		c.session.finish(progress.PhaseComplete, fmt.Sprintf("Found %d items (%s)",
			inv.TotalCount(), utils.FormatBytes(inv.TotalSize())))
		sp.Phase = progress.PhaseComplete
	}
	sp.FilesFound, sp.TotalSize = inv.TotalCount(), inv.TotalSize()
	c.reporter.UpdateScanProgress(&sp)

	c.logger.Info("scan %s: %d items, %s in %v", status, inv.TotalCount(),
		utils.FormatBytes(inv.TotalSize()), time.Since(start).Round(time.Millisecond))

	if c.recorder != nil {
		run := &history.ScanRun{
			Trigger:     c.trigger,
			Status:      status,
			StartedAt:   start,
			CompletedAt: time.Now(),
			Categories:  len(inv.Categories),
			Items:       inv.TotalCount(),
			TotalBytes:  inv.TotalSize(),
		}
		if _, err := c.recorder.RecordScan(context.WithoutCancel(ctx), run); err != nil {
			c.logger.Warn("failed to record scan: %v", err)
		}
	}

	return inv, nil
}

// CleanSelected deletes the selected items in order and stops at the first
// failure. The returned error is the *CleanError also stored in the result;
// errors before any deletion starts come back with a nil result.
// Each item finishes or fails as a whole: cancellation is checked between items.
func (c *Coordinator) CleanSelected(ctx context.Context, items []scanner.ScanItem, opts CleanOptions) (*CleanResult, error) {
	method, err := ParseMethod(string(opts.Method))
	if err != nil {
		return nil, err
	}
	passes := opts.Passes
	if passes == 0 {
		passes = erase.DefaultPasses
	}
	if passes < 0 {
		return nil, fmt.Errorf("%w: %d", erase.ErrInvalidPasses, passes)
	}
	if method != MethodTrash && c.helper == nil {
		return nil, &CleanError{Kind: ErrorWorkerNotInstalled, Err: privileged.ErrWorkerNotInstalled}
	}
	if method == MethodTrash && c.trash == nil {
		return nil, errors.New("no trash directory configured")
	}

	if !c.acquire() {
		return nil, ErrBusy
	}
	defer c.release()

	var selected []scanner.ScanItem
	for _, item := range items {
		if item.Selected {
			selected = append(selected, item)
		}
	}

	start := time.Now()
	result := &CleanResult{
		Method:   method,
		DryRun:   opts.DryRun,
		Selected: len(selected),
		Manifest: NewDeletionManifest(),
	}
	result.FreeBefore = c.probeFree(ctx)

	c.session.begin(progress.PhaseCleaning, len(selected), fmt.Sprintf("Cleaning %d items", len(selected)), nil)
	cp := progress.CleanProgress{
		Phase:     progress.PhaseCleaning,
		Method:    string(method),
		Total:     len(selected),
		StartTime: start,
	}
	for _, item := range selected {
		cp.TotalSize += item.Size
	}
	c.publishClean(cp)

	for i, item := range selected {
		if c.session.Cancelled() || ctx.Err() != nil {
			result.Cancelled = true
			result.Remaining = selected[i:]
			break
		}

		c.session.setStatus(fmt.Sprintf("Deleting %s", filepath.Base(item.Path)))
		cp.CurrentFile = item.Path
		c.publishClean(cp)

		if err := c.deleteItem(ctx, item, method, passes, opts); err != nil {
			failed := item
			result.Failed = &failed
			result.Err = CategorizeError(item.Path, err)
			result.Remaining = selected[i+1:]
			c.logger.Error("clean stopped at %s: %v", item.Path, err)
			break
		}

		result.Cleaned++
		result.Freed += item.Size
		result.Deleted = append(result.Deleted, item.Path)
		result.Manifest.Add(item.Path, item.Size, item.Category)

		state := c.session.advance(fmt.Sprintf("Deleted %s", filepath.Base(item.Path)))
		cp.Processed = state.Processed
		cp.FreedSize = result.Freed
		c.publishClean(cp)
	}

	result.FreeAfter = c.probeFree(ctx)
	result.Duration = time.Since(start)

	status := history.StatusCompleted
	cp.CurrentFile = ""
	switch {
	case result.Err != nil:
		status = history.StatusFailed
		c.session.finish(progress.PhaseError, result.Err.UserMessage())
		cp.Phase, cp.Error = progress.PhaseError, result.Err
	case result.Cancelled:
		status = history.StatusCancelled
		c.session.finish(progress.PhaseCancelled, fmt.Sprintf("Cancelled after %d of %d items", result.Cleaned, result.Selected))
		cp.Phase = progress.PhaseCancelled
	default:
		c.session.finish(progress.PhaseComplete, fmt.Sprintf("Freed %s", utils.FormatBytes(result.Freed)))
		cp.Phase = progress.PhaseComplete
	}
	c.publishClean(cp)

	c.logger.Info("clean %s (%s): %d/%d items, %s freed", status, method,
		result.Cleaned, result.Selected, utils.FormatBytes(result.Freed))
	c.record(ctx, result, status, start)

	if result.Err != nil {
		return result, result.Err
	}
	return result, nil
}

// deleteItem removes one item. Helper calls ignore caller cancellation so an
// overwrite in flight is never abandoned half way.
func (c *Coordinator) deleteItem(ctx context.Context, item scanner.ScanItem, method Method, passes int, opts CleanOptions) error {
	if opts.DryRun {
		if err := c.validator.ValidatePathForDeletion(item.Path); err != nil {
			return err
		}
		return checkDeletable(item.Path)
	}

	if method == MethodTrash {
		return c.trashWithRetry(item.Path)
	}

	callCtx := context.WithoutCancel(ctx)
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, opts.Timeout)
		defer cancel()
	}

	if method == MethodSecure {
		return c.helper.SecureDelete(callCtx, item.Path, passes)
	}
	return c.helper.DeleteFile(callCtx, item.Path)
}

// trashWithRetry moves path to the trash, retrying while the file is busy
func (c *Coordinator) trashWithRetry(path string) error {
	var lastErr error
	for attempt := 0; attempt <= len(c.retryDelays); attempt++ {
		if attempt > 0 {
			time.Sleep(c.retryDelays[attempt-1])
		}

		lastErr = c.trashOnce(path)
		if lastErr == nil {
			return nil
		}
		if ce := CategorizeError(path, lastErr); !ce.Retryable {
			return lastErr
		}
		c.logger.Debug("%s is busy, retrying", path)
	}
	return lastErr
}

func (c *Coordinator) trashOnce(path string) error {
	if err := c.validator.ValidatePathForDeletion(path); err != nil {
		return err
	}
	if err := checkDeletable(path); err != nil {
		return err
	}
	_, err := c.trash.Put(path)
	return err
}

func (c *Coordinator) publishClean(cp progress.CleanProgress) {
	c.reporter.UpdateCleanProgress(&cp)
}

func (c *Coordinator) probeFree(ctx context.Context) uint64 {
	if c.freeSpace == nil || c.spacePath == "" {
		return 0
	}
	free, err := c.freeSpace(ctx, c.spacePath)
	if err != nil {
		c.logger.Debug("free space probe failed: %v", err)
		return 0
	}
	return free
}

func (c *Coordinator) record(ctx context.Context, result *CleanResult, status history.Status, start time.Time) {
	if c.recorder == nil {
		return
	}

	run := &history.CleanRun{
		Trigger:     c.trigger,
		Method:      string(result.Method),
		Status:      status,
		DryRun:      result.DryRun,
		StartedAt:   start,
		CompletedAt: time.Now(),
		Selected:    result.Selected,
		Cleaned:     result.Cleaned,
		FreedBytes:  result.Freed,
		FreeBefore:  int64(result.FreeBefore),
		FreeAfter:   int64(result.FreeAfter),
	}
	if result.Err != nil {
		run.FailedPath = result.Err.Path
		run.ErrorMessage = result.Err.Error()
	}
	if _, err := c.recorder.RecordClean(context.WithoutCancel(ctx), run); err != nil {
		c.logger.Warn("failed to record clean: %v", err)
	}
}
