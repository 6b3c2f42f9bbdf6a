// Package daemon runs scheduled scans, and optionally cleans, from the
// schedules in the user's configuration.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fenilsonani/macsweep/internal/cleaner"
	"github.com/fenilsonani/macsweep/internal/config"
	"github.com/fenilsonani/macsweep/internal/history"
	"github.com/fenilsonani/macsweep/internal/logging"
	"github.com/fenilsonani/macsweep/internal/platform"
	"github.com/fenilsonani/macsweep/internal/privileged"
	"github.com/fenilsonani/macsweep/internal/scanner"
	"github.com/fenilsonani/macsweep/internal/security"
)

// ErrSkipped is returned by RunJob when a SkipIfBusy job finds another job running
var ErrSkipped = errors.New("job skipped: another job is running")

// CoordinatorFactory builds the coordinator a job runs on
type CoordinatorFactory func(job *Job) (*cleaner.Coordinator, error)

// Daemon represents the scheduling daemon
type Daemon struct {
	config    *config.Config
	info      *platform.Info
	scheduler *Scheduler
	logger    *logging.Logger
	history   *history.DB
	factory   CoordinatorFactory
	helper    *privileged.Client

	// jobMu serialises jobs; SkipIfBusy jobs give up instead of waiting
	jobMu sync.Mutex

	running     bool
	shutdownCtx context.Context
	cancelFunc  context.CancelFunc
	mu          sync.RWMutex
}

// Option configures a Daemon
type Option func(*Daemon)

// WithLogger replaces the logger built from the daemon config
func WithLogger(l *logging.Logger) Option {
	return func(d *Daemon) { d.logger = l }
}

// WithHistory records job runs and prunes old ones
func WithHistory(db *history.DB) Option {
	return func(d *Daemon) { d.history = db }
}

// WithCoordinatorFactory replaces the default coordinator wiring
func WithCoordinatorFactory(f CoordinatorFactory) Option {
	return func(d *Daemon) { d.factory = f }
}

// WithPlatformInfo sets the platform info used to build catalogs
func WithPlatformInfo(info *platform.Info) Option {
	return func(d *Daemon) { d.info = info }
}

// New creates a new daemon instance
func New(cfg *config.Config, opts ...Option) (*Daemon, error) {
	if cfg.Daemon == nil || !cfg.Daemon.Enabled {
		return nil, fmt.Errorf("daemon not enabled in configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		config:      cfg,
		shutdownCtx: ctx,
		cancelFunc:  cancel,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.logger == nil {
		logger, err := logging.New(cfg.Daemon.LogFile, cfg.Daemon.LogLevel)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		d.logger = logger
	}
	if d.info == nil {
		info, err := platform.GetInfo()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to get platform info: %w", err)
		}
		d.info = info
	}
	if d.factory == nil {
		d.factory = d.buildCoordinator
	}

	d.scheduler = NewScheduler(d, cfg.Daemon.Schedules)
	return d, nil
}

// Start runs the scheduler until Stop or a termination signal
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	d.logger.Info("Starting macsweep daemon")

	if err := d.acquireLock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer d.releaseLock()

	if err := d.writePidFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer d.removePidFile()

	stopSignals := d.setupSignalHandlers()
	defer stopSignals()

	d.prune()

	if err := d.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer d.scheduler.Stop()

	d.logger.Info("Daemon started successfully")

	<-d.shutdownCtx.Done()

	d.logger.Info("Daemon shutting down")
	d.mu.Lock()
	if d.helper != nil {
		d.helper.Close()
		d.helper = nil
	}
	d.mu.Unlock()
	return nil
}

// Stop stops the daemon and interrupts a running job between items
func (d *Daemon) Stop() {
	if d.cancelFunc != nil {
		d.cancelFunc()
	}
}

// IsRunning returns whether the daemon is running
func (d *Daemon) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// Scheduler returns the daemon's scheduler
func (d *Daemon) Scheduler() *Scheduler {
	return d.scheduler
}

// RunJob scans the job's categories and, for AutoClean jobs, cleans
// everything the scan found
func (d *Daemon) RunJob(job *Job) (*JobResult, error) {
	if job.SkipIfBusy {
		if !d.jobMu.TryLock() {
			d.logger.Warn("Skipping job %s: another job is running", job.Name)
			return nil, ErrSkipped
		}
	} else {
		d.jobMu.Lock()
	}
	defer d.jobMu.Unlock()

	d.logger.Info("Running job: %s", job.Name)
	start := time.Now()

	coord, err := d.factory(job)
	if err != nil {
		return nil, fmt.Errorf("failed to set up job: %w", err)
	}

	ctx := d.shutdownCtx
	inv, err := coord.RunFullScan(ctx)
	if err != nil {
		d.logger.Error("Scan failed for job %s: %v", job.Name, err)
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	result := &JobResult{
		Job:         job.Name,
		Items:       inv.TotalCount(),
		Reclaimable: inv.TotalSize(),
	}
	d.logger.Info("Scan completed for job %s: %d files, %d bytes", job.Name, result.Items, result.Reclaimable)

	if !job.AutoClean {
		result.Duration = time.Since(start)
		return result, nil
	}

	method, err := cleaner.ParseMethod(job.Method)
	if err != nil {
		return result, err
	}

	clean, err := coord.CleanSelected(ctx, inv.Selected(), cleaner.CleanOptions{
		Method:  method,
		Passes:  d.config.Clean.Passes,
		Timeout: d.config.Clean.Timeout,
		DryRun:  job.DryRun,
	})
	result.Clean = clean
	result.Duration = time.Since(start)
	if err != nil {
		d.logger.Error("Clean failed for job %s: %v", job.Name, err)
		return result, fmt.Errorf("clean failed: %w", err)
	}

	d.logger.Info("Job %s completed in %v: deleted %d files, freed %d bytes",
		job.Name, result.Duration, clean.Cleaned, clean.Freed)
	return result, nil
}

// buildCoordinator wires a coordinator from the daemon config for one job
func (d *Daemon) buildCoordinator(job *Job) (*cleaner.Coordinator, error) {
	cfg := *d.config
	if len(job.Categories) > 0 {
		cfg.Scan.Categories = job.Categories
	}

	cat, err := cfg.BuildCatalog(d.info)
	if err != nil {
		return nil, err
	}

	engine := scanner.NewEngine(cat,
		scanner.WithExcludes(cfg.Scan.ExcludePatterns),
		scanner.WithMinAge(cfg.MinFileAgeDuration()),
		scanner.WithMinSize(cfg.MinFileSizeBytes()),
		scanner.WithLogger(d.logger),
	)

	opts := []cleaner.Option{
		cleaner.WithLogger(d.logger),
		cleaner.WithTrash(cleaner.NewTrash(d.info.TrashDir)),
		cleaner.WithValidator(security.NewPathValidator(cfg.ProtectedPaths...)),
		cleaner.WithTrigger(history.TriggerScheduled),
		cleaner.WithSpaceProbe(cleaner.DiskFree, d.info.HomeDir),
	}
	if job.Method != "" && job.Method != string(cleaner.MethodTrash) {
		opts = append(opts, cleaner.WithHelper(d.helperClient()))
	}
	if d.history != nil {
		opts = append(opts, cleaner.WithRecorder(d.history))
	}

	return cleaner.NewCoordinator(engine, opts...), nil
}

// helperClient returns the shared helper client, creating it on first use
func (d *Daemon) helperClient() *privileged.Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.helper == nil {
		d.helper = privileged.NewClient(d.config.Helper.SocketPath,
			privileged.WithDialTimeout(d.config.Helper.DialTimeout),
			privileged.WithClientLogger(d.logger),
		)
	}
	return d.helper
}

// prune drops history older than the configured retention
func (d *Daemon) prune() {
	if d.history == nil || d.config.History.RetentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -d.config.History.RetentionDays)
	n, err := d.history.Prune(d.shutdownCtx, cutoff)
	if err != nil {
		d.logger.Warn("Failed to prune history: %v", err)
		return
	}
	if n > 0 {
		d.logger.Info("Pruned %d history entries older than %s", n, cutoff.Format(time.DateOnly))
	}
}

// setupSignalHandlers stops the daemon on SIGINT/SIGTERM and prunes history on SIGHUP
func (d *Daemon) setupSignalHandlers() func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		for sig := range sigChan {
			switch sig {
			case syscall.SIGINT, syscall.SIGTERM:
				d.logger.Info("Received shutdown signal: %v", sig)
				d.Stop()
			case syscall.SIGHUP:
				d.logger.Info("Received SIGHUP, pruning history")
				d.prune()
			}
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(sigChan)
	}
}

func (d *Daemon) pidFile() string {
	if d.config.Daemon.PidFile == "" {
		return "/var/run/macsweepd.pid"
	}
	return config.ExpandHome(d.config.Daemon.PidFile, d.info.HomeDir)
}

// acquireLock acquires the lock file
func (d *Daemon) acquireLock() error {
	lockFile := d.pidFile() + ".lock"

	file, err := os.OpenFile(lockFile, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			if !staleLock(lockFile) {
				return fmt.Errorf("daemon already running (lock file exists)")
			}
			os.Remove(lockFile)
			return d.acquireLock()
		}
		return err
	}

	_, err = fmt.Fprintf(file, "%d\n", os.Getpid())
	file.Close()
	return err
}

// staleLock reports whether the process named in a lock file is gone
func staleLock(lockFile string) bool {
	pid, err := ReadPid(lockFile)
	if err != nil {
		return true
	}
	return !ProcessAlive(pid)
}

// releaseLock releases the lock file
func (d *Daemon) releaseLock() error {
	return os.Remove(d.pidFile() + ".lock")
}

// writePidFile writes the PID file
func (d *Daemon) writePidFile() error {
	return os.WriteFile(d.pidFile(), []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}

// removePidFile removes the PID file
func (d *Daemon) removePidFile() error {
	return os.Remove(d.pidFile())
}

// ReadPid reads a PID file
func ReadPid(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// ProcessAlive reports whether a process with pid exists
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, os.ErrPermission)
}
