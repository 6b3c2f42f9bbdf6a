package daemon

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fenilsonani/macsweep/internal/cleaner"
	"github.com/fenilsonani/macsweep/internal/config"
	"github.com/fenilsonani/macsweep/internal/logging"
	"github.com/robfig/cron/v3"
)

// Job is a scheduled scan, optionally followed by a clean
type Job struct {
	Name       string
	Schedule   string
	Categories []string
	AutoClean  bool
	Method     string
	DryRun     bool
	SkipIfBusy bool
}

// JobResult summarises one job execution
type JobResult struct {
	Job         string
	Items       int
	Reclaimable int64
	Clean       *cleaner.CleanResult
	Duration    time.Duration
}

func jobFromSchedule(s config.Schedule) *Job {
	return &Job{
		Name:       s.Name,
		Schedule:   s.Schedule,
		Categories: s.Categories,
		AutoClean:  s.AutoClean,
		Method:     s.Method,
		DryRun:     s.DryRun,
		SkipIfBusy: s.SkipIfBusy,
	}
}

// Scheduler manages scheduled jobs
type Scheduler struct {
	daemon  *Daemon
	cron    *cron.Cron
	jobs    map[string]cron.EntryID
	defs    map[string]*Job
	jobsMu  sync.RWMutex
	running bool

	schedules []config.Schedule
}

// NewScheduler creates a new scheduler
func NewScheduler(daemon *Daemon, schedules []config.Schedule) *Scheduler {
	parser := cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)

	logger := cronLogger{daemon.logger}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)

	return &Scheduler{
		daemon:    daemon,
		cron:      c,
		jobs:      make(map[string]cron.EntryID),
		defs:      make(map[string]*Job),
		schedules: schedules,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	for _, schedule := range s.schedules {
		if err := s.addJobInternal(jobFromSchedule(schedule)); err != nil {
			return fmt.Errorf("failed to add schedule %s: %w", schedule.Name, err)
		}
	}

	s.cron.Start()
	s.running = true

	s.daemon.logger.Info("Scheduler started with %d jobs", len(s.jobs))
	return nil
}

// Stop stops the scheduler, waiting up to 10 seconds for running jobs
func (s *Scheduler) Stop() {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Second):
		s.daemon.logger.Warn("Scheduler stop timed out")
	}

	s.running = false
	s.daemon.logger.Info("Scheduler stopped")
}

// addJobInternal adds a job (internal, no lock)
func (s *Scheduler) addJobInternal(job *Job) error {
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %s already exists", job.Name)
	}

	id, err := s.cron.AddFunc(job.Schedule, func() {
		s.daemon.logger.Info("Executing scheduled job: %s", job.Name)
		if _, err := s.daemon.RunJob(job); err != nil && !errors.Is(err, ErrSkipped) {
			s.daemon.logger.Error("Job %s failed: %v", job.Name, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.jobs[job.Name] = id
	s.defs[job.Name] = job

	s.daemon.logger.Info("Added job: %s, next run: %v", job.Name, s.cron.Entry(id).Next)
	return nil
}

// AddJob adds a new job to the scheduler
func (s *Scheduler) AddJob(schedule config.Schedule) error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	return s.addJobInternal(jobFromSchedule(schedule))
}

// RemoveJob removes a job from the scheduler
func (s *Scheduler) RemoveJob(name string) error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	id, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	s.cron.Remove(id)
	delete(s.jobs, name)
	delete(s.defs, name)

	s.daemon.logger.Info("Removed job: %s", name)
	return nil
}

// GetNextRun returns the next run time for a job. It is zero until the scheduler starts.
func (s *Scheduler) GetNextRun(name string) (time.Time, error) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	id, exists := s.jobs[name]
	if !exists {
		return time.Time{}, fmt.Errorf("job %s not found", name)
	}
	return s.cron.Entry(id).Next, nil
}

// ListJobs returns information about all jobs, sorted by name
func (s *Scheduler) ListJobs() []JobInfo {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	jobs := make([]JobInfo, 0, len(s.jobs))
	for name, id := range s.jobs {
		entry := s.cron.Entry(id)
		jobs = append(jobs, JobInfo{
			Name:      name,
			Schedule:  s.defs[name].Schedule,
			AutoClean: s.defs[name].AutoClean,
			NextRun:   entry.Next,
			PrevRun:   entry.Prev,
		})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })

	return jobs
}

// TriggerJob runs a job now, outside its schedule
func (s *Scheduler) TriggerJob(name string) (*JobResult, error) {
	s.jobsMu.RLock()
	job, exists := s.defs[name]
	s.jobsMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}

	s.daemon.logger.Info("Manually triggering job: %s", name)
	return s.daemon.RunJob(job)
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name      string
	Schedule  string
	AutoClean bool
	NextRun   time.Time
	PrevRun   time.Time
}

// cronLogger routes cron's own messages into the daemon log
type cronLogger struct {
	l *logging.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: %s %v", msg, keysAndValues)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: %s: %v %v", msg, err, keysAndValues)
}
