package daemon

import (
	"testing"

	"github.com/fenilsonani/macsweep/internal/config"
	"github.com/fenilsonani/macsweep/internal/testutil"
)

// =============================================================================
// Scheduler Tests
// =============================================================================

func TestSchedulerStartListsJobs(t *testing.T) {
	f := testutil.NewFixture(t)
	d := newTestDaemon(t, f, testConfig(f,
		config.Schedule{Name: "weekly", Schedule: "0 9 * * 1"},
		config.Schedule{Name: "nightly", Schedule: "0 3 * * *", AutoClean: true},
	))

	s := d.Scheduler()
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if err := s.Start(); err == nil {
		t.Error("second Start() should fail")
	}

	jobs := s.ListJobs()
	if len(jobs) != 2 {
		t.Fatalf("ListJobs() = %d jobs, want 2", len(jobs))
	}
	if jobs[0].Name != "nightly" || !jobs[0].AutoClean || jobs[1].Name != "weekly" {
		t.Errorf("ListJobs() = %+v", jobs)
	}

	next, err := s.GetNextRun("nightly")
	if err != nil || next.IsZero() {
		t.Errorf("GetNextRun() = %v, %v", next, err)
	}
	if next.Hour() != 3 || next.Minute() != 0 {
		t.Errorf("next nightly run at %v, want 03:00", next)
	}
}

func TestSchedulerInvalidSchedule(t *testing.T) {
	f := testutil.NewFixture(t)
	d := newTestDaemon(t, f, testConfig(f, config.Schedule{Name: "bad", Schedule: "whenever"}))

	if err := d.Scheduler().Start(); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestSchedulerAddRemove(t *testing.T) {
	f := testutil.NewFixture(t)
	d := newTestDaemon(t, f, testConfig(f))
	s := d.Scheduler()

	if err := s.AddJob(config.Schedule{Name: "hourly", Schedule: "@hourly"}); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}
	if err := s.AddJob(config.Schedule{Name: "hourly", Schedule: "@daily"}); err == nil {
		t.Error("duplicate AddJob() should fail")
	}

	if err := s.RemoveJob("hourly"); err != nil {
		t.Errorf("RemoveJob() error = %v", err)
	}
	if err := s.RemoveJob("hourly"); err == nil {
		t.Error("RemoveJob() of a missing job should fail")
	}
	if _, err := s.GetNextRun("hourly"); err == nil {
		t.Error("GetNextRun() of a removed job should fail")
	}
}

func TestTriggerJob(t *testing.T) {
	f := testutil.NewFixture(t)
	cache := f.CreateCacheFile("blob", 64)

	d := newTestDaemon(t, f, testConfig(f))
	s := d.Scheduler()
	s.AddJob(config.Schedule{
		Name:       "manual",
		Schedule:   "@daily",
		Categories: []string{"user_caches"},
		AutoClean:  true,
	})

	res, err := s.TriggerJob("manual")
	if err != nil {
		t.Fatalf("TriggerJob() error = %v", err)
	}
	if res.Clean == nil || res.Clean.Freed != 64 {
		t.Errorf("TriggerJob() result = %+v", res)
	}
	f.AssertFileNotExists(cache)

	if _, err := s.TriggerJob("missing"); err == nil {
		t.Error("TriggerJob() of an unknown job should fail")
	}
}
