package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fenilsonani/macsweep/internal/daemon"
	"github.com/fenilsonani/macsweep/internal/reporter"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	pruneDays    int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past clean runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := formatFlag(cmd)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if a.history == nil {
			return errors.New("history is disabled (set history.path in the config)")
		}

		ctx := cmd.Context()
		if pruneDays > 0 {
			n, err := a.history.Prune(ctx, time.Now().AddDate(0, 0, -pruneDays))
			if err != nil {
				return fmt.Errorf("failed to prune history: %w", err)
			}
			fmt.Printf("Pruned %d entries\n", n)
		}

		runs, err := a.history.ListCleanRuns(ctx, historyLimit)
		if err != nil {
			return err
		}
		freed, err := a.history.TotalFreed(ctx)
		if err != nil {
			return err
		}
		return reporter.New(os.Stdout, format).ReportHistory(runs, freed)
	},
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run or inspect scheduled scans",
}

var daemonRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, d, err := newDaemon()
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Printf("Starting macsweep daemon with %d schedules...\n", len(a.cfg.Daemon.Schedules))
		return d.Start()
	},
}

var daemonListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured schedules and their next run",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, d, err := newDaemon()
		if err != nil {
			return err
		}
		defer a.Close()

		s := d.Scheduler()
		if err := s.Start(); err != nil {
			return err
		}
		jobs := s.ListJobs()
		s.Stop()

		if len(jobs) == 0 {
			fmt.Println("No schedules configured")
			return nil
		}
		fmt.Printf("%-20s %-20s %-6s %s\n", "Name", "Schedule", "Clean", "Next run")
		for _, j := range jobs {
			clean := "no"
			if j.AutoClean {
				clean = "yes"
			}
			fmt.Printf("%-20s %-20s %-6s %s\n", j.Name, j.Schedule, clean, j.NextRun.Format(time.DateTime))
		}
		return nil
	},
}

var daemonTriggerCmd = &cobra.Command{
	Use:   "trigger NAME",
	Short: "Run a schedule now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, d, err := newDaemon()
		if err != nil {
			return err
		}
		defer a.Close()

		s := d.Scheduler()
		if err := s.Start(); err != nil {
			return err
		}
		defer s.Stop()

		res, err := s.TriggerJob(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Job %s: %d items reclaimable in %v\n", res.Job, res.Items, res.Duration.Round(time.Millisecond))
		if res.Clean != nil {
			return reporter.New(os.Stdout, reporter.FormatSummary).ReportClean(res.Clean)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
	historyCmd.Flags().IntVar(&pruneDays, "prune", 0, "first delete entries older than this many days")
	historyCmd.Flags().String("format", "table", "output format (table, json, yaml)")

	daemonCmd.AddCommand(daemonRunCmd)
	daemonCmd.AddCommand(daemonListCmd)
	daemonCmd.AddCommand(daemonTriggerCmd)
}

// newDaemon builds a daemon sharing the app's logger and history
func newDaemon() (*app, *daemon.Daemon, error) {
	a, err := newApp()
	if err != nil {
		return nil, nil, err
	}
	if a.cfg.Daemon == nil || !a.cfg.Daemon.Enabled {
		a.Close()
		return nil, nil, errors.New(`daemon not enabled in configuration; add:
daemon:
  enabled: true
  schedules:
    - name: daily
      schedule: "0 2 * * *"`)
	}

	opts := []daemon.Option{
		daemon.WithLogger(a.logger),
		daemon.WithPlatformInfo(a.info),
	}
	if a.history != nil {
		opts = append(opts, daemon.WithHistory(a.history))
	}

	d, err := daemon.New(a.cfg, opts...)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, d, nil
}
