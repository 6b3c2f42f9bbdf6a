package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fenilsonani/macsweep/internal/cleaner"
	"github.com/fenilsonani/macsweep/internal/config"
	"github.com/fenilsonani/macsweep/internal/erase"
	"github.com/fenilsonani/macsweep/internal/reporter"
	"github.com/fenilsonani/macsweep/internal/scanner"
	"github.com/fenilsonani/macsweep/internal/ui"
	"github.com/fenilsonani/macsweep/pkg/utils"
	"github.com/spf13/cobra"
)

var (
	outputFile  string
	saveSession bool

	cleanMethod  string
	cleanPasses  int
	cleanPreset  string
	cleanTimeout time.Duration
	dryRun       bool
	force        bool
	sessionID    string
	manifestPath string
	interactive  bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the system for reclaimable files",
	Long:  `Scans every catalog category concurrently and reports what can be cleaned without making any changes.`,
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

		coord, _, err := a.coordinator()
		if err != nil {
			return err
		}

		inv, err := ui.RunScan(cmd.Context(), coord)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		if saveSession {
			sm, err := config.NewSessionManager()
			if err != nil {
				return err
			}
			session := &config.Session{Inventory: inv}
			if err := sm.Save(session); err != nil {
				return fmt.Errorf("failed to save session: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Session saved: %s\n", session.ID)
		}

		if outputFile != "" {
			if err := reporter.SaveToFile(inv, outputFile, format); err != nil {
				return fmt.Errorf("failed to save report: %w", err)
			}
			fmt.Printf("Report saved to: %s\n", outputFile)
			return nil
		}

		return reporter.New(os.Stdout, format).Report(inv)
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove reclaimable files",
	Long: `Scans (or loads a saved session), then removes the selected files in order.
Cleaning stops at the first failure and reports the files left untouched.

Methods:
  trash       move files to ~/.Trash (default)
  secure      overwrite files in place, then unlink them (via the helper)
  privileged  remove files with the helper's privileges`,
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

		opts, err := cleanOptions(cmd, a.cfg)
		if err != nil {
			return err
		}

		coord, cat, err := a.coordinator()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if interactive {
			res, err := ui.RunInteractive(ctx, coord, cat, opts, os.Stdout)
			if errors.Is(err, ui.ErrAborted) {
				fmt.Println("Cleanup cancelled")
				return nil
			}
			if err != nil {
				return err
			}
			return saveManifest(res)
		}

		inv, err := loadInventory(cmd, coord)
		if err != nil {
			return err
		}

		items := inv.Selected()
		if len(items) == 0 {
			fmt.Println("\n✨ Nothing to clean. Your system is already tidy!")
			return nil
		}

		if err := reporter.New(os.Stdout, reporter.FormatSummary).Report(inv); err != nil {
			return err
		}

		preflight(items, opts)

		if !force && !opts.DryRun && !confirm(fmt.Sprintf("\nClean %d files using %s? (y/N): ", len(items), opts.Method)) {
			fmt.Println("Cleanup cancelled")
			return nil
		}

		res, cleanErr := ui.RunClean(ctx, coord, items, opts)
		if res == nil {
			return cleanErr
		}

		if err := reporter.New(os.Stdout, format).ReportClean(res); err != nil {
			return err
		}
		if err := saveManifest(res); err != nil {
			return err
		}
		if cleanErr != nil {
			return fmt.Errorf("clean stopped after %d of %d files", res.Cleaned, res.Selected)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().String("format", "summary", "output format (summary, table, json, yaml)")
	scanCmd.Flags().StringVarP(&outputFile, "output", "o", "", "save report to file")
	scanCmd.Flags().BoolVar(&saveSession, "save", false, "save the inventory as a session for a later clean")
	scanCmd.Flags().StringSliceVarP(&categories, "category", "c", nil, "scan only these categories")

	cleanCmd.Flags().String("format", "summary", "result format (summary, json, yaml)")
	cleanCmd.Flags().StringVarP(&cleanMethod, "method", "m", "", "deletion method (trash, secure, privileged)")
	cleanCmd.Flags().IntVar(&cleanPasses, "passes", 0, "overwrite passes for secure erase")
	cleanCmd.Flags().StringVar(&cleanPreset, "preset", "", "secure erase preset (quick, dod, gutmann)")
	cleanCmd.Flags().DurationVar(&cleanTimeout, "timeout", 0, "per-file timeout for helper calls")
	cleanCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be deleted without deleting")
	cleanCmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation prompts")
	cleanCmd.Flags().StringVar(&sessionID, "session", "", "clean a saved session (id or \"latest\") instead of rescanning")
	cleanCmd.Flags().StringVar(&manifestPath, "manifest", "", "write a manifest of deleted files")
	cleanCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "pick categories interactively")
	cleanCmd.Flags().StringSliceVarP(&categories, "category", "c", nil, "clean only these categories")
	cleanCmd.MarkFlagsMutuallyExclusive("passes", "preset")
	cleanCmd.MarkFlagsMutuallyExclusive("session", "interactive")
}

// cleanOptions merges config defaults with flags
func cleanOptions(cmd *cobra.Command, cfg *config.Config) (cleaner.CleanOptions, error) {
	method := cfg.Clean.Method
	if cmd.Flags().Changed("method") {
		method = cleanMethod
	}
	m, err := cleaner.ParseMethod(method)
	if err != nil {
		return cleaner.CleanOptions{}, err
	}

	opts := cleaner.CleanOptions{
		Method:  m,
		Passes:  cfg.Clean.Passes,
		Timeout: cfg.Clean.Timeout,
		DryRun:  cfg.Clean.DryRun,
	}

	switch {
	case cmd.Flags().Changed("passes"):
		if cleanPasses < 1 {
			return opts, erase.ErrInvalidPasses
		}
		opts.Passes = cleanPasses
	case cmd.Flags().Changed("preset"):
		if opts.Passes, err = erase.PresetPasses(cleanPreset); err != nil {
			return opts, err
		}
	}
	if cmd.Flags().Changed("timeout") {
		opts.Timeout = cleanTimeout
	}
	if cmd.Flags().Changed("dry-run") {
		opts.DryRun = dryRun
	}
	return opts, nil
}

func loadInventory(cmd *cobra.Command, coord *cleaner.Coordinator) (*scanner.Inventory, error) {
	if sessionID == "" {
		inv, err := ui.RunScan(cmd.Context(), coord)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		return inv, nil
	}

	sm, err := config.NewSessionManager()
	if err != nil {
		return nil, err
	}

	var session *config.Session
	if sessionID == "latest" {
		session, err = sm.GetLatest()
	} else {
		session, err = sm.Load(sessionID)
	}
	if err != nil {
		return nil, err
	}
	if session.Inventory == nil {
		return nil, fmt.Errorf("session %s has no inventory", session.ID)
	}

	fmt.Fprintf(os.Stderr, "Using session %s from %s\n", session.ID, session.Timestamp.Format(time.DateTime))
	return session.Inventory, nil
}

// preflight warns about items the chosen method is likely to stop on
func preflight(items []scanner.ScanItem, opts cleaner.CleanOptions) {
	report := cleaner.NewPermissionManager().AnalyzePermissions(items)

	if opts.Method == cleaner.MethodTrash && len(report.RequiresPrivileges) > 0 {
		fmt.Printf("\n🔐 %d files (%s) need elevated permissions; use --method privileged\n",
			len(report.RequiresPrivileges), utils.FormatBytes(report.PrivilegedSize))
	}
	if problems := report.Problems(); len(problems) > 0 {
		fmt.Print(cleaner.FormatErrorSummary(problems))
	}
}

func saveManifest(res *cleaner.CleanResult) error {
	if manifestPath == "" || res == nil || res.Manifest == nil {
		return nil
	}
	if err := res.Manifest.Save(manifestPath); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	fmt.Printf("Manifest written to: %s\n", manifestPath)
	return nil
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
