package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fenilsonani/macsweep/internal/erase"
	"github.com/fenilsonani/macsweep/internal/privileged"
	"github.com/fenilsonani/macsweep/internal/reporter"
	"github.com/fenilsonani/macsweep/internal/scanner"
	"github.com/fenilsonani/macsweep/internal/security"
	"github.com/spf13/cobra"
)

var (
	shredPasses     int
	shredPreset     string
	shredPrivileged bool

	lensDepth int
	lensTop   int
)

var shredCmd = &cobra.Command{
	Use:   "shred FILE...",
	Short: "Securely erase files",
	Long: `Overwrites each file with random data, syncing to stable storage after every
pass, then unlinks it. Stops at the first file that fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		passes := a.cfg.Clean.Passes
		switch {
		case cmd.Flags().Changed("passes"):
			passes = shredPasses
		case cmd.Flags().Changed("preset"):
			if passes, err = erase.PresetPasses(shredPreset); err != nil {
				return err
			}
		}
		if passes < 1 {
			return erase.ErrInvalidPasses
		}

		paths := make([]string, len(args))
		for i, arg := range args {
			if paths[i], err = filepath.Abs(arg); err != nil {
				return err
			}
		}

		if !force && !confirm(fmt.Sprintf("Securely erase %d files with %d passes? This cannot be undone. (y/N): ", len(paths), passes)) {
			fmt.Println("Cancelled")
			return nil
		}

		validator := security.NewPathValidator(a.cfg.ProtectedPaths...)
		shredder := erase.New()
		if verbose {
			shredder.OnPass = func(path string, pass, total int) {
				fmt.Fprintf(os.Stderr, "  %s: pass %d/%d\n", path, pass, total)
			}
		}

		ctx := cmd.Context()
		for i, path := range paths {
			if shredPrivileged {
				err = a.helper.SecureDelete(ctx, path, passes)
			} else if err = validator.ValidatePathForDeletion(path); err == nil {
				err = shredder.SecureDelete(ctx, path, passes)
			}
			if err != nil {
				return fmt.Errorf("shred %s: %w (%d of %d files erased)", path, err, i, len(paths))
			}
			fmt.Printf("✓ %s\n", path)
		}
		return nil
	},
}

var lensCmd = &cobra.Command{
	Use:   "lens [PATH]",
	Short: "Show where disk space goes",
	Long:  `Builds a size tree under PATH (default: home directory) and lists the largest entries at each level.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := formatFlag(cmd)
		if err != nil {
			return err
		}

		root, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			if root, err = filepath.Abs(args[0]); err != nil {
				return err
			}
		}

		tree, err := scanner.BuildTree(cmd.Context(), root, lensDepth)
		if err != nil {
			return fmt.Errorf("failed to measure %s: %w", root, err)
		}
		return reporter.New(os.Stdout, format).ReportTree(tree, lensTop)
	},
}

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Repair home directory permissions via the helper",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println("Repairing permissions...")
		if err := a.helper.RepairPermissions(cmd.Context()); err != nil {
			return helperError(err)
		}
		fmt.Println("✓ Permissions repaired")
		return nil
	},
}

var maintainCmd = &cobra.Command{
	Use:       "maintain [daily|weekly|monthly]...",
	Short:     "Run periodic maintenance scripts via the helper",
	Long:      `Runs the system's periodic maintenance scripts. With no arguments all three run.`,
	ValidArgs: privileged.DefaultMaintenanceScripts,
	Args:      cobra.OnlyValidArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println("Running maintenance...")
		if err := a.helper.RunMaintenance(cmd.Context(), args); err != nil {
			return helperError(err)
		}
		fmt.Println("✓ Maintenance complete")
		return nil
	},
}

var helperCmd = &cobra.Command{
	Use:   "helper",
	Short: "Inspect the privileged helper",
}

var helperStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the helper is installed and reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Printf("Socket:    %s\n", a.helper.SocketPath())
		if !a.helper.Installed() {
			fmt.Println("Installed: no")
			return nil
		}
		fmt.Println("Installed: yes")

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		v, err := a.helper.GetVersion(ctx)
		if err != nil {
			fmt.Printf("Reachable: no (%v)\n", err)
			return nil
		}
		fmt.Printf("Reachable: yes\nVersion:   %s\n", v)
		return nil
	},
}

func init() {
	shredCmd.Flags().IntVar(&shredPasses, "passes", 0, "overwrite passes")
	shredCmd.Flags().StringVar(&shredPreset, "preset", "", "pass preset (quick, dod, gutmann)")
	shredCmd.Flags().BoolVar(&shredPrivileged, "privileged", false, "erase through the privileged helper")
	shredCmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation prompt")
	shredCmd.MarkFlagsMutuallyExclusive("passes", "preset")

	lensCmd.Flags().IntVar(&lensDepth, "depth", 3, "directory levels to expand")
	lensCmd.Flags().IntVar(&lensTop, "top", 10, "entries to show per directory")
	lensCmd.Flags().String("format", "summary", "output format (summary, json, yaml)")

	helperCmd.AddCommand(helperStatusCmd)
}

// helperError adds an install hint when the helper is missing
func helperError(err error) error {
	if privileged.KindOf(err) == privileged.KindWorkerNotInstalled {
		return fmt.Errorf("%w\nInstall and start macsweep-helper, then retry", err)
	}
	return err
}
