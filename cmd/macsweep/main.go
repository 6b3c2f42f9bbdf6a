package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fenilsonani/macsweep/internal/catalog"
	"github.com/fenilsonani/macsweep/internal/cleaner"
	"github.com/fenilsonani/macsweep/internal/config"
	"github.com/fenilsonani/macsweep/internal/history"
	"github.com/fenilsonani/macsweep/internal/logging"
	"github.com/fenilsonani/macsweep/internal/platform"
	"github.com/fenilsonani/macsweep/internal/privileged"
	"github.com/fenilsonani/macsweep/internal/reporter"
	"github.com/fenilsonani/macsweep/internal/scanner"
	"github.com/fenilsonani/macsweep/internal/security"
	"github.com/spf13/cobra"
)

var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var (
	configPath string
	verbose    bool
	categories []string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "macsweep",
	Short: "macOS disk cleaner",
	Long: `macsweep finds caches, logs, temporary files, old downloads, duplicates
and other reclaimable files on macOS, and removes them by moving them to the
Trash, securely erasing them, or handing them to the privileged helper.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose output")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(shredCmd)
	rootCmd.AddCommand(lensCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(maintainCmd)
	rootCmd.AddCommand(helperCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(configCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}

	cfgPath, err := config.GetConfigPath()
	if err != nil {
		return nil, err
	}

	return config.Load(cfgPath)
}

// app bundles what most commands need
type app struct {
	cfg     *config.Config
	info    *platform.Info
	logger  *logging.Logger
	history *history.DB
	helper  *privileged.Client
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if len(categories) > 0 {
		cfg.Scan.Categories = categories
	}

	info, err := platform.GetInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get platform info: %w", err)
	}

	var logger *logging.Logger
	switch {
	case verbose:
		logger = logging.NewWithWriter(os.Stderr, "debug")
	case cfg.Logging.File != "":
		logger, err = logging.New(config.ExpandHome(cfg.Logging.File, info.HomeDir), cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
	default:
		logger = logging.NewWithWriter(os.Stderr, "warn")
	}

	a := &app{
		cfg:    cfg,
		info:   info,
		logger: logger,
		helper: privileged.NewClient(cfg.Helper.SocketPath,
			privileged.WithDialTimeout(cfg.Helper.DialTimeout),
			privileged.WithClientLogger(logger),
			privileged.WithHelperBinary(cfg.Helper.Binary),
		),
	}

	if cfg.History.Path != "" {
		db, err := history.Open(config.ExpandHome(cfg.History.Path, info.HomeDir))
		if err != nil {
			// history is best effort for interactive commands
			logger.Warn("history disabled: %v", err)
		} else {
			a.history = db
		}
	}

	return a, nil
}

func (a *app) Close() {
	a.helper.Close()
	if a.history != nil {
		a.history.Close()
	}
	a.logger.Close()
}

// coordinator wires the catalog, engine and deletion backends from config
func (a *app) coordinator() (*cleaner.Coordinator, *catalog.Catalog, error) {
	cat, err := a.cfg.BuildCatalog(a.info)
	if err != nil {
		return nil, nil, err
	}

	engine := scanner.NewEngine(cat,
		scanner.WithExcludes(a.cfg.Scan.ExcludePatterns),
		scanner.WithMinAge(a.cfg.MinFileAgeDuration()),
		scanner.WithMinSize(a.cfg.MinFileSizeBytes()),
		scanner.WithLogger(a.logger),
	)

	opts := []cleaner.Option{
		cleaner.WithLogger(a.logger),
		cleaner.WithHelper(a.helper),
		cleaner.WithTrash(cleaner.NewTrash(a.info.TrashDir)),
		cleaner.WithValidator(security.NewPathValidator(a.cfg.ProtectedPaths...)),
		cleaner.WithSpaceProbe(cleaner.DiskFree, a.info.HomeDir),
		cleaner.WithTrigger(history.TriggerManual),
	}
	if a.history != nil {
		opts = append(opts, cleaner.WithRecorder(a.history))
	}

	return cleaner.NewCoordinator(engine, opts...), cat, nil
}

// formatFlag parses the command's own --format flag
func formatFlag(cmd *cobra.Command) (reporter.OutputFormat, error) {
	s, err := cmd.Flags().GetString("format")
	if err != nil {
		return "", err
	}
	return reporter.ParseFormat(s)
}
