package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fenilsonani/macsweep/internal/config"
	"github.com/fenilsonani/macsweep/internal/logging"
	"github.com/fenilsonani/macsweep/internal/privileged"
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
	testConfig bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "macsweep-helper",
	Short:         "Privileged helper for macsweep",
	Long:          `Runs as root and performs deletions, secure erase, permission repair and maintenance for local macsweep clients over a Unix socket.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Listen for requests until terminated",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadHelper(configPath)
		if err != nil {
			return err
		}

		if testConfig {
			fmt.Println("Configuration is valid")
			fmt.Printf("Socket: %s\n", cfg.SocketPath)
			switch {
			case cfg.AllowAllUsers:
				fmt.Println("Allowed uids: all")
			case cfg.RejectsEveryone():
				fmt.Println("Allowed uids: none (set allowed_uids to accept requests)")
			default:
				fmt.Printf("Allowed uids: %v\n", cfg.AllowedUIDs)
			}
			return nil
		}

		logger, err := logging.New(cfg.LogFile, cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer logger.Close()

		if os.Geteuid() != 0 {
			logger.Warn("helper is not running as root; privileged operations will fail")
		}

		svc := privileged.NewService(Version,
			privileged.WithValidator(security.NewPathValidator(cfg.ProtectedPaths...)),
			privileged.WithRepairCommand(cfg.RepairCommand),
			privileged.WithMaintenanceCommand(cfg.MaintenanceCommand),
			privileged.WithServiceLogger(logger),
		)
		serverOpts := []privileged.ServerOption{
			privileged.WithAllowedUIDs(cfg.AllowedUIDs...),
			privileged.WithServerLogger(logger),
		}
		if cfg.AllowAllUsers {
			logger.Warn("allow_all_users is set; any local user can make requests")
			serverOpts = append(serverOpts, privileged.WithAllowAllUIDs())
		} else if cfg.RejectsEveryone() {
			logger.Warn("allowed_uids is empty; every request will be rejected")
		}
		srv := privileged.NewServer(cfg.SocketPath, svc, serverOpts...)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			sig := <-sigCh
			logger.Info("received %v, shutting down", sig)
			srv.Close()
		}()

		logger.Info("macsweep-helper %s starting", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, privileged.ErrServerClosed) {
			return err
		}
		logger.Info("macsweep-helper stopped")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultHelperConfigPath, "helper config file path")
	serveCmd.Flags().BoolVar(&testConfig, "test-config", false, "validate configuration and exit")

	rootCmd.AddCommand(serveCmd)
}
