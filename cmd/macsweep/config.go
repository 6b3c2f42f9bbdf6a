package main

import (
	"fmt"
	"os"

	"github.com/fenilsonani/macsweep/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "# %s does not exist; showing defaults\n", path)
		}
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(cfg)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file if none exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			if _, err := os.Stat(configPath); err == nil {
				fmt.Printf("Config already exists: %s\n", configPath)
				return nil
			}
			if err := config.Save(config.GetDefault(), configPath); err != nil {
				return err
			}
			fmt.Printf("Config written to: %s\n", configPath)
			return nil
		}

		path, err := config.EnsureConfigExists()
		if err != nil {
			return err
		}
		fmt.Printf("Config: %s\n", path)
		return nil
	},
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print an annotated example config",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(config.GetExampleConfig())
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config file for errors",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		cat, err := a.cfg.BuildCatalog(a.info)
		if err != nil {
			return fmt.Errorf("invalid catalog: %w", err)
		}
		fmt.Printf("Configuration is valid (%d categories", len(cat.Categories))
		if a.cfg.Daemon != nil {
			fmt.Printf(", %d schedules", len(a.cfg.Daemon.Schedules))
		}
		fmt.Println(")")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configExampleCmd)
	configCmd.AddCommand(configValidateCmd)
}

func resolvedConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}
