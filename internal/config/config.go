package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fenilsonani/macsweep/internal/catalog"
	"github.com/fenilsonani/macsweep/internal/erase"
	"github.com/fenilsonani/macsweep/internal/platform"
	"github.com/fenilsonani/macsweep/internal/security"
	"github.com/fenilsonani/macsweep/pkg/utils"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Helper         HelperClientConfig `yaml:"helper"`
	Clean          CleanConfig        `yaml:"clean"`
	Scan           ScanConfig         `yaml:"scan"`
	CatalogFile    string             `yaml:"catalog_file,omitempty"`
	Catalog        *catalog.Catalog   `yaml:"catalog,omitempty"`
	History        HistoryConfig      `yaml:"history"`
	Logging        LoggingConfig      `yaml:"logging"`
	ProtectedPaths []string           `yaml:"protected_paths"`
	Daemon         *DaemonConfig      `yaml:"daemon,omitempty"`
}

// HelperClientConfig tells the CLI how to reach the privileged helper
type HelperClientConfig struct {
	SocketPath  string        `yaml:"socket_path"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	Binary      string        `yaml:"binary,omitempty"`
}

// CleanConfig holds defaults for the clean command
type CleanConfig struct {
	Method  string        `yaml:"method"` // "trash", "secure", "privileged"
	Passes  int           `yaml:"passes"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	DryRun  bool          `yaml:"dry_run"`
}

// ScanConfig holds scan filters
type ScanConfig struct {
	ExcludePatterns []string `yaml:"exclude_patterns"`
	MinFileAge      int      `yaml:"min_file_age"` // in hours
	Categories      []string `yaml:"categories,omitempty"`
	MinFileSize     string   `yaml:"min_file_size,omitempty"` // e.g. "1KB"
}

// HistoryConfig controls the run history database
type HistoryConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// LoggingConfig controls CLI logging
type LoggingConfig struct {
	File  string `yaml:"file,omitempty"`
	Level string `yaml:"level"`
}

// DaemonConfig holds daemon mode configuration
type DaemonConfig struct {
	Enabled   bool       `yaml:"enabled"`
	PidFile   string     `yaml:"pid_file"`
	LogFile   string     `yaml:"log_file"`
	LogLevel  string     `yaml:"log_level"`
	Schedules []Schedule `yaml:"schedules"`
}

// Schedule defines a scheduled scan, optionally followed by a clean
type Schedule struct {
	Name       string   `yaml:"name"`
	Schedule   string   `yaml:"schedule"` // Cron expression
	Categories []string `yaml:"categories,omitempty"`
	AutoClean  bool     `yaml:"auto_clean"`
	Method     string   `yaml:"method,omitempty"`
	DryRun     bool     `yaml:"dry_run"`
	SkipIfBusy bool     `yaml:"skip_if_busy"`
}

// Load loads configuration from a file
func Load(configPath string) (*Config, error) {
	// If config doesn't exist, return default config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefault(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unset fields keep their defaults
	config := GetDefault()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save saves configuration to a file
func Save(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Clean.Method {
	case "", "trash", "secure", "privileged":
	default:
		return fmt.Errorf("unknown clean method %q", c.Clean.Method)
	}
	if c.Clean.Passes < 0 {
		return erase.ErrInvalidPasses
	}
	if c.Clean.Timeout < 0 {
		return fmt.Errorf("clean timeout must be >= 0")
	}

	if c.Scan.MinFileAge < 0 {
		return fmt.Errorf("min file age must be >= 0")
	}
	if c.Scan.MinFileSize != "" {
		if _, err := utils.ParseSize(c.Scan.MinFileSize); err != nil {
			return fmt.Errorf("invalid min file size '%s': %w", c.Scan.MinFileSize, err)
		}
	}

	for _, pattern := range c.Scan.ExcludePatterns {
		if err := security.ValidateGlobPattern(pattern); err != nil {
			return fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)
		}
	}

	for _, path := range c.ProtectedPaths {
		if !filepath.IsAbs(path) {
			return fmt.Errorf("protected path must be absolute: %s", path)
		}
	}

	if c.Helper.SocketPath != "" && !filepath.IsAbs(c.Helper.SocketPath) {
		return fmt.Errorf("helper socket path must be absolute: %s", c.Helper.SocketPath)
	}
	if c.History.RetentionDays < 0 {
		return fmt.Errorf("history retention must be >= 0")
	}

	if c.Daemon != nil {
		if err := c.Daemon.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Validate checks every schedule's cron expression and method
func (d *DaemonConfig) Validate() error {
	seen := make(map[string]bool)
	for _, s := range d.Schedules {
		if s.Name == "" {
			return fmt.Errorf("schedule has no name")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate schedule name: %s", s.Name)
		}
		seen[s.Name] = true

		if _, err := cron.ParseStandard(s.Schedule); err != nil {
			return fmt.Errorf("schedule %s: invalid cron expression %q: %w", s.Name, s.Schedule, err)
		}
		switch s.Method {
		case "", "trash", "secure", "privileged":
		default:
			return fmt.Errorf("schedule %s: unknown method %q", s.Name, s.Method)
		}
	}
	return nil
}

// MinFileAgeDuration returns Scan.MinFileAge as a duration
func (c *Config) MinFileAgeDuration() time.Duration {
	return time.Duration(c.Scan.MinFileAge) * time.Hour
}

// MinFileSizeBytes returns Scan.MinFileSize in bytes, or 0 when unset
func (c *Config) MinFileSizeBytes() int64 {
	if c.Scan.MinFileSize == "" {
		return 0
	}
	n, err := utils.ParseSize(c.Scan.MinFileSize)
	if err != nil {
		return 0
	}
	return n
}

// BuildCatalog returns the catalog the scanner should use: the built-in
// defaults, overridden first by CatalogFile and then by the inline section
func (c *Config) BuildCatalog(info *platform.Info) (*catalog.Catalog, error) {
	cat := catalog.Default(info)

	if c.CatalogFile != "" {
		fromFile, err := catalog.Load(ExpandHome(c.CatalogFile, info.HomeDir), info.HomeDir)
		if err != nil {
			return nil, err
		}
		cat = catalog.WithOverrides(cat, fromFile)
	}
	if c.Catalog != nil {
		inline := &catalog.Catalog{Categories: make([]catalog.Category, len(c.Catalog.Categories))}
		for i, cc := range c.Catalog.Categories {
			cc.Roots = make([]string, len(c.Catalog.Categories[i].Roots))
			for j, root := range c.Catalog.Categories[i].Roots {
				cc.Roots[j] = ExpandHome(root, info.HomeDir)
			}
			inline.Categories[i] = cc
		}
		if err := inline.Validate(); err != nil {
			return nil, fmt.Errorf("invalid catalog: %w", err)
		}
		cat = catalog.WithOverrides(cat, inline)
	}

	return cat.Filter(c.Scan.Categories)
}

// GetConfigPath returns the default config path
func GetConfigPath() (string, error) {
	configDir, err := platform.GetUserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// EnsureConfigExists creates a default config file if it doesn't exist
func EnsureConfigExists() (string, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := Save(GetDefault(), configPath); err != nil {
			return "", err
		}
	}

	return configPath, nil
}

// ExpandHome replaces a leading "~/" with homeDir
func ExpandHome(path, homeDir string) string {
	if path == "~" {
		return homeDir
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(homeDir, rest)
	}
	return path
}
