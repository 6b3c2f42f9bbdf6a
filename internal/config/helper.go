package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fenilsonani/macsweep/internal/platform"
	"gopkg.in/yaml.v3"
)

// DefaultHelperConfigPath is where the helper looks for its configuration
const DefaultHelperConfigPath = "/etc/macsweep/helper.yaml"

// HelperConfig configures the privileged helper process. It is owned by
// root and never read from a user-writable location.
type HelperConfig struct {
	SocketPath         string   `yaml:"socket_path"`
	AllowedUIDs        []int    `yaml:"allowed_uids"`
	AllowAllUsers      bool     `yaml:"allow_all_users,omitempty"`
	LogFile            string   `yaml:"log_file"`
	LogLevel           string   `yaml:"log_level"`
	RepairCommand      []string `yaml:"repair_command,omitempty"`
	MaintenanceCommand string   `yaml:"maintenance_command,omitempty"`
	ProtectedPaths     []string `yaml:"protected_paths,omitempty"`
}

// DefaultHelper returns the helper defaults
func DefaultHelper() *HelperConfig {
	return &HelperConfig{
		SocketPath: platform.DefaultHelperSocket,
		LogFile:    "/var/log/macsweep-helper.log",
		LogLevel:   "info",
	}
}

// LoadHelper reads the helper configuration. A missing file yields the defaults.
func LoadHelper(path string) (*HelperConfig, error) {
	cfg := DefaultHelper()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read helper config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse helper config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid helper configuration: %w", err)
	}
	return cfg, nil
}

// RejectsEveryone reports whether no caller would be allowed
func (h *HelperConfig) RejectsEveryone() bool {
	return !h.AllowAllUsers && len(h.AllowedUIDs) == 0
}

// Validate validates the helper configuration
func (h *HelperConfig) Validate() error {
	if !filepath.IsAbs(h.SocketPath) {
		return fmt.Errorf("socket path must be absolute: %s", h.SocketPath)
	}
	for _, uid := range h.AllowedUIDs {
		if uid < 0 {
			return fmt.Errorf("invalid uid %d", uid)
		}
	}
	if len(h.RepairCommand) > 0 && !filepath.IsAbs(h.RepairCommand[0]) {
		return fmt.Errorf("repair command must be an absolute path: %s", h.RepairCommand[0])
	}
	if h.MaintenanceCommand != "" && !filepath.IsAbs(h.MaintenanceCommand) {
		return fmt.Errorf("maintenance command must be an absolute path: %s", h.MaintenanceCommand)
	}
	for _, path := range h.ProtectedPaths {
		if !filepath.IsAbs(path) {
			return fmt.Errorf("protected path must be absolute: %s", path)
		}
	}
	return nil
}
