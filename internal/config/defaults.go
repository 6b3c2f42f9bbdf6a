package config

import (
	"time"

	"github.com/fenilsonani/macsweep/internal/erase"
	"github.com/fenilsonani/macsweep/internal/platform"
)

// GetDefault returns the default configuration
func GetDefault() *Config {
	return &Config{
		Helper: HelperClientConfig{
			SocketPath:  platform.DefaultHelperSocket,
			DialTimeout: 5 * time.Second,
		},
		Clean: CleanConfig{
			Method: "trash", // Recoverable by default
			Passes: erase.DefaultPasses,
			DryRun: false,
		},
		Scan: ScanConfig{
			ExcludePatterns: []string{
				"*.keep",
				"*/important/*",
			},
			MinFileAge: 1, // 1 hour - never delete files younger than this
		},
		History: HistoryConfig{
			Path:          "~/.config/macsweep/history.db",
			RetentionDays: 90,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		ProtectedPaths: []string{},
	}
}

// GetExampleConfig returns an example configuration with comments
func GetExampleConfig() string {
	return `# macsweep Configuration File
# Location: ~/.config/macsweep/config.yaml

# ==============================================================================
# PRIVILEGED HELPER
# ==============================================================================
# The helper runs as root and performs privileged and secure deletions

helper:
  socket_path: "/var/run/com.macsweep.helper.sock"
  dial_timeout: 5s

# ==============================================================================
# CLEANING
# ==============================================================================

clean:
  # trash:      move items to ~/.Trash (recoverable)
  # secure:     multi-pass overwrite through the helper
  # privileged: plain delete through the helper, for root-owned files
  method: trash
  passes: 7        # Overwrite passes for secure deletion (3, 7 or 35 are common)
  timeout: 0s      # Per-item helper timeout, 0 waits indefinitely
  dry_run: false   # Show what would be deleted without deleting

# ==============================================================================
# SCANNING
# ==============================================================================

scan:
  # Files matching these glob patterns are never reported
  exclude_patterns:
    - "*.keep"
    - "*/important/*"

  # Never report files modified within this many hours
  min_file_age: 1

  # Ignore files smaller than this (e.g. "1KB", "10 MiB")
  # min_file_size: "1KB"

  # Restrict scans to these categories (default: all)
  # categories:
  #   - user_caches
  #   - user_logs

# Extra categories, or replacements for built-in ones with the same name
# catalog_file: "~/.config/macsweep/catalog.yaml"
# catalog:
#   categories:
#     - name: xcode_archives
#       label: Xcode Archives
#       type: other
#       roots: ["~/Library/Developer/Xcode/Archives"]
#       min_size: 100MB

# ==============================================================================
# HISTORY
# ==============================================================================

history:
  path: "~/.config/macsweep/history.db"
  retention_days: 90   # Runs older than this are pruned by the daemon

logging:
  level: info
  # file: "~/.config/macsweep/macsweep.log"

# Paths that are never deleted, in addition to the built-in system paths
protected_paths: []

# ==============================================================================
# DAEMON
# ==============================================================================
# Scheduled scans run by macsweepd

# daemon:
#   enabled: true
#   pid_file: "~/.config/macsweep/macsweepd.pid"
#   log_file: "~/.config/macsweep/macsweepd.log"
#   log_level: info
#   schedules:
#     - name: nightly-caches
#       schedule: "0 3 * * *"
#       categories: [user_caches, user_logs]
#       auto_clean: true
#       method: trash
#       skip_if_busy: true
#     - name: weekly-report
#       schedule: "0 9 * * 1"
#       auto_clean: false
`
}
