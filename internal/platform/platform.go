package platform

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
)

// Platform represents the operating system platform
type Platform string

const (
	MacOS   Platform = "darwin"
	Linux   Platform = "linux"
	Unknown Platform = "unknown"
)

const (
	// HelperID is the service name of the privileged helper
	HelperID = "com.macsweep.helper"

	// DefaultHelperSocket is where the helper listens unless configured otherwise
	DefaultHelperSocket = "/var/run/" + HelperID + ".sock"
)

// Info contains platform-specific information and well-known locations
type Info struct {
	OS       Platform
	HomeDir  string
	Username string
	UID      int

	TrashDir     string
	TempDir      string
	DownloadsDir string

	UserCacheDirs   []string
	SystemCacheDirs []string
	UserLogDirs     []string
	SystemLogDirs   []string
	TempDirs        []string
	DeveloperDirs   []string
	BackupDirs      []string
	MailDirs        []string
	MediaDirs       []string
	PictureDirs     []string
	Browsers        []Browser

	HelperBinary   string
	ProtectedPaths []string
}

// Browser is a browser cache location
type Browser struct {
	Name     string
	CacheDir string
}

// Detect returns the current platform
func Detect() Platform {
	switch runtime.GOOS {
	case "darwin":
		return MacOS
	case "linux":
		return Linux
	default:
		return Unknown
	}
}

// GetInfo returns platform-specific information for the current user
func GetInfo() (*Info, error) {
	currentUser, err := user.Current()
	if err != nil {
		return nil, err
	}

	uid, err := strconv.Atoi(currentUser.Uid)
	if err != nil {
		uid = os.Getuid()
	}

	return InfoFor(Detect(), currentUser.HomeDir, currentUser.Username, uid)
}

// InfoFor builds Info for an explicit home directory, used by tests and the helper
func InfoFor(p Platform, homeDir, username string, uid int) (*Info, error) {
	var info *Info

	switch p {
	case MacOS:
		info = getMacOSInfo(homeDir)
	case Linux:
		info = getLinuxInfo(homeDir)
	default:
		return nil, ErrUnsupportedPlatform
	}

	info.OS = p
	info.HomeDir = homeDir
	info.Username = username
	info.UID = uid
	info.TempDir = os.TempDir()
	return info, nil
}

// GetUserConfigDir returns the directory holding macsweep's user config
func GetUserConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "macsweep"), nil
}

// HelperInstalled reports whether the privileged helper binary is in place
func (i *Info) HelperInstalled() bool {
	if i.HelperBinary == "" {
		return false
	}
	_, err := os.Stat(i.HelperBinary)
	return err == nil
}

// Errors
var (
	ErrUnsupportedPlatform = &PlatformError{"unsupported platform"}
)

// PlatformError represents a platform-related error
type PlatformError struct {
	Message string
}

func (e *PlatformError) Error() string {
	return e.Message
}
