// Package testutil provides test helpers and fixtures for macsweep tests.
// All file operations use t.TempDir() for safe, isolated testing.
package testutil

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/fenilsonani/macsweep/internal/platform"
)

// TestFixture holds paths to a fake home directory laid out like macOS
type TestFixture struct {
	T       *testing.T
	RootDir string // Root temp directory (auto-cleaned)

	HomeDir      string
	CachesDir    string // ~/Library/Caches
	LogsDir      string // ~/Library/Logs
	TempDir      string
	DownloadsDir string
	PicturesDir  string
	TrashDir     string // ~/.Trash
}

// NewFixture creates a new test fixture with a standard home layout
func NewFixture(t *testing.T) *TestFixture {
	t.Helper()

	root := t.TempDir()
	// Resolve /var -> /private/var on macOS so reported paths compare equal
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	home := filepath.Join(root, "home")

	f := &TestFixture{
		T:            t,
		RootDir:      root,
		HomeDir:      home,
		CachesDir:    filepath.Join(home, "Library", "Caches"),
		LogsDir:      filepath.Join(home, "Library", "Logs"),
		TempDir:      filepath.Join(root, "tmp"),
		DownloadsDir: filepath.Join(home, "Downloads"),
		PicturesDir:  filepath.Join(home, "Pictures"),
		TrashDir:     filepath.Join(home, ".Trash"),
	}

	dirs := []string{
		f.CachesDir,
		f.LogsDir,
		f.TempDir,
		f.DownloadsDir,
		f.PicturesDir,
		f.TrashDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create directory %s: %v", dir, err)
		}
	}

	return f
}

// PlatformInfo returns platform info whose user directories point into the fixture.
// System locations are left empty so nothing outside the fixture is scanned.
func (f *TestFixture) PlatformInfo() *platform.Info {
	return &platform.Info{
		OS:            platform.Detect(),
		HomeDir:       f.HomeDir,
		Username:      "tester",
		UID:           os.Getuid(),
		TrashDir:      f.TrashDir,
		TempDir:       f.TempDir,
		DownloadsDir:  f.DownloadsDir,
		UserCacheDirs: []string{f.CachesDir},
		UserLogDirs:   []string{f.LogsDir},
		TempDirs:      []string{f.TempDir},
		PictureDirs:   []string{f.PicturesDir},
	}
}

// =============================================================================
// File Creation Helpers
// =============================================================================

// CreateFile creates a file with specified content and returns its path
func (f *TestFixture) CreateFile(relPath string, content []byte) string {
	f.T.Helper()

	fullPath := filepath.Join(f.RootDir, relPath)
	dir := filepath.Dir(fullPath)

	if err := os.MkdirAll(dir, 0755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		f.T.Fatalf("failed to create file %s: %v", fullPath, err)
	}

	return fullPath
}

// CreateSizedFile creates a zero-filled file of size bytes
func (f *TestFixture) CreateSizedFile(relPath string, size int) string {
	f.T.Helper()
	return f.CreateFile(relPath, make([]byte, size))
}

// CreateFileWithAge creates a file and sets its modification time to the past
func (f *TestFixture) CreateFileWithAge(relPath string, content []byte, age time.Duration) string {
	f.T.Helper()

	fullPath := f.CreateFile(relPath, content)
	oldTime := time.Now().Add(-age)

	if err := os.Chtimes(fullPath, oldTime, oldTime); err != nil {
		f.T.Fatalf("failed to set file time for %s: %v", fullPath, err)
	}

	return fullPath
}

// CreateRandomFile creates a file with random content
func (f *TestFixture) CreateRandomFile(relPath string, size int) string {
	f.T.Helper()
	content := make([]byte, size)
	rand.Read(content)
	return f.CreateFile(relPath, content)
}

// CreateCacheFile creates a file under ~/Library/Caches
func (f *TestFixture) CreateCacheFile(relPath string, size int) string {
	f.T.Helper()
	return f.CreateSizedFile(f.RelPath(filepath.Join(f.CachesDir, relPath)), size)
}

// CreateLogFile creates a file under ~/Library/Logs
func (f *TestFixture) CreateLogFile(relPath string, size int) string {
	f.T.Helper()
	return f.CreateSizedFile(f.RelPath(filepath.Join(f.LogsDir, relPath)), size)
}

// CreatePhoto creates a file under ~/Pictures with the given content
func (f *TestFixture) CreatePhoto(relPath string, content []byte) string {
	f.T.Helper()
	return f.CreateFile(f.RelPath(filepath.Join(f.PicturesDir, relPath)), content)
}

// =============================================================================
// Directory Helpers
// =============================================================================

// CreateDir creates a directory and returns its path
func (f *TestFixture) CreateDir(relPath string) string {
	f.T.Helper()

	fullPath := filepath.Join(f.RootDir, relPath)
	if err := os.MkdirAll(fullPath, 0755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", fullPath, err)
	}

	return fullPath
}

// CreateSymlink creates a symbolic link
func (f *TestFixture) CreateSymlink(target, linkPath string) string {
	f.T.Helper()

	fullLinkPath := filepath.Join(f.RootDir, linkPath)
	dir := filepath.Dir(fullLinkPath)

	if err := os.MkdirAll(dir, 0755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.Symlink(target, fullLinkPath); err != nil {
		f.T.Fatalf("failed to create symlink %s -> %s: %v", fullLinkPath, target, err)
	}

	return fullLinkPath
}

// =============================================================================
// Permission Helpers
// =============================================================================

// CreateFileWithMode creates a file with specific permissions
func (f *TestFixture) CreateFileWithMode(relPath string, content []byte, mode os.FileMode) string {
	f.T.Helper()

	fullPath := f.CreateFile(relPath, content)
	if err := os.Chmod(fullPath, mode); err != nil {
		f.T.Fatalf("failed to chmod file %s: %v", fullPath, err)
	}

	return fullPath
}

// CreateReadOnlyFile creates a file that cannot be written to
func (f *TestFixture) CreateReadOnlyFile(relPath string, content []byte) string {
	f.T.Helper()
	return f.CreateFileWithMode(relPath, content, 0444)
}

// CreateReadOnlyDir creates a read-only directory holding one file that
// therefore cannot be deleted
func (f *TestFixture) CreateReadOnlyDir(relPath string) (dir, trapped string) {
	f.T.Helper()

	dir = f.CreateDir(relPath)
	trapped = f.CreateFile(filepath.Join(relPath, "trapped.txt"), []byte("trapped"))
	if err := os.Chmod(dir, 0555); err != nil {
		f.T.Fatalf("failed to chmod directory %s: %v", dir, err)
	}

	// Restore permissions so TempDir cleanup works
	f.T.Cleanup(func() {
		os.Chmod(dir, 0755)
	})

	return dir, trapped
}

// =============================================================================
// Path Helpers
// =============================================================================

// Path returns the full path for a relative path within the fixture
func (f *TestFixture) Path(relPath string) string {
	return filepath.Join(f.RootDir, relPath)
}

// RelPath returns the relative path from the fixture root
func (f *TestFixture) RelPath(fullPath string) string {
	rel, _ := filepath.Rel(f.RootDir, fullPath)
	return rel
}

// =============================================================================
// Assertion Helpers
// =============================================================================

// FileExists checks if a file exists without following symlinks
func (f *TestFixture) FileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// AssertFileExists fails the test if the file doesn't exist
func (f *TestFixture) AssertFileExists(path string) {
	f.T.Helper()
	if !f.FileExists(path) {
		f.T.Errorf("expected file to exist: %s", path)
	}
}

// AssertFileNotExists fails the test if the file exists
func (f *TestFixture) AssertFileNotExists(path string) {
	f.T.Helper()
	if f.FileExists(path) {
		f.T.Errorf("expected file to not exist: %s", path)
	}
}

// AssertFileSize checks if file has expected size
func (f *TestFixture) AssertFileSize(path string, expectedSize int64) {
	f.T.Helper()
	info, err := os.Stat(path)
	if err != nil {
		f.T.Errorf("failed to stat %s: %v", path, err)
		return
	}
	if info.Size() != expectedSize {
		f.T.Errorf("file %s has size %d, want %d", path, info.Size(), expectedSize)
	}
}

// =============================================================================
// Utility Functions
// =============================================================================

// IsRoot returns true if running as root
func IsRoot() bool {
	return os.Geteuid() == 0
}

// SkipIfRoot skips the test if running as root
func SkipIfRoot(t *testing.T) {
	t.Helper()
	if IsRoot() {
		t.Skip("skipping test when running as root")
	}
}

// IsMacOS returns true if running on macOS
func IsMacOS() bool {
	return runtime.GOOS == "darwin"
}

// ShortSocketPath returns a Unix socket path short enough for sun_path limits.
// t.TempDir() paths on macOS exceed 104 bytes once the test name is appended.
func ShortSocketPath(t *testing.T) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "msw")
	if err != nil {
		t.Fatalf("failed to create socket dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "h.sock")
}
