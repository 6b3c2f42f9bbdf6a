package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidPath marks paths that are malformed or suspicious
	ErrInvalidPath = errors.New("invalid path")
	// ErrProtectedPath marks paths the cleaner must never remove
	ErrProtectedPath = errors.New("protected path")
)

// ValidationError describes why a path was rejected
type ValidationError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Path)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// dangerousChars could be used for injection if a path ever reaches a shell
var dangerousChars = []string{";", "&", "|", "$", "`", "<", ">", "\n", "\r", "\x00"}

// PathValidator handles path validation before any deletion.
// Both the CLI and the privileged helper run every path through it.
type PathValidator struct {
	// protectedTrees may not be removed, nor may their direct children
	protectedTrees []string
	// protectedExact may not be removed themselves, but anything below them may
	protectedExact []string
}

// NewPathValidator creates a PathValidator with the default system trees.
// Extra paths are protected exactly, see AddProtectedPath.
func NewPathValidator(extra ...string) *PathValidator {
	pv := &PathValidator{
		protectedTrees: []string{
			"/",
			"/bin",
			"/boot",
			"/dev",
			"/etc",
			"/lib",
			"/lib64",
			"/proc",
			"/sbin",
			"/sys",
			"/usr",
			"/var",
			"/private/etc",
			"/private/var",
			"/System",
			"/Applications",
			"/Library",
			"/Library/System",
			"/Users",
		},
	}
	for _, p := range extra {
		pv.AddProtectedPath(p)
	}
	return pv
}

// ValidatePathForDeletion rejects relative, suspicious and protected paths.
// Symlinks are resolved first so a link cannot smuggle a protected target past the check.
func (pv *PathValidator) ValidatePathForDeletion(path string) error {
	if !filepath.IsAbs(path) {
		return &ValidationError{Path: path, Reason: "path must be absolute", Err: ErrInvalidPath}
	}

	if filepath.Clean(path) != path {
		return &ValidationError{Path: path, Reason: "path contains suspicious elements", Err: ErrInvalidPath}
	}

	for _, char := range dangerousChars {
		if strings.Contains(path, char) {
			return &ValidationError{Path: path, Reason: "path contains dangerous characters", Err: ErrInvalidPath}
		}
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return &ValidationError{Path: path, Reason: "failed to resolve symlinks", Err: err}
		}
		resolved = path
	}

	for _, candidate := range []string{path, filepath.Clean(resolved)} {
		if err := pv.checkProtectedPaths(candidate); err != nil {
			return err
		}
	}
	return nil
}

func (pv *PathValidator) checkProtectedPaths(cleanPath string) error {
	for _, protected := range pv.protectedExact {
		if cleanPath == protected {
			return &ValidationError{Path: cleanPath, Reason: "refusing to delete protected path", Err: ErrProtectedPath}
		}
	}

	for _, protected := range pv.protectedTrees {
		if cleanPath == protected {
			return &ValidationError{Path: cleanPath, Reason: "refusing to delete protected path", Err: ErrProtectedPath}
		}
	}

	for _, protected := range pv.protectedTrees {
		prefix := protected + "/"
		if protected == "/" {
			prefix = "/"
		}
		if rel, ok := strings.CutPrefix(cleanPath, prefix); ok && rel != "" && !strings.Contains(rel, "/") {
			return &ValidationError{Path: cleanPath, Reason: "refusing to delete critical system path", Err: ErrProtectedPath}
		}
	}

	return nil
}

// IsProtectedPath reports whether path is itself protected
func (pv *PathValidator) IsProtectedPath(path string) bool {
	return pv.checkProtectedPaths(filepath.Clean(path)) != nil
}

// AddProtectedPath protects a single path without protecting its children
func (pv *PathValidator) AddProtectedPath(path string) {
	if path == "" {
		return
	}
	pv.protectedExact = append(pv.protectedExact, filepath.Clean(path))
}

// ValidateGlobPattern validates that a glob pattern is safe
func ValidateGlobPattern(pattern string) error {
	if strings.Contains(pattern, "..") {
		return fmt.Errorf("glob pattern contains directory traversal: %s", pattern)
	}

	if _, err := filepath.Match(pattern, "test"); err != nil {
		return fmt.Errorf("invalid glob pattern: %w", err)
	}

	return nil
}
