package cleaner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/fenilsonani/macsweep/internal/scanner"
)

// PermissionManager decides which items the current user can delete without the helper
type PermissionManager struct {
	uid int
	gid int
}

// NewPermissionManager creates a PermissionManager for the current process
func NewPermissionManager() *PermissionManager {
	return &PermissionManager{uid: os.Getuid(), gid: os.Getgid()}
}

// IsRunningAsRoot checks if the current process is running as root
func (pm *PermissionManager) IsRunningAsRoot() bool {
	return pm.uid == 0
}

// CanDelete checks whether the parent directory of path is writable by us
func (pm *PermissionManager) CanDelete(path string) (bool, error) {
	if _, err := os.Lstat(path); err != nil {
		return false, err
	}
	if pm.IsRunningAsRoot() {
		return true, nil
	}

	parentInfo, err := os.Stat(filepath.Dir(path))
	if err != nil {
		return false, err
	}

	stat, ok := parentInfo.Sys().(*syscall.Stat_t)
	if !ok {
		return false, fmt.Errorf("unable to get file stats")
	}

	mode := parentInfo.Mode()
	switch {
	case int(stat.Uid) == pm.uid:
		return mode&0o200 != 0, nil
	case int(stat.Gid) == pm.gid:
		return mode&0o020 != 0, nil
	default:
		return mode&0o002 != 0, nil
	}
}

// RequiresElevation checks if a path requires the helper to delete
func (pm *PermissionManager) RequiresElevation(path string) bool {
	canDelete, err := pm.CanDelete(path)
	if err != nil {
		// If we can't even check, assume it needs elevation
		return !errors.Is(err, fs.ErrNotExist)
	}
	return !canDelete
}

// checkDeletable refuses devices, sockets and pipes. Symlinks are fine: the
// link itself is moved, never its target.
func checkDeletable(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}

	mode := info.Mode()
	switch {
	case mode&fs.ModeDevice != 0, mode&fs.ModeCharDevice != 0:
		return fmt.Errorf("refusing to delete device file %s", path)
	case mode&fs.ModeSocket != 0:
		return fmt.Errorf("refusing to delete socket %s", path)
	case mode&fs.ModeNamedPipe != 0:
		return fmt.Errorf("refusing to delete named pipe %s", path)
	}
	return nil
}

// PermissionReport splits selected items by whether they need the helper
type PermissionReport struct {
	Normal             []scanner.ScanItem
	RequiresPrivileges []scanner.ScanItem
	Inaccessible       map[string]error
	NormalSize         int64
	PrivilegedSize     int64
}

// AnalyzePermissions classifies items before a clean. Items that no longer
// exist are left out.
func (pm *PermissionManager) AnalyzePermissions(items []scanner.ScanItem) *PermissionReport {
	report := &PermissionReport{Inaccessible: make(map[string]error)}

	for _, item := range items {
		canDelete, err := pm.CanDelete(item.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			report.Inaccessible[item.Path] = err
			continue
		}

		if canDelete && !item.RequiresPrivileges {
			report.Normal = append(report.Normal, item)
			report.NormalSize += item.Size
		} else {
			report.RequiresPrivileges = append(report.RequiresPrivileges, item)
			report.PrivilegedSize += item.Size
		}
	}

	return report
}

// Problems returns the inaccessible items as categorized errors, ordered by path
func (r *PermissionReport) Problems() []*CleanError {
	paths := make([]string, 0, len(r.Inaccessible))
	for p := range r.Inaccessible {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	problems := make([]*CleanError, len(paths))
	for i, p := range paths {
		problems[i] = CategorizeError(p, r.Inaccessible[p])
	}
	return problems
}
