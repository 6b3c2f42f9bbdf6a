//go:build !darwin

package cleaner

import (
	"errors"
	"io/fs"
	"os"
)

// renameIfAbsent is the check-then-rename fallback for platforms without an
// exclusive rename
func renameIfAbsent(src, dst string) error {
	if _, err := os.Lstat(dst); !errors.Is(err, fs.ErrNotExist) {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: fs.ErrExist}
	}
	return os.Rename(src, dst)
}
