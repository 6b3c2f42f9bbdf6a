package cleaner

import (
	"os"

	"golang.org/x/sys/unix"
)

// renameNoReplace renames src to dst, failing with fs.ErrExist instead of
// replacing an existing dst
func renameNoReplace(src, dst string) error {
	if err := unix.RenamexNp(src, dst, unix.RENAME_EXCL); err != nil {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: err}
	}
	return nil
}
