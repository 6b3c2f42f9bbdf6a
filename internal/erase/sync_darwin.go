package erase

import (
	"os"

	"golang.org/x/sys/unix"
)

// syncFile flushes to the physical medium. Plain fsync on macOS only reaches
// the drive cache; F_FULLFSYNC is refused by some filesystems (e.g. SMB), in
// which case fsync is the best available.
func syncFile(f *os.File) error {
	if _, err := unix.FcntlInt(f.Fd(), unix.F_FULLFSYNC, 0); err != nil {
		return f.Sync()
	}
	return nil
}
