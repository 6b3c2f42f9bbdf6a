package cleaner

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

const maxTrashNames = 9999

// Trash moves files into the user's trash directory
type Trash struct {
	Dir string
}

// NewTrash returns a Trash rooted at dir (normally ~/.Trash)
func NewTrash(dir string) *Trash {
	return &Trash{Dir: filepath.Clean(dir)}
}

// Contains reports whether path lies inside the trash directory
func (t *Trash) Contains(path string) bool {
	rel, err := filepath.Rel(t.Dir, filepath.Clean(path))
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Put moves src into the trash and returns its new path. An item already in
// the trash is removed permanently and the returned path is empty.
func (t *Trash) Put(src string) (string, error) {
	info, err := os.Lstat(src)
	if err != nil {
		return "", err
	}

	if t.Contains(src) {
		if info.IsDir() {
			return "", os.RemoveAll(src)
		}
		return "", os.Remove(src)
	}

	if err := os.MkdirAll(t.Dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create trash directory: %w", err)
	}

	base := filepath.Base(src)
	for n := 1; n <= maxTrashNames; n++ {
		dst := trashName(t.Dir, base, n)
		if _, err := os.Lstat(dst); !errors.Is(err, fs.ErrNotExist) {
			continue
		}

		err := renameNoReplace(src, dst)
		if errors.Is(err, syscall.EXDEV) {
			err = moveAcrossDevices(src, dst, info)
		}
		if errors.Is(err, fs.ErrExist) {
			// taken since the Lstat
			continue
		}
		if err != nil {
			return "", err
		}
		return dst, nil
	}
	return "", fmt.Errorf("no free name for %s in %s", base, t.Dir)
}

// trashName returns the n-th candidate path for base: the plain name first,
// then Finder's "name 2.ext" numbering
func trashName(dir, base string, n int) string {
	if n == 1 {
		return filepath.Join(dir, base)
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem, ext = base, ""
	}
	return filepath.Join(dir, fmt.Sprintf("%s %d%s", stem, n, ext))
}

// moveAcrossDevices copies src to dst and removes src. The copy is removed
// again if it cannot be completed.
func moveAcrossDevices(src, dst string, info fs.FileInfo) error {
	if err := copyTree(src, dst, info); err != nil {
		if !errors.Is(err, fs.ErrExist) {
			os.RemoveAll(dst)
		}
		return err
	}
	return os.RemoveAll(src)
}

func copyTree(src, dst string, info fs.FileInfo) error {
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(target, dst)

	case info.IsDir():
		if err := os.Mkdir(dst, info.Mode().Perm()|0o700); err != nil {
			return err
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			child, err := entry.Info()
			if err != nil {
				return err
			}
			if err := copyTree(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name()), child); err != nil {
				return err
			}
		}
		return nil

	case info.Mode().IsRegular():
		return copyFile(src, dst, info.Mode().Perm())

	default:
		return fmt.Errorf("cannot move special file %s to trash", src)
	}
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
