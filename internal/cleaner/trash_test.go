package cleaner

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/fenilsonani/macsweep/internal/testutil"
)

// =============================================================================
// Trash Tests
// =============================================================================

func TestTrashPutMovesFile(t *testing.T) {
	f := testutil.NewFixture(t)
	trash := NewTrash(f.TrashDir)

	src := f.CreateCacheFile("report.txt", 10)
	dst, err := trash.Put(src)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if dst != filepath.Join(f.TrashDir, "report.txt") {
		t.Errorf("dst = %q", dst)
	}
	f.AssertFileNotExists(src)
	f.AssertFileSize(dst, 10)
}

func TestTrashPutAvoidsCollisions(t *testing.T) {
	f := testutil.NewFixture(t)
	trash := NewTrash(f.TrashDir)

	tests := []struct {
		name string
		want []string
	}{
		{"report.txt", []string{"report.txt", "report 2.txt", "report 3.txt"}},
		{".hidden", []string{".hidden", ".hidden 2"}},
		{"archive.tar.gz", []string{"archive.tar.gz", "archive.tar 2.gz"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i, want := range tt.want {
				src := f.CreateFile(filepath.Join("src", string(rune('a'+i)), tt.name), []byte("x"))
				dst, err := trash.Put(src)
				if err != nil {
					t.Fatalf("Put() error = %v", err)
				}
				if filepath.Base(dst) != want {
					t.Errorf("put %d: got %q, want %q", i, filepath.Base(dst), want)
				}
			}
		})
	}
}

func TestTrashPutDirectory(t *testing.T) {
	f := testutil.NewFixture(t)
	trash := NewTrash(f.TrashDir)

	f.CreateCacheFile("com.app/a.db", 5)
	f.CreateCacheFile("com.app/sub/b.db", 5)
	dir := filepath.Join(f.CachesDir, "com.app")

	dst, err := trash.Put(dir)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	f.AssertFileNotExists(dir)
	f.AssertFileExists(filepath.Join(dst, "sub", "b.db"))
}

func TestTrashPutInsideTrashRemoves(t *testing.T) {
	f := testutil.NewFixture(t)
	trash := NewTrash(f.TrashDir)

	old := f.CreateFile(f.RelPath(filepath.Join(f.TrashDir, "old.zip")), []byte("zip"))
	dst, err := trash.Put(old)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if dst != "" {
		t.Errorf("dst = %q, want empty for permanent removal", dst)
	}
	f.AssertFileNotExists(old)

	entries, _ := os.ReadDir(f.TrashDir)
	if len(entries) != 0 {
		t.Errorf("trash has %d entries, want 0", len(entries))
	}
}

func TestTrashPutMissing(t *testing.T) {
	f := testutil.NewFixture(t)
	trash := NewTrash(f.TrashDir)

	_, err := trash.Put(f.Path("nope"))
	if !os.IsNotExist(err) {
		t.Errorf("Put(missing) error = %v, want not-exist", err)
	}
}

func TestTrashContains(t *testing.T) {
	trash := NewTrash("/Users/me/.Trash")

	tests := []struct {
		path string
		want bool
	}{
		{"/Users/me/.Trash/a", true},
		{"/Users/me/.Trash/dir/b", true},
		{"/Users/me/.Trash", false},
		{"/Users/me/.Trashy/a", false},
		{"/Users/me/Downloads/a", false},
	}

	for _, tt := range tests {
		if got := trash.Contains(tt.path); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestCopyTreePreservesContent(t *testing.T) {
	f := testutil.NewFixture(t)

	f.CreateFile("src/a.txt", []byte("alpha"))
	f.CreateFile("src/nested/b.txt", []byte("beta"))
	f.CreateSymlink("a.txt", "src/link")

	src := f.Path("src")
	dst := f.Path("dst")
	info, _ := os.Lstat(src)

	if err := moveAcrossDevices(src, dst, info); err != nil {
		t.Fatalf("moveAcrossDevices() error = %v", err)
	}

	f.AssertFileNotExists(src)
	data, err := os.ReadFile(filepath.Join(dst, "nested", "b.txt"))
	if err != nil || string(data) != "beta" {
		t.Errorf("nested copy = %q, %v", data, err)
	}
	if target, err := os.Readlink(filepath.Join(dst, "link")); err != nil || target != "a.txt" {
		t.Errorf("symlink copy = %q, %v", target, err)
	}
}

func TestRenameNoReplaceKeepsExisting(t *testing.T) {
	f := testutil.NewFixture(t)
	src := f.CreateFile("src/report.txt", []byte("new"))
	dst := f.CreateFile("dst/report.txt", []byte("existing"))

	err := renameNoReplace(src, dst)
	if !errors.Is(err, fs.ErrExist) {
		t.Fatalf("renameNoReplace() error = %v, want fs.ErrExist", err)
	}

	f.AssertFileExists(src)
	if data, _ := os.ReadFile(dst); string(data) != "existing" {
		t.Errorf("dst = %q, want it untouched", data)
	}

	free := f.Path("dst/report 2.txt")
	if err := renameNoReplace(src, free); err != nil {
		t.Fatalf("renameNoReplace() to free name error = %v", err)
	}
	f.AssertFileNotExists(src)
	f.AssertFileExists(free)
}

func TestMoveAcrossDevicesKeepsExistingTarget(t *testing.T) {
	f := testutil.NewFixture(t)
	src := f.CreateFile("src/a.txt", []byte("mine"))
	dst := f.CreateFile("dst/a.txt", []byte("theirs"))
	info, _ := os.Lstat(src)

	if err := moveAcrossDevices(src, dst, info); !errors.Is(err, fs.ErrExist) {
		t.Fatalf("moveAcrossDevices() error = %v, want fs.ErrExist", err)
	}
	f.AssertFileExists(src)
	if data, _ := os.ReadFile(dst); string(data) != "theirs" {
		t.Errorf("dst = %q, want it untouched", data)
	}
}
