package platform

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestInfoForMacOS(t *testing.T) {
	info, err := InfoFor(MacOS, "/Users/test", "test", 501)
	if err != nil {
		t.Fatalf("InfoFor failed: %v", err)
	}

	if info.TrashDir != "/Users/test/.Trash" {
		t.Errorf("TrashDir = %q, want /Users/test/.Trash", info.TrashDir)
	}
	if info.UID != 501 {
		t.Errorf("UID = %d, want 501", info.UID)
	}
	if len(info.Browsers) != 6 {
		t.Errorf("expected 6 browsers, got %d", len(info.Browsers))
	}
	if !strings.HasPrefix(info.HelperBinary, "/Library/PrivilegedHelperTools/") {
		t.Errorf("HelperBinary = %q", info.HelperBinary)
	}

	for _, dir := range append(info.UserCacheDirs, info.MediaDirs...) {
		if !filepath.IsAbs(dir) {
			t.Errorf("expected absolute path, got %q", dir)
		}
	}
}

func TestInfoForLinux(t *testing.T) {
	info, err := InfoFor(Linux, "/home/test", "test", 1000)
	if err != nil {
		t.Fatalf("InfoFor failed: %v", err)
	}
	if info.UserCacheDirs[0] != "/home/test/.cache" {
		t.Errorf("UserCacheDirs[0] = %q", info.UserCacheDirs[0])
	}
}

func TestInfoForUnsupported(t *testing.T) {
	if _, err := InfoFor(Unknown, "/home/x", "x", 1); err != ErrUnsupportedPlatform {
		t.Errorf("err = %v, want ErrUnsupportedPlatform", err)
	}
}

func TestHelperInstalled(t *testing.T) {
	info := &Info{HelperBinary: filepath.Join(t.TempDir(), "missing")}
	if info.HelperInstalled() {
		t.Error("missing helper binary reported as installed")
	}

	info.HelperBinary = t.TempDir()
	if !info.HelperInstalled() {
		t.Error("existing helper path reported as missing")
	}
}
