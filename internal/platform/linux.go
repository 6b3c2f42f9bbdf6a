package platform

import "path/filepath"

// getLinuxInfo returns the Linux equivalents of the macOS locations, mostly for development hosts
func getLinuxInfo(homeDir string) *Info {
	cache := filepath.Join(homeDir, ".cache")

	return &Info{
		TrashDir:     filepath.Join(homeDir, ".local/share/Trash/files"),
		DownloadsDir: filepath.Join(homeDir, "Downloads"),
		UserCacheDirs: []string{
			cache,
		},
		SystemCacheDirs: []string{
			"/var/cache",
		},
		UserLogDirs: []string{
			filepath.Join(homeDir, ".local/share/logs"),
		},
		SystemLogDirs: []string{
			"/var/log",
		},
		TempDirs: []string{
			"/var/tmp",
		},
		MediaDirs: []string{
			filepath.Join(homeDir, "Downloads"),
			filepath.Join(homeDir, "Documents"),
			filepath.Join(homeDir, "Desktop"),
			filepath.Join(homeDir, "Videos"),
			filepath.Join(homeDir, "Pictures"),
		},
		PictureDirs: []string{
			filepath.Join(homeDir, "Pictures"),
		},
		Browsers: []Browser{
			{Name: "Chrome", CacheDir: filepath.Join(cache, "google-chrome")},
			{Name: "Firefox", CacheDir: filepath.Join(cache, "mozilla/firefox")},
			{Name: "Brave", CacheDir: filepath.Join(cache, "BraveSoftware")},
		},
		HelperBinary: filepath.Join("/usr/local/libexec", HelperID),
		ProtectedPaths: []string{
			"/",
			"/bin",
			"/boot",
			"/etc",
			"/usr",
			"/sbin",
			"/proc",
			"/sys",
			homeDir,
		},
	}
}
