package platform

import "path/filepath"

// getMacOSInfo returns well-known macOS locations rooted at homeDir
func getMacOSInfo(homeDir string) *Info {
	lib := filepath.Join(homeDir, "Library")

	return &Info{
		TrashDir:     filepath.Join(homeDir, ".Trash"),
		DownloadsDir: filepath.Join(homeDir, "Downloads"),
		UserCacheDirs: []string{
			filepath.Join(lib, "Caches"),
		},
		SystemCacheDirs: []string{
			"/Library/Caches",
		},
		UserLogDirs: []string{
			filepath.Join(lib, "Logs"),
		},
		SystemLogDirs: []string{
			"/Library/Logs",
			"/private/var/log",
		},
		TempDirs: []string{
			"/private/var/tmp",
		},
		DeveloperDirs: []string{
			filepath.Join(lib, "Developer/Xcode/DerivedData"),
			filepath.Join(lib, "Developer/Xcode/Archives"),
			filepath.Join(lib, "Developer/CoreSimulator/Caches"),
		},
		BackupDirs: []string{
			filepath.Join(lib, "Application Support/MobileSync/Backup"),
		},
		MailDirs: []string{
			filepath.Join(lib, "Mail"),
			filepath.Join(lib, "Containers/com.apple.mail/Data/Library/Mail Downloads"),
		},
		MediaDirs: []string{
			filepath.Join(homeDir, "Downloads"),
			filepath.Join(homeDir, "Documents"),
			filepath.Join(homeDir, "Desktop"),
			filepath.Join(homeDir, "Movies"),
			filepath.Join(homeDir, "Pictures"),
		},
		PictureDirs: []string{
			filepath.Join(homeDir, "Pictures"),
		},
		Browsers: []Browser{
			{Name: "Safari", CacheDir: filepath.Join(lib, "Caches/com.apple.Safari")},
			{Name: "Chrome", CacheDir: filepath.Join(lib, "Caches/Google/Chrome")},
			{Name: "Firefox", CacheDir: filepath.Join(lib, "Caches/Firefox")},
			{Name: "Edge", CacheDir: filepath.Join(lib, "Caches/Microsoft Edge")},
			{Name: "Brave", CacheDir: filepath.Join(lib, "Caches/BraveSoftware")},
			{Name: "Arc", CacheDir: filepath.Join(lib, "Caches/company.thebrowser.Browser")},
		},
		HelperBinary: filepath.Join("/Library/PrivilegedHelperTools", HelperID),
		ProtectedPaths: []string{
			"/",
			"/System",
			"/Applications",
			"/Library/System",
			"/usr",
			"/bin",
			"/sbin",
			homeDir,
		},
	}
}
