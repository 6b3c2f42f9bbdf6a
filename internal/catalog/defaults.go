package catalog

import (
	"slices"
	"strings"

	"github.com/fenilsonani/macsweep/internal/platform"
	"github.com/fenilsonani/macsweep/pkg/utils"
)

// Extension groups shared by the default categories and the scanner
var (
	PhotoExtensions = []string{"jpg", "jpeg", "png", "heic", "heif", "gif", "raw", "cr2", "nef", "arw", "dng"}
	RawExtensions   = []string{"raw", "cr2", "nef", "arw", "dng"}
	JPEGExtensions  = []string{"jpg", "jpeg"}
	LogExtensions   = []string{"log", "log.gz", "log.bz2", "crash", "ips", "diag", "spin", "hang", "asl"}
)

// Default builds the built-in macOS catalog for the given platform info.
// Order matters: when a path matches several categories the earliest one keeps it.
func Default(info *platform.Info) *Catalog {
	cat := &Catalog{}
	add := func(c Category) {
		if len(c.Roots) == 0 {
			return
		}
		c.Roots = slices.Clone(c.Roots)
		c.Extensions = slices.Clone(c.Extensions)
		cat.Categories = append(cat.Categories, c)
	}

	for _, b := range info.Browsers {
		add(Category{
			Name:  "browser_" + strings.ToLower(b.Name),
			Label: b.Name + " Cache",
			Type:  TypeCache,
			Roots: []string{b.CacheDir},
		})
	}

	add(Category{
		Name:  "user_caches",
		Label: "User Cache",
		Type:  TypeCache,
		Roots: info.UserCacheDirs,
	})
	add(Category{
		Name:               "system_caches",
		Label:              "System Cache",
		Type:               TypeCache,
		Roots:              info.SystemCacheDirs,
		RequiresPrivileges: true,
	})
	add(Category{
		Name:       "user_logs",
		Label:      "User Logs",
		Type:       TypeLog,
		Roots:      info.UserLogDirs,
		Extensions: LogExtensions,
	})
	add(Category{
		Name:               "system_logs",
		Label:              "System Logs",
		Type:               TypeLog,
		Roots:              info.SystemLogDirs,
		Extensions:         LogExtensions,
		RequiresPrivileges: true,
	})
	add(Category{
		Name:  "temp_files",
		Label: "Temporary Files",
		Type:  TypeTemp,
		Roots: info.TempDirs,
	})
	add(Category{
		Name:  "developer",
		Label: "Xcode Data",
		Type:  TypeCache,
		Roots: info.DeveloperDirs,
	})
	add(Category{
		Name:  "ios_backups",
		Label: "iOS Backups",
		Type:  TypeOther,
		Roots: info.BackupDirs,
	})
	add(Category{
		Name:         "mail_attachments",
		Label:        "Mail Attachments",
		Type:         TypeDownload,
		Roots:        info.MailDirs,
		MinSize:      Size(1 * utils.MB),
		PathContains: []string{"/Attachments/", "/Mail Downloads/"},
	})
	add(Category{
		Name:       "installers",
		Label:      "Installers",
		Type:       TypeDownload,
		Roots:      []string{info.DownloadsDir},
		Extensions: []string{"dmg", "pkg", "mpkg", "iso", "xip"},
	})
	add(Category{
		Name:       "duplicate_photos",
		Label:      "Duplicate Photos",
		Type:       TypeDuplicate,
		Roots:      info.PictureDirs,
		Extensions: PhotoExtensions,
		Rule:       RuleDuplicates,
	})
	add(Category{
		Name:  "raw_jpeg_pairs",
		Label: "RAW+JPEG Pairs",
		Type:  TypeDuplicate,
		Roots: info.PictureDirs,
		Rule:  RuleRawJPEG,
	})
	add(Category{
		Name:    "large_files",
		Label:   "Large Files",
		Type:    TypeLarge,
		Roots:   info.MediaDirs,
		MinSize: Size(100 * utils.MB),
	})
	add(Category{
		Name:          "trash",
		Label:         "Trash",
		Type:          TypeTrash,
		Roots:         []string{info.TrashDir},
		IncludeHidden: true,
	})

	return cat
}

// WithOverrides returns a copy of base where categories in override replace
// same-named ones and new categories are appended
func WithOverrides(base, override *Catalog) *Catalog {
	if override == nil {
		return base
	}

	out := &Catalog{Categories: append([]Category(nil), base.Categories...)}
	for _, oc := range override.Categories {
		replaced := false
		for i := range out.Categories {
			if out.Categories[i].Name == oc.Name {
				out.Categories[i] = oc
				replaced = true
				break
			}
		}
		if !replaced {
			out.Categories = append(out.Categories, oc)
		}
	}
	return out
}
