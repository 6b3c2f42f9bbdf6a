package scanner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fenilsonani/macsweep/internal/catalog"
	"github.com/fenilsonani/macsweep/pkg/utils"
)

var typeByExtension = map[string]ItemType{
	"jpg": TypeImage, "jpeg": TypeImage, "png": TypeImage, "heic": TypeImage,
	"heif": TypeImage, "gif": TypeImage, "tiff": TypeImage, "raw": TypeImage,
	"cr2": TypeImage, "nef": TypeImage, "arw": TypeImage, "dng": TypeImage,
	"mp4": TypeVideo, "mov": TypeVideo, "m4v": TypeVideo, "avi": TypeVideo,
	"mkv": TypeVideo, "wmv": TypeVideo,
	"zip": TypeArchive, "rar": TypeArchive, "7z": TypeArchive, "tar": TypeArchive,
	"gz": TypeArchive, "dmg": TypeArchive, "iso": TypeArchive,
	"pdf": TypeDocument, "doc": TypeDocument, "docx": TypeDocument, "pages": TypeDocument,
	"key": TypeDocument, "numbers": TypeDocument, "xls": TypeDocument, "xlsx": TypeDocument,
}

// hasExtension reports whether name ends with ".ext" for one of exts.
// Multi-part extensions such as "log.gz" are supported.
func hasExtension(name string, exts []string) (string, bool) {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, "."+ext) {
			return ext, true
		}
	}
	return "", false
}

func extensionOf(name string) string {
	return catalog.NormalizeExt(filepath.Ext(name))
}

// matchCategory applies the category's rules to one regular file and returns
// the reason it matched
func matchCategory(cat *catalog.Category, path string, size int64) (string, bool) {
	if len(cat.PathContains) > 0 && !containsAny(path, cat.PathContains) {
		return "", false
	}

	if !cat.HasRules() {
		return cat.DisplayLabel(), true
	}

	name := filepath.Base(path)

	if ext, ok := hasExtension(name, cat.Extensions); ok {
		return fmt.Sprintf("%s file", strings.ToUpper(ext)), true
	}

	if cat.MinSize > 0 && size >= int64(cat.MinSize) {
		return fmt.Sprintf("Larger than %s", utils.FormatBytes(int64(cat.MinSize))), true
	}

	for _, pattern := range cat.NamePatterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return fmt.Sprintf("Matches %s", pattern), true
		}
	}

	return "", false
}

// itemType resolves the item type, refining large files by extension
func itemType(cat *catalog.Category, path string) ItemType {
	t := ItemType(cat.Type)
	if t == TypeLarge {
		if refined, ok := typeByExtension[extensionOf(path)]; ok {
			return refined
		}
	}
	return t
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}

// excluded reports whether path matches a user exclude pattern, checked
// against both the full path and the base name
func excluded(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, path); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
