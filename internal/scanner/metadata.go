package scanner

import (
	"io/fs"
	"os"
	"strings"
	"time"

	exif "github.com/dsoprea/go-exif/v3"
)

const exifTimeLayout = "2006:01:02 15:04:05"

// exifExtensions are the formats worth probing for an EXIF capture date
var exifExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "heic": true, "heif": true, "tiff": true,
	"dng": true, "cr2": true, "nef": true, "arw": true,
}

// createdAt returns the best-effort creation time of a file: the EXIF capture
// time for photos when probePhotos is set, otherwise the filesystem birth time
func createdAt(path string, info fs.FileInfo, probePhotos bool) time.Time {
	if probePhotos && exifExtensions[extensionOf(path)] {
		if t, ok := exifCaptureTime(path); ok {
			return t
		}
	}
	return birthTime(info)
}

func exifCaptureTime(path string) (time.Time, bool) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, false
	}
	defer f.Close()

	tags, _, err := exif.GetFlatExifDataUniversalSearchWithReadSeeker(f, nil, true)
	if err != nil {
		return time.Time{}, false
	}

	var fallback time.Time
	for _, tag := range tags {
		switch tag.TagName {
		case "DateTimeOriginal", "DateTimeDigitized", "DateTime":
			raw, ok := tag.Value.(string)
			if !ok {
				raw = tag.Formatted
			}
			t, err := time.ParseInLocation(exifTimeLayout, strings.TrimSpace(strings.Trim(raw, "\x00")), time.Local)
			if err != nil {
				continue
			}
			if tag.TagName == "DateTimeOriginal" {
				return t, true
			}
			if fallback.IsZero() {
				fallback = t
			}
		}
	}

	return fallback, !fallback.IsZero()
}
