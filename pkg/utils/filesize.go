package utils

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
)

const (
	B  = 1
	KB = 1024 * B
	MB = 1024 * KB
	GB = 1024 * MB
	TB = 1024 * GB
)

// FormatBytes converts bytes to human-readable format using binary units
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}

// ParseSize converts a human-readable size to bytes.
// Bare K/M/G/T and KB/MB/GB/TB are treated as binary units, matching FormatBytes.
func ParseSize(size string) (int64, error) {
	s := strings.TrimSpace(size)
	if s == "" {
		return 0, fmt.Errorf("invalid size format: %q", size)
	}

	n, err := humanize.ParseBytes(binaryUnits(s))
	if err != nil {
		return 0, fmt.Errorf("invalid size format: %s", size)
	}
	return int64(n), nil
}

// binaryUnits rewrites "100MB" or "100m" to "100MiB" so humanize parses it as 1024-based
func binaryUnits(s string) string {
	i := strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r)
	})
	if i < 0 {
		return s
	}

	num, unit := strings.TrimSpace(s[:i]), strings.ToUpper(strings.TrimSpace(s[i:]))
	switch unit {
	case "K", "KB":
		unit = "KiB"
	case "M", "MB":
		unit = "MiB"
	case "G", "GB":
		unit = "GiB"
	case "T", "TB":
		unit = "TiB"
	}
	return num + " " + unit
}
