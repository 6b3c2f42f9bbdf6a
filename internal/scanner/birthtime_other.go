//go:build !darwin

package scanner

import (
	"io/fs"
	"time"
)

// birthTime is unavailable from a plain stat here; callers fall back to ModifiedAt
func birthTime(info fs.FileInfo) time.Time {
	return time.Time{}
}
