package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"
)

// fileEntry is a regular file found under a category root
type fileEntry struct {
	path string
	info fs.FileInfo
}

type walkOptions struct {
	includeHidden bool
	excludes      []string
	minAge        time.Duration
	now           time.Time
}

// walkFiles visits regular files under root in lexical order.
// Entries that cannot be read are skipped and a root that cannot be opened
// yields nothing; only context cancellation is returned as an error.
func walkFiles(ctx context.Context, root string, opts walkOptions, visit func(fileEntry)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}

		if path != root && !opts.includeHidden && isHidden(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if len(opts.excludes) > 0 && excluded(path, opts.excludes) {
			if d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			// vanished between listing and stat
			return nil
		}

		if opts.minAge > 0 && opts.now.Sub(info.ModTime()) < opts.minAge {
			return nil
		}

		visit(fileEntry{path: path, info: info})
		return nil
	})
}
