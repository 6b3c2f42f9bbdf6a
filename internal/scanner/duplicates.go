package scanner

import (
	"context"
	"fmt"

	"github.com/fenilsonani/macsweep/pkg/utils"
)

// duplicate is a file whose content equals an earlier file
type duplicate struct {
	entry    fileEntry
	original string
	hash     string
}

// findDuplicates returns, for every group of identical files, all members
// except the first in candidate order. Candidates are narrowed by size, then
// by a quick xxhash of the head, then confirmed with a full SHA-256.
// Empty files are never reported.
func findDuplicates(ctx context.Context, candidates []fileEntry) ([]duplicate, error) {
	bySize := groupBy(candidates, func(e fileEntry) (string, bool) {
		if e.info.Size() == 0 {
			return "", false
		}
		return fmt.Sprint(e.info.Size()), true
	})

	var dups []duplicate
	for _, sameSize := range bySize {
		if len(sameSize) < 2 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		byHead := groupBy(sameSize, func(e fileEntry) (string, bool) {
			h, err := utils.QuickHash(e.path, utils.HeadChunkSize)
			return h, err == nil
		})

		for _, sameHead := range byHead {
			if len(sameHead) < 2 {
				continue
			}

			hashes := make(map[string]string, len(sameHead))
			byContent := groupBy(sameHead, func(e fileEntry) (string, bool) {
				h, err := utils.HashFile(e.path)
				hashes[e.path] = h
				return h, err == nil
			})

			for _, group := range byContent {
				for _, e := range group[1:] {
					dups = append(dups, duplicate{
						entry:    e,
						original: group[0].path,
						hash:     hashes[e.path],
					})
				}
			}
		}
	}

	return dups, nil
}

// groupBy buckets entries by key, preserving first-seen order of both the
// buckets and their members. Entries whose key cannot be computed are dropped.
func groupBy(entries []fileEntry, key func(fileEntry) (string, bool)) [][]fileEntry {
	index := make(map[string]int)
	var groups [][]fileEntry

	for _, e := range entries {
		k, ok := key(e)
		if !ok {
			continue
		}
		i, seen := index[k]
		if !seen {
			i = len(groups)
			index[k] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], e)
	}
	return groups
}
