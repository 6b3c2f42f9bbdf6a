package scanner

import (
	"path/filepath"
	"strings"

	"github.com/fenilsonani/macsweep/internal/catalog"
)

type rawJPEGPair struct {
	jpeg fileEntry
	raw  string
}

// findRawJPEGPairs returns every JPEG that sits in the same directory as a RAW
// file with the same base name. Names are compared case-insensitively.
func findRawJPEGPairs(candidates []fileEntry) []rawJPEGPair {
	raws := make(map[string]string)
	for _, e := range candidates {
		if _, ok := hasExtension(e.path, catalog.RawExtensions); ok {
			raws[stemKey(e.path)] = e.path
		}
	}

	var pairs []rawJPEGPair
	for _, e := range candidates {
		if _, ok := hasExtension(e.path, catalog.JPEGExtensions); !ok {
			continue
		}
		if raw, ok := raws[stemKey(e.path)]; ok {
			pairs = append(pairs, rawJPEGPair{jpeg: e, raw: raw})
		}
	}
	return pairs
}

// stemKey is the lower-cased path without its extension
func stemKey(path string) string {
	dir, name := filepath.Split(path)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return dir + strings.ToLower(stem)
}
