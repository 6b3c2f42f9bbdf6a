// Package scanner enumerates reclaimable files for every catalog category.
// Categories are scanned concurrently and aggregated in catalog order.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fenilsonani/macsweep/internal/catalog"
	"github.com/fenilsonani/macsweep/internal/logging"
	"github.com/google/uuid"
)

// ErrUnknownCategory is returned by ScanCategory for a name not in the catalog
var ErrUnknownCategory = errors.New("unknown category")

// Engine runs category scans over a catalog
type Engine struct {
	catalog  *catalog.Catalog
	excludes []string
	minAge   time.Duration
	minSize  int64
	logger   *logging.Logger
	now      func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithExcludes skips paths matching any of the glob patterns
func WithExcludes(patterns []string) Option {
	return func(e *Engine) { e.excludes = patterns }
}

// WithMinAge skips files modified more recently than age
func WithMinAge(age time.Duration) Option {
	return func(e *Engine) { e.minAge = age }
}

// WithMinSize skips files smaller than size bytes. Category minimums still apply.
func WithMinSize(size int64) Option {
	return func(e *Engine) { e.minSize = size }
}

// WithLogger sets the engine logger
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine for the given catalog
func NewEngine(cat *catalog.Catalog, opts ...Option) *Engine {
	e := &Engine{
		catalog: cat,
		logger:  logging.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the catalog the engine scans
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Categories returns the number of categories a full scan covers
func (e *Engine) Categories() int {
	return len(e.catalog.Categories)
}

// ScanAll scans every category concurrently and returns the aggregated
// inventory. If ctx is cancelled partial results are discarded.
func (e *Engine) ScanAll(ctx context.Context) (*Inventory, error) {
	results := make([]CategoryResult, 0, e.Categories())
	for res := range e.Stream(ctx) {
		results = append(results, res)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Aggregate(results), nil
}

// ScanCategory scans a single category by name
func (e *Engine) ScanCategory(ctx context.Context, name string) ([]ScanItem, error) {
	cat, ok := e.catalog.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, name)
	}
	return e.scanCategory(ctx, &cat)
}

func (e *Engine) scanCategory(ctx context.Context, cat *catalog.Category) ([]ScanItem, error) {
	opts := walkOptions{
		includeHidden: cat.IncludeHidden,
		excludes:      e.excludes,
		minAge:        e.minAge,
		now:           e.now(),
	}

	var candidates []fileEntry
	reasons := make(map[string]string)

	// overlapping roots visit the same file more than once
	for _, root := range cat.Roots {
		err := walkFiles(ctx, root, opts, func(fe fileEntry) {
			if _, dup := reasons[fe.path]; dup {
				return
			}
			if fe.info.Size() < e.minSize {
				return
			}
			reason, ok := matchCategory(cat, fe.path, fe.info.Size())
			if !ok {
				return
			}
			candidates = append(candidates, fe)
			reasons[fe.path] = reason
		})
		if err != nil {
			return nil, err
		}
	}

	switch cat.Rule {
	case catalog.RuleDuplicates:
		dups, err := findDuplicates(ctx, candidates)
		if err != nil {
			return nil, err
		}
		items := make([]ScanItem, 0, len(dups))
		for _, d := range dups {
			item := e.newItem(cat, d.entry, fmt.Sprintf("Duplicate of %s", d.original), true)
			item.Type = TypeDuplicate
			item.Hash = d.hash
			items = append(items, item)
		}
		return items, nil

	case catalog.RuleRawJPEG:
		pairs := findRawJPEGPairs(candidates)
		items := make([]ScanItem, 0, len(pairs))
		for _, p := range pairs {
			item := e.newItem(cat, p.jpeg, fmt.Sprintf("JPEG copy of %s", p.raw), true)
			item.Type = TypeDuplicate
			items = append(items, item)
		}
		return items, nil
	}

	items := make([]ScanItem, 0, len(candidates))
	for _, fe := range candidates {
		items = append(items, e.newItem(cat, fe, reasons[fe.path], false))
	}
	return items, nil
}

func (e *Engine) newItem(cat *catalog.Category, fe fileEntry, reason string, probePhotos bool) ScanItem {
	return ScanItem{
		ID:                 uuid.NewString(),
		Path:               fe.path,
		Size:               fe.info.Size(),
		Type:               itemType(cat, fe.path),
		Category:           cat.DisplayLabel(),
		Selected:           true,
		CreatedAt:          createdAt(fe.path, fe.info, probePhotos),
		ModifiedAt:         fe.info.ModTime(),
		Reason:             reason,
		RequiresPrivileges: cat.RequiresPrivileges,
	}
}
